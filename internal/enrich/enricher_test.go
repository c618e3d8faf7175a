package enrich

import (
	"context"
	"net/http"
	"testing"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
	"github.com/david/auction-analyzer/internal/sources"
)

func testEnricher(t *testing.T) *Enricher {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return New(cfg, nil, nil, nil)
}

// fakeFetcher returns canned bodies and counts calls.
type fakeFetcher struct {
	getBody   []byte
	postBody  []byte
	getCalls  int
	postCalls int
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	f.getCalls++
	return f.getBody, nil
}

func (f *fakeFetcher) Post(ctx context.Context, rawURL string, header http.Header, body []byte) ([]byte, error) {
	f.postCalls++
	return f.postBody, nil
}

func TestFillForeclosureContext(t *testing.T) {
	e := testEnricher(t)

	props := []*models.Property{
		{ID: "PROP-1001", EstimatedARV: 400000},
		{ID: "PROP-1002", EstimatedARV: 300000, ForeclosingEntity: "Wells Fargo", TotalDebt: 250000},
	}

	filled := e.FillForeclosureContext(props)
	if filled != 1 {
		t.Fatalf("expected 1 property filled, got %d", filled)
	}

	p := props[0]
	if p.ForeclosingEntity == "" || p.LoanType == "" || p.ForeclosureStage == "" || p.DefaultDate == "" {
		t.Fatalf("context not filled: %+v", p)
	}
	if p.BankContactURL == "" {
		t.Fatal("lender contact URL not resolved")
	}
	if p.TotalDebt < p.EstimatedARV*0.70 || p.TotalDebt > p.EstimatedARV*0.95 {
		t.Fatalf("synthesized debt %v outside 70-95%% of ARV", p.TotalDebt)
	}

	// Reported context is never overwritten.
	if props[1].ForeclosingEntity != "Wells Fargo" || props[1].TotalDebt != 250000 {
		t.Fatalf("existing context was modified: %+v", props[1])
	}
}

func TestNeighborhoodScoresWithoutClient(t *testing.T) {
	e := testEnricher(t)
	props := []*models.Property{{ID: "PROP-1001", ZipCode: "97701", NeighborhoodScore: 5}}

	if got := e.NeighborhoodScores(context.Background(), props); got != 0 {
		t.Fatalf("nil census client must update nothing, got %d", got)
	}
	if props[0].NeighborhoodScore != 5 {
		t.Fatal("score changed without a client")
	}
}

func TestMonthlyRents(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	fetcher := &fakeFetcher{
		getBody: []byte(`{"data":{"basicdata":{
			"Efficiency":950,"One-Bedroom":1100,"Two-Bedroom":1350,
			"Three-Bedroom":1800,"Four-Bedroom":2100}}}`),
	}
	e := New(cfg, NewCensusClient("", "hud-token", fetcher), nil, nil)

	props := []*models.Property{
		{ID: "PROP-1001", ZipCode: "97701", Bedrooms: 3},
		{ID: "PROP-1002", ZipCode: "97756", Bedrooms: 2},
		{ID: "PROP-1003", ZipCode: "97701", Bedrooms: 3, MonthlyRent: 2000},
		{ID: "PROP-1004", ZipCode: "00000", Bedrooms: 3},
	}

	filled := e.MonthlyRents(context.Background(), props, cfg.CountyFIPS)
	if filled != 2 {
		t.Fatalf("expected 2 rents filled, got %d", filled)
	}
	if props[0].MonthlyRent != 1800 {
		t.Fatalf("3br rent = %v, want 1800", props[0].MonthlyRent)
	}
	if props[1].MonthlyRent != 1350 {
		t.Fatalf("2br rent = %v, want 1350", props[1].MonthlyRent)
	}
	if props[2].MonthlyRent != 2000 {
		t.Fatal("reported rent was overwritten")
	}
	if props[3].MonthlyRent != 0 {
		t.Fatal("rent set for an unmapped ZIP")
	}

	// Bend and Redmond share Deschutes county, so one HUD call covers both.
	if fetcher.getCalls != 1 {
		t.Fatalf("expected 1 HUD call, got %d", fetcher.getCalls)
	}
}

func TestMonthlyRentsWithoutClient(t *testing.T) {
	e := testEnricher(t)
	props := []*models.Property{{ID: "PROP-1001", ZipCode: "97701", Bedrooms: 3}}

	if got := e.MonthlyRents(context.Background(), props, map[string]string{"97701": "4101799999"}); got != 0 {
		t.Fatalf("nil census client must fill nothing, got %d", got)
	}
}

func TestLookupForeclosures(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	fetcher := &fakeFetcher{
		postBody: []byte(`{"results":{"properties":[{
			"address":{"street":"1 Alder St","city":"Bend","state":"OR","zip":"97701"},
			"preForeclosure":{"trusteeName":"Pacific Trustee Services",
				"defaultAmount":310000,"filingType":"Notice of Default",
				"recordingDate":"2026-01-15"},
			"mortgage":{"loanType":"Conventional"}}]}}`),
	}
	e := New(cfg, nil, nil, sources.NewBatchDataClient("test-key", fetcher))

	props := []*models.Property{
		{ID: "PROP-1001", Address: "1 Alder St", City: "Bend", State: "Oregon", ZipCode: "97701"},
		{ID: "PROP-1002", Address: "2 Birch St", ForeclosingEntity: "Wells Fargo", TotalDebt: 250000},
	}

	matched := e.LookupForeclosures(context.Background(), props, 5)
	if matched != 1 {
		t.Fatalf("expected 1 property matched, got %d", matched)
	}

	p := props[0]
	if p.ForeclosingEntity != "Pacific Trustee Services" {
		t.Fatalf("entity = %q", p.ForeclosingEntity)
	}
	if p.TotalDebt != 310000 {
		t.Fatalf("debt = %v, want 310000", p.TotalDebt)
	}
	if p.LoanType != "Conventional" || p.ForeclosureStage != "Notice of Default" {
		t.Fatalf("loan context not copied: %+v", p)
	}
	if p.DefaultDate != "2026-01-15" {
		t.Fatalf("default date = %q", p.DefaultDate)
	}

	// Reported context is never replaced, and skipped properties cost no calls.
	if props[1].ForeclosingEntity != "Wells Fargo" {
		t.Fatalf("existing context was modified: %+v", props[1])
	}
	if fetcher.postCalls != 1 {
		t.Fatalf("expected 1 lookup call, got %d", fetcher.postCalls)
	}
}

func TestLookupForeclosuresWithoutClient(t *testing.T) {
	e := testEnricher(t)
	props := []*models.Property{{ID: "PROP-1001", Address: "1 Alder St"}}

	if got := e.LookupForeclosures(context.Background(), props, 5); got != 0 {
		t.Fatalf("nil batchdata client must match nothing, got %d", got)
	}
}

func TestRefreshARVsWithoutClient(t *testing.T) {
	e := testEnricher(t)
	props := []*models.Property{{ID: "PROP-1001", EstimatedARV: 400000}}

	if got := e.RefreshARVs(context.Background(), props, 25); got != 0 {
		t.Fatalf("nil attom client must refresh nothing, got %d", got)
	}
	if props[0].EstimatedARV != 400000 {
		t.Fatal("ARV changed without a client")
	}
}
