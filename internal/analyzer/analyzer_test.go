package analyzer

import (
	"reflect"
	"testing"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return New(cfg)
}

func sampleProps() []*models.Property {
	return []*models.Property{
		{
			ID: "PROP-1001", Address: "1 Alder St", City: "Bend", State: "Oregon",
			Region: "Central Oregon", PropertyType: "Single Family",
			AuctionPrice: 250000, EstimatedARV: 450000, EstimatedRepairs: 25000,
			ProfitMargin: 42, ProfitPotential: 189000, DealScore: 88,
			Recommended: true, AuctionDate: "2030-03-01", AuctionPlatform: "Auction.com",
			Source: models.SourceSheriff, Sqft: 1800, NeighborhoodScore: 8,
		},
		{
			ID: "PROP-1002", Address: "2 Birch St", City: "Medford", State: "Oregon",
			Region: "Southern Oregon", PropertyType: "Single Family",
			AuctionPrice: 400000, EstimatedARV: 600000, EstimatedRepairs: 60000,
			ProfitMargin: 31, ProfitPotential: 186000, DealScore: 72,
			Recommended: true, AuctionDate: "2030-01-15", AuctionPlatform: "Bank Foreclosure",
			Source: models.SourceRedfin, Sqft: 2200, NeighborhoodScore: 7,
		},
		{
			ID: "PROP-1003", Address: "3 Cedar St", City: "Austin", State: "Texas",
			Region: "Greater Austin", PropertyType: "Condo",
			AuctionPrice: 180000, EstimatedARV: 230000, EstimatedRepairs: 15000,
			ProfitMargin: 12, ProfitPotential: 27600, DealScore: 41,
			Recommended: false, AuctionDate: "2030-02-10", AuctionPlatform: "Auction.com",
			Source: models.SourceAuctionCom, Sqft: 1100, NeighborhoodScore: 6,
		},
	}
}

func TestCompareStates(t *testing.T) {
	a := testAnalyzer(t)

	rows := a.CompareStates(sampleProps())
	if len(rows) != 2 {
		t.Fatalf("expected 2 states, got %d: %+v", len(rows), rows)
	}

	// Config order: Oregon before Texas; Washington has no deals and is
	// skipped.
	or := rows[0]
	if or.State != "Oregon" || or.Count != 2 || or.Recommended != 2 {
		t.Fatalf("unexpected Oregon summary: %+v", or)
	}
	if or.AvgMargin != 36.5 || or.AvgScore != 80 {
		t.Fatalf("unexpected Oregon averages: %+v", or)
	}
	if or.TopDeal == nil || or.TopDeal.ID != "PROP-1001" {
		t.Fatalf("unexpected Oregon top deal: %+v", or.TopDeal)
	}

	tx := rows[1]
	if tx.State != "Texas" || tx.Count != 1 || tx.Recommended != 0 {
		t.Fatalf("unexpected Texas summary: %+v", tx)
	}
	if tx.TopDeal == nil || tx.TopDeal.ID != "PROP-1003" {
		t.Fatalf("unexpected Texas top deal: %+v", tx.TopDeal)
	}
}

func TestCompareStatesEmpty(t *testing.T) {
	a := testAnalyzer(t)
	if rows := a.CompareStates(nil); rows != nil {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestAnalyzeFiltersAreConjunctive(t *testing.T) {
	a := testAnalyzer(t)
	props := sampleProps()

	res := a.Analyze(props, Filters{MinMargin: 30, States: []string{"Oregon"}})
	if res.TotalProperties != 2 {
		t.Fatalf("expected 2 survivors, got %d", res.TotalProperties)
	}

	// Both filters must hold: the Texas condo clears neither.
	res = a.Analyze(props, Filters{MinMargin: 30, MaxPrice: 300000})
	if res.TotalProperties != 1 || res.AllProperties[0].ID != "PROP-1001" {
		t.Fatalf("expected only PROP-1001, got %+v", res.AllProperties)
	}
}

func TestAnalyzeZeroFiltersKeepEverything(t *testing.T) {
	a := testAnalyzer(t)
	res := a.Analyze(sampleProps(), Filters{})
	if res.TotalProperties != 3 {
		t.Fatalf("expected all 3 properties, got %d", res.TotalProperties)
	}
	if res.RecommendedDeals != 2 {
		t.Fatalf("expected 2 recommended, got %d", res.RecommendedDeals)
	}
}

func TestAnalyzeSortOrders(t *testing.T) {
	a := testAnalyzer(t)
	props := sampleProps()

	res := a.Analyze(props, Filters{})
	if res.AllProperties[0].ID != "PROP-1001" {
		t.Fatalf("score sort: expected PROP-1001 first, got %s", res.AllProperties[0].ID)
	}

	a.SortBy = SortByPrice
	res = a.Analyze(props, Filters{})
	if res.AllProperties[0].ID != "PROP-1003" {
		t.Fatalf("price sort: expected cheapest first, got %s", res.AllProperties[0].ID)
	}

	a.SortBy = SortByDate
	res = a.Analyze(props, Filters{})
	if res.AllProperties[0].ID != "PROP-1002" {
		t.Fatalf("date sort: expected soonest auction first, got %s", res.AllProperties[0].ID)
	}
}

func TestAnalyzeTopNCap(t *testing.T) {
	a := testAnalyzer(t)
	a.TopN = 2
	res := a.Analyze(sampleProps(), Filters{})
	if len(res.TopDeals) != 2 {
		t.Fatalf("expected TopDeals capped at 2, got %d", len(res.TopDeals))
	}
	if len(res.AllProperties) != 3 {
		t.Fatalf("AllProperties must stay uncapped, got %d", len(res.AllProperties))
	}
}

func TestAnalyzeAlertsFromRecommendedOnly(t *testing.T) {
	a := testAnalyzer(t)
	res := a.Analyze(sampleProps(), Filters{})

	if len(res.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(res.Alerts))
	}
	if res.Alerts[0].Level != "HOT DEAL" {
		t.Fatalf("margin 42 must be a HOT DEAL, got %q", res.Alerts[0].Level)
	}
	if res.Alerts[0].ProfitMargin != "42.0%" {
		t.Fatalf("unexpected margin formatting: %q", res.Alerts[0].ProfitMargin)
	}
	if res.Alerts[0].ProfitPotential != "$189000" {
		t.Fatalf("unexpected potential formatting: %q", res.Alerts[0].ProfitPotential)
	}
	for _, al := range res.Alerts {
		if al.PropertyID == "PROP-1003" {
			t.Fatal("non-recommended property must not raise an alert")
		}
	}
}

func TestAnalyzeStatistics(t *testing.T) {
	a := testAnalyzer(t)
	res := a.Analyze(sampleProps(), Filters{})
	stats := res.Statistics

	if stats.DealsOver40Pct != 1 || stats.Deals30To40Pct != 1 || stats.Deals20To30Pct != 0 {
		t.Fatalf("unexpected margin bands: %+v", stats)
	}
	if stats.StateCounts["Oregon"] != 2 || stats.StateCounts["Texas"] != 1 {
		t.Fatalf("unexpected state counts: %v", stats.StateCounts)
	}
	if stats.MedianAuctionPrice != 250000 {
		t.Fatalf("expected median 250000, got %v", stats.MedianAuctionPrice)
	}

	g, ok := stats.ByRegion["Central Oregon (Oregon)"]
	if !ok {
		t.Fatalf("missing region group, got %v", stats.ByRegion)
	}
	if g.Count != 1 || g.AvgMargin != 42 {
		t.Fatalf("unexpected region stat: %+v", g)
	}

	src := stats.BySource[string(models.SourceSheriff)]
	if src.Count != 1 {
		t.Fatalf("unexpected source stat: %+v", src)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	a := testAnalyzer(t)
	props := sampleProps()

	first := a.Analyze(props, Filters{MinMargin: 10})
	second := a.Analyze(props, Filters{MinMargin: 10})
	first.Timestamp, second.Timestamp = "", ""
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Analyze must be deterministic for the same input")
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("odd median: got %v", got)
	}
	if got := median([]float64{4, 1, 2, 3}); got != 2.5 {
		t.Fatalf("even median: got %v", got)
	}
	if got := median(nil); got != 0 {
		t.Fatalf("empty median: got %v", got)
	}
}
