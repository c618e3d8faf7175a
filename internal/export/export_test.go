package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/david/auction-analyzer/internal/analyzer"
	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

func testExporter(t *testing.T) *Exporter {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return New(cfg)
}

func testProperties() []models.Property {
	return []models.Property{
		{
			ID: "PROP-1001", Address: "1 Alder St", City: "Bend", State: "Oregon",
			ZipCode: "97701", Region: "Central Oregon", PropertyType: "Single Family",
			AuctionPrice: 250000, EstimatedARV: 450000, EstimatedRepairs: 25000,
			Bedrooms: 3, Bathrooms: 2, Sqft: 1800, LotSize: 0.25, YearBuilt: 1998,
			AuctionDate: "2030-03-01", AuctionPlatform: "Auction.com",
			NeighborhoodScore: 8, Occupancy: models.OccupancyVacant,
			Condition: models.ConditionCosmetic,
			ProfitPotential: 135500, ProfitMargin: 30.1, TotalInvestment: 314500,
			MaxBidPrice: 263900, DealScore: 82.5, Recommended: true,
			ForeclosingEntity: "Wells Fargo", TotalDebt: 280000,
			Source:     models.SourceSheriff,
			Provenance: []models.SourceKind{models.SourceSheriff, models.SourceRedfin},
			Geo:        &models.Geo{Lat: 44.058, Lon: -121.315},
		},
		{
			ID: "PROP-1002", Address: "2 Birch St", City: "Medford", State: "Oregon",
			ZipCode: "97501", Region: "Southern Oregon", PropertyType: "Single Family",
			AuctionPrice: 400000, EstimatedARV: 520000, EstimatedRepairs: 60000,
			Bedrooms: 4, Bathrooms: 2.5, Sqft: 2200, YearBuilt: 1985,
			AuctionDate: "2030-01-15", AuctionPlatform: "Hubzu",
			ProfitMargin: 8.4, DealScore: 40, Recommended: false,
			Source:     models.SourceRedfin,
			Provenance: []models.SourceKind{models.SourceRedfin},
		},
	}
}

func TestCSVExport(t *testing.T) {
	e := testExporter(t)
	path := filepath.Join(t.TempDir(), "out.csv")

	got, err := e.CSV(testProperties(), path)
	if err != nil {
		t.Fatalf("CSV failed: %v", err)
	}
	if got != path {
		t.Fatalf("returned path %q, want %q", got, path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading back csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], csvColumns) {
		t.Fatalf("header mismatch:\ngot  %v\nwant %v", rows[0], csvColumns)
	}
	if len(rows[1]) != len(csvColumns) {
		t.Fatalf("row width %d, want %d", len(rows[1]), len(csvColumns))
	}
	if rows[1][0] != "PROP-1001" || rows[1][6] != "250000" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	// Provenance joins with a pipe so the cell never needs quoting.
	provCol := len(csvColumns) - 5
	if rows[1][provCol] != "sheriff|redfin" {
		t.Fatalf("provenance cell: got %q", rows[1][provCol])
	}
}

func TestCSVExportEmptyIsError(t *testing.T) {
	e := testExporter(t)
	path := filepath.Join(t.TempDir(), "out.csv")
	if _, err := e.CSV(nil, path); err == nil {
		t.Fatal("expected an error for an empty property list")
	}
}

func TestJSONExportRoundTrips(t *testing.T) {
	e := testExporter(t)
	path := filepath.Join(t.TempDir(), "out.json")

	result := models.NewAnalysisResult()
	result.TotalProperties = 2
	result.AllProperties = testProperties()
	result.TopDeals = testProperties()[:1]

	if _, err := e.JSON(result, path); err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back models.AnalysisResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("written JSON does not parse: %v", err)
	}
	if back.TotalProperties != 2 || len(back.AllProperties) != 2 {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestTextReport(t *testing.T) {
	e := testExporter(t)
	path := filepath.Join(t.TempDir(), "report.txt")

	if _, err := e.TextReport(testProperties(), 1, path); err != nil {
		t.Fatalf("TextReport failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	report := string(data)

	if !strings.Contains(report, "TOP 1 AUCTION PROPERTY DEALS") {
		t.Fatalf("missing title:\n%s", report)
	}
	if !strings.Contains(report, "#1 - 1 Alder St, Bend (Central Oregon), Oregon") {
		t.Fatalf("missing property heading:\n%s", report)
	}
	if !strings.Contains(report, "FORECLOSURE CONTEXT:") ||
		!strings.Contains(report, "Wells Fargo") {
		t.Fatal("missing foreclosure context section")
	}
	if !strings.Contains(report, "COST BREAKDOWN:") {
		t.Fatal("missing cost breakdown section")
	}
	// Only the requested count appears.
	if strings.Contains(report, "2 Birch St") {
		t.Fatal("report must stop at the requested count")
	}
}

func TestConsoleOutput(t *testing.T) {
	result := models.NewAnalysisResult()
	result.TotalProperties = 2
	result.RecommendedDeals = 1
	result.AllProperties = testProperties()
	result.TopDeals = testProperties()
	result.Statistics.StateCounts = map[string]int{"Oregon": 2}

	var sb strings.Builder
	Console(&sb, result, 1)
	out := sb.String()

	if !strings.Contains(out, "Analyzed 2 properties, 1 recommended") {
		t.Fatalf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "1 Alder St") {
		t.Fatalf("missing address row:\n%s", out)
	}
	// topN 1 trims the table to the first deal.
	if strings.Contains(out, "2 Birch St") {
		t.Fatalf("table must honor the topN cap:\n%s", out)
	}
	if !strings.Contains(out, "Oregon: 2") {
		t.Fatalf("missing state counts:\n%s", out)
	}
}

func TestConsoleStatsOutput(t *testing.T) {
	stats := models.Statistics{
		AvgAuctionPrice:    325000,
		MedianAuctionPrice: 325000,
		AvgARV:             485000,
		DealsOver40Pct:     1,
		ByRegion: map[string]models.GroupStat{
			"Central Oregon (Oregon)": {Count: 1, AvgMargin: 30.1},
		},
	}
	var sb strings.Builder
	ConsoleStats(&sb, stats)
	out := sb.String()

	if !strings.Contains(out, "Central Oregon (Oregon)") {
		t.Fatalf("missing region group:\n%s", out)
	}
	if !strings.Contains(out, "1 over 40%") {
		t.Fatalf("missing margin bands:\n%s", out)
	}
}

func TestConsoleStateComparison(t *testing.T) {
	rows := []analyzer.StateComparison{
		{
			State: "Oregon", Count: 2, Recommended: 2, AvgMargin: 36.5, AvgScore: 80,
			TopDeal: &models.Property{
				Address: "1 Alder St", City: "Bend", ProfitMargin: 42, DealScore: 88,
			},
		},
		{State: "Texas", Count: 1, AvgMargin: 12, AvgScore: 41},
	}

	var sb strings.Builder
	ConsoleStateComparison(&sb, rows)
	out := sb.String()

	if !strings.Contains(out, "State comparison") {
		t.Fatalf("missing title:\n%s", out)
	}
	if !strings.Contains(out, "Oregon") || !strings.Contains(out, "Texas") {
		t.Fatalf("missing state rows:\n%s", out)
	}
	if !strings.Contains(out, "1 Alder St, Bend (42.0% / 88.0)") {
		t.Fatalf("missing top deal cell:\n%s", out)
	}

	sb.Reset()
	ConsoleStateComparison(&sb, nil)
	if !strings.Contains(sb.String(), "No properties to compare") {
		t.Fatalf("missing empty message:\n%s", sb.String())
	}
}
