package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLoads(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if len(cfg.TargetStates) == 0 {
		t.Fatal("no target states configured")
	}
	if len(cfg.SourcePrecedence) == 0 {
		t.Fatal("no source precedence configured")
	}
	if cfg.MergeTolerance <= 0 {
		t.Fatalf("merge tolerance not set: %v", cfg.MergeTolerance)
	}
	if cfg.Costs.ClosingCostPct != 0.03 {
		t.Fatalf("unexpected closing cost pct: %v", cfg.Costs.ClosingCostPct)
	}
}

func TestLoadEmptyPathFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.MockCount == 0 {
		t.Fatal("defaults not applied")
	}
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `
target_states: ["Oregon"]
filters:
  min_auction_price: 100000
  max_auction_price: 1200000
score_weights:
  profit_margin: 40
  repair_efficiency: 20
  neighborhood: 20
  characteristics: 10
merge_tolerance: 0.1
source_precedence: ["sheriff"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected weight validation error")
	}
	if !strings.Contains(err.Error(), "sum to 100") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegionFor(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.RegionFor("Oregon", "Bend"); got != "Central Oregon" {
		t.Fatalf("Bend: got %q", got)
	}
	if got := cfg.RegionFor("Oregon", "Atlantis"); got != "" {
		t.Fatalf("unknown city must map to empty region, got %q", got)
	}
}

func TestActiveRegions(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	// Oregon restricts to two regions; Portland Metro is present in the
	// region tables but not scanned.
	if !cfg.RegionActive("Oregon", "Central Oregon") {
		t.Fatal("Central Oregon must be active")
	}
	if cfg.RegionActive("Oregon", "Portland Metro") {
		t.Fatal("Portland Metro must be inactive")
	}

	// Washington has no active_regions entry: every region counts.
	if !cfg.StateActive("Washington") {
		t.Fatal("Washington must be active")
	}
	if cfg.StateActive("Nevada") {
		t.Fatal("unknown state must be inactive")
	}
}

func TestActiveCitiesHonorActiveRegions(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	cities := cfg.ActiveCities()
	if len(cities) == 0 {
		t.Fatal("no active cities")
	}
	seenBend := false
	for _, c := range cities {
		if c.State == "Oregon" && c.Region == "Portland Metro" {
			t.Fatalf("inactive region leaked into scan targets: %+v", c)
		}
		if c.City == "Bend" {
			seenBend = true
			if c.Zip == "" {
				t.Fatal("Bend entry missing zip")
			}
		}
	}
	if !seenBend {
		t.Fatal("expected Bend among active cities")
	}
}

func TestFetchForDefaults(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	fc := cfg.FetchFor("nonexistent-family")
	if fc.TimeoutSeconds != 30 || fc.MaxRetries != 3 || fc.RateLimitRPS != 1.0 {
		t.Fatalf("defaults not filled: %+v", fc)
	}
	if fc.AcceptLanguage == "" {
		t.Fatal("accept language default missing")
	}
}

func TestFetchForFamilies(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		family  string
		timeout int
		retries int
		rps     float64
	}{
		{"attom", 20, 3, 1.0},
		{"batchdata", 20, 3, 1.0},
		{"census", 15, 2, 2.0},
		{"apify", 120, 1, 0.2},
	}
	for _, tc := range cases {
		fc := cfg.FetchFor(tc.family)
		if fc.TimeoutSeconds != tc.timeout || fc.MaxRetries != tc.retries || fc.RateLimitRPS != tc.rps {
			t.Fatalf("%s: got %+v, want timeout %d retries %d rps %v",
				tc.family, fc, tc.timeout, tc.retries, tc.rps)
		}
	}
}

func TestCountyFIPSLoads(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if fips := cfg.CountyFIPS["97701"]; fips != "4101799999" {
		t.Fatalf("Bend FIPS = %q, want 4101799999", fips)
	}
	if fips := cfg.CountyFIPS["98660"]; fips != "5301199999" {
		t.Fatalf("Vancouver FIPS = %q, want 5301199999", fips)
	}
}
