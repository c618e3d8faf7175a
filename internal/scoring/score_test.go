package scoring

import (
	"testing"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return cfg
}

// strongProperty scores well on every component.
func strongProperty() *models.Property {
	return &models.Property{
		AuctionPrice:      300000,
		EstimatedARV:      550000,
		EstimatedRepairs:  30000,
		ProfitMargin:      45,
		NeighborhoodScore: 9,
		Sqft:              2000,
		Bedrooms:          3,
		Bathrooms:         2.5,
		YearBuilt:         2005,
	}
}

func TestScoreWithinBounds(t *testing.T) {
	s := New(testConfig(t))

	cases := []*models.Property{
		strongProperty(),
		{},
		{ProfitMargin: -50, EstimatedRepairs: 500000, AuctionPrice: 100000},
		{ProfitMargin: 1000, NeighborhoodScore: 10, Sqft: 2000, Bedrooms: 3, Bathrooms: 2, YearBuilt: 2020},
	}
	for i, p := range cases {
		score, _ := s.Score(p)
		if score < 0 || score > 100 {
			t.Fatalf("case %d: score %v outside [0,100]", i, score)
		}
	}
}

func TestStrongPropertyScoresHigh(t *testing.T) {
	s := New(testConfig(t))
	score, recommended := s.Score(strongProperty())
	if score < 90 {
		t.Fatalf("expected score >= 90, got %v", score)
	}
	if !recommended {
		t.Fatal("strong property must be recommended")
	}
}

func TestRecommendedMarginBoundary(t *testing.T) {
	s := New(testConfig(t))

	p := strongProperty()
	p.ProfitMargin = 30
	if _, rec := s.Score(p); !rec {
		t.Fatal("margin exactly 30 must be recommended")
	}

	p.ProfitMargin = 29.999
	if _, rec := s.Score(p); rec {
		t.Fatal("margin 29.999 must not be recommended")
	}

	p.ProfitMargin = 30.001
	if _, rec := s.Score(p); !rec {
		t.Fatal("margin 30.001 must be recommended")
	}
}

func TestRecommendedScoreBoundary(t *testing.T) {
	s := New(testConfig(t))

	// Margin 30 contributes 30, the light repair ratio 20, neighborhood 5
	// contributes 10 and no characteristic matches: exactly 60.
	p := &models.Property{
		AuctionPrice:      300000,
		EstimatedRepairs:  40000,
		ProfitMargin:      30,
		NeighborhoodScore: 5,
		Sqft:              900,
		Bedrooms:          2,
		Bathrooms:         1,
		YearBuilt:         1970,
	}
	score, rec := s.Score(p)
	if score != 60 {
		t.Fatalf("expected score exactly 60, got %v", score)
	}
	if !rec {
		t.Fatal("score exactly 60 must be recommended")
	}

	// One neighborhood step down lands just under the cutoff; margin and
	// repairs still pass on their own.
	p.NeighborhoodScore = 4
	score, rec = s.Score(p)
	if score >= 60 {
		t.Fatalf("expected score below 60, got %v", score)
	}
	if rec {
		t.Fatal("score below 60 must not be recommended")
	}
}

func TestRecommendedRepairBoundary(t *testing.T) {
	s := New(testConfig(t))

	p := strongProperty()
	p.AuctionPrice = 600000 // keep the repair ratio low
	p.EstimatedRepairs = 80000
	if _, rec := s.Score(p); !rec {
		t.Fatal("repairs exactly 80000 must be recommended")
	}

	p.EstimatedRepairs = 80001
	if _, rec := s.Score(p); rec {
		t.Fatal("repairs 80001 must not be recommended")
	}
}

func TestLowScoreNotRecommended(t *testing.T) {
	s := New(testConfig(t))

	// High margin but everything else poor: old, tiny, bad neighborhood,
	// heavy repair ratio.
	p := &models.Property{
		AuctionPrice:      100000,
		EstimatedRepairs:  60000,
		ProfitMargin:      32,
		NeighborhoodScore: 1,
		Sqft:              700,
		Bedrooms:          1,
		Bathrooms:         1,
		YearBuilt:         1935,
	}
	score, rec := s.Score(p)
	if score >= 60 {
		t.Fatalf("expected score below 60, got %v", score)
	}
	if rec {
		t.Fatal("property below the score cutoff must not be recommended")
	}
}

func TestApplyStampsFields(t *testing.T) {
	s := New(testConfig(t))
	p := strongProperty()
	s.Apply(p)
	if p.DealScore == 0 {
		t.Fatal("Apply did not set DealScore")
	}
	if !p.Recommended {
		t.Fatal("Apply did not set Recommended")
	}
}

func TestLessOrdering(t *testing.T) {
	a := &models.Property{DealScore: 80, ProfitMargin: 30, AuctionPrice: 200000}
	b := &models.Property{DealScore: 70, ProfitMargin: 50, AuctionPrice: 100000}
	if !Less(a, b) {
		t.Fatal("higher score must sort first")
	}

	c := &models.Property{DealScore: 80, ProfitMargin: 40, AuctionPrice: 300000}
	if !Less(c, a) {
		t.Fatal("equal score: higher margin must sort first")
	}

	d := &models.Property{DealScore: 80, ProfitMargin: 30, AuctionPrice: 150000}
	if !Less(d, a) {
		t.Fatal("equal score and margin: lower price must sort first")
	}
}
