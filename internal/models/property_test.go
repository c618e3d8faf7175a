package models

import (
	"math"
	"strings"
	"testing"

	"github.com/david/auction-analyzer/internal/config"
)

var testCosts = config.Costs{
	ClosingCostPct:         0.03,
	HoldingMonths:          6,
	HoldingCostPctPerMonth: 0.01,
	SellingCostPct:         0.08,
	MaxBidARVFactor:        0.70,
	MaxBidSafetyFactor:     0.91,
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
}

func TestComputeMetrics(t *testing.T) {
	p := &Property{
		AuctionPrice:     200000,
		EstimatedARV:     400000,
		EstimatedRepairs: 30000,
	}
	p.ComputeMetrics(testCosts)

	// closing 6000, holding 24000, selling 32000
	approx(t, "total investment", p.TotalInvestment, 260000)
	approx(t, "profit potential", p.ProfitPotential, 108000)
	approx(t, "profit margin", p.ProfitMargin, 27.0)
	approx(t, "max bid", p.MaxBidPrice, (400000*0.70-30000)*0.91)
}

func TestComputeMetrics_ZeroARVMarginIsZero(t *testing.T) {
	p := &Property{AuctionPrice: 100000, EstimatedARV: 0, EstimatedRepairs: 5000}
	p.ComputeMetrics(testCosts)
	if p.ProfitMargin != 0 {
		t.Fatalf("margin with zero ARV must be 0, got %v", p.ProfitMargin)
	}
}

func TestComputeMetrics_NegativeMaxBidKept(t *testing.T) {
	p := &Property{AuctionPrice: 100000, EstimatedARV: 120000, EstimatedRepairs: 200000}
	p.ComputeMetrics(testCosts)
	if p.MaxBidPrice >= 0 {
		t.Fatalf("expected negative max bid for an underwater deal, got %v", p.MaxBidPrice)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		p     Property
		field string // empty = valid
	}{
		{"valid", Property{Address: "100 Oak St", AuctionPrice: 250000, EstimatedARV: 400000}, ""},
		{"missing address", Property{Address: "  ", AuctionPrice: 250000, EstimatedARV: 400000}, "address"},
		{"zero price", Property{Address: "100 Oak St", AuctionPrice: 0, EstimatedARV: 400000}, "auction_price"},
		{"zero arv", Property{Address: "100 Oak St", AuctionPrice: 250000, EstimatedARV: 0}, "estimated_arv"},
		{"negative repairs", Property{Address: "100 Oak St", AuctionPrice: 250000, EstimatedARV: 400000, EstimatedRepairs: -1}, "estimated_repairs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var ire *InvalidRecordError
			if err == nil {
				t.Fatal("expected error")
			}
			var ok bool
			if ire, ok = err.(*InvalidRecordError); !ok {
				t.Fatalf("expected InvalidRecordError, got %T", err)
			}
			if ire.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, ire.Field)
			}
		})
	}
}

func TestCostBreakdownSumsToTotalInvestment(t *testing.T) {
	p := &Property{AuctionPrice: 300000, EstimatedARV: 500000, EstimatedRepairs: 40000}
	p.ComputeMetrics(testCosts)

	b := p.CostBreakdown(testCosts)
	sum := b["auction_price"] + b["repairs"] + b["closing_costs"] + b["holding_costs"]
	approx(t, "breakdown sum", sum, p.TotalInvestment)
}

func TestAlertLevel(t *testing.T) {
	levels := config.AlertLevels{Hot: 40, Excellent: 35, Good: 30}
	cases := []struct {
		margin float64
		want   string
	}{
		{45, "HOT DEAL"},
		{40, "HOT DEAL"},
		{37, "EXCELLENT"},
		{30, "GOOD"},
		{29.9, ""},
	}
	for _, tc := range cases {
		p := &Property{ProfitMargin: tc.margin}
		if got := p.AlertLevel(levels); got != tc.want {
			t.Fatalf("margin %v: got %q, want %q", tc.margin, got, tc.want)
		}
	}
}

func TestPropertyString(t *testing.T) {
	p := &Property{Address: "100 Oak St", City: "Bend", State: "Oregon", AuctionPrice: 250000}
	s := p.String()
	if !strings.Contains(s, "100 Oak St") || !strings.Contains(s, "Bend") {
		t.Fatalf("unexpected string: %s", s)
	}
}
