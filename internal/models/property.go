package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/david/auction-analyzer/internal/config"
)

// SourceKind identifies the adapter family a candidate record came from.
type SourceKind string

const (
	SourceMock           SourceKind = "mock"
	SourceRedfin         SourceKind = "redfin"
	SourceSheriff        SourceKind = "sheriff"
	SourceAuctionCom     SourceKind = "auction_com"
	SourceAttomBatchData SourceKind = "attom_batchdata"
)

// Occupancy describes who, if anyone, is living in the property.
type Occupancy string

const (
	OccupancyOccupied Occupancy = "occupied"
	OccupancyVacant   Occupancy = "vacant"
	OccupancyUnknown  Occupancy = "unknown"
)

// Condition is the reported physical condition of the property.
type Condition string

const (
	ConditionMoveInReady Condition = "move_in_ready"
	ConditionCosmetic    Condition = "cosmetic"
	ConditionModerate    Condition = "moderate_rehab"
	ConditionHeavy       Condition = "heavy_rehab"
	ConditionUnknown     Condition = "unknown"
)

// InvalidRecordError reports a raw candidate that failed basic validity.
// Such records are dropped and counted, never fatal to the run.
type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// Geo is an optional lat/lon pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LastSale records the most recent prior sale, when a source reports one.
type LastSale struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Property is one real-world listing candidate. Raw input fields are set by
// a source adapter; derived fields are computed once via ComputeMetrics and
// the scoring engine immediately after construction. After that the value is
// treated as immutable; dedup merges produce a new Property instead of
// mutating either input.
type Property struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Region  string `json:"region"`
	Geo     *Geo   `json:"geo,omitempty"`

	AuctionPrice     float64 `json:"auction_price"`
	EstimatedARV     float64 `json:"estimated_arv"`
	EstimatedRepairs float64 `json:"estimated_repairs"`

	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    float64 `json:"bathrooms"`
	Sqft         int     `json:"sqft"`
	LotSize      float64 `json:"lot_size"`
	YearBuilt    int     `json:"year_built"` // 0 = unknown
	PropertyType string  `json:"property_type"`

	AuctionDate     string `json:"auction_date"`
	AuctionPlatform string `json:"auction_platform"`
	Description     string `json:"description"`

	NeighborhoodScore int       `json:"neighborhood_score"` // 1-10
	Occupancy         Occupancy `json:"occupancy"`
	Condition         Condition `json:"condition"`

	AnnualTax       float64   `json:"annual_tax"`
	HOAFee          float64   `json:"hoa_fee"`
	MonthlyRent     float64   `json:"monthly_rent"`
	LastSale        *LastSale `json:"last_sale,omitempty"`

	// Derived fields, computed, never independently mutated.
	ProfitPotential float64 `json:"profit_potential"`
	ProfitMargin    float64 `json:"profit_margin"`
	TotalInvestment float64 `json:"total_investment"`
	MaxBidPrice     float64 `json:"max_bid_price"`
	DealScore       float64 `json:"deal_score"`
	Recommended     bool    `json:"recommended"`

	// Foreclosure context
	ForeclosingEntity string  `json:"foreclosing_entity,omitempty"`
	TotalDebt         float64 `json:"total_debt,omitempty"`
	LoanType          string  `json:"loan_type,omitempty"`
	DefaultDate       string  `json:"default_date,omitempty"`
	ForeclosureStage  string  `json:"foreclosure_stage,omitempty"`

	// Optional fields. New optional fields are appended here, never
	// inserted, so exporters can rely on a stable column order.
	PropertyURL    string `json:"property_url,omitempty"`
	BankContactURL string `json:"bank_contact_url,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	Notes          string `json:"notes,omitempty"`

	Source     SourceKind   `json:"source"`
	Provenance []SourceKind `json:"provenance"`
}

// Validate checks the construction invariants. A failing property is an
// InvalidRecord: dropped and counted by the aggregator, never fatal.
func (p *Property) Validate() error {
	if strings.TrimSpace(p.Address) == "" {
		return &InvalidRecordError{Field: "address", Reason: "is missing"}
	}
	if p.AuctionPrice <= 0 {
		return &InvalidRecordError{Field: "auction_price", Reason: "must be positive"}
	}
	if p.EstimatedARV <= 0 {
		return &InvalidRecordError{Field: "estimated_arv", Reason: "must be positive"}
	}
	if p.EstimatedRepairs < 0 {
		return &InvalidRecordError{Field: "estimated_repairs", Reason: "must be non-negative"}
	}
	return nil
}

// ComputeMetrics fills the derived investment fields from the raw financial
// inputs. It must be re-run whenever any input financial field changes; the
// derived fields are never set directly.
func (p *Property) ComputeMetrics(costs config.Costs) {
	closing := p.AuctionPrice * costs.ClosingCostPct
	holding := p.EstimatedARV * costs.HoldingCostPctPerMonth * float64(costs.HoldingMonths)
	selling := p.EstimatedARV * costs.SellingCostPct

	p.TotalInvestment = p.AuctionPrice + p.EstimatedRepairs + closing + holding
	p.ProfitPotential = p.EstimatedARV - p.TotalInvestment - selling

	if p.EstimatedARV > 0 {
		p.ProfitMargin = p.ProfitPotential / p.EstimatedARV * 100
	} else {
		// Margin is undefined without an ARV; report 0 rather than divide.
		p.ProfitMargin = 0
	}

	// 70% rule with a safety factor. Negative results are kept as-is: a
	// negative max bid is itself the signal that the deal does not work.
	p.MaxBidPrice = (p.EstimatedARV*costs.MaxBidARVFactor - p.EstimatedRepairs) * costs.MaxBidSafetyFactor
}

// CostBreakdown itemizes the cost assumptions behind TotalInvestment.
func (p *Property) CostBreakdown(costs config.Costs) map[string]float64 {
	return map[string]float64{
		"auction_price":    p.AuctionPrice,
		"repairs":          p.EstimatedRepairs,
		"closing_costs":    p.AuctionPrice * costs.ClosingCostPct,
		"holding_costs":    p.EstimatedARV * costs.HoldingCostPctPerMonth * float64(costs.HoldingMonths),
		"selling_costs":    p.EstimatedARV * costs.SellingCostPct,
		"total_investment": p.TotalInvestment,
	}
}

// AlertLevel returns the alert label for this property's margin, or "" when
// it falls below the lowest threshold.
func (p *Property) AlertLevel(levels config.AlertLevels) string {
	switch {
	case p.ProfitMargin >= levels.Hot:
		return "HOT DEAL"
	case p.ProfitMargin >= levels.Excellent:
		return "EXCELLENT"
	case p.ProfitMargin >= levels.Good:
		return "GOOD"
	}
	return ""
}

func (p *Property) String() string {
	return fmt.Sprintf("%s, %s, %s | $%.0f | Margin: %.1f%% | Score: %.1f",
		p.Address, p.City, p.State, p.AuctionPrice, p.ProfitMargin, p.DealScore)
}

// Alert is one high-value deal notification on an analysis result.
type Alert struct {
	Level           string  `json:"level"`
	PropertyID      string  `json:"property_id"`
	Address         string  `json:"address"`
	ProfitMargin    string  `json:"profit_margin"`
	ProfitPotential string  `json:"profit_potential"`
	MaxBidPrice     float64 `json:"max_bid_price"`
	AuctionDate     string  `json:"auction_date"`
	DealScore       float64 `json:"deal_score"`
}

// GroupStat is an aggregate over one grouping key (city, region, platform
// or source).
type GroupStat struct {
	Count     int     `json:"count"`
	AvgMargin float64 `json:"avg_margin"`
}

// Statistics is the aggregate section of an analysis result.
type Statistics struct {
	StateCounts          map[string]int       `json:"state_counts"`
	AvgAuctionPrice      float64              `json:"avg_auction_price"`
	MedianAuctionPrice   float64              `json:"median_auction_price"`
	AvgARV               float64              `json:"avg_arv"`
	AvgSqft              float64              `json:"avg_sqft"`
	AvgNeighborhoodScore float64              `json:"avg_neighborhood_score"`
	DealsOver40Pct       int                  `json:"deals_over_40_percent"`
	Deals30To40Pct       int                  `json:"deals_30_to_40_percent"`
	Deals20To30Pct       int                  `json:"deals_20_to_30_percent"`
	ByCity               map[string]GroupStat `json:"properties_by_city"`
	ByRegion             map[string]GroupStat `json:"properties_by_region"`
	ByPlatform           map[string]GroupStat `json:"properties_by_platform"`
	BySource             map[string]GroupStat `json:"properties_by_source"`
}

// AnalysisResult is the Analyzer's output: the filtered, sorted property
// list plus aggregate statistics. It is created once per run and read-only
// afterwards; the exporters own serialization.
type AnalysisResult struct {
	TotalProperties  int        `json:"total_properties"`
	RecommendedDeals int        `json:"recommended_deals"`
	AvgProfitMargin  float64    `json:"avg_profit_margin"`
	AvgDealScore     float64    `json:"avg_deal_score"`
	TopDeals         []Property `json:"top_deals"`
	AllProperties    []Property `json:"all_properties"`
	Alerts           []Alert    `json:"alerts"`
	Statistics       Statistics `json:"statistics"`
	Timestamp        string     `json:"timestamp"`
}

// NewAnalysisResult stamps an empty result with the current time.
func NewAnalysisResult() AnalysisResult {
	return AnalysisResult{Timestamp: time.Now().Format(time.RFC3339)}
}
