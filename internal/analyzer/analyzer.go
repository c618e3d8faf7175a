// Package analyzer filters, ranks and summarizes a deduplicated property
// set into the AnalysisResult the exporters and dashboard consume.
package analyzer

import (
	"fmt"
	"sort"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
	"github.com/david/auction-analyzer/internal/scoring"
)

// Filters are the user-facing thresholds. Zero values are no-ops, and all
// active filters must pass (AND semantics).
type Filters struct {
	MinMargin  float64
	MaxPrice   float64
	MaxRepairs float64
	MinScore   float64

	States        []string
	Regions       []string
	PropertyTypes []string
}

// SortField selects the ranking order of the result list.
type SortField string

const (
	SortByScore  SortField = "score" // default, ties broken by margin then price
	SortByMargin SortField = "margin"
	SortByPrice  SortField = "price" // ascending
	SortByARV    SortField = "arv"
	SortByDate   SortField = "date" // soonest auction first
)

// Analyzer applies filters and computes aggregate statistics. It never
// mutates its input; running it twice on the same input yields identical
// output.
type Analyzer struct {
	cfg    *config.Config
	TopN   int
	SortBy SortField
}

func New(cfg *config.Config) *Analyzer {
	return &Analyzer{cfg: cfg, TopN: 20, SortBy: SortByScore}
}

// Analyze filters, sorts and summarizes. An empty survivor set yields an
// empty result, not an error.
func (a *Analyzer) Analyze(props []*models.Property, f Filters) models.AnalysisResult {
	var kept []*models.Property
	for _, p := range props {
		if a.pass(p, f) {
			kept = append(kept, p)
		}
	}

	sorted := make([]*models.Property, len(kept))
	copy(sorted, kept)
	sort.SliceStable(sorted, a.less(sorted))

	result := models.NewAnalysisResult()
	result.TotalProperties = len(sorted)
	result.AllProperties = flatten(sorted)

	topN := a.TopN
	if topN > len(sorted) {
		topN = len(sorted)
	}
	result.TopDeals = flatten(sorted[:topN])

	var marginSum, scoreSum float64
	recommended := 0
	for _, p := range sorted {
		marginSum += p.ProfitMargin
		scoreSum += p.DealScore
		if p.Recommended {
			recommended++
		}
	}
	result.RecommendedDeals = recommended
	if len(sorted) > 0 {
		result.AvgProfitMargin = marginSum / float64(len(sorted))
		result.AvgDealScore = scoreSum / float64(len(sorted))
	}

	result.Alerts = a.alerts(sorted)
	result.Statistics = a.statistics(sorted)
	return result
}

func (a *Analyzer) pass(p *models.Property, f Filters) bool {
	if f.MinMargin > 0 && p.ProfitMargin < f.MinMargin {
		return false
	}
	if f.MaxPrice > 0 && p.AuctionPrice > f.MaxPrice {
		return false
	}
	if f.MaxRepairs > 0 && p.EstimatedRepairs > f.MaxRepairs {
		return false
	}
	if f.MinScore > 0 && p.DealScore < f.MinScore {
		return false
	}
	if len(f.States) > 0 && !contains(f.States, p.State) {
		return false
	}
	if len(f.Regions) > 0 && !contains(f.Regions, p.Region) {
		return false
	}
	if len(f.PropertyTypes) > 0 && !contains(f.PropertyTypes, p.PropertyType) {
		return false
	}
	return true
}

func (a *Analyzer) less(props []*models.Property) func(i, j int) bool {
	switch a.SortBy {
	case SortByMargin:
		return func(i, j int) bool { return props[i].ProfitMargin > props[j].ProfitMargin }
	case SortByPrice:
		return func(i, j int) bool { return props[i].AuctionPrice < props[j].AuctionPrice }
	case SortByARV:
		return func(i, j int) bool { return props[i].EstimatedARV > props[j].EstimatedARV }
	case SortByDate:
		return func(i, j int) bool { return props[i].AuctionDate < props[j].AuctionDate }
	default:
		return func(i, j int) bool { return scoring.Less(props[i], props[j]) }
	}
}

// alerts flags the top recommended deals whose margin clears an alert
// threshold.
func (a *Analyzer) alerts(sorted []*models.Property) []models.Alert {
	var alerts []models.Alert
	taken := 0
	for _, p := range sorted {
		if !p.Recommended {
			continue
		}
		if taken >= 10 {
			break
		}
		taken++
		level := p.AlertLevel(a.cfg.Alerts)
		if level == "" {
			continue
		}
		alerts = append(alerts, models.Alert{
			Level:           level,
			PropertyID:      p.ID,
			Address:         fmt.Sprintf("%s, %s, %s", p.Address, p.City, p.State),
			ProfitMargin:    fmt.Sprintf("%.1f%%", p.ProfitMargin),
			ProfitPotential: fmt.Sprintf("$%.0f", p.ProfitPotential),
			MaxBidPrice:     p.MaxBidPrice,
			AuctionDate:     p.AuctionDate,
			DealScore:       p.DealScore,
		})
	}
	return alerts
}

// StateComparison summarizes one target state's deals for side-by-side
// display.
type StateComparison struct {
	State       string           `json:"state"`
	Count       int              `json:"count"`
	Recommended int              `json:"recommended"`
	AvgMargin   float64          `json:"avg_margin"`
	AvgScore    float64          `json:"avg_score"`
	TopDeal     *models.Property `json:"top_deal,omitempty"`
}

// CompareStates summarizes the deal pool per target state, in config order.
// States with no properties are omitted.
func (a *Analyzer) CompareStates(props []*models.Property) []StateComparison {
	byState := make(map[string][]*models.Property)
	for _, p := range props {
		byState[p.State] = append(byState[p.State], p)
	}

	var out []StateComparison
	for _, state := range a.cfg.TargetStates {
		deals := byState[state]
		if len(deals) == 0 {
			continue
		}
		cmp := StateComparison{State: state, Count: len(deals)}
		top := deals[0]
		for _, p := range deals {
			cmp.AvgMargin += p.ProfitMargin
			cmp.AvgScore += p.DealScore
			if p.Recommended {
				cmp.Recommended++
			}
			if scoring.Less(p, top) {
				top = p
			}
		}
		cmp.AvgMargin /= float64(len(deals))
		cmp.AvgScore /= float64(len(deals))
		snapshot := *top
		cmp.TopDeal = &snapshot
		out = append(out, cmp)
	}
	return out
}

func (a *Analyzer) statistics(props []*models.Property) models.Statistics {
	stats := models.Statistics{
		StateCounts: make(map[string]int),
		ByCity:      make(map[string]models.GroupStat),
		ByRegion:    make(map[string]models.GroupStat),
		ByPlatform:  make(map[string]models.GroupStat),
		BySource:    make(map[string]models.GroupStat),
	}
	if len(props) == 0 {
		return stats
	}

	var priceSum, arvSum, sqftSum, nsSum float64
	prices := make([]float64, 0, len(props))
	for _, p := range props {
		stats.StateCounts[p.State]++
		priceSum += p.AuctionPrice
		arvSum += p.EstimatedARV
		sqftSum += float64(p.Sqft)
		nsSum += float64(p.NeighborhoodScore)
		prices = append(prices, p.AuctionPrice)

		switch m := p.ProfitMargin; {
		case m >= 40:
			stats.DealsOver40Pct++
		case m >= 30:
			stats.Deals30To40Pct++
		case m >= 20:
			stats.Deals20To30Pct++
		}

		group(stats.ByCity, fmt.Sprintf("%s, %s", p.City, p.State), p.ProfitMargin)
		if p.Region != "" {
			group(stats.ByRegion, fmt.Sprintf("%s (%s)", p.Region, p.State), p.ProfitMargin)
		}
		group(stats.ByPlatform, p.AuctionPlatform, p.ProfitMargin)
		group(stats.BySource, string(p.Source), p.ProfitMargin)
	}

	n := float64(len(props))
	stats.AvgAuctionPrice = priceSum / n
	stats.MedianAuctionPrice = median(prices)
	stats.AvgARV = arvSum / n
	stats.AvgSqft = sqftSum / n
	stats.AvgNeighborhoodScore = nsSum / n
	return stats
}

// group accumulates a running average without a second pass: AvgMargin holds
// the mean of all margins folded in so far.
func group(m map[string]models.GroupStat, key string, margin float64) {
	g := m[key]
	g.AvgMargin = (g.AvgMargin*float64(g.Count) + margin) / float64(g.Count+1)
	g.Count++
	m[key] = g
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func flatten(props []*models.Property) []models.Property {
	out := make([]models.Property, len(props))
	for i, p := range props {
		out[i] = *p
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
