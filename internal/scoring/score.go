// Package scoring computes the 0-100 deal score and recommendation flag for
// a property. Scoring is a pure function of the property's fields and the
// configured weights; there is no hidden state.
package scoring

import (
	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

type Scorer struct {
	weights config.ScoreWeights
	filters config.Filters
}

func New(cfg *config.Config) *Scorer {
	return &Scorer{weights: cfg.Weights, filters: cfg.Filters}
}

// Score returns the deal score in [0,100] and the recommendation flag.
func (s *Scorer) Score(p *models.Property) (float64, bool) {
	score := s.marginScore(p.ProfitMargin) +
		s.repairScore(p.EstimatedRepairs, p.AuctionPrice) +
		s.neighborhoodScore(p.NeighborhoodScore) +
		s.characteristicsScore(p)

	score = clamp(score, 0, 100)

	recommended := p.ProfitMargin >= s.filters.MinProfitMargin &&
		p.EstimatedRepairs <= s.filters.MaxRepairCost &&
		score >= s.filters.MinDealScore

	return score, recommended
}

// Apply stamps the property's DealScore and Recommended fields.
func (s *Scorer) Apply(p *models.Property) {
	p.DealScore, p.Recommended = s.Score(p)
}

// marginScore: full weight at 40%+ margin, linear from 3/4 weight at 30% up
// to full weight at 40%, and below 30% proportional down to zero.
func (s *Scorer) marginScore(margin float64) float64 {
	w := s.weights.ProfitMargin
	switch {
	case margin >= 40:
		return w
	case margin >= 30:
		return w*0.75 + (margin-30)/10*w*0.25
	case margin <= 0:
		return 0
	default:
		return margin / 30 * w * 0.75
	}
}

// repairScore prefers lighter rehabs: full weight up to a 15% repair ratio,
// 3/4 weight up to 30%, then a steep decline floored at zero.
func (s *Scorer) repairScore(repairs, price float64) float64 {
	w := s.weights.RepairEfficiency
	if price <= 0 {
		return 0
	}
	ratio := repairs / price
	switch {
	case ratio <= 0.15:
		return w
	case ratio <= 0.30:
		return w * 0.75
	default:
		return max(0, w*0.5-(ratio-0.30)*50)
	}
}

func (s *Scorer) neighborhoodScore(ns int) float64 {
	w := s.weights.Neighborhood
	return clamp(float64(ns)/10*w, 0, w)
}

// characteristicsScore awards a quarter of the weight for each independent
// trait: ideal square footage, 3-4 bedrooms, 2+ baths, built after 1980.
func (s *Scorer) characteristicsScore(p *models.Property) float64 {
	unit := s.weights.Characteristics / 4
	var score float64
	if p.Sqft >= 1500 && p.Sqft <= 3000 {
		score += unit
	}
	if p.Bedrooms >= 3 && p.Bedrooms <= 4 {
		score += unit
	}
	if p.Bathrooms >= 2 {
		score += unit
	}
	if p.YearBuilt > 1980 {
		score += unit
	}
	return score
}

// Less is the ranking comparator: higher score first, then higher margin,
// then lower auction price.
func Less(a, b *models.Property) bool {
	if a.DealScore != b.DealScore {
		return a.DealScore > b.DealScore
	}
	if a.ProfitMargin != b.ProfitMargin {
		return a.ProfitMargin > b.ProfitMargin
	}
	return a.AuctionPrice < b.AuctionPrice
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
