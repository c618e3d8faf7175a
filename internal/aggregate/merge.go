package aggregate

import (
	"fmt"
	"math"

	"github.com/david/auction-analyzer/internal/models"
)

// Conflict records two sources disagreeing about a numeric field beyond the
// configured tolerance. Conflicts are diagnostics, not errors: the
// precedence winner's value is kept, never an average.
type Conflict struct {
	AddressKey string
	Field      string
	Kept       float64
	KeptFrom   models.SourceKind
	Dropped    float64
	From       models.SourceKind
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s %.2f (%s) vs %.2f (%s)",
		c.AddressKey, c.Field, c.Kept, c.KeptFrom, c.Dropped, c.From)
}

// merger folds same-address candidates into one property using field-level
// source precedence.
type merger struct {
	rank      map[models.SourceKind]int
	tolerance float64

	Conflicts []Conflict
}

func newMerger(precedence []string, tolerance float64) *merger {
	rank := make(map[models.SourceKind]int, len(precedence))
	for i, s := range precedence {
		rank[models.SourceKind(s)] = i
	}
	return &merger{rank: rank, tolerance: tolerance}
}

func (m *merger) rankOf(kind models.SourceKind) int {
	if r, ok := m.rank[kind]; ok {
		return r
	}
	return len(m.rank) // unknown sources rank last
}

// merge resolves one address group into a single property. The group's
// members are combined highest-precedence first; the result is a new
// Property, neither input is mutated.
func (m *merger) merge(key string, group []*models.Property) *models.Property {
	if len(group) == 1 {
		return group[0]
	}

	// Pick the precedence winner as the base.
	base := group[0]
	for _, p := range group[1:] {
		if m.rankOf(p.Source) < m.rankOf(base.Source) {
			base = p
		}
	}

	merged := *base
	merged.Provenance = nil
	seen := make(map[models.SourceKind]bool)
	for _, p := range group {
		for _, s := range p.Provenance {
			if !seen[s] {
				seen[s] = true
				merged.Provenance = append(merged.Provenance, s)
			}
		}
	}

	for _, p := range group {
		if p == base {
			continue
		}
		m.fillFrom(key, &merged, p)
	}
	return &merged
}

// fillFrom copies fields the merged record is missing from a lower-ranked
// donor, and records conflicts where both carry disagreeing numbers.
func (m *merger) fillFrom(key string, dst *models.Property, src *models.Property) {
	fillString(&dst.City, src.City)
	fillString(&dst.State, src.State)
	fillString(&dst.ZipCode, src.ZipCode)
	fillString(&dst.Region, src.Region)
	fillString(&dst.PropertyType, src.PropertyType)
	fillString(&dst.AuctionDate, src.AuctionDate)
	fillString(&dst.AuctionPlatform, src.AuctionPlatform)
	fillString(&dst.Description, src.Description)
	fillString(&dst.ForeclosingEntity, src.ForeclosingEntity)
	fillString(&dst.LoanType, src.LoanType)
	fillString(&dst.DefaultDate, src.DefaultDate)
	fillString(&dst.ForeclosureStage, src.ForeclosureStage)
	fillString(&dst.PropertyURL, src.PropertyURL)
	fillString(&dst.BankContactURL, src.BankContactURL)
	fillString(&dst.ImageURL, src.ImageURL)

	m.reconcile(key, dst, "auction_price", &dst.AuctionPrice, src.AuctionPrice, src.Source)
	m.reconcile(key, dst, "estimated_arv", &dst.EstimatedARV, src.EstimatedARV, src.Source)
	m.reconcile(key, dst, "estimated_repairs", &dst.EstimatedRepairs, src.EstimatedRepairs, src.Source)
	m.reconcile(key, dst, "total_debt", &dst.TotalDebt, src.TotalDebt, src.Source)

	if dst.Bedrooms == 0 {
		dst.Bedrooms = src.Bedrooms
	}
	if dst.Bathrooms == 0 {
		dst.Bathrooms = src.Bathrooms
	}
	if dst.Sqft == 0 {
		dst.Sqft = src.Sqft
	}
	if dst.LotSize == 0 {
		dst.LotSize = src.LotSize
	}
	if dst.YearBuilt == 0 {
		dst.YearBuilt = src.YearBuilt
	}
	if dst.AnnualTax == 0 {
		dst.AnnualTax = src.AnnualTax
	}
	if dst.HOAFee == 0 {
		dst.HOAFee = src.HOAFee
	}
	if dst.MonthlyRent == 0 {
		dst.MonthlyRent = src.MonthlyRent
	}
	if dst.Geo == nil {
		dst.Geo = src.Geo
	}
	if dst.LastSale == nil {
		dst.LastSale = src.LastSale
	}
	if dst.Occupancy == models.OccupancyUnknown && src.Occupancy != "" {
		dst.Occupancy = src.Occupancy
	}
	if dst.Condition == models.ConditionUnknown && src.Condition != "" {
		dst.Condition = src.Condition
	}
}

// reconcile keeps the winner's value but records a conflict when the donor
// disagrees by more than the relative tolerance.
func (m *merger) reconcile(key string, dst *models.Property, field string, kept *float64, donor float64, from models.SourceKind) {
	if donor == 0 {
		return
	}
	if *kept == 0 {
		*kept = donor
		return
	}
	scale := math.Max(math.Abs(*kept), math.Abs(donor))
	if math.Abs(*kept-donor)/scale > m.tolerance {
		m.Conflicts = append(m.Conflicts, Conflict{
			AddressKey: key,
			Field:      field,
			Kept:       *kept,
			KeptFrom:   dst.Source,
			Dropped:    donor,
			From:       from,
		})
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
