// Package sources contains the data source adapters: the synthetic
// generator, the Redfin and sheriff-sale scrapers, and the paid API clients.
// Each adapter returns raw listing candidates; converting them into scored
// properties is the aggregator's job.
package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/david/auction-analyzer/internal/models"
)

// Listing is one untrusted, unnormalized candidate returned by an adapter.
// Zero values mean the source did not report the field; the aggregator fills
// estimates where it can and validates the rest.
type Listing struct {
	Address string
	City    string
	State   string
	ZipCode string
	Lat     float64
	Lon     float64

	Price     float64 // sale/opening bid amount
	ARV       float64 // market or resale value estimate
	Repairs   float64
	Bedrooms  int
	Bathrooms float64
	Sqft      int
	LotSize   float64
	YearBuilt int

	AuctionDate string // YYYY-MM-DD
	Platform    string
	Description string

	Occupancy   models.Occupancy
	Condition   models.Condition
	AnnualTax   float64
	HOAFee      float64
	MonthlyRent float64

	LastSaleDate  string
	LastSalePrice float64

	ForeclosingEntity string
	TotalDebt         float64
	LoanType          string
	DefaultDate       string
	ForeclosureStage  string

	PropertyURL string
	ImageURL    string

	// Hints carried from the scan target when the source omits location
	// fields (common with ZIP-scoped API searches).
	CityHint   string
	StateHint  string
	ZipHint    string
	RegionHint string
}

// Source is the adapter contract: return raw candidates or fail recoverably.
// A failing source contributes nothing to the run; it never aborts it.
type Source interface {
	Kind() models.SourceKind
	Name() string
	Fetch(ctx context.Context) ([]Listing, error)
}

// ErrNotConfigured marks an adapter whose API credentials are missing.
var ErrNotConfigured = errors.New("source not configured")

// SourceError wraps an adapter failure with its origin so the aggregator can
// log and continue with the remaining sources.
type SourceError struct {
	Source models.SourceKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
