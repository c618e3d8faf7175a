package sources

import (
	"context"
	"log"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

// RealAPISource combines the ATTOM and BatchData clients into one adapter.
// BatchData contributes pre-foreclosure filings per city, ATTOM contributes
// recent sales and property snapshots per ZIP. Either client alone is enough
// for the source to run.
type RealAPISource struct {
	cfg       *config.Config
	attom     *AttomClient
	batchData *BatchDataClient
	maxZips   int
}

func NewRealAPISource(cfg *config.Config, fetcher Fetcher, maxZips int) *RealAPISource {
	attomFetcher, batchFetcher := fetcher, fetcher
	if fetcher == nil {
		attomFetcher = NewRateLimitedFetcher(cfg.FetchFor("attom"))
		batchFetcher = NewRateLimitedFetcher(cfg.FetchFor("batchdata"))
	}
	if maxZips <= 0 {
		maxZips = 12
	}
	return &RealAPISource{
		cfg:       cfg,
		attom:     NewAttomClient(cfg.Keys.AttomRapidAPI, attomFetcher),
		batchData: NewBatchDataClient(cfg.Keys.BatchData, batchFetcher),
		maxZips:   maxZips,
	}
}

// Attom exposes the ATTOM client for AVM enrichment after aggregation.
func (r *RealAPISource) Attom() *AttomClient { return r.attom }

func (r *RealAPISource) Kind() models.SourceKind { return models.SourceAttomBatchData }
func (r *RealAPISource) Name() string            { return "attom/batchdata" }

func (r *RealAPISource) Fetch(ctx context.Context) ([]Listing, error) {
	if !r.attom.Configured() && !r.batchData.Configured() {
		return nil, &SourceError{Source: models.SourceAttomBatchData, Err: ErrNotConfigured}
	}

	sample := r.zipSample()
	log.Printf("real-api: scanning %d ZIP codes across %d states",
		len(sample), len(r.cfg.TargetStates))

	var listings []Listing
	for i, t := range sample {
		if err := ctx.Err(); err != nil {
			return listings, err
		}
		log.Printf("real-api: [%d/%d] scanning %s, %s (%s)", i+1, len(sample), t.City, t.State, t.Zip)

		if r.batchData.Configured() {
			found, err := r.batchData.SearchForeclosures(ctx, t.City, t.State,
				r.cfg.Filters.MinAuctionPrice, r.cfg.Filters.MaxAuctionPrice)
			if err != nil {
				log.Printf("real-api: batchdata %s: %v", t.City, err)
			} else {
				listings = append(listings, withHints(found, t)...)
			}
		}

		if r.attom.Configured() {
			sales, err := r.attom.SalesByZip(ctx, t.Zip,
				r.cfg.Filters.MinAuctionPrice, r.cfg.Filters.MaxAuctionPrice, 20)
			if err != nil {
				log.Printf("real-api: attom sales %s: %v", t.Zip, err)
			} else {
				listings = append(listings, withHints(sales, t)...)
			}

			snapshot, err := r.attom.PropertiesByZip(ctx, t.Zip, 20)
			if err != nil {
				log.Printf("real-api: attom snapshot %s: %v", t.Zip, err)
			} else {
				listings = append(listings, withHints(snapshot, t)...)
			}
		}
	}
	return listings, nil
}

// zipSample spreads maxZips picks round-robin across the active regions so
// no region monopolizes the limited API quota.
func (r *RealAPISource) zipSample() []config.TargetCity {
	byRegion := make(map[string][]config.TargetCity)
	var order []string
	for _, t := range r.cfg.ActiveCities() {
		key := t.State + "/" + t.Region
		if _, seen := byRegion[key]; !seen {
			order = append(order, key)
		}
		byRegion[key] = append(byRegion[key], t)
	}

	var sample []config.TargetCity
	for len(sample) < r.maxZips {
		added := false
		for _, key := range order {
			if len(sample) >= r.maxZips {
				break
			}
			if len(byRegion[key]) == 0 {
				continue
			}
			sample = append(sample, byRegion[key][0])
			byRegion[key] = byRegion[key][1:]
			added = true
		}
		if !added {
			break
		}
	}
	return sample
}

func withHints(listings []Listing, t config.TargetCity) []Listing {
	for i := range listings {
		listings[i].CityHint = t.City
		listings[i].StateHint = t.State
		listings[i].ZipHint = t.Zip
		listings[i].RegionHint = t.Region
	}
	return listings
}
