package aggregate

import (
	"context"
	"errors"
	"log"
	"math/rand"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
	"github.com/david/auction-analyzer/internal/sources"
)

// Result is the aggregator's output: the deduplicated property set plus the
// run diagnostics the dashboard and reports surface.
type Result struct {
	Properties []*models.Property

	// Raw candidate counts per source, before dedup.
	SourceCounts map[models.SourceKind]int
	// Sources that failed outright; their contribution is empty.
	FailedSources []models.SourceKind
	// Raw candidates dropped for failing validation.
	InvalidRecords int
	// Cross-source numeric disagreements beyond tolerance.
	Conflicts []Conflict
	// Candidates folded away by address dedup.
	DuplicatesMerged int
}

// Aggregator invokes the enabled source adapters sequentially, isolates
// their failures, and merges their candidates by canonical address.
// Sequential on purpose: every adapter is politeness-rate-limited and
// returns at most a few hundred rows, so parallelism buys nothing and would
// make precedence resolution order-dependent.
type Aggregator struct {
	cfg *config.Config
	rng *rand.Rand
}

func New(cfg *config.Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// WithRand fixes the estimation RNG, for reproducible tests.
func (a *Aggregator) WithRand(rng *rand.Rand) *Aggregator {
	a.rng = rng
	return a
}

// Run fetches from every adapter and returns the merged set. A failing
// adapter contributes nothing; only the complete absence of candidates
// yields an empty (not nil error) result.
func (a *Aggregator) Run(ctx context.Context, srcs []sources.Source) (*Result, error) {
	res := &Result{SourceCounts: make(map[models.SourceKind]int)}
	b := newBuilder(a.cfg, a.rng)

	var (
		order  []string // first-seen key order keeps merge output deterministic
		groups = make(map[string][]*models.Property)
	)

	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		listings, err := src.Fetch(ctx)
		if err != nil {
			if errors.Is(err, sources.ErrNotConfigured) {
				log.Printf("aggregate: %s: not configured, skipping", src.Name())
			} else {
				log.Printf("aggregate: %s failed: %v", src.Name(), err)
			}
			res.FailedSources = append(res.FailedSources, src.Kind())
			continue
		}
		log.Printf("aggregate: %s: %d raw candidates", src.Name(), len(listings))
		res.SourceCounts[src.Kind()] += len(listings)

		for _, l := range listings {
			p, err := b.build(l, src.Kind())
			if err != nil {
				res.InvalidRecords++
				continue
			}
			if !a.keep(p) {
				continue
			}
			key := CanonicalKey(p.Address)
			if key == "" {
				res.InvalidRecords++
				continue
			}
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], p)
		}
	}

	m := newMerger(a.cfg.SourcePrecedence, a.cfg.MergeTolerance)
	for _, key := range order {
		group := groups[key]
		merged := m.merge(key, group)
		if len(group) > 1 {
			res.DuplicatesMerged += len(group) - 1
			// Merging may change financial inputs, recompute.
			merged.ComputeMetrics(a.cfg.Costs)
		}
		res.Properties = append(res.Properties, merged)
	}
	res.Conflicts = m.Conflicts

	assignIDs(res.Properties)

	if res.InvalidRecords > 0 {
		log.Printf("aggregate: dropped %d invalid records", res.InvalidRecords)
	}
	if res.DuplicatesMerged > 0 {
		log.Printf("aggregate: merged %d duplicate candidates across sources", res.DuplicatesMerged)
	}
	for _, c := range res.Conflicts {
		log.Printf("aggregate: conflict: %s", c)
	}
	return res, nil
}

// keep applies the run-level geographic and price-band gates. User-facing
// filters (margin, score) run later in the analyzer; this only discards
// rows that can never be relevant, like sandbox API responses from states
// outside the scan.
func (a *Aggregator) keep(p *models.Property) bool {
	if !a.cfg.StateActive(p.State) {
		return false
	}
	if p.AuctionPrice < a.cfg.Filters.MinAuctionPrice ||
		p.AuctionPrice > a.cfg.Filters.MaxAuctionPrice {
		return false
	}
	return true
}
