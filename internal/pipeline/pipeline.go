// Package pipeline wires sources, aggregation, enrichment, scoring and
// analysis into one run. Both the CLI and the API server drive runs through
// it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/david/auction-analyzer/internal/aggregate"
	"github.com/david/auction-analyzer/internal/analyzer"
	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/enrich"
	"github.com/david/auction-analyzer/internal/models"
	"github.com/david/auction-analyzer/internal/scoring"
	"github.com/david/auction-analyzer/internal/sources"
)

// Options selects the sources and post-processing for one run. Source
// families are mutually exclusive (only RealAPI composes with Redfin); Run
// falls back to mock data when none is set.
type Options struct {
	Mock       bool
	MockCount  int
	Seed       int64
	Redfin     bool
	Sheriff    bool
	AuctionCom bool
	RealAPI    bool

	// MaxZips caps how many target cities the scraping sources visit.
	MaxZips int

	// Enrich runs the Census/HUD/ATTOM enrichment passes after aggregation.
	Enrich bool

	Filters analyzer.Filters
	SortBy  analyzer.SortField
	TopN    int
}

// ErrSourceConflict rejects runs mixing source families.
var ErrSourceConflict = errors.New(
	"conflicting source selection: pick one of mock, redfin, sheriff, auction_com, real (only real may combine with redfin)")

// Validate checks that at most one source family is selected. The real-API
// mode may additionally enable the Redfin scraper; every other combination
// is rejected.
func (o Options) Validate() error {
	n := 0
	for _, set := range []bool{o.Mock, o.Redfin, o.Sheriff, o.AuctionCom, o.RealAPI} {
		if set {
			n++
		}
	}
	if n <= 1 || (n == 2 && o.RealAPI && o.Redfin) {
		return nil
	}
	return ErrSourceConflict
}

// Outcome bundles the aggregation diagnostics with the analysis result.
type Outcome struct {
	Aggregate *aggregate.Result
	Analysis  models.AnalysisResult
}

type Pipeline struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Sources builds the enabled source adapters. The slice order follows the
// fixed fetch order, not precedence; precedence is applied during merging.
func (p *Pipeline) Sources(opts Options) []sources.Source {
	var srcs []sources.Source

	if opts.Mock {
		count := opts.MockCount
		if count <= 0 {
			count = p.cfg.MockCount
		}
		srcs = append(srcs, sources.NewMockSource(p.cfg, count, opts.Seed))
	}
	if opts.Redfin {
		f := sources.NewRateLimitedFetcher(p.cfg.FetchFor("redfin"))
		srcs = append(srcs, sources.NewRedfinSource(p.cfg, f, opts.MaxZips))
	}
	if opts.Sheriff {
		f := sources.NewRateLimitedFetcher(p.cfg.FetchFor("sheriff"))
		srcs = append(srcs, sources.NewSheriffSource(p.cfg, f, p.cfg.SheriffCounties))
	}
	if opts.AuctionCom {
		f := sources.NewRateLimitedFetcher(p.cfg.FetchFor("apify"))
		srcs = append(srcs, sources.NewAuctionComSource(p.cfg, f, p.cfg.AuctionComStates))
	}
	if opts.RealAPI {
		// nil lets the source build one fetcher per API family, so the
		// attom and batchdata fetch settings both apply.
		srcs = append(srcs, sources.NewRealAPISource(p.cfg, nil, opts.MaxZips))
	}

	return srcs
}

// Run executes the full pipeline: fetch, aggregate, enrich, score, analyze.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	srcs := p.Sources(opts)
	if len(srcs) == 0 {
		log.Print("pipeline: no source selected, using mock data")
		opts.Mock = true
		srcs = p.Sources(opts)
	}

	aggRes, err := aggregate.New(p.cfg).Run(ctx, srcs)
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}
	if len(aggRes.Properties) == 0 && len(aggRes.FailedSources) == len(srcs) {
		return nil, fmt.Errorf("all %d sources failed", len(srcs))
	}

	if opts.Enrich {
		p.enrich(ctx, aggRes.Properties)
	}

	// Score after enrichment so refreshed ARVs and neighborhood scores count.
	scorer := scoring.New(p.cfg)
	for _, prop := range aggRes.Properties {
		scorer.Apply(prop)
	}

	an := analyzer.New(p.cfg)
	if opts.SortBy != "" {
		an.SortBy = opts.SortBy
	}
	if opts.TopN > 0 {
		an.TopN = opts.TopN
	}
	analysis := an.Analyze(aggRes.Properties, opts.Filters)

	return &Outcome{Aggregate: aggRes, Analysis: analysis}, nil
}

func (p *Pipeline) enrich(ctx context.Context, props []*models.Property) {
	censusFetcher := sources.NewRateLimitedFetcher(p.cfg.FetchFor("census"))
	census := enrich.NewCensusClient(p.cfg.Keys.Census, p.cfg.Keys.HUD, censusFetcher)

	var attom *sources.AttomClient
	if p.cfg.Keys.AttomRapidAPI != "" {
		attom = sources.NewAttomClient(p.cfg.Keys.AttomRapidAPI,
			sources.NewRateLimitedFetcher(p.cfg.FetchFor("attom")))
	}
	var batch *sources.BatchDataClient
	if p.cfg.Keys.BatchData != "" {
		batch = sources.NewBatchDataClient(p.cfg.Keys.BatchData,
			sources.NewRateLimitedFetcher(p.cfg.FetchFor("batchdata")))
	}

	e := enrich.New(p.cfg, census, attom, batch)

	scored := e.NeighborhoodScores(ctx, props)
	log.Printf("pipeline: neighborhood scores set on %d properties", scored)

	if attom != nil {
		refreshed := e.RefreshARVs(ctx, props, 25)
		log.Printf("pipeline: refreshed %d ARVs via AVM", refreshed)
	}

	if rents := e.MonthlyRents(ctx, props, p.cfg.CountyFIPS); rents > 0 {
		log.Printf("pipeline: set HUD fair market rent on %d properties", rents)
	}

	if batch != nil {
		looked := e.LookupForeclosures(ctx, props, 25)
		log.Printf("pipeline: foreclosure records matched on %d properties", looked)
	}
	filled := e.FillForeclosureContext(props)
	if filled > 0 {
		log.Printf("pipeline: filled foreclosure context on %d properties", filled)
	}
}
