// Command analyzer runs the auction property pipeline from the terminal:
// fetch listings, dedup and score them, print the top deals and write the
// export files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/david/auction-analyzer/internal/analyzer"
	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/db"
	"github.com/david/auction-analyzer/internal/export"
	"github.com/david/auction-analyzer/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "path to a YAML config file (default: embedded defaults)")

		useMock    = flag.Bool("mock", false, "generate mock listings")
		useRedfin  = flag.Bool("scrape", false, "scrape Redfin foreclosure listings")
		useSheriff = flag.Bool("sheriff", false, "scrape Oregon sheriff sale notices")
		useAuction = flag.Bool("auction-com", false, "fetch auction.com listings via Apify")
		useReal    = flag.Bool("real", false, "fetch from the ATTOM/BatchData APIs")

		count   = flag.Int("count", 0, "mock listing count (default from config)")
		seed    = flag.Int64("seed", 0, "mock RNG seed, 0 = random")
		maxZips = flag.Int("max-zips", 12, "max target cities per scraping source")
		enrich  = flag.Bool("enrich", false, "run Census/HUD/ATTOM enrichment")

		minMargin  = flag.Float64("min-margin", 0, "filter: minimum profit margin %")
		maxPrice   = flag.Float64("max-price", 0, "filter: maximum auction price")
		maxRepairs = flag.Float64("max-repairs", 0, "filter: maximum estimated repairs")
		minScore   = flag.Float64("min-score", 0, "filter: minimum deal score")
		states     = flag.String("states", "", "filter: comma-separated state names")

		sortBy        = flag.String("sort", "score", "sort order: score, margin, price, arv, date")
		top           = flag.Int("top", 20, "number of top deals to display and report")
		compareStates = flag.Bool("compare-states", false, "print a per-state deal comparison")

		noExport = flag.Bool("no-export", false, "skip writing the export files")
		save     = flag.Bool("save", false, "persist the run to Postgres")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		Mock:       *useMock,
		MockCount:  *count,
		Seed:       *seed,
		Redfin:     *useRedfin,
		Sheriff:    *useSheriff,
		AuctionCom: *useAuction,
		RealAPI:    *useReal,
		MaxZips:    *maxZips,
		Enrich:     *enrich,
		SortBy:     analyzer.SortField(*sortBy),
		TopN:       *top,
		Filters: analyzer.Filters{
			MinMargin:  *minMargin,
			MaxPrice:   *maxPrice,
			MaxRepairs: *maxRepairs,
			MinScore:   *minScore,
		},
	}
	if *states != "" {
		for _, s := range strings.Split(*states, ",") {
			if s = strings.TrimSpace(s); s != "" {
				opts.Filters.States = append(opts.Filters.States, s)
			}
		}
	}

	if err := opts.Validate(); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	outcome, err := pipeline.New(cfg).Run(ctx, opts)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	export.Console(os.Stdout, outcome.Analysis, *top)
	export.ConsoleStats(os.Stdout, outcome.Analysis.Statistics)
	if *compareStates {
		export.ConsoleStateComparison(os.Stdout, analyzer.New(cfg).CompareStates(outcome.Aggregate.Properties))
	}

	if !*noExport {
		files, err := export.New(cfg).All(outcome.Analysis)
		if err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		for format, path := range files {
			fmt.Printf("Wrote %s: %s\n", format, path)
		}
	}

	if *save {
		if err := persist(ctx, outcome); err != nil {
			log.Fatalf("Persist failed: %v", err)
		}
	}
}

// persist saves the finished run to Postgres so the API server can serve it.
func persist(ctx context.Context, outcome *pipeline.Outcome) error {
	pool, err := db.Connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		return err
	}

	store := db.NewStore(pool)
	runID, err := store.BeginRun(ctx)
	if err != nil {
		return err
	}

	diag := db.RunDiagnostics{
		InvalidRecords:   outcome.Aggregate.InvalidRecords,
		DuplicatesMerged: outcome.Aggregate.DuplicatesMerged,
	}
	for _, kind := range outcome.Aggregate.FailedSources {
		diag.FailedSources = append(diag.FailedSources, string(kind))
	}

	if err := store.CompleteRun(ctx, runID, outcome.Analysis, diag); err != nil {
		return err
	}
	fmt.Printf("Saved run %s\n", runID)
	return nil
}
