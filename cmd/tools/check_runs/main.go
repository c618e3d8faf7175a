// Command check_runs prints the recent analysis runs as a quick health
// check against the database.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/auction-analyzer/internal/db"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Status", "Properties", "Recommended", "Merged", "Invalid", "Failed Sources", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		failed := ""
		for i, src := range r.FailedSources {
			if i > 0 {
				failed += ","
			}
			failed += src
		}

		t.AppendRow(table.Row{
			r.RunID.String()[:8], r.Status, r.TotalProperties, r.RecommendedDeals,
			r.DuplicatesMerged, r.InvalidRecords, failed, duration,
			r.StartedAt.Format("01-02 15:04:05"),
		})
	}
	t.Render()
}
