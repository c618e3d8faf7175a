package db

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBuildPropertyFilter_ZeroParamsFilterByRunOnly(t *testing.T) {
	runID := uuid.New()
	where, args := buildPropertyFilter(runID, ListParams{})

	if where != "WHERE run_id = $1" {
		t.Fatalf("unexpected where clause: %s", where)
	}
	if len(args) != 1 || args[0] != runID {
		t.Fatalf("expected single run_id arg, got %v", args)
	}
}

func TestBuildPropertyFilter_AllParams(t *testing.T) {
	rec := true
	where, args := buildPropertyFilter(uuid.New(), ListParams{
		State:       "Oregon",
		Region:      "Portland Metro",
		MinMargin:   30,
		MaxPrice:    400000,
		MinScore:    60,
		Recommended: &rec,
	})

	mustContain := []string{
		"state = $2",
		"region = $3",
		"profit_margin >= $4",
		"auction_price <= $5",
		"deal_score >= $6",
		"recommended = $7",
	}
	for _, token := range mustContain {
		if !strings.Contains(where, token) {
			t.Fatalf("filter missing clause %q: %s", token, where)
		}
	}
	if len(args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(args))
	}
}

func TestBuildPropertyFilter_RecommendedFalseStillFilters(t *testing.T) {
	rec := false
	where, args := buildPropertyFilter(uuid.New(), ListParams{Recommended: &rec})

	if !strings.Contains(where, "recommended = $2") {
		t.Fatalf("explicit false must still add a clause: %s", where)
	}
	if args[1] != false {
		t.Fatalf("expected false arg, got %v", args[1])
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("reading embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations found")
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".sql") {
			t.Fatalf("non-sql file embedded: %s", e.Name())
		}
	}
}
