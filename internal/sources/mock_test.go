package sources

import (
	"context"
	"reflect"
	"testing"

	"github.com/david/auction-analyzer/internal/config"
)

func mockConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return cfg
}

func TestMockSourceCount(t *testing.T) {
	cfg := mockConfig(t)
	src := NewMockSource(cfg, 30, 7)
	listings, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(listings) != 30 {
		t.Fatalf("expected 30 listings, got %d", len(listings))
	}
}

func TestMockSourceDefaultsToConfiguredCount(t *testing.T) {
	cfg := mockConfig(t)
	src := NewMockSource(cfg, 0, 7)
	listings, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(listings) != cfg.MockCount {
		t.Fatalf("expected %d listings, got %d", cfg.MockCount, len(listings))
	}
}

func TestMockSourceSeededDeterminism(t *testing.T) {
	cfg := mockConfig(t)

	a, err := NewMockSource(cfg, 20, 42).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewMockSource(cfg, 20, 42).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Auction and default dates derive from the clock, so compare the
	// clock-independent fields.
	for i := range a {
		a[i].AuctionDate, b[i].AuctionDate = "", ""
		a[i].DefaultDate, b[i].DefaultDate = "", ""
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed must produce identical listings")
	}
}

func TestMockSourceFieldsPlausible(t *testing.T) {
	cfg := mockConfig(t)
	listings, err := NewMockSource(cfg, 50, 3).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, l := range listings {
		if l.Address == "" || l.City == "" || l.State == "" || l.ZipCode == "" {
			t.Fatalf("listing %d missing location fields: %+v", i, l)
		}
		if l.Price < cfg.Filters.MinAuctionPrice || l.Price > cfg.Filters.MaxAuctionPrice {
			t.Fatalf("listing %d price %v outside the configured band", i, l.Price)
		}
		if l.ARV <= 0 || l.Repairs < 0 {
			t.Fatalf("listing %d has bad financials: arv=%v repairs=%v", i, l.ARV, l.Repairs)
		}
		if l.Sqft < 1000 || l.Sqft > 3500 {
			t.Fatalf("listing %d sqft %d out of range", i, l.Sqft)
		}
		if l.ForeclosingEntity == "" || l.ForeclosureStage == "" {
			t.Fatalf("listing %d missing foreclosure context: %+v", i, l)
		}
		if l.AuctionDate == "" {
			t.Fatalf("listing %d missing auction date", i)
		}
	}
}
