package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

const (
	apifyBaseURL = "https://api.apify.com/v2"
	// Tilde format is required for API calls.
	apifyActorID = "parseforge~auction-com-property-scraper-ppe"
)

var auctionComStateURLs = map[string]string{
	"Oregon":     "https://www.auction.com/residential/or/",
	"Texas":      "https://www.auction.com/residential/tx/",
	"Washington": "https://www.auction.com/residential/wa/",
	"Florida":    "https://www.auction.com/residential/fl/",
	"Arizona":    "https://www.auction.com/residential/az/",
	"Georgia":    "https://www.auction.com/residential/ga/",
	"California": "https://www.auction.com/residential/ca/",
}

// AuctionComSource pulls live auction inventory from Auction.com. The site
// sits behind the Incapsula WAF and blocks direct scraping, so the work runs
// in an Apify cloud actor: start a run per state URL, poll until it
// finishes, then download the dataset.
type AuctionComSource struct {
	cfg      *config.Config
	fetcher  Fetcher
	states   []string
	maxItems int

	pollInterval time.Duration
	runTimeout   time.Duration
}

func NewAuctionComSource(cfg *config.Config, fetcher Fetcher, states []string) *AuctionComSource {
	if fetcher == nil {
		fetcher = NewRateLimitedFetcher(cfg.FetchFor("auctioncom"))
	}
	if len(states) == 0 {
		states = cfg.AuctionComStates
	}
	maxItems := cfg.AuctionComMax
	if maxItems <= 0 {
		maxItems = 100
	}
	return &AuctionComSource{
		cfg:          cfg,
		fetcher:      fetcher,
		states:       states,
		maxItems:     maxItems,
		pollInterval: 5 * time.Second,
		runTimeout:   2 * time.Minute,
	}
}

func (a *AuctionComSource) Kind() models.SourceKind { return models.SourceAuctionCom }
func (a *AuctionComSource) Name() string            { return "auction.com via apify" }

func (a *AuctionComSource) Fetch(ctx context.Context) ([]Listing, error) {
	if a.cfg.Keys.Apify == "" {
		return nil, &SourceError{Source: models.SourceAuctionCom, Err: ErrNotConfigured}
	}

	var listings []Listing
	for _, state := range a.states {
		startURL, ok := auctionComStateURLs[state]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return listings, err
		}

		log.Printf("auction.com: searching %s", state)
		items, err := a.runActor(ctx, startURL)
		if err != nil {
			log.Printf("auction.com: %s: %v", state, err)
			continue
		}
		count := 0
		for _, item := range items {
			if l, ok := a.parseItem(item); ok {
				listings = append(listings, l)
				count++
			}
		}
		log.Printf("auction.com: %s: %d listings", state, count)
	}
	return listings, nil
}

type apifyRunEnvelope struct {
	Data struct {
		ID               string  `json:"id"`
		Status           string  `json:"status"`
		DefaultDatasetID string  `json:"defaultDatasetId"`
		UsageTotalUSD    float64 `json:"usageTotalUsd"`
	} `json:"data"`
}

// runActor starts one actor run and waits for its dataset.
func (a *AuctionComSource) runActor(ctx context.Context, startURL string) ([]auctionComItem, error) {
	token := url.QueryEscape(a.cfg.Keys.Apify)
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	// The PPE actor takes a single startUrl string, not a startUrls array.
	payload, err := json.Marshal(map[string]any{
		"startUrl": startURL,
		"maxItems": a.maxItems,
	})
	if err != nil {
		return nil, err
	}

	body, err := a.fetcher.Post(ctx,
		fmt.Sprintf("%s/acts/%s/runs?token=%s", apifyBaseURL, apifyActorID, token),
		header, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	var run apifyRunEnvelope
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run response: %w", err)
	}
	if run.Data.ID == "" {
		return nil, fmt.Errorf("no run ID in response")
	}
	log.Printf("auction.com: run started: %s", run.Data.ID)

	datasetID := run.Data.DefaultDatasetID
	deadline := time.Now().Add(a.runTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.pollInterval):
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("run timed out after %s", a.runTimeout)
		}

		body, err := a.fetcher.Get(ctx,
			fmt.Sprintf("%s/acts/%s/runs/%s?token=%s", apifyBaseURL, apifyActorID, run.Data.ID, token),
			nil)
		if err != nil {
			continue // polling errors are retried until the deadline
		}
		var status apifyRunEnvelope
		if err := json.Unmarshal(body, &status); err != nil {
			continue
		}
		switch status.Data.Status {
		case "SUCCEEDED":
			if status.Data.DefaultDatasetID != "" {
				datasetID = status.Data.DefaultDatasetID
			}
			return a.fetchDataset(ctx, datasetID, token)
		case "FAILED", "ABORTED", "TIMED-OUT":
			return nil, fmt.Errorf("run %s", strings.ToLower(status.Data.Status))
		}
	}
}

func (a *AuctionComSource) fetchDataset(ctx context.Context, datasetID, token string) ([]auctionComItem, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("run succeeded but has no dataset")
	}
	body, err := a.fetcher.Get(ctx,
		fmt.Sprintf("%s/datasets/%s/items?token=%s&format=json", apifyBaseURL, datasetID, token),
		nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	var items []auctionComItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return items, nil
}

// flexValue tolerates the actor emitting a field as number, string or null
// from run to run.
type flexValue struct {
	raw string
}

func (f *flexValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.raw = s
		return nil
	}
	f.raw = strings.Trim(string(data), `"`)
	if f.raw == "null" {
		f.raw = ""
	}
	return nil
}

func (f flexValue) String() string   { return strings.TrimSpace(f.raw) }
func (f flexValue) Float64() float64 { return safeFloat(f.raw) }

// auctionComItem mirrors the actor's output fields as of early 2026.
type auctionComItem struct {
	StreetDescription string    `json:"street_description"`
	Address           string    `json:"address"`
	Municipality      string    `json:"municipality"`
	State             string    `json:"country_primary_subdivision"`
	County            string    `json:"country_secondary_subdivision"`
	PostalCode        flexValue `json:"postal_code"`

	OpeningBid     flexValue `json:"opening_bid"`
	StartingBid    flexValue `json:"starting_bid_amount"`
	EstResaleValue flexValue `json:"est_resale_value"`

	Beds      flexValue `json:"beds"`
	Baths     flexValue `json:"baths"`
	Sqft      flexValue `json:"sqft"`
	LotSqft   flexValue `json:"lot_sqft"`
	YearBuilt flexValue `json:"year_built"`

	AuctionDate     string `json:"auctionDate"`
	AuctionTime     string `json:"auctionTime"`
	AuctionLocation string `json:"auctionLocation"`
	SaleType        string `json:"saleType"`
	OccupancyStatus string `json:"occupancy_status"`
	URL             string `json:"url"`
	PhotoURL        string `json:"primary_photo_url"`
}

func (a *AuctionComSource) parseItem(item auctionComItem) (Listing, bool) {
	address := strings.TrimSpace(item.StreetDescription)
	if address == "" {
		address = strings.TrimSpace(item.Address)
	}
	if address == "" {
		return Listing{}, false
	}

	price := item.OpeningBid.Float64()
	if price <= 0 {
		price = item.StartingBid.Float64()
	}
	if price <= 0 {
		return Listing{}, false
	}

	saleType := strings.TrimSpace(item.SaleType)
	if saleType == "" {
		saleType = "Foreclosure"
	}

	desc := fmt.Sprintf("%s auction on Auction.com.", saleType)
	if item.AuctionLocation != "" {
		desc += " Location: " + item.AuctionLocation + "."
	}
	if item.AuctionTime != "" {
		desc += " Time: " + item.AuctionTime + "."
	}

	lotAcres := 0.0
	if lotSqft := item.LotSqft.Float64(); lotSqft > 0 {
		lotAcres = lotSqft / 43560
	}

	return Listing{
		Address:          address,
		City:             strings.TrimSpace(item.Municipality),
		State:            normalizeState(item.State),
		ZipCode:          item.PostalCode.String(),
		Price:            price,
		ARV:              item.EstResaleValue.Float64(),
		Bedrooms:         int(item.Beds.Float64()),
		Bathrooms:        item.Baths.Float64(),
		Sqft:             int(item.Sqft.Float64()),
		LotSize:          lotAcres,
		YearBuilt:        int(item.YearBuilt.Float64()),
		AuctionDate:      parseDateLoose(item.AuctionDate),
		Platform:         "Auction.com",
		Description:      cleanText(desc),
		Occupancy:        parseOccupancy(item.OccupancyStatus),
		ForeclosureStage: saleType,
		PropertyURL:      strings.TrimSpace(item.URL),
		ImageURL:         strings.TrimSpace(item.PhotoURL),
	}, true
}

func parseOccupancy(s string) models.Occupancy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "occupied":
		return models.OccupancyOccupied
	case "vacant":
		return models.OccupancyVacant
	default:
		return models.OccupancyUnknown
	}
}

