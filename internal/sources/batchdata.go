package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const batchDataBaseURL = "https://api.batchdata.com/api/v1"

// BatchDataClient talks to the BatchData property API, which is the only
// source in the stack that returns pre-foreclosure filings with trustee and
// debt figures attached.
type BatchDataClient struct {
	fetcher Fetcher
	key     string
}

func NewBatchDataClient(key string, fetcher Fetcher) *BatchDataClient {
	return &BatchDataClient{fetcher: fetcher, key: key}
}

func (c *BatchDataClient) Configured() bool { return c.key != "" }

type batchDataAddress struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

type batchDataRequest struct {
	Address      batchDataAddress `json:"address"`
	PropertyType string           `json:"propertyType,omitempty"`
	ValueRange   *struct {
		Min float64 `json:"min,omitempty"`
		Max float64 `json:"max,omitempty"`
	} `json:"marketValueRange,omitempty"`
}

type batchDataProperty struct {
	Address        batchDataAddress `json:"address"`
	PreForeclosure struct {
		TrusteeName     string  `json:"trusteeName"`
		DefaultAmount   float64 `json:"defaultAmount"`
		FilingType      string  `json:"filingType"`
		RecordingDate   string  `json:"recordingDate"`
		AuctionDate     string  `json:"auctionDate"`
		AuctionLocation string  `json:"auctionLocation"`
	} `json:"preForeclosure"`
	Mortgage struct {
		LenderName      string  `json:"lenderName"`
		Amount          float64 `json:"amount"`
		LoanType        string  `json:"loanType"`
		OriginationDate string  `json:"originationDate"`
	} `json:"mortgage"`
	Lien struct {
		LenderName string  `json:"lenderName"`
		Amount     float64 `json:"amount"`
	} `json:"lien"`
	Building struct {
		Bedrooms  int     `json:"bedroomCount"`
		Bathrooms float64 `json:"bathroomCount"`
		Sqft      int     `json:"totalBuildingAreaSquareFeet"`
		YearBuilt int     `json:"yearBuilt"`
	} `json:"building"`
	Valuation struct {
		EstimatedValue float64 `json:"estimatedValue"`
	} `json:"valuation"`
}

type batchDataEnvelope struct {
	Results struct {
		Properties []batchDataProperty `json:"properties"`
	} `json:"results"`
}

func (c *BatchDataClient) search(ctx context.Context, endpoint string, reqs []batchDataRequest) ([]batchDataProperty, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]any{"requests": reqs})
	if err != nil {
		return nil, fmt.Errorf("batchdata: failed to encode request: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.key)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	body, err := c.fetcher.Post(ctx, batchDataBaseURL+"/"+endpoint, header, payload)
	if err != nil {
		return nil, fmt.Errorf("batchdata %s: %w", endpoint, err)
	}

	var env batchDataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("batchdata %s: failed to decode response: %w", endpoint, err)
	}
	return env.Results.Properties, nil
}

// SearchForeclosures returns pre-foreclosure filings for a city, bounded by
// market value when the bounds are positive.
func (c *BatchDataClient) SearchForeclosures(ctx context.Context, city, state string, minValue, maxValue float64) ([]Listing, error) {
	req := batchDataRequest{
		Address:      batchDataAddress{City: city, State: state},
		PropertyType: "Single Family Residential",
	}
	if minValue > 0 || maxValue > 0 {
		req.ValueRange = &struct {
			Min float64 `json:"min,omitempty"`
			Max float64 `json:"max,omitempty"`
		}{Min: minValue, Max: maxValue}
	}

	props, err := c.search(ctx, "property/search", []batchDataRequest{req})
	if err != nil {
		return nil, err
	}

	var listings []Listing
	for _, p := range props {
		if p.Address.Street == "" {
			continue
		}
		listings = append(listings, batchDataListing(p))
	}
	return listings, nil
}

// Lookup returns the foreclosure and lien context for one address, or a nil
// listing when BatchData has no record.
func (c *BatchDataClient) Lookup(ctx context.Context, street, city, state, zip string) (*Listing, error) {
	props, err := c.search(ctx, "property/lookup", []batchDataRequest{{
		Address: batchDataAddress{Street: street, City: city, State: state, Zip: zip},
	}})
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, nil
	}
	l := batchDataListing(props[0])
	return &l, nil
}

func batchDataListing(p batchDataProperty) Listing {
	entity := p.PreForeclosure.TrusteeName
	if entity == "" {
		entity = p.Mortgage.LenderName
	}
	if entity == "" {
		entity = p.Lien.LenderName
	}
	debt := p.PreForeclosure.DefaultAmount
	if debt == 0 {
		debt = p.Mortgage.Amount
	}
	if debt == 0 {
		debt = p.Lien.Amount
	}
	stage := p.PreForeclosure.FilingType
	if stage == "" && p.PreForeclosure.TrusteeName != "" {
		stage = "Pre-Foreclosure"
	}

	return Listing{
		Address:           p.Address.Street,
		City:              p.Address.City,
		State:             normalizeState(p.Address.State),
		ZipCode:           p.Address.Zip,
		Price:             p.PreForeclosure.DefaultAmount,
		ARV:               p.Valuation.EstimatedValue,
		Bedrooms:          p.Building.Bedrooms,
		Bathrooms:         p.Building.Bathrooms,
		Sqft:              p.Building.Sqft,
		YearBuilt:         p.Building.YearBuilt,
		AuctionDate:       parseDateLoose(p.PreForeclosure.AuctionDate),
		Platform:          "BatchData Pre-Foreclosure",
		ForeclosingEntity: entity,
		TotalDebt:         debt,
		LoanType:          p.Mortgage.LoanType,
		DefaultDate:       parseDateLoose(p.PreForeclosure.RecordingDate),
		ForeclosureStage:  stage,
	}
}
