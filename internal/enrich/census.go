// Package enrich fills in property fields that no auction source reports
// directly: neighborhood quality from Census demographics, fair market rent
// from HUD, refreshed ARVs from the ATTOM AVM and synthesized foreclosure
// context when the paid APIs withheld theirs.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/david/auction-analyzer/internal/sources"
)

const (
	censusBaseURL = "https://api.census.gov/data"
	hudBaseURL    = "https://www.huduser.gov/hudapi/public"
	acsYear       = 2023
)

// ACS 5-year variable codes, in query order.
var acsVariables = []string{
	"B19013_001E", // median household income
	"B01003_001E", // total population
	"B01002_001E", // median age
	"B25077_001E", // median home value
	"B25064_001E", // median gross rent
	"B25002_001E", // total housing units
	"B25002_003E", // vacant units
	"B25003_002E", // owner occupied
	"B25003_003E", // renter occupied
}

// NeighborhoodData is the Census ACS profile of one ZIP code tabulation area.
type NeighborhoodData struct {
	MedianIncome    int
	Population      int
	MedianAge       int
	MedianHomeValue int
	MedianRent      int
	TotalUnits      int
	VacantUnits     int
	OwnerOccupied   int
	RenterOccupied  int

	VacancyRate        float64
	OwnerOccupancyRate float64
}

// CensusClient queries the US Census ACS and HUD FMR APIs. Both work without
// a key at reduced rate limits, so Configured is always true; keys just lift
// the quota.
type CensusClient struct {
	fetcher   sources.Fetcher
	censusKey string
	hudToken  string

	// per-run cache, one Census call per distinct ZIP
	cache map[string]*NeighborhoodData
}

func NewCensusClient(censusKey, hudToken string, fetcher sources.Fetcher) *CensusClient {
	return &CensusClient{
		fetcher:   fetcher,
		censusKey: censusKey,
		hudToken:  hudToken,
		cache:     make(map[string]*NeighborhoodData),
	}
}

// NeighborhoodProfile returns the ACS profile for a ZIP, hitting the API at
// most once per ZIP per run. A nil profile with nil error means the Census
// has no data for that ZCTA.
func (c *CensusClient) NeighborhoodProfile(ctx context.Context, zip string) (*NeighborhoodData, error) {
	if len(zip) != 5 {
		return nil, fmt.Errorf("invalid ZIP %q", zip)
	}
	if cached, ok := c.cache[zip]; ok {
		return cached, nil
	}

	vars := "NAME"
	for _, v := range acsVariables {
		vars += "," + v
	}
	url := fmt.Sprintf("%s/%d/acs/acs5?get=%s&for=zip%%20code%%20tabulation%%20area:%s",
		censusBaseURL, acsYear, vars, zip)
	if c.censusKey != "" {
		url += "&key=" + c.censusKey
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	body, err := c.fetcher.Get(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("census %s: %w", zip, err)
	}

	// The Census API returns a row-oriented JSON table, header row first.
	var rows [][]*string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("census %s: failed to decode response: %w", zip, err)
	}
	if len(rows) < 2 {
		c.cache[zip] = nil
		return nil, nil
	}

	byVar := make(map[string]int)
	for i, colName := range rows[0] {
		if colName == nil || i >= len(rows[1]) || rows[1][i] == nil {
			continue
		}
		if v, err := strconv.Atoi(*rows[1][i]); err == nil && v > 0 {
			byVar[*colName] = v
		}
	}

	data := &NeighborhoodData{
		MedianIncome:    byVar["B19013_001E"],
		Population:      byVar["B01003_001E"],
		MedianAge:       byVar["B01002_001E"],
		MedianHomeValue: byVar["B25077_001E"],
		MedianRent:      byVar["B25064_001E"],
		TotalUnits:      byVar["B25002_001E"],
		VacantUnits:     byVar["B25002_003E"],
		OwnerOccupied:   byVar["B25003_002E"],
		RenterOccupied:  byVar["B25003_003E"],
	}
	if data.TotalUnits > 0 && data.VacantUnits > 0 {
		data.VacancyRate = float64(data.VacantUnits) / float64(data.TotalUnits) * 100
	}
	if occupied := data.OwnerOccupied + data.RenterOccupied; occupied > 0 {
		data.OwnerOccupancyRate = float64(data.OwnerOccupied) / float64(occupied) * 100
	}

	c.cache[zip] = data
	return data, nil
}

// NeighborhoodScore grades a ZIP from 1 to 10 using income, home values,
// vacancy and owner occupancy. Returns 0 when the Census has no data, so
// callers can tell "bad area" from "no answer".
func (c *CensusClient) NeighborhoodScore(ctx context.Context, zip string) (int, error) {
	data, err := c.NeighborhoodProfile(ctx, zip)
	if err != nil || data == nil {
		return 0, err
	}

	score := 5.0

	switch income := data.MedianIncome; {
	case income == 0:
	case income >= 100000:
		score += 2
	case income >= 75000:
		score += 1
	case income >= 50000:
	case income >= 35000:
		score -= 1
	default:
		score -= 2
	}

	switch hv := data.MedianHomeValue; {
	case hv == 0:
	case hv >= 400000:
		score += 1
	case hv >= 250000:
		score += 0.5
	case hv < 150000:
		score -= 1
	}

	switch v := data.VacancyRate; {
	case v == 0:
	case v < 5:
		score += 1
	case v < 10:
	case v < 15:
		score -= 0.5
	default:
		score -= 1
	}

	switch o := data.OwnerOccupancyRate; {
	case o == 0:
	case o >= 70:
		score += 1
	case o >= 50:
	default:
		score -= 0.5
	}

	rounded := int(math.Round(score))
	if rounded < 1 {
		rounded = 1
	}
	if rounded > 10 {
		rounded = 10
	}
	return rounded, nil
}

// FairMarketRent holds HUD FMR values by bedroom count.
type FairMarketRent struct {
	Efficiency   float64 `json:"Efficiency"`
	OneBedroom   float64 `json:"One-Bedroom"`
	TwoBedroom   float64 `json:"Two-Bedroom"`
	ThreeBedroom float64 `json:"Three-Bedroom"`
	FourBedroom  float64 `json:"Four-Bedroom"`
}

// ForBedrooms returns the FMR for a bedroom count, clamped to the 0-4 range
// HUD publishes.
func (f *FairMarketRent) ForBedrooms(beds int) float64 {
	switch {
	case beds <= 0:
		return f.Efficiency
	case beds == 1:
		return f.OneBedroom
	case beds == 2:
		return f.TwoBedroom
	case beds == 3:
		return f.ThreeBedroom
	default:
		return f.FourBedroom
	}
}

// FairMarketRentByCounty fetches HUD FMR data. countyFIPS is the 10-digit
// entity ID (5-digit county FIPS + "99999"). Requires a HUD token.
func (c *CensusClient) FairMarketRentByCounty(ctx context.Context, countyFIPS string, year int) (*FairMarketRent, error) {
	if c.hudToken == "" {
		return nil, sources.ErrNotConfigured
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.hudToken)
	header.Set("Accept", "application/json")

	body, err := c.fetcher.Get(ctx,
		fmt.Sprintf("%s/fmr/data/%s?year=%d", hudBaseURL, countyFIPS, year), header)
	if err != nil {
		return nil, fmt.Errorf("hud fmr %s: %w", countyFIPS, err)
	}

	var env struct {
		Data struct {
			BasicData FairMarketRent `json:"basicdata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("hud fmr %s: failed to decode response: %w", countyFIPS, err)
	}
	return &env.Data.BasicData, nil
}

// logSkip records a ZIP the Census could not profile, once.
func logSkip(zip string, err error) {
	if err != nil {
		log.Printf("census: zip %s: %v", zip, err)
	}
}
