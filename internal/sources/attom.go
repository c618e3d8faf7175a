package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const attomBaseURL = "https://attom-property.p.rapidapi.com/propertyapi/v1.0.0"

// AttomClient talks to the ATTOM property API through RapidAPI. The free
// tier allows 500 calls per day, so callers keep request counts low.
type AttomClient struct {
	fetcher Fetcher
	key     string
}

func NewAttomClient(key string, fetcher Fetcher) *AttomClient {
	return &AttomClient{fetcher: fetcher, key: key}
}

// Configured reports whether an API key is present.
func (c *AttomClient) Configured() bool { return c.key != "" }

type attomEnvelope struct {
	Property []attomProperty `json:"property"`
}

type attomProperty struct {
	Address struct {
		Line1    string `json:"line1"`
		Locality string `json:"locality"`
		// CountrySubd is the state abbreviation.
		CountrySubd string `json:"countrySubd"`
		Postal1     string `json:"postal1"`
	} `json:"address"`
	// ATTOM serializes coordinates as strings.
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
	Lot struct {
		LotSize1 float64 `json:"lotsize1"`
	} `json:"lot"`
	Building struct {
		Size struct {
			UniversalSize int `json:"universalsize"`
		} `json:"size"`
		Rooms struct {
			Beds       int     `json:"beds"`
			BathsTotal float64 `json:"bathstotal"`
		} `json:"rooms"`
		Summary struct {
			YearBuilt int `json:"yearbuilt"`
		} `json:"summary"`
	} `json:"building"`
	Sale struct {
		Amount struct {
			SaleAmt  float64 `json:"saleamt"`
			SaleType string  `json:"saletranstype"`
		} `json:"amount"`
		SaleSearchDate string `json:"salesearchdate"`
	} `json:"sale"`
	Assessment struct {
		Assessed struct {
			AssdTtlValue float64 `json:"assdttlvalue"`
		} `json:"assessed"`
		Market struct {
			MktTtlValue float64 `json:"mktttlvalue"`
		} `json:"market"`
		Tax struct {
			TaxAmt float64 `json:"taxamt"`
		} `json:"tax"`
	} `json:"assessment"`
	AVM struct {
		Amount struct {
			Value float64 `json:"value"`
			High  float64 `json:"high"`
			Low   float64 `json:"low"`
		} `json:"amount"`
	} `json:"avm"`
}

func (c *AttomClient) request(ctx context.Context, endpoint string, params url.Values) (*attomEnvelope, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	header := http.Header{}
	header.Set("X-RapidAPI-Key", c.key)
	header.Set("X-RapidAPI-Host", "attom-property.p.rapidapi.com")
	header.Set("Accept", "application/json")

	body, err := c.fetcher.Get(ctx, attomBaseURL+"/"+endpoint+"?"+params.Encode(), header)
	if err != nil {
		return nil, fmt.Errorf("attom %s: %w", endpoint, err)
	}

	var env attomEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("attom %s: failed to decode response: %w", endpoint, err)
	}
	return &env, nil
}

// AVM returns the automated valuation for one address, or 0 when ATTOM has
// no estimate. address2 is "City, ST 12345".
func (c *AttomClient) AVM(ctx context.Context, address1, address2 string) (float64, error) {
	env, err := c.request(ctx, "avm/detail", url.Values{
		"address1": {address1},
		"address2": {address2},
	})
	if err != nil {
		return 0, err
	}
	if len(env.Property) == 0 {
		return 0, nil
	}
	return env.Property[0].AVM.Amount.Value, nil
}

// SalesByZip returns recent sales in a ZIP code, optionally bounded by
// price. Distressed and REO transfers show up here alongside normal sales.
func (c *AttomClient) SalesByZip(ctx context.Context, zip string, minPrice, maxPrice float64, pageSize int) ([]Listing, error) {
	params := url.Values{
		"postalcode": {zip},
		"pagesize":   {strconv.Itoa(pageSize)},
	}
	if minPrice > 0 {
		params.Set("minsaleamt", strconv.FormatFloat(minPrice, 'f', 0, 64))
	}
	if maxPrice > 0 {
		params.Set("maxsaleamt", strconv.FormatFloat(maxPrice, 'f', 0, 64))
	}

	env, err := c.request(ctx, "sale/snapshot", params)
	if err != nil {
		return nil, err
	}
	var listings []Listing
	for _, p := range env.Property {
		l, ok := attomListing(p)
		if ok {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

// PropertiesByZip returns the property snapshot for a ZIP code. These rows
// usually carry assessment values but no sale amount.
func (c *AttomClient) PropertiesByZip(ctx context.Context, zip string, pageSize int) ([]Listing, error) {
	env, err := c.request(ctx, "property/snapshot", url.Values{
		"postalcode": {zip},
		"pagesize":   {strconv.Itoa(pageSize)},
	})
	if err != nil {
		return nil, err
	}
	var listings []Listing
	for _, p := range env.Property {
		l, ok := attomListing(p)
		if ok {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

func attomListing(p attomProperty) (Listing, bool) {
	if p.Address.Line1 == "" {
		return Listing{}, false
	}
	lat := safeFloat(p.Location.Latitude)
	lon := safeFloat(p.Location.Longitude)

	price := p.Sale.Amount.SaleAmt
	if price == 0 {
		price = p.Assessment.Assessed.AssdTtlValue
	}
	arv := p.Assessment.Market.MktTtlValue
	if arv == 0 {
		arv = p.Assessment.Assessed.AssdTtlValue
	}
	// Assessment lags the market, nudge it toward resale value.
	if arv > 0 {
		arv *= 1.1
	}

	return Listing{
		Address:       p.Address.Line1,
		City:          p.Address.Locality,
		State:         normalizeState(p.Address.CountrySubd),
		ZipCode:       p.Address.Postal1,
		Lat:           lat,
		Lon:           lon,
		Price:         price,
		ARV:           arv,
		Bedrooms:      p.Building.Rooms.Beds,
		Bathrooms:     p.Building.Rooms.BathsTotal,
		Sqft:          p.Building.Size.UniversalSize,
		LotSize:       p.Lot.LotSize1,
		YearBuilt:     p.Building.Summary.YearBuilt,
		AnnualTax:     p.Assessment.Tax.TaxAmt,
		LastSaleDate:  parseDateLoose(p.Sale.SaleSearchDate),
		LastSalePrice: p.Sale.Amount.SaleAmt,
	}, true
}
