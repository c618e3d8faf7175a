package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

const redfinCSVURL = "https://www.redfin.com/stingray/api/gis-csv"

// Redfin market slugs. The market parameter helps Redfin route the request
// but is not strictly required.
var redfinMarkets = map[string]string{
	"Oregon":     "portland",
	"Texas":      "austin",
	"Washington": "seattle",
	"Florida":    "tampa",
	"Arizona":    "phoenix",
	"Georgia":    "atlanta",
	"California": "sacramento",
}

// City center coordinates for the bounding-box search. Redfin's region_id
// parameter uses internal IDs rather than ZIP codes, so the search area is a
// lat/lng polygon around the city center instead.
var cityCoords = map[[2]string][2]float64{
	{"Portland", "Oregon"}:      {45.5152, -122.6784},
	{"Beaverton", "Oregon"}:     {45.4871, -122.8037},
	{"Hillsboro", "Oregon"}:     {45.5229, -122.9898},
	{"Gresham", "Oregon"}:       {45.5001, -122.4302},
	{"Lake Oswego", "Oregon"}:   {45.4207, -122.6706},
	{"Tigard", "Oregon"}:        {45.4312, -122.7715},
	{"Tualatin", "Oregon"}:      {45.3840, -122.7640},
	{"Oregon City", "Oregon"}:   {45.3573, -122.6068},
	{"West Linn", "Oregon"}:     {45.3657, -122.6123},
	{"Salem", "Oregon"}:         {44.9429, -123.0351},
	{"Keizer", "Oregon"}:        {44.9901, -123.0262},
	{"Albany", "Oregon"}:        {44.6365, -123.1059},
	{"Corvallis", "Oregon"}:     {44.5646, -123.2620},
	{"McMinnville", "Oregon"}:   {45.2101, -123.1987},
	{"Woodburn", "Oregon"}:      {45.1437, -122.8555},
	{"Eugene", "Oregon"}:        {44.0521, -123.0868},
	{"Springfield", "Oregon"}:   {44.0462, -123.0220},
	{"Cottage Grove", "Oregon"}: {43.7976, -123.0595},
	{"Bend", "Oregon"}:          {44.0582, -121.3153},
	{"Redmond", "Oregon"}:       {44.2726, -121.1739},
	{"Madras", "Oregon"}:        {44.6335, -121.1295},
	{"Prineville", "Oregon"}:    {44.2998, -120.8345},
	{"Sisters", "Oregon"}:       {44.2909, -121.5492},
	{"Medford", "Oregon"}:       {42.3265, -122.8756},
	{"Ashland", "Oregon"}:       {42.1946, -122.7095},
	{"Grants Pass", "Oregon"}:   {42.4390, -123.3284},
	{"Klamath Falls", "Oregon"}: {42.2249, -121.7817},
	{"Roseburg", "Oregon"}:      {43.2165, -123.3417},

	{"Austin", "Texas"}:        {30.2672, -97.7431},
	{"Round Rock", "Texas"}:    {30.5083, -97.6789},
	{"Cedar Park", "Texas"}:    {30.5052, -97.8203},
	{"Georgetown", "Texas"}:    {30.6333, -97.6780},
	{"Pflugerville", "Texas"}:  {30.4394, -97.6200},
	{"Kyle", "Texas"}:          {29.9893, -97.8772},
	{"San Marcos", "Texas"}:    {29.8833, -97.9414},
	{"Leander", "Texas"}:       {30.5788, -97.8531},
	{"Dallas", "Texas"}:        {32.7767, -96.7970},
	{"Fort Worth", "Texas"}:    {32.7555, -97.3308},
	{"Arlington", "Texas"}:     {32.7357, -97.1081},
	{"Plano", "Texas"}:         {33.0198, -96.6989},
	{"Irving", "Texas"}:        {32.8140, -96.9489},
	{"Frisco", "Texas"}:        {33.1507, -96.8236},
	{"McKinney", "Texas"}:      {33.1972, -96.6398},
	{"Denton", "Texas"}:        {33.2148, -97.1331},
	{"Grand Prairie", "Texas"}: {32.7460, -96.9978},
	{"Garland", "Texas"}:       {32.9126, -96.6389},
	{"Richardson", "Texas"}:    {32.9483, -96.7299},
	{"Mesquite", "Texas"}:      {32.7668, -96.5992},
	{"Houston", "Texas"}:       {29.7604, -95.3698},
	{"Sugar Land", "Texas"}:    {29.6197, -95.6349},
	{"Pearland", "Texas"}:      {29.5636, -95.2860},
	{"League City", "Texas"}:   {29.5075, -95.0949},
	{"Pasadena", "Texas"}:      {29.6911, -95.2091},
	{"Baytown", "Texas"}:       {29.7355, -94.9774},
	{"The Woodlands", "Texas"}: {30.1658, -95.4613},
	{"Katy", "Texas"}:          {29.7858, -95.8245},
	{"Cypress", "Texas"}:       {29.9691, -95.6972},
	{"San Antonio", "Texas"}:   {29.4241, -98.4936},
	{"New Braunfels", "Texas"}: {29.7030, -98.1245},
	{"Seguin", "Texas"}:        {29.5688, -97.9647},
	{"Boerne", "Texas"}:        {29.7947, -98.7320},
	{"Schertz", "Texas"}:       {29.5522, -98.2697},
	{"El Paso", "Texas"}:       {31.7619, -106.4850},
	{"Socorro", "Texas"}:       {31.6546, -106.3033},
	{"Horizon City", "Texas"}:  {31.6926, -106.2077},

	{"Vancouver", "Washington"}:     {45.6387, -122.6615},
	{"Camas", "Washington"}:         {45.5871, -122.3995},
	{"Washougal", "Washington"}:     {45.5826, -122.3534},
	{"Battle Ground", "Washington"}: {45.7807, -122.5337},
	{"Ridgefield", "Washington"}:    {45.8151, -122.7426},
	{"Woodland", "Washington"}:      {45.9046, -122.7440},
	{"Longview", "Washington"}:      {46.1382, -122.9382},
	{"Kelso", "Washington"}:         {46.1468, -122.9085},
}

// RedfinSource pulls MLS-listed foreclosures from Redfin's unofficial
// gis-csv endpoint. No API key is required, but the endpoint blocks
// aggressive clients, so requests are heavily rate limited and a circuit
// breaker stops the scan after consecutive failures.
type RedfinSource struct {
	cfg     *config.Config
	fetcher Fetcher
	maxZips int

	failures     int
	breakerLimit int
}

func NewRedfinSource(cfg *config.Config, fetcher Fetcher, maxZips int) *RedfinSource {
	if fetcher == nil {
		fetcher = NewRateLimitedFetcher(cfg.FetchFor("redfin"))
	}
	return &RedfinSource{
		cfg:          cfg,
		fetcher:      fetcher,
		maxZips:      maxZips,
		breakerLimit: 3,
	}
}

func (r *RedfinSource) Kind() models.SourceKind { return models.SourceRedfin }
func (r *RedfinSource) Name() string            { return "redfin" }

func (r *RedfinSource) Fetch(ctx context.Context) ([]Listing, error) {
	targets := r.cfg.ActiveCities()
	if r.maxZips > 0 && len(targets) > r.maxZips {
		targets = targets[:r.maxZips]
	}

	var listings []Listing
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return listings, err
		}
		if r.failures >= r.breakerLimit {
			log.Printf("redfin: circuit breaker tripped after %d failures, stopping scan", r.failures)
			break
		}

		coords, ok := cityCoords[[2]string{t.City, t.State}]
		if !ok {
			continue
		}

		found, err := r.searchArea(ctx, coords[0], coords[1], t)
		if err != nil {
			r.failures++
			log.Printf("redfin: %s, %s: %v", t.City, t.State, err)
			continue
		}
		r.failures = 0
		listings = append(listings, found...)
	}

	if len(listings) == 0 && r.failures >= r.breakerLimit {
		return nil, &SourceError{Source: models.SourceRedfin,
			Err: fmt.Errorf("all requests failed, site may be blocking")}
	}
	return listings, nil
}

// searchArea queries one bounding box. Foreclosures-only first (sf=2), then
// all sale types filtered locally when that comes back empty.
func (r *RedfinSource) searchArea(ctx context.Context, lat, lng float64, t config.TargetCity) ([]Listing, error) {
	poly := boundingBox(lat, lng, 0.15) // ~10 miles

	rows, err := r.fetchCSV(ctx, poly, t.State, "2")
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		all, err := r.fetchCSV(ctx, poly, t.State, "1,2,3,5,6,7")
		if err != nil {
			return nil, err
		}
		for _, row := range all {
			if isForeclosureType(row["SALE TYPE"]) {
				rows = append(rows, row)
			}
		}
	}

	var listings []Listing
	for _, row := range rows {
		l, ok := r.parseRow(row, t)
		if ok {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

func (r *RedfinSource) fetchCSV(ctx context.Context, poly, state, saleFilter string) ([]map[string]string, error) {
	params := url.Values{
		"al":        {"1"},
		"sf":        {saleFilter},
		"status":    {"1"},
		"uipt":      {"1"},
		"num_homes": {"350"},
		"poly":      {poly},
	}
	if market := redfinMarkets[state]; market != "" {
		params.Set("market", market)
	}

	header := http.Header{}
	header.Set("Accept", "text/csv,text/plain,*/*")
	header.Set("Referer", "https://www.redfin.com/")
	header.Set("DNT", "1")

	body, err := r.fetcher.Get(ctx, redfinCSVURL+"?"+params.Encode(), header)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "<!") {
		return nil, fmt.Errorf("non-CSV response")
	}

	// Redfin sometimes prepends an MLS compliance notice line.
	var csvLines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, `"In accordance`) {
			continue
		}
		csvLines = append(csvLines, line)
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(csvLines, "\n")))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	headerRow := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(headerRow))
		for i, col := range headerRow {
			if i < len(rec) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *RedfinSource) parseRow(row map[string]string, t config.TargetCity) (Listing, bool) {
	address := row["ADDRESS"]
	price := safeFloat(row["PRICE"])
	if address == "" || price <= 0 {
		return Listing{}, false
	}

	var propertyURL string
	for key, val := range row {
		if strings.HasPrefix(key, "URL") && val != "" {
			propertyURL = val
			break
		}
	}

	// Redfin reports lot size in sqft.
	lotAcres := 0.0
	if lotSqft := safeFloat(row["LOT SIZE"]); lotSqft > 0 {
		lotAcres = lotSqft / 43560
	}

	return Listing{
		Address:   address,
		City:      row["CITY"],
		State:     normalizeState(row["STATE OR PROVINCE"]),
		ZipCode:   row["ZIP OR POSTAL CODE"],
		Lat:       safeFloat(row["LATITUDE"]),
		Lon:       safeFloat(row["LONGITUDE"]),
		Price:     price,
		Bedrooms:  safeInt(row["BEDS"]),
		Bathrooms: safeFloat(row["BATHS"]),
		Sqft:      safeInt(row["SQUARE FEET"]),
		LotSize:   lotAcres,
		YearBuilt: safeInt(row["YEAR BUILT"]),
		Platform:  "Redfin (MLS)",
		Description: cleanText(fmt.Sprintf("%s listing via %s MLS #%s",
			row["SALE TYPE"], row["SOURCE"], row["MLS#"])),
		HOAFee:           safeFloat(row["HOA/MONTH"]),
		ForeclosureStage: row["SALE TYPE"],
		PropertyURL:      propertyURL,
		CityHint:         t.City,
		StateHint:        t.State,
		ZipHint:          t.Zip,
		RegionHint:       t.Region,
	}, true
}

// boundingBox builds the closed 5-point polygon the poly parameter expects:
// "lng1 lat1,lng2 lat1,lng2 lat2,lng1 lat2,lng1 lat1".
func boundingBox(lat, lng, radius float64) string {
	latMin, latMax := lat-radius, lat+radius
	lngMin, lngMax := lng-radius, lng+radius
	return fmt.Sprintf("%f %f,%f %f,%f %f,%f %f,%f %f",
		lngMin, latMin, lngMax, latMin, lngMax, latMax, lngMin, latMax, lngMin, latMin)
}

func isForeclosureType(saleType string) bool {
	st := strings.ToLower(saleType)
	for _, kw := range []string{"foreclosure", "bank owned", "bank-owned", "reo", "short sale", "auction", "hud"} {
		if strings.Contains(st, kw) {
			return true
		}
	}
	return false
}

func safeFloat(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), "$", ""))
	if s == "" || s == "—" || s == "-" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func safeInt(s string) int {
	return int(safeFloat(s))
}
