package sources

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
	"rsc.io/pdf"
)

const sheriffBaseURL = "https://oregonsheriffssales.org"

// County to region mapping for Oregon. Sheriff listings carry a county, not
// a region, so the region tables cannot resolve them directly.
var countyToRegion = map[string]string{
	"deschutes": "Central Oregon",
	"jefferson": "Central Oregon",
	"crook":     "Central Oregon",
	"union":     "Central Oregon",
	"multnomah": "Portland Metro",
	"clackamas": "Portland Metro",
	"washington": "Portland Metro",
	"yamhill":   "Portland Metro",
	"marion":    "Salem / Mid-Valley",
	"polk":      "Salem / Mid-Valley",
	"benton":    "Salem / Mid-Valley",
	"linn":      "Salem / Mid-Valley",
	"lane":      "Eugene / Lane County",
	"lincoln":   "Eugene / Lane County",
	"jackson":   "Southern Oregon",
	"josephine": "Southern Oregon",
	"douglas":   "Southern Oregon",
	"klamath":   "Southern Oregon",
	"coos":      "Southern Oregon",
	"curry":     "Southern Oregon",
}

// Known cities in the target counties, longest first so "La Pine" wins over
// "Pine" when splitting an address that has no comma before the city.
var sheriffKnownCities = []string{
	"Klamath Falls", "Cottage Grove", "Happy Valley", "Grants Pass",
	"Powell Butte", "Lake Oswego", "Oregon City", "McMinnville",
	"Terrebonne", "Prineville", "Springfield", "Milwaukie", "Beaverton",
	"Hillsboro", "West Linn", "Troutdale", "Silverton", "Corvallis",
	"Clackamas", "Roseburg", "Sunriver", "Fairview", "La Pine",
	"Portland", "Woodburn", "Gresham", "Redmond", "Ashland", "Florence",
	"Medford", "Newberg", "Sisters", "Stayton", "Eugene", "Keizer",
	"Madras", "Albany", "Tigard", "Salem", "Bend",
}

var (
	sheriffCaseSplit  = regexp.MustCompile(`(?i)\s+vs?\.?\s+`)
	sheriffZipSuffix  = regexp.MustCompile(`(\d{5})(?:-\d{4})?$`)
	sheriffStateTail  = regexp.MustCompile(`(?i),?\s+(OR|Oregon)\s*$`)
	sheriffSaleDate   = regexp.MustCompile(`Sale Date:\s*([\d/]+)`)
	sheriffSaleTime   = regexp.MustCompile(`Sale Time:\s*([\d:]+\s*[apm\.]+)`)
	judgmentAmountPat = regexp.MustCompile(`(?i)(?:judgment|debt|amount\s+(?:owed|due))[^$]{0,60}\$\s*([0-9][0-9,]*(?:\.[0-9]{2})?)`)
)

// SheriffSource scrapes judicial foreclosure auctions from the Oregon State
// Sheriffs' Association site. These are courthouse-step sales with confirmed
// dates and case info rather than MLS listings, so most listings have no
// price; the aggregator estimates values from the city tables, and the
// Notice of Sale PDF supplies the judgment amount when it parses.
type SheriffSource struct {
	cfg      *config.Config
	fetcher  Fetcher
	counties []string
	fetchPDF bool
}

func NewSheriffSource(cfg *config.Config, fetcher Fetcher, counties []string) *SheriffSource {
	if fetcher == nil {
		fetcher = NewRateLimitedFetcher(cfg.FetchFor("sheriff"))
	}
	if len(counties) == 0 {
		counties = cfg.SheriffCounties
	}
	return &SheriffSource{cfg: cfg, fetcher: fetcher, counties: counties, fetchPDF: true}
}

func (s *SheriffSource) Kind() models.SourceKind { return models.SourceSheriff }
func (s *SheriffSource) Name() string            { return "oregon sheriff sales" }

func (s *SheriffSource) Fetch(ctx context.Context) ([]Listing, error) {
	fc := s.cfg.FetchFor("sheriff")
	delay := time.Duration(float64(time.Second) / fc.RateLimitRPS)

	c := colly.NewCollector(
		colly.AllowedDomains("oregonsheriffssales.org"),
		colly.UserAgent(defaultUserAgent),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	})
	c.SetRequestTimeout(time.Duration(fc.TimeoutSeconds) * time.Second)

	var (
		listings []Listing
		failures int
		county   string
	)

	c.OnHTML("div.property-listing-card", func(e *colly.HTMLElement) {
		l, ok := s.parseCard(e, county)
		if !ok {
			return
		}
		if s.fetchPDF && l.PropertyURL != "" && strings.HasSuffix(l.PropertyURL, ".pdf") {
			if debt := s.judgmentFromNotice(ctx, l.PropertyURL); debt > 0 {
				l.TotalDebt = debt
			}
		}
		listings = append(listings, l)
	})

	c.OnError(func(r *colly.Response, err error) {
		failures++
		log.Printf("sheriff: %s: %v", r.Request.URL, err)
	})

	for i, name := range s.counties {
		if err := ctx.Err(); err != nil {
			return listings, err
		}
		if failures >= 3 {
			log.Printf("sheriff: circuit breaker tripped, stopping county scan")
			break
		}
		county = strings.ToLower(name)
		log.Printf("sheriff: [%d/%d] scraping %s county", i+1, len(s.counties), county)
		if err := c.Visit(fmt.Sprintf("%s/county/%s/", sheriffBaseURL, county)); err != nil {
			failures++
			log.Printf("sheriff: %s county: %v", county, err)
			continue
		}
		c.Wait()
	}

	if len(listings) == 0 && failures >= 3 {
		return nil, &SourceError{Source: models.SourceSheriff,
			Err: fmt.Errorf("all county pages failed")}
	}
	return listings, nil
}

func (s *SheriffSource) parseCard(e *colly.HTMLElement, county string) (Listing, bool) {
	addressRaw := cleanText(e.ChildText("div.fl-post-excerpt"))
	if addressRaw == "" {
		return Listing{}, false
	}
	street, city, zip := parseSheriffAddress(addressRaw)
	if street == "" {
		return Listing{}, false
	}

	caseTitle := cleanText(e.ChildText("h2 strong"))
	cardText := cleanText(e.Text)

	auctionDate := ""
	if m := sheriffSaleDate.FindStringSubmatch(cardText); m != nil {
		auctionDate = parseDateLoose(m[1])
	}
	saleTime := ""
	if m := sheriffSaleTime.FindStringSubmatch(cardText); m != nil {
		saleTime = strings.TrimSpace(m[1])
	}

	var pdfURL, detailURL string
	e.ForEach("a[href]", func(_ int, a *colly.HTMLElement) {
		href := a.Request.AbsoluteURL(a.Attr("href"))
		switch {
		case strings.HasSuffix(href, ".pdf") && pdfURL == "":
			pdfURL = href
		case strings.Contains(href, "/property-listing/") && detailURL == "":
			detailURL = href
		}
	})

	desc := fmt.Sprintf("Sheriff sale, %s County. Case: %s.", strings.Title(county), caseTitle)
	if saleTime != "" {
		desc += " Sale time " + saleTime + "."
	}

	propertyURL := detailURL
	if propertyURL == "" {
		propertyURL = pdfURL
	}

	return Listing{
		Address:           street,
		City:              city,
		State:             "Oregon",
		ZipCode:           zip,
		AuctionDate:       auctionDate,
		Platform:          "Sheriff Sale",
		Description:       cleanText(desc),
		ForeclosingEntity: plaintiffOf(caseTitle),
		ForeclosureStage:  "Sheriff Sale Scheduled",
		PropertyURL:       propertyURL,
		ImageURL:          "",
		RegionHint:        countyToRegion[county],
		StateHint:         "Oregon",
	}, true
}

// judgmentFromNotice downloads a Notice of Sale PDF and scans its text for
// the judgment amount. Failure here is never fatal, the listing just has no
// debt figure.
func (s *SheriffSource) judgmentFromNotice(ctx context.Context, pdfURL string) float64 {
	body, err := s.fetcher.Get(ctx, pdfURL, nil)
	if err != nil {
		log.Printf("sheriff: notice pdf %s: %v", pdfURL, err)
		return 0
	}
	text, err := pdfText(body)
	if err != nil {
		log.Printf("sheriff: notice pdf %s: %v", pdfURL, err)
		return 0
	}
	if m := judgmentAmountPat.FindStringSubmatch(text); m != nil {
		return parseMoney(m[1])
	}
	return 0
}

// pdfText extracts plain text from a PDF document, page by page.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		// The pdf package panics on malformed documents.
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, t := range page.Content().Text {
			sb.WriteString(t.S)
			sb.WriteString(" ")
		}
	}
	return sb.String(), nil
}

// parseSheriffAddress splits "428 SE Warsaw St. Redmond, OR 97756" into its
// street, city and zip parts. The state is always Oregon on this site.
func parseSheriffAddress(raw string) (street, city, zip string) {
	raw = strings.TrimSpace(raw)

	if m := sheriffZipSuffix.FindStringSubmatchIndex(raw); m != nil {
		zip = raw[m[2]:m[3]]
		raw = strings.TrimRight(strings.TrimSpace(raw[:m[0]]), ",")
	}
	raw = strings.TrimSpace(sheriffStateTail.ReplaceAllString(raw, ""))

	if idx := strings.LastIndex(raw, ","); idx >= 0 {
		return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+1:]), zip
	}

	for _, name := range sheriffKnownCities {
		if strings.HasSuffix(strings.ToLower(raw), " "+strings.ToLower(name)) {
			return strings.TrimSpace(raw[:len(raw)-len(name)]), name, zip
		}
	}

	// Assume the last word is the city.
	words := strings.Fields(raw)
	if len(words) >= 2 {
		return strings.Join(words[:len(words)-1], " "), words[len(words)-1], zip
	}
	return "", "", zip
}

// plaintiffOf extracts the foreclosing entity from a case title like
// "LAKEVIEW LOAN SERVICING, LLC vs. UNKNOWN HEIRS ...".
func plaintiffOf(caseTitle string) string {
	parts := sheriffCaseSplit.Split(caseTitle, 2)
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return smartTitle(strings.TrimSpace(parts[0]))
}

var titlePreserve = map[string]bool{
	"LLC": true, "LLP": true, "LP": true, "INC": true, "CORP": true,
	"NA": true, "USA": true, "VA": true, "HUD": true, "FHA": true,
}

func smartTitle(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		clean := strings.TrimRight(w, ",;")
		if titlePreserve[strings.ToUpper(clean)] {
			words[i] = strings.ToUpper(clean) + w[len(clean):]
		} else {
			words[i] = strings.Title(strings.ToLower(w))
		}
	}
	return strings.Join(words, " ")
}
