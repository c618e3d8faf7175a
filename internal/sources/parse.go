package sources

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	moneyRegex   = regexp.MustCompile(`\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	textPolicy   = bluemonday.StrictPolicy()
	stateAbbrevs = map[string]string{
		"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
		"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
		"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
		"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
		"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
		"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
		"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
		"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
		"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
		"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
		"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
		"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
		"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
	}
)

// cleanText collapses whitespace and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sanitizeDescription strips all HTML from scraped listing text.
func sanitizeDescription(s string) string {
	return cleanText(textPolicy.Sanitize(s))
}

// htmlToText converts an HTML fragment to plain text.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

// parseMoney extracts the first dollar amount from a string, handling
// thousands separators. Returns 0 when nothing parseable is found.
func parseMoney(s string) float64 {
	m := moneyRegex.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"02 January 2006",
}

// parseDateLoose tries the date formats seen across the sources and returns
// the date normalized to YYYY-MM-DD, or "" when nothing matches.
func parseDateLoose(s string) string {
	s = cleanText(s)
	if s == "" {
		return ""
	}
	// Drop a trailing time-of-day ("January 2, 2026 10:00 AM")
	if idx := strings.Index(s, " at "); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	// Retry with any trailing tokens stripped one at a time, which handles
	// "January 2, 2026 10:00 AM" and similar suffixes.
	fields := strings.Fields(s)
	for n := len(fields) - 1; n >= 2; n-- {
		candidate := strings.Join(fields[:n], " ")
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	return ""
}

// normalizeState converts a state abbreviation to its full name, returning
// the input unchanged when it is already a full name.
func normalizeState(s string) string {
	s = strings.TrimSpace(s)
	if full, ok := stateAbbrevs[strings.ToUpper(s)]; ok {
		return full
	}
	return s
}
