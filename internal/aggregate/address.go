// Package aggregate orchestrates the source adapters and folds their raw
// candidates into one deduplicated, merged property set.
package aggregate

import (
	"regexp"
	"strings"
)

// Street suffix and directional abbreviations fold to one canonical token so
// "123 Main St" and "123 main street" key identically. Folding is kept
// deliberately conservative: unit designators are dropped together with
// their number, but house numbers and street names are never touched, since
// over-aggressive normalization would false-merge distinct properties on the
// same street.
var addressTokenFold = map[string]string{
	"street": "st", "str": "st",
	"avenue": "ave", "av": "ave",
	"boulevard": "blvd", "boul": "blvd",
	"drive": "dr", "drv": "dr",
	"lane": "ln",
	"road": "rd",
	"court": "ct",
	"place": "pl",
	"circle": "cir",
	"highway": "hwy",
	"parkway": "pkwy",
	"terrace": "ter",
	"trail": "trl",
	"way": "way",

	"north": "n", "south": "s", "east": "e", "west": "w",
	"northeast": "ne", "northwest": "nw",
	"southeast": "se", "southwest": "sw",
}

// Unit designators and the token following them are dropped from the key:
// "Apt 4B" on one source and nothing on another is still the same property.
var unitDesignators = map[string]bool{
	"apt": true, "apartment": true, "unit": true, "ste": true,
	"suite": true, "lot": true, "trlr": true, "bldg": true, "fl": true,
	"floor": true, "rm": true, "room": true,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9# ]+`)

// CanonicalKey normalizes an address into the identity key used for
// cross-source dedup: lower-case, punctuation stripped, whitespace
// collapsed, suffix/directional variants folded, unit designators dropped.
func CanonicalKey(address string) string {
	s := strings.ToLower(strings.TrimSpace(address))
	if s == "" {
		return ""
	}
	s = nonAlnum.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	skipNext := false
	for _, tok := range fields {
		if skipNext {
			skipNext = false
			continue
		}
		if strings.HasPrefix(tok, "#") {
			continue
		}
		if unitDesignators[tok] {
			skipNext = true
			continue
		}
		if folded, ok := addressTokenFold[tok]; ok {
			tok = folded
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}
