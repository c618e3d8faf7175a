package sources

import "testing"

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"$250,000", 250000},
		{"$1,234,567.89", 1234567.89},
		{"Opening bid: $85,500.00", 85500},
		{"185000", 185000},
		{"no amount here", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := parseMoney(tc.in); got != tc.want {
			t.Fatalf("parseMoney(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDateLoose(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-09-15", "2026-09-15"},
		{"09/15/2026", "2026-09-15"},
		{"9/5/2026", "2026-09-05"},
		{"September 15, 2026", "2026-09-15"},
		{"Sep 15, 2026", "2026-09-15"},
		{"September 15, 2026 10:00 AM", "2026-09-15"},
		{"September 15, 2026 at 10:00 AM", "2026-09-15"},
		{"TBD", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := parseDateLoose(tc.in); got != tc.want {
			t.Fatalf("parseDateLoose(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeState(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"OR", "Oregon"},
		{"or", "Oregon"},
		{"TX", "Texas"},
		{"Oregon", "Oregon"},
		{" WA ", "Washington"},
		{"Narnia", "Narnia"},
	}
	for _, tc := range cases {
		if got := normalizeState(tc.in); got != tc.want {
			t.Fatalf("normalizeState(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	if got := cleanText("  a \n\t b  c "); got != "a b c" {
		t.Fatalf("cleanText: got %q", got)
	}
}

func TestSanitizeDescription(t *testing.T) {
	in := `<p>Fixer <b>upper</b> with potential</p><script>alert(1)</script>`
	got := sanitizeDescription(in)
	if got != "Fixer upper with potential" {
		t.Fatalf("sanitizeDescription: got %q", got)
	}
}
