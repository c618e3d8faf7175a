package sources

import "testing"

func TestParseSheriffAddress(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		street string
		city   string
		zip    string
	}{
		{
			name:   "no comma before city",
			raw:    "428 SE Warsaw St. Redmond, OR 97756",
			street: "428 SE Warsaw St.",
			city:   "Redmond",
			zip:    "97756",
		},
		{
			name:   "comma separated",
			raw:    "1500 Main St, Salem, OR 97301",
			street: "1500 Main St",
			city:   "Salem",
			zip:    "97301",
		},
		{
			name:   "zip+4 trimmed",
			raw:    "22 Oak Ave Bend, Oregon 97701-1234",
			street: "22 Oak Ave",
			city:   "Bend",
			zip:    "97701",
		},
		{
			name:   "two word city",
			raw:    "841 Juniper Rd La Pine OR 97739",
			street: "841 Juniper Rd",
			city:   "La Pine",
			zip:    "97739",
		},
		{
			name:   "no zip no state",
			raw:    "77 River Loop Eugene",
			street: "77 River Loop",
			city:   "Eugene",
			zip:    "",
		},
		{
			name:   "unknown city falls back to last word",
			raw:    "12 Dusty Trail Antelope",
			street: "12 Dusty Trail",
			city:   "Antelope",
			zip:    "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			street, city, zip := parseSheriffAddress(tc.raw)
			if street != tc.street || city != tc.city || zip != tc.zip {
				t.Fatalf("got (%q, %q, %q), want (%q, %q, %q)",
					street, city, zip, tc.street, tc.city, tc.zip)
			}
		})
	}
}

func TestPlaintiffOf(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"LAKEVIEW LOAN SERVICING, LLC vs. UNKNOWN HEIRS OF JOHN DOE", "Lakeview Loan Servicing, LLC"},
		{"WELLS FARGO BANK NA v JANE DOE", "Wells Fargo Bank NA"},
		{"US BANK TRUST VS SMITH", "Us Bank Trust"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := plaintiffOf(tc.in); got != tc.want {
			t.Fatalf("plaintiffOf(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSmartTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SECRETARY OF HUD", "Secretary Of HUD"},
		{"ACME HOLDINGS, LLC,", "Acme Holdings, LLC,"},
		{"FREEDOM MORTGAGE CORP", "Freedom Mortgage CORP"},
	}
	for _, tc := range cases {
		if got := smartTitle(tc.in); got != tc.want {
			t.Fatalf("smartTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
