package aggregate

import "testing"

func TestCanonicalKey(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		same bool
	}{
		{"suffix variants", "123 Main St", "123 main street", true},
		{"punctuation", "428 S.E. Warsaw St.", "428 SE Warsaw St", true},
		{"directional variants", "500 Northeast Oak Avenue", "500 NE Oak Ave", true},
		{"unit dropped", "123 Main St Apt 4B", "123 Main St", true},
		{"hash unit dropped", "123 Main St #12", "123 Main St", true},
		{"different house number", "123 Main St", "125 Main St", false},
		{"different street", "123 Main St", "123 Oak St", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ka, kb := CanonicalKey(tc.a), CanonicalKey(tc.b)
			if (ka == kb) != tc.same {
				t.Fatalf("CanonicalKey(%q)=%q vs CanonicalKey(%q)=%q, same=%v want %v",
					tc.a, ka, tc.b, kb, ka == kb, tc.same)
			}
		})
	}
}

func TestCanonicalKeyEmpty(t *testing.T) {
	if CanonicalKey("   ") != "" {
		t.Fatal("blank address must produce an empty key")
	}
}
