package api

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/david/auction-analyzer/internal/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return NewServer(nil, cfg)
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"mock,sheriff", []string{"mock", "sheriff"}},
		{" mock , sheriff ", []string{"mock", "sheriff"}},
		{"mock,,", []string{"mock"}},
		{"", nil},
	}
	for _, tc := range cases {
		if got := splitCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("splitCSV(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestAdminRoutesRejectMissingSecret(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?sources=mock", nil)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin secret, got %d", rec.Code)
	}
}

func TestAdminRoutesRejectWrongSecret(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?sources=mock", nil)
	req.Header.Set("X-Admin-Secret", "definitely-wrong")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong secret, got %d", rec.Code)
	}
}
