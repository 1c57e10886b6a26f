package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		path string
		skip bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/ready", true},
		{"/api/mappings", false},
		{"/api/convert/patient-to-fhir", false},
		{"/", false},
	}

	e := echo.New()
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath(tt.path)
		if got := AuthSkipper(c); got != tt.skip {
			t.Errorf("AuthSkipper(%q) = %v, want %v", tt.path, got, tt.skip)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/health") {
		t.Error("expected /health to be public")
	}
	if IsPublicPath("/api/registry/stats") {
		t.Error("expected /api/registry/stats to require auth")
	}
}
