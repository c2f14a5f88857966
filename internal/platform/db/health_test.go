package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRunChecks(t *testing.T) {
	ok := CheckFunc{Label: "redis", Fn: func(context.Context) error { return nil }}
	bad := CheckFunc{Label: "postgres", Fn: func(context.Context) error { return errors.New("connection refused") }}

	results, healthy := RunChecks(context.Background(), ok, bad)
	if healthy {
		t.Error("expected unhealthy when one check fails")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "postgres" || results[0].Healthy || results[0].Error != "connection refused" {
		t.Errorf("unexpected postgres result: %+v", results[0])
	}
	if results[1].Name != "redis" || !results[1].Healthy {
		t.Errorf("unexpected redis result: %+v", results[1])
	}
}

func TestRunChecks_NoCheckers(t *testing.T) {
	results, healthy := RunChecks(context.Background())
	if !healthy {
		t.Error("expected healthy with no checkers")
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"unhealthy", errors.New("down"), http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			check := CheckFunc{Label: "postgres", Fn: func(context.Context) error { return tt.err }}
			if err := ReadyHandler(time.Second, check)(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("expected status %q, got %v", tt.wantBody, body["status"])
			}
		})
	}
}

func TestReadyHandler_AppliesTimeout(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	slow := CheckFunc{Label: "redis", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	if err := ReadyHandler(20*time.Millisecond, slow)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
