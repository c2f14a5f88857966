package clinicaldocument

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/auth"
	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
	"github.com/bcgov/healthgateway-sub024/internal/platform/middleware"
)

func newTestServer(repo *mockRepo, p auth.Principal) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	})
	NewHandler(NewService(repo, zerolog.Nop())).RegisterRoutes(e.Group("/v1/api"))
	return e
}

func TestHandler_GetDocuments(t *testing.T) {
	repo := &mockRepo{
		account: withPID("PID-1"),
		data:    PhsaHealthDataResponse{Data: []*PhsaHealthDataEntry{{ID: "d1"}}},
	}
	e := newTestServer(repo, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/ClinicalDocument/HDID1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body phsa.RequestResult[[]ClinicalDocument]
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.TotalResultCount != 1 || body.ResourcePayload[0].ID != "d1" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_GetDocuments_NoPatient(t *testing.T) {
	e := newTestServer(&mockRepo{}, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/ClinicalDocument/HDID1", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetFile(t *testing.T) {
	repo := &mockRepo{account: withPID("PID-1"), media: EncodedMedia{Data: "abc"}}
	e := newTestServer(repo, auth.Principal{Subject: "admin", Roles: []string{auth.RoleAdmin}})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/ClinicalDocument/HDID1/file/f1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body phsa.RequestResult[EncodedMedia]
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ResourcePayload.Data != "abc" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_GetFile_Missing(t *testing.T) {
	repo := &mockRepo{account: withPID("PID-1"), err: &downstream.Error{Kind: downstream.NotFound}}
	e := newTestServer(repo, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/ClinicalDocument/HDID1/file/f1", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
