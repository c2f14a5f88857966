package laboratory

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
	NewHandler(newTestService(repo), DefaultFetchSize).RegisterRoutes(e.Group("/v1/api"))
	return e
}

func TestHandler_GetLaboratoryOrders(t *testing.T) {
	repo := &mockRepo{summary: phsa.Result[*PhsaLaboratorySummary]{
		Result: &PhsaLaboratorySummary{LabOrders: []*PhsaLaboratoryOrder{{ReportID: "R1"}}},
	}}
	e := newTestServer(repo, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/LaboratoryOrders?hdid=HDID1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body phsa.RequestResult[LaboratoryOrderResult]
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.TotalResultCount != 1 || body.ResourcePayload.LaboratoryOrders[0].ReportID != "R1" {
		t.Errorf("unexpected body %+v", body)
	}
	if body.PageSize != DefaultFetchSize {
		t.Errorf("expected page size %d, got %d", DefaultFetchSize, body.PageSize)
	}
}

func TestHandler_GetCovid19Orders_OtherSubjectForbidden(t *testing.T) {
	e := newTestServer(&mockRepo{}, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/Covid19Orders?hdid=SOMEONE_ELSE", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_GetCovid19Orders_MissingHDID(t *testing.T) {
	e := newTestServer(&mockRepo{}, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/Covid19Orders", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetReport(t *testing.T) {
	repo := &mockRepo{report: PhsaReportDocument{MediaType: "application/pdf", Encoding: "base64", Data: "abc"}}
	e := newTestServer(repo, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/R1/Report?hdid=HDID1&isCovid19=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !repo.lastCovid || repo.lastReport != "R1" {
		t.Errorf("expected covid report R1, got covid=%v id=%s", repo.lastCovid, repo.lastReport)
	}
	var body phsa.RequestResult[LaboratoryReport]
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ResourcePayload.Report != "abc" || body.TotalResultCount != 1 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_GetReport_BadFlag(t *testing.T) {
	e := newTestServer(&mockRepo{}, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/R1/Report?hdid=HDID1&isCovid19=maybe", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetReport_NotFound(t *testing.T) {
	e := newTestServer(&mockRepo{err: &downstream.Error{Kind: downstream.NotFound}}, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/R1/Report?hdid=HDID1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body middleware.ErrorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Message != "report not found" {
		t.Errorf("expected report not found message, got %q", body.Message)
	}
}

func TestHandler_DownstreamTimeoutIs504(t *testing.T) {
	e := newTestServer(&mockRepo{err: &downstream.Error{Kind: downstream.Timeout, Service: "phsa"}}, auth.Principal{Subject: "u1", HDID: "HDID1"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/Laboratory/Covid19Orders?hdid=HDID1", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}
