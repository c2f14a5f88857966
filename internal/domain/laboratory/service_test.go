package laboratory

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
)

// -- Mock Repository --

type mockRepo struct {
	orders     phsa.Result[[]*PhsaCovid19Order]
	summary    phsa.Result[*PhsaLaboratorySummary]
	report     PhsaReportDocument
	err        error
	lastHDID   string
	lastReport string
	lastCovid  bool
}

func (m *mockRepo) Covid19Orders(_ context.Context, hdid string) (phsa.Result[[]*PhsaCovid19Order], error) {
	m.lastHDID = hdid
	return m.orders, m.err
}

func (m *mockRepo) LaboratorySummary(_ context.Context, hdid string) (phsa.Result[*PhsaLaboratorySummary], error) {
	m.lastHDID = hdid
	return m.summary, m.err
}

func (m *mockRepo) Report(_ context.Context, reportID, hdid string, isCovid19 bool) (PhsaReportDocument, error) {
	m.lastHDID, m.lastReport, m.lastCovid = hdid, reportID, isCovid19
	return m.report, m.err
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, zerolog.Nop())
}

func TestService_Covid19Orders(t *testing.T) {
	repo := &mockRepo{orders: phsa.Result[[]*PhsaCovid19Order]{
		Result: []*PhsaCovid19Order{{MessageID: "m1"}, {MessageID: "m2"}},
	}}
	svc := newTestService(repo)

	got, err := svc.Covid19Orders(context.Background(), "HDID1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastHDID != "HDID1" {
		t.Errorf("expected HDID1 forwarded, got %q", repo.lastHDID)
	}
	if len(got.Covid19Orders) != 2 || got.Covid19Orders[0].MessageID != "m1" {
		t.Errorf("unexpected orders %+v", got.Covid19Orders)
	}
}

func TestService_MissingHDID(t *testing.T) {
	svc := newTestService(&mockRepo{})
	ctx := context.Background()

	if _, err := svc.Covid19Orders(ctx, ""); !errors.Is(err, ErrMissingHDID) {
		t.Errorf("Covid19Orders: expected ErrMissingHDID, got %v", err)
	}
	if _, err := svc.LaboratoryOrders(ctx, ""); !errors.Is(err, ErrMissingHDID) {
		t.Errorf("LaboratoryOrders: expected ErrMissingHDID, got %v", err)
	}
	if _, err := svc.Report(ctx, "R1", "", false); !errors.Is(err, ErrMissingHDID) {
		t.Errorf("Report: expected ErrMissingHDID, got %v", err)
	}
	if _, err := svc.Report(ctx, "", "HDID1", false); !errors.Is(err, ErrMissingReportID) {
		t.Errorf("Report: expected ErrMissingReportID, got %v", err)
	}
}

func TestService_PropagatesDownstreamErrors(t *testing.T) {
	dsErr := &downstream.Error{Kind: downstream.Timeout, Service: "phsa"}
	svc := newTestService(&mockRepo{err: dsErr})

	_, err := svc.LaboratoryOrders(context.Background(), "HDID1")
	if !downstream.IsTimeout(err) {
		t.Errorf("expected wrapped timeout, got %v", err)
	}
}

func TestService_ReportNotFound(t *testing.T) {
	svc := newTestService(&mockRepo{err: &downstream.Error{Kind: downstream.NotFound}})

	_, err := svc.Report(context.Background(), "R1", "HDID1", true)
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
	if !downstream.IsNotFound(err) {
		t.Error("expected downstream error to stay in the chain")
	}
}

func TestService_Report(t *testing.T) {
	repo := &mockRepo{report: PhsaReportDocument{MediaType: "application/pdf", Data: "abc"}}
	svc := newTestService(repo)

	got, err := svc.Report(context.Background(), "R1", "HDID1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Report != "abc" || !repo.lastCovid || repo.lastReport != "R1" {
		t.Errorf("unexpected report %+v (covid=%v id=%s)", got, repo.lastCovid, repo.lastReport)
	}
}
