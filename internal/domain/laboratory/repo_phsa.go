package laboratory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
)

// DefaultFetchSize is the PHSA page size when none is configured.
const DefaultFetchSize = 25

// Operation names a PHSA laboratory call.
type Operation int

const (
	OpCovid19Orders Operation = iota
	OpLaboratorySummary
	OpCovid19Report
	OpLaboratoryReport
)

// Descriptor returns the request shape of op.
func (op Operation) Descriptor() downstream.Descriptor {
	switch op {
	case OpCovid19Orders:
		return downstream.Descriptor{Name: "covid19_orders", Method: http.MethodGet, Route: "/api/v1/Lab/Covid19Orders"}
	case OpLaboratorySummary:
		return downstream.Descriptor{Name: "laboratory_summary", Method: http.MethodGet, Route: "/api/v1/Lab/Plis/Summary"}
	case OpCovid19Report:
		return downstream.Descriptor{
			Name:                "covid19_report",
			Method:              http.MethodGet,
			Route:               "/api/v1/Lab/Covid19Orders/LabReports/{id}/LabReportDocument",
			NoContentIsNotFound: true,
		}
	case OpLaboratoryReport:
		return downstream.Descriptor{
			Name:                "laboratory_report",
			Method:              http.MethodGet,
			Route:               "/api/v1/Lab/Plis/LabReports/{id}/LabReportDocument",
			NoContentIsNotFound: true,
		}
	default:
		panic(fmt.Sprintf("laboratory: unknown operation %d", op))
	}
}

// PHSARepository reads laboratory records from PHSA.
type PHSARepository struct {
	client    phsa.Caller
	fetchSize int
}

// NewPHSARepository returns a Repository over client. fetchSize <= 0 uses
// DefaultFetchSize.
func NewPHSARepository(client phsa.Caller, fetchSize int) *PHSARepository {
	if fetchSize <= 0 {
		fetchSize = DefaultFetchSize
	}
	return &PHSARepository{client: client, fetchSize: fetchSize}
}

// FetchSize is the page size sent to PHSA.
func (r *PHSARepository) FetchSize() int { return r.fetchSize }

func (r *PHSARepository) Covid19Orders(ctx context.Context, hdid string) (phsa.Result[[]*PhsaCovid19Order], error) {
	var out phsa.Result[[]*PhsaCovid19Order]
	err := r.client.Do(ctx, OpCovid19Orders.Descriptor(), downstream.Params{
		Query: url.Values{
			"limit":       {strconv.Itoa(r.fetchSize)},
			"subjectHdid": {hdid},
		},
	}, &out)
	return out, err
}

func (r *PHSARepository) LaboratorySummary(ctx context.Context, hdid string) (phsa.Result[*PhsaLaboratorySummary], error) {
	var out phsa.Result[*PhsaLaboratorySummary]
	err := r.client.Do(ctx, OpLaboratorySummary.Descriptor(), downstream.Params{
		Query: url.Values{"subjectHdid": {hdid}},
	}, &out)
	return out, err
}

func (r *PHSARepository) Report(ctx context.Context, reportID, hdid string, isCovid19 bool) (PhsaReportDocument, error) {
	op := OpLaboratoryReport
	if isCovid19 {
		op = OpCovid19Report
	}
	var out PhsaReportDocument
	err := r.client.Do(ctx, op.Descriptor(), downstream.Params{
		Path:  map[string]string{"id": reportID},
		Query: url.Values{"subjectHdid": {hdid}},
	}, &out)
	return out, err
}
