package encounter

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

// Operation names a downstream encounter call.
type Operation int

const (
	OpHospitalVisits Operation = iota
	// OpMspVisits goes to ODR, not PHSA.
	OpMspVisits
)

// Descriptor returns the request shape of op.
func (op Operation) Descriptor() downstream.Descriptor {
	switch op {
	case OpHospitalVisits:
		return downstream.Descriptor{Name: "hospital_visits", Method: http.MethodGet, Route: "/api/v1/HospitalVisits"}
	case OpMspVisits:
		return downstream.Descriptor{Name: "msp_visits", Method: http.MethodPost, Route: DefaultMspVisitsPath}
	default:
		panic(fmt.Sprintf("encounter: unknown operation %d", op))
	}
}

type PHSARepository struct {
	client    phsa.Caller
	fetchSize int
}

func NewPHSARepository(client phsa.Caller, fetchSize int) *PHSARepository {
	if fetchSize <= 0 {
		fetchSize = DefaultFetchSize
	}
	return &PHSARepository{client: client, fetchSize: fetchSize}
}

func (r *PHSARepository) HospitalVisits(ctx context.Context, hdid string) (phsa.Result[[]*PhsaHospitalVisit], error) {
	var out phsa.Result[[]*PhsaHospitalVisit]
	err := r.client.Do(ctx, OpHospitalVisits.Descriptor(), downstream.Params{
		Query: url.Values{
			"limit":       {strconv.Itoa(r.fetchSize)},
			"subjectHdid": {hdid},
		},
	}, &out)
	return out, err
}
