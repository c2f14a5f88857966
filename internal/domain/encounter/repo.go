package encounter

import (
	"context"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
)

// Repository reads encounter records for a subject.
type Repository interface {
	HospitalVisits(ctx context.Context, hdid string) (phsa.Result[[]*PhsaHospitalVisit], error)
}

// MspVisitRepository reads MSP visit history.
type MspVisitRepository interface {
	MspVisits(ctx context.Context, req MspVisitHistory) (*MspVisitHistoryResponse, error)
}
