package laboratory

import (
	"context"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
)

// Repository reads laboratory records for a subject.
type Repository interface {
	Covid19Orders(ctx context.Context, hdid string) (phsa.Result[[]*PhsaCovid19Order], error)
	LaboratorySummary(ctx context.Context, hdid string) (phsa.Result[*PhsaLaboratorySummary], error)
	Report(ctx context.Context, reportID, hdid string, isCovid19 bool) (PhsaReportDocument, error)
}
