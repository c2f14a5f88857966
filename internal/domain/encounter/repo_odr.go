package encounter

import (
	"context"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
)

// ODRServiceName labels ODR calls in errors, logs and metrics.
const ODRServiceName = "odr"

// DefaultMspVisitsPath is the ODR route for MSP visit history.
const DefaultMspVisitsPath = "/odr/mspVisits"

type ODRRepository struct {
	client phsa.Caller
	path   string
}

// NewODRRepository posts visit history queries to path on client. An empty
// path means DefaultMspVisitsPath.
func NewODRRepository(client phsa.Caller, path string) *ODRRepository {
	if path == "" {
		path = DefaultMspVisitsPath
	}
	return &ODRRepository{client: client, path: path}
}

func (r *ODRRepository) MspVisits(ctx context.Context, req MspVisitHistory) (*MspVisitHistoryResponse, error) {
	d := OpMspVisits.Descriptor()
	d.Route = r.path

	var out MspVisitHistory
	if err := r.client.Do(ctx, d, downstream.Params{Body: req}, &out); err != nil {
		return nil, err
	}
	return out.Response, nil
}
