package clinicaldocument

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
)

// Repository reads clinical documents from PHSA.
type Repository interface {
	PersonalAccount(ctx context.Context, hdid string) (PersonalAccount, error)
	HealthData(ctx context.Context, pid string) (PhsaHealthDataResponse, error)
	File(ctx context.Context, pid, fileID string) (EncodedMedia, error)
}

// clinicalDocumentCategory selects clinical documents from PHSA health data.
const clinicalDocumentCategory = "4"

type Operation int

const (
	OpPersonalAccount Operation = iota
	OpHealthData
	OpFile
)

func (op Operation) Descriptor() downstream.Descriptor {
	switch op {
	case OpPersonalAccount:
		return downstream.Descriptor{
			Name:                "personal_account",
			Method:              http.MethodGet,
			Route:               "/PersonalAccount/{hdid}",
			NoContentIsNotFound: true,
		}
	case OpHealthData:
		return downstream.Descriptor{
			Name:   "health_data",
			Method: http.MethodGet,
			Route:  "/patient/{pid}/health-data",
			Query:  url.Values{"Categories": {clinicalDocumentCategory}},
		}
	case OpFile:
		return downstream.Descriptor{
			Name:                "file",
			Method:              http.MethodGet,
			Route:               "/patient/{pid}/file/{fileId}",
			NoContentIsNotFound: true,
		}
	default:
		panic(fmt.Sprintf("clinicaldocument: unknown operation %d", op))
	}
}

type PHSARepository struct {
	client phsa.Caller
}

func NewPHSARepository(client phsa.Caller) *PHSARepository {
	return &PHSARepository{client: client}
}

func (r *PHSARepository) PersonalAccount(ctx context.Context, hdid string) (PersonalAccount, error) {
	var out PersonalAccount
	err := r.client.Do(ctx, OpPersonalAccount.Descriptor(), downstream.Params{
		Path: map[string]string{"hdid": hdid},
	}, &out)
	return out, err
}

func (r *PHSARepository) HealthData(ctx context.Context, pid string) (PhsaHealthDataResponse, error) {
	var out PhsaHealthDataResponse
	err := r.client.Do(ctx, OpHealthData.Descriptor(), downstream.Params{
		Path: map[string]string{"pid": pid},
	}, &out)
	return out, err
}

func (r *PHSARepository) File(ctx context.Context, pid, fileID string) (EncodedMedia, error) {
	var out EncodedMedia
	err := r.client.Do(ctx, OpFile.Descriptor(), downstream.Params{
		Path: map[string]string{"pid": pid, "fileId": fileID},
	}, &out)
	return out, err
}
