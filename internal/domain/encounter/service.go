package encounter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingHDID = errors.New("hdid is required")
	// ErrMissingPHN is returned when the subject's personal health number is
	// not known to the gateway.
	ErrMissingPHN = errors.New("personal health number is unavailable for subject")
	// ErrMspVisitsUnavailable is returned when no ODR endpoint is configured.
	ErrMspVisitsUnavailable = errors.New("msp visit history is not configured")
)

// mspHistoryStart is the earliest service date requested from ODR.
var mspHistoryStart = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// MspVisitsPageSize asks ODR for the whole history in one page.
const MspVisitsPageSize = 20000

type Service struct {
	repo Repository
	msp  MspVisitRepository
	now  func() time.Time
}

type Option func(*Service)

// WithMspVisits enables MSP visit history through repo.
func WithMspVisits(repo MspVisitRepository) Option {
	return func(s *Service) { s.msp = repo }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) HospitalVisits(ctx context.Context, hdid string) (HospitalVisitResult, error) {
	if hdid == "" {
		return HospitalVisitResult{}, ErrMissingHDID
	}
	raw, err := s.repo.HospitalVisits(ctx, hdid)
	if err != nil {
		return HospitalVisitResult{}, fmt.Errorf("get hospital visits: %w", err)
	}
	return MapHospitalVisits(raw), nil
}

// MspVisits returns the subject's MSP visit history. clientIP is forwarded
// to ODR as the requestor address.
func (s *Service) MspVisits(ctx context.Context, hdid, phn, clientIP string) ([]Encounter, error) {
	if hdid == "" {
		return nil, ErrMissingHDID
	}
	if phn == "" {
		return nil, ErrMissingPHN
	}
	if s.msp == nil {
		return nil, ErrMspVisitsUnavailable
	}
	resp, err := s.msp.MspVisits(ctx, MspVisitHistory{
		ID:            uuid.New(),
		RequestorHDID: hdid,
		RequestorIP:   clientIP,
		Query: OdrHistoryQuery{
			StartDate: mspHistoryStart.Format(time.DateOnly),
			EndDate:   s.now().UTC().Format(time.DateOnly),
			PHN:       phn,
			PageSize:  MspVisitsPageSize,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get msp visits: %w", err)
	}
	return MapMspVisits(resp), nil
}
