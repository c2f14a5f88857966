package laboratory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
)

var (
	ErrMissingHDID     = errors.New("hdid is required")
	ErrMissingReportID = errors.New("report id is required")
	// ErrReportNotFound wraps the downstream NotFound for an empty report.
	ErrReportNotFound = errors.New("report not found")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Covid19Orders(ctx context.Context, hdid string) (Covid19OrderResult, error) {
	if hdid == "" {
		return Covid19OrderResult{}, ErrMissingHDID
	}
	raw, err := s.repo.Covid19Orders(ctx, hdid)
	if err != nil {
		return Covid19OrderResult{}, fmt.Errorf("get covid19 orders: %w", err)
	}
	result := MapCovid19Orders(raw)
	if !result.Loaded {
		s.logger.Debug().Int("retry_in_ms", result.RetryIn).Msg("covid19 orders still loading")
	}
	return result, nil
}

func (s *Service) LaboratoryOrders(ctx context.Context, hdid string) (LaboratoryOrderResult, error) {
	if hdid == "" {
		return LaboratoryOrderResult{}, ErrMissingHDID
	}
	raw, err := s.repo.LaboratorySummary(ctx, hdid)
	if err != nil {
		return LaboratoryOrderResult{}, fmt.Errorf("get laboratory summary: %w", err)
	}
	return MapLaboratorySummary(raw), nil
}

func (s *Service) Report(ctx context.Context, reportID, hdid string, isCovid19 bool) (LaboratoryReport, error) {
	switch {
	case hdid == "":
		return LaboratoryReport{}, ErrMissingHDID
	case reportID == "":
		return LaboratoryReport{}, ErrMissingReportID
	}
	doc, err := s.repo.Report(ctx, reportID, hdid, isCovid19)
	if err != nil {
		if downstream.IsNotFound(err) {
			return LaboratoryReport{}, fmt.Errorf("%w: %w", ErrReportNotFound, err)
		}
		return LaboratoryReport{}, fmt.Errorf("get laboratory report: %w", err)
	}
	return MapReport(doc), nil
}
