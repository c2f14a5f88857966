package clinicaldocument

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	ErrMissingHDID   = errors.New("hdid is required")
	ErrMissingFileID = errors.New("file id is required")
	// ErrNoPatient is returned when PHSA has no patient identity for the HDID.
	ErrNoPatient = errors.New("patient identity not found")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Documents lists the subject's clinical documents in PHSA order.
func (s *Service) Documents(ctx context.Context, hdid string) ([]ClinicalDocument, error) {
	pid, err := s.resolvePID(ctx, hdid)
	if err != nil {
		return nil, err
	}
	data, err := s.repo.HealthData(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("get clinical documents: %w", err)
	}
	return MapHealthData(data), nil
}

// File fetches one document file.
func (s *Service) File(ctx context.Context, hdid, fileID string) (EncodedMedia, error) {
	if fileID == "" {
		return EncodedMedia{}, ErrMissingFileID
	}
	pid, err := s.resolvePID(ctx, hdid)
	if err != nil {
		return EncodedMedia{}, err
	}
	media, err := s.repo.File(ctx, pid, fileID)
	if err != nil {
		return EncodedMedia{}, fmt.Errorf("get clinical document file: %w", err)
	}
	return media, nil
}

func (s *Service) resolvePID(ctx context.Context, hdid string) (string, error) {
	if hdid == "" {
		return "", ErrMissingHDID
	}
	account, err := s.repo.PersonalAccount(ctx, hdid)
	if err != nil {
		return "", fmt.Errorf("get personal account: %w", err)
	}
	pid := account.PID()
	if pid == "" {
		return "", ErrNoPatient
	}
	s.logger.Debug().Str("pid", pid).Msg("pid resolved")
	return pid, nil
}
