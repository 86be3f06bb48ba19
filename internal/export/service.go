package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/store"
)

// ErrProfileNotFound is returned when the requesting account has no profile.
var ErrProfileNotFound = errors.New("profile not found")

// Service loads what Render needs for an account's export request.
type Service struct {
	jobs     ports.JobRepository
	profiles ports.ProfileRepository
	log      *logrus.Entry
}

func NewService(jobs ports.JobRepository, profiles ports.ProfileRepository) *Service {
	return &Service{jobs: jobs, profiles: profiles, log: logger.New().WithField("component", "export")}
}

// Export checks the format and the account's tier before looking the job up, so a
// disallowed format is reported even for a job id that does not exist.
func (s *Service) Export(ctx context.Context, accountID, jobID, format string) (Rendered, error) {
	profile, err := s.profiles.GetProfile(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return Rendered{}, ErrProfileNotFound
	}
	if err != nil {
		return Rendered{}, fmt.Errorf("load profile: %w", err)
	}

	if _, err := Check(profile.Tier, format); err != nil {
		return Rendered{}, err
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && job.AccountID != accountID) {
		return Rendered{}, ErrJobNotFound
	}
	if err != nil {
		return Rendered{}, fmt.Errorf("load job: %w", err)
	}

	out, err := Render(job, profile.Tier, format)
	if err != nil {
		return Rendered{}, err
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "account_id": accountID, "format": format, "bytes": len(out.Body)}).Info("export rendered")
	return out, nil
}
