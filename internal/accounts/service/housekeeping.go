package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/finlit/platform/internal/accounts/store"
)

// HousekeepingService periodically purges expired and consumed OTP
// challenges so the table does not grow without bound.
type HousekeepingService struct {
	Challenges store.OTPChallenges
	Logger     *slog.Logger
	Interval   time.Duration

	// Retention keeps dead challenges around for a while before purging.
	Retention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to 1 hour.
func NewHousekeepingService(challenges store.OTPChallenges, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Challenges: challenges,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs cleanup now and then on every tick until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs a single purge pass.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.Challenges.DeleteExpired(ctx, time.Now().UTC().Add(-s.Retention))
	if err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
		return
	}
	s.Logger.Info("housekeeping cleanup completed", "challenges_deleted", n)
}
