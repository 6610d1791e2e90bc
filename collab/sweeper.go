package collab

import (
	"context"
	"time"

	"eventhub/api/logger"
)

// Locker provides a best-effort cross-instance lease. Correctness does not
// depend on it; guarded updates already make concurrent sweeps safe.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

const sweepLockKey = "collab:expiry-sweep"

type Sweeper struct {
	service  *Service
	locker   Locker
	interval time.Duration
	log      *logger.Logger
}

// NewSweeper returns a sweeper running every interval. locker may be nil.
func NewSweeper(service *Service, locker Locker, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		locker:   locker,
		interval: interval,
		log:      log.With("component", "ExpirySweeper"),
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("Expiry sweeper disabled")
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info("Expiry sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass and returns how many collaborations expired.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
		if err != nil {
			// Fall through: the sweep is idempotent without the lease.
			s.log.Warn("Sweep lock unavailable, sweeping anyway", "error", err)
		} else if !ok {
			s.log.Debug("Another instance holds the sweep lock")
			return 0
		} else {
			defer release()
		}
	}
	n, err := s.service.ExpireStale(ctx)
	if err != nil {
		s.log.Error("Expiry sweep failed", "error", err, "expired", n)
		return n
	}
	if n > 0 {
		s.log.Info("Expired stale collaborations", "count", n)
	}
	return n
}
