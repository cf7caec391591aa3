package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper deletes expired records once immediately and then every
// interval until ctx is cancelled. It always returns nil so it can run under
// an errgroup next to the HTTP server.
//
// Overlapping sweeps from several processes are harmless: the delete only
// matches records that are already expired.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = s.cfg.SweepInterval
	}
	if interval <= 0 {
		interval = time.Hour
	}

	s.sweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	timeout := s.cfg.SweepTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := s.SweepExpired(tickCtx, time.Now().UTC())
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("session.sweep.failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.log.Info("session.sweep.done", zap.Int64("deleted", n))
	}
}
