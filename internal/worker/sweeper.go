// Package worker runs background jobs outside the request path.
package worker

import (
	"context"
	"time"

	"github.com/HammerMeetNail/penpals/internal/logging"
	"github.com/HammerMeetNail/penpals/internal/metrics"
)

// LetterDeliverer delivers letters whose delivery time is at or before now
// and reports how many were delivered.
type LetterDeliverer interface {
	DeliverDue(ctx context.Context, now time.Time) (int, error)
}

// LetterSweeper periodically delivers due letters. It sweeps once on start so
// letters that came due while the process was down go out immediately.
type LetterSweeper struct {
	letters  LetterDeliverer
	interval time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

func NewLetterSweeper(letters LetterDeliverer, interval time.Duration) *LetterSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &LetterSweeper{
		letters:  letters,
		interval: interval,
		now:      time.Now,
		logger:   logging.Default.WithField("component", "letter_sweeper"),
	}
}

// Run sweeps until ctx is cancelled.
func (s *LetterSweeper) Run(ctx context.Context) {
	s.logger.Info("Letter sweeper started", map[string]interface{}{"interval": s.interval.String()})
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Letter sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one delivery pass and returns the number of letters delivered.
func (s *LetterSweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	delivered, err := s.letters.DeliverDue(ctx, s.now())
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	metrics.LettersDelivered.Add(float64(delivered))

	if err != nil {
		if ctx.Err() != nil {
			return delivered
		}
		metrics.SweepFailures.Inc()
		s.logger.Error("Letter sweep failed", map[string]interface{}{
			"delivered": delivered,
			"error":     err.Error(),
		})
		return delivered
	}

	if delivered > 0 {
		s.logger.Info("Letters delivered", map[string]interface{}{"count": delivered})
	}
	return delivered
}
