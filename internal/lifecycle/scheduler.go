package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs the lifecycle evaluation on a fixed cadence. It is the only
// persistent background job in the process besides the cache sweep.
type Scheduler struct {
	manager *Manager
	logger  zerolog.Logger
	period  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(cfg *Config, manager *Manager, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		manager: manager,
		logger:  logger.With().Str("component", "lifecycle-scheduler").Logger(),
		period:  time.Duration(cfg.Automation.RunFrequencyHours) * time.Hour,
	}
}

// Start launches the periodic evaluation loop. The first run happens one
// full period after startup so a restart storm cannot trigger back-to-back
// evaluations.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()

		s.logger.Info().Dur("period", s.period).Msg("scheduler started")
		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.manager.Run(ctx); err != nil {
					s.logger.Error().Err(err).Msg("scheduled lifecycle run failed")
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
