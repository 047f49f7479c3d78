// Package scheduler hosts the periodic lifecycle sweep on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

// Scheduler runs the account-expiry sweep on the configured cron
// expression (standard 5-field spec).
type Scheduler struct {
	cron           *cron.Cron
	lifecycle      ports.LifecycleService
	warnWindowDays int
	log            zerolog.Logger
}

func New(lifecycle ports.LifecycleService, warnWindowDays int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:           cron.New(),
		lifecycle:      lifecycle,
		warnWindowDays: warnWindowDays,
		log:            log,
	}
}

// Start registers the sweep under schedule and launches the cron loop.
// The background context keeps an in-flight sweep from being cut off
// mid-user; Stop waits for it instead.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		result, err := s.lifecycle.RunSweep(context.Background(), s.warnWindowDays)
		if err != nil {
			s.log.Error().Err(err).Msg("scheduled sweep failed")
			return
		}
		s.log.Info().
			Int("examined", result.Examined).
			Int("warned", result.Warned).
			Int("disabled", result.Disabled).
			Int("failed", result.Failed).
			Msg("scheduled sweep finished")
	})
	if err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Msg("lifecycle sweep scheduled")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
