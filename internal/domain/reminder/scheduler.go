package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs periodic jobs. A job never overlaps itself; a run that is
// still busy when the next one is due pushes it back.
type Scheduler struct {
	s      gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{s: s, ctx: ctx, cancel: cancel}, nil
}

// Every registers fn to run at the given interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	j, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { fn(s.ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	log.Printf("Scheduled job %s (%s) with interval %v", name, j.ID(), interval)
	return nil
}

// AddRunner schedules the reminder tick.
func (s *Scheduler) AddRunner(r *Runner, tick time.Duration) error {
	return s.Every("reminders", tick, func(ctx context.Context) {
		if _, err := r.Tick(ctx); err != nil {
			log.Printf("reminder_tick_error err=%v", err)
		}
	})
}

func (s *Scheduler) Start() {
	s.s.Start()
	log.Printf("Scheduler started with %d jobs", len(s.s.Jobs()))
}

func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.s.Shutdown(); err != nil {
		return err
	}
	log.Println("Scheduler stopped")
	return nil
}
