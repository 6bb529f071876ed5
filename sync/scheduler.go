package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/robfig/cron/v3"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

const (
	// defaultSchedule runs the pipeline at the top of every hour
	defaultSchedule = "0 * * * *"
	// defaultLookbackMinutes overlaps consecutive runs so a slow or failed
	// run cannot open a gap in the modification-time window; the engine's
	// dedup makes the overlap harmless
	defaultLookbackMinutes = 90
	// scheduledRunTimeout bounds a timer-triggered run
	scheduledRunTimeout = 30 * time.Minute
)

// Scheduler fires the enrollment pipeline on a cron interval
type Scheduler struct {
	app      core.App
	cron     *cron.Cron
	runner   *Runner
	lookback time.Duration
	mu       sync.Mutex
	running  bool
}

// NewScheduler builds the scheduler and the full pipeline behind it from
// environment configuration
func NewScheduler(app core.App) (*Scheduler, error) {
	apiKey := os.Getenv("COMMERCE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing required commerce configuration: [COMMERCE_API_KEY]")
	}

	client, err := commerce.NewClient(&commerce.Config{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating commerce client: %w", err)
	}

	lookback := time.Duration(defaultLookbackMinutes) * time.Minute
	if lookbackStr := os.Getenv("ENROLLMENT_LOOKBACK_MINUTES"); lookbackStr != "" {
		if minutes, err := strconv.Atoi(lookbackStr); err == nil && minutes > 0 {
			lookback = time.Duration(minutes) * time.Minute
		} else {
			slog.Error("Failed to parse ENROLLMENT_LOOKBACK_MINUTES", "value", lookbackStr)
		}
	}

	engine := NewEngine(
		NewStudentStore(app),
		NewProvisioner(app),
		NewNotifier(app, os.Getenv("PORTAL_URL")),
	)

	return &Scheduler{
		app:      app,
		cron:     cron.New(),
		runner:   NewRunner(client, engine),
		lookback: lookback,
	}, nil
}

// Start registers the cron entry and starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if err := ensureStudentsCollection(s.app); err != nil {
		return err
	}

	schedule := os.Getenv("ENROLLMENT_SYNC_SCHEDULE")
	if schedule == "" {
		schedule = defaultSchedule
	}

	if _, err := s.cron.AddFunc(schedule, s.runScheduledSync); err != nil {
		return fmt.Errorf("adding sync schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.running = true

	slog.Info("Enrollment sync scheduler started", "schedule", schedule, "lookback", s.lookback)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("Stopping enrollment sync scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	slog.Info("Enrollment sync scheduler stopped")
}

// runScheduledSync is the timer path: it only logs its outcome and never
// throws past this boundary
func (s *Scheduler) runScheduledSync() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()

	result, err := s.runner.RunLookback(ctx, s.lookback)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Info("Skipping scheduled sync, run already in progress")
	case err != nil:
		slog.Error("Scheduled enrollment sync failed", "error", err)
	default:
		slog.Info("Scheduled enrollment sync completed",
			"orders", result.OrdersFetched,
			"courses", result.CoursesMapped,
			"persisted", result.CoursesPersisted)
	}
}

// GetRunner returns the pipeline runner for the manual trigger surface
func (s *Scheduler) GetRunner() *Runner {
	return s.runner
}

// Lookback returns the configured default lookback window
func (s *Scheduler) Lookback() time.Duration {
	return s.lookback
}
