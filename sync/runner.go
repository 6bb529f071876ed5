package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

// Run outcome states
const (
	statusRunning = "running"
	statusSuccess = "success"
	statusFailed  = "failed"
)

// ErrRunInProgress is returned when a trigger loses the single-flight race
// against a concurrent run
var ErrRunInProgress = errors.New("enrollment sync already in progress")

// OrderSource is the upstream commerce order fetch surface
type OrderSource interface {
	FetchOrders(ctx context.Context, modifiedAfter, modifiedBefore time.Time) ([]commerce.Order, error)
}

// Status describes one pipeline run for the status endpoint
type Status struct {
	Status    string         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Error     string         `json:"error,omitempty"`
	Window    [2]time.Time   `json:"window"`
	Summary   RunResult      `json:"summary"`
	Stats     ReconcileStats `json:"stats"`
}

// RunResult is the summary returned to the manual trigger caller
type RunResult struct {
	OrdersFetched    int `json:"orders_fetched"`
	CoursesMapped    int `json:"courses_mapped"`
	CoursesPersisted int `json:"courses_persisted"`
	DurationSeconds  int `json:"duration_seconds"`
}

// Runner executes the full pipeline: fetch orders, map to course records,
// reconcile into the student store. Runs are single-flight: the store and
// the provisioning system are shared, so overlapping timer and manual
// triggers must not interleave.
type Runner struct {
	orders OrderSource
	engine *Engine

	runMu    sync.Mutex // held for the duration of one run
	statusMu sync.RWMutex
	status   *Status
}

// NewRunner creates a pipeline runner
func NewRunner(orders OrderSource, engine *Engine) *Runner {
	return &Runner{
		orders: orders,
		engine: engine,
	}
}

// Run executes one pipeline pass over the given modification-time window.
// It returns ErrRunInProgress when another run holds the lock. Upstream
// fetch and store commit failures are fatal and propagated; everything
// smaller isolates inside the pipeline.
func (r *Runner) Run(ctx context.Context, modifiedAfter, modifiedBefore time.Time) (result *RunResult, err error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	status := &Status{
		Status:    statusRunning,
		StartTime: time.Now(),
		Window:    [2]time.Time{modifiedAfter, modifiedBefore},
	}
	r.setStatus(status)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Enrollment sync panicked", "panic", rec)
			err = fmt.Errorf("panic: %v", rec)
		}
		r.finishStatus(status, result, err)
	}()

	slog.Info("Starting enrollment sync",
		"modifiedAfter", modifiedAfter.UTC().Format(time.RFC3339),
		"modifiedBefore", modifiedBefore.UTC().Format(time.RFC3339))

	orders, err := r.orders.FetchOrders(ctx, modifiedAfter, modifiedBefore)
	if err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}

	records := processOrders(orders)
	slog.Info("Mapped orders to course records", "orders", len(orders), "courses", len(records))

	persisted, err := r.engine.Reconcile(ctx, records)
	if err != nil {
		return nil, err
	}

	result = &RunResult{
		OrdersFetched:    len(orders),
		CoursesMapped:    len(records),
		CoursesPersisted: persisted,
	}
	return result, nil
}

// RunLookback runs the pipeline over the last lookback duration ending now
func (r *Runner) RunLookback(ctx context.Context, lookback time.Duration) (*RunResult, error) {
	now := time.Now()
	return r.Run(ctx, now.Add(-lookback), now)
}

// LastStatus returns a copy of the most recent run status, or nil when no
// run has happened yet
func (r *Runner) LastStatus() *Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()

	if r.status == nil {
		return nil
	}
	statusCopy := *r.status
	return &statusCopy
}

// IsRunning reports whether a run currently holds the single-flight lock
func (r *Runner) IsRunning() bool {
	if r.runMu.TryLock() {
		r.runMu.Unlock()
		return false
	}
	return true
}

func (r *Runner) setStatus(status *Status) {
	r.statusMu.Lock()
	r.status = status
	r.statusMu.Unlock()
}

func (r *Runner) finishStatus(status *Status, result *RunResult, err error) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()

	endTime := time.Now()
	status.EndTime = &endTime
	status.Stats = r.engine.Stats

	if result != nil {
		status.Summary = *result
		status.Summary.DurationSeconds = int(endTime.Sub(status.StartTime).Seconds())
	}

	if err != nil {
		status.Status = statusFailed
		status.Error = err.Error()
	} else {
		status.Status = statusSuccess
	}
}
