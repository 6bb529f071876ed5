package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// manualRunTimeout bounds a manually triggered run. The run executes on an
// independent context so a dropped client connection cannot cancel a commit
// in flight.
const manualRunTimeout = 15 * time.Minute

// requireAuth wraps a handler function to require authentication
func requireAuth(handler func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			return apis.NewUnauthorizedError("Authentication required", nil)
		}
		return handler(e)
	}
}

// InitializeEnrollmentService sets up the enrollment sync API endpoints
// against an already-constructed scheduler
func InitializeEnrollmentService(e *core.ServeEvent, scheduler *Scheduler) error {
	// Health check (unauthenticated, used by the deployment probe)
	e.Router.GET("/api/custom/enrollment/health", func(e *core.RequestEvent) error {
		return handleHealth(e, scheduler)
	})

	// Manual sync trigger. Accepts either ?lookbackMinutes=N or an explicit
	// ?start=RFC3339&end=RFC3339 window; runs synchronously and returns the
	// processed-count summary.
	e.Router.POST("/api/custom/enrollment/sync", requireAuth(func(e *core.RequestEvent) error {
		return handleManualSync(e, scheduler)
	}))

	// Last/current run status
	e.Router.GET("/api/custom/enrollment/status", requireAuth(func(e *core.RequestEvent) error {
		return handleSyncStatus(e, scheduler)
	}))

	return nil
}

// handleHealth reports liveness and the last run outcome
func handleHealth(e *core.RequestEvent, scheduler *Scheduler) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"running": scheduler.GetRunner().IsRunning(),
	}
	if last := scheduler.GetRunner().LastStatus(); last != nil {
		resp["last_run"] = last.Status
		resp["last_run_started"] = last.StartTime
	}
	return e.JSON(http.StatusOK, resp)
}

// handleSyncStatus returns the last or current run status
func handleSyncStatus(e *core.RequestEvent, scheduler *Scheduler) error {
	status := scheduler.GetRunner().LastStatus()
	if status == nil {
		return e.JSON(http.StatusOK, map[string]interface{}{"status": "never_run"})
	}
	return e.JSON(http.StatusOK, status)
}

// handleManualSync runs the pipeline synchronously and surfaces a
// deterministic success/failure result to the caller
func handleManualSync(e *core.RequestEvent, scheduler *Scheduler) error {
	modifiedAfter, modifiedBefore, err := parseSyncWindow(e.Request.URL.Query(), scheduler.Lookback())
	if err != nil {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), manualRunTimeout)
	defer cancel()

	result, err := scheduler.GetRunner().Run(ctx, modifiedAfter, modifiedBefore)
	switch {
	case errors.Is(err, ErrRunInProgress):
		return e.JSON(http.StatusConflict, map[string]interface{}{
			"error": "enrollment sync already in progress",
		})
	case err != nil:
		return e.JSON(http.StatusBadGateway, map[string]interface{}{
			"error": err.Error(),
		})
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"processed":        result.CoursesPersisted,
		"ordersFetched":    result.OrdersFetched,
		"coursesProcessed": result.CoursesMapped,
	})
}

// parseSyncWindow resolves the request parameters into a modification-time
// window, defaulting to the scheduler's lookback ending now
func parseSyncWindow(query url.Values, defaultLookback time.Duration) (time.Time, time.Time, error) {
	now := time.Now()

	startParam := query.Get("start")
	endParam := query.Get("end")
	if startParam != "" || endParam != "" {
		if startParam == "" || endParam == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("start and end must be provided together")
		}
		start, err := time.Parse(time.RFC3339, startParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %v", err)
		}
		end, err := time.Parse(time.RFC3339, endParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %v", err)
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
		}
		return start, end, nil
	}

	if lookbackParam := query.Get("lookbackMinutes"); lookbackParam != "" {
		minutes, err := strconv.Atoi(lookbackParam)
		if err != nil || minutes <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid lookbackMinutes: %s", lookbackParam)
		}
		return now.Add(-time.Duration(minutes) * time.Minute), now, nil
	}

	return now.Add(-defaultLookback), now, nil
}
