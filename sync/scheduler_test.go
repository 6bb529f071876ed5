package sync

import (
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/tests"
)

func newSchedulerApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	if err != nil {
		t.Fatalf("Failed to create test app: %v", err)
	}
	t.Cleanup(app.Cleanup)
	return app
}

func TestNewScheduler_MissingAPIKey(t *testing.T) {
	t.Setenv("COMMERCE_API_KEY", "")
	app := newSchedulerApp(t)

	if _, err := NewScheduler(app); err == nil {
		t.Error("expected error when COMMERCE_API_KEY is not set")
	}
}

func TestNewScheduler_LookbackFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{"default when unset", "", 90 * time.Minute},
		{"explicit minutes", "30", 30 * time.Minute},
		{"non-numeric falls back", "soon", 90 * time.Minute},
		{"zero falls back", "0", 90 * time.Minute},
		{"negative falls back", "-10", 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COMMERCE_API_KEY", "test-key")
			t.Setenv("ENROLLMENT_LOOKBACK_MINUTES", tt.envValue)
			app := newSchedulerApp(t)

			scheduler, err := NewScheduler(app)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scheduler.Lookback() != tt.want {
				t.Errorf("Lookback() = %v, want %v", scheduler.Lookback(), tt.want)
			}
		})
	}
}

// Each construction yields its own pipeline; there is no shared package state
func TestNewScheduler_IndependentInstances(t *testing.T) {
	t.Setenv("COMMERCE_API_KEY", "test-key")
	app := newSchedulerApp(t)

	a, err := NewScheduler(app)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewScheduler(app)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a == b {
		t.Fatal("expected distinct scheduler instances")
	}
	if a.GetRunner() == b.GetRunner() {
		t.Error("expected distinct runners per scheduler")
	}
}
