package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestChecker_NewProbeStartsHealthy(t *testing.T) {
	c := NewChecker(nil)
	c.Register("db", KindReadiness, func(ctx context.Context) error {
		return nil
	}, DefaultProbeConfig())

	results := c.Results(KindReadiness)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != StatusHealthy {
		t.Errorf("expected healthy before first check, got %s", results[0].Status)
	}
}

func TestChecker_GracePeriodBeforeUnhealthy(t *testing.T) {
	c := NewChecker(nil)
	c.Register("db", KindReadiness, func(ctx context.Context) error {
		return errors.New("connection refused")
	}, ProbeConfig{GracePeriodFailures: 3})

	// Two failures: degraded, still passing overall.
	_ = c.Check(context.Background(), "db")
	_ = c.Check(context.Background(), "db")

	r := c.Results(KindReadiness)[0]
	if r.Status != StatusDegraded {
		t.Errorf("expected degraded inside grace period, got %s", r.Status)
	}
	if !c.Healthy(KindReadiness) {
		t.Error("expected overall healthy inside grace period")
	}

	// Third consecutive failure flips it.
	_ = c.Check(context.Background(), "db")

	r = c.Results(KindReadiness)[0]
	if r.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy after grace period, got %s", r.Status)
	}
	if r.ConsecutiveFailures != 3 {
		t.Errorf("expected 3 consecutive failures, got %d", r.ConsecutiveFailures)
	}
	if c.Healthy(KindReadiness) {
		t.Error("expected overall unhealthy")
	}
}

func TestChecker_SingleSuccessRecovers(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	c := NewChecker(nil)
	c.Register("db", KindReadiness, func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}, ProbeConfig{GracePeriodFailures: 2})

	_ = c.Check(context.Background(), "db")
	_ = c.Check(context.Background(), "db")
	if c.Results(KindReadiness)[0].Status != StatusUnhealthy {
		t.Fatal("expected unhealthy after failures")
	}

	fail.Store(false)
	_ = c.Check(context.Background(), "db")

	r := c.Results(KindReadiness)[0]
	if r.Status != StatusHealthy {
		t.Errorf("expected healthy after one success, got %s", r.Status)
	}
	if r.ConsecutiveFailures != 0 {
		t.Errorf("expected failure streak reset, got %d", r.ConsecutiveFailures)
	}
}

func TestChecker_SuccessResetsStreakMidGrace(t *testing.T) {
	results := []error{
		errors.New("blip"),
		errors.New("blip"),
		nil,
		errors.New("blip"),
		errors.New("blip"),
	}
	i := 0

	c := NewChecker(nil)
	c.Register("db", KindReadiness, func(ctx context.Context) error {
		err := results[i]
		i++
		return err
	}, ProbeConfig{GracePeriodFailures: 3})

	for range results {
		_ = c.Check(context.Background(), "db")
	}

	// The success in the middle reset the streak, so 2+2 failures never
	// reached the grace period.
	r := c.Results(KindReadiness)[0]
	if r.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", r.Status)
	}
	if r.ConsecutiveFailures != 2 {
		t.Errorf("expected streak 2, got %d", r.ConsecutiveFailures)
	}
}

func TestChecker_KindsAreIsolated(t *testing.T) {
	c := NewChecker(nil)
	c.Register("process", KindLiveness, func(ctx context.Context) error {
		return nil
	}, ProbeConfig{GracePeriodFailures: 1})
	c.Register("db", KindReadiness, func(ctx context.Context) error {
		return errors.New("down")
	}, ProbeConfig{GracePeriodFailures: 1})

	c.CheckAll(context.Background(), "")

	if !c.Healthy(KindLiveness) {
		t.Error("liveness should not be affected by a readiness failure")
	}
	if c.Healthy(KindReadiness) {
		t.Error("expected readiness unhealthy")
	}
}

func TestChecker_ProbeTimeout(t *testing.T) {
	c := NewChecker(nil)
	c.Register("slow", KindDeep, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, ProbeConfig{Timeout: 20 * time.Millisecond, GracePeriodFailures: 1})

	err := c.Check(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if c.Results(KindDeep)[0].Status != StatusUnhealthy {
		t.Error("expected timeout counted as failure")
	}
}

func TestChecker_CheckUnknownProbe(t *testing.T) {
	c := NewChecker(nil)
	if err := c.Check(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown probe")
	}
}

func TestChecker_BackgroundLoop(t *testing.T) {
	var runs atomic.Int32

	c := NewChecker(nil)
	c.Register("db", KindReadiness, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, ProbeConfig{Interval: 10 * time.Millisecond})

	c.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	got := runs.Load()
	if got < 2 {
		t.Errorf("expected at least 2 runs, got %d", got)
	}

	// No more runs after Stop.
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != got {
		t.Error("expected no probe runs after Stop")
	}
}

func TestChecker_ResultsCarryLastError(t *testing.T) {
	c := NewChecker(nil)
	c.Register("db", KindReadiness, func(ctx context.Context) error {
		return errors.New("connection refused")
	}, DefaultProbeConfig())

	_ = c.Check(context.Background(), "db")

	r := c.Results(KindReadiness)[0]
	if r.LastError != "connection refused" {
		t.Errorf("expected last error recorded, got %q", r.LastError)
	}
	if r.LastChecked.IsZero() {
		t.Error("expected last checked timestamp set")
	}
}
