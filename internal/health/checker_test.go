package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/simviz/internal/logger"
)

// mockChecker is a mock implementation of Checker for testing
type mockChecker struct {
	name  string
	err   error
	delay time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func testLogger() logger.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return logger.FromLogrus(l)
}

func TestManager(t *testing.T) {
	t.Run("Register and RunChecks", func(t *testing.T) {
		manager := NewManager(testLogger())

		manager.Register(&mockChecker{name: "checker1"})
		manager.Register(&mockChecker{name: "checker2", err: errors.New("checker2 failed")})
		manager.Register(&mockChecker{name: "checker3"})

		results := manager.RunChecks(context.Background())
		require.Len(t, results, 3)

		assert.Equal(t, StatusOK, results["checker1"].Status)
		assert.Empty(t, results["checker1"].Message)

		assert.Equal(t, StatusDown, results["checker2"].Status)
		assert.Contains(t, results["checker2"].Message, "checker2 failed")

		assert.Equal(t, StatusOK, results["checker3"].Status)
	})

	t.Run("GetResults returns copies", func(t *testing.T) {
		manager := NewManager(nil)
		manager.Register(&mockChecker{name: "test"})
		manager.RunChecks(context.Background())

		results := manager.GetResults()
		require.Contains(t, results, "test")
		results["test"].Status = StatusDown

		assert.Equal(t, StatusOK, manager.GetResults()["test"].Status)
	})

	t.Run("Overall status", func(t *testing.T) {
		manager := NewManager(nil)
		assert.Equal(t, StatusDown, manager.GetOverallStatus(), "no results yet")

		manager.Register(&mockChecker{name: "ok"})
		manager.RunChecks(context.Background())
		assert.Equal(t, StatusOK, manager.GetOverallStatus())

		manager.Register(&mockChecker{name: "slow", err: &DegradedError{Message: "busy"}})
		manager.RunChecks(context.Background())
		assert.Equal(t, StatusDegraded, manager.GetOverallStatus())

		manager.Register(&mockChecker{name: "broken", err: errors.New("boom")})
		manager.RunChecks(context.Background())
		assert.Equal(t, StatusDown, manager.GetOverallStatus())
	})

	t.Run("Timeout reported", func(t *testing.T) {
		manager := NewManager(nil)
		manager.Register(&mockChecker{name: "slow", delay: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		results := manager.RunChecks(ctx)
		assert.Equal(t, StatusDown, results["slow"].Status)
		assert.Equal(t, "Health check timed out", results["slow"].Message)
	})

	t.Run("Degraded details", func(t *testing.T) {
		manager := NewManager(nil)
		manager.Register(&mockChecker{name: "sessions", err: &DegradedError{
			Message: "session limit reached",
			Details: map[string]interface{}{"open": 2},
		}})

		results := manager.RunChecks(context.Background())
		assert.Equal(t, StatusDegraded, results["sessions"].Status)
		assert.Equal(t, 2, results["sessions"].Details["open"])
	})

	t.Run("Concurrent registration", func(t *testing.T) {
		manager := NewManager(nil)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				manager.Register(&mockChecker{name: "c" + string(rune('a'+i))})
			}(i)
			go func() {
				defer wg.Done()
				manager.RunChecks(context.Background())
			}()
		}
		wg.Wait()
		assert.Len(t, manager.RunChecks(context.Background()), 10)
	})
}

func TestStartPeriodicChecks(t *testing.T) {
	manager := NewManager(nil)
	manager.Register(&mockChecker{name: "tick"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.StartPeriodicChecks(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(manager.GetResults()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic checks did not stop")
	}
}
