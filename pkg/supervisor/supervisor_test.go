package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHealthChecker reports healthy once healthyFrom calls have passed,
// and unhealthy before that. Every call increments calls.
func countingHealthChecker(calls *int64, healthyFrom int64) HealthChecker {
	return func(ctx context.Context) error {
		n := atomic.AddInt64(calls, 1)
		if n >= healthyFrom {
			return nil
		}
		return errors.New("not healthy yet")
	}
}

func TestSupervisor_EnsureRunningSkipsSpawnWhenAlreadyHealthy(t *testing.T) {
	t.Parallel()

	s := New(Config{
		HealthCheck: func(ctx context.Context) error { return nil },
	}, nil)

	st, err := s.EnsureRunning(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Running, st)
	assert.Nil(t, s.cmd)
}

func TestSupervisor_EnsureRunningSpawnsAndPollsUntilHealthy(t *testing.T) {
	t.Parallel()

	var calls int64
	s := New(Config{
		Command:          []string{"sleep", "5"},
		HealthCheck:      countingHealthChecker(&calls, 3),
		StartupTimeout:   2 * time.Second,
		StartupPollEvery: 50 * time.Millisecond,
	}, nil)
	defer s.Shutdown(context.Background())

	st, err := s.EnsureRunning(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Running, st)
	assert.NotNil(t, s.cmd)
}

func TestSupervisor_EnsureRunningFailsOnStartupTimeout(t *testing.T) {
	t.Parallel()

	s := New(Config{
		Command:          []string{"sleep", "5"},
		HealthCheck:      func(ctx context.Context) error { return errors.New("always unhealthy") },
		StartupTimeout:   120 * time.Millisecond,
		StartupPollEvery: 20 * time.Millisecond,
	}, nil)
	defer s.Shutdown(context.Background())

	st, err := s.EnsureRunning(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Failed, st)
}

func TestSupervisor_RestartsAfterTwoConsecutiveUnhealthyPolls(t *testing.T) {
	t.Parallel()

	var healthy int32 = 1
	s := New(Config{
		Command: []string{"sleep", "5"},
		HealthCheck: func(ctx context.Context) error {
			if atomic.LoadInt32(&healthy) == 1 {
				return nil
			}
			return errors.New("down")
		},
		StartupPollEvery:   20 * time.Millisecond,
		StartupTimeout:     time.Second,
		HealthInterval:     30 * time.Millisecond,
		MaxRestartAttempts: 2,
	}, nil)
	defer s.Shutdown(context.Background())

	st, err := s.EnsureRunning(context.Background())
	require.NoError(t, err)
	require.Equal(t, Running, st)

	atomic.StoreInt32(&healthy, 0)

	require.Eventually(t, func() bool {
		return s.State() == Unhealthy
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		attempts := s.restartAttempts
		s.mu.Unlock()
		return attempts >= 1
	}, 2*time.Second, 10*time.Millisecond)

	atomic.StoreInt32(&healthy, 1)
}

func TestSupervisor_FailsPermanentlyAfterMaxRestartAttempts(t *testing.T) {
	t.Parallel()

	s := New(Config{
		Command:            []string{"sleep", "5"},
		HealthCheck:        func(ctx context.Context) error { return errors.New("always down") },
		StartupPollEvery:   10 * time.Millisecond,
		StartupTimeout:     2 * time.Second,
		HealthInterval:     15 * time.Millisecond,
		MaxRestartAttempts: 1,
	}, nil)
	s.restartAttempts = 1 // simulate prior exhausted attempts
	s.state = Running
	s.cmd = nil

	err := s.restart(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Failed, s.State())

	s.Shutdown(context.Background())
}

func TestSupervisor_ShutdownStopsBackgroundGoroutines(t *testing.T) {
	t.Parallel()

	s := New(Config{
		Command:          []string{"sleep", "5"},
		HealthCheck:      func(ctx context.Context) error { return nil },
		StartupPollEvery: 10 * time.Millisecond,
		StartupTimeout:   time.Second,
		HealthInterval:   10 * time.Millisecond,
	}, nil)

	_, err := s.EnsureRunning(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, Stopped, s.State())
}
