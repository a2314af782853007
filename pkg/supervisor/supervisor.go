// Package supervisor launches and health-checks an auxiliary subprocess
// that exposes the HTTP transport alongside a pipe-mode server, restarting
// it on sustained unhealthiness.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	ihttp "github.com/mcpforge/server/pkg/internal/http"
	"github.com/mcpforge/server/pkg/internal/polling"
	"github.com/mcpforge/server/pkg/internal/retry"
)

// State is a supervised process's lifecycle state.
type State string

const (
	NotStarted State = "not_started"
	Starting   State = "starting"
	Running    State = "running"
	Unhealthy  State = "unhealthy"
	Stopping   State = "stopping"
	Stopped    State = "stopped"
	Failed     State = "failed"
)

// HealthChecker reports whether the supervised process is healthy.
type HealthChecker func(ctx context.Context) error

// HTTPHealthChecker builds a HealthChecker that does a GET against url and
// treats any 2xx response as healthy.
func HTTPHealthChecker(url string) HealthChecker {
	client := ihttp.NewClient(ihttp.Config{Timeout: 5 * time.Second})
	return func(ctx context.Context) error {
		resp, err := client.Do(ctx, ihttp.Request{Method: "GET", Path: url})
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("supervisor: health check returned status %d", resp.StatusCode)
		}
		return nil
	}
}

// Config configures a Supervisor's process and health policy.
type Config struct {
	Command []string // Command[0] is the executable, the rest are args
	Env     []string

	HealthCheck        HealthChecker
	StartupTimeout     time.Duration // default 30s
	StartupPollEvery   time.Duration // default 1s
	HealthInterval     time.Duration // default 10s
	MaxRestartAttempts int           // default 3
	ShutdownGrace      time.Duration // default 5s
}

func (c *Config) applyDefaults() {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 30 * time.Second
	}
	if c.StartupPollEvery <= 0 {
		c.StartupPollEvery = time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 10 * time.Second
	}
	if c.MaxRestartAttempts <= 0 {
		c.MaxRestartAttempts = 3
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
}

// Supervisor manages one subprocess's lifecycle.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger

	mu               sync.Mutex
	state            State
	cmd              *exec.Cmd
	restartAttempts  int
	consecutiveBad   int
	stopHealthLoop   chan struct{}
	wg               sync.WaitGroup
	errCh            chan error
	drainStop        chan struct{}
}

// New builds a Supervisor. Call EnsureRunning to start it.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Supervisor{
		cfg:       cfg,
		logger:    logger,
		state:     NotStarted,
		errCh:     make(chan error, 16),
		drainStop: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.drainErrors()
	return s
}

func (s *Supervisor) drainErrors() {
	defer s.wg.Done()
	for {
		select {
		case err := <-s.errCh:
			s.logger.Warn("supervisor background error", "error", err)
		case <-s.drainStop:
			return
		}
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// EnsureRunning checks health first; if already healthy it returns Running
// without spawning anything. Otherwise it spawns the configured command and
// polls its health endpoint until StartupTimeout.
func (s *Supervisor) EnsureRunning(ctx context.Context) (State, error) {
	if s.cfg.HealthCheck != nil {
		if err := s.cfg.HealthCheck(ctx); err == nil {
			s.setState(Running)
			return Running, nil
		}
	}

	s.setState(Starting)

	if len(s.cfg.Command) == 0 {
		s.setState(Failed)
		return Failed, fmt.Errorf("supervisor: no command configured")
	}

	cmd := exec.CommandContext(context.Background(), s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Env = s.cfg.Env
	if err := s.startWithRetry(ctx, cmd); err != nil {
		s.setState(Failed)
		return Failed, err
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	if err := s.waitHealthy(ctx, s.cfg.StartupTimeout); err != nil {
		s.setState(Failed)
		_ = cmd.Process.Kill()
		return Failed, err
	}

	s.setState(Running)
	s.startHealthLoop()
	return Running, nil
}

// startWithRetry spawns cmd, retrying transient start failures (e.g. a busy
// exec/fork) a few times with a short exponential backoff.
func (s *Supervisor) startWithRetry(ctx context.Context, cmd *exec.Cmd) error {
	err := retry.Do(ctx, retry.Config{
		MaxRetries:   2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Jitter:       true,
	}, func(ctx context.Context) error {
		return cmd.Start()
	})
	if err != nil {
		return fmt.Errorf("supervisor: start process: %w", err)
	}
	return nil
}

// waitHealthy polls HealthCheck every StartupPollEvery until it succeeds,
// ctx is cancelled, or timeout elapses. Built on polling.PollForCompletion,
// treating a passing health check as job completion and a failing one as
// "still processing" so the poller keeps trying instead of aborting.
func (s *Supervisor) waitHealthy(ctx context.Context, timeout time.Duration) error {
	if s.cfg.HealthCheck == nil {
		return nil
	}

	checker := func(ctx context.Context) (*polling.JobResult, error) {
		if err := s.cfg.HealthCheck(ctx); err != nil {
			return &polling.JobResult{Status: polling.JobStatusProcessing, Metadata: map[string]interface{}{"last_error": err.Error()}}, nil
		}
		return &polling.JobResult{Status: polling.JobStatusCompleted}, nil
	}

	_, err := polling.PollForCompletion(ctx, checker, polling.PollOptions{
		PollIntervalMs: int(s.cfg.StartupPollEvery / time.Millisecond),
		PollTimeoutMs:  int(timeout / time.Millisecond),
	})
	if err != nil {
		return fmt.Errorf("supervisor: startup health check: %w", err)
	}
	return nil
}

// startHealthLoop runs the periodic health check for as long as the process
// is alive, restarting it after two consecutive unhealthy polls, up to
// MaxRestartAttempts.
func (s *Supervisor) startHealthLoop() {
	s.mu.Lock()
	s.stopHealthLoop = make(chan struct{})
	stop := s.stopHealthLoop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.HealthInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.pollOnce(stop)
			}
		}
	}()
}

func (s *Supervisor) pollOnce(stop chan struct{}) {
	if s.cfg.HealthCheck == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HealthInterval)
	defer cancel()

	if err := s.cfg.HealthCheck(ctx); err == nil {
		s.mu.Lock()
		s.consecutiveBad = 0
		if s.state == Unhealthy {
			s.state = Running
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.consecutiveBad++
	bad := s.consecutiveBad
	s.state = Unhealthy
	s.mu.Unlock()

	if bad < 2 {
		return
	}

	if err := s.restart(context.Background()); err != nil {
		select {
		case s.errCh <- err:
		default:
		}
	}
}

// restart stops the current process and starts a fresh one, counting
// against MaxRestartAttempts. Once exhausted, the supervisor marks itself
// Failed and the health loop stops until the next explicit EnsureRunning.
func (s *Supervisor) restart(ctx context.Context) error {
	s.mu.Lock()
	if s.restartAttempts >= s.cfg.MaxRestartAttempts {
		s.state = Failed
		stop := s.stopHealthLoop
		s.stopHealthLoop = nil
		s.mu.Unlock()
		if stop != nil {
			close(stop)
		}
		return fmt.Errorf("supervisor: exceeded max restart attempts (%d)", s.cfg.MaxRestartAttempts)
	}
	s.restartAttempts++
	cmd := s.cmd
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		s.terminate(cmd)
	}

	newCmd := exec.CommandContext(context.Background(), s.cfg.Command[0], s.cfg.Command[1:]...)
	newCmd.Env = s.cfg.Env
	if err := s.startWithRetry(ctx, newCmd); err != nil {
		return fmt.Errorf("supervisor: restart: %w", err)
	}

	s.mu.Lock()
	s.cmd = newCmd
	s.consecutiveBad = 0
	s.mu.Unlock()

	return s.waitHealthy(ctx, s.cfg.StartupTimeout)
}

// terminate sends SIGTERM, waits up to ShutdownGrace, then sends SIGKILL.
func (s *Supervisor) terminate(cmd *exec.Cmd) {
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	_ = cmd.Process.Signal(sigterm())

	select {
	case <-done:
		return
	case <-time.After(s.cfg.ShutdownGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}

// Shutdown stops the health loop and the supervised process, waiting for
// all background goroutines to exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.setState(Stopping)

	s.mu.Lock()
	stop := s.stopHealthLoop
	cmd := s.cmd
	s.stopHealthLoop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if cmd != nil && cmd.Process != nil {
		s.terminate(cmd)
	}

	close(s.drainStop)
	s.wg.Wait()

	s.setState(Stopped)
	return nil
}
