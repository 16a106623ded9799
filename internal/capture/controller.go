package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"rinkcast/internal/config"
	"rinkcast/internal/logging"
	"rinkcast/internal/services"
)

const (
	processPollInterval = time.Second
	streamConfirmDelay  = 2 * time.Second
	strayKillDelay      = 2 * time.Second
)

// Controller drives the local capture process: launch it with the right
// profile, verify it is actually streaming, and take it down cleanly when
// the calendar window closes.
type Controller struct {
	cfg    config.Capture
	cp     ControlPlane
	table  processTable
	logger *slog.Logger
	sleep  sleeper
}

// NewController constructs a controller over the real process table.
func NewController(cfg config.Capture, cp ControlPlane, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		cp:     cp,
		table:  newProcfsTable(),
		logger: logging.NewComponentLogger(logger, "capture"),
		sleep:  func(d time.Duration) { time.Sleep(d) },
	}
}

// IsRunning reports whether the capture process is present in the process
// table.
func (c *Controller) IsRunning() (bool, error) {
	_, found, err := c.table.Find(c.cfg.Binary)
	return found, err
}

// Start launches the capture process with the given profile and output
// collection. Any stray prior instance is terminated first: launching over
// a half-dead instance triggers an interactive "already running" prompt
// that nothing is around to dismiss.
func (c *Controller) Start(ctx context.Context, profile, collection string) error {
	if pid, found, err := c.table.Find(c.cfg.Binary); err != nil {
		return services.Wrap(services.ErrTransient, "capture", "scan process table", "", err)
	} else if found {
		c.logger.Warn("terminating stray capture instance", logging.Int("pid", pid))
		if err := c.table.Signal(pid, unix.SIGTERM); err != nil {
			return services.Wrap(services.ErrTransient, "capture", "terminate stray instance", "", err)
		}
		c.sleep(strayKillDelay)
		if _, still, _ := c.table.Find(c.cfg.Binary); still {
			if err := c.table.Signal(pid, unix.SIGKILL); err != nil {
				return services.Wrap(services.ErrTransient, "capture", "kill stray instance", "", err)
			}
			c.sleep(processPollInterval)
		}
	}

	args := []string{"--profile", profile, "--collection", collection}
	if err := c.table.Launch(c.cfg.Binary, args); err != nil {
		return services.Wrap(services.ErrTransient, "capture", "launch", "", err)
	}

	if err := c.waitForProcess(ctx, true, c.startTimeout()); err != nil {
		return services.Wrap(services.ErrTransient, "capture", "launch", "process did not appear", err)
	}

	// Catch immediate post-launch crashes instead of reporting success.
	c.sleep(c.postLaunchGrace())
	if _, alive, err := c.table.Find(c.cfg.Binary); err != nil {
		return services.Wrap(services.ErrTransient, "capture", "verify launch", "", err)
	} else if !alive {
		return services.Wrap(services.ErrTransient, "capture", "verify launch", "process exited immediately after launch", nil)
	}

	c.logger.Info("capture process started",
		logging.String("profile", profile),
		logging.String("collection", collection),
	)
	return nil
}

// WaitUntilControlPlaneReady polls the control plane until it answers or
// the budget is exhausted. Silence is reported as failure, never success.
func (c *Controller) WaitUntilControlPlaneReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.cp.Status(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if time.Now().After(deadline) {
			return services.Wrap(services.ErrUnavailable, "capture", "wait for control plane", fmt.Sprintf("no answer within %s", timeout), lastErr)
		}
		c.sleep(processPollInterval)
	}
}

// StreamActive reports the control plane's view of stream activity. An
// unreachable control plane yields Unknown without error so the caller can
// apply its own fallback.
func (c *Controller) StreamActive(ctx context.Context) Tristate {
	status, err := c.cp.Status(ctx)
	if err != nil {
		return Unknown
	}
	return status.StreamActive
}

// EnsureStreaming verifies the stream is active, issuing a start-stream
// command and re-querying when it is not. Failure to confirm is reported
// rather than assumed away.
func (c *Controller) EnsureStreaming(ctx context.Context) error {
	status, err := c.cp.Status(ctx)
	if err != nil {
		return err
	}
	if status.StreamActive == Active {
		return nil
	}

	if err := c.cp.StartStream(ctx); err != nil {
		return err
	}
	c.sleep(streamConfirmDelay)

	status, err = c.cp.Status(ctx)
	if err != nil {
		return err
	}
	if status.StreamActive != Active {
		return services.Wrap(services.ErrTransient, "capture", "ensure streaming", "stream did not become active after start command", nil)
	}
	return nil
}

// Stop takes the capture process down: stop the stream and ancillary
// outputs, request a clean exit, and only after the graceful budget runs
// out terminate by pid. Forceful termination first would corrupt
// in-progress media writes.
func (c *Controller) Stop(ctx context.Context) error {
	pid, found, err := c.table.Find(c.cfg.Binary)
	if err != nil {
		return services.Wrap(services.ErrTransient, "capture", "scan process table", "", err)
	}
	if !found {
		return nil
	}

	for _, step := range []struct {
		name string
		call func(context.Context) error
	}{
		{"stop stream", c.cp.StopStream},
		{"stop outputs", c.cp.StopOutputs},
		{"request exit", c.cp.Shutdown},
	} {
		if err := step.call(ctx); err != nil {
			c.logger.Warn("graceful shutdown step failed",
				logging.String("step", step.name),
				logging.Error(err),
			)
		}
	}

	if err := c.waitForProcess(ctx, false, c.stopTimeout()); err == nil {
		c.logger.Info("capture process exited cleanly")
		return nil
	}

	c.logger.Warn("capture process did not exit; terminating", logging.Int("pid", pid))
	if err := c.table.Signal(pid, unix.SIGKILL); err != nil {
		return services.Wrap(services.ErrTransient, "capture", "force terminate", "", err)
	}
	return nil
}

// waitForProcess polls the process table until presence matches want or the
// timeout elapses.
func (c *Controller) waitForProcess(ctx context.Context, want bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, found, err := c.table.Find(c.cfg.Binary)
		if err == nil && found == want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("process state did not reach running=%v within %s", want, timeout)
		}
		c.sleep(processPollInterval)
	}
}

func (c *Controller) startTimeout() time.Duration {
	if c.cfg.StartTimeoutSeconds > 0 {
		return time.Duration(c.cfg.StartTimeoutSeconds) * time.Second
	}
	return 45 * time.Second
}

func (c *Controller) stopTimeout() time.Duration {
	if c.cfg.StopTimeoutSeconds > 0 {
		return time.Duration(c.cfg.StopTimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

func (c *Controller) postLaunchGrace() time.Duration {
	if c.cfg.PostLaunchGraceSeconds > 0 {
		return time.Duration(c.cfg.PostLaunchGraceSeconds) * time.Second
	}
	return 5 * time.Second
}
