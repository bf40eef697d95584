package display

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"extension-launcher/internal/core"
)

const (
	socketDir        = "/tmp/.X11-unix"
	lockDir          = "/tmp"
	socketPollPeriod = 100 * time.Millisecond
	stopGracePeriod  = 3 * time.Second
)

// Xvfb manages a virtual X display server process
type Xvfb struct {
	config    *core.DisplayConfig
	width     int
	height    int
	logger    *zap.Logger
	socketDir string
	lockDir   string

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan error
}

// NewXvfb creates a display manager sized to the browser window
func NewXvfb(cfg *core.DisplayConfig, width, height int, logger *zap.Logger) *Xvfb {
	return &Xvfb{
		config:    cfg,
		width:     width,
		height:    height,
		logger:    logger,
		socketDir: socketDir,
		lockDir:   lockDir,
	}
}

// Name returns the display name, e.g. ":99"
func (x *Xvfb) Name() string {
	return ":" + strconv.Itoa(x.config.Number)
}

// Args returns the server arguments
func (x *Xvfb) Args() []string {
	return []string{
		x.Name(),
		"-screen", "0",
		fmt.Sprintf("%dx%dx%d", x.width, x.height, x.config.Depth),
	}
}

func (x *Xvfb) socketPath() string {
	return filepath.Join(x.socketDir, "X"+strconv.Itoa(x.config.Number))
}

func (x *Xvfb) lockPath() string {
	return filepath.Join(x.lockDir, ".X"+strconv.Itoa(x.config.Number)+"-lock")
}

// serverAlive reports whether the pid recorded in the display lock file is running
func (x *Xvfb) serverAlive() bool {
	data, err := os.ReadFile(x.lockPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	err = syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Start spawns the server (or reuses a display already listening on the same number),
// exports DISPLAY and waits for the server socket.
func (x *Xvfb) Start(ctx context.Context) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	name := x.Name()

	if x.cmd != nil {
		return name, nil
	}

	if _, err := os.Stat(x.socketPath()); err == nil {
		if x.serverAlive() {
			x.logger.Info("Display already running, reusing it", zap.String("display", name))
			return name, x.export(name)
		}

		// Left behind by a server that crashed
		x.logger.Warn("Removing stale display socket",
			zap.String("socket", x.socketPath()),
			zap.String("lock", x.lockPath()),
		)
		for _, path := range []string{x.socketPath(), x.lockPath()} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				x.logger.Debug("Failed to remove stale display file", zap.String("path", path), zap.Error(err))
			}
		}
	}

	x.logger.Info("Starting virtual display",
		zap.String("binary", x.config.Binary),
		zap.Strings("args", x.Args()),
	)

	cmd := exec.Command(x.config.Binary, x.Args()...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", x.config.Binary, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	x.cmd = cmd
	x.exited = exited

	if err := x.waitReady(ctx); err != nil {
		x.stopLocked()
		return "", err
	}

	if err := x.export(name); err != nil {
		x.stopLocked()
		return "", err
	}

	x.logger.Info("Virtual display ready", zap.String("display", name), zap.Int("pid", cmd.Process.Pid))
	return name, nil
}

// waitReady polls for the X socket until the startup timeout. A server that
// is still alive when the timeout elapses is treated as ready.
func (x *Xvfb) waitReady(ctx context.Context) error {
	ticker := time.NewTicker(socketPollPeriod)
	defer ticker.Stop()

	timeout := time.After(x.config.StartupTimeout)

	for {
		if _, err := os.Stat(x.socketPath()); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-x.exited:
			x.exited <- err
			return fmt.Errorf("display server exited during startup: %v", err)
		case <-timeout:
			x.logger.Debug("Display socket not seen, assuming server is up",
				zap.String("socket", x.socketPath()),
			)
			return nil
		case <-ticker.C:
		}
	}
}

func (x *Xvfb) export(name string) error {
	if err := os.Setenv("DISPLAY", name); err != nil {
		return fmt.Errorf("failed to set DISPLAY: %w", err)
	}
	return nil
}

// Stop terminates the server if this process started it
func (x *Xvfb) Stop() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stopLocked()
}

func (x *Xvfb) stopLocked() error {
	if x.cmd == nil || x.cmd.Process == nil {
		return nil
	}
	cmd, exited := x.cmd, x.exited
	x.cmd, x.exited = nil, nil

	// Already gone
	select {
	case <-exited:
		return nil
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to signal display server: %w", err)
	}

	select {
	case <-exited:
	case <-time.After(stopGracePeriod):
		x.logger.Warn("Display server ignored SIGTERM, killing it")
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill display server: %w", err)
		}
		<-exited
	}

	x.logger.Info("Virtual display stopped", zap.String("display", x.Name()))
	return nil
}
