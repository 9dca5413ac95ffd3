package supervise

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ipr-host/internal/state"
	"ipr-host/internal/types"
	"ipr-host/internal/websocket"
	"ipr-host/pkg/config"
)

// probeInterval is how often the readiness probe dials the app port.
const probeInterval = 250 * time.Millisecond

// Supervisor launches and watches the application process. It does not
// restart on crash; the hosting platform owns that. It records the exit
// so operators can see it.
type Supervisor struct {
	cfg config.AppConfig
}

// NewSupervisor builds a Supervisor for the configured application.
func NewSupervisor(cfg config.AppConfig) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Addr returns the host:port the application listens on.
func (s *Supervisor) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run launches the application and blocks until it exits or ctx is
// cancelled. The command gets the port and CORS flags appended the same way
// the original launch line did.
func (s *Supervisor) Run(ctx context.Context) error {
	args := append([]string{}, s.cfg.Args...)
	if s.cfg.ServerFlags {
		args = append(args,
			"--server.port", strconv.Itoa(s.cfg.Port),
			"--server.enableCORS", "false",
		)
	}

	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	if s.cfg.Workdir != "" {
		cmd.Dir = s.cfg.Workdir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"app":     s.cfg.Name,
		"command": s.cfg.Command,
		"port":    s.cfg.Port,
	}).Info("Launching application process")

	state.SetAppStatus(types.AppStarting)
	websocket.BroadcastAppStatus(types.AppStarting, "Launching application process")

	if startErr := cmd.Start(); startErr != nil {
		state.SetAppExit(-1, types.AppFailed)
		websocket.BroadcastAppStatus(types.AppFailed, startErr.Error())
		return fmt.Errorf("failed to start %s: %w", s.cfg.Command, startErr)
	}

	state.SetAppPID(cmd.Process.Pid)

	// Wait closes the pipes, so both forwarders must finish draining
	// before it runs or trailing output at exit is lost.
	var forwarders sync.WaitGroup
	forwarders.Add(2)
	go func() {
		defer forwarders.Done()
		forwardOutput(s.cfg.Name, "stdout", stdout)
	}()
	go func() {
		defer forwarders.Done()
		forwardOutput(s.cfg.Name, "stderr", stderr)
	}()

	// Readiness runs concurrently with Wait so a process that dies during
	// startup is not misreported as a probe timeout.
	readyCh := make(chan error, 1)
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()
	go func() {
		readyCh <- s.awaitListening(probeCtx)
	}()

	waitCh := make(chan error, 1)
	go func() {
		forwarders.Wait()
		waitCh <- cmd.Wait()
	}()

	select {
	case readyErr := <-readyCh:
		if readyErr == nil {
			state.SetAppStatus(types.AppReady)
			websocket.BroadcastAppStatus(types.AppReady,
				fmt.Sprintf("Application listening on %s", s.Addr()))
			logrus.WithField("addr", s.Addr()).Info("Application ready")
		}
	case waitErr := <-waitCh:
		return s.recordExit(waitErr)
	}

	return s.recordExit(<-waitCh)
}

func (s *Supervisor) recordExit(waitErr error) error {
	code := 0
	status := types.AppExited
	if waitErr != nil {
		status = types.AppFailed
		code = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
	}

	state.SetAppExit(code, status)
	websocket.BroadcastAppStatus(status, fmt.Sprintf("Application exited with code %d", code))
	logrus.WithFields(logrus.Fields{
		"app":       s.cfg.Name,
		"exit_code": code,
	}).Info("Application process exited")

	if waitErr != nil {
		return fmt.Errorf("application exited: %w", waitErr)
	}
	return nil
}

// awaitListening dials the app port until it accepts a connection. Past
// the ready timeout it warns once but keeps probing, so a slow-starting
// application still becomes reachable instead of staying unproxied.
// It returns non-nil only when ctx is cancelled.
func (s *Supervisor) awaitListening(ctx context.Context) error {
	timeout := s.cfg.ReadyTimeout.Std()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	deadline := time.Now().Add(timeout)
	warned := false
	addr := s.Addr()

	for {
		conn, err := net.DialTimeout("tcp", addr, probeInterval)
		if err == nil {
			conn.Close()
			return nil
		}

		if !warned && time.Now().After(deadline) {
			logrus.WithFields(logrus.Fields{
				"addr":    addr,
				"timeout": timeout.String(),
			}).Warn("Application not listening after ready timeout, still probing")
			warned = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probeInterval):
		}
	}
}

// forwardOutput relays a process stream into the structured log.
func forwardOutput(app, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	entry := logrus.WithFields(logrus.Fields{"app": app, "stream": stream})
	for scanner.Scan() {
		entry.Info(scanner.Text())
	}
}
