package sampler

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"power-bench/internal/logging"

	"github.com/sirupsen/logrus"
)

// Process is a running sampling process.
type Process interface {
	Stdout() io.Reader
	// Stop asks the process to exit and blocks until it has.
	Stop() error
}

type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

const defaultStopTimeout = 10 * time.Second

// ExecLauncher starts Command with Args. On Stop the process receives SIGTERM
// and is killed if it has not exited within StopTimeout.
type ExecLauncher struct {
	Command     string
	Args        []string
	StopTimeout time.Duration
}

func (l ExecLauncher) Launch(ctx context.Context) (Process, error) {
	timeout := l.StopTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}

	cmd := exec.Command(l.Command, l.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := logging.GetLogger().WithField("process", l.Command).WriterLevel(logrus.DebugLevel)
	cmd.Stderr = stderr
	cmd.WaitDelay = timeout

	if err := cmd.Start(); err != nil {
		stderr.Close()
		return nil, err
	}

	logging.GetLogger().WithFields(logrus.Fields{
		"command": l.Command,
		"args":    l.Args,
		"pid":     cmd.Process.Pid,
	}).Debug("Sampling process started")

	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr, timeout: timeout}, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	stdout  io.Reader
	stderr  io.Closer
	timeout time.Duration

	once sync.Once
	err  error
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Stop() error {
	p.once.Do(func() {
		defer p.stderr.Close()

		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.GetLogger().WithError(err).Warn("Failed to signal sampling process")
		}

		done := make(chan error, 1)
		go func() { done <- p.cmd.Wait() }()

		var err error
		select {
		case err = <-done:
		case <-time.After(p.timeout):
			logging.GetLogger().WithField("timeout", p.timeout).Warn("Sampling process ignored SIGTERM, killing it")
			_ = p.cmd.Process.Kill()
			err = <-done
		}

		// A non-zero exit caused by our own signal is expected.
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
			p.err = err
		}
	})
	return p.err
}
