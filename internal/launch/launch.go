// Package launch runs a wrapped command with an explicit environment and
// reports its exit status as its own.
package launch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
)

var (
	ErrLaunchFailed = errors.New("failed to launch command")
	ErrNoCommand    = errors.New("no command given")
)

// Reserved exit codes, following the shell convention.
const (
	ExitNotExecutable = 126
	ExitNotFound      = 127
)

type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrLaunchFailed, e.Command, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunchFailed, e.Err}
}

func (e *LaunchError) ExitCode() int {
	if errors.Is(e.Err, ErrNoCommand) || errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist) {
		return ExitNotFound
	}
	return ExitNotExecutable
}

type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func StdStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run starts argv with exactly the given environment, waits for it and
// returns its exit code. A child terminated by a signal reports 128+signal.
//
// SIGTERM and SIGHUP sent to the wrapper are forwarded to the child.
// SIGINT and SIGQUIT are swallowed: the terminal already delivers them to the
// whole foreground process group, child included.
func Run(argv []string, environ []string, streams Streams) (int, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		launchErr := &LaunchError{Err: ErrNoCommand}
		return launchErr.ExitCode(), launchErr
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = environ
	cmd.Stdin = streams.Stdin
	cmd.Stdout = streams.Stdout
	cmd.Stderr = streams.Stderr

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	if err := cmd.Start(); err != nil {
		launchErr := &LaunchError{Command: argv[0], Err: err}
		return launchErr.ExitCode(), launchErr
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-signals:
				if sig == syscall.SIGTERM || sig == syscall.SIGHUP {
					_ = cmd.Process.Signal(sig)
				}
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	if cmd.ProcessState != nil {
		return exitCode(cmd.ProcessState), nil
	}
	return 1, err
}

func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
