// Copyright 2026 Mcuplane Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package worker manages a supervised child process: launch, liveness
// probing, graceful stop with kill escalation, and restart. A Worker is
// owned exclusively by the supervisor; every lifecycle transition must be
// driven from its single-threaded control loop.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/mcuplane/mcuplane/pkg/logger"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

// Role tags a worker with its function in the control plane. The set is
// closed: one worker owns the serial line, the other the broker client.
type Role string

const (
	RoleSerial Role = "serial"
	RoleBroker Role = "broker"
)

// maxArgs bounds the tokenized argument vector, including argv[0].
const maxArgs = 64

// killGrace is the extra reap window after a SIGKILL escalation.
const killGrace = 1000 * time.Millisecond

// destroyStopBudget bounds the graceful stop issued by Destroy and Restart.
const destroyStopBudget = 5000 * time.Millisecond

// Config describes a worker to be supervised.
type Config struct {
	// Role must be one of the closed role set.
	Role Role
	// Name is the human-readable name; defaults to "<role>_worker".
	Name string
	// Cmd is the executable path. Required.
	Cmd string
	// Args is the argument string, split on ASCII whitespace. There is
	// no quoting; arguments containing spaces are out of scope.
	Args string
	// AutoRestart makes the supervision loop restart the worker after a
	// spontaneous death.
	AutoRestart bool
	// RestartDelay is the fixed backoff between a death and the next
	// restart attempt.
	RestartDelay time.Duration
}

// Worker is the in-memory descriptor of a supervised child process.
type Worker struct {
	log     *zap.SugaredLogger
	config  Config
	machine *lifecycleMachine
	cmd     *exec.Cmd
	pid     int

	disposition    int
	hasDisposition bool
}

// New validates config and builds a descriptor in state Created.
func New(config Config) (*Worker, error) {
	if config.Cmd == "" {
		return nil, fmt.Errorf("%w: worker command is required", standarderrors.ErrInvalidArgument)
	}
	if config.Role != RoleSerial && config.Role != RoleBroker {
		return nil, fmt.Errorf("%w: unknown worker role %q", standarderrors.ErrInvalidArgument, config.Role)
	}
	if config.Name == "" {
		config.Name = string(config.Role) + "_worker"
	}

	return &Worker{
		log:     logger.For(logger.ComponentWorker).Named(config.Name),
		config:  config,
		machine: newLifecycleMachine(),
		pid:     -1,
	}, nil
}

// Config returns a copy of the descriptor's configuration.
func (w *Worker) Config() Config {
	return w.config
}

// Name returns the worker's human-readable name.
func (w *Worker) Name() string {
	return w.config.Name
}

// State returns the current lifecycle state.
func (w *Worker) State() string {
	return w.machine.Current()
}

// IsRunning reports whether the descriptor is in state Running.
func (w *Worker) IsRunning() bool {
	return w.machine.Current() == StateRunning
}

// Pid returns the OS identifier of the child, or -1 when not launched.
func (w *Worker) Pid() int {
	return w.pid
}

// Disposition returns the recorded exit disposition: a normal exit code
// as >=0, a terminating signal negated, and false when no exit has been
// observed yet.
func (w *Worker) Disposition() (int, bool) {
	return w.disposition, w.hasDisposition
}

// Start launches the child process. A worker already in state Running is
// a no-op. The argument string is tokenized on whitespace with argv[0]
// set to the command itself. Launch failure is unrecoverable for this
// descriptor: the state goes to Error, and further Start calls are
// refused before anything is spawned so no child can escape
// supervision.
func (w *Worker) Start(ctx context.Context) error {
	if w.IsRunning() {
		return nil
	}
	if w.machine.Current() == StateError {
		return fmt.Errorf("%w: worker %s is in terminal error state", standarderrors.ErrFatal, w.config.Name)
	}

	args := strings.Fields(w.config.Args)
	if len(args) > maxArgs-1 {
		args = args[:maxArgs-1]
	}

	cmd := exec.Command(w.config.Cmd, args...)
	// Workers inherit the supervisor's terminal so their diagnostics
	// land next to the menu.
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		if ferr := w.machine.Event(ctx, eventLaunchFailed); ferr != nil {
			w.log.Errorf("Lifecycle transition failed: %v", ferr)
		}

		return fmt.Errorf("%w: launching %s: %v", standarderrors.ErrResourceExhausted, w.config.Cmd, err)
	}

	w.cmd = cmd
	w.pid = cmd.Process.Pid
	w.hasDisposition = false

	if err := w.machine.Event(ctx, eventLaunch); err != nil {
		return fmt.Errorf("%w: lifecycle: %v", standarderrors.ErrFatal, err)
	}

	w.log.Infof("Worker started (pid: %d)", w.pid)

	return nil
}

// Stop requests graceful termination and waits up to timeout for the
// reap. When the timeout elapses a SIGKILL is issued once, followed by a
// fixed 1000 ms grace window; the state resolves to Exited either way.
// A worker that is not running is a no-op.
func (w *Worker) Stop(ctx context.Context, timeout time.Duration) error {
	if !w.IsRunning() {
		return nil
	}
	if w.pid <= 0 {
		return fmt.Errorf("%w: worker %s has no child process", standarderrors.ErrInvalidArgument, w.config.Name)
	}

	if err := w.machine.Event(ctx, eventStopRequest); err != nil {
		return fmt.Errorf("%w: lifecycle: %v", standarderrors.ErrFatal, err)
	}

	if err := signalTerm(w.pid); err != nil {
		// Child vanished between the liveness tick and now; collect it.
		w.reapNonBlocking()
		if err := w.machine.Event(ctx, eventReaped); err != nil {
			w.log.Errorf("Lifecycle transition failed: %v", err)
		}

		return fmt.Errorf("%w: worker %s pid %d: %v", standarderrors.ErrPeerGone, w.config.Name, w.pid, err)
	}

	disposition, err := w.waitPid(ctx, timeout)
	if err != nil {
		w.log.Warnf("Graceful stop timed out after %s, killing pid %d", timeout, w.pid)

		if kerr := signalKill(w.pid); kerr != nil {
			w.log.Errorf("SIGKILL failed: %v", kerr)
		}
		disposition, err = w.waitPid(ctx, killGrace)
	}

	if err == nil {
		w.disposition = disposition
		w.hasDisposition = true
	}

	if ferr := w.machine.Event(ctx, eventReaped); ferr != nil {
		w.log.Errorf("Lifecycle transition failed: %v", ferr)
	}

	if err != nil {
		return fmt.Errorf("%w: reaping worker %s after kill: %v", standarderrors.ErrFatal, w.config.Name, err)
	}

	w.log.Infof("Worker stopped (disposition: %d)", w.disposition)

	return nil
}

// Destroy stops the worker if it is still running, with a 5000 ms
// budget, then releases the descriptor's hold on the child.
func (w *Worker) Destroy(ctx context.Context) error {
	if w.IsRunning() {
		if err := w.Stop(ctx, destroyStopBudget); err != nil {
			w.log.Errorf("Stop during destroy failed: %v", err)
		}
	}

	w.cmd = nil
	w.pid = -1

	return nil
}

// UpdateState probes the child and reconciles the lifecycle state. A
// child found dead is reaped non-blockingly to record its disposition. A
// child found alive in a non-Running state is promoted back to Running.
// Must only be called from the supervisor's control loop, never
// concurrently with Stop.
func (w *Worker) UpdateState(ctx context.Context) error {
	if w.pid <= 0 {
		return fmt.Errorf("%w: worker %s was never started", standarderrors.ErrInvalidArgument, w.config.Name)
	}

	state := w.machine.Current()
	if state == StateExited || state == StateError {
		return nil
	}

	// Reap first: a dead child lingers as a zombie, and a zombie still
	// answers liveness probes.
	if w.reapNonBlocking() {
		if err := w.machine.Event(ctx, eventDied); err != nil {
			return fmt.Errorf("%w: lifecycle: %v", standarderrors.ErrFatal, err)
		}
		w.log.Infof("Worker exited (pid: %d, disposition: %d)", w.pid, w.disposition)

		return nil
	}

	alive, err := process.PidExistsWithContext(ctx, int32(w.pid))
	if err != nil {
		return fmt.Errorf("%w: probing pid %d: %v", standarderrors.ErrFatal, w.pid, err)
	}

	if !alive {
		if err := w.machine.Event(ctx, eventDied); err != nil {
			return fmt.Errorf("%w: lifecycle: %v", standarderrors.ErrFatal, err)
		}
		w.log.Infof("Worker vanished (pid: %d)", w.pid)

		return nil
	}

	if state != StateRunning {
		w.machine.SetState(StateRunning)
	}

	return nil
}

// Wait reaps the child with a bounded wait. It returns the exit
// disposition on success, ErrTimeout when the child outlives the
// timeout, ErrPeerGone when the child was already collected, and
// ErrFatal otherwise. A negative timeout blocks indefinitely.
func (w *Worker) Wait(ctx context.Context, timeout time.Duration) (int, error) {
	if w.pid <= 0 {
		return 0, fmt.Errorf("%w: worker %s has no child process", standarderrors.ErrInvalidArgument, w.config.Name)
	}

	disposition, err := w.waitPid(ctx, timeout)
	if err != nil {
		return 0, err
	}

	w.disposition = disposition
	w.hasDisposition = true

	return disposition, nil
}

// Restart stops the worker when running (5000 ms budget), sleeps for
// delay, then starts it again. The descriptor keeps its identity; only
// the OS identifier changes.
func (w *Worker) Restart(ctx context.Context, delay time.Duration) error {
	if w.IsRunning() {
		if err := w.Stop(ctx, destroyStopBudget); err != nil {
			return err
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: restart delay: %v", standarderrors.ErrTimeout, ctx.Err())
		}
	}

	return w.Start(ctx)
}

// reapNonBlocking attempts a single WNOHANG reap and records the
// disposition when the child was collected.
func (w *Worker) reapNonBlocking() bool {
	disposition, reaped := reapOnce(w.pid)
	if !reaped {
		return false
	}

	w.disposition = disposition
	w.hasDisposition = true

	return true
}
