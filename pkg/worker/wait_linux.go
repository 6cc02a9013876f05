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

//go:build linux

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

// reapPollInterval paces the bounded wait loop. Short enough that a
// stop(0) escalates essentially immediately.
const reapPollInterval = 10 * time.Millisecond

func signalTerm(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

func signalKill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// decodeWaitStatus encodes the exit disposition: the low 8 bits of a
// normal exit code as >=0, a terminating signal negated.
func decodeWaitStatus(ws unix.WaitStatus) (int, error) {
	if ws.Exited() {
		return ws.ExitStatus() & 0xff, nil
	}
	if ws.Signaled() {
		return -int(ws.Signal()), nil
	}

	return 0, fmt.Errorf("%w: undeterminable exit disposition (status %#x)",
		standarderrors.ErrFatal, uint32(ws))
}

// reapOnce performs a single non-blocking reap of pid. It reports false
// when the child is still running or was already collected.
func reapOnce(pid int) (int, bool) {
	var ws unix.WaitStatus

	for {
		n, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || n != pid {
			return 0, false
		}

		disposition, derr := decodeWaitStatus(ws)
		if derr != nil {
			return 0, false
		}

		return disposition, true
	}
}

// waitPid reaps the worker's child within timeout. A negative timeout
// blocks until the child exits. The error is ErrTimeout when the child
// outlives the bound, ErrPeerGone when it was already collected, and
// ErrFatal for anything else.
func (w *Worker) waitPid(ctx context.Context, timeout time.Duration) (int, error) {
	var ws unix.WaitStatus

	if timeout < 0 {
		for {
			n, err := unix.Wait4(w.pid, &ws, 0, nil)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.ECHILD) {
				return 0, fmt.Errorf("%w: pid %d already reaped", standarderrors.ErrPeerGone, w.pid)
			}
			if err != nil {
				return 0, fmt.Errorf("%w: wait4 pid %d: %v", standarderrors.ErrFatal, w.pid, err)
			}
			if n == w.pid {
				return decodeWaitStatus(ws)
			}
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		n, err := unix.Wait4(w.pid, &ws, unix.WNOHANG, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return 0, fmt.Errorf("%w: pid %d already reaped", standarderrors.ErrPeerGone, w.pid)
		case err != nil:
			return 0, fmt.Errorf("%w: wait4 pid %d: %v", standarderrors.ErrFatal, w.pid, err)
		case n == w.pid:
			return decodeWaitStatus(ws)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, fmt.Errorf("%w: pid %d still running after %s", standarderrors.ErrTimeout, w.pid, timeout)
		}

		interval := reapPollInterval
		if remaining < interval {
			interval = remaining
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: waiting for pid %d: %v", standarderrors.ErrTimeout, w.pid, ctx.Err())
		}
	}
}
