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

// Package supervisor owns the control plane: it creates the message
// channels and the slot buffer, launches the workers, and drives the
// single-threaded control loop that monitors, dispatches console
// commands, and drains worker replies.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mcuplane/mcuplane/pkg/config"
	"github.com/mcuplane/mcuplane/pkg/console"
	"github.com/mcuplane/mcuplane/pkg/ipc/msgqueue"
	"github.com/mcuplane/mcuplane/pkg/ipc/slotbuf"
	"github.com/mcuplane/mcuplane/pkg/logger"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
	"github.com/mcuplane/mcuplane/pkg/worker"
)

// Supervisor holds every IPC object and worker handle. All lifecycle
// transitions run on the control loop goroutine; only the shutdown flag
// and the sequence counter are touched from elsewhere.
type Supervisor struct {
	log *zap.SugaredLogger
	cfg config.FullConfig

	slots          *slotbuf.Buffer
	serialToBroker *msgqueue.Queue
	brokerToSerial *msgqueue.Queue

	workers  []*worker.Worker
	backoffs []backoff.BackOff

	console *console.Console

	seq          atomic.Uint32
	shuttingDown atomic.Bool
}

// New builds the supervisor: slot buffer first, then both channels, then
// the worker handles. Nothing is launched yet. On any failure the IPC
// objects created so far are torn down again.
func New(cfg config.FullConfig, consoleIn io.Reader, consoleOut io.Writer) (s *Supervisor, err error) {
	s = &Supervisor{
		log: logger.For(logger.ComponentSupervisor),
		cfg: cfg,
	}
	defer func() {
		if err != nil {
			s.teardownIPC()
		}
	}()

	s.slots, err = slotbuf.Create()
	if err != nil {
		return nil, fmt.Errorf("creating slot buffer: %w", err)
	}

	var qcfg *msgqueue.Config
	if cfg.Supervisor.QueuePermissions != 0 {
		qcfg = &msgqueue.Config{Permissions: cfg.Supervisor.QueuePermissions}
	}

	s.serialToBroker, err = msgqueue.Create(msgqueue.NameSerialToBroker, qcfg)
	if err != nil {
		return nil, fmt.Errorf("creating serial-to-broker channel: %w", err)
	}

	s.brokerToSerial, err = msgqueue.Create(msgqueue.NameBrokerToSerial, qcfg)
	if err != nil {
		return nil, fmt.Errorf("creating broker-to-serial channel: %w", err)
	}

	for _, wc := range cfg.WorkerConfigs() {
		w, werr := worker.New(wc)
		if werr != nil {
			return nil, fmt.Errorf("building worker %q: %w", wc.Name, werr)
		}
		s.workers = append(s.workers, w)

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = wc.RestartDelay
		bo.MaxInterval = 30 * time.Second
		bo.MaxElapsedTime = 0
		s.backoffs = append(s.backoffs, bo)
	}

	s.console = console.New(consoleIn, consoleOut, s.nextSeq)

	return s, nil
}

// nextSeq hands out sequence numbers starting at zero.
func (s *Supervisor) nextSeq() uint32 {
	return s.seq.Add(1) - 1
}

// RequestShutdown asks the control loop to exit after the current
// iteration. Safe to call from signal handlers.
func (s *Supervisor) RequestShutdown() {
	s.shuttingDown.Store(true)
}

// Workers returns the supervised worker handles.
func (s *Supervisor) Workers() []*worker.Worker {
	return s.workers
}

// Start launches every configured worker. A launch failure stops the
// ones already running before returning.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, w := range s.workers {
		if err := w.Start(ctx); err != nil {
			s.log.Errorf("failed to start worker %s: %v", w.Name(), err)
			s.stopAll(ctx)

			return err
		}
		s.log.Infof("worker %s started, pid %d", w.Name(), w.Pid())
	}

	return nil
}

// Run drives the control loop until the context is cancelled, shutdown
// is requested, or the console input is exhausted. Each iteration:
// monitor tick, menu round-trip, command dispatch, reply drain.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Info("control loop running")

	for ctx.Err() == nil && !s.shuttingDown.Load() {
		s.monitorWorkers(ctx)

		s.console.PrintMenu()
		choice, ok, err := s.console.ReadChoice()
		if err != nil {
			// Input stream gone, no operator left to serve.
			s.log.Infof("console input closed: %v", err)
			break
		}
		if ok {
			m, send, quit := s.console.Command(choice)
			if quit {
				s.log.Info("operator requested exit")
				break
			}
			if send {
				if serr := s.brokerToSerial.Send(&m, 0); serr != nil {
					s.log.Errorf("dispatching %s command: %v", m.Kind, serr)
				}
			}
		}

		sleepCtx(ctx, s.cfg.TickSleep())

		s.drainReplies()
	}

	return s.Shutdown(ctx)
}

// monitorWorkers reaps and probes every worker and restarts dead ones
// that want restarting. Repeated deaths widen the restart delay.
func (s *Supervisor) monitorWorkers(ctx context.Context) {
	for i, w := range s.workers {
		prev := w.State()
		if err := w.UpdateState(ctx); err != nil {
			s.log.Warnf("probing worker %s: %v", w.Name(), err)
		}
		curr := w.State()
		if prev != curr {
			s.log.Infof("worker %s state changed: %s -> %s", w.Name(), prev, curr)
		}

		if w.IsRunning() {
			s.backoffs[i].Reset()
			continue
		}

		if !w.Config().AutoRestart || curr == worker.StateError {
			continue
		}

		delay := s.backoffs[i].NextBackOff()
		if code, ok := w.Disposition(); ok {
			s.log.Infof("worker %s not running, disposition %d, restarting in %s",
				w.Name(), code, delay)
		} else {
			s.log.Infof("worker %s not running, restarting in %s", w.Name(), delay)
		}

		if err := w.Restart(ctx, delay); err != nil {
			s.log.Errorf("restarting worker %s: %v", w.Name(), err)
		}
	}
}

// drainReplies empties the serial-to-broker channel without blocking and
// renders every reply on the console.
func (s *Supervisor) drainReplies() {
	for {
		m, _, err := s.serialToBroker.Receive(0)
		if err != nil {
			if !errors.Is(err, standarderrors.ErrTimeout) {
				s.log.Warnf("draining replies: %v", err)
			}

			return
		}

		s.console.RenderReply(m)
	}
}

// Shutdown stops both workers in parallel, then removes the channels and
// the slot region. Idempotent.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if !s.shuttingDown.CompareAndSwap(false, true) && s.slots == nil {
		return nil
	}
	s.log.Info("shutting down")

	err := s.stopAll(ctx)
	s.teardownIPC()

	s.log.Info("shutdown complete")

	return err
}

// stopAll destroys every worker concurrently. Destroy applies the stop
// budget and escalates to SIGKILL on its own.
func (s *Supervisor) stopAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			if err := w.Destroy(gctx); err != nil {
				s.log.Errorf("stopping worker %s: %v", w.Name(), err)
				return err
			}

			return nil
		})
	}

	return g.Wait()
}

// teardownIPC removes whatever IPC objects exist, in reverse creation
// order.
func (s *Supervisor) teardownIPC() {
	if s.brokerToSerial != nil {
		if err := s.brokerToSerial.Close(); err != nil {
			s.log.Warnf("closing broker-to-serial channel: %v", err)
		}
		if err := msgqueue.Delete(msgqueue.NameBrokerToSerial); err != nil {
			s.log.Warnf("deleting broker-to-serial channel: %v", err)
		}
		s.brokerToSerial = nil
	}

	if s.serialToBroker != nil {
		if err := s.serialToBroker.Close(); err != nil {
			s.log.Warnf("closing serial-to-broker channel: %v", err)
		}
		if err := msgqueue.Delete(msgqueue.NameSerialToBroker); err != nil {
			s.log.Warnf("deleting serial-to-broker channel: %v", err)
		}
		s.serialToBroker = nil
	}

	if s.slots != nil {
		s.slots.Destroy()
		s.slots = nil
	}
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
