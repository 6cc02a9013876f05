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

package worker

import "github.com/looplab/fsm"

// Lifecycle states of a worker descriptor.
const (
	StateCreated  = "created"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateExited   = "exited"
	StateError    = "error"
)

// Lifecycle events. All transitions go through the descriptor's state
// machine so an out-of-order call fails loudly instead of corrupting the
// lifecycle.
const (
	// eventLaunch fires on a successful process launch.
	eventLaunch = "launch"
	// eventStopRequest fires when a graceful stop begins.
	eventStopRequest = "stop-request"
	// eventReaped fires when a stopping child has been collected.
	eventReaped = "reaped"
	// eventDied fires when the liveness probe observes a spontaneous death.
	eventDied = "died"
	// eventLaunchFailed fires on an unrecoverable launch failure.
	eventLaunchFailed = "launch-failed"
)

// lifecycleMachine is the looplab state machine driving a descriptor.
type lifecycleMachine = fsm.FSM

// newLifecycleMachine builds the descriptor state machine:
//
//	created -launch-> running -stop-request-> stopping -reaped-> exited
//	                  running -died-> exited -launch-> running
//	any -launch-failed-> error (terminal)
func newLifecycleMachine() *lifecycleMachine {
	return fsm.NewFSM(
		StateCreated,
		fsm.Events{
			{Name: eventLaunch, Src: []string{StateCreated, StateExited}, Dst: StateRunning},
			{Name: eventStopRequest, Src: []string{StateRunning}, Dst: StateStopping},
			{Name: eventReaped, Src: []string{StateStopping}, Dst: StateExited},
			{Name: eventDied, Src: []string{StateRunning, StateStopping}, Dst: StateExited},
			{Name: eventLaunchFailed, Src: []string{StateCreated, StateRunning, StateStopping, StateExited}, Dst: StateError},
		},
		fsm.Callbacks{},
	)
}
