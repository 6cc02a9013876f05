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

// Package standarderrors defines the error taxonomy shared by the IPC and
// supervision layers. Callers match against these sentinels with errors.Is;
// packages wrap them with %w and add call-site context.
package standarderrors

import "errors"

var (
	// ErrInvalidArgument indicates an absent required input, an oversize
	// payload, or a malformed configuration.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceExhausted indicates a full slot buffer or a failed fork
	// under load. The caller decides whether to retry; nothing in the core
	// retries internally.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrNotFound indicates an attach to a channel or shared region that
	// does not exist yet.
	ErrNotFound = errors.New("not found")

	// ErrTimeout indicates a bounded wait that expired. It is always
	// distinguishable from both success and failure.
	ErrTimeout = errors.New("timed out")

	// ErrPeerGone indicates a child that was already reaped or a channel
	// destroyed mid-operation. The supervisor remediates this with a
	// restart rather than surfacing it.
	ErrPeerGone = errors.New("peer gone")

	// ErrFatal indicates an OS call that failed unrecoverably; the caller
	// should tear down.
	ErrFatal = errors.New("fatal")
)
