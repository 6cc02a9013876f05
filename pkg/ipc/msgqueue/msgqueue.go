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

// Package msgqueue implements the typed message channels between the
// supervisor and its workers on top of kernel-hosted System V message
// queues. Delivery is FIFO by send order; the sender-chosen priority is
// carried as metadata and never used to reorder delivery, because the
// higher layers correlate requests and responses by sequence number.
package msgqueue

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mcuplane/mcuplane/pkg/ipc/message"
	"github.com/mcuplane/mcuplane/pkg/logger"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

// Well-known channel names. The names and their fixed keys are the wire
// contract with existing workers; deriving keys from the name string
// would require a full rebuild of every attacher.
const (
	NameSerialToBroker = "/air8000_uart_to_mqtt"
	NameBrokerToSerial = "/air8000_mqtt_to_uart"
)

const (
	keySerialToBroker = 0x12345678
	keyBrokerToSerial = 0x87654321
)

// DefaultPermissions is the default access mode of a freshly created queue.
const DefaultPermissions = 0o666

// Config overrides queue creation defaults. A nil Config means defaults.
type Config struct {
	// Permissions are the IPC permission bits (e.g. 0o600). Zero keeps
	// the world-read/write default.
	Permissions uint32
}

// Queue is a local handle on a named channel. The channel itself lives in
// the kernel and outlives every handle.
type Queue struct {
	log  *zap.SugaredLogger
	name string
	id   int
}

// nameToKey maps a well-known channel name to its fixed System V key.
func nameToKey(name string) (int, error) {
	switch name {
	case NameSerialToBroker:
		return keySerialToBroker, nil
	case NameBrokerToSerial:
		return keyBrokerToSerial, nil
	default:
		return 0, fmt.Errorf("%w: unknown channel name %q", standarderrors.ErrInvalidArgument, name)
	}
}

// Create creates the named channel, or attaches to it when another
// process already won the creation race.
func Create(name string, config *Config) (*Queue, error) {
	key, err := nameToKey(name)
	if err != nil {
		return nil, err
	}

	perm := uint32(DefaultPermissions)
	if config != nil && config.Permissions != 0 {
		perm = config.Permissions
	}

	id, created, err := sysvMsgCreate(key, perm)
	if err != nil {
		return nil, fmt.Errorf("%w: msgget %s: %v", standarderrors.ErrFatal, name, err)
	}

	q := &Queue{
		log:  logger.For(logger.ComponentMsgQueue),
		name: name,
		id:   id,
	}
	q.log.Infof("Channel ready: %s (id: %d, created: %v)", name, id, created)

	return q, nil
}

// OpenExisting attaches to an existing channel and fails when it is not
// present.
func OpenExisting(name string) (*Queue, error) {
	key, err := nameToKey(name)
	if err != nil {
		return nil, err
	}

	id, err := sysvMsgOpen(key)
	if err != nil {
		return nil, fmt.Errorf("%w: channel %s: %v", standarderrors.ErrNotFound, name, err)
	}

	return &Queue{
		log:  logger.For(logger.ComponentMsgQueue),
		name: name,
		id:   id,
	}, nil
}

// Name returns the channel name this handle is attached to.
func (q *Queue) Name() string {
	return q.name
}

// Close releases the local handle. System V queues need no per-process
// close; the kernel object persists until Delete.
func (q *Queue) Close() error {
	if q == nil || q.id < 0 {
		return fmt.Errorf("%w: closing invalid queue handle", standarderrors.ErrInvalidArgument)
	}

	q.id = -1

	return nil
}

// Delete removes the named channel from the kernel namespace. Messages
// still queued are discarded.
func Delete(name string) error {
	key, err := nameToKey(name)
	if err != nil {
		return err
	}

	if err := sysvMsgDelete(key); err != nil {
		return fmt.Errorf("%w: delete channel %s: %v", standarderrors.ErrFatal, name, err)
	}

	return nil
}

// Send serializes the message plus priority into a single fixed-size
// channel entry and enqueues it, blocking while the queue is full. A zero
// timestamp is stamped with the current wall-clock time before
// serialization, so every message on the wire carries a nonzero one.
func (q *Queue) Send(m *message.Message, priority uint32) error {
	if q == nil || q.id < 0 {
		return fmt.Errorf("%w: sending on invalid queue handle", standarderrors.ErrInvalidArgument)
	}
	if m == nil {
		return fmt.Errorf("%w: nil message", standarderrors.ErrInvalidArgument)
	}
	if m.Len > message.PayloadCapacity {
		return fmt.Errorf("%w: payload length %d exceeds capacity %d",
			standarderrors.ErrInvalidArgument, m.Len, message.PayloadCapacity)
	}

	stamped := *m
	if stamped.Timestamp == 0 {
		stamped.Timestamp = uint32(time.Now().Unix())
	}

	var entry [8 + message.EnvelopeSize]byte
	putMtype(entry[:8], message.Discriminator)
	if err := message.MarshalEnvelope(entry[8:], &stamped, priority); err != nil {
		return err
	}

	if err := sysvMsgSend(q.id, entry[:], message.EnvelopeSize); err != nil {
		if isQueueRemoved(err) {
			return fmt.Errorf("%w: channel %s destroyed", standarderrors.ErrPeerGone, q.name)
		}

		return fmt.Errorf("%w: msgsnd on %s: %v", standarderrors.ErrFatal, q.name, err)
	}

	return nil
}

// Receive dequeues the next entry. A negative timeout blocks until a
// message arrives; any other timeout performs a single non-blocking probe
// and reports ErrTimeout when the queue is empty. The probe shape keeps
// the supervisor's control loop from ever stalling on an idle worker.
func (q *Queue) Receive(timeout time.Duration) (message.Message, uint32, error) {
	if q == nil || q.id < 0 {
		return message.Message{}, 0, fmt.Errorf("%w: receiving on invalid queue handle", standarderrors.ErrInvalidArgument)
	}

	var entry [8 + message.EnvelopeSize]byte

	err := sysvMsgReceive(q.id, entry[:], message.EnvelopeSize, message.Discriminator, timeout < 0)
	if err != nil {
		if isQueueEmpty(err) {
			return message.Message{}, 0, fmt.Errorf("%w: channel %s empty", standarderrors.ErrTimeout, q.name)
		}
		if isQueueRemoved(err) {
			return message.Message{}, 0, fmt.Errorf("%w: channel %s destroyed", standarderrors.ErrPeerGone, q.name)
		}

		return message.Message{}, 0, fmt.Errorf("%w: msgrcv on %s: %v", standarderrors.ErrFatal, q.name, err)
	}

	return message.UnmarshalEnvelope(entry[8:])
}

// GetAttr returns the channel's kernel attributes.
func (q *Queue) GetAttr() (Attr, error) {
	if q == nil || q.id < 0 {
		return Attr{}, fmt.Errorf("%w: stat on invalid queue handle", standarderrors.ErrInvalidArgument)
	}

	attr, err := sysvMsgStat(q.id)
	if err != nil {
		return Attr{}, fmt.Errorf("%w: msgctl stat on %s: %v", standarderrors.ErrFatal, q.name, err)
	}

	return attr, nil
}

// SetAttr adjusts the channel's permission bits, the only writable
// attribute, and returns the previous attributes.
func (q *Queue) SetAttr(permissions uint32) (Attr, error) {
	if q == nil || q.id < 0 {
		return Attr{}, fmt.Errorf("%w: set on invalid queue handle", standarderrors.ErrInvalidArgument)
	}

	old, err := sysvMsgStat(q.id)
	if err != nil {
		return Attr{}, fmt.Errorf("%w: msgctl stat on %s: %v", standarderrors.ErrFatal, q.name, err)
	}

	next := old
	next.Perm.Mode = permissions
	if err := sysvMsgSet(q.id, &next); err != nil {
		return Attr{}, fmt.Errorf("%w: msgctl set on %s: %v", standarderrors.ErrFatal, q.name, err)
	}

	return old, nil
}
