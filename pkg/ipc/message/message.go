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

// Package message defines the typed message record carried between the
// supervisor and its workers, and the fixed-size wire envelope it rides in.
// Payload semantics are defined by Kind and deliberately opaque here.
package message

import (
	"fmt"

	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

// Kind identifies the message type. The numeric values are part of the
// wire contract with existing workers and must not be reordered.
type Kind uint32

const (
	KindSensorData Kind = iota + 1
	KindMotorCmd
	KindDeviceCmd
	KindHeartbeat
	KindResponse
	KindFileData
	KindFileStart
	KindFileEnd
	KindFileAck
	KindFileNack
	KindFileInfo
	KindFotaData
	KindFotaStart
	KindFotaEnd
	KindFotaComplete
	KindFileComplete
	KindImageProcessed

	kindMax = KindImageProcessed
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSensorData:
		return "sensor-data"
	case KindMotorCmd:
		return "motor-cmd"
	case KindDeviceCmd:
		return "device-cmd"
	case KindHeartbeat:
		return "heartbeat"
	case KindResponse:
		return "response"
	case KindFileData:
		return "file-data"
	case KindFileStart:
		return "file-start"
	case KindFileEnd:
		return "file-end"
	case KindFileAck:
		return "file-ack"
	case KindFileNack:
		return "file-nack"
	case KindFileInfo:
		return "file-info"
	case KindFotaData:
		return "fota-data"
	case KindFotaStart:
		return "fota-start"
	case KindFotaEnd:
		return "fota-end"
	case KindFotaComplete:
		return "fota-complete"
	case KindFileComplete:
		return "file-complete"
	case KindImageProcessed:
		return "image-processed"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(k))
	}
}

// Valid reports whether the kind is within the enumeration.
func (k Kind) Valid() bool {
	return k >= KindSensorData && k <= kindMax
}

// PayloadCapacity is the fixed payload carrier size in bytes.
const PayloadCapacity = 256

// Message is the record exchanged over a channel. Seq is a sender-local
// monotonically increasing counter and the only reliable correlation
// handle between requests and responses. Timestamp is seconds since
// epoch; a zero timestamp is stamped by the channel at send time.
type Message struct {
	Kind      Kind
	Seq       uint32
	Timestamp uint32
	Len       int
	Payload   [PayloadCapacity]byte
}

// New builds a message of the given kind with the payload copied in.
func New(kind Kind, seq uint32, payload []byte) (Message, error) {
	m := Message{Kind: kind, Seq: seq}
	if err := m.SetPayload(payload); err != nil {
		return Message{}, err
	}

	return m, nil
}

// SetPayload copies b into the fixed carrier.
func (m *Message) SetPayload(b []byte) error {
	if len(b) > PayloadCapacity {
		return fmt.Errorf("%w: payload %d exceeds capacity %d",
			standarderrors.ErrInvalidArgument, len(b), PayloadCapacity)
	}

	n := copy(m.Payload[:], b)
	for i := n; i < PayloadCapacity; i++ {
		m.Payload[i] = 0
	}
	m.Len = len(b)

	return nil
}

// Data returns the live payload bytes.
func (m *Message) Data() []byte {
	if m.Len < 0 || m.Len > PayloadCapacity {
		return nil
	}

	return m.Payload[:m.Len]
}
