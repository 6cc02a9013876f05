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

package message

import (
	"encoding/binary"
	"fmt"

	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

// Wire envelope, native-endian, matching the layout existing workers use:
//
//	mtype:i64=1 | kind:u32 seq:u32 timestamp:u32 _:u32 data_len:u64
//	payload:[256]u8 | priority:u32 _:u32
//
// The region is single-host only and not intended for cross-architecture
// access, hence native byte order.
const (
	// Discriminator is the constant mtype of every envelope. It is kept
	// at 1 to allow future differentiation without breaking the format.
	Discriminator int64 = 1

	offKind      = 0
	offSeq       = 4
	offTimestamp = 8
	offDataLen   = 16
	offPayload   = 24
	offPriority  = offPayload + PayloadCapacity

	// EnvelopeSize is the fixed entry size excluding the leading mtype
	// word, i.e. the msgsz handed to the kernel.
	EnvelopeSize = offPriority + 8
)

// MarshalEnvelope serializes m and prio into buf, which must hold at
// least EnvelopeSize bytes. All entries are fixed-size; variable-length
// semantics ride inside via the data_len field.
func MarshalEnvelope(buf []byte, m *Message, prio uint32) error {
	if len(buf) < EnvelopeSize {
		return fmt.Errorf("%w: envelope buffer %d short of %d",
			standarderrors.ErrInvalidArgument, len(buf), EnvelopeSize)
	}
	if m.Len < 0 || m.Len > PayloadCapacity {
		return fmt.Errorf("%w: payload length %d exceeds capacity %d",
			standarderrors.ErrInvalidArgument, m.Len, PayloadCapacity)
	}

	clear(buf[:EnvelopeSize])
	binary.NativeEndian.PutUint32(buf[offKind:], uint32(m.Kind))
	binary.NativeEndian.PutUint32(buf[offSeq:], m.Seq)
	binary.NativeEndian.PutUint32(buf[offTimestamp:], m.Timestamp)
	binary.NativeEndian.PutUint64(buf[offDataLen:], uint64(m.Len))
	copy(buf[offPayload:offPayload+PayloadCapacity], m.Payload[:])
	binary.NativeEndian.PutUint32(buf[offPriority:], prio)

	return nil
}

// UnmarshalEnvelope decodes an envelope previously produced by
// MarshalEnvelope (by this process or a worker speaking the same format).
func UnmarshalEnvelope(buf []byte) (Message, uint32, error) {
	if len(buf) < EnvelopeSize {
		return Message{}, 0, fmt.Errorf("%w: envelope buffer %d short of %d",
			standarderrors.ErrInvalidArgument, len(buf), EnvelopeSize)
	}

	var m Message
	m.Kind = Kind(binary.NativeEndian.Uint32(buf[offKind:]))
	m.Seq = binary.NativeEndian.Uint32(buf[offSeq:])
	m.Timestamp = binary.NativeEndian.Uint32(buf[offTimestamp:])
	dataLen := binary.NativeEndian.Uint64(buf[offDataLen:])
	if !m.Kind.Valid() {
		return Message{}, 0, fmt.Errorf("%w: message kind %d outside enumeration",
			standarderrors.ErrInvalidArgument, uint32(m.Kind))
	}
	if dataLen > PayloadCapacity {
		return Message{}, 0, fmt.Errorf("%w: payload length %d exceeds capacity %d",
			standarderrors.ErrInvalidArgument, dataLen, PayloadCapacity)
	}
	m.Len = int(dataLen)
	copy(m.Payload[:], buf[offPayload:offPayload+PayloadCapacity])
	prio := binary.NativeEndian.Uint32(buf[offPriority:])

	return m, prio, nil
}
