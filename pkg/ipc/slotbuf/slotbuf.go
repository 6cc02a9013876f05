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

// Package slotbuf implements the process-shared slot buffer used for
// opportunistic bulk handoff between the supervisor and its workers.
// The region holds a fixed array of equal-sized slots with latest-sample
// semantics: writers occupy any Free slot, readers take any Used slot and
// free it. It is a scratchpad, not a queue; no ordering between slots is
// promised.
//
// The region carries no lock. Producers must stay single-writer per
// logical role, or layer their own coordination on top.
package slotbuf

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mcuplane/mcuplane/pkg/logger"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

// Fixed system-wide key of the single shared region. Part of the wire
// contract with existing workers.
const regionKey = 0x56781234

const (
	// SlotCount is the number of equal slots in the region.
	SlotCount = 4
	// SlotSize is the payload capacity of a single slot in bytes.
	SlotSize = 4096
)

// Slot states. Locked is reserved: the algorithms never enter it, but the
// value is preserved in the layout to keep the region format stable.
const (
	slotFree   = 0
	slotUsed   = 1
	slotLocked = 2
)

// Region layout, bit-for-bit, native-endian:
//
//	total_slots:u32 | free_slots:u32 | slots[SlotCount]
//	slot = { state:u32, owner:u32, data_len:u32, seq_num:u32, data:[SlotSize]u8 }
//
// Integer fields are native-endian; the region is not intended for
// cross-architecture access.
const (
	offTotalSlots = 0
	offFreeSlots  = 4
	headerSize    = 8

	slotOffState   = 0
	slotOffOwner   = 4
	slotOffDataLen = 8
	slotOffSeqNum  = 12
	slotOffData    = 16
	slotBytes      = slotOffData + SlotSize

	regionSize = headerSize + SlotCount*slotBytes
)

// Buffer is a local mapping of the shared region. The creator is
// responsible for tear-down; attachers only unmap.
type Buffer struct {
	log     *zap.SugaredLogger
	region  []byte
	shmID   int
	creator bool
}

// Create maps the shared region, creating and initializing it first when
// this process wins the creation race. On first creation the region is
// zeroed and every slot marked Free.
func Create() (*Buffer, error) {
	id, created, err := sysvShmCreate(regionKey, regionSize)
	if err != nil {
		return nil, fmt.Errorf("%w: shmget: %v", standarderrors.ErrFatal, err)
	}

	region, err := sysvShmAttach(id)
	if err != nil {
		if created {
			_ = sysvShmRemove(id)
		}

		return nil, fmt.Errorf("%w: shmat: %v", standarderrors.ErrFatal, err)
	}

	b := &Buffer{
		log:     logger.For(logger.ComponentSlotBuffer),
		region:  region,
		shmID:   id,
		creator: created,
	}

	if created {
		clear(b.region)
		b.putU32(offTotalSlots, SlotCount)
		b.putU32(offFreeSlots, SlotCount)
		for i := 0; i < SlotCount; i++ {
			b.putU32(slotOff(i, slotOffState), slotFree)
		}
	}

	b.log.Infof("Slot buffer ready (id: %d, slots: %d, created: %v)", id, SlotCount, created)

	return b, nil
}

// OpenExisting attaches to the shared region without creating it.
func OpenExisting() (*Buffer, error) {
	id, err := sysvShmOpen(regionKey, regionSize)
	if err != nil {
		return nil, fmt.Errorf("%w: shared region: %v", standarderrors.ErrNotFound, err)
	}

	region, err := sysvShmAttach(id)
	if err != nil {
		return nil, fmt.Errorf("%w: shmat: %v", standarderrors.ErrFatal, err)
	}

	return &Buffer{
		log:    logger.For(logger.ComponentSlotBuffer),
		region: region,
		shmID:  id,
	}, nil
}

// Destroy unmaps the region. The creating process additionally removes it
// from the kernel namespace; attachers leave it in place.
func (b *Buffer) Destroy() {
	if b == nil || b.region == nil {
		return
	}

	if err := sysvShmDetach(b.region); err != nil {
		b.log.Errorf("shmdt failed: %v", err)
	}
	b.region = nil

	if b.creator && b.shmID >= 0 {
		if err := sysvShmRemove(b.shmID); err != nil {
			b.log.Errorf("shmctl rmid failed: %v", err)
		}
		b.shmID = -1
	}
}

// Write copies data into the first Free slot, scanning in index order.
// The scan order is deterministic so tests and single-writer producers
// see stable placement. Not safe against concurrent writers; see the
// package comment.
func (b *Buffer) Write(data []byte) error {
	if b == nil || b.region == nil {
		return fmt.Errorf("%w: write on detached slot buffer", standarderrors.ErrInvalidArgument)
	}
	if len(data) > SlotSize {
		return fmt.Errorf("%w: %d bytes exceed slot size %d",
			standarderrors.ErrInvalidArgument, len(data), SlotSize)
	}

	idx := b.findSlot(slotFree)
	if idx < 0 {
		return fmt.Errorf("%w: all %d slots in use", standarderrors.ErrResourceExhausted, SlotCount)
	}

	copy(b.region[slotOff(idx, slotOffData):slotOff(idx, slotOffData)+SlotSize], data)
	b.putU32(slotOff(idx, slotOffDataLen), uint32(len(data)))
	b.putU32(slotOff(idx, slotOffSeqNum), b.u32(slotOff(idx, slotOffSeqNum))+1)
	b.putU32(slotOff(idx, slotOffOwner), uint32(os.Getpid()))
	b.putU32(slotOff(idx, slotOffState), slotUsed)
	b.putU32(offFreeSlots, b.u32(offFreeSlots)-1)

	return nil
}

// Read copies the first Used slot into buf and frees it, returning the
// number of bytes copied, at most min(data_len, len(buf)). When no slot
// is Used it returns 0 immediately: the timeout parameter is accepted for
// API stability but this implementation never blocks.
func (b *Buffer) Read(buf []byte, timeout time.Duration) (int, error) {
	_ = timeout

	if b == nil || b.region == nil {
		return 0, fmt.Errorf("%w: read on detached slot buffer", standarderrors.ErrInvalidArgument)
	}

	idx := b.findSlot(slotUsed)
	if idx < 0 {
		return 0, nil
	}

	n := int(b.u32(slotOff(idx, slotOffDataLen)))
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf[:n], b.region[slotOff(idx, slotOffData):slotOff(idx, slotOffData)+n])

	b.putU32(slotOff(idx, slotOffOwner), 0)
	b.putU32(slotOff(idx, slotOffState), slotFree)
	b.putU32(offFreeSlots, b.u32(offFreeSlots)+1)

	return n, nil
}

// DataLen returns the payload length of the first Used slot, or 0.
func (b *Buffer) DataLen() int {
	if b == nil || b.region == nil {
		return 0
	}

	idx := b.findSlot(slotUsed)
	if idx < 0 {
		return 0
	}

	return int(b.u32(slotOff(idx, slotOffDataLen)))
}

// IsReady reports whether any slot holds data.
func (b *Buffer) IsReady() bool {
	if b == nil || b.region == nil {
		return false
	}

	return b.findSlot(slotUsed) >= 0
}

// FreeSlots returns the free-slot counter from the control header.
func (b *Buffer) FreeSlots() int {
	if b == nil || b.region == nil {
		return 0
	}

	return int(b.u32(offFreeSlots))
}

// TotalSlots returns the total-slot counter from the control header.
func (b *Buffer) TotalSlots() int {
	if b == nil || b.region == nil {
		return 0
	}

	return int(b.u32(offTotalSlots))
}

// findSlot returns the index of the first slot in the given state, or -1.
func (b *Buffer) findSlot(state uint32) int {
	for i := 0; i < SlotCount; i++ {
		if b.u32(slotOff(i, slotOffState)) == state {
			return i
		}
	}

	return -1
}

func slotOff(idx, field int) int {
	return headerSize + idx*slotBytes + field
}
