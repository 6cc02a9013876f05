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

package msgqueue

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Attr mirrors the kernel's msqid64_ds on 64-bit Linux. Only Perm.Mode is
// writable through IPC_SET; everything else is informational.
type Attr struct {
	Perm   unix.SysvIpcPerm
	Stime  int64
	Rtime  int64
	Ctime  int64
	Cbytes uint64
	Qnum   uint64
	Qbytes uint64
	Lspid  int32
	Lrpid  int32
	_      uint64
	_      uint64
}

// putMtype writes the native-endian mtype word that prefixes every entry.
func putMtype(buf []byte, mtype int64) {
	binary.NativeEndian.PutUint64(buf, uint64(mtype))
}

func isQueueEmpty(err error) bool {
	return errors.Is(err, unix.ENOMSG) || errors.Is(err, unix.EAGAIN)
}

func isQueueRemoved(err error) bool {
	return errors.Is(err, unix.EIDRM) || errors.Is(err, unix.EINVAL)
}

// sysvMsgCreate creates the queue for key, attaching instead when another
// process already created it. Reports whether this call did the creation.
func sysvMsgCreate(key int, perm uint32) (int, bool, error) {
	id, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key),
		uintptr(unix.IPC_CREAT|unix.IPC_EXCL)|uintptr(perm), 0)
	if errno == 0 {
		return int(id), true, nil
	}
	if errno != unix.EEXIST {
		return -1, false, errno
	}

	id, _, errno = unix.Syscall(unix.SYS_MSGGET, uintptr(key),
		uintptr(unix.IPC_CREAT)|uintptr(perm), 0)
	if errno != 0 {
		return -1, false, errno
	}

	return int(id), false, nil
}

// sysvMsgOpen attaches to an existing queue only.
func sysvMsgOpen(key int) (int, error) {
	id, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key), uintptr(DefaultPermissions), 0)
	if errno != 0 {
		return -1, errno
	}

	return int(id), nil
}

// sysvMsgDelete removes the queue for key from the kernel namespace.
func sysvMsgDelete(key int) error {
	id, err := sysvMsgOpen(key)
	if err != nil {
		return err
	}

	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), unix.IPC_RMID, 0)
	if errno != 0 {
		return errno
	}

	return nil
}

// sysvMsgSend enqueues entry (mtype word plus msgsz envelope bytes),
// blocking while the queue is full. EINTR is retried: the Go runtime
// interrupts slow syscalls for preemption.
func sysvMsgSend(id int, entry []byte, msgsz int) error {
	for {
		_, _, errno := unix.Syscall6(unix.SYS_MSGSND, uintptr(id),
			uintptr(unsafe.Pointer(&entry[0])), uintptr(msgsz), 0, 0, 0)
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}

		return errno
	}
}

// sysvMsgReceive dequeues the next entry with the given mtype into entry.
// When block is false a single IPC_NOWAIT probe is made and ENOMSG is
// returned untouched for the caller to map onto a timeout.
func sysvMsgReceive(id int, entry []byte, msgsz int, mtype int64, block bool) error {
	flags := uintptr(0)
	if !block {
		flags = unix.IPC_NOWAIT
	}

	for {
		_, _, errno := unix.Syscall6(unix.SYS_MSGRCV, uintptr(id),
			uintptr(unsafe.Pointer(&entry[0])), uintptr(msgsz), uintptr(mtype), flags, 0)
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR && block {
			continue
		}

		return errno
	}
}

// sysvMsgStat fills Attr from the kernel object.
func sysvMsgStat(id int) (Attr, error) {
	var attr Attr

	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), unix.IPC_STAT,
		uintptr(unsafe.Pointer(&attr)))
	if errno != 0 {
		return Attr{}, errno
	}

	return attr, nil
}

// sysvMsgSet writes attr back; the kernel honors only the permission bits.
func sysvMsgSet(id int, attr *Attr) error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), unix.IPC_SET,
		uintptr(unsafe.Pointer(attr)))
	if errno != 0 {
		return errno
	}

	return nil
}
