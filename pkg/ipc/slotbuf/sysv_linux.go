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

package slotbuf

import "golang.org/x/sys/unix"

// sysvShmCreate gets the segment for key, creating it when absent.
// Reports whether this call did the creation, which decides tear-down
// ownership later.
func sysvShmCreate(key, size int) (int, bool, error) {
	id, err := unix.SysvShmGet(key, size, unix.IPC_CREAT|unix.IPC_EXCL|0o666)
	if err == nil {
		return id, true, nil
	}
	if err != unix.EEXIST {
		return -1, false, err
	}

	id, err = unix.SysvShmGet(key, size, unix.IPC_CREAT|0o666)
	if err != nil {
		return -1, false, err
	}

	return id, false, nil
}

// sysvShmOpen gets an existing segment only.
func sysvShmOpen(key, size int) (int, error) {
	return unix.SysvShmGet(key, size, 0o666)
}

// sysvShmAttach maps the segment read-write into this process.
func sysvShmAttach(id int) ([]byte, error) {
	return unix.SysvShmAttach(id, 0, 0)
}

// sysvShmDetach unmaps a previously attached segment.
func sysvShmDetach(region []byte) error {
	return unix.SysvShmDetach(region)
}

// sysvShmRemove removes the segment from the kernel namespace.
func sysvShmRemove(id int) error {
	_, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil)

	return err
}
