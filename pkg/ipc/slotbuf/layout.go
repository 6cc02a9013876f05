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

package slotbuf

import "encoding/binary"

// u32 reads a native-endian word at the given region offset.
func (b *Buffer) u32(off int) uint32 {
	return binary.NativeEndian.Uint32(b.region[off:])
}

// putU32 writes a native-endian word at the given region offset.
func (b *Buffer) putU32(off int, v uint32) {
	binary.NativeEndian.PutUint32(b.region[off:], v)
}
