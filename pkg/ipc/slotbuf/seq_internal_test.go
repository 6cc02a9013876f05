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

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("slot sequence numbers", func() {
	var buf *Buffer

	BeforeEach(func() {
		var err error
		buf, err = Create()
		Expect(err).NotTo(HaveOccurred())

		scratch := make([]byte, SlotSize)
		for {
			n, rerr := buf.Read(scratch, 0)
			Expect(rerr).NotTo(HaveOccurred())
			if n == 0 {
				break
			}
		}
	})

	AfterEach(func() {
		buf.Destroy()
	})

	It("wraps the per-slot counter modulo 2^32 without touching the header", func() {
		buf.putU32(slotOff(0, slotOffSeqNum), math.MaxUint32)

		Expect(buf.Write([]byte("wrap"))).To(Succeed())

		Expect(buf.u32(slotOff(0, slotOffSeqNum))).To(Equal(uint32(0)))
		Expect(buf.u32(slotOff(0, slotOffState))).To(Equal(uint32(slotUsed)))
		Expect(buf.FreeSlots()).To(Equal(SlotCount - 1))
		Expect(buf.TotalSlots()).To(Equal(SlotCount))

		got := make([]byte, SlotSize)
		n, err := buf.Read(got, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[:n]).To(Equal([]byte("wrap")))
	})
})
