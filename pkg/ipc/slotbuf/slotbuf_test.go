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

package slotbuf_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mcuplane/mcuplane/pkg/ipc/slotbuf"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

// drain frees every Used slot so the region starts each spec empty even
// when a previous run left data behind.
func drain(b *slotbuf.Buffer) {
	buf := make([]byte, slotbuf.SlotSize)
	for b.IsReady() {
		_, err := b.Read(buf, 0)
		Expect(err).NotTo(HaveOccurred())
	}
}

var _ = Describe("Buffer", func() {
	var b *slotbuf.Buffer

	BeforeEach(func() {
		var err error
		b, err = slotbuf.Create()
		Expect(err).NotTo(HaveOccurred())
		drain(b)
	})

	AfterEach(func() {
		b.Destroy()
	})

	Describe("Create", func() {
		It("initializes the header on first creation", func() {
			Expect(b.TotalSlots()).To(Equal(slotbuf.SlotCount))
			Expect(b.FreeSlots()).To(Equal(slotbuf.SlotCount))
			Expect(b.IsReady()).To(BeFalse())
		})

		It("attaches a second mapping that sees the first one's writes", func() {
			other, err := slotbuf.OpenExisting()
			Expect(err).NotTo(HaveOccurred())
			defer other.Destroy()

			Expect(b.Write([]byte("cross-mapping"))).To(Succeed())
			Expect(other.IsReady()).To(BeTrue())
			Expect(other.DataLen()).To(Equal(len("cross-mapping")))

			buf := make([]byte, slotbuf.SlotSize)
			n, err := other.Read(buf, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(buf[:n])).To(Equal("cross-mapping"))
		})
	})

	Describe("Write", func() {
		It("round-trips a payload", func() {
			payload := []byte("sensor bulk frame")
			Expect(b.Write(payload)).To(Succeed())
			Expect(b.IsReady()).To(BeTrue())
			Expect(b.DataLen()).To(Equal(len(payload)))
			Expect(b.FreeSlots()).To(Equal(slotbuf.SlotCount - 1))

			buf := make([]byte, slotbuf.SlotSize)
			n, err := b.Read(buf, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(buf[:n]).To(Equal(payload))
			Expect(b.FreeSlots()).To(Equal(slotbuf.SlotCount))
		})

		It("accepts a payload exactly at slot size", func() {
			Expect(b.Write(bytes.Repeat([]byte{0x5A}, slotbuf.SlotSize))).To(Succeed())
			Expect(b.DataLen()).To(Equal(slotbuf.SlotSize))
		})

		It("rejects a payload one byte over slot size without touching a slot", func() {
			err := b.Write(make([]byte, slotbuf.SlotSize+1))
			Expect(err).To(MatchError(standarderrors.ErrInvalidArgument))
			Expect(b.FreeSlots()).To(Equal(slotbuf.SlotCount))
		})

		It("reports exhaustion after filling every slot, then recovers after a read", func() {
			for i := 0; i < slotbuf.SlotCount; i++ {
				Expect(b.Write([]byte{byte(i)})).To(Succeed())
			}
			Expect(b.FreeSlots()).To(BeZero())

			err := b.Write([]byte("overflow"))
			Expect(err).To(MatchError(standarderrors.ErrResourceExhausted))

			buf := make([]byte, slotbuf.SlotSize)
			_, rerr := b.Read(buf, 0)
			Expect(rerr).NotTo(HaveOccurred())
			Expect(b.Write([]byte("fits now"))).To(Succeed())
		})

		It("accepts an empty payload", func() {
			Expect(b.Write(nil)).To(Succeed())
			Expect(b.IsReady()).To(BeTrue())
			Expect(b.DataLen()).To(BeZero())
		})
	})

	Describe("Read", func() {
		It("returns 0 immediately when no slot is ready", func() {
			buf := make([]byte, slotbuf.SlotSize)
			n, err := b.Read(buf, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})

		It("truncates to the caller's buffer without corrupting the region", func() {
			Expect(b.Write([]byte("0123456789"))).To(Succeed())

			small := make([]byte, 4)
			n, err := b.Read(small, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(4))
			Expect(string(small)).To(Equal("0123"))
			Expect(b.FreeSlots()).To(Equal(slotbuf.SlotCount))
		})
	})
})
