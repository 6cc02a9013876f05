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

package message_test

import (
	"bytes"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mcuplane/mcuplane/pkg/ipc/message"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
)

var _ = Describe("Message", func() {
	Describe("New", func() {
		It("copies the payload and records its length", func() {
			m, err := message.New(message.KindDeviceCmd, 7, []byte{0x01, 0x02})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Kind).To(Equal(message.KindDeviceCmd))
			Expect(m.Seq).To(Equal(uint32(7)))
			Expect(m.Len).To(Equal(2))
			Expect(m.Data()).To(Equal([]byte{0x01, 0x02}))
		})

		It("accepts an empty payload", func() {
			m, err := message.New(message.KindHeartbeat, 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Len).To(BeZero())
			Expect(m.Data()).To(BeEmpty())
		})

		It("accepts a payload exactly at capacity", func() {
			m, err := message.New(message.KindFileData, 1, bytes.Repeat([]byte{0xAB}, message.PayloadCapacity))
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Len).To(Equal(message.PayloadCapacity))
		})

		It("rejects a payload one byte over capacity", func() {
			_, err := message.New(message.KindFileData, 1, make([]byte, message.PayloadCapacity+1))
			Expect(err).To(MatchError(standarderrors.ErrInvalidArgument))
		})
	})

	Describe("SetPayload", func() {
		It("zeroes the tail left over from a longer previous payload", func() {
			var m message.Message
			Expect(m.SetPayload([]byte{1, 2, 3, 4})).To(Succeed())
			Expect(m.SetPayload([]byte{9})).To(Succeed())
			Expect(m.Len).To(Equal(1))
			Expect(m.Payload[1]).To(BeZero())
			Expect(m.Payload[3]).To(BeZero())
		})
	})

	Describe("Kind", func() {
		It("accepts every enumerated kind", func() {
			for k := message.KindSensorData; k <= message.KindImageProcessed; k++ {
				Expect(k.Valid()).To(BeTrue(), "kind %d", k)
			}
		})

		It("rejects zero and out-of-range values", func() {
			Expect(message.Kind(0).Valid()).To(BeFalse())
			Expect(message.Kind(18).Valid()).To(BeFalse())
			Expect(message.Kind(0xFFFFFFFF).Valid()).To(BeFalse())
		})

		It("names the kinds used by the console", func() {
			Expect(message.KindDeviceCmd.String()).To(Equal("device-cmd"))
			Expect(message.KindResponse.String()).To(Equal("response"))
			Expect(message.Kind(99).String()).To(ContainSubstring("unknown"))
		})
	})
})

var _ = Describe("Envelope codec", func() {
	var buf []byte

	BeforeEach(func() {
		buf = make([]byte, message.EnvelopeSize)
	})

	It("round-trips message and priority", func() {
		m, err := message.New(message.KindSensorData, 42, []byte("temperature frame"))
		Expect(err).NotTo(HaveOccurred())
		m.Timestamp = 1700000000

		Expect(message.MarshalEnvelope(buf, &m, 5)).To(Succeed())

		got, prio, err := message.UnmarshalEnvelope(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(prio).To(Equal(uint32(5)))
		Expect(got).To(Equal(m))
	})

	It("carries the maximum sequence number intact", func() {
		m, err := message.New(message.KindHeartbeat, math.MaxUint32, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(message.MarshalEnvelope(buf, &m, 0)).To(Succeed())

		got, _, err := message.UnmarshalEnvelope(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Seq).To(Equal(uint32(math.MaxUint32)))
	})

	It("rejects a short buffer on both sides", func() {
		short := make([]byte, message.EnvelopeSize-1)
		var m message.Message
		Expect(message.MarshalEnvelope(short, &m, 0)).To(MatchError(standarderrors.ErrInvalidArgument))
		_, _, err := message.UnmarshalEnvelope(short)
		Expect(err).To(MatchError(standarderrors.ErrInvalidArgument))
	})

	It("rejects an envelope carrying an invalid kind", func() {
		m, err := message.New(message.KindHeartbeat, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(message.MarshalEnvelope(buf, &m, 0)).To(Succeed())

		buf[0] = 0xFF // corrupt kind
		_, _, uerr := message.UnmarshalEnvelope(buf)
		Expect(uerr).To(MatchError(standarderrors.ErrInvalidArgument))
	})

	It("rejects an envelope whose recorded length exceeds capacity", func() {
		m, err := message.New(message.KindFileData, 1, []byte{1})
		Expect(err).NotTo(HaveOccurred())
		Expect(message.MarshalEnvelope(buf, &m, 0)).To(Succeed())

		// data_len sits at offset 16; overwrite with capacity+1.
		buf[16] = 0x01
		buf[17] = 0x01
		_, _, uerr := message.UnmarshalEnvelope(buf)
		Expect(uerr).To(MatchError(standarderrors.ErrInvalidArgument))
	})
})
