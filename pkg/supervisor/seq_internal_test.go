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

package supervisor

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sequence counter", func() {
	It("starts at zero and increments by one", func() {
		var s Supervisor
		Expect(s.nextSeq()).To(Equal(uint32(0)))
		Expect(s.nextSeq()).To(Equal(uint32(1)))
	})

	It("wraps modulo 2^32", func() {
		var s Supervisor
		s.seq.Store(math.MaxUint32)

		Expect(s.nextSeq()).To(Equal(uint32(math.MaxUint32)))
		Expect(s.nextSeq()).To(Equal(uint32(0)))
		Expect(s.nextSeq()).To(Equal(uint32(1)))
	})
})
