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

package supervisor_test

import (
	"bytes"
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mcuplane/mcuplane/pkg/config"
	"github.com/mcuplane/mcuplane/pkg/ipc/msgqueue"
	"github.com/mcuplane/mcuplane/pkg/supervisor"
	"github.com/mcuplane/mcuplane/pkg/worker"
)

// testConfig supervises two sleepers so Start succeeds without the real
// worker binaries. AutoRestart stays off to keep the loop deterministic.
func testConfig() config.FullConfig {
	return config.FullConfig{
		Supervisor: config.SupervisorConfig{TickSleepMs: 1},
		Workers: []config.WorkerConfig{
			{Role: string(worker.RoleSerial), Name: "fake_serial", Cmd: "/bin/sleep", Args: "30"},
			{Role: string(worker.RoleBroker), Name: "fake_broker", Cmd: "/bin/sleep", Args: "30"},
		},
	}
}

var _ = Describe("Supervisor", func() {
	var (
		ctx context.Context
		out bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		out.Reset()
	})

	Describe("New", func() {
		It("creates both channels and the slot buffer", func() {
			s, err := supervisor.New(testConfig(), strings.NewReader(""), &out)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = s.Shutdown(ctx) }()

			q, err := msgqueue.OpenExisting(msgqueue.NameSerialToBroker)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.Close()).To(Succeed())

			q, err = msgqueue.OpenExisting(msgqueue.NameBrokerToSerial)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.Close()).To(Succeed())

			Expect(s.Workers()).To(HaveLen(2))
			Expect(s.Workers()[0].State()).To(Equal(worker.StateCreated))
		})

		It("rejects a worker config the worker package rejects", func() {
			cfg := testConfig()
			cfg.Workers[0].Role = "gpu"
			_, err := supervisor.New(cfg, strings.NewReader(""), &out)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Start", func() {
		It("launches every worker", func() {
			s, err := supervisor.New(testConfig(), strings.NewReader(""), &out)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = s.Shutdown(ctx) }()

			Expect(s.Start(ctx)).To(Succeed())
			for _, w := range s.Workers() {
				Expect(w.IsRunning()).To(BeTrue())
				Expect(w.Pid()).To(BeNumerically(">", 0))
			}
		})

		It("stops the survivors when one launch fails", func() {
			cfg := testConfig()
			cfg.Workers[1].Cmd = "/nonexistent/binary"
			s, err := supervisor.New(cfg, strings.NewReader(""), &out)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = s.Shutdown(ctx) }()

			Expect(s.Start(ctx)).To(HaveOccurred())
			Expect(s.Workers()[0].IsRunning()).To(BeFalse())
		})
	})

	Describe("Run", func() {
		It("exits on the quit selection and tears everything down", func() {
			s, err := supervisor.New(testConfig(), strings.NewReader("0\n"), &out)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Start(ctx)).To(Succeed())
			Expect(s.Run(ctx)).To(Succeed())

			for _, w := range s.Workers() {
				Expect(w.IsRunning()).To(BeFalse())
			}

			_, err = msgqueue.OpenExisting(msgqueue.NameSerialToBroker)
			Expect(err).To(HaveOccurred())
			_, err = msgqueue.OpenExisting(msgqueue.NameBrokerToSerial)
			Expect(err).To(HaveOccurred())
		})

		It("exits when the console input is exhausted", func() {
			s, err := supervisor.New(testConfig(), strings.NewReader(""), &out)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Start(ctx)).To(Succeed())
			Expect(s.Run(ctx)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Select option"))
		})

		It("dispatches a console command onto the broker-to-serial channel", func() {
			s, err := supervisor.New(testConfig(), strings.NewReader("1\n0\n"), &out)
			Expect(err).NotTo(HaveOccurred())

			// Attach before Run so the command is observable after the
			// supervisor deleted its queues.
			q, err := msgqueue.OpenExisting(msgqueue.NameBrokerToSerial)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Start(ctx)).To(Succeed())

			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()

			m, _, rerr := q.Receive(-1)
			Expect(rerr).NotTo(HaveOccurred())
			Expect(m.Data()).To(Equal([]byte{0x01}))

			Eventually(done, 10*time.Second).Should(Receive(BeNil()))
		})
	})

	Describe("Shutdown", func() {
		It("is idempotent", func() {
			s, err := supervisor.New(testConfig(), strings.NewReader(""), &out)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Shutdown(ctx)).To(Succeed())
			Expect(s.Shutdown(ctx)).To(Succeed())
		})
	})
})
