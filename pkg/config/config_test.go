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

package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mcuplane/mcuplane/pkg/config"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
	"github.com/mcuplane/mcuplane/pkg/worker"
)

func writeConfig(content string) string {
	path := filepath.Join(GinkgoT().TempDir(), "supervisor.yaml")
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

	return path
}

var _ = Describe("Config", func() {
	Describe("Load", func() {
		It("falls back to the defaults when the file is absent", func() {
			cfg, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Workers).To(HaveLen(2))
			Expect(cfg.Workers[0].Role).To(Equal(string(worker.RoleSerial)))
			Expect(cfg.Workers[0].Cmd).To(Equal("./air8000_test"))
			Expect(cfg.Workers[1].Role).To(Equal(string(worker.RoleBroker)))
			Expect(cfg.Workers[1].Cmd).To(Equal("./mqtt_client_test"))
		})

		It("parses a full file", func() {
			path := writeConfig(`
supervisor:
  tickSleepMs: 5
  queuePermissions: 0o600
workers:
  - role: serial
    name: uart
    cmd: /usr/local/bin/uart
    args: --device /dev/ttyS1
    autoRestart: true
    restartDelayMs: 250
  - role: broker
    cmd: /usr/local/bin/mqtt
    autoRestart: false
`)

			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Supervisor.TickSleepMs).To(Equal(5))
			Expect(cfg.Workers).To(HaveLen(2))
			Expect(cfg.Workers[0].Name).To(Equal("uart"))
			Expect(cfg.Workers[0].RestartDelayMs).To(Equal(250))
			Expect(cfg.Workers[1].AutoRestart).To(BeFalse())
		})

		It("keeps the default workers when the file lists none", func() {
			path := writeConfig("supervisor:\n  tickSleepMs: 2\n")

			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Supervisor.TickSleepMs).To(Equal(2))
			Expect(cfg.Workers).To(HaveLen(2))
		})

		It("rejects a malformed file instead of silently defaulting", func() {
			path := writeConfig("workers: [")

			_, err := config.Load(path)
			Expect(err).To(MatchError(standarderrors.ErrInvalidArgument))
		})

		It("rejects a worker without a command", func() {
			path := writeConfig("workers:\n  - role: serial\n")

			_, err := config.Load(path)
			Expect(err).To(MatchError(standarderrors.ErrInvalidArgument))
		})

		It("rejects an unknown role", func() {
			path := writeConfig("workers:\n  - role: gpu\n    cmd: /bin/true\n")

			_, err := config.Load(path)
			Expect(err).To(MatchError(standarderrors.ErrInvalidArgument))
		})
	})

	Describe("WorkerConfigs", func() {
		It("converts delays to durations", func() {
			cfg := config.DefaultConfig()
			wcs := cfg.WorkerConfigs()
			Expect(wcs).To(HaveLen(2))
			Expect(wcs[0].Role).To(Equal(worker.RoleSerial))
			Expect(wcs[0].RestartDelay).To(Equal(1000 * time.Millisecond))
		})
	})

	Describe("TickSleep", func() {
		It("clamps a non-positive setting to one millisecond", func() {
			cfg := config.FullConfig{}
			Expect(cfg.TickSleep()).To(Equal(time.Millisecond))
		})

		It("honors a positive setting", func() {
			cfg := config.FullConfig{Supervisor: config.SupervisorConfig{TickSleepMs: 7}}
			Expect(cfg.TickSleep()).To(Equal(7 * time.Millisecond))
		})
	})
})
