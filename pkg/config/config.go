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

// Package config holds the supervisor's configuration. The program takes
// no flags and consults no environment; an optional supervisor.yaml next
// to the binary overrides the built-in worker set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcuplane/mcuplane/pkg/logger"
	"github.com/mcuplane/mcuplane/pkg/standarderrors"
	"github.com/mcuplane/mcuplane/pkg/worker"
)

// DefaultPath is where Load looks for an override file.
const DefaultPath = "supervisor.yaml"

// FullConfig is the root of the configuration file.
type FullConfig struct {
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Workers    []WorkerConfig   `yaml:"workers"`
}

// SupervisorConfig tunes the control loop.
type SupervisorConfig struct {
	// TickSleepMs is the inter-iteration sleep capping CPU use.
	TickSleepMs int `yaml:"tickSleepMs,omitempty"`
	// QueuePermissions overrides the message channel permission bits.
	QueuePermissions uint32 `yaml:"queuePermissions,omitempty"`
}

// WorkerConfig describes one supervised worker.
type WorkerConfig struct {
	Role           string `yaml:"role"`
	Name           string `yaml:"name,omitempty"`
	Cmd            string `yaml:"cmd"`
	Args           string `yaml:"args,omitempty"`
	AutoRestart    bool   `yaml:"autoRestart"`
	RestartDelayMs int    `yaml:"restartDelayMs,omitempty"`
}

// DefaultConfig returns the built-in configuration: the serial worker and
// the broker worker, both auto-restarting with a 1 s backoff.
func DefaultConfig() FullConfig {
	return FullConfig{
		Supervisor: SupervisorConfig{
			TickSleepMs: 1,
		},
		Workers: []WorkerConfig{
			{
				Role:           string(worker.RoleSerial),
				Name:           "air8000_uart",
				Cmd:            "./air8000_test",
				AutoRestart:    true,
				RestartDelayMs: 1000,
			},
			{
				Role:           string(worker.RoleBroker),
				Name:           "air8000_mqtt",
				Cmd:            "./mqtt_client_test",
				AutoRestart:    true,
				RestartDelayMs: 1000,
			},
		},
	}
}

// Load reads the configuration from path, falling back to the built-in
// defaults when the file does not exist. A present but malformed file is
// an error: silently ignoring it would launch the wrong workers.
func Load(path string) (FullConfig, error) {
	log := logger.For(logger.ComponentConfig)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("No config file at %s, using built-in defaults", path)
		return DefaultConfig(), nil
	}
	if err != nil {
		return FullConfig{}, fmt.Errorf("%w: reading %s: %v", standarderrors.ErrFatal, path, err)
	}

	cfg := DefaultConfig()
	cfg.Workers = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FullConfig{}, fmt.Errorf("%w: parsing %s: %v", standarderrors.ErrInvalidArgument, path, err)
	}
	if len(cfg.Workers) == 0 {
		log.Infof("Config file %s lists no workers, keeping the default worker set", path)
		cfg.Workers = DefaultConfig().Workers
	}

	if err := cfg.Validate(); err != nil {
		return FullConfig{}, err
	}

	return cfg, nil
}

// Validate checks worker entries for the mistakes that would otherwise
// only surface as launch failures at runtime.
func (c FullConfig) Validate() error {
	for i, w := range c.Workers {
		if w.Cmd == "" {
			return fmt.Errorf("%w: worker %d has no cmd", standarderrors.ErrInvalidArgument, i)
		}
		if w.Role != string(worker.RoleSerial) && w.Role != string(worker.RoleBroker) {
			return fmt.Errorf("%w: worker %d has unknown role %q", standarderrors.ErrInvalidArgument, i, w.Role)
		}
	}

	return nil
}

// WorkerConfigs converts the file entries into worker.Config values.
func (c FullConfig) WorkerConfigs() []worker.Config {
	configs := make([]worker.Config, 0, len(c.Workers))
	for _, w := range c.Workers {
		configs = append(configs, worker.Config{
			Role:         worker.Role(w.Role),
			Name:         w.Name,
			Cmd:          w.Cmd,
			Args:         w.Args,
			AutoRestart:  w.AutoRestart,
			RestartDelay: time.Duration(w.RestartDelayMs) * time.Millisecond,
		})
	}

	return configs
}

// TickSleep returns the configured inter-iteration sleep.
func (c FullConfig) TickSleep() time.Duration {
	if c.Supervisor.TickSleepMs <= 0 {
		return time.Millisecond
	}

	return time.Duration(c.Supervisor.TickSleepMs) * time.Millisecond
}
