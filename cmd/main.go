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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcuplane/mcuplane/pkg/config"
	"github.com/mcuplane/mcuplane/pkg/logger"
	"github.com/mcuplane/mcuplane/pkg/supervisor"
)

func main() {
	// Initialize the global logger first thing
	logger.Initialize()
	defer func() { _ = logger.Sync() }()

	log := logger.For(logger.ComponentSupervisor)
	log.Info("Starting mcuplane supervisor...")

	// Workers inherit stdio and may die mid-write; the supervisor must
	// not be taken down by a broken pipe.
	signal.Ignore(syscall.SIGPIPE)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the config, falling back to the built-in defaults
	path := config.DefaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// The operator console lives on stdin/stdout; logs go to stderr.
	sup, err := supervisor.New(cfg, os.Stdin, os.Stdout)
	if err != nil {
		log.Errorf("Failed to set up IPC: %v", err)
		os.Exit(1)
	}

	if err := sup.Start(ctx); err != nil {
		log.Errorf("Failed to start workers: %v", err)
		_ = sup.Shutdown(context.Background())
		os.Exit(1)
	}

	fmt.Println("\nAll workers started successfully!")
	fmt.Println("Press Ctrl+C to exit...")

	// signal.NotifyContext cancels ctx on the first SIGINT/SIGTERM; the
	// control loop notices and runs the shutdown path itself.
	if err := sup.Run(ctx); err != nil {
		log.Errorf("Shutdown finished with errors: %v", err)
		os.Exit(1)
	}
}
