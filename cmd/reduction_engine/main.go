// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/internal/engineconfig"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/internal/logs"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/internal/selfmetrics"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/internal/version"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/events"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/inmem"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/server"
)

var (
	input   = flag.String("in", "", "path to the engine config file; built-in defaults when empty")
	address = flag.String("address", "", "listen address, overrides the config file")
	logFile = flag.String("logs", "", "path to the engine log file, overrides the config file")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("The reduction engine failed to start. Detailed error: %s", err)
	}
}

func run() error {
	config, err := engineconfig.ReadConfigFile(*input)
	if err != nil {
		return err
	}
	if *address != "" {
		config.Server.ListenAddress = *address
	}
	if *logFile != "" {
		config.Logging.File = *logFile
	}

	logger := logs.New(config.Logging.File, logs.Rotation{
		MaxSizeMB:  config.Logging.MaxSizeMB,
		MaxBackups: config.Logging.MaxBackups,
	})
	logger.Infof("reduction engine %s starting", version.Version)

	provider, _ := selfmetrics.NewManualProvider()
	recorder, err := selfmetrics.NewRecorder(provider)
	if err != nil {
		return err
	}

	bus := events.NewInProcessBus(config.Events.BufferSize)
	repo := inmem.NewStore()
	svc := reduction.NewService(repo, reduction.StaticOracle{}, bus, logger, recorder, nil)

	srv := server.New(svc, bus, logger, server.Options{
		StagingDir:  config.Uploads.StagingDir,
		MaxUploadMB: config.Uploads.MaxSizeMB,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := time.Duration(config.Server.ShutdownSeconds) * time.Second
	return srv.Run(ctx, config.Server.ListenAddress, shutdown)
}
