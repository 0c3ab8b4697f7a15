// Copyright 2026 The SalonHub Authors
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

// Command cleanup deletes expired role assignments and direct grants. The
// server already ignores them; this keeps the tables small when the built-in
// sweeper is disabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/salonhub/salonhub/internal/config"
	"github.com/salonhub/salonhub/internal/observability/logger"
	"github.com/salonhub/salonhub/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cleanup: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var before time.Duration

	flagSet := pflag.NewFlagSet("cleanup", pflag.ContinueOnError)
	flagSet.DurationVar(&before, "grace", 0, "only delete rows expired for at least this long")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if before < 0 {
		return errors.New("--grace must not be negative")
	}
	log := logger.New(logger.Config{Level: "info", Format: "text", ServiceName: "salonhub-cleanup"})

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, postgres.Config{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		Database: dbCfg.Database,
		SSLMode:  dbCfg.SSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := postgres.NewAuthzStore(db).SweepExpired(ctx, time.Now().Add(-before))
	if err != nil {
		return err
	}
	log.Info("swept expired grants", logger.RowsAffected(n))
	return nil
}
