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

// Command migrate applies or rolls back the database schema.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/salonhub/salonhub/internal/config"
	"github.com/salonhub/salonhub/internal/observability/logger"
	"github.com/salonhub/salonhub/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var down bool
	var steps int

	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.BoolVar(&down, "down", false, "roll back instead of applying")
	flagSet.IntVar(&steps, "steps", 1, "number of migrations to roll back with --down")
	flagSet.String("log-level", "info", "debug, info, warn or error")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	level, _ := flagSet.GetString("log-level")
	log := logger.New(logger.Config{Level: level, Format: "text", ServiceName: "salonhub-migrate"})

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	pgCfg := postgres.Config{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		Database: dbCfg.Database,
		SSLMode:  dbCfg.SSLMode,
	}

	if down {
		if steps <= 0 {
			return errors.New("--steps must be positive")
		}
		return postgres.MigrateDown(pgCfg, steps, log)
	}
	return postgres.MigrateUp(pgCfg, log)
}
