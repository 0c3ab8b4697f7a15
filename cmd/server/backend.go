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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/config"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/store/memory"
	"github.com/salonhub/salonhub/internal/store/postgres"
	"github.com/salonhub/salonhub/internal/tenant"
	transportHTTP "github.com/salonhub/salonhub/internal/transport/http"
)

// backend bundles the repositories of one storage driver
type backend struct {
	store   authz.Store
	users   identity.UserRepository
	tenants tenant.Repository
	pinger  transportHTTP.Pinger
	close   func()
}

func postgresConfig(c config.DatabaseConfig) postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// openBackend connects the configured store. The postgres driver applies
// pending migrations before the pool is opened.
func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error) {
	switch cfg.Engine.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; state is lost on restart")
		st := memory.New()
		return &backend{
			store:   st,
			users:   st.Users(),
			tenants: st.Tenants(),
			close:   func() {},
		}, nil

	case config.StoreDriverPostgres:
		pgCfg := postgresConfig(cfg.Database)
		if err := postgres.MigrateUp(pgCfg, log); err != nil {
			return nil, err
		}
		db, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		log.Info("connected to database")
		return &backend{
			store:   postgres.NewAuthzStore(db),
			users:   postgres.NewUserRepository(db),
			tenants: postgres.NewTenantRepository(db),
			pinger:  db,
			close:   db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Engine.StoreDriver)
}
