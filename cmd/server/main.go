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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/config"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/observability/logger"
	"github.com/salonhub/salonhub/internal/observability/metrics"
	"github.com/salonhub/salonhub/internal/observability/tracing"
	"github.com/salonhub/salonhub/internal/tenant"
	transportHTTP "github.com/salonhub/salonhub/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTel:        cfg.Observability.OTELEnabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Phase: CLI Commands
	if len(os.Args) > 2 && os.Args[1] == "token" {
		if err := runIssueToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Token issue failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log.Info("starting salonhub authorization service")
	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// Initialize tracer
	traces, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	if traces.Enabled() {
		log.Info("exporting traces over OTLP", slog.Float64("sampling_rate", cfg.Observability.SamplingRate))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := traces.Shutdown(shutdownCtx); err != nil {
				log.Warn("tracer shutdown failed", logger.Error(err))
			}
		}()
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	instruments, err := metrics.NewDecisionInstruments(meter)
	if err != nil {
		return err
	}
	inFlight, err := meter.CreateUpDownCounter(metrics.HTTPInFlight, "HTTP requests being served")
	if err != nil {
		return err
	}

	// Initialize storage
	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	// Initialize services
	opts := []authz.Option{
		authz.WithLogger(log),
		authz.WithTracer(traces.Tracer("authz")),
		authz.WithMetrics(instruments),
	}
	auditLogger := audit.NewSlogLogger()
	identityService := identity.NewService(be.users, auditLogger)
	authzService := authz.NewService(be.store, opts...)
	adminService := authz.NewAdminService(be.store, opts...)
	tenantService := tenant.NewService(be.tenants, be.store, adminService, identityService, auditLogger)

	// Run Bootstrap (ENV driven)
	if err := tenantService.InitializePlatform(ctx); err != nil {
		return err
	}
	if err := tenantService.BootstrapSuperAdmin(ctx, tenant.BootstrapConfig{
		Email:      cfg.Engine.BootstrapAdminEmail,
		TenantName: cfg.Engine.BootstrapTenantName,
	}); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	handler := transportHTTP.NewHandler(transportHTTP.Deps{
		Identity:     identityService,
		Authz:        authzService,
		Admin:        adminService,
		Tenants:      tenantService,
		AuditLogger:  auditLogger,
		Tokens:       newTokenVerifier(cfg),
		Pinger:       be.pinger,
		CheckTimeout: cfg.Engine.CheckTimeout,
	})
	router := transportHTTP.NewRouter(handler, transportHTTP.RouterConfig{
		RateLimiter: rateLimiter,
		Secure: transportHTTP.SecureHeadersConfig{
			AllowedHosts:  cfg.Security.AllowedHosts,
			IsDevelopment: cfg.Security.IsDevelopment,
		},
		RequestTimeout: cfg.Server.WriteTimeout,
		InFlight:       inFlight,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rateLimiter.Run(gctx)
		return nil
	})
	if cfg.Engine.SweepInterval > 0 {
		g.Go(func() error {
			sweepLoop(gctx, be.store, cfg.Engine.SweepInterval, log)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting http server",
			logger.Component("server"),
			logger.Operation("listen"),
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sweepLoop removes expired assignments and grants every interval
func sweepLoop(ctx context.Context, store authz.Store, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.SweepExpired(ctx, now)
			if err != nil {
				log.ErrorContext(ctx, "failed to sweep expired grants", logger.Error(err))
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "swept expired grants", logger.RowsAffected(n))
			}
		}
	}
}

func newTokenVerifier(cfg *config.Config) *transportHTTP.TokenVerifier {
	return transportHTTP.NewTokenVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTLeeway)
}

// runIssueToken prints a bearer token for a principal. Identity is owned by an
// upstream provider in production; this exists for operators and local testing.
func runIssueToken(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: server token <principal-id> <tenant-id> [ttl]")
	}
	ttl := time.Hour
	if len(args) > 2 {
		d, err := time.ParseDuration(args[2])
		if err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
		ttl = d
	}
	tok, err := newTokenVerifier(cfg).Issue(args[0], args[1], ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
