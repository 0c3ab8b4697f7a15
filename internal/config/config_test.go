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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestPurpose: Validates that defaults apply when only required settings are present.
// Scope: Unit Test
// Security: Secure Defaults
// Expected: Defaults for server, engine and rate limit; the postgres driver is selected.
// Test Case ID: CFG-01
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, StoreDriverPostgres, cfg.Engine.StoreDriver)
	assert.Equal(t, 2*time.Second, cfg.Engine.CheckTimeout)
	assert.Equal(t, "platform", cfg.Engine.BootstrapTenantName)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, "salonhub", cfg.Database.User)
}

// TestPurpose: Validates that environment overrides are parsed into typed fields.
// Scope: Unit Test
// Security: Configuration Integrity
// Expected: Durations, lists and the memory driver are honored without a DB password.
// Test Case ID: CFG-02
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("AUTHZ_CHECK_TIMEOUT", "250ms")
	t.Setenv("ALLOWED_HOSTS", "a.example.com,b.example.com")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Engine.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.CheckTimeout)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Security.AllowedHosts)
	assert.Equal(t, "root@example.com", cfg.Engine.BootstrapAdminEmail)
}

// TestPurpose: Validates that unsafe configurations are rejected at startup.
// Scope: Unit Test
// Security: Fail-Safe Defaults (CWE-1188)
// Expected: Missing DB password, short JWT secret and unknown driver are each reported.
// Test Case ID: CFG-03
func TestValidate_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STORE_DRIVER")

	cfg := &Config{
		Engine:    EngineConfig{StoreDriver: StoreDriverPostgres, CheckTimeout: time.Second},
		Security:  SecurityConfig{JWTSecret: testSecret},
		RateLimit: RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
	}
	assert.ErrorContains(t, cfg.Validate(), "DB_PASSWORD")
}

// TestPurpose: Validates the database-only loader used by maintenance commands.
// Scope: Unit Test
// Security: Fail-Safe Defaults
// Expected: No JWT secret is needed; a missing DB password is still refused.
// Test Case ID: CFG-04
func TestLoadDatabase(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	_, err := LoadDatabase()
	assert.ErrorContains(t, err, "DB_PASSWORD")

	t.Setenv("DB_PASSWORD", "pw")
	cfg, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}
