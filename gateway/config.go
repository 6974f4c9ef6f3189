// Copyright 2025 AgencyHub
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

package gateway

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"agencyhub/platform/provision"
	"agencyhub/platform/tenantpool"
)

// Config is the gateway configuration, loaded from YAML with
// environment variable overrides on top.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	// TenantDriver selects the backend for physical tenant databases:
	// "postgres" (default) or "mysql".
	TenantDriver   string                   `yaml:"tenant_driver"`
	TenantPostgres provision.PostgresConfig `yaml:"tenant_postgres"`
	TenantMySQL    provision.MySQLConfig    `yaml:"tenant_mysql"`

	Provision provision.EngineConfig `yaml:"provision"`
	Pool      tenantpool.Config      `yaml:"pool"`

	// RateLimitPerMinute caps onboarding requests per client IP.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// SnapshotTTL bounds catalog snapshot cache staleness.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`

	// ReconcileInterval is the orphan database sweep period.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`

	// AdminJWTSecret signs and verifies admin API tokens.
	AdminJWTSecret string `yaml:"admin_jwt_secret"`
}

// LoadConfig reads the YAML file if path is non-empty, then applies
// environment overrides and defaults. A missing file is not an error;
// container deployments configure everything through the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (set DATABASE_URL)")
	}
	if cfg.AdminJWTSecret == "" {
		return nil, fmt.Errorf("admin_jwt_secret is required (set ADMIN_JWT_SECRET)")
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("TENANT_DRIVER"); v != "" {
		c.TenantDriver = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		c.AdminJWTSecret = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitPerMinute = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.TenantDriver == "" {
		c.TenantDriver = "postgres"
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 60
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 30 * time.Second
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 5 * time.Minute
	}
}
