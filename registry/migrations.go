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

package registry

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"
)

// Migration is one versioned step of the central registry schema.
// The set is explicit and ordered so schema setup is reproducible and
// auditable; no reflection-based table generation.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// centralMigrations is the full ordered schema of the central registry
// database. Append-only: never edit an applied migration, add a new one.
var centralMigrations = []Migration{
	{
		Version: "001",
		Name:    "agencies",
		SQL: `
			CREATE TABLE IF NOT EXISTS agencies (
				agency_id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				domain VARCHAR(63) NOT NULL,
				database_name VARCHAR(63),
				subscription_plan VARCHAR(50) NOT NULL,
				max_users INTEGER NOT NULL DEFAULT 5,
				is_active BOOLEAN NOT NULL DEFAULT false,
				provisioning_status VARCHAR(20) NOT NULL DEFAULT 'pending'
					CHECK (provisioning_status IN ('pending', 'provisioning', 'active', 'failed')),
				failure_reason TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			-- Domain uniqueness among live agencies; failed agencies do
			-- not block a retry with the same domain.
			CREATE UNIQUE INDEX IF NOT EXISTS uniq_agencies_domain_live
				ON agencies(domain) WHERE provisioning_status <> 'failed';
		`,
	},
	{
		Version: "002",
		Name:    "domain_reservations",
		SQL: `
			CREATE TABLE IF NOT EXISTS domain_reservations (
				reservation_id UUID PRIMARY KEY,
				domain VARCHAR(63) NOT NULL,
				agency_id UUID,
				reserved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				released_at TIMESTAMP WITH TIME ZONE
			);

			-- The final arbiter for concurrent reservation attempts.
			CREATE UNIQUE INDEX IF NOT EXISTS uniq_domain_reservations_live
				ON domain_reservations(domain) WHERE released_at IS NULL;
		`,
	},
	{
		Version: "003",
		Name:    "subscription_plans",
		SQL: `
			CREATE TABLE IF NOT EXISTS subscription_plans (
				code VARCHAR(50) PRIMARY KEY,
				name VARCHAR(100) NOT NULL,
				base_price_cents BIGINT NOT NULL CHECK (base_price_cents >= 0),
				max_users INTEGER NOT NULL DEFAULT 5
			);

			INSERT INTO subscription_plans (code, name, base_price_cents, max_users)
			VALUES
				('starter', 'Starter', 2900, 5),
				('standard', 'Standard', 7900, 25),
				('enterprise', 'Enterprise', 19900, 250)
			ON CONFLICT (code) DO NOTHING;
		`,
	},
	{
		Version: "004",
		Name:    "module_catalog",
		SQL: `
			CREATE TABLE IF NOT EXISTS module_catalog (
				module_id VARCHAR(64) PRIMARY KEY,
				path VARCHAR(255) NOT NULL UNIQUE,
				title VARCHAR(255) NOT NULL,
				category VARCHAR(32) NOT NULL,
				base_cost_cents BIGINT NOT NULL DEFAULT 0 CHECK (base_cost_cents >= 0),
				requires_approval BOOLEAN NOT NULL DEFAULT false,
				is_active BOOLEAN NOT NULL DEFAULT true,
				sort_order SERIAL
			);
		`,
	},
	{
		Version: "005",
		Name:    "recommendation_rules",
		SQL: `
			CREATE TABLE IF NOT EXISTS recommendation_rules (
				rule_id UUID PRIMARY KEY,
				module_id VARCHAR(64) NOT NULL REFERENCES module_catalog(module_id),
				industry VARCHAR(100),
				company_size VARCHAR(50),
				primary_focus VARCHAR(100),
				business_goal VARCHAR(100),
				weight VARCHAR(20) NOT NULL
					CHECK (weight IN ('required', 'recommended', 'optional')),
				justification TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		Version: "006",
		Name:    "agency_modules",
		SQL: `
			CREATE TABLE IF NOT EXISTS agency_modules (
				agency_id UUID NOT NULL REFERENCES agencies(agency_id),
				module_id VARCHAR(64) NOT NULL REFERENCES module_catalog(module_id),
				cost_override_cents BIGINT CHECK (cost_override_cents >= 0),
				assigned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (agency_id, module_id)
			);
		`,
	},
	{
		Version: "007",
		Name:    "agency_module_requests",
		SQL: `
			CREATE TABLE IF NOT EXISTS agency_module_requests (
				request_id UUID PRIMARY KEY,
				agency_id UUID NOT NULL REFERENCES agencies(agency_id),
				module_id VARCHAR(64) NOT NULL REFERENCES module_catalog(module_id),
				status VARCHAR(20) NOT NULL DEFAULT 'pending'
					CHECK (status IN ('pending', 'approved', 'rejected')),
				reason TEXT,
				requested_by VARCHAR(255) NOT NULL,
				reviewed_by VARCHAR(255),
				cost_override_cents BIGINT CHECK (cost_override_cents >= 0),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				reviewed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_module_requests_status
				ON agency_module_requests(status);
			CREATE INDEX IF NOT EXISTS idx_module_requests_agency
				ON agency_module_requests(agency_id);
		`,
	},
	{
		Version: "008",
		Name:    "tenant_databases",
		SQL: `
			CREATE TABLE IF NOT EXISTS tenant_databases (
				database_name VARCHAR(63) PRIMARY KEY,
				agency_id UUID NOT NULL REFERENCES agencies(agency_id),
				driver VARCHAR(16) NOT NULL DEFAULT 'postgres',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				dropped_at TIMESTAMP WITH TIME ZONE
			);
		`,
	},
}

// Migrations returns the ordered central migration set.
func Migrations() []Migration {
	return centralMigrations
}

// Migrate applies all pending central registry migrations, each in its
// own transaction, recording the outcome in schema_migrations.
func Migrate(db *sql.DB) error {
	ensureSchemaMigrationsTable(db)
	applied := getAppliedMigrations(db)

	ran := 0
	for _, m := range centralMigrations {
		if applied[m.Version] {
			continue
		}

		start := time.Now()
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			recordMigrationFailure(db, m.Version, m.Name, err, int(time.Since(start).Milliseconds()))
			return fmt.Errorf("migration %s_%s failed: %w", m.Version, m.Name, err)
		}

		if err := tx.Commit(); err != nil {
			recordMigrationFailure(db, m.Version, m.Name, err, int(time.Since(start).Milliseconds()))
			return fmt.Errorf("failed to commit migration %s_%s: %w", m.Version, m.Name, err)
		}

		recordMigrationSuccess(db, m.Version, m.Name, int(time.Since(start).Milliseconds()))
		log.Printf("[Registry] Applied migration %s_%s in %v", m.Version, m.Name, time.Since(start))
		ran++
	}

	if ran == 0 {
		log.Println("[Registry] Central schema up to date")
	} else {
		log.Printf("[Registry] Applied %d central migrations", ran)
	}
	return nil
}

// ensureSchemaMigrationsTable creates the migration tracking table.
func ensureSchemaMigrationsTable(db *sql.DB) {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			version VARCHAR(20) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			execution_time_ms INTEGER,
			success BOOLEAN NOT NULL DEFAULT true,
			error_message TEXT,
			applied_by VARCHAR(100) DEFAULT 'gateway',
			hostname VARCHAR(255),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_schema_migrations_version
			ON schema_migrations(version);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		log.Printf("[Registry] Warning: failed to create schema_migrations table: %v", err)
		// Don't fail here - fall back to running all migrations
	}
}

// getAppliedMigrations returns versions that have been successfully applied.
func getAppliedMigrations(db *sql.DB) map[string]bool {
	applied := make(map[string]bool)

	rows, err := db.Query(`
		SELECT version FROM schema_migrations WHERE success = true ORDER BY version
	`)
	if err != nil {
		log.Printf("[Registry] Warning: failed to query schema_migrations: %v", err)
		return applied
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			log.Printf("[Registry] Warning: failed to scan migration version: %v", err)
			continue
		}
		applied[version] = true
	}

	return applied
}

func recordMigrationSuccess(db *sql.DB, version, name string, executionTimeMs int) {
	hostname, _ := os.Hostname()
	_, err := db.Exec(`
		INSERT INTO schema_migrations (version, name, applied_at, execution_time_ms, success, hostname)
		VALUES ($1, $2, NOW(), $3, true, $4)
		ON CONFLICT (version) DO UPDATE SET
			applied_at = NOW(),
			execution_time_ms = $3,
			success = true,
			error_message = NULL
	`, version, name, executionTimeMs, hostname)
	if err != nil {
		log.Printf("[Registry] Warning: failed to record migration success for %s: %v", version, err)
	}
}

func recordMigrationFailure(db *sql.DB, version, name string, migrationErr error, executionTimeMs int) {
	hostname, _ := os.Hostname()
	_, err := db.Exec(`
		INSERT INTO schema_migrations (version, name, applied_at, execution_time_ms, success, error_message, hostname)
		VALUES ($1, $2, NOW(), $3, false, $4, $5)
		ON CONFLICT (version) DO UPDATE SET
			applied_at = NOW(),
			execution_time_ms = $3,
			success = false,
			error_message = $4
	`, version, name, executionTimeMs, migrationErr.Error(), hostname)
	if err != nil {
		log.Printf("[Registry] Warning: failed to record migration failure for %s: %v", version, err)
	}
}
