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

package provision

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// schemaStep is one versioned step of the tenant schema template.
type schemaStep struct {
	Version string
	Name    string
	SQL     string
}

// tenantSchemas maps sql driver name to the ordered tenant schema
// template for that dialect. Both dialects materialize the same logical
// schema: users, roles, role grants, agency settings, and the enabled
// module list.
var tenantSchemas = map[string][]schemaStep{
	"postgres": {
		{
			Version: "001",
			Name:    "users",
			SQL: `
				CREATE TABLE users (
					user_id UUID PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					password_hash VARCHAR(128) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT true,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version: "002",
			Name:    "roles",
			SQL: `
				CREATE TABLE roles (
					role_id VARCHAR(32) PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					permissions TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE user_roles (
					user_id UUID NOT NULL REFERENCES users(user_id),
					role_id VARCHAR(32) NOT NULL REFERENCES roles(role_id),
					granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, role_id)
				);
			`,
		},
		{
			Version: "003",
			Name:    "settings",
			SQL: `
				CREATE TABLE agency_settings (
					key VARCHAR(100) PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version: "004",
			Name:    "enabled_modules",
			SQL: `
				CREATE TABLE enabled_modules (
					module_id VARCHAR(64) PRIMARY KEY,
					path VARCHAR(255) NOT NULL,
					title VARCHAR(255) NOT NULL,
					category VARCHAR(32) NOT NULL,
					enabled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);
			`,
		},
	},
	"mysql": {
		{
			Version: "001",
			Name:    "users",
			SQL: `
				CREATE TABLE users (
					user_id CHAR(36) PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					password_hash VARCHAR(128) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT true,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version: "002",
			Name:    "roles",
			SQL: `
				CREATE TABLE roles (
					role_id VARCHAR(32) PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					permissions TEXT NOT NULL
				);

				CREATE TABLE user_roles (
					user_id CHAR(36) NOT NULL,
					role_id VARCHAR(32) NOT NULL,
					granted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, role_id),
					FOREIGN KEY (user_id) REFERENCES users(user_id),
					FOREIGN KEY (role_id) REFERENCES roles(role_id)
				);
			`,
		},
		{
			Version: "003",
			Name:    "settings",
			SQL: `
				CREATE TABLE agency_settings (
					` + "`key`" + ` VARCHAR(100) PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version: "004",
			Name:    "enabled_modules",
			SQL: `
				CREATE TABLE enabled_modules (
					module_id VARCHAR(64) PRIMARY KEY,
					path VARCHAR(255) NOT NULL,
					title VARCHAR(255) NOT NULL,
					category VARCHAR(32) NOT NULL,
					enabled_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	},
}

// MaterializeSchema applies the tenant schema template to a freshly
// created database. Steps run in order, each in its own transaction;
// the first failure aborts the whole attempt. The database is brand new
// so there is no applied-version bookkeeping to consult.
func MaterializeSchema(ctx context.Context, db *sql.DB, driver string) error {
	steps, ok := tenantSchemas[driver]
	if !ok {
		return fmt.Errorf("no tenant schema template for driver %q", driver)
	}

	for _, step := range steps {
		start := time.Now()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin schema step %s: %w", step.Version, err)
		}

		if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema step %s_%s failed: %w", step.Version, step.Name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit schema step %s_%s: %w", step.Version, step.Name, err)
		}

		log.Printf("[Provision] Applied schema step %s_%s in %v", step.Version, step.Name, time.Since(start))
	}
	return nil
}
