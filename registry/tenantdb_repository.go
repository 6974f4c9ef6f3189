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
	"context"
	"database/sql"
	"fmt"
)

// TenantDatabaseRepository tracks physical tenant databases so that a
// crashed provisioning attempt can always be resolved to a terminal
// state by the orphan reconciler.
type TenantDatabaseRepository struct {
	db *sql.DB
}

// NewTenantDatabaseRepository creates a new tenant database repository.
func NewTenantDatabaseRepository(db *sql.DB) *TenantDatabaseRepository {
	return &TenantDatabaseRepository{db: db}
}

// RecordCreated registers a physical database immediately before the
// create-database operation is issued.
func (r *TenantDatabaseRepository) RecordCreated(ctx context.Context, databaseName, agencyID, driver string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_databases (database_name, agency_id, driver, created_at)
		VALUES ($1, $2, $3, NOW())
	`, databaseName, agencyID, driver)
	if err != nil {
		return fmt.Errorf("failed to record tenant database %s: %w", databaseName, err)
	}
	return nil
}

// MarkDropped records that the physical database has been removed.
func (r *TenantDatabaseRepository) MarkDropped(ctx context.Context, databaseName string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenant_databases SET dropped_at = NOW()
		WHERE database_name = $1 AND dropped_at IS NULL
	`, databaseName)
	if err != nil {
		return fmt.Errorf("failed to mark tenant database %s dropped: %w", databaseName, err)
	}
	return nil
}

// ListOrphans returns databases whose owning agency ended up failed but
// whose physical database was never recorded as dropped. These are the
// reconciler's work queue.
func (r *TenantDatabaseRepository) ListOrphans(ctx context.Context) ([]TenantDatabase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.database_name, t.agency_id, t.driver, t.created_at, t.dropped_at
		FROM tenant_databases t
		JOIN agencies a ON a.agency_id = t.agency_id
		WHERE t.dropped_at IS NULL AND a.provisioning_status = 'failed'
		ORDER BY t.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan databases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orphans []TenantDatabase
	for rows.Next() {
		var t TenantDatabase
		var droppedAt sql.NullTime
		if err := rows.Scan(&t.DatabaseName, &t.AgencyID, &t.Driver,
			&t.CreatedAt, &droppedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant database: %w", err)
		}
		if droppedAt.Valid {
			t.DroppedAt = &droppedAt.Time
		}
		orphans = append(orphans, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during orphan iteration: %w", err)
	}
	return orphans, nil
}
