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

	"agencyhub/platform/recommend"
)

// AssignmentRepository handles per-agency module assignments.
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// BulkAssign inserts the selection's assignment rows in a single
// transaction. Idempotent: re-running a provisioning attempt upserts.
func (r *AssignmentRepository) BulkAssign(ctx context.Context, agencyID string, modules []recommend.CatalogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin assignment transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range modules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agency_modules (agency_id, module_id, assigned_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (agency_id, module_id) DO NOTHING
		`, agencyID, m.ID)
		if err != nil {
			return fmt.Errorf("failed to assign module %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignments: %w", err)
	}
	return nil
}

// List returns the agency's assignments.
func (r *AssignmentRepository) List(ctx context.Context, agencyID string) ([]ModuleAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT agency_id, module_id, cost_override_cents, assigned_at
		FROM agency_modules
		WHERE agency_id = $1
		ORDER BY assigned_at, module_id
	`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []ModuleAssignment
	for rows.Next() {
		var a ModuleAssignment
		var override sql.NullInt64
		if err := rows.Scan(&a.AgencyID, &a.ModuleID, &override, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if override.Valid {
			m := recommend.Money(override.Int64)
			a.CostOverride = &m
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during assignment iteration: %w", err)
	}
	return assignments, nil
}

// CostOverrides returns the agency's effective cost overrides keyed by
// module id, for the pricing calculator.
func (r *AssignmentRepository) CostOverrides(ctx context.Context, agencyID string) (map[string]recommend.Money, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT module_id, cost_override_cents
		FROM agency_modules
		WHERE agency_id = $1 AND cost_override_cents IS NOT NULL
	`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	overrides := make(map[string]recommend.Money)
	for rows.Next() {
		var moduleID string
		var cents int64
		if err := rows.Scan(&moduleID, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan cost override: %w", err)
		}
		overrides[moduleID] = recommend.Money(cents)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during override iteration: %w", err)
	}
	return overrides, nil
}
