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

// CatalogRepository loads module catalog and recommendation rule
// snapshots for the pure recommendation engine.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Snapshot loads the current catalog and rule set. Entries carry catalog
// insertion order (sort_order), which the engine preserves in results.
func (r *CatalogRepository) Snapshot(ctx context.Context) (*recommend.Snapshot, error) {
	entries, err := r.loadEntries(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := r.loadRules(ctx)
	if err != nil {
		return nil, err
	}

	return &recommend.Snapshot{Entries: entries, Rules: rules}, nil
}

func (r *CatalogRepository) loadEntries(ctx context.Context) ([]recommend.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT module_id, path, title, category, base_cost_cents,
		       requires_approval, is_active
		FROM module_catalog
		ORDER BY sort_order, module_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load module catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []recommend.CatalogEntry
	for rows.Next() {
		var e recommend.CatalogEntry
		var category string
		if err := rows.Scan(&e.ID, &e.Path, &e.Title, &category,
			&e.BaseCost, &e.RequiresApproval, &e.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		e.Category = recommend.Category(category)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during catalog iteration: %w", err)
	}
	return entries, nil
}

func (r *CatalogRepository) loadRules(ctx context.Context) ([]recommend.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, module_id, COALESCE(industry, ''), COALESCE(company_size, ''),
		       COALESCE(primary_focus, ''), COALESCE(business_goal, ''),
		       weight, COALESCE(justification, '')
		FROM recommendation_rules
		ORDER BY created_at, rule_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendation rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []recommend.Rule
	for rows.Next() {
		var rule recommend.Rule
		var weight string
		if err := rows.Scan(&rule.ID, &rule.ModuleID, &rule.Industry,
			&rule.CompanySize, &rule.PrimaryFocus, &rule.BusinessGoal,
			&weight, &rule.Justification); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation rule: %w", err)
		}
		rule.Weight = recommend.Weight(weight)
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rule iteration: %w", err)
	}
	return rules, nil
}
