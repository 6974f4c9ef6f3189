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
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"agencyhub/platform/recommend"
	"agencyhub/platform/registry"
)

// SeedResult reports what the seeder created, including the one-time
// initial password handed back to the onboarding flow.
type SeedResult struct {
	AdminUserID     string
	AdminEmail      string
	InitialPassword string
}

// Seed populates a freshly migrated tenant database: the admin account,
// the default roles, the plan-derived settings, and one row per enabled
// module. Runs in a single transaction so a partial seed never survives.
func Seed(ctx context.Context, db *sql.DB, driver string, agency *registry.Agency,
	plan *registry.SubscriptionPlan, modules []recommend.CatalogEntry, adminEmail string) (*SeedResult, error) {

	password, err := generatePassword()
	if err != nil {
		return nil, err
	}

	result := &SeedResult{
		AdminUserID:     uuid.New().String(),
		AdminEmail:      adminEmail,
		InitialPassword: password,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	hash := sha256.Sum256([]byte(password))
	_, err = tx.ExecContext(ctx, rebind(driver, `
		INSERT INTO users (user_id, email, display_name, password_hash, is_active)
		VALUES ($1, $2, $3, $4, true)
	`), result.AdminUserID, adminEmail, "Administrator", hex.EncodeToString(hash[:]))
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}

	roles := []struct {
		id, name, permissions string
	}{
		{"admin", "Administrator", "*"},
		{"manager", "Manager", "read,write"},
		{"member", "Member", "read"},
	}
	for _, role := range roles {
		_, err = tx.ExecContext(ctx, rebind(driver, `
			INSERT INTO roles (role_id, name, permissions) VALUES ($1, $2, $3)
		`), role.id, role.name, role.permissions)
		if err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", role.id, err)
		}
	}

	_, err = tx.ExecContext(ctx, rebind(driver, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, 'admin')
	`), result.AdminUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to grant admin role: %w", err)
	}

	settings := map[string]string{
		"agency_name":       agency.Name,
		"subscription_plan": plan.Code,
		"max_users":         strconv.Itoa(plan.MaxUsers),
	}
	for key, value := range settings {
		_, err = tx.ExecContext(ctx, rebind(driver, `
			INSERT INTO agency_settings (key, value) VALUES ($1, $2)
		`), key, value)
		if err != nil {
			return nil, fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}

	for _, m := range modules {
		_, err = tx.ExecContext(ctx, rebind(driver, `
			INSERT INTO enabled_modules (module_id, path, title, category)
			VALUES ($1, $2, $3, $4)
		`), m.ID, m.Path, m.Title, string(m.Category))
		if err != nil {
			return nil, fmt.Errorf("failed to seed module %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit seed transaction: %w", err)
	}
	return result, nil
}

// generatePassword returns a random one-time password for the seeded
// admin account. The tenant forces a reset on first login.
func generatePassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate initial password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// rebind rewrites $n placeholders to ? for MySQL. Placeholders are
// written in strictly increasing order throughout this package, so a
// positional rewrite is safe. MySQL quotes the reserved word "key"
// differently as well.
func rebind(driver, query string) string {
	if driver != "mysql" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '1' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return strings.ReplaceAll(b.String(), "(key, value)", "(`key`, value)")
}
