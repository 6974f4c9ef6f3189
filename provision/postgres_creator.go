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
	"time"

	"github.com/lib/pq"
)

// PostgresConfig holds the connection parameters for the tenant database
// server. The admin connection must have CREATEDB.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// PostgresCreator manages physical tenant databases on a PostgreSQL
// server. CREATE DATABASE cannot run inside a transaction, so each call
// is a single statement on the admin connection.
type PostgresCreator struct {
	admin *sql.DB
	cfg   PostgresConfig
}

// NewPostgresCreator creates a creator backed by an existing admin pool.
func NewPostgresCreator(admin *sql.DB, cfg PostgresConfig) *PostgresCreator {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return &PostgresCreator{admin: admin, cfg: cfg}
}

// Driver returns the sql driver name.
func (c *PostgresCreator) Driver() string { return "postgres" }

// CreateDatabase creates the physical tenant database.
func (c *PostgresCreator) CreateDatabase(ctx context.Context, name string) error {
	if !validDatabaseName(name) {
		return fmt.Errorf("unsafe database name %q", name)
	}

	// Identifiers cannot be parameterized; QuoteIdentifier plus the
	// name pattern check keep this injection-safe.
	_, err := c.admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	if err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase removes the physical tenant database if it exists.
func (c *PostgresCreator) DropDatabase(ctx context.Context, name string) error {
	if !validDatabaseName(name) {
		return fmt.Errorf("unsafe database name %q", name)
	}

	_, err := c.admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name))
	if err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

// Open returns a connection pool to the named tenant database.
func (c *PostgresCreator) Open(ctx context.Context, name string) (*sql.DB, error) {
	if !validDatabaseName(name) {
		return nil, fmt.Errorf("unsafe database name %q", name)
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.cfg.Host, c.cfg.Port, c.cfg.User, c.cfg.Password, name, c.cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant database %s: %w", name, err)
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping tenant database %s: %w", name, err)
	}
	return db, nil
}
