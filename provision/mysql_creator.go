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

	// Registers the "mysql" sql driver.
	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig holds the connection parameters for a MySQL tenant
// database server.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// MySQLCreator manages physical tenant databases on a MySQL server.
type MySQLCreator struct {
	admin *sql.DB
	cfg   MySQLConfig
}

// NewMySQLCreator creates a creator backed by an existing admin pool.
func NewMySQLCreator(admin *sql.DB, cfg MySQLConfig) *MySQLCreator {
	return &MySQLCreator{admin: admin, cfg: cfg}
}

// Driver returns the sql driver name.
func (c *MySQLCreator) Driver() string { return "mysql" }

// CreateDatabase creates the physical tenant database.
func (c *MySQLCreator) CreateDatabase(ctx context.Context, name string) error {
	if !validDatabaseName(name) {
		return fmt.Errorf("unsafe database name %q", name)
	}

	_, err := c.admin.ExecContext(ctx, "CREATE DATABASE `"+name+"` CHARACTER SET utf8mb4")
	if err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase removes the physical tenant database if it exists.
func (c *MySQLCreator) DropDatabase(ctx context.Context, name string) error {
	if !validDatabaseName(name) {
		return fmt.Errorf("unsafe database name %q", name)
	}

	_, err := c.admin.ExecContext(ctx, "DROP DATABASE IF EXISTS `"+name+"`")
	if err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

// Open returns a connection pool to the named tenant database.
func (c *MySQLCreator) Open(ctx context.Context, name string) (*sql.DB, error) {
	if !validDatabaseName(name) {
		return nil, fmt.Errorf("unsafe database name %q", name)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.cfg.User, c.cfg.Password, c.cfg.Host, c.cfg.Port, name)

	db, err := sql.Open("mysql", dsn)
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
