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

	"agencyhub/platform/recommend"
	"agencyhub/platform/registry"
)

// Failure reason codes recorded on the agency when provisioning fails.
// Machine-readable: the onboarding UI switches on these.
const (
	ReasonDomainTaken          = "DOMAIN_TAKEN"
	ReasonDatabaseCreateFailed = "DATABASE_CREATE_FAILED"
	ReasonSchemaFailed         = "SCHEMA_MIGRATION_FAILED"
	ReasonSeedFailed           = "SEED_FAILED"
)

// AgencyStore is the registry surface the engine needs for the agency
// lifecycle.
type AgencyStore interface {
	ReserveDomain(ctx context.Context, candidate string) (*registry.DomainReservation, error)
	ReleaseReservation(ctx context.Context, domain string) error
	CreateAgency(ctx context.Context, params registry.CreateAgencyParams, reservation *registry.DomainReservation) (*registry.Agency, error)
	SetProvisioning(ctx context.Context, agencyID, databaseName string) error
	FinalizeAgency(ctx context.Context, agencyID string) error
	MarkFailed(ctx context.Context, agencyID, reason string) error
}

// TenantDBStore records physical databases for crash recovery.
type TenantDBStore interface {
	RecordCreated(ctx context.Context, databaseName, agencyID, driver string) error
	MarkDropped(ctx context.Context, databaseName string) error
	ListOrphans(ctx context.Context) ([]registry.TenantDatabase, error)
}

// AssignmentStore persists the selected modules centrally once the
// tenant database exists.
type AssignmentStore interface {
	BulkAssign(ctx context.Context, agencyID string, modules []recommend.CatalogEntry) error
}

// DatabaseCreator manages physical tenant databases on one backend.
type DatabaseCreator interface {
	// Driver returns the sql driver name ("postgres" or "mysql").
	Driver() string
	// CreateDatabase creates the physical database.
	CreateDatabase(ctx context.Context, name string) error
	// DropDatabase removes the physical database if it exists.
	DropDatabase(ctx context.Context, name string) error
	// Open returns a connection pool to the named tenant database.
	Open(ctx context.Context, name string) (*sql.DB, error)
}

// Request is the validated onboarding input for one provisioning run.
type Request struct {
	Params  registry.CreateAgencyParams
	Plan    *registry.SubscriptionPlan
	Modules []recommend.CatalogEntry
}
