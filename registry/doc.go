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

/*
Package registry is the tenant registry - the single source of truth for
agency identity, domain reservations, subscription plans, the module
catalog, recommendation rules, module assignments, and post-activation
module requests.

# Overview

All registry state lives in the central PostgreSQL database. Each
repository wraps *sql.DB and is safe for concurrent use:

  - AgencyRepository: agency records, atomic domain reservation,
    provisioning status transitions
  - CatalogRepository: module catalog and recommendation rule snapshots
  - AssignmentRepository: per-agency module assignments and cost overrides
  - ModuleRequestRepository: pending -> approved/rejected workflow with
    optimistic concurrency
  - TenantDatabaseRepository: bookkeeping of physical tenant databases
    for orphan reconciliation

# Domain Reservation

ReserveDomain is a conditional insert. A partial unique index over
unreleased reservations is the final arbiter between concurrent callers:
the loser of a race observes a unique-constraint violation, which the
repository maps to ErrDomainTaken. Callers treat that as an ordinary
conflict, not a crash.

Failed agencies release their reservation so the domain becomes available
for retry; the released row is retained for audit.

# Migrations

The central schema is an explicit, versioned, ordered migration set
applied by Migrate at startup, with bookkeeping in schema_migrations.
*/
package registry
