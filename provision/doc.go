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

// Package provision runs the tenant onboarding workflow: reserve the
// agency's domain, create an isolated physical database, materialize the
// tenant schema, seed the initial data, and activate the agency.
//
// # Workflow
//
// The synchronous part (domain reservation plus the pending agency
// record) happens in Engine.Start; everything after runs in the
// background, bounded by a concurrency semaphore. Every attempt ends in
// a terminal state: active on success, failed with a machine-readable
// reason otherwise. A failed attempt drops whatever physical database it
// created and releases the domain so the caller can retry; retries never
// reuse a database identifier.
//
// # Crash recovery
//
// Each physical database is recorded in the registry before creation, so
// a crash between create and drop leaves an orphan row. The Reconciler
// sweeps those rows periodically and drops the databases at least once.
//
// # Database backends
//
// Physical database management goes through the DatabaseCreator
// interface, with PostgreSQL and MySQL implementations. The tenant
// schema ships in both dialects.
package provision
