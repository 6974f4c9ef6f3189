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

// Package tenantpool manages per-agency database connection pools.
//
// Every request for an agency resolves to that agency's isolated
// database. Opening a pool per request would exhaust the server, so the
// Manager keeps one lazily opened pool per agency, bounded by a global
// cap with least-recently-used eviction, and closes pools that sit idle
// past their TTL.
//
// Agencies that are still provisioning, or that failed, fast-fail with
// ErrTenantNotReady; deactivated agencies fail with ErrTenantInactive
// and their pool is closed on the spot.
package tenantpool
