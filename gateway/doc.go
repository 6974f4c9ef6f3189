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

// Package gateway is the HTTP surface of the AgencyHub platform.
//
// # Endpoints
//
// Public onboarding endpoints: domain availability, module
// recommendations, price quoting, agency creation, provisioning status
// polling, and the per-agency cost quote. Admin endpoints behind JWT
// auth: the module request review workflow and catalog cache refresh.
// Operational endpoints: /health, JSON /metrics, and native
// /prometheus.
//
// # Wiring
//
// Run loads the YAML config (with environment overrides), applies the
// central registry migrations, and assembles the registry repositories,
// the provisioning engine, the orphan reconciler, the tenant pool
// manager, and the Redis rate limiter into a gorilla/mux router with
// CORS. Shutdown drains in-flight provisioning runs before exiting.
package gateway
