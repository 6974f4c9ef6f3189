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

// Package main is the entry point for the AgencyHub platform gateway.
//
// The gateway serves the tenant onboarding API: module recommendations,
// price quoting, domain availability, agency provisioning, and the
// admin module request workflow.
//
// Usage:
//
//	./platform
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - central registry PostgreSQL connection string
//	REDIS_URL - rate limiter backend (optional)
//	TENANT_DRIVER - tenant database backend: postgres or mysql
//	ADMIN_JWT_SECRET - admin API token secret
//	CONFIG_FILE - YAML config path (default: config.yaml)
package main

import (
	"agencyhub/platform/gateway"
)

func main() {
	gateway.Run()
}
