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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// databaseNamePattern is the safe identifier shape for physical tenant
// databases. Anything else never reaches a DDL statement.
var databaseNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// GenerateDatabaseName derives a fresh physical database identifier from
// the agency domain. Each call appends a random suffix so a retried
// provisioning attempt never collides with a half-created predecessor.
func GenerateDatabaseName(domain string) (string, error) {
	slug := strings.ReplaceAll(strings.ToLower(domain), "-", "_")

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate database suffix: %w", err)
	}

	name := fmt.Sprintf("tenant_%s_%s", slug, hex.EncodeToString(suffix))
	if len(name) > 63 {
		name = name[:63]
	}
	if !databaseNamePattern.MatchString(name) {
		return "", fmt.Errorf("derived database name %q is not a safe identifier", name)
	}
	return name, nil
}

// validDatabaseName reports whether name is safe to interpolate into DDL.
func validDatabaseName(name string) bool {
	return databaseNamePattern.MatchString(name)
}
