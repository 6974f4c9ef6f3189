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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDatabaseName(t *testing.T) {
	name, err := GenerateDatabaseName("acme-north")
	require.NoError(t, err)
	assert.Regexp(t, `^tenant_acme_north_[0-9a-f]{8}$`, name)
	assert.True(t, validDatabaseName(name))
}

func TestGenerateDatabaseNameUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name, err := GenerateDatabaseName("acme")
		require.NoError(t, err)
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
}

func TestValidDatabaseName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"tenant_acme_1a2b3c4d", true},
		{"a", true},
		{"tenant_acme; DROP TABLE users", false},
		{"Tenant_Acme", false},
		{"1tenant", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, validDatabaseName(tt.name), tt.name)
	}
}
