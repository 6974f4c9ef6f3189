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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"agencyhub/platform/registry"
)

func TestReconcilerSweep(t *testing.T) {
	tenantDBs := &fakeTenantDBStore{
		orphans: []registry.TenantDatabase{
			{DatabaseName: "tenant_acme_deadbeef", AgencyID: "agency-1", Driver: "postgres"},
			{DatabaseName: "tenant_zen_cafebabe", AgencyID: "agency-2", Driver: "mysql"},
		},
	}
	pg := &fakeCreator{driver: "postgres"}
	my := &fakeCreator{driver: "mysql"}

	r := NewReconciler(tenantDBs, []DatabaseCreator{pg, my}, 0)
	r.Sweep(context.Background())

	assert.Equal(t, []string{"tenant_acme_deadbeef"}, pg.dropped)
	assert.Equal(t, []string{"tenant_zen_cafebabe"}, my.dropped)
	assert.ElementsMatch(t, []string{"tenant_acme_deadbeef", "tenant_zen_cafebabe"}, tenantDBs.dropped)
}

func TestReconcilerLeavesRowOnDropFailure(t *testing.T) {
	tenantDBs := &fakeTenantDBStore{
		orphans: []registry.TenantDatabase{
			{DatabaseName: "tenant_acme_deadbeef", AgencyID: "agency-1", Driver: "postgres"},
		},
	}
	pg := &fakeCreator{driver: "postgres", dropErr: errors.New("server gone")}

	r := NewReconciler(tenantDBs, []DatabaseCreator{pg}, 0)
	r.Sweep(context.Background())

	// Not marked dropped; the next sweep retries.
	assert.Empty(t, tenantDBs.dropped)
}

func TestReconcilerSkipsUnknownDriver(t *testing.T) {
	tenantDBs := &fakeTenantDBStore{
		orphans: []registry.TenantDatabase{
			{DatabaseName: "tenant_acme_deadbeef", AgencyID: "agency-1", Driver: "oracle"},
		},
	}

	r := NewReconciler(tenantDBs, []DatabaseCreator{&fakeCreator{driver: "postgres"}}, 0)
	r.Sweep(context.Background())

	assert.Empty(t, tenantDBs.dropped)
}
