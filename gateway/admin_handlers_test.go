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

package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencyhub/platform/recommend"
	"agencyhub/platform/registry"
)

type fakeRequests struct {
	submitted        *registry.ModuleRequest
	request          *registry.ModuleRequest
	listTotal        int
	err              error
	approvedID       string
	approvedOverride *recommend.Money
}

func (f *fakeRequests) Submit(_ context.Context, agencyID, moduleID, reason, requestedBy string) (*registry.ModuleRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = &registry.ModuleRequest{
		ID: "req-1", AgencyID: agencyID, ModuleID: moduleID,
		Status: registry.ModuleRequestPending, Reason: reason, RequestedBy: requestedBy,
	}
	return f.submitted, nil
}

func (f *fakeRequests) List(context.Context, registry.ModuleRequestFilter) ([]registry.ModuleRequest, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	if f.request == nil {
		return nil, 0, nil
	}
	return []registry.ModuleRequest{*f.request}, f.listTotal, nil
}

func (f *fakeRequests) Approve(_ context.Context, requestID, reviewedBy string, override *recommend.Money) (*registry.ModuleRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.approvedID = requestID
	f.approvedOverride = override
	out := *f.request
	out.Status = registry.ModuleRequestApproved
	out.ReviewedBy = reviewedBy
	out.CostOverride = override
	return &out, nil
}

func (f *fakeRequests) Reject(_ context.Context, _, reviewedBy, reason string) (*registry.ModuleRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.request
	out.Status = registry.ModuleRequestRejected
	out.ReviewedBy = reviewedBy
	out.Reason = reason
	return &out, nil
}

type fakeAssignments struct {
	assigned  []registry.ModuleAssignment
	overrides map[string]recommend.Money
	err       error
}

func (f *fakeAssignments) List(context.Context, string) ([]registry.ModuleAssignment, error) {
	return f.assigned, f.err
}

func (f *fakeAssignments) CostOverrides(context.Context, string) (map[string]recommend.Money, error) {
	return f.overrides, f.err
}

func adminToken(t *testing.T, role, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Role:  role,
		Email: "admin@hub.test",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/admin/module-requests", s.requireAdmin(s.handleListModuleRequests)).Methods("GET")
	r.HandleFunc("/api/v1/admin/module-requests/{id}/approve", s.requireAdmin(s.handleApproveModuleRequest)).Methods("POST")
	r.HandleFunc("/api/v1/admin/module-requests/{id}/reject", s.requireAdmin(s.handleRejectModuleRequest)).Methods("POST")
	r.HandleFunc("/api/v1/agencies/{id}/module-requests", s.handleSubmitModuleRequest).Methods("POST")
	return r
}

func pendingRequest() *registry.ModuleRequest {
	return &registry.ModuleRequest{
		ID: "req-1", AgencyID: "agency-1", ModuleID: "crm",
		Status: registry.ModuleRequestPending, RequestedBy: "owner@acme.test",
	}
}

func TestAdminAuthRequired(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong secret", token: adminToken(t, "admin", "other-secret")},
		{name: "non-admin role", token: adminToken(t, "viewer", "test-secret")},
	}

	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, &fakeAgencies{}, &fakeEngine{},
		&fakeRequests{request: pendingRequest()}, &fakeAssignments{})
	r := adminRouter(s)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/admin/module-requests", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestListModuleRequestsAsAdmin(t *testing.T) {
	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, &fakeAgencies{}, &fakeEngine{},
		&fakeRequests{request: pendingRequest(), listTotal: 1}, &fakeAssignments{})
	r := adminRouter(s)

	req := httptest.NewRequest("GET", "/api/v1/admin/module-requests?status=pending", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", "test-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestApproveModuleRequest(t *testing.T) {
	requests := &fakeRequests{request: pendingRequest()}
	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, &fakeAgencies{}, &fakeEngine{},
		requests, &fakeAssignments{})
	r := adminRouter(s)

	body := bytes.NewReader([]byte(`{"cost_override_cents": 500}`))
	req := httptest.NewRequest("POST", "/api/v1/admin/module-requests/req-1/approve", body)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", "test-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", requests.approvedID)
	require.NotNil(t, requests.approvedOverride)
	assert.EqualValues(t, 500, *requests.approvedOverride)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)
}

func TestRefreshCatalogInvalidatesSnapshot(t *testing.T) {
	catalog := &fakeCatalog{snap: testSnapshot()}
	s := newTestServer(catalog, &fakeAgencies{}, &fakeEngine{}, &fakeRequests{}, &fakeAssignments{})

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/admin/catalog/refresh", s.requireAdmin(s.handleRefreshCatalog)).Methods("POST")

	req := httptest.NewRequest("POST", "/api/v1/admin/catalog/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", "test-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, catalog.invalidated)
}

func TestApproveConflict(t *testing.T) {
	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, &fakeAgencies{}, &fakeEngine{},
		&fakeRequests{request: pendingRequest(), err: registry.ErrModuleRequestConflict}, &fakeAssignments{})
	r := adminRouter(s)

	req := httptest.NewRequest("POST", "/api/v1/admin/module-requests/req-1/approve", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", "test-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRejectModuleRequest(t *testing.T) {
	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, &fakeAgencies{}, &fakeEngine{},
		&fakeRequests{request: pendingRequest()}, &fakeAssignments{})
	r := adminRouter(s)

	body := bytes.NewReader([]byte(`{"reason": "not on your plan"}`))
	req := httptest.NewRequest("POST", "/api/v1/admin/module-requests/req-1/reject", body)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", "test-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"rejected"`)
}

func TestRejectRequiresReason(t *testing.T) {
	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, &fakeAgencies{}, &fakeEngine{},
		&fakeRequests{request: pendingRequest()}, &fakeAssignments{})
	r := adminRouter(s)

	req := httptest.NewRequest("POST", "/api/v1/admin/module-requests/req-1/reject", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", "test-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitModuleRequest(t *testing.T) {
	requests := &fakeRequests{}
	agencies := &fakeAgencies{agency: &registry.Agency{
		ID: "agency-1", ProvisioningStatus: registry.ProvisioningActive, IsActive: true,
	}}
	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, agencies, &fakeEngine{}, requests, &fakeAssignments{})
	r := adminRouter(s)

	body := bytes.NewReader([]byte(`{"module_id":"crm","reason":"we need it","requested_by":"owner@acme.test"}`))
	req := httptest.NewRequest("POST", "/api/v1/agencies/agency-1/module-requests", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, requests.submitted)
	assert.Equal(t, "agency-1", requests.submitted.AgencyID)
	assert.Equal(t, "crm", requests.submitted.ModuleID)
}

func TestSubmitModuleRequestInactiveAgency(t *testing.T) {
	agencies := &fakeAgencies{agency: &registry.Agency{
		ID: "agency-1", ProvisioningStatus: registry.ProvisioningInProgress,
	}}
	s := newTestServer(&fakeCatalog{snap: testSnapshot()}, agencies, &fakeEngine{}, &fakeRequests{}, &fakeAssignments{})
	r := adminRouter(s)

	body := bytes.NewReader([]byte(`{"module_id":"crm","requested_by":"owner@acme.test"}`))
	req := httptest.NewRequest("POST", "/api/v1/agencies/agency-1/module-requests", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}
