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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"agencyhub/platform/recommend"
	"agencyhub/platform/registry"
)

// moduleRequestStore is the registry surface for the request workflow.
type moduleRequestStore interface {
	Submit(ctx context.Context, agencyID, moduleID, reason, requestedBy string) (*registry.ModuleRequest, error)
	List(ctx context.Context, filter registry.ModuleRequestFilter) ([]registry.ModuleRequest, int, error)
	Approve(ctx context.Context, requestID, reviewedBy string, costOverride *recommend.Money) (*registry.ModuleRequest, error)
	Reject(ctx context.Context, requestID, reviewedBy, reason string) (*registry.ModuleRequest, error)
}

// assignmentSource reads an agency's module assignments and cost
// overrides for the quote endpoint.
type assignmentSource interface {
	List(ctx context.Context, agencyID string) ([]registry.ModuleAssignment, error)
	CostOverrides(ctx context.Context, agencyID string) (map[string]recommend.Money, error)
}

// JWTAuth verifies admin bearer tokens.
type JWTAuth struct {
	secret []byte
}

// NewJWTAuth creates a verifier over the shared HMAC secret.
func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{secret: []byte(secret)}
}

// adminClaims is the token payload issued by the admin console.
type adminClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// verify parses the bearer token and returns the reviewer's email.
func (a *JWTAuth) verify(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("missing bearer token")
	}

	claims := &adminClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Role != "admin" {
		return "", fmt.Errorf("admin role required")
	}
	return claims.Email, nil
}

// requireAdmin wraps a handler with bearer token verification and hands
// it the reviewer identity.
func (s *Server) requireAdmin(next func(w http.ResponseWriter, r *http.Request, reviewer string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviewer, err := s.auth.verify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, reviewer)
	}
}

// submitModuleRequestBody is the POST body for a tenant's module request.
type submitModuleRequestBody struct {
	ModuleID    string `json:"module_id"`
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by"`
}

// handleSubmitModuleRequest answers
// POST /api/v1/agencies/{id}/module-requests.
func (s *Server) handleSubmitModuleRequest(w http.ResponseWriter, r *http.Request) {
	agencyID := mux.Vars(r)["id"]

	var body submitModuleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ModuleID == "" || body.RequestedBy == "" {
		writeError(w, http.StatusBadRequest, "module_id and requested_by are required")
		return
	}

	agency, err := s.agencies.GetAgency(r.Context(), agencyID)
	if err != nil {
		if errors.Is(err, registry.ErrAgencyNotFound) {
			writeError(w, http.StatusNotFound, "agency not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load agency")
		return
	}
	if agency.ProvisioningStatus != registry.ProvisioningActive {
		writeError(w, http.StatusConflict, "agency is not active")
		return
	}

	req, err := s.requests.Submit(r.Context(), agencyID, body.ModuleID, body.Reason, body.RequestedBy)
	if err != nil {
		s.log.ErrorWithCode(agencyID, "", "failed to submit module request", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to submit module request")
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// handleListModuleRequests answers GET /api/v1/admin/module-requests.
func (s *Server) handleListModuleRequests(w http.ResponseWriter, r *http.Request, _ string) {
	q := r.URL.Query()
	filter := registry.ModuleRequestFilter{
		AgencyID: q.Get("agency_id"),
		Status:   registry.ModuleRequestStatus(q.Get("status")),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	requests, total, err := s.requests.List(r.Context(), filter)
	if err != nil {
		s.log.ErrorWithCode("", "", "failed to list module requests", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to list module requests")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
	})
}

// approveBody is the POST body for an approval.
type approveBody struct {
	CostOverrideCents *int64 `json:"cost_override_cents,omitempty"`
}

// handleApproveModuleRequest answers
// POST /api/v1/admin/module-requests/{id}/approve. The registry
// transitions the request and assigns the module in one transaction.
func (s *Server) handleApproveModuleRequest(w http.ResponseWriter, r *http.Request, reviewer string) {
	requestID := mux.Vars(r)["id"]

	var body approveBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	var override *recommend.Money
	if body.CostOverrideCents != nil {
		if *body.CostOverrideCents < 0 {
			writeError(w, http.StatusBadRequest, "cost_override_cents must not be negative")
			return
		}
		m := recommend.Money(*body.CostOverrideCents)
		override = &m
	}

	req, err := s.requests.Approve(r.Context(), requestID, reviewer, override)
	if err != nil {
		s.writeTransitionError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// handleRefreshCatalog answers POST /api/v1/admin/catalog/refresh,
// dropping the cached snapshot after a catalog or rule edit so the next
// request reads fresh rows.
func (s *Server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request, reviewer string) {
	s.catalog.Invalidate()
	s.log.Info("", "", "catalog snapshot invalidated",
		map[string]interface{}{"reviewer": reviewer})
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// rejectBody is the POST body for a rejection.
type rejectBody struct {
	Reason string `json:"reason"`
}

// handleRejectModuleRequest answers
// POST /api/v1/admin/module-requests/{id}/reject.
func (s *Server) handleRejectModuleRequest(w http.ResponseWriter, r *http.Request, reviewer string) {
	requestID := mux.Vars(r)["id"]

	var body rejectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	req, err := s.requests.Reject(r.Context(), requestID, reviewer, body.Reason)
	if err != nil {
		s.writeTransitionError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (s *Server) writeTransitionError(w http.ResponseWriter, requestID string, err error) {
	switch {
	case errors.Is(err, registry.ErrModuleRequestNotFound):
		writeError(w, http.StatusNotFound, "module request not found")
	case errors.Is(err, registry.ErrModuleRequestConflict):
		writeError(w, http.StatusConflict, "module request is no longer pending")
	default:
		s.log.ErrorWithCode("", "", "module request transition failed",
			http.StatusInternalServerError, err, map[string]interface{}{"request_id": requestID})
		writeError(w, http.StatusInternalServerError, "failed to update module request")
	}
}
