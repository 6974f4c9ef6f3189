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
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"agencyhub/platform/provision"
	"agencyhub/platform/recommend"
	"agencyhub/platform/registry"
	"agencyhub/platform/shared/logger"
)

// catalogSource serves cached catalog snapshots.
type catalogSource interface {
	Get(ctx context.Context) (*recommend.Snapshot, error)
	Invalidate()
}

// agencyReader is the registry surface the public handlers need.
type agencyReader interface {
	CheckDomainAvailability(ctx context.Context, candidate string) (bool, error)
	GetAgency(ctx context.Context, agencyID string) (*registry.Agency, error)
	GetPlan(ctx context.Context, code string) (*registry.SubscriptionPlan, error)
}

// provisionStarter begins a provisioning run.
type provisionStarter interface {
	Start(ctx context.Context, req provision.Request) (*registry.Agency, error)
}

// Server holds the gateway's handler dependencies.
type Server struct {
	catalog     catalogSource
	agencies    agencyReader
	engine      provisionStarter
	requests    moduleRequestStore
	assignments assignmentSource
	auth        *JWTAuth
	log         *logger.Logger

	// poolStats, when set, enriches the JSON metrics payload.
	poolStats func() interface{}
}

// NewServer assembles the handler set.
func NewServer(catalog catalogSource, agencies agencyReader, engine provisionStarter,
	requests moduleRequestStore, assignments assignmentSource, auth *JWTAuth) *Server {
	return &Server{
		catalog:     catalog,
		agencies:    agencies,
		engine:      engine,
		requests:    requests,
		assignments: assignments,
		auth:        auth,
		log:         logger.New("gateway"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleDomainAvailability answers GET /api/v1/domains/availability?domain=x.
func (s *Server) handleDomainAvailability(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("domain")))
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain query parameter is required")
		return
	}

	available, err := s.agencies.CheckDomainAvailability(r.Context(), domain)
	if err != nil {
		s.log.ErrorWithCode("", "", "domain availability check failed", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to check domain availability")
		return
	}

	result := "available"
	if !available {
		result = "taken"
	}
	promDomainChecks.WithLabelValues(result).Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domain":    domain,
		"available": available,
	})
}

// handleRecommendations answers POST /api/v1/recommendations with the
// categorized module list for a business profile.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var profile recommend.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := s.catalog.Get(r.Context())
	if err != nil {
		s.log.ErrorWithCode("", "", "failed to load catalog snapshot", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to load module catalog")
		return
	}

	writeJSON(w, http.StatusOK, recommend.Recommend(snap, profile))
}

// priceRequest is the POST /api/v1/selections/price body.
type priceRequest struct {
	Plan     string             `json:"plan"`
	Template recommend.Template `json:"template"`
	Modules  []string           `json:"modules,omitempty"`
	Profile  recommend.Profile  `json:"profile"`
}

// priceResponse quotes one selection.
type priceResponse struct {
	Plan          string                    `json:"plan"`
	PlanBaseCents recommend.Money           `json:"plan_base_cents"`
	TotalCents    recommend.Money           `json:"total_cents"`
	Modules       []recommend.CostBreakdown `json:"modules"`
	Selection     []string                  `json:"selection"`
}

// handlePrice answers POST /api/v1/selections/price.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := s.agencies.GetPlan(r.Context(), req.Plan)
	if err != nil {
		if errors.Is(err, registry.ErrPlanNotFound) {
			writeError(w, http.StatusBadRequest, "unknown subscription plan")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load subscription plan")
		return
	}

	sel, status, msg := s.buildSelection(r.Context(), req.Template, req.Modules, req.Profile)
	if msg != "" {
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Plan:          plan.Code,
		PlanBaseCents: plan.BasePrice,
		TotalCents:    recommend.ComputeCost(sel, plan.BasePrice, nil),
		Modules:       recommend.BreakdownCost(sel, nil),
		Selection:     sel.IDs(),
	})
}

// buildSelection resolves a template plus optional custom module list
// into a concrete selection against the current catalog.
func (s *Server) buildSelection(ctx context.Context, tmpl recommend.Template,
	modules []string, profile recommend.Profile) (recommend.Selection, int, string) {

	snap, err := s.catalog.Get(ctx)
	if err != nil {
		s.log.ErrorWithCode("", "", "failed to load catalog snapshot", http.StatusInternalServerError, err, nil)
		return recommend.Selection{}, http.StatusInternalServerError, "failed to load module catalog"
	}

	rec := recommend.Recommend(snap, profile)
	sel, err := recommend.ApplyTemplate(tmpl, rec, modules)
	if err != nil {
		return recommend.Selection{}, http.StatusBadRequest, err.Error()
	}
	return sel, 0, ""
}

// createAgencyRequest is the POST /api/v1/agencies body.
type createAgencyRequest struct {
	Name     string             `json:"name"`
	Domain   string             `json:"domain"`
	Plan     string             `json:"subscription_plan"`
	Template recommend.Template `json:"template"`
	Modules  []string           `json:"modules,omitempty"`
	Profile  recommend.Profile  `json:"profile"`
}

// handleCreateAgency answers POST /api/v1/agencies. On success the
// agency is accepted for provisioning; callers poll its status.
func (s *Server) handleCreateAgency(w http.ResponseWriter, r *http.Request) {
	var req createAgencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	if req.Name == "" || req.Domain == "" || req.Plan == "" {
		writeError(w, http.StatusBadRequest, "name, domain and subscription_plan are required")
		return
	}
	if req.Template == "" {
		req.Template = recommend.TemplateStandard
	}

	plan, err := s.agencies.GetPlan(r.Context(), req.Plan)
	if err != nil {
		if errors.Is(err, registry.ErrPlanNotFound) {
			writeError(w, http.StatusBadRequest, "unknown subscription plan")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load subscription plan")
		return
	}

	sel, status, msg := s.buildSelection(r.Context(), req.Template, req.Modules, req.Profile)
	if msg != "" {
		writeError(w, status, msg)
		return
	}

	agency, err := s.engine.Start(r.Context(), provision.Request{
		Params: registry.CreateAgencyParams{
			Name:             req.Name,
			Domain:           req.Domain,
			SubscriptionPlan: plan.Code,
			MaxUsers:         plan.MaxUsers,
		},
		Plan:    plan,
		Modules: sel.Modules,
	})
	if err != nil {
		if errors.Is(err, registry.ErrDomainTaken) {
			promProvisioningTotal.WithLabelValues("domain_taken").Inc()
			writeError(w, http.StatusConflict, "domain is already taken")
			return
		}
		promProvisioningTotal.WithLabelValues("error").Inc()
		s.log.ErrorWithCode("", "", "failed to start provisioning", http.StatusInternalServerError, err,
			map[string]interface{}{"domain": req.Domain})
		writeError(w, http.StatusInternalServerError, "failed to create agency")
		return
	}

	promProvisioningTotal.WithLabelValues("accepted").Inc()
	s.log.Info(agency.ID, "", "agency accepted for provisioning",
		map[string]interface{}{"domain": agency.Domain, "plan": plan.Code, "modules": len(sel.Modules)})

	writeJSON(w, http.StatusAccepted, agency)
}

// handleGetAgency answers GET /api/v1/agencies/{id}, the provisioning
// status poll.
func (s *Server) handleGetAgency(w http.ResponseWriter, r *http.Request) {
	agencyID := mux.Vars(r)["id"]

	agency, err := s.agencies.GetAgency(r.Context(), agencyID)
	if err != nil {
		if errors.Is(err, registry.ErrAgencyNotFound) {
			writeError(w, http.StatusNotFound, "agency not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load agency")
		return
	}

	writeJSON(w, http.StatusOK, agency)
}

// quoteResponse itemizes an agency's current monthly cost.
type quoteResponse struct {
	AgencyID      string                    `json:"agency_id"`
	Plan          string                    `json:"plan"`
	PlanBaseCents recommend.Money           `json:"plan_base_cents"`
	TotalCents    recommend.Money           `json:"total_cents"`
	Modules       []recommend.CostBreakdown `json:"modules"`
}

// handleAgencyQuote answers GET /api/v1/agencies/{id}/quote: the plan
// base plus the effective cost of every assigned module, with approved
// cost overrides applied.
func (s *Server) handleAgencyQuote(w http.ResponseWriter, r *http.Request) {
	agencyID := mux.Vars(r)["id"]

	agency, err := s.agencies.GetAgency(r.Context(), agencyID)
	if err != nil {
		if errors.Is(err, registry.ErrAgencyNotFound) {
			writeError(w, http.StatusNotFound, "agency not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load agency")
		return
	}

	plan, err := s.agencies.GetPlan(r.Context(), agency.SubscriptionPlan)
	if err != nil {
		s.log.ErrorWithCode(agencyID, "", "failed to load subscription plan", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to load subscription plan")
		return
	}

	assigned, err := s.assignments.List(r.Context(), agencyID)
	if err != nil {
		s.log.ErrorWithCode(agencyID, "", "failed to load module assignments", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to load module assignments")
		return
	}

	overrides, err := s.assignments.CostOverrides(r.Context(), agencyID)
	if err != nil {
		s.log.ErrorWithCode(agencyID, "", "failed to load cost overrides", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to load cost overrides")
		return
	}

	snap, err := s.catalog.Get(r.Context())
	if err != nil {
		s.log.ErrorWithCode(agencyID, "", "failed to load catalog snapshot", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "failed to load module catalog")
		return
	}

	byID := make(map[string]recommend.CatalogEntry, len(snap.Entries))
	for _, e := range snap.Entries {
		byID[e.ID] = e
	}

	// Assignments to retired catalog entries no longer bill.
	modules := make([]recommend.CatalogEntry, 0, len(assigned))
	for _, a := range assigned {
		if entry, ok := byID[a.ModuleID]; ok {
			modules = append(modules, entry)
		}
	}

	sel := recommend.Selection{Modules: modules}
	writeJSON(w, http.StatusOK, quoteResponse{
		AgencyID:      agency.ID,
		Plan:          plan.Code,
		PlanBaseCents: plan.BasePrice,
		TotalCents:    recommend.ComputeCost(sel, plan.BasePrice, overrides),
		Modules:       recommend.BreakdownCost(sel, overrides),
	})
}

// healthHandler answers GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "agencyhub-gateway",
	})
}

// metricsHandler answers GET /metrics with the JSON snapshot.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	snap := metrics.snapshot()
	if s.poolStats != nil {
		snap.TenantPools = s.poolStats()
	}
	writeJSON(w, http.StatusOK, snap)
}
