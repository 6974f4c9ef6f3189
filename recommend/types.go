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

package recommend

import (
	"fmt"
	"strings"
)

// Money is a monetary amount in integer cents.
type Money int64

// String formats the amount as a decimal string, e.g. 10400 -> "104.00"
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Category is the fixed enumeration of module categories.
type Category string

const (
	CategoryDashboard   Category = "dashboard"
	CategoryFinance     Category = "finance"
	CategoryHR          Category = "hr"
	CategoryProjects    Category = "projects"
	CategoryReports     Category = "reports"
	CategoryPersonal    Category = "personal"
	CategorySettings    Category = "settings"
	CategorySystem      Category = "system"
	CategoryInventory   Category = "inventory"
	CategoryProcurement Category = "procurement"
	CategoryAssets      Category = "assets"
	CategoryWorkflows   Category = "workflows"
	CategoryAutomation  Category = "automation"
	CategoryManagement  Category = "management"
)

// Weight is the categorization weight a rule assigns to a module.
type Weight string

const (
	WeightRequired    Weight = "required"
	WeightRecommended Weight = "recommended"
	WeightOptional    Weight = "optional"
)

// rank orders weights for tie-breaking: required > recommended > optional.
// Strict priority, not accumulation.
func (w Weight) rank() int {
	switch w {
	case WeightRequired:
		return 3
	case WeightRecommended:
		return 2
	case WeightOptional:
		return 1
	default:
		return 0
	}
}

// CatalogEntry is a selectable application module (page) with its own
// cost and category.
type CatalogEntry struct {
	ID               string   `json:"id"`
	Path             string   `json:"path"`
	Title            string   `json:"title"`
	Category         Category `json:"category"`
	BaseCost         Money    `json:"base_cost_cents"`
	RequiresApproval bool     `json:"requires_approval"`
	IsActive         bool     `json:"is_active"`
}

// Rule is a predicate over profile attributes associated with a catalog
// entry and a categorization weight. Empty predicate fields match any
// profile value; BusinessGoal matches when it appears in the profile's
// goal list.
type Rule struct {
	ID            string `json:"id"`
	ModuleID      string `json:"module_id"`
	Industry      string `json:"industry,omitempty"`
	CompanySize   string `json:"company_size,omitempty"`
	PrimaryFocus  string `json:"primary_focus,omitempty"`
	BusinessGoal  string `json:"business_goal,omitempty"`
	Weight        Weight `json:"weight"`
	Justification string `json:"justification,omitempty"`
}

// Matches reports whether the rule's predicate holds for the profile.
func (r Rule) Matches(p Profile) bool {
	if r.Industry != "" && !strings.EqualFold(r.Industry, p.Industry) {
		return false
	}
	if r.CompanySize != "" && !strings.EqualFold(r.CompanySize, p.CompanySize) {
		return false
	}
	if r.PrimaryFocus != "" && !strings.EqualFold(r.PrimaryFocus, p.PrimaryFocus) {
		return false
	}
	if r.BusinessGoal != "" {
		found := false
		for _, g := range p.BusinessGoals {
			if strings.EqualFold(r.BusinessGoal, g) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Profile is the business profile collected during onboarding.
type Profile struct {
	Industry      string   `json:"industry"`
	CompanySize   string   `json:"company_size"`
	PrimaryFocus  string   `json:"primary_focus"`
	BusinessGoals []string `json:"business_goals,omitempty"`
}

// Complete reports whether all required profile attributes are present.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.Industry) != "" &&
		strings.TrimSpace(p.CompanySize) != "" &&
		strings.TrimSpace(p.PrimaryFocus) != ""
}

// Snapshot is an immutable view of the catalog and rule set, passed
// explicitly into the engine. Entries carry catalog insertion order.
type Snapshot struct {
	Entries []CatalogEntry
	Rules   []Rule
}

// ActiveEntries returns the active catalog entries in insertion order.
func (s *Snapshot) ActiveEntries() []CatalogEntry {
	active := make([]CatalogEntry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.IsActive {
			active = append(active, e)
		}
	}
	return active
}

// Recommendation is the categorized, priced module list for a profile.
// Required, Recommended and Optional partition the active catalog; All
// always carries the full active catalog regardless of profile quality.
type Recommendation struct {
	Required       []CatalogEntry    `json:"required"`
	Recommended    []CatalogEntry    `json:"recommended"`
	Optional       []CatalogEntry    `json:"optional"`
	All            []CatalogEntry    `json:"all"`
	Insufficient   bool              `json:"insufficient_profile,omitempty"`
	Justifications map[string]string `json:"justifications,omitempty"`
}

// RequiredIDs returns the set of required module IDs.
func (r Recommendation) RequiredIDs() map[string]bool {
	ids := make(map[string]bool, len(r.Required))
	for _, e := range r.Required {
		ids[e.ID] = true
	}
	return ids
}
