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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Entries: []CatalogEntry{
			{ID: "mod-dashboard", Path: "/dashboard", Title: "Dashboard", Category: CategoryDashboard, BaseCost: 0, IsActive: true},
			{ID: "mod-invoicing", Path: "/finance/invoicing", Title: "Invoicing", Category: CategoryFinance, BaseCost: 1000, IsActive: true},
			{ID: "mod-payroll", Path: "/hr/payroll", Title: "Payroll", Category: CategoryHR, BaseCost: 1500, IsActive: true},
			{ID: "mod-projects", Path: "/projects", Title: "Projects", Category: CategoryProjects, BaseCost: 500, IsActive: true},
			{ID: "mod-legacy", Path: "/legacy", Title: "Legacy", Category: CategorySystem, BaseCost: 100, IsActive: false},
		},
		Rules: []Rule{
			{ID: "r1", ModuleID: "mod-dashboard", Weight: WeightRequired, Justification: "Every agency needs a dashboard"},
			{ID: "r2", ModuleID: "mod-invoicing", Industry: "finance", Weight: WeightRequired},
			{ID: "r3", ModuleID: "mod-invoicing", Weight: WeightRecommended},
			{ID: "r4", ModuleID: "mod-payroll", CompanySize: "large", Weight: WeightRecommended},
			{ID: "r5", ModuleID: "mod-projects", BusinessGoal: "delivery", Weight: WeightRecommended},
		},
	}
}

func completeProfile() Profile {
	return Profile{
		Industry:      "finance",
		CompanySize:   "large",
		PrimaryFocus:  "operations",
		BusinessGoals: []string{"delivery", "growth"},
	}
}

func TestRecommend_HighestWeightWins(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())

	// mod-invoicing matches both a required rule (industry) and a
	// recommended catch-all rule; required must win.
	require.Len(t, rec.Required, 2)
	assert.Equal(t, "mod-dashboard", rec.Required[0].ID)
	assert.Equal(t, "mod-invoicing", rec.Required[1].ID)

	require.Len(t, rec.Recommended, 2)
	assert.Equal(t, "mod-payroll", rec.Recommended[0].ID)
	assert.Equal(t, "mod-projects", rec.Recommended[1].ID)

	assert.Empty(t, rec.Optional)
	assert.False(t, rec.Insufficient)
}

func TestRecommend_UnmatchedDefaultsToOptional(t *testing.T) {
	profile := Profile{Industry: "retail", CompanySize: "small", PrimaryFocus: "sales"}
	rec := Recommend(testSnapshot(), profile)

	// Only the unconditional rules match: dashboard required,
	// invoicing recommended. Everything else is optional.
	require.Len(t, rec.Required, 1)
	assert.Equal(t, "mod-dashboard", rec.Required[0].ID)
	require.Len(t, rec.Recommended, 1)
	assert.Equal(t, "mod-invoicing", rec.Recommended[0].ID)
	require.Len(t, rec.Optional, 2)
	assert.Equal(t, "mod-payroll", rec.Optional[0].ID)
	assert.Equal(t, "mod-projects", rec.Optional[1].ID)
}

func TestRecommend_CategoriesPartitionCatalog(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())

	seen := make(map[string]int)
	for _, e := range rec.Required {
		seen[e.ID]++
	}
	for _, e := range rec.Recommended {
		seen[e.ID]++
	}
	for _, e := range rec.Optional {
		seen[e.ID]++
	}

	allIDs := make(map[string]bool)
	for _, e := range rec.All {
		allIDs[e.ID] = true
	}

	// No module appears in more than one category, and every categorized
	// module is part of the full catalog.
	for id, count := range seen {
		assert.Equal(t, 1, count, "module %s categorized %d times", id, count)
		assert.True(t, allIDs[id], "module %s missing from All", id)
	}
	assert.Len(t, seen, len(rec.All))
}

func TestRecommend_InsufficientProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
	}{
		{name: "all blank", profile: Profile{Industry: "", CompanySize: "", PrimaryFocus: ""}},
		{name: "blank industry", profile: Profile{Industry: " ", CompanySize: "small", PrimaryFocus: "sales"}},
		{name: "blank company size", profile: Profile{Industry: "retail", CompanySize: "", PrimaryFocus: "sales"}},
		{name: "blank primary focus", profile: Profile{Industry: "retail", CompanySize: "small", PrimaryFocus: "\t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(testSnapshot(), tt.profile)
			assert.True(t, rec.Insufficient)
			assert.Empty(t, rec.Required)
			assert.Empty(t, rec.Recommended)
			assert.Empty(t, rec.Optional)
			// The full catalog is still returned so the UI can render it.
			assert.Len(t, rec.All, 4)
		})
	}
}

func TestRecommend_ExcludesInactiveEntries(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())
	for _, e := range rec.All {
		assert.NotEqual(t, "mod-legacy", e.ID)
	}
}

func TestRecommend_DeterministicOrdering(t *testing.T) {
	first := Recommend(testSnapshot(), completeProfile())
	for i := 0; i < 10; i++ {
		again := Recommend(testSnapshot(), completeProfile())
		assert.Equal(t, first, again)
	}
}

func TestRecommend_Justifications(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())
	require.NotNil(t, rec.Justifications)
	assert.Equal(t, "Every agency needs a dashboard", rec.Justifications["mod-dashboard"])
}

func TestRuleMatches(t *testing.T) {
	profile := completeProfile()

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{name: "empty predicate matches anything", rule: Rule{}, want: true},
		{name: "industry match", rule: Rule{Industry: "finance"}, want: true},
		{name: "industry match is case-insensitive", rule: Rule{Industry: "Finance"}, want: true},
		{name: "industry mismatch", rule: Rule{Industry: "retail"}, want: false},
		{name: "goal present", rule: Rule{BusinessGoal: "growth"}, want: true},
		{name: "goal absent", rule: Rule{BusinessGoal: "compliance"}, want: false},
		{name: "all predicates must hold", rule: Rule{Industry: "finance", CompanySize: "small"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(profile))
		})
	}
}
