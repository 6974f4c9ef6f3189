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

func TestApplyTemplate(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())

	tests := []struct {
		name     string
		template Template
		custom   []string
		wantIDs  []string
	}{
		{
			name:     "minimal selects required only",
			template: TemplateMinimal,
			wantIDs:  []string{"mod-dashboard", "mod-invoicing"},
		},
		{
			name:     "standard selects required plus recommended",
			template: TemplateStandard,
			wantIDs:  []string{"mod-dashboard", "mod-invoicing", "mod-payroll", "mod-projects"},
		},
		{
			name:     "full selects the whole catalog",
			template: TemplateFull,
			wantIDs:  []string{"mod-dashboard", "mod-invoicing", "mod-payroll", "mod-projects"},
		},
		{
			name:     "custom force-includes required",
			template: TemplateCustom,
			custom:   []string{"mod-projects"},
			wantIDs:  []string{"mod-dashboard", "mod-invoicing", "mod-projects"},
		},
		{
			name:     "custom ignores unknown module IDs",
			template: TemplateCustom,
			custom:   []string{"mod-does-not-exist"},
			wantIDs:  []string{"mod-dashboard", "mod-invoicing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ApplyTemplate(tt.template, rec, tt.custom)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, sel.IDs())
		})
	}
}

func TestApplyTemplate_UnknownTemplate(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())
	_, err := ApplyTemplate(Template("deluxe"), rec, nil)
	assert.Error(t, err)
}

// Every template must produce a superset of the required set.
func TestApplyTemplate_SelectionSupersetOfRequired(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())

	for _, tmpl := range []Template{TemplateMinimal, TemplateStandard, TemplateFull, TemplateCustom} {
		sel, err := ApplyTemplate(tmpl, rec, nil)
		require.NoError(t, err)
		for _, req := range rec.Required {
			assert.True(t, sel.Contains(req.ID), "template %s dropped required module %s", tmpl, req.ID)
		}
	}
}

func TestSelectCategory(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())
	sel, err := ApplyTemplate(TemplateMinimal, rec, nil)
	require.NoError(t, err)
	assert.False(t, sel.Contains("mod-payroll"))

	sel = SelectCategory(sel, rec, CategoryHR)
	assert.True(t, sel.Contains("mod-payroll"))
	// Catalog ordering is preserved after the bulk add.
	assert.Equal(t, []string{"mod-dashboard", "mod-invoicing", "mod-payroll"}, sel.IDs())
}

func TestDeselectCategory_NeverRemovesRequired(t *testing.T) {
	rec := Recommend(testSnapshot(), completeProfile())
	sel, err := ApplyTemplate(TemplateFull, rec, nil)
	require.NoError(t, err)

	// mod-invoicing is required and belongs to the finance category;
	// deselect-all on finance must keep it.
	sel = DeselectCategory(sel, rec, CategoryFinance)
	assert.True(t, sel.Contains("mod-invoicing"))

	// A non-required category member is removed.
	sel = DeselectCategory(sel, rec, CategoryHR)
	assert.False(t, sel.Contains("mod-payroll"))
}
