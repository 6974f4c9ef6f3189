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

import "fmt"

// Template is a named strategy for deriving a module set from a
// recommendation.
type Template string

const (
	TemplateMinimal  Template = "minimal"
	TemplateStandard Template = "standard"
	TemplateFull     Template = "full"
	TemplateCustom   Template = "custom"
)

// Selection is a concrete module set derived from a recommendation.
// Modules preserves catalog insertion order; RequiredIDs records which
// members can never be deselected.
type Selection struct {
	Modules     []CatalogEntry  `json:"modules"`
	RequiredIDs map[string]bool `json:"-"`
}

// IDs returns the selected module IDs in catalog order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.Modules))
	for _, m := range s.Modules {
		ids = append(ids, m.ID)
	}
	return ids
}

// Contains reports whether the module is in the selection.
func (s Selection) Contains(moduleID string) bool {
	for _, m := range s.Modules {
		if m.ID == moduleID {
			return true
		}
	}
	return false
}

// ApplyTemplate derives a selection from the recommendation.
//
// Invariant: required modules are always included, even when a custom
// caller omits them. Unknown custom module IDs are ignored rather than
// failing the onboarding flow.
func ApplyTemplate(tmpl Template, rec Recommendation, custom []string) (Selection, error) {
	member := make(map[string]bool)

	switch tmpl {
	case TemplateMinimal:
		for _, e := range rec.Required {
			member[e.ID] = true
		}
	case TemplateStandard:
		for _, e := range rec.Required {
			member[e.ID] = true
		}
		for _, e := range rec.Recommended {
			member[e.ID] = true
		}
	case TemplateFull:
		for _, e := range rec.All {
			member[e.ID] = true
		}
	case TemplateCustom:
		for _, id := range custom {
			member[id] = true
		}
		for _, e := range rec.Required {
			member[e.ID] = true
		}
	default:
		return Selection{}, fmt.Errorf("unknown selection template %q", tmpl)
	}

	return buildSelection(rec, member), nil
}

// SelectCategory adds every active module of the category to the selection.
func SelectCategory(sel Selection, rec Recommendation, cat Category) Selection {
	member := make(map[string]bool, len(sel.Modules))
	for _, m := range sel.Modules {
		member[m.ID] = true
	}
	for _, e := range rec.All {
		if e.Category == cat {
			member[e.ID] = true
		}
	}
	return buildSelection(rec, member)
}

// DeselectCategory removes the category's modules from the selection,
// except required modules, which are never removed by bulk operations.
func DeselectCategory(sel Selection, rec Recommendation, cat Category) Selection {
	required := rec.RequiredIDs()
	member := make(map[string]bool, len(sel.Modules))
	for _, m := range sel.Modules {
		if m.Category == cat && !required[m.ID] {
			continue
		}
		member[m.ID] = true
	}
	return buildSelection(rec, member)
}

// buildSelection renders a membership set in catalog insertion order.
func buildSelection(rec Recommendation, member map[string]bool) Selection {
	sel := Selection{
		Modules:     make([]CatalogEntry, 0, len(member)),
		RequiredIDs: rec.RequiredIDs(),
	}
	for _, e := range rec.All {
		if member[e.ID] {
			sel.Modules = append(sel.Modules, e)
		}
	}
	return sel
}
