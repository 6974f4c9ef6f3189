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

// EffectiveCost returns the module's cost for an agency: the agency's
// cost override when present, otherwise the catalog base cost.
func EffectiveCost(entry CatalogEntry, overrides map[string]Money) Money {
	if overrides != nil {
		if override, ok := overrides[entry.ID]; ok {
			return override
		}
	}
	return entry.BaseCost
}

// ComputeCost computes the aggregate monthly cost of a selection:
// plan base price plus the sum of each selected module's effective cost.
func ComputeCost(sel Selection, planBasePrice Money, overrides map[string]Money) Money {
	total := planBasePrice
	for _, m := range sel.Modules {
		total += EffectiveCost(m, overrides)
	}
	return total
}

// CostBreakdown is an itemized pricing line for UI collaborators.
type CostBreakdown struct {
	ModuleID string `json:"module_id"`
	Title    string `json:"title"`
	Cost     Money  `json:"cost_cents"`
	Override bool   `json:"override"`
}

// BreakdownCost itemizes the selection's pricing in catalog order.
func BreakdownCost(sel Selection, overrides map[string]Money) []CostBreakdown {
	lines := make([]CostBreakdown, 0, len(sel.Modules))
	for _, m := range sel.Modules {
		_, overridden := overrides[m.ID]
		lines = append(lines, CostBreakdown{
			ModuleID: m.ID,
			Title:    m.Title,
			Cost:     EffectiveCost(m, overrides),
			Override: overridden,
		})
	}
	return lines
}
