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

// Recommend maps a business profile to a categorized module list.
//
// Pure function over the snapshot: no side effects, no persistence.
// For each active catalog entry every matching rule is evaluated and the
// highest-weight match wins; entries matched by no rule default to
// optional. An incomplete profile yields an empty categorized result
// (All still carries the catalog) rather than an error.
func Recommend(snap *Snapshot, profile Profile) Recommendation {
	all := snap.ActiveEntries()

	if !profile.Complete() {
		return Recommendation{
			Required:     []CatalogEntry{},
			Recommended:  []CatalogEntry{},
			Optional:     []CatalogEntry{},
			All:          all,
			Insufficient: true,
		}
	}

	// Highest-weight matching rule per module. Strict priority, not
	// accumulation: a single required match beats any number of
	// recommended or optional matches.
	best := make(map[string]Rule, len(snap.Rules))
	for _, rule := range snap.Rules {
		if !rule.Matches(profile) {
			continue
		}
		cur, seen := best[rule.ModuleID]
		if !seen || rule.Weight.rank() > cur.Weight.rank() {
			best[rule.ModuleID] = rule
		}
	}

	rec := Recommendation{
		Required:    []CatalogEntry{},
		Recommended: []CatalogEntry{},
		Optional:    []CatalogEntry{},
		All:         all,
	}

	justifications := make(map[string]string)
	for _, entry := range all {
		rule, matched := best[entry.ID]
		weight := WeightOptional
		if matched {
			weight = rule.Weight
			if rule.Justification != "" {
				justifications[entry.ID] = rule.Justification
			}
		}

		switch weight {
		case WeightRequired:
			rec.Required = append(rec.Required, entry)
		case WeightRecommended:
			rec.Recommended = append(rec.Recommended, entry)
		default:
			rec.Optional = append(rec.Optional, entry)
		}
	}

	if len(justifications) > 0 {
		rec.Justifications = justifications
	}

	return rec
}
