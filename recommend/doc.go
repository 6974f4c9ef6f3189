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

/*
Package recommend implements the module recommendation engine, selection
templates, and pricing calculator for agency onboarding.

# Overview

The engine is a pure function over an explicitly passed snapshot of the
module catalog and recommendation rules. It has no side effects and no
persistence, which makes it safe for unlimited parallel invocation and
trivially testable in isolation:

	snap, _ := catalogRepo.Snapshot(ctx)
	rec := recommend.Recommend(snap, profile)
	sel, _ := recommend.ApplyTemplate(recommend.TemplateStandard, rec, nil)
	total := recommend.ComputeCost(sel, plan.BasePrice, overrides)

# Categorization

For each active catalog entry, every rule whose predicate matches the
profile is evaluated; the entry's category is the highest-weight match
(required > recommended > optional). Entries matched by no rule default
to optional. Result ordering is catalog insertion order within each
category.

A profile missing any of its required attributes (industry, company size,
primary focus) yields an empty categorized result with Insufficient set,
never an error. Callers depend on this graceful degradation.

# Selection Templates

  - minimal:  required modules only
  - standard: required plus recommended
  - full:     every active module in the catalog
  - custom:   caller-supplied set; required modules are force-included

Category-level bulk operations (SelectCategory / DeselectCategory) never
remove a required module from the active selection.

# Money

Monetary amounts are integer cents. Plan base price and module costs are
summed without floating point drift; a per-agency cost override replaces
a module's base cost when present.
*/
package recommend
