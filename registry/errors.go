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

package registry

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDomainTaken is returned when a domain candidate is already
	// reserved. Recoverable: the caller retries with a different name.
	ErrDomainTaken = errors.New("domain is already taken")

	// ErrAgencyNotFound is returned when no agency matches the id.
	ErrAgencyNotFound = errors.New("agency not found")

	// ErrPlanNotFound is returned when no subscription plan matches.
	ErrPlanNotFound = errors.New("subscription plan not found")

	// ErrModuleRequestNotFound is returned when no module request
	// matches the id.
	ErrModuleRequestNotFound = errors.New("module request not found")

	// ErrModuleRequestConflict is returned when a transition races with
	// another reviewer: the row was no longer pending at write time.
	// The second reviewer must re-fetch.
	ErrModuleRequestConflict = errors.New("module request is no longer pending")
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations. The constraint is the final arbiter for domain
// reservations; a violation is an expected conflict, not a crash.
const uniqueViolation = pq.ErrorCode("23505")

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
