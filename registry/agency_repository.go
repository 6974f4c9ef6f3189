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
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// domainPattern limits candidates to DNS-label-safe slugs.
var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// AgencyRepository handles database operations for agencies and domain
// reservations.
type AgencyRepository struct {
	db *sql.DB
}

// NewAgencyRepository creates a new agency repository.
func NewAgencyRepository(db *sql.DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// CheckDomainAvailability reports whether the candidate is free.
// Read-only and idempotent until a reservation succeeds.
func (r *AgencyRepository) CheckDomainAvailability(ctx context.Context, candidate string) (bool, error) {
	if !domainPattern.MatchString(candidate) {
		return false, nil
	}

	var reserved bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM domain_reservations
			WHERE domain = $1 AND released_at IS NULL
		)
	`, candidate).Scan(&reserved)
	if err != nil {
		return false, fmt.Errorf("failed to check domain availability: %w", err)
	}

	return !reserved, nil
}

// ReserveDomain atomically claims a domain candidate. The partial unique
// index on unreleased reservations arbitrates concurrent callers; the
// loser receives ErrDomainTaken.
func (r *AgencyRepository) ReserveDomain(ctx context.Context, candidate string) (*DomainReservation, error) {
	if !domainPattern.MatchString(candidate) {
		return nil, fmt.Errorf("invalid domain candidate %q", candidate)
	}

	reservation := &DomainReservation{
		ID:         uuid.New().String(),
		Domain:     candidate,
		ReservedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domain_reservations (reservation_id, domain, reserved_at)
		VALUES ($1, $2, $3)
	`, reservation.ID, reservation.Domain, reservation.ReservedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDomainTaken
		}
		return nil, fmt.Errorf("failed to reserve domain: %w", err)
	}

	log.Printf("[Registry] Reserved domain %s (reservation %s)", candidate, reservation.ID)
	return reservation, nil
}

// ReleaseReservation frees the domain for a subsequent attempt. The row
// is retained with released_at set rather than deleted.
func (r *AgencyRepository) ReleaseReservation(ctx context.Context, domain string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE domain_reservations
		SET released_at = NOW()
		WHERE domain = $1 AND released_at IS NULL
	`, domain)
	if err != nil {
		return fmt.Errorf("failed to release reservation for %s: %w", domain, err)
	}

	log.Printf("[Registry] Released reservation for domain %s", domain)
	return nil
}

// CreateAgency inserts the initial pending agency record and links it to
// the reservation.
func (r *AgencyRepository) CreateAgency(ctx context.Context, params CreateAgencyParams, reservation *DomainReservation) (*Agency, error) {
	now := time.Now()
	agency := &Agency{
		ID:                 uuid.New().String(),
		Name:               params.Name,
		Domain:             params.Domain,
		SubscriptionPlan:   params.SubscriptionPlan,
		MaxUsers:           params.MaxUsers,
		IsActive:           false,
		ProvisioningStatus: ProvisioningPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agencies (
			agency_id, name, domain, subscription_plan, max_users,
			is_active, provisioning_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, agency.ID, agency.Name, agency.Domain, agency.SubscriptionPlan,
		agency.MaxUsers, agency.IsActive, string(agency.ProvisioningStatus),
		agency.CreatedAt, agency.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert agency: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE domain_reservations SET agency_id = $1 WHERE reservation_id = $2
	`, agency.ID, reservation.ID)
	if err != nil {
		// The reservation is still valid; the link is informational.
		log.Printf("[Registry] Warning: failed to link reservation %s to agency %s: %v",
			reservation.ID, agency.ID, err)
	}

	return agency, nil
}

// SetProvisioning marks the agency as provisioning and records the
// physical database identifier chosen for this attempt.
func (r *AgencyRepository) SetProvisioning(ctx context.Context, agencyID, databaseName string) error {
	return r.updateStatus(ctx, agencyID, `
		UPDATE agencies
		SET provisioning_status = 'provisioning', database_name = $2, updated_at = NOW()
		WHERE agency_id = $1
	`, databaseName)
}

// FinalizeAgency flips the agency to active. This is the only transition
// the tenant connection manager observes as a green light.
func (r *AgencyRepository) FinalizeAgency(ctx context.Context, agencyID string) error {
	return r.updateStatus(ctx, agencyID, `
		UPDATE agencies
		SET provisioning_status = 'active', is_active = true, failure_reason = NULL, updated_at = NOW()
		WHERE agency_id = $1
	`)
}

// MarkFailed records the terminal failed state with its reason code.
func (r *AgencyRepository) MarkFailed(ctx context.Context, agencyID, reason string) error {
	return r.updateStatus(ctx, agencyID, `
		UPDATE agencies
		SET provisioning_status = 'failed', is_active = false, failure_reason = $2, updated_at = NOW()
		WHERE agency_id = $1
	`, reason)
}

// Deactivate disables an active agency. The tenant connection manager
// invalidates its pools on the next acquire.
func (r *AgencyRepository) Deactivate(ctx context.Context, agencyID string) error {
	return r.updateStatus(ctx, agencyID, `
		UPDATE agencies
		SET is_active = false, updated_at = NOW()
		WHERE agency_id = $1
	`)
}

func (r *AgencyRepository) updateStatus(ctx context.Context, agencyID, query string, args ...interface{}) error {
	all := append([]interface{}{agencyID}, args...)
	result, err := r.db.ExecContext(ctx, query, all...)
	if err != nil {
		return fmt.Errorf("failed to update agency %s: %w", agencyID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAgencyNotFound
	}
	return nil
}

// GetAgency retrieves an agency by id.
func (r *AgencyRepository) GetAgency(ctx context.Context, agencyID string) (*Agency, error) {
	agency := &Agency{}
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT agency_id, name, domain, COALESCE(database_name, ''),
		       subscription_plan, max_users, is_active, provisioning_status,
		       COALESCE(failure_reason, ''), created_at, updated_at
		FROM agencies
		WHERE agency_id = $1
	`, agencyID).Scan(
		&agency.ID, &agency.Name, &agency.Domain, &agency.DatabaseName,
		&agency.SubscriptionPlan, &agency.MaxUsers, &agency.IsActive, &status,
		&agency.FailureReason, &agency.CreatedAt, &agency.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAgencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}

	agency.ProvisioningStatus = ProvisioningStatus(status)
	return agency, nil
}

// GetPlan retrieves a subscription plan by code.
func (r *AgencyRepository) GetPlan(ctx context.Context, code string) (*SubscriptionPlan, error) {
	plan := &SubscriptionPlan{}
	err := r.db.QueryRowContext(ctx, `
		SELECT code, name, base_price_cents, max_users
		FROM subscription_plans
		WHERE code = $1
	`, code).Scan(&plan.Code, &plan.Name, &plan.BasePrice, &plan.MaxUsers)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", code, err)
	}
	return plan, nil
}
