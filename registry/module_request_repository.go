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
	"strings"
	"time"

	"github.com/google/uuid"

	"agencyhub/platform/recommend"
)

// ModuleRequestRepository handles the post-activation module request
// workflow. Transitions from pending use optimistic concurrency: the row
// must still be pending at write time, and a lost race surfaces as
// ErrModuleRequestConflict.
type ModuleRequestRepository struct {
	db *sql.DB
}

// NewModuleRequestRepository creates a new module request repository.
func NewModuleRequestRepository(db *sql.DB) *ModuleRequestRepository {
	return &ModuleRequestRepository{db: db}
}

// Submit creates a new pending request. Re-submission after rejection
// always creates a fresh row; rejected requests are never reopened.
func (r *ModuleRequestRepository) Submit(ctx context.Context, agencyID, moduleID, reason, requestedBy string) (*ModuleRequest, error) {
	req := &ModuleRequest{
		ID:          uuid.New().String(),
		AgencyID:    agencyID,
		ModuleID:    moduleID,
		Status:      ModuleRequestPending,
		Reason:      reason,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agency_module_requests (
			request_id, agency_id, module_id, status, reason, requested_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.AgencyID, req.ModuleID, string(req.Status), req.Reason,
		req.RequestedBy, req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to submit module request: %w", err)
	}

	log.Printf("[Registry] Module request %s submitted for agency %s module %s",
		req.ID, agencyID, moduleID)
	return req, nil
}

// GetByID retrieves a module request.
func (r *ModuleRequestRepository) GetByID(ctx context.Context, requestID string) (*ModuleRequest, error) {
	req := &ModuleRequest{}
	var status string
	var override sql.NullInt64
	var reviewedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT request_id, agency_id, module_id, status, COALESCE(reason, ''),
		       requested_by, COALESCE(reviewed_by, ''), cost_override_cents,
		       created_at, reviewed_at
		FROM agency_module_requests
		WHERE request_id = $1
	`, requestID).Scan(
		&req.ID, &req.AgencyID, &req.ModuleID, &status, &req.Reason,
		&req.RequestedBy, &req.ReviewedBy, &override, &req.CreatedAt, &reviewedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrModuleRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module request: %w", err)
	}

	req.Status = ModuleRequestStatus(status)
	if override.Valid {
		m := recommend.Money(override.Int64)
		req.CostOverride = &m
	}
	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Time
	}
	return req, nil
}

// List retrieves module requests with filtering and pagination.
func (r *ModuleRequestRepository) List(ctx context.Context, filter ModuleRequestFilter) ([]ModuleRequest, int, error) {
	whereConditions := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filter.AgencyID != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("agency_id = $%d", argIndex))
		args = append(args, filter.AgencyID)
		argIndex++
	}
	if filter.Status != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(filter.Status))
		argIndex++
	}

	whereClause := strings.Join(whereConditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM agency_module_requests WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count module requests: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := fmt.Sprintf(`
		SELECT request_id, agency_id, module_id, status, COALESCE(reason, ''),
		       requested_by, COALESCE(reviewed_by, ''), cost_override_cents,
		       created_at, reviewed_at
		FROM agency_module_requests
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, whereClause, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list module requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var requests []ModuleRequest
	for rows.Next() {
		var req ModuleRequest
		var status string
		var override sql.NullInt64
		var reviewedAt sql.NullTime

		if err := rows.Scan(&req.ID, &req.AgencyID, &req.ModuleID, &status,
			&req.Reason, &req.RequestedBy, &req.ReviewedBy, &override,
			&req.CreatedAt, &reviewedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan module request: %w", err)
		}

		req.Status = ModuleRequestStatus(status)
		if override.Valid {
			m := recommend.Money(override.Int64)
			req.CostOverride = &m
		}
		if reviewedAt.Valid {
			req.ReviewedAt = &reviewedAt.Time
		}
		requests = append(requests, req)
	}

	return requests, total, nil
}

// Approve transitions pending -> approved and assigns the module to the
// agency in the same transaction, so a crash can never leave an approved
// request without its assignment row. The WHERE status='pending' guard
// is the optimistic concurrency control: zero rows updated means another
// reviewer got there first.
func (r *ModuleRequestRepository) Approve(ctx context.Context, requestID, reviewedBy string, costOverride *recommend.Money) (*ModuleRequest, error) {
	var override interface{}
	if costOverride != nil {
		override = int64(*costOverride)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin approval transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var agencyID, moduleID string
	err = tx.QueryRowContext(ctx, `
		UPDATE agency_module_requests
		SET status = 'approved', reviewed_by = $2, cost_override_cents = $3, reviewed_at = NOW()
		WHERE request_id = $1 AND status = 'pending'
		RETURNING agency_id, module_id
	`, requestID, reviewedBy, override).Scan(&agencyID, &moduleID)
	if err == sql.ErrNoRows {
		return nil, r.classifyMissingTransition(ctx, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to approve module request: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agency_modules (agency_id, module_id, cost_override_cents, assigned_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (agency_id, module_id) DO UPDATE SET cost_override_cents = $3
	`, agencyID, moduleID, override)
	if err != nil {
		return nil, fmt.Errorf("failed to assign approved module: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	log.Printf("[Registry] Module request %s approved by %s", requestID, reviewedBy)
	return r.GetByID(ctx, requestID)
}

// Reject transitions pending -> rejected with the reviewer's reason.
func (r *ModuleRequestRepository) Reject(ctx context.Context, requestID, reviewedBy, reason string) (*ModuleRequest, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE agency_module_requests
		SET status = 'rejected', reviewed_by = $2, reason = $3, reviewed_at = NOW()
		WHERE request_id = $1 AND status = 'pending'
	`, requestID, reviewedBy, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to reject module request: %w", err)
	}

	if err := r.checkTransition(ctx, result, requestID); err != nil {
		return nil, err
	}

	log.Printf("[Registry] Module request %s rejected by %s", requestID, reviewedBy)
	return r.GetByID(ctx, requestID)
}

// checkTransition distinguishes a lost optimistic race from a missing row.
func (r *ModuleRequestRepository) checkTransition(ctx context.Context, result sql.Result, requestID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	return r.classifyMissingTransition(ctx, requestID)
}

// classifyMissingTransition resolves a guarded update that touched
// nothing: a row that exists lost the race, a missing row never existed.
func (r *ModuleRequestRepository) classifyMissingTransition(ctx context.Context, requestID string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM agency_module_requests WHERE request_id = $1)
	`, requestID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check module request existence: %w", err)
	}
	if !exists {
		return ErrModuleRequestNotFound
	}
	return ErrModuleRequestConflict
}
