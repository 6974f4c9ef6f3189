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
	"time"

	"agencyhub/platform/recommend"
)

// ProvisioningStatus is the persisted state of the provisioning workflow.
type ProvisioningStatus string

const (
	ProvisioningPending    ProvisioningStatus = "pending"
	ProvisioningInProgress ProvisioningStatus = "provisioning"
	ProvisioningActive     ProvisioningStatus = "active"
	ProvisioningFailed     ProvisioningStatus = "failed"
)

// Agency is a single customer account with its own isolated database.
type Agency struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Domain             string             `json:"domain"`
	DatabaseName       string             `json:"database_name,omitempty"`
	SubscriptionPlan   string             `json:"subscription_plan"`
	MaxUsers           int                `json:"max_users"`
	IsActive           bool               `json:"is_active"`
	ProvisioningStatus ProvisioningStatus `json:"provisioning_status"`
	FailureReason      string             `json:"failure_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// DomainReservation records a claim on a domain candidate. Unreleased
// reservations are globally unique; released rows are retained for audit.
type DomainReservation struct {
	ID         string     `json:"id"`
	Domain     string     `json:"domain"`
	AgencyID   string     `json:"agency_id,omitempty"`
	ReservedAt time.Time  `json:"reserved_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// SubscriptionPlan carries the base price the pricing calculator adds
// module costs onto.
type SubscriptionPlan struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	BasePrice recommend.Money `json:"base_price_cents"`
	MaxUsers  int             `json:"max_users"`
}

// ModuleAssignment links an agency to an enabled module, optionally with
// an agency-specific cost override.
type ModuleAssignment struct {
	AgencyID     string           `json:"agency_id"`
	ModuleID     string           `json:"module_id"`
	CostOverride *recommend.Money `json:"cost_override_cents,omitempty"`
	AssignedAt   time.Time        `json:"assigned_at"`
}

// ModuleRequestStatus is the state of a post-activation module request.
type ModuleRequestStatus string

const (
	ModuleRequestPending  ModuleRequestStatus = "pending"
	ModuleRequestApproved ModuleRequestStatus = "approved"
	ModuleRequestRejected ModuleRequestStatus = "rejected"
)

// ModuleRequest is the post-activation workflow entity. Transitions are
// only permitted from pending; re-submission after rejection creates a
// new request rather than reopening the old one.
type ModuleRequest struct {
	ID           string              `json:"id"`
	AgencyID     string              `json:"agency_id"`
	ModuleID     string              `json:"module_id"`
	Status       ModuleRequestStatus `json:"status"`
	Reason       string              `json:"reason,omitempty"`
	RequestedBy  string              `json:"requested_by"`
	ReviewedBy   string              `json:"reviewed_by,omitempty"`
	CostOverride *recommend.Money    `json:"cost_override_cents,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	ReviewedAt   *time.Time          `json:"reviewed_at,omitempty"`
}

// ModuleRequestFilter narrows ListModuleRequests.
type ModuleRequestFilter struct {
	AgencyID string
	Status   ModuleRequestStatus
	Page     int
	PageSize int
}

// TenantDatabase is the bookkeeping row for a physical tenant database,
// used by the orphan reconciler to resolve partially created databases
// to a terminal state.
type TenantDatabase struct {
	DatabaseName string     `json:"database_name"`
	AgencyID     string     `json:"agency_id"`
	Driver       string     `json:"driver"`
	CreatedAt    time.Time  `json:"created_at"`
	DroppedAt    *time.Time `json:"dropped_at,omitempty"`
}

// CreateAgencyParams collects the validated onboarding input for the
// initial pending agency record.
type CreateAgencyParams struct {
	Name             string
	Domain           string
	SubscriptionPlan string
	MaxUsers         int
}
