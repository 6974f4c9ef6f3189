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

package provision

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"agencyhub/platform/recommend"
	"agencyhub/platform/registry"
	"agencyhub/platform/shared/logger"
)

// EngineConfig bounds the background provisioning work.
type EngineConfig struct {
	// MaxConcurrent caps simultaneous background provisioning runs.
	MaxConcurrent int `yaml:"max_concurrent"`
	// RunTimeout bounds one background run end to end.
	RunTimeout time.Duration `yaml:"run_timeout"`
	// AdminEmail is the seeded administrator account address pattern;
	// %s is replaced by the agency domain.
	AdminEmail string `yaml:"admin_email"`
}

// Engine drives the tenant provisioning workflow. The synchronous part
// of Start reserves the domain and records the pending agency; the rest
// runs in the background under a concurrency semaphore and always ends
// in a terminal agency state.
type Engine struct {
	agencies    AgencyStore
	tenantDBs   TenantDBStore
	assignments AssignmentStore
	creator     DatabaseCreator
	log         *logger.Logger

	sem        chan struct{}
	runTimeout time.Duration
	adminEmail string
	wg         sync.WaitGroup

	// Step functions, replaceable in tests.
	materialize func(ctx context.Context, db *sql.DB, driver string) error
	seed        func(ctx context.Context, db *sql.DB, driver string, agency *registry.Agency,
		plan *registry.SubscriptionPlan, modules []recommend.CatalogEntry, adminEmail string) (*SeedResult, error)
}

// NewEngine creates a provisioning engine.
func NewEngine(agencies AgencyStore, tenantDBs TenantDBStore, assignments AssignmentStore,
	creator DatabaseCreator, cfg EngineConfig) *Engine {

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = "admin@%s.agencyhub.io"
	}

	return &Engine{
		agencies:    agencies,
		tenantDBs:   tenantDBs,
		assignments: assignments,
		creator:     creator,
		log:         logger.New("provision-engine"),
		sem:         make(chan struct{}, cfg.MaxConcurrent),
		runTimeout:  cfg.RunTimeout,
		adminEmail:  cfg.AdminEmail,
		materialize: MaterializeSchema,
		seed:        Seed,
	}
}

// Start runs the synchronous onboarding steps and schedules the rest.
// A domain conflict surfaces immediately as registry.ErrDomainTaken and
// leaves no trace beyond the released reservation history.
func (e *Engine) Start(ctx context.Context, req Request) (*registry.Agency, error) {
	reservation, err := e.agencies.ReserveDomain(ctx, req.Params.Domain)
	if err != nil {
		return nil, err
	}

	agency, err := e.agencies.CreateAgency(ctx, req.Params, reservation)
	if err != nil {
		// Creating the pending record failed; free the domain so the
		// caller can retry immediately.
		if relErr := e.agencies.ReleaseReservation(ctx, req.Params.Domain); relErr != nil {
			e.log.Error("", "", "failed to release reservation after create failure",
				map[string]interface{}{"domain": req.Params.Domain, "error": relErr.Error()})
		}
		return nil, fmt.Errorf("failed to create agency record: %w", err)
	}

	e.wg.Add(1)
	go e.run(agency, req)

	return agency, nil
}

// Wait blocks until all in-flight background runs finish. Called during
// shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// run executes the background provisioning steps for one agency.
func (e *Engine) run(agency *registry.Agency, req Request) {
	defer e.wg.Done()

	// Detached from the HTTP request; the run has its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), e.runTimeout)
	defer cancel()

	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	start := time.Now()

	dbName, err := GenerateDatabaseName(agency.Domain)
	if err != nil {
		e.fail(ctx, agency, "", ReasonDatabaseCreateFailed, err)
		return
	}

	if err := e.agencies.SetProvisioning(ctx, agency.ID, dbName); err != nil {
		e.fail(ctx, agency, "", ReasonDatabaseCreateFailed, err)
		return
	}

	// Record before create: a crash between the two leaves an orphan
	// row the reconciler resolves, never an untracked database.
	if err := e.tenantDBs.RecordCreated(ctx, dbName, agency.ID, e.creator.Driver()); err != nil {
		e.fail(ctx, agency, "", ReasonDatabaseCreateFailed, err)
		return
	}

	if err := e.creator.CreateDatabase(ctx, dbName); err != nil {
		e.fail(ctx, agency, dbName, ReasonDatabaseCreateFailed, err)
		return
	}

	db, err := e.creator.Open(ctx, dbName)
	if err != nil {
		e.fail(ctx, agency, dbName, ReasonDatabaseCreateFailed, err)
		return
	}

	// The handle must be closed before fail runs: postgres refuses
	// DROP DATABASE while our own idle connections hold the target.
	if err := e.materialize(ctx, db, e.creator.Driver()); err != nil {
		_ = db.Close()
		e.fail(ctx, agency, dbName, ReasonSchemaFailed, err)
		return
	}

	seeded, err := e.seed(ctx, db, e.creator.Driver(), agency, req.Plan, req.Modules, e.adminEmailFor(agency.Domain))
	if err != nil {
		_ = db.Close()
		e.fail(ctx, agency, dbName, ReasonSeedFailed, err)
		return
	}
	_ = db.Close()

	if err := e.assignments.BulkAssign(ctx, agency.ID, req.Modules); err != nil {
		e.fail(ctx, agency, dbName, ReasonSeedFailed, err)
		return
	}

	if err := e.agencies.FinalizeAgency(ctx, agency.ID); err != nil {
		e.fail(ctx, agency, dbName, ReasonSeedFailed, err)
		return
	}

	e.log.InfoWithDuration(agency.ID, "", "agency provisioned",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"domain":      agency.Domain,
			"database":    dbName,
			"modules":     len(req.Modules),
			"admin_user":  seeded.AdminUserID,
			"admin_email": seeded.AdminEmail,
		})
}

// adminEmailFor renders the configured admin address for the domain.
// A configured address without the %s verb is used as-is.
func (e *Engine) adminEmailFor(domain string) string {
	if strings.Contains(e.adminEmail, "%s") {
		return fmt.Sprintf(e.adminEmail, domain)
	}
	return e.adminEmail
}

// fail drives the attempt to its terminal failed state: record the
// reason, drop whatever physical database exists, and release the
// domain for a retry. Cleanup errors are logged, not propagated; the
// reconciler retries dropped-database bookkeeping later.
func (e *Engine) fail(ctx context.Context, agency *registry.Agency, dbName, reason string, cause error) {
	e.log.Error(agency.ID, "", "provisioning failed", map[string]interface{}{
		"domain": agency.Domain,
		"reason": reason,
		"error":  cause.Error(),
	})

	if err := e.agencies.MarkFailed(ctx, agency.ID, reason); err != nil {
		e.log.Error(agency.ID, "", "failed to mark agency failed",
			map[string]interface{}{"error": err.Error()})
	}

	if dbName != "" {
		if err := e.creator.DropDatabase(ctx, dbName); err != nil {
			e.log.Error(agency.ID, "", "failed to drop tenant database",
				map[string]interface{}{"database": dbName, "error": err.Error()})
		} else if err := e.tenantDBs.MarkDropped(ctx, dbName); err != nil {
			e.log.Error(agency.ID, "", "failed to record database drop",
				map[string]interface{}{"database": dbName, "error": err.Error()})
		}
	}

	if err := e.agencies.ReleaseReservation(ctx, agency.Domain); err != nil {
		e.log.Error(agency.ID, "", "failed to release domain reservation",
			map[string]interface{}{"domain": agency.Domain, "error": err.Error()})
	}
}
