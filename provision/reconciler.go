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
	"time"

	"agencyhub/platform/shared/logger"
)

// Reconciler sweeps orphaned tenant databases: rows recorded before a
// create whose agency ended up failed but whose database was never
// marked dropped. Drops are idempotent (DROP IF EXISTS), so at-least-once
// delivery is safe.
type Reconciler struct {
	tenantDBs TenantDBStore
	creators  map[string]DatabaseCreator
	interval  time.Duration
	log       *logger.Logger
}

// NewReconciler creates a reconciler over the configured backends,
// keyed by driver name.
func NewReconciler(tenantDBs TenantDBStore, creators []DatabaseCreator, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	byDriver := make(map[string]DatabaseCreator, len(creators))
	for _, c := range creators {
		byDriver[c.Driver()] = c
	}

	return &Reconciler{
		tenantDBs: tenantDBs,
		creators:  byDriver,
		interval:  interval,
		log:       logger.New("orphan-reconciler"),
	}
}

// Run sweeps on a ticker until the context is cancelled. One sweep runs
// immediately at startup to catch orphans from a previous crash.
func (r *Reconciler) Run(ctx context.Context) {
	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep drops every orphaned database once. Per-database errors are
// logged and left for the next sweep.
func (r *Reconciler) Sweep(ctx context.Context) {
	orphans, err := r.tenantDBs.ListOrphans(ctx)
	if err != nil {
		r.log.Error("", "", "failed to list orphan databases",
			map[string]interface{}{"error": err.Error()})
		return
	}
	if len(orphans) == 0 {
		return
	}

	r.log.Warn("", "", "reconciling orphan databases",
		map[string]interface{}{"count": len(orphans)})

	for _, orphan := range orphans {
		creator, ok := r.creators[orphan.Driver]
		if !ok {
			r.log.Error(orphan.AgencyID, "", "no creator for orphan driver",
				map[string]interface{}{"database": orphan.DatabaseName, "driver": orphan.Driver})
			continue
		}

		if err := creator.DropDatabase(ctx, orphan.DatabaseName); err != nil {
			r.log.Error(orphan.AgencyID, "", "failed to drop orphan database",
				map[string]interface{}{"database": orphan.DatabaseName, "error": err.Error()})
			continue
		}

		if err := r.tenantDBs.MarkDropped(ctx, orphan.DatabaseName); err != nil {
			r.log.Error(orphan.AgencyID, "", "failed to record orphan drop",
				map[string]interface{}{"database": orphan.DatabaseName, "error": err.Error()})
			continue
		}

		r.log.Info(orphan.AgencyID, "", "dropped orphan database",
			map[string]interface{}{"database": orphan.DatabaseName})
	}
}
