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
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectSnapshotLoad(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT module_id, path, title").
		WillReturnRows(sqlmock.NewRows([]string{
			"module_id", "path", "title", "category", "base_cost_cents",
			"requires_approval", "is_active",
		}).AddRow("crm", "/crm", "CRM", "crm", 1000, false, true))
	mock.ExpectQuery("SELECT rule_id, module_id").
		WillReturnRows(sqlmock.NewRows([]string{
			"rule_id", "module_id", "industry", "company_size",
			"primary_focus", "business_goal", "weight", "justification",
		}))
}

func TestSnapshotCacheServesFromCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Only one load expected for two Gets within the TTL.
	expectSnapshotLoad(mock)

	cache := NewSnapshotCache(NewCatalogRepository(db), time.Minute)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	hits, misses := cache.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectSnapshotLoad(mock)
	expectSnapshotLoad(mock)

	cache := NewSnapshotCache(NewCatalogRepository(db), time.Minute)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotCacheExpiry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectSnapshotLoad(mock)
	expectSnapshotLoad(mock)

	cache := NewSnapshotCache(NewCatalogRepository(db), time.Millisecond)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
