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

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"agencyhub/platform/provision"
	"agencyhub/platform/registry"
	"agencyhub/platform/tenantpool"
)

// tenantLookup adapts the agency repository to the pool manager.
type tenantLookup struct {
	agencies *registry.AgencyRepository
}

func (l *tenantLookup) LookupTenant(ctx context.Context, agencyID string) (*tenantpool.TenantInfo, error) {
	agency, err := l.agencies.GetAgency(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	return &tenantpool.TenantInfo{
		AgencyID:     agency.ID,
		DatabaseName: agency.DatabaseName,
		Ready:        agency.ProvisioningStatus == registry.ProvisioningActive,
		Active:       agency.IsActive,
	}, nil
}

// Run is the exported entry point for the gateway service.
//
// It loads configuration, applies the central registry migrations,
// assembles the provisioning engine, orphan reconciler, tenant pool
// manager and rate limiter, and serves HTTP until SIGINT/SIGTERM.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8080)
//   - DATABASE_URL: central registry PostgreSQL connection string
//   - REDIS_URL: rate limiter backend (optional; disables limiting if unset)
//   - TENANT_DRIVER: tenant database backend, postgres or mysql
//   - ADMIN_JWT_SECRET: admin API token secret
//   - CONFIG_FILE: YAML config path (default: config.yaml)
func Run() {
	log.Println("Starting AgencyHub Gateway...")

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	central, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open central registry database: %v", err)
	}
	defer func() { _ = central.Close() }()

	central.SetMaxOpenConns(20)
	central.SetConnMaxLifetime(5 * time.Minute)

	if err := central.Ping(); err != nil {
		log.Fatalf("Failed to connect to central registry database: %v", err)
	}

	if err := registry.Migrate(central); err != nil {
		log.Fatalf("Failed to apply central migrations: %v", err)
	}

	// Repositories.
	agencies := registry.NewAgencyRepository(central)
	catalog := registry.NewCatalogRepository(central)
	assignments := registry.NewAssignmentRepository(central)
	moduleRequests := registry.NewModuleRequestRepository(central)
	tenantDBs := registry.NewTenantDatabaseRepository(central)
	snapshots := registry.NewSnapshotCache(catalog, cfg.SnapshotTTL)

	// Tenant database backend.
	creator, err := buildCreator(cfg, central)
	if err != nil {
		log.Fatalf("Failed to configure tenant database backend: %v", err)
	}

	engine := provision.NewEngine(agencies, tenantDBs, assignments, creator, cfg.Provision)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := provision.NewReconciler(tenantDBs, []provision.DatabaseCreator{creator}, cfg.ReconcileInterval)
	go reconciler.Run(rootCtx)

	pools := tenantpool.NewManager(&tenantLookup{agencies: agencies}, creator.Open, cfg.Pool)
	go pools.Run(rootCtx)

	limiter, err := NewRateLimiter(cfg.RedisURL, cfg.RateLimitPerMinute)
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}
	defer func() { _ = limiter.Close() }()

	server := NewServer(snapshots, agencies, engine, moduleRequests, assignments, NewJWTAuth(cfg.AdminJWTSecret))
	server.poolStats = func() interface{} { return pools.Stats() }

	r := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// Health and metrics.
	r.HandleFunc("/health", server.healthHandler).Methods("GET")
	r.HandleFunc("/metrics", server.metricsHandler).Methods("GET") // JSON metrics (legacy)
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")     // Prometheus native format

	// Public onboarding endpoints, rate limited per client IP.
	r.HandleFunc("/api/v1/domains/availability",
		limiter.Middleware(metricsMiddleware("domain_availability", server.handleDomainAvailability))).Methods("GET")
	r.HandleFunc("/api/v1/recommendations",
		limiter.Middleware(metricsMiddleware("recommendations", server.handleRecommendations))).Methods("POST")
	r.HandleFunc("/api/v1/selections/price",
		limiter.Middleware(metricsMiddleware("price", server.handlePrice))).Methods("POST")
	r.HandleFunc("/api/v1/agencies",
		limiter.Middleware(metricsMiddleware("create_agency", server.handleCreateAgency))).Methods("POST")
	r.HandleFunc("/api/v1/agencies/{id}",
		metricsMiddleware("get_agency", server.handleGetAgency)).Methods("GET")
	r.HandleFunc("/api/v1/agencies/{id}/status",
		metricsMiddleware("get_agency", server.handleGetAgency)).Methods("GET")
	r.HandleFunc("/api/v1/agencies/{id}/quote",
		metricsMiddleware("agency_quote", server.handleAgencyQuote)).Methods("GET")
	r.HandleFunc("/api/v1/agencies/{id}/module-requests",
		metricsMiddleware("submit_module_request", server.handleSubmitModuleRequest)).Methods("POST")

	// Admin module request workflow.
	r.HandleFunc("/api/v1/admin/module-requests",
		metricsMiddleware("list_module_requests", server.requireAdmin(server.handleListModuleRequests))).Methods("GET")
	r.HandleFunc("/api/v1/admin/module-requests/{id}/approve",
		metricsMiddleware("approve_module_request", server.requireAdmin(server.handleApproveModuleRequest))).Methods("POST")
	r.HandleFunc("/api/v1/admin/module-requests/{id}/reject",
		metricsMiddleware("reject_module_request", server.requireAdmin(server.handleRejectModuleRequest))).Methods("POST")
	r.HandleFunc("/api/v1/admin/catalog/refresh",
		metricsMiddleware("refresh_catalog", server.requireAdmin(server.handleRefreshCatalog))).Methods("POST")

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("AgencyHub Gateway listening on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("Shutting down gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	// Let in-flight provisioning runs reach a terminal state.
	engine.Wait()
	pools.CloseAll()
	log.Println("Gateway stopped")
}

// buildCreator opens the admin connection for the configured tenant
// backend.
func buildCreator(cfg *Config, central *sql.DB) (provision.DatabaseCreator, error) {
	switch cfg.TenantDriver {
	case "postgres":
		if cfg.TenantPostgres.Host == "" {
			// Same server as the central registry.
			return provision.NewPostgresCreator(central, cfg.TenantPostgres), nil
		}
		sslmode := cfg.TenantPostgres.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s",
			cfg.TenantPostgres.Host, cfg.TenantPostgres.Port, cfg.TenantPostgres.User,
			cfg.TenantPostgres.Password, sslmode)
		admin, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open tenant admin connection: %w", err)
		}
		return provision.NewPostgresCreator(admin, cfg.TenantPostgres), nil

	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
			cfg.TenantMySQL.User, cfg.TenantMySQL.Password,
			cfg.TenantMySQL.Host, cfg.TenantMySQL.Port)
		admin, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open tenant admin connection: %w", err)
		}
		return provision.NewMySQLCreator(admin, cfg.TenantMySQL), nil

	default:
		return nil, fmt.Errorf("unsupported tenant driver %q", cfg.TenantDriver)
	}
}
