package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/kiro-account-pool/internal/api/handlers"
	"github.com/pysugar/kiro-account-pool/internal/api/middleware"
	"github.com/pysugar/kiro-account-pool/internal/audit"
	"github.com/pysugar/kiro-account-pool/internal/auth"
	"github.com/pysugar/kiro-account-pool/internal/auth/idc"
	"github.com/pysugar/kiro-account-pool/internal/auth/kiro"
	"github.com/pysugar/kiro-account-pool/internal/config"
	"github.com/pysugar/kiro-account-pool/internal/db"
	"github.com/pysugar/kiro-account-pool/internal/pool"
	"github.com/pysugar/kiro-account-pool/internal/refresh"
	"github.com/pysugar/kiro-account-pool/internal/version"
)

func main() {
	configPath := flag.String("config", "pool.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := db.EnsureAdmin(database, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}

	// Pool engine
	store := pool.NewStore(database)
	allocator := pool.NewAllocator(database)
	coordinator := pool.NewCoordinator(database)
	auditor := audit.NewLogger(database)

	// Token providers, routed by account provider class
	providers := auth.NewMux("social")
	providers.Register("social", kiro.NewClient(cfg.Kiro.Endpoint))
	providers.Register("enterprise", idc.NewProvider())

	scheduler := refresh.NewScheduler(database, providers, cfg.Refresh.Threshold)
	scheduler.Start(cfg.Refresh.Interval)
	defer scheduler.Stop()

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", handlers.RegisterHandler(database, cfg.JWTSecret))
		r.Post("/login", handlers.LoginHandler(database, cfg.JWTSecret))
		r.Post("/admin/login", handlers.AdminLoginHandler(database, cfg.JWTSecret))
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(middleware.UserAuth(cfg.JWTSecret))
		r.Get("/me", handlers.MeHandler(database))
		r.Get("/assignments", handlers.MyAssignmentsHandler(coordinator))
		r.Get("/assignments/pending", handlers.PendingAssignmentsHandler(coordinator))
		r.Post("/assignments/{id}/accept", handlers.AcceptAssignmentHandler(coordinator))
		r.Post("/assignments/{id}/reject", handlers.RejectAssignmentHandler(coordinator))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWTSecret))

		r.Get("/users", handlers.ListUsersHandler(database))
		r.Put("/users/{id}/status", handlers.UpdateUserStatusHandler(database, auditor))
		r.Post("/users/{id}/reset-password", handlers.ResetPasswordHandler(database, auditor))
		r.Delete("/users/{id}", handlers.DeleteUserHandler(database, allocator, auditor))

		r.Get("/accounts", handlers.ListAccountsHandler(store))
		r.Post("/accounts", handlers.AddAccountHandler(store, auditor))
		r.Post("/accounts/import", handlers.ImportAccountsHandler(store, auditor))
		r.Put("/accounts/{id}", handlers.UpdateAccountHandler(store, auditor))
		r.Delete("/accounts/{id}", handlers.DeleteAccountHandler(store, auditor))

		r.Post("/assignments", handlers.AssignHandler(allocator, coordinator, auditor))
		r.Get("/assignments", handlers.ListAssignmentsHandler(coordinator))
		r.Delete("/assignments/{id}", handlers.CancelAssignmentHandler(allocator, auditor))
		r.Post("/assignments/batch-cancel", handlers.BatchCancelHandler(allocator, auditor))

		r.Get("/stats", handlers.StatsHandler(database))
		r.Get("/audit-logs", handlers.AuditLogsHandler(auditor))
		r.Post("/refresh", handlers.RefreshHandler(scheduler))
	})

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("🚀 Kiro Account Pool %s starting on http://%s", version.Version, addr)
	log.Printf("📊 Admin API: http://%s/api/admin", addr)
	log.Printf("👤 User API: http://%s/api/user", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
