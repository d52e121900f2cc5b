package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/rflorenc/pds-migration-workbench/internal/migration"
	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

// ClientFactory builds a platform client for a configured connection.
type ClientFactory func(conn *models.Connection) platform.Client

// DefaultClientFactory talks XRPC over HTTP.
func DefaultClientFactory(conn *models.Connection) platform.Client {
	return platform.NewClient(conn)
}

// Server holds shared state for all API handlers.
type Server struct {
	Connections  *models.ConnectionStore
	Registry     *models.OperationRegistry
	Records      *models.RecordStore
	Orchestrator *migration.Orchestrator
	NewClient    ClientFactory
	Logger       hclog.Logger

	runs sync.WaitGroup
}

// Wait blocks until every migration started through the API has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

func (s *Server) logger() hclog.Logger {
	if s.Logger == nil {
		return hclog.NewNullLogger()
	}
	return s.Logger
}

func (s *Server) client(conn *models.Connection) platform.Client {
	if s.NewClient == nil {
		return DefaultClientFactory(conn)
	}
	return s.NewClient(conn)
}

// NewRouter builds the chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Servers
		r.Post("/servers", s.CreateConnection)
		r.Get("/servers", s.ListConnections)
		r.Delete("/servers/{id}", s.DeleteConnection)
		r.Post("/servers/{id}/test", s.TestConnection)

		// Migrations
		r.Post("/migrations/check", s.CheckMigration)
		r.Post("/migrations", s.StartMigration)
		r.Get("/migrations", s.ListMigrations)
		r.Get("/migrations/{id}", s.GetMigration)
		r.Post("/migrations/{id}/cancel", s.CancelMigration)
		r.Post("/migrations/{id}/stop", s.StopMigration)

		// History
		r.Get("/history", s.ListHistory)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/migrations/{id}/logs", s.StreamMigrationLogs)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
