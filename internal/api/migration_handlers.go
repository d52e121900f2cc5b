package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/pds-migration-workbench/internal/migration"
	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

type migrationRequest struct {
	SourceID      string                  `json:"source_id"`
	DestinationID string                  `json:"destination_id"`
	Options       models.MigrationOptions `json:"options"`
}

// decodeMigrationRequest reads the request body and resolves both
// connections. Options absent from the body keep their defaults. It writes
// the error response itself and returns ok=false on failure.
func (s *Server) decodeMigrationRequest(w http.ResponseWriter, r *http.Request) (src, dst platform.Client, opts models.MigrationOptions, ok bool) {
	req := migrationRequest{Options: models.DefaultOptions()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return nil, nil, opts, false
	}
	if err := req.Options.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid options: "+err.Error())
		return nil, nil, opts, false
	}
	srcConn := s.Connections.Lookup(req.SourceID)
	if srcConn == nil {
		writeError(w, http.StatusNotFound, "source connection not found")
		return nil, nil, opts, false
	}
	dstConn := s.Connections.Lookup(req.DestinationID)
	if dstConn == nil {
		writeError(w, http.StatusNotFound, "destination connection not found")
		return nil, nil, opts, false
	}
	if srcConn.ID == dstConn.ID {
		writeError(w, http.StatusBadRequest, "source and destination must differ")
		return nil, nil, opts, false
	}
	return s.client(srcConn), s.client(dstConn), req.Options, true
}

// CheckMigration runs the preflight checks without starting a migration.
func (s *Server) CheckMigration(w http.ResponseWriter, r *http.Request) {
	src, dst, opts, ok := s.decodeMigrationRequest(w, r)
	if !ok {
		return
	}
	pf, err := s.Orchestrator.Check(r.Context(), src, dst, opts, nil)
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// StartMigration prepares an operation and runs it in the background.
func (s *Server) StartMigration(w http.ResponseWriter, r *http.Request) {
	src, dst, opts, ok := s.decodeMigrationRequest(w, r)
	if !ok {
		return
	}

	op, err := s.Orchestrator.Prepare(r.Context(), src, dst, opts)
	if err != nil {
		writeMigrationError(w, err)
		return
	}

	// Claim the account before anything runs. When the session cannot be
	// resolved the claim falls back to the source host; the run itself will
	// then fail during preparation.
	account := "host:" + src.Host()
	if did, err := src.Identity(r.Context()); err == nil {
		account = did
	}
	if err := s.Registry.Register(account, op); err != nil {
		writeMigrationError(w, err)
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer s.Registry.Release(account, op.ID)

		if err := s.Orchestrator.Run(context.Background(), op, src, dst); err != nil {
			s.logger().Warn("migration did not complete", "operation", op.ID, "error", err)
		}
		s.Records.Add(models.RecordFromOperation(op))
		if err := s.Records.Save(); err != nil {
			s.logger().Error("could not save migration history", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"operation_id": op.ID})
}

func (s *Server) ListMigrations(w http.ResponseWriter, r *http.Request) {
	ops := s.Registry.List()
	out := make([]models.OperationSnapshot, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetMigration(w http.ResponseWriter, r *http.Request) {
	op := s.Registry.Get(chi.URLParam(r, "id"))
	if op == nil {
		writeError(w, http.StatusNotFound, "migration not found")
		return
	}
	writeJSON(w, http.StatusOK, op.Snapshot())
}

// CancelMigration cancels a running migration at the operator's request.
func (s *Server) CancelMigration(w http.ResponseWriter, r *http.Request) {
	op := s.Registry.Get(chi.URLParam(r, "id"))
	if op == nil {
		writeError(w, http.StatusNotFound, "migration not found")
		return
	}
	if !op.Cancel() {
		writeError(w, http.StatusConflict, "migration is not running")
		return
	}
	op.AppendLog("CANCELLED: migration stopped by user")
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusCancelled)})
}

// StopMigration performs an emergency stop: in-flight calls are aborted, the
// operation fails and its export artifact is discarded.
func (s *Server) StopMigration(w http.ResponseWriter, r *http.Request) {
	op := s.Registry.Get(chi.URLParam(r, "id"))
	if op == nil {
		writeError(w, http.StatusNotFound, "migration not found")
		return
	}
	if !s.Orchestrator.Stopper().EmergencyStop(op, migration.ReasonOperator) {
		writeError(w, http.StatusConflict, "migration is not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusFailed)})
}

func (s *Server) ListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Records.List())
}
