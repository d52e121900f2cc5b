package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

func (s *Server) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if conn.Host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	if conn.Role != "" && conn.Role != "source" && conn.Role != "destination" {
		writeError(w, http.StatusBadRequest, "role must be source or destination")
		return
	}
	if conn.Scheme == "" {
		conn.Scheme = "https"
	}
	if conn.Port == 0 {
		if conn.Scheme == "https" {
			conn.Port = 443
		} else {
			conn.Port = 80
		}
	}
	if conn.Name == "" {
		conn.Name = conn.Host
	}
	s.Connections.Create(&conn)
	writeJSON(w, http.StatusCreated, conn.Public())
}

func (s *Server) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.Connections.List()
	out := make([]models.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Public())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Connections.Delete(id) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestConnection fetches the server descriptor and resolves the session's
// account.
func (s *Server) TestConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conn := s.Connections.Get(id)
	if conn == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	client := s.client(conn)
	desc, err := client.DescribeServer(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	result := map[string]interface{}{
		"ok":           true,
		"version":      desc.Version,
		"capabilities": desc.Capabilities,
	}
	if did, err := client.Identity(r.Context()); err != nil {
		result["ok"] = false
		result["error"] = err.Error()
	} else {
		result["did"] = did
	}
	writeJSON(w, http.StatusOK, result)
}
