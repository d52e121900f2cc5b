package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// logPollInterval is how often the stream checks for new log lines.
var logPollInterval = 200 * time.Millisecond

// StreamMigrationLogs streams operation log lines over WebSocket and closes
// with the final status once the operation is terminal and drained.
func (s *Server) StreamMigrationLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op := s.Registry.Get(id)
	if op == nil {
		http.Error(w, "migration not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	offset := 0
	ticker := time.NewTicker(logPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			// Read the status before the lines so nothing appended in
			// between is lost.
			status := op.Status()
			lines := op.LogsSince(offset)
			for _, line := range lines {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
					return
				}
				offset++
			}
			if status.IsTerminal() && len(lines) == 0 {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status)))
				return
			}
		}
	}
}
