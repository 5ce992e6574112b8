package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)           // POST (submit), GET (list)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.GetJobHandler) // GET /{jobId}

	// API routes - Logs
	mux.HandleFunc("/api/logs/recent", s.app.LogsHandler.GetRecentLogsHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute routes /api/jobs requests (submit and list)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodPost: s.app.JobHandler.SubmitJobHandler,
		http.MethodGet:  s.app.JobHandler.ListJobsHandler,
	})
}

// ShutdownHandler triggers a graceful shutdown via the shutdown channel.
// Disabled unless a channel has been wired by main.
func (s *Server) ShutdownHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.shutdownChan == nil {
		http.Error(w, "Shutdown endpoint not enabled", http.StatusForbidden)
		return
	}

	s.app.Logger.Warn().Str("remote", r.RemoteAddr).Msg("Shutdown requested via API")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"shutting down"}`))

	// Signal after responding so the client gets an acknowledgement
	go func() {
		select {
		case s.shutdownChan <- struct{}{}:
		default:
		}
	}()
}
