package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"ipr-host/internal/state"
	"ipr-host/internal/types"
)

// Handler exposes the shell's operational API. restart re-runs the
// bootstrap pipeline and relaunches the application; it is injected so the
// package stays free of process-management imports.
type Handler struct {
	restart func()
}

// NewHandler builds the API handler.
func NewHandler(restart func()) *Handler {
	return &Handler{restart: restart}
}

// sendError sends an error response
func sendError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.Response{
		Success: false,
		Message: message,
	})
}

// sendSuccess sends a success response
func sendSuccess(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.Response{
		Success: true,
		Message: message,
	})
}

// Status returns the full shell state snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	snapshot := state.GetSnapshot()
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		logrus.WithError(err).Error("Failed to encode status snapshot")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Health is a liveness endpoint for the shell itself, independent of the
// application state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sendSuccess(w, "ok")
}

// Restart re-runs the bootstrap pipeline and relaunches the application.
// A pipeline already in flight is not interrupted.
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if status, _ := state.GetBootstrapStatus(); status == types.BootstrapRunning {
		sendError(w, "Bootstrap already running", http.StatusConflict)
		return
	}

	logrus.Info("Restart requested")
	h.restart()
	sendSuccess(w, "Restart initiated")
}
