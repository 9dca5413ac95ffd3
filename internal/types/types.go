package types

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Bootstrap pipeline phases.
const (
	BootstrapPending = "pending"
	BootstrapRunning = "running"
	BootstrapDone    = "done"
	BootstrapFailed  = "failed"
)

// Application process states.
const (
	AppStopped  = "stopped"
	AppStarting = "starting"
	AppReady    = "ready"
	AppExited   = "exited"
	AppFailed   = "failed"
)

// StepResult is the recorded outcome of one bootstrap step.
type StepResult struct {
	Name       string    `json:"name"`
	Command    string    `json:"command"`
	Status     string    `json:"status"` // "ok" or "failed"
	ExitCode   int       `json:"exitCode"`
	Output     string    `json:"output,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Snapshot is the full observable state of the shell, as returned by the
// status endpoint and pushed to new websocket clients.
type Snapshot struct {
	BootstrapStatus string       `json:"bootstrapStatus"`
	BootstrapError  string       `json:"bootstrapError,omitempty"`
	Steps           []StepResult `json:"steps"`
	AppStatus       string       `json:"appStatus"`
	AppPID          int          `json:"appPid,omitempty"`
	AppExitCode     int          `json:"appExitCode"`
	AppPort         int          `json:"appPort"`
	Stale           bool         `json:"stale"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Response represents an API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WSMessage represents a WebSocket message pushed to dashboard clients
type WSMessage struct {
	Type     string      `json:"type"`
	Step     *StepResult `json:"step,omitempty"`
	Status   string      `json:"status,omitempty"`
	Message  string      `json:"message,omitempty"`
	Snapshot *Snapshot   `json:"snapshot,omitempty"`
}

// WSClientMessage represents a message received from a WebSocket client
type WSClientMessage struct {
	Action string `json:"action"`
}

// WSClient represents a connected WebSocket client with its write lock
type WSClient struct {
	Conn *websocket.Conn
	Mu   sync.Mutex
}

// ValidAppStatus reports whether s is a known application state.
func ValidAppStatus(s string) bool {
	switch s {
	case AppStopped, AppStarting, AppReady, AppExited, AppFailed:
		return true
	}
	return false
}

// ValidBootstrapStatus reports whether s is a known pipeline phase.
func ValidBootstrapStatus(s string) bool {
	switch s {
	case BootstrapPending, BootstrapRunning, BootstrapDone, BootstrapFailed:
		return true
	}
	return false
}
