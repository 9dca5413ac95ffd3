package state

import (
	"sync"
	"time"

	"ipr-host/internal/types"
)

// shellState holds the global shell state
type shellState struct {
	bootstrapStatus string
	bootstrapError  string
	steps           []types.StepResult
	appStatus       string
	appPID          int
	appExitCode     int
	appPort         int
	stale           bool
	updatedAt       time.Time
	mutex           sync.RWMutex
}

var globalState = &shellState{
	bootstrapStatus: types.BootstrapPending,
	appStatus:       types.AppStopped,
	appExitCode:     -1,
	updatedAt:       time.Now(),
}

// Reset clears all state back to startup values. Used by the restart
// endpoint and by tests.
func Reset(appPort int) {
	globalState.mutex.Lock()
	defer globalState.mutex.Unlock()
	globalState.bootstrapStatus = types.BootstrapPending
	globalState.bootstrapError = ""
	globalState.steps = nil
	globalState.appStatus = types.AppStopped
	globalState.appPID = 0
	globalState.appExitCode = -1
	globalState.appPort = appPort
	globalState.stale = false
	globalState.updatedAt = time.Now()
}

// SetBootstrapStatus updates the pipeline phase, with errMsg set on failure.
func SetBootstrapStatus(status, errMsg string) {
	globalState.mutex.Lock()
	defer globalState.mutex.Unlock()
	globalState.bootstrapStatus = status
	globalState.bootstrapError = errMsg
	globalState.updatedAt = time.Now()
}

// GetBootstrapStatus returns the current pipeline phase and error message.
func GetBootstrapStatus() (string, string) {
	globalState.mutex.RLock()
	defer globalState.mutex.RUnlock()
	return globalState.bootstrapStatus, globalState.bootstrapError
}

// AddStepResult appends the outcome of a finished bootstrap step.
func AddStepResult(result types.StepResult) {
	globalState.mutex.Lock()
	defer globalState.mutex.Unlock()
	globalState.steps = append(globalState.steps, result)
	globalState.updatedAt = time.Now()
}

// SetAppStatus updates the application process state.
func SetAppStatus(status string) {
	globalState.mutex.Lock()
	defer globalState.mutex.Unlock()
	globalState.appStatus = status
	globalState.updatedAt = time.Now()
}

// GetAppStatus returns the application process state.
func GetAppStatus() string {
	globalState.mutex.RLock()
	defer globalState.mutex.RUnlock()
	return globalState.appStatus
}

// SetAppPID records the PID of the launched application process.
func SetAppPID(pid int) {
	globalState.mutex.Lock()
	defer globalState.mutex.Unlock()
	globalState.appPID = pid
	globalState.updatedAt = time.Now()
}

// SetAppExit records the application exit code and final status.
func SetAppExit(code int, status string) {
	globalState.mutex.Lock()
	defer globalState.mutex.Unlock()
	globalState.appExitCode = code
	globalState.appStatus = status
	globalState.updatedAt = time.Now()
}

// SetStale flags that a watched input (requirements, config) changed after
// launch, so the running install no longer matches disk.
func SetStale(stale bool) {
	globalState.mutex.Lock()
	defer globalState.mutex.Unlock()
	globalState.stale = stale
	globalState.updatedAt = time.Now()
}

// IsStale reports whether watched inputs changed since launch.
func IsStale() bool {
	globalState.mutex.RLock()
	defer globalState.mutex.RUnlock()
	return globalState.stale
}

// GetSnapshot returns a copy of the full shell state.
func GetSnapshot() types.Snapshot {
	globalState.mutex.RLock()
	defer globalState.mutex.RUnlock()

	steps := make([]types.StepResult, len(globalState.steps))
	copy(steps, globalState.steps)

	return types.Snapshot{
		BootstrapStatus: globalState.bootstrapStatus,
		BootstrapError:  globalState.bootstrapError,
		Steps:           steps,
		AppStatus:       globalState.appStatus,
		AppPID:          globalState.appPID,
		AppExitCode:     globalState.appExitCode,
		AppPort:         globalState.appPort,
		Stale:           globalState.stale,
		UpdatedAt:       globalState.updatedAt,
	}
}
