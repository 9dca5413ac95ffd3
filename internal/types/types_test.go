package types

import (
	"encoding/json"
	"testing"
)

func TestValidAppStatus(t *testing.T) {
	valid := []string{AppStopped, AppStarting, AppReady, AppExited, AppFailed}
	for _, status := range valid {
		if !ValidAppStatus(status) {
			t.Errorf("Expected %q to be a valid app status", status)
		}
	}

	for _, status := range []string{"", "unknown", "READY", "crashed"} {
		if ValidAppStatus(status) {
			t.Errorf("Expected %q to be invalid", status)
		}
	}
}

func TestValidBootstrapStatus(t *testing.T) {
	valid := []string{BootstrapPending, BootstrapRunning, BootstrapDone, BootstrapFailed}
	for _, status := range valid {
		if !ValidBootstrapStatus(status) {
			t.Errorf("Expected %q to be a valid bootstrap status", status)
		}
	}

	if ValidBootstrapStatus("finished") {
		t.Error("Expected 'finished' to be invalid")
	}
}

func TestWSMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(WSMessage{Type: "app_status", Status: AppReady})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if decoded["type"] != "app_status" {
		t.Errorf("Expected type 'app_status', got %v", decoded["type"])
	}
	if _, present := decoded["step"]; present {
		t.Error("Expected empty step to be omitted")
	}
	if _, present := decoded["snapshot"]; present {
		t.Error("Expected empty snapshot to be omitted")
	}
}
