package models

import "testing"

func TestDetectionStatus_Constants(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expected string
	}{
		{"pending", DetectionStatusPending, "pending"},
		{"accepted", DetectionStatusAccepted, "accepted"},
		{"rejected", DetectionStatusRejected, "rejected"},
		{"merged", DetectionStatusMerged, "merged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.status != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.status)
			}
		})
	}
}

func TestDetection_Terminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{DetectionStatusPending, false},
		{DetectionStatusAccepted, true},
		{DetectionStatusRejected, true},
		{DetectionStatusMerged, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			d := Detection{Status: tt.status}
			if got := d.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() with status %s = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}
