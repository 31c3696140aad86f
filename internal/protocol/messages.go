package protocol

import "time"

// State names the controller phases observable from outside.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
)

// Status is broadcast by the controller on every phase change so the tray
// daemon can refresh without waiting for its next poll.
type Status struct {
	State     State     `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Toggle asks the controller to flip state; published by the tray daemon
// when a menu action is forwarded.
type Toggle struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectStatus = "dictation.status"
	SubjectToggle = "dictation.toggle"
)
