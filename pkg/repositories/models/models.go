package models

import "time"

// Match is a finished session.
type Match struct {
	SessionID    string    `json:"session_id"`
	Result       string    `json:"result"`
	Winner       *uint32   `json:"winner,omitempty"`
	Participants uint32    `json:"participants"`
	Turns        uint32    `json:"turns"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	// ActionLog is the zstd compressed JSON list of applied actions
	ActionLog []byte `json:"-"`
}
