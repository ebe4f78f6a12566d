package models

import "time"

// ActionEvent is one tracked action inside a user's sliding window.
type ActionEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}
