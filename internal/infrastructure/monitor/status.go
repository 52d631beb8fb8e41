package monitor

import "time"

// ComponentStatus is the last probe result for one dependency.
type ComponentStatus struct {
	Healthy  bool   `json:"healthy"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
}

type Status struct {
	Online     bool                       `json:"online"`
	Components map[string]ComponentStatus `json:"components"`
	OutboxSize int                        `json:"outbox_size"`
	LastCheck  time.Time                  `json:"last_check"`
}
