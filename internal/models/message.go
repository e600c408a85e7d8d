package models

import "time"

// Role labels who authored a message within a session.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn half stored in a session's history. Messages are
// append-only; their order is turn completion order.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
