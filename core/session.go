package core

import "encoding/json"

// Session is a persona's working memory. It survives across wakes
// until explicitly ended; at most one session per persona is active
// at any time, and an ended session is never reactivated.
type Session struct {
	ID            string          `json:"id"`
	PersonaHandle string          `json:"personaHandle"`
	ContextState  json.RawMessage `json:"contextState"`
	Trigger       string          `json:"trigger"`
	TriggerPostID string          `json:"triggerPostId,omitempty"`
	Active        bool            `json:"active"`
	StartedAt     int64           `json:"startedAt"`
	LastActivityAt int64          `json:"lastActivityAt"`
	EndedAt       int64           `json:"endedAt,omitempty"`
}
