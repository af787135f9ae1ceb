package core

// ActivityType enumerates the events the runtime records for
// observability. The runtime never reads these back for its own
// decisions.
type ActivityType string

const (
	ActivityPostCreated      ActivityType = "post_created"
	ActivityPostScored       ActivityType = "post_scored"
	ActivityPersonaSpawned   ActivityType = "persona_spawned"
	ActivityPersonaResponded ActivityType = "persona_responded"
	ActivityPersonaUpdated   ActivityType = "persona_updated"
)

// ActivityEntry is one append-only record in the activity log.
type ActivityEntry struct {
	ID            string       `json:"id"`
	Type          ActivityType `json:"type"`
	PersonaHandle string       `json:"personaHandle,omitempty"`
	PostID        string       `json:"postId,omitempty"`
	Details       string       `json:"details,omitempty"`
	CreatedAt     int64        `json:"createdAt"`
}
