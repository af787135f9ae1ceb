package core

// FragmentType tags what kind of memory a fragment holds.
type FragmentType string

const (
	FragmentConversation FragmentType = "conversation"
	FragmentDecision     FragmentType = "decision"
	FragmentInsight      FragmentType = "insight"
	FragmentQuestion     FragmentType = "question"
)

// ValidFragmentType reports whether t is one of the known kinds.
func ValidFragmentType(t FragmentType) bool {
	switch t {
	case FragmentConversation, FragmentDecision, FragmentInsight, FragmentQuestion:
		return true
	}
	return false
}

// Fragment is a longer-lived, importance-weighted unit of persona
// memory, distinct from session state. Importance decays over time
// and low-importance fragments are cleaned up first once a persona
// exceeds its fragment budget.
type Fragment struct {
	ID             string       `json:"id"`
	PersonaHandle  string       `json:"personaHandle"`
	Content        string       `json:"content"`
	FragmentType   FragmentType `json:"fragmentType"`
	Importance     float64      `json:"importance"` // 0..1
	RelatedPostIDs []string     `json:"relatedPostIds,omitempty"`
	RelatedHandles []string     `json:"relatedPersonaHandles,omitempty"`
	AccessCount    int          `json:"accessCount"`
	LastAccessedAt int64        `json:"lastAccessedAt,omitempty"`
	CreatedAt      int64        `json:"createdAt"`
}
