package core

import "strings"

// TriggerType says why a persona is being woken.
type TriggerType string

const (
	TriggerMention   TriggerType = "mention"
	TriggerInterest  TriggerType = "interest"
	TriggerScore     TriggerType = "score"
	TriggerDirect    TriggerType = "direct"
	TriggerScheduled TriggerType = "scheduled"
)

// TriggerPost is the post behind a wake, flattened to what the woken
// persona needs to see.
type TriggerPost struct {
	PostID     string     `json:"id"`
	Content    string     `json:"content"`
	AuthorName string     `json:"authorName"`
	AuthorType AuthorType `json:"authorKind"`
	Categories []string   `json:"categories,omitempty"`
	Score      *int       `json:"score,omitempty"`
}

// ThreadEntry is one ancestor in a flattened reply chain.
type ThreadEntry struct {
	Author     string     `json:"author"`
	Content    string     `json:"content"`
	AuthorType AuthorType `json:"authorKind"`
}

/// ThreadContext gives a woken persona the conversation so far: the
// root post plus the ancestor chain, root first, excluding the
// triggering post itself.
type ThreadContext struct {
	RootContent string        `json:"rootContent"`
	RootAuthor  string        `json:"rootAuthor"`
	Chain       []ThreadEntry `json:"chain"`
}

// WakeRequest is the event that starts one agent run.
type WakeRequest struct {
	TriggerType    TriggerType    `json:"triggerType"`
	TriggerPost    *TriggerPost   `json:"triggerPost,omitempty"`
	ThreadContext  *ThreadContext `json:"threadContext,omitempty"`
	OtherPersonas  []string       `json:"otherPersonas,omitempty"`
	MatchReasoning string         `json:"matchReasoning,omitempty"`
}

// ActionRef identifies one tool call a persona made during a wake.
type ActionRef struct {
	Tool string `json:"tool"`
	Path string `json:"path,omitempty"`
}

// WakeResponse reports the outcome of one wake.
type WakeResponse struct {
	Success           bool        `json:"success"`
	Handle            string      `json:"handle"`
	SessionID         string      `json:"sessionId"`
	ActionsCount      int         `json:"actionsCount"`
	Actions           []ActionRef `json:"actions"`
	FinalMessage      string      `json:"finalMessage,omitempty"`
	Error             string      `json:"error,omitempty"`
	MentionsTriggered []string    `json:"mentionsTriggered"`
}

// Responded reports whether the persona actually wrote into the feed
// during the wake. The cascade uses this to exclude participants from
// duplicate wakes later in the same event.
func (r *WakeResponse) Responded() bool {
	for _, a := range r.Actions {
		if a.Tool == "write" && strings.HasPrefix(a.Path, "/posts") {
			return true
		}
	}
	return false
}
