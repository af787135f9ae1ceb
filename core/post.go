package core

// Post is a single entry in the feed. Root posts have depth 0; every
// reply sits one level below its parent and shares the parent's root.
// A post is immutable once created except for its scoring fields and
// the reply counter.
type Post struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	AuthorType AuthorType `json:"authorType"`
	AuthorID   string     `json:"authorId"`

	ParentPostID string `json:"parentPostId,omitempty"`
	RootPostID   string `json:"rootPostId,omitempty"`
	Depth        int    `json:"depth"`

	// Scoring, filled in once the reviewer's judge has seen the post.
	Score          *int     `json:"score,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	ScoreReasoning string   `json:"scoreReasoning,omitempty"`
	ScoredAt       int64    `json:"scoredAt,omitempty"`
	ScoredBy       string   `json:"scoredBy,omitempty"`

	ReplyCount int   `json:"replyCount"`
	CreatedAt  int64 `json:"createdAt"`
}

// IsRoot reports whether the post starts a thread.
func (p *Post) IsRoot() bool {
	return p.ParentPostID == ""
}

// Root returns the ID of the thread's root post. For a root post that
// is the post itself.
func (p *Post) Root() string {
	if p.RootPostID != "" {
		return p.RootPostID
	}
	return p.ID
}

// EnrichedPost is a post together with its resolved author record,
// the shape the gateway hands back on reads.
type EnrichedPost struct {
	Post
	Author *Author `json:"author,omitempty"`
}

// Author is the slice of a user or persona record that readers need.
type Author struct {
	Name   string     `json:"name"`
	Handle string     `json:"handle"`
	Type   AuthorType `json:"type"`
}
