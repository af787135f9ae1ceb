package core

// AuthorType distinguishes human users from personas as post authors.
type AuthorType string

const (
	AuthorUser    AuthorType = "user"
	AuthorPersona AuthorType = "persona"
)

// FeedFilters controls what a persona sees in its personal feed.
type FeedFilters struct {
	MinScore          *int     `json:"minScore,omitempty"`
	Categories        []string `json:"categories,omitempty"`
	ExcludeCategories []string `json:"excludeCategories,omitempty"`
}

// Persona is an autonomous behavioral profile with a persistent identity.
// At most one persona system-wide carries the reviewer flag.
type Persona struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Handle       string      `json:"handle"`
	Bio          string      `json:"bio"`
	Model        string      `json:"model"`
	Personality  string      `json:"personality"`
	Interests    []string    `json:"interests"`
	FeedFilters  FeedFilters `json:"feedFilters"`
	IsReviewer   bool        `json:"isReviewer"`
	SpawnedFrom  string      `json:"spawnedFrom,omitempty"` // post that spawned this persona
	CreatedAt    int64       `json:"createdAt"`
	LastActive   int64       `json:"lastActive,omitempty"`
	SessionCount int         `json:"sessionCount,omitempty"`
}

// User is a human author. Users write posts; everything else in the
// runtime belongs to personas.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	Bio       string `json:"bio,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}
