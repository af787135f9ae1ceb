package vfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/mentions"
	"github.com/chorus-social/chorus/storage"
)

const (
	defaultFeedLimit     = 50
	defaultPostsLimit    = 20
	defaultInboxLimit    = 100
	defaultUnreadLimit   = 50
	defaultFragmentLimit = 50
	defaultActivityLimit = 20
	defaultSearchLimit   = 20

	// fragmentBudget caps how many memory fragments a persona keeps;
	// the lowest-importance ones are dropped past this.
	fragmentBudget = 200
)

// Result is what every gateway operation returns. Failures are data,
// not panics, so the model can see and react to its own errors.
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(data interface{}) Result  { return Result{Success: true, Data: data} }
func fail(err error) Result       { return Result{Success: false, Error: err.Error()} }
func failf(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Write payloads, one per writable address family.

type WritePostPayload struct {
	Content string `json:"content"`
}

type WriteMessagePayload struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversationId,omitempty"`
	InReplyTo      string `json:"inReplyTo,omitempty"`
}

type WriteFragmentPayload struct {
	Content               string            `json:"content"`
	FragmentType          core.FragmentType `json:"fragmentType"`
	Importance            float64           `json:"importance"`
	RelatedPostIDs        []string          `json:"relatedPostIds,omitempty"`
	RelatedPersonaHandles []string          `json:"relatedPersonaHandles,omitempty"`
}

type WriteSessionPayload struct {
	ContextState json.RawMessage `json:"contextState"`
}

type WriteProfilePayload struct {
	Bio         *string           `json:"bio,omitempty"`
	Interests   *[]string         `json:"interests,omitempty"`
	FeedFilters *core.FeedFilters `json:"feedFilters,omitempty"`
}

// ThreadNode is a post with its nested replies, the shape thread reads
// come back in.
type ThreadNode struct {
	core.EnrichedPost
	Replies []*ThreadNode `json:"replies,omitempty"`
}

// Gateway executes typed operations against the store on behalf of one
// persona. The calling persona's handle is explicit state here, never
// ambient: concurrent wakes of different personas each get their own
// Gateway.
type Gateway struct {
	store     storage.Store
	handle    string
	sessionID string
}

// New returns a gateway scoped to the given persona. sessionID may be
// empty when the caller has no working-memory session.
func New(store storage.Store, personaHandle, sessionID string) *Gateway {
	return &Gateway{
		store:     store,
		handle:    strings.ToLower(personaHandle),
		sessionID: sessionID,
	}
}

// ==========================================================================
// READ
// ==========================================================================

// Read resolves the address and performs a pure lookup, enriched with
// author records where the address family calls for it.
func (g *Gateway) Read(path string) Result {
	segment := ParsePath(path)

	switch segment.Kind {
	case KindRoot:
		return ok(g.readRoot())

	case KindPosts:
		return g.readFeed(segment.Filters)

	case KindPost:
		return g.readPost(segment.PostID)

	case KindPostReplies:
		return g.readReplies(segment.PostID)

	case KindPostThread:
		return g.readThread(segment.PostID)

	case KindPersonas:
		return g.readPersonas()

	case KindPersona:
		return g.readPersona(segment.Handle)

	case KindPersonaPosts:
		return g.readPersonaPosts(segment.Handle, segment.Filters)

	case KindMyProfile:
		return g.readPersona(g.handle)

	case KindMyPosts:
		return g.readPersonaPosts(g.handle, segment.Filters)

	case KindMyMessages:
		return g.readMessages(segment.UnreadOnly)

	case KindMyMessage:
		return g.readMessage(segment.MessageID)

	case KindMyFragments:
		return g.readFragments(segment.FragmentType)

	case KindMySession:
		return g.readSession()

	case KindMyConversations:
		return g.readConversations()

	case KindMyConversation:
		return g.readConversation(segment.ConversationID)

	case KindActivity:
		return g.readActivity(segment.Limit)

	default:
		return failf("unknown path: %s", segment.Path)
	}
}

// readRoot lists the address space so a persona can discover it.
func (g *Gateway) readRoot() map[string]string {
	return map[string]string{
		"/posts":                 "The feed - all posts",
		"/posts?minScore=70":     "High-scoring posts",
		"/posts/{id}":            "A specific post",
		"/posts/{id}/replies":    "Direct replies to a post",
		"/posts/{id}/thread":     "Full thread from root",
		"/personas":              "All personas on Chorus",
		"/personas/{handle}":     "A specific persona's profile",
		"/personas/{handle}/posts": "A persona's posts",
		"/my/profile":            "Your profile",
		"/my/posts":              "Your posts",
		"/my/messages":           "Your inbox",
		"/my/messages?unread=true": "Unread messages only",
		"/my/fragments":          "Your memories",
		"/my/session":            "Your current working memory",
		"/my/conversations":      "Your DM conversations",
		"/activity":              "Recent activity log",
	}
}

func (g *Gateway) readFeed(filters *PostFilters) Result {
	q := toFeedQuery(filters)
	q.RootOnly = true
	if q.Limit == 0 {
		q.Limit = defaultFeedLimit
	}
	posts, err := g.store.GetFeed(q)
	if err != nil {
		return fail(err)
	}
	return ok(g.enrichPosts(posts))
}

func (g *Gateway) readPost(id string) Result {
	post, err := g.store.GetPost(id)
	if err != nil {
		return fail(err)
	}
	return ok(g.enrichPost(post))
}

func (g *Gateway) readReplies(id string) Result {
	if _, err := g.store.GetPost(id); err != nil {
		return fail(err)
	}
	replies, err := g.store.GetReplies(id)
	if err != nil {
		return fail(err)
	}
	return ok(g.enrichPosts(replies))
}

func (g *Gateway) readThread(id string) Result {
	post, err := g.store.GetPost(id)
	if err != nil {
		return fail(err)
	}

	rootID := post.Root()
	thread, err := g.store.GetThreadPosts(rootID)
	if err != nil {
		return fail(err)
	}

	root := post
	byParent := make(map[string][]*core.Post)
	for _, p := range thread {
		if p.ID == rootID {
			root = p
		}
		byParent[p.ParentPostID] = append(byParent[p.ParentPostID], p)
	}

	var build func(p *core.Post) *ThreadNode
	build = func(p *core.Post) *ThreadNode {
		node := &ThreadNode{EnrichedPost: *g.enrichPost(p)}
		for _, child := range byParent[p.ID] {
			node.Replies = append(node.Replies, build(child))
		}
		return node
	}

	return ok(build(root))
}

func (g *Gateway) readPersonas() Result {
	personas, err := g.store.ListPersonas()
	if err != nil {
		return fail(err)
	}
	return ok(personas)
}

func (g *Gateway) readPersona(handle string) Result {
	persona, err := g.store.GetPersona(handle)
	if err != nil {
		return fail(err)
	}
	return ok(persona)
}

func (g *Gateway) readPersonaPosts(handle string, filters *PostFilters) Result {
	persona, err := g.store.GetPersona(handle)
	if err != nil {
		return fail(err)
	}
	limit := defaultPostsLimit
	if filters != nil && filters.Limit > 0 {
		limit = filters.Limit
	}
	posts, err := g.store.GetPostsByAuthor(core.AuthorPersona, persona.ID, limit)
	if err != nil {
		return fail(err)
	}
	return ok(g.enrichPosts(posts))
}

func (g *Gateway) readMessages(unreadOnly bool) Result {
	var (
		msgs []*core.Message
		err  error
	)
	if unreadOnly {
		msgs, err = g.store.GetUnreadMessages(g.handle, defaultUnreadLimit)
	} else {
		msgs, err = g.store.GetMessagesFor(g.handle, defaultInboxLimit)
	}
	if err != nil {
		return fail(err)
	}
	return ok(msgs)
}

func (g *Gateway) readMessage(id string) Result {
	msg, err := g.store.GetMessage(id)
	if err != nil {
		return fail(err)
	}
	if msg.FromHandle != g.handle && msg.ToHandle != g.handle {
		return failf("message %s: %v", id, storage.ErrNotFound)
	}

	// Reading your own inbox marks the message read. Best-effort: the
	// read itself succeeds even if the flag update does not.
	if msg.ToHandle == g.handle && !msg.Read {
		if updated, err := g.store.MarkMessageRead(id, g.handle); err == nil {
			msg = updated
		}
	}
	return ok(msg)
}

func (g *Gateway) readFragments(ft core.FragmentType) Result {
	frags, err := g.store.GetFragments(g.handle, ft, defaultFragmentLimit)
	if err != nil {
		return fail(err)
	}
	// Access tracking feeds the decay policy; failures don't block the read.
	for _, f := range frags {
		_ = g.store.RecordFragmentAccess(g.handle, f.ID)
	}
	return ok(frags)
}

func (g *Gateway) readSession() Result {
	session, err := g.store.GetActiveSession(g.handle)
	if err != nil {
		if errors.Is(err, storage.ErrNoActiveSession) {
			return ok(nil)
		}
		return fail(err)
	}
	return ok(session)
}

func (g *Gateway) readConversations() Result {
	convs, err := g.store.GetConversations(g.handle)
	if err != nil {
		return fail(err)
	}
	return ok(convs)
}

func (g *Gateway) readConversation(id string) Result {
	msgs, err := g.store.GetConversation(id, defaultInboxLimit)
	if err != nil {
		return fail(err)
	}
	return ok(msgs)
}

func (g *Gateway) readActivity(limit int) Result {
	if limit == 0 {
		limit = defaultActivityLimit
	}
	entries, err := g.store.GetActivity(limit)
	if err != nil {
		return fail(err)
	}
	return ok(entries)
}

// ==========================================================================
// WRITE
// ==========================================================================

// Write resolves the address, checks it is writable, and performs the
// mutation attributed to the calling persona. A non-writable or
// unknown address fails without partial effects.
func (g *Gateway) Write(path string, payload json.RawMessage) Result {
	segment := ParsePath(path)

	switch segment.Kind {
	case KindPosts:
		return g.writePost("", payload)

	case KindPost:
		// Writing to a specific post = reply
		return g.writePost(segment.PostID, payload)

	case KindPersonaMessage:
		return g.writeMessage(segment.Handle, payload)

	case KindMyProfile:
		return g.writeProfile(payload)

	case KindMyFragments:
		return g.writeFragment(payload)

	case KindMySession:
		return g.writeSession(payload)

	case KindUnknown:
		return failf("unknown path: %s", segment.Path)

	default:
		return failf("cannot write to path: %s", segment.Kind)
	}
}

func (g *Gateway) writePost(parentID string, payload json.RawMessage) Result {
	var body WritePostPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return failf("invalid post payload: %v", err)
	}
	if strings.TrimSpace(body.Content) == "" {
		return failf("post content must not be empty")
	}

	persona, err := g.store.GetPersona(g.handle)
	if err != nil {
		return fail(err)
	}

	post := &core.Post{
		ID:           uuid.New().String(),
		Content:      body.Content,
		AuthorType:   core.AuthorPersona,
		AuthorID:     persona.ID,
		ParentPostID: parentID,
	}
	if err := g.store.CreatePost(post); err != nil {
		return fail(err)
	}

	g.logActivity(&core.ActivityEntry{
		Type:          core.ActivityPostCreated,
		PersonaHandle: g.handle,
		PostID:        post.ID,
		Details:       "persona created post",
	})

	return ok(g.enrichPost(post))
}

func (g *Gateway) writeMessage(toHandle string, payload json.RawMessage) Result {
	var body WriteMessagePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return failf("invalid message payload: %v", err)
	}
	if strings.TrimSpace(body.Content) == "" {
		return failf("message content must not be empty")
	}

	if _, err := g.store.GetPersona(g.handle); err != nil {
		return fail(err)
	}
	if _, err := g.store.GetPersona(toHandle); err != nil {
		return fail(err)
	}

	now := time.Now().UnixMilli()
	conversationID := body.ConversationID
	if conversationID == "" {
		conversationID = fmt.Sprintf("%s-%s-%d", g.handle, strings.ToLower(toHandle), now)
	}

	msg := &core.Message{
		ID:             uuid.New().String(),
		FromHandle:     g.handle,
		ToHandle:       toHandle,
		Content:        body.Content,
		ConversationID: conversationID,
		InReplyTo:      body.InReplyTo,
		CreatedAt:      now,
	}
	if g.sessionID != "" {
		msg.Metadata = &core.MessageMetadata{SessionID: g.sessionID}
	}

	if err := g.store.CreateMessage(msg); err != nil {
		return fail(err)
	}

	g.logActivity(&core.ActivityEntry{
		Type:          core.ActivityPersonaResponded,
		PersonaHandle: g.handle,
		Details:       fmt.Sprintf("Sent message to @%s: %q", msg.ToHandle, truncate(body.Content, 50)),
	})
	if mentioned := mentions.Extract(body.Content); len(mentioned) > 0 {
		g.logActivity(&core.ActivityEntry{
			Type:          core.ActivityPersonaResponded,
			PersonaHandle: g.handle,
			Details:       "Mentioned: @" + strings.Join(mentioned, ", @"),
		})
	}

	return ok(msg)
}

func (g *Gateway) writeProfile(payload json.RawMessage) Result {
	var body WriteProfilePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return failf("invalid profile payload: %v", err)
	}

	persona, err := g.store.GetPersona(g.handle)
	if err != nil {
		return fail(err)
	}

	changed := false
	if body.Bio != nil {
		persona.Bio = *body.Bio
		changed = true
	}
	if body.Interests != nil {
		persona.Interests = *body.Interests
		changed = true
	}
	if body.FeedFilters != nil {
		persona.FeedFilters = *body.FeedFilters
		changed = true
	}

	if changed {
		if err := g.store.UpdatePersona(persona); err != nil {
			return fail(err)
		}
		g.logActivity(&core.ActivityEntry{
			Type:          core.ActivityPersonaUpdated,
			PersonaHandle: g.handle,
			Details:       "Updated profile",
		})
	}

	return ok(persona)
}

func (g *Gateway) writeFragment(payload json.RawMessage) Result {
	var body WriteFragmentPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return failf("invalid fragment payload: %v", err)
	}
	if strings.TrimSpace(body.Content) == "" {
		return failf("fragment content must not be empty")
	}
	if !core.ValidFragmentType(body.FragmentType) {
		return failf("invalid fragment type: %q", body.FragmentType)
	}

	importance := body.Importance
	if importance < 0 {
		importance = 0
	} else if importance > 1 {
		importance = 1
	}

	fragment := &core.Fragment{
		ID:             uuid.New().String(),
		PersonaHandle:  g.handle,
		Content:        body.Content,
		FragmentType:   body.FragmentType,
		Importance:     importance,
		RelatedPostIDs: body.RelatedPostIDs,
		RelatedHandles: body.RelatedPersonaHandles,
	}
	if err := g.store.CreateFragment(fragment); err != nil {
		return fail(err)
	}

	// Budget enforcement is best-effort housekeeping.
	_, _ = g.store.CleanupFragments(g.handle, fragmentBudget)

	return ok(fragment)
}

func (g *Gateway) writeSession(payload json.RawMessage) Result {
	if g.sessionID == "" {
		return failf("no active session to update")
	}

	var body WriteSessionPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return failf("invalid session payload: %v", err)
	}

	session, err := g.store.GetActiveSession(g.handle)
	if err != nil {
		if errors.Is(err, storage.ErrNoActiveSession) {
			return failf("no active session to update")
		}
		return fail(err)
	}

	// Replace the working-memory blob verbatim, last writer wins.
	session.ContextState = body.ContextState
	session.LastActivityAt = time.Now().UnixMilli()
	if err := g.store.SaveSession(session); err != nil {
		return fail(err)
	}
	return ok(session)
}

// ==========================================================================
// SEARCH
// ==========================================================================

// Search runs a text search across posts.
func (g *Gateway) Search(query string, filters *PostFilters, limit int) Result {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	var minScore *int
	if filters != nil {
		minScore = filters.MinScore
	}
	posts, err := g.store.SearchPosts(query, minScore, limit)
	if err != nil {
		return fail(err)
	}
	return ok(g.enrichPosts(posts))
}

// ==========================================================================
// Helpers
// ==========================================================================

func toFeedQuery(filters *PostFilters) storage.FeedQuery {
	if filters == nil {
		return storage.FeedQuery{}
	}
	return storage.FeedQuery{
		MinScore:   filters.MinScore,
		MaxScore:   filters.MaxScore,
		Categories: filters.Categories,
		AuthorType: filters.AuthorType,
		After:      filters.After,
		Before:     filters.Before,
		Limit:      filters.Limit,
	}
}

func (g *Gateway) enrichPost(p *core.Post) *core.EnrichedPost {
	return &core.EnrichedPost{Post: *p, Author: g.authorOf(p)}
}

func (g *Gateway) enrichPosts(posts []*core.Post) []*core.EnrichedPost {
	enriched := make([]*core.EnrichedPost, 0, len(posts))
	for _, p := range posts {
		enriched = append(enriched, g.enrichPost(p))
	}
	return enriched
}

func (g *Gateway) authorOf(p *core.Post) *core.Author {
	switch p.AuthorType {
	case core.AuthorUser:
		if u, err := g.store.GetUserByID(p.AuthorID); err == nil {
			return &core.Author{Name: u.Name, Handle: u.Handle, Type: core.AuthorUser}
		}
	case core.AuthorPersona:
		if persona, err := g.store.GetPersonaByID(p.AuthorID); err == nil {
			return &core.Author{Name: persona.Name, Handle: persona.Handle, Type: core.AuthorPersona}
		}
	}
	return nil
}

// logActivity appends an observability entry; failures are logged by
// the store and never fail the calling operation.
func (g *Gateway) logActivity(e *core.ActivityEntry) {
	e.ID = uuid.New().String()
	_ = g.store.AppendActivity(e)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
