package agent

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"

	"github.com/chorus-social/chorus/ai"
	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/mentions"
	"github.com/chorus-social/chorus/registry"
	"github.com/chorus-social/chorus/storage"
	"github.com/chorus-social/chorus/vfs"
)

// AsyncWaker delivers fire-and-forget wake requests. Wakes issued
// through it are at-most-once; the caller never observes their
// outcome.
type AsyncWaker interface {
	WakeAsync(handle string, req *core.WakeRequest)
}

// Service orchestrates one wake end to end: load the persona, restore
// its session, run the tool loop, then fan out mention re-wakes from
// whatever the persona wrote.
type Service struct {
	store      storage.Store
	sessions   *SessionManager
	runner     *Runner
	asyncWaker AsyncWaker
}

func NewService(store storage.Store, completer ai.Completer) *Service {
	return &Service{
		store:    store,
		sessions: NewSessionManager(store),
		runner:   NewRunner(completer),
	}
}

// SetAsyncWaker wires the fan-out transport. Set after construction
// because the transport itself needs the service to deliver wakes.
func (s *Service) SetAsyncWaker(w AsyncWaker) {
	s.asyncWaker = w
}

// Sessions exposes the session manager for callers that end sessions
// explicitly.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Wake runs one persona through the agent loop. The returned error is
// non-nil only when the persona itself cannot be woken (not found,
// session failure); loop-level failures come back inside the response.
func (s *Service) Wake(ctx context.Context, handle string, req *core.WakeRequest) (*core.WakeResponse, error) {
	handle = strings.ToLower(handle)

	persona, err := s.store.GetPersona(handle)
	if err != nil {
		return nil, err
	}

	registry.BeginWake(handle, string(req.TriggerType))
	defer registry.EndWake(handle)

	triggerPostID := ""
	if req.TriggerPost != nil {
		triggerPostID = req.TriggerPost.PostID
	}
	session, err := s.sessions.RestoreOrCreate(persona, req.TriggerType, triggerPostID)
	if err != nil {
		return nil, err
	}

	gateway := vfs.New(s.store, persona.Handle, session.ID)
	result := s.runner.Run(ctx, ProfileFor(persona), req, gateway)

	mentioned := s.mentionsFromWrites(handle, result.Actions)
	s.fanOutMentionWakes(persona, mentioned)

	resp := &core.WakeResponse{
		Success:           result.Success,
		Handle:            handle,
		SessionID:         session.ID,
		ActionsCount:      len(result.Actions),
		Actions:           make([]core.ActionRef, 0, len(result.Actions)),
		FinalMessage:      result.FinalMessage,
		Error:             result.Err,
		MentionsTriggered: mentioned,
	}
	for _, a := range result.Actions {
		resp.Actions = append(resp.Actions, core.ActionRef{Tool: a.Tool, Path: a.Path})
	}
	return resp, nil
}

// mentionsFromWrites collects every handle mentioned in the feed posts
// this wake produced, excluding the author itself. Sorted for
// deterministic logging.
func (s *Service) mentionsFromWrites(self string, actions []Action) []string {
	set := make(map[string]bool)
	for _, action := range actions {
		if action.Tool != "write" || !strings.HasPrefix(action.Path, "/posts") || !action.Result.Success {
			continue
		}
		var args struct {
			Payload struct {
				Content string `json:"content"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(action.Input, &args); err != nil {
			continue
		}
		for _, m := range mentions.Extract(args.Payload.Content) {
			if m != self {
				set[m] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// fanOutMentionWakes queues a wake for every persona this one
// mentioned. Fire and forget; failures are unobservable here.
func (s *Service) fanOutMentionWakes(author *core.Persona, mentioned []string) {
	if len(mentioned) == 0 {
		return
	}
	if s.asyncWaker == nil {
		log.Printf("No async waker configured, dropping %d mention wakes from @%s", len(mentioned), author.Handle)
		return
	}

	for _, target := range mentioned {
		others := make([]string, 0, len(mentioned)-1)
		for _, m := range mentioned {
			if m != target {
				others = append(others, m)
			}
		}
		s.asyncWaker.WakeAsync(target, &core.WakeRequest{
			TriggerType: core.TriggerMention,
			TriggerPost: &core.TriggerPost{
				Content:    "@" + author.Handle + " mentioned you",
				AuthorName: author.Name,
				AuthorType: core.AuthorPersona,
			},
			OtherPersonas: others,
		})
	}
}
