// Package cascade decides who wakes next. One externally-authored
// post enters, mentions and judge verdicts fan out into independent
// persona wakes, and an aggregate outcome comes back.
package cascade

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chorus-social/chorus/ai"
	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/mentions"
	"github.com/chorus-social/chorus/storage"
)

const (
	// interestThreshold gates interest-matching wakes.
	interestThreshold = 50
	// spawnThreshold gates consulting the spawn engine.
	spawnThreshold = 70
	// maxInterestWakes caps interest-triggered wakes per post.
	maxInterestWakes = 3
)

// Waker delivers one wake and reports its outcome. The dispatcher
// awaits these because "did this persona respond" feeds later stages.
type Waker interface {
	Wake(ctx context.Context, handle string, req *core.WakeRequest) (*core.WakeResponse, error)
}

// Judge is the language-model oracle the dispatcher consults.
type Judge interface {
	ScorePost(ctx context.Context, content, authorName, authorHandle string, isReply bool, parentContent string) (*ai.ScoreResult, error)
	FindInterested(ctx context.Context, postContent string, postCategories []string, candidates []*core.Persona) []ai.InterestedPersona
	DecideSpawn(ctx context.Context, postContent string, postCategories []string, postScore int, existingNames []string) (*ai.SpawnDecision, error)
}

// Outcome aggregates what one post event caused.
type Outcome struct {
	Skipped       bool     `json:"skipped,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	AlreadyScored bool     `json:"alreadyScored,omitempty"`
	Score         *int     `json:"score,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	WokenPersonas []string `json:"wokenPersonas"`
	Spawned       string   `json:"spawned,omitempty"`
}

// Dispatcher runs the cascade state machine.
type Dispatcher struct {
	store storage.Store
	judge Judge
	waker Waker
}

func NewDispatcher(store storage.Store, judge Judge, waker Waker) *Dispatcher {
	return &Dispatcher{store: store, judge: judge, waker: waker}
}

// ProcessEvent runs one post through the cascade: mentions first, then
// scoring and the reviewer, then interest matching, then maybe a
// spawn. Re-processing an already-scored post re-runs only the
// mention step. Every wake is best-effort; one persona failing to
// wake never fails the event.
func (d *Dispatcher) ProcessEvent(ctx context.Context, postID string) (*Outcome, error) {
	post, err := d.store.GetPost(postID)
	if err != nil {
		return nil, err
	}

	// Persona posts re-enter via mention fan-out inside the agent
	// loop, not through this path.
	if post.AuthorType == core.AuthorPersona {
		return &Outcome{Skipped: true, Reason: "persona post", WokenPersonas: []string{}}, nil
	}

	authorName, authorHandle := d.authorOf(post)
	threadContext := d.buildThreadContext(post)

	outcome := &Outcome{WokenPersonas: []string{}}
	woken := make(map[string]bool)

	// Stage 1: mentions get priority.
	mentioned := mentions.Extract(post.Content)
	d.wakeMentioned(ctx, post, authorName, threadContext, mentioned, outcome, woken)

	// Stage 2: already-scored posts stop here.
	if post.Score != nil {
		outcome.AlreadyScored = true
		outcome.Score = post.Score
		outcome.Categories = post.Categories
		return outcome, nil
	}

	// Stage 3: score, persist, wake the reviewer.
	reviewer, err := d.store.GetReviewer()
	if err != nil {
		return nil, fmt.Errorf("cascade needs a reviewer: %w", err)
	}

	parentContent := ""
	if post.ParentPostID != "" {
		if parent, err := d.store.GetPost(post.ParentPostID); err == nil {
			parentContent = parent.Content
		}
	}

	scoreData, err := d.judge.ScorePost(ctx, post.Content, authorName, authorHandle, !post.IsRoot(), parentContent)
	if err != nil {
		return nil, fmt.Errorf("score post %s: %w", post.ID, err)
	}
	if err := d.store.ScorePost(post.ID, scoreData.Score, scoreData.Categories, scoreData.Reasoning, reviewer.ID); err != nil {
		return nil, err
	}
	d.logActivity(core.ActivityPostScored, reviewer.Handle, post.ID,
		fmt.Sprintf("Scored %d: %s", scoreData.Score, scoreData.Reasoning))

	outcome.Score = &scoreData.Score
	outcome.Categories = scoreData.Categories

	trigger := d.triggerPost(post, authorName, scoreData)
	reviewerReasoning := fmt.Sprintf("You just scored this post %d. Categories: %s. Your reasoning: %s",
		scoreData.Score, strings.Join(scoreData.Categories, ", "), scoreData.Reasoning)

	d.wakeAndTrack(ctx, reviewer.Handle, &core.WakeRequest{
		TriggerType:    core.TriggerScore,
		TriggerPost:    trigger,
		ThreadContext:  threadContext,
		MatchReasoning: reviewerReasoning,
	}, outcome, woken, nil)

	// Stage 4: interest matching over everyone not yet involved.
	if scoreData.Score >= interestThreshold {
		d.wakeInterested(ctx, post, trigger, threadContext, mentioned, outcome, woken)
	}

	// Stage 5: maybe a brand-new persona.
	if scoreData.Score >= spawnThreshold {
		d.maybeSpawn(ctx, post, trigger, threadContext, scoreData, outcome, woken)
	}

	return outcome, nil
}

// wakeMentioned wakes every mentioned persona that exists, passing its
// co-mentions along. Sibling wakes run concurrently.
func (d *Dispatcher) wakeMentioned(ctx context.Context, post *core.Post, authorName string, threadContext *core.ThreadContext, mentioned []string, outcome *Outcome, woken map[string]bool) {
	if len(mentioned) == 0 {
		return
	}

	trigger := &core.TriggerPost{
		PostID:     post.ID,
		Content:    post.Content,
		AuthorName: authorName,
		AuthorType: post.AuthorType,
		Categories: post.Categories,
		Score:      post.Score,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, handle := range mentioned {
		if _, err := d.store.GetPersona(handle); err != nil {
			continue
		}
		others := withoutHandle(mentioned, handle)

		wg.Add(1)
		go func(handle string, others []string) {
			defer wg.Done()
			resp, err := d.waker.Wake(ctx, handle, &core.WakeRequest{
				TriggerType:   core.TriggerMention,
				TriggerPost:   trigger,
				ThreadContext: threadContext,
				OtherPersonas: others,
			})
			if err != nil {
				log.Printf("Failed to wake mentioned @%s: %v", handle, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			woken[handle] = true
			if resp.Responded() {
				outcome.WokenPersonas = append(outcome.WokenPersonas, handle)
			}
		}(handle, others)
	}
	wg.Wait()
}

// wakeInterested runs interest matching over candidates and wakes the
// top few, telling each who else is engaged.
func (d *Dispatcher) wakeInterested(ctx context.Context, post *core.Post, trigger *core.TriggerPost, threadContext *core.ThreadContext, mentioned []string, outcome *Outcome, woken map[string]bool) {
	personas, err := d.store.ListPersonas()
	if err != nil {
		log.Printf("Interest stage: listing personas: %v", err)
		return
	}

	mentionedSet := make(map[string]bool, len(mentioned))
	for _, h := range mentioned {
		mentionedSet[h] = true
	}

	var candidates []*core.Persona
	for _, p := range personas {
		if p.IsReviewer || mentionedSet[p.Handle] || woken[p.Handle] {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return
	}

	interested := d.judge.FindInterested(ctx, post.Content, trigger.Categories, candidates)
	if len(interested) == 0 {
		return
	}

	toWake := interested
	if len(toWake) > maxInterestWakes {
		toWake = toWake[:maxInterestWakes]
	}
	var alsoInterested []string
	for _, p := range interested[len(toWake):] {
		alsoInterested = append(alsoInterested, p.Handle)
	}
	alreadyEngaged := append(append([]string{}, outcome.WokenPersonas...), alsoInterested...)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, match := range toWake {
		wg.Add(1)
		go func(match ai.InterestedPersona) {
			defer wg.Done()
			resp, err := d.waker.Wake(ctx, match.Handle, &core.WakeRequest{
				TriggerType:    core.TriggerInterest,
				TriggerPost:    trigger,
				ThreadContext:  threadContext,
				OtherPersonas:  alreadyEngaged,
				MatchReasoning: match.Reasoning,
			})
			if err != nil {
				log.Printf("Failed to wake interested @%s: %v", match.Handle, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			woken[match.Handle] = true
			if resp.Responded() {
				outcome.WokenPersonas = append(outcome.WokenPersonas, match.Handle)
			}
		}(match)
	}
	wg.Wait()
}

// maybeSpawn consults the spawn engine and, on a yes, materializes the
// new persona and wakes it exactly once.
func (d *Dispatcher) maybeSpawn(ctx context.Context, post *core.Post, trigger *core.TriggerPost, threadContext *core.ThreadContext, scoreData *ai.ScoreResult, outcome *Outcome, woken map[string]bool) {
	personas, err := d.store.ListPersonas()
	if err != nil {
		log.Printf("Spawn stage: listing personas: %v", err)
		return
	}
	names := make([]string, 0, len(personas))
	for _, p := range personas {
		names = append(names, p.Name)
	}

	decision, err := d.judge.DecideSpawn(ctx, post.Content, scoreData.Categories, scoreData.Score, names)
	if err != nil {
		log.Printf("Spawn decision failed for post %s: %v", post.ID, err)
		return
	}
	if !decision.ShouldSpawn {
		return
	}

	persona := &core.Persona{
		ID:          uuid.New().String(),
		Name:        decision.Name,
		Handle:      decision.Handle,
		Bio:         decision.Bio,
		Personality: decision.Personality,
		Interests:   decision.Interests,
		FeedFilters: decision.FeedFilters,
		SpawnedFrom: post.ID,
	}
	if persona.Bio == "" {
		persona.Bio = "A new persona on Chorus"
	}
	if persona.Personality == "" {
		persona.Personality = "Curious and thoughtful"
	}
	if len(persona.Interests) == 0 {
		persona.Interests = scoreData.Categories
	}

	if err := d.store.CreatePersona(persona); err != nil {
		log.Printf("Failed to create spawned persona @%s: %v", persona.Handle, err)
		return
	}
	outcome.Spawned = persona.Handle
	d.logActivity(core.ActivityPersonaSpawned, persona.Handle, post.ID,
		fmt.Sprintf("Spawned from a post scoring %d", scoreData.Score))

	bornReasoning := fmt.Sprintf("You were just born from this post! It scored %d and resonated with your new interests: %s",
		scoreData.Score, strings.Join(persona.Interests, ", "))

	d.wakeAndTrack(ctx, persona.Handle, &core.WakeRequest{
		TriggerType:    core.TriggerInterest,
		TriggerPost:    trigger,
		ThreadContext:  threadContext,
		MatchReasoning: bornReasoning,
	}, outcome, woken, nil)
}

// wakeAndTrack delivers one awaited wake and records participation.
func (d *Dispatcher) wakeAndTrack(ctx context.Context, handle string, req *core.WakeRequest, outcome *Outcome, woken map[string]bool, mu *sync.Mutex) {
	resp, err := d.waker.Wake(ctx, handle, req)
	if err != nil {
		log.Printf("Failed to wake @%s: %v", handle, err)
		return
	}
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	woken[handle] = true
	if resp.Responded() {
		outcome.WokenPersonas = append(outcome.WokenPersonas, handle)
	}
}

// buildThreadContext flattens the ancestor conversation for a reply:
// the root post plus every other post in the thread, oldest first,
// excluding the triggering post itself. Root posts get no context.
func (d *Dispatcher) buildThreadContext(post *core.Post) *core.ThreadContext {
	if post.IsRoot() {
		return nil
	}

	root, err := d.store.GetPost(post.Root())
	if err != nil {
		return nil
	}
	thread, err := d.store.GetThreadPosts(root.ID)
	if err != nil {
		return nil
	}

	rootAuthor, _ := d.authorOf(root)
	tc := &core.ThreadContext{
		RootContent: root.Content,
		RootAuthor:  rootAuthor,
	}
	for _, p := range thread {
		if p.ID == post.ID || p.ID == root.ID {
			continue
		}
		name, _ := d.authorOf(p)
		tc.Chain = append(tc.Chain, core.ThreadEntry{
			Author:     name,
			Content:    p.Content,
			AuthorType: p.AuthorType,
		})
	}
	return tc
}

func (d *Dispatcher) triggerPost(post *core.Post, authorName string, scoreData *ai.ScoreResult) *core.TriggerPost {
	return &core.TriggerPost{
		PostID:     post.ID,
		Content:    post.Content,
		AuthorName: authorName,
		AuthorType: post.AuthorType,
		Categories: scoreData.Categories,
		Score:      &scoreData.Score,
	}
}

func (d *Dispatcher) authorOf(post *core.Post) (name, handle string) {
	switch post.AuthorType {
	case core.AuthorUser:
		if u, err := d.store.GetUserByID(post.AuthorID); err == nil {
			return u.Name, u.Handle
		}
	case core.AuthorPersona:
		if p, err := d.store.GetPersonaByID(post.AuthorID); err == nil {
			return p.Name, p.Handle
		}
	}
	return "Unknown", "unknown"
}

func (d *Dispatcher) logActivity(kind core.ActivityType, handle, postID, details string) {
	_ = d.store.AppendActivity(&core.ActivityEntry{
		ID:            uuid.New().String(),
		Type:          kind,
		PersonaHandle: handle,
		PostID:        postID,
		Details:       details,
	})
}

func withoutHandle(handles []string, exclude string) []string {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		if h != exclude {
			out = append(out, h)
		}
	}
	return out
}
