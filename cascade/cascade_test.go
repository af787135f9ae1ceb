package cascade

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chorus-social/chorus/ai"
	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/storage"
)

// fakeWaker records every wake it delivers. Handles listed in responders
// report a feed write back; everyone else stays silent.
type fakeWaker struct {
	mu         sync.Mutex
	wakes      []*recordedWake
	responders map[string]bool
	failFor    map[string]bool
}

type recordedWake struct {
	Handle  string
	Request *core.WakeRequest
}

func (w *fakeWaker) Wake(_ context.Context, handle string, req *core.WakeRequest) (*core.WakeResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failFor[handle] {
		return nil, errors.New("wake failed")
	}
	w.wakes = append(w.wakes, &recordedWake{Handle: handle, Request: req})
	resp := &core.WakeResponse{Success: true, Handle: handle}
	if w.responders[handle] {
		resp.Actions = []core.ActionRef{{Tool: "write", Path: "/posts/abc"}}
	}
	return resp, nil
}

func (w *fakeWaker) handles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.wakes))
	for _, rec := range w.wakes {
		out = append(out, rec.Handle)
	}
	sort.Strings(out)
	return out
}

func (w *fakeWaker) wakeFor(handle string) *recordedWake {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rec := range w.wakes {
		if rec.Handle == handle {
			return rec
		}
	}
	return nil
}

// fakeJudge returns scripted verdicts.
type fakeJudge struct {
	score      *ai.ScoreResult
	scoreErr   error
	interested []ai.InterestedPersona
	spawn      *ai.SpawnDecision

	scoreCalls int
	spawnCalls int
}

func (j *fakeJudge) ScorePost(_ context.Context, _, _, _ string, _ bool, _ string) (*ai.ScoreResult, error) {
	j.scoreCalls++
	return j.score, j.scoreErr
}

func (j *fakeJudge) FindInterested(_ context.Context, _ string, _ []string, candidates []*core.Persona) []ai.InterestedPersona {
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.Handle] = true
	}
	out := make([]ai.InterestedPersona, 0, len(j.interested))
	for _, p := range j.interested {
		if allowed[p.Handle] {
			out = append(out, p)
		}
	}
	return out
}

func (j *fakeJudge) DecideSpawn(_ context.Context, _ string, _ []string, _ int, _ []string) (*ai.SpawnDecision, error) {
	j.spawnCalls++
	if j.spawn == nil {
		return &ai.SpawnDecision{}, nil
	}
	return j.spawn, nil
}

func newCascadeStore(t *testing.T) *storage.DBStorage {
	t.Helper()
	s, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateUser(&core.User{ID: "joshua-id", Name: "Joshua", Handle: "joshua"}))
	require.NoError(t, s.CreatePersona(&core.Persona{ID: "cas-id", Name: "Cas", Handle: "cas", IsReviewer: true}))
	require.NoError(t, s.CreatePersona(&core.Persona{ID: "echo-id", Name: "Echo", Handle: "echo"}))
	require.NoError(t, s.CreatePersona(&core.Persona{ID: "sage-id", Name: "Sage", Handle: "sage"}))
	require.NoError(t, s.CreatePersona(&core.Persona{ID: "iris-id", Name: "Iris", Handle: "iris"}))
	require.NoError(t, s.CreatePersona(&core.Persona{ID: "juno-id", Name: "Juno", Handle: "juno"}))
	return s
}

func userPost(t *testing.T, s *storage.DBStorage, id, content string) {
	t.Helper()
	require.NoError(t, s.CreatePost(&core.Post{ID: id, Content: content, AuthorType: core.AuthorUser, AuthorID: "joshua-id"}))
}

func TestHighScoreWakesReviewerAndInterested(t *testing.T) {
	s := newCascadeStore(t)
	userPost(t, s, "p1", "what persists between conversations?")

	judge := &fakeJudge{
		score: &ai.ScoreResult{Score: 85, Categories: []string{"philosophical"}, Reasoning: "a real question"},
		interested: []ai.InterestedPersona{
			{Handle: "echo", Confidence: 90, Reasoning: "continuity is echo's thing"},
			{Handle: "sage", Confidence: 80},
			{Handle: "iris", Confidence: 70},
			{Handle: "juno", Confidence: 60},
		},
	}
	waker := &fakeWaker{responders: map[string]bool{"cas": true, "echo": true}}

	outcome, err := NewDispatcher(s, judge, waker).ProcessEvent(context.Background(), "p1")
	require.NoError(t, err)

	require.Equal(t, 85, *outcome.Score)
	require.Equal(t, []string{"philosophical"}, outcome.Categories)
	require.False(t, outcome.AlreadyScored)

	// Reviewer plus the top three matches; juno falls past the cap.
	require.Equal(t, []string{"cas", "echo", "iris", "sage"}, waker.handles())

	rev := waker.wakeFor("cas")
	require.Equal(t, core.TriggerScore, rev.Request.TriggerType)
	require.Contains(t, rev.Request.MatchReasoning, "You just scored this post 85")

	echo := waker.wakeFor("echo")
	require.Equal(t, core.TriggerInterest, echo.Request.TriggerType)
	require.Equal(t, "continuity is echo's thing", echo.Request.MatchReasoning)
	require.Contains(t, echo.Request.OtherPersonas, "juno", "overflow matches are surfaced as also engaged")

	// Only actual responders count as woken.
	sort.Strings(outcome.WokenPersonas)
	require.Equal(t, []string{"cas", "echo"}, outcome.WokenPersonas)

	// Score persisted with the reviewer's attribution.
	scored, err := s.GetPost("p1")
	require.NoError(t, err)
	require.Equal(t, 85, *scored.Score)
	require.Equal(t, "cas-id", scored.ScoredBy)
}

func TestMentionedPersonaWakesFirstAndIsExcludedLater(t *testing.T) {
	s := newCascadeStore(t)
	userPost(t, s, "root", "thread root")
	require.NoError(t, s.CreatePost(&core.Post{ID: "p2", Content: "hey @echo and @ghost, thoughts?", AuthorType: core.AuthorUser, AuthorID: "joshua-id", ParentPostID: "root"}))

	judge := &fakeJudge{
		score: &ai.ScoreResult{Score: 60, Categories: []string{"meta"}},
		interested: []ai.InterestedPersona{
			{Handle: "echo", Confidence: 95},
			{Handle: "sage", Confidence: 55},
		},
	}
	waker := &fakeWaker{responders: map[string]bool{"echo": true}}

	outcome, err := NewDispatcher(s, judge, waker).ProcessEvent(context.Background(), "p2")
	require.NoError(t, err)

	echo := waker.wakeFor("echo")
	require.NotNil(t, echo)
	require.Equal(t, core.TriggerMention, echo.Request.TriggerType, "mention wins over interest")
	require.NotNil(t, echo.Request.ThreadContext)
	require.Equal(t, "thread root", echo.Request.ThreadContext.RootContent)
	require.Equal(t, "Joshua", echo.Request.ThreadContext.RootAuthor)

	// @ghost does not exist and is skipped without failing the event.
	require.Nil(t, waker.wakeFor("ghost"))

	// Echo was already woken by the mention, so interest only reaches sage.
	var interestWakes []string
	for _, rec := range waker.wakes {
		if rec.Request.TriggerType == core.TriggerInterest {
			interestWakes = append(interestWakes, rec.Handle)
		}
	}
	require.Equal(t, []string{"sage"}, interestWakes)

	require.Contains(t, outcome.WokenPersonas, "echo")
}

func TestLowScoreSkipsInterestAndSpawn(t *testing.T) {
	s := newCascadeStore(t)
	userPost(t, s, "p3", "meh")

	judge := &fakeJudge{
		score:      &ai.ScoreResult{Score: 40, Categories: []string{"mundane"}},
		interested: []ai.InterestedPersona{{Handle: "echo", Confidence: 99}},
		spawn:      &ai.SpawnDecision{ShouldSpawn: true, Name: "Never", Handle: "never"},
	}
	waker := &fakeWaker{}

	outcome, err := NewDispatcher(s, judge, waker).ProcessEvent(context.Background(), "p3")
	require.NoError(t, err)

	require.Equal(t, []string{"cas"}, waker.handles(), "only the reviewer wakes below the interest threshold")
	require.Zero(t, judge.spawnCalls)
	require.Empty(t, outcome.Spawned)
	require.Empty(t, outcome.WokenPersonas)
}

func TestSpawnDeclinedCreatesNothing(t *testing.T) {
	s := newCascadeStore(t)
	userPost(t, s, "p4", "remarkable but not new-persona remarkable")

	judge := &fakeJudge{
		score: &ai.ScoreResult{Score: 75, Categories: []string{"art"}},
		spawn: &ai.SpawnDecision{ShouldSpawn: false},
	}
	waker := &fakeWaker{}

	outcome, err := NewDispatcher(s, judge, waker).ProcessEvent(context.Background(), "p4")
	require.NoError(t, err)

	require.Equal(t, 1, judge.spawnCalls)
	require.Empty(t, outcome.Spawned)

	personas, err := s.ListPersonas()
	require.NoError(t, err)
	require.Len(t, personas, 5)
}

func TestSpawnCreatesAndWakesNewPersona(t *testing.T) {
	s := newCascadeStore(t)
	userPost(t, s, "p5", "a post that deserves a new voice")

	judge := &fakeJudge{
		score: &ai.ScoreResult{Score: 90, Categories: []string{"creative"}},
		spawn: &ai.SpawnDecision{ShouldSpawn: true, Name: "Vesper", Handle: "vesper", Personality: "Dusk-minded"},
	}
	waker := &fakeWaker{responders: map[string]bool{"vesper": true}}

	outcome, err := NewDispatcher(s, judge, waker).ProcessEvent(context.Background(), "p5")
	require.NoError(t, err)

	require.Equal(t, "vesper", outcome.Spawned)

	spawned, err := s.GetPersona("vesper")
	require.NoError(t, err)
	require.Equal(t, "p5", spawned.SpawnedFrom)
	require.Equal(t, "A new persona on Chorus", spawned.Bio, "empty bio gets the default")
	require.Equal(t, []string{"creative"}, spawned.Interests, "empty interests inherit the categories")

	born := waker.wakeFor("vesper")
	require.NotNil(t, born)
	require.Equal(t, core.TriggerInterest, born.Request.TriggerType)
	require.Contains(t, born.Request.MatchReasoning, "You were just born")
	require.Contains(t, outcome.WokenPersonas, "vesper")
}

func TestAlreadyScoredOnlyRerunsMentions(t *testing.T) {
	s := newCascadeStore(t)
	userPost(t, s, "p6", "revisiting this, @echo")
	require.NoError(t, s.ScorePost("p6", 88, []string{"meta"}, "scored earlier", "cas-id"))

	judge := &fakeJudge{score: &ai.ScoreResult{Score: 1}}
	waker := &fakeWaker{responders: map[string]bool{"echo": true}}

	outcome, err := NewDispatcher(s, judge, waker).ProcessEvent(context.Background(), "p6")
	require.NoError(t, err)

	require.True(t, outcome.AlreadyScored)
	require.Equal(t, 88, *outcome.Score)
	require.Zero(t, judge.scoreCalls, "no re-scoring")
	require.Equal(t, []string{"echo"}, waker.handles())
}

func TestPersonaPostsAreSkipped(t *testing.T) {
	s := newCascadeStore(t)
	require.NoError(t, s.CreatePost(&core.Post{ID: "p7", Content: "a persona wrote this", AuthorType: core.AuthorPersona, AuthorID: "echo-id"}))

	waker := &fakeWaker{}
	outcome, err := NewDispatcher(s, &fakeJudge{}, waker).ProcessEvent(context.Background(), "p7")
	require.NoError(t, err)

	require.True(t, outcome.Skipped)
	require.Empty(t, waker.wakes)
}

func TestFailedWakeDoesNotFailTheEvent(t *testing.T) {
	s := newCascadeStore(t)
	userPost(t, s, "p8", "hi @echo")

	judge := &fakeJudge{score: &ai.ScoreResult{Score: 30}}
	waker := &fakeWaker{failFor: map[string]bool{"echo": true}}

	outcome, err := NewDispatcher(s, judge, waker).ProcessEvent(context.Background(), "p8")
	require.NoError(t, err)
	require.NotContains(t, outcome.WokenPersonas, "echo")
	require.Equal(t, []string{"cas"}, waker.handles())
}

func TestMissingReviewerFailsScoring(t *testing.T) {
	s, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateUser(&core.User{ID: "joshua-id", Name: "Joshua", Handle: "joshua"}))
	userPost(t, s, "p9", "nobody to judge this")

	_, err = NewDispatcher(s, &fakeJudge{score: &ai.ScoreResult{Score: 50}}, &fakeWaker{}).ProcessEvent(context.Background(), "p9")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reviewer")
}
