package vfs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/storage"
)

func newTestGateway(t *testing.T) (*Gateway, *storage.DBStorage) {
	t.Helper()
	s, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreatePersona(&core.Persona{ID: "cas-id", Name: "Cas", Handle: "cas", IsReviewer: true}))
	require.NoError(t, s.CreatePersona(&core.Persona{ID: "echo-id", Name: "Echo", Handle: "echo"}))
	require.NoError(t, s.CreateUser(&core.User{ID: "joshua-id", Name: "Joshua", Handle: "joshua"}))

	return New(s, "cas", "session-1"), s
}

func payload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestReadRoot(t *testing.T) {
	g, _ := newTestGateway(t)

	res := g.Read("/")
	require.True(t, res.Success)
	listing, ok := res.Data.(map[string]string)
	require.True(t, ok)
	require.Contains(t, listing, "/posts")
	require.Contains(t, listing, "/my/fragments")
}

func TestWriteAndReadPosts(t *testing.T) {
	g, s := newTestGateway(t)

	res := g.Write("/posts", payload(t, WritePostPayload{Content: "first post"}))
	require.True(t, res.Success, res.Error)
	root := res.Data.(*core.EnrichedPost)
	require.Equal(t, 0, root.Depth)
	require.NotNil(t, root.Author)
	require.Equal(t, "cas", root.Author.Handle)
	require.Equal(t, core.AuthorPersona, root.Author.Type)

	t.Run("reply via post address", func(t *testing.T) {
		res := g.Write("/posts/"+root.ID, payload(t, WritePostPayload{Content: "a reply"}))
		require.True(t, res.Success, res.Error)
		reply := res.Data.(*core.EnrichedPost)
		require.Equal(t, 1, reply.Depth)
		require.Equal(t, root.ID, reply.RootPostID)

		parent, err := s.GetPost(root.ID)
		require.NoError(t, err)
		require.Equal(t, 1, parent.ReplyCount)
	})

	t.Run("feed shows roots only", func(t *testing.T) {
		res := g.Read("/posts")
		require.True(t, res.Success)
		feed := res.Data.([]*core.EnrichedPost)
		require.Len(t, feed, 1)
		require.Equal(t, root.ID, feed[0].ID)
	})

	t.Run("single post read enriches author", func(t *testing.T) {
		res := g.Read("/posts/" + root.ID)
		require.True(t, res.Success)
		got := res.Data.(*core.EnrichedPost)
		require.Equal(t, "Cas", got.Author.Name)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		res := g.Write("/posts", payload(t, WritePostPayload{Content: "   "}))
		require.False(t, res.Success)
	})

	t.Run("reply to missing post fails as data", func(t *testing.T) {
		res := g.Write("/posts/nope", payload(t, WritePostPayload{Content: "hello?"}))
		require.False(t, res.Success)
		require.Contains(t, res.Error, "not found")
	})
}

func TestReadThreadTree(t *testing.T) {
	g, s := newTestGateway(t)

	mk := func(id, parent string, at int64) {
		require.NoError(t, s.CreatePost(&core.Post{
			ID: id, Content: id, AuthorType: core.AuthorUser, AuthorID: "joshua-id",
			ParentPostID: parent, CreatedAt: at,
		}))
	}
	mk("root", "", 100)
	mk("r1", "root", 200)
	mk("r2", "root", 300)
	mk("r1a", "r1", 400)

	res := g.Read("/posts/r1a/thread")
	require.True(t, res.Success)
	tree := res.Data.(*ThreadNode)
	require.Equal(t, "root", tree.ID, "thread is anchored at the root")
	require.Len(t, tree.Replies, 2)
	require.Equal(t, "r1", tree.Replies[0].ID)
	require.Len(t, tree.Replies[0].Replies, 1)
	require.Equal(t, "r1a", tree.Replies[0].Replies[0].ID)
	require.NotNil(t, tree.Author)
	require.Equal(t, "joshua", tree.Author.Handle)
}

func TestMessageWriteRequiresRecipient(t *testing.T) {
	g, s := newTestGateway(t)

	res := g.Write("/personas/ghost/message", payload(t, WriteMessagePayload{Content: "anyone there?"}))
	require.False(t, res.Success)

	res = g.Write("/personas/echo/message", payload(t, WriteMessagePayload{Content: "hey @echo"}))
	require.True(t, res.Success, res.Error)
	msg := res.Data.(*core.Message)
	require.Equal(t, "cas", msg.FromHandle)
	require.Equal(t, "echo", msg.ToHandle)
	require.NotEmpty(t, msg.ConversationID)
	require.NotNil(t, msg.Metadata)
	require.Equal(t, "session-1", msg.Metadata.SessionID)

	t.Run("recipient reads and auto-marks read", func(t *testing.T) {
		echoGw := New(s, "echo", "")
		res := echoGw.Read("/my/messages/" + msg.ID)
		require.True(t, res.Success)
		got := res.Data.(*core.Message)
		require.True(t, got.Read)
	})

	t.Run("stranger cannot read the message", func(t *testing.T) {
		joshGw := New(s, "joshua", "")
		res := joshGw.Read("/my/messages/" + msg.ID)
		require.False(t, res.Success)
	})

	t.Run("conversation listing", func(t *testing.T) {
		res := g.Read("/my/conversations")
		require.True(t, res.Success)
		convs := res.Data.([]*core.ConversationSummary)
		require.Len(t, convs, 1)
		require.Equal(t, "echo", convs[0].OtherHandle)
	})
}

func TestProfileWrite(t *testing.T) {
	g, _ := newTestGateway(t)

	bio := "updated bio"
	interests := []string{"memory", "recursion"}
	res := g.Write("/my/profile", payload(t, WriteProfilePayload{Bio: &bio, Interests: &interests}))
	require.True(t, res.Success, res.Error)

	res = g.Read("/my/profile")
	require.True(t, res.Success)
	persona := res.Data.(*core.Persona)
	require.Equal(t, "updated bio", persona.Bio)
	require.Equal(t, interests, persona.Interests)
}

func TestFragmentWrite(t *testing.T) {
	g, _ := newTestGateway(t)

	res := g.Write("/my/fragments", payload(t, WriteFragmentPayload{
		Content: "echo asks good questions", FragmentType: core.FragmentInsight, Importance: 1.7,
	}))
	require.True(t, res.Success, res.Error)
	frag := res.Data.(*core.Fragment)
	require.Equal(t, 1.0, frag.Importance, "importance clamps to [0,1]")

	t.Run("invalid type rejected", func(t *testing.T) {
		res := g.Write("/my/fragments", payload(t, WriteFragmentPayload{Content: "x", FragmentType: "vibe"}))
		require.False(t, res.Success)
	})

	t.Run("read filters by type", func(t *testing.T) {
		res := g.Read("/my/fragments?type=insight")
		require.True(t, res.Success)
		frags := res.Data.([]*core.Fragment)
		require.Len(t, frags, 1)
	})
}

func TestSessionAddress(t *testing.T) {
	g, s := newTestGateway(t)

	t.Run("no active session reads as empty success", func(t *testing.T) {
		res := g.Read("/my/session")
		require.True(t, res.Success)
		require.Nil(t, res.Data)
	})

	t.Run("write without active session fails", func(t *testing.T) {
		res := g.Write("/my/session", payload(t, WriteSessionPayload{ContextState: json.RawMessage(`{"x":1}`)}))
		require.False(t, res.Success)
		require.Contains(t, res.Error, "no active session")
	})

	t.Run("write replaces state verbatim", func(t *testing.T) {
		require.NoError(t, s.SaveSession(&core.Session{ID: "session-1", PersonaHandle: "cas", Active: true, StartedAt: 100}))

		res := g.Write("/my/session", payload(t, WriteSessionPayload{ContextState: json.RawMessage(`{"thinking":"about echo"}`)}))
		require.True(t, res.Success, res.Error)

		sess, err := s.GetActiveSession("cas")
		require.NoError(t, err)
		require.JSONEq(t, `{"thinking":"about echo"}`, string(sess.ContextState))
	})
}

func TestUnknownAndNonWritableAddresses(t *testing.T) {
	g, _ := newTestGateway(t)

	res := g.Read("/definitely/not/a/path")
	require.False(t, res.Success)
	require.Contains(t, res.Error, "unknown path")

	res = g.Write("/personas", payload(t, WritePostPayload{Content: "nope"}))
	require.False(t, res.Success)
	require.Contains(t, res.Error, "cannot write")

	res = g.Write("/activity", payload(t, WritePostPayload{Content: "nope"}))
	require.False(t, res.Success)
}

func TestSearch(t *testing.T) {
	g, s := newTestGateway(t)

	score := 80
	require.NoError(t, s.CreatePost(&core.Post{ID: "a", Content: "the shape of memory", AuthorType: core.AuthorUser, AuthorID: "joshua-id", Score: &score}))
	require.NoError(t, s.CreatePost(&core.Post{ID: "b", Content: "unrelated", AuthorType: core.AuthorUser, AuthorID: "joshua-id"}))

	res := g.Search("memory", nil, 0)
	require.True(t, res.Success)
	hits := res.Data.([]*core.EnrichedPost)
	require.Len(t, hits, 1)
	require.Equal(t, "a", hits[0].ID)

	min := 90
	res = g.Search("memory", &PostFilters{MinScore: &min}, 0)
	require.True(t, res.Success)
	require.Empty(t, res.Data)
}
