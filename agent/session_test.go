package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/storage"
)

func TestSessionRestoreOrCreate(t *testing.T) {
	s, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	persona := &core.Persona{ID: "echo-id", Name: "Echo", Handle: "echo"}
	require.NoError(t, s.CreatePersona(persona))
	mgr := NewSessionManager(s)

	first, err := mgr.RestoreOrCreate(persona, core.TriggerDirect, "")
	require.NoError(t, err)
	require.True(t, first.Active)
	require.JSONEq(t, `{}`, string(first.ContextState))
	require.Equal(t, "direct", first.Trigger)

	got, err := s.GetPersona("echo")
	require.NoError(t, err)
	require.Equal(t, 1, got.SessionCount, "a fresh session bumps the counter")

	t.Run("second wake restores the same session", func(t *testing.T) {
		first.ContextState = json.RawMessage(`{"thinking":"about joshua"}`)
		require.NoError(t, s.SaveSession(first))

		second, err := mgr.RestoreOrCreate(persona, core.TriggerMention, "p1")
		require.NoError(t, err)
		require.Equal(t, first.ID, second.ID)
		require.JSONEq(t, `{"thinking":"about joshua"}`, string(second.ContextState), "restored state stays untouched")

		got, err := s.GetPersona("echo")
		require.NoError(t, err)
		require.Equal(t, 1, got.SessionCount, "restoring does not bump the counter")
	})

	t.Run("ending frees the slot for a new session", func(t *testing.T) {
		require.NoError(t, mgr.End("echo"))

		_, err := s.GetActiveSession("echo")
		require.ErrorIs(t, err, storage.ErrNoActiveSession)

		third, err := mgr.RestoreOrCreate(persona, core.TriggerDirect, "")
		require.NoError(t, err)
		require.NotEqual(t, first.ID, third.ID)
		require.JSONEq(t, `{}`, string(third.ContextState))
	})
}

func TestSessionEndIdempotent(t *testing.T) {
	s, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	mgr := NewSessionManager(s)
	require.NoError(t, mgr.End("nobody"))
	require.NoError(t, mgr.End("nobody"))
}
