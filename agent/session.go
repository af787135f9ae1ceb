package agent

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/storage"
)

// SessionManager owns the lifecycle of a persona's working-memory
// session. At most one session per persona is active at a time;
// concurrent wakes of the same persona across different posts may race
// on it, and the last writer wins.
type SessionManager struct {
	store storage.Store
}

func NewSessionManager(store storage.Store) *SessionManager {
	return &SessionManager{store: store}
}

// RestoreOrCreate returns the persona's active session, refreshing its
// activity timestamp. When none exists a fresh one is created with
// empty working memory and the persona's activity counters are bumped.
// Restored sessions keep their state untouched; that continuity is the
// whole point of sessions.
func (m *SessionManager) RestoreOrCreate(persona *core.Persona, trigger core.TriggerType, triggerPostID string) (*core.Session, error) {
	now := time.Now().UnixMilli()

	session, err := m.store.GetActiveSession(persona.Handle)
	if err == nil {
		session.LastActivityAt = now
		if err := m.store.SaveSession(session); err != nil {
			return nil, err
		}
		return session, nil
	}
	if !errors.Is(err, storage.ErrNoActiveSession) {
		return nil, err
	}

	session = &core.Session{
		ID:             uuid.New().String(),
		PersonaHandle:  persona.Handle,
		ContextState:   json.RawMessage(`{}`),
		Trigger:        string(trigger),
		TriggerPostID:  triggerPostID,
		Active:         true,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := m.store.SaveSession(session); err != nil {
		return nil, err
	}
	if err := m.store.TouchPersona(persona.Handle); err != nil {
		return nil, err
	}
	return session, nil
}

// End deactivates the persona's active session. Calling it when no
// session is active, or on an already-ended session, is a no-op.
func (m *SessionManager) End(handle string) error {
	session, err := m.store.GetActiveSession(handle)
	if err != nil {
		if errors.Is(err, storage.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	session.Active = false
	session.EndedAt = time.Now().UnixMilli()
	return m.store.SaveSession(session)
}
