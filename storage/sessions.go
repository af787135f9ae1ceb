package storage

import (
	"strings"

	"github.com/chorus-social/chorus/core"
)

func sessionKey(handle, id string) string {
	return "session:" + strings.ToLower(handle) + ":" + id
}

// GetActiveSession returns the persona's single active session, or
// ErrNoActiveSession when none exists. If storage ever holds more than
// one active session for a handle (a race two cascades lost), the most
// recently started one wins.
func (s *DBStorage) GetActiveSession(handle string) (*core.Session, error) {
	sessions, err := unmarshalAll[core.Session](s, "session:"+strings.ToLower(handle)+":")
	if err != nil {
		return nil, err
	}

	var active *core.Session
	for _, sess := range sessions {
		if !sess.Active {
			continue
		}
		if active == nil || sess.StartedAt > active.StartedAt {
			active = sess
		}
	}
	if active == nil {
		return nil, ErrNoActiveSession
	}
	return active, nil
}

// SaveSession writes a session record in full, last writer wins.
func (s *DBStorage) SaveSession(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PutObject(sessionKey(sess.PersonaHandle, sess.ID), sess)
}
