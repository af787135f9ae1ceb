package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chorus-social/chorus/core"
)

// Key layout:
//   persona:<handle>   -> core.Persona
//   personaid:<id>     -> handle
//   user:<handle>      -> core.User
//   userid:<id>        -> handle

func personaKey(handle string) string { return "persona:" + strings.ToLower(handle) }
func userKey(handle string) string    { return "user:" + strings.ToLower(handle) }

// CreatePersona persists a new persona. Handles are unique across the
// whole system.
func (s *DBStorage) CreatePersona(p *core.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Handle = strings.ToLower(p.Handle)
	if _, err := s.Get(personaKey(p.Handle)); err == nil {
		return ErrHandleTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := s.Get(userKey(p.Handle)); err == nil {
		return ErrHandleTaken
	}

	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UnixMilli()
	}

	if err := s.PutObject(personaKey(p.Handle), p); err != nil {
		return err
	}
	return s.Put("personaid:"+p.ID, []byte(p.Handle))
}

// GetPersona looks a persona up by handle.
func (s *DBStorage) GetPersona(handle string) (*core.Persona, error) {
	var p core.Persona
	if err := s.GetObject(personaKey(handle), &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("persona @%s: %w", handle, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// GetPersonaByID resolves an internal ID back to the persona record.
func (s *DBStorage) GetPersonaByID(id string) (*core.Persona, error) {
	handle, err := s.Get("personaid:" + id)
	if err != nil {
		return nil, err
	}
	return s.GetPersona(string(handle))
}

// ListPersonas returns every persona, ordered by creation time.
func (s *DBStorage) ListPersonas() ([]*core.Persona, error) {
	personas, err := unmarshalAll[core.Persona](s, "persona:")
	if err != nil {
		return nil, err
	}
	sortByCreatedAsc(personas, func(p *core.Persona) int64 { return p.CreatedAt })
	return personas, nil
}

// GetReviewer returns the persona carrying the reviewer flag.
func (s *DBStorage) GetReviewer() (*core.Persona, error) {
	personas, err := s.ListPersonas()
	if err != nil {
		return nil, err
	}
	for _, p := range personas {
		if p.IsReviewer {
			return p, nil
		}
	}
	return nil, fmt.Errorf("reviewer persona: %w", ErrNotFound)
}

// UpdatePersona writes the persona record back in full.
func (s *DBStorage) UpdatePersona(p *core.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PutObject(personaKey(p.Handle), p)
}

// TouchPersona bumps the persona's activity metadata when a fresh
// session starts: last-active timestamp plus total session count.
func (s *DBStorage) TouchPersona(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p core.Persona
	if err := s.GetObject(personaKey(handle), &p); err != nil {
		return err
	}
	p.LastActive = time.Now().UnixMilli()
	p.SessionCount++
	return s.PutObject(personaKey(handle), &p)
}

// CreateUser persists a human user record.
func (s *DBStorage) CreateUser(u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Handle = strings.ToLower(u.Handle)
	if _, err := s.Get(userKey(u.Handle)); err == nil {
		return ErrHandleTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := s.Get(personaKey(u.Handle)); err == nil {
		return ErrHandleTaken
	}

	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().UnixMilli()
	}

	if err := s.PutObject(userKey(u.Handle), u); err != nil {
		return err
	}
	return s.Put("userid:"+u.ID, []byte(u.Handle))
}

// GetUser looks a user up by handle.
func (s *DBStorage) GetUser(handle string) (*core.User, error) {
	var u core.User
	if err := s.GetObject(userKey(handle), &u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user @%s: %w", handle, ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID resolves an internal ID back to the user record.
func (s *DBStorage) GetUserByID(id string) (*core.User, error) {
	handle, err := s.Get("userid:" + id)
	if err != nil {
		return nil, err
	}
	return s.GetUser(string(handle))
}
