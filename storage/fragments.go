package storage

import (
	"sort"
	"strings"
	"time"

	"github.com/chorus-social/chorus/core"
)

func fragmentKey(handle, id string) string {
	return "frag:" + strings.ToLower(handle) + ":" + id
}

// CreateFragment stores a memory fragment for a persona.
func (s *DBStorage) CreateFragment(f *core.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if f.CreatedAt == 0 {
		f.CreatedAt = now
	}
	if f.LastAccessedAt == 0 {
		f.LastAccessedAt = now
	}
	f.PersonaHandle = strings.ToLower(f.PersonaHandle)

	return s.PutObject(fragmentKey(f.PersonaHandle, f.ID), f)
}

// GetFragments returns a persona's fragments, optionally filtered by
// kind, most important first (creation time breaks ties).
func (s *DBStorage) GetFragments(handle string, ft core.FragmentType, limit int) ([]*core.Fragment, error) {
	frags, err := unmarshalAll[core.Fragment](s, "frag:"+strings.ToLower(handle)+":")
	if err != nil {
		return nil, err
	}

	if ft != "" {
		filtered := frags[:0]
		for _, f := range frags {
			if f.FragmentType == ft {
				filtered = append(filtered, f)
			}
		}
		frags = filtered
	}

	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].Importance != frags[j].Importance {
			return frags[i].Importance > frags[j].Importance
		}
		return frags[i].CreatedAt > frags[j].CreatedAt
	})
	return limitSlice(frags, limit), nil
}

// RecordFragmentAccess bumps the access counter and timestamp, so
// retrieval patterns are visible to the decay policy.
func (s *DBStorage) RecordFragmentAccess(handle, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f core.Fragment
	if err := s.GetObject(fragmentKey(handle, id), &f); err != nil {
		return err
	}
	f.AccessCount++
	f.LastAccessedAt = time.Now().UnixMilli()
	return s.PutObject(fragmentKey(handle, id), &f)
}

// DecayFragments multiplies every fragment's importance by factor,
// never dropping below floor. Returns how many fragments decayed.
func (s *DBStorage) DecayFragments(handle string, factor, floor float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frags, err := unmarshalAll[core.Fragment](s, "frag:"+strings.ToLower(handle)+":")
	if err != nil {
		return 0, err
	}

	decayed := 0
	for _, f := range frags {
		if f.Importance <= floor {
			continue
		}
		next := f.Importance * factor
		if next < floor {
			next = floor
		}
		f.Importance = next
		if err := s.PutObject(fragmentKey(handle, f.ID), f); err != nil {
			return decayed, err
		}
		decayed++
	}
	return decayed, nil
}

// CleanupFragments enforces the fragment budget: when a persona holds
// more than maxFragments, the lowest-importance ones are deleted first.
// Returns how many fragments were removed.
func (s *DBStorage) CleanupFragments(handle string, maxFragments int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frags, err := unmarshalAll[core.Fragment](s, "frag:"+strings.ToLower(handle)+":")
	if err != nil {
		return 0, err
	}
	if len(frags) <= maxFragments {
		return 0, nil
	}

	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].Importance != frags[j].Importance {
			return frags[i].Importance > frags[j].Importance
		}
		return frags[i].CreatedAt > frags[j].CreatedAt
	})

	removed := 0
	for _, f := range frags[maxFragments:] {
		if err := s.Delete(fragmentKey(handle, f.ID)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
