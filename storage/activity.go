package storage

import (
	"time"

	"github.com/chorus-social/chorus/core"
)

// AppendActivity records one observability event. The runtime never
// reads these back for its own decisions.
func (s *DBStorage) AppendActivity(e *core.ActivityEntry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	return s.PutObject("activity:"+e.ID, e)
}

// GetActivity returns the most recent activity entries, newest first.
func (s *DBStorage) GetActivity(limit int) ([]*core.ActivityEntry, error) {
	entries, err := unmarshalAll[core.ActivityEntry](s, "activity:")
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(entries, func(e *core.ActivityEntry) int64 { return e.CreatedAt })
	return limitSlice(entries, limit), nil
}
