package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/chorus-social/chorus/core"
)

// FeedQuery filters a feed read. Zero values mean "no constraint".
type FeedQuery struct {
	MinScore   *int
	MaxScore   *int
	Categories []string
	AuthorType core.AuthorType
	After      int64 // epoch millis
	Before     int64
	Limit      int
	RootOnly   bool
}

func postKey(id string) string { return "post:" + id }

// CreatePost inserts a post. For replies the parent is read inside the
// same transaction: depth and root are derived from it and its reply
// counter is incremented, so either both records land or neither does.
func (s *DBStorage) CreatePost(p *core.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UnixMilli()
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if p.ParentPostID != "" {
			item, err := txn.Get([]byte(postKey(p.ParentPostID)))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return fmt.Errorf("parent post %s: %w", p.ParentPostID, ErrNotFound)
				}
				return err
			}

			var parent core.Post
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &parent)
			}); err != nil {
				return err
			}

			if parent.ParentPostID == p.ID || parent.ID == p.ID {
				return fmt.Errorf("post %s cannot be its own ancestor", p.ID)
			}

			p.Depth = parent.Depth + 1
			p.RootPostID = parent.Root()

			parent.ReplyCount++
			parentData, err := json.Marshal(&parent)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(postKey(parent.ID)), parentData); err != nil {
				return err
			}
		} else {
			p.Depth = 0
			p.RootPostID = ""
		}

		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set([]byte(postKey(p.ID)), data)
	})
}

// GetPost fetches a single post by ID.
func (s *DBStorage) GetPost(id string) (*core.Post, error) {
	var p core.Post
	if err := s.GetObject(postKey(id), &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// GetReplies returns the direct children of a post, oldest first.
func (s *DBStorage) GetReplies(postID string) ([]*core.Post, error) {
	posts, err := unmarshalAll[core.Post](s, "post:")
	if err != nil {
		return nil, err
	}

	var replies []*core.Post
	for _, p := range posts {
		if p.ParentPostID == postID {
			replies = append(replies, p)
		}
	}
	sortByCreatedAsc(replies, func(p *core.Post) int64 { return p.CreatedAt })
	return replies, nil
}

// GetThreadPosts returns every post in a thread (the root plus all
// descendants), oldest first.
func (s *DBStorage) GetThreadPosts(rootID string) ([]*core.Post, error) {
	posts, err := unmarshalAll[core.Post](s, "post:")
	if err != nil {
		return nil, err
	}

	var thread []*core.Post
	for _, p := range posts {
		if p.ID == rootID || p.RootPostID == rootID {
			thread = append(thread, p)
		}
	}
	sortByCreatedAsc(thread, func(p *core.Post) int64 { return p.CreatedAt })
	return thread, nil
}

// GetFeed returns posts matching the query, newest first.
func (s *DBStorage) GetFeed(q FeedQuery) ([]*core.Post, error) {
	posts, err := unmarshalAll[core.Post](s, "post:")
	if err != nil {
		return nil, err
	}

	var matched []*core.Post
	for _, p := range posts {
		if q.RootOnly && !p.IsRoot() {
			continue
		}
		if q.MinScore != nil && (p.Score == nil || *p.Score < *q.MinScore) {
			continue
		}
		if q.MaxScore != nil && p.Score != nil && *p.Score > *q.MaxScore {
			continue
		}
		if q.AuthorType != "" && p.AuthorType != q.AuthorType {
			continue
		}
		if q.After > 0 && p.CreatedAt < q.After {
			continue
		}
		if q.Before > 0 && p.CreatedAt > q.Before {
			continue
		}
		if len(q.Categories) > 0 && !hasAnyCategory(p.Categories, q.Categories) {
			continue
		}
		matched = append(matched, p)
	}

	sortByCreatedDesc(matched, func(p *core.Post) int64 { return p.CreatedAt })
	return limitSlice(matched, q.Limit), nil
}

func hasAnyCategory(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// GetPostsByAuthor returns an author's posts, newest first.
func (s *DBStorage) GetPostsByAuthor(t core.AuthorType, authorID string, limit int) ([]*core.Post, error) {
	posts, err := unmarshalAll[core.Post](s, "post:")
	if err != nil {
		return nil, err
	}

	var matched []*core.Post
	for _, p := range posts {
		if p.AuthorType == t && p.AuthorID == authorID {
			matched = append(matched, p)
		}
	}
	sortByCreatedDesc(matched, func(p *core.Post) int64 { return p.CreatedAt })
	return limitSlice(matched, limit), nil
}

// ScorePost attaches the judge's verdict to a post.
func (s *DBStorage) ScorePost(id string, score int, categories []string, reasoning, scoredBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p core.Post
	if err := s.GetObject(postKey(id), &p); err != nil {
		return err
	}

	p.Score = &score
	p.Categories = categories
	p.ScoreReasoning = reasoning
	p.ScoredAt = time.Now().UnixMilli()
	p.ScoredBy = scoredBy

	return s.PutObject(postKey(id), &p)
}

// SearchPosts does a case-insensitive term match over post content,
// newest first. Any term hitting counts as a match.
func (s *DBStorage) SearchPosts(query string, minScore *int, limit int) ([]*core.Post, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	posts, err := unmarshalAll[core.Post](s, "post:")
	if err != nil {
		return nil, err
	}

	var matched []*core.Post
	for _, p := range posts {
		content := strings.ToLower(p.Content)
		hit := false
		for _, term := range terms {
			if strings.Contains(content, term) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		if minScore != nil && (p.Score == nil || *p.Score < *minScore) {
			continue
		}
		matched = append(matched, p)
	}

	sortByCreatedDesc(matched, func(p *core.Post) int64 { return p.CreatedAt })
	return limitSlice(matched, limit), nil
}
