package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chorus-social/chorus/core"
)

func messageKey(id string) string { return "msg:" + id }

// CreateMessage persists a direct message. Sender and recipient must
// both exist; the caller is expected to have filled the conversation
// ID already (the gateway synthesizes one when absent).
func (s *DBStorage) CreateMessage(m *core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	m.FromHandle = strings.ToLower(m.FromHandle)
	m.ToHandle = strings.ToLower(m.ToHandle)

	return s.PutObject(messageKey(m.ID), m)
}

// GetMessage fetches a single message by ID.
func (s *DBStorage) GetMessage(id string) (*core.Message, error) {
	var m core.Message
	if err := s.GetObject(messageKey(id), &m); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

// GetMessagesFor returns every message a persona sent or received,
// newest first.
func (s *DBStorage) GetMessagesFor(handle string, limit int) ([]*core.Message, error) {
	handle = strings.ToLower(handle)
	msgs, err := unmarshalAll[core.Message](s, "msg:")
	if err != nil {
		return nil, err
	}

	var matched []*core.Message
	for _, m := range msgs {
		if m.FromHandle == handle || m.ToHandle == handle {
			matched = append(matched, m)
		}
	}
	sortByCreatedDesc(matched, func(m *core.Message) int64 { return m.CreatedAt })
	return limitSlice(matched, limit), nil
}

// GetUnreadMessages returns a persona's unread inbox, oldest first so
// wakes process messages in arrival order.
func (s *DBStorage) GetUnreadMessages(handle string, limit int) ([]*core.Message, error) {
	handle = strings.ToLower(handle)
	msgs, err := unmarshalAll[core.Message](s, "msg:")
	if err != nil {
		return nil, err
	}

	var unread []*core.Message
	for _, m := range msgs {
		if m.ToHandle == handle && !m.Read {
			unread = append(unread, m)
		}
	}
	sortByCreatedAsc(unread, func(m *core.Message) int64 { return m.CreatedAt })
	return limitSlice(unread, limit), nil
}

// GetConversation returns one DM thread in chronological order.
func (s *DBStorage) GetConversation(conversationID string, limit int) ([]*core.Message, error) {
	msgs, err := unmarshalAll[core.Message](s, "msg:")
	if err != nil {
		return nil, err
	}

	var matched []*core.Message
	for _, m := range msgs {
		if m.ConversationID == conversationID {
			matched = append(matched, m)
		}
	}
	sortByCreatedAsc(matched, func(m *core.Message) int64 { return m.CreatedAt })
	return limitSlice(matched, limit), nil
}

// GetConversations summarizes every DM thread a persona is part of,
// most recently active first.
func (s *DBStorage) GetConversations(handle string) ([]*core.ConversationSummary, error) {
	handle = strings.ToLower(handle)
	msgs, err := unmarshalAll[core.Message](s, "msg:")
	if err != nil {
		return nil, err
	}

	byConv := make(map[string]*core.ConversationSummary)
	for _, m := range msgs {
		if m.FromHandle != handle && m.ToHandle != handle {
			continue
		}
		other := m.FromHandle
		if m.FromHandle == handle {
			other = m.ToHandle
		}
		isUnread := m.ToHandle == handle && !m.Read

		summary, ok := byConv[m.ConversationID]
		if !ok {
			summary = &core.ConversationSummary{
				ConversationID: m.ConversationID,
				OtherHandle:    other,
			}
			byConv[m.ConversationID] = summary
		}
		summary.MessageCount++
		if isUnread {
			summary.UnreadCount++
		}
		if m.CreatedAt > summary.LastMessageAt {
			summary.LastMessageAt = m.CreatedAt
		}
	}

	summaries := make([]*core.ConversationSummary, 0, len(byConv))
	for _, s := range byConv {
		summaries = append(summaries, s)
	}
	sortByCreatedDesc(summaries, func(c *core.ConversationSummary) int64 { return c.LastMessageAt })
	return summaries, nil
}

// MarkMessageRead flips the read flag. Only the recipient may do so.
func (s *DBStorage) MarkMessageRead(id, handle string) (*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m core.Message
	if err := s.GetObject(messageKey(id), &m); err != nil {
		return nil, err
	}
	if m.ToHandle != strings.ToLower(handle) {
		return nil, ErrNotRecipient
	}
	if !m.Read {
		m.Read = true
		m.ReadAt = time.Now().UnixMilli()
		if err := s.PutObject(messageKey(id), &m); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
