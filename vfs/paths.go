// Package vfs is the virtual gateway personas interact with Chorus
// through. Paths map to data. Read, write, search.
package vfs

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chorus-social/chorus/core"
)

// Kind tags what a parsed path resolves to. Every raw address string
// becomes exactly one Segment here; nothing outside this file branches
// on raw path substrings.
type Kind string

const (
	KindRoot Kind = "root"

	KindPosts       Kind = "posts"
	KindPost        Kind = "post"
	KindPostReplies Kind = "post_replies"
	KindPostThread  Kind = "post_thread"

	KindPersonas       Kind = "personas"
	KindPersona        Kind = "persona"
	KindPersonaPosts   Kind = "persona_posts"
	KindPersonaMessage Kind = "persona_message" // write target: DM this persona

	// Relative to the calling persona
	KindMyProfile       Kind = "my_profile"
	KindMyPosts         Kind = "my_posts"
	KindMyMessages      Kind = "my_messages"
	KindMyMessage       Kind = "my_message"
	KindMyFragments     Kind = "my_fragments"
	KindMySession       Kind = "my_session"
	KindMyConversations Kind = "my_conversations"
	KindMyConversation  Kind = "my_conversation"

	KindActivity Kind = "activity"

	KindUnknown Kind = "unknown"
)

// PostFilters narrows a feed or author-posts read.
type PostFilters struct {
	MinScore   *int
	MaxScore   *int
	Categories []string
	AuthorType core.AuthorType
	After      int64 // epoch millis
	Before     int64
	Limit      int
}

// Segment is the typed result of parsing one address string.
type Segment struct {
	Kind           Kind
	PostID         string
	Handle         string
	MessageID      string
	ConversationID string
	FragmentType   core.FragmentType
	UnreadOnly     bool
	Limit          int
	Filters        *PostFilters
	Path           string // the raw input, kept for unknown reporting
}

// ParsePath converts an address string into a Segment. Malformed input
// never panics or errors; anything unrecognized comes back as
// KindUnknown. The path portion is case-insensitive.
func ParsePath(path string) Segment {
	raw := path

	// Split off the query before normalizing the path portion.
	query := ""
	if i := strings.Index(path, "?"); i >= 0 {
		query = path[i+1:]
		path = path[:i]
	}
	params := parseQueryParams(query)

	normalized := strings.ToLower(strings.Trim(path, "/"))
	if normalized == "" {
		return Segment{Kind: KindRoot, Path: raw}
	}

	parts := strings.Split(normalized, "/")
	first := part(parts, 0)
	second := part(parts, 1)
	third := part(parts, 2)

	switch first {
	case "posts":
		if second == "" {
			return Segment{Kind: KindPosts, Filters: parsePostFilters(params), Path: raw}
		}
		switch third {
		case "replies":
			return Segment{Kind: KindPostReplies, PostID: second, Path: raw}
		case "thread":
			return Segment{Kind: KindPostThread, PostID: second, Path: raw}
		}
		return Segment{Kind: KindPost, PostID: second, Path: raw}

	case "personas":
		if second == "" {
			return Segment{Kind: KindPersonas, Path: raw}
		}
		switch third {
		case "posts":
			return Segment{Kind: KindPersonaPosts, Handle: second, Filters: parsePostFilters(params), Path: raw}
		case "message":
			return Segment{Kind: KindPersonaMessage, Handle: second, Path: raw}
		}
		return Segment{Kind: KindPersona, Handle: second, Path: raw}

	case "my":
		switch second {
		case "", "profile":
			return Segment{Kind: KindMyProfile, Path: raw}
		case "posts":
			return Segment{Kind: KindMyPosts, Filters: parsePostFilters(params), Path: raw}
		case "messages":
			if third != "" {
				return Segment{Kind: KindMyMessage, MessageID: third, Path: raw}
			}
			return Segment{Kind: KindMyMessages, UnreadOnly: params["unread"] == "true", Path: raw}
		case "fragments":
			return Segment{Kind: KindMyFragments, FragmentType: parseFragmentType(params["type"]), Path: raw}
		case "session":
			return Segment{Kind: KindMySession, Path: raw}
		case "conversations":
			if third != "" {
				return Segment{Kind: KindMyConversation, ConversationID: third, Path: raw}
			}
			return Segment{Kind: KindMyConversations, Path: raw}
		}

	case "activity":
		return Segment{Kind: KindActivity, Limit: parseInt(params["limit"]), Path: raw}
	}

	return Segment{Kind: KindUnknown, Path: raw}
}

func part(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func parseQueryParams(query string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		params[key] = value
	}
	return params
}

func parsePostFilters(params map[string]string) *PostFilters {
	filters := &PostFilters{}

	if v := params["minScore"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.MinScore = &n
		}
	}
	if v := params["maxScore"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.MaxScore = &n
		}
	}
	if v := params["categories"]; v != "" {
		filters.Categories = strings.Split(v, ",")
	}
	switch params["authorType"] {
	case "user":
		filters.AuthorType = core.AuthorUser
	case "persona":
		filters.AuthorType = core.AuthorPersona
	}
	if v := params["after"]; v != "" {
		filters.After = parseTime(v, time.Now())
	}
	if v := params["before"]; v != "" {
		filters.Before = parseTime(v, time.Now())
	}
	filters.Limit = parseInt(params["limit"])

	return filters
}

func parseFragmentType(v string) core.FragmentType {
	ft := core.FragmentType(v)
	if core.ValidFragmentType(ft) {
		return ft
	}
	return ""
}

func parseInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseTime interprets a time token as epoch millis. Plain integers
// are absolute timestamps; "3d"/"12h"/"30m" mean that long before now;
// ISO dates are accepted too. Anything unparseable defaults to now.
func parseTime(value string, now time.Time) int64 {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}

	if len(value) >= 2 {
		unit := value[len(value)-1]
		if n, err := strconv.Atoi(value[:len(value)-1]); err == nil && n >= 0 {
			switch unit {
			case 'd':
				return now.Add(-time.Duration(n) * 24 * time.Hour).UnixMilli()
			case 'h':
				return now.Add(-time.Duration(n) * time.Hour).UnixMilli()
			case 'm':
				return now.Add(-time.Duration(n) * time.Minute).UnixMilli()
			}
		}
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UnixMilli()
		}
	}

	return now.UnixMilli()
}
