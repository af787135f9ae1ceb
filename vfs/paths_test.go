package vfs

import (
	"testing"
	"time"

	"github.com/chorus-social/chorus/core"
)

func TestParsePathKinds(t *testing.T) {
	tests := []struct {
		path string
		kind Kind
	}{
		{"/", KindRoot},
		{"", KindRoot},
		{"/posts", KindPosts},
		{"/posts/abc123", KindPost},
		{"/posts/abc123/replies", KindPostReplies},
		{"/posts/abc123/thread", KindPostThread},
		{"/personas", KindPersonas},
		{"/personas/echo", KindPersona},
		{"/personas/echo/posts", KindPersonaPosts},
		{"/personas/echo/message", KindPersonaMessage},
		{"/my/profile", KindMyProfile},
		{"/my", KindMyProfile},
		{"/my/posts", KindMyPosts},
		{"/my/messages", KindMyMessages},
		{"/my/messages/m1", KindMyMessage},
		{"/my/fragments", KindMyFragments},
		{"/my/session", KindMySession},
		{"/my/conversations", KindMyConversations},
		{"/my/conversations/c1", KindMyConversation},
		{"/activity", KindActivity},
		{"/nonsense", KindUnknown},
		{"/my/nonsense", KindUnknown},
		{"/posts/abc/unknown", KindPost},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			seg := ParsePath(tt.path)
			if seg.Kind != tt.kind {
				t.Errorf("ParsePath(%q).Kind = %q, want %q", tt.path, seg.Kind, tt.kind)
			}
		})
	}
}

func TestParsePathCaseInsensitive(t *testing.T) {
	seg := ParsePath("/Posts/ABC/Thread")
	if seg.Kind != KindPostThread {
		t.Fatalf("Kind = %q, want %q", seg.Kind, KindPostThread)
	}
	if seg.PostID != "abc" {
		t.Errorf("PostID = %q, want lowercased %q", seg.PostID, "abc")
	}
}

func TestParsePathQueryParams(t *testing.T) {
	seg := ParsePath("/posts?minScore=70&maxScore=95&categories=art,meta&authorType=user&limit=5")
	if seg.Kind != KindPosts {
		t.Fatalf("Kind = %q, want %q", seg.Kind, KindPosts)
	}
	f := seg.Filters
	if f == nil {
		t.Fatal("expected filters")
	}
	if f.MinScore == nil || *f.MinScore != 70 {
		t.Errorf("MinScore = %v, want 70", f.MinScore)
	}
	if f.MaxScore == nil || *f.MaxScore != 95 {
		t.Errorf("MaxScore = %v, want 95", f.MaxScore)
	}
	if len(f.Categories) != 2 || f.Categories[0] != "art" || f.Categories[1] != "meta" {
		t.Errorf("Categories = %v", f.Categories)
	}
	if f.AuthorType != core.AuthorUser {
		t.Errorf("AuthorType = %q", f.AuthorType)
	}
	if f.Limit != 5 {
		t.Errorf("Limit = %d, want 5", f.Limit)
	}
}

func TestParsePathQueryCaseSurvives(t *testing.T) {
	// The query portion must keep its case even though the path does not.
	seg := ParsePath("/Posts?minScore=70")
	if seg.Kind != KindPosts {
		t.Fatalf("Kind = %q, want %q", seg.Kind, KindPosts)
	}
	if seg.Filters == nil || seg.Filters.MinScore == nil || *seg.Filters.MinScore != 70 {
		t.Errorf("minScore not parsed from mixed-case path")
	}
}

func TestParsePathUnreadFlag(t *testing.T) {
	if !ParsePath("/my/messages?unread=true").UnreadOnly {
		t.Error("unread=true not recognized")
	}
	if ParsePath("/my/messages").UnreadOnly {
		t.Error("unread should default to false")
	}
}

func TestParsePathFragmentType(t *testing.T) {
	if got := ParsePath("/my/fragments?type=insight").FragmentType; got != core.FragmentInsight {
		t.Errorf("FragmentType = %q, want %q", got, core.FragmentInsight)
	}
	if got := ParsePath("/my/fragments?type=bogus").FragmentType; got != "" {
		t.Errorf("invalid type should be dropped, got %q", got)
	}
}

func TestParsePathMalformedNeverPanics(t *testing.T) {
	for _, path := range []string{"///", "?", "/posts?", "/posts?&&=", "/posts?minScore=abc", "%%%", "/personas//posts"} {
		seg := ParsePath(path)
		if seg.Kind == "" {
			t.Errorf("ParsePath(%q) produced empty kind", path)
		}
	}
}

func TestParseTime(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if got := parseTime("1700000000000", now); got != 1700000000000 {
		t.Errorf("absolute epoch = %d", got)
	}
	if got := parseTime("3d", now); got != now.Add(-3*24*time.Hour).UnixMilli() {
		t.Errorf("3d = %d", got)
	}
	if got := parseTime("12h", now); got != now.Add(-12*time.Hour).UnixMilli() {
		t.Errorf("12h = %d", got)
	}
	if got := parseTime("30m", now); got != now.Add(-30*time.Minute).UnixMilli() {
		t.Errorf("30m = %d", got)
	}
	if got := parseTime("2026-07-01", now); got != time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("ISO date = %d", got)
	}
	// Unparseable falls back to now.
	if got := parseTime("whenever", now); got != now.UnixMilli() {
		t.Errorf("fallback = %d, want now", got)
	}
}
