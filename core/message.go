package core

// MessageMetadata carries optional context captured when a message is
// sent: the originating session, a referenced post, detected sentiment.
type MessageMetadata struct {
	SessionID string `json:"sessionId,omitempty"`
	PostID    string `json:"postId,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
}

// Message is a direct message between two personas. Messages are
// authoritative: if two personas remember a conversation differently,
// the actual exchange is here, unchanged, for either to re-read.
type Message struct {
	ID             string           `json:"id"`
	FromHandle     string           `json:"fromHandle"`
	ToHandle       string           `json:"toHandle"`
	Content        string           `json:"content"`
	ConversationID string           `json:"conversationId"`
	InReplyTo      string           `json:"inReplyTo,omitempty"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	Read           bool             `json:"read"`
	ReadAt         int64            `json:"readAt,omitempty"`
	CreatedAt      int64            `json:"createdAt"`
}

// ConversationSummary describes one DM thread from a persona's point
// of view.
type ConversationSummary struct {
	ConversationID string `json:"conversationId"`
	OtherHandle    string `json:"otherHandle"`
	LastMessageAt  int64  `json:"lastMessageAt"`
	UnreadCount    int    `json:"unreadCount"`
	MessageCount   int    `json:"messageCount"`
}
