package domain

import "time"

// Event is an occurrence produced by the gateway listener or the feed
// poller. Events are immutable once constructed and consumed exactly once
// by the moderation pipeline.
type Event interface {
	// Kind returns the event discriminator used for logging and routing
	Kind() string
}

// MemberJoined is emitted when a member joins the guild
type MemberJoined struct {
	UserID   string
	Username string
	JoinedAt time.Time
}

// MemberLeft is emitted when a member leaves the guild
type MemberLeft struct {
	UserID   string
	Username string
}

// MessagePosted is emitted for every guild message the gateway delivers.
// The burst tracker folds these into MessageBurst events.
type MessagePosted struct {
	MessageID   string
	UserID      string
	Username    string
	ChannelID   string
	Content     string
	AuthorRoles []string
	Bot         bool
	Timestamp   time.Time
}

// MessageBurst describes a user's message activity in a channel within a
// sliding window. Count includes the message that triggered the event.
type MessageBurst struct {
	UserID      string
	Username    string
	ChannelID   string
	Count       int
	Window      time.Duration
	AuthorRoles []string
	Content     string // snippet of the latest message, for audit logs
}

// FeedItem is emitted by the feed poller for an entry not yet announced
type FeedItem struct {
	FeedID    string
	ItemID    string
	Title     string
	URL       string
	Published time.Time
}

func (MemberJoined) Kind() string  { return "member_joined" }
func (MemberLeft) Kind() string    { return "member_left" }
func (MessagePosted) Kind() string { return "message_posted" }
func (MessageBurst) Kind() string  { return "message_burst" }
func (FeedItem) Kind() string      { return "feed_item" }
