package domain

import (
	"strings"
	"time"
)

// ActionKind discriminates dispatchable actions
type ActionKind string

const (
	ActionPostMessage ActionKind = "post_message"
	ActionLogEmbed    ActionKind = "log_embed"
	ActionSendDM      ActionKind = "send_dm"
	ActionKickMember  ActionKind = "kick_member"
	ActionBanMember   ActionKind = "ban_member"
	ActionMuteMember  ActionKind = "mute_member"
)

// Action is a side effect decided by the pipeline and executed by the
// dispatcher. Key is an idempotency key derived deterministically from the
// triggering event so repeated dispatch attempts can be correlated.
type Action struct {
	Kind      ActionKind
	Key       string
	ChannelID string // target channel for post/embed actions
	UserID    string // target user for DM/kick/ban/mute actions
	Content   string
	Embed     *Embed
	Reason    string
	Duration  time.Duration // mute duration
	DeleteDays int          // ban: days of message history to delete
	Moderation bool         // mirrored to the audit log when executed
}

// Embed is a rich log/announcement payload
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
}

// EmbedField is a single name/value pair in an embed
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Ack acknowledges a dispatched action
type Ack struct {
	Key    string
	DryRun bool
}

// ActionKey builds a deterministic idempotency key from event-derived parts
func ActionKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// AnnounceAction builds the announcement for a new feed item
func AnnounceAction(item FeedItem, channelID string) Action {
	return Action{
		Kind:      ActionPostMessage,
		Key:       ActionKey("announce", item.FeedID, item.ItemID),
		ChannelID: channelID,
		Content:   item.Title + "\n" + item.URL,
	}
}

// WelcomeAction builds the welcome DM for a newly joined member
func WelcomeAction(ev MemberJoined, rulesChannelID string) Action {
	return Action{
		Kind:    ActionSendDM,
		Key:     ActionKey("welcome", ev.UserID, ev.JoinedAt.UTC().Format(time.RFC3339)),
		UserID:  ev.UserID,
		Content: welcomeMessage(rulesChannelID),
	}
}

func welcomeMessage(rulesChannelID string) string {
	var sb strings.Builder
	sb.WriteString("Welcome to the server! ")
	if rulesChannelID != "" {
		sb.WriteString("Please read the rules in <#" + rulesChannelID + ">. ")
	} else {
		sb.WriteString("Please read the rules in the rules channel. ")
	}
	sb.WriteString("React to the first post there with :white_check_mark: to gain access to the rest of the channels.")
	return sb.String()
}

// KickAction builds a kick with the reason recorded for the audit log
func KickAction(userID, reason, key string) Action {
	return Action{
		Kind:       ActionKickMember,
		Key:        key,
		UserID:     userID,
		Reason:     reason,
		Moderation: true,
	}
}

// BanAction builds a ban that also deletes the user's recent messages
func BanAction(userID, reason, key string, deleteDays int) Action {
	return Action{
		Kind:       ActionBanMember,
		Key:        key,
		UserID:     userID,
		Reason:     reason,
		DeleteDays: deleteDays,
		Moderation: true,
	}
}

// MuteAction builds a timed communication restriction
func MuteAction(userID, reason, key string, d time.Duration) Action {
	return Action{
		Kind:       ActionMuteMember,
		Key:        key,
		UserID:     userID,
		Reason:     reason,
		Duration:   d,
		Moderation: true,
	}
}

// LogEmbedAction builds an audit log embed
func LogEmbedAction(channelID, title string, fields []EmbedField, key string) Action {
	return Action{
		Kind:      ActionLogEmbed,
		Key:       key,
		ChannelID: channelID,
		Embed: &Embed{
			Title:  title,
			Fields: fields,
		},
	}
}
