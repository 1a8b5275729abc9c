package repo

import (
	"context"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
)

// ChatAPI is the chat platform's action surface. Implementations map
// platform error types into the domain taxonomy: retryable failures as
// domain.TransientError, permission/not-found failures as
// domain.PermanentError.
type ChatAPI interface {
	// PostMessage sends a text message to a channel
	PostMessage(ctx context.Context, channelID, content string) error

	// PostEmbed sends a rich embed to a channel
	PostEmbed(ctx context.Context, channelID string, embed domain.Embed) error

	// SendDM sends a direct message to a user
	SendDM(ctx context.Context, userID, content string) error

	// Kick removes a member from the guild
	Kick(ctx context.Context, userID, reason string) error

	// Ban bans a member, deleting deleteDays of message history
	Ban(ctx context.Context, userID, reason string, deleteDays int) error

	// Mute restricts a member's communication until the given time
	Mute(ctx context.Context, userID string, until time.Time, reason string) error

	// AddRole grants a role to a member
	AddRole(ctx context.Context, userID, roleID string) error

	// ListMembers returns a snapshot of all guild members
	ListMembers(ctx context.Context) ([]domain.Member, error)
}
