package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/repo"
)

// CleanupConfig controls the stale-member sweep
type CleanupConfig struct {
	MemberMaxAge   time.Duration // how long a member may remain without the member role
	MemberRoleID   string        // granted once rules are accepted
	BotRoleID      string        // bots are never swept
	AuditChannelID string
	KickMessage    string // DM sent before kicking; empty uses the default
}

const defaultKickMessage = "You have been removed from the server because you " +
	"joined over a week ago and haven't accepted the rules. If you believe " +
	"this was a mistake, feel free to rejoin and reach out to a mod."

// CleanupUsecase kicks members who joined too long ago without accepting
// the rules. Actions go through the dispatcher so rate limiting and
// DRY_RUN apply uniformly.
type CleanupUsecase struct {
	chat       repo.ChatAPI
	dispatcher Announcer
	cfg        CleanupConfig
	log        *slog.Logger
}

// NewCleanupUsecase creates the stale-member sweep
func NewCleanupUsecase(chat repo.ChatAPI, dispatcher Announcer, cfg CleanupConfig, log *slog.Logger) *CleanupUsecase {
	return &CleanupUsecase{
		chat:       chat,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With("component", "cleanup"),
	}
}

// KickCandidates filters the member snapshot down to members eligible for
// removal. Pure function: a member who already left is simply absent from
// the snapshot.
func KickCandidates(members []domain.Member, now time.Time, maxAge time.Duration, memberRoleID, botRoleID string) []domain.Member {
	cutoff := now.Add(-maxAge)
	var out []domain.Member
	for _, m := range members {
		if m.Bot || m.HasRole(botRoleID) || m.HasRole(memberRoleID) {
			continue
		}
		if m.JoinedBefore(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// Sweep runs one cleanup pass and returns the number of members kicked
func (c *CleanupUsecase) Sweep(ctx context.Context) (int, error) {
	members, err := c.chat.ListMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup: list members: %w", err)
	}

	candidates := KickCandidates(members, time.Now(), c.cfg.MemberMaxAge, c.cfg.MemberRoleID, c.cfg.BotRoleID)
	c.log.Info("cleanup sweep", "members", len(members), "candidates", len(candidates))

	kickMsg := c.cfg.KickMessage
	if kickMsg == "" {
		kickMsg = defaultKickMessage
	}

	kicked := 0
	for _, m := range candidates {
		if err := ctx.Err(); err != nil {
			return kicked, err
		}

		key := domain.ActionKey("cleanup", m.UserID, m.JoinedAt.UTC().Format(time.RFC3339))

		// best-effort DM before the kick; DMs may be disabled
		dm := domain.Action{
			Kind:    domain.ActionSendDM,
			Key:     domain.ActionKey("cleanup-dm", m.UserID),
			UserID:  m.UserID,
			Content: kickMsg,
		}
		if _, err := c.dispatcher.Dispatch(ctx, dm); err != nil {
			c.log.Warn("could not DM member before kick", "user", m.Username, "error", err)
		}

		reason := fmt.Sprintf("member has not accepted the rules in over %s", c.cfg.MemberMaxAge)
		if _, err := c.dispatcher.Dispatch(ctx, domain.KickAction(m.UserID, reason, key)); err != nil {
			c.log.Error("kick failed", "user", m.Username, "error", err)
			continue
		}
		kicked++
	}

	if c.cfg.AuditChannelID != "" {
		summary := domain.LogEmbedAction(c.cfg.AuditChannelID, "Task - Member Cleanup",
			[]domain.EmbedField{
				{Name: "Candidates", Value: fmt.Sprintf("%d", len(candidates)), Inline: true},
				{Name: "Kicked", Value: fmt.Sprintf("%d", kicked), Inline: true},
			},
			domain.ActionKey("cleanup-summary", time.Now().UTC().Format(time.RFC3339)))
		if _, err := c.dispatcher.Dispatch(ctx, summary); err != nil {
			c.log.Warn("cleanup summary log failed", "error", err)
		}
	}

	return kicked, nil
}
