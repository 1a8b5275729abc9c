package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/repo"
	"github.com/cyberops7/garagebot/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond

	// per-channel budget; Discord allows bursts but sustained sends need
	// pacing (the original paced at 5/s)
	defaultRateLimit = rate.Limit(5)
	defaultRateBurst = 5

	// rate-limit bucket for guild-wide member actions (kick/ban/mute)
	guildBucket = "guild"
	dmBucket    = "dm"
)

// DispatcherConfig controls dispatch behavior
type DispatcherConfig struct {
	DryRun         bool
	AuditChannelID string
	MaxRetries     int
	BaseBackoff    time.Duration
}

// Dispatcher executes decided actions against the chat platform with
// per-channel rate budgets, bounded retries with exponential backoff, and
// a best-effort audit mirror for every executed moderation action.
type Dispatcher struct {
	chat repo.ChatAPI
	cfg  DispatcherConfig
	log  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// sleep is swapped out by tests to observe backoff without waiting
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates an action dispatcher
func NewDispatcher(chat repo.ChatAPI, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	return &Dispatcher{
		chat:     chat,
		cfg:      cfg,
		log:      log.With("component", "dispatcher"),
		limiters: make(map[string]*rate.Limiter),
		sleep:    sleepCtx,
	}
}

// Dispatch executes an action. The call suspends while the target
// channel's rate budget is exhausted, retries transient failures with
// strictly increasing backoff, and returns a synthetic Ack in DRY_RUN
// mode without touching the platform.
func (d *Dispatcher) Dispatch(ctx context.Context, a domain.Action) (domain.Ack, error) {
	if err := d.limiterFor(bucketFor(a)).Wait(ctx); err != nil {
		return domain.Ack{}, fmt.Errorf("dispatch %s: %w", a.Kind, err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// strictly increasing: base, 2*base, 4*base, ...
			backoff := d.cfg.BaseBackoff << (attempt - 1)
			metrics.DispatchRetries.Inc()
			d.log.Warn("retrying action",
				"kind", a.Kind, "key", a.Key, "attempt", attempt, "backoff", backoff)
			if err := d.sleep(ctx, backoff); err != nil {
				return domain.Ack{}, err
			}
		}

		lastErr = d.execute(ctx, a)
		if lastErr == nil {
			d.log.Info("action dispatched",
				"kind", a.Kind, "key", a.Key, "dry_run", d.cfg.DryRun)
			metrics.ActionsDispatched.WithLabelValues(string(a.Kind), "ok").Inc()
			d.mirrorToAudit(ctx, a)
			return domain.Ack{Key: a.Key, DryRun: d.cfg.DryRun}, nil
		}
		if !domain.IsTransient(lastErr) {
			break
		}
	}

	result := "permanent"
	if domain.IsTransient(lastErr) {
		result = "transient"
	}
	metrics.ActionsDispatched.WithLabelValues(string(a.Kind), result).Inc()
	d.log.Error("action failed", "kind", a.Kind, "key", a.Key, "error", lastErr)
	return domain.Ack{}, fmt.Errorf("dispatch %s (%s): %w", a.Kind, a.Key, lastErr)
}

// execute performs the platform call. This is the single DRY_RUN toggle
// point: every action type passes through here, so the suppression is
// uniform.
func (d *Dispatcher) execute(ctx context.Context, a domain.Action) error {
	if d.cfg.DryRun {
		d.log.Info("DRY_RUN: suppressed external call",
			"kind", a.Kind, "key", a.Key, "channel", a.ChannelID, "user", a.UserID)
		return nil
	}

	switch a.Kind {
	case domain.ActionPostMessage:
		return d.chat.PostMessage(ctx, a.ChannelID, a.Content)
	case domain.ActionLogEmbed:
		return d.chat.PostEmbed(ctx, a.ChannelID, *a.Embed)
	case domain.ActionSendDM:
		return d.chat.SendDM(ctx, a.UserID, a.Content)
	case domain.ActionKickMember:
		return d.chat.Kick(ctx, a.UserID, a.Reason)
	case domain.ActionBanMember:
		return d.chat.Ban(ctx, a.UserID, a.Reason, a.DeleteDays)
	case domain.ActionMuteMember:
		return d.chat.Mute(ctx, a.UserID, time.Now().Add(a.Duration), a.Reason)
	default:
		return domain.Permanent("dispatch", fmt.Errorf("unknown action kind %q", a.Kind))
	}
}

// mirrorToAudit posts executed moderation actions to the audit log.
// Best effort: an audit failure never rolls back or fails the primary
// action.
func (d *Dispatcher) mirrorToAudit(ctx context.Context, a domain.Action) {
	if !a.Moderation || d.cfg.DryRun || d.cfg.AuditChannelID == "" {
		return
	}
	embed := domain.Embed{
		Title: fmt.Sprintf("Moderation: %s", a.Kind),
		Fields: []domain.EmbedField{
			{Name: "User", Value: a.UserID, Inline: true},
			{Name: "Reason", Value: a.Reason, Inline: false},
		},
	}
	if err := d.chat.PostEmbed(ctx, d.cfg.AuditChannelID, embed); err != nil {
		d.log.Warn("audit mirror failed", "kind", a.Kind, "key", a.Key, "error", err)
	}
}

// limiterFor returns the rate limiter for a bucket, creating it on first
// use
func (d *Dispatcher) limiterFor(bucket string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[bucket]
	if !ok {
		l = rate.NewLimiter(defaultRateLimit, defaultRateBurst)
		d.limiters[bucket] = l
	}
	return l
}

// bucketFor picks the rate-limit bucket for an action: channel actions
// budget per channel, member actions share the guild bucket, DMs share
// their own
func bucketFor(a domain.Action) string {
	switch a.Kind {
	case domain.ActionPostMessage, domain.ActionLogEmbed:
		return "channel:" + a.ChannelID
	case domain.ActionSendDM:
		return dmBucket
	default:
		return guildBucket
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
