package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/usecase"
	"github.com/cyberops7/garagebot/internal/conf"
	"github.com/cyberops7/garagebot/internal/metrics"
)

// Dispatcher executes decided actions
type Dispatcher interface {
	Dispatch(ctx context.Context, action domain.Action) (domain.Ack, error)
}

// Server is the gateway event pipeline: it maps incoming events through
// the moderation evaluator and hands decided actions to the dispatcher.
type Server struct {
	dispatcher Dispatcher
	thresholds usecase.Thresholds
	channels   conf.ChannelsConfig
	bursts     *BurstTracker
	log        *slog.Logger

	// ctx is cancelled by Close so in-flight dispatches unwind during
	// shutdown instead of racing the gateway teardown
	ctx    context.Context
	cancel context.CancelFunc

	commands map[string]CommandFunc

	// gateway redelivery dedup cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // messageID -> first seen
}

// NewServer creates the event pipeline
func NewServer(dispatcher Dispatcher, thresholds usecase.Thresholds, channels conf.ChannelsConfig, log *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		dispatcher: dispatcher,
		thresholds: thresholds,
		channels:   channels,
		bursts:     NewBurstTracker(thresholds.BurstWindow),
		log:        log.With("component", "server"),
		ctx:        ctx,
		cancel:     cancel,
		commands:   make(map[string]CommandFunc),
		seenMsgs:   make(map[string]time.Time),
	}
}

// Close cancels the pipeline's context; dispatches already in flight
// observe the cancellation at their next suspension point
func (s *Server) Close() {
	s.cancel()
}

// HandleEvent consumes one gateway event. Registered as the gateway's
// event handler during Starting.
func (s *Server) HandleEvent(ev domain.Event) {
	metrics.GatewayEvents.WithLabelValues(ev.Kind()).Inc()
	ctx := s.ctx

	switch e := ev.(type) {
	case domain.MessagePosted:
		s.handleMessage(ctx, e)
	case domain.MemberJoined:
		s.handleMemberJoined(ctx, e)
	case domain.MemberLeft:
		s.log.Info("member left", "user", e.Username)
	default:
		s.log.Debug("unhandled event", "kind", ev.Kind())
	}
}

func (s *Server) handleMessage(ctx context.Context, msg domain.MessagePosted) {
	// the gateway may redeliver after reconnects
	if s.isMessageSeen(msg.MessageID) {
		s.log.Debug("duplicate message ignored", "message", msg.MessageID)
		return
	}
	s.markMessageSeen(msg.MessageID)

	if msg.Bot {
		return
	}

	if s.runCommand(ctx, msg) {
		return
	}

	burst := domain.MessageBurst{
		UserID:      msg.UserID,
		Username:    msg.Username,
		ChannelID:   msg.ChannelID,
		Count:       s.bursts.Observe(msg.UserID, msg.Timestamp),
		Window:      s.thresholds.BurstWindow,
		AuthorRoles: msg.AuthorRoles,
		Content:     truncate(msg.Content, 500),
	}
	verdict := usecase.Evaluate(burst, s.thresholds)
	s.applyVerdict(ctx, burst, verdict)
}

// applyVerdict turns an actionable verdict into dispatched actions, and
// exempt verdicts into audit log entries
func (s *Server) applyVerdict(ctx context.Context, burst domain.MessageBurst, v domain.Verdict) {
	if v.Exempt {
		s.log.Warn("privileged user triggered moderation rule, not acting",
			"user", burst.Username, "reason", v.Reason)
		s.auditLog(ctx, "Moderation - Privileged User Exempt", []domain.EmbedField{
			{Name: "User", Value: burst.Username, Inline: true},
			{Name: "Channel", Value: burst.ChannelID, Inline: true},
			{Name: "Rule", Value: v.Reason, Inline: false},
			{Name: "Message", Value: burst.Content, Inline: false},
		}, domain.ActionKey("exempt", burst.UserID, burst.ChannelID))
		return
	}
	if !v.IsActionable() {
		return
	}

	key := domain.ActionKey(string(v.Kind), burst.UserID, burst.ChannelID, v.Reason)
	var action domain.Action
	switch v.Kind {
	case domain.VerdictWarn:
		action = domain.Action{
			Kind:    domain.ActionSendDM,
			Key:     key,
			UserID:  burst.UserID,
			Content: fmt.Sprintf("Warning: %s", v.Reason),
			Reason:  v.Reason,
		}
		action.Moderation = true
	case domain.VerdictMute:
		action = domain.MuteAction(burst.UserID, v.Reason, key, v.Duration)
	case domain.VerdictBan:
		action = domain.BanAction(burst.UserID, v.Reason, key, 1)
	default:
		return
	}

	s.log.Warn("moderation action decided",
		"verdict", v.Kind, "user", burst.Username, "reason", v.Reason)
	if _, err := s.dispatcher.Dispatch(ctx, action); err != nil {
		s.log.Error("moderation action failed",
			"verdict", v.Kind, "user", burst.Username, "error", err)
		return
	}
	s.bursts.Forget(burst.UserID)
}

func (s *Server) handleMemberJoined(ctx context.Context, ev domain.MemberJoined) {
	s.log.Info("member joined", "user", ev.Username)

	if _, err := s.dispatcher.Dispatch(ctx, domain.WelcomeAction(ev, s.channels.Rules)); err != nil {
		// DMs may be disabled; never fatal
		s.log.Warn("could not send welcome message", "user", ev.Username, "error", err)
	}

	s.auditLog(ctx, "Member Joined", []domain.EmbedField{
		{Name: "User", Value: ev.Username, Inline: true},
		{Name: "Joined", Value: ev.JoinedAt.UTC().Format(time.RFC3339), Inline: true},
	}, domain.ActionKey("joined", ev.UserID, ev.JoinedAt.UTC().Format(time.RFC3339)))
}

// auditLog posts a best-effort embed to the audit channel
func (s *Server) auditLog(ctx context.Context, title string, fields []domain.EmbedField, key string) {
	if s.channels.AuditLog == "" {
		return
	}
	action := domain.LogEmbedAction(s.channels.AuditLog, title, fields, key)
	if _, err := s.dispatcher.Dispatch(ctx, action); err != nil {
		s.log.Warn("audit log failed", "title", title, "error", err)
	}
}

// isMessageSeen checks if a message was already processed
func (s *Server) isMessageSeen(messageID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	_, exists := s.seenMsgs[messageID]
	return exists
}

// markMessageSeen records a processed message and prunes expired entries
func (s *Server) markMessageSeen(messageID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	s.seenMsgs[messageID] = time.Now()

	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
