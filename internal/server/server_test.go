package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/usecase"
	"github.com/cyberops7/garagebot/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureDispatcher struct {
	mu      sync.Mutex
	actions []domain.Action
	ctxErrs []error
}

func (d *captureDispatcher) Dispatch(ctx context.Context, a domain.Action) (domain.Ack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, a)
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
	return domain.Ack{Key: a.Key}, nil
}

func (d *captureDispatcher) byKind(kind domain.ActionKind) []domain.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.Action
	for _, a := range d.actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.actions)
}

func newTestServer(d Dispatcher) *Server {
	th := usecase.Thresholds{
		BurstCount:      5,
		BurstWindow:     10 * time.Second,
		TrapChannelID:   "trap",
		PrivilegedRoles: []string{"role-mod"},
	}
	channels := conf.ChannelsConfig{
		Announce: "announce",
		AuditLog: "audit",
		Trap:     "trap",
		Rules:    "rules",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(d, th, channels, log)
}

func message(id, userID, channelID, content string, at time.Time) domain.MessagePosted {
	return domain.MessagePosted{
		MessageID: id,
		UserID:    userID,
		Username:  "user-" + userID,
		ChannelID: channelID,
		Content:   content,
		Timestamp: at,
	}
}

func TestHandleEvent_TrapChannelMessageBans(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)

	s.HandleEvent(message("m1", "u1", "trap", "hello", time.Now()))

	bans := d.byKind(domain.ActionBanMember)
	require.Len(t, bans, 1)
	assert.Equal(t, "u1", bans[0].UserID)
	assert.True(t, bans[0].Moderation)
	assert.Equal(t, 1, bans[0].DeleteDays)
}

func TestHandleEvent_BurstWarns(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)
	base := time.Now()

	for i := 0; i < 5; i++ {
		s.HandleEvent(message(fmt.Sprintf("m%d", i), "u1", "general", "spam", base.Add(time.Duration(i)*time.Second)))
	}

	assert.Empty(t, d.byKind(domain.ActionBanMember))
	warns := d.byKind(domain.ActionSendDM)
	require.Len(t, warns, 1)
	assert.Equal(t, "u1", warns[0].UserID)
	assert.Contains(t, warns[0].Content, "Warning")
	assert.True(t, warns[0].Moderation)
}

func TestHandleEvent_SlowPosterNotBanned(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)
	base := time.Now()

	// five messages spread over a minute never form a burst
	for i := 0; i < 5; i++ {
		s.HandleEvent(message(fmt.Sprintf("m%d", i), "u1", "general", "chatting", base.Add(time.Duration(i)*15*time.Second)))
	}

	assert.Zero(t, d.count())
}

func TestHandleEvent_DuplicateMessageIgnored(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)
	now := time.Now()

	// redelivery of the same message must not inflate the burst count
	for i := 0; i < 10; i++ {
		s.HandleEvent(message("m1", "u1", "general", "hello", now))
	}

	assert.Empty(t, d.byKind(domain.ActionBanMember))
}

func TestHandleEvent_BotMessagesIgnored(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)

	msg := message("m1", "u1", "trap", "hello", time.Now())
	msg.Bot = true
	s.HandleEvent(msg)

	assert.Zero(t, d.count())
}

func TestHandleEvent_PrivilegedExemptAudited(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)

	msg := message("m1", "u1", "trap", "just checking", time.Now())
	msg.AuthorRoles = []string{"role-mod"}
	s.HandleEvent(msg)

	assert.Empty(t, d.byKind(domain.ActionBanMember))
	embeds := d.byKind(domain.ActionLogEmbed)
	require.Len(t, embeds, 1)
	assert.Contains(t, embeds[0].Embed.Title, "Exempt")
}

func TestHandleEvent_MemberJoinedWelcomed(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)

	s.HandleEvent(domain.MemberJoined{UserID: "u1", Username: "alice", JoinedAt: time.Now()})

	dms := d.byKind(domain.ActionSendDM)
	require.Len(t, dms, 1)
	assert.Equal(t, "u1", dms[0].UserID)
	assert.Contains(t, dms[0].Content, "<#rules>")

	embeds := d.byKind(domain.ActionLogEmbed)
	require.Len(t, embeds, 1)
	assert.Equal(t, "Member Joined", embeds[0].Embed.Title)
}

func TestClose_CancelsDispatchContext(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)

	s.Close()
	s.HandleEvent(message("m1", "u1", "trap", "hello", time.Now()))

	// the dispatch still reaches the dispatcher, but with a cancelled
	// context so its blocking points unwind immediately
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.ctxErrs)
	assert.ErrorIs(t, d.ctxErrs[0], context.Canceled)
}

func TestRunCommand_PingRepliesPong(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)
	RegisterBasicCommands(s)

	s.HandleEvent(message("m1", "u1", "general", "!ping", time.Now()))

	posts := d.byKind(domain.ActionPostMessage)
	require.Len(t, posts, 1)
	assert.Equal(t, "Pong", posts[0].Content)
	assert.Equal(t, "general", posts[0].ChannelID)
}

func TestRunCommand_CaseInsensitiveWithArgs(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)
	RegisterBasicCommands(s)

	s.HandleEvent(message("m1", "u1", "general", "!PING now please", time.Now()))

	posts := d.byKind(domain.ActionPostMessage)
	require.Len(t, posts, 1)
	assert.Equal(t, "Pong", posts[0].Content)
}

func TestRunCommand_UnknownCommandFallsThrough(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)
	RegisterBasicCommands(s)

	s.HandleEvent(message("m1", "u1", "general", "!frobnicate", time.Now()))
	assert.Zero(t, d.count())
}

func TestRegisterCommand_Custom(t *testing.T) {
	d := &captureDispatcher{}
	s := newTestServer(d)
	s.RegisterCommand("echo", func(ctx context.Context, msg domain.MessagePosted) string {
		_, args, _ := strings.Cut(msg.Content, " ")
		return args
	})

	s.HandleEvent(message("m1", "u1", "general", "!echo hello world", time.Now()))

	posts := d.byKind(domain.ActionPostMessage)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello world", posts[0].Content)
}
