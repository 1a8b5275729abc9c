package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cyberops7/garagebot/internal/biz/domain"
)

// DiscordClient adapts discordgo to the Gateway and ChatAPI interfaces.
// It maps raw gateway payloads into domain events and platform errors into
// the domain error taxonomy.
type DiscordClient struct {
	session *discordgo.Session
	guildID string
	handler func(domain.Event)
	log     *slog.Logger
}

// NewDiscordClient creates a Discord adapter for the given guild
func NewDiscordClient(token, guildID string, log *slog.Logger) (*DiscordClient, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &DiscordClient{
		session: session,
		guildID: guildID,
		log:     log,
	}, nil
}

// OnEvent registers the single event handler. Must be called before Connect.
func (c *DiscordClient) OnEvent(handler func(domain.Event)) {
	c.handler = handler
}

// Connect opens the gateway connection and wires the event handlers
func (c *DiscordClient) Connect(ctx context.Context) error {
	c.session.AddHandler(c.onMessageCreate)
	c.session.AddHandler(c.onGuildMemberAdd)
	c.session.AddHandler(c.onGuildMemberRemove)

	if err := c.session.Open(); err != nil {
		// no useful work can proceed without a gateway connection
		return domain.Fatal("gateway connect", err)
	}
	c.log.Info("gateway connected", "user", c.BotUser())
	return nil
}

// Disconnect closes the gateway connection
func (c *DiscordClient) Disconnect(ctx context.Context) error {
	return c.session.Close()
}

// Alive reports whether the gateway session has completed its handshake
func (c *DiscordClient) Alive() bool {
	return c.session.DataReady
}

// Latency returns the gateway heartbeat round-trip time
func (c *DiscordClient) Latency() time.Duration {
	return c.session.HeartbeatLatency()
}

// BotUser returns the connected bot account's username
func (c *DiscordClient) BotUser() string {
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.Username
	}
	return ""
}

func (c *DiscordClient) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if c.handler == nil || m.Author == nil {
		return
	}
	// ignore the bot's own messages
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID != "" && m.GuildID != c.guildID {
		return
	}

	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}
	c.handler(domain.MessagePosted{
		MessageID:   m.ID,
		UserID:      m.Author.ID,
		Username:    m.Author.Username,
		ChannelID:   m.ChannelID,
		Content:     m.Content,
		AuthorRoles: roles,
		Bot:         m.Author.Bot,
		Timestamp:   m.Timestamp,
	})
}

func (c *DiscordClient) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if c.handler == nil || m.User == nil || m.GuildID != c.guildID {
		return
	}
	c.handler(domain.MemberJoined{
		UserID:   m.User.ID,
		Username: m.User.Username,
		JoinedAt: m.JoinedAt,
	})
}

func (c *DiscordClient) onGuildMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if c.handler == nil || m.User == nil || m.GuildID != c.guildID {
		return
	}
	c.handler(domain.MemberLeft{
		UserID:   m.User.ID,
		Username: m.User.Username,
	})
}

// PostMessage sends a text message to a channel
func (c *DiscordClient) PostMessage(ctx context.Context, channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return mapDiscordErr("post message", err)
}

// PostEmbed sends a rich embed to a channel
func (c *DiscordClient) PostEmbed(ctx context.Context, channelID string, embed domain.Embed) error {
	fields := make([]*discordgo.MessageEmbedField, 0, len(embed.Fields))
	for _, f := range embed.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	_, err := c.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	return mapDiscordErr("post embed", err)
}

// SendDM opens (or reuses) the user's DM channel and sends a message
func (c *DiscordClient) SendDM(ctx context.Context, userID, content string) error {
	channel, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return mapDiscordErr("open dm", err)
	}
	_, err = c.session.ChannelMessageSend(channel.ID, content)
	return mapDiscordErr("send dm", err)
}

// Kick removes a member from the guild
func (c *DiscordClient) Kick(ctx context.Context, userID, reason string) error {
	err := c.session.GuildMemberDeleteWithReason(c.guildID, userID, reason)
	return mapDiscordErr("kick", err)
}

// Ban bans a member, deleting deleteDays of message history
func (c *DiscordClient) Ban(ctx context.Context, userID, reason string, deleteDays int) error {
	err := c.session.GuildBanCreateWithReason(c.guildID, userID, reason, deleteDays)
	return mapDiscordErr("ban", err)
}

// Mute restricts a member's communication until the given time
func (c *DiscordClient) Mute(ctx context.Context, userID string, until time.Time, reason string) error {
	err := c.session.GuildMemberTimeout(c.guildID, userID, &until)
	return mapDiscordErr("mute", err)
}

// AddRole grants a role to a member
func (c *DiscordClient) AddRole(ctx context.Context, userID, roleID string) error {
	err := c.session.GuildMemberRoleAdd(c.guildID, userID, roleID)
	return mapDiscordErr("add role", err)
}

// ListMembers returns a snapshot of all guild members, paginating the
// members endpoint
func (c *DiscordClient) ListMembers(ctx context.Context) ([]domain.Member, error) {
	var members []domain.Member
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.session.GuildMembers(c.guildID, after, 1000)
		if err != nil {
			return nil, mapDiscordErr("list members", err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			members = append(members, domain.Member{
				UserID:   m.User.ID,
				Username: m.User.Username,
				JoinedAt: m.JoinedAt,
				RoleIDs:  m.Roles,
				Bot:      m.User.Bot,
			})
			after = m.User.ID
		}
		if len(page) < 1000 {
			break
		}
	}
	return members, nil
}

// mapDiscordErr classifies platform errors into the domain taxonomy.
// 429 and 5xx are transient; permission and not-found failures are
// permanent. Anything unclassifiable is treated as transient so a flaky
// connection never turns into a dropped action.
func mapDiscordErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch code := restErr.Response.StatusCode; {
		case code == http.StatusTooManyRequests || code >= 500:
			return domain.Transient(op, err)
		case code == http.StatusUnauthorized:
			return domain.Fatal(op, err)
		case code >= 400:
			return domain.Permanent(op, err)
		}
	}
	return domain.Transient(op, err)
}
