package server

import (
	"context"
	"strings"

	"github.com/cyberops7/garagebot/internal/biz/domain"
)

const commandPrefix = "!"

// CommandFunc handles a chat command. The returned string, if non-empty,
// is posted back to the channel the command came from.
type CommandFunc func(ctx context.Context, msg domain.MessagePosted) string

// RegisterCommand adds a command to the registry. Commands are registered
// explicitly at startup; there is no runtime module scanning.
func (s *Server) RegisterCommand(name string, fn CommandFunc) {
	s.commands[strings.ToLower(name)] = fn
}

// RegisterBasicCommands registers the built-in command set
func RegisterBasicCommands(s *Server) {
	s.RegisterCommand("ping", func(ctx context.Context, msg domain.MessagePosted) string {
		return "Pong"
	})
	s.RegisterCommand("hello", func(ctx context.Context, msg domain.MessagePosted) string {
		return "Hello"
	})
}

// runCommand dispatches a command message and reports whether the message
// was a command
func (s *Server) runCommand(ctx context.Context, msg domain.MessagePosted) bool {
	if !strings.HasPrefix(msg.Content, commandPrefix) {
		return false
	}
	name, _, _ := strings.Cut(strings.TrimPrefix(msg.Content, commandPrefix), " ")
	fn, ok := s.commands[strings.ToLower(name)]
	if !ok {
		return false
	}

	s.log.Info("command received", "command", name, "user", msg.Username)
	reply := fn(ctx, msg)
	if reply == "" {
		return true
	}

	action := domain.Action{
		Kind:      domain.ActionPostMessage,
		Key:       domain.ActionKey("command", name, msg.MessageID),
		ChannelID: msg.ChannelID,
		Content:   reply,
	}
	if _, err := s.dispatcher.Dispatch(ctx, action); err != nil {
		s.log.Error("command reply failed", "command", name, "error", err)
	}
	return true
}
