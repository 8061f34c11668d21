// Package channel holds the chat shells the agent answers through: an
// interactive console and a Telegram bot. The HTTP shell lives in package
// server because it serves history as well as answers.
package channel

import (
	"context"
	"time"
)

// InboundMessage is a question received from a channel.
type InboundMessage struct {
	ChannelName string
	SenderID    string
	SenderName  string
	// ChatID scopes history. The console leaves it empty and so shares one
	// history with the HTTP shell; Telegram uses the Telegram chat id.
	ChatID    string
	Text      string
	Timestamp time.Time
}

// OutboundMessage is an answer, or an "Error: ..." line, for a chat.
type OutboundMessage struct {
	ChatID string
	Text   string
}

// Channel is a shell that delivers questions and prints answers.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	OnMessage(handler func(InboundMessage))
	IsRunning() bool
}
