// Package channels contains the chat platform adapters behind the gateway's
// send capability.
package channels

import "context"

// Channel defines the interface for chat platforms (Telegram, WhatsApp, etc).
type Channel interface {
	// Name returns the channel name, which doubles as its JID prefix
	// (e.g. "telegram" routes "telegram:12345").
	Name() string
	// Start starts the channel connection/listener.
	Start(ctx context.Context) error
	// Stop stops the channel.
	Stop() error
	// SendMessage sends text to a chat address on this channel.
	SendMessage(ctx context.Context, address, text string) error
	// SetTyping toggles the typing indicator, where the platform has one.
	SetTyping(ctx context.Context, address string, typing bool) error
}

// InboundFunc receives messages arriving on a channel. jid is the fully
// prefixed address ("telegram:12345") so it can be used as a registry key
// and queue target directly.
type InboundFunc func(ctx context.Context, jid, senderID, text string)

// GroupLister is implemented by channels that can enumerate the group chats
// the account belongs to. Keys are fully prefixed JIDs, values the current
// display names.
type GroupLister interface {
	ListGroups(ctx context.Context) (map[string]string, error)
}
