package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackChannel posts through the Slack Web API. It is send-only: inbound
// Slack traffic arrives through the events bridge, not this adapter.
type SlackChannel struct {
	api *slack.Client
	log *slog.Logger
}

// NewSlackChannel creates the Slack adapter.
func NewSlackChannel(botToken string, log *slog.Logger) *SlackChannel {
	if log == nil {
		log = slog.Default()
	}
	return &SlackChannel{api: slack.New(botToken), log: log}
}

func (c *SlackChannel) Name() string { return "slack" }

// Start verifies the token.
func (c *SlackChannel) Start(ctx context.Context) error {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.log.Info("Slack connected", "team", resp.Team, "bot", resp.User)
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

// SendMessage posts text to a channel or DM ID.
func (c *SlackChannel) SendMessage(ctx context.Context, address, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, address, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

// SetTyping is a no-op: the Slack Web API has no bot typing indicator.
func (c *SlackChannel) SetTyping(ctx context.Context, address string, typing bool) error {
	return nil
}
