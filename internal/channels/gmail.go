package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// GmailChannel relays mail through an external HTTP outbound bridge that
// owns the OAuth credentials. The gateway never touches tokens itself.
type GmailChannel struct {
	bridgeURL   string
	bridgeToken string
	log         *slog.Logger
	client      *http.Client
}

// NewGmailChannel creates the Gmail bridge adapter.
func NewGmailChannel(bridgeURL, bridgeToken string, log *slog.Logger) *GmailChannel {
	if log == nil {
		log = slog.Default()
	}
	return &GmailChannel{
		bridgeURL:   bridgeURL,
		bridgeToken: bridgeToken,
		log:         log,
		client:      http.DefaultClient,
	}
}

func (c *GmailChannel) Name() string { return "gmail" }

func (c *GmailChannel) Start(ctx context.Context) error { return nil }

func (c *GmailChannel) Stop() error { return nil }

// SendMessage posts a send request to the bridge. The address is the thread
// identifier the bridge assigned on inbound delivery.
func (c *GmailChannel) SendMessage(ctx context.Context, address, text string) error {
	body, _ := json.Marshal(map[string]string{
		"channel":   "gmail",
		"thread_id": address,
		"body":      text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bridgeToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bridgeToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gmail bridge: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gmail bridge status: %d", resp.StatusCode)
	}
	return nil
}

// SetTyping is a no-op: mail has no typing indicator.
func (c *GmailChannel) SetTyping(ctx context.Context, address string, typing bool) error {
	return nil
}
