package channels

import (
	"context"
	"fmt"
	"strings"
)

// Router multiplexes the gateway's channel-agnostic send capability across
// platform adapters by JID prefix: "telegram:12345" routes to the channel
// named "telegram" with address "12345".
type Router struct {
	byName map[string]Channel
}

// NewRouter builds a router over the given channels.
func NewRouter(chs ...Channel) *Router {
	byName := make(map[string]Channel, len(chs))
	for _, ch := range chs {
		byName[ch.Name()] = ch
	}
	return &Router{byName: byName}
}

// SendMessage delivers text to a prefixed JID.
func (r *Router) SendMessage(ctx context.Context, jid, text string) error {
	ch, address, err := r.resolve(jid)
	if err != nil {
		return err
	}
	return ch.SendMessage(ctx, address, text)
}

// SetTyping toggles the typing indicator for a prefixed JID.
func (r *Router) SetTyping(ctx context.Context, jid string, typing bool) error {
	ch, address, err := r.resolve(jid)
	if err != nil {
		return err
	}
	return ch.SetTyping(ctx, address, typing)
}

func (r *Router) resolve(jid string) (Channel, string, error) {
	name, address, ok := strings.Cut(jid, ":")
	if !ok || name == "" || address == "" {
		return nil, "", fmt.Errorf("unroutable jid %q: want <channel>:<address>", jid)
	}
	ch, ok := r.byName[name]
	if !ok {
		return nil, "", fmt.Errorf("no channel registered for %q", name)
	}
	return ch, address, nil
}
