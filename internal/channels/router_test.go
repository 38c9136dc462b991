package channels

import (
	"context"
	"testing"
)

type stubChannel struct {
	name     string
	lastJID  string
	lastText string
	typing   *bool
}

func (c *stubChannel) Name() string                    { return c.name }
func (c *stubChannel) Start(ctx context.Context) error { return nil }
func (c *stubChannel) Stop() error                     { return nil }

func (c *stubChannel) SendMessage(ctx context.Context, address, text string) error {
	c.lastJID = address
	c.lastText = text
	return nil
}

func (c *stubChannel) SetTyping(ctx context.Context, address string, typing bool) error {
	c.lastJID = address
	c.typing = &typing
	return nil
}

func TestRouterRoutesByPrefix(t *testing.T) {
	tg := &stubChannel{name: "telegram"}
	wa := &stubChannel{name: "whatsapp"}
	r := NewRouter(tg, wa)

	if err := r.SendMessage(context.Background(), "telegram:42", "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if tg.lastJID != "42" || tg.lastText != "hi" {
		t.Errorf("telegram got %q/%q", tg.lastJID, tg.lastText)
	}
	if wa.lastText != "" {
		t.Error("whatsapp must not receive telegram traffic")
	}

	if err := r.SendMessage(context.Background(), "whatsapp:1@s.whatsapp.net", "yo"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if wa.lastJID != "1@s.whatsapp.net" {
		t.Errorf("whatsapp address wrong: %q", wa.lastJID)
	}
}

func TestRouterSetTyping(t *testing.T) {
	tg := &stubChannel{name: "telegram"}
	r := NewRouter(tg)

	if err := r.SetTyping(context.Background(), "telegram:42", true); err != nil {
		t.Fatalf("SetTyping: %v", err)
	}
	if tg.typing == nil || !*tg.typing {
		t.Error("typing flag not forwarded")
	}
}

func TestRouterRejectsUnroutableJIDs(t *testing.T) {
	r := NewRouter(&stubChannel{name: "telegram"})

	for _, jid := range []string{"", "noprefix", "telegram:", ":42", "discord:42"} {
		if err := r.SendMessage(context.Background(), jid, "x"); err == nil {
			t.Errorf("jid %q should not route", jid)
		}
	}
}
