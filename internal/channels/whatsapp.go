package channels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// WhatsAppChannel is a native WhatsApp client backed by whatsmeow.
type WhatsAppChannel struct {
	sessionDir string
	inbound    InboundFunc
	log        *slog.Logger

	client    *whatsmeow.Client
	container *sqlstore.Container
}

// NewWhatsAppChannel creates the WhatsApp adapter. The session database and
// pairing QR file live under sessionDir.
func NewWhatsAppChannel(sessionDir string, inbound InboundFunc, log *slog.Logger) *WhatsAppChannel {
	if log == nil {
		log = slog.Default()
	}
	return &WhatsAppChannel{sessionDir: sessionDir, inbound: inbound, log: log}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

// Start opens the session store, pairs via QR when no session exists, and
// connects.
func (c *WhatsAppChannel) Start(ctx context.Context) error {
	if err := os.MkdirAll(c.sessionDir, 0o755); err != nil {
		return fmt.Errorf("create whatsapp session dir: %w", err)
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "WARN", true)

	dbPath := filepath.Join(c.sessionDir, "whatsapp.db")
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("init whatsapp db: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get whatsapp device: %w", err)
	}

	c.client = whatsmeow.NewClient(deviceStore, clientLog)
	c.client.AddEventHandler(c.eventHandler(ctx))

	if c.client.Store.ID == nil {
		qrChan, _ := c.client.GetQRChannel(ctx)
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("whatsapp connect: %w", err)
		}
		qrPath := filepath.Join(c.sessionDir, "whatsapp-qr.png")
		for evt := range qrChan {
			if evt.Event == "code" {
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err == nil {
					c.log.Info("WhatsApp pairing QR written", "path", qrPath)
				}
			} else {
				c.log.Info("WhatsApp login event", "event", evt.Event)
			}
		}
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp connect: %w", err)
	}
	c.log.Info("WhatsApp connected")
	return nil
}

func (c *WhatsAppChannel) Stop() error {
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.container != nil {
		c.container.Close()
	}
	return nil
}

// SendMessage sends text to a WhatsApp JID (e.g. "1234@s.whatsapp.net").
func (c *WhatsAppChannel) SendMessage(ctx context.Context, address, text string) error {
	if c.client == nil {
		return fmt.Errorf("whatsapp channel not started")
	}
	jid, err := types.ParseJID(address)
	if err != nil {
		return fmt.Errorf("invalid whatsapp jid %q: %w", address, err)
	}
	waMsg := &waE2E.Message{
		Conversation: proto.String(text),
	}
	if _, err := c.client.SendMessage(ctx, jid, waMsg); err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	return nil
}

// SetTyping toggles the composing presence for a chat.
func (c *WhatsAppChannel) SetTyping(ctx context.Context, address string, typing bool) error {
	if c.client == nil {
		return fmt.Errorf("whatsapp channel not started")
	}
	jid, err := types.ParseJID(address)
	if err != nil {
		return fmt.Errorf("invalid whatsapp jid %q: %w", address, err)
	}
	state := types.ChatPresenceComposing
	if !typing {
		state = types.ChatPresencePaused
	}
	return c.client.SendChatPresence(ctx, jid, state, types.ChatPresenceMediaText)
}

// ListGroups enumerates the WhatsApp groups this account is a member of,
// keyed by prefixed JID.
func (c *WhatsAppChannel) ListGroups(ctx context.Context) (map[string]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("whatsapp channel not started")
	}
	joined, err := c.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp joined groups: %w", err)
	}
	out := make(map[string]string, len(joined))
	for _, g := range joined {
		out[c.Name()+":"+g.JID.String()] = g.Name
	}
	return out, nil
}

func (c *WhatsAppChannel) eventHandler(ctx context.Context) func(any) {
	return func(evt any) {
		switch v := evt.(type) {
		case *events.Message:
			if c.inbound == nil || v.Info.IsFromMe {
				return
			}
			text := v.Message.GetConversation()
			if text == "" {
				text = v.Message.GetExtendedTextMessage().GetText()
			}
			if text == "" {
				return
			}
			jid := c.Name() + ":" + v.Info.Chat.String()
			c.inbound(ctx, jid, v.Info.Sender.User, text)
		case *events.Disconnected:
			c.log.Warn("WhatsApp disconnected")
		}
	}
}
