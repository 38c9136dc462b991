package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramChannel drives the Telegram Bot API.
type TelegramChannel struct {
	token   string
	inbound InboundFunc
	log     *slog.Logger

	bot *tgbotapi.BotAPI
}

// NewTelegramChannel creates the Telegram adapter. inbound may be nil when
// the channel is send-only.
func NewTelegramChannel(token string, inbound InboundFunc, log *slog.Logger) *TelegramChannel {
	if log == nil {
		log = slog.Default()
	}
	return &TelegramChannel{token: token, inbound: inbound, log: log}
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Start connects the bot and, when an inbound handler is set, polls updates
// until the context is cancelled.
func (c *TelegramChannel) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(c.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	c.bot = bot
	c.log.Info("Telegram connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	if c.inbound == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || update.Message.Text == "" {
					continue
				}
				jid := c.Name() + ":" + strconv.FormatInt(update.Message.Chat.ID, 10)
				sender := strconv.FormatInt(update.Message.From.ID, 10)
				c.inbound(ctx, jid, sender, update.Message.Text)
			}
		}
	}()
	return nil
}

// Stop is a no-op: the updates loop ends when Start's context is cancelled,
// and calling StopReceivingUpdates twice panics.
func (c *TelegramChannel) Stop() error { return nil }

// SendMessage sends text to a numeric chat ID.
func (c *TelegramChannel) SendMessage(ctx context.Context, address, text string) error {
	if c.bot == nil {
		return fmt.Errorf("telegram channel not started")
	}
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", address, err)
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// SetTyping raises the "typing" chat action. Telegram clears the indicator
// itself when a message arrives, so typing=false needs no API call.
func (c *TelegramChannel) SetTyping(ctx context.Context, address string, typing bool) error {
	if !typing || c.bot == nil {
		return nil
	}
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", address, err)
	}
	if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("telegram chat action: %w", err)
	}
	return nil
}
