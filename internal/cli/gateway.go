package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BridgeClaw/BridgeClaw/internal/channels"
	"github.com/BridgeClaw/BridgeClaw/internal/config"
	"github.com/BridgeClaw/BridgeClaw/internal/events"
	"github.com/BridgeClaw/BridgeClaw/internal/ipc"
	"github.com/BridgeClaw/BridgeClaw/internal/registry"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the gateway daemon",
	RunE:  runGateway,
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := slog.Default()

	store, err := registry.Open(cfg.RegistryPath(), cfg.SnapshotPath())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	inbound := inboundWriter(cfg, store, log)
	chs := buildChannels(cfg, inbound, log)
	for _, ch := range chs {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", ch.Name(), err)
		}
	}
	router := channels.NewRouter(chs...)

	var publisher *events.Publisher
	if cfg.Events.KafkaBrokers != "" {
		publisher = events.NewPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic)
		defer publisher.Close()
	}

	watcher, err := ipc.NewWatcher(ipc.Options{
		Root:                   cfg.QueueRoot(),
		PollInterval:           cfg.Queue.PollInterval,
		QuarantineUnauthorized: cfg.Queue.QuarantineUnauthorized,
		Logger:                 log,
	}, ipc.Deps{
		SendMessage: router.SendMessage,
		RegisteredGroups: func() map[string]registry.Group {
			groups, err := store.Groups()
			if err != nil {
				log.Error("Registry lookup failed", "error", err)
				return nil
			}
			return groups
		},
		RegisterGroup:       store.Register,
		WriteGroupsSnapshot: store.WriteSnapshot,
		SyncGroupMetadata: func(ctx context.Context) error {
			return refreshGroupNames(ctx, store, chs, log)
		},
		AvailableGroups: func() []registry.Group {
			all, err := store.All()
			if err != nil {
				log.Error("Registry list failed", "error", err)
				return nil
			}
			return all
		},
		OnOutcome: func(o ipc.Outcome) {
			if publisher == nil {
				return
			}
			evt := events.QueueEvent{
				EventType:   o.Kind,
				SourceGroup: o.SourceGroup,
				ChatJID:     o.ChatJID,
				File:        o.File,
			}
			if o.Err != nil {
				evt.Error = o.Err.Error()
			}
			if err := publisher.Publish(ctx, evt); err != nil {
				log.Warn("Queue event publish failed", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	handle, err := watcher.Start(ctx)
	if err != nil {
		return err
	}

	log.Info("Gateway running", "queue_root", cfg.QueueRoot(), "channels", len(chs))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Gateway shutting down")
	handle.Stop()
	cancel()
	for _, ch := range chs {
		if err := ch.Stop(); err != nil {
			log.Warn("Channel stop failed", "channel", ch.Name(), "error", err)
		}
	}
	return nil
}

func buildChannels(cfg *config.Config, inbound channels.InboundFunc, log *slog.Logger) []channels.Channel {
	var chs []channels.Channel
	if cfg.Channels.Telegram.Enabled {
		chs = append(chs, channels.NewTelegramChannel(cfg.Channels.Telegram.Token, inbound, log))
	}
	if cfg.Channels.WhatsApp.Enabled {
		sessionDir := cfg.Channels.WhatsApp.SessionDir
		if sessionDir == "" {
			sessionDir = filepath.Join(cfg.Paths.DataDir, "whatsapp")
		}
		chs = append(chs, channels.NewWhatsAppChannel(sessionDir, inbound, log))
	}
	if cfg.Channels.Slack.Enabled {
		chs = append(chs, channels.NewSlackChannel(cfg.Channels.Slack.BotToken, log))
	}
	if cfg.Channels.Gmail.Enabled {
		chs = append(chs, channels.NewGmailChannel(cfg.Channels.Gmail.BridgeURL, cfg.Channels.Gmail.BridgeToken, log))
	}
	return chs
}

// refreshGroupNames pulls current group display names from every channel
// that can enumerate its chats and updates the registered entries. Channels
// without that capability are skipped; a registry with no matching JIDs is
// left untouched.
func refreshGroupNames(ctx context.Context, store *registry.Store, chs []channels.Channel, log *slog.Logger) error {
	registered, err := store.Groups()
	if err != nil {
		return err
	}

	listed := false
	for _, ch := range chs {
		lister, ok := ch.(channels.GroupLister)
		if !ok {
			continue
		}
		listed = true
		names, err := lister.ListGroups(ctx)
		if err != nil {
			return fmt.Errorf("list groups on %s: %w", ch.Name(), err)
		}
		for jid, name := range names {
			g, ok := registered[jid]
			if !ok || name == "" || g.Name == name {
				continue
			}
			if err := store.RefreshName(jid, name); err != nil {
				return err
			}
			log.Info("Group name refreshed", "chat_jid", jid, "name", name)
		}
	}
	if !listed {
		log.Info("Group metadata sync skipped", "reason", "no channel can enumerate groups")
	}
	return nil
}

// inboundWriter files incoming channel messages under
// <dataDir>/inbound/<groupFolder>/ for the external agent process.
// Messages from unregistered JIDs land in "unregistered".
func inboundWriter(cfg *config.Config, store *registry.Store, log *slog.Logger) channels.InboundFunc {
	return func(ctx context.Context, jid, senderID, text string) {
		folder := "unregistered"
		if groups, err := store.Groups(); err == nil {
			if g, ok := groups[jid]; ok {
				folder = g.Folder
			}
		}
		dir := filepath.Join(cfg.Paths.DataDir, "inbound", folder)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("Inbound dir create failed", "error", err)
			return
		}
		payload, _ := json.Marshal(map[string]string{
			"chatJid":   jid,
			"senderId":  senderID,
			"text":      text,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
		name := fmt.Sprintf("%d.json", time.Now().UnixNano())
		if err := os.WriteFile(filepath.Join(dir, name), payload, 0o644); err != nil {
			log.Error("Inbound write failed", "error", err)
		}
	}
}
