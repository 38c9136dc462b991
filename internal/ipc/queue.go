// Package ipc implements the directory-backed outbound message queue.
//
// Any process with filesystem access drops JSON files into a group's inbox
// (<root>/<groupFolder>/messages/*.json). A recurring poll drains each inbox:
// every file is parsed, authorized against the group registry, delivered
// through the injected send capability, and then deleted or moved to the
// quarantine lane. Filesystem state is the only bookkeeping; crash recovery
// is a directory listing.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BridgeClaw/BridgeClaw/internal/registry"
)

const (
	// ErrorsDir is the reserved quarantine directory under the queue root.
	// It is never scanned as a group folder.
	ErrorsDir = "errors"

	messagesDir = "messages"
)

// Message types understood by the queue. Anything else is treated as an
// outbound message and validated as such.
const (
	TypeMessage       = "message"
	TypeRegisterGroup = "register_group"
	TypeSyncGroups    = "sync_groups"
)

// Message is the on-disk unit dropped into a group's inbox.
// ChatJID and Text are required for outbound messages; Group carries the
// payload of register_group control files.
type Message struct {
	Type    string          `json:"type"`
	ChatJID string          `json:"chatJid"`
	Text    string          `json:"text"`
	Group   *registry.Group `json:"group,omitempty"`
}

// Outcome kinds reported through Deps.OnOutcome.
const (
	OutcomeSent        = "sent"
	OutcomeQuarantined = "quarantined"
	OutcomeBlocked     = "blocked"
	OutcomeDropped     = "dropped"
)

// Outcome describes the terminal result of processing one queued file.
type Outcome struct {
	Kind        string
	SourceGroup string
	ChatJID     string
	File        string
	Err         error
}

// Deps are the collaborators the queue dispatches through. SendMessage and
// RegisteredGroups are required; the rest are optional.
type Deps struct {
	// SendMessage delivers text to a JID. An error quarantines the file.
	SendMessage func(ctx context.Context, jid, text string) error
	// RegisteredGroups returns the current jid → group mapping. It is
	// called per message so registration changes apply on the next poll.
	RegisteredGroups func() map[string]registry.Group

	// RegisterGroup handles register_group control files from the main
	// group folder.
	RegisterGroup func(jid string, g registry.Group) error
	// SyncGroupMetadata refreshes group metadata for sync_groups control
	// files.
	SyncGroupMetadata func(ctx context.Context) error
	// AvailableGroups lists the groups known after a sync.
	AvailableGroups func() []registry.Group
	// WriteGroupsSnapshot rewrites the external groups snapshot after a
	// control file mutates the registry.
	WriteGroupsSnapshot func() error

	// OnOutcome, when set, observes every terminal per-file outcome.
	OnOutcome func(Outcome)
}

// Options configure a Watcher.
type Options struct {
	// Root is the queue root directory (<dataDir>/ipc).
	Root string
	// PollInterval is the fixed delay between poll ticks.
	PollInterval time.Duration
	// QuarantineUnauthorized moves blocked messages to the errors lane
	// instead of deleting them.
	QuarantineUnauthorized bool
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Watcher drains the queue root on a fixed interval. Ticks run inline in a
// single goroutine, so a slow tick delays the next one but never overlaps it.
type Watcher struct {
	opts Options
	deps Deps
	log  *slog.Logger

	mu      sync.Mutex
	running bool
}

// ErrAlreadyRunning is returned by Start when the watcher already has a
// live poll loop. The previous handle must be stopped first.
var ErrAlreadyRunning = errors.New("ipc: watcher already running")

// NewWatcher validates options and returns an unstarted watcher.
func NewWatcher(opts Options, deps Deps) (*Watcher, error) {
	if opts.Root == "" {
		return nil, errors.New("ipc: queue root is required")
	}
	if opts.PollInterval <= 0 {
		return nil, errors.New("ipc: poll interval must be positive")
	}
	if deps.SendMessage == nil {
		return nil, errors.New("ipc: SendMessage dependency is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{opts: opts, deps: deps, log: log}, nil
}

// Handle owns one running poll loop. Stop is idempotent and blocks until
// the in-flight tick, if any, has finished.
type Handle struct {
	once sync.Once
	stop func()
}

// Stop terminates the poll loop.
func (h *Handle) Stop() {
	h.once.Do(h.stop)
}

// Start launches the poll loop and returns its handle. Starting a watcher
// that is already running is a caller error.
func (w *Watcher) Start(ctx context.Context) (*Handle, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()
		w.log.Info("IPC watcher started", "root", w.opts.Root, "interval", w.opts.PollInterval)
		for {
			select {
			case <-ctx.Done():
				w.log.Info("IPC watcher stopped")
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()

	return &Handle{stop: func() {
		cancel()
		<-done
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}}, nil
}

// tick runs one full poll over every group inbox. No per-file failure ever
// escapes a tick.
func (w *Watcher) tick(ctx context.Context) {
	entries, err := os.ReadDir(w.opts.Root)
	if err != nil {
		if !os.IsNotExist(err) {
			w.log.Error("IPC queue root scan failed", "root", w.opts.Root, "error", err)
		}
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ErrorsDir {
			continue
		}
		w.drainGroup(ctx, entry.Name())
	}
}

func (w *Watcher) drainGroup(ctx context.Context, sourceGroup string) {
	dir := filepath.Join(w.opts.Root, sourceGroup, messagesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.log.Error("IPC group inbox scan failed", "source_group", sourceGroup, "error", err)
		}
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		w.processFile(ctx, sourceGroup, name)
	}
}

func (w *Watcher) processFile(ctx context.Context, sourceGroup, name string) {
	path := filepath.Join(w.opts.Root, sourceGroup, messagesDir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Error("Error processing IPC message", "file", name, "source_group", sourceGroup, "error", err)
		w.quarantine(sourceGroup, name, path, err)
		return
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		w.log.Error("Error processing IPC message", "file", name, "source_group", sourceGroup, "error", err)
		w.quarantine(sourceGroup, name, path, err)
		return
	}

	switch msg.Type {
	case TypeRegisterGroup, TypeSyncGroups:
		w.processControl(ctx, sourceGroup, name, path, &msg)
	default:
		w.processMessage(ctx, sourceGroup, name, path, &msg)
	}
}

func (w *Watcher) processMessage(ctx context.Context, sourceGroup, name, path string, msg *Message) {
	// Incomplete schema is not-a-message: drop without a send attempt,
	// without quarantine and without a log line.
	if msg.ChatJID == "" || msg.Text == "" {
		w.remove(path)
		w.outcome(Outcome{Kind: OutcomeDropped, SourceGroup: sourceGroup, File: name})
		return
	}

	if !w.authorized(sourceGroup, msg.ChatJID) {
		w.log.Warn("Unauthorized IPC message attempt blocked", "chat_jid", msg.ChatJID, "source_group", sourceGroup)
		if w.opts.QuarantineUnauthorized {
			w.moveToErrors(sourceGroup, name, path)
		} else {
			w.remove(path)
		}
		w.outcome(Outcome{Kind: OutcomeBlocked, SourceGroup: sourceGroup, ChatJID: msg.ChatJID, File: name})
		return
	}

	if err := w.deps.SendMessage(ctx, msg.ChatJID, msg.Text); err != nil {
		w.log.Error("Error processing IPC message", "file", name, "source_group", sourceGroup, "error", err)
		w.quarantine(sourceGroup, name, path, err)
		return
	}

	w.remove(path)
	w.log.Info("IPC message sent", "chat_jid", msg.ChatJID, "source_group", sourceGroup)
	w.outcome(Outcome{Kind: OutcomeSent, SourceGroup: sourceGroup, ChatJID: msg.ChatJID, File: name})
}

// processControl handles registry mutations. Only the main group folder may
// issue control files; anything else is a policy rejection.
func (w *Watcher) processControl(ctx context.Context, sourceGroup, name, path string, msg *Message) {
	if sourceGroup != registry.MainGroupFolder {
		w.log.Warn("Unauthorized IPC message attempt blocked", "chat_jid", msg.ChatJID, "source_group", sourceGroup)
		if w.opts.QuarantineUnauthorized {
			w.moveToErrors(sourceGroup, name, path)
		} else {
			w.remove(path)
		}
		w.outcome(Outcome{Kind: OutcomeBlocked, SourceGroup: sourceGroup, ChatJID: msg.ChatJID, File: name})
		return
	}

	switch msg.Type {
	case TypeRegisterGroup:
		if msg.ChatJID == "" || msg.Group == nil || w.deps.RegisterGroup == nil {
			w.remove(path)
			w.outcome(Outcome{Kind: OutcomeDropped, SourceGroup: sourceGroup, File: name})
			return
		}
		if err := w.deps.RegisterGroup(msg.ChatJID, *msg.Group); err != nil {
			w.log.Error("Error processing IPC message", "file", name, "source_group", sourceGroup, "error", err)
			w.quarantine(sourceGroup, name, path, err)
			return
		}
		w.writeSnapshot()
		w.remove(path)
		w.log.Info("IPC group registered", "chat_jid", msg.ChatJID, "folder", msg.Group.Folder)

	case TypeSyncGroups:
		if w.deps.SyncGroupMetadata != nil {
			if err := w.deps.SyncGroupMetadata(ctx); err != nil {
				w.log.Error("Error processing IPC message", "file", name, "source_group", sourceGroup, "error", err)
				w.quarantine(sourceGroup, name, path, err)
				return
			}
		}
		w.writeSnapshot()
		w.remove(path)
		count := 0
		if w.deps.AvailableGroups != nil {
			count = len(w.deps.AvailableGroups())
		}
		w.log.Info("IPC groups synced", "source_group", sourceGroup, "available", count)
	}
}

// authorized reports whether sourceGroup may address chatJID: the main group
// may address anything, every other group only its own registered JID.
func (w *Watcher) authorized(sourceGroup, chatJID string) bool {
	if sourceGroup == registry.MainGroupFolder {
		return true
	}
	if w.deps.RegisteredGroups == nil {
		return false
	}
	g, ok := w.deps.RegisteredGroups()[chatJID]
	return ok && g.Folder == sourceGroup
}

func (w *Watcher) writeSnapshot() {
	if w.deps.WriteGroupsSnapshot == nil {
		return
	}
	if err := w.deps.WriteGroupsSnapshot(); err != nil {
		w.log.Error("IPC groups snapshot write failed", "error", err)
	}
}

func (w *Watcher) quarantine(sourceGroup, name, path string, cause error) {
	w.moveToErrors(sourceGroup, name, path)
	w.outcome(Outcome{Kind: OutcomeQuarantined, SourceGroup: sourceGroup, File: name, Err: cause})
}

// moveToErrors relocates a file to <root>/errors/<group>-<name>. An existing
// quarantine file is never overwritten; collisions get a short uniqueness
// suffix before the extension.
func (w *Watcher) moveToErrors(sourceGroup, name, path string) {
	errDir := filepath.Join(w.opts.Root, ErrorsDir)
	if err := os.MkdirAll(errDir, 0o755); err != nil {
		w.log.Error("IPC quarantine dir create failed", "error", err)
		return
	}
	dst := filepath.Join(errDir, sourceGroup+"-"+name)
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(dst)
		dst = strings.TrimSuffix(dst, ext) + "-" + uuid.NewString()[:8] + ext
	}
	if err := os.Rename(path, dst); err != nil {
		w.log.Error("IPC quarantine move failed", "file", name, "source_group", sourceGroup, "error", err)
	}
}

func (w *Watcher) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.log.Error("IPC message remove failed", "file", filepath.Base(path), "error", err)
	}
}

func (w *Watcher) outcome(o Outcome) {
	if w.deps.OnOutcome != nil {
		w.deps.OnOutcome(o)
	}
}

// PendingByGroup counts undelivered messages per group folder. Used by the
// queue status command.
func PendingByGroup(root string) (map[string]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, err
	}
	out := make(map[string]int)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ErrorsDir {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, entry.Name(), messagesDir))
		if err != nil {
			continue
		}
		n := 0
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
				n++
			}
		}
		out[entry.Name()] = n
	}
	return out, nil
}

// Quarantined lists quarantine file names, sorted.
func Quarantined(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, ErrorsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Requeue returns a quarantined file to its source group's inbox. The owning
// group is recovered by matching the longest existing group folder prefix of
// the quarantine name, since folder names may themselves contain dashes.
func Requeue(root, quarantineName string) error {
	src := filepath.Join(root, ErrorsDir, quarantineName)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("requeue %s: %w", quarantineName, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	var group string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ErrorsDir {
			continue
		}
		prefix := entry.Name() + "-"
		if strings.HasPrefix(quarantineName, prefix) && len(entry.Name()) > len(group) {
			group = entry.Name()
		}
	}
	if group == "" {
		return fmt.Errorf("requeue %s: no matching group folder", quarantineName)
	}

	original := strings.TrimPrefix(quarantineName, group+"-")
	dir := filepath.Join(root, group, messagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, filepath.Join(dir, original)); err != nil {
		return fmt.Errorf("requeue %s: %w", quarantineName, err)
	}
	return nil
}
