// Package stream turns the sequence of partial agent-output events for one
// conversation turn into ordered, exactly-once channel side effects.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Event statuses produced by the agent process.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Event is one partial or final output event for the active turn.
// Result may be a string, an arbitrary JSON value, or absent.
type Event struct {
	Result any    `json:"result,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Sender is the channel capability the dispatcher drives.
type Sender interface {
	SendMessage(ctx context.Context, jid, text string) error
	SetTyping(ctx context.Context, jid string, typing bool) error
}

// Deps are the collaborators for one turn. Channel and ChatJID are required;
// ResetIdleTimer and NotifyIdle are optional.
type Deps struct {
	Channel   Sender
	ChatJID   string
	GroupName string
	// ResetIdleTimer postpones idle shutdown. Called on any output
	// activity, visible or not.
	ResetIdleTimer func()
	// NotifyIdle signals that the turn concluded and the idle countdown
	// may resume.
	NotifyIdle func()
	Logger     *slog.Logger
}

// State is the accumulated per-turn bookkeeping. Flags only ever accumulate
// within one handler's lifetime.
type State struct {
	OutputSentToUser bool
	HadError         bool
}

// Handler processes the events of one turn. It is owned by a single
// goroutine and is not safe for concurrent use.
type Handler struct {
	deps  Deps
	state State
	log   *slog.Logger
}

// NewHandler creates the per-turn handler. The owner discards it when the
// turn ends; state never resets.
func NewHandler(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{deps: deps, log: log}
}

// State returns the accumulated turn state.
func (h *Handler) State() State {
	return h.state
}

// internalRe matches the internal-reasoning wrapper that is stripped from
// user-visible output.
var internalRe = regexp.MustCompile(`(?s)<internal>.*?</internal>`)

// StripInternal removes internal-reasoning spans and surrounding whitespace.
// An event whose text is empty after stripping is invisible to the user.
func StripInternal(text string) string {
	return strings.TrimSpace(internalRe.ReplaceAllString(text, ""))
}

// Handle applies one event. Ordering is strict: visible text is sent before
// the typing indicator is cleared, and an all-internal event touches neither
// so the indicator keeps running.
func (h *Handler) Handle(ctx context.Context, ev Event) error {
	var sendErr error

	if ev.Result != nil {
		text, err := renderResult(ev.Result)
		if err != nil {
			h.log.Warn("Agent output not renderable", "group", h.deps.GroupName, "error", err)
		} else if visible := StripInternal(text); visible != "" {
			if err := h.deps.Channel.SendMessage(ctx, h.deps.ChatJID, visible); err != nil {
				sendErr = fmt.Errorf("send agent output: %w", err)
			} else {
				// Clearing typing before the message lands would show
				// "done" before content arrives.
				if err := h.deps.Channel.SetTyping(ctx, h.deps.ChatJID, false); err != nil {
					h.log.Warn("Typing clear failed", "group", h.deps.GroupName, "error", err)
				}
				h.state.OutputSentToUser = true
			}
		}

		// Any output activity, including internal-only chatter,
		// postpones idle shutdown.
		if h.deps.ResetIdleTimer != nil {
			h.deps.ResetIdleTimer()
		}
	}

	if ev.Status == StatusError {
		h.state.HadError = true
		if ev.Error != "" {
			h.log.Warn("Agent turn error", "group", h.deps.GroupName, "error", ev.Error)
		}
	}

	if ev.Status == StatusSuccess && h.deps.NotifyIdle != nil {
		h.deps.NotifyIdle()
	}

	return sendErr
}

// renderResult stringifies a non-string result as canonical JSON so object
// payloads are delivered deterministically.
func renderResult(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
