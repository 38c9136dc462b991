package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// orderedSender records every call in sequence so ordering invariants can be
// asserted.
type orderedSender struct {
	mu      sync.Mutex
	calls   []string
	sendErr error
}

func (s *orderedSender) SendMessage(ctx context.Context, jid, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.calls = append(s.calls, "send:"+jid+":"+text)
	return nil
}

func (s *orderedSender) SetTyping(ctx context.Context, jid string, typing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typing {
		s.calls = append(s.calls, "typing-on:"+jid)
	} else {
		s.calls = append(s.calls, "typing-off:"+jid)
	}
	return nil
}

func (s *orderedSender) sequence() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

type turnDeps struct {
	sender *orderedSender
	resets int
	idles  int
}

func newTurn(t *testing.T) (*Handler, *turnDeps) {
	t.Helper()
	d := &turnDeps{sender: &orderedSender{}}
	h := NewHandler(Deps{
		Channel:        d.sender,
		ChatJID:        "telegram:42",
		GroupName:      "family",
		ResetIdleTimer: func() { d.resets++ },
		NotifyIdle:     func() { d.idles++ },
	})
	return h, d
}

func TestVisibleTextSendsThenClearsTyping(t *testing.T) {
	h, d := newTurn(t)

	if err := h.Handle(context.Background(), Event{Result: "hi", Status: StatusSuccess}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	want := []string{"send:telegram:42:hi", "typing-off:telegram:42"}
	got := d.sender.sequence()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("wrong call order: got %v want %v", got, want)
	}
	if !h.State().OutputSentToUser {
		t.Error("OutputSentToUser should be set after a visible send")
	}
	if d.resets != 1 {
		t.Errorf("expected one idle reset, got %d", d.resets)
	}
	if d.idles != 1 {
		t.Errorf("expected one NotifyIdle on success, got %d", d.idles)
	}
}

func TestInternalOnlyEventIsInvisible(t *testing.T) {
	h, d := newTurn(t)

	if err := h.Handle(context.Background(), Event{Result: "<internal>thinking</internal>", Status: StatusSuccess}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := d.sender.sequence(); len(got) != 0 {
		t.Errorf("internal-only event must touch neither send nor typing, got %v", got)
	}
	if h.State().OutputSentToUser {
		t.Error("OutputSentToUser must stay false for internal-only output")
	}
	if d.resets != 1 {
		t.Errorf("internal chatter still postpones idle shutdown, resets=%d", d.resets)
	}
	if d.idles != 1 {
		t.Errorf("success status concludes the turn even when silent, idles=%d", d.idles)
	}
}

func TestInternalMarkupIsStrippedFromMixedText(t *testing.T) {
	h, d := newTurn(t)

	if err := h.Handle(context.Background(), Event{
		Result: "<internal>plan</internal>answer<internal>more</internal>",
		Status: StatusSuccess,
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := d.sender.sequence()
	if len(got) == 0 || got[0] != "send:telegram:42:answer" {
		t.Errorf("expected stripped visible text, got %v", got)
	}
}

func TestObjectResultIsSentAsCanonicalJSON(t *testing.T) {
	h, d := newTurn(t)

	if err := h.Handle(context.Background(), Event{Result: map[string]any{"a": 1}, Status: StatusSuccess}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := d.sender.sequence()
	if len(got) == 0 || got[0] != `send:telegram:42:{"a":1}` {
		t.Errorf("expected canonical JSON delivery, got %v", got)
	}
}

func TestErrorStatusAccumulatesWithoutSending(t *testing.T) {
	h, d := newTurn(t)

	if err := h.Handle(context.Background(), Event{Status: StatusError, Error: "agent crashed"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !h.State().HadError {
		t.Error("HadError should be set on error status")
	}
	if len(d.sender.sequence()) != 0 {
		t.Error("error status alone must not produce a channel send")
	}
	if d.resets != 0 {
		t.Error("no result present, idle timer must not be reset")
	}
	if d.idles != 0 {
		t.Error("NotifyIdle fires only on success status")
	}
}

func TestStateAccumulatesAcrossEvents(t *testing.T) {
	h, _ := newTurn(t)
	ctx := context.Background()

	_ = h.Handle(ctx, Event{Result: "first", Status: StatusSuccess})
	_ = h.Handle(ctx, Event{Status: StatusError, Error: "late failure"})
	_ = h.Handle(ctx, Event{Result: "more", Status: StatusSuccess})

	st := h.State()
	if !st.OutputSentToUser || !st.HadError {
		t.Errorf("flags must accumulate and never reset, got %+v", st)
	}
}

func TestSendFailureLeavesTypingRunning(t *testing.T) {
	h, d := newTurn(t)
	d.sender.sendErr = errors.New("channel down")

	err := h.Handle(context.Background(), Event{Result: "hi", Status: StatusSuccess})
	if err == nil {
		t.Fatal("expected send failure to surface")
	}
	if h.State().OutputSentToUser {
		t.Error("OutputSentToUser must not be set when the send failed")
	}
	for _, call := range d.sender.sequence() {
		if call == "typing-off:telegram:42" {
			t.Error("typing must not be cleared when nothing was delivered")
		}
	}
	if d.resets != 1 {
		t.Error("idle timer is still reset on output activity")
	}
	if d.idles != 1 {
		t.Error("success status still concludes the turn")
	}
}

func TestStripInternal(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<internal>x</internal>", ""},
		{"  <internal>x</internal>  ", ""},
		{"a <internal>x</internal> b", "a  b"},
		{"<internal>multi\nline</internal>tail", "tail"},
	}
	for _, tc := range cases {
		if got := StripInternal(tc.in); got != tc.want {
			t.Errorf("StripInternal(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
