package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/BridgeClaw/BridgeClaw/internal/stream"
)

// ReadTurn decodes newline-delimited JSON output events from the agent
// process and applies each one to the turn's handler. A line that fails to
// decode, or an event the handler cannot deliver, is logged and skipped;
// the stream keeps draining until EOF or context cancellation.
func ReadTurn(ctx context.Context, r io.Reader, h *stream.Handler, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev stream.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			log.Warn("Agent output line not valid JSON", "error", err)
			continue
		}
		if err := h.Handle(ctx, ev); err != nil {
			log.Error("Agent output delivery failed", "error", err)
		}
	}
	return scanner.Err()
}
