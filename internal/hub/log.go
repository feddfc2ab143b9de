package hub

import (
	"context"
	"log/slog"
	"strings"
)

// LogEvent logs a transfer at INFO (kind, seat, mime, size) and at DEBUG a
// text preview of up to 120 chars.
func LogEvent(msg string, ev Event) {
	slog.Info(msg, "component", "hub", "kind", ev.Kind, "seat", ev.Seat, "mime", ev.Mime, "size_bytes", len(ev.Data))

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if strings.HasPrefix(ev.Mime, "text/") || ev.Mime == "UTF8_STRING" {
		preview := string(ev.Data)
		if len(preview) > 120 {
			preview = preview[:120] + "…"
		}
		slog.Debug("transfer preview", "component", "hub", "mime", ev.Mime, "preview", preview)
	}
}
