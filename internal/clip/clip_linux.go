//go:build linux

package clip

import (
	"fmt"
	"log/slog"

	"golang.design/x/clipboard"
)

type linuxBackend struct{}

// New returns the host clipboard, or a Memory backend when no display is
// available. clipboard.Init is called here rather than in init() so that
// commands that never mirror don't trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, mirroring to memory", "component", "clip", "err", err)
		return NewMemory()
	}
	return linuxBackend{}
}

func (linuxBackend) Name() string { return "Linux clipboard" }

func (linuxBackend) Read() ([]Item, error) {
	var items []Item
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		items = append(items, Item{MIME: "text/plain", Data: text})
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		items = append(items, Item{MIME: "image/png", Data: img})
	}
	return items, nil
}

func (linuxBackend) Write(items []Item) error {
	for _, it := range items {
		switch it.MIME {
		case "text/plain":
			clipboard.Write(clipboard.FmtText, it.Data)
		case "image/png":
			clipboard.Write(clipboard.FmtImage, it.Data)
		default:
			return fmt.Errorf("unsupported MIME type: %s", it.MIME)
		}
	}
	return nil
}

func (linuxBackend) Close() {}
