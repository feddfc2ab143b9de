// Package mirror implements the hub.Peer that copies received selections
// into the host clipboard.
package mirror

import (
	"context"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.klb.dev/wlclip/internal/clip"
	"go.klb.dev/wlclip/internal/hub"
)

const peerID = "mirror"

// textTypes are the Wayland text types written to the host as text/plain.
var textTypes = []string{"text/plain;charset=utf-8", "text/plain", "UTF8_STRING", "STRING", "TEXT"}

// Peer writes selection events to a clip.Backend.
type Peer struct {
	h       *hub.Hub
	backend clip.Backend
	sendCh  chan hub.Event

	mu        sync.RWMutex
	lastSeen  time.Time
	lastItems []clip.Item
}

// New creates the mirror peer but does not start it.
func New(h *hub.Hub, backend clip.Backend) *Peer {
	return &Peer{
		h:       h,
		backend: backend,
		sendCh:  make(chan hub.Event, 64),
	}
}

func (p *Peer) ID() string { return peerID }

func (p *Peer) Accepts() []string { return append(slices.Clone(textTypes), "image/png") }

// Kinds implements hub.KindPeer; drops are not mirrored.
func (p *Peer) Kinds() []string { return []string{hub.KindSelection} }

// LastSeen returns when the host clipboard was last written.
func (p *Peer) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}

// Send implements hub.Peer.
func (p *Peer) Send(ev hub.Event) {
	select {
	case p.sendCh <- ev:
	default:
		slog.Warn("mirror send channel full, dropping", "component", "mirror")
	}
}

// Run registers with the hub and applies events until ctx is done, then
// applies whatever is still queued.
func (p *Peer) Run(ctx context.Context) {
	p.h.Register(p)
	defer p.h.Unregister(p)

	slog.Info("clipboard mirror started", "component", "mirror", "backend", p.backend.Name())

	for {
		select {
		case <-ctx.Done():
			// Apply what was already delivered before stopping.
			for {
				select {
				case ev := <-p.sendCh:
					p.apply(ev)
				default:
					return
				}
			}
		case ev := <-p.sendCh:
			p.apply(ev)
		}
	}
}

func (p *Peer) apply(ev hub.Event) {
	mime := ev.Mime
	if slices.Contains(textTypes, mime) {
		mime = "text/plain"
	}
	items := []clip.Item{{MIME: mime, Data: ev.Data}}

	p.mu.Lock()
	if reflect.DeepEqual(items, p.lastItems) {
		p.mu.Unlock()
		return
	}
	p.lastItems = items
	p.lastSeen = time.Now()
	p.mu.Unlock()

	// Another client may have put the same content on the host clipboard.
	if current, err := p.backend.Read(); err != nil {
		slog.Debug("host clipboard read failed", "component", "mirror", "err", err)
	} else if reflect.DeepEqual(current, items) {
		slog.Debug("host clipboard already current", "component", "mirror", "seat", ev.Seat, "mime", mime)
		return
	}
	if err := p.backend.Write(items); err != nil {
		slog.Error("host clipboard write failed", "component", "mirror", "err", err)
		return
	}
	slog.Debug("host clipboard updated", "component", "mirror", "seat", ev.Seat, "mime", mime)
}
