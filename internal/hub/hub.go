// Package hub fans completed transfers out to peers. Everything else in the
// engine runs on the dispatch goroutine; the hub is where finished data is
// handed to other goroutines, so it is safe for concurrent use.
package hub

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.klb.dev/wlclip/internal/wlproto"
)

// Event kinds.
const (
	KindSelection = "selection"
	KindDrop      = "dnd"
)

// Event is one completed transfer.
type Event struct {
	Kind string
	Seat wlproto.ObjectID
	Mime string
	Data []byte
	Time time.Time
}

// Peer is anything that wants completed transfers.
type Peer interface {
	ID() string
	// Accepts lists the MIME types the peer wants. Empty means all.
	Accepts() []string
	// Send delivers an event to the peer. Must be non-blocking.
	Send(Event)
}

// KindPeer is an optional interface a Peer may implement to receive only
// some kinds of events.
type KindPeer interface {
	Peer
	Kinds() []string
}

// Hub routes events between the engine and registered peers.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	latest map[string]Event // kind → latest event
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{
		peers:  make(map[string]Peer),
		latest: make(map[string]Event),
	}
}

// Register adds a peer and immediately delivers the latest event of every
// kind it wants.
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	var backlog []Event
	for _, ev := range h.latest {
		if wants(p, ev) {
			backlog = append(backlog, ev)
		}
	}
	total := len(h.peers)
	h.mu.Unlock()

	slog.Info("peer registered", "component", "hub", "peer", p.ID(), "total", total)

	slices.SortFunc(backlog, func(a, b Event) int { return a.Time.Compare(b.Time) })
	for _, ev := range backlog {
		p.Send(ev)
	}
}

// Unregister removes a peer.
func (h *Hub) Unregister(p Peer) {
	h.mu.Lock()
	delete(h.peers, p.ID())
	total := len(h.peers)
	h.mu.Unlock()

	slog.Info("peer unregistered", "component", "hub", "peer", p.ID(), "total", total)
}

// Publish stores ev as the latest of its kind and fans it out to every peer
// that wants it except the origin.
func (h *Hub) Publish(ev Event, originID string) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.Lock()
	h.latest[ev.Kind] = ev
	var targets []Peer
	for id, p := range h.peers {
		if id != originID && wants(p, ev) {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()

	LogEvent("transfer completed", ev)
	for _, p := range targets {
		p.Send(ev)
	}
}

// Latest returns the most recent event of kind, if its MIME type is in
// accept. An empty accept matches anything.
func (h *Hub) Latest(kind string, accept []string) (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, ok := h.latest[kind]
	if !ok || !accepted(ev.Mime, accept) {
		return Event{}, false
	}
	return ev, true
}

// Peers returns the ids of all registered peers, sorted.
func (h *Hub) Peers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.peers))
	for id := range h.peers {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func wants(p Peer, ev Event) bool {
	if kp, ok := p.(KindPeer); ok && !slices.Contains(kp.Kinds(), ev.Kind) {
		return false
	}
	return accepted(ev.Mime, p.Accepts())
}

// accepted reports whether mime is in accept; an empty accept matches all.
func accepted(mime string, accept []string) bool {
	return len(accept) == 0 || slices.Contains(accept, mime)
}
