// Package offer tracks wl_data_offer objects announced by the compositor.
//
// Offers live in a Registry keyed by object id. Releasing an offer removes
// it from the registry before the destroy request is sent, so an offer can
// never be destroyed twice.
package offer

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"

	"go.klb.dev/wlclip/internal/transfer"
	"go.klb.dev/wlclip/internal/wlproto"
)

// ErrReleased is returned by any operation on an offer after Release.
var ErrReleased = errors.New("offer: released")

// Offer is one inbound data offer.
type Offer struct {
	id     wlproto.ObjectID
	serial uint32
	mimes  []string

	sourceActions    wlproto.DndAction
	hasSourceActions bool
	action           wlproto.DndAction
	hasAction        bool

	released bool
	reg      *Registry
}

func (o *Offer) ID() wlproto.ObjectID { return o.id }

// Serial is the local serial assigned when the offer was announced. It is
// unrelated to compositor serials.
func (o *Offer) Serial() uint32 { return o.serial }

// MimeTypes returns the advertised types in the order they arrived.
func (o *Offer) MimeTypes() []string { return slices.Clone(o.mimes) }

func (o *Offer) HasMimeType(mime string) bool { return slices.Contains(o.mimes, mime) }

// SourceActions returns the actions the remote source supports, if it said.
func (o *Offer) SourceActions() (wlproto.DndAction, bool) {
	return o.sourceActions, o.hasSourceActions
}

// Action returns the action the compositor selected, if any.
func (o *Offer) Action() (wlproto.DndAction, bool) { return o.action, o.hasAction }

func (o *Offer) Released() bool { return o.released }

// Accept tells the source that mime would be accepted on drop. serial is the
// compositor serial of the enter event. An empty mime rejects the offer.
func (o *Offer) Accept(serial uint32, mime string) error {
	if o.released {
		return ErrReleased
	}
	o.reg.conn.Send(o.id, wlproto.OfferAccept{Serial: serial, MimeType: mime})
	return nil
}

// Reject is Accept with no type.
func (o *Offer) Reject(serial uint32) error { return o.Accept(serial, "") }

// SetActions announces the actions this client supports for the drag and the
// one it prefers.
func (o *Offer) SetActions(actions, preferred wlproto.DndAction) error {
	return o.send(wlproto.OfferSetActions{Actions: actions, Preferred: preferred})
}

// Finish signals that a drop has been fully handled. Only meaningful for
// drag-and-drop offers after the drop.
func (o *Offer) Finish() error { return o.send(wlproto.OfferFinish{}) }

// Receive requests the data for mime and returns the read end of the pipe.
func (o *Offer) Receive(mime string) (*transfer.ReadPipe, error) {
	if o.released {
		return nil, ErrReleased
	}
	return transfer.Receive(o.reg.conn, o.id, mime)
}

// ReceiveTo requests the data for mime to be written to fd. fd is closed
// locally once the request is queued.
func (o *Offer) ReceiveTo(mime string, fd int) error {
	if o.released {
		return ErrReleased
	}
	return transfer.ReceiveTo(o.reg.conn, o.id, mime, fd)
}

func (o *Offer) send(req wlproto.Request) error {
	if o.released {
		return ErrReleased
	}
	if err := wlproto.CheckVersion(req, o.reg.version); err != nil {
		return err
	}
	o.reg.conn.Send(o.id, req)
	return nil
}

// Handler receives offer events after the registry has recorded them.
type Handler interface {
	OfferMime(o *Offer, mime string)
	OfferSourceActions(o *Offer, actions wlproto.DndAction)
	OfferAction(o *Offer, action wlproto.DndAction)
}

// Registry owns every live offer on one connection.
type Registry struct {
	conn    wlproto.Conn
	version uint32
	offers  map[wlproto.ObjectID]*Offer
}

func NewRegistry(conn wlproto.Conn, version uint32) *Registry {
	return &Registry{conn: conn, version: version, offers: make(map[wlproto.ObjectID]*Offer)}
}

func (r *Registry) Version() uint32 { return r.version }

// Register starts tracking id with the given local serial. A live offer with
// the same id is forgotten without a destroy: the compositor only reuses an
// id once the client is done with it.
func (r *Registry) Register(id wlproto.ObjectID, serial uint32) *Offer {
	if old, ok := r.offers[id]; ok {
		slog.Warn("offer id reused while live", "component", "offer", "offer", id, "old_serial", old.serial)
		old.released = true
	}
	o := &Offer{id: id, serial: serial, reg: r}
	r.offers[id] = o
	return o
}

func (r *Registry) Get(id wlproto.ObjectID) (*Offer, bool) {
	o, ok := r.offers[id]
	return o, ok
}

// Len returns the number of live offers.
func (r *Registry) Len() int { return len(r.offers) }

// Offers returns the live offers ordered by local serial.
func (r *Registry) Offers() []*Offer {
	out := make([]*Offer, 0, len(r.offers))
	for _, o := range r.offers {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b *Offer) int { return cmp.Compare(a.serial, b.serial) })
	return out
}

// RecordMime appends mime unless it is already known, and reports whether
// it did.
func (r *Registry) RecordMime(o *Offer, mime string) (bool, error) {
	if o.released {
		return false, ErrReleased
	}
	if slices.Contains(o.mimes, mime) {
		return false, nil
	}
	o.mimes = append(o.mimes, mime)
	return true, nil
}

func (r *Registry) RecordSourceActions(o *Offer, actions wlproto.DndAction) error {
	if o.released {
		return ErrReleased
	}
	o.sourceActions, o.hasSourceActions = actions, true
	return nil
}

func (r *Registry) RecordAction(o *Offer, action wlproto.DndAction) error {
	if o.released {
		return ErrReleased
	}
	o.action, o.hasAction = action, true
	return nil
}

// Release forgets o and destroys the remote object.
func (r *Registry) Release(o *Offer) error {
	if o.released {
		return ErrReleased
	}
	o.released = true
	if r.offers[o.id] == o {
		delete(r.offers, o.id)
	}
	r.conn.Send(o.id, wlproto.OfferDestroy{})
	return nil
}

// Discard destroys an offer the compositor created for a data device that
// no longer exists. A registered offer with that id is released instead.
func (r *Registry) Discard(id wlproto.ObjectID) {
	if o, ok := r.offers[id]; ok {
		r.Release(o)
		return
	}
	r.conn.Send(id, wlproto.OfferDestroy{})
}

// HandleEvent records ev for offer id and then notifies h, which may be nil.
// It reports false when id is not a live offer.
func (r *Registry) HandleEvent(id wlproto.ObjectID, ev wlproto.OfferEvent, h Handler) bool {
	o, ok := r.offers[id]
	if !ok {
		slog.Debug("event for unknown offer", "component", "offer", "offer", id, "event", ev.Name())
		return false
	}
	switch ev := ev.(type) {
	case wlproto.OfferMime:
		added, _ := r.RecordMime(o, ev.MimeType)
		if !added {
			slog.Debug("duplicate offer type", "component", "offer", "offer", id, "mime", ev.MimeType)
		} else if h != nil {
			h.OfferMime(o, ev.MimeType)
		}
	case wlproto.OfferSourceActions:
		r.RecordSourceActions(o, ev.Actions)
		if h != nil {
			h.OfferSourceActions(o, ev.Actions)
		}
	case wlproto.OfferAction:
		r.RecordAction(o, ev.Action)
		if h != nil {
			h.OfferAction(o, ev.Action)
		}
	}
	return true
}
