// Package device implements the per-seat wl_data_device session: the
// selection offer, the drag-and-drop destination state machine and the
// local serial counter shared by both.
package device

import (
	"errors"
	"log/slog"

	"go.klb.dev/wlclip/internal/offer"
	"go.klb.dev/wlclip/internal/wlproto"
)

var (
	// ErrNoDrop is returned by FinishDrop and AbandonDrop when the offer is
	// not a dropped offer waiting on the application.
	ErrNoDrop = errors.New("device: no drop pending for offer")
	// ErrReleased is returned by Release on a released device.
	ErrReleased = errors.New("device: released")
)

// State of the drag-and-drop destination machine.
type State int

const (
	StateIdle State = iota
	StateEntered
	StateAwaitingAction
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEntered:
		return "entered"
	case StateAwaitingAction:
		return "awaiting-action"
	}
	return "unknown"
}

// Drag is the destination-side state of a drag over one of our surfaces.
type Drag struct {
	// Offer is nil for a drag that surfaced no offer, such as another
	// client's internal drag.
	Offer   *offer.Offer
	Serial  uint32
	Surface wlproto.ObjectID
	X, Y    wlproto.Fixed
	// Time is the timestamp of the last motion; HasTime is false until the
	// first motion.
	Time    uint32
	HasTime bool
	Dropped bool
}

// EnterInfo is passed to Handler.Enter.
type EnterInfo struct {
	Offer   *offer.Offer
	Serial  uint32
	Surface wlproto.ObjectID
	X, Y    wlproto.Fixed
}

// DropContext is everything known about a drag at the moment of the drop.
type DropContext struct {
	Offer   *offer.Offer
	Serial  uint32
	Surface wlproto.ObjectID
	X, Y    wlproto.Fixed
	Time    uint32
	HasTime bool
}

// Handler receives device events after the session has updated its state.
// Offers passed to it stay owned by the device.
type Handler interface {
	// DataOffer announces an offer before any of its types are known.
	DataOffer(d *Device, o *offer.Offer)
	Enter(d *Device, e EnterInfo)
	Leave(d *Device)
	Motion(d *Device, time uint32, x, y wlproto.Fixed)
	// Drop hands a dropped offer to the application, which must receive
	// the data and then call FinishDrop or AbandonDrop.
	Drop(d *Device, dc DropContext)
	// Selection reports the new selection offer, or nil when it was
	// cleared.
	Selection(d *Device, o *offer.Offer)
}

// Device is the data device of one seat.
type Device struct {
	id      wlproto.ObjectID
	seat    wlproto.ObjectID
	conn    wlproto.Conn
	version uint32
	offers  *offer.Registry
	data    any

	serial    uint32
	pending   map[wlproto.ObjectID]*offer.Offer
	drag      *Drag
	awaiting  *Drag
	selection *offer.Offer
	released  bool
}

// New returns the session for an already created wl_data_device id. Offers
// are tracked in offers, which may be shared between devices.
func New(conn wlproto.Conn, id, seat wlproto.ObjectID, version uint32, offers *offer.Registry, data any) *Device {
	return &Device{
		id:      id,
		seat:    seat,
		conn:    conn,
		version: version,
		offers:  offers,
		data:    data,
		pending: make(map[wlproto.ObjectID]*offer.Offer),
	}
}

func (d *Device) ID() wlproto.ObjectID   { return d.id }
func (d *Device) Seat() wlproto.ObjectID { return d.seat }
func (d *Device) Data() any              { return d.data }
func (d *Device) Released() bool         { return d.released }

// Selection returns the current selection offer, or nil.
func (d *Device) Selection() *offer.Offer { return d.selection }

// Drag returns a copy of the current drag state.
func (d *Device) Drag() (Drag, bool) {
	if d.drag == nil {
		return Drag{}, false
	}
	return *d.drag, true
}

// State reports the drag-and-drop destination state. A dropped offer the
// application has not finished keeps the device in StateAwaitingAction even
// after the compositor sent leave, unless a new drag entered.
func (d *Device) State() State {
	switch {
	case d.drag != nil && !d.drag.Dropped:
		return StateEntered
	case d.drag != nil || d.awaiting != nil:
		return StateAwaitingAction
	}
	return StateIdle
}

// Pending returns offers that were announced but not yet promoted to the
// drag or selection.
func (d *Device) Pending() []*offer.Offer {
	var out []*offer.Offer
	for _, o := range d.offers.Offers() {
		if d.pending[o.ID()] == o {
			out = append(out, o)
		}
	}
	return out
}

// HandleEvent runs one device event through the session and then notifies
// h, which may be nil. Bookkeeping, including destroying superseded offers,
// happens whether or not there is a handler.
func (d *Device) HandleEvent(ev wlproto.DeviceEvent, h Handler) {
	if d.released {
		slog.Debug("event for released data device", "component", "device", "device", d.id, "event", ev.Name())
		if ev, ok := ev.(wlproto.DeviceDataOffer); ok {
			d.offers.Discard(ev.ID)
		}
		return
	}
	switch ev := ev.(type) {
	case wlproto.DeviceDataOffer:
		d.dataOffer(ev, h)
	case wlproto.DeviceEnter:
		d.enter(ev, h)
	case wlproto.DeviceLeave:
		d.leave(h)
	case wlproto.DeviceMotion:
		d.motion(ev, h)
	case wlproto.DeviceDrop:
		d.drop(h)
	case wlproto.DeviceSelection:
		d.setSelection(ev, h)
	}
}

func (d *Device) nextSerial() uint32 {
	s := d.serial
	d.serial++
	return s
}

func (d *Device) dataOffer(ev wlproto.DeviceDataOffer, h Handler) {
	o := d.offers.Register(ev.ID, d.nextSerial())
	d.pending[o.ID()] = o
	if h != nil {
		h.DataOffer(d, o)
	}
}

func (d *Device) enter(ev wlproto.DeviceEnter, h Handler) {
	var o *offer.Offer
	if ev.Offer.Valid() {
		var ok bool
		if o, ok = d.offers.Get(ev.Offer); !ok {
			slog.Debug("enter with unknown offer, treating as bare enter",
				"component", "device", "device", d.id, "offer", ev.Offer)
		}
	}
	if d.drag != nil {
		d.dropDrag(o)
	}
	if o != nil {
		d.promote(o)
	}
	d.drag = &Drag{Offer: o, Serial: ev.Serial, Surface: ev.Surface, X: ev.X, Y: ev.Y}
	if h != nil {
		h.Enter(d, EnterInfo{Offer: o, Serial: ev.Serial, Surface: ev.Surface, X: ev.X, Y: ev.Y})
	}
}

func (d *Device) leave(h Handler) {
	if d.drag != nil {
		d.dropDrag(nil)
	}
	if h != nil {
		h.Leave(d)
	}
}

// dropDrag tears down the current drag. A dropped offer is parked for the
// application instead of being destroyed. keep is an offer that is about to
// be reused and must survive.
func (d *Device) dropDrag(keep *offer.Offer) {
	g := d.drag
	d.drag = nil
	if g.Offer == nil || g.Offer == keep {
		return
	}
	if g.Dropped {
		if d.awaiting != nil && d.awaiting.Offer != g.Offer {
			d.release(d.awaiting.Offer)
		}
		d.awaiting = g
		return
	}
	d.release(g.Offer)
}

func (d *Device) motion(ev wlproto.DeviceMotion, h Handler) {
	g := d.drag
	if g == nil || g.Offer == nil || g.Dropped {
		slog.Debug("ignoring motion without an active drag offer", "component", "device", "device", d.id)
		return
	}
	g.X, g.Y = ev.X, ev.Y
	g.Time, g.HasTime = ev.Time, true
	if h != nil {
		h.Motion(d, ev.Time, ev.X, ev.Y)
	}
}

func (d *Device) drop(h Handler) {
	g := d.drag
	switch {
	case g == nil || g.Offer == nil:
		slog.Debug("ignoring drop without an offer", "component", "device", "device", d.id)
		return
	case g.Dropped:
		slog.Debug("ignoring repeated drop", "component", "device", "device", d.id, "offer", g.Offer.ID())
		return
	}
	g.Dropped = true
	if h != nil {
		h.Drop(d, DropContext{
			Offer:   g.Offer,
			Serial:  g.Serial,
			Surface: g.Surface,
			X:       g.X,
			Y:       g.Y,
			Time:    g.Time,
			HasTime: g.HasTime,
		})
	}
}

func (d *Device) setSelection(ev wlproto.DeviceSelection, h Handler) {
	var o *offer.Offer
	if ev.Offer.Valid() {
		var ok bool
		if o, ok = d.offers.Get(ev.Offer); !ok {
			slog.Debug("selection with unannounced offer, adopting it",
				"component", "device", "device", d.id, "offer", ev.Offer)
			o = d.offers.Register(ev.Offer, d.nextSerial())
		}
	}
	if old := d.selection; old != nil && old != o {
		d.selection = nil
		d.release(old)
	}
	if o != nil {
		d.promote(o)
	}
	d.selection = o
	if h != nil {
		h.Selection(d, o)
	}
}

// promote removes o from the pending set and discards offers announced
// before it that were never promoted.
func (d *Device) promote(o *offer.Offer) {
	delete(d.pending, o.ID())
	for id, p := range d.pending {
		if p.Serial() < o.Serial() {
			delete(d.pending, id)
			d.release(p)
		}
	}
}

func (d *Device) release(o *offer.Offer) {
	delete(d.pending, o.ID())
	if err := d.offers.Release(o); err != nil && !errors.Is(err, offer.ErrReleased) {
		slog.Warn("releasing offer failed", "component", "device", "offer", o.ID(), "err", err)
	}
}

func (d *Device) dropped(o *offer.Offer) (*Drag, bool) {
	if o == nil {
		return nil, false
	}
	if d.drag != nil && d.drag.Dropped && d.drag.Offer == o {
		return d.drag, true
	}
	if d.awaiting != nil && d.awaiting.Offer == o {
		return d.awaiting, true
	}
	return nil, false
}

func (d *Device) clearDropped(g *Drag) {
	if d.drag == g {
		d.drag = nil
	}
	if d.awaiting == g {
		d.awaiting = nil
	}
}

// FinishDrop tells the source the drop of o was handled and destroys o.
// Before version 3 there is no finish request and o is only destroyed.
func (d *Device) FinishDrop(o *offer.Offer) error {
	g, ok := d.dropped(o)
	if !ok {
		return ErrNoDrop
	}
	d.clearDropped(g)
	err := o.Finish()
	if errors.Is(err, wlproto.ErrUnsupported) {
		err = nil
	}
	d.release(o)
	return err
}

// AbandonDrop destroys a dropped offer without finishing it, which the
// source sees as a cancelled drag.
func (d *Device) AbandonDrop(o *offer.Offer) error {
	g, ok := d.dropped(o)
	if !ok {
		return ErrNoDrop
	}
	d.clearDropped(g)
	d.release(o)
	return nil
}

// Release destroys every offer the device holds and releases the device.
// The release request exists from version 2; older devices are only
// forgotten.
func (d *Device) Release() error {
	if d.released {
		return ErrReleased
	}
	if d.drag != nil && d.drag.Offer != nil {
		d.release(d.drag.Offer)
	}
	if d.awaiting != nil {
		d.release(d.awaiting.Offer)
	}
	if d.selection != nil {
		d.release(d.selection)
	}
	for _, o := range d.Pending() {
		d.release(o)
	}
	d.drag, d.awaiting, d.selection = nil, nil, nil
	d.released = true
	if err := wlproto.CheckVersion(wlproto.DeviceRelease{}, d.version); err == nil {
		d.conn.Send(d.id, wlproto.DeviceRelease{})
	}
	return nil
}
