// Package clipapp is the application side of the data-device engine: it
// implements manager.Handler, auto-accepts drags it can read, pulls the
// selection, serves its own sources, and publishes finished transfers to a
// hub.
package clipapp

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.klb.dev/wlclip/internal/device"
	"go.klb.dev/wlclip/internal/evloop"
	"go.klb.dev/wlclip/internal/hub"
	"go.klb.dev/wlclip/internal/manager"
	"go.klb.dev/wlclip/internal/offer"
	"go.klb.dev/wlclip/internal/source"
	"go.klb.dev/wlclip/internal/transfer"
	"go.klb.dev/wlclip/internal/wlproto"
)

// PeerID is the origin id used when publishing to the hub.
const PeerID = "wayland"

// Config is the destination policy.
type Config struct {
	// Accept lists MIME types in order of preference.
	Accept []string
	// Actions are the drag actions this client supports as a destination.
	Actions wlproto.DndAction
	// Preferred is the action to ask for when the source allows several.
	Preferred wlproto.DndAction
}

// DefaultConfig accepts plain text and copies.
func DefaultConfig() Config {
	return Config{
		Accept:    []string{"text/plain;charset=utf-8", "text/plain", "UTF8_STRING"},
		Actions:   wlproto.ActionCopy | wlproto.ActionMove,
		Preferred: wlproto.ActionCopy,
	}
}

// Item is one representation of outgoing content.
type Item struct {
	Mime string
	Data []byte
}

// App holds application state. Like the manager, it belongs on the dispatch
// goroutine.
type App struct {
	cfg  Config
	mgr  *manager.Manager
	loop *evloop.Loop
	hub  *hub.Hub

	// chosen is the type accepted for the current drag, per device.
	chosen  map[wlproto.ObjectID]string
	content map[wlproto.ObjectID][]Item
}

var _ manager.Handler = (*App)(nil)

func New(cfg Config, mgr *manager.Manager, loop *evloop.Loop, h *hub.Hub) *App {
	return &App{
		cfg:     cfg,
		mgr:     mgr,
		loop:    loop,
		hub:     h,
		chosen:  make(map[wlproto.ObjectID]string),
		content: make(map[wlproto.ObjectID][]Item),
	}
}

// Dispatch routes one protocol event through the manager with the app as
// handler.
func (a *App) Dispatch(obj wlproto.ObjectID, ev wlproto.Event) bool {
	return a.mgr.Dispatch(obj, ev, a)
}

// Copy offers items as the selection of dev. serial is the serial of the
// input event that caused the copy.
func (a *App) Copy(dev *device.Device, serial uint32, items ...Item) (source.CopyPasteSource, error) {
	src, err := a.mgr.CreateCopyPasteSource(mimes(items))
	if err != nil {
		return src, err
	}
	a.content[src.ID()] = items
	if err := src.SetSelection(dev, serial); err != nil {
		return src, err
	}
	return src, a.mgr.Flush()
}

// StartDrag starts dragging items from origin with the given actions.
func (a *App) StartDrag(dev *device.Device, origin, icon wlproto.ObjectID, serial uint32, actions wlproto.DndAction, items ...Item) (source.DragSource, error) {
	src, err := a.mgr.CreateDragSource(mimes(items), actions)
	if err != nil {
		return src, err
	}
	a.content[src.ID()] = items
	if err := src.StartDrag(dev, origin, icon, serial); err != nil {
		return src, err
	}
	return src, a.mgr.Flush()
}

// Sources returns how many of our sources still have content to serve.
func (a *App) Sources() int { return len(a.content) }

func mimes(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Mime
	}
	return out
}

// pick returns the first configured type the offer has.
func (a *App) pick(o *offer.Offer) string {
	for _, m := range a.cfg.Accept {
		if o.HasMimeType(m) {
			return m
		}
	}
	return ""
}

// fetch receives mime from o through the loop and publishes the result.
// done, if set, runs after the transfer with its error.
func (a *App) fetch(d *device.Device, o *offer.Offer, kind, mime string, done func(error)) error {
	p, err := o.Receive(mime)
	if err != nil {
		return err
	}
	// Reading before the receive request reaches the compositor would
	// wait forever.
	if err := a.mgr.Flush(); err != nil {
		p.Close()
		return fmt.Errorf("flush before read: %w", err)
	}
	seat := d.Seat()
	_, err = transfer.Collect(a.loop, p, func(data []byte, err error) {
		if err == nil {
			a.hub.Publish(hub.Event{Kind: kind, Seat: seat, Mime: mime, Data: data}, PeerID)
		} else {
			slog.Warn("transfer failed", "component", "clipapp", "kind", kind, "mime", mime, "err", err)
		}
		if done != nil {
			done(err)
		}
	})
	if err != nil {
		p.Close()
	}
	return err
}

func (a *App) OfferMime(o *offer.Offer, mime string) {
	slog.Debug("offer type", "component", "clipapp", "offer", o.ID(), "mime", mime)
}

func (a *App) OfferSourceActions(o *offer.Offer, actions wlproto.DndAction) {
	slog.Debug("offer source actions", "component", "clipapp", "offer", o.ID(), "actions", actions)
}

func (a *App) OfferAction(o *offer.Offer, action wlproto.DndAction) {
	slog.Debug("offer action", "component", "clipapp", "offer", o.ID(), "action", action)
}

func (a *App) DataOffer(d *device.Device, o *offer.Offer) {
	slog.Debug("new offer", "component", "clipapp", "seat", d.Seat(), "offer", o.ID(), "serial", o.Serial())
}

// Enter accepts the best configured type, and negotiates the action when
// the source advertised any. It rejects the drag when either fails.
func (a *App) Enter(d *device.Device, e device.EnterInfo) {
	delete(a.chosen, d.ID())
	o := e.Offer
	if o == nil {
		return
	}
	mime := a.pick(o)
	if src, ok := o.SourceActions(); ok && mime != "" {
		action, ok := wlproto.Negotiate(src, a.cfg.Actions, a.cfg.Preferred)
		if !ok {
			slog.Debug("no common drag action", "component", "clipapp", "offer", o.ID(), "source", src, "destination", a.cfg.Actions)
			mime = ""
		} else if err := o.SetActions(src&a.cfg.Actions, action); err != nil && !errors.Is(err, wlproto.ErrUnsupported) {
			slog.Warn("set_actions failed", "component", "clipapp", "offer", o.ID(), "err", err)
		}
	}
	if mime == "" {
		if err := o.Reject(e.Serial); err != nil {
			slog.Warn("reject failed", "component", "clipapp", "offer", o.ID(), "err", err)
		}
		return
	}
	if err := o.Accept(e.Serial, mime); err != nil {
		slog.Warn("accept failed", "component", "clipapp", "offer", o.ID(), "mime", mime, "err", err)
		return
	}
	a.chosen[d.ID()] = mime
}

func (a *App) Leave(d *device.Device) {
	delete(a.chosen, d.ID())
}

func (a *App) Motion(d *device.Device, time uint32, x, y wlproto.Fixed) {}

// Drop receives the accepted type and finishes the drop once all data has
// arrived.
func (a *App) Drop(d *device.Device, dc device.DropContext) {
	mime := a.chosen[d.ID()]
	delete(a.chosen, d.ID())
	o := dc.Offer
	if mime == "" {
		slog.Debug("drop of a rejected offer", "component", "clipapp", "offer", o.ID())
		a.abandon(d, o)
		return
	}
	if action, ok := o.Action(); ok && action == wlproto.ActionAsk {
		src, _ := o.SourceActions()
		final, ok := wlproto.Negotiate(src, a.cfg.Actions&^wlproto.ActionAsk, a.cfg.Preferred)
		if !ok {
			slog.Debug("no action left after ask", "component", "clipapp", "offer", o.ID(), "source", src)
			a.abandon(d, o)
			return
		}
		if err := o.SetActions(final, final); err != nil {
			slog.Warn("set_actions after ask failed", "component", "clipapp", "offer", o.ID(), "err", err)
			a.abandon(d, o)
			return
		}
	}
	err := a.fetch(d, o, hub.KindDrop, mime, func(err error) {
		if err != nil {
			a.abandon(d, o)
			return
		}
		if err := d.FinishDrop(o); err != nil {
			slog.Warn("finish drop failed", "component", "clipapp", "offer", o.ID(), "err", err)
		}
	})
	if err != nil {
		slog.Warn("cannot receive drop", "component", "clipapp", "offer", o.ID(), "err", err)
		a.abandon(d, o)
	}
}

func (a *App) abandon(d *device.Device, o *offer.Offer) {
	if err := d.AbandonDrop(o); err != nil {
		slog.Warn("abandon drop failed", "component", "clipapp", "offer", o.ID(), "err", err)
	}
}

// Selection pulls the new selection if it carries a type we accept.
func (a *App) Selection(d *device.Device, o *offer.Offer) {
	if o == nil {
		slog.Debug("selection cleared", "component", "clipapp", "seat", d.Seat())
		return
	}
	mime := a.pick(o)
	if mime == "" {
		slog.Debug("selection has no accepted type", "component", "clipapp", "offer", o.ID(), "mimes", o.MimeTypes())
		return
	}
	if err := a.fetch(d, o, hub.KindSelection, mime, nil); err != nil {
		slog.Warn("cannot receive selection", "component", "clipapp", "offer", o.ID(), "err", err)
	}
}

func (a *App) SourceTarget(s *source.Source, mime string, ok bool) {
	slog.Debug("drag target", "component", "clipapp", "source", s.ID(), "mime", mime, "accepted", ok)
}

// SourceSend writes our content for mime. A drag that is not a copy, or a
// type we do not have, gets an empty transfer.
func (a *App) SourceSend(s *source.Source, mime string, w *transfer.WritePipe) {
	i := slices.IndexFunc(a.content[s.ID()], func(it Item) bool { return it.Mime == mime })
	if i < 0 || (s.Role() == source.RoleDrag && !s.Accepted()) {
		slog.Warn("not sending data", "component", "clipapp", "source", s.ID(), "mime", mime, "role", s.Role())
		w.Close()
		return
	}
	data := a.content[s.ID()][i].Data
	id := s.ID()
	if _, err := transfer.Feed(a.loop, w, data, func(err error) {
		if err != nil {
			slog.Warn("send failed", "component", "clipapp", "source", id, "mime", mime, "err", err)
		}
	}); err != nil {
		slog.Warn("cannot queue send", "component", "clipapp", "source", id, "err", err)
		w.Close()
	}
}

func (a *App) SourceCancelled(s *source.Source) {
	slog.Debug("source cancelled", "component", "clipapp", "source", s.ID(), "role", s.Role())
	delete(a.content, s.ID())
}

func (a *App) SourceDropPerformed(s *source.Source) {
	slog.Debug("drop performed", "component", "clipapp", "source", s.ID())
}

func (a *App) SourceFinished(s *source.Source) {
	delete(a.content, s.ID())
}

func (a *App) SourceAction(s *source.Source, action wlproto.DndAction) {
	slog.Debug("drag action", "component", "clipapp", "source", s.ID(), "action", action)
}
