// Package source tracks wl_data_source objects created by this client for
// copy-paste and drag-and-drop.
package source

import (
	"errors"
	"log/slog"
	"slices"

	"go.klb.dev/wlclip/internal/transfer"
	"go.klb.dev/wlclip/internal/wlproto"
)

// ErrRemoved is returned by operations on a source after it was removed.
var ErrRemoved = errors.New("source: removed")

// Role says what a source was created for.
type Role int

const (
	RoleCopyPaste Role = iota
	RoleDrag
)

func (r Role) String() string {
	switch r {
	case RoleCopyPaste:
		return "copy-paste"
	case RoleDrag:
		return "drag"
	}
	return "unknown"
}

// Device is the data device a selection or drag is issued on.
type Device interface {
	ID() wlproto.ObjectID
}

// Source is one outbound data source.
type Source struct {
	id      wlproto.ObjectID
	role    Role
	mimes   []string
	actions wlproto.DndAction
	data    any

	target    string
	hasTarget bool
	action    wlproto.DndAction
	hasAction bool
	accepted  bool

	serial    uint32
	hasSerial bool

	dropPerformed bool
	removed       bool
	reg           *Registry
}

func (s *Source) ID() wlproto.ObjectID { return s.id }
func (s *Source) Role() Role           { return s.role }

// MimeTypes returns the types advertised at creation.
func (s *Source) MimeTypes() []string { return slices.Clone(s.mimes) }

// Actions returns the actions advertised at creation.
func (s *Source) Actions() wlproto.DndAction { return s.actions }

// Data returns the value attached at creation.
func (s *Source) Data() any { return s.data }

// Target returns the type the destination last said it would accept.
func (s *Source) Target() (string, bool) { return s.target, s.hasTarget }

// Action returns the action the compositor last selected.
func (s *Source) Action() (wlproto.DndAction, bool) { return s.action, s.hasAction }

// Accepted reports whether a drag will copy. Before version 3 there is no
// action negotiation and every drag is a copy.
func (s *Source) Accepted() bool { return s.accepted }

func (s *Source) DropPerformed() bool { return s.dropPerformed }
func (s *Source) Removed() bool       { return s.removed }

// CopyPasteSource is a source created for the selection.
type CopyPasteSource struct{ *Source }

// SetSelection makes the source the selection of dev. serial is the serial of
// the input event that triggered the copy; it is kept for UnsetSelection.
func (s CopyPasteSource) SetSelection(dev Device, serial uint32) error {
	if s.removed {
		return ErrRemoved
	}
	s.serial, s.hasSerial = serial, true
	s.reg.conn.Send(dev.ID(), wlproto.SetSelection{Source: s.id, Serial: serial})
	return nil
}

// UnsetSelection clears the selection of dev using the serial recorded by
// SetSelection. Without one it does nothing. The source itself stays alive
// until the compositor cancels it.
func (s CopyPasteSource) UnsetSelection(dev Device) error {
	if !s.hasSerial {
		return nil
	}
	s.reg.conn.Send(dev.ID(), wlproto.SetSelection{Source: wlproto.Null, Serial: s.serial})
	return nil
}

// Serial returns the serial recorded by SetSelection.
func (s CopyPasteSource) Serial() (uint32, bool) { return s.serial, s.hasSerial }

// DragSource is a source created for drag-and-drop.
type DragSource struct{ *Source }

// StartDrag starts a drag of s from origin. icon may be wlproto.Null.
func (s DragSource) StartDrag(dev Device, origin, icon wlproto.ObjectID, serial uint32) error {
	if s.removed {
		return ErrRemoved
	}
	s.reg.conn.Send(dev.ID(), wlproto.StartDrag{Source: s.id, Origin: origin, Icon: icon, Serial: serial})
	return nil
}

// Handler receives source events after the registry has recorded them.
type Handler interface {
	// SourceTarget reports the type the destination would accept; ok is
	// false when it would accept none.
	SourceTarget(s *Source, mime string, ok bool)
	// SourceSend asks for mime to be written to w. The handler owns w and
	// must close it, directly or through the event loop.
	SourceSend(s *Source, mime string, w *transfer.WritePipe)
	// SourceCancelled is called after the source was removed.
	SourceCancelled(s *Source)
	SourceDropPerformed(s *Source)
	// SourceFinished is called after the source was removed.
	SourceFinished(s *Source)
	SourceAction(s *Source, action wlproto.DndAction)
}

// Registry owns every live source on one connection.
type Registry struct {
	conn    wlproto.Conn
	manager wlproto.ObjectID
	version uint32
	sources map[wlproto.ObjectID]*Source
}

// NewRegistry returns a registry creating sources through manager.
func NewRegistry(conn wlproto.Conn, manager wlproto.ObjectID, version uint32) *Registry {
	return &Registry{conn: conn, manager: manager, version: version, sources: make(map[wlproto.ObjectID]*Source)}
}

// Create creates a source advertising mimes. actions is sent with
// set_actions when non-zero and the manager version supports it.
func (r *Registry) Create(role Role, mimes []string, actions wlproto.DndAction, data any) *Source {
	s := &Source{
		id:      r.conn.NewID(),
		role:    role,
		mimes:   slices.Clone(mimes),
		actions: actions,
		data:    data,
		reg:     r,
	}
	r.conn.Send(r.manager, wlproto.CreateDataSource{ID: s.id})
	for _, m := range s.mimes {
		r.conn.Send(s.id, wlproto.SourceOffer{MimeType: m})
	}
	if actions != wlproto.ActionNone {
		req := wlproto.SourceSetActions{Actions: actions}
		if err := wlproto.CheckVersion(req, r.version); err != nil {
			slog.Debug("not announcing drag actions", "component", "source", "source", s.id, "err", err)
		} else {
			r.conn.Send(s.id, req)
		}
	}
	if role == RoleDrag && r.version < (wlproto.SourceSetActions{}).Since() {
		s.accepted = true
	}
	r.sources[s.id] = s
	return s
}

func (r *Registry) CreateCopyPaste(mimes []string) CopyPasteSource {
	return CopyPasteSource{r.Create(RoleCopyPaste, mimes, wlproto.ActionNone, nil)}
}

func (r *Registry) CreateDrag(mimes []string, actions wlproto.DndAction) DragSource {
	return DragSource{r.Create(RoleDrag, mimes, actions, nil)}
}

// StartInternalDrag starts a drag with no source. Only the originating client
// sees enter, leave and motion for it.
func (r *Registry) StartInternalDrag(dev Device, origin, icon wlproto.ObjectID, serial uint32) {
	r.conn.Send(dev.ID(), wlproto.StartDrag{Source: wlproto.Null, Origin: origin, Icon: icon, Serial: serial})
}

func (r *Registry) Get(id wlproto.ObjectID) (*Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

// Len returns the number of live sources.
func (r *Registry) Len() int { return len(r.sources) }

// Remove forgets s and destroys the remote object.
func (r *Registry) Remove(s *Source) error {
	if s.removed {
		return ErrRemoved
	}
	s.removed = true
	delete(r.sources, s.id)
	r.conn.Send(s.id, wlproto.SourceDestroy{})
	return nil
}

// HandleEvent records ev for source id and notifies h, which may be nil. A
// send event for an unknown source, or with no handler, has its fd closed so
// the reader sees an empty transfer. It reports false for unknown ids.
func (r *Registry) HandleEvent(id wlproto.ObjectID, ev wlproto.SourceEvent, h Handler) bool {
	s, ok := r.sources[id]
	if !ok {
		if send, isSend := ev.(wlproto.SourceSend); isSend {
			transfer.NewWritePipe(send.FD).Close()
		}
		slog.Debug("event for unknown source", "component", "source", "source", id, "event", ev.Name())
		return false
	}
	switch ev := ev.(type) {
	case wlproto.SourceTarget:
		s.target, s.hasTarget = ev.MimeType, ev.MimeType != ""
		if h != nil {
			h.SourceTarget(s, ev.MimeType, s.hasTarget)
		}
	case wlproto.SourceSend:
		w := transfer.NewWritePipe(ev.FD)
		if h == nil {
			w.Close()
			return true
		}
		h.SourceSend(s, ev.MimeType, w)
	case wlproto.SourceCancelled:
		r.Remove(s)
		if h != nil {
			h.SourceCancelled(s)
		}
	case wlproto.SourceDropPerformed:
		s.dropPerformed = true
		if h != nil {
			h.SourceDropPerformed(s)
		}
	case wlproto.SourceFinished:
		r.Remove(s)
		if h != nil {
			h.SourceFinished(s)
		}
	case wlproto.SourceAction:
		s.action, s.hasAction = ev.Action, true
		if s.role == RoleDrag {
			s.accepted = ev.Action&wlproto.ActionCopy != 0
		}
		if h != nil {
			h.SourceAction(s, ev.Action)
		}
	}
	return true
}
