// Package manager is the entry point to the data-device protocol: it holds
// the bound wl_data_device_manager, hands out sources and per-seat devices,
// and routes incoming events to the entity that owns them.
package manager

import (
	"errors"
	"fmt"
	"log/slog"

	"go.klb.dev/wlclip/internal/device"
	"go.klb.dev/wlclip/internal/offer"
	"go.klb.dev/wlclip/internal/source"
	"go.klb.dev/wlclip/internal/transfer"
	"go.klb.dev/wlclip/internal/wlproto"
)

// Supported wl_data_device_manager versions.
const (
	MinVersion = 1
	MaxVersion = 3
)

var (
	// ErrGlobalNotReady is returned until Bind has been called. Retry once
	// the registry has announced the global.
	ErrGlobalNotReady = errors.New("manager: wl_data_device_manager not bound yet")
	ErrAlreadyBound   = errors.New("manager: already bound")
	// ErrUnsupportedVersion is returned by Bind for versions outside
	// [MinVersion, MaxVersion].
	ErrUnsupportedVersion = errors.New("manager: unsupported version")
)

// Handler is implemented by the application state. One value receives
// every kind of event.
type Handler interface {
	offer.Handler
	source.Handler
	device.Handler
}

// Manager is not safe for concurrent use. Every method, and every event,
// belongs on the dispatch goroutine.
type Manager struct {
	conn wlproto.Conn

	bound   bool
	id      wlproto.ObjectID
	version uint32

	offers  *offer.Registry
	sources *source.Registry
	seats   map[wlproto.ObjectID]*device.Device
	devices map[wlproto.ObjectID]*device.Device
}

// New returns an unbound manager.
func New(conn wlproto.Conn) *Manager {
	return &Manager{
		conn:    conn,
		seats:   make(map[wlproto.ObjectID]*device.Device),
		devices: make(map[wlproto.ObjectID]*device.Device),
	}
}

// Bind records the manager global bound as id with version. It may succeed
// only once.
func (m *Manager) Bind(id wlproto.ObjectID, version uint32) error {
	if m.bound {
		return ErrAlreadyBound
	}
	if version < MinVersion || version > MaxVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if !id.Valid() {
		return errors.New("manager: bind with null id")
	}
	m.bound, m.id, m.version = true, id, version
	m.offers = offer.NewRegistry(m.conn, version)
	m.sources = source.NewRegistry(m.conn, id, version)
	slog.Info("data device manager bound", "component", "manager", "id", id, "version", version)
	return nil
}

// Handle returns the bound global, or ErrGlobalNotReady.
func (m *Manager) Handle() (wlproto.ObjectID, uint32, error) {
	if !m.bound {
		return wlproto.Null, 0, ErrGlobalNotReady
	}
	return m.id, m.version, nil
}

func (m *Manager) Bound() bool { return m.bound }

// Version returns the bound version, or 0.
func (m *Manager) Version() uint32 { return m.version }

func (m *Manager) CreateCopyPasteSource(mimes []string) (source.CopyPasteSource, error) {
	if !m.bound {
		return source.CopyPasteSource{}, ErrGlobalNotReady
	}
	return m.sources.CreateCopyPaste(mimes), nil
}

func (m *Manager) CreateDragSource(mimes []string, actions wlproto.DndAction) (source.DragSource, error) {
	if !m.bound {
		return source.DragSource{}, ErrGlobalNotReady
	}
	return m.sources.CreateDrag(mimes, actions), nil
}

// CreateSource creates a source with data attached.
func (m *Manager) CreateSource(role source.Role, mimes []string, actions wlproto.DndAction, data any) (*source.Source, error) {
	if !m.bound {
		return nil, ErrGlobalNotReady
	}
	return m.sources.Create(role, mimes, actions, data), nil
}

// StartInternalDrag starts a drag within this client with no source.
func (m *Manager) StartInternalDrag(dev *device.Device, origin, icon wlproto.ObjectID, serial uint32) error {
	if !m.bound {
		return ErrGlobalNotReady
	}
	m.sources.StartInternalDrag(dev, origin, icon, serial)
	return nil
}

// GetDataDevice returns the device for seat, creating it on first use.
func (m *Manager) GetDataDevice(seat wlproto.ObjectID) (*device.Device, error) {
	return m.GetDataDeviceWithData(seat, nil)
}

// GetDataDeviceWithData is GetDataDevice with data attached to a newly
// created device. An existing device keeps its data.
func (m *Manager) GetDataDeviceWithData(seat wlproto.ObjectID, data any) (*device.Device, error) {
	if !m.bound {
		return nil, ErrGlobalNotReady
	}
	if d, ok := m.seats[seat]; ok {
		return d, nil
	}
	id := m.conn.NewID()
	m.conn.Send(m.id, wlproto.GetDataDevice{ID: id, Seat: seat})
	d := device.New(m.conn, id, seat, m.version, m.offers, data)
	m.seats[seat] = d
	m.devices[id] = d
	return d, nil
}

// Device returns the device already created for seat.
func (m *Manager) Device(seat wlproto.ObjectID) (*device.Device, bool) {
	d, ok := m.seats[seat]
	return d, ok
}

// ReleaseDevice releases the device of seat and forgets it. A later
// GetDataDevice creates a new one.
func (m *Manager) ReleaseDevice(seat wlproto.ObjectID) error {
	d, ok := m.seats[seat]
	if !ok {
		return fmt.Errorf("manager: no data device for seat %v", seat)
	}
	delete(m.seats, seat)
	delete(m.devices, d.ID())
	return d.Release()
}

// Offers returns the offer registry, or nil before Bind.
func (m *Manager) Offers() *offer.Registry { return m.offers }

// Sources returns the source registry, or nil before Bind.
func (m *Manager) Sources() *source.Registry { return m.sources }

// Flush flushes the connection.
func (m *Manager) Flush() error { return m.conn.Flush() }

// Dispatch routes ev for object obj to the device, offer or source it
// belongs to. h may be nil. It reports whether obj was known.
func (m *Manager) Dispatch(obj wlproto.ObjectID, ev wlproto.Event, h Handler) bool {
	if !m.bound {
		discard(ev)
		slog.Debug("event before bind", "component", "manager", "object", obj, "event", ev.Name())
		return false
	}
	switch ev := ev.(type) {
	case wlproto.DeviceEvent:
		d, ok := m.devices[obj]
		if !ok {
			slog.Debug("event for unknown data device", "component", "manager", "object", obj, "event", ev.Name())
			if ev, ok := ev.(wlproto.DeviceDataOffer); ok {
				m.offers.Discard(ev.ID)
			}
			return false
		}
		d.HandleEvent(ev, h)
		return true
	case wlproto.OfferEvent:
		return m.offers.HandleEvent(obj, ev, h)
	case wlproto.SourceEvent:
		return m.sources.HandleEvent(obj, ev, h)
	}
	discard(ev)
	return false
}

// discard closes any fd carried by an event nobody will handle.
func discard(ev wlproto.Event) {
	if send, ok := ev.(wlproto.SourceSend); ok {
		transfer.NewWritePipe(send.FD).Close()
	}
}

// NopHandler implements Handler with empty methods. Embed it to handle only
// some events.
type NopHandler struct{}

func (NopHandler) OfferMime(*offer.Offer, string)                              {}
func (NopHandler) OfferSourceActions(*offer.Offer, wlproto.DndAction)          {}
func (NopHandler) OfferAction(*offer.Offer, wlproto.DndAction)                 {}
func (NopHandler) SourceTarget(*source.Source, string, bool)                   {}
func (NopHandler) SourceCancelled(*source.Source)                              {}
func (NopHandler) SourceDropPerformed(*source.Source)                          {}
func (NopHandler) SourceFinished(*source.Source)                               {}
func (NopHandler) SourceAction(*source.Source, wlproto.DndAction)              {}
func (NopHandler) DataOffer(*device.Device, *offer.Offer)                      {}
func (NopHandler) Enter(*device.Device, device.EnterInfo)                      {}
func (NopHandler) Leave(*device.Device)                                        {}
func (NopHandler) Motion(*device.Device, uint32, wlproto.Fixed, wlproto.Fixed) {}
func (NopHandler) Drop(*device.Device, device.DropContext)                     {}
func (NopHandler) Selection(*device.Device, *offer.Offer)                      {}

// SourceSend closes w, giving the reader an empty transfer.
func (NopHandler) SourceSend(_ *source.Source, _ string, w *transfer.WritePipe) { w.Close() }
