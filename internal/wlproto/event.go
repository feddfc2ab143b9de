package wlproto

// Event is an inbound message for one object. Each concrete event also
// implements exactly one of OfferEvent, SourceEvent or DeviceEvent, which is
// how Manager.Dispatch routes it.
type Event interface {
	Interface() string
	Opcode() uint16
	Name() string
}

// OfferEvent is implemented by wl_data_offer events.
type OfferEvent interface {
	Event
	offerEvent()
}

// SourceEvent is implemented by wl_data_source events.
type SourceEvent interface {
	Event
	sourceEvent()
}

// DeviceEvent is implemented by wl_data_device events.
type DeviceEvent interface {
	Event
	deviceEvent()
}

// wl_data_offer events.

// OfferMime advertises one more MIME type the source can supply.
type OfferMime struct {
	MimeType string
}

type OfferSourceActions struct {
	Actions DndAction
}

// OfferAction reports the action the compositor selected.
type OfferAction struct {
	Action DndAction
}

// wl_data_source events.

// SourceTarget reports the MIME type the destination accepted. An empty
// MimeType is the null value: nothing would be accepted.
type SourceTarget struct {
	MimeType string
}

// SourceSend asks for the data of MimeType to be written to FD. The receiver
// of the event owns FD and must close it.
type SourceSend struct {
	MimeType string
	FD       int
}

type SourceCancelled struct{}

type SourceDropPerformed struct{}

type SourceFinished struct{}

type SourceAction struct {
	Action DndAction
}

// wl_data_device events.

// DeviceDataOffer introduces a new wl_data_offer object. Its MIME types
// follow immediately as OfferMime events.
type DeviceDataOffer struct {
	ID ObjectID
}

type DeviceEnter struct {
	Serial  uint32
	Surface ObjectID
	X, Y    Fixed
	Offer   ObjectID
}

type DeviceLeave struct{}

type DeviceMotion struct {
	Time uint32
	X, Y Fixed
}

type DeviceDrop struct{}

// DeviceSelection announces the new selection offer, or Null when the
// selection was cleared.
type DeviceSelection struct {
	Offer ObjectID
}

func (OfferMime) Interface() string { return InterfaceOffer }
func (OfferMime) Opcode() uint16    { return 0 }
func (OfferMime) Name() string      { return "offer" }
func (OfferMime) offerEvent()       {}

func (OfferSourceActions) Interface() string { return InterfaceOffer }
func (OfferSourceActions) Opcode() uint16    { return 1 }
func (OfferSourceActions) Name() string      { return "source_actions" }
func (OfferSourceActions) offerEvent()       {}

func (OfferAction) Interface() string { return InterfaceOffer }
func (OfferAction) Opcode() uint16    { return 2 }
func (OfferAction) Name() string      { return "action" }
func (OfferAction) offerEvent()       {}

func (SourceTarget) Interface() string { return InterfaceSource }
func (SourceTarget) Opcode() uint16    { return 0 }
func (SourceTarget) Name() string      { return "target" }
func (SourceTarget) sourceEvent()      {}

func (SourceSend) Interface() string { return InterfaceSource }
func (SourceSend) Opcode() uint16    { return 1 }
func (SourceSend) Name() string      { return "send" }
func (SourceSend) sourceEvent()      {}

func (SourceCancelled) Interface() string { return InterfaceSource }
func (SourceCancelled) Opcode() uint16    { return 2 }
func (SourceCancelled) Name() string      { return "cancelled" }
func (SourceCancelled) sourceEvent()      {}

func (SourceDropPerformed) Interface() string { return InterfaceSource }
func (SourceDropPerformed) Opcode() uint16    { return 3 }
func (SourceDropPerformed) Name() string      { return "dnd_drop_performed" }
func (SourceDropPerformed) sourceEvent()      {}

func (SourceFinished) Interface() string { return InterfaceSource }
func (SourceFinished) Opcode() uint16    { return 4 }
func (SourceFinished) Name() string      { return "dnd_finished" }
func (SourceFinished) sourceEvent()      {}

func (SourceAction) Interface() string { return InterfaceSource }
func (SourceAction) Opcode() uint16    { return 5 }
func (SourceAction) Name() string      { return "action" }
func (SourceAction) sourceEvent()      {}

func (DeviceDataOffer) Interface() string { return InterfaceDevice }
func (DeviceDataOffer) Opcode() uint16    { return 0 }
func (DeviceDataOffer) Name() string      { return "data_offer" }
func (DeviceDataOffer) deviceEvent()      {}

func (DeviceEnter) Interface() string { return InterfaceDevice }
func (DeviceEnter) Opcode() uint16    { return 1 }
func (DeviceEnter) Name() string      { return "enter" }
func (DeviceEnter) deviceEvent()      {}

func (DeviceLeave) Interface() string { return InterfaceDevice }
func (DeviceLeave) Opcode() uint16    { return 2 }
func (DeviceLeave) Name() string      { return "leave" }
func (DeviceLeave) deviceEvent()      {}

func (DeviceMotion) Interface() string { return InterfaceDevice }
func (DeviceMotion) Opcode() uint16    { return 3 }
func (DeviceMotion) Name() string      { return "motion" }
func (DeviceMotion) deviceEvent()      {}

func (DeviceDrop) Interface() string { return InterfaceDevice }
func (DeviceDrop) Opcode() uint16    { return 4 }
func (DeviceDrop) Name() string      { return "drop" }
func (DeviceDrop) deviceEvent()      {}

func (DeviceSelection) Interface() string { return InterfaceDevice }
func (DeviceSelection) Opcode() uint16    { return 5 }
func (DeviceSelection) Name() string      { return "selection" }
func (DeviceSelection) deviceEvent()      {}
