package wlproto

// Interface names of the objects this package models.
const (
	InterfaceManager = "wl_data_device_manager"
	InterfaceDevice  = "wl_data_device"
	InterfaceSource  = "wl_data_source"
	InterfaceOffer   = "wl_data_offer"
)

// Request is an outbound message for one object. Since is the first
// interface version that defines the request.
type Request interface {
	Interface() string
	Opcode() uint16
	Name() string
	Since() uint32
}

// wl_data_device_manager requests.

type CreateDataSource struct {
	ID ObjectID
}

type GetDataDevice struct {
	ID   ObjectID
	Seat ObjectID
}

// wl_data_source requests.

type SourceOffer struct {
	MimeType string
}

type SourceDestroy struct{}

type SourceSetActions struct {
	Actions DndAction
}

// wl_data_device requests.

// StartDrag begins a drag. A Null Source starts a client-internal drag; a
// Null Icon means no drag icon.
type StartDrag struct {
	Source ObjectID
	Origin ObjectID
	Icon   ObjectID
	Serial uint32
}

// SetSelection sets (or, with a Null Source, clears) the selection.
type SetSelection struct {
	Source ObjectID
	Serial uint32
}

type DeviceRelease struct{}

// wl_data_offer requests.

// OfferAccept tells the source which MIME type the destination would take.
// An empty MimeType is sent as null and means the drop would be rejected.
type OfferAccept struct {
	Serial   uint32
	MimeType string
}

// OfferReceive asks the source to write MimeType into FD. Conn
// implementations transmit (and therefore duplicate) FD before Send
// returns; the caller keeps ownership of its copy.
type OfferReceive struct {
	MimeType string
	FD       int
}

type OfferDestroy struct{}

type OfferFinish struct{}

type OfferSetActions struct {
	Actions   DndAction
	Preferred DndAction
}

func (CreateDataSource) Interface() string { return InterfaceManager }
func (CreateDataSource) Opcode() uint16    { return 0 }
func (CreateDataSource) Name() string      { return "create_data_source" }
func (CreateDataSource) Since() uint32     { return 1 }

func (GetDataDevice) Interface() string { return InterfaceManager }
func (GetDataDevice) Opcode() uint16    { return 1 }
func (GetDataDevice) Name() string      { return "get_data_device" }
func (GetDataDevice) Since() uint32     { return 1 }

func (SourceOffer) Interface() string { return InterfaceSource }
func (SourceOffer) Opcode() uint16    { return 0 }
func (SourceOffer) Name() string      { return "offer" }
func (SourceOffer) Since() uint32     { return 1 }

func (SourceDestroy) Interface() string { return InterfaceSource }
func (SourceDestroy) Opcode() uint16    { return 1 }
func (SourceDestroy) Name() string      { return "destroy" }
func (SourceDestroy) Since() uint32     { return 1 }

func (SourceSetActions) Interface() string { return InterfaceSource }
func (SourceSetActions) Opcode() uint16    { return 2 }
func (SourceSetActions) Name() string      { return "set_actions" }
func (SourceSetActions) Since() uint32     { return 3 }

func (StartDrag) Interface() string { return InterfaceDevice }
func (StartDrag) Opcode() uint16    { return 0 }
func (StartDrag) Name() string      { return "start_drag" }
func (StartDrag) Since() uint32     { return 1 }

func (SetSelection) Interface() string { return InterfaceDevice }
func (SetSelection) Opcode() uint16    { return 1 }
func (SetSelection) Name() string      { return "set_selection" }
func (SetSelection) Since() uint32     { return 1 }

func (DeviceRelease) Interface() string { return InterfaceDevice }
func (DeviceRelease) Opcode() uint16    { return 2 }
func (DeviceRelease) Name() string      { return "release" }
func (DeviceRelease) Since() uint32     { return 2 }

func (OfferAccept) Interface() string { return InterfaceOffer }
func (OfferAccept) Opcode() uint16    { return 0 }
func (OfferAccept) Name() string      { return "accept" }
func (OfferAccept) Since() uint32     { return 1 }

func (OfferReceive) Interface() string { return InterfaceOffer }
func (OfferReceive) Opcode() uint16    { return 1 }
func (OfferReceive) Name() string      { return "receive" }
func (OfferReceive) Since() uint32     { return 1 }

func (OfferDestroy) Interface() string { return InterfaceOffer }
func (OfferDestroy) Opcode() uint16    { return 2 }
func (OfferDestroy) Name() string      { return "destroy" }
func (OfferDestroy) Since() uint32     { return 1 }

func (OfferFinish) Interface() string { return InterfaceOffer }
func (OfferFinish) Opcode() uint16    { return 3 }
func (OfferFinish) Name() string      { return "finish" }
func (OfferFinish) Since() uint32     { return 3 }

func (OfferSetActions) Interface() string { return InterfaceOffer }
func (OfferSetActions) Opcode() uint16    { return 4 }
func (OfferSetActions) Name() string      { return "set_actions" }
func (OfferSetActions) Since() uint32     { return 3 }
