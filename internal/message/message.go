// Package message defines the trace records read and written by wlclip
// replay.
//
// A trace is newline-delimited JSON, one Record per line. Payloads are
// base64-encoded so that binary content is safe to embed in JSON strings;
// plain text may be given in the text field instead.
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"go.klb.dev/wlclip/internal/wlproto"
)

// Kind identifies the kind of record.
type Kind string

const (
	// Input records.
	KindGlobal    Kind = "global"     // the manager global was bound: object, version
	KindSeat      Kind = "seat"       // create the data device of seat
	KindEvent     Kind = "event"      // a compositor event
	KindPeerWrite Kind = "peer_write" // the remote source writes data into the last receive pipe of offer
	KindSend      Kind = "send"       // the compositor asks source object to send mime
	KindCopy      Kind = "copy"       // the application copies data on seat
	KindDrag      Kind = "drag"       // the application starts dragging data on seat

	// Output records.
	KindRequest Kind = "request" // a request the engine sent
	KindResult  Kind = "result"  // a completed transfer
)

// Record is one line of a trace. Which fields are meaningful depends on
// Kind and, for events and requests, on Interface and Name.
type Record struct {
	Kind      Kind   `json:"kind"`
	Object    uint32 `json:"object,omitempty"`
	Seat      uint32 `json:"seat,omitempty"`
	Interface string `json:"interface,omitempty"`
	Name      string `json:"name,omitempty"`

	Version uint32  `json:"version,omitempty"`
	ID      uint32  `json:"id,omitempty"`
	Offer   uint32  `json:"offer,omitempty"`
	Source  uint32  `json:"source,omitempty"`
	Surface uint32  `json:"surface,omitempty"`
	Origin  uint32  `json:"origin,omitempty"`
	Icon    uint32  `json:"icon,omitempty"`
	Serial  uint32  `json:"serial,omitempty"`
	Time    uint32  `json:"time,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`

	Mime      string `json:"mime,omitempty"`
	Actions   string `json:"actions,omitempty"`
	Preferred string `json:"preferred,omitempty"`
	Action    string `json:"action,omitempty"`

	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"` // base64-encoded
}

// Encode serialises the record to JSON without a trailing newline.
func (r *Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode deserialises a record from raw JSON bytes.
func Decode(b []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("record decode: %w", err)
	}
	if r.Kind == "" {
		return nil, fmt.Errorf("record decode: missing kind")
	}
	return &r, nil
}

// Payload returns Text if set, otherwise the decoded Data.
func (r *Record) Payload() ([]byte, error) {
	if r.Text != "" {
		return []byte(r.Text), nil
	}
	return base64.StdEncoding.DecodeString(r.Data)
}

// SetPayload stores b base64-encoded in Data.
func (r *Record) SetPayload(b []byte) {
	r.Text = ""
	r.Data = base64.StdEncoding.EncodeToString(b)
}

func fixed(v float64) (wlproto.Fixed, error) {
	f := math.Round(v * 256)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("coordinate %v out of range", v)
	}
	return wlproto.FixedFromFloat(v), nil
}

// Event converts an event record to a protocol event. Source send events
// carry a descriptor and are expressed as KindSend records instead.
func (r *Record) Event() (wlproto.Event, error) {
	if r.Kind != KindEvent {
		return nil, fmt.Errorf("record kind %q is not an event", r.Kind)
	}
	switch r.Interface {
	case wlproto.InterfaceDevice:
		return r.deviceEvent()
	case wlproto.InterfaceOffer:
		return r.offerEvent()
	case wlproto.InterfaceSource:
		return r.sourceEvent()
	}
	return nil, fmt.Errorf("unknown interface %q", r.Interface)
}

func (r *Record) deviceEvent() (wlproto.Event, error) {
	switch r.Name {
	case "data_offer":
		if r.ID == 0 {
			return nil, fmt.Errorf("data_offer without id")
		}
		return wlproto.DeviceDataOffer{ID: wlproto.ObjectID(r.ID)}, nil
	case "enter":
		x, err := fixed(r.X)
		if err != nil {
			return nil, err
		}
		y, err := fixed(r.Y)
		if err != nil {
			return nil, err
		}
		return wlproto.DeviceEnter{
			Serial:  r.Serial,
			Surface: wlproto.ObjectID(r.Surface),
			X:       x,
			Y:       y,
			Offer:   wlproto.ObjectID(r.Offer),
		}, nil
	case "leave":
		return wlproto.DeviceLeave{}, nil
	case "motion":
		x, err := fixed(r.X)
		if err != nil {
			return nil, err
		}
		y, err := fixed(r.Y)
		if err != nil {
			return nil, err
		}
		return wlproto.DeviceMotion{Time: r.Time, X: x, Y: y}, nil
	case "drop":
		return wlproto.DeviceDrop{}, nil
	case "selection":
		return wlproto.DeviceSelection{Offer: wlproto.ObjectID(r.Offer)}, nil
	}
	return nil, fmt.Errorf("unknown %s event %q", r.Interface, r.Name)
}

func (r *Record) offerEvent() (wlproto.Event, error) {
	switch r.Name {
	case "offer":
		return wlproto.OfferMime{MimeType: r.Mime}, nil
	case "source_actions":
		a, err := wlproto.ParseDndActions(r.Actions)
		if err != nil {
			return nil, err
		}
		return wlproto.OfferSourceActions{Actions: a}, nil
	case "action":
		a, err := wlproto.ParseDndActions(r.Action)
		if err != nil {
			return nil, err
		}
		return wlproto.OfferAction{Action: a}, nil
	}
	return nil, fmt.Errorf("unknown %s event %q", r.Interface, r.Name)
}

func (r *Record) sourceEvent() (wlproto.Event, error) {
	switch r.Name {
	case "target":
		return wlproto.SourceTarget{MimeType: r.Mime}, nil
	case "send":
		return nil, fmt.Errorf("%s.send needs a pipe; use a %q record", r.Interface, KindSend)
	case "cancelled":
		return wlproto.SourceCancelled{}, nil
	case "dnd_drop_performed":
		return wlproto.SourceDropPerformed{}, nil
	case "dnd_finished":
		return wlproto.SourceFinished{}, nil
	case "action":
		a, err := wlproto.ParseDndActions(r.Action)
		if err != nil {
			return nil, err
		}
		return wlproto.SourceAction{Action: a}, nil
	}
	return nil, fmt.Errorf("unknown %s event %q", r.Interface, r.Name)
}

// FromRequest records req sent to obj. Descriptors are not recorded.
func FromRequest(obj wlproto.ObjectID, req wlproto.Request) Record {
	r := Record{
		Kind:      KindRequest,
		Object:    uint32(obj),
		Interface: req.Interface(),
		Name:      req.Name(),
	}
	switch req := req.(type) {
	case wlproto.CreateDataSource:
		r.ID = uint32(req.ID)
	case wlproto.GetDataDevice:
		r.ID, r.Seat = uint32(req.ID), uint32(req.Seat)
	case wlproto.SourceOffer:
		r.Mime = req.MimeType
	case wlproto.SourceSetActions:
		r.Actions = req.Actions.String()
	case wlproto.StartDrag:
		r.Source, r.Origin, r.Icon, r.Serial = uint32(req.Source), uint32(req.Origin), uint32(req.Icon), req.Serial
	case wlproto.SetSelection:
		r.Source, r.Serial = uint32(req.Source), req.Serial
	case wlproto.OfferAccept:
		r.Serial, r.Mime = req.Serial, req.MimeType
	case wlproto.OfferReceive:
		r.Mime = req.MimeType
	case wlproto.OfferSetActions:
		r.Actions, r.Preferred = req.Actions.String(), req.Preferred.String()
	}
	return r
}
