package message

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/wlclip/internal/wlproto"
)

func TestEventFromRecord(t *testing.T) {
	for _, tc := range []struct {
		line string
		want wlproto.Event
	}{
		{`{"kind":"event","seat":3,"interface":"wl_data_device","name":"data_offer","id":4278190081}`,
			wlproto.DeviceDataOffer{ID: 0xff000001}},
		{`{"kind":"event","object":4278190081,"interface":"wl_data_offer","name":"offer","mime":"text/plain"}`,
			wlproto.OfferMime{MimeType: "text/plain"}},
		{`{"kind":"event","object":4278190081,"interface":"wl_data_offer","name":"source_actions","actions":"copy|move"}`,
			wlproto.OfferSourceActions{Actions: wlproto.ActionCopy | wlproto.ActionMove}},
		{`{"kind":"event","seat":3,"interface":"wl_data_device","name":"enter","serial":1,"surface":30,"x":10,"y":20.5,"offer":4278190081}`,
			wlproto.DeviceEnter{Serial: 1, Surface: 30, X: wlproto.FixedFromInt(10), Y: wlproto.FixedFromFloat(20.5), Offer: 0xff000001}},
		{`{"kind":"event","seat":3,"interface":"wl_data_device","name":"motion","time":7,"x":1,"y":2}`,
			wlproto.DeviceMotion{Time: 7, X: wlproto.FixedFromInt(1), Y: wlproto.FixedFromInt(2)}},
		{`{"kind":"event","seat":3,"interface":"wl_data_device","name":"selection"}`,
			wlproto.DeviceSelection{}},
		{`{"kind":"event","object":101,"interface":"wl_data_source","name":"action","action":"copy"}`,
			wlproto.SourceAction{Action: wlproto.ActionCopy}},
		{`{"kind":"event","object":101,"interface":"wl_data_source","name":"cancelled"}`,
			wlproto.SourceCancelled{}},
	} {
		r, err := Decode([]byte(tc.line))
		if err != nil {
			t.Fatalf("Decode(%s): %v", tc.line, err)
		}
		got, err := r.Event()
		if err != nil {
			t.Fatalf("Event(%s): %v", tc.line, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Event(%s) (-want +got):\n%s", tc.line, diff)
		}
	}
}

func TestEventErrors(t *testing.T) {
	for _, line := range []string{
		`{"kind":"request","interface":"wl_data_device","name":"leave"}`,
		`{"kind":"event","interface":"wl_seat","name":"leave"}`,
		`{"kind":"event","interface":"wl_data_device","name":"wiggle"}`,
		`{"kind":"event","interface":"wl_data_device","name":"data_offer"}`,
		`{"kind":"event","interface":"wl_data_source","name":"send","mime":"text/plain"}`,
		`{"kind":"event","interface":"wl_data_offer","name":"action","action":"teleport"}`,
	} {
		r, err := Decode([]byte(line))
		if err != nil {
			t.Fatalf("Decode(%s): %v", line, err)
		}
		if ev, err := r.Event(); err == nil {
			t.Errorf("Event(%s) = %v, want error", line, ev)
		}
	}
	if _, err := Decode([]byte(`{"object":1}`)); err == nil || !strings.Contains(err.Error(), "missing kind") {
		t.Errorf("Decode without kind = %v", err)
	}
}

func TestPayload(t *testing.T) {
	r := Record{Kind: KindPeerWrite, Text: "plain"}
	if b, err := r.Payload(); err != nil || string(b) != "plain" {
		t.Fatalf("Payload = %q, %v", b, err)
	}
	r.SetPayload([]byte{0, 1, 2})
	if r.Data != "AAEC" || r.Text != "" {
		t.Fatalf("SetPayload: %+v", r)
	}
	if b, err := r.Payload(); err != nil || string(b) != "\x00\x01\x02" {
		t.Fatalf("Payload = %q, %v", b, err)
	}
}

func TestFromRequest(t *testing.T) {
	for _, tc := range []struct {
		obj  wlproto.ObjectID
		req  wlproto.Request
		want Record
	}{
		{2, wlproto.GetDataDevice{ID: 10, Seat: 3},
			Record{Kind: KindRequest, Object: 2, Interface: "wl_data_device_manager", Name: "get_data_device", ID: 10, Seat: 3}},
		{7, wlproto.OfferAccept{Serial: 5},
			Record{Kind: KindRequest, Object: 7, Interface: "wl_data_offer", Name: "accept", Serial: 5}},
		{7, wlproto.OfferSetActions{Actions: wlproto.ActionCopy | wlproto.ActionMove, Preferred: wlproto.ActionCopy},
			Record{Kind: KindRequest, Object: 7, Interface: "wl_data_offer", Name: "set_actions", Actions: "copy|move", Preferred: "copy"}},
		{7, wlproto.OfferReceive{MimeType: "text/plain", FD: 9},
			Record{Kind: KindRequest, Object: 7, Interface: "wl_data_offer", Name: "receive", Mime: "text/plain"}},
		{10, wlproto.StartDrag{Source: 11, Origin: 30, Serial: 4},
			Record{Kind: KindRequest, Object: 10, Interface: "wl_data_device", Name: "start_drag", Source: 11, Origin: 30, Serial: 4}},
	} {
		if diff := cmp.Diff(tc.want, FromRequest(tc.obj, tc.req)); diff != "" {
			t.Errorf("FromRequest(%s) (-want +got):\n%s", tc.req.Name(), diff)
		}
	}
}
