package replay

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/wlclip/internal/clip"
	"go.klb.dev/wlclip/internal/clipapp"
	"go.klb.dev/wlclip/internal/evloop"
	"go.klb.dev/wlclip/internal/message"
	"go.klb.dev/wlclip/internal/wire"
)

const selectionTrace = `
# another client owns the selection
{"kind":"global","version":3}
{"kind":"seat","seat":5}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"data_offer","id":4278190081}
{"kind":"event","object":4278190081,"interface":"wl_data_offer","name":"offer","mime":"text/plain"}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"selection","offer":4278190081}
{"kind":"peer_write","object":4278190081,"text":"from another client"}

# then we copy, serve one paste, and lose the selection
{"kind":"copy","seat":5,"serial":11,"mime":"text/plain","text":"ours"}
{"kind":"send","object":4,"mime":"text/plain"}
{"kind":"event","object":4,"interface":"wl_data_source","name":"cancelled"}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"selection"}
`

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func decodeAll(t *testing.T, out []byte) []message.Record {
	t.Helper()
	rd := wire.NewReader(bytes.NewReader(out))
	var recs []message.Record
	for {
		rec, err := rd.ReadRecord()
		if err != nil {
			break
		}
		recs = append(recs, *rec)
	}
	return recs
}

func TestReplaySelectionAndCopy(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out bytes.Buffer
	mem := clip.NewMemory()
	err := Run(context.Background(), strings.NewReader(selectionTrace), &out, Options{
		App:     clipapp.DefaultConfig(),
		Timeout: 5 * time.Second,
		Mirror:  mem,
	})
	if err != nil {
		t.Fatal(err)
	}

	const offer = 4278190081
	req := func(obj uint32, iface, name string) message.Record {
		return message.Record{Kind: message.KindRequest, Object: obj, Interface: iface, Name: name}
	}
	want := []message.Record{
		{Kind: message.KindRequest, Object: 2, Interface: "wl_data_device_manager", Name: "get_data_device", ID: 3, Seat: 5},
		{Kind: message.KindRequest, Object: offer, Interface: "wl_data_offer", Name: "receive", Mime: "text/plain"},
		{Kind: message.KindResult, Name: "selection", Seat: 5, Mime: "text/plain", Data: b64("from another client")},
		{Kind: message.KindRequest, Object: 2, Interface: "wl_data_device_manager", Name: "create_data_source", ID: 4},
		{Kind: message.KindRequest, Object: 4, Interface: "wl_data_source", Name: "offer", Mime: "text/plain"},
		{Kind: message.KindRequest, Object: 3, Interface: "wl_data_device", Name: "set_selection", Source: 4, Serial: 11},
		{Kind: message.KindResult, Name: "send", Object: 4, Mime: "text/plain", Data: b64("ours")},
		req(4, "wl_data_source", "destroy"),
		req(offer, "wl_data_offer", "destroy"),
	}
	if diff := cmp.Diff(want, decodeAll(t, out.Bytes())); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}

	if !strings.Contains(logs.String(), "msg=\"last transfer\" component=replay kind=selection") ||
		!strings.Contains(logs.String(), "mime=text/plain bytes=19") {
		t.Errorf("summary not logged:\n%s", logs.String())
	}

	got, _ := mem.Read()
	if diff := cmp.Diff([]clip.Item{{MIME: "text/plain", Data: []byte("from another client")}}, got); diff != "" {
		t.Errorf("mirrored clipboard (-want +got):\n%s", diff)
	}
}

const dragTrace = `
{"kind":"global","version":3}
{"kind":"seat","seat":5}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"data_offer","id":4278190082}
{"kind":"event","object":4278190082,"interface":"wl_data_offer","name":"offer","mime":"text/uri-list"}
{"kind":"event","object":4278190082,"interface":"wl_data_offer","name":"offer","mime":"text/plain"}
{"kind":"event","object":4278190082,"interface":"wl_data_offer","name":"source_actions","actions":"copy|move"}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"enter","serial":21,"surface":9,"x":10,"y":20,"offer":4278190082}
{"kind":"event","object":4278190082,"interface":"wl_data_offer","name":"action","action":"copy"}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"drop"}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"leave"}
{"kind":"peer_write","object":4278190082,"text":"file:///tmp/x"}
`

func TestReplayDrop(t *testing.T) {
	cfg := clipapp.DefaultConfig()
	cfg.Accept = []string{"text/uri-list", "text/plain"}
	var out bytes.Buffer
	if err := Run(context.Background(), strings.NewReader(dragTrace), &out, Options{App: cfg}); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, rec := range decodeAll(t, out.Bytes()) {
		got = append(got, string(rec.Kind)+" "+rec.Name+" "+rec.Mime)
	}
	want := []string{
		"request get_data_device ",
		"request set_actions ",
		"request accept text/uri-list",
		"request receive text/uri-list",
		"request finish ",
		"request destroy ",
		"result dnd text/uri-list",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestReplayErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		trace string
		want  error
	}{
		"bad version": {`{"kind":"global","version":9}`, nil},
		"unknown seat": {`{"kind":"global","version":3}
{"kind":"event","seat":1,"interface":"wl_data_device","name":"leave"}`, nil},
		"no receive": {`{"kind":"global","version":3}
{"kind":"peer_write","object":7,"text":"x"}`, nil},
		"stalled transfer": {`{"kind":"global","version":3}
{"kind":"seat","seat":5}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"data_offer","id":9}
{"kind":"event","object":9,"interface":"wl_data_offer","name":"offer","mime":"text/plain"}
{"kind":"event","seat":5,"interface":"wl_data_device","name":"selection","offer":9}`, evloop.ErrDeadline},
	} {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			err := Run(context.Background(), strings.NewReader(tc.trace), &out, Options{
				App:     clipapp.DefaultConfig(),
				Timeout: 50 * time.Millisecond,
			})
			if err == nil {
				t.Fatal("Run succeeded")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("Run = %v, want %v", err, tc.want)
			}
		})
	}
}
