package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/wlclip/internal/clip"
	"go.klb.dev/wlclip/internal/hub"
)

func TestMirrorWritesSelectionsOnce(t *testing.T) {
	h := hub.New()
	mem := clip.NewMemory()
	p := New(h, mem)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, func() bool { return len(h.Peers()) == 1 })

	h.Publish(hub.Event{Kind: hub.KindDrop, Mime: "text/plain", Data: []byte("drop")}, "wayland")
	h.Publish(hub.Event{Kind: hub.KindSelection, Mime: "UTF8_STRING", Data: []byte("sel")}, "wayland")
	h.Publish(hub.Event{Kind: hub.KindSelection, Mime: "UTF8_STRING", Data: []byte("sel")}, "wayland")
	h.Publish(hub.Event{Kind: hub.KindSelection, Mime: "application/pdf", Data: []byte("%PDF")}, "wayland")

	waitFor(t, func() bool { return mem.Writes() >= 1 })
	// Give the duplicate a chance to arrive before checking it was skipped.
	time.Sleep(20 * time.Millisecond)

	got, _ := mem.Read()
	if diff := cmp.Diff([]clip.Item{{MIME: "text/plain", Data: []byte("sel")}}, got); diff != "" {
		t.Errorf("host clipboard (-want +got):\n%s", diff)
	}
	if mem.Writes() != 1 {
		t.Errorf("Writes = %d, want 1", mem.Writes())
	}
	if p.LastSeen().IsZero() {
		t.Error("LastSeen not updated")
	}
}

func TestMirrorSkipsContentAlreadyOnHost(t *testing.T) {
	h := hub.New()
	mem := clip.NewMemory()
	mem.Write([]clip.Item{{MIME: "text/plain", Data: []byte("same")}})
	p := New(h, mem)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()
	waitFor(t, func() bool { return len(h.Peers()) == 1 })

	h.Publish(hub.Event{Kind: hub.KindSelection, Mime: "text/plain;charset=utf-8", Data: []byte("same")}, "wayland")
	h.Publish(hub.Event{Kind: hub.KindSelection, Mime: "text/plain", Data: []byte("new")}, "wayland")
	waitFor(t, func() bool { return mem.Writes() >= 2 })

	if mem.Writes() != 2 {
		t.Errorf("Writes = %d, want 2", mem.Writes())
	}
	got, _ := mem.Read()
	if diff := cmp.Diff([]clip.Item{{MIME: "text/plain", Data: []byte("new")}}, got); diff != "" {
		t.Errorf("host clipboard (-want +got):\n%s", diff)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
