package transfer

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"go.klb.dev/wlclip/internal/evloop"
	"go.klb.dev/wlclip/internal/wlproto"
	"go.klb.dev/wlclip/internal/wlproto/wltest"
)

func TestReceiveRoundTrip(t *testing.T) {
	conn := wltest.NewConn(100)
	defer conn.Close()

	r, err := Receive(conn, 7, "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	reqs := conn.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %v", reqs)
	}
	req, ok := reqs[0].Request.(wlproto.OfferReceive)
	if !ok || reqs[0].Object != 7 || req.MimeType != "text/plain" {
		t.Fatalf("request = %v", reqs[0])
	}
	// The local write end must already be closed.
	if _, err := unix.FcntlInt(uintptr(req.FD), unix.F_GETFD, 0); !errors.Is(err, unix.EBADF) {
		t.Fatalf("local write fd still open: %v", err)
	}

	peer, ok := conn.PeerFD(7)
	if !ok {
		t.Fatal("no peer fd")
	}
	want := bytes.Repeat([]byte("wayland "), 1000)
	if _, err := unix.Write(peer, want); err != nil {
		t.Fatal(err)
	}
	unix.Close(peer)

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read %d bytes, want %d", len(got), len(want))
	}
}

func TestReceiveTo(t *testing.T) {
	conn := wltest.NewConn(100)
	defer conn.Close()
	r, w, err := Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	fd := w.Fd()
	if err := ReceiveTo(conn, 9, "text/html", fd); err != nil {
		t.Fatal(err)
	}
	if got := conn.Count(9, "receive"); got != 1 {
		t.Fatalf("receive requests = %d", got)
	}
	peer, _ := conn.PeerFD(9)
	unix.Write(peer, []byte("<b>x</b>"))
	unix.Close(peer)
	got, err := io.ReadAll(r)
	if err != nil || string(got) != "<b>x</b>" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}
}

func TestEndpointOwnership(t *testing.T) {
	r, w, err := Pipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second Close = %v, want ErrClosed", err)
	}
	if w.Fd() != -1 {
		t.Fatalf("Fd after Close = %d", w.Fd())
	}

	loop := evloop.New()
	defer loop.Close()
	if _, err := r.Handoff(loop, func(*ReadPipe, evloop.Readiness) evloop.PostAction { return evloop.Continue }); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Read(make([]byte, 1)); !errors.Is(err, ErrHandedOff) {
		t.Fatalf("Read outside callback = %v, want ErrHandedOff", err)
	}
	if err := r.Close(); !errors.Is(err, ErrHandedOff) {
		t.Fatalf("Close after handoff = %v, want ErrHandedOff", err)
	}
	if _, err := r.Handoff(loop, nil); !errors.Is(err, ErrHandedOff) {
		t.Fatalf("second Handoff = %v", err)
	}
	if err := loop.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Fd() != -1 {
		t.Fatal("loop did not close the read end")
	}
}

func TestCollectAndFeed(t *testing.T) {
	r, w, err := Pipe()
	if err != nil {
		t.Fatal(err)
	}
	loop := evloop.New()
	defer loop.Close()

	// Larger than a default pipe buffer, so both sides need several turns.
	want := bytes.Repeat([]byte{0, 1, 2, 3, 4, 5, 6, 7}, 64<<10)

	var got []byte
	var collectErr, feedErr error
	collected, fed := false, false
	if _, err := Collect(loop, r, func(b []byte, err error) {
		got, collectErr, collected = b, err, true
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := Feed(loop, w, want, func(err error) {
		feedErr, fed = err, true
	}); err != nil {
		t.Fatal(err)
	}

	if err := loop.Run(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if !collected || !fed {
		t.Fatalf("collected=%v fed=%v", collected, fed)
	}
	if collectErr != nil || feedErr != nil {
		t.Fatalf("errors: collect %v, feed %v", collectErr, feedErr)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("collected %d bytes, want %d", len(got), len(want))
	}
	if r.Fd() != -1 || w.Fd() != -1 {
		t.Fatal("endpoints left open")
	}
}

func TestFeedEmptyClosesWriter(t *testing.T) {
	r, w, err := Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	loop := evloop.New()
	defer loop.Close()

	var calls []error
	if _, err := Feed(loop, w, nil, func(err error) { calls = append(calls, err) }); err != nil {
		t.Fatal(err)
	}
	if err := loop.Run(time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0] != nil {
		t.Fatalf("done calls = %v, want one nil", calls)
	}
	got, err := io.ReadAll(r)
	if err != nil || len(got) != 0 {
		t.Fatalf("ReadAll = %q, %v; want empty transfer", got, err)
	}
}

func TestFeedBrokenPipe(t *testing.T) {
	r, w, err := Pipe()
	if err != nil {
		t.Fatal(err)
	}
	r.Close()
	loop := evloop.New()
	defer loop.Close()

	var got error
	if _, err := Feed(loop, w, []byte("lost"), func(err error) { got = err }); err != nil {
		t.Fatal(err)
	}
	if err := loop.Run(time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(got, unix.EPIPE) {
		t.Fatalf("Feed error = %v, want EPIPE", got)
	}
}

// exhaustDescriptors lowers the descriptor limit and fills the table, undoing
// both when the test ends.
func exhaustDescriptors(t *testing.T) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		t.Fatal(err)
	}
	held := fds[:]
	t.Cleanup(func() {
		for _, fd := range held {
			unix.Close(fd)
		}
	})

	var orig unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &orig); err != nil {
		t.Fatal(err)
	}
	lowered := orig
	lowered.Cur = 64
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lowered); err != nil {
		t.Skipf("cannot lower RLIMIT_NOFILE: %v", err)
	}
	t.Cleanup(func() {
		if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &orig); err != nil {
			t.Errorf("restoring RLIMIT_NOFILE: %v", err)
		}
	})

	for {
		fd, err := unix.Dup(fds[0])
		if errors.Is(err, unix.EMFILE) {
			return
		}
		if err != nil {
			t.Fatalf("dup: %v", err)
		}
		held = append(held, fd)
		if len(held) > 1024 {
			t.Fatal("descriptor limit not enforced")
		}
	}
}

func TestReceiveOutOfDescriptors(t *testing.T) {
	conn := wltest.NewConn(100)
	defer conn.Close()
	exhaustDescriptors(t)

	r, err := Receive(conn, 10, "text/plain")
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("Receive = %v, want ErrResourceExhausted", err)
	}
	if !errors.Is(err, unix.EMFILE) {
		t.Errorf("Receive = %v, want the EMFILE cause kept", err)
	}
	if r != nil {
		t.Error("Receive returned a pipe on failure")
	}
	if reqs := conn.Requests(); len(reqs) != 0 {
		t.Errorf("requests sent on failure: %v", reqs)
	}
}
