// Package replay drives the data-device engine from a recorded trace of
// compositor events, standing in for the compositor and for remote clients.
//
// Client object ids are allocated in order starting at 2: the manager bound
// by the global record gets 2, then each data device and source takes the
// next id, in trace order. Device events name their device by seat.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.klb.dev/wlclip/internal/clip"
	"go.klb.dev/wlclip/internal/clipapp"
	"go.klb.dev/wlclip/internal/evloop"
	"go.klb.dev/wlclip/internal/hub"
	"go.klb.dev/wlclip/internal/manager"
	"go.klb.dev/wlclip/internal/message"
	"go.klb.dev/wlclip/internal/mirror"
	"go.klb.dev/wlclip/internal/transfer"
	"go.klb.dev/wlclip/internal/wire"
	"go.klb.dev/wlclip/internal/wlproto"
	"go.klb.dev/wlclip/internal/wlproto/wltest"
)

// FirstID is the first client object id handed out.
const FirstID wlproto.ObjectID = 2

// Options configure a replay.
type Options struct {
	App clipapp.Config
	// Timeout bounds how long a transfer may take to complete.
	Timeout time.Duration
	// Mirror, when set, receives completed selections like the host
	// clipboard would.
	Mirror clip.Backend
}

// collector is the hub peer that turns completed transfers into output.
type collector struct {
	mu  sync.Mutex
	got []hub.Event
}

func (c *collector) ID() string        { return "replay" }
func (c *collector) Accepts() []string { return nil }

func (c *collector) Send(ev hub.Event) {
	c.mu.Lock()
	c.got = append(c.got, ev)
	c.mu.Unlock()
}

func (c *collector) take() []hub.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.got
	c.got = nil
	return out
}

type replayer struct {
	opts    Options
	conn    *wltest.Conn
	mgr     *manager.Manager
	loop    *evloop.Loop
	hub     *hub.Hub
	app     *clipapp.App
	results *collector
	out     *wire.Writer
	writers *errgroup.Group
}

// Run replays the trace in in and writes emitted requests and completed
// transfers to out as NDJSON.
func Run(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	conn := wltest.NewConn(FirstID)
	mgr := manager.New(conn)
	loop := evloop.New()
	h := hub.New()
	r := &replayer{
		opts:    opts,
		conn:    conn,
		mgr:     mgr,
		loop:    loop,
		hub:     h,
		app:     clipapp.New(opts.App, mgr, loop, h),
		results: &collector{},
		out:     wire.NewWriter(out),
		writers: &errgroup.Group{},
	}
	h.Register(r.results)

	ctx, cancel := context.WithCancel(ctx)
	var mirrorDone sync.WaitGroup
	if opts.Mirror != nil {
		m := mirror.New(h, opts.Mirror)
		mirrorDone.Add(1)
		go func() {
			defer mirrorDone.Done()
			m.Run(ctx)
		}()
	}

	err := r.run(ctx, wire.NewReader(in))
	summarize(h)

	// Closing the loop closes any read end still open, which unblocks
	// peers still writing.
	if cerr := loop.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if werr := r.writers.Wait(); werr != nil && err == nil {
		err = fmt.Errorf("peer write: %w", werr)
	}
	conn.Close()
	cancel()
	mirrorDone.Wait()
	return err
}

func (r *replayer) run(ctx context.Context, rd *wire.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := rd.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := r.step(rec); err != nil {
			return fmt.Errorf("line %d: %w", rd.Line(), err)
		}
		if err := r.emit(); err != nil {
			return err
		}
	}
	if err := r.loop.Run(time.Now().Add(r.opts.Timeout)); err != nil {
		return err
	}
	return r.emit()
}

func (r *replayer) step(rec *message.Record) error {
	switch rec.Kind {
	case message.KindGlobal:
		version := rec.Version
		if version == 0 {
			version = manager.MaxVersion
		}
		return r.mgr.Bind(r.conn.NewID(), version)
	case message.KindSeat:
		_, err := r.mgr.GetDataDevice(wlproto.ObjectID(rec.Seat))
		return err
	case message.KindEvent:
		return r.event(rec)
	case message.KindPeerWrite:
		return r.peerWrite(rec)
	case message.KindSend:
		return r.send(rec)
	case message.KindCopy, message.KindDrag:
		return r.offerData(rec)
	}
	return fmt.Errorf("unexpected %q record", rec.Kind)
}

func (r *replayer) event(rec *message.Record) error {
	ev, err := rec.Event()
	if err != nil {
		return err
	}
	obj := wlproto.ObjectID(rec.Object)
	if rec.Interface == wlproto.InterfaceDevice && !obj.Valid() {
		d, ok := r.mgr.Device(wlproto.ObjectID(rec.Seat))
		if !ok {
			return fmt.Errorf("no data device for seat %d", rec.Seat)
		}
		obj = d.ID()
	}
	if !r.app.Dispatch(obj, ev) {
		slog.Warn("event not handled", "component", "replay", "object", obj, "event", ev.Name())
	}
	return nil
}

// peerWrite plays the remote source: it writes the payload into the pipe
// of the last receive request for the offer and closes it.
func (r *replayer) peerWrite(rec *message.Record) error {
	data, err := rec.Payload()
	if err != nil {
		return err
	}
	fd, ok := r.conn.PeerFD(wlproto.ObjectID(rec.Object))
	if !ok {
		return fmt.Errorf("no receive pending for offer %d", rec.Object)
	}
	pending := r.loop.Len()
	f := os.NewFile(uintptr(fd), "peer")
	r.writers.Go(func() error {
		defer f.Close()
		_, err := f.Write(data)
		return err
	})
	return r.settle(pending - 1)
}

// send plays the compositor asking one of our sources for data, and reads
// back what the application wrote.
func (r *replayer) send(rec *message.Record) error {
	rp, wp, err := transfer.Pipe()
	if err != nil {
		return err
	}
	pending := r.loop.Len()
	src := rec.Object
	mime := rec.Mime
	if _, err := transfer.Collect(r.loop, rp, func(data []byte, err error) {
		res := message.Record{Kind: message.KindResult, Name: "send", Object: src, Mime: mime}
		res.SetPayload(data)
		if err != nil {
			slog.Warn("reading send result failed", "component", "replay", "source", src, "err", err)
		}
		if werr := r.out.WriteRecord(&res); werr != nil {
			slog.Error("writing result failed", "component", "replay", "err", werr)
		}
	}); err != nil {
		rp.Close()
		wp.Close()
		return err
	}
	// The application now owns the write end, as if it had arrived over the
	// socket.
	r.app.Dispatch(wlproto.ObjectID(src), wlproto.SourceSend{MimeType: mime, FD: wp.Fd()})
	return r.settle(pending)
}

func (r *replayer) offerData(rec *message.Record) error {
	d, ok := r.mgr.Device(wlproto.ObjectID(rec.Seat))
	if !ok {
		return fmt.Errorf("no data device for seat %d", rec.Seat)
	}
	data, err := rec.Payload()
	if err != nil {
		return err
	}
	item := clipapp.Item{Mime: rec.Mime, Data: data}
	if rec.Kind == message.KindCopy {
		_, err = r.app.Copy(d, rec.Serial, item)
		return err
	}
	actions, err := wlproto.ParseDndActions(rec.Actions)
	if err != nil {
		return err
	}
	_, err = r.app.StartDrag(d, wlproto.ObjectID(rec.Origin), wlproto.ObjectID(rec.Icon), rec.Serial, actions, item)
	return err
}

// settle dispatches the loop until at most target sources remain.
func (r *replayer) settle(target int) error {
	deadline := time.Now().Add(r.opts.Timeout)
	for r.loop.Len() > target {
		wait := time.Until(deadline)
		if wait <= 0 {
			return fmt.Errorf("transfer did not complete: %w", evloop.ErrDeadline)
		}
		if _, err := r.loop.Dispatch(wait); err != nil {
			return err
		}
	}
	return nil
}

// emit writes the requests sent and the transfers completed since the last
// call.
func (r *replayer) emit() error {
	for _, s := range r.conn.Take() {
		rec := message.FromRequest(s.Object, s.Request)
		if err := r.out.WriteRecord(&rec); err != nil {
			return err
		}
	}
	for _, ev := range r.results.take() {
		rec := message.Record{Kind: message.KindResult, Name: ev.Kind, Seat: uint32(ev.Seat), Mime: ev.Mime}
		rec.SetPayload(ev.Data)
		if err := r.out.WriteRecord(&rec); err != nil {
			return err
		}
	}
	return nil
}

// summarize logs the last completed transfer of each kind.
func summarize(h *hub.Hub) {
	for _, kind := range []string{hub.KindSelection, hub.KindDrop} {
		if ev, ok := h.Latest(kind, nil); ok {
			slog.Info("last transfer", "component", "replay", "kind", kind, "seat", ev.Seat, "mime", ev.Mime, "bytes", len(ev.Data))
		}
	}
	slog.Debug("replay finished", "component", "replay", "peers", h.Peers())
}
