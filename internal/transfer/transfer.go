package transfer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sys/unix"

	"go.klb.dev/wlclip/internal/evloop"
	"go.klb.dev/wlclip/internal/wlproto"
)

const readChunk = 32 << 10

// Receive asks the source behind offer to write mimeType into a new pipe and
// returns the read end. The local write end is closed before returning, so
// the reader sees EOF once the source closes its copy. Flush the connection
// before reading, or neither side will make progress.
func Receive(conn wlproto.Conn, offer wlproto.ObjectID, mimeType string) (*ReadPipe, error) {
	r, w, err := Pipe()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close write end of receive pipe", "offer", offer, "err", err)
		}
	}()
	conn.Send(offer, wlproto.OfferReceive{MimeType: mimeType, FD: w.Fd()})
	return r, nil
}

// ReceiveTo asks the source to write into fd, which the caller gives up: it
// is closed locally once the request is queued.
func ReceiveTo(conn wlproto.Conn, offer wlproto.ObjectID, mimeType string, fd int) error {
	conn.Send(offer, wlproto.OfferReceive{MimeType: mimeType, FD: fd})
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("transfer: close receive fd: %w", err)
	}
	return nil
}

// Collect reads p to EOF from loop and then calls done with everything read.
// done runs on the loop's goroutine exactly once; p is closed right after.
func Collect(loop *evloop.Loop, p *ReadPipe, done func([]byte, error)) (evloop.Token, error) {
	var buf []byte
	chunk := make([]byte, readChunk)
	return p.Handoff(loop, func(p *ReadPipe, r evloop.Readiness) evloop.PostAction {
		for {
			n, err := p.Read(chunk)
			buf = append(buf, chunk[:n]...)
			switch {
			case err == nil:
				continue
			case errors.Is(err, unix.EAGAIN):
				if r.Error && !r.Readable && !r.Hangup {
					done(buf, errors.New("transfer: poll error on read end"))
					return evloop.Remove
				}
				return evloop.Continue
			case errors.Is(err, io.EOF):
				done(buf, nil)
				return evloop.Remove
			default:
				done(buf, fmt.Errorf("transfer: read: %w", err))
				return evloop.Remove
			}
		}
	})
}

// Feed writes data to w from loop, closes it, and calls done. A reader that
// goes away early shows up as an EPIPE error.
func Feed(loop *evloop.Loop, w *WritePipe, data []byte, done func(error)) (evloop.Token, error) {
	rest := data
	return w.Handoff(loop, func(w *WritePipe, r evloop.Readiness) evloop.PostAction {
		n, err := w.Write(rest)
		rest = rest[n:]
		switch {
		case err == nil:
			done(nil)
			return evloop.Remove
		case errors.Is(err, unix.EAGAIN):
			return evloop.Continue
		default:
			done(fmt.Errorf("transfer: write: %w", err))
			return evloop.Remove
		}
	})
}
