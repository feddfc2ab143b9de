// Package wltest provides a recording wlproto.Conn that stands in for the
// compositor in tests and in trace replay.
package wltest

import (
	"fmt"

	"golang.org/x/sys/unix"

	"go.klb.dev/wlclip/internal/wlproto"
)

// Sent is one request captured by Conn.
type Sent struct {
	Object  wlproto.ObjectID
	Request wlproto.Request
}

func (s Sent) String() string {
	return fmt.Sprintf("%s %s.%s %+v", s.Object, s.Request.Interface(), s.Request.Name(), s.Request)
}

// Conn records every request in order. Like a compositor receiving the fd
// over the socket, it duplicates the descriptor of each OfferReceive, so the
// caller may close its own copy as soon as Send returns.
type Conn struct {
	next    wlproto.ObjectID
	sent    []Sent
	flushes int
	peers   map[wlproto.ObjectID][]int

	// FlushErr, when set, is returned by Flush.
	FlushErr error
}

// NewConn returns a Conn whose NewID starts at first.
func NewConn(first wlproto.ObjectID) *Conn {
	return &Conn{next: first, peers: make(map[wlproto.ObjectID][]int)}
}

func (c *Conn) NewID() wlproto.ObjectID {
	id := c.next
	c.next++
	return id
}

func (c *Conn) Send(obj wlproto.ObjectID, req wlproto.Request) {
	if r, ok := req.(wlproto.OfferReceive); ok {
		fd, err := unix.Dup(r.FD)
		if err != nil {
			fd = -1
		}
		c.peers[obj] = append(c.peers[obj], fd)
	}
	c.sent = append(c.sent, Sent{Object: obj, Request: req})
}

func (c *Conn) Flush() error {
	c.flushes++
	return c.FlushErr
}

// Flushes reports how many times Flush was called.
func (c *Conn) Flushes() int { return c.flushes }

// Requests returns a copy of everything sent so far.
func (c *Conn) Requests() []Sent {
	return append([]Sent(nil), c.sent...)
}

// Take returns the requests sent so far and forgets them.
func (c *Conn) Take() []Sent {
	out := c.sent
	c.sent = nil
	return out
}

// Count returns how many requests named name were sent to obj.
func (c *Conn) Count(obj wlproto.ObjectID, name string) int {
	n := 0
	for _, s := range c.sent {
		if s.Object == obj && s.Request.Name() == name {
			n++
		}
	}
	return n
}

// Destroyed reports how many destroy requests obj received.
func (c *Conn) Destroyed(obj wlproto.ObjectID) int { return c.Count(obj, "destroy") }

// PeerFD hands over the compositor-side copy of the most recent receive fd
// sent for offer. The caller owns the returned descriptor.
func (c *Conn) PeerFD(offer wlproto.ObjectID) (int, bool) {
	fds := c.peers[offer]
	if len(fds) == 0 {
		return -1, false
	}
	fd := fds[len(fds)-1]
	c.peers[offer] = fds[:len(fds)-1]
	if len(c.peers[offer]) == 0 {
		delete(c.peers, offer)
	}
	return fd, fd >= 0
}

// Close closes every peer fd not claimed with PeerFD.
func (c *Conn) Close() error {
	var first error
	for offer, fds := range c.peers {
		for _, fd := range fds {
			if fd < 0 {
				continue
			}
			if err := unix.Close(fd); err != nil && first == nil {
				first = err
			}
		}
		delete(c.peers, offer)
	}
	return first
}
