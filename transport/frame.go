// SPDX-License-Identifier: Apache-2.0

/*
Package transport carries SASL GSSAPI tokens over a byte stream.

Each frame is a 4 byte big-endian length followed by that many bytes: a
kind octet and the payload.  Token frames carry negotiation tokens and,
once the negotiation is complete, protected messages.  The acceptor ends
the negotiation with a Done frame on success or an Error frame holding a
reason on failure.
*/
package transport

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/samber/oops"
)

// DefaultMaxFrame bounds the frames a Conn will read unless told otherwise.
const DefaultMaxFrame = 1 << 20

// FrameKind identifies the content of a frame.  The values are those of
// the MS-NNS handshake message IDs.
type FrameKind byte

const (
	FrameDone  FrameKind = 0x14
	FrameError FrameKind = 0x15
	FrameToken FrameKind = 0x16
)

func (k FrameKind) String() string {
	switch k {
	case FrameDone:
		return "done"
	case FrameError:
		return "error"
	case FrameToken:
		return "token"
	}

	return "unknown"
}

var (
	ErrFrameTooLarge = errors.New("transport: frame exceeds the maximum size")
	ErrBadFrame      = errors.New("transport: malformed frame")
)

// Conn reads and writes frames.  It is not safe for concurrent use.
type Conn struct {
	rw io.ReadWriter

	// MaxFrame is the largest frame ReadFrame accepts, kind octet
	// included.
	MaxFrame uint32
}

func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw, MaxFrame: DefaultMaxFrame}
}

// WriteFrame sends one frame.
func (c *Conn) WriteFrame(kind FrameKind, payload []byte) error {
	n := uint64(len(payload)) + 1
	if n > uint64(c.MaxFrame) {
		return oops.In("transport").With("len", n).With("max", c.MaxFrame).Wrapf(ErrFrameTooLarge, "writing %s frame", kind)
	}

	buf := make([]byte, 5, 5+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(n))
	buf[4] = byte(kind)
	buf = append(buf, payload...)

	if _, err := c.rw.Write(buf); err != nil {
		return oops.In("transport").Wrapf(err, "writing %s frame", kind)
	}

	return nil
}

// ReadFrame receives one frame.
func (c *Conn) ReadFrame() (FrameKind, []byte, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(c.rw, hdr[:4]); err != nil {
		return 0, nil, oops.In("transport").Wrapf(err, "reading frame length")
	}

	n := binary.BigEndian.Uint32(hdr[:4])
	switch {
	case n == 0:
		return 0, nil, oops.In("transport").Wrapf(ErrBadFrame, "zero length frame")
	case n > c.MaxFrame:
		return 0, nil, oops.In("transport").With("len", n).With("max", c.MaxFrame).Wrapf(ErrFrameTooLarge, "reading frame")
	}

	if _, err := io.ReadFull(c.rw, hdr[4:]); err != nil {
		return 0, nil, oops.In("transport").Wrapf(err, "reading frame kind")
	}

	kind := FrameKind(hdr[4])
	switch kind {
	case FrameDone, FrameError, FrameToken:
	default:
		return 0, nil, oops.In("transport").With("kind", hdr[4]).Wrapf(ErrBadFrame, "unknown frame kind")
	}

	payload := make([]byte, n-1)
	if _, err := io.ReadFull(c.rw, payload); err != nil {
		return 0, nil, oops.In("transport").Wrapf(err, "reading %s frame", kind)
	}

	return kind, payload, nil
}

// WriteToken sends a token frame.
func (c *Conn) WriteToken(tok []byte) error {
	return c.WriteFrame(FrameToken, tok)
}

// ReadToken receives a token frame.  An Error frame from the peer is
// returned as a *RemoteError.
func (c *Conn) ReadToken() ([]byte, error) {
	kind, payload, err := c.ReadFrame()
	if err != nil {
		return nil, err
	}

	switch kind {
	case FrameToken:
		return payload, nil
	case FrameError:
		return nil, &RemoteError{Reason: string(payload)}
	}

	return nil, oops.In("transport").Wrapf(ErrBadFrame, "expected a token frame, got %s", kind)
}

// RemoteError reports a failure the peer sent in an Error frame.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "transport: peer reported failure: " + e.Reason
}
