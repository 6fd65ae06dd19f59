// SPDX-License-Identifier: Apache-2.0

package sasl

import "encoding/binary"

const (
	layerMsgLen = 4

	// DefaultMaxBuffer is the receive limit advertised when none is
	// configured.
	DefaultMaxBuffer = 65536

	maxBufferLimit = 0xFFFFFF
)

// layerMsg is the payload of the wrapped tokens exchanged once the
// context is established (RFC 4752 § 3.1): a security layer bitmask, a
// 24 bit big-endian maximum message size and, from the initiator only, an
// authorization identity.
type layerMsg struct {
	layers  byte
	maxSize uint32
	authzID string
}

func (m layerMsg) marshal() []byte {
	b := make([]byte, layerMsgLen, layerMsgLen+len(m.authzID))
	binary.BigEndian.PutUint32(b, m.maxSize&maxBufferLimit)
	b[0] = m.layers

	return append(b, m.authzID...)
}

func (m *layerMsg) unmarshal(b []byte) error {
	if len(b) < layerMsgLen {
		return newError(KindProtocol, "security layer message too short: %d bytes", len(b))
	}

	m.layers = b[0]
	m.maxSize = binary.BigEndian.Uint32(b[:layerMsgLen]) & maxBufferLimit
	m.authzID = string(b[layerMsgLen:])

	return nil
}

func clampMaxBuffer(n uint32) uint32 {
	switch {
	case n == 0:
		return DefaultMaxBuffer
	case n > maxBufferLimit:
		return maxBufferLimit
	}

	return n
}
