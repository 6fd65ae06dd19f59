// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf)

	require.NoError(t, c.WriteToken([]byte("abc")))
	require.NoError(t, c.WriteToken(nil))
	require.NoError(t, c.WriteFrame(FrameDone, nil))

	assert.Equal(t, "0000000416616263"+"0000000116"+"0000000114", hex.EncodeToString(buf.Bytes()))

	tok, err := c.ReadToken()
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), tok)

	tok, err = c.ReadToken()
	assert.NoError(t, err)
	assert.Empty(t, tok)

	kind, payload, err := c.ReadFrame()
	assert.NoError(t, err)
	assert.Equal(t, FrameDone, kind)
	assert.Empty(t, payload)

	_, _, err = c.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameLimits(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf)
	c.MaxFrame = 8

	assert.ErrorIs(t, c.WriteToken(make([]byte, 8)), ErrFrameTooLarge)
	assert.NoError(t, c.WriteToken(make([]byte, 7)))
	assert.Equal(t, 12, buf.Len())

	buf.Reset()
	buf.Write([]byte{0, 0, 0, 9, 0x16})
	_, err := c.ReadToken()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestBadFrames(t *testing.T) {
	tests := map[string]string{
		"zero length":  "00000000",
		"unknown kind": "0000000199",
	}
	for name, in := range tests {
		b, _ := hex.DecodeString(in)
		_, _, err := NewConn(bytes.NewBuffer(b)).ReadFrame()
		assert.ErrorIs(t, err, ErrBadFrame, name)
	}

	// truncated payload
	b, _ := hex.DecodeString("000000051661")
	_, _, err := NewConn(bytes.NewBuffer(b)).ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// a done frame where a token is expected
	b, _ = hex.DecodeString("0000000114")
	_, err = NewConn(bytes.NewBuffer(b)).ReadToken()
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestRemoteError(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf)
	require.NoError(t, c.WriteFrame(FrameError, []byte("denied")))

	_, err := c.ReadToken()
	assert.True(t, IsRemote(err))
	assert.EqualError(t, err, "transport: peer reported failure: denied")
	assert.False(t, IsRemote(io.EOF))
}

func TestFrameKindString(t *testing.T) {
	assert.Equal(t, "token", FrameToken.String())
	assert.Equal(t, "done", FrameDone.String())
	assert.Equal(t, "error", FrameError.String())
	assert.Equal(t, "unknown", FrameKind(0).String())
}
