// SPDX-License-Identifier: Apache-2.0

package sasl

import (
	"bytes"
	"testing"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
)

func TestMaxBuffer(t *testing.T) {
	assert := NewAssert(t)
	r := newTestRealm(t)

	cli := r.client(t, ClientConfig{QoP: QoPSet{QoPIntegrity}, MaxBuffer: 1024})
	srv := r.server(t, ServerConfig{Service: testService, QoP: allQoP})

	_, err := negotiate(cli, srv)
	assert.NoErrorFatal(err)

	props, err := srv.Properties()
	assert.NoErrorFatal(err)
	assert.Equal(uint32(1024), props.MaxBuffer)
	// 16 byte header and a 12 byte HMAC-SHA1-96 checksum
	assert.Equal(uint32(996), props.RawSendSize)

	cprops, err := cli.Properties()
	assert.NoErrorFatal(err)
	assert.Equal(uint32(DefaultMaxBuffer), cprops.MaxBuffer)

	big := bytes.Repeat([]byte{'a'}, 997)
	_, err = srv.Wrap(big, 0, len(big))
	assert.ErrorIs(err, ErrProtocol)

	tok, err := srv.Wrap(big, 0, 996)
	assert.NoErrorFatal(err)
	assert.Len(tok, 1024)
	msg, err := cli.Unwrap(tok, 0, len(tok))
	assert.NoErrorFatal(err)
	assert.Equal(big[:996], msg)

	// larger than the client said it would accept
	_, err = cli.Unwrap(make([]byte, 1025), 0, 1025)
	assert.ErrorIs(err, ErrProtocol)
}

func TestPeerBufferTooSmall(t *testing.T) {
	assert := NewAssert(t)
	r := newTestRealm(t)

	// a sealed aes256 token is at least 60 bytes
	cli := r.client(t, ClientConfig{QoP: QoPSet{QoPConfidentiality}})
	srv := r.server(t, ServerConfig{Service: testService, QoP: allQoP, MaxBuffer: 40})

	_, err := negotiate(cli, srv)
	assert.NoErrorFatal(err)

	props, err := cli.Properties()
	assert.NoErrorFatal(err)
	assert.Equal(uint32(40), props.MaxBuffer)
	assert.Zero(props.RawSendSize)

	for _, n := range []int{0, 1} {
		_, err = cli.Wrap([]byte("x"), 0, n)
		assert.ErrorIs(err, ErrProtocol, n)
		assert.Equal(StateComplete, cli.State())
	}

	// the server has no such limit from the client
	tok, err := srv.Wrap([]byte("x"), 0, 1)
	assert.NoErrorFatal(err)
	msg, err := cli.Unwrap(tok, 0, len(tok))
	assert.NoErrorFatal(err)
	assert.Equal([]byte("x"), msg)
}

func TestProtectBounds(t *testing.T) {
	assert := NewAssert(t)
	r := newTestRealm(t)

	cli := r.client(t, ClientConfig{QoP: QoPSet{QoPIntegrity}})
	srv := r.server(t, ServerConfig{Service: testService, QoP: allQoP})

	_, err := negotiate(cli, srv)
	assert.NoErrorFatal(err)

	p := []byte("hello")
	bad := [][2]int{{-1, 1}, {0, -1}, {0, 6}, {6, 0}, {3, 3}}
	for _, b := range bad {
		_, err := cli.Wrap(p, b[0], b[1])
		assert.ErrorIs(err, ErrProtocol, "wrap %v", b)
		_, err = cli.Unwrap(p, b[0], b[1])
		assert.ErrorIs(err, ErrProtocol, "unwrap %v", b)
	}

	// an empty message is in range
	tok, err := cli.Wrap(p, 5, 0)
	assert.NoErrorFatal(err)
	msg, err := srv.Unwrap(tok, 0, len(tok))
	assert.NoErrorFatal(err)
	assert.Empty(msg)
}

func TestUnwrapTampered(t *testing.T) {
	assert := NewAssert(t)
	r := newTestRealm(t)

	cli := r.client(t, ClientConfig{QoP: QoPSet{QoPIntegrity}})
	srv := r.server(t, ServerConfig{Service: testService, QoP: allQoP})

	_, err := negotiate(cli, srv)
	assert.NoErrorFatal(err)

	tok, err := cli.Wrap([]byte("hello"), 0, 5)
	assert.NoErrorFatal(err)
	tok[len(tok)-1] ^= 0xff

	_, err = srv.Unwrap(tok, 0, len(tok))
	assert.ErrorIs(err, ErrProtocol)
	assert.ErrorIs(err, gssapi.ErrBadMic)
}

func TestUnsealedUnderConf(t *testing.T) {
	assert := NewAssert(t)
	r := newTestRealm(t)

	cli := r.client(t, ClientConfig{QoP: QoPSet{QoPConfidentiality}})
	srv := r.server(t, ServerConfig{Service: testService, QoP: allQoP})

	_, err := negotiate(cli, srv)
	assert.NoErrorFatal(err)

	// a signed but unencrypted message from the server
	tok, err := srv.mech.Wrap([]byte("plain"), false)
	assert.NoErrorFatal(err)

	_, err = cli.Unwrap(tok, 0, len(tok))
	assert.ErrorIs(err, ErrProtocol)
}

func TestWrapSequence(t *testing.T) {
	assert := NewAssert(t)
	r := newTestRealm(t)

	cli := r.client(t, ClientConfig{QoP: QoPSet{QoPConfidentiality}})
	srv := r.server(t, ServerConfig{Service: testService, QoP: allQoP})

	_, err := negotiate(cli, srv)
	assert.NoErrorFatal(err)

	var toks [][]byte
	for _, s := range []string{"one", "two", "three"} {
		tok, err := cli.Wrap([]byte(s), 0, len(s))
		assert.NoErrorFatal(err)
		toks = append(toks, tok)
	}

	// out of order
	_, err = srv.Unwrap(toks[1], 0, len(toks[1]))
	assert.ErrorIs(err, ErrProtocol)
	assert.ErrorIs(err, gssapi.InfoUnseqToken)

	for i, s := range []string{"one", "two", "three"} {
		msg, err := srv.Unwrap(toks[i], 0, len(toks[i]))
		assert.NoErrorFatal(err)
		assert.Equal(s, string(msg))
	}
}
