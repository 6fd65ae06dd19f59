// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/kdctest"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
)

type pair struct {
	cli *sasl.Client
	srv *sasl.Server
}

func newPair(t *testing.T, cliQoP, srvQoP sasl.QoPSet, resolver sasl.IdentityResolver) pair {
	realm := kdctest.NewRealm("EXAMPLE.COM")
	require.NoError(t, realm.AddService("server", "host.EXAMPLE.COM"))

	cli, err := sasl.NewClient(sasl.ClientConfig{
		Service: "server",
		Host:    "host.EXAMPLE.COM",
		QoP:     cliQoP,
		Mech:    krb5.New(krb5.WithTicketSource(realm.Client("alice"))),
	})
	require.NoError(t, err)

	if resolver == nil {
		resolver = sasl.StaticResolver{Realm: "EXAMPLE.COM"}
	}
	srv, err := sasl.NewServer(sasl.ServerConfig{
		Service:  "server",
		QoP:      srvQoP,
		Resolver: resolver,
		Mech:     krb5.New(krb5.WithKeytab(realm.Keytab()), krb5.WithReplayCache(krb5.NewMemoryReplayCache())),
	})
	require.NoError(t, err)

	return pair{cli, srv}
}

// run negotiates over a pipe and returns both sides' results.
func run(ctx context.Context, p pair) (cliConn, srvConn *Conn, cliErr, srvErr error) {
	a, b := net.Pipe()
	cliConn, srvConn = NewConn(a), NewConn(b)

	done := make(chan error, 1)
	go func() {
		done <- RunAcceptor(ctx, srvConn, p.srv)
	}()

	cliErr = RunInitiator(ctx, cliConn, p.cli)
	srvErr = <-done

	return cliConn, srvConn, cliErr, srvErr
}

func TestNegotiateOverPipe(t *testing.T) {
	p := newPair(t, sasl.QoPSet{sasl.QoPConfidentiality}, sasl.QoPSet{sasl.QoPNone, sasl.QoPConfidentiality}, nil)

	cliConn, srvConn, cliErr, srvErr := run(context.Background(), p)
	require.NoError(t, cliErr)
	require.NoError(t, srvErr)
	assert.True(t, p.cli.IsComplete())
	assert.True(t, p.srv.IsComplete())

	cs, err := NewSecureConn(cliConn, p.cli)
	require.NoError(t, err)
	ss, err := NewSecureConn(srvConn, p.srv)
	require.NoError(t, err)
	assert.Equal(t, sasl.QoPConfidentiality, cs.QoP())

	go func() {
		msg, err := ss.Receive()
		if err == nil {
			err = ss.Send(append([]byte("echo: "), msg...))
		}
		if err != nil {
			_ = srvConn.WriteFrame(FrameError, []byte(err.Error()))
		}
	}()

	require.NoError(t, cs.Send([]byte("hello")))
	reply, err := cs.Receive()
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", string(reply))
}

func TestSecureConnAuthOnly(t *testing.T) {
	p := newPair(t, nil, nil, nil)

	cliConn, srvConn, cliErr, srvErr := run(context.Background(), p)
	require.NoError(t, cliErr)
	require.NoError(t, srvErr)

	cs, err := NewSecureConn(cliConn, p.cli)
	require.NoError(t, err)
	ss, err := NewSecureConn(srvConn, p.srv)
	require.NoError(t, err)
	assert.Equal(t, sasl.QoPNone, ss.QoP())

	go func() { _ = cs.Send([]byte("plain")) }()

	msg, err := ss.Receive()
	require.NoError(t, err)
	assert.Equal(t, "plain", string(msg))
}

func TestSecureConnBeforeComplete(t *testing.T) {
	p := newPair(t, nil, nil, nil)

	_, err := NewSecureConn(NewConn(nil), p.cli)
	assert.ErrorIs(t, err, sasl.ErrState)
}

func TestAuthorizationFailureReported(t *testing.T) {
	deny := sasl.ResolverFuncs{AuthorizeFunc: func(sasl.Identity) bool { return false }}
	p := newPair(t, nil, nil, deny)

	_, _, cliErr, srvErr := run(context.Background(), p)
	assert.ErrorIs(t, srvErr, sasl.ErrAuthorization)
	assert.True(t, IsRemote(cliErr))

	var re *RemoteError
	require.ErrorAs(t, cliErr, &re)
	assert.Equal(t, "AuthorizationError", re.Reason)
	assert.NotContains(t, cliErr.Error(), "alice")
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "NegotiationFailure", failureReason(fmt.Errorf("wrapped: %w", &sasl.Error{Kind: sasl.KindNegotiation, Message: "realm FOO"})))
	assert.Equal(t, "negotiation failed", failureReason(errors.New("alice@EXAMPLE.COM: secret detail")))
}

func TestNoCommonLayer(t *testing.T) {
	p := newPair(t, sasl.QoPSet{sasl.QoPConfidentiality}, sasl.QoPSet{sasl.QoPNone}, nil)

	a, b := net.Pipe()
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		done <- RunAcceptor(context.Background(), NewConn(b), p.srv)
	}()

	err := RunInitiator(context.Background(), NewConn(a), p.cli)
	assert.ErrorIs(t, err, sasl.ErrNegotiation)

	// the initiator gave up, so the acceptor sees the connection close
	a.Close()
	assert.Error(t, <-done)
	assert.False(t, p.srv.IsComplete())
}

func TestContextCancel(t *testing.T) {
	p := newPair(t, nil, nil, nil)

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// nobody answers on b
	go func() { _, _ = NewConn(b).ReadToken() }()

	err := RunInitiator(ctx, NewConn(a), p.cli)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
