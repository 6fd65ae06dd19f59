// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/kdctest"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
	"github.com/golang-auth/go-gssapi-sasl/transport"
)

func TestServeClosesIdleConnection(t *testing.T) {
	realm := kdctest.NewRealm(selftestRealm)
	require.NoError(t, realm.AddService(selftestService, selftestHost))

	a := &acceptor{
		s: settings{
			Service: selftestService,
			Host:    selftestHost,
			QoP:     sasl.QoPSet{sasl.QoPIntegrity},
			Realm:   selftestRealm,
		},
		keytab:  realm.Keytab(),
		replay:  krb5.NewMemoryReplayCache(),
		timeout: 200 * time.Millisecond,
	}

	cliSide, srvSide := net.Pipe()
	defer cliSide.Close()

	done := make(chan struct{})
	go func() {
		a.serve(context.Background(), srvSide)
		close(done)
	}()

	cli, err := sasl.NewClient(sasl.ClientConfig{
		Service: selftestService,
		Host:    selftestHost,
		QoP:     sasl.QoPSet{sasl.QoPIntegrity},
		Mech:    krb5.New(krb5.WithTicketSource(realm.Client(selftestUser))),
	})
	require.NoError(t, err)
	defer cli.Dispose()

	conn := transport.NewConn(cliSide)
	require.NoError(t, transport.RunInitiator(context.Background(), conn, cli))

	sc, err := transport.NewSecureConn(conn, cli)
	require.NoError(t, err)
	require.NoError(t, sc.Send([]byte("ping")))
	reply, err := sc.Receive()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(reply))

	// stay quiet past the idle limit
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("idle connection was not closed")
	}

	_, err = sc.Receive()
	assert.Error(t, err)
}

func TestMechOptionsKeepsDefaultSkew(t *testing.T) {
	a := &acceptor{}
	assert.Len(t, a.mechOptions(), 2)

	a.s.ClockSkew = time.Minute
	assert.Len(t, a.mechOptions(), 3)
}
