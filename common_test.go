// SPDX-License-Identifier: Apache-2.0

package sasl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/golang-auth/go-gssapi-sasl/kdctest"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
)

// Local version of testify/assert  with some extensions
type myassert struct {
	*assert.Assertions

	t *testing.T
}

// Fail the test immediately on error
func (a *myassert) NoErrorFatal(err error) {
	a.NoError(err)
	if err != nil {
		a.t.Logf("Stopping test %s due to fatal error", a.t.Name())
		a.t.FailNow()
	}
}

// Fail the test immediately unless err is one of target
func (a *myassert) ErrorIsFatal(err, target error) {
	if !a.ErrorIs(err, target) {
		a.t.Logf("Stopping test %s due to unexpected error", a.t.Name())
		a.t.FailNow()
	}
}

func NewAssert(t *testing.T) *myassert {
	a := assert.New(t)
	return &myassert{a, t}
}

const (
	testRealmName = "EXAMPLE.COM"
	testService   = "server"
	testHost      = "host.EXAMPLE.COM"
)

var allQoP = QoPSet{QoPNone, QoPIntegrity, QoPConfidentiality}

// testRealm issues tickets for alice@EXAMPLE.COM to server/host.EXAMPLE.COM
// and other/host.EXAMPLE.COM.
type testRealm struct {
	realm *kdctest.Realm
	alice *kdctest.Client
}

func newTestRealm(t *testing.T) *testRealm {
	assert := NewAssert(t)

	realm := kdctest.NewRealm(testRealmName)
	assert.NoErrorFatal(realm.AddService(testService, testHost))
	assert.NoErrorFatal(realm.AddService("other", testHost))

	return &testRealm{realm: realm, alice: realm.Client("alice")}
}

func (r *testRealm) client(t *testing.T, cfg ClientConfig) *Client {
	if cfg.Service == "" {
		cfg.Service = testService
	}
	if cfg.Host == "" {
		cfg.Host = testHost
	}
	cfg.Mech = krb5.New(krb5.WithTicketSource(r.alice))

	cli, err := NewClient(cfg)
	NewAssert(t).NoErrorFatal(err)

	return cli
}

func (r *testRealm) server(t *testing.T, cfg ServerConfig) *Server {
	if cfg.Resolver == nil {
		cfg.Resolver = StaticResolver{Realm: testRealmName}
	}
	cfg.Mech = krb5.New(krb5.WithKeytab(r.realm.Keytab()), krb5.WithReplayCache(krb5.NewMemoryReplayCache()))

	srv, err := NewServer(cfg)
	NewAssert(t).NoErrorFatal(err)

	return srv
}

// negotiate runs the exchange until the server completes or either side
// fails, and returns the last token the client produced.
func negotiate(cli *Client, srv *Server) (last []byte, err error) {
	tok, err := cli.EvaluateChallenge(nil)
	for err == nil {
		last = tok
		if tok, err = srv.EvaluateResponse(tok); err != nil || srv.IsComplete() {
			return last, err
		}
		tok, err = cli.EvaluateChallenge(tok)
	}

	return last, err
}
