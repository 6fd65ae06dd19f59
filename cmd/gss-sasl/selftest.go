// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
	"github.com/golang-auth/go-gssapi-sasl/kdctest"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
	"github.com/golang-auth/go-gssapi-sasl/transport"
)

const (
	selftestRealm   = "EXAMPLE.COM"
	selftestService = "server"
	selftestHost    = "host.EXAMPLE.COM"
	selftestUser    = "alice"
)

type scenario struct {
	name      string
	bound     bool
	clientQoP sasl.QoPSet
	serverQoP sasl.QoPSet
	want      sasl.QoP
}

var allQoP = sasl.QoPSet{sasl.QoPNone, sasl.QoPIntegrity, sasl.QoPConfidentiality}

var scenarios = []scenario{
	{"bound auth-int", true, sasl.QoPSet{sasl.QoPIntegrity}, allQoP, sasl.QoPIntegrity},
	{"unbound auth-conf", false, sasl.QoPSet{sasl.QoPConfidentiality}, allQoP, sasl.QoPConfidentiality},
	{"bound auth", true, sasl.QoPSet{sasl.QoPNone}, sasl.QoPSet{sasl.QoPNone}, sasl.QoPNone},
}

func newSelftestCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Negotiate against an in-process Kerberos realm",
		Long: `Run three negotiations between an in-process client and server holding
keys from a throwaway realm: a bound server with auth-int, an unbound server
with auth-conf and a bound server with auth only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}

			reports, failed := runSelftest(cmd.Context())
			if err := writeReports(cmd.OutOrStdout(), s.Output, reports...); err != nil {
				return err
			}
			if failed > 0 {
				return oops.In("selftest").Errorf("%d of %d scenarios failed", failed, len(reports))
			}
			return nil
		},
	}
}

func runSelftest(ctx context.Context) (reports []report, failed int) {
	realm := kdctest.NewRealm(selftestRealm)
	if err := realm.AddService(selftestService, selftestHost); err != nil {
		return []report{{Scenario: "setup", Result: err.Error()}}, 1
	}

	for _, sc := range scenarios {
		r, err := sc.run(ctx, realm)
		if err != nil {
			r.Result = "FAIL: " + err.Error()
			failed++
		}
		log.Get().WithFields(log.Fields{"at": "selftest", "scenario": sc.name, "result": r.Result}).Debug("scenario finished")
		reports = append(reports, r)
	}

	return reports, failed
}

// recorder keeps the last token a negotiator produced.
type recorder struct {
	transport.Negotiator
	last []byte
}

func (r *recorder) EvaluateToken(in []byte) ([]byte, error) {
	out, err := r.Negotiator.EvaluateToken(in)
	if err == nil {
		r.last = out
	}
	return out, err
}

func (sc scenario) run(ctx context.Context, realm *kdctest.Realm) (report, error) {
	rep := report{Scenario: sc.name}

	cli, err := sasl.NewClient(sasl.ClientConfig{
		Service: selftestService,
		Host:    selftestHost,
		QoP:     sc.clientQoP,
		Mech:    krb5.New(krb5.WithTicketSource(realm.Client(selftestUser))),
	})
	if err != nil {
		return rep, err
	}
	defer cli.Dispose()

	srvCfg := sasl.ServerConfig{
		Service:  selftestService,
		QoP:      sc.serverQoP,
		Resolver: sasl.StaticResolver{Realm: selftestRealm},
		Mech:     krb5.New(krb5.WithKeytab(realm.Keytab()), krb5.WithReplayCache(krb5.NewMemoryReplayCache())),
	}
	if sc.bound {
		srvCfg.ServerName = selftestHost
	}
	srv, err := sasl.NewServer(srvCfg)
	if err != nil {
		return rep, err
	}
	defer srv.Dispose()

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	cliConn, srvConn := transport.NewConn(a), transport.NewConn(b)

	done := make(chan error, 1)
	go func() {
		done <- transport.RunAcceptor(ctx, srvConn, srv)
	}()

	rec := &recorder{Negotiator: cli}
	if err := transport.RunInitiator(ctx, cliConn, rec); err != nil {
		return rep, err
	}
	if err := <-done; err != nil {
		return rep, err
	}

	props, err := srv.Properties()
	if err != nil {
		return rep, err
	}
	rep = newReport(sc.name, props)

	if props.QoP != sc.want {
		return rep, fmt.Errorf("negotiated %s, want %s", props.QoP, sc.want)
	}
	if props.BoundServerName != selftestHost {
		return rep, fmt.Errorf("bound server name is %q, want %q", props.BoundServerName, selftestHost)
	}
	if props.SessionKey == nil {
		return rep, fmt.Errorf("no session key")
	}

	if sc.want == sasl.QoPNone {
		return rep, checkNoLayer(cli, srv, rec.last)
	}

	return rep, echo(cliConn, srvConn, cli, srv)
}

// checkNoLayer verifies that neither side can protect messages and that
// the client advertised no receive buffer.
func checkNoLayer(cli *sasl.Client, srv *sasl.Server, final []byte) error {
	if len(final) < 20 || !bytes.Equal(final[17:20], []byte{0, 0, 0}) {
		return fmt.Errorf("final client token does not carry a zero buffer size")
	}

	msg := []byte{0, 1, 2, 3}
	for _, f := range []func([]byte, int, int) ([]byte, error){cli.Wrap, cli.Unwrap, srv.Wrap, srv.Unwrap} {
		_, err := f(msg, 0, len(msg))
		if err == nil || err.Error() != "No security layer negotiated" {
			return fmt.Errorf("expected a security layer error, got %v", err)
		}
	}

	return nil
}

// echo sends a message each way through the negotiated layer.
func echo(cliConn, srvConn *transport.Conn, cli *sasl.Client, srv *sasl.Server) error {
	cs, err := transport.NewSecureConn(cliConn, cli)
	if err != nil {
		return err
	}
	ss, err := transport.NewSecureConn(srvConn, srv)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		msg, err := ss.Receive()
		if err == nil {
			err = ss.Send(msg)
		}
		if err != nil {
			_ = srvConn.WriteFrame(transport.FrameError, []byte(err.Error()))
		}
		done <- err
	}()

	if err := cs.Send([]byte("hello")); err != nil {
		return err
	}
	reply, err := cs.Receive()
	if err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}
	if string(reply) != "hello" {
		return fmt.Errorf("echo returned %q", reply)
	}

	return nil
}
