// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
	"github.com/golang-auth/go-gssapi-sasl/rcache"
	"github.com/golang-auth/go-gssapi-sasl/transport"
)

func newServerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Accept gss-sasl clients and echo their messages",
		Long: `Listen for gss-sasl clients, authenticate them with the service key in the
keytab and echo every protected message back.  Without --host the server is
unbound and accepts any service principal it has a key for.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, s, v.GetDuration("timeout"))
		},
	}

	f := cmd.Flags()
	f.String("keytab", "", "service keytab (default $KRB5_KTNAME or /etc/krb5.keytab)")
	f.String("realm", "", "accept only tickets issued by this realm")
	f.String("replay-cache", "", "persistent replay cache file (default in memory)")
	f.Float64("accept-rate", 50, "connections accepted per second")
	f.Duration("timeout", 30*time.Second, "negotiation timeout and idle limit per connection")
	f.Duration("clock-skew", krb5.ClockSkew, "tolerated difference between client and server clocks")

	return cmd
}

// acceptor holds what the connections of one server share.
type acceptor struct {
	s       settings
	keytab  *keytab.Keytab
	replay  krb5.ReplayCache
	timeout time.Duration
}

func runServer(ctx context.Context, s settings, timeout time.Duration) error {
	kt, err := krb5.LoadKeytab(s.Keytab)
	if err != nil {
		return oops.In("server").With("keytab", s.Keytab).Wrapf(err, "loading keytab")
	}

	a := &acceptor{s: s, keytab: kt, replay: krb5.NewMemoryReplayCache(), timeout: timeout}
	if s.ReplayCache != "" {
		rc, err := rcache.Open(s.ReplayCache)
		if err != nil {
			return oops.In("server").Wrapf(err, "opening replay cache")
		}
		defer rc.Close()
		a.replay = rc
	}

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return oops.In("server").With("addr", addr).Wrapf(err, "listening")
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	l := log.Get().WithFields(log.Fields{"at": "server", "addr": ln.Addr().String()})
	l.Info("listening")

	every := rate.Inf
	if s.AcceptRate > 0 {
		every = rate.Limit(s.AcceptRate)
	}
	limit := rate.NewLimiter(every, 1)
	for {
		if err := limit.Wait(ctx); err != nil {
			return nil
		}

		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return oops.In("server").Wrapf(err, "accepting")
		}

		go a.serve(ctx, nc)
	}
}

func (a *acceptor) mechOptions() []krb5.Option {
	opts := []krb5.Option{krb5.WithKeytab(a.keytab), krb5.WithReplayCache(a.replay)}
	if a.s.ClockSkew > 0 {
		opts = append(opts, krb5.WithClockSkew(a.s.ClockSkew))
	}

	return opts
}

func (a *acceptor) serve(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	l := log.Get().WithFields(log.Fields{"at": "server_conn", "peer": nc.RemoteAddr().String()})

	srv, err := sasl.NewServer(sasl.ServerConfig{
		Service:    a.s.Service,
		ServerName: a.s.Host,
		QoP:        a.s.QoP,
		MaxBuffer:  a.s.MaxBuffer,
		Resolver:   sasl.StaticResolver{Realm: a.s.Realm},
		Mech:       krb5.New(a.mechOptions()...),
	})
	if err != nil {
		l.WithError(err).Error("cannot create acceptor")
		return
	}
	defer srv.Dispose()

	nctx, cancel := context.WithTimeout(ctx, a.timeout)
	conn := transport.NewConn(nc)
	err = transport.RunAcceptor(nctx, conn, srv)
	cancel()
	if err != nil {
		l.WithError(err).Warn("negotiation failed")
		return
	}

	props, err := srv.Properties()
	if err != nil {
		l.WithError(err).Error("cannot read negotiated properties")
		return
	}
	l = l.WithFields(log.Fields{"client": props.AuthenticationID, "qop": props.QoP.String()})
	l.Info("client authenticated")

	sc, err := transport.NewSecureConn(conn, srv)
	if err != nil {
		l.WithError(err).Error("cannot protect messages")
		return
	}

	for {
		if err := nc.SetDeadline(time.Now().Add(a.timeout)); err != nil {
			l.WithError(err).Warn("cannot set deadline")
			return
		}

		msg, err := sc.Receive()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				l.Info("idle connection closed")
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				l.WithError(err).Warn("receive failed")
			}
			return
		}
		if err := sc.Send(msg); err != nil {
			l.WithError(err).Warn("send failed")
			return
		}
	}
}
