// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
	"github.com/golang-auth/go-gssapi-sasl/transport"
)

func newClientCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client [message...]",
		Short: "Authenticate to a gss-sasl server and send messages",
		Long: `Authenticate to a gss-sasl server as the principal in the credentials
cache (or keytab, with --principal) and send each argument as a protected
message, printing the server's replies.  With --principal and
GSS_SASL_PASSWORD set, the client logs in with the password instead of a
keytab.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			return runClient(cmd, s, v.GetString("authzid"), v.GetDuration("timeout"), args)
		},
	}

	f := cmd.Flags()
	f.String("principal", "", "authenticate with this principal's key from --keytab instead of the credentials cache")
	f.String("keytab", "", "keytab for --principal (default $KRB5_KTNAME)")
	f.String("ccache", "", "credentials cache (default $KRB5CCNAME)")
	f.String("authzid", "", "authorization identity to request")
	f.Duration("timeout", 30*time.Second, "negotiation timeout")

	return cmd
}

func ticketSource(s settings) (krb5.TicketSource, error) {
	switch {
	case s.Principal != "" && s.Password != "":
		return krb5.PasswordSource(s.Principal, s.Password, s.Krb5Conf)
	case s.Principal != "":
		return krb5.KeytabSource(s.Principal, s.Keytab, s.Krb5Conf)
	}

	return krb5.CCacheSource(s.CCache, s.Krb5Conf)
}

func runClient(cmd *cobra.Command, s settings, authzID string, timeout time.Duration, messages []string) error {
	if s.Host == "" {
		return oops.In("client").Errorf("--host is required")
	}

	tickets, err := ticketSource(s)
	if err != nil {
		return oops.In("client").Wrapf(err, "loading credentials")
	}

	cli, err := sasl.NewClient(sasl.ClientConfig{
		Service:         s.Service,
		Host:            s.Host,
		QoP:             s.QoP,
		MaxBuffer:       s.MaxBuffer,
		AuthorizationID: authzID,
		Mech:            krb5.New(krb5.WithTicketSource(tickets)),
	})
	if err != nil {
		return err
	}
	defer cli.Dispose()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return oops.In("client").With("addr", addr).Wrapf(err, "connecting")
	}
	defer nc.Close()

	conn := transport.NewConn(nc)
	if err := transport.RunInitiator(ctx, conn, cli); err != nil {
		return oops.In("client").With("addr", addr).Wrapf(err, "negotiation failed")
	}

	props, err := cli.Properties()
	if err != nil {
		return err
	}
	if err := writeReports(cmd.OutOrStdout(), s.Output, newReport("", props)); err != nil {
		return err
	}

	sc, err := transport.NewSecureConn(conn, cli)
	if err != nil {
		return err
	}

	l := log.Get().WithFields(log.Fields{"at": "client", "addr": addr, "qop": sc.QoP().String()})
	for _, m := range messages {
		if err := sc.Send([]byte(m)); err != nil {
			return err
		}
		reply, err := sc.Receive()
		if err != nil {
			return err
		}
		l.WithField("len", len(reply)).Debug("reply received")
		cmd.Println(string(reply))
	}

	return nil
}
