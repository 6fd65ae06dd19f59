// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/samber/oops"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
)

// Negotiator is one side of a negotiation; *sasl.Client and *sasl.Server
// satisfy it.
type Negotiator interface {
	EvaluateToken(in []byte) ([]byte, error)
	IsComplete() bool
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// watch interrupts blocked I/O on rw when ctx ends, if rw supports
// deadlines.  The returned function stops watching.
func watch(ctx context.Context, rw io.ReadWriter) func() bool {
	d, ok := rw.(deadliner)
	if !ok {
		return func() bool { return true }
	}

	return context.AfterFunc(ctx, func() {
		_ = d.SetDeadline(time.Now())
	})
}

func ctxErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return oops.In("transport").Wrapf(ctx.Err(), "negotiation interrupted: %v", err)
	}

	return err
}

// RunInitiator drives a client negotiation over c until the acceptor
// reports the outcome.
func RunInitiator(ctx context.Context, c *Conn, cli Negotiator) error {
	defer watch(ctx, c.rw)()
	l := log.Get().WithField("at", "transport_initiator")

	tok, err := cli.EvaluateToken(nil)
	if err != nil {
		return err
	}

	for round := 1; ; round++ {
		if err := c.WriteToken(tok); err != nil {
			return ctxErr(ctx, err)
		}
		l.WithFields(log.Fields{"round": round, "len": len(tok)}).Debug("token sent")

		kind, payload, err := c.ReadFrame()
		if err != nil {
			return ctxErr(ctx, err)
		}

		switch kind {
		case FrameDone:
			if !cli.IsComplete() {
				return oops.In("transport").Wrapf(ErrBadFrame, "acceptor finished before the initiator")
			}
			l.Debug("negotiation complete")
			return nil
		case FrameError:
			return &RemoteError{Reason: string(payload)}
		}

		if cli.IsComplete() {
			return oops.In("transport").Wrapf(ErrBadFrame, "token received after the initiator completed")
		}

		if tok, err = cli.EvaluateToken(payload); err != nil {
			return err
		}
	}
}

// RunAcceptor drives a server negotiation over c.  Failures are reported
// to the initiator in an Error frame carrying only the error kind, and are
// returned in full.
func RunAcceptor(ctx context.Context, c *Conn, srv Negotiator) error {
	defer watch(ctx, c.rw)()
	l := log.Get().WithField("at", "transport_acceptor")

	for round := 1; ; round++ {
		in, err := c.ReadToken()
		if err != nil {
			return ctxErr(ctx, err)
		}

		out, err := srv.EvaluateToken(in)
		if err != nil {
			l.WithFields(log.Fields{"round": round, "kind": failureReason(err)}).WithError(err).Debug("negotiation failed")
			if werr := c.WriteFrame(FrameError, []byte(failureReason(err))); werr != nil {
				l.WithError(werr).Warn("cannot report failure to initiator")
			}
			return err
		}

		if srv.IsComplete() {
			l.WithField("round", round).Debug("negotiation complete")
			return ctxErr(ctx, c.WriteFrame(FrameDone, nil))
		}

		if err := c.WriteToken(out); err != nil {
			return ctxErr(ctx, err)
		}
	}
}

// failureReason is what the initiator is told about a failure.
func failureReason(err error) string {
	if kind := sasl.KindOf(err); kind != 0 {
		return kind.String()
	}

	return "negotiation failed"
}

// IsRemote reports whether err came from the peer.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
