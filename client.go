// SPDX-License-Identifier: Apache-2.0

package sasl

import (
	"errors"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
)

// clientFlags are requested on every initiator context.
const clientFlags = gssapi.ContextFlagMutual | gssapi.ContextFlagInteg | gssapi.ContextFlagConf |
	gssapi.ContextFlagReplay | gssapi.ContextFlagSequence

// ClientConfig configures an initiator.
type ClientConfig struct {
	// Service and Host name the acceptor, service@host.
	Service string
	Host    string

	// QoP lists the protection levels the client will accept.  Defaults to
	// auth only.
	QoP QoPSet

	// MaxBuffer is the largest wrapped message the client will receive.
	// Defaults to DefaultMaxBuffer.
	MaxBuffer uint32

	// AuthorizationID is the identity to act as.  Empty means the
	// authenticated principal.
	AuthorizationID string

	// Mech is a fresh mechanism context.  Defaults to one from the
	// DefaultMech registry entry.
	Mech gssapi.Mech
}

type clientStep int

const (
	clientInitiate clientStep = iota
	clientContext
	clientLayers
)

// Client is the initiating side of a negotiation.
type Client struct {
	engine
	cfg      ClientConfig
	awaiting clientStep
}

// NewClient returns an initiator in the Initial state.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Service == "" || cfg.Host == "" {
		return nil, errors.New("sasl: client requires a service and host")
	}
	if len(cfg.QoP) == 0 {
		cfg.QoP = QoPSet{QoPNone}
	}
	if err := validQoPSet(cfg.QoP); err != nil {
		return nil, err
	}

	eng, err := newEngine(RoleInitiator, cfg.Mech, cfg.MaxBuffer)
	if err != nil {
		return nil, err
	}

	return &Client{engine: eng, cfg: cfg}, nil
}

// HasInitialResponse reports that the client speaks first.
func (c *Client) HasInitialResponse() bool {
	return true
}

// EvaluateChallenge is EvaluateToken.
func (c *Client) EvaluateChallenge(challenge []byte) ([]byte, error) {
	return c.EvaluateToken(challenge)
}

// EvaluateToken consumes a challenge from the server and returns the
// response to send back.  The first call takes an empty challenge.
func (c *Client) EvaluateToken(in []byte) ([]byte, error) {
	if err := c.checkEvaluate(); err != nil {
		return nil, err
	}

	c.log.WithFields(log.Fields{"at": "sasl_evaluate", "step": int(c.awaiting), "len": len(in)}).Debug("evaluating challenge")

	switch c.awaiting {
	case clientInitiate:
		return c.initiate(in)
	case clientContext:
		return c.continueContext(in)
	default:
		return c.selectLayer(in)
	}
}

func (c *Client) initiate(in []byte) ([]byte, error) {
	if len(in) != 0 {
		return nil, c.fail(newError(KindProtocol, "unexpected initial challenge"))
	}
	c.step()

	target := gssapi.Name{Service: c.cfg.Service, Host: c.cfg.Host}
	if err := c.mech.Initiate(target, clientFlags); err != nil {
		return nil, c.fail(mechError(classify(err), err, "cannot initiate context for %s", target))
	}

	out, err := c.mech.Continue(nil)
	if err != nil {
		return nil, c.fail(mechError(KindProtocol, err, "cannot create initial token"))
	}

	c.awaiting = clientContext
	if c.mech.IsEstablished() {
		c.awaiting = clientLayers
	}

	return out, nil
}

func (c *Client) continueContext(in []byte) ([]byte, error) {
	out, err := c.mech.Continue(in)
	if err != nil {
		return nil, c.fail(mechError(classify(err), err, "context establishment failed"))
	}

	if c.mech.IsEstablished() {
		c.awaiting = clientLayers
		if out == nil {
			out = []byte{}
		}
	}

	return out, nil
}

func (c *Client) selectLayer(in []byte) ([]byte, error) {
	payload, _, err := c.mech.Unwrap(in)
	if err != nil {
		return nil, c.fail(mechError(KindProtocol, err, "cannot unwrap security layer offer"))
	}
	if len(payload) != layerMsgLen {
		return nil, c.fail(newError(KindProtocol, "security layer offer has %d bytes, want %d", len(payload), layerMsgLen))
	}

	var offer layerMsg
	if err := offer.unmarshal(payload); err != nil {
		return nil, c.fail(err)
	}

	var usable QoPSet
	for _, q := range QoPSetFromMask(offer.layers) {
		if c.supports(q) {
			usable = append(usable, q)
		}
	}

	qop, err := Select(usable, c.cfg.QoP)
	if err != nil {
		return nil, c.fail(err)
	}

	reply := layerMsg{layers: byte(qop), authzID: c.cfg.AuthorizationID}
	if qop != QoPNone {
		reply.maxSize = c.maxBuf
	}

	out, err := c.mech.Wrap(reply.marshal(), false)
	if err != nil {
		return nil, c.fail(mechError(KindProtocol, err, "cannot wrap security layer selection"))
	}

	props := &NegotiatedProperties{
		QoP:             qop,
		BoundServerName: c.cfg.Host,
		AuthorizationID: c.cfg.AuthorizationID,
		SSF:             c.ssf(qop),
	}
	if qop != QoPNone {
		props.MaxBuffer = offer.maxSize
		props.RawSendSize = c.rawSendSize(qop, offer.maxSize)
	}
	c.finish(props)

	return out, nil
}
