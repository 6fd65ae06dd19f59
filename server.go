// SPDX-License-Identifier: Apache-2.0

package sasl

import (
	"errors"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
)

// ServerConfig configures an acceptor.
type ServerConfig struct {
	// Service is the service part of the acceptor's principal.  Empty
	// accepts any service the acceptor holds keys for.
	Service string

	// ServerName binds the acceptor to one host.  Empty leaves it unbound:
	// it accepts tickets for any host it holds keys for and reports the
	// host that was addressed as the bound server name.
	ServerName string

	// QoP lists the protection levels offered.  Defaults to auth only.
	QoP QoPSet

	// MaxBuffer is the largest wrapped message the server will receive.
	// Defaults to DefaultMaxBuffer.
	MaxBuffer uint32

	Resolver IdentityResolver

	// Mech is a fresh mechanism context.  Defaults to one from the
	// DefaultMech registry entry.
	Mech gssapi.Mech
}

type serverStep int

const (
	serverAccept serverStep = iota
	serverContext
	serverConfirm
	serverLayers
)

// Server is the accepting side of a negotiation.
type Server struct {
	engine
	cfg      ServerConfig
	awaiting serverStep
	offered  QoPSet
}

// NewServer returns an acceptor in the Initial state.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("sasl: server requires an identity resolver")
	}
	if cfg.ServerName != "" && cfg.Service == "" {
		return nil, errors.New("sasl: a bound server requires a service")
	}
	if len(cfg.QoP) == 0 {
		cfg.QoP = QoPSet{QoPNone}
	}
	if err := validQoPSet(cfg.QoP); err != nil {
		return nil, err
	}

	eng, err := newEngine(RoleAcceptor, cfg.Mech, cfg.MaxBuffer)
	if err != nil {
		return nil, err
	}

	return &Server{engine: eng, cfg: cfg}, nil
}

// EvaluateResponse is EvaluateToken.
func (s *Server) EvaluateResponse(response []byte) ([]byte, error) {
	return s.EvaluateToken(response)
}

// EvaluateToken consumes a response from the client and returns the
// challenge to send back.  The final call returns nil and leaves the
// server Complete.
func (s *Server) EvaluateToken(in []byte) ([]byte, error) {
	if err := s.checkEvaluate(); err != nil {
		return nil, err
	}

	s.log.WithFields(log.Fields{"at": "sasl_evaluate", "step": int(s.awaiting), "len": len(in)}).Debug("evaluating response")

	switch s.awaiting {
	case serverAccept:
		return s.accept(in)
	case serverContext:
		return s.continueContext(in)
	case serverConfirm:
		return s.confirm(in)
	default:
		return s.checkLayer(in)
	}
}

func (s *Server) accept(in []byte) ([]byte, error) {
	s.step()

	realm, err := s.cfg.Resolver.ResolveRealm()
	if err != nil {
		return nil, s.fail(mechError(KindProtocol, err, "cannot resolve realm"))
	}
	if realm != "" {
		binder, ok := s.mech.(gssapi.RealmBinder)
		if !ok {
			return nil, s.fail(newError(KindNegotiation, "mechanism cannot restrict the acceptor to realm %s", realm))
		}
		binder.BindRealm(realm)
	}

	self := gssapi.Name{Service: s.cfg.Service, Host: s.cfg.ServerName}
	if err := s.mech.Accept(self); err != nil {
		return nil, s.fail(mechError(classify(err), err, "cannot accept context as %s", self))
	}

	s.log.WithFields(log.Fields{"at": "sasl_accept", "self": self.String(), "realm": realm}).Debug("accepting context")

	s.awaiting = serverContext
	return s.continueContext(in)
}

func (s *Server) continueContext(in []byte) ([]byte, error) {
	out, err := s.mech.Continue(in)
	if err != nil {
		return nil, s.fail(mechError(classify(err), err, "context establishment failed"))
	}

	if !s.mech.IsEstablished() {
		return out, nil
	}

	// with mutual authentication the client answers the AP-REP with an
	// empty response before the layers are offered
	if len(out) > 0 {
		s.awaiting = serverConfirm
		return out, nil
	}

	return s.offer()
}

func (s *Server) confirm(in []byte) ([]byte, error) {
	if len(in) != 0 {
		return nil, s.fail(newError(KindProtocol, "unexpected %d byte response after context establishment", len(in)))
	}

	return s.offer()
}

func (s *Server) offer() ([]byte, error) {
	var offered QoPSet
	for _, q := range s.cfg.QoP {
		if s.supports(q) {
			offered = append(offered, q)
		}
	}
	if len(offered) == 0 {
		return nil, s.fail(newError(KindNegotiation, "context supports none of the offered layers %q", s.cfg.QoP.String()))
	}

	msg := layerMsg{layers: offered.Mask()}
	if msg.layers != byte(QoPNone) {
		msg.maxSize = s.maxBuf
	}

	out, err := s.mech.Wrap(msg.marshal(), false)
	if err != nil {
		return nil, s.fail(mechError(KindProtocol, err, "cannot wrap security layer offer"))
	}

	s.offered = offered
	s.awaiting = serverLayers

	return out, nil
}

func (s *Server) checkLayer(in []byte) ([]byte, error) {
	payload, _, err := s.mech.Unwrap(in)
	if err != nil {
		return nil, s.fail(mechError(KindProtocol, err, "cannot unwrap security layer selection"))
	}

	var reply layerMsg
	if err := reply.unmarshal(payload); err != nil {
		return nil, s.fail(err)
	}

	qop := QoP(reply.layers)
	chosen := QoPSetFromMask(reply.layers)
	if len(chosen) != 1 || chosen[0] != qop {
		return nil, s.fail(newError(KindProtocol, "client must select exactly one security layer, got 0x%02x", reply.layers))
	}
	if _, err := Select(QoPSet{qop}, s.offered); err != nil {
		return nil, s.fail(err)
	}
	if qop == QoPNone && reply.maxSize != 0 {
		return nil, s.fail(newError(KindProtocol, "client set maximum buffer %d without a security layer", reply.maxSize))
	}

	id := Identity{
		AuthenticationID: s.mech.PeerName(),
		AuthorizationID:  reply.authzID,
	}
	if id.AuthorizationID == "" {
		id.AuthorizationID = id.AuthenticationID
	}
	if !s.cfg.Resolver.Authorize(id) {
		return nil, s.fail(newError(KindAuthorization, "%s is not authorized to act as %s", id.AuthenticationID, id.AuthorizationID))
	}

	props := &NegotiatedProperties{
		QoP:              qop,
		BoundServerName:  s.cfg.ServerName,
		AuthorizationID:  id.AuthorizationID,
		AuthenticationID: id.AuthenticationID,
		SSF:              s.ssf(qop),
	}
	if props.BoundServerName == "" {
		props.BoundServerName = s.mech.AcceptorName().Host
	}
	if qop != QoPNone {
		props.MaxBuffer = reply.maxSize
		props.RawSendSize = s.rawSendSize(qop, reply.maxSize)
	}
	s.finish(props)

	return nil, nil
}
