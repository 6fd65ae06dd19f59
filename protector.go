// SPDX-License-Identifier: Apache-2.0

package sasl

// Wrap protects p[offset:offset+length] with the negotiated security
// layer: signed under auth-int and sealed under auth-conf.
func (e *engine) Wrap(p []byte, offset, length int) ([]byte, error) {
	msg, err := e.protectable(p, offset, length)
	if err != nil {
		return nil, err
	}

	if e.props.MaxBuffer != 0 {
		if e.props.RawSendSize == 0 {
			return nil, newError(KindProtocol, "peer's maximum buffer of %d bytes cannot hold a wrapped message", e.props.MaxBuffer)
		}
		if uint64(length) > uint64(e.props.RawSendSize) {
			return nil, newError(KindProtocol, "message of %d bytes exceeds the peer's limit of %d", length, e.props.RawSendSize)
		}
	}

	tok, err := e.mech.Wrap(msg, e.props.QoP == QoPConfidentiality)
	if err != nil {
		return nil, mechError(KindProtocol, err, "wrap failed")
	}

	return tok, nil
}

// Unwrap verifies the token in p[offset:offset+length] and returns its
// payload.
func (e *engine) Unwrap(p []byte, offset, length int) ([]byte, error) {
	tok, err := e.protectable(p, offset, length)
	if err != nil {
		return nil, err
	}

	if uint64(length) > uint64(e.maxBuf) {
		return nil, newError(KindProtocol, "token of %d bytes exceeds the maximum buffer of %d", length, e.maxBuf)
	}

	payload, sealed, err := e.mech.Unwrap(tok)
	if err != nil {
		return nil, mechError(KindProtocol, err, "unwrap failed")
	}
	if e.props.QoP == QoPConfidentiality && !sealed {
		return nil, newError(KindProtocol, "token is not sealed but auth-conf was negotiated")
	}

	return payload, nil
}

func (e *engine) protectable(p []byte, offset, length int) ([]byte, error) {
	switch {
	case e.state != StateComplete:
		return nil, newError(KindState, "negotiation is not complete")
	case e.disposed:
		return nil, newError(KindState, "context has been disposed")
	case e.props.QoP == QoPNone:
		return nil, newError(KindState, errNoSecurityLayer)
	}

	if offset < 0 || length < 0 || offset > len(p) || length > len(p)-offset {
		return nil, newError(KindProtocol, "offset %d and length %d out of range for %d bytes", offset, length, len(p))
	}

	return p[offset : offset+length], nil
}
