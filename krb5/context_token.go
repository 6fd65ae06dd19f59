// SPDX-License-Identifier: Apache-2.0

package krb5

/*
 * The framing follows github.com/jcmturner/gokrb5/v8/spnego/krb5Token.go,
 * extended so an AP-REP can be produced for mutual authentication.
 */

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/asn1tools"
	"github.com/jcmturner/gokrb5/v8/messages"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
)

// Context-establishment token IDs, RFC 4121 § 4.1.
var (
	tokenIDKrbAPReq = [2]byte{0x01, 0x00}
	tokenIDKrbAPRep = [2]byte{0x02, 0x00}
	tokenIDKrbError = [2]byte{0x03, 0x00}
)

func oID() asn1.ObjectIdentifier {
	return asn1.ObjectIdentifier{1, 2, 840, 113554, 1, 2, 2}
}

// kRB5Token is the GSS-API framed form of a Kerberos message.  Exactly one
// of the message fields is set.
type kRB5Token struct {
	oID      asn1.ObjectIdentifier
	tokID    [2]byte
	aPReq    *messages.APReq
	aPRep    *aPRep
	kRBError *messages.KRBError
}

func apReqToken(apreq *messages.APReq) kRB5Token {
	return kRB5Token{oID: oID(), tokID: tokenIDKrbAPReq, aPReq: apreq}
}

func apRepToken(aprep *aPRep) kRB5Token {
	return kRB5Token{oID: oID(), tokID: tokenIDKrbAPRep, aPRep: aprep}
}

func krbErrorToken(ke *messages.KRBError) kRB5Token {
	return kRB5Token{oID: oID(), tokID: tokenIDKrbError, kRBError: ke}
}

func (m *kRB5Token) marshal() ([]byte, error) {
	b, err := asn1.Marshal(m.oID)
	if err != nil {
		return nil, fmt.Errorf("gssapi: marshalling mechanism OID: %w", err)
	}
	b = append(b, m.tokID[:]...)

	var msg []byte
	switch m.tokID {
	case tokenIDKrbAPReq:
		msg, err = m.aPReq.Marshal()
		if err != nil {
			err = fmt.Errorf("gssapi: error marshalling AP-REQ for MechToken: %w", err)
		}
	case tokenIDKrbAPRep:
		msg, err = m.aPRep.marshal()
		if err != nil {
			err = fmt.Errorf("gssapi: error marshalling AP-REP for MechToken: %w", err)
		}
	case tokenIDKrbError:
		msg, err = m.kRBError.Marshal()
		if err != nil {
			err = fmt.Errorf("gssapi: error marshalling KRB-ERROR for MechToken: %w", err)
		}
	default:
		err = fmt.Errorf("gssapi: unknown token ID %x", m.tokID)
	}
	if err != nil {
		return nil, err
	}

	return asn1tools.AddASNAppTag(append(b, msg...), 0), nil
}

// unmarshal decodes b.  A token carrying an unknown token ID decodes
// without error but with no message set.
func (m *kRB5Token) unmarshal(b []byte) error {
	*m = kRB5Token{}

	var oid asn1.ObjectIdentifier
	r, err := asn1.UnmarshalWithParams(b, &oid, "application,explicit,tag:0")
	if err != nil {
		return fmt.Errorf("%w: KRB5Token OID: %v", gssapi.ErrDefectiveToken, err)
	}
	if !oid.Equal(oID()) {
		return fmt.Errorf("%w: KRB5Token OID is %s not %s", gssapi.ErrDefectiveToken, oid.String(), oID().String())
	}
	m.oID = oid
	if len(r) < 2 {
		return fmt.Errorf("%w: KRB5Token too short", gssapi.ErrDefectiveToken)
	}

	copy(m.tokID[:], r[0:2])
	switch m.tokID {
	case tokenIDKrbAPReq:
		var a messages.APReq
		if err = a.Unmarshal(r[2:]); err != nil {
			return fmt.Errorf("%w: KRB5Token AP_REQ: %v", gssapi.ErrDefectiveToken, err)
		}
		m.aPReq = &a
	case tokenIDKrbAPRep:
		var a aPRep
		if err = a.unmarshal(r[2:]); err != nil {
			return fmt.Errorf("%w: KRB5Token AP_REP: %v", gssapi.ErrDefectiveToken, err)
		}
		m.aPRep = &a
	case tokenIDKrbError:
		var a messages.KRBError
		if err = a.Unmarshal(r[2:]); err != nil {
			return fmt.Errorf("%w: KRB5Token KRBError: %v", gssapi.ErrDefectiveToken, err)
		}
		m.kRBError = &a
	}

	return nil
}

// newAuthenticatorChksum builds the GSS-API checksum carried in the
// authenticator of an AP-REQ (RFC 4121 § 4.1.1).  SASL GSSAPI does not use
// channel bindings, so the binding hash is left as zeroes.
func newAuthenticatorChksum(flags gssapi.ContextFlag) []byte {
	a := make([]byte, 24)

	// length of the channel binding hash, always 16
	binary.LittleEndian.PutUint32(a[:4], 16)

	binary.LittleEndian.PutUint32(a[20:24], uint32(flags))

	return a
}

// authenticatorFlags extracts the context flags from an authenticator
// checksum built by newAuthenticatorChksum.
func authenticatorFlags(chksum []byte) (gssapi.ContextFlag, error) {
	if len(chksum) < 24 {
		return 0, errors.New("gssapi: authenticator checksum too short")
	}

	return gssapi.ContextFlag(binary.LittleEndian.Uint32(chksum[20:24])), nil
}
