// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"bytes"
	"crypto/hmac"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/iana/keyusage"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
)

// RFC 4121 § 4.2.6
const (
	msgTokenHdrLen          = 16
	msgTokenFillerByte byte = 0xFF
)

var wrapTokenID = [2]byte{0x05, 0x04}

// RFC 4121 § 4.2.2
type gSSMessageTokenFlag uint8

const (
	gSSMessageTokenFlagSentByAcceptor gSSMessageTokenFlag = 1 << iota
	gSSMessageTokenFlagSealed
	gSSMessageTokenFlagAcceptorSubkey
)

// wrapToken is a per-message token, RFC 4121 § 4.2.6.2.  Once signed or
// sealed, Payload holds the data that follows the 16 byte header.
type wrapToken struct {
	Flags          gSSMessageTokenFlag
	EC             uint16 // checksum length (signed) or filler length (sealed)
	RRC            uint16 // right rotation count, set by SSPI peers
	SequenceNumber uint64
	Payload        []byte
	signedOrSealed bool
}

func (wt *wrapToken) usage() uint32 {
	if wt.Flags&gSSMessageTokenFlagSentByAcceptor != 0 {
		return keyusage.GSSAPI_ACCEPTOR_SEAL
	}
	return keyusage.GSSAPI_INITIATOR_SEAL
}

// header returns the token header with EC and RRC zeroed, as used in the
// checksum and encrypted copy (RFC 4121 § 4.2.4).
func (wt *wrapToken) header() []byte {
	hdr := make([]byte, msgTokenHdrLen)
	hdr[0], hdr[1] = wrapTokenID[0], wrapTokenID[1]
	hdr[2] = byte(wt.Flags)
	hdr[3] = msgTokenFillerByte
	binary.BigEndian.PutUint64(hdr[8:], wt.SequenceNumber)
	return hdr
}

// Sign appends a checksum over { payload | header } to the payload.
func (wt *wrapToken) Sign(key types.EncryptionKey) error {
	if wt.Payload == nil {
		return errors.New("gssapi: attempt to sign token with no payload")
	}
	if wt.signedOrSealed {
		return errors.New("gssapi: attempt to sign a signed/sealed token")
	}

	encType, err := crypto.GetEtype(key.KeyType)
	if err != nil {
		return fmt.Errorf("gssapi: %w", err)
	}

	sig, err := wt.computeChecksum(key)
	if err != nil {
		return err
	}

	wt.Payload = append(wt.Payload, sig...)
	wt.EC = uint16(encType.GetHMACBitLength() / 8)
	wt.RRC = 0
	wt.signedOrSealed = true

	return nil
}

// Seal encrypts { payload | header } in place of the payload.
func (wt *wrapToken) Seal(key types.EncryptionKey) error {
	if wt.Payload == nil {
		return errors.New("gssapi: attempt to encrypt token with no payload")
	}
	if wt.signedOrSealed {
		return errors.New("gssapi: attempt to seal a signed/sealed token")
	}

	encType, err := crypto.GetEtype(key.KeyType)
	if err != nil {
		return fmt.Errorf("gssapi: %w", err)
	}

	plain := make([]byte, 0, len(wt.Payload)+msgTokenHdrLen)
	plain = append(plain, wt.Payload...)
	plain = append(plain, wt.header()...)

	_, sealed, err := encType.EncryptMessage(key.KeyValue, plain, wt.usage())
	if err != nil {
		return fmt.Errorf("gssapi: %w", err)
	}

	wt.Payload = sealed
	wt.EC = 0
	wt.RRC = 0
	wt.signedOrSealed = true

	return nil
}

func (wt *wrapToken) computeChecksum(key types.EncryptionKey) ([]byte, error) {
	encType, err := crypto.GetEtype(key.KeyType)
	if err != nil {
		return nil, fmt.Errorf("gssapi: %w", err)
	}

	data := make([]byte, 0, len(wt.Payload)+msgTokenHdrLen)
	data = append(data, wt.Payload...)
	data = append(data, wt.header()...)

	cksum, err := encType.GetChecksumHash(key.KeyValue, data, wt.usage())
	if err != nil {
		return nil, fmt.Errorf("gssapi: %w", err)
	}

	return cksum, nil
}

// Marshal returns the wire form of a signed or sealed token.
func (wt *wrapToken) Marshal() ([]byte, error) {
	if !wt.signedOrSealed {
		return nil, errors.New("gssapi: wrap token is not signed or sealed")
	}

	token := make([]byte, msgTokenHdrLen+len(wt.Payload))
	copy(token, wrapTokenID[:])
	token[2] = byte(wt.Flags)
	token[3] = msgTokenFillerByte
	binary.BigEndian.PutUint16(token[4:6], wt.EC)
	binary.BigEndian.PutUint16(token[6:8], wt.RRC)
	binary.BigEndian.PutUint64(token[8:16], wt.SequenceNumber)
	copy(token[16:], wt.Payload)

	return token, nil
}

// Unmarshal parses a token received from the peer.  The payload is copied
// so that undoing any rotation does not disturb the caller's buffer.
func (wt *wrapToken) Unmarshal(token []byte) error {
	*wt = wrapToken{}

	if len(token) < msgTokenHdrLen {
		return fmt.Errorf("%w: wrap token is too short", gssapi.ErrDefectiveToken)
	}

	// 0x60 introduces the generic framing of GSS-API v1 tokens, RFC 4121 § 4.4
	if token[0] == 0x60 {
		return fmt.Errorf("%w: GSS-API v1 message tokens are not supported", gssapi.ErrDefectiveToken)
	}
	if !bytes.Equal(wrapTokenID[:], token[0:2]) {
		return fmt.Errorf("%w: bad wrap token ID", gssapi.ErrDefectiveToken)
	}
	if token[3] != msgTokenFillerByte {
		return fmt.Errorf("%w: invalid wrap token (bad filler)", gssapi.ErrDefectiveToken)
	}

	wt.Flags = gSSMessageTokenFlag(token[2])
	wt.EC = binary.BigEndian.Uint16(token[4:6])
	wt.RRC = binary.BigEndian.Uint16(token[6:8])
	wt.SequenceNumber = binary.BigEndian.Uint64(token[8:16])

	if len(token) > msgTokenHdrLen {
		wt.Payload = append([]byte(nil), token[16:]...)
	}

	wt.signedOrSealed = true
	return nil
}

// VerifyAndDecode checks the token integrity and replaces the payload with
// the plaintext.
func (wt *wrapToken) VerifyAndDecode(key types.EncryptionKey, expectFromAcceptor bool) (isSealed bool, err error) {
	if !wt.signedOrSealed {
		return false, errors.New("gssapi: wrap token is not signed or sealed")
	}
	if len(wt.Payload) == 0 {
		return false, fmt.Errorf("%w: cannot verify an empty wrap token payload", gssapi.ErrDefectiveToken)
	}

	isFromAcceptor := wt.Flags&gSSMessageTokenFlagSentByAcceptor != 0
	if isFromAcceptor != expectFromAcceptor {
		return false, fmt.Errorf("%w: wrap token from acceptor: %t, expect from acceptor: %t",
			gssapi.ErrDefectiveToken, isFromAcceptor, expectFromAcceptor)
	}

	if wt.RRC != 0 {
		wt.Payload = rotateLeft(wt.Payload, uint(wt.RRC))
		wt.RRC = 0
	}

	if wt.Flags&gSSMessageTokenFlagSealed != 0 {
		return true, wt.decrypt(key)
	}
	return false, wt.checkSig(key)
}

func (wt *wrapToken) decrypt(key types.EncryptionKey) error {
	encType, err := crypto.GetEtype(key.KeyType)
	if err != nil {
		return fmt.Errorf("gssapi: wrap token: %w", err)
	}

	plain, err := encType.DecryptMessage(key.KeyValue, wt.Payload, wt.usage())
	if err != nil {
		return fmt.Errorf("%w: wrap token: %v", gssapi.ErrBadMic, err)
	}

	if len(plain) < int(wt.EC)+msgTokenHdrLen {
		return fmt.Errorf("%w: decrypted wrap token payload is too short", gssapi.ErrDefectiveToken)
	}

	// the encrypted copy of the header must match the clear one
	inner := wrapToken{}
	if err = inner.Unmarshal(plain[len(plain)-msgTokenHdrLen:]); err != nil {
		return err
	}
	if wt.Flags != inner.Flags || wt.EC != inner.EC || wt.SequenceNumber != inner.SequenceNumber {
		return fmt.Errorf("%w: wrap token header was modified", gssapi.ErrBadMic)
	}

	wt.Payload = plain[:len(plain)-msgTokenHdrLen-int(wt.EC)]
	wt.signedOrSealed = false

	return nil
}

func (wt *wrapToken) checkSig(key types.EncryptionKey) error {
	encType, err := crypto.GetEtype(key.KeyType)
	if err != nil {
		return fmt.Errorf("gssapi: wrap token: %w", err)
	}

	if wt.EC != uint16(encType.GetHMACBitLength()/8) {
		return fmt.Errorf("%w: bad wrap token checksum length", gssapi.ErrDefectiveToken)
	}
	if len(wt.Payload) < int(wt.EC) {
		return fmt.Errorf("%w: signed wrap token payload is too short", gssapi.ErrDefectiveToken)
	}

	split := len(wt.Payload) - int(wt.EC)
	tokCksum := wt.Payload[split:]

	unsigned := *wt
	unsigned.Payload = wt.Payload[:split]
	computed, err := unsigned.computeChecksum(key)
	if err != nil {
		return err
	}

	if !hmac.Equal(tokCksum, computed) {
		return fmt.Errorf("%w: invalid wrap token checksum", gssapi.ErrBadMic)
	}

	wt.Payload = wt.Payload[:split]
	wt.signedOrSealed = false

	return nil
}

// rotateLeft undoes the right rotation SSPI applies to token data, ported
// from gss_krb5int_rotate_left in MIT Kerberos.
func rotateLeft(buf []byte, rc uint) []byte {
	if len(buf) == 0 {
		return buf
	}

	rc %= uint(len(buf))
	if rc == 0 {
		return buf
	}

	tmp := make([]byte, rc)
	copy(tmp, buf[:rc])
	copy(buf, buf[rc:])
	copy(buf[uint(len(buf))-rc:], tmp)

	return buf
}
