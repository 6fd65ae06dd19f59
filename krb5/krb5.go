// SPDX-License-Identifier: Apache-2.0

/*
Package krb5 provides the pure-Go Kerberos V GSS-API mechanism (RFC 4121)
used by the SASL GSSAPI engine.

Importing the package registers the mechanism under the name
"kerberos_v5":

	import _ "github.com/golang-auth/go-gssapi-sasl/krb5"

	mech, err := gssapi.NewMech("kerberos_v5")

A registered instance finds its credentials the way MIT Kerberos does:
initiators use the credentials cache named by KRB5CCNAME and acceptors use
the keytab named by KRB5_KTNAME, both with krb5.conf from KRB5_CONFIG.
Use New with options to supply credentials directly.
*/
package krb5

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/iana/chksumtype"
	ianaerrcode "github.com/jcmturner/gokrb5/v8/iana/errorcode"
	ianaflags "github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
)

// MechName is the registry name of the mechanism.
const MechName = "kerberos_v5"

func init() {
	gssapi.Register(MechName, NewKrb5Mech)
}

// ClockSkew defines the maximum tolerable difference between the two peers
// of a GSS-API context, and defaults to 10 seconds.  Increase this number if
// there is poor syncronisation between client and server nodes.
var ClockSkew = time.Second * 10

type acceptorISN int

// These constants define how the Acceptor initial sequence number is derived
// when the context does not use mutual authentication.  In this case, the
// Acceptor does not have the opportunity to communicate its own sequence number
// to the Initiator.
const (
	// DefaultAcceptorISNInitiator uses the Initiator's initial sequence number
	// as the Acceptor ISN.  Use this for compatibility with MIT.
	DefaultAcceptorISNInitiator acceptorISN = iota

	// DefaultAcceptorISNZero uses zero as the Acceptor ISN.  Use this for
	// compatibility with Heimdal.
	DefaultAcceptorISNZero
)

// AcceptorISN holds the Acceptor-Initial-Sequence derivation policy for
// contexts not using mutual authentication.
var AcceptorISN acceptorISN = DefaultAcceptorISNInitiator

// supportedFlags are the context flags this mechanism can provide.
const supportedFlags = gssapi.ContextFlagConf | gssapi.ContextFlagInteg |
	gssapi.ContextFlagReplay | gssapi.ContextFlagSequence

// Option configures a Krb5Mech created with New.
type Option func(*Krb5Mech)

// WithTicketSource sets the initiator credentials.
func WithTicketSource(ts TicketSource) Option {
	return func(m *Krb5Mech) { m.tickets = ts }
}

// WithKeytab sets the acceptor credentials.
func WithKeytab(kt *keytab.Keytab) Option {
	return func(m *Krb5Mech) { m.keytab = kt }
}

// WithReplayCache sets the cache an acceptor uses to refuse replayed
// authenticators.  The default is DefaultReplayCache.
func WithReplayCache(rc ReplayCache) Option {
	return func(m *Krb5Mech) { m.replay = rc }
}

// WithClockSkew overrides ClockSkew for one context.
func WithClockSkew(d time.Duration) Option {
	return func(m *Krb5Mech) { m.skew = d }
}

// Krb5Mech is the implementation of gssapi.Mech for the Kerberos V
// mechanism.
type Krb5Mech struct {
	tickets TicketSource
	keytab  *keytab.Keytab
	replay  ReplayCache
	skew    time.Duration

	isInitiator      bool
	isEstablished    bool
	waitingForMutual bool

	target gssapi.Name // initiator: the service addressed
	self   gssapi.Name // acceptor: the name it is restricted to, if any
	realm  string      // acceptor: the realm it is restricted to, if any

	ticket              *messages.Ticket
	sessionKey          *types.EncryptionKey
	initiatorSubKey     *types.EncryptionKey
	acceptorSubKey      *types.EncryptionKey
	clientCTime         time.Time
	clientCusec         int
	sessionFlags        gssapi.ContextFlag
	requestFlags        gssapi.ContextFlag
	ourSequenceNumber   uint64
	theirSequenceNumber uint64
	peerName            string
	acceptorName        gssapi.Name
}

var (
	_ gssapi.Mech        = (*Krb5Mech)(nil)
	_ gssapi.RealmBinder = (*Krb5Mech)(nil)
	_ gssapi.KeyExporter = (*Krb5Mech)(nil)
)

// New returns an unestablished Kerberos V context.
func New(opts ...Option) *Krb5Mech {
	m := &Krb5Mech{
		replay: DefaultReplayCache,
		skew:   ClockSkew,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewKrb5Mech is the registry factory.  It returns a context that uses
// the default credential locations.
func NewKrb5Mech() gssapi.Mech {
	return New()
}

// IsEstablished returns false until the context has been negotiated and is
// ready to protect messages.
func (m *Krb5Mech) IsEstablished() bool {
	return m.isEstablished
}

// ContextFlags returns the flags available on the context.  The set may
// change during establishment.
func (m *Krb5Mech) ContextFlags() gssapi.ContextFlag {
	return m.sessionFlags
}

// PeerName returns the name of the remote peer's Kerberos principal.
func (m *Krb5Mech) PeerName() string {
	return m.peerName
}

// AcceptorName returns the service principal the context was established
// for, as a host-based name.
func (m *Krb5Mech) AcceptorName() gssapi.Name {
	return m.acceptorName
}

// BindRealm restricts an acceptor to tickets issued in realm.
func (m *Krb5Mech) BindRealm(realm string) {
	m.realm = realm
}

func (m *Krb5Mech) currentKey() *types.EncryptionKey {
	switch {
	case m.acceptorSubKey != nil:
		return m.acceptorSubKey
	case m.initiatorSubKey != nil:
		return m.initiatorSubKey
	default:
		return m.sessionKey
	}
}

// SSF returns the Security Strength Factor of the context, which depends
// on the type of key protecting it.
func (m *Krb5Mech) SSF() uint {
	key := m.currentKey()
	if key == nil {
		return 0
	}

	return keySSF(key.KeyType)
}

// SessionKey returns a copy of the key protecting the context.
func (m *Krb5Mech) SessionKey() (*gssapi.SessionKey, error) {
	if !m.isEstablished {
		return nil, gssapi.ErrNoContext
	}

	key := m.currentKey()
	if key == nil || len(key.KeyValue) == 0 {
		return nil, fmt.Errorf("%w: context has no session key", gssapi.ErrUnavailable)
	}

	return &gssapi.SessionKey{
		Type:  key.KeyType,
		Value: append([]byte(nil), key.KeyValue...),
	}, nil
}

// WrapSizeLimit follows MIT Kerberos 1.16 (src/lib/gssapi/krb5/wrap_size_limit.c).
func (m *Krb5Mech) WrapSizeLimit(requestedOutputSize uint32, confidentiality bool) uint32 {
	key := m.currentKey()
	if key == nil {
		return 0
	}

	sz := requestedOutputSize

	if confidentiality {
		// shrink the message until the sealed form including the header fits
		for sz > 0 {
			if msgTokenHdrLen+encryptedLength(key.KeyType, sz) <= requestedOutputSize {
				break
			}
			sz--
		}

		// the encrypted copy of the header
		if sz > msgTokenHdrLen {
			sz -= msgTokenHdrLen
		} else {
			sz = 0
		}
	} else {
		et, err := crypto.GetEtype(key.KeyType)
		if err != nil {
			return 0
		}
		overhead := uint32(msgTokenHdrLen + et.GetHMACBitLength()/8)

		if sz < overhead {
			sz = 0
		} else {
			sz -= overhead
		}
	}

	return sz
}

// Initiate obtains a service ticket for target and prepares the first
// context token.  Mutual authentication, integrity and confidentiality are
// negotiated when requested.
func (m *Krb5Mech) Initiate(target gssapi.Name, requestFlags gssapi.ContextFlag) error {
	m.isEstablished = false
	m.waitingForMutual = false
	m.isInitiator = true
	m.target = target

	if target.Service == "" || target.Host == "" {
		return fmt.Errorf("%w: initiator target must be service@host, got %q", gssapi.ErrBadName, target.String())
	}

	if m.tickets == nil {
		ts, err := CCacheSource("", "")
		if err != nil {
			return err
		}
		m.tickets = ts
	}

	spn := target.Service + "/" + target.Host
	tkt, key, err := m.tickets.ServiceTicket(spn)
	if err != nil {
		return err
	}

	m.ticket, m.sessionKey = &tkt, &key
	m.peerName = fmt.Sprintf("%s@%s", tkt.SName.PrincipalNameString(), tkt.Realm)
	m.acceptorName = target

	// The set we tell the caller we support may be wider than the set we
	// ask for; mutual is added once the AP-REP is verified.
	m.sessionFlags = supportedFlags
	m.requestFlags = requestFlags & (supportedFlags | gssapi.ContextFlagMutual)

	log.Get().WithFields(log.Fields{"at": "krb5_initiate", "spn": spn, "realm": tkt.Realm}).Debug("service ticket obtained")
	return nil
}

// Accept prepares an acceptor context.  A non-zero self restricts the
// context to tickets for that service, and for that host when self.Host
// is set.
func (m *Krb5Mech) Accept(self gssapi.Name) error {
	m.isEstablished = false
	m.waitingForMutual = false
	m.isInitiator = false
	m.self = self

	// mutual is added if the initiator asks for it
	m.sessionFlags = supportedFlags

	return nil
}

// Continue consumes a context token from the peer and returns the token to
// send back, if any.
func (m *Krb5Mech) Continue(tokenIn []byte) ([]byte, error) {
	if m.isEstablished {
		return nil, nil
	}

	if m.isInitiator {
		return m.continueInitiator(tokenIn)
	}
	return m.continueAcceptor(tokenIn)
}

func (m *Krb5Mech) continueInitiator(tokenIn []byte) ([]byte, error) {
	// first call: produce the AP-REQ
	if len(tokenIn) == 0 {
		if m.ticket == nil || m.waitingForMutual {
			return nil, fmt.Errorf("%w: initiator context is not ready, call Initiate first", gssapi.ErrNoContext)
		}

		apreq, err := m.getAPReqMessage()
		if err != nil {
			return nil, err
		}

		gssToken := apReqToken(&apreq)
		tokenOut, err := gssToken.marshal()
		if err != nil {
			return nil, err
		}

		// without mutual authentication there will be no AP-REP
		if m.requestFlags&gssapi.ContextFlagMutual == 0 {
			m.isEstablished = true

			// the acceptor cannot tell us its initial sequence number
			// see https://bugs.openjdk.java.net/browse/JDK-8201814
			switch AcceptorISN {
			case DefaultAcceptorISNInitiator:
				m.theirSequenceNumber = m.ourSequenceNumber
			case DefaultAcceptorISNZero:
				m.theirSequenceNumber = 0
			default:
				return nil, errors.New("gssapi: unknown acceptor-initial-sequence-number policy configured")
			}
		} else {
			m.waitingForMutual = true
		}

		return tokenOut, nil
	}

	if !m.waitingForMutual {
		return nil, fmt.Errorf("%w: unexpected context token, call Initiate to start a new context", gssapi.ErrNoContext)
	}

	gssToken := kRB5Token{}
	if err := gssToken.unmarshal(tokenIn); err != nil {
		return nil, err
	}

	if gssToken.kRBError != nil {
		return nil, fmt.Errorf("%w: acceptor rejected the context: %v", gssapi.ErrFailure, gssToken.kRBError.Error())
	}
	if gssToken.aPRep == nil {
		return nil, fmt.Errorf("%w: GSSAPI token does not contain AP-REP message", gssapi.ErrDefectiveToken)
	}

	msg, err := gssToken.aPRep.decryptEncPart(*m.sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gssapi.ErrDefectiveToken, err)
	}

	// time.Equal would compare the monotonic reading of clientCTime
	if msg.CTime.Unix() != m.clientCTime.Unix() || msg.Cusec != m.clientCusec {
		return nil, fmt.Errorf("%w: mutual authentication failed", gssapi.ErrFailure)
	}

	m.theirSequenceNumber = uint64(msg.SequenceNumber)
	if msg.Subkey.KeyType != 0 {
		m.acceptorSubKey = &msg.Subkey
	}

	m.isEstablished = true
	m.waitingForMutual = false
	m.sessionFlags |= gssapi.ContextFlagMutual

	return nil, nil
}

func (m *Krb5Mech) continueAcceptor(tokenIn []byte) ([]byte, error) {
	gssInToken := kRB5Token{}
	if err := gssInToken.unmarshal(tokenIn); err != nil {
		return nil, err
	}

	if gssInToken.kRBError != nil {
		return nil, fmt.Errorf("%w: initiator sent an error: %v", gssapi.ErrFailure, gssInToken.kRBError.Error())
	}

	// RFC 4121 § 4.1 requires a KRB-ERROR reply to an unknown token ID
	if gssInToken.aPReq == nil && gssInToken.aPRep == nil {
		ke := messages.NewKRBError(types.PrincipalName{}, "", ianaerrcode.KRB_AP_ERR_MSG_TYPE, "gss accept failed")
		return rejectToken(ke, fmt.Errorf("%w: unknown context token ID", gssapi.ErrDefectiveToken))
	}
	if gssInToken.aPReq == nil {
		return nil, fmt.Errorf("%w: GSSAPI token does not contain AP-REQ message", gssapi.ErrDefectiveToken)
	}

	apreq := gssInToken.aPReq
	if ke, err := m.verifyAPReq(apreq); err != nil {
		log.Get().WithFields(log.Fields{"at": "krb5_accept", "sname": apreq.Ticket.SName.PrincipalNameString(), "realm": apreq.Ticket.Realm}).WithError(err).Debug("AP-REQ rejected")
		if ke == nil {
			return nil, err
		}
		return rejectToken(*ke, err)
	}

	auth := &apreq.Authenticator
	m.ticket = &apreq.Ticket
	m.sessionKey = &apreq.Ticket.DecryptedEncPart.Key
	if auth.SubKey.KeyType != 0 {
		m.initiatorSubKey = &auth.SubKey
	}

	// the protocol carries a 32 bit sequence number, so the cast is safe
	m.theirSequenceNumber = uint64(auth.SeqNumber)
	m.clientCTime = auth.CTime
	m.clientCusec = auth.Cusec

	requested, _ := authenticatorFlags(auth.Cksum.Checksum)
	m.sessionFlags &= requested

	m.peerName = fmt.Sprintf("%s@%s",
		apreq.Ticket.DecryptedEncPart.CName.PrincipalNameString(),
		apreq.Ticket.DecryptedEncPart.CRealm)
	m.acceptorName = nameFromPrincipal(apreq.Ticket.SName)

	var tokenOut []byte
	if types.IsFlagSet(&apreq.APOptions, ianaflags.APOptionMutualRequired) {
		aprep, err := m.getAPRepMessage()
		if err != nil {
			return nil, err
		}

		gssOutToken := apRepToken(&aprep)
		if tokenOut, err = gssOutToken.marshal(); err != nil {
			return nil, err
		}

		m.sessionFlags |= gssapi.ContextFlagMutual
	} else {
		switch AcceptorISN {
		case DefaultAcceptorISNInitiator:
			m.ourSequenceNumber = m.theirSequenceNumber
		case DefaultAcceptorISNZero:
			m.ourSequenceNumber = 0
		default:
			return nil, errors.New("gssapi: unknown acceptor-initial-sequence-number policy configured")
		}
	}

	m.isEstablished = true
	return tokenOut, nil
}

// Wrap protects payload for the peer.  The payload is sealed if
// confidentiality is requested, and signed if not.
func (m *Krb5Mech) Wrap(payload []byte, confidentiality bool) ([]byte, error) {
	if !m.isEstablished {
		return nil, gssapi.ErrNoContext
	}

	var flags gSSMessageTokenFlag
	if !m.isInitiator {
		flags |= gSSMessageTokenFlagSentByAcceptor
	}
	if confidentiality {
		flags |= gSSMessageTokenFlagSealed
	}
	if m.acceptorSubKey != nil {
		flags |= gSSMessageTokenFlagAcceptorSubkey
	}

	// a private copy, so that signing cannot append into the caller's array
	wt := wrapToken{
		Flags:          flags,
		SequenceNumber: m.ourSequenceNumber,
		Payload:        append(make([]byte, 0, len(payload)+32), payload...),
	}

	var err error
	if confidentiality {
		err = wt.Seal(*m.currentKey())
	} else {
		err = wt.Sign(*m.currentKey())
	}
	if err != nil {
		return nil, err
	}

	tokenOut, err := wt.Marshal()
	if err != nil {
		return nil, err
	}

	m.ourSequenceNumber++
	return tokenOut, nil
}

// Unwrap verifies a token created by the peer's Wrap and returns the
// payload.  isSealed reports whether the payload was encrypted.
func (m *Krb5Mech) Unwrap(tokenIn []byte) (payload []byte, isSealed bool, err error) {
	if !m.isEstablished {
		return nil, false, gssapi.ErrNoContext
	}

	wt := wrapToken{}
	if err = wt.Unmarshal(tokenIn); err != nil {
		return nil, false, err
	}

	key := m.currentKey()
	if wt.Flags&gSSMessageTokenFlagAcceptorSubkey != 0 && m.acceptorSubKey == nil {
		return nil, false, fmt.Errorf("%w: acceptor subkey not negotiated, cannot unwrap message", gssapi.ErrDefectiveToken)
	}

	if isSealed, err = wt.VerifyAndDecode(*key, m.isInitiator); err != nil {
		return nil, false, err
	}

	if m.sessionFlags&(gssapi.ContextFlagReplay|gssapi.ContextFlagSequence) != 0 {
		if wt.SequenceNumber != m.theirSequenceNumber {
			return nil, false, fmt.Errorf("%w: bad sequence number from peer, got %d, wanted %d",
				gssapi.InfoUnseqToken, wt.SequenceNumber, m.theirSequenceNumber)
		}
	}
	m.theirSequenceNumber++

	return wt.Payload, isSealed, nil
}

// Release discards the key material held by the context.
func (m *Krb5Mech) Release() {
	for _, k := range []*types.EncryptionKey{m.sessionKey, m.initiatorSubKey, m.acceptorSubKey} {
		if k == nil {
			continue
		}
		for i := range k.KeyValue {
			k.KeyValue[i] = 0
		}
	}

	m.sessionKey, m.initiatorSubKey, m.acceptorSubKey = nil, nil, nil
	m.ticket = nil
	m.isEstablished = false
	m.waitingForMutual = false
}

func (m *Krb5Mech) getAPReqMessage() (messages.APReq, error) {
	cname, crealm := m.tickets.Principal()

	auth, err := types.NewAuthenticator(crealm, cname)
	if err != nil {
		return messages.APReq{}, fmt.Errorf("gssapi: generating new authenticator: %w", err)
	}

	// MIT compatibility
	auth.SeqNumber &= 0x3fffffff

	auth.Cksum = types.Checksum{
		CksumType: chksumtype.GSSAPI,
		Checksum:  newAuthenticatorChksum(m.requestFlags),
	}

	apreq, err := messages.NewAPReq(*m.ticket, *m.sessionKey, auth)
	if err != nil {
		return messages.APReq{}, fmt.Errorf("gssapi: %w", err)
	}

	if m.requestFlags&gssapi.ContextFlagMutual != 0 {
		types.SetFlag(&apreq.APOptions, ianaflags.APOptionMutualRequired)
	}

	m.ourSequenceNumber = uint64(auth.SeqNumber)
	m.clientCTime = auth.CTime
	m.clientCusec = auth.Cusec

	return apreq, nil
}

func (m *Krb5Mech) getAPRepMessage() (aPRep, error) {
	seq, err := rand.Int(rand.Reader, big.NewInt(math.MaxUint32))
	if err != nil {
		return aPRep{}, err
	}

	// Older MIT implementations use signed sequence numbers, so keep the
	// initial value below 2^30.
	seqNum := seq.Int64() & 0x3fffffff

	encPart := encAPRepPart{
		CTime:          m.clientCTime,
		Cusec:          m.clientCusec,
		SequenceNumber: seqNum,
	}

	aprep, err := newAPRep(*m.ticket, *m.sessionKey, encPart)
	if err != nil {
		return aPRep{}, fmt.Errorf("gssapi: %w", err)
	}

	m.ourSequenceNumber = uint64(seqNum)
	return aprep, nil
}

// verifyAPReq validates an AP-REQ against the acceptor's restrictions and
// keys.  When it fails, the KRB-ERROR to return to the initiator is
// returned alongside the local error, if one applies.
//
// Addresses in the ticket are not checked.
func (m *Krb5Mech) verifyAPReq(apreq *messages.APReq) (*messages.KRBError, error) {
	tkt := &apreq.Ticket

	reject := func(code int32, cause error, text string) (*messages.KRBError, error) {
		ke := messages.NewKRBError(tkt.SName, tkt.Realm, code, text)
		return &ke, fmt.Errorf("%w: %s", cause, text)
	}

	if m.realm != "" && tkt.Realm != m.realm {
		return reject(ianaerrcode.KRB_AP_ERR_NOT_US, gssapi.ErrBadName,
			fmt.Sprintf("ticket realm %s is not %s", tkt.Realm, m.realm))
	}
	if !m.self.IsZero() && !nameMatches(m.self, tkt.SName) {
		return reject(ianaerrcode.KRB_AP_ERR_NOT_US, gssapi.ErrBadName,
			fmt.Sprintf("ticket is for %s, not %s", tkt.SName.PrincipalNameString(), m.self))
	}

	if m.keytab == nil {
		kt, err := LoadKeytab("")
		if err != nil {
			return reject(ianaerrcode.KRB_AP_ERR_NOKEY, gssapi.ErrNoCred, "no key for service")
		}
		m.keytab = kt
	}

	if err := tkt.DecryptEncPart(m.keytab, &tkt.SName); err != nil {
		var ke messages.KRBError
		if errors.As(err, &ke) {
			return &ke, fmt.Errorf("%w: %v", gssapi.ErrNoCred, ke.Error())
		}
		return reject(ianaerrcode.KRB_AP_ERR_BAD_INTEGRITY, gssapi.ErrDefectiveToken, "could not decrypt ticket")
	}

	if ok, err := tkt.Valid(m.skew); err != nil || !ok {
		var ke messages.KRBError
		if errors.As(err, &ke) {
			return &ke, fmt.Errorf("%w: %v", gssapi.ErrFailure, ke.Error())
		}
		return reject(ianaerrcode.KRB_AP_ERR_TKT_EXPIRED, gssapi.ErrFailure, "ticket is not valid")
	}

	if err := apreq.DecryptAuthenticator(tkt.DecryptedEncPart.Key); err != nil {
		return reject(ianaerrcode.KRB_AP_ERR_BAD_INTEGRITY, gssapi.ErrDefectiveToken, "could not decrypt authenticator")
	}

	auth := &apreq.Authenticator
	if auth.Cksum.CksumType != chksumtype.GSSAPI {
		return reject(ianaerrcode.KRB_AP_ERR_BADMATCH, gssapi.ErrDefectiveToken, "wrong authenticator checksum type")
	}
	if _, err := authenticatorFlags(auth.Cksum.Checksum); err != nil {
		return reject(ianaerrcode.KRB_AP_ERR_BADMATCH, gssapi.ErrDefectiveToken, "authenticator checksum too short")
	}
	if !auth.CName.Equal(tkt.DecryptedEncPart.CName) {
		return reject(ianaerrcode.KRB_AP_ERR_BADMATCH, gssapi.ErrDefectiveToken, "CName in Authenticator does not match that in service ticket")
	}

	ct := auth.CTime.Add(time.Duration(auth.Cusec) * time.Microsecond)
	now := time.Now().UTC()
	if now.Sub(ct) > m.skew || ct.Sub(now) > m.skew {
		return reject(ianaerrcode.KRB_AP_ERR_SKEW, gssapi.ErrFailure,
			fmt.Sprintf("clock skew with client too large. greater than %v", m.skew))
	}

	if m.replay != nil {
		seen, err := m.replay.Seen(ReplayEntry{
			Client:    tkt.DecryptedEncPart.CName.PrincipalNameString() + "@" + tkt.DecryptedEncPart.CRealm,
			Server:    tkt.SName.PrincipalNameString() + "@" + tkt.Realm,
			CTime:     auth.CTime,
			Cusec:     auth.Cusec,
			SeqNumber: auth.SeqNumber,
			Expires:   ct.Add(2 * m.skew),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: replay cache: %v", gssapi.ErrFailure, err)
		}
		if seen {
			return reject(ianaerrcode.KRB_AP_ERR_REPEAT, gssapi.InfoDuplicateToken, "request is a replay")
		}
	}

	return nil, nil
}

// rejectToken returns the KRB-ERROR token for the initiator together with
// the local error.  If the token cannot be built only the error is returned.
func rejectToken(ke messages.KRBError, cause error) ([]byte, error) {
	gssToken := krbErrorToken(&ke)
	token, err := gssToken.marshal()
	if err != nil {
		return nil, cause
	}

	return token, cause
}

func nameMatches(self gssapi.Name, sname types.PrincipalName) bool {
	comps := sname.NameString
	if self.Service != "" && (len(comps) < 1 || comps[0] != self.Service) {
		return false
	}
	if self.Host != "" && (len(comps) < 2 || !strings.EqualFold(comps[1], self.Host)) {
		return false
	}

	return true
}

func nameFromPrincipal(pn types.PrincipalName) gssapi.Name {
	var n gssapi.Name
	if len(pn.NameString) > 0 {
		n.Service = pn.NameString[0]
	}
	if len(pn.NameString) > 1 {
		n.Host = pn.NameString[1]
	}

	return n
}
