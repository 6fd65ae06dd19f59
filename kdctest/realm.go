// SPDX-License-Identifier: Apache-2.0

/*
Package kdctest is an in-process stand-in for a Kerberos KDC.

A Realm holds service keys in a gokrb5 keytab and issues service tickets
directly, without any network exchange.  Its clients satisfy
krb5.TicketSource and its keytabs can be handed to an acceptor, so an
initiator and an acceptor can establish real Kerberos contexts in tests and
in the selftest command.
*/
package kdctest

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

// ErrUnknownService is returned for a ticket request naming a service the
// realm has no key for.
var ErrUnknownService = errors.New("kdctest: server not found in Kerberos database")

const defaultKVNO = 2

// Realm is a single Kerberos realm.
type Realm struct {
	name  string
	etype int32

	// TicketLifetime is the validity period of issued tickets.
	TicketLifetime time.Duration

	// Now is the clock used to stamp tickets.
	Now func() time.Time

	mu       sync.Mutex
	keytab   *keytab.Keytab
	services map[string]string // spn -> password
}

// NewRealm returns an empty realm issuing aes256-cts-hmac-sha1-96 tickets.
func NewRealm(name string) *Realm {
	return &Realm{
		name:           name,
		etype:          etypeID.AES256_CTS_HMAC_SHA1_96,
		TicketLifetime: 10 * time.Hour,
		Now:            time.Now,
		keytab:         keytab.New(),
		services:       make(map[string]string),
	}
}

// Name returns the realm name.
func (r *Realm) Name() string {
	return r.name
}

// AddService creates a key for the service principal service/host.
func (r *Realm) AddService(service, host string) error {
	spn := service + "/" + host

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[spn]; ok {
		return fmt.Errorf("kdctest: service %s already exists", spn)
	}

	pw := make([]byte, 24)
	if _, err := rand.Read(pw); err != nil {
		return err
	}
	password := hex.EncodeToString(pw)

	if err := r.keytab.AddEntry(spn, r.name, password, r.Now(), defaultKVNO, r.etype); err != nil {
		return fmt.Errorf("kdctest: adding key for %s: %w", spn, err)
	}
	r.services[spn] = password

	return nil
}

// Keytab returns a keytab holding the keys of every service in the realm.
func (r *Realm) Keytab() *keytab.Keytab {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.keytab
}

// ServiceKeytab returns a keytab holding only the key of service/host.
func (r *Realm) ServiceKeytab(service, host string) (*keytab.Keytab, error) {
	spn := service + "/" + host

	r.mu.Lock()
	defer r.mu.Unlock()

	password, ok := r.services[spn]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrUnknownService, spn, r.name)
	}

	kt := keytab.New()
	if err := kt.AddEntry(spn, r.name, password, r.Now(), defaultKVNO, r.etype); err != nil {
		return nil, fmt.Errorf("kdctest: adding key for %s: %w", spn, err)
	}

	return kt, nil
}

// Client returns a ticket source for the user principal user@REALM.
func (r *Realm) Client(user string) *Client {
	return &Client{
		realm: r,
		cname: types.NewPrincipalName(nametype.KRB_NT_PRINCIPAL, user),
	}
}

// Client is a principal of a Realm that has already authenticated.
type Client struct {
	realm *Realm
	cname types.PrincipalName

	// Issued counts the tickets handed out.
	Issued int
}

// Principal returns the client principal and realm.
func (c *Client) Principal() (types.PrincipalName, string) {
	return c.cname, c.realm.name
}

// ServiceTicket issues a ticket for spn (service/host) in the client's
// realm.
func (c *Client) ServiceTicket(spn string) (messages.Ticket, types.EncryptionKey, error) {
	r := c.realm

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[spn]; !ok {
		return messages.Ticket{}, types.EncryptionKey{}, fmt.Errorf("%w: %s@%s", ErrUnknownService, spn, r.name)
	}

	sname := types.NewPrincipalName(nametype.KRB_NT_SRV_INST, spn)
	now := r.Now().UTC().Truncate(time.Second)
	end := now.Add(r.TicketLifetime)

	tkt, key, err := messages.NewTicket(c.cname, r.name, sname, r.name, types.NewKrbFlags(),
		r.keytab, r.etype, defaultKVNO, now, now, end, end)
	if err != nil {
		return tkt, key, fmt.Errorf("kdctest: issuing ticket for %s: %w", spn, err)
	}

	c.Issued++
	return tkt, key, nil
}
