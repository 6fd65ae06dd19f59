// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"fmt"
	"os"
	"strings"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
)

// Environment variables consulted when no explicit path is configured.
const (
	EnvConfig = "KRB5_CONFIG"
	EnvCCache = "KRB5CCNAME"
	EnvKeytab = "KRB5_KTNAME"
)

// TicketSource supplies an initiator with its own identity and with service
// tickets.
type TicketSource interface {
	// Principal returns the client principal and its realm.
	Principal() (types.PrincipalName, string)

	// ServiceTicket returns a ticket and session key for an SPN of the
	// form service/host.
	ServiceTicket(spn string) (messages.Ticket, types.EncryptionKey, error)
}

type clientSource struct {
	cl *client.Client
}

// NewClientSource adapts a gokrb5 client.  The client logs in on first use.
func NewClientSource(cl *client.Client) TicketSource {
	return clientSource{cl: cl}
}

func (s clientSource) Principal() (types.PrincipalName, string) {
	return s.cl.Credentials.CName(), s.cl.Credentials.Domain()
}

func (s clientSource) ServiceTicket(spn string) (messages.Ticket, types.EncryptionKey, error) {
	if err := s.cl.AffirmLogin(); err != nil {
		return messages.Ticket{}, types.EncryptionKey{}, fmt.Errorf("%w: checking TGT: %v", gssapi.ErrNoCred, err)
	}

	tkt, key, err := s.cl.GetServiceTicket(spn)
	if err != nil {
		return tkt, key, fmt.Errorf("%w: getting service ticket for '%s': %v", gssapi.ErrNoCred, spn, err)
	}

	return tkt, key, nil
}

// CCacheSource builds a TicketSource from a credentials cache.  Empty paths
// fall back to the environment and then the MIT defaults.
func CCacheSource(ccPath, confPath string) (TicketSource, error) {
	cfg, err := loadConfig(confPath)
	if err != nil {
		return nil, err
	}

	if ccPath == "" {
		ccPath = krbCCFile()
	}
	ccache, err := credentials.LoadCCache(ccPath)
	if err != nil {
		return nil, fmt.Errorf("%w: loading credentials cache: %v", gssapi.ErrNoCred, err)
	}

	cl, err := client.NewFromCCache(ccache, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating krb5 client: %v", gssapi.ErrNoCred, err)
	}

	return NewClientSource(cl), nil
}

// KeytabSource builds a TicketSource that logs in as principal (user@REALM)
// using a key from a keytab.
func KeytabSource(principal, ktPath, confPath string) (TicketSource, error) {
	user, realm, ok := strings.Cut(principal, "@")
	if !ok || user == "" || realm == "" {
		return nil, fmt.Errorf("%w: invalid principal '%s', should be formatted as user@REALM", gssapi.ErrBadName, principal)
	}

	cfg, err := loadConfig(confPath)
	if err != nil {
		return nil, err
	}

	kt, err := LoadKeytab(ktPath)
	if err != nil {
		return nil, err
	}

	return NewClientSource(client.NewWithKeytab(user, realm, kt, cfg)), nil
}

// PasswordSource builds a TicketSource that logs in as principal with a
// password.
func PasswordSource(principal, password, confPath string) (TicketSource, error) {
	user, realm, ok := strings.Cut(principal, "@")
	if !ok || user == "" || realm == "" {
		return nil, fmt.Errorf("%w: invalid principal '%s', should be formatted as user@REALM", gssapi.ErrBadName, principal)
	}

	cfg, err := loadConfig(confPath)
	if err != nil {
		return nil, err
	}

	return NewClientSource(client.NewWithPassword(user, realm, password, cfg)), nil
}

// LoadKeytab loads an acceptor keytab.  An empty path falls back to
// KRB5_KTNAME and then the MIT default.
func LoadKeytab(path string) (*keytab.Keytab, error) {
	if path == "" {
		path = krbKtFile()
	}

	kt, err := keytab.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: loading keytab: %v", gssapi.ErrNoCred, err)
	}

	return kt, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = krbConfFile()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: loading krb5.conf: %v", gssapi.ErrNoCred, err)
	}

	return cfg, nil
}

func krbConfFile() string {
	cfgFile, ok := os.LookupEnv(EnvConfig)
	if !ok {
		cfgFile = "/etc/krb5.conf"
	}

	return cfgFile
}

func krbCCFile() string {
	ccFile, ok := os.LookupEnv(EnvCCache)
	if !ok {
		ccFile = fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
	}

	return strings.TrimPrefix(ccFile, "FILE:")
}

func krbKtFile() string {
	ktFile, ok := os.LookupEnv(EnvKeytab)
	if !ok {
		ktFile = "/etc/krb5.keytab"
	}

	return strings.TrimPrefix(ktFile, "FILE:")
}
