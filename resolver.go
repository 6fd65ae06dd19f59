// SPDX-License-Identifier: Apache-2.0

package sasl

// Identity is the identity an acceptor is asked to authorize.
type Identity struct {
	// AuthenticationID is the principal the mechanism authenticated, for
	// Kerberos user@REALM.
	AuthenticationID string

	// AuthorizationID is the identity the initiator wants to act as.  It
	// equals AuthenticationID when the initiator did not ask for another.
	AuthorizationID string
}

// IdentityResolver is consulted by a Server during negotiation.
// ResolveRealm is called once, before the initiator's credentials are
// checked; Authorize is called once, in the final round.
type IdentityResolver interface {
	// ResolveRealm returns the trust domain the acceptor accepts
	// credentials from.  An empty string accepts any realm the acceptor
	// holds keys for.
	ResolveRealm() (string, error)

	// Authorize reports whether the identity may use the service.
	Authorize(id Identity) bool
}

// ResolverFuncs adapts functions to an IdentityResolver.  A nil
// RealmFunc resolves the empty realm and a nil AuthorizeFunc applies
// AuthorizeSelf.
type ResolverFuncs struct {
	RealmFunc     func() (string, error)
	AuthorizeFunc func(id Identity) bool
}

func (r ResolverFuncs) ResolveRealm() (string, error) {
	if r.RealmFunc == nil {
		return "", nil
	}

	return r.RealmFunc()
}

func (r ResolverFuncs) Authorize(id Identity) bool {
	if r.AuthorizeFunc == nil {
		return AuthorizeSelf(id)
	}

	return r.AuthorizeFunc(id)
}

// AuthorizeSelf permits an initiator to act only as itself.
func AuthorizeSelf(id Identity) bool {
	return id.AuthorizationID == id.AuthenticationID
}

// StaticResolver resolves a fixed realm and authorizes each principal to
// act as itself and, when listed in Proxies, as the identities given there.
type StaticResolver struct {
	Realm   string
	Proxies map[string][]string
}

func (r StaticResolver) ResolveRealm() (string, error) {
	return r.Realm, nil
}

func (r StaticResolver) Authorize(id Identity) bool {
	if AuthorizeSelf(id) {
		return true
	}

	for _, allowed := range r.Proxies[id.AuthenticationID] {
		if allowed == id.AuthorizationID {
			return true
		}
	}

	return false
}
