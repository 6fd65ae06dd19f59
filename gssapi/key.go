// SPDX-License-Identifier: Apache-2.0

package gssapi

import "fmt"

// SessionKey is an exported context key.  Type is the mechanism-specific
// key type (the Kerberos encryption type number for krb5).
type SessionKey struct {
	Type  int32
	Value []byte
}

func (k SessionKey) String() string {
	return fmt.Sprintf("SessionKey{Type: %d, Length: %d}", k.Type, len(k.Value))
}
