// SPDX-License-Identifier: Apache-2.0

package gssapi

import (
	"fmt"
	"strings"
)

// Name is a host-based service name (RFC 2743 § 4.1), eg. server@host.example.com.
// Host may be empty on an acceptor that has not been bound to a host.
type Name struct {
	Service string
	Host    string
}

// ParseHostBasedName splits a name of the form service@host.  A name without
// an @ is a bare service name.
func ParseHostBasedName(s string) (Name, error) {
	if s == "" {
		return Name{}, nil
	}

	service, host, _ := strings.Cut(s, "@")
	if service == "" {
		return Name{}, fmt.Errorf("gssapi: missing service in name %q", s)
	}

	return Name{Service: service, Host: host}, nil
}

// IsZero reports whether the name is empty.
func (n Name) IsZero() bool {
	return n.Service == "" && n.Host == ""
}

func (n Name) String() string {
	if n.Host == "" {
		return n.Service
	}

	return n.Service + "@" + n.Host
}
