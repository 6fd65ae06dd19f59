// SPDX-License-Identifier: Apache-2.0

package gssapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrMechNotFound = errors.New("gssapi: mechanism not registered")

// MechFactory returns a new, unestablished mechanism context.
type MechFactory func() Mech

var registry struct {
	sync.Mutex
	mechs map[string]MechFactory
}

func init() {
	registry.mechs = make(map[string]MechFactory)
}

// Register should be called by Mech implementations to enable
// a mechanism to be used by clients.  Names are case insensitive.
func Register(name string, f MechFactory) {
	name = strings.ToLower(name)

	registry.Lock()
	defer registry.Unlock()

	// can't register two mechs with the same name
	if _, ok := registry.mechs[name]; ok {
		panic("gssapi: cannot have two mechs named " + name)
	}

	registry.mechs[name] = f
}

// IsRegistered reports whether a named mechanism is registered.
func IsRegistered(name string) bool {
	registry.Lock()
	defer registry.Unlock()

	_, ok := registry.mechs[strings.ToLower(name)]
	return ok
}

// NewMech returns a new mechanism context by name.
func NewMech(name string) (Mech, error) {
	registry.Lock()
	f, ok := registry.mechs[strings.ToLower(name)]
	registry.Unlock()

	if !ok {
		return nil, ErrMechNotFound
	}

	return f(), nil
}

// Mechs returns the sorted list of registered mechanism names.
func Mechs() (l []string) {
	registry.Lock()
	defer registry.Unlock()

	l = make([]string, 0, len(registry.mechs))
	for name := range registry.mechs {
		l = append(l, name)
	}
	sort.Strings(l)

	return
}
