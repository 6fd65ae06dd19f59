// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"fmt"
	"sync"
	"time"
)

// ReplayEntry identifies one authenticator presented to an acceptor.
type ReplayEntry struct {
	Client    string
	Server    string
	CTime     time.Time
	Cusec     int
	SeqNumber int64
	Expires   time.Time
}

// Key returns the string under which the entry is remembered.
func (e ReplayEntry) Key() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", e.Client, e.Server, e.CTime.Unix(), e.Cusec, e.SeqNumber)
}

// ReplayCache records authenticators so that an acceptor can refuse one it
// has already seen.  Seen stores the entry and reports whether an unexpired
// copy was already present.
type ReplayCache interface {
	Seen(e ReplayEntry) (bool, error)
}

// MemoryReplayCache is a process-local ReplayCache.  Expired entries are
// dropped as new ones arrive.
type MemoryReplayCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryReplayCache() *MemoryReplayCache {
	return &MemoryReplayCache{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (c *MemoryReplayCache) Seen(e ReplayEntry) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, exp := range c.entries {
		if now.After(exp) {
			delete(c.entries, k)
		}
	}

	key := e.Key()
	if _, ok := c.entries[key]; ok {
		return true, nil
	}

	c.entries[key] = e.Expires
	return false, nil
}

// Len returns the number of entries held, including any that expired since
// the last call to Seen.
func (c *MemoryReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// DefaultReplayCache is shared by acceptors that are not given a cache of
// their own.
var DefaultReplayCache ReplayCache = NewMemoryReplayCache()
