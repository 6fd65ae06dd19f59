// SPDX-License-Identifier: Apache-2.0

// Package rcache provides a replay cache that survives acceptor restarts,
// keeping seen authenticators in a single file bbolt database.
package rcache

import (
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/golang-auth/go-gssapi-sasl/internal/log"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
)

const (
	connectTimeout = 5 * time.Second
	bucketName     = "authenticators"

	// DefaultPurgeInterval is how often expired entries are swept.
	DefaultPurgeInterval = time.Minute
)

// record is the stored value of an entry.
type record struct {
	Client  string `cbor:"1,keyasint"`
	Server  string `cbor:"2,keyasint"`
	Expires int64  `cbor:"3,keyasint"`
}

// Cache is a krb5.ReplayCache backed by a bbolt database.
type Cache struct {
	db  *bolt.DB
	now func() time.Time

	mu        sync.Mutex
	lastPurge time.Time

	// PurgeInterval is the minimum time between sweeps of expired entries.
	PurgeInterval time.Duration
}

var _ krb5.ReplayCache = (*Cache)(nil)

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: connectTimeout})
	if err != nil {
		return nil, fmt.Errorf("rcache: opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("rcache: creating bucket: %w", err)
	}

	return &Cache{
		db:            db,
		now:           time.Now,
		PurgeInterval: DefaultPurgeInterval,
	}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Seen records e and reports whether an unexpired entry with the same key
// was already present.
func (c *Cache) Seen(e krb5.ReplayEntry) (bool, error) {
	now := c.now()
	if err := c.maybePurge(now); err != nil {
		return false, err
	}

	val, err := cbor.Marshal(record{Client: e.Client, Server: e.Server, Expires: e.Expires.Unix()})
	if err != nil {
		return false, fmt.Errorf("rcache: encoding entry: %w", err)
	}

	key := []byte(e.Key())
	seen := false
	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if old := b.Get(key); old != nil {
			var r record
			if err := cbor.Unmarshal(old, &r); err != nil {
				return fmt.Errorf("rcache: decoding entry: %w", err)
			}
			if now.Unix() <= r.Expires {
				seen = true
				return nil
			}
		}

		return b.Put(key, val)
	})
	if err != nil {
		return false, err
	}

	if seen {
		log.Get().WithFields(log.Fields{"at": "rcache_seen", "client": e.Client, "server": e.Server}).Warn("replayed authenticator")
	}
	return seen, nil
}

func (c *Cache) maybePurge(now time.Time) error {
	c.mu.Lock()
	due := now.Sub(c.lastPurge) >= c.PurgeInterval
	if due {
		c.lastPurge = now
	}
	c.mu.Unlock()

	if !due {
		return nil
	}

	_, err := c.Purge()
	return err
}

// Purge deletes expired entries and returns how many were removed.
func (c *Cache) Purge() (int, error) {
	now := c.now().Unix()
	removed := 0

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		// a bucket must not be modified while ForEach runs
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var r record
			if err := cbor.Unmarshal(v, &r); err != nil || r.Expires < now {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("rcache: purging: %w", err)
	}

	return removed, nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	return n, err
}
