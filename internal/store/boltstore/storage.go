// Package boltstore implements store.Store on top of BoltDB.
//
// Every collection is a bucket of JSON documents keyed by the collection's
// natural key. Secondary lookups (contacts by domain, history by campaign,
// last send per domain) are kept in index buckets updated in the same
// transaction as the document they point to.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/campaigner/internal/store"
)

var (
	bucketContacts         = []byte("contacts")
	bucketContactsByDomain = []byte("contacts_by_domain")
	bucketCustomers        = []byte("existing_customers")
	bucketCustomerDomains  = []byte("existing_customer_domains")
	bucketProviderDomains  = []byte("provider_domains")
	bucketCampaigns        = []byte("campaigns")
	bucketHistory          = []byte("email_history")
	bucketHistoryCampaign  = []byte("email_history_by_campaign")
	bucketLastSentDomain   = []byte("last_sent_by_domain")
	bucketSuppressions     = []byte("unsubscribes")
)

var allBuckets = [][]byte{
	bucketContacts,
	bucketContactsByDomain,
	bucketCustomers,
	bucketCustomerDomains,
	bucketProviderDomains,
	bucketCampaigns,
	bucketHistory,
	bucketHistoryCampaign,
	bucketLastSentDomain,
	bucketSuppressions,
}

// sortableTime is fixed width so keys order chronologically
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

var _ store.Store = (*Storage)(nil)

// Storage implements store.Store using BoltDB
type Storage struct {
	db *bolt.DB
}

// Open opens (creating if needed) a BoltDB file and its buckets
func Open(path string) (*Storage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened BoltDB instance
func New(db *bolt.DB) (*Storage, error) {
	s := &Storage{db: db}
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Init creates all buckets
func (s *Storage) Init(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying bolt.DB instance
func (s *Storage) DB() *bolt.DB {
	return s.db
}

// compositeKey joins index key parts with a NUL separator
func compositeKey(parts ...string) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(0)
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

// prefixKeys returns the suffixes of all keys in b starting with prefix+NUL
func prefixKeys(b *bolt.Bucket, prefix string) []string {
	p := append([]byte(prefix), 0)
	var out []string
	c := b.Cursor()
	for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
		out = append(out, string(k[len(p):]))
	}
	return out
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return b.Put(key, data)
}

// getJSON decodes the value at key into v; found is false if the key is absent
func getJSON(b *bolt.Bucket, key []byte, v any) (found bool, err error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// keysOf collects all keys of a bucket so they can be modified after iteration
func keysOf(b *bolt.Bucket) [][]byte {
	var keys [][]byte
	b.ForEach(func(k, _ []byte) error {
		keys = append(keys, bytes.Clone(k))
		return nil
	})
	return keys
}
