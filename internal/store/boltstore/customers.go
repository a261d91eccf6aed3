package boltstore

import (
	"context"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/campaigner/internal/models"
)

// IsCustomer reports whether the email or its domain is an existing customer
func (s *Storage) IsCustomer(ctx context.Context, email, domain string) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		if email != "" && tx.Bucket(bucketCustomers).Get([]byte(email)) != nil {
			found = true
			return nil
		}
		if domain != "" && tx.Bucket(bucketCustomerDomains).Get([]byte(domain)) != nil {
			found = true
		}
		return nil
	})

	return found, err
}

// HasCustomerDomain reports whether any existing customer uses domain
func (s *Storage) HasCustomerDomain(ctx context.Context, domain string) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketCustomerDomains).Get([]byte(domain)) != nil
		return nil
	})

	return found, err
}

// AddCustomers inserts customers whose email is not yet present
func (s *Storage) AddCustomers(ctx context.Context, customers []*models.ExistingCustomer) (int, error) {
	inserted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCustomers)
		domains := tx.Bucket(bucketCustomerDomains)

		for _, c := range customers {
			key := []byte(c.Email)
			if bucket.Get(key) != nil {
				continue
			}
			if err := putJSON(bucket, key, c); err != nil {
				return err
			}
			// first email registered for a domain stays the representative
			if c.Domain != "" && domains.Get([]byte(c.Domain)) == nil {
				if err := domains.Put([]byte(c.Domain), key); err != nil {
					return err
				}
			}
			inserted++
		}
		return nil
	})

	return inserted, err
}

// ListProviderDomains returns all known provider domains, sorted
func (s *Storage) ListProviderDomains(ctx context.Context) ([]string, error) {
	var domains []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProviderDomains).ForEach(func(k, _ []byte) error {
			domains = append(domains, string(k))
			return nil
		})
	})

	sort.Strings(domains)
	return domains, err
}

// AddProviderDomains inserts domains not yet present
func (s *Storage) AddProviderDomains(ctx context.Context, domains []string) (int, error) {
	inserted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketProviderDomains)
		for _, d := range domains {
			if d == "" || bucket.Get([]byte(d)) != nil {
				continue
			}
			if err := bucket.Put([]byte(d), []byte{}); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})

	return inserted, err
}
