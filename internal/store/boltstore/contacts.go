package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/store"
)

// GetContact retrieves a contact by normalized email
func (s *Storage) GetContact(ctx context.Context, email string) (*models.Contact, error) {
	var contact *models.Contact

	err := s.db.View(func(tx *bolt.Tx) error {
		var c models.Contact
		found, err := getJSON(tx.Bucket(bucketContacts), []byte(email), &c)
		if err != nil || !found {
			return err
		}
		contact = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, store.ErrNotFound
	}
	return contact, nil
}

// UpsertContact inserts a contact or refreshes the descriptive fields of an
// existing one. The send timestamp and added date of existing contacts survive.
func (s *Storage) UpsertContact(ctx context.Context, c *models.Contact) (store.UpsertResult, error) {
	var result store.UpsertResult

	err := s.db.Update(func(tx *bolt.Tx) error {
		contacts := tx.Bucket(bucketContacts)
		key := []byte(c.Email)

		doc := *c
		prev := contacts.Get(key)
		if prev != nil {
			var existing models.Contact
			if err := json.Unmarshal(prev, &existing); err != nil {
				return fmt.Errorf("failed to unmarshal contact: %w", err)
			}
			doc.LastEmailSent = existing.LastEmailSent
			doc.AddedDate = existing.AddedDate
		}

		data, err := json.Marshal(&doc)
		if err != nil {
			return fmt.Errorf("failed to marshal contact: %w", err)
		}

		if prev != nil && bytes.Equal(prev, data) {
			return nil
		}
		if err := contacts.Put(key, data); err != nil {
			return fmt.Errorf("failed to store contact: %w", err)
		}

		if doc.Domain != "" {
			if err := tx.Bucket(bucketContactsByDomain).Put(compositeKey(doc.Domain, doc.Email), nil); err != nil {
				return fmt.Errorf("failed to index contact domain: %w", err)
			}
		}

		result.Inserted = prev == nil
		result.Modified = prev != nil
		return nil
	})

	return result, err
}

// ContactsByDomain returns the active contacts registered for a domain
func (s *Storage) ContactsByDomain(ctx context.Context, domain string) ([]*models.Contact, error) {
	var out []*models.Contact

	err := s.db.View(func(tx *bolt.Tx) error {
		contacts := tx.Bucket(bucketContacts)
		for _, addr := range prefixKeys(tx.Bucket(bucketContactsByDomain), domain) {
			var c models.Contact
			found, err := getJSON(contacts, []byte(addr), &c)
			if err != nil {
				return err
			}
			if !found || !c.Active || c.Domain != domain {
				continue
			}
			out = append(out, &c)
		}
		return nil
	})

	return out, err
}

// SetLastEmailSent records the time of the latest successful send
func (s *Storage) SetLastEmailSent(ctx context.Context, email string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		contacts := tx.Bucket(bucketContacts)

		var c models.Contact
		found, err := getJSON(contacts, []byte(email), &c)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrNotFound
		}

		t := at.UTC()
		c.LastEmailSent = &t
		return putJSON(contacts, []byte(email), &c)
	})
}

// BackdateLastEmailSent moves every recorded send timestamp to at
func (s *Storage) BackdateLastEmailSent(ctx context.Context, at time.Time) (int, error) {
	count := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		contacts := tx.Bucket(bucketContacts)
		t := at.UTC()

		for _, key := range keysOf(contacts) {
			var c models.Contact
			if _, err := getJSON(contacts, key, &c); err != nil {
				return err
			}
			if c.LastEmailSent == nil {
				continue
			}
			c.LastEmailSent = &t
			if err := putJSON(contacts, key, &c); err != nil {
				return err
			}
			count++
		}
		return nil
	})

	return count, err
}
