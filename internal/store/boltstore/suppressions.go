package boltstore

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/campaigner/internal/models"
)

// IsSuppressed reports whether email is on the mirrored opt-out list
func (s *Storage) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketSuppressions).Get([]byte(email)) != nil
		return nil
	})

	return found, err
}

// ListSuppressed returns every mirrored address
func (s *Storage) ListSuppressed(ctx context.Context) ([]string, error) {
	var emails []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSuppressions).ForEach(func(k, _ []byte) error {
			emails = append(emails, string(k))
			return nil
		})
	})

	return emails, err
}

// AddSuppressions inserts entries that are not yet mirrored
func (s *Storage) AddSuppressions(ctx context.Context, entries []*models.SuppressionEntry) (int, error) {
	inserted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSuppressions)
		for _, e := range entries {
			if bucket.Get([]byte(e.Email)) != nil {
				continue
			}
			if err := putJSON(bucket, []byte(e.Email), e); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})

	return inserted, err
}

// RemoveSuppressions deletes the given addresses from the mirror
func (s *Storage) RemoveSuppressions(ctx context.Context, emails []string) (int, error) {
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSuppressions)
		for _, e := range emails {
			if bucket.Get([]byte(e)) == nil {
				continue
			}
			if err := bucket.Delete([]byte(e)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})

	return removed, err
}

// CountSuppressions returns the mirror size
func (s *Storage) CountSuppressions(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketSuppressions).Stats().KeyN
		return nil
	})

	return count, err
}
