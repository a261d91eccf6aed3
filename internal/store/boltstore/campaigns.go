package boltstore

import (
	"context"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/store"
)

// GetCampaign retrieves a campaign by name
func (s *Storage) GetCampaign(ctx context.Context, name string) (*models.Campaign, error) {
	var campaign *models.Campaign

	err := s.db.View(func(tx *bolt.Tx) error {
		var c models.Campaign
		found, err := getJSON(tx.Bucket(bucketCampaigns), []byte(name), &c)
		if err != nil || !found {
			return err
		}
		campaign = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, store.ErrNotFound
	}
	return campaign, nil
}

// CreateCampaign inserts a new campaign; names are single-use
func (s *Storage) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCampaigns)
		if bucket.Get([]byte(c.Name)) != nil {
			return store.ErrDuplicate
		}
		return putJSON(bucket, []byte(c.Name), c)
	})
}

// UpdateCampaign changes the mutable part of a campaign
func (s *Storage) UpdateCampaign(ctx context.Context, name string, u models.CampaignUpdate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCampaigns)

		var c models.Campaign
		found, err := getJSON(bucket, []byte(name), &c)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrNotFound
		}

		if u.Status != "" {
			c.Status = u.Status
		}
		if u.CompletedDate != nil {
			c.CompletedDate = u.CompletedDate
		}
		if u.Statistics != nil {
			c.Statistics = u.Statistics
		}

		return putJSON(bucket, []byte(name), &c)
	})
}

// ListCampaigns returns all campaigns, newest first
func (s *Storage) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCampaigns).ForEach(func(k, v []byte) error {
			var c models.Campaign
			if _, err := getJSON(tx.Bucket(bucketCampaigns), k, &c); err != nil {
				return err
			}
			campaigns = append(campaigns, &c)
			return nil
		})
	})

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedDate.After(campaigns[j].CreatedDate)
	})
	return campaigns, err
}

// DeleteAllCampaigns removes every campaign document
func (s *Storage) DeleteAllCampaigns(ctx context.Context) (int, error) {
	deleted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCampaigns)
		for _, k := range keysOf(bucket) {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})

	return deleted, err
}

// CountCampaigns returns the number of stored campaigns
func (s *Storage) CountCampaigns(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketCampaigns).Stats().KeyN
		return nil
	})

	return count, err
}
