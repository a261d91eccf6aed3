package boltstore

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/campaigner/internal/models"
)

// AppendHistory adds a send attempt to the log
func (s *Storage) AppendHistory(ctx context.Context, rec *models.HistoryRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(rec.SentDate.UTC().Format(sortableTime) + ":" + rec.ID)

		if err := putJSON(tx.Bucket(bucketHistory), key, rec); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHistoryCampaign).Put(compositeKey(rec.CampaignName, string(key)), nil); err != nil {
			return err
		}

		if rec.Status != models.HistorySent || rec.Domain == "" {
			return nil
		}

		// keep only the newest send per domain
		lastSent := tx.Bucket(bucketLastSentDomain)
		if prev := lastSent.Get([]byte(rec.Domain)); prev != nil {
			if ts, err := time.Parse(sortableTime, string(prev)); err == nil && !rec.SentDate.After(ts) {
				return nil
			}
		}
		return lastSent.Put([]byte(rec.Domain), []byte(rec.SentDate.UTC().Format(sortableTime)))
	})
}

// LatestSentForDomain returns the newest successful send to any address of domain
func (s *Storage) LatestSentForDomain(ctx context.Context, domain string) (*time.Time, error) {
	var latest *time.Time

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLastSentDomain).Get([]byte(domain))
		if v == nil {
			return nil
		}
		ts, err := time.Parse(sortableTime, string(v))
		if err != nil {
			return err
		}
		latest = &ts
		return nil
	})

	return latest, err
}

// ListHistory returns the history of a campaign in chronological order
func (s *Storage) ListHistory(ctx context.Context, campaignName string) ([]*models.HistoryRecord, error) {
	var records []*models.HistoryRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		history := tx.Bucket(bucketHistory)
		for _, key := range prefixKeys(tx.Bucket(bucketHistoryCampaign), campaignName) {
			var rec models.HistoryRecord
			found, err := getJSON(history, []byte(key), &rec)
			if err != nil {
				return err
			}
			if found {
				records = append(records, &rec)
			}
		}
		return nil
	})

	return records, err
}
