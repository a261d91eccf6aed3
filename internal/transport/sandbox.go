package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/campaigner/internal/logging"
)

var bucketSandbox = []byte("sandbox")

// Captured is a message stored by the sandbox transport instead of being sent
type Captured struct {
	ID         string    `json:"id"`
	Campaign   string    `json:"campaign,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Data       []byte    `json:"data,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	// SimulatedStatus is set when error simulation rejected the message
	SimulatedStatus int `json:"simulated_status,omitempty"`
}

// Sandbox captures messages in a bbolt bucket. Nothing leaves the host.
type Sandbox struct {
	db               *bolt.DB
	logger           *slog.Logger
	errorProbability float64
	now              func() time.Time
}

// OpenSandbox opens (creating if needed) the capture database at path
func OpenSandbox(path string, logger *slog.Logger) (*Sandbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox database: %w", err)
	}

	s, err := NewSandbox(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSandbox uses an already opened database
func NewSandbox(db *bolt.DB, logger *slog.Logger) (*Sandbox, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSandbox)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox bucket: %w", err)
	}

	return &Sandbox{
		db:     db,
		logger: logging.Discard(logger).With("component", "sandbox"),
		now:    time.Now,
	}, nil
}

// Close closes the capture database
func (s *Sandbox) Close() error {
	return s.db.Close()
}

// SetErrorSimulation makes a share of sends answer 500, for rehearsing
// completed_with_errors runs. 0 disables it.
func (s *Sandbox) SetErrorSimulation(probability float64) {
	if probability >= 0 && probability <= 1 {
		s.errorProbability = probability
	}
}

// Name returns the transport name
func (s *Sandbox) Name() string {
	return "sandbox"
}

// Send stores the message and answers 202, or 500 under error simulation
func (s *Sandbox) Send(ctx context.Context, msg *Message) (*Result, error) {
	c := &Captured{
		ID:         uuid.New().String(),
		Campaign:   msg.Campaign,
		From:       msg.From,
		To:         msg.To,
		Subject:    msg.Subject,
		CapturedAt: s.now().UTC(),
	}
	c.Data = BuildMessage(msg, c.ID, c.CapturedAt)

	result := &Result{StatusCode: StatusAccepted, MessageID: c.ID}
	if s.errorProbability > 0 && rand.Float64() < s.errorProbability {
		c.SimulatedStatus = http.StatusInternalServerError
		result = &Result{StatusCode: c.SimulatedStatus, Detail: "simulated failure"}
	}

	if err := s.save(c); err != nil {
		return nil, err
	}

	s.logger.Debug("message captured", "id", c.ID, "recipient", c.To, "campaign", c.Campaign)
	return result, nil
}

func (s *Sandbox) save(c *Captured) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSandbox).Put(captureKey(c.CapturedAt, c.ID), data)
	})
}

// SandboxFilter selects captured messages
type SandboxFilter struct {
	Campaign string
	To       string
	Limit    int
}

// List returns captured messages newest first, without raw data
func (s *Sandbox) List(ctx context.Context, filter SandboxFilter) ([]*Captured, error) {
	var out []*Captured

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var msg Captured
			if err := json.Unmarshal(v, &msg); err != nil {
				continue
			}
			if filter.Campaign != "" && msg.Campaign != filter.Campaign {
				continue
			}
			if filter.To != "" && msg.To != filter.To {
				continue
			}

			msg.Data = nil
			out = append(out, &msg)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return out, err
}

// Get returns a captured message with its raw data, or nil if unknown
func (s *Sandbox) Get(ctx context.Context, id string) (*Captured, error) {
	var found *Captured

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSandbox).ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var msg Captured
			if err := json.Unmarshal(v, &msg); err != nil {
				return nil
			}
			if msg.ID == id {
				found = &msg
			}
			return nil
		})
	})

	return found, err
}

// Clear removes captured messages, all of them when campaign is empty
func (s *Sandbox) Clear(ctx context.Context, campaign string) (int, error) {
	var count int

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSandbox)

		var keys [][]byte
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if campaign != "" {
				var msg Captured
				if err := json.Unmarshal(v, &msg); err != nil || msg.Campaign != campaign {
					continue
				}
			}
			keys = append(keys, append([]byte(nil), k...))
		}

		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			count++
		}
		return nil
	})

	return count, err
}

func captureKey(t time.Time, id string) []byte {
	return []byte(t.Format("2006-01-02T15:04:05.000000000Z07:00") + ":" + id)
}
