package session

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltStore persists conversations in a bbolt file. Each session is a
// nested bucket whose keys are big-endian sequence numbers.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Append(sessionID string, turn Turn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketSessions).CreateBucketIfNotExists([]byte(sessionID))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

func (s *BoltStore) Get(sessionID string) ([]Turn, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	var turns []Turn
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions).Bucket([]byte(sessionID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var t Turn
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			turns = append(turns, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }
