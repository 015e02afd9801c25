package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/notifier-labs/pushnotifier-proxy/internal/crypto"
	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage"
	bolt "go.etcd.io/bbolt"
)

var _ storage.Store = (*Store)(nil)

var (
	bucketDevices   = []byte("devices")
	bucketNoticeLog = []byte("notice_logs")
)

// Store is a BoltDB-backed Store implementation.
type Store struct {
	db     *bolt.DB
	sealer *crypto.Sealer
}

// Option customises the Store.
type Option func(*Store)

// WithSealer encrypts notice log content and url at rest.
func WithSealer(sealer *crypto.Sealer) Option {
	return func(s *Store) {
		s.sealer = sealer
	}
}

// New initialises the Bolt store.
func New(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDevices); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketNoticeLog)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceDevices drops the previous snapshot and stores the given devices.
func (s *Store) ReplaceDevices(ctx context.Context, devices []*model.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketDevices); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		bkt, err := tx.CreateBucket(bucketDevices)
		if err != nil {
			return err
		}
		for _, device := range devices {
			if device.SyncedAt.IsZero() {
				device.SyncedAt = now
			}
			payload, err := json.Marshal(device)
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(device.ID), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDevice fetches a device by id.
func (s *Store) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var device *model.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDevices).Get([]byte(id))
		if v == nil {
			return storage.ErrNotFound
		}
		device = &model.Device{}
		return json.Unmarshal(v, device)
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// ListDevices returns all devices ordered by id.
func (s *Store) ListDevices(ctx context.Context) ([]*model.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var devices []*model.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).ForEach(func(_, v []byte) error {
			var device model.Device
			if err := json.Unmarshal(v, &device); err != nil {
				return err
			}
			devices = append(devices, &device)
			return nil
		})
	})
	return devices, err
}

// AppendNoticeLog stores a push log entry and assigns its ID.
func (s *Store) AppendNoticeLog(ctx context.Context, log *model.NoticeLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now

	stored := *log
	if err := s.seal(&stored); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketNoticeLog)
		id, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		log.ID = id
		stored.ID = id
		payload, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return bkt.Put(key, payload)
	})
}

// ListNoticeLogs returns all notice logs in insertion order.
func (s *Store) ListNoticeLogs(ctx context.Context) ([]*model.NoticeLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var logs []*model.NoticeLog
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNoticeLog).ForEach(func(_, v []byte) error {
			var log model.NoticeLog
			if err := json.Unmarshal(v, &log); err != nil {
				return err
			}
			if err := s.open(&log); err != nil {
				return fmt.Errorf("notice log %d: %w", log.ID, err)
			}
			logs = append(logs, &log)
			return nil
		})
	})
	return logs, err
}

func (s *Store) seal(log *model.NoticeLog) error {
	if s.sealer == nil {
		return nil
	}
	var err error
	if log.Content, err = s.sealer.Seal(log.Content); err != nil {
		return err
	}
	log.URL, err = s.sealer.Seal(log.URL)
	return err
}

func (s *Store) open(log *model.NoticeLog) error {
	if s.sealer == nil {
		return nil
	}
	var err error
	if log.Content, err = s.sealer.Open(log.Content); err != nil {
		return err
	}
	log.URL, err = s.sealer.Open(log.URL)
	return err
}
