package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("chat_history")

// BoltStore implements Store with bbolt. Keys are big-endian sequence numbers,
// so cursor order is insertion order.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) a bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		path = "chat_history.bolt"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) List(ctx context.Context) ([]Record, error) {
	records := []Record{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	})
	return records, errors.Wrap(err, "list history")
}

func (s *BoltStore) Append(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode history record")
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
	return errors.Wrap(err, "append history")
}

// keyAt returns the key of the index-th record.
func keyAt(b *bbolt.Bucket, index int) ([]byte, []byte, error) {
	n := 0
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if n == index {
			return k, v, nil
		}
		n++
	}
	return nil, nil, checkIndex(index, n)
}

func (s *BoltStore) Get(ctx context.Context, index int) (Record, error) {
	var r Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v, err := keyAt(tx.Bucket(bucketName), index)
		if err != nil {
			return err
		}
		return json.Unmarshal(v, &r)
	})
	return r, err
}

func (s *BoltStore) Delete(ctx context.Context, index int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		k, _, err := keyAt(b, index)
		if err != nil {
			return err
		}
		return b.Delete(k)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
