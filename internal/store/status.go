package store

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"
)

// SetStatus idempotently overwrites a component height or chain-tip marker.
func (s *Store) SetStatus(key string, value uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putU64(tx.Bucket(bucketStatus), key, value)
	})
}

// GetStatus reads a status marker, returning (0, false) if unset.
func (s *Store) GetStatus(key string) (uint64, bool, error) {
	var value uint64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketStatus).Get([]byte(key))
		if v == nil {
			return nil
		}
		value = binary.BigEndian.Uint64(v)
		found = true
		return nil
	})
	return value, found, err
}

// SetAllComponentHeights advances every per-component progress marker to the
// same height in one transaction. The indexer's per-block commit goes through
// InsertBlock, which writes these markers together with the block hash.
func (s *Store) SetAllComponentHeights(height uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStatus)
		for _, key := range []string{StatusZRC20Height, StatusZRC721Height, StatusNamesHeight} {
			if err := putU64(b, key, height); err != nil {
				return err
			}
		}
		return nil
	})
}

func putU64(b *bolt.Bucket, key string, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return b.Put([]byte(key), buf)
}

func getU64(b *bolt.Bucket, key string) uint64 {
	v := b.Get([]byte(key))
	if v == nil {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}
