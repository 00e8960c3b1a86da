package store

import (
	"encoding/json"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// NameRecord is a ZNS registration. Name preserves the caller's original
// casing for display; the bucket key is always the lowercased form.
type NameRecord struct {
	Name          string `json:"name"`
	NameLower     string `json:"name_lower"`
	Owner         string `json:"owner"`
	InscriptionID string `json:"inscription_id"`
}

// RegisterName persists a name under its lowercased key. First-writer-wins:
// fails if the name is already registered.
func (s *Store) RegisterName(nameLower string, record *NameRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNames)
		if b.Get([]byte(nameLower)) != nil {
			return ErrNameExists
		}
		if err := b.Put([]byte(nameLower), data); err != nil {
			return err
		}
		stats := tx.Bucket(bucketStats)
		return putU64(stats, StatNameCount, getU64(stats, StatNameCount)+1)
	})
}

// GetName fetches a name's registration record by its lowercased form.
func (s *Store) GetName(nameLower string) (*NameRecord, bool, error) {
	var record *NameRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNames).Get([]byte(nameLower))
		if v == nil {
			return nil
		}
		record = &NameRecord{}
		return json.Unmarshal(v, record)
	})
	return record, record != nil, err
}

// GetNamesPage returns up to limit names in descending lowercased-name
// order, skipping page*limit entries. The order is by name, not by
// registration time.
func (s *Store) GetNamesPage(page, limit int) ([]*NameRecord, error) {
	offset := page * limit
	var out []*NameRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNames).Cursor()
		i := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if i < offset {
				i++
				continue
			}
			if len(out) >= limit {
				break
			}
			record := &NameRecord{}
			if err := json.Unmarshal(v, record); err != nil {
				return err
			}
			out = append(out, record)
			i++
		}
		return nil
	})
	return out, err
}

// SearchNames does a case-insensitive substring scan, bounded by limit.
func (s *Store) SearchNames(query string, limit int) ([]*NameRecord, error) {
	needle := strings.ToLower(query)
	var out []*NameRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNames).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !strings.Contains(string(k), needle) {
				continue
			}
			record := &NameRecord{}
			if err := json.Unmarshal(v, record); err != nil {
				return err
			}
			out = append(out, record)
			if len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// GetAllNames returns every registered name, unordered.
func (s *Store) GetAllNames() ([]*NameRecord, error) {
	var out []*NameRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNames).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			record := &NameRecord{}
			if err := json.Unmarshal(v, record); err != nil {
				return err
			}
			out = append(out, record)
		}
		return nil
	})
	return out, err
}

// GetNameCount returns the number of registered names.
func (s *Store) GetNameCount() (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		count = getU64(tx.Bucket(bucketStats), StatNameCount)
		return nil
	})
	return count, err
}
