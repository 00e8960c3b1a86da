package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

// Inscription is the persisted metadata for a single inscription.
type Inscription struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	ContentHex  string `json:"content_hex"`
	ContentType string `json:"content_type"`
	Txid        string `json:"txid"`
	Vout        uint32 `json:"vout"`
	Sender      string `json:"sender"`
	Receiver    string `json:"receiver"`
	BlockHeight uint64 `json:"block_height"`
	BlockTime   uint64 `json:"block_time"`
}

// InsertInscription persists the inscription, assigns it the next monotonic
// ordinal number, and appends it to the sender's address index, all in one
// transaction.
func (s *Store) InsertInscription(insc *Inscription) error {
	data, err := json.Marshal(insc)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketInscriptions).Put([]byte(insc.ID), data); err != nil {
			return err
		}

		stats := tx.Bucket(bucketStats)
		number := getU64(stats, StatInscriptionCount) + 1
		if err := putU64(stats, StatInscriptionCount, number); err != nil {
			return err
		}

		if err := tx.Bucket(bucketInscriptionNumbers).Put(u64Key(number), []byte(insc.ID)); err != nil {
			return err
		}

		if insc.Sender == "" {
			return nil
		}
		addrIdx := tx.Bucket(bucketAddressInscriptions)
		var ids []string
		if existing := addrIdx.Get([]byte(insc.Sender)); existing != nil {
			if err := json.Unmarshal(existing, &ids); err != nil {
				ids = nil
			}
		}
		ids = append(ids, insc.ID)
		encoded, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		return addrIdx.Put([]byte(insc.Sender), encoded)
	})
}

// GetInscription fetches an inscription by id.
func (s *Store) GetInscription(id string) (*Inscription, bool, error) {
	var insc *Inscription
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketInscriptions).Get([]byte(id))
		if v == nil {
			return nil
		}
		insc = &Inscription{}
		return json.Unmarshal(v, insc)
	})
	return insc, insc != nil, err
}

// GetInscriptionByNumber resolves the inscription assigned the given
// monotonic ordinal.
func (s *Store) GetInscriptionByNumber(number uint64) (*Inscription, bool, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketInscriptionNumbers).Get(u64Key(number))
		if v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil || id == "" {
		return nil, false, err
	}
	return s.GetInscription(id)
}

// GetInscriptionsPage returns up to limit inscriptions, newest first (by
// descending inscription number), skipping page*limit entries.
func (s *Store) GetInscriptionsPage(page, limit int) ([]*Inscription, error) {
	offset := page * limit
	var out []*Inscription

	err := s.db.View(func(tx *bolt.Tx) error {
		inscriptions := tx.Bucket(bucketInscriptions)
		c := tx.Bucket(bucketInscriptionNumbers).Cursor()
		i := 0
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if i < offset {
				i++
				continue
			}
			if len(out) >= limit {
				break
			}
			v := inscriptions.Get(id)
			if v == nil {
				continue
			}
			insc := &Inscription{}
			if err := json.Unmarshal(v, insc); err != nil {
				return err
			}
			out = append(out, insc)
			i++
		}
		return nil
	})
	return out, err
}

// GetInscriptionsByAddress returns the sender-indexed inscription ids for an
// address, in insertion order.
func (s *Store) GetInscriptionsByAddress(address string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAddressInscriptions).Get([]byte(address))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &ids)
	})
	return ids, err
}

// GetInscriptionCount returns the number of inscriptions persisted so far.
func (s *Store) GetInscriptionCount() (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		count = getU64(tx.Bucket(bucketStats), StatInscriptionCount)
		return nil
	})
	return count, err
}

// MarkInscriptionUsed transitions a transfer-intent inscription's state to
// "used". Settlement engines call this after a successful reveal.
func (s *Store) MarkInscriptionUsed(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInscriptionState).Put([]byte(id), []byte(inscriptionUsed))
	})
}

// IsInscriptionUsed reports whether the inscription has already settled.
func (s *Store) IsInscriptionUsed(id string) (bool, error) {
	var used bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketInscriptionState).Get([]byte(id))
		used = v != nil && string(v) == inscriptionUsed
		return nil
	})
	return used, err
}
