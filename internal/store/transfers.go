package store

import (
	"encoding/json"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// TransferInscription is the locked-funds payload created by a ZRC-20
// transfer-inscribe (the commit half of the two-phase transfer).
type TransferInscription struct {
	Tick   string `json:"tick"`
	Amt    string `json:"amt"`
	Sender string `json:"sender"`
}

// CreateTransferInscription persists the transfer intent and marks it
// "unused" in the same transaction.
func (s *Store) CreateTransferInscription(inscriptionID string, data *TransferInscription) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketTransferInscrs).Put([]byte(inscriptionID), encoded); err != nil {
			return err
		}
		return tx.Bucket(bucketInscriptionState).Put([]byte(inscriptionID), []byte(inscriptionUnused))
	})
}

// RegisterTransferOutpoint records which output carries a transfer commit,
// so the reveal pass can recognize it when that outpoint is later spent.
func (s *Store) RegisterTransferOutpoint(txid string, vout uint32, inscriptionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransferOutpoints).Put(outpointKey(txid, vout), []byte(inscriptionID))
	})
}

// GetTransferByOutpoint resolves the transfer inscription id committed at an
// outpoint, if any.
func (s *Store) GetTransferByOutpoint(txid string, vout uint32) (string, bool, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTransferOutpoints).Get(outpointKey(txid, vout))
		if v != nil {
			id = string(v)
		}
		return nil
	})
	return id, id != "", err
}

// RemoveTransferOutpoint deletes the outpoint once its transfer has settled.
func (s *Store) RemoveTransferOutpoint(txid string, vout uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransferOutpoints).Delete(outpointKey(txid, vout))
	})
}

// GetTransferInscription fetches a transfer intent's locked payload.
func (s *Store) GetTransferInscription(inscriptionID string) (*TransferInscription, bool, error) {
	var data *TransferInscription
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTransferInscrs).Get([]byte(inscriptionID))
		if v == nil {
			return nil
		}
		data = &TransferInscription{}
		return json.Unmarshal(v, data)
	})
	return data, data != nil, err
}

// CountCompletedTransfersForTick counts settled ("used") transfer
// inscriptions for a ticker. Advisory reporting query, O(N).
func (s *Store) CountCompletedTransfersForTick(tick string) (uint64, error) {
	needle := strings.ToLower(tick)
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		transfers := tx.Bucket(bucketTransferInscrs)
		state := tx.Bucket(bucketInscriptionState)
		c := transfers.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			data := &TransferInscription{}
			if err := json.Unmarshal(v, data); err != nil {
				continue
			}
			if data.Tick != needle {
				continue
			}
			if st := state.Get(k); st != nil && string(st) == inscriptionUsed {
				count++
			}
		}
		return nil
	})
	return count, err
}
