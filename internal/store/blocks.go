package store

import bolt "go.etcd.io/bbolt"

// GetLatestIndexedHeight returns the highest committed block height, or
// (0, false) if the store has never indexed a block.
func (s *Store) GetLatestIndexedHeight() (uint64, bool, error) {
	var height uint64
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBlocks).Cursor()
		k, _ := c.Last()
		if k == nil {
			return nil
		}
		height = keyToU64(k)
		found = true
		return nil
	})
	return height, found, err
}

// InsertBlock commits the block hash at height and advances core_height and
// every per-component height to it in the same transaction, the indexer's
// per-block durability boundary.
func (s *Store) InsertBlock(height uint64, hash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlocks).Put(u64Key(height), []byte(hash)); err != nil {
			return err
		}
		status := tx.Bucket(bucketStatus)
		for _, key := range []string{StatusCoreHeight, StatusZRC20Height, StatusZRC721Height, StatusNamesHeight} {
			if err := putU64(status, key, height); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBlockHash returns the hash committed at height, if any.
func (s *Store) GetBlockHash(height uint64) (string, bool, error) {
	var hash string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(u64Key(height))
		if v == nil {
			return nil
		}
		hash = string(v)
		found = true
		return nil
	})
	return hash, found, err
}
