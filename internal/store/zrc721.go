package store

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// ZRC721Collection is the persisted deploy record for an NFT collection.
type ZRC721Collection struct {
	Collection    string          `json:"collection"`
	Supply        string          `json:"supply"`
	Meta          json.RawMessage `json:"meta"`
	Royalty       string          `json:"royalty"`
	Minted        uint64          `json:"minted"`
	Deployer      string          `json:"deployer"`
	InscriptionID string          `json:"inscription_id"`
}

// ZRC721Token is one minted NFT.
type ZRC721Token struct {
	Tick          string          `json:"tick"`
	TokenID       string          `json:"token_id"`
	Owner         string          `json:"owner"`
	InscriptionID string          `json:"inscription_id"`
	Metadata      json.RawMessage `json:"metadata"`
	Shielded      bool            `json:"shielded,omitempty"`
}

// RegisterZRC721Collection creates a new collection. Fails if it exists.
func (s *Store) RegisterZRC721Collection(ticker string, collection *ZRC721Collection) error {
	data, err := json.Marshal(collection)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketZRC721Collections)
		if b.Get([]byte(ticker)) != nil {
			return ErrCollectionExists
		}
		return b.Put([]byte(ticker), data)
	})
}

// GetZRC721Collection fetches a collection's deploy record.
func (s *Store) GetZRC721Collection(ticker string) (*ZRC721Collection, bool, error) {
	var collection *ZRC721Collection
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketZRC721Collections).Get([]byte(ticker))
		if v == nil {
			return nil
		}
		collection = &ZRC721Collection{}
		return json.Unmarshal(v, collection)
	})
	return collection, collection != nil, err
}

// ListZRC721Collections returns up to limit collections in descending ticker
// order, skipping page*limit entries. The order is by ticker, not by deploy
// time.
func (s *Store) ListZRC721Collections(page, limit int) ([]*ZRC721Collection, error) {
	offset := page * limit
	var out []*ZRC721Collection
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketZRC721Collections).Cursor()
		i := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if i < offset {
				i++
				continue
			}
			if len(out) >= limit {
				break
			}
			collection := &ZRC721Collection{}
			if err := json.Unmarshal(v, collection); err != nil {
				return err
			}
			out = append(out, collection)
			i++
		}
		return nil
	})
	return out, err
}

// InsertZRC721Token mints a token into a collection: validates the cap and
// token id range, increments minted, and persists the token row, all in one
// transaction.
func (s *Store) InsertZRC721Token(ticker, tokenID string, token *ZRC721Token) error {
	key := zrc721Key(ticker, tokenID)

	return s.db.Update(func(tx *bolt.Tx) error {
		collections := tx.Bucket(bucketZRC721Collections)
		tokens := tx.Bucket(bucketZRC721Tokens)

		if tokens.Get(key) != nil {
			return ErrTokenAlreadyMinted
		}

		raw := collections.Get([]byte(ticker))
		if raw == nil {
			return ErrCollectionNotFound
		}
		collection := &ZRC721Collection{}
		if err := json.Unmarshal(raw, collection); err != nil {
			return err
		}

		maxSupply, err := strconv.ParseUint(collection.Supply, 10, 64)
		if err == nil {
			if collection.Minted >= maxSupply {
				return ErrMaxTokensReached
			}
			if idNum, err := strconv.ParseUint(tokenID, 10, 64); err == nil && idNum >= maxSupply {
				return ErrTokenIDOutOfRange
			}
		}

		collection.Minted++
		collectionData, err := json.Marshal(collection)
		if err != nil {
			return err
		}
		if err := collections.Put([]byte(ticker), collectionData); err != nil {
			return err
		}

		tokenData, err := json.Marshal(token)
		if err != nil {
			return err
		}
		return tokens.Put(key, tokenData)
	})
}

// GetZRC721Token fetches a single minted token by collection ticker and id.
func (s *Store) GetZRC721Token(ticker, tokenID string) (*ZRC721Token, bool, error) {
	var token *ZRC721Token
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketZRC721Tokens).Get(zrc721Key(ticker, tokenID))
		if v == nil {
			return nil
		}
		token = &ZRC721Token{}
		return json.Unmarshal(v, token)
	})
	return token, token != nil, err
}

// ListZRC721Tokens returns a collection's tokens ordered by numeric token id.
func (s *Store) ListZRC721Tokens(ticker string, page, limit int) ([]*ZRC721Token, error) {
	offset := page * limit
	var out []*ZRC721Token
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketZRC721Tokens).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			collection, _, ok := strings.Cut(string(k), "#")
			if !ok || collection != ticker {
				continue
			}
			token := &ZRC721Token{}
			if err := json.Unmarshal(v, token); err != nil {
				return err
			}
			out = append(out, token)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return tokenIDLess(out[i].TokenID, out[j].TokenID) })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// ListZRC721TokensByAddress returns every token currently owned by address.
func (s *Store) ListZRC721TokensByAddress(address string, page, limit int) ([]*ZRC721Token, error) {
	offset := page * limit
	var out []*ZRC721Token
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketZRC721Tokens).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			token := &ZRC721Token{}
			if err := json.Unmarshal(v, token); err != nil {
				return err
			}
			if token.Owner == address {
				out = append(out, token)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tick != out[j].Tick {
			return out[i].Tick < out[j].Tick
		}
		return tokenIDLess(out[i].TokenID, out[j].TokenID)
	})
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// ZRC721Counts returns (collection count, token count).
func (s *Store) ZRC721Counts() (int, int, error) {
	var collections, tokens int
	err := s.db.View(func(tx *bolt.Tx) error {
		collections = tx.Bucket(bucketZRC721Collections).Stats().KeyN
		tokens = tx.Bucket(bucketZRC721Tokens).Stats().KeyN
		return nil
	})
	return collections, tokens, err
}

// RegisterZRC721Outpoint records which output carries live ownership of a
// minted or transferred NFT.
func (s *Store) RegisterZRC721Outpoint(txid string, vout uint32, ticker, tokenID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketZRC721Outpoints).Put(outpointKey(txid, vout), zrc721Key(ticker, tokenID))
	})
}

// ZRC721ByOutpoint resolves the (ticker, token id) carried by an outpoint.
func (s *Store) ZRC721ByOutpoint(txid string, vout uint32) (ticker, tokenID string, found bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketZRC721Outpoints).Get(outpointKey(txid, vout))
		if v == nil {
			return nil
		}
		t, id, ok := strings.Cut(string(v), "#")
		if !ok {
			return nil
		}
		ticker, tokenID, found = t, id, true
		return nil
	})
	return ticker, tokenID, found, err
}

// UpdateZRC721Owner sets a token's owner, optionally marking it shielded
// (a burn into an unreachable shielded address).
func (s *Store) UpdateZRC721Owner(ticker, tokenID, owner string, shielded bool) error {
	key := zrc721Key(ticker, tokenID)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketZRC721Tokens)
		raw := b.Get(key)
		if raw == nil {
			return ErrTokenNotFound
		}
		token := &ZRC721Token{}
		if err := json.Unmarshal(raw, token); err != nil {
			return err
		}
		token.Owner = owner
		token.Shielded = shielded
		data, err := json.Marshal(token)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// MoveZRC721Outpoint relocates an NFT's ownership-carrying outpoint after a
// spend: the old (txid, vout) entry is removed and a fresh entry is inserted
// at (newTxid, newVout). It does nothing if no entry exists at the old
// outpoint. A shielded exit goes through RemoveZRC721Outpoint instead.
func (s *Store) MoveZRC721Outpoint(oldTxid string, oldVout uint32, newTxid string, newVout uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketZRC721Outpoints)
		oldKey := outpointKey(oldTxid, oldVout)
		v := b.Get(oldKey)
		if v == nil {
			return nil
		}
		if err := b.Delete(oldKey); err != nil {
			return err
		}
		return b.Put(outpointKey(newTxid, newVout), v)
	})
}

// RemoveZRC721Outpoint erases an NFT's ownership-carrying outpoint without
// reinserting it elsewhere, used when a token exits into a shielded pool.
func (s *Store) RemoveZRC721Outpoint(txid string, vout uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketZRC721Outpoints).Delete(outpointKey(txid, vout))
	})
}

func tokenIDLess(a, b string) bool {
	an, aerr := strconv.ParseUint(a, 10, 64)
	bn, berr := strconv.ParseUint(b, 10, 64)
	if aerr == nil && berr == nil {
		return an < bn
	}
	return a < b
}
