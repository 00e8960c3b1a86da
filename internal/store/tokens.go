package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"
)

// TokenInfo is the persisted ZRC-20 token deploy record. Supply is kept as a
// decimal string since it can exceed 64 bits at 18 decimals.
type TokenInfo struct {
	Tick          string `json:"tick"`
	Max           string `json:"max"`
	Lim           string `json:"lim"`
	Dec           string `json:"dec"`
	Deployer      string `json:"deployer"`
	Supply        string `json:"supply"`
	InscriptionID string `json:"inscription_id"`
}

// DeployToken persists a new token row. Fails if the ticker already exists.
func (s *Store) DeployToken(ticker string, info *TokenInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		if b.Get([]byte(ticker)) != nil {
			return ErrTokenExists
		}
		if err := b.Put([]byte(ticker), data); err != nil {
			return err
		}

		stats := tx.Bucket(bucketStats)
		return putU64(stats, StatTokenCount, getU64(stats, StatTokenCount)+1)
	})
}

// GetTokenInfo fetches a token's deploy record.
func (s *Store) GetTokenInfo(ticker string) (*TokenInfo, bool, error) {
	var info *TokenInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTokens).Get([]byte(ticker))
		if v == nil {
			return nil
		}
		info = &TokenInfo{}
		return json.Unmarshal(v, info)
	})
	return info, info != nil, err
}

// GetTokensPage returns up to limit tokens in descending ticker order,
// skipping page*limit entries. The order is by ticker, not by deploy time.
func (s *Store) GetTokensPage(page, limit int) ([]*TokenInfo, error) {
	offset := page * limit
	var out []*TokenInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTokens).Cursor()
		i := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if i < offset {
				i++
				continue
			}
			if len(out) >= limit {
				break
			}
			info := &TokenInfo{}
			if err := json.Unmarshal(v, info); err != nil {
				return err
			}
			out = append(out, info)
			i++
		}
		return nil
	})
	return out, err
}

// SearchTokens does a case-insensitive substring scan over tickers, bounded
// by limit. The table is small enough for a linear walk.
func (s *Store) SearchTokens(query string, limit int) ([]*TokenInfo, error) {
	needle := strings.ToLower(query)
	var out []*TokenInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTokens).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !strings.Contains(strings.ToLower(string(k)), needle) {
				continue
			}
			info := &TokenInfo{}
			if err := json.Unmarshal(v, info); err != nil {
				return err
			}
			out = append(out, info)
			if len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// GetAllTokens returns every deployed token, unordered.
func (s *Store) GetAllTokens() ([]*TokenInfo, error) {
	var out []*TokenInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTokens).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			info := &TokenInfo{}
			if err := json.Unmarshal(v, info); err != nil {
				return err
			}
			out = append(out, info)
		}
		return nil
	})
	return out, err
}

// GetTokenCount returns the number of deployed tokens.
func (s *Store) GetTokenCount() (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		count = getU64(tx.Bucket(bucketStats), StatTokenCount)
		return nil
	})
	return count, err
}

// UpdateTokenSupply overwrites a token's supply field. Callers outside the
// mint path use this for corrective/administrative adjustments; the regular
// mint flow goes through MintCreditAtomic instead.
func (s *Store) UpdateTokenSupply(ticker string, newSupply *uint256.Int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		raw := b.Get([]byte(ticker))
		if raw == nil {
			return ErrTokenNotFound
		}
		info := &TokenInfo{}
		if err := json.Unmarshal(raw, info); err != nil {
			return err
		}
		info.Supply = newSupply.Dec()
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		return b.Put([]byte(ticker), data)
	})
}

// MintCreditAtomic increases a token's supply and credits a holder's
// available and overall balance by amt in a single transaction, so the
// global invariant supply == Σ balances + burned never observes a
// torn intermediate state.
func (s *Store) MintCreditAtomic(ticker, address string, amt *uint256.Int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		tokens := tx.Bucket(bucketTokens)
		raw := tokens.Get([]byte(ticker))
		if raw == nil {
			return ErrTokenNotFound
		}
		info := &TokenInfo{}
		if err := json.Unmarshal(raw, info); err != nil {
			return err
		}

		currentSupply, overflow := uint256.FromDecimal(defaultZero(info.Supply))
		if overflow != nil {
			return fmt.Errorf("corrupt supply for %s: %w", ticker, ErrOverflow)
		}
		newSupply, overflowed := new(uint256.Int).AddOverflow(currentSupply, amt)
		if overflowed {
			return ErrOverflow
		}
		info.Supply = newSupply.Dec()
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := tokens.Put([]byte(ticker), data); err != nil {
			return err
		}

		balances := tx.Bucket(bucketBalances)
		key := balanceKey(address, ticker)
		bal, err := readBalance(balances, key)
		if err != nil {
			return err
		}

		nextAvailable, overflowed := new(uint256.Int).AddOverflow(bal.Available, amt)
		if overflowed {
			return ErrOverflow
		}
		nextOverall, overflowed := new(uint256.Int).AddOverflow(bal.Overall, amt)
		if overflowed {
			return ErrOverflow
		}

		return writeBalance(balances, key, &Balance{Available: nextAvailable, Overall: nextOverall})
	})
}

func defaultZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
