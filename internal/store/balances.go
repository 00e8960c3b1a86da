package store

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"
)

// Balance tracks a holder's available (unlocked) and overall (total) amount
// for one ticker. Available must never exceed overall.
type Balance struct {
	Available *uint256.Int `json:"available"`
	Overall   *uint256.Int `json:"overall"`
}

func zeroBalance() *Balance {
	return &Balance{Available: uint256.NewInt(0), Overall: uint256.NewInt(0)}
}

func readBalance(b *bolt.Bucket, key []byte) (*Balance, error) {
	raw := b.Get(key)
	if raw == nil {
		return zeroBalance(), nil
	}
	bal := &Balance{}
	if err := json.Unmarshal(raw, bal); err != nil {
		return nil, err
	}
	return bal, nil
}

func writeBalance(b *bolt.Bucket, key []byte, bal *Balance) error {
	data, err := json.Marshal(bal)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// GetBalance returns the holder's balance for a ticker, zero if unset.
func (s *Store) GetBalance(address, ticker string) (*Balance, error) {
	var bal *Balance
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		bal, err = readBalance(tx.Bucket(bucketBalances), balanceKey(address, ticker))
		return err
	})
	return bal, err
}

// UpdateBalance applies signed deltas to a holder's available and overall
// balance in one transaction. Fails if either resulting value would be
// negative or would overflow 256 bits.
func (s *Store) UpdateBalance(address, ticker string, availableDelta, overallDelta *Delta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		key := balanceKey(address, ticker)
		bal, err := readBalance(b, key)
		if err != nil {
			return err
		}

		nextAvailable, err := applyDelta(bal.Available, availableDelta)
		if err != nil {
			return err
		}
		nextOverall, err := applyDelta(bal.Overall, overallDelta)
		if err != nil {
			return err
		}

		return writeBalance(b, key, &Balance{Available: nextAvailable, Overall: nextOverall})
	})
}

// Delta is a signed change to a balance field.
type Delta struct {
	Negative bool
	Value    *uint256.Int
}

// Credit builds a positive Delta.
func Credit(v *uint256.Int) *Delta { return &Delta{Value: v} }

// Debit builds a negative Delta.
func Debit(v *uint256.Int) *Delta { return &Delta{Negative: true, Value: v} }

// Zero is a no-op Delta.
func Zero() *Delta { return &Delta{Value: uint256.NewInt(0)} }

func applyDelta(current *uint256.Int, d *Delta) (*uint256.Int, error) {
	if d == nil || d.Value == nil || d.Value.IsZero() {
		return current, nil
	}
	if !d.Negative {
		next, overflow := new(uint256.Int).AddOverflow(current, d.Value)
		if overflow {
			return nil, ErrOverflow
		}
		return next, nil
	}
	if d.Value.Cmp(current) > 0 {
		return nil, ErrInsufficientFunds
	}
	return new(uint256.Int).Sub(current, d.Value), nil
}

// BalanceRow pairs an address with its balance for list endpoints.
type BalanceRow struct {
	Address string
	Balance *Balance
}

// ListBalancesForTick returns holders of a ticker ordered by descending
// overall balance, paginated, alongside the total holder count.
func (s *Store) ListBalancesForTick(tick string, page, limit int) ([]BalanceRow, int, error) {
	needle := strings.ToLower(tick)
	offset := page * limit
	var rows []BalanceRow

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBalances).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			address, token, ok := splitBalanceKey(string(k))
			if !ok || token != needle {
				continue
			}
			bal := &Balance{}
			if err := json.Unmarshal(v, bal); err != nil {
				return err
			}
			rows = append(rows, BalanceRow{Address: address, Balance: bal})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Balance.Overall.Cmp(rows[j].Balance.Overall) > 0
	})
	total := len(rows)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return rows[offset:end], total, nil
}

// SumBalancesForTick sums overall and available balances for a ticker across
// all holders, returning the holder count too. This is an advisory
// reporting query: O(N) and never consulted by the write path.
func (s *Store) SumBalancesForTick(tick string) (overall, available *uint256.Int, holders int, err error) {
	needle := strings.ToLower(tick)
	overall = uint256.NewInt(0)
	available = uint256.NewInt(0)

	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBalances).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			_, token, ok := splitBalanceKey(string(k))
			if !ok || token != needle {
				continue
			}
			bal := &Balance{}
			if err := json.Unmarshal(v, bal); err != nil {
				return err
			}
			var overflow bool
			overall, overflow = new(uint256.Int).AddOverflow(overall, bal.Overall)
			if overflow {
				return ErrOverflow
			}
			available, overflow = new(uint256.Int).AddOverflow(available, bal.Available)
			if overflow {
				return ErrOverflow
			}
			holders++
		}
		return nil
	})
	return overall, available, holders, err
}

// RankForAddressInTick computes the 1-based holder rank (by overall balance,
// descending) and the total holder count for a ticker. Rank is 0 if the
// address holds none or is not found.
func (s *Store) RankForAddressInTick(tick, address string) (rank uint64, total uint64, err error) {
	needle := strings.ToLower(tick)
	type row struct {
		addr string
		bal  *uint256.Int
	}
	var rows []row

	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBalances).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			addr, token, ok := splitBalanceKey(string(k))
			if !ok || token != needle {
				continue
			}
			bal := &Balance{}
			if err := json.Unmarshal(v, bal); err != nil {
				return err
			}
			if bal.Overall.IsZero() {
				continue
			}
			rows = append(rows, row{addr: addr, bal: bal.Overall})
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].bal.Cmp(rows[j].bal) > 0 })
	total = uint64(len(rows))
	for i, r := range rows {
		if r.addr == address {
			rank = uint64(i) + 1
			break
		}
	}
	return rank, total, nil
}

// ListBalancesForAddress returns every ticker an address has a balance
// record for, including records at zero, ordered by descending overall
// balance. Each row's Address field holds the ticker.
func (s *Store) ListBalancesForAddress(address string) ([]BalanceRow, error) {
	var rows []BalanceRow
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBalances).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			addr, token, ok := splitBalanceKey(string(k))
			if !ok || addr != address {
				continue
			}
			bal := &Balance{}
			if err := json.Unmarshal(v, bal); err != nil {
				return err
			}
			rows = append(rows, BalanceRow{Address: token, Balance: bal})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Balance.Overall.Cmp(rows[j].Balance.Overall) > 0
	})
	return rows, nil
}

// AddBurned credits a ticker's burned counter. The indexing path does not
// call it: a ZRC-20 reveal with no transparent output unlocks back to the
// sender, and a ZRC-721 shielded exit is recorded on the token itself.
func (s *Store) AddBurned(ticker string, amt *uint256.Int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBurned)
		current := uint256.NewInt(0)
		if raw := b.Get([]byte(ticker)); raw != nil {
			var overflow error
			current, overflow = uint256.FromDecimal(string(raw))
			if overflow != nil {
				return ErrOverflow
			}
		}
		next, overflow := new(uint256.Int).AddOverflow(current, amt)
		if overflow {
			return ErrOverflow
		}
		return b.Put([]byte(ticker), []byte(next.Dec()))
	})
}

// GetBurned returns the amount of a ticker retired into unreachable outputs.
func (s *Store) GetBurned(ticker string) (*uint256.Int, error) {
	result := uint256.NewInt(0)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBurned).Get([]byte(ticker))
		if raw == nil {
			return nil
		}
		var overflow error
		result, overflow = uint256.FromDecimal(string(raw))
		if overflow != nil {
			return ErrOverflow
		}
		return nil
	})
	return result, err
}

func splitBalanceKey(key string) (address, ticker string, ok bool) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
