// Package store provides persistent storage for the zord indexer using an
// embedded, single-writer key-value database.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names. All buckets are opened once at boot inside a single write
// transaction so the schema is stable for the lifetime of the process.
var (
	bucketBlocks              = []byte("blocks")
	bucketInscriptions        = []byte("inscriptions")
	bucketInscriptionNumbers  = []byte("inscription_numbers")
	bucketAddressInscriptions = []byte("address_inscriptions")
	bucketTokens              = []byte("tokens")
	bucketBalances            = []byte("balances")
	bucketTransferInscrs      = []byte("transfer_inscriptions")
	bucketTransferOutpoints   = []byte("transfer_outpoints")
	bucketInscriptionState    = []byte("inscription_state")
	bucketZRC721Collections   = []byte("zrc721_collections")
	bucketZRC721Tokens        = []byte("zrc721_tokens")
	bucketZRC721Outpoints     = []byte("zrc721_outpoints")
	bucketNames               = []byte("names")
	bucketStatus              = []byte("status")
	bucketStats               = []byte("stats")
	bucketBurned              = []byte("burned")

	allBuckets = [][]byte{
		bucketBlocks, bucketInscriptions, bucketInscriptionNumbers,
		bucketAddressInscriptions, bucketTokens, bucketBalances,
		bucketTransferInscrs, bucketTransferOutpoints, bucketInscriptionState,
		bucketZRC721Collections, bucketZRC721Tokens, bucketZRC721Outpoints,
		bucketNames, bucketStatus, bucketStats, bucketBurned,
	}
)

// Status/stats keys.
const (
	StatusChainTip     = "chain_tip"
	StatusCoreHeight   = "core_height"
	StatusZRC20Height  = "zrc20_height"
	StatusZRC721Height = "zrc721_height"
	StatusNamesHeight  = "names_height"

	StatInscriptionCount = "inscription_count"
	StatTokenCount       = "token_count"
	StatNameCount        = "name_count"

	inscriptionUsed   = "used"
	inscriptionUnused = "unused"
)

// Sentinel errors returned by store operations.
var (
	ErrTokenExists        = errors.New("token already exists")
	ErrTokenNotFound      = errors.New("token not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrTokenAlreadyMinted = errors.New("token already minted")
	ErrTokenIDOutOfRange  = errors.New("token id out of range")
	ErrMaxTokensReached   = errors.New("max token count reached")
	ErrNameExists         = errors.New("name already registered")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrOverflow           = errors.New("amount overflow")
	ErrTransferUsed       = errors.New("transfer inscription already used")
	ErrTransferNotFound   = errors.New("transfer inscription not found")
)

// Store is a shared handle to the bbolt-backed indexer state.
type Store struct {
	db *bolt.DB
}

// Config holds store configuration.
type Config struct {
	DataDir string
	Reindex bool
}

// Open creates or opens the indexer's store file under cfg.DataDir, creating
// every bucket in a single write transaction so the schema is fixed before
// any caller observes the database.
func Open(cfg *Config) (*Store, error) {
	dataDir := expandPath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "zord.db")

	if cfg.Reindex {
		if _, err := os.Stat(dbPath); err == nil {
			if err := os.Remove(dbPath); err != nil {
				return nil, fmt.Errorf("failed to remove database for reindex: %w", err)
			}
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying bbolt handle, for tests and advisory scans that
// need direct cursor access.
func (s *Store) DB() *bolt.DB {
	return s.db
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// u64Key encodes a uint64 as a fixed-width big-endian byte slice so that
// bbolt's lexicographic key ordering matches numeric ordering.
func u64Key(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func keyToU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func outpointKey(txid string, vout uint32) []byte {
	return []byte(fmt.Sprintf("%s:%d", txid, vout))
}

func balanceKey(address, ticker string) []byte {
	return []byte(fmt.Sprintf("%s:%s", address, ticker))
}

func zrc721Key(ticker, tokenID string) []byte {
	return []byte(fmt.Sprintf("%s#%s", ticker, tokenID))
}
