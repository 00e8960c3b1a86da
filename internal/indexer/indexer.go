// Package indexer drives the chain-following loop: it pulls blocks from the
// node, extracts inscriptions from their inputs, interprets them through
// the ZRC-20/ZRC-721/ZNS meta-protocols, and commits the results to the
// store one block at a time.
package indexer

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zordprotocol/zord/internal/chainclient"
	"github.com/zordprotocol/zord/internal/inscription"
	"github.com/zordprotocol/zord/internal/store"
	"github.com/zordprotocol/zord/internal/tipnotify"
	"github.com/zordprotocol/zord/internal/zns"
	"github.com/zordprotocol/zord/internal/zrc20"
	"github.com/zordprotocol/zord/internal/zrc721"
	"github.com/zordprotocol/zord/pkg/logging"
)

// Config controls the indexer's chain-following behavior.
type Config struct {
	StartHeight  uint64
	PollInterval time.Duration
}

// DefaultConfig returns sane defaults for mainnet-style operation.
func DefaultConfig() Config {
	return Config{
		StartHeight:  0,
		PollInterval: 10 * time.Second,
	}
}

// Indexer owns the catching-up/at-tip chain-following loop.
type Indexer struct {
	store    *store.Store
	chain    *chainclient.Client
	notifier *tipnotify.Notifier // nil when no ZMQ endpoint is configured
	zrc20    *zrc20.Engine
	zrc721   *zrc721.Engine
	zns      *zns.Engine
	log      *logging.Logger
	cfg      Config

	sf singleflight.Group
}

// New builds an Indexer. notifier may be nil, in which case the loop relies
// solely on cfg.PollInterval.
func New(s *store.Store, chain *chainclient.Client, notifier *tipnotify.Notifier, log *logging.Logger, cfg Config) *Indexer {
	return &Indexer{
		store:    s,
		chain:    chain,
		notifier: notifier,
		zrc20:    zrc20.New(s),
		zrc721:   zrc721.New(s),
		zns:      zns.New(s),
		log:      log.Component("indexer"),
		cfg:      cfg,
	}
}

// Run drives the indexing loop until ctx is cancelled, restarting it with
// exponential backoff if it returns a structural error. Transient errors
// (RPC hiccups, a momentarily stale chain tip) are handled inside the loop
// and never reach here. Concurrent calls to Run collapse onto the single
// in-flight loop instead of racing two writers against the same store.
func (ix *Indexer) Run(ctx context.Context) error {
	_, err, _ := ix.sf.Do("run", func() (interface{}, error) {
		return nil, ix.runSupervised(ctx)
	})
	return err
}

func (ix *Indexer) runSupervised(ctx context.Context) error {
	const (
		baseBackoff = 5 * time.Second
		maxBackoff  = 5 * time.Minute
	)
	backoff := baseBackoff

	for {
		err := ix.loop(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		ix.log.Error("indexing loop failed, restarting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (ix *Indexer) loop(ctx context.Context) error {
	current, err := ix.currentHeight()
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		chainHeight, err := ix.chainHeightWithRetry(ctx)
		if err != nil {
			return err
		}
		if err := ix.store.SetStatus(store.StatusChainTip, chainHeight); err != nil {
			return err
		}

		if current < chainHeight {
			next := current + 1
			if err := ix.indexBlock(ctx, next); err != nil {
				ix.log.Warn("failed to index block, retrying", "height", next, "error", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(5 * time.Second):
				}
				continue
			}
			current = next
			continue
		}

		ix.waitForNextTip(ctx)
	}
}

// currentHeight resumes from the store's last committed block, or
// cfg.StartHeight - 1 on a fresh database. A StartHeight of 0 also yields 0,
// so indexing then begins at block 1.
func (ix *Indexer) currentHeight() (uint64, error) {
	height, found, err := ix.store.GetLatestIndexedHeight()
	if err != nil {
		return 0, err
	}
	if found {
		return height, nil
	}
	if ix.cfg.StartHeight == 0 {
		return 0, nil
	}
	return ix.cfg.StartHeight - 1, nil
}

// chainHeightWithRetry polls getblockcount, retrying transient transport
// errors every 10s until ctx is cancelled.
func (ix *Indexer) chainHeightWithRetry(ctx context.Context) (uint64, error) {
	for {
		height, err := ix.chain.GetBlockCount(ctx)
		if err == nil {
			return height, nil
		}
		ix.log.Warn("chain tip lookup failed, retrying", "error", err)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
}

// waitForNextTip blocks until a ZMQ signal arrives, the poll interval
// elapses, or ctx is cancelled — whichever comes first.
func (ix *Indexer) waitForNextTip(ctx context.Context) {
	var signal <-chan struct{}
	if ix.notifier != nil {
		signal = ix.notifier.Signal()
	}

	timer := time.NewTimer(ix.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-signal:
	case <-timer.C:
	}
}

// indexBlock fetches one block, extracts and interprets every inscription
// it introduces or reveals, and then commits the block hash together with
// every status height in one write.
func (ix *Indexer) indexBlock(ctx context.Context, height uint64) error {
	hash, err := ix.chain.GetBlockHash(ctx, height)
	if err != nil {
		return err
	}
	block, err := ix.chain.GetBlock(ctx, hash)
	if err != nil {
		return err
	}

	for _, txid := range block.Tx {
		tx, err := ix.chain.GetRawTransaction(ctx, txid)
		if err != nil {
			return err
		}
		ix.indexTransaction(tx, height, block.Time)
		ix.revealTransaction(tx)
	}

	return ix.store.InsertBlock(height, hash)
}

// indexTransaction looks for a new inscription among tx's inputs and, if
// found, persists and interprets it. At most one inscription per
// transaction: the first input that yields one wins.
func (ix *Indexer) indexTransaction(tx *chainclient.Transaction, height, blockTime uint64) {
	vouts := make([]inscription.VoutAddresses, len(tx.Vout))
	for i, v := range tx.Vout {
		vouts[i] = inscription.VoutAddresses{Addresses: v.ScriptPubKey.Addresses}
	}

	for _, vin := range tx.Vin {
		if vin.ScriptSig == nil || vin.ScriptSig.Asm == "" {
			continue
		}
		result, ok := inscription.Extract(vin.ScriptSig.Asm, tx.Txid, vouts)
		if !ok {
			continue
		}

		assignedVout := assignOutput(tx.Vout, result.Sender)

		insc := &store.Inscription{
			ID:          result.ID,
			Content:     result.Content,
			ContentHex:  result.ContentHex,
			ContentType: result.ContentType,
			Txid:        tx.Txid,
			Vout:        assignedVout,
			Sender:      result.Sender,
			Receiver:    result.Receiver,
			BlockHeight: height,
			BlockTime:   blockTime,
		}

		if err := ix.store.InsertInscription(insc); err != nil {
			ix.log.Debug("failed to persist inscription", "id", result.ID, "error", err)
			return
		}

		ix.dispatch(insc, tx.Txid, assignedVout)
		return
	}
}

// dispatch routes a freshly-inscribed payload to the meta-protocol engine
// whose content type it matches. Every engine error is a validation
// failure: log at debug and move on.
func (ix *Indexer) dispatch(insc *store.Inscription, txid string, vout uint32) {
	switch {
	case isJSONContentType(insc.ContentType) || looksLikeJSONBody(insc.Content):
		if err := ix.zrc20.Process(zrc20.EventInscribe, insc.ID, insc.Sender, insc.Receiver, insc.Content, txid, vout); err != nil {
			ix.log.Debug("zrc-20 inscribe rejected", "id", insc.ID, "error", err)
		}
		if err := ix.zrc721.Process(insc.ID, insc.Sender, insc.Content, txid, vout); err != nil {
			ix.log.Debug("zrc-721 inscribe rejected", "id", insc.ID, "error", err)
		}
	case insc.ContentType == "text/plain":
		if err := ix.zns.Process(insc.ID, insc.Sender, insc.Content, insc.ContentType); err != nil {
			ix.log.Debug("zns registration rejected", "id", insc.ID, "error", err)
		}
	}
}

// revealTransaction settles any ZRC-20 transfer or moves any ZRC-721
// ownership outpoint that tx's inputs spend.
func (ix *Indexer) revealTransaction(tx *chainclient.Transaction) {
	receiver, receiverVout, hasReceiver := firstTransparentOutput(tx.Vout)

	for _, vin := range tx.Vin {
		if vin.Txid == "" {
			continue
		}

		if inscriptionID, found, err := ix.store.GetTransferByOutpoint(vin.Txid, vin.Vout); err == nil && found {
			settleTo := ""
			if hasReceiver {
				settleTo = receiver
			}
			if err := ix.zrc20.Settle(inscriptionID, "", settleTo); err != nil {
				ix.log.Debug("zrc-20 settle failed", "id", inscriptionID, "error", err)
			}
			_ = ix.store.RemoveTransferOutpoint(vin.Txid, vin.Vout)
		}

		if ticker, tokenID, found, err := ix.store.ZRC721ByOutpoint(vin.Txid, vin.Vout); err == nil && found {
			if hasReceiver {
				if err := ix.store.UpdateZRC721Owner(ticker, tokenID, receiver, false); err != nil {
					ix.log.Debug("zrc-721 owner update failed", "ticker", ticker, "id", tokenID, "error", err)
					continue
				}
				if err := ix.store.MoveZRC721Outpoint(vin.Txid, vin.Vout, tx.Txid, receiverVout); err != nil {
					ix.log.Debug("zrc-721 outpoint move failed", "ticker", ticker, "id", tokenID, "error", err)
				}
			} else {
				// Every output is shielded: the token exits into the
				// shielded pool and stops being outpoint-trackable.
				if err := ix.store.UpdateZRC721Owner(ticker, tokenID, "shielded", true); err != nil {
					ix.log.Debug("zrc-721 shielded exit failed", "ticker", ticker, "id", tokenID, "error", err)
					continue
				}
				_ = ix.store.RemoveZRC721Outpoint(vin.Txid, vin.Vout)
			}
		}
	}
}

// assignOutput picks the output that carries the inscription onward:
// preferring an output addressed back to the sender, falling back to the
// first output with any address, and finally output 0.
func assignOutput(vouts []chainclient.Vout, sender string) uint32 {
	for _, v := range vouts {
		for _, addr := range v.ScriptPubKey.Addresses {
			if addr == sender {
				return v.N
			}
		}
	}
	for _, v := range vouts {
		if len(v.ScriptPubKey.Addresses) > 0 {
			return v.N
		}
	}
	return 0
}

// firstTransparentOutput returns the first output addressed to a
// transparent (non-shielded) address, used to resolve where a reveal's
// value or ownership moves to.
func firstTransparentOutput(vouts []chainclient.Vout) (address string, vout uint32, found bool) {
	for _, v := range vouts {
		for _, addr := range v.ScriptPubKey.Addresses {
			if !inscription.IsShielded(addr) {
				return addr, v.N, true
			}
		}
	}
	return "", 0, false
}

func isJSONContentType(contentType string) bool {
	if contentType == "application/json" {
		return true
	}
	return strings.HasSuffix(contentType, "+json")
}

// looksLikeJSONBody catches text/* inscriptions whose body is itself a JSON
// object or array, even when the MIME type doesn't say so explicitly.
func looksLikeJSONBody(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return true
	}
	// content may be hex-encoded binary; a non-text payload never matches.
	if decoded, err := hex.DecodeString(trimmed); err == nil {
		s := strings.TrimSpace(string(decoded))
		return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
	}
	return false
}
