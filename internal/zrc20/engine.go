// Package zrc20 implements the ZRC-20 fungible-token meta-protocol: deploy,
// mint, and a two-phase (commit/settle) transfer, all driven by inscription
// content and interpreted against the persisted token/balance state.
package zrc20

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/zordprotocol/zord/internal/store"
	"github.com/zordprotocol/zord/pkg/helpers"
)

// EventType distinguishes an inscription's creation from its later reveal
// (the spend of the outpoint carrying it).
type EventType string

const (
	EventInscribe EventType = "inscribe"
	EventTransfer EventType = "transfer"
)

const protocol = "zrc-20"

const (
	opDeploy   = "deploy"
	opMint     = "mint"
	opTransfer = "transfer"
)

const defaultDecimals = "18"
const maxDecimals = 18

// ErrInvalidOperation reports a malformed or non-ZRC-20 inscription payload.
// It is a validation failure: the indexer logs it at debug and moves on, it
// never halts indexing.
var ErrInvalidOperation = errors.New("invalid zrc-20 operation")

// Operation is an inscription's decoded ZRC-20 JSON payload.
type Operation struct {
	Protocol string `json:"p"`
	Op       string `json:"op"`
	Tick     string `json:"tick"`
	Max      string `json:"max,omitempty"`
	Lim      string `json:"lim,omitempty"`
	Amt      string `json:"amt,omitempty"`
	Dec      string `json:"dec,omitempty"`
}

// Engine applies ZRC-20 operations against the indexer's store.
type Engine struct {
	store *store.Store
}

// New builds a ZRC-20 engine backed by s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Process interprets one inscription's content as a ZRC-20 operation and
// applies it. txid/vout identify the output currently carrying the
// inscription, recorded against a transfer-inscribe so the reveal pass can
// recognize it later. A non-nil error is always a validation or constraint
// failure: callers should log and continue, never abort the containing
// block.
func (e *Engine) Process(eventType EventType, inscriptionID, sender, receiver, content, txid string, vout uint32) error {
	op, err := parseAndValidate(content)
	if err != nil {
		return err
	}

	switch {
	case op.Op == opDeploy && eventType == EventInscribe:
		return e.handleDeploy(inscriptionID, sender, op)
	case op.Op == opMint && eventType == EventInscribe:
		return e.handleMint(sender, op)
	case op.Op == opTransfer && eventType == EventInscribe:
		return e.handleTransferInscribe(inscriptionID, sender, txid, vout, op)
	case op.Op == opTransfer && eventType == EventTransfer:
		return e.Settle(inscriptionID, sender, receiver)
	default:
		// A well-formed operation with no matching handler for this event
		// type (e.g. a deploy inscription later spent) is simply inert.
		return nil
	}
}

func parseAndValidate(content string) (*Operation, error) {
	op := &Operation{}
	if err := json.Unmarshal([]byte(content), op); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	if op.Protocol != protocol {
		return nil, fmt.Errorf("%w: protocol %q", ErrInvalidOperation, op.Protocol)
	}

	op.Op = strings.ToLower(strings.TrimSpace(op.Op))
	switch op.Op {
	case opDeploy, opMint, opTransfer:
	default:
		return nil, fmt.Errorf("%w: operation %q", ErrInvalidOperation, op.Op)
	}

	op.Tick = strings.ToLower(strings.TrimSpace(op.Tick))
	if l := len(op.Tick); l < 4 || l > 5 {
		return nil, fmt.Errorf("%w: ticker %q must be 4-5 bytes", ErrInvalidOperation, op.Tick)
	}

	if op.Dec == "" {
		op.Dec = defaultDecimals
	}
	dec, err := strconv.Atoi(op.Dec)
	if err != nil || dec < 0 || dec > maxDecimals {
		return nil, fmt.Errorf("%w: decimals %q out of range", ErrInvalidOperation, op.Dec)
	}

	switch op.Op {
	case opDeploy:
		if err := validateNumeric(op.Max, uint8(dec)); err != nil {
			return nil, fmt.Errorf("%w: max: %v", ErrInvalidOperation, err)
		}
		if op.Lim == "" {
			op.Lim = op.Max
		}
		if err := validateNumeric(op.Lim, uint8(dec)); err != nil {
			return nil, fmt.Errorf("%w: lim: %v", ErrInvalidOperation, err)
		}
	case opMint, opTransfer:
		if err := validateNumeric(op.Amt, uint8(dec)); err != nil {
			return nil, fmt.Errorf("%w: amt: %v", ErrInvalidOperation, err)
		}
	}

	return op, nil
}

// validateNumeric enforces the shared numeric-string rules: non-empty,
// digit-only with at most one decimal point, and non-zero once fractional
// digits beyond the declared precision are truncated.
func validateNumeric(s string, dec uint8) error {
	amt, err := helpers.ParseScaledAmount(s, dec)
	if err != nil {
		return err
	}
	if amt.IsZero() {
		return fmt.Errorf("amount %q must be non-zero", s)
	}
	return nil
}

func (e *Engine) handleDeploy(inscriptionID, sender string, op *Operation) error {
	return e.store.DeployToken(op.Tick, &store.TokenInfo{
		Tick:          op.Tick,
		Max:           scaledDecimal(op.Max, op.Dec),
		Lim:           scaledDecimal(op.Lim, op.Dec),
		Dec:           op.Dec,
		Deployer:      sender,
		Supply:        "0",
		InscriptionID: inscriptionID,
	})
}

func (e *Engine) handleMint(sender string, op *Operation) error {
	info, found, err := e.store.GetTokenInfo(op.Tick)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: mint of undeployed ticker %q", ErrInvalidOperation, op.Tick)
	}

	dec, _ := strconv.Atoi(info.Dec)
	amt, err := helpers.ParseScaledAmount(op.Amt, uint8(dec))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	lim, overflow := uint256.FromDecimal(info.Lim)
	if overflow != nil {
		return fmt.Errorf("corrupt lim for %s", op.Tick)
	}
	if amt.Gt(lim) {
		return fmt.Errorf("%w: mint amount exceeds per-mint limit for %q", ErrInvalidOperation, op.Tick)
	}

	max, overflow := uint256.FromDecimal(info.Max)
	if overflow != nil {
		return fmt.Errorf("corrupt max for %s", op.Tick)
	}
	currentSupply, overflow := uint256.FromDecimal(defaultZero(info.Supply))
	if overflow != nil {
		return fmt.Errorf("corrupt supply for %s", op.Tick)
	}
	newSupply, overflowed := new(uint256.Int).AddOverflow(currentSupply, amt)
	if overflowed || newSupply.Gt(max) {
		return fmt.Errorf("%w: mint would exceed max supply for %q", ErrInvalidOperation, op.Tick)
	}

	return e.store.MintCreditAtomic(op.Tick, sender, amt)
}

func (e *Engine) handleTransferInscribe(inscriptionID, sender, txid string, vout uint32, op *Operation) error {
	info, found, err := e.store.GetTokenInfo(op.Tick)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: transfer of undeployed ticker %q", ErrInvalidOperation, op.Tick)
	}

	dec, _ := strconv.Atoi(info.Dec)
	amt, err := helpers.ParseScaledAmount(op.Amt, uint8(dec))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	bal, err := e.store.GetBalance(sender, op.Tick)
	if err != nil {
		return err
	}
	if amt.Gt(bal.Available) {
		return fmt.Errorf("%w: insufficient available balance for transfer of %q", ErrInvalidOperation, op.Tick)
	}

	if err := e.store.UpdateBalance(sender, op.Tick, store.Debit(amt), store.Zero()); err != nil {
		return err
	}

	if err := e.store.CreateTransferInscription(inscriptionID, &store.TransferInscription{
		Tick:   op.Tick,
		Amt:    amt.Dec(),
		Sender: sender,
	}); err != nil {
		return err
	}

	return e.store.RegisterTransferOutpoint(txid, vout, inscriptionID)
}

// Settle completes a previously committed transfer when its outpoint is
// spent. receiver is the destination address the reveal pass resolved from
// the spending transaction's outputs; an empty receiver means the transfer
// unlocks back to the original sender (the commit output was spent without
// moving value onward).
func (e *Engine) Settle(inscriptionID, sender, receiver string) error {
	used, err := e.store.IsInscriptionUsed(inscriptionID)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("%w: transfer inscription %q already used", ErrInvalidOperation, inscriptionID)
	}

	data, found, err := e.store.GetTransferInscription(inscriptionID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no committed transfer for inscription %q", ErrInvalidOperation, inscriptionID)
	}

	amt, overflow := uint256.FromDecimal(data.Amt)
	if overflow != nil {
		return fmt.Errorf("corrupt committed amount for %s", inscriptionID)
	}

	if receiver == "" || receiver == data.Sender {
		// Self-transfer: the locked amount simply returns to availability.
		if err := e.store.UpdateBalance(data.Sender, data.Tick, store.Credit(amt), store.Zero()); err != nil {
			return err
		}
	} else {
		if err := e.store.UpdateBalance(data.Sender, data.Tick, store.Zero(), store.Debit(amt)); err != nil {
			return err
		}
		if err := e.store.UpdateBalance(receiver, data.Tick, store.Credit(amt), store.Credit(amt)); err != nil {
			return err
		}
	}

	return e.store.MarkInscriptionUsed(inscriptionID)
}

func scaledDecimal(s, dec string) string {
	d, _ := strconv.Atoi(dec)
	amt, err := helpers.ParseScaledAmount(s, uint8(d))
	if err != nil {
		return "0"
	}
	return amt.Dec()
}

func defaultZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
