// Package chainclient talks to the chain node's JSON-RPC interface: the
// only channel through which the indexer learns about blocks and
// transactions.
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Client is a minimal JSON-RPC 1.0 client for a Zcash-like node. It is the
// indexer's only dependency on the chain: block heights, hashes, full block
// contents, and raw transaction lookups all flow through Call.
type Client struct {
	url        string
	user       string
	pass       string
	httpClient *http.Client
	requestID  atomic.Uint64
}

// Config configures a Client.
type Config struct {
	URL     string
	User    string
	Pass    string
	Timeout time.Duration
}

// New builds a Client. A zero Timeout defaults to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		user:       cfg.User,
		pass:       cfg.Pass,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call issues a JSON-RPC 1.0 request and returns the raw result payload.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id := c.requestID.Add(1)

	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "1.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, envelope.Error)
	}
	return envelope.Result, nil
}

// GetBlockCount returns the chain tip height.
func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "getblockcount", nil)
	if err != nil {
		return 0, err
	}
	var height uint64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, fmt.Errorf("getblockcount: %w", err)
	}
	return height, nil
}

// GetBlockHash returns the block hash at a given height.
func (c *Client) GetBlockHash(ctx context.Context, height uint64) (string, error) {
	result, err := c.Call(ctx, "getblockhash", []interface{}{height})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("getblockhash: %w", err)
	}
	return hash, nil
}

// Block is the subset of getblock's verbose response the indexer needs.
type Block struct {
	Height            uint64   `json:"height"`
	Hash              string   `json:"hash"`
	Tx                []string `json:"tx"`
	Time              uint64   `json:"time"`
	PreviousBlockHash string   `json:"previousblockhash"`
}

// GetBlock fetches a block (verbosity 1: txids only, not full tx bodies).
func (c *Client) GetBlock(ctx context.Context, hash string) (*Block, error) {
	result, err := c.Call(ctx, "getblock", []interface{}{hash, 1})
	if err != nil {
		return nil, err
	}
	block := &Block{}
	if err := json.Unmarshal(result, block); err != nil {
		return nil, fmt.Errorf("getblock: %w", err)
	}
	return block, nil
}

// ScriptSig is a transaction input's unlocking script.
type ScriptSig struct {
	Hex string `json:"hex"`
	Asm string `json:"asm"`
}

// Vin is one transaction input.
type Vin struct {
	Txid      string     `json:"txid"`
	Vout      uint32     `json:"vout"`
	ScriptSig *ScriptSig `json:"scriptSig"`
}

// ScriptPubKey is a transaction output's locking script.
type ScriptPubKey struct {
	Hex       string   `json:"hex"`
	Asm       string   `json:"asm"`
	Type      string   `json:"type"`
	Addresses []string `json:"addresses"`
}

// Vout is one transaction output.
type Vout struct {
	Value        float64      `json:"value"`
	N            uint32       `json:"n"`
	ScriptPubKey ScriptPubKey `json:"scriptPubKey"`
}

// Transaction is the subset of getrawtransaction's verbose response the
// indexer needs to extract and settle inscriptions.
type Transaction struct {
	Txid string `json:"txid"`
	Hex  string `json:"hex"`
	Vin  []Vin  `json:"vin"`
	Vout []Vout `json:"vout"`
}

// GetRawTransaction fetches a transaction in verbose (decoded) form.
func (c *Client) GetRawTransaction(ctx context.Context, txid string) (*Transaction, error) {
	result, err := c.Call(ctx, "getrawtransaction", []interface{}{txid, 1})
	if err != nil {
		return nil, err
	}
	tx := &Transaction{}
	if err := json.Unmarshal(result, tx); err != nil {
		return nil, fmt.Errorf("getrawtransaction: %w", err)
	}
	return tx, nil
}
