package zrc721

import (
	"os"
	"testing"

	"github.com/zordprotocol/zord/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	dir, err := os.MkdirTemp("", "zrc721-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := store.Open(&store.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return New(s), s
}

func TestDeployAndMint(t *testing.T) {
	e, s := newTestEngine(t)

	deploy := `{"p":"zrc-721","op":"deploy","tick":"zpunk","supply":"100"}`
	if err := e.Process("tx1i0", "t1deployer", deploy, "tx1i0", 0); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	mint := `{"p":"zrc-721","op":"mint","tick":"zpunk","id":"1"}`
	if err := e.Process("tx2i0", "t1alice", mint, "tx2i0", 0); err != nil {
		t.Fatalf("mint: %v", err)
	}

	collection, found, err := s.GetZRC721Collection("zpunk")
	if err != nil || !found {
		t.Fatalf("GetZRC721Collection: found=%v err=%v", found, err)
	}
	if collection.Minted != 1 {
		t.Fatalf("minted = %d, want 1", collection.Minted)
	}
}

func TestMintWithExplicitRecipient(t *testing.T) {
	e, s := newTestEngine(t)
	e.Process("tx1i0", "t1deployer", `{"p":"zrc-721","op":"deploy","tick":"zpunk","supply":"100"}`, "tx1i0", 0)

	mint := `{"p":"zrc-721","op":"mint","tick":"zpunk","id":"1","to":"t1bob"}`
	if err := e.Process("tx2i0", "t1alice", mint, "tx2i0", 0); err != nil {
		t.Fatalf("mint: %v", err)
	}

	tokens, err := s.ListZRC721Tokens("zpunk", 0, 10)
	if err != nil {
		t.Fatalf("ListZRC721Tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Owner != "t1bob" {
		t.Fatalf("tokens = %+v", tokens)
	}
}

func TestMintRejectsDuplicateTokenID(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Process("tx1i0", "t1deployer", `{"p":"zrc-721","op":"deploy","tick":"zpunk","supply":"100"}`, "tx1i0", 0)
	e.Process("tx2i0", "t1alice", `{"p":"zrc-721","op":"mint","tick":"zpunk","id":"1"}`, "tx2i0", 0)

	if err := e.Process("tx3i0", "t1bob", `{"p":"zrc-721","op":"mint","tick":"zpunk","id":"1"}`, "tx3i0", 0); err == nil {
		t.Fatalf("expected error re-minting an existing token id")
	}
}

func TestMintRejectsOverSupplyCap(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Process("tx1i0", "t1deployer", `{"p":"zrc-721","op":"deploy","tick":"zpunk","supply":"1"}`, "tx1i0", 0)
	e.Process("tx2i0", "t1alice", `{"p":"zrc-721","op":"mint","tick":"zpunk","id":"0"}`, "tx2i0", 0)

	if err := e.Process("tx3i0", "t1bob", `{"p":"zrc-721","op":"mint","tick":"zpunk","id":"1"}`, "tx3i0", 0); err == nil {
		t.Fatalf("expected error minting past collection supply cap")
	}
}

func TestMintRejectsUndeployedCollection(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Process("tx1i0", "t1alice", `{"p":"zrc-721","op":"mint","tick":"zpunk","id":"1"}`, "tx1i0", 0); err == nil {
		t.Fatalf("expected error minting into undeployed collection")
	}
}

func TestDeployRejectsDuplicateCollection(t *testing.T) {
	e, _ := newTestEngine(t)
	deploy := `{"p":"zrc-721","op":"deploy","tick":"zpunk","supply":"100"}`
	if err := e.Process("tx1i0", "t1deployer", deploy, "tx1i0", 0); err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	if err := e.Process("tx2i0", "t1other", deploy, "tx2i0", 0); err == nil {
		t.Fatalf("expected error on duplicate collection deploy")
	}
}

func TestParseAndValidateRejectsNonDigitID(t *testing.T) {
	_, err := parseAndValidate(`{"p":"zrc-721","op":"mint","tick":"zpunk","id":"abc"}`)
	if err == nil {
		t.Fatalf("expected error for non-digit token id")
	}
}

func TestParseAndValidateAcceptsCollectionAlias(t *testing.T) {
	op, err := parseAndValidate(`{"p":"zrc-721","op":"deploy","collection":"zpunk","supply":"10"}`)
	if err != nil {
		t.Fatalf("parseAndValidate: %v", err)
	}
	if op.ticker() != "zpunk" {
		t.Fatalf("ticker() = %q", op.ticker())
	}
}
