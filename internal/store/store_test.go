package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "zord-store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := Open(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "zord-store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	s, err := Open(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(tmpDir, "zord.db")); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestReindexDeletesExisting(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "zord-store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	s, err := Open(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.InsertBlock(1, "hash1"); err != nil {
		t.Fatalf("InsertBlock() error = %v", err)
	}
	s.Close()

	s2, err := Open(&Config{DataDir: tmpDir, Reindex: true})
	if err != nil {
		t.Fatalf("Open() with reindex error = %v", err)
	}
	defer s2.Close()

	_, found, err := s2.GetLatestIndexedHeight()
	if err != nil {
		t.Fatalf("GetLatestIndexedHeight() error = %v", err)
	}
	if found {
		t.Error("expected empty store after reindex")
	}
}

func TestBlocksOrderedTip(t *testing.T) {
	s := newTestStore(t)

	for h := uint64(100); h <= 105; h++ {
		if err := s.InsertBlock(h, "hash"+string(rune('a'+h-100))); err != nil {
			t.Fatalf("InsertBlock(%d) error = %v", h, err)
		}
	}

	height, found, err := s.GetLatestIndexedHeight()
	if err != nil {
		t.Fatalf("GetLatestIndexedHeight() error = %v", err)
	}
	if !found || height != 105 {
		t.Errorf("expected tip 105, got %d (found=%v)", height, found)
	}
}

func TestInscriptionNumberingAndAddressIndex(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		insc := &Inscription{
			ID:     "txid" + string(rune('a'+i)) + "i0",
			Sender: "taddr1",
		}
		if err := s.InsertInscription(insc); err != nil {
			t.Fatalf("InsertInscription() error = %v", err)
		}
	}

	count, err := s.GetInscriptionCount()
	if err != nil || count != 3 {
		t.Errorf("expected count 3, got %d, err=%v", count, err)
	}

	first, found, err := s.GetInscriptionByNumber(1)
	if err != nil || !found || first.ID != "txidai0" {
		t.Errorf("GetInscriptionByNumber(1) = %+v, found=%v, err=%v", first, found, err)
	}

	ids, err := s.GetInscriptionsByAddress("taddr1")
	if err != nil {
		t.Fatalf("GetInscriptionsByAddress() error = %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 indexed inscriptions for address, got %d", len(ids))
	}
}

func TestDeployTokenRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)

	info := &TokenInfo{Tick: "zord", Max: "21000000", Lim: "1000", Dec: "8", Supply: "0"}
	if err := s.DeployToken("zord", info); err != nil {
		t.Fatalf("DeployToken() error = %v", err)
	}
	if err := s.DeployToken("zord", info); err != ErrTokenExists {
		t.Errorf("expected ErrTokenExists, got %v", err)
	}
}

func TestMintCreditAtomic(t *testing.T) {
	s := newTestStore(t)

	info := &TokenInfo{Tick: "zord", Max: "21000000", Lim: "1000", Dec: "8", Supply: "0"}
	if err := s.DeployToken("zord", info); err != nil {
		t.Fatalf("DeployToken() error = %v", err)
	}

	amt := uint256.NewInt(500)
	if err := s.MintCreditAtomic("zord", "taddr1", amt); err != nil {
		t.Fatalf("MintCreditAtomic() error = %v", err)
	}

	updated, found, err := s.GetTokenInfo("zord")
	if err != nil || !found {
		t.Fatalf("GetTokenInfo() error = %v, found=%v", err, found)
	}
	if updated.Supply != "500" {
		t.Errorf("expected supply 500, got %s", updated.Supply)
	}

	bal, err := s.GetBalance("taddr1", "zord")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if bal.Available.Uint64() != 500 || bal.Overall.Uint64() != 500 {
		t.Errorf("expected balance 500/500, got %s/%s", bal.Available.Dec(), bal.Overall.Dec())
	}
}

func TestUpdateBalanceRejectsNegative(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateBalance("taddr1", "zord", Debit(uint256.NewInt(10)), Zero())
	if err != ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestUpdateBalanceCreditThenDebit(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateBalance("taddr1", "zord", Credit(uint256.NewInt(100)), Credit(uint256.NewInt(100))); err != nil {
		t.Fatalf("credit error = %v", err)
	}
	if err := s.UpdateBalance("taddr1", "zord", Debit(uint256.NewInt(40)), Zero()); err != nil {
		t.Fatalf("debit error = %v", err)
	}

	bal, err := s.GetBalance("taddr1", "zord")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if bal.Available.Uint64() != 60 {
		t.Errorf("expected available 60, got %s", bal.Available.Dec())
	}
	if bal.Overall.Uint64() != 100 {
		t.Errorf("expected overall unchanged at 100, got %s", bal.Overall.Dec())
	}
}

func TestTransferCommitAndSettle(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateTransferInscription("txidi1", &TransferInscription{Tick: "zord", Amt: "100", Sender: "sender1"}); err != nil {
		t.Fatalf("CreateTransferInscription() error = %v", err)
	}
	if err := s.RegisterTransferOutpoint("txid1", 0, "txidi1"); err != nil {
		t.Fatalf("RegisterTransferOutpoint() error = %v", err)
	}

	id, found, err := s.GetTransferByOutpoint("txid1", 0)
	if err != nil || !found || id != "txidi1" {
		t.Fatalf("GetTransferByOutpoint() = %s, found=%v, err=%v", id, found, err)
	}

	used, err := s.IsInscriptionUsed("txidi1")
	if err != nil || used {
		t.Fatalf("expected unused before settlement, used=%v, err=%v", used, err)
	}

	if err := s.MarkInscriptionUsed("txidi1"); err != nil {
		t.Fatalf("MarkInscriptionUsed() error = %v", err)
	}
	if err := s.RemoveTransferOutpoint("txid1", 0); err != nil {
		t.Fatalf("RemoveTransferOutpoint() error = %v", err)
	}

	used, err = s.IsInscriptionUsed("txidi1")
	if err != nil || !used {
		t.Fatalf("expected used after settlement, used=%v, err=%v", used, err)
	}

	_, found, err = s.GetTransferByOutpoint("txid1", 0)
	if err != nil || found {
		t.Fatalf("expected outpoint removed, found=%v, err=%v", found, err)
	}
}

func TestZRC721MintAndMove(t *testing.T) {
	s := newTestStore(t)

	collection := &ZRC721Collection{Collection: "zrcats", Supply: "10", Deployer: "deployer1"}
	if err := s.RegisterZRC721Collection("zrcats", collection); err != nil {
		t.Fatalf("RegisterZRC721Collection() error = %v", err)
	}
	if err := s.RegisterZRC721Collection("zrcats", collection); err != ErrCollectionExists {
		t.Errorf("expected ErrCollectionExists, got %v", err)
	}

	token := &ZRC721Token{Tick: "zrcats", TokenID: "0", Owner: "owner1", InscriptionID: "txidi0"}
	if err := s.InsertZRC721Token("zrcats", "0", token); err != nil {
		t.Fatalf("InsertZRC721Token() error = %v", err)
	}
	if err := s.InsertZRC721Token("zrcats", "0", token); err != ErrTokenAlreadyMinted {
		t.Errorf("expected ErrTokenAlreadyMinted, got %v", err)
	}

	updated, found, err := s.GetZRC721Collection("zrcats")
	if err != nil || !found || updated.Minted != 1 {
		t.Fatalf("expected minted=1, got %+v, err=%v", updated, err)
	}

	if err := s.RegisterZRC721Outpoint("minttx", 0, "zrcats", "0"); err != nil {
		t.Fatalf("RegisterZRC721Outpoint() error = %v", err)
	}

	ticker, tokenID, found, err := s.ZRC721ByOutpoint("minttx", 0)
	if err != nil || !found || ticker != "zrcats" || tokenID != "0" {
		t.Fatalf("ZRC721ByOutpoint() = %s/%s, found=%v, err=%v", ticker, tokenID, found, err)
	}

	if err := s.UpdateZRC721Owner("zrcats", "0", "owner2", false); err != nil {
		t.Fatalf("UpdateZRC721Owner() error = %v", err)
	}
	if err := s.MoveZRC721Outpoint("minttx", 0, "movetx", 1); err != nil {
		t.Fatalf("MoveZRC721Outpoint() error = %v", err)
	}

	_, _, found, err = s.ZRC721ByOutpoint("minttx", 0)
	if err != nil || found {
		t.Fatalf("expected old outpoint removed, found=%v, err=%v", found, err)
	}
	ticker, tokenID, found, err = s.ZRC721ByOutpoint("movetx", 1)
	if err != nil || !found || ticker != "zrcats" || tokenID != "0" {
		t.Fatalf("expected new outpoint present, got %s/%s found=%v err=%v", ticker, tokenID, found, err)
	}

	got, found, err := s.GetZRC721Token("zrcats", "0")
	if err != nil || !found || got.Owner != "owner2" {
		t.Fatalf("GetZRC721Token() = %+v, found=%v, err=%v", got, found, err)
	}
	if _, found, err := s.GetZRC721Token("zrcats", "99"); err != nil || found {
		t.Fatalf("expected no token for unminted id, found=%v err=%v", found, err)
	}
}

func TestZRC721RejectsOutOfRangeAndDuplicate(t *testing.T) {
	s := newTestStore(t)

	collection := &ZRC721Collection{Collection: "zrcats", Supply: "1"}
	if err := s.RegisterZRC721Collection("zrcats", collection); err != nil {
		t.Fatalf("RegisterZRC721Collection() error = %v", err)
	}

	if err := s.InsertZRC721Token("zrcats", "5", &ZRC721Token{Tick: "zrcats", TokenID: "5"}); err != ErrTokenIDOutOfRange {
		t.Errorf("expected ErrTokenIDOutOfRange, got %v", err)
	}

	if err := s.InsertZRC721Token("zrcats", "0", &ZRC721Token{Tick: "zrcats", TokenID: "0"}); err != nil {
		t.Fatalf("InsertZRC721Token() error = %v", err)
	}
	if err := s.InsertZRC721Token("zrcats", "0", &ZRC721Token{Tick: "zrcats", TokenID: "0"}); err != ErrTokenAlreadyMinted {
		t.Errorf("expected ErrTokenAlreadyMinted, got %v", err)
	}
}

func TestNameFirstWriterWins(t *testing.T) {
	s := newTestStore(t)

	record := &NameRecord{Name: "Alice.zec", NameLower: "alice.zec", Owner: "owner1"}
	if err := s.RegisterName("alice.zec", record); err != nil {
		t.Fatalf("RegisterName() error = %v", err)
	}

	other := &NameRecord{Name: "alice.zec", NameLower: "alice.zec", Owner: "owner2"}
	if err := s.RegisterName("alice.zec", other); err != ErrNameExists {
		t.Errorf("expected ErrNameExists, got %v", err)
	}

	fetched, found, err := s.GetName("alice.zec")
	if err != nil || !found || fetched.Owner != "owner1" {
		t.Errorf("expected original owner1 to win, got %+v, err=%v", fetched, err)
	}
}

func TestSumBalancesForTick(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateBalance("a1", "zord", Credit(uint256.NewInt(100)), Credit(uint256.NewInt(100))); err != nil {
		t.Fatalf("UpdateBalance() error = %v", err)
	}
	if err := s.UpdateBalance("a2", "zord", Credit(uint256.NewInt(50)), Credit(uint256.NewInt(50))); err != nil {
		t.Fatalf("UpdateBalance() error = %v", err)
	}

	overall, available, holders, err := s.SumBalancesForTick("zord")
	if err != nil {
		t.Fatalf("SumBalancesForTick() error = %v", err)
	}
	if overall.Uint64() != 150 || available.Uint64() != 150 || holders != 2 {
		t.Errorf("expected overall=150 available=150 holders=2, got %s/%s/%d", overall.Dec(), available.Dec(), holders)
	}
}

func TestRankForAddressInTick(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateBalance("whale", "zord", Credit(uint256.NewInt(1000)), Credit(uint256.NewInt(1000))); err != nil {
		t.Fatalf("UpdateBalance() error = %v", err)
	}
	if err := s.UpdateBalance("shrimp", "zord", Credit(uint256.NewInt(10)), Credit(uint256.NewInt(10))); err != nil {
		t.Fatalf("UpdateBalance() error = %v", err)
	}

	rank, total, err := s.RankForAddressInTick("zord", "shrimp")
	if err != nil {
		t.Fatalf("RankForAddressInTick() error = %v", err)
	}
	if rank != 2 || total != 2 {
		t.Errorf("expected rank=2 total=2, got rank=%d total=%d", rank, total)
	}
}
