package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/holiman/uint256"

	"github.com/zordprotocol/zord/internal/store"
	"github.com/zordprotocol/zord/pkg/logging"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	dir, err := os.MkdirTemp("", "api-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := store.Open(&store.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mux := http.NewServeMux()
	srv := New(s, logging.New(&logging.Config{}))
	srv.registerRoutes(mux)

	ts := httptest.NewServer(corsMiddleware(mux))
	t.Cleanup(ts.Close)
	return ts, s
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	var body map[string]interface{}
	resp := getJSON(t, ts.URL+"/health", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %+v", body)
	}
	for _, key := range []string{"zrc20_height", "zrc721_height", "names_height", "synced"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing %q in body = %+v", key, body)
		}
	}
	if body["synced"] != true {
		t.Fatalf("expected synced = true with no chain tip recorded, body = %+v", body)
	}
}

func TestHealthSyncedBoundary(t *testing.T) {
	ts, s := newTestServer(t)
	if err := s.InsertBlock(10, "hash10"); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}
	if err := s.SetStatus(store.StatusChainTip, 11); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	var body map[string]interface{}
	getJSON(t, ts.URL+"/health", &body)
	if body["synced"] != true {
		t.Fatalf("core_height 10 with chain_tip 11 should be synced, body = %+v", body)
	}

	if err := s.SetStatus(store.StatusChainTip, 12); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	getJSON(t, ts.URL+"/health", &body)
	if body["synced"] != false {
		t.Fatalf("core_height 10 with chain_tip 12 should not be synced, body = %+v", body)
	}
}

func TestGetInscriptionNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := getJSON(t, ts.URL+"/inscription/missingi0", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetInscriptionFound(t *testing.T) {
	ts, s := newTestServer(t)
	if err := s.InsertInscription(&store.Inscription{ID: "tx1i0", Content: "hello", ContentType: "text/plain"}); err != nil {
		t.Fatalf("InsertInscription: %v", err)
	}

	var got store.Inscription
	resp := getJSON(t, ts.URL+"/inscription/tx1i0", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got.ID != "tx1i0" || got.Content != "hello" {
		t.Fatalf("got = %+v", got)
	}
}

func TestListInscriptionsPaginates(t *testing.T) {
	ts, s := newTestServer(t)
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		if err := s.InsertInscription(&store.Inscription{ID: id}); err != nil {
			t.Fatalf("InsertInscription: %v", err)
		}
	}

	var body struct {
		Items []store.Inscription `json:"items"`
		Limit int                 `json:"limit"`
	}
	resp := getJSON(t, ts.URL+"/inscriptions?limit=2", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(body.Items) != 2 || body.Limit != 2 {
		t.Fatalf("body = %+v", body)
	}
	if resp.Header.Get("Cache-Control") == "" {
		t.Fatalf("expected Cache-Control header on list endpoint")
	}
}

func TestGetTokenIntegrity(t *testing.T) {
	ts, s := newTestServer(t)
	if err := s.DeployToken("zord", &store.TokenInfo{Tick: "zord", Max: "1000", Lim: "100", Dec: "18", Supply: "0"}); err != nil {
		t.Fatalf("DeployToken: %v", err)
	}
	if err := s.MintCreditAtomic("zord", "t1alice", uint256.NewInt(100)); err != nil {
		t.Fatalf("MintCreditAtomic: %v", err)
	}

	var body map[string]interface{}
	resp := getJSON(t, ts.URL+"/token/zord/integrity", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["sum_overall"] != "100" || body["burned"] != "0" || body["consistent"] != true {
		t.Fatalf("body = %+v", body)
	}
}

func TestGetTokenIntegrityAccountsForBurned(t *testing.T) {
	ts, s := newTestServer(t)
	// MintCreditAtomic adds to supply: 40 already issued + 60 minted = 100.
	if err := s.DeployToken("zord", &store.TokenInfo{Tick: "zord", Max: "1000", Lim: "100", Dec: "18", Supply: "40"}); err != nil {
		t.Fatalf("DeployToken: %v", err)
	}
	if err := s.MintCreditAtomic("zord", "t1alice", uint256.NewInt(60)); err != nil {
		t.Fatalf("MintCreditAtomic: %v", err)
	}
	if err := s.AddBurned("zord", uint256.NewInt(40)); err != nil {
		t.Fatalf("AddBurned: %v", err)
	}

	var body map[string]interface{}
	getJSON(t, ts.URL+"/token/zord/integrity", &body)
	if body["sum_overall"] != "60" || body["burned"] != "40" || body["consistent"] != true {
		t.Fatalf("body = %+v", body)
	}
}

func TestGetAddressBalance(t *testing.T) {
	ts, s := newTestServer(t)
	s.DeployToken("zord", &store.TokenInfo{Tick: "zord", Max: "1000", Lim: "100", Dec: "18", Supply: "0"})
	s.MintCreditAtomic("zord", "t1alice", uint256.NewInt(50))

	var body map[string]string
	resp := getJSON(t, ts.URL+"/address/t1alice/balance/zord", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["available"] != "50" || body["overall"] != "50" {
		t.Fatalf("body = %+v", body)
	}
}

func TestGetNFTNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := getJSON(t, ts.URL+"/nft/zpunk/1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetNameFound(t *testing.T) {
	ts, s := newTestServer(t)
	if err := s.RegisterName("alice.zec", &store.NameRecord{Name: "alice.zec", NameLower: "alice.zec", Owner: "t1alice"}); err != nil {
		t.Fatalf("RegisterName: %v", err)
	}

	var got store.NameRecord
	resp := getJSON(t, ts.URL+"/name/alice.zec", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got.Owner != "t1alice" {
		t.Fatalf("got = %+v", got)
	}
}
