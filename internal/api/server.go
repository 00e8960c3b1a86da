// Package api exposes the indexer's state as a read-only HTTP JSON API.
// Every route is a GET: the indexer is the only writer, walking the chain
// block by block, so there is nothing here for a client to mutate.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"github.com/zordprotocol/zord/internal/store"
	"github.com/zordprotocol/zord/pkg/logging"
)

// Server serves the read-only HTTP JSON API over a store.
type Server struct {
	store *store.Store
	log   *logging.Logger

	server   *http.Server
	listener net.Listener
}

// New builds a Server backed by s.
func New(s *store.Store, log *logging.Logger) *Server {
	return &Server{store: s, log: log.Component("api")}
}

// Start binds addr and begins serving in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Handler:      corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server error", "error", err)
		}
	}()

	s.log.Info("api server started", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("GET /inscriptions", s.listInscriptions)
	mux.HandleFunc("GET /inscription/{id}", s.getInscription)
	mux.HandleFunc("GET /inscription/number/{n}", s.getInscriptionByNumber)

	mux.HandleFunc("GET /tokens", s.listTokens)
	mux.HandleFunc("GET /token/{ticker}", s.getToken)
	mux.HandleFunc("GET /token/{ticker}/integrity", s.getTokenIntegrity)
	mux.HandleFunc("GET /token/{ticker}/holders", s.getTokenHolders)

	mux.HandleFunc("GET /address/{addr}/inscriptions", s.getAddressInscriptions)
	mux.HandleFunc("GET /address/{addr}/balance/{ticker}", s.getAddressBalance)

	mux.HandleFunc("GET /collections", s.listCollections)
	mux.HandleFunc("GET /collection/{ticker}", s.getCollection)

	mux.HandleFunc("GET /nft/{ticker}/{id}", s.getNFT)

	mux.HandleFunc("GET /names", s.listNames)
	mux.HandleFunc("GET /name/{name}", s.getName)
}

// corsMiddleware allows browser-based block explorers to call the API
// cross-origin, mirroring the permissive policy of a public read-only feed.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	height, _, _ := s.store.GetLatestIndexedHeight()
	tip, _, _ := s.store.GetStatus(store.StatusChainTip)
	zrc20Height, _, _ := s.store.GetStatus(store.StatusZRC20Height)
	zrc721Height, _, _ := s.store.GetStatus(store.StatusZRC721Height)
	namesHeight, _, _ := s.store.GetStatus(store.StatusNamesHeight)

	var synced bool
	if tip == 0 {
		synced = true
	} else {
		synced = height+1 >= tip
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"core_height":   height,
		"chain_tip":     tip,
		"zrc20_height":  zrc20Height,
		"zrc721_height": zrc721Height,
		"names_height":  namesHeight,
		"synced":        synced,
	})
}

func (s *Server) listInscriptions(w http.ResponseWriter, r *http.Request) {
	page, limit := pagingParams(r)
	rows, err := s.store.GetInscriptionsPage(page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeList(w, rows, limit)
}

func (s *Server) getInscription(w http.ResponseWriter, r *http.Request) {
	insc, found, err := s.store.GetInscription(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, insc)
}

func (s *Server) getInscriptionByNumber(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(r.PathValue("n"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	insc, found, err := s.store.GetInscriptionByNumber(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, insc)
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	page, limit := pagingParams(r)
	rows, err := s.store.GetTokensPage(page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeList(w, rows, limit)
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	info, found, err := s.store.GetTokenInfo(r.PathValue("ticker"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// getTokenIntegrity reports the sum of every holder's balance against the
// declared supply, the cross-check spec.md §7's integrity property names.
func (s *Server) getTokenIntegrity(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	info, found, err := s.store.GetTokenInfo(ticker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}

	overall, available, holders, err := s.store.SumBalancesForTick(ticker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	burned, err := s.store.GetBurned(ticker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	supply, overflow := uint256.FromDecimal(info.Supply)
	if overflow != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("corrupt supply for %s", ticker))
		return
	}
	accounted := new(uint256.Int).Add(overall, burned)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":          ticker,
		"declared_supply": info.Supply,
		"sum_overall":     overall.Dec(),
		"sum_available":   available.Dec(),
		"burned":          burned.Dec(),
		"holders":         holders,
		"consistent":      supply.Eq(accounted),
	})
}

func (s *Server) getTokenHolders(w http.ResponseWriter, r *http.Request) {
	page, limit := pagingParams(r)
	rows, _, err := s.store.ListBalancesForTick(r.PathValue("ticker"), page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeList(w, rows, limit)
}

func (s *Server) getAddressInscriptions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.GetInscriptionsByAddress(r.PathValue("addr"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"inscription_ids": ids})
}

func (s *Server) getAddressBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.store.GetBalance(r.PathValue("addr"), r.PathValue("ticker"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": bal.Available.Dec(),
		"overall":   bal.Overall.Dec(),
	})
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	page, limit := pagingParams(r)
	rows, err := s.store.ListZRC721Collections(page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeList(w, rows, limit)
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	collection, found, err := s.store.GetZRC721Collection(r.PathValue("ticker"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, collection)
}

func (s *Server) getNFT(w http.ResponseWriter, r *http.Request) {
	token, found, err := s.store.GetZRC721Token(r.PathValue("ticker"), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) listNames(w http.ResponseWriter, r *http.Request) {
	page, limit := pagingParams(r)
	rows, err := s.store.GetNamesPage(page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeList(w, rows, limit)
}

func (s *Server) getName(w http.ResponseWriter, r *http.Request) {
	record, found, err := s.store.GetName(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// pagingParams reads page/limit query params, applying spec.md §4.1's
// skip(offset).take(limit) defaults and an upper bound on limit.
func pagingParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func writeList(w http.ResponseWriter, rows interface{}, limit int) {
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", 10))
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": rows, "limit": limit})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}
