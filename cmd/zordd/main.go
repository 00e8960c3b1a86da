// Package main provides zordd, the chain-following inscription indexer
// daemon.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zordprotocol/zord/internal/api"
	"github.com/zordprotocol/zord/internal/chainclient"
	"github.com/zordprotocol/zord/internal/config"
	"github.com/zordprotocol/zord/internal/indexer"
	"github.com/zordprotocol/zord/internal/store"
	"github.com/zordprotocol/zord/internal/tipnotify"
	"github.com/zordprotocol/zord/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.zord", "Data directory")
		configFile  = flag.String("config", "", "Directory holding config.yaml, used instead of -data-dir for config lookup (the file name is always config.yaml)")
		rpcURL      = flag.String("rpc-url", "", "Chain node JSON-RPC URL, overrides config")
		apiAddr     = flag.String("api", "", "HTTP API listen address, overrides config")
		reindex     = flag.Bool("reindex", false, "Delete the existing database and reindex from start-height")
		startHeight = flag.Uint64("start-height", 0, "Block height to start indexing from on a fresh database, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		println("zordd " + version + " (commit: " + commit + ")")
		os.Exit(0)
	}

	log := logging.New(logging.DefaultConfig())
	logging.SetDefault(log)

	configDir := *dataDir
	if *configFile != "" {
		configDir = *configFile
	}
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	if *rpcURL != "" {
		cfg.RPC.URL = *rpcURL
	}
	if *apiAddr != "" {
		cfg.API.ListenAddr = *apiAddr
	}
	if *reindex {
		cfg.Reindex = true
	}
	if *startHeight != 0 {
		cfg.StartHeight = *startHeight
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	log.Info("config loaded", "path", config.ConfigPath(configDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.Open(&store.Config{
		DataDir: cfg.Storage.DataDir,
		Reindex: cfg.Reindex,
	})
	if err != nil {
		log.Fatal("failed to open store", "error", err)
	}
	defer s.Close()
	log.Info("store opened", "path", config.DBPath(cfg.Storage.DataDir))

	chain := chainclient.New(chainclient.Config{
		URL:     cfg.RPC.URL,
		User:    cfg.RPC.User,
		Pass:    cfg.RPC.Password,
		Timeout: cfg.RPC.Timeout,
	})

	var notifier *tipnotify.Notifier
	if cfg.ZMQ.URL != "" {
		notifier, err = tipnotify.Start(cfg.ZMQ.URL, log)
		if err != nil {
			log.Warn("failed to start zmq tip notifier, falling back to polling only", "error", err)
		} else {
			log.Info("zmq tip notifier started", "addr", cfg.ZMQ.URL)
			defer notifier.Stop()
		}
	}

	ix := indexer.New(s, chain, notifier, log, indexer.Config{
		StartHeight:  cfg.StartHeight,
		PollInterval: cfg.RPC.PollInterval,
	})

	indexerErrCh := make(chan error, 1)
	go func() {
		indexerErrCh <- ix.Run(ctx)
	}()

	apiServer := api.New(s, log)
	if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
		log.Fatal("failed to start api server", "error", err)
	}

	printBanner(log, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down...")
	case err := <-indexerErrCh:
		if err != nil {
			log.Error("indexer stopped unexpectedly", "error", err)
		}
	}

	cancel()

	if err := apiServer.Stop(); err != nil {
		log.Error("error stopping api server", "error", err)
	}

	log.Info("goodbye!")
}

func printBanner(log *logging.Logger, cfg *config.Config) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  zord indexer (%s)", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  RPC node: %s", cfg.RPC.URL)
	if cfg.ZMQ.URL != "" {
		log.Infof("  ZMQ:      %s", cfg.ZMQ.URL)
	}
	log.Infof("  API:      http://%s", cfg.API.ListenAddr)
	log.Infof("  Data dir: %s", cfg.Storage.DataDir)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
