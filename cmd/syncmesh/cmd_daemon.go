package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shurlinet/syncmesh/internal/agent"
	"github.com/shurlinet/syncmesh/internal/config"
	"github.com/shurlinet/syncmesh/internal/daemon"
	"github.com/shurlinet/syncmesh/internal/store"
)

func runDaemon(args []string) {
	if err := doDaemon(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doDaemon(args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory (default: see 'syncmesh init')")
	mdnsFlag := fs.Bool("mdns", true, "enable LAN peer discovery via mDNS")
	dhtFlag := fs.Bool("dht", true, "enable DHT peer-routing fallback")
	relayFlag := fs.String("relay", "", "static relay multiaddr (comma-separated for more than one)")
	if err := fs.Parse(reorderArgs(args, map[string]bool{"mdns": true, "dht": true})); err != nil {
		return err
	}

	dataDir := *dirFlag
	if dataDir == "" {
		d, err := DefaultDataDir()
		if err != nil {
			return err
		}
		dataDir = d
	}

	cfg, err := store.Open(filepath.Join(dataDir, "store.json"))
	if err != nil {
		return fmt.Errorf("failed to open config store: %w (did you run 'syncmesh init'?)", err)
	}
	syncFolder := cfg.GetString(store.KeySyncFolderPath)
	if syncFolder == "" {
		return fmt.Errorf("no sync folder configured; run 'syncmesh init' first")
	}

	fileCfg, err := config.Load(filepath.Join(dataDir, config.FileName))
	if err != nil {
		return err
	}

	// The settings file provides the defaults; a flag given on the
	// command line wins for this run.
	relayAddrs := fileCfg.Relay.Addresses
	enableMDNS := fileCfg.Discovery.IsMDNSEnabled()
	enableDHT := fileCfg.Discovery.IsDHTEnabled()
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if setFlags["mdns"] {
		enableMDNS = *mdnsFlag
	}
	if setFlags["dht"] {
		enableDHT = *dhtFlag
	}
	if *relayFlag != "" {
		relayAddrs = strings.Split(*relayFlag, ",")
	}

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := agent.Setup(ctx, agent.Config{
		DataDir:     dataDir,
		SyncFolder:  syncFolder,
		ListenAddrs: fileCfg.Network.ListenAddresses,
		RelayAddrs:  relayAddrs,
		EnableMDNS:  enableMDNS,
		EnableDHT:   enableDHT,
	}, log)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	srv, err := daemon.New(a, dataDir, log)
	if err != nil {
		shutdown(a, log)
		return fmt.Errorf("failed to start control API: %w", err)
	}

	info := a.GetNodeInfo()
	log.Info("syncmesh agent ready", "node_id", info.NodeID, "sync_folder", syncFolder, "socket", daemon.SocketPath(dataDir))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("control API stopped unexpectedly", "error", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv.Stop(stopCtx)
	shutdown(a, log)
	return nil
}

func shutdown(a *agent.Agent, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
