package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shurlinet/syncmesh/internal/identity"
	"github.com/shurlinet/syncmesh/internal/store"
)

func runInit(args []string) {
	if err := doInit(args, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doInit(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory (default: $SYNCMESH_DATA_DIR or ~/.local/share/syncmesh)")
	syncFolderFlag := fs.String("sync-folder", "", "directory to keep in sync (prompted for if omitted)")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Welcome to syncmesh!")
	fmt.Fprintln(stdout)

	dataDir := *dirFlag
	if dataDir == "" {
		d, err := DefaultDataDir()
		if err != nil {
			return fmt.Errorf("cannot determine data directory: %w", err)
		}
		dataDir = d
	}

	storePath := filepath.Join(dataDir, "store.json")
	if _, err := os.Stat(storePath); err == nil {
		return fmt.Errorf("already initialized: %s\nDelete it first if you want to reinitialize", storePath)
	}

	fmt.Fprintf(stdout, "Creating data directory: %s\n", dataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	fmt.Fprintln(stdout)

	syncFolder := *syncFolderFlag
	if syncFolder == "" {
		reader := bufio.NewReader(stdin)
		fmt.Fprintln(stdout, "Enter the directory to keep in sync across your devices")
		fmt.Fprint(stdout, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		syncFolder = strings.TrimSpace(line)
	}
	if syncFolder == "" {
		return fmt.Errorf("sync folder is required")
	}
	absSyncFolder, err := filepath.Abs(syncFolder)
	if err != nil {
		return fmt.Errorf("invalid sync folder: %w", err)
	}
	if err := os.MkdirAll(absSyncFolder, 0700); err != nil {
		return fmt.Errorf("failed to create sync folder: %w", err)
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Generating identity...")
	id, err := identity.LoadOrCreate(filepath.Join(dataDir, "secret_key"))
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}
	fmt.Fprintf(stdout, "Your NodeID: %s\n", id.NodeID.String())
	fmt.Fprintln(stdout, "(Share this, or a gossip ticket, with peers you trust)")
	fmt.Fprintln(stdout)

	cfg, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}
	if err := cfg.Set(store.KeySyncFolderPath, absSyncFolder); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(stdout, "Config written to:  %s\n", storePath)
	fmt.Fprintf(stdout, "Sync folder:        %s\n", absSyncFolder)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Next steps:")
	fmt.Fprintln(stdout, "  1. Run the agent:        syncmesh daemon")
	fmt.Fprintln(stdout, "  2. Start a sync group:   syncmesh ticket create")
	fmt.Fprintln(stdout, "  3. Or join one:          syncmesh ticket join <ticket>")
	return nil
}
