package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shurlinet/syncmesh/internal/daemon"
)

func runWhoami(args []string) {
	if err := doWhoami(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doWhoami(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}

	dataDir, err := resolveDataDir(*dirFlag)
	if err != nil {
		return err
	}

	client, err := daemon.NewClient(dataDir)
	if err != nil {
		return fmt.Errorf("%w (is 'syncmesh daemon' running?)", err)
	}

	node, err := client.GetNode(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, node.NodeID)
	for _, addr := range node.Addrs {
		fmt.Fprintf(stdout, "  %s\n", addr)
	}
	return nil
}

func resolveDataDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return DefaultDataDir()
}
