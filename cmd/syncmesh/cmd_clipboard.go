package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shurlinet/syncmesh/internal/daemon"
)

func runClipboard(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: syncmesh clipboard status|enable|disable [options]")
		osExit(1)
	}
	var err error
	switch args[0] {
	case "status":
		err = doClipboardStatus(args[1:], os.Stdout)
	case "enable":
		err = doClipboardSet(args[1:], true, os.Stdout)
	case "disable":
		err = doClipboardSet(args[1:], false, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown clipboard subcommand: %s\n", args[0])
		osExit(1)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doClipboardStatus(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("clipboard status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}

	client, err := clipboardClient(*dirFlag)
	if err != nil {
		return err
	}
	enabled, err := client.GetClipboardSharing(context.Background())
	if err != nil {
		return err
	}
	if enabled {
		fmt.Fprintln(stdout, "enabled")
	} else {
		fmt.Fprintln(stdout, "disabled")
	}
	return nil
}

func doClipboardSet(args []string, enabled bool, stdout io.Writer) error {
	fs := flag.NewFlagSet("clipboard set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}

	client, err := clipboardClient(*dirFlag)
	if err != nil {
		return err
	}
	if err := client.SetClipboardSharing(context.Background(), enabled); err != nil {
		return err
	}
	if enabled {
		fmt.Fprintln(stdout, "clipboard sharing enabled")
	} else {
		fmt.Fprintln(stdout, "clipboard sharing disabled")
	}
	return nil
}

func clipboardClient(dirFlag string) (*daemon.Client, error) {
	dataDir, err := resolveDataDir(dirFlag)
	if err != nil {
		return nil, err
	}
	client, err := daemon.NewClient(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w (is 'syncmesh daemon' running?)", err)
	}
	return client, nil
}
