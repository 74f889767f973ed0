package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shurlinet/syncmesh/internal/daemon"
)

func runBlob(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: syncmesh blob create|get [options]")
		osExit(1)
	}
	var err error
	switch args[0] {
	case "create":
		err = doBlobCreate(args[1:], os.Stdout)
	case "get":
		err = doBlobGet(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown blob subcommand: %s\n", args[0])
		osExit(1)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doBlobCreate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("blob create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}
	positional := fs.Args()
	if len(positional) != 1 {
		return fmt.Errorf("usage: syncmesh blob create <path>")
	}

	dataDir, err := resolveDataDir(*dirFlag)
	if err != nil {
		return err
	}
	client, err := daemon.NewClient(dataDir)
	if err != nil {
		return fmt.Errorf("%w (is 'syncmesh daemon' running?)", err)
	}

	ticket, err := client.CreateBlob(context.Background(), positional[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ticket)
	return nil
}

func doBlobGet(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("blob get", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}
	positional := fs.Args()
	if len(positional) != 2 {
		return fmt.Errorf("usage: syncmesh blob get <ticket> <dest>")
	}

	dataDir, err := resolveDataDir(*dirFlag)
	if err != nil {
		return err
	}
	client, err := daemon.NewClient(dataDir)
	if err != nil {
		return fmt.Errorf("%w (is 'syncmesh daemon' running?)", err)
	}

	if err := client.FetchBlob(context.Background(), positional[0], positional[1]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", positional[1])
	return nil
}
