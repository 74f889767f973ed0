package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shurlinet/syncmesh/internal/daemon"
)

func runTicket(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: syncmesh ticket create|join [options]")
		osExit(1)
	}
	var err error
	switch args[0] {
	case "create":
		err = doTicketCreate(args[1:], os.Stdout)
	case "join":
		err = doTicketJoin(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown ticket subcommand: %s\n", args[0])
		osExit(1)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doTicketCreate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ticket create", flag.ContinueOnError)
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

	ticket, err := client.CreateGossipTicket(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ticket)
	return nil
}

func doTicketJoin(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ticket join", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}
	positional := fs.Args()
	if len(positional) != 1 {
		return fmt.Errorf("usage: syncmesh ticket join <ticket>")
	}

	dataDir, err := resolveDataDir(*dirFlag)
	if err != nil {
		return err
	}
	client, err := daemon.NewClient(dataDir)
	if err != nil {
		return fmt.Errorf("%w (is 'syncmesh daemon' running?)", err)
	}

	if err := client.JoinGossip(context.Background(), positional[0]); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "joined")
	return nil
}
