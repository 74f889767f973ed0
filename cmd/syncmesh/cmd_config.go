package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shurlinet/syncmesh/internal/config"
	"github.com/shurlinet/syncmesh/internal/termcolor"
)

func runConfig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: syncmesh config show|validate [options]")
		osExit(1)
	}
	var err error
	switch args[0] {
	case "show":
		err = doConfigShow(args[1:], os.Stdout)
	case "validate":
		err = doConfigValidate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		osExit(1)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func configPath(dirFlag string) (string, error) {
	dataDir, err := resolveDataDir(dirFlag)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, config.FileName), nil
}

func doConfigShow(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}

	path, err := configPath(*dirFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	out, err := config.Render(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, out)
	return nil
}

func doConfigValidate(args []string) error {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dirFlag := fs.String("dir", "", "data directory")
	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}

	path, err := configPath(*dirFlag)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		termcolor.Yellow("No config file at %s (defaults in effect)", path)
		return nil
	}
	if _, err := config.Load(path); err != nil {
		return err
	}
	termcolor.Green("OK: %s", path)
	return nil
}
