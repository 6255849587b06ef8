package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/japaniel/kotoba/pkg/app"
	"github.com/japaniel/kotoba/pkg/config"
)

const usage = `Usage: kotoba [command] [flags]

Commands:
  serve     load the dictionary and serve HTTP (default)
  import    write dictionary files into the SQLite database
  sources   list the files recorded in the database
  version   print version information

Flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "kotoba:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("kotoba "+cmd, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", os.Getenv("CONFIG_PATH"), "Path to a TOML or YAML config file")
	listen := fs.String("listen", "", "Override the listen address (e.g. :8080)")
	dbPath := fs.String("db", "", "Override the SQLite database path")
	dictDir := fs.String("dict-dir", "", "Override the directory searched for term and tag banks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd == "version" {
		fmt.Println("kotoba", app.BuildVersion())
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		host, portStr, err := net.SplitHostPort(*listen)
		if err != nil {
			return fmt.Errorf("invalid -listen %q: %w", *listen, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid -listen port %q: %w", portStr, err)
		}
		if host != "" {
			cfg.Server.Host = host
		}
		cfg.Server.Port = port
	}
	if *dbPath != "" {
		cfg.Dictionary.DBPath = *dbPath
	}
	if *dictDir != "" {
		cfg.Dictionary.Dir = *dictDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Log)

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "serve":
		return app.Serve(ctx, cfg, logger)
	case "import":
		rep, err := app.Import(ctx, cfg, logger)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d entries, %d tags, %d furigana (%d generated) from %d sources; %d unchanged, %d warnings.\n",
			rep.Entries, rep.Tags, rep.Furigana, rep.Generated, rep.Sources, rep.Skipped, len(rep.Warnings))
		return nil
	case "sources":
		sources, err := app.ImportedSources(cfg.Dictionary)
		if err != nil {
			return err
		}
		for _, s := range sources {
			state := "partial"
			if s.Complete() {
				state = "complete"
			}
			fmt.Printf("%-12s %-9s %d/%d\t%s\n", s.Kind, state, s.LastProcessed, s.Records, s.Path)
		}
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
