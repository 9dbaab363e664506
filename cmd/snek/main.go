// Snek CLI - drives the tagged-value VM and its collector
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/snek/manifest"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("snek", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output (debug logging)")
	configDir := fs.String("config", ".", "Directory to start the search for snek.toml")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: snek [options] <command> [command options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nCommands:\n")
		fmt.Fprintf(stderr, "  demo                   Build values, add them, collect a rooted graph\n")
		fmt.Fprintf(stderr, "  gc [-n N] [-roots F]   Collect a random workload and print stats\n")
		fmt.Fprintf(stderr, "  snapshot [-label L]    Save a snapshot of the demo heap\n")
		fmt.Fprintf(stderr, "  snapshots              List saved snapshots\n")
		fmt.Fprintf(stderr, "  restore <id>           Rebuild a VM from a snapshot and collect it\n")
		fmt.Fprintf(stderr, "  delete <id>            Remove a saved snapshot\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	m, err := loadConfig(*configDir)
	if err != nil {
		return err
	}

	verbosity := m.Log.Verbosity
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	c := &cli{config: m, stdout: stdout, stderr: stderr}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "demo":
		return c.demo(rest)
	case "gc":
		return c.gc(rest)
	case "snapshot":
		return c.snapshot(rest)
	case "snapshots":
		return c.snapshots(rest)
	case "restore":
		return c.restore(rest)
	case "delete":
		return c.delete(rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// loadConfig finds snek.toml at or above dir, falling back to defaults
// rooted at dir.
func loadConfig(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default(dir)
	}
	return m, nil
}
