// Command scanctl drives scanbridge-helper from the command line and keeps a
// journal of scans so their temporary files can be cleaned up.
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/scanbridge/internal/client"
	"github.com/zombor/scanbridge/internal/engine"
	"github.com/zombor/scanbridge/internal/journal"
	"github.com/zombor/scanbridge/internal/logging"
	"github.com/zombor/scanbridge/internal/profile"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// app holds the root configuration and the resources opened from it.
type app struct {
	stdout io.Writer
	stderr io.Writer
	// platform is where the helper runs; it is spawned on this machine.
	platform engine.Platform

	helperPath   *string
	timeout      *time.Duration
	journalPath  *string
	profilesPath *string
	logLevel     *string
	logFormat    *string

	logger  *slog.Logger
	client  *client.Client
	journal *journal.Service
	db      *journal.BoltDB
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr, platform: engine.CurrentPlatform()}

	rootFlags := ff.NewFlagSet("scanctl")
	a.helperPath = rootFlags.StringLong("helper", "scanbridge-helper", "Path to the scanbridge-helper binary")
	a.timeout = rootFlags.DurationLong("timeout", 5*time.Minute, "Time limit for each helper call")
	a.journalPath = rootFlags.StringLong("journal", defaultPath(os.UserCacheDir, "journal.db"), "Scan journal database path")
	a.profilesPath = rootFlags.StringLong("profiles", defaultPath(os.UserConfigDir, "profiles.yaml"), "Scan profiles file")
	a.logLevel = rootFlags.StringLong("log-level", "warn", "Log level: debug, info, warn or error")
	a.logFormat = rootFlags.StringLong("log-format", "text", "Log format: text or json")
	_ = rootFlags.StringLong("config", "", "Config file with one flag per line")
	showVersion := rootFlags.BoolLong("version", "Show version information")

	root := &ff.Command{
		Name:  "scanctl",
		Usage: "scanctl [FLAGS] <SUBCOMMAND> ...",
		Flags: rootFlags,
		Exec: func(ctx context.Context, args []string) error {
			if *showVersion {
				fmt.Fprintln(a.stdout, version)
				return nil
			}
			return ff.ErrHelp
		},
	}
	root.Subcommands = []*ff.Command{
		a.devicesCmd(rootFlags),
		a.scanCmd(rootFlags),
		a.exportCmd(rootFlags),
		a.pdfCmd(rootFlags),
		a.ocrCmd(rootFlags),
		a.historyCmd(rootFlags),
		a.cleanupCmd(rootFlags),
		a.profilesCmd(rootFlags),
	}

	if err := root.Parse(args,
		ff.WithEnvVarPrefix("SCANCTL"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected(root)))
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return err
	}

	if err := a.init(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return err
	}
	defer a.close()

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected(root)))
		} else {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return err
	}
	return nil
}

func selected(root *ff.Command) *ff.Command {
	if cmd := root.GetSelected(); cmd != nil {
		return cmd
	}
	return root
}

// defaultPath returns <base>/scanbridge/<name>, or name when base is unknown.
func defaultPath(base func() (string, error), name string) string {
	dir, err := base()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "scanbridge", name)
}

func (a *app) init() error {
	logger, _, err := logging.New(logging.Config{Level: *a.logLevel, Format: *a.logFormat}, a.stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)

	a.client = client.New(*a.helperPath,
		client.WithTimeout(*a.timeout),
		client.WithLogger(logger),
	)
	return nil
}

// openJournal opens the journal on first use.
func (a *app) openJournal() (*journal.Service, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	if err := os.MkdirAll(filepath.Dir(*a.journalPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	db, err := journal.NewBoltDB(*a.journalPath)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.journal = journal.NewService(db)
	return a.journal, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) profiles() (*profile.Set, error) {
	return profile.Load(*a.profilesPath)
}
