package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"go.uber.org/zap"

	"scalpguard/config"
	"scalpguard/db"
	"scalpguard/logging"
	"scalpguard/ml"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const programName = "scalpguard"

// usageError marks a failure caused by how the command was invoked.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type options struct {
	configPath string
	dataset    string
	model      string
	features   string
	preset     string
	database   string
	logLevel   string
	proba      bool
	human      bool
}

// session carries what a command handler needs for one invocation.
type session struct {
	cfg    *config.Config
	schema ml.Schema
	logger *zap.Logger
	stdout io.Writer
	opts   options
}

func (s *session) openStore() (*db.Store, error) {
	store, err := db.Open(s.cfg.Database.Path)
	if errors.Is(err, db.ErrDisabled) {
		return nil, fmt.Errorf("%w: set -db, SCALPGUARD_DB or database.path", err)
	}
	return store, err
}

// Run executes one command line and returns the process exit status.
// Results go to stdout; usage, errors and logs go to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "yaml config file (default $SCALPGUARD_CONFIG)")
	fs.StringVar(&opts.dataset, "dataset", "", "training dataset CSV")
	fs.StringVar(&opts.model, "model", "", "model artifact path")
	fs.StringVar(&opts.features, "features", "", "comma separated feature columns, overrides -preset")
	fs.StringVar(&opts.preset, "preset", "", "feature preset: basic or reputation")
	fs.StringVar(&opts.database, "db", "", "sqlite database for training log and scan results")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&opts.proba, "proba", false, "print the scalper probability with each label")
	fs.BoolVar(&opts.human, "human", false, "print scalper / not scalper instead of 1 / 0")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, "missing command")
		fs.Usage()
		return ExitUsage
	}
	cmd, ok := lookup(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		fs.Usage()
		return ExitUsage
	}
	in, err := cmd.parse(rest[1:])
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\nusage: %s [flags] %s\n", cmd.name, err, programName, cmd.synopsis())
		return ExitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return ExitFailure
	}
	schema, err := cfg.Schema()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return ExitFailure
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return ExitFailure
	}
	defer closeLog()

	s := &session{
		cfg:    cfg,
		schema: schema,
		logger: logger.Named(programName),
		stdout: stdout,
		opts:   opts,
	}
	if err := cmd.run(ctx, s, in); err != nil {
		if isUsage(err) {
			fmt.Fprintf(stderr, "%s: %v\nusage: %s [flags] %s\n", cmd.name, err, programName, cmd.synopsis())
			return ExitUsage
		}
		fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		return ExitFailure
	}
	return ExitOK
}

// loadConfig layers command line flags over the file and environment.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dataset != "" {
		cfg.Dataset.Path = opts.dataset
	}
	if opts.model != "" {
		cfg.Model.Path = opts.model
	}
	if opts.preset != "" {
		cfg.Model.Preset = opts.preset
		cfg.Model.Features = nil
	}
	if opts.features != "" {
		cfg.Model.Features = config.SplitList(opts.features)
	}
	if opts.database != "" {
		cfg.Database.Path = opts.database
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "usage: %s [flags] <command> [args]\n\ncommands:\n", programName)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.synopsis(), cmd.summary)
	}
	tw.Flush()
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}
