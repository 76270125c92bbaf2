// Package main is the entry point for the plasmashop document tool.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dshills/plasmashop/internal/config"
	"github.com/dshills/plasmashop/internal/crypt"
	"github.com/dshills/plasmashop/internal/logging"
	"github.com/dshills/plasmashop/internal/selector"
	"github.com/dshills/plasmashop/internal/vfs"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options are the global flags shared by every command.
type options struct {
	ConfigPath string
	LogLevel   string
	Key        string
}

// app carries what commands need.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	sel    *selector.Selector
	key    *crypt.Key
	prompt *keyPrompt

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, rest, code, done := parseFlags(args, stdout, stderr)
	if done {
		return code
	}
	if len(rest) == 0 {
		fmt.Fprintf(stderr, "Error: no command given\n")
		usage(stderr, nil)
		return exitUsage
	}

	a, err := newApp(opts, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", rest[0])
		usage(stderr, nil)
		return exitUsage
	}

	if err := cmd.run(a, rest[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func parseFlags(args []string, stdout, stderr io.Writer) (opts options, rest []string, code int, done bool) {
	var showVersion bool
	var showHelp bool

	fs := flag.NewFlagSet("plasmashop", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml or .yaml)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.Key, "key", "", "Droid key as 32 hex digits or four hex words")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Show help message")
	fs.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, nil, exitOK, true
		}
		return opts, nil, exitUsage, true
	}

	if showHelp {
		usage(stdout, fs)
		return opts, nil, exitOK, true
	}

	if showVersion {
		fmt.Fprintf(stdout, "plasmashop %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return opts, nil, exitOK, true
	}

	if opts.LogLevel != "" && !logging.ValidLogLevel(opts.LogLevel) {
		fmt.Fprintf(stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		return opts, nil, exitUsage, true
	}

	return opts, fs.Args(), exitOK, false
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "plasmashop - read and write Plasma text documents\n\n")
	fmt.Fprintf(w, "Usage: plasmashop [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	if fs != nil {
		fmt.Fprintf(w, "\nOptions:\n")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  plasmashop cat dat/Garden.fni                 Print a decrypted file\n")
	fmt.Fprintf(w, "  plasmashop info -json python/xKI.age          Describe a file as JSON\n")
	fmt.Fprintf(w, "  plasmashop convert -encryption aes a.ini b.ini Re-encrypt a file\n")
	fmt.Fprintf(w, "  plasmashop -key 0123...cdef cat secret.sdl    Open a droid file\n")
}

func newApp(opts options, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(config.WithFile(opts.ConfigPath))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel()
	logCfg.Output = stderr
	log := logging.New(logCfg)

	key, err := cfg.DroidKey()
	if err != nil {
		return nil, err
	}
	if opts.Key != "" {
		k, err := crypt.ParseKey(opts.Key)
		if err != nil {
			return nil, fmt.Errorf("-key: %w", err)
		}
		key = &k
	}

	return &app{
		cfg:    cfg,
		log:    log,
		sel:    selector.New(vfs.NewOSFS(), log),
		key:    key,
		prompt: newKeyPrompt(key, stdin, stderr),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}
