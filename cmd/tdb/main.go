// Command tdb opens a table file and edits it from an interactive shell.
//
//	tdb people.tdb
//	tdb -c 'add "Bob Smith" 25' people.tdb
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/tuannm99/tdb/internal"
	"github.com/tuannm99/tdb/internal/engine"
	"github.com/tuannm99/tdb/internal/format"
	"github.com/tuannm99/tdb/internal/shell"
)

var version = "dev"

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	fs := flag.NewFlagSet("tdb", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: tdb [flags] <table file>\n\nflags:\n")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", internal.DefaultConfigPath(), "YAML config file")
	oneShot := fs.StringP("command", "c", "", "Run one shell command, commit if it changed the table, and exit")
	showVersion := fs.Bool("version", false, "Print version and exit")
	helpFormat := fs.Bool("help-format", false, "Describe the table file format and exit")
	internal.RegisterFlags(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Printf("tdb %s (format %s)\n", version, format.HeaderLine())
		return nil
	}
	if *helpFormat {
		fmt.Print(shell.FormatHelp)
		return nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one table file")
	}

	cfg, err := internal.LoadConfig(*configPath, fs)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	db, err := engine.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if strings.TrimSpace(*oneShot) != "" {
		return runOnce(db, *oneShot)
	}
	return runShell(ctx, db, cfg)
}

func setupLogger(cfg *internal.TdbConfig) {
	ll := &slog.LevelVar{}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "error":
		ll.Set(slog.LevelError)
	default:
		ll.Set(slog.LevelWarn)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !cfg.Log.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
}

func runOnce(db *engine.Database, line string) error {
	sh := shell.New(db, shell.Options{
		Out:     os.Stdout,
		Version: version,
		Confirm: func(string) bool { return true },
	})
	if _, err := sh.Exec(line); err != nil {
		return err
	}
	if db.Dirty() {
		return db.Commit()
	}
	return nil
}

func runShell(ctx context.Context, db *engine.Database, cfg *internal.TdbConfig) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Shell.Prompt,
		HistoryFile:     cfg.Shell.HistoryFile,
		HistoryLimit:    cfg.Shell.HistoryLimit,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(shell.New(db, shell.Options{}).Commands(), db),
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh := shell.New(db, shell.Options{
		Out:             rl.Stdout(),
		Version:         version,
		Confirm:         confirmFunc(rl, cfg.Shell.Prompt),
		ListConfirmRows: cfg.Shell.ListConfirmRows,
	})

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Storage.Watch {
		g.Go(func() error {
			return db.Watch(gctx, func() {
				slog.Warn("table file changed on disk; commit overwrites it, revert reloads it", "path", db.Path())
				rl.Refresh()
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return rl.Close()
	})
	g.Go(func() error {
		defer cancel()
		return repl(gctx, rl, sh)
	})
	return g.Wait()
}

func repl(ctx context.Context, rl *readline.Instance, sh *shell.Shell) error {
	fmt.Fprintf(rl.Stdout(), "type help for a list of commands\n")
	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			if ctx.Err() != nil {
				return nil
			}
			// Ctrl-D is exit.
			_, err := sh.Exec("exit")
			return err
		case err != nil:
			return err
		}

		quit, err := sh.Exec(line)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func confirmFunc(rl *readline.Instance, prompt string) func(string) bool {
	return func(question string) bool {
		rl.SetPrompt(question + " [y/N] ")
		defer rl.SetPrompt(prompt)
		answer, err := rl.Readline()
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func completer(commands []string, db *engine.Database) *readline.PrefixCompleter {
	columns := func(string) []string { return db.ColumnNames() }
	var items []readline.PrefixCompleterInterface
	for _, name := range commands {
		switch name {
		case "search", "s":
			items = append(items, readline.PcItem(name, readline.PcItemDynamic(columns)))
		default:
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}
