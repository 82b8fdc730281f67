package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/davecgh/go-spew/spew"

	"github.com/origadmin/attrimap/internal/config"
	"github.com/origadmin/attrimap/internal/core"
)

var (
	errDiagnostics = errors.New("annotations were rejected")
	errDrift       = errors.New("generated files are out of date")
)

// Globals are shared by every command.
type Globals struct {
	Debug   bool   `help:"Enable debug logging."`
	LogFile string `help:"Path to a file where logs should be written. If empty, logs go to stderr." name:"log-file" type:"path"`
	Dir     string `help:"Directory packages are loaded from and outputs are written below." default:"." short:"C" type:"existingdir"`
	Config  string `help:"Configuration file. Defaults to attrimap.yaml in --dir when present." short:"c" type:"existingfile"`
}

type CLI struct {
	Globals

	Gen     GenCmd     `cmd:"" default:"withargs" help:"Generate mapping functions."`
	Check   CheckCmd   `cmd:"" help:"Report generated files that are missing, stale or out of date."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(buildVersion(version, commit, date, builtBy, treeState).String())
	return nil
}

type GenCmd struct {
	Patterns []string `arg:"" optional:"" help:"Package patterns to scan (default ./...)."`
	Dump     bool     `help:"Print the resolved mapping groups."`
}

func (c *GenCmd) Run(ctx context.Context, g *Globals) error {
	gen, err := g.generator()
	if err != nil {
		return err
	}
	result, err := gen.Generate(ctx, c.Patterns...)
	if err != nil {
		return err
	}
	if c.Dump {
		dump(os.Stdout, result)
	}
	report(os.Stderr, result)
	if result.HasErrors() {
		return errDiagnostics
	}
	slog.Info("Generation finished", "files", len(result.Files), "stale", len(result.Stale))
	return nil
}

type CheckCmd struct {
	Patterns []string `arg:"" optional:"" help:"Package patterns to scan (default ./...)."`
	Dump     bool     `help:"Print the resolved mapping groups."`
}

func (c *CheckCmd) Run(ctx context.Context, g *Globals) error {
	gen, err := g.generator()
	if err != nil {
		return err
	}
	drifts, result, err := gen.Check(ctx, c.Patterns...)
	if err != nil {
		return err
	}
	if c.Dump {
		dump(os.Stdout, result)
	}
	report(os.Stderr, result)
	for _, d := range drifts {
		fmt.Println(d)
	}
	switch {
	case result.HasErrors():
		return errDiagnostics
	case len(drifts) > 0:
		return errDrift
	}
	return nil
}

func (g *Globals) generator() (*core.Generator, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.Config != "" {
		cfg, err = config.Load(g.Config)
	} else {
		cfg, err = config.LoadDir(g.Dir)
	}
	if err != nil {
		return nil, err
	}
	return core.NewGenerator(g.Dir, cfg, nil)
}

func report(w io.Writer, result *core.Result) {
	for _, d := range result.Diagnostics {
		fmt.Fprintln(w, d)
	}
}

func dump(w io.Writer, result *core.Result) {
	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	cfg.Fdump(w, result.Groups)
}

// setupLogging installs the default logger. The returned function closes the
// log file, if any.
func setupLogging(g *Globals) (func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}
	if g.LogFile != "" {
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", g.LogFile, err)
		}
		w = f
		closer = func() { _ = f.Close() }
	}
	level := slog.LevelWarn
	if g.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closer, nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name(config.Application),
		kong.Description(config.Description),
		kong.UsageOnError(),
	)

	closeLog, err := setupLogging(&cli.Globals)
	kctx.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(&cli.Globals)
	stop()
	closeLog()
	kctx.FatalIfErrorf(err)
}
