// Command pefilterctl inspects and drives LLTF filter systems.
//
// Usage:
//
//	pefilterctl [flags] <command>
//
// Examples:
//
//	# List the systems of a configuration file
//	pefilterctl --config /etc/pefilter/filter.xml systems
//
//	# Tune a system on its second grating
//	pefilterctl set LLTF-VIS-0001 1450 --grating 1
//
//	# Interactive session
//	pefilterctl shell LLTF-VIS-0001
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

// Globals holds the flags shared by every command.
type Globals struct {
	Config   string        `help:"Path to the filter XML configuration." type:"path" env:"PEFILTER_CONFIG" default:"/etc/pefilter/filter.xml"`
	Verbose  bool          `help:"Log every filter call." short:"v"`
	LogLevel string        `help:"Log level: debug, info, warn, error." default:"warn"`
	Timeout  time.Duration `help:"Hardware I/O timeout." default:"5s"`

	out io.Writer    `kong:"-"`
	log *slog.Logger `kong:"-"`
}

func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

func (g *Globals) logger() *slog.Logger {
	if g.log == nil {
		g.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(g.LogLevel)}))
	}
	return g.log
}

// open creates a filter for the configured file, wrapped in the verbose
// decorator when requested.
func (g *Globals) open() (pefilter.Filter, error) {
	log := g.logger()
	f, err := pefilter.New(g.Config, pefilter.WithLogger(log), pefilter.WithIOTimeout(g.Timeout))
	if err != nil {
		return nil, err
	}
	if g.Verbose {
		f = pefilter.Verbose(f, log)
	}
	return f, nil
}

// openSystem creates a filter and opens name on it.
func (g *Globals) openSystem(ctx context.Context, name string) (pefilter.Filter, error) {
	f, err := g.open()
	if err != nil {
		return nil, err
	}
	if err := f.Open(ctx, name); err != nil {
		_ = f.Destroy()
		return nil, err
	}
	return f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// CLI is the command tree.
type CLI struct {
	Globals

	Version  VersionCmd  `cmd:"" help:"Print the library version."`
	Status   StatusCmd   `cmd:"" help:"Describe a PE status code."`
	Systems  SystemsCmd  `cmd:"" help:"List the configured systems."`
	Info     InfoCmd     `cmd:"" help:"Open a system and describe it."`
	Set      SetCmd      `cmd:"" help:"Tune a system and report the resulting state (the unit resets on exit)."`
	Harmonic HarmonicCmd `cmd:"" help:"Switch the harmonic filter of a system."`
	Shell    ShellCmd    `cmd:"" help:"Open a system and start an interactive session."`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("pefilterctl"),
		kong.Description("Control Photon etc. LLTF tunable filters."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	if err != nil {
		err = fmt.Errorf("%w (status %d)", err, pefilter.StatusOf(err))
	}
	ctx.FatalIfErrorf(err)
}
