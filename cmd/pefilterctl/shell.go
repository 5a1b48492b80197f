package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

type ShellCmd struct {
	System string `arg:"" required:"" help:"System name."`
}

func (cmd *ShellCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := globals.openSystem(ctx, cmd.System)
	if err != nil {
		return err
	}
	defer f.Destroy()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cmd.System + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{f: f, system: cmd.System, out: rl.Stdout()}
	sh.printHelp()
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		quit, err := sh.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v (status %d)\n", err, pefilter.StatusOf(err))
		}
		if quit {
			return nil
		}
	}
}

// shell interprets interactive commands against one open system.
type shell struct {
	f      pefilter.Filter
	system string
	out    io.Writer
}

var errUsage = errors.New("usage")

// exec runs one command line. It reports whether the session should end.
func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()

	case "get", "g", "state":
		err = printState(s.out, s.f)

	case "set", "s":
		err = s.cmdSet(ctx, args)

	case "grating":
		err = s.cmdGrating(ctx, args)

	case "gratings":
		err = printGratings(s.out, s.f)

	case "range":
		var lo, hi float64
		lo, hi, err = s.f.WavelengthRange()
		if err == nil {
			fmt.Fprintf(s.out, "%g - %g nm\n", lo, hi)
		}

	case "harmonic", "h":
		err = s.cmdHarmonic(ctx, args)

	case "info":
		err = describe(s.out, s.system, s.f)

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true, nil

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false, err
}

func (s *shell) cmdSet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: set <nm>", errUsage)
	}
	nm, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid wavelength %q", args[0])
	}
	if err := s.f.SetWavelength(ctx, nm); err != nil {
		return err
	}
	return printState(s.out, s.f)
}

func (s *shell) cmdGrating(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		g, err := s.f.Grating()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Grating: %d\n", g)
		return nil
	case 1, 2:
	default:
		return fmt.Errorf("%w: grating [index [nm]]", errUsage)
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid grating index %q", args[0])
	}
	// Without a wavelength, keep the current one if the grating reaches it.
	var nm float64
	if len(args) == 2 {
		nm, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid wavelength %q", args[1])
		}
	} else {
		nm, err = s.f.Wavelength()
		if err != nil {
			return err
		}
	}
	if err := s.f.SetWavelengthOnGrating(ctx, index, nm); err != nil {
		return err
	}
	return printState(s.out, s.f)
}

func (s *shell) cmdHarmonic(ctx context.Context, args []string) error {
	if len(args) == 0 {
		on, err := s.f.HarmonicFilterEnabled()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Harmonic: %s\n", onOff(on))
		return nil
	}
	enable, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	return s.f.SetHarmonicFilterEnabled(ctx, enable)
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `
Filter Commands:
  get                 - Show wavelength, grating and harmonic filter state
  set <nm>            - Tune to a wavelength (grating chosen automatically)
  grating [N [nm]]    - Show or select a grating, optionally with a wavelength
  gratings            - List gratings and their ranges
  range               - Show the system wavelength range
  harmonic [on|off]   - Show or switch the harmonic filter
  info                - Describe the system
  help                - Show this help
  quit                - Close the system and exit`)
}
