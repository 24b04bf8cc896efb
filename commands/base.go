package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"

	"github.com/fatih/color"
	getopt "github.com/pborman/getopt/v2"

	"github.com/josephlewis42/vsh/core/vos"
)

// AllCommands holds every virtual program keyed by absolute path.
var AllCommands = make(map[string]vos.ProcessFunc)

// addBinCmd adds a command under /bin and /usr/bin.
func addBinCmd(name string, cmd vos.ProcessFunc) {
	AllCommands[path.Join("/bin", name)] = cmd
	AllCommands[path.Join("/usr/bin", name)] = cmd
}

// Programs returns a copy of the program table, suitable for seeding a
// virtual system.
func Programs() map[string]vos.ProcessFunc {
	out := make(map[string]vos.ProcessFunc, len(AllCommands))
	for k, v := range AllCommands {
		out[k] = v
	}
	return out
}

// Resolver finds programs of the package by absolute path.
func Resolver() vos.ProcessResolver {
	return func(p string) vos.ProcessFunc {
		return AllCommands[p]
	}
}

// CommandEntry groups the paths a program is installed under.
type CommandEntry struct {
	Names []string
	Proc  vos.ProcessFunc
}

// ListPrograms lists the programs by base name.
func ListPrograms() []CommandEntry {
	byName := map[string]*CommandEntry{}
	for p, proc := range AllCommands {
		name := path.Base(p)
		entry, ok := byName[name]
		if !ok {
			entry = &CommandEntry{Proc: proc}
			byName[name] = entry
		}
		entry.Names = append(entry.Names, p)
	}
	out := make([]CommandEntry, 0, len(byName))
	for _, entry := range byName {
		sort.Strings(entry.Names)
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Names[0] < out[j].Names[0] })
	return out
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was succcessful call the callback.
func (s *SimpleCommand) Run(proc *vos.Process, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(proc.Args(), nil)
	if err != nil && !s.NeverBail {
		fmt.Fprintf(proc.Stderr(), "error: %s\n\n", err)

		s.PrintHelp(proc.Stdout())
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(proc.Stdout())
		return 0
	}

	return callback()
}

// RunE is like Run for callbacks that fail with an error. The error is
// printed and the exit status is 1.
func (s *SimpleCommand) RunE(proc *vos.Process, callback func() error) int {
	return s.Run(proc, func() int {
		if err := callback(); err != nil {
			s.LogProgramError(proc, err)
			return 1
		}
		return 0
	})
}

// LogProgramError writes err to stderr, prefixed by the program name.
func (s *SimpleCommand) LogProgramError(proc *vos.Process, err error) {
	fmt.Fprintf(proc.Stderr(), "%s: %v\n", path.Base(proc.Args()[0]), err)
}

// RunEachFileOrStdin calls fn for every named file, or for standard input
// when there are none. The name "-" also means standard input. Failing
// files are reported and make the exit status 1.
func (s *SimpleCommand) RunEachFileOrStdin(proc *vos.Process, files []string, fn func(name string, r io.Reader) error) int {
	if len(files) == 0 {
		files = []string{"-"}
	}
	status := 0
	for _, name := range files {
		if err := proc.Checkpoint(); err != nil {
			return 1
		}
		if name == "-" {
			err := fn(name, proc.Stdin())
			switch {
			case err != nil && proc.Context().Err() != nil:
				return 1
			case err != nil:
				s.LogProgramError(proc, err)
				status = 1
			}
			continue
		}
		fd, err := proc.Fs().Open(proc.Abs(name))
		if err != nil {
			s.LogProgramError(proc, err)
			status = 1
			continue
		}
		err = fn(name, fd)
		fd.Close()
		switch {
		case err != nil && proc.Context().Err() != nil:
			return 1
		case err != nil:
			s.LogProgramError(proc, err)
			status = 1
		}
	}
	return status
}

// unwrapPathError drops the operation and path from filesystem errors for
// programs that print the operand themselves.
func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

var (
	ColorBoldBlue   = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen  = color.New(color.FgGreen, color.Bold)
	ColorBoldYellow = color.New(color.FgYellow, color.Bold)
	ColorBoldRed    = color.New(color.FgRed, color.Bold)
)

// ColorPrinter adds a --color flag and colors output accordingly.
type ColorPrinter struct {
	value    *string
	terminal func() bool
}

// Init sets up the flag. terminal decides the auto setting.
func (c *ColorPrinter) Init(flags *getopt.Set, terminal func() bool) {
	c.terminal = terminal
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{colorAlways, colorAuto, colorNever},
		colorAuto,
		"colorize the output (always|auto|never)")
}

func (c *ColorPrinter) ShouldColor() bool {
	switch {
	case *c.value == colorNever:
		return false
	case *c.value == colorAlways:
		return true
	default:
		return c.terminal != nil && c.terminal()
	}
}

func (c *ColorPrinter) Sprintf(col *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		col.EnableColor()
		return col.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
