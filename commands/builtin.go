package commands

import (
	"context"
	"fmt"
	"io"

	getopt "github.com/pborman/getopt/v2"

	"github.com/josephlewis42/vsh/core/shell"
)

// BuiltinCommand is the builtin counterpart of SimpleCommand: it parses
// options with getopt and reports usage errors on the shell's stderr.
type BuiltinCommand struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the builtin.
	Short string
	// Special builtins end a non-interactive shell on usage errors.
	Special bool

	flags *getopt.Set
	help  *bool
}

// Flags gets the builtin's flag set.
func (b *BuiltinCommand) Flags() *getopt.Set {
	if b.flags == nil {
		b.flags = getopt.New()
	}
	return b.flags
}

// PrintHelp writes help for the builtin to the given writer.
func (b *BuiltinCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, b.Use)
	fmt.Fprintln(w, b.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	b.Flags().PrintOptions(w)
}

// Run parses args and, if that succeeded, calls the callback.
func (b *BuiltinCommand) Run(env *shell.Env, args []string, callback func() shell.Result) shell.Result {
	opts := b.Flags()
	if b.help == nil {
		b.help = opts.BoolLong("help", 0, "show this help and exit")
	}

	if err := opts.Getopt(args, nil); err != nil {
		warn(env, args[0], err)
		env.RecordInvalidInvocation(args, err)
		fmt.Fprintf(env.Stderr(), "usage: %s\n", b.Use)
		return b.Fail(env, shell.StatusError)
	}
	if *b.help {
		b.PrintHelp(env.Stdout())
		return shell.Status(shell.StatusSuccess)
	}
	return callback()
}

// Fail returns status, ending the shell if the builtin is special.
func (b *BuiltinCommand) Fail(env *shell.Env, status shell.ExitStatus) shell.Result {
	if b.Special {
		return env.Fatal(status)
	}
	return shell.Status(status)
}

// warn prints a diagnostic for builtin name.
func warn(env *shell.Env, name string, err error) {
	fmt.Fprintf(env.Stderr(), "vsh: %s: %v\n", name, err)
}

// builtinFactory creates a fresh builtin for every invocation so flag sets
// are never shared.
type builtinFactory func(ctx context.Context, env *shell.Env, args []string) shell.Result

type builtinEntry struct {
	name string
	kind shell.BuiltinKind
	fn   builtinFactory
}

var allBuiltins []builtinEntry

func addBuiltin(name string, fn builtinFactory) {
	allBuiltins = append(allBuiltins, builtinEntry{name: name, kind: shell.Regular, fn: fn})
}

func addSpecialBuiltin(name string, fn builtinFactory) {
	allBuiltins = append(allBuiltins, builtinEntry{name: name, kind: shell.Special, fn: fn})
}

// Builtins returns a registry holding every builtin of the package.
func Builtins() *shell.Registry {
	r := shell.NewRegistry()
	for _, b := range allBuiltins {
		r.Register(b.name, b.kind, shell.BuiltinFunc(b.fn))
	}
	return r
}
