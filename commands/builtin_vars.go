package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/shell"
)

// shellQuote quotes s so the shell reads it back as one word.
func shellQuote(s string) string {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}

// splitAssign splits "name=value". ok is false when there is no "=".
func splitAssign(arg string) (name, value string, ok bool) {
	i := strings.IndexByte(arg, '=')
	if i < 0 {
		return arg, "", false
	}
	return arg[:i], arg[i+1:], true
}

// printVars lists variables matching keep as prefix name=value lines.
func printVars(w io.Writer, vars *shell.VarTable, prefix string, keep func(shell.Variable) bool) {
	for _, name := range vars.Names() {
		v, _ := vars.Get(name)
		if !keep(v) {
			continue
		}
		if !v.IsSet() {
			fmt.Fprintf(w, "%s%s\n", prefix, name)
			continue
		}
		fmt.Fprintf(w, "%s%s=%s\n", prefix, name, shellQuote(v.String()))
	}
}

// attributeBuiltin implements export and readonly, which differ only in the
// attribute they set.
func attributeBuiltin(name, attr string, mark func(vars *shell.VarTable, name string) error, has func(shell.Variable) bool) builtinFactory {
	return func(ctx context.Context, env *shell.Env, args []string) shell.Result {
		cmd := &BuiltinCommand{
			Use:     name + " [-p] [name[=value] ...]",
			Short:   "Set the " + attr + " attribute for shell variables.",
			Special: true,
		}
		opts := cmd.Flags()
		list := opts.Bool('p', "list the variables with the attribute")

		return cmd.Run(env, args, func() shell.Result {
			operands := opts.Args()
			if *list || len(operands) == 0 {
				printVars(env.Stdout(), env.Vars(), name+" ", has)
				return shell.Status(shell.StatusSuccess)
			}
			for _, arg := range operands {
				varName, value, assign := splitAssign(arg)
				if assign {
					if err := env.SetVar(varName, value); err != nil {
						warn(env, name, err)
						return cmd.Fail(env, shell.StatusFailure)
					}
				}
				if err := mark(env.Vars(), varName); err != nil {
					warn(env, name, err)
					return cmd.Fail(env, shell.StatusFailure)
				}
			}
			return shell.Status(shell.StatusSuccess)
		})
	}
}

// UnsetBuiltin removes variables or, with -f, functions.
func UnsetBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:     "unset [-fv] [name ...]",
		Short:   "Unset values and attributes of shell variables and functions.",
		Special: true,
	}
	opts := cmd.Flags()
	funcs := opts.Bool('f', "treat each name as a function")
	opts.Bool('v', "treat each name as a variable")

	return cmd.Run(env, args, func() shell.Result {
		for _, name := range opts.Args() {
			if *funcs {
				env.UnsetFunc(name)
				continue
			}
			if err := env.Vars().Unset(name); err != nil {
				warn(env, args[0], err)
				return cmd.Fail(env, shell.StatusFailure)
			}
		}
		return shell.Status(shell.StatusSuccess)
	})
}

// LocalBuiltin declares variables local to the running function.
func LocalBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	if !env.InFunction() {
		warn(env, args[0], errors.New("can only be used in a function"))
		return shell.Status(shell.StatusFailure)
	}
	status := shell.StatusSuccess
	for _, arg := range args[1:] {
		name, value, assign := splitAssign(arg)
		var v *string
		if assign {
			v = &value
		}
		if err := env.Vars().SetLocal(name, v); err != nil {
			warn(env, args[0], err)
			status = shell.StatusFailure
		}
	}
	return shell.Status(status)
}

// printOptions writes the state of every long option, either as a table or
// as set commands that restore it.
func printOptions(w io.Writer, opts shell.Options, reusable bool) {
	for _, name := range shell.OptionNames() {
		on, _ := opts.Get(name)
		switch {
		case reusable && on:
			fmt.Fprintf(w, "set -o %s\n", name)
		case reusable:
			fmt.Fprintf(w, "set +o %s\n", name)
		case on:
			fmt.Fprintf(w, "%-15s on\n", name)
		default:
			fmt.Fprintf(w, "%-15s off\n", name)
		}
	}
}

// SetBuiltin changes options and positional parameters. It parses its own
// arguments since options may be turned off with +.
func SetBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	if len(args) == 1 {
		printVars(env.Stdout(), env.Vars(), "", shell.Variable.IsSet)
		return shell.Status(shell.StatusSuccess)
	}

	fail := func(err error) shell.Result {
		warn(env, args[0], err)
		fmt.Fprintln(env.Stderr(), "usage: set [-abefhkmnptuvxBCHP] [-o option-name] [--] [arg ...]")
		return env.Fatal(shell.StatusError)
	}

	rest := args[1:]
	params := false
	for len(rest) > 0 {
		arg := rest[0]
		if arg == "--" {
			rest, params = rest[1:], true
			break
		}
		if arg == "-" {
			env.SetOptionLetter('x', false)
			env.SetOptionLetter('v', false)
			rest, params = rest[1:], true
			break
		}
		if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
			params = true
			break
		}
		on := arg[0] == '-'
		rest = rest[1:]
		for i := 1; i < len(arg); i++ {
			if arg[i] != 'o' {
				if err := env.SetOptionLetter(arg[i], on); err != nil {
					return fail(err)
				}
				continue
			}
			if len(rest) == 0 {
				printOptions(env.Stdout(), env.Options(), !on)
				continue
			}
			if err := env.SetOption(rest[0], on); err != nil {
				return fail(err)
			}
			rest = rest[1:]
		}
	}
	if params {
		env.SetParams(rest)
	}
	return shell.Status(shell.StatusSuccess)
}

// ShiftBuiltin drops the first n positional parameters.
func ShiftBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	n := 1
	if len(args) > 1 {
		var err error
		if n, err = strconv.Atoi(args[1]); err != nil || n < 0 {
			warn(env, args[0], fmt.Errorf("%s: %w", args[1], errNumericArg))
			return env.Fatal(shell.StatusError)
		}
	}
	params := env.Params()
	if n > len(params) {
		warn(env, args[0], errors.New("shift count out of range"))
		return env.Fatal(shell.StatusFailure)
	}
	env.SetParams(params[n:])
	return shell.Status(shell.StatusSuccess)
}

// readLine reads one logical line from r a byte at a time so input after the
// line stays available to the next reader. Without raw, a backslash quotes
// the next character and a backslash-newline pair joins lines.
func readLine(r io.Reader, raw bool) (string, bool) {
	var sb strings.Builder
	buf := make([]byte, 1)
	escaped := false
	for {
		n, err := r.Read(buf)
		if n == 0 {
			if err != nil {
				return sb.String(), false
			}
			continue
		}
		c := buf[0]
		switch {
		case escaped:
			escaped = false
			if c != '\n' {
				sb.WriteByte(c)
			}
		case c == '\\' && !raw:
			escaped = true
		case c == '\n':
			return sb.String(), true
		default:
			sb.WriteByte(c)
		}
	}
}

// ReadBuiltin reads a line from standard input and splits it into
// variables.
func ReadBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:   "read [-r] [-p prompt] [name ...]",
		Short: "Read a line from standard input and split it into fields.",
	}
	opts := cmd.Flags()
	raw := opts.Bool('r', "do not treat backslashes as escapes")
	prompt := opts.String('p', "", "print prompt to standard error first")

	return cmd.Run(env, args, func() shell.Result {
		names := opts.Args()
		if len(names) == 0 {
			names = []string{"REPLY"}
		}
		if *prompt != "" {
			fmt.Fprint(env.Stderr(), *prompt)
		}

		line, complete := readLine(env.Stdin(), *raw)
		fields := env.SplitFields(line, len(names))
		for i, name := range names {
			value := ""
			if i < len(fields) {
				value = fields[i]
			}
			if err := env.SetVar(name, value); err != nil {
				warn(env, args[0], err)
				return shell.Status(shell.StatusError)
			}
		}
		if !complete {
			return shell.Status(shell.StatusFailure)
		}
		return shell.Status(shell.StatusSuccess)
	})
}

// symbolicMask renders a umask the way umask -S does.
func symbolicMask(mask os.FileMode) string {
	perms := func(shift uint) string {
		bits := (^mask >> shift) & 7
		var sb strings.Builder
		for i, c := range "rwx" {
			if bits&(4>>uint(i)) != 0 {
				sb.WriteRune(c)
			}
		}
		return sb.String()
	}
	return fmt.Sprintf("u=%s,g=%s,o=%s", perms(6), perms(3), perms(0))
}

// UmaskBuiltin shows or sets the file creation mask.
func UmaskBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:   "umask [-S] [mode]",
		Short: "Display or set the file mode creation mask.",
	}
	opts := cmd.Flags()
	symbolic := opts.Bool('S', "print the mask in symbolic form")

	return cmd.Run(env, args, func() shell.Result {
		operands := opts.Args()
		if len(operands) == 0 {
			if *symbolic {
				fmt.Fprintln(env.Stdout(), symbolicMask(env.Umask()))
			} else {
				fmt.Fprintf(env.Stdout(), "%04o\n", env.Umask())
			}
			return shell.Status(shell.StatusSuccess)
		}
		mask, err := strconv.ParseUint(operands[0], 8, 32)
		if err != nil || mask > 0777 {
			warn(env, args[0], fmt.Errorf("%s: octal number out of range", operands[0]))
			return shell.Status(shell.StatusFailure)
		}
		env.SetUmask(os.FileMode(mask))
		return shell.Status(shell.StatusSuccess)
	})
}

func init() {
	addSpecialBuiltin("export", attributeBuiltin("export", "export",
		func(vars *shell.VarTable, name string) error { return vars.Export(name, true) },
		func(v shell.Variable) bool { return v.Exported }))
	addSpecialBuiltin("readonly", attributeBuiltin("readonly", "read-only",
		(*shell.VarTable).MarkReadOnly,
		func(v shell.Variable) bool { return v.ReadOnly }))
	addSpecialBuiltin("unset", UnsetBuiltin)
	addSpecialBuiltin("set", SetBuiltin)
	addSpecialBuiltin("shift", ShiftBuiltin)
	addBuiltin("local", LocalBuiltin)
	addBuiltin("read", ReadBuiltin)
	addBuiltin("umask", UmaskBuiltin)
}
