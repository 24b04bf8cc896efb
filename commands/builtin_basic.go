package commands

import (
	"context"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"

	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/vos"
)

func colonBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	return shell.Status(shell.StatusSuccess)
}

func trueBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	return shell.Status(shell.StatusSuccess)
}

func falseBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	return shell.Status(shell.StatusFailure)
}

// echoFlags strips leading -n, -e and -E arguments. Anything else,
// including unknown letters, is an operand.
func echoFlags(args []string) (operands []string, newline, escapes bool) {
	newline = true
	for len(args) > 0 {
		arg := args[0]
		if len(arg) < 2 || arg[0] != '-' || strings.Trim(arg[1:], "neE") != "" {
			break
		}
		for _, c := range arg[1:] {
			switch c {
			case 'n':
				newline = false
			case 'e':
				escapes = true
			case 'E':
				escapes = false
			}
		}
		args = args[1:]
	}
	return args, newline, escapes
}

// EchoBuiltin writes its operands separated by spaces.
func EchoBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	operands, newline, escapes := echoFlags(args[1:])
	out := strings.Join(operands, " ")
	if escapes {
		out = unescape(out)
	}
	if newline {
		out += "\n"
	}
	if _, err := fmt.Fprint(env.Stdout(), out); err != nil {
		warn(env, args[0], err)
		return shell.Status(shell.StatusFailure)
	}
	return shell.Status(shell.StatusSuccess)
}

// PrintfBuiltin formats its operands. The format is reused until every
// operand is consumed.
func PrintfBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	if len(args) < 2 {
		fmt.Fprintln(env.Stderr(), "usage: printf FORMAT [ARGUMENT]...")
		return shell.Status(shell.StatusError)
	}
	format, operands := args[1], args[2:]
	var sb strings.Builder
	for {
		s, n, err := expand.Format(nil, format, operands)
		if err != nil {
			warn(env, args[0], err)
			return shell.Status(shell.StatusFailure)
		}
		sb.WriteString(s)
		operands = operands[n:]
		if n == 0 || len(operands) == 0 {
			break
		}
	}
	if _, err := fmt.Fprint(env.Stdout(), sb.String()); err != nil {
		warn(env, args[0], err)
		return shell.Status(shell.StatusFailure)
	}
	return shell.Status(shell.StatusSuccess)
}

// PwdBuiltin prints the working directory.
func PwdBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:   "pwd [-LP]",
		Short: "Print the name of the current working directory.",
	}
	opts := cmd.Flags()
	opts.Bool('L', "print the logical directory (default)")
	opts.Bool('P', "print the physical directory")

	return cmd.Run(env, args, func() shell.Result {
		dir := env.Dir()
		if physicalFlag(args[1:]) {
			resolved, err := vos.EvalSymlinks(env.Fs(), dir)
			if err != nil {
				warn(env, args[0], unwrapPathError(err))
				return shell.Status(shell.StatusFailure)
			}
			dir = resolved
		}
		fmt.Fprintln(env.Stdout(), dir)
		return shell.Status(shell.StatusSuccess)
	})
}

func init() {
	addSpecialBuiltin(":", colonBuiltin)
	addBuiltin("true", trueBuiltin)
	addBuiltin("false", falseBuiltin)
	addBuiltin("echo", EchoBuiltin)
	addBuiltin("printf", PrintfBuiltin)
	addBuiltin("pwd", PwdBuiltin)
}
