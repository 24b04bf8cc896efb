package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/vsh/core/shell"
)

var errNumericArg = errors.New("numeric argument required")

// statusArg parses the optional status operand of exit and return.
func statusArg(env *shell.Env, args []string) (shell.ExitStatus, error) {
	switch len(args) {
	case 1:
		return env.Status(), nil
	case 2:
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", args[1], errNumericArg)
		}
		return shell.ExitStatus(n & 0xff), nil
	default:
		return 0, errors.New("too many arguments")
	}
}

// ExitBuiltin ends the shell with the given status, $? by default.
func ExitBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	status, err := statusArg(env, args)
	if err != nil {
		warn(env, args[0], err)
		return env.Fatal(shell.StatusError)
	}
	return shell.Result{Status: status, Divert: shell.Divert{Kind: shell.DivertExit}}
}

// ReturnBuiltin leaves the current function or sourced file.
func ReturnBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	if !env.InFunction() {
		warn(env, args[0], errors.New("can only return from a function or sourced script"))
		return env.Fatal(shell.StatusFailure)
	}
	status, err := statusArg(env, args)
	if err != nil {
		warn(env, args[0], err)
		return env.Fatal(shell.StatusError)
	}
	return shell.Result{Status: status, Divert: shell.Divert{Kind: shell.DivertReturn}}
}

// loopBuiltin implements break and continue.
func loopBuiltin(kind shell.DivertKind) builtinFactory {
	return func(ctx context.Context, env *shell.Env, args []string) shell.Result {
		count := 1
		if len(args) > 2 {
			warn(env, args[0], errors.New("too many arguments"))
			return env.Fatal(shell.StatusError)
		}
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				warn(env, args[0], fmt.Errorf("%s: loop count out of range", args[1]))
				return env.Fatal(shell.StatusFailure)
			}
			count = n
		}
		depth := env.LoopDepth()
		if depth == 0 {
			warn(env, args[0], errors.New("only meaningful in a loop"))
			return shell.Status(shell.StatusSuccess)
		}
		if count > depth {
			count = depth
		}
		return shell.Result{Status: shell.StatusSuccess, Divert: shell.Divert{Kind: kind, Count: count}}
	}
}

// EvalBuiltin runs its operands, joined by spaces, as shell input.
func EvalBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	if len(args) < 2 {
		return shell.Status(shell.StatusSuccess)
	}
	return env.Eval(ctx, strings.Join(args[1:], " "))
}

// DotBuiltin runs a file in the current shell.
func DotBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	if len(args) < 2 {
		warn(env, args[0], errors.New("filename argument required"))
		fmt.Fprintf(env.Stderr(), "usage: %s filename [arguments]\n", args[0])
		return env.Fatal(shell.StatusError)
	}
	return env.Source(ctx, args[1], args[2:])
}

// ExecBuiltin replaces the shell with a command. Without one, the
// redirections of the invocation become permanent.
func ExecBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	args = args[1:]
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if len(args) == 0 {
		return shell.Result{Status: shell.StatusSuccess, KeepRedirections: true}
	}
	return env.Exec(ctx, args)
}

// describe prints how name resolves, in the style of type or command -V.
func describe(env *shell.Env, name string, verbose bool) bool {
	kind, resolved := env.LookupCommand(name)
	w := env.Stdout()
	switch {
	case kind == shell.CommandNotFound:
		if verbose {
			warn(env, name, errors.New("not found"))
		}
		return false
	case !verbose && kind == shell.CommandFile:
		fmt.Fprintln(w, resolved)
	case !verbose:
		fmt.Fprintln(w, name)
	case kind == shell.CommandFile:
		fmt.Fprintf(w, "%s is %s\n", name, resolved)
	default:
		fmt.Fprintf(w, "%s is a %s\n", name, kind)
	}
	return true
}

// CommandBuiltin runs a command bypassing functions, or describes it.
func CommandBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:   "command [-pVv] command [arg ...]",
		Short: "Execute a simple command or display information about commands.",
	}
	opts := cmd.Flags()
	opts.Bool('p', "use a default value for PATH")
	short := opts.Bool('v', "print the command or path that would be run")
	verbose := opts.Bool('V', "print a description of the command")

	return cmd.Run(env, args, func() shell.Result {
		operands := opts.Args()
		if len(operands) == 0 {
			return shell.Status(shell.StatusSuccess)
		}
		if *short || *verbose {
			status := shell.StatusSuccess
			for _, name := range operands {
				if !describe(env, name, *verbose) {
					status = shell.StatusFailure
				}
			}
			return shell.Status(status)
		}
		return env.RunCommand(ctx, operands)
	})
}

// TypeBuiltin describes how each operand would be interpreted as a command.
func TypeBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	status := shell.StatusSuccess
	for _, name := range args[1:] {
		if !describe(env, name, true) {
			status = shell.StatusFailure
		}
	}
	return shell.Status(status)
}

func init() {
	addSpecialBuiltin("exit", ExitBuiltin)
	addSpecialBuiltin("return", ReturnBuiltin)
	addSpecialBuiltin("break", loopBuiltin(shell.DivertBreak))
	addSpecialBuiltin("continue", loopBuiltin(shell.DivertContinue))
	addSpecialBuiltin("eval", EvalBuiltin)
	addSpecialBuiltin(".", DotBuiltin)
	addSpecialBuiltin("exec", ExecBuiltin)
	addBuiltin("command", CommandBuiltin)
	addBuiltin("type", TypeBuiltin)
}
