package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/vos"
)

// printSignals lists the signal names with their numbers.
func printSignals(w io.Writer) {
	for _, sig := range vos.AllSignals() {
		fmt.Fprintf(w, "%2d) SIG%s\n", int(sig), vos.SignalName(sig))
	}
}

func printTraps(w io.Writer, traps *shell.TrapTable) {
	for _, sig := range traps.Signals() {
		trap, _ := traps.Get(sig)
		cmd := ""
		if trap.Action == shell.TrapCommand {
			cmd = trap.Command
		}
		fmt.Fprintf(w, "trap -- %s %s\n", shellQuote(cmd), vos.SignalName(sig))
	}
}

// TrapBuiltin sets or lists signal traps. An action of "-" restores the
// default, an empty action ignores the signal.
func TrapBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:     "trap [-lp] [[action] signal ...]",
		Short:   "Trap signals and other events.",
		Special: true,
	}
	opts := cmd.Flags()
	list := opts.Bool('l', "list signal names and numbers")
	opts.Bool('p', "print the installed traps")

	return cmd.Run(env, args, func() shell.Result {
		if *list {
			printSignals(env.Stdout())
			return shell.Status(shell.StatusSuccess)
		}
		operands := opts.Args()
		if len(operands) == 0 {
			printTraps(env.Stdout(), env.Traps())
			return shell.Status(shell.StatusSuccess)
		}

		var trap shell.Trap
		conditions := operands[1:]
		if _, err := strconv.Atoi(operands[0]); err == nil || len(operands) == 1 {
			// A leading condition resets all operands to the default.
			conditions = operands
		} else {
			switch action := operands[0]; action {
			case "-":
			case "":
				trap.Action = shell.TrapIgnore
			default:
				trap = shell.Trap{Action: shell.TrapCommand, Command: action}
			}
		}

		status := shell.StatusSuccess
		for _, cond := range conditions {
			sig, err := vos.ParseSignal(cond)
			if err == nil {
				err = env.SetTrap(sig, trap)
			}
			if err != nil {
				warn(env, args[0], err)
				status = shell.StatusFailure
			}
		}
		if status != shell.StatusSuccess {
			return cmd.Fail(env, status)
		}
		return shell.Status(status)
	})
}

// killSignalArg rewrites the historical -SIGNAL form into -s SIGNAL so getopt
// can handle it.
func killSignalArg(args []string) []string {
	if len(args) < 2 {
		return args
	}
	arg := args[1]
	if len(arg) < 2 || arg[0] != '-' || arg == "--" || arg == "-l" || arg == "-s" || strings.HasPrefix(arg, "--") {
		return args
	}
	out := []string{args[0], "-s", arg[1:]}
	return append(out, args[2:]...)
}

// KillBuiltin sends a signal to processes or jobs.
func KillBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:   "kill [-s sigspec | -sigspec] pid | %job ... or kill -l [status]",
		Short: "Send a signal to a job or process.",
	}
	opts := cmd.Flags()
	sigName := opts.String('s', "TERM", "the signal to send")
	list := opts.Bool('l', "list signal names")

	return cmd.Run(env, killSignalArg(args), func() shell.Result {
		operands := opts.Args()
		if *list {
			if len(operands) == 0 {
				printSignals(env.Stdout())
				return shell.Status(shell.StatusSuccess)
			}
			for _, op := range operands {
				n, err := strconv.Atoi(op)
				if err != nil {
					warn(env, args[0], fmt.Errorf("%s: invalid signal number", op))
					return shell.Status(shell.StatusFailure)
				}
				if n > 128 {
					n -= 128
				}
				fmt.Fprintln(env.Stdout(), vos.SignalName(syscall.Signal(n)))
			}
			return shell.Status(shell.StatusSuccess)
		}

		sig, err := vos.ParseSignal(*sigName)
		if err != nil {
			warn(env, args[0], err)
			return shell.Status(shell.StatusFailure)
		}
		if len(operands) == 0 {
			fmt.Fprintf(env.Stderr(), "usage: %s\n", cmd.Use)
			return shell.Status(shell.StatusError)
		}

		status := shell.StatusSuccess
		for _, target := range operands {
			if err := killTarget(env, target, sig); err != nil {
				warn(env, args[0], err)
				status = shell.StatusFailure
			}
		}
		return shell.Status(status)
	})
}

func killTarget(env *shell.Env, target string, sig vos.Signal) error {
	if strings.HasPrefix(target, "%") {
		j, err := env.FindJob(target)
		if err != nil {
			return err
		}
		return env.SignalJob(j, sig)
	}
	pid, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("%s: arguments must be process or job IDs", target)
	}
	if err := env.System().Kill(pid, sig); err != nil {
		if errors.Is(err, vos.ErrNoSuchProcess) {
			return fmt.Errorf("(%d) - %w", pid, err)
		}
		return err
	}
	return nil
}

func init() {
	addSpecialBuiltin("trap", TrapBuiltin)
	addBuiltin("kill", KillBuiltin)
}
