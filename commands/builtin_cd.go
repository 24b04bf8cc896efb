package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/vos"
)

// physicalFlag reports whether the last of -L and -P among the leading
// options of args is -P.
func physicalFlag(args []string) bool {
	physical := false
	for _, arg := range args {
		if arg == "--" || len(arg) < 2 || arg[0] != '-' {
			break
		}
		for _, c := range arg[1:] {
			switch c {
			case 'L':
				physical = false
			case 'P':
				physical = true
			}
		}
	}
	return physical
}

// CdBuiltin changes the working directory. "cd -" returns to $OLDPWD and
// prints it.
func CdBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:   "cd [-L|-P] [dir]",
		Short: "Change the shell working directory.",
	}
	opts := cmd.Flags()
	opts.Bool('L', "follow symbolic links (default)")
	opts.Bool('P', "use the physical directory structure")

	return cmd.Run(env, args, func() shell.Result {
		operands := opts.Args()
		var dir string
		announce := false
		switch len(operands) {
		case 0:
			home, ok := env.Get(shell.EnvHome)
			if !ok || home == "" {
				warn(env, args[0], errors.New("HOME not set"))
				return shell.Status(shell.StatusFailure)
			}
			dir = home
		case 1:
			dir = operands[0]
			if dir == "-" {
				old, ok := env.Get(shell.EnvOldPWD)
				if !ok || old == "" {
					warn(env, args[0], errors.New("OLDPWD not set"))
					return shell.Status(shell.StatusFailure)
				}
				dir, announce = old, true
			}
		default:
			warn(env, args[0], errors.New("too many arguments"))
			return shell.Status(shell.StatusFailure)
		}

		if physicalFlag(args[1:]) {
			resolved, err := vos.EvalSymlinks(env.Fs(), env.Abs(dir))
			if err != nil {
				warn(env, args[0], fmt.Errorf("%s: %w", dir, unwrapPathError(err)))
				return shell.Status(shell.StatusFailure)
			}
			dir = resolved
		}

		if err := env.Chdir(dir); err != nil {
			warn(env, args[0], fmt.Errorf("%s: %w", dir, unwrapPathError(err)))
			return shell.Status(shell.StatusFailure)
		}
		if announce {
			fmt.Fprintln(env.Stdout(), env.Dir())
		}
		return shell.Status(shell.StatusSuccess)
	})
}

func init() {
	addBuiltin("cd", CdBuiltin)
}
