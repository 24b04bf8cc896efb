package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/josephlewis42/vsh/core/vos"
)

// Env implements the POSIX env command. Leading NAME=VALUE operands are
// added to the printed environment; -i starts from an empty one.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/env.html
func Env(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "env [-i] [NAME=VALUE]...",
		Short: "Set or print the environment for command invocation.",
	}
	ignore := cmd.Flags().Bool('i', "start with an empty environment")

	return cmd.Run(proc, func() int {
		env := vos.NewMapEnv()
		if !*ignore {
			if err := vos.CopyEnv(env, proc.Environ()); err != nil {
				cmd.LogProgramError(proc, err)
				return 1
			}
		}
		for _, arg := range cmd.Flags().Args() {
			if !strings.Contains(arg, "=") {
				cmd.LogProgramError(proc, fmt.Errorf("%s: running commands is not supported", arg))
				return 126
			}
			k, v := vos.SplitEnv(arg)
			env.Setenv(k, v)
		}

		environ := env.Environ()
		sort.Strings(environ)
		for _, envDef := range environ {
			fmt.Fprintln(proc.Stdout(), envDef)
		}
		return 0
	})
}

var _ vos.ProcessFunc = Env

func init() {
	addBinCmd("env", Env)
}
