package commands

import (
	"fmt"

	"github.com/josephlewis42/vsh/core/vos"
)

// Pwd implements the pwd program, which prints the directory it was
// started in.
func Pwd(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "pwd [-LP]",
		Short: "Print the name of the current working directory.",
	}
	cmd.Flags().Bool('L', "print the logical directory (default)")
	cmd.Flags().Bool('P', "print the physical directory")

	return cmd.Run(proc, func() int {
		dir := proc.Getwd()
		if physicalFlag(proc.Args()[1:]) {
			resolved, err := vos.EvalSymlinks(proc.Fs(), dir)
			if err != nil {
				cmd.LogProgramError(proc, unwrapPathError(err))
				return 1
			}
			dir = resolved
		}
		fmt.Fprintln(proc.Stdout(), dir)
		return 0
	})
}

var _ vos.ProcessFunc = Pwd

func init() {
	addBinCmd("pwd", Pwd)
}
