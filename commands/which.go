package commands

import (
	"fmt"

	"github.com/josephlewis42/vsh/core/vos"
)

// Which implements the UNIX which command.
func Which(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "which [COMMAND...]",
		Short: "Locate a command.",
	}

	return cmd.Run(proc, func() int {
		status := 0
		for _, arg := range cmd.Flags().Args() {
			res, err := vos.LookPath(proc.Fs(), proc.Getwd(), proc.Getenv("PATH"), arg)
			if err != nil {
				status = 1
				continue
			}
			fmt.Fprintln(proc.Stdout(), res)
		}
		return status
	})
}

var _ vos.ProcessFunc = Which

func init() {
	addBinCmd("which", Which)
}
