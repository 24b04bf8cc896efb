package commands

import (
	"fmt"

	"github.com/josephlewis42/vsh/core/vos"
)

// NoOpCommand describes a program that ignores its arguments and only
// writes fixed output and exits with a fixed status.
type NoOpCommand struct {
	Name     string
	Use      string
	Short    string
	Stdout   string
	ExitCode int
}

// ToCommand converts the description to a functioning command.
func (c *NoOpCommand) ToCommand() vos.ProcessFunc {
	return func(proc *vos.Process) int {
		cmd := &SimpleCommand{
			Use:   c.Use,
			Short: c.Short,
			// Never bail, even if args are bad.
			NeverBail: true,
		}
		// Options like --help are operands to true and false.
		cmd.ShowHelp = new(bool)

		return cmd.Run(proc, func() int {
			if c.Stdout != "" {
				fmt.Fprintln(proc.Stdout(), c.Stdout)
			}
			return c.ExitCode
		})
	}
}

var noOpBinCommands = []NoOpCommand{
	{
		Name:  "true",
		Use:   "true",
		Short: "Return a successful exit status.",
	},
	{
		Name:     "false",
		Use:      "false",
		Short:    "Return an unsuccessful exit status.",
		ExitCode: 1,
	},
}

func init() {
	for _, cmd := range noOpBinCommands {
		cmd := cmd
		addBinCmd(cmd.Name, cmd.ToCommand())
	}
}
