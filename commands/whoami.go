package commands

import (
	"errors"
	"fmt"

	"github.com/josephlewis42/vsh/core/vos"
)

// Whoami implements the whoami command. The user name comes from the
// environment since virtual systems have no user database.
func Whoami(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "whoami",
		Short: "Print the current user.",
	}

	return cmd.RunE(proc, func() error {
		for _, key := range []string{"LOGNAME", "USER"} {
			if user := proc.Getenv(key); user != "" {
				fmt.Fprintln(proc.Stdout(), user)
				return nil
			}
		}
		return errors.New("cannot find name for current user")
	})
}

var _ vos.ProcessFunc = Whoami

func init() {
	addBinCmd("whoami", Whoami)
}
