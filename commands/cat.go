package commands

import (
	"io"

	"github.com/josephlewis42/vsh/core/vos"
)

// Cat implements the POSIX cat command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/cat.html
func Cat(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "cat [-u] [FILE]...",
		Short: "Concatenate FILE(s) to standard output.",
	}
	cmd.Flags().Bool('u', "write bytes without delay (always on)")

	return cmd.Run(proc, func() int {
		return cmd.RunEachFileOrStdin(proc, cmd.Flags().Args(), func(name string, r io.Reader) error {
			_, err := io.Copy(proc.Stdout(), r)
			return err
		})
	})
}

var _ vos.ProcessFunc = Cat

func init() {
	addBinCmd("cat", Cat)
}
