package commands

import (
	"fmt"
	"os"

	"github.com/josephlewis42/vsh/core/vos"
)

// Mkdir implements a POSIX mkdir command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/mkdir.html
func Mkdir(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "mkdir [OPTION...] DIRECTORY...",
		Short: "Create directories if they don't exist.",
	}

	makeParents := cmd.Flags().BoolLong("parents", 'p', "make parents if needed")
	verbose := cmd.Flags().BoolLong("verbose", 'v', "print line for every created directory")

	return cmd.Run(proc, func() int {
		directories := cmd.Flags().Args()
		if len(directories) == 0 {
			fmt.Fprintln(proc.Stderr(), "mkdir: missing operand")

			cmd.PrintHelp(proc.Stdout())
			return 1
		}

		fs := proc.Fs()
		op := fs.Mkdir
		if *makeParents {
			op = fs.MkdirAll
		}

		anyFailed := false
		for _, dir := range directories {
			err := op(proc.Abs(dir), os.FileMode(0777)&^proc.Umask())
			switch {
			case err != nil:
				fmt.Fprintf(proc.Stderr(), "mkdir: cannot create directory %q: %s\n", dir, unwrapPathError(err))
				anyFailed = true

			case *verbose:
				fmt.Fprintf(proc.Stdout(), "mkdir: created directory %q\n", dir)
			}
		}

		if anyFailed {
			return 1
		}
		return 0
	})
}

var _ vos.ProcessFunc = Mkdir

func init() {
	addBinCmd("mkdir", Mkdir)
}
