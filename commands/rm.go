package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/josephlewis42/vsh/core/vos"
)

// Rm implements a POSIX rm command.
func Rm(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "rm [OPTION...] FILE...",
		Short: "Remove files or directories.",
	}

	recursive := cmd.Flags().BoolLong("recursive", 'r', "remove directories and their contents recursively")
	cmd.Flags().Flag(recursive, 'R', "same as -r")
	force := cmd.Flags().BoolLong("force", 'f', "ignore missing files and arguments, never prompt")

	return cmd.Run(proc, func() int {
		vfs := proc.Fs()
		anyFailed := false
		for _, file := range cmd.Flags().Args() {
			target := proc.Abs(file)
			stat, statErr := vfs.Stat(target)
			switch {
			case errors.Is(statErr, fs.ErrNotExist):
				if !*force {
					fmt.Fprintf(proc.Stderr(), "rm: can't remove %q: no such file or directory\n", file)
					anyFailed = true
				}
			case statErr != nil:
				fmt.Fprintf(proc.Stderr(), "rm: can't stat %q: %v\n", file, unwrapPathError(statErr))
				anyFailed = true
			case stat.IsDir() && !*recursive:
				fmt.Fprintf(proc.Stderr(), "rm: can't remove %q: is a directory\n", file)
				anyFailed = true
			case stat.IsDir():
				if err := vfs.RemoveAll(target); err != nil {
					fmt.Fprintf(proc.Stderr(), "rm: can't remove %q: %v\n", file, unwrapPathError(err))
					anyFailed = true
				}
			default:
				if err := vfs.Remove(target); err != nil {
					fmt.Fprintf(proc.Stderr(), "rm: can't remove %q: %v\n", file, unwrapPathError(err))
					anyFailed = true
				}
			}
		}

		if anyFailed {
			return 1
		}
		return 0
	})
}

var _ vos.ProcessFunc = Rm

func init() {
	addBinCmd("rm", Rm)
}
