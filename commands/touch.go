package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/josephlewis42/vsh/core/vos"
)

// Touch implements a POSIX touch command.
func Touch(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "touch [OPTION...] FILE...",
		Short: "Update the access and modification times of files to now.",
	}

	// Accepted for compatibility, both times are always set.
	cmd.Flags().Bool('a', "only change the access time")
	cmd.Flags().Bool('m', "only change the modification time")

	noCreate := cmd.Flags().BoolLong("no-create", 'c', "don't create files")

	return cmd.Run(proc, func() int {
		vfs := proc.Fs()
		now := time.Now()

		var anyFailed bool
		for _, name := range cmd.Flags().Args() {
			target := proc.Abs(name)
			err := vfs.Chtimes(target, now, now)
			switch {
			case errors.Is(err, fs.ErrNotExist) && !*noCreate:
				fd, err := vfs.OpenFile(target, os.O_RDWR|os.O_CREATE, 0666&^proc.Umask())
				if err != nil {
					fmt.Fprintf(proc.Stderr(), "touch: cannot touch %q: %s\n", name, unwrapPathError(err))
					anyFailed = true
					continue
				}
				fd.Close()
			case errors.Is(err, fs.ErrNotExist):
				// -c skips missing files.
			case err != nil:
				fmt.Fprintf(proc.Stderr(), "touch: setting times of %q: %s\n", name, unwrapPathError(err))
				anyFailed = true
			}
		}

		if anyFailed {
			return 1
		}
		return 0
	})
}

var _ vos.ProcessFunc = Touch

func init() {
	addBinCmd("touch", Touch)
}
