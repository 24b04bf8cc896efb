package commands

import (
	"fmt"
	"path"

	"github.com/spf13/afero"

	"github.com/josephlewis42/vsh/core/vos"
)

// rmdirSteps lists dir and, with parents, each of its ancestors named in
// the operand, deepest first.
func rmdirSteps(dir string, parents bool) []string {
	steps := []string{dir}
	if !parents {
		return steps
	}
	for {
		dir = path.Dir(dir)
		if dir == "." || dir == "/" {
			return steps
		}
		steps = append(steps, dir)
	}
}

// Rmdir implements a POSIX rmdir command.
func Rmdir(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "rmdir [OPTION...] DIRECTORY...",
		Short: "Remove empty directories.",
	}

	parents := cmd.Flags().BoolLong("parents", 'p', "remove DIRECTORY and its ancestors")
	verbose := cmd.Flags().BoolLong("verbose", 'v', "print line for every deleted directory")

	return cmd.Run(proc, func() int {
		directories := cmd.Flags().Args()
		if len(directories) == 0 {
			fmt.Fprintln(proc.Stderr(), "rmdir: missing operand")

			cmd.PrintHelp(proc.Stdout())
			return 1
		}

		vfs := proc.Fs()
		anyFailed := false
		for _, operand := range directories {
			for _, dir := range rmdirSteps(path.Clean(operand), *parents) {
				target := proc.Abs(dir)
				empty, err := afero.IsEmpty(vfs, target)
				if err != nil {
					fmt.Fprintf(proc.Stderr(), "rmdir: cannot read directory %q: %s\n", dir, unwrapPathError(err))
					anyFailed = true
					break
				}
				if isDir, _ := afero.IsDir(vfs, target); !isDir {
					fmt.Fprintf(proc.Stderr(), "rmdir: %q: not a directory\n", dir)
					anyFailed = true
					break
				}
				if !empty {
					fmt.Fprintf(proc.Stderr(), "rmdir: directory not empty %q\n", dir)
					anyFailed = true
					break
				}

				if err := vfs.Remove(target); err != nil {
					fmt.Fprintf(proc.Stderr(), "rmdir: cannot remove directory %q: %s\n", dir, unwrapPathError(err))
					anyFailed = true
					break
				}
				if *verbose {
					fmt.Fprintf(proc.Stdout(), "rmdir: removed directory %q\n", dir)
				}
			}
		}

		if anyFailed {
			return 1
		}
		return 0
	})
}

var _ vos.ProcessFunc = Rmdir

func init() {
	addBinCmd("rmdir", Rmdir)
}
