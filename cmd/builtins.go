package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/josephlewis42/vsh/commands"
	"github.com/josephlewis42/vsh/core/shell"
)

var (
	specialColor = color.New(color.FgRed, color.Bold)
	builtinColor = color.New(color.FgGreen)
	programColor = color.New(color.FgBlue)
)

// builtinsCmd lists what the shell can run without the host
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtins of the shell and the programs of the virtual system.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var lines []string

		registry := commands.Builtins()
		for _, name := range registry.Names() {
			_, kind, _ := registry.Lookup(name)
			if kind == shell.Special {
				lines = append(lines, specialColor.Sprint("special:"+name))
			} else {
				lines = append(lines, builtinColor.Sprint("builtin:"+name))
			}
		}

		for _, program := range commands.ListPrograms() {
			lines = append(lines, programColor.Sprint("program:"+strings.Join(program.Names, ", ")))
		}

		sort.Strings(lines)

		for _, v := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
