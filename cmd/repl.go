package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/josephlewis42/vsh/core"
)

var (
	replVirtual bool
	replRecord  string
	replOptions []string
)

// replCmd runs an interactive shell
var replCmd = &cobra.Command{
	Use:     "repl",
	Aliases: []string{"playground"},
	Short:   "Start an interactive shell.",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		isTerminal := func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		}

		opts := core.SessionOptions{
			Virtual:     replVirtual,
			Interactive: true,
			Stdin:       cmd.InOrStdin(),
			Stdout:      cmd.OutOrStdout(),
			Stderr:      cmd.ErrOrStderr(),
			Options:     replOptions,
		}
		if isTerminal() && !replVirtual {
			opts.Options = append(opts.Options, "monitor")
		}

		if replRecord != "" {
			fd, err := os.Create(replRecord)
			if err != nil {
				return err
			}
			defer fd.Close()
			opts.Record = fd
		}

		session, err := core.NewSession(cfg, opts)
		if err != nil {
			return err
		}

		repl, err := core.NewREPL(session, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), isTerminal)
		if err != nil {
			session.Close()
			return err
		}

		ctx := context.Background()
		repl.Run(ctx)
		repl.Close()
		exitStatus = int(session.Exit(ctx))
		if replVirtual {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exit code: %d\n", exitStatus)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().BoolVar(&replVirtual, "virtual", false, "run on an in-memory system with built-in programs")
	replCmd.Flags().StringVar(&replRecord, "record", "", "write an asciicast recording of the session to this file")
	replCmd.Flags().StringSliceVarP(&replOptions, "option", "o", nil, "turn on a set -o option, may be repeated")
}
