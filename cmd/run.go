package cmd

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/josephlewis42/vsh/core"
	"github.com/josephlewis42/vsh/core/vos"
)

var (
	runCommand     string
	runVirtual     bool
	runInteractive bool
	runRecord      string
	runOptions     []string
)

// runCmd runs a script non-interactively
var runCmd = &cobra.Command{
	Use:   "run [-c COMMAND [NAME [ARG...]] | SCRIPT [ARG...]]",
	Short: "Run a command string, a script file, or the script on standard input.",
	Long: `Run a command string given with -c, a script file, or the script read from
standard input. The process exits with the status of the shell.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := core.SessionOptions{
			Virtual:     runVirtual,
			Interactive: runInteractive,
			Stdin:       cmd.InOrStdin(),
			Stdout:      cmd.OutOrStdout(),
			Stderr:      cmd.ErrOrStderr(),
			Options:     runOptions,
		}

		var (
			src  io.Reader
			name string
		)
		switch {
		case cmd.Flags().Changed("command"):
			if len(args) > 0 {
				opts.Arg0, opts.Params = args[0], args[1:]
			}
			src, name = strings.NewReader(runCommand), "-c"
		case len(args) > 0:
			fd, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fd.Close()
			opts.Arg0, opts.Params = args[0], args[1:]
			src, name = fd, args[0]
		default:
			src, name = cmd.InOrStdin(), "stdin"
		}

		if runRecord != "" {
			fd, err := os.Create(runRecord)
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
		stop := forwardSignals(session.System())
		defer stop()

		ctx := context.Background()
		if _, err := session.RunReader(ctx, src, name); err != nil {
			session.Close()
			return err
		}
		exitStatus = int(session.Exit(ctx))
		return nil
	},
}

// forwardSignals delivers the terminating signals the host sends to vsh
// to the shell of a virtual system. The real system handles its own
// signals.
func forwardSignals(sys vos.System) (stop func()) {
	if _, ok := sys.(*vos.VirtualSystem); !ok {
		return func() {}
	}

	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for {
			select {
			case sig := <-sigs:
				log.Printf("Got signal %q, forwarding to the shell", sig)
				if err := sys.Kill(sys.Getpid(), sig.(syscall.Signal)); err != nil {
					log.Printf("forwarding %q: %v", sig, err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runCommand, "command", "c", "", "run the commands in this string")
	runCmd.Flags().BoolVar(&runVirtual, "virtual", false, "run on an in-memory system with built-in programs")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "treat the shell as interactive")
	runCmd.Flags().StringVar(&runRecord, "record", "", "write an asciicast recording of the session to this file")
	runCmd.Flags().StringSliceVarP(&runOptions, "option", "o", nil, "turn on a set -o option, may be repeated")
	// Operands after the script name belong to the script.
	runCmd.Flags().SetInterspersed(false)
}
