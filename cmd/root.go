package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephlewis42/vsh/core/config"
)

var (
	cfgPath string
	logPath string

	// exitStatus is the status of the shell a subcommand ran.
	exitStatus int
)

func loadConfig() (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}

	configuration, err := config.Load(afero.NewOsFs(), cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vsh",
	Short: "A POSIX shell that can run on a virtual system",
	Long: `vsh is a POSIX shell. It runs commands on the host, or on an in-memory
system whose programs are built in, for sandboxes and tests.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logPath == "" {
			log.SetOutput(io.Discard)
			return nil
		}
		fd, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}
		log.SetOutput(fd)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// The process exits with the status of the shell.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitStatus)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory, the built-in configuration is used if empty")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "append operational logs to this file")
}
