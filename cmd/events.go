package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"
	"sigs.k8s.io/yaml"

	"github.com/josephlewis42/vsh/core/logger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the shell event log.",
}

// eventReportCommand builds a subcommand that feeds every logged event to
// the report returned by newReport and prints it as YAML.
func eventReportCommand(use, short string, newReport func() (interface{}, func(*structpb.Struct))) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			config, err := loadConfig()
			if err != nil {
				return err
			}
			if config.EventLog == "" {
				return errors.New("the configuration has no event_log")
			}

			fd, err := config.ReadEventLog()
			if err != nil {
				return err
			}
			defer fd.Close()

			report, update := newReport()
			if err := logger.ReadJSONLinesLog(fd, update); err != nil {
				return err
			}

			out, err := yaml.Marshal(report)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.AddCommand(eventReportCommand("report", "Show a report of events.", func() (interface{}, func(*structpb.Struct)) {
		report := &logger.Report{}
		return report, report.Update
	}))
	eventsCmd.AddCommand(eventReportCommand("sessions", "Show the commands run by each session.", func() (interface{}, func(*structpb.Struct)) {
		report := &logger.SessionsReport{}
		return report, report.Update
	}))
	eventsCmd.AddCommand(eventReportCommand("bugs", "Show unknown commands and rejected invocations.", func() (interface{}, func(*structpb.Struct)) {
		report := logger.NewBugReport()
		return report, report.Update
	}))
}
