package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/josephlewis42/vsh/core/vos"
)

// sleepSlice bounds how long Sleep waits between checkpoints so that stop
// signals take effect promptly.
const sleepSlice = 20 * time.Millisecond

// parseSleepDuration reads a sleep operand: a number of seconds, optionally
// fractional, or a Go duration such as 150ms.
func parseSleepDuration(arg string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(arg, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid time interval %q", arg)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(arg)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid time interval %q", arg)
	}
	return d, nil
}

// Sleep implements the POSIX sleep command. The operands are summed.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/sleep.html
func Sleep(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "sleep TIME...",
		Short: "Suspend execution for an interval of time.",
	}

	return cmd.Run(proc, func() int {
		operands := cmd.Flags().Args()
		if len(operands) == 0 {
			cmd.LogProgramError(proc, errors.New("missing operand"))
			return 1
		}
		var total time.Duration
		for _, arg := range operands {
			d, err := parseSleepDuration(arg)
			if err != nil {
				cmd.LogProgramError(proc, err)
				return 1
			}
			total += d
		}

		// A killed sleep exits quietly, its status comes from the signal.
		ctx := proc.Context()
		deadline := time.Now().Add(total)
		for {
			if err := proc.Checkpoint(); err != nil {
				return 1
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0
			}
			if remaining > sleepSlice {
				remaining = sleepSlice
			}
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return 1
			case <-timer.C:
			}
		}
	})
}

var _ vos.ProcessFunc = Sleep

func init() {
	addBinCmd("sleep", Sleep)
}
