package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/josephlewis42/vsh/core/shell"
)

func stateColor(state shell.JobState) *color.Color {
	switch state {
	case shell.JobRunning:
		return ColorBoldGreen
	case shell.JobStopped:
		return ColorBoldYellow
	default:
		return ColorBoldBlue
	}
}

// JobsBuiltin lists the jobs of the shell. Finished jobs are forgotten once
// listed.
func JobsBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	cmd := &BuiltinCommand{
		Use:   "jobs [-lp] [--color=WHEN] [job ...]",
		Short: "Display status of jobs.",
	}
	opts := cmd.Flags()
	long := opts.Bool('l', "also list process group ids")
	pidsOnly := opts.Bool('p', "list only process group leaders")
	var printer ColorPrinter
	printer.Init(opts, env.System().IsTerminal)

	return cmd.Run(env, args, func() shell.Result {
		env.UpdateJobs()
		table := env.JobTable()

		jobs := table.List()
		if specs := opts.Args(); len(specs) > 0 {
			jobs = jobs[:0]
			for _, spec := range specs {
				j, err := env.FindJob(spec)
				if err != nil {
					warn(env, args[0], err)
					return shell.Status(shell.StatusFailure)
				}
				jobs = append(jobs, j)
			}
		}

		w := env.Stdout()
		for _, j := range jobs {
			switch {
			case *pidsOnly:
				pid := j.Pgid
				if pid == 0 && len(j.Procs) > 0 {
					pid = j.Procs[0].Pid
				}
				fmt.Fprintln(w, pid)
			case *long:
				state := printer.Sprintf(stateColor(j.State()), "%-24s", j.Describe())
				fmt.Fprintf(w, "[%d]%c %d %s%s\n", j.ID, table.Marker(j), j.Pgid, state, j.Cmd)
			default:
				state := printer.Sprintf(stateColor(j.State()), "%-24s", j.Describe())
				fmt.Fprintf(w, "[%d]%c  %s%s\n", j.ID, table.Marker(j), state, j.Cmd)
			}
			j.Notified = true
		}
		for _, j := range jobs {
			if j.State() == shell.JobDone {
				table.Remove(j.ID)
			}
		}
		return shell.Status(shell.StatusSuccess)
	})
}

// jobOperand resolves the job named by spec, "%+" when spec is empty.
func jobOperand(env *shell.Env, name, spec string) (*shell.Job, bool) {
	if spec == "" {
		spec = "%+"
	}
	j, err := env.FindJob(spec)
	if err != nil {
		warn(env, name, err)
		return nil, false
	}
	return j, true
}

// FgBuiltin continues a job in the foreground.
func FgBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	if len(args) > 2 {
		fmt.Fprintln(env.Stderr(), "usage: fg [job]")
		return shell.Status(shell.StatusError)
	}
	spec := ""
	if len(args) == 2 {
		spec = args[1]
	}
	j, ok := jobOperand(env, args[0], spec)
	if !ok {
		return shell.Status(shell.StatusFailure)
	}
	return env.Foreground(ctx, j)
}

// BgBuiltin continues stopped jobs in the background.
func BgBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	specs := args[1:]
	if len(specs) == 0 {
		specs = []string{""}
	}
	status := shell.StatusSuccess
	for _, spec := range specs {
		j, ok := jobOperand(env, args[0], spec)
		if !ok {
			status = shell.StatusFailure
			continue
		}
		if res := env.Background(j); res.Status != shell.StatusSuccess {
			status = res.Status
		}
	}
	return shell.Status(status)
}

// WaitBuiltin waits for jobs or processes. Without operands it waits for
// every job and returns 0. A trapped signal ends the wait early with status
// 128 plus the signal number.
func WaitBuiltin(ctx context.Context, env *shell.Env, args []string) shell.Result {
	env.UpdateJobs()
	operands := args[1:]
	if len(operands) == 0 {
		for _, j := range env.Jobs() {
			res := env.WaitFor(ctx, j)
			if res.Divert.Diverted() || (j.State() != shell.JobDone && !stoppedAndWaited(env, j)) {
				return res
			}
		}
		return shell.Status(shell.StatusSuccess)
	}

	status := shell.StatusSuccess
	for _, op := range operands {
		var j *shell.Job
		if strings.HasPrefix(op, "%") {
			found, err := env.FindJob(op)
			if err != nil {
				warn(env, args[0], err)
				status = shell.StatusNotFound
				continue
			}
			j = found
		} else {
			pid, err := strconv.Atoi(op)
			if err != nil {
				warn(env, args[0], fmt.Errorf("%s: not a pid or valid job spec", op))
				status = shell.StatusError
				continue
			}
			if j, _ = env.JobTable().ByPid(pid); j == nil {
				status = shell.StatusNotFound
				continue
			}
		}
		res := env.WaitFor(ctx, j)
		if res.Divert.Diverted() {
			return res
		}
		status = res.Status
		if j.State() != shell.JobDone && !stoppedAndWaited(env, j) {
			return res
		}
	}
	return shell.Status(status)
}

// stoppedAndWaited reports whether a wait ended because the job stopped
// under job control rather than because a trap interrupted it.
func stoppedAndWaited(env *shell.Env, j *shell.Job) bool {
	return j.State() == shell.JobStopped && env.Options().Monitor && !env.IsSubshell()
}

func init() {
	addBuiltin("jobs", JobsBuiltin)
	addBuiltin("fg", FgBuiltin)
	addBuiltin("bg", BgBuiltin)
	addBuiltin("wait", WaitBuiltin)
}
