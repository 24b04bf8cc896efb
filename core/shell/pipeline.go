package shell

import (
	"context"
	"fmt"
	"syscall"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/vos"
)

// forkBody is the code a forked subshell runs.
type forkBody func(ctx context.Context, sub *Env) ExitStatus

// fork starts body in a new child process running on sub, a Subshell of
// e. The child owns the descriptors of sub and closes them when it ends.
func (e *Env) fork(sub *Env, attr *vos.ProcAttr, body forkBody) (int, error) {
	attr.Ignored = e.childIgnored()
	task := func(ctx context.Context, pid int) int {
		sub.pid = pid
		sub.syncDispositions()
		status := body(ctx, sub)
		sub.fds.CloseAll()
		return int(status)
	}
	pid, err := e.sys.Fork(e.pid, task, attr)
	if err != nil {
		sub.fds.CloseAll()
		return 0, err
	}
	return pid, nil
}

// runSubshell is the body of ( list ) and of command substitutions.
func runSubshell(stmts []*syntax.Stmt) forkBody {
	return func(ctx context.Context, sub *Env) ExitStatus {
		d := sub.stmts(ctx, stmts)
		return sub.finish(ctx, d)
	}
}

// finish ends a forked shell process after its commands ran with the given
// outcome.
func (e *Env) finish(ctx context.Context, d Divert) ExitStatus {
	if d.Kind == DivertAbort {
		e.noExitTrap = true
	}
	return e.Exit(ctx)
}

type pipeStage struct {
	stmt *syntax.Stmt
	// stderr is set for |& stages, whose standard error joins the pipe.
	stderr bool
}

// flattenPipeline lists the stages of a | b | c in order.
func flattenPipeline(st *syntax.Stmt, stderr bool, out []pipeStage) []pipeStage {
	if bc, ok := st.Cmd.(*syntax.BinaryCmd); ok && len(st.Redirs) == 0 && !st.Negated && !st.Background {
		if bc.Op == syntax.Pipe || bc.Op == syntax.PipeAll {
			out = flattenPipeline(bc.X, bc.Op == syntax.PipeAll, out)
			return flattenPipeline(bc.Y, stderr, out)
		}
	}
	return append(out, pipeStage{stmt: st, stderr: stderr})
}

// launch starts every stage of a pipeline in its own subshell and returns
// the job. With job control on, the stages share a new process group.
func (e *Env) launch(stages []pipeStage, src string, background bool) (*Job, error) {
	monitor := e.opts.Monitor && !e.subshell
	pgid := vos.GroupInherit
	if monitor {
		pgid = vos.GroupNew
	}
	j := &Job{Cmd: src, PipeFail: e.opts.PipeFail}

	var prev vos.File
	for i, stage := range stages {
		var r, w vos.File
		if i < len(stages)-1 {
			var err error
			if r, w, err = e.sys.Pipe(); err != nil {
				if prev != nil {
					prev.Close()
				}
				e.signalProcs(j, syscall.SIGKILL)
				return nil, err
			}
		}

		sub := e.Subshell()
		switch {
		case prev != nil:
			sub.fds.Set(0, prev)
		case background && !monitor:
			sub.fds.Set(0, vos.DevNull())
		}
		if w != nil {
			sub.fds.Set(1, w)
			if stage.stderr {
				sub.fds.Dup(1, 2)
			}
		}

		stmt := stage.stmt
		pid, err := e.fork(sub, &vos.ProcAttr{
			Dir:        e.dir,
			Pgid:       pgid,
			Foreground: monitor && !background,
		}, func(ctx context.Context, sub *Env) ExitStatus {
			return sub.finish(ctx, sub.stmt(ctx, stmt))
		})
		if err != nil {
			if r != nil {
				r.Close()
			}
			e.signalProcs(j, syscall.SIGKILL)
			return nil, err
		}
		prev = r
		if monitor && pgid == vos.GroupNew {
			pgid = pid
			j.Pgid = pid
		}
		j.Procs = append(j.Procs, &Proc{Pid: pid, State: vos.ProcRunning})
	}
	return j, nil
}

// pipeline runs a multi-stage pipeline, or any command list in the
// background.
func (e *Env) pipeline(ctx context.Context, st *syntax.Stmt, stages []pipeStage) Divert {
	src := e.source(st)
	j, err := e.launch(stages, src, st.Background)
	if err != nil {
		e.diag(fmt.Errorf("fork: %w", err))
		e.status = StatusNoExec
		return noDivert
	}

	if st.Background {
		e.jobs.Launched(e.jobs.Add(j))
		e.lastBg = j.Procs[len(j.Procs)-1].Pid
		if e.opts.Interactive && !e.subshell {
			fmt.Fprintf(e.Stderr(), "[%d] %d\n", j.ID, e.lastBg)
		}
		e.status = StatusSuccess
		return noDivert
	}

	e.track(j)
	return e.waitForeground(ctx, j)
}

// source renders a statement for job listings.
func (e *Env) source(st *syntax.Stmt) string {
	cp := *st
	cp.Background = false
	return printNode(&cp)
}
