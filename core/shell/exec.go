package shell

import (
	"context"
	"errors"
	"fmt"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/logger"
	"github.com/josephlewis42/vsh/core/vos"
)

// Run executes the commands of a parsed program. An interactive shell
// reports job state changes after each command. Run stops early when the
// shell exits or, interactively, when a command is interrupted.
func (e *Env) Run(ctx context.Context, f *syntax.File) ExitStatus {
	if e.exited {
		return e.status
	}
	for _, st := range f.Stmts {
		d := e.stmt(ctx, st)
		if e.opts.Interactive && !e.subshell {
			e.ReportJobs(e.Stderr())
		}
		switch d.Kind {
		case DivertAbort:
			e.noExitTrap = true
			e.exited = true
			return e.status
		case DivertExit:
			e.exited = true
			return e.status
		case DivertInterrupt:
			return e.status
		}
	}
	return e.status
}

// RunString parses and runs src. A syntax error sets status 2 and ends a
// non-interactive shell.
func (e *Env) RunString(ctx context.Context, src, name string) (ExitStatus, error) {
	if e.opts.Verbose {
		fmt.Fprint(e.Stderr(), src)
	}
	f, err := e.Parse(src, name)
	if err != nil {
		e.diag(err)
		e.status = StatusError
		if !e.opts.Interactive {
			e.exited = true
		}
		return e.status, err
	}
	return e.Run(ctx, f), nil
}

// Exit ends the shell: the EXIT trap runs unless the shell was killed or
// replaced by exec. The final status is returned.
func (e *Env) Exit(ctx context.Context) ExitStatus {
	if !e.noExitTrap {
		e.RunExitTrap(ctx)
	}
	e.exited = true
	if !e.subshell {
		e.record(logger.EventExit, map[string]interface{}{"status": int(e.status)})
	}
	return e.status
}

func (e *Env) stmts(ctx context.Context, stmts []*syntax.Stmt) Divert {
	for _, st := range stmts {
		if d := e.stmt(ctx, st); d.Diverted() {
			return d
		}
	}
	return noDivert
}

func (e *Env) stmt(ctx context.Context, st *syntax.Stmt) Divert {
	if e.opts.NoExec && !e.opts.Interactive {
		return noDivert
	}

	if st.Background {
		cp := *st
		cp.Background = false
		return e.pipeline(ctx, st, flattenPipeline(&cp, false, nil))
	}

	if st.Negated {
		cp := *st
		cp.Negated = false
		e.noErrExit++
		d := e.stmt(ctx, &cp)
		e.noErrExit--
		if d.Kind == DivertNone || d.Kind == DivertBreak || d.Kind == DivertContinue {
			if e.status == StatusSuccess {
				e.status = StatusFailure
			} else {
				e.status = StatusSuccess
			}
		}
		return d
	}

	if stages := flattenPipeline(st, false, nil); len(stages) > 1 {
		if d := e.pipeline(ctx, st, stages); d.Diverted() {
			return d
		}
		return e.after(ctx)
	}

	switch cmd := st.Cmd.(type) {
	case nil:
		return e.assignOnly(ctx, st, nil)
	case *syntax.CallExpr:
		return e.simple(ctx, st, cmd)
	}

	r, err := e.redirect(ctx, st.Redirs)
	if err != nil {
		if d, fatal := e.fatalError(err); fatal {
			return d
		}
		e.status = StatusFailure
		return e.after(ctx)
	}
	defer r.Restore()
	return e.compound(ctx, st.Cmd)
}

// after runs the checks due at the end of every command: pending signals
// and errexit.
func (e *Env) after(ctx context.Context) Divert {
	if d := e.checkpoint(ctx); d.Diverted() {
		return d
	}
	return e.errExit()
}

// checkpoint blocks while the shell process is stopped, then handles child
// events and runs the traps of signals caught since the last checkpoint.
func (e *Env) checkpoint(ctx context.Context) Divert {
	if err := e.sys.Checkpoint(ctx, e.pid); err != nil {
		return e.terminated(err)
	}
	e.drainMailbox()
	return e.runPendingTraps(ctx)
}

func (e *Env) errExit() Divert {
	if e.opts.ErrExit && e.noErrExit == 0 && e.status != StatusSuccess {
		return Divert{Kind: DivertExit}
	}
	return noDivert
}

// fatalError handles errors that may end the shell: termination of the
// shell process while it waited is always fatal. Other errors are printed.
func (e *Env) fatalError(err error) (Divert, bool) {
	var te *vos.TerminatedError
	if errors.As(err, &te) || errors.Is(err, context.Canceled) {
		return e.terminated(err), true
	}
	e.diag(err)
	return noDivert, false
}

// expansionFailed reports an expansion error. It sets status 1 and ends
// the shell unless it is interactive.
func (e *Env) expansionFailed(err error) Divert {
	if d, fatal := e.fatalError(err); fatal {
		return d
	}
	e.status = StatusFailure
	if !e.opts.Interactive || e.subshell {
		return Divert{Kind: DivertExit}
	}
	return noDivert
}

// resultDivert applies the result of a builtin.
func (e *Env) resultDivert(ctx context.Context, res Result) Divert {
	e.status = res.Status
	if res.Divert.Diverted() {
		return res.Divert
	}
	return e.after(ctx)
}
