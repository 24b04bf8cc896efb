package shell

import (
	"context"
	"fmt"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/vos"
)

func (e *Env) compound(ctx context.Context, cmd syntax.Command) Divert {
	switch c := cmd.(type) {
	case *syntax.Block:
		return e.stmts(ctx, c.Stmts)

	case *syntax.Subshell:
		return e.subshellCmd(ctx, c)

	case *syntax.BinaryCmd:
		e.noErrExit++
		d := e.stmt(ctx, c.X)
		e.noErrExit--
		if d.Diverted() {
			return d
		}
		if (c.Op == syntax.AndStmt) == (e.status == StatusSuccess) {
			return e.stmt(ctx, c.Y)
		}
		return noDivert

	case *syntax.IfClause:
		return e.ifClause(ctx, c)

	case *syntax.WhileClause:
		return e.whileClause(ctx, c)

	case *syntax.ForClause:
		return e.forClause(ctx, c)

	case *syntax.CaseClause:
		return e.caseClause(ctx, c)

	case *syntax.FuncDecl:
		e.SetFunc(c.Name.Value, c.Body)
		e.status = StatusSuccess
		return noDivert

	case *syntax.ArithmCmd:
		n, err := e.arith(ctx, c.X)
		if err != nil {
			return e.expansionFailed(err)
		}
		e.status = boolStatus(n != 0)
		return e.after(ctx)

	case *syntax.LetClause:
		n := 0
		for _, expr := range c.Exprs {
			var err error
			if n, err = e.arith(ctx, expr); err != nil {
				return e.expansionFailed(err)
			}
		}
		e.status = boolStatus(n != 0)
		return e.after(ctx)

	case *syntax.DeclClause:
		return e.declClause(ctx, c)

	case *syntax.TimeClause:
		start := time.Now()
		d := noDivert
		if c.Stmt != nil {
			d = e.stmt(ctx, c.Stmt)
		}
		elapsed := time.Since(start)
		fmt.Fprintf(e.Stderr(), "\nreal\t%dm%.3fs\n", int(elapsed.Minutes()), elapsed.Seconds()-60*float64(int(elapsed.Minutes())))
		return d
	}

	e.diag(fmt.Errorf("unsupported command %T", cmd))
	e.status = StatusError
	return e.after(ctx)
}

func boolStatus(ok bool) ExitStatus {
	if ok {
		return StatusSuccess
	}
	return StatusFailure
}

// subshellCmd runs ( list ) in a child process. With job control on the
// child gets its own process group so it can be stopped.
func (e *Env) subshellCmd(ctx context.Context, c *syntax.Subshell) Divert {
	monitor := e.opts.Monitor && !e.subshell
	attr := &vos.ProcAttr{Dir: e.dir, Pgid: vos.GroupInherit}
	if monitor {
		attr.Pgid = vos.GroupNew
		attr.Foreground = true
	}
	pid, err := e.fork(e.Subshell(), attr, runSubshell(c.Stmts))
	if err != nil {
		e.diag(fmt.Errorf("fork: %w", err))
		e.status = StatusNoExec
		return e.after(ctx)
	}
	j := &Job{Cmd: printNode(c), Procs: []*Proc{{Pid: pid, State: vos.ProcRunning}}}
	if monitor {
		j.Pgid = pid
	}
	e.track(j)
	if d := e.waitForeground(ctx, j); d.Diverted() {
		return d
	}
	return e.after(ctx)
}

// condition runs the condition of if, while or until, where errexit is
// suspended.
func (e *Env) condition(ctx context.Context, stmts []*syntax.Stmt) Divert {
	e.noErrExit++
	defer func() { e.noErrExit-- }()
	return e.stmts(ctx, stmts)
}

func (e *Env) ifClause(ctx context.Context, c *syntax.IfClause) Divert {
	for clause := c; clause != nil; clause = clause.Else {
		if len(clause.Cond) == 0 {
			return e.stmts(ctx, clause.Then)
		}
		if d := e.condition(ctx, clause.Cond); d.Diverted() {
			return d
		}
		if e.status == StatusSuccess {
			return e.stmts(ctx, clause.Then)
		}
	}
	e.status = StatusSuccess
	return noDivert
}

// loopControl consumes a break or continue aimed at the innermost loop.
// It reports whether the loop must stop and what to pass to the enclosing
// construct.
func loopControl(d Divert) (stop bool, up Divert) {
	switch d.Kind {
	case DivertNone:
		return false, noDivert
	case DivertBreak:
		if d.Count > 1 {
			return true, Divert{Kind: DivertBreak, Count: d.Count - 1}
		}
		return true, noDivert
	case DivertContinue:
		if d.Count > 1 {
			return true, Divert{Kind: DivertContinue, Count: d.Count - 1}
		}
		return false, noDivert
	default:
		return true, d
	}
}

func (e *Env) whileClause(ctx context.Context, c *syntax.WhileClause) Divert {
	e.loopDepth++
	defer func() { e.loopDepth-- }()

	status := StatusSuccess
	for {
		d := e.condition(ctx, c.Cond)
		if stop, up := loopControl(d); stop {
			return up
		} else if d.Kind == DivertContinue {
			continue
		}
		if (e.status == StatusSuccess) == c.Until {
			break
		}
		d = e.stmts(ctx, c.Do)
		status = e.status
		if stop, up := loopControl(d); stop {
			return up
		}
	}
	e.status = status
	return noDivert
}

func (e *Env) forClause(ctx context.Context, c *syntax.ForClause) Divert {
	if c.Select {
		e.diag(fmt.Errorf("select: not supported"))
		e.status = StatusError
		return e.after(ctx)
	}

	e.loopDepth++
	defer func() { e.loopDepth-- }()

	switch loop := c.Loop.(type) {
	case *syntax.WordIter:
		items := e.params
		if loop.InPos.IsValid() {
			var err error
			if items, err = e.ExpandFields(ctx, loop.Items...); err != nil {
				return e.expansionFailed(err)
			}
		} else {
			items = append([]string(nil), items...)
		}
		e.status = StatusSuccess
		for _, item := range items {
			if err := e.SetVar(loop.Name.Value, item); err != nil {
				e.diag(err)
				return e.resultDivert(ctx, e.Fatal(StatusFailure))
			}
			if stop, up := loopControl(e.stmts(ctx, c.Do)); stop {
				return up
			}
		}
		return noDivert

	case *syntax.CStyleLoop:
		if loop.Init != nil {
			if _, err := e.arith(ctx, loop.Init); err != nil {
				return e.expansionFailed(err)
			}
		}
		status := StatusSuccess
		for {
			if loop.Cond != nil {
				n, err := e.arith(ctx, loop.Cond)
				if err != nil {
					return e.expansionFailed(err)
				}
				if n == 0 {
					break
				}
			}
			d := e.stmts(ctx, c.Do)
			status = e.status
			if stop, up := loopControl(d); stop {
				return up
			}
			if loop.Post != nil {
				if _, err := e.arith(ctx, loop.Post); err != nil {
					return e.expansionFailed(err)
				}
			}
		}
		e.status = status
		return noDivert
	}
	e.diag(fmt.Errorf("unsupported loop %T", c.Loop))
	e.status = StatusError
	return noDivert
}

func (e *Env) caseClause(ctx context.Context, c *syntax.CaseClause) Divert {
	word, err := e.ExpandWord(ctx, c.Word)
	if err != nil {
		return e.expansionFailed(err)
	}
	e.status = StatusSuccess
	matched := false
	for _, item := range c.Items {
		if !matched {
			for _, w := range item.Patterns {
				pat, err := e.ExpandPattern(ctx, w)
				if err != nil {
					return e.expansionFailed(err)
				}
				if ok, err := MatchPattern(pat, word); err == nil && ok {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		if d := e.stmts(ctx, item.Stmts); d.Diverted() {
			return d
		}
		switch item.Op {
		case syntax.Fallthrough:
		case syntax.Resume, syntax.ResumeKorn:
			matched = false
		default:
			return noDivert
		}
	}
	return noDivert
}

// declClause runs bash declaration commands like export a=b or local x by
// passing their expanded arguments to the builtin of the same name.
func (e *Env) declClause(ctx context.Context, c *syntax.DeclClause) Divert {
	args := []string{c.Variant.Value}
	for _, as := range c.Args {
		switch {
		case as.Naked && as.Name != nil:
			args = append(args, as.Name.Value)
		case as.Naked:
			fields, err := e.ExpandFields(ctx, as.Value)
			if err != nil {
				return e.expansionFailed(err)
			}
			args = append(args, fields...)
		default:
			val, err := e.expandAssign(ctx, as.Value)
			if err != nil {
				return e.expansionFailed(err)
			}
			op := "="
			if as.Append {
				op = "+="
			}
			args = append(args, as.Name.Value+op+val)
		}
	}
	b, _, ok := e.registry.Lookup(args[0])
	if !ok {
		e.startFailed(args, &ExecError{Kind: NotFound, Name: args[0]})
		return e.after(ctx)
	}
	e.xtrace(nil, args)
	res := b.Main(ctx, e, args)
	return e.resultDivert(ctx, res)
}
