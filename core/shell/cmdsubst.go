package shell

import (
	"context"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/vos"
)

// cmdSubst runs the body of $(...) in a subshell and returns its output
// without the final newline. The status is kept for assignment-only
// commands.
func (e *Env) cmdSubst(ctx context.Context, cs *syntax.CmdSubst) (string, error) {
	out := vos.NewBuffer()
	sub := e.Subshell()
	sub.fds.Set(1, out)

	pid, err := e.fork(sub, &vos.ProcAttr{Dir: e.dir, Pgid: vos.GroupInherit}, runSubshell(cs.Stmts))
	if err != nil {
		return "", &ExpansionError{Pos: cs.Pos(), Msg: "command substitution", Err: err}
	}
	j := &Job{Cmd: printNode(cs), Procs: []*Proc{{Pid: pid, State: vos.ProcRunning}}}
	e.track(j)
	_, err = e.waitJob(ctx, j, false)
	e.untrack(j)
	if err != nil {
		e.terminated(err)
		return "", err
	}

	e.substStatus = j.Status()
	e.substRan = true
	return strings.TrimSuffix(out.String(), "\n"), nil
}
