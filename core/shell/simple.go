package shell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/logger"
	"github.com/josephlewis42/vsh/core/vos"
)

// assignment is an expanded prefix assignment such as a=b.
type assignment struct {
	name   string
	value  string
	append bool
	// index is set for a[i]=v.
	index *int
	// array is set for a=(x y).
	array  []string
	isList bool
}

func (a assignment) String() string {
	op := "="
	if a.append {
		op = "+="
	}
	if a.isList {
		quoted := make([]string, len(a.array))
		for i, v := range a.array {
			quoted[i] = quote(v)
		}
		return a.name + op + "(" + strings.Join(quoted, " ") + ")"
	}
	name := a.name
	if a.index != nil {
		name = fmt.Sprintf("%s[%d]", name, *a.index)
	}
	return name + op + quote(a.value)
}

func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return s
	}
	return q
}

func (e *Env) expandAssigns(ctx context.Context, assigns []*syntax.Assign) ([]assignment, error) {
	out := make([]assignment, 0, len(assigns))
	for _, as := range assigns {
		a := assignment{name: as.Name.Value, append: as.Append}
		if as.Index != nil {
			i, err := e.arith(ctx, as.Index)
			if err != nil {
				return nil, err
			}
			a.index = &i
		}
		switch {
		case as.Array != nil:
			a.isList = true
			for _, elem := range as.Array.Elems {
				fields, err := e.ExpandFields(ctx, elem.Value)
				if err != nil {
					return nil, err
				}
				a.array = append(a.array, fields...)
			}
		case as.Value != nil:
			v, err := e.expandAssign(ctx, as.Value)
			if err != nil {
				return nil, err
			}
			a.value = v
		}
		out = append(out, a)
	}
	return out, nil
}

// assign performs one assignment on the shell variables.
func (e *Env) assign(a assignment) error {
	cur, _ := e.vars.Get(a.name)
	var err error
	switch {
	case a.isList:
		vals := a.array
		if a.append {
			vals = append(append([]string(nil), cur.Values()...), vals...)
		}
		err = e.vars.SetArray(a.name, vals)
	case a.index != nil:
		val := a.value
		if a.append {
			if vals := cur.Values(); *a.index < len(vals) {
				val = vals[*a.index] + val
			}
		}
		err = e.vars.SetIndex(a.name, *a.index, val)
	default:
		val := a.value
		if a.append {
			val = cur.String() + val
		}
		if cur.Kind == VarArray {
			err = e.vars.SetIndex(a.name, 0, val)
		} else {
			err = e.vars.Set(a.name, val)
		}
	}
	if err != nil {
		return err
	}
	if e.opts.AllExport {
		return e.vars.Export(a.name, true)
	}
	return nil
}

func (e *Env) applyAssigns(as []assignment) error {
	for _, a := range as {
		if err := e.assign(a); err != nil {
			return err
		}
	}
	return nil
}

// tempAssigns applies exported assignments for the duration of one
// command. The returned function restores the previous values.
func (e *Env) tempAssigns(as []assignment) (func(), error) {
	type saved struct {
		name    string
		v       Variable
		existed bool
	}
	var undo []saved
	restore := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			e.vars.restore(undo[i].name, undo[i].v, undo[i].existed)
		}
	}
	for _, a := range as {
		v, ok := e.vars.Get(a.name)
		undo = append(undo, saved{name: a.name, v: *v.clone(), existed: ok})
		if err := e.assign(a); err != nil {
			restore()
			return nil, err
		}
		e.vars.Export(a.name, true)
	}
	return restore, nil
}

// childEnviron is the environment of an external command: the exported
// variables with the prefix assignments on top.
func (e *Env) childEnviron(as []assignment) ([]string, error) {
	if len(as) == 0 {
		return e.vars.Environ(), nil
	}
	vars := e.vars.Clone()
	for _, a := range as {
		var err error
		switch {
		case a.isList:
			err = vars.SetArray(a.name, a.array)
		case a.append:
			err = vars.Set(a.name, vars.Value(a.name)+a.value)
		default:
			err = vars.Set(a.name, a.value)
		}
		if err != nil {
			return nil, err
		}
		vars.Export(a.name, true)
	}
	return vars.Environ(), nil
}

// xtrace prints a command about to run when the xtrace option is on.
func (e *Env) xtrace(as []assignment, args []string) {
	if !e.opts.XTrace {
		return
	}
	parts := make([]string, 0, len(as)+len(args))
	for _, a := range as {
		parts = append(parts, a.String())
	}
	for _, arg := range args {
		parts = append(parts, quote(arg))
	}
	fmt.Fprintf(e.Stderr(), "%s%s\n", e.vars.Value(EnvPS4), strings.Join(parts, " "))
}

// simple runs a simple command: the words are expanded, then the name is
// resolved as a special builtin, function, builtin or file, in that order.
func (e *Env) simple(ctx context.Context, st *syntax.Stmt, call *syntax.CallExpr) Divert {
	e.substRan = false
	args, err := e.ExpandFields(ctx, call.Args...)
	if err != nil {
		return e.expansionFailed(err)
	}
	if len(args) == 0 {
		return e.assignOnly(ctx, st, call)
	}

	name := args[0]
	if !strings.Contains(name, "/") {
		if b, kind, ok := e.registry.Lookup(name); ok && kind == Special {
			return e.runBuiltin(ctx, st, call, args, b, true)
		}
		if body, ok := e.funcs[name]; ok {
			return e.runFunction(ctx, st, call, args, body)
		}
		if b, _, ok := e.registry.Lookup(name); ok {
			return e.runBuiltin(ctx, st, call, args, b, false)
		}
	}
	return e.runExternal(ctx, st, call, args)
}

// assignOnly runs a command without a name: the assignments are permanent
// and the redirections are performed and undone.
func (e *Env) assignOnly(ctx context.Context, st *syntax.Stmt, call *syntax.CallExpr) Divert {
	r, err := e.redirect(ctx, st.Redirs)
	if err != nil {
		if d, fatal := e.fatalError(err); fatal {
			return d
		}
		e.status = StatusFailure
		return e.after(ctx)
	}
	defer r.Restore()

	var assigns []*syntax.Assign
	if call != nil {
		assigns = call.Assigns
	}
	as, err := e.expandAssigns(ctx, assigns)
	if err != nil {
		return e.expansionFailed(err)
	}
	e.xtrace(as, nil)
	if err := e.applyAssigns(as); err != nil {
		e.diag(err)
		res := e.Fatal(StatusFailure)
		return e.resultDivert(ctx, res)
	}

	e.status = StatusSuccess
	if e.substRan {
		e.status = e.substStatus
	}
	return e.after(ctx)
}

func (e *Env) runBuiltin(ctx context.Context, st *syntax.Stmt, call *syntax.CallExpr, args []string, b Builtin, special bool) Divert {
	fail := func(err error) Divert {
		if d, fatal := e.fatalError(err); fatal {
			return d
		}
		if special {
			return e.resultDivert(ctx, e.Fatal(StatusFailure))
		}
		e.status = StatusFailure
		return e.after(ctx)
	}

	r, err := e.redirect(ctx, st.Redirs)
	if err != nil {
		return fail(err)
	}
	defer r.Restore()
	as, err := e.expandAssigns(ctx, call.Assigns)
	if err != nil {
		r.Restore()
		return e.expansionFailed(err)
	}
	e.xtrace(as, args)

	restore := func() {}
	if special {
		err = e.applyAssigns(as)
	} else {
		restore, err = e.tempAssigns(as)
	}
	if err != nil {
		r.Restore()
		return fail(err)
	}

	e.record(logger.EventRunCommand, map[string]interface{}{"command": args, "resolved": "builtin"})
	res := b.Main(ctx, e, args)
	restore()
	if res.KeepRedirections {
		r.Keep()
	} else {
		r.Restore()
	}
	return e.resultDivert(ctx, res)
}

func (e *Env) runFunction(ctx context.Context, st *syntax.Stmt, call *syntax.CallExpr, args []string, body *syntax.Stmt) Divert {
	r, err := e.redirect(ctx, st.Redirs)
	if err != nil {
		if d, fatal := e.fatalError(err); fatal {
			return d
		}
		e.status = StatusFailure
		return e.after(ctx)
	}
	defer r.Restore()

	as, err := e.expandAssigns(ctx, call.Assigns)
	if err != nil {
		return e.expansionFailed(err)
	}
	e.xtrace(as, args)
	restore, err := e.tempAssigns(as)
	if err != nil {
		e.diag(err)
		e.status = StatusFailure
		return e.after(ctx)
	}

	e.record(logger.EventRunCommand, map[string]interface{}{"command": args, "resolved": "function"})
	d := e.callFunc(ctx, args[0], body, args[1:])
	restore()
	if d.Diverted() {
		return d
	}
	return e.after(ctx)
}

func (e *Env) runExternal(ctx context.Context, st *syntax.Stmt, call *syntax.CallExpr, args []string) Divert {
	r, err := e.redirect(ctx, st.Redirs)
	if err != nil {
		if d, fatal := e.fatalError(err); fatal {
			return d
		}
		e.status = StatusFailure
		return e.after(ctx)
	}
	defer r.Restore()

	as, err := e.expandAssigns(ctx, call.Assigns)
	if err != nil {
		return e.expansionFailed(err)
	}
	e.xtrace(as, args)
	environ, err := e.childEnviron(as)
	if err != nil {
		e.diag(err)
		e.status = StatusFailure
		return e.after(ctx)
	}

	if d := e.execute(ctx, args, environ); d.Diverted() {
		return d
	}
	return e.after(ctx)
}

// lookPath resolves a command name through $PATH.
func (e *Env) lookPath(name string) (string, error) {
	p, err := vos.LookPath(e.Fs(), e.dir, e.vars.Value(EnvPath), name)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, fs.ErrPermission):
		return "", &ExecError{Kind: NotExecutable, Name: name}
	default:
		return "", &ExecError{Kind: NotFound, Name: name}
	}
}

// execute starts an external command in the foreground and waits for it.
func (e *Env) execute(ctx context.Context, args []string, environ []string) Divert {
	pid, err := e.start(args, environ)
	if err != nil {
		e.startFailed(args, err)
		return noDivert
	}
	return e.waitCommand(ctx, args, pid)
}

func (e *Env) startFailed(args []string, err error) {
	var ee *ExecError
	if !errors.As(err, &ee) {
		ee = &ExecError{Kind: Spawn, Name: args[0], Err: err}
	}
	e.diag(ee)
	e.status = ee.Status()
	e.record(logger.EventUnknownCommand, map[string]interface{}{
		"command": args,
		"status":  int(e.status),
		"error":   ee,
	})
}

func (e *Env) waitCommand(ctx context.Context, args []string, pid int) Divert {
	j := &Job{Cmd: strings.Join(args, " "), PipeFail: e.opts.PipeFail, Procs: []*Proc{{Pid: pid, State: vos.ProcRunning}}}
	if e.opts.Monitor && !e.subshell {
		j.Pgid = pid
	}
	e.track(j)
	return e.waitForeground(ctx, j)
}

// start resolves and starts an external command.
func (e *Env) start(args []string, environ []string) (int, error) {
	path, err := e.lookPath(args[0])
	if err != nil {
		return 0, err
	}
	e.record(logger.EventRunCommand, map[string]interface{}{"command": args, "resolved": path})

	monitor := e.opts.Monitor && !e.subshell
	for {
		attr := &vos.ProcAttr{
			Dir:     e.dir,
			Env:     environ,
			Files:   e.fds.ChildFiles(),
			Pgid:    vos.GroupInherit,
			Ignored: e.childIgnored(),
			Umask:   e.umask,
		}
		if monitor {
			attr.Pgid = vos.GroupNew
			attr.Foreground = true
		}
		pid, err := e.sys.StartProcess(e.pid, path, args, attr)
		switch {
		case err == nil:
			return pid, nil
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.ENOENT):
			return 0, &ExecError{Kind: NotFound, Name: args[0], Err: err}
		case errors.Is(err, syscall.ENOEXEC), errors.Is(err, syscall.EACCES), errors.Is(err, fs.ErrPermission):
			return 0, &ExecError{Kind: NotExecutable, Name: args[0], Err: err}
		default:
			return 0, &ExecError{Kind: Spawn, Name: args[0], Err: err}
		}
	}
}

// Exec replaces the shell with an external command: it runs the command,
// then ends the shell with its status and without running the EXIT trap.
func (e *Env) Exec(ctx context.Context, args []string) Result {
	pid, err := e.start(args, e.vars.Environ())
	if err != nil {
		e.startFailed(args, err)
		return e.Fatal(e.status)
	}
	if d := e.waitCommand(ctx, args, pid); d.Diverted() {
		return Result{Status: e.status, Divert: d}
	}
	e.noExitTrap = true
	return Result{Status: e.status, Divert: Divert{Kind: DivertAbort}}
}

// RunCommand runs args as a builtin or external command, skipping
// functions, as the command builtin does.
func (e *Env) RunCommand(ctx context.Context, args []string) Result {
	if len(args) == 0 {
		return Status(StatusSuccess)
	}
	if !strings.Contains(args[0], "/") {
		if b, _, ok := e.registry.Lookup(args[0]); ok {
			e.record(logger.EventRunCommand, map[string]interface{}{"command": args, "resolved": "builtin"})
			return b.Main(ctx, e, args)
		}
	}
	d := e.execute(ctx, args, e.vars.Environ())
	return Result{Status: e.status, Divert: d}
}

// CommandType classifies what a command name resolves to.
type CommandType int

const (
	CommandNotFound CommandType = iota
	CommandKeyword
	CommandSpecialBuiltin
	CommandFunction
	CommandBuiltin
	CommandFile
)

func (t CommandType) String() string {
	switch t {
	case CommandKeyword:
		return "shell keyword"
	case CommandSpecialBuiltin:
		return "special shell builtin"
	case CommandFunction:
		return "function"
	case CommandBuiltin:
		return "shell builtin"
	case CommandFile:
		return "file"
	default:
		return "not found"
	}
}

var keywords = map[string]bool{
	"!": true, "{": true, "}": true, "case": true, "do": true, "done": true,
	"elif": true, "else": true, "esac": true, "fi": true, "for": true,
	"if": true, "in": true, "then": true, "until": true, "while": true,
}

// LookupCommand resolves name the way the shell would when running it.
// For files the resolved path is returned too.
func (e *Env) LookupCommand(name string) (CommandType, string) {
	if !strings.Contains(name, "/") {
		if keywords[name] {
			return CommandKeyword, ""
		}
		if _, kind, ok := e.registry.Lookup(name); ok && kind == Special {
			return CommandSpecialBuiltin, ""
		}
		if _, ok := e.funcs[name]; ok {
			return CommandFunction, ""
		}
		if _, _, ok := e.registry.Lookup(name); ok {
			return CommandBuiltin, ""
		}
	}
	p, err := e.lookPath(name)
	if err != nil {
		return CommandNotFound, ""
	}
	return CommandFile, vos.Abs(e.dir, p)
}
