package shell

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/syntax"
)

const (
	maxFuncDepth   = 1000
	maxSourceDepth = 100
)

// callFunc runs a function body with its own positional parameters and
// local variable scope. return ends the call.
func (e *Env) callFunc(ctx context.Context, name string, body *syntax.Stmt, params []string) Divert {
	if e.funcDepth >= maxFuncDepth {
		e.diag(fmt.Errorf("%s: maximum function nesting level exceeded", name))
		e.status = StatusError
		return noDivert
	}

	savedParams, savedLoops := e.params, e.loopDepth
	e.params = params
	e.loopDepth = 0
	e.vars.PushFrame()
	e.funcDepth++
	defer func() {
		e.funcDepth--
		e.vars.PopFrame()
		e.params, e.loopDepth = savedParams, savedLoops
	}()

	d := e.stmt(ctx, body)
	if d.Kind == DivertReturn {
		return noDivert
	}
	return d
}

// Eval parses src and runs it in the current shell, as eval does.
func (e *Env) Eval(ctx context.Context, src string) Result {
	f, err := e.Parse(src, "eval")
	if err != nil {
		e.diag(err)
		return e.Fatal(StatusError)
	}
	e.status = StatusSuccess
	d := e.stmts(ctx, f.Stmts)
	return Result{Status: e.status, Divert: d}
}

// findSource locates the file named by the . builtin: names without a
// slash are searched in $PATH, then in the working directory.
func (e *Env) findSource(name string) (string, error) {
	if strings.Contains(name, "/") {
		return e.Abs(name), nil
	}
	for _, dir := range strings.Split(e.vars.Value(EnvPath), ":") {
		if dir == "" {
			dir = "."
		}
		candidate := e.Abs(path.Join(dir, name))
		if info, err := e.Fs().Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	candidate := e.Abs(name)
	if _, err := e.Fs().Stat(candidate); err != nil {
		return "", fmt.Errorf("%s: not found", name)
	}
	return candidate, nil
}

// Source runs the commands of a file in the current shell, as . does.
// With args the positional parameters are replaced for the duration.
func (e *Env) Source(ctx context.Context, name string, args []string) Result {
	if e.sourceDepth >= maxSourceDepth {
		e.diag(fmt.Errorf("%s: maximum nesting level exceeded", name))
		return e.Fatal(StatusError)
	}
	file, err := e.findSource(name)
	if err != nil {
		e.diag(err)
		return e.Fatal(StatusFailure)
	}
	data, err := afero.ReadFile(e.Fs(), file)
	if err != nil {
		e.diag(err)
		return e.Fatal(StatusFailure)
	}
	f, err := e.Parse(string(data), name)
	if err != nil {
		e.diag(err)
		return e.Fatal(StatusError)
	}

	if len(args) > 0 {
		saved := e.params
		e.params = append([]string(nil), args...)
		defer func() { e.params = saved }()
	}
	e.sourceDepth++
	defer func() { e.sourceDepth-- }()

	e.status = StatusSuccess
	d := e.stmts(ctx, f.Stmts)
	if d.Kind == DivertReturn {
		d = noDivert
	}
	return Result{Status: e.status, Divert: d}
}
