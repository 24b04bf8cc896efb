package shell

import (
	"context"
	"io"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// arithEnviron exposes the shell variables to the arithmetic evaluator.
type arithEnviron struct {
	e *Env
}

var _ expand.WriteEnviron = arithEnviron{}

func (a arithEnviron) Get(name string) expand.Variable {
	switch name {
	case "@", "*":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: a.e.params}
	}
	if _, ok := a.e.special(name); ok {
		s, _ := a.e.Get(name)
		return expand.Variable{Set: true, Kind: expand.String, Str: s}
	}
	v, ok := a.e.vars.Get(name)
	if !ok {
		return expand.Variable{}
	}
	return toExpandVar(v)
}

func toExpandVar(v Variable) expand.Variable {
	out := expand.Variable{Exported: v.Exported, ReadOnly: v.ReadOnly}
	switch v.Kind {
	case VarScalar:
		out.Set, out.Kind, out.Str = true, expand.String, v.Str
	case VarArray:
		out.Set, out.Kind, out.List = true, expand.Indexed, v.List
	}
	return out
}

func (a arithEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	for _, name := range a.e.vars.Names() {
		v, _ := a.e.vars.Get(name)
		if !fn(name, toExpandVar(v)) {
			return
		}
	}
}

func (a arithEnviron) Set(name string, vr expand.Variable) error {
	if !vr.IsSet() {
		return a.e.vars.Unset(name)
	}
	return a.e.SetVar(name, vr.String())
}

// arith evaluates an arithmetic expression. Operands may contain parameter
// expansions and command substitutions; assignments update shell variables.
func (e *Env) arith(ctx context.Context, expr syntax.ArithmExpr) (int, error) {
	cfg := &expand.Config{
		Env:     arithEnviron{e},
		NoUnset: e.opts.NoUnset,
		CmdSubst: func(w io.Writer, cs *syntax.CmdSubst) error {
			out, err := e.cmdSubst(ctx, cs)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, out)
			return err
		},
	}
	n, err := expand.Arithm(cfg, expr)
	if err != nil {
		if _, ok := err.(*ExpansionError); ok {
			return 0, err
		}
		return 0, &ExpansionError{Pos: expr.Pos(), Msg: "arithmetic", Err: err}
	}
	return n, nil
}
