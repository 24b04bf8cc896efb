package shell

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"mvdan.cc/sh/v3/pattern"
	"mvdan.cc/sh/v3/syntax"
)

// paramValue is the result of looking up a parameter.
type paramValue struct {
	values []string
	// list is set for $@, $* and ${a[@]}, whose values are separate fields.
	list bool
	// star is set for $* and ${a[*]}, which join into one word when quoted.
	star bool
	set  bool
}

func (v paramValue) String(e *Env) string {
	if !v.list {
		if len(v.values) == 0 {
			return ""
		}
		return v.values[0]
	}
	return strings.Join(v.values, e.joinSep())
}

// joinSep is the first character of IFS, used to join "$*".
func (e *Env) joinSep() string {
	ifs, ok := e.Get(EnvIFS)
	if !ok {
		return " "
	}
	if ifs == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(ifs)
	return string(r)
}

// lookupParam resolves the parameter of a ${...} expansion, including
// array subscripts.
func (x *expander) lookupParam(pe *syntax.ParamExp) (paramValue, error) {
	e := x.env
	name := pe.Param.Value

	if pe.Index != nil {
		v, _ := e.vars.Get(name)
		if w, ok := pe.Index.(*syntax.Word); ok {
			switch w.Lit() {
			case "@", "*":
				vals := v.Values()
				return paramValue{values: vals, list: true, star: w.Lit() == "*", set: len(vals) > 0}, nil
			}
		}
		i, err := e.arith(x.ctx, pe.Index)
		if err != nil {
			return paramValue{}, err
		}
		vals := v.Values()
		if i < 0 {
			i += len(vals)
		}
		if i < 0 || i >= len(vals) {
			return paramValue{}, nil
		}
		return paramValue{values: []string{vals[i]}, set: true}, nil
	}

	switch name {
	case "@", "*":
		return paramValue{values: e.params, list: true, star: name == "*", set: true}, nil
	}
	if vals, ok := e.special(name); ok {
		return paramValue{values: vals, set: true}, nil
	}
	v, ok := e.vars.Get(name)
	if !ok || !v.IsSet() {
		return paramValue{}, nil
	}
	return paramValue{values: []string{v.String()}, set: true}, nil
}

// emit appends a parameter value, keeping list values as separate fields.
func (x *expander) emit(v paramValue, quoted bool) {
	if !v.list {
		x.text(v.String(x.env), quoted)
		return
	}
	if quoted && v.star {
		x.text(strings.Join(v.values, x.env.joinSep()), true)
		return
	}
	if quoted && x.atValues >= 0 {
		x.atValues += len(v.values)
	}
	for i, s := range v.values {
		if i > 0 {
			x.breakField()
		}
		x.text(s, quoted)
	}
}

func (x *expander) paramExp(pe *syntax.ParamExp, quoted bool) error {
	e := x.env
	name := pe.Param.Value

	if pe.Excl || pe.Width || pe.Names != 0 {
		return &ExpansionError{Pos: pe.Pos(), Msg: fmt.Sprintf("${%s}: bad substitution", name)}
	}

	v, err := x.lookupParam(pe)
	if err != nil {
		return err
	}

	if pe.Length {
		n := len(v.values)
		if !v.list {
			n = utf8.RuneCountInString(v.String(e))
		}
		if !v.set && e.opts.NoUnset && !v.list {
			return x.unsetError(pe, "parameter not set")
		}
		x.text(strconv.Itoa(n), quoted)
		return nil
	}

	if pe.Exp != nil {
		handled, err := x.paramOp(pe, v, quoted)
		if handled || err != nil {
			return err
		}
	}

	if !v.set && e.opts.NoUnset && !v.list {
		return x.unsetError(pe, "parameter not set")
	}

	switch {
	case pe.Slice != nil:
		s, err := x.slice(pe.Slice, v, pe.Index == nil && (name == "@" || name == "*"))
		if err != nil {
			return err
		}
		v = s
	case pe.Repl != nil:
		s, err := x.replace(pe, v)
		if err != nil {
			return err
		}
		v = s
	case pe.Exp != nil:
		s, err := x.transform(pe, v)
		if err != nil {
			return err
		}
		v = s
	}
	x.emit(v, quoted)
	return nil
}

func (x *expander) unsetError(pe *syntax.ParamExp, msg string) error {
	return &ExpansionError{Pos: pe.Pos(), Msg: fmt.Sprintf("%s: %s", pe.Param.Value, msg)}
}

// paramOp handles the operators that depend on whether the parameter is
// set: - + = and ?. It reports false for the other operators.
func (x *expander) paramOp(pe *syntax.ParamExp, v paramValue, quoted bool) (bool, error) {
	e := x.env
	exp := pe.Exp

	var colon bool
	switch exp.Op {
	case syntax.DefaultUnsetOrNull, syntax.AlternateUnsetOrNull,
		syntax.AssignUnsetOrNull, syntax.ErrorUnsetOrNull:
		colon = true
	case syntax.DefaultUnset, syntax.AlternateUnset,
		syntax.AssignUnset, syntax.ErrorUnset:
	default:
		return false, nil
	}

	present := v.set
	if colon && present {
		if v.list {
			present = len(v.values) > 0 && v.String(e) != ""
		} else {
			present = v.String(e) != ""
		}
	}

	switch exp.Op {
	case syntax.DefaultUnset, syntax.DefaultUnsetOrNull:
		if present {
			x.emit(v, quoted)
			return true, nil
		}
		return true, x.inline(exp.Word, quoted)

	case syntax.AlternateUnset, syntax.AlternateUnsetOrNull:
		if present {
			return true, x.inline(exp.Word, quoted)
		}
		return true, nil

	case syntax.AssignUnset, syntax.AssignUnsetOrNull:
		if present {
			x.emit(v, quoted)
			return true, nil
		}
		if pe.Index != nil || !validName(pe.Param.Value) {
			return true, x.unsetError(pe, "cannot assign in this way")
		}
		val, err := e.ExpandWord(x.ctx, exp.Word)
		if err != nil {
			return true, err
		}
		if err := e.SetVar(pe.Param.Value, val); err != nil {
			return true, &ExpansionError{Pos: pe.Pos(), Err: err}
		}
		x.text(val, quoted)
		return true, nil

	default:
		if present {
			x.emit(v, quoted)
			return true, nil
		}
		msg := "parameter null or not set"
		if !colon {
			msg = "parameter not set"
		}
		if exp.Word != nil {
			custom, err := e.ExpandWord(x.ctx, exp.Word)
			if err != nil {
				return true, err
			}
			if custom != "" {
				msg = custom
			}
		}
		return true, x.unsetError(pe, msg)
	}
}

// inline expands the word of an operator in place, with the quoting of the
// enclosing expansion.
func (x *expander) inline(w *syntax.Word, quoted bool) error {
	if w == nil {
		return nil
	}
	for _, part := range w.Parts {
		if err := x.part(part, false, false, quoted); err != nil {
			return err
		}
	}
	return nil
}

// transform applies the pattern removal and case operators to each value.
func (x *expander) transform(pe *syntax.ParamExp, v paramValue) (paramValue, error) {
	exp := pe.Exp
	var pat string
	if exp.Word != nil {
		p, err := x.env.ExpandPattern(x.ctx, exp.Word)
		if err != nil {
			return v, err
		}
		pat = p
	}

	var apply func(string) string
	switch exp.Op {
	case syntax.RemSmallSuffix, syntax.RemLargeSuffix, syntax.RemSmallPrefix, syntax.RemLargePrefix:
		suffix := exp.Op == syntax.RemSmallSuffix || exp.Op == syntax.RemLargeSuffix
		small := exp.Op == syntax.RemSmallSuffix || exp.Op == syntax.RemSmallPrefix
		rx, err := removeRegexp(pat, suffix, small)
		if err != nil {
			return v, &ExpansionError{Pos: pe.Pos(), Err: err}
		}
		apply = func(s string) string { return removePattern(rx, s, suffix) }
	case syntax.UpperFirst, syntax.UpperAll, syntax.LowerFirst, syntax.LowerAll:
		apply = caseMapper(exp.Op, pat)
	default:
		return v, &ExpansionError{Pos: pe.Pos(), Msg: fmt.Sprintf("unsupported operator %s", exp.Op)}
	}

	out := paramValue{list: v.list, star: v.star, set: v.set}
	for _, s := range v.values {
		out.values = append(out.values, apply(s))
	}
	return out, nil
}

// removeRegexp compiles the pattern of ${x%p} and friends.
func removeRegexp(pat string, suffix, small bool) (*regexp.Regexp, error) {
	mode := pattern.Mode(0)
	if small {
		mode = pattern.Shortest
	}
	expr, err := pattern.Regexp(pat, mode)
	if err != nil {
		return nil, err
	}
	switch {
	case suffix && small:
		// Leftmost-longest prefix consumption leaves the shortest suffix.
		expr = "(?s)^.*(" + expr + ")$"
	case suffix:
		expr = "(?s)(" + expr + ")$"
	default:
		expr = "(?s)^(" + expr + ")"
	}
	return regexp.Compile(expr)
}

func removePattern(rx *regexp.Regexp, s string, suffix bool) string {
	loc := rx.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	if suffix {
		return s[:loc[2]]
	}
	return s[loc[3]:]
}

func caseMapper(op syntax.ParExpOperator, pat string) func(string) string {
	match := func(r rune) bool { return true }
	if pat != "" {
		if expr, err := pattern.Regexp(pat, pattern.EntireString); err == nil {
			if rx, err := regexp.Compile(expr); err == nil {
				match = func(r rune) bool { return rx.MatchString(string(r)) }
			}
		}
	}
	upper := op == syntax.UpperFirst || op == syntax.UpperAll
	all := op == syntax.UpperAll || op == syntax.LowerAll
	return func(s string) string {
		rs := []rune(s)
		for i, r := range rs {
			if i > 0 && !all {
				break
			}
			if !match(r) {
				continue
			}
			if upper {
				rs[i] = []rune(strings.ToUpper(string(r)))[0]
			} else {
				rs[i] = []rune(strings.ToLower(string(r)))[0]
			}
		}
		return string(rs)
	}
}

// slice implements ${x:offset:length}.
func (x *expander) slice(sl *syntax.Slice, v paramValue, positional bool) (paramValue, error) {
	offset, err := x.env.arith(x.ctx, sl.Offset)
	if err != nil {
		return v, err
	}
	length := -1
	if sl.Length != nil {
		if length, err = x.env.arith(x.ctx, sl.Length); err != nil {
			return v, err
		}
	}
	bounds := func(n int) (int, int) {
		start := offset
		if start < 0 {
			start += n
		}
		if start < 0 || start > n {
			return n, n
		}
		end := n
		switch {
		case length < 0 && sl.Length != nil:
			end = n + length
		case length >= 0 && start+length < n:
			end = start + length
		}
		if end < start {
			end = start
		}
		return start, end
	}

	if v.list {
		vals := v.values
		if positional {
			// $@ slices count $0 as position 0.
			vals = append([]string{x.env.arg0}, vals...)
		}
		start, end := bounds(len(vals))
		return paramValue{values: vals[start:end], list: true, star: v.star, set: v.set}, nil
	}
	rs := []rune(v.String(x.env))
	start, end := bounds(len(rs))
	return paramValue{values: []string{string(rs[start:end])}, set: v.set}, nil
}

// replace implements ${x/pattern/string} and ${x//pattern/string}.
func (x *expander) replace(pe *syntax.ParamExp, v paramValue) (paramValue, error) {
	repl := pe.Repl
	pat, err := x.env.ExpandPattern(x.ctx, repl.Orig)
	if err != nil {
		return v, err
	}
	with := ""
	if repl.With != nil {
		if with, err = x.env.ExpandWord(x.ctx, repl.With); err != nil {
			return v, err
		}
	}
	expr, err := pattern.Regexp(pat, 0)
	if err != nil {
		return v, &ExpansionError{Pos: pe.Pos(), Err: err}
	}
	rx, err := regexp.Compile("(?s)" + expr)
	if err != nil {
		return v, &ExpansionError{Pos: pe.Pos(), Err: err}
	}
	out := paramValue{list: v.list, star: v.star, set: v.set}
	for _, s := range v.values {
		n := 1
		if repl.All {
			n = -1
		}
		var sb strings.Builder
		last := 0
		for _, loc := range rx.FindAllStringIndex(s, n) {
			if loc[0] == loc[1] {
				continue
			}
			sb.WriteString(s[last:loc[0]])
			sb.WriteString(with)
			last = loc[1]
		}
		sb.WriteString(s[last:])
		out.values = append(out.values, sb.String())
	}
	return out, nil
}
