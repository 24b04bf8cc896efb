package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/pattern"
	"mvdan.cc/sh/v3/syntax"
)

// Field is one word produced by expansion.
type Field struct {
	Value string
	// Quoted is set when part of the word was quoted.
	Quoted bool
	Pos    syntax.Pos
}

// attrChar is one character of a word under expansion, tagged with where it
// came from.
type attrChar struct {
	r rune
	// quoted characters came from quotes or a backslash escape. They are
	// exempt from field splitting and pathname expansion.
	quoted bool
	// split characters are results of an unquoted expansion and may be
	// field separators.
	split bool
}

// fieldBuf accumulates the characters of one field before splitting.
type fieldBuf struct {
	chars []attrChar
	// quoted is set once the word contains quotes, so the field survives
	// even if it ends up empty.
	quoted bool
}

func (b *fieldBuf) add(s string, quoted, split bool) {
	for _, r := range s {
		b.chars = append(b.chars, attrChar{r: r, quoted: quoted, split: split})
	}
}

func (b *fieldBuf) String() string {
	return charsString(b.chars)
}

func charsString(chars []attrChar) string {
	var sb strings.Builder
	for _, c := range chars {
		sb.WriteRune(c.r)
	}
	return sb.String()
}

type expandMode int

const (
	// modeFields runs every phase and may produce any number of fields.
	modeFields expandMode = iota
	// modeWord produces a single string without splitting or globbing.
	modeWord
	// modeAssign is modeWord with tilde expansion after each colon.
	modeAssign
	// modeDocument expands a here-document body.
	modeDocument
)

// expander holds the state of one word expansion.
type expander struct {
	env  *Env
	ctx  context.Context
	mode expandMode

	fields []*fieldBuf
	cur    *fieldBuf

	// atValues counts values produced by "$@"-like expansions of the
	// current double-quoted part.
	atValues int
}

func (e *Env) newExpander(ctx context.Context, mode expandMode) *expander {
	x := &expander{env: e, ctx: ctx, mode: mode}
	x.cur = &fieldBuf{}
	x.fields = []*fieldBuf{x.cur}
	return x
}

// breakField ends the current field, as between the values of "$@". Where
// a single string is wanted the values are joined with a space instead.
func (x *expander) breakField() {
	if x.mode != modeFields {
		x.cur.add(" ", true, false)
		return
	}
	quoted := x.cur.quoted
	x.cur = &fieldBuf{quoted: quoted}
	x.fields = append(x.fields, x.cur)
}

// text appends the result of an expansion.
func (x *expander) text(s string, quoted bool) {
	if x.mode == modeDocument {
		quoted = true
	}
	x.cur.add(s, quoted, !quoted)
}

func (x *expander) word(w *syntax.Word) error {
	if w == nil {
		return nil
	}
	for i, part := range w.Parts {
		if err := x.part(part, i == 0, len(w.Parts) > 1, false); err != nil {
			return err
		}
	}
	return nil
}

func (x *expander) part(part syntax.WordPart, first, more, quoted bool) error {
	switch p := part.(type) {
	case *syntax.Lit:
		switch {
		case quoted:
			x.doubleQuotedLit(p.Value)
		case x.mode == modeDocument:
			x.documentLit(p.Value)
		default:
			s := p.Value
			if first {
				s = x.tilde(s, more)
			}
			x.unquotedLit(s)
		}

	case *syntax.SglQuoted:
		x.cur.quoted = true
		val := p.Value
		if p.Dollar {
			formatted, _, err := expand.Format(nil, val, nil)
			if err != nil {
				return &ExpansionError{Pos: p.Pos(), Err: err}
			}
			val = formatted
		}
		x.cur.add(val, true, false)

	case *syntax.DblQuoted:
		before := x.cur.quoted
		x.cur.quoted = true
		x.atValues = -1
		for _, sub := range p.Parts {
			if err := x.part(sub, false, false, true); err != nil {
				return err
			}
		}
		// "$@" with no positional parameters expands to no field at all.
		if len(p.Parts) == 1 && x.atValues == 0 {
			x.cur.quoted = before
		}

	case *syntax.ParamExp:
		return x.paramExp(p, quoted)

	case *syntax.CmdSubst:
		out, err := x.env.cmdSubst(x.ctx, p)
		if err != nil {
			return err
		}
		x.text(out, quoted)

	case *syntax.ArithmExp:
		n, err := x.env.arith(x.ctx, p.X)
		if err != nil {
			return err
		}
		x.text(strconv.Itoa(n), quoted)

	default:
		return &ExpansionError{Pos: part.Pos(), Msg: fmt.Sprintf("unsupported expansion %T", part)}
	}
	return nil
}

// unquotedLit appends literal text outside quotes. A backslash quotes the
// next character.
func (x *expander) unquotedLit(s string) {
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r == '\\' && i+1 < len(rs) {
			i++
			x.cur.chars = append(x.cur.chars, attrChar{r: rs[i], quoted: true})
			continue
		}
		x.cur.chars = append(x.cur.chars, attrChar{r: r})
		if r == ':' && x.mode == modeAssign && i+1 < len(rs) && rs[i+1] == '~' {
			rest := x.tilde(string(rs[i+1:]), false)
			x.unquotedLit(rest)
			return
		}
	}
}

// doubleQuotedLit appends text inside double quotes, where a backslash only
// escapes $, `, ", \ and newline.
func (x *expander) doubleQuotedLit(s string) {
	x.escapedLit(s, "$`\"\\\n")
}

// documentLit appends here-document text, where " is not special.
func (x *expander) documentLit(s string) {
	x.escapedLit(s, "$`\\\n")
}

func (x *expander) escapedLit(s, escapable string) {
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r == '\\' && i+1 < len(rs) && strings.ContainsRune(escapable, rs[i+1]) {
			i++
			r = rs[i]
		}
		x.cur.chars = append(x.cur.chars, attrChar{r: r, quoted: true})
	}
}

// tilde expands a leading tilde prefix of s, returning the text left to be
// appended. The expanded directory is added as quoted text.
func (x *expander) tilde(s string, more bool) string {
	if x.mode == modeDocument || !strings.HasPrefix(s, "~") {
		return s
	}
	end := len(s)
	stops := "/"
	if x.mode == modeAssign {
		stops = "/:"
	}
	if i := strings.IndexAny(s, stops); i >= 0 {
		end = i
	} else if more {
		// The prefix runs into a quoted or expanded part, so it is not a
		// tilde prefix.
		return s
	}
	name := s[1:end]
	dir, ok := x.env.homeDir(name)
	if !ok {
		return s
	}
	x.cur.add(dir, true, false)
	return s[end:]
}

// homeDir resolves the user name of a tilde prefix. Only the current user is
// known to the shell, through $HOME.
func (e *Env) homeDir(name string) (string, bool) {
	switch name {
	case "":
		return e.Get(EnvHome)
	case "+":
		return e.Get(EnvPWD)
	case "-":
		return e.Get(EnvOldPWD)
	}
	if user, _ := e.Get("USER"); user == name {
		return e.Get(EnvHome)
	}
	if user, _ := e.Get("LOGNAME"); user == name {
		return e.Get(EnvHome)
	}
	return "", false
}

// Expand runs every expansion phase over words and returns the fields.
func (e *Env) Expand(ctx context.Context, words []*syntax.Word) ([]Field, error) {
	ifs := e.ifs()
	var out []Field
	for _, w := range words {
		x := e.newExpander(ctx, modeFields)
		if err := x.word(w); err != nil {
			return nil, err
		}
		for _, fb := range x.fields {
			for _, chars := range splitChars(fb, ifs) {
				fields, err := e.pathnames(chars)
				if err != nil {
					return nil, err
				}
				for _, f := range fields {
					out = append(out, Field{Value: f, Quoted: fb.quoted, Pos: w.Pos()})
				}
			}
		}
	}
	return out, nil
}

// ExpandFields is Expand returning plain strings.
func (e *Env) ExpandFields(ctx context.Context, words ...*syntax.Word) ([]string, error) {
	fields, err := e.Expand(ctx, words)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Value
	}
	return out, nil
}

// ExpandWord expands w to a single string without field splitting or
// pathname expansion, as for redirection targets and case subjects.
func (e *Env) ExpandWord(ctx context.Context, w *syntax.Word) (string, error) {
	x := e.newExpander(ctx, modeWord)
	if err := x.word(w); err != nil {
		return "", err
	}
	return x.cur.String(), nil
}

// expandAssign expands the value of an assignment.
func (e *Env) expandAssign(ctx context.Context, w *syntax.Word) (string, error) {
	x := e.newExpander(ctx, modeAssign)
	if err := x.word(w); err != nil {
		return "", err
	}
	return x.cur.String(), nil
}

// ExpandPattern expands w into a pattern for case, ${x#p} and friends.
// Quoted characters are escaped so they only match themselves.
func (e *Env) ExpandPattern(ctx context.Context, w *syntax.Word) (string, error) {
	x := e.newExpander(ctx, modeWord)
	if err := x.word(w); err != nil {
		return "", err
	}
	return patternString(x.cur.chars), nil
}

// ExpandDocument expands a here-document body.
func (e *Env) ExpandDocument(ctx context.Context, w *syntax.Word) (string, error) {
	x := e.newExpander(ctx, modeDocument)
	if err := x.word(w); err != nil {
		return "", err
	}
	return x.cur.String(), nil
}

func patternString(chars []attrChar) string {
	var sb strings.Builder
	for _, c := range chars {
		if c.quoted {
			sb.WriteString(pattern.QuoteMeta(string(c.r), 0))
		} else {
			sb.WriteRune(c.r)
		}
	}
	return sb.String()
}

// literalWord returns the text of a word that is not expanded, like a quoted
// here-document delimiter's body.
func literalWord(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			sb.WriteString(lit.Value)
		}
	}
	return sb.String()
}

// quotedWord reports whether any part of w is quoted or escaped.
func quotedWord(w *syntax.Word) bool {
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.SglQuoted, *syntax.DblQuoted:
			return true
		case *syntax.Lit:
			if strings.Contains(p.Value, "\\") {
				return true
			}
		}
	}
	return false
}
