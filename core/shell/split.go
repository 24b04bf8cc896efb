package shell

import (
	"strings"
)

// ifs returns the field separators, the default when IFS is unset.
func (e *Env) ifs() string {
	if v, ok := e.Get(EnvIFS); ok {
		return v
	}
	return DefaultIFS
}

func isIFSWhite(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

type splitter struct {
	chars []attrChar
	ifs   string
}

func (s *splitter) sep(i int) bool {
	c := s.chars[i]
	return c.split && !c.quoted && strings.ContainsRune(s.ifs, c.r)
}

func (s *splitter) white(i int) bool {
	return s.sep(i) && isIFSWhite(s.chars[i].r)
}

// delimiter returns the index after the delimiter starting at i. A
// delimiter is a run of IFS whitespace, optionally around one other IFS
// character. nonWhite reports whether that character was present.
func (s *splitter) delimiter(i int) (end int, nonWhite bool) {
	j := i
	for j < len(s.chars) && s.white(j) {
		j++
	}
	if j < len(s.chars) && s.sep(j) && !s.white(j) {
		nonWhite = true
		j++
		for j < len(s.chars) && s.white(j) {
			j++
		}
	}
	return j, nonWhite
}

// split breaks the characters into fields. With limit > 0 at most limit
// fields are produced and the last one takes the rest of the input.
func (s *splitter) split(limit int) [][]attrChar {
	var out [][]attrChar
	var cur []attrChar
	started := false

	i := 0
	for i < len(s.chars) && s.white(i) {
		i++
	}
	for i < len(s.chars) {
		if limit > 0 && len(out) == limit-1 {
			rest := s.chars[i:]
			end := len(rest)
			for end > 0 && rest[end-1].split && !rest[end-1].quoted &&
				isIFSWhite(rest[end-1].r) && strings.ContainsRune(s.ifs, rest[end-1].r) {
				end--
			}
			return append(out, append(cur, rest[:end]...))
		}
		if !s.sep(i) {
			cur = append(cur, s.chars[i])
			started = true
			i++
			continue
		}
		j, nonWhite := s.delimiter(i)
		if j == len(s.chars) && !nonWhite {
			break
		}
		if started || nonWhite {
			out = append(out, cur)
		}
		cur, started = nil, false
		i = j
	}
	if started {
		out = append(out, cur)
	}
	return out
}

// splitChars applies field splitting to one expanded word.
func splitChars(fb *fieldBuf, ifs string) [][]attrChar {
	var fields [][]attrChar
	if ifs == "" {
		if len(fb.chars) > 0 {
			fields = [][]attrChar{fb.chars}
		}
	} else {
		fields = (&splitter{chars: fb.chars, ifs: ifs}).split(0)
	}
	if len(fields) == 0 && fb.quoted {
		fields = [][]attrChar{nil}
	}
	return fields
}

// SplitFields splits s on IFS the way read does: into at most n fields, the
// last one taking the remainder of the line without trailing IFS
// whitespace. n <= 0 means no limit.
func (e *Env) SplitFields(s string, n int) []string {
	ifs := e.ifs()
	if ifs == "" {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	chars := make([]attrChar, 0, len(s))
	for _, r := range s {
		chars = append(chars, attrChar{r: r, split: true})
	}
	fields := (&splitter{chars: chars, ifs: ifs}).split(n)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = charsString(f)
	}
	return out
}
