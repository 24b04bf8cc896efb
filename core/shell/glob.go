package shell

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/pattern"
)

// pathnames applies pathname expansion to one field. Fields without
// unquoted pattern characters, and patterns matching nothing, are returned
// unchanged.
func (e *Env) pathnames(chars []attrChar) ([]string, error) {
	word := charsString(chars)
	if e.opts.NoGlob {
		return []string{word}, nil
	}
	pat := patternString(chars)
	if !pattern.HasMeta(pat, 0) {
		return []string{word}, nil
	}
	matches, err := e.glob(pat)
	if err != nil || len(matches) == 0 {
		// A malformed pattern like "[" is taken literally.
		return []string{word}, nil
	}
	return matches, nil
}

// glob matches an escaped pattern against the filesystem, one path
// component at a time.
func (e *Env) glob(pat string) ([]string, error) {
	abs := strings.HasPrefix(pat, "/")
	dirOnly := strings.HasSuffix(pat, "/")
	comps := strings.FieldsFunc(pat, func(r rune) bool { return r == '/' })

	// Each candidate is the path as it will be printed.
	candidates := []string{""}
	if abs {
		candidates = []string{"/"}
	}
	for i, comp := range comps {
		last := i == len(comps)-1
		var next []string
		for _, base := range candidates {
			if !pattern.HasMeta(comp, 0) {
				p := path.Join(base, unescapePattern(comp))
				if base == "" {
					p = unescapePattern(comp)
				}
				info, err := e.Fs().Stat(e.Abs(p))
				if err != nil || (!last && !info.IsDir()) {
					continue
				}
				next = append(next, p)
				continue
			}
			matched, err := e.globDir(base, comp, !last || dirOnly)
			if err != nil {
				return nil, err
			}
			next = append(next, matched...)
		}
		candidates = next
		if len(candidates) == 0 {
			return nil, nil
		}
	}
	if dirOnly {
		for i := range candidates {
			candidates[i] += "/"
		}
	}
	sort.Strings(candidates)
	return candidates, nil
}

// globDir lists the entries of dir matching one pattern component.
func (e *Env) globDir(dir, comp string, wantDir bool) ([]string, error) {
	expr, err := pattern.Regexp(comp, pattern.Filenames|pattern.EntireString|pattern.NoGlobStar)
	if err != nil {
		return nil, err
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	listDir := dir
	if listDir == "" {
		listDir = "."
	}
	infos, err := afero.ReadDir(e.Fs(), e.Abs(listDir))
	if err != nil {
		return nil, nil
	}
	hidden := strings.HasPrefix(comp, ".") || strings.HasPrefix(comp, `\.`)
	var out []string
	for _, info := range infos {
		name := info.Name()
		if strings.HasPrefix(name, ".") && !hidden {
			continue
		}
		if !rx.MatchString(name) {
			continue
		}
		if wantDir && !info.IsDir() {
			continue
		}
		if dir == "" {
			out = append(out, name)
		} else {
			out = append(out, path.Join(dir, name))
		}
	}
	return out, nil
}

// unescapePattern removes the backslashes of an escaped literal pattern.
func unescapePattern(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// MatchPattern reports whether s matches the shell pattern pat, as case
// does.
func MatchPattern(pat, s string) (bool, error) {
	expr, err := pattern.Regexp(pat, pattern.EntireString)
	if err != nil {
		return false, err
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return false, err
	}
	return rx.MatchString(s), nil
}
