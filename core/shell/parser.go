package shell

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Defined by
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html

// ParseLang converts a configured parser variant name to a language.
func ParseLang(name string) (syntax.LangVariant, error) {
	switch strings.ToLower(name) {
	case "", "posix", "sh":
		return syntax.LangPOSIX, nil
	case "bash":
		return syntax.LangBash, nil
	default:
		return 0, fmt.Errorf("unknown parser variant %q", name)
	}
}

// Parse parses src in the shell's language. name is used in error
// positions.
func (e *Env) Parse(src, name string) (*syntax.File, error) {
	return syntax.NewParser(syntax.Variant(e.lang)).Parse(strings.NewReader(src), name)
}

// printNode renders node on one line, for job listings and xtrace.
func printNode(node syntax.Node) string {
	var sb strings.Builder
	if err := syntax.NewPrinter(syntax.SingleLine(true)).Print(&sb, node); err != nil {
		return ""
	}
	return strings.TrimSpace(sb.String())
}
