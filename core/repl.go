package core

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/abiosoft/readline"
	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/ttylog"
)

// REPL reads commands from a line editor and runs them in a session.
type REPL struct {
	session  *Session
	Readline *readline.Instance
}

// NewREPL wraps an interactive session. Lines are read from stdin; the
// prompt and the line being edited are written to stdout.
func NewREPL(session *Session, stdin io.Reader, stdout, stderr io.Writer, isTerminal func() bool) (*REPL, error) {
	cfg := &readline.Config{
		Stdin:          readline.NewCancelableStdin(stdin),
		Stdout:         stdout,
		Stderr:         stderr,
		FuncIsTerminal: isTerminal,
		HistoryLimit:   500,
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	return &REPL{session: session, Readline: rl}, nil
}

// Prompt renders PS1, or PS2 while a command is incomplete. The escapes
// \u, \h, \w and \$ are replaced first, then parameters are expanded.
func (r *REPL) Prompt(ctx context.Context, continuation bool) string {
	env := r.session.Env()
	name, fallback := shell.EnvPS1, shell.DefaultPrompt
	if continuation {
		name, fallback = shell.EnvPS2, "> "
	}
	prompt, ok := env.Get(name)
	if !ok {
		prompt = fallback
	}

	user, _ := env.Get("USER")
	host, _ := env.Get("HOSTNAME")
	if host == "" {
		host = "vsh"
	}
	pwd := env.Dir()
	if home, _ := env.Get(shell.EnvHome); home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	prompt = strings.ReplaceAll(prompt, `\u`, user)
	prompt = strings.ReplaceAll(prompt, `\h`, host)
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)
	if user == "root" {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	word, err := syntax.NewParser().Document(strings.NewReader(prompt))
	if err != nil {
		return prompt
	}
	expanded, err := env.ExpandDocument(ctx, word)
	if err != nil {
		return prompt
	}
	return expanded
}

// Run reads and runs commands until end of input or until the shell exits.
// Interrupting the line editor discards the command being typed.
func (r *REPL) Run(ctx context.Context) shell.ExitStatus {
	env := r.session.Env()
	var pending strings.Builder

	for !env.Exited() {
		r.Readline.SetPrompt(r.Prompt(ctx, pending.Len() > 0))
		line, err := r.Readline.Readline()

		switch {
		case err == io.EOF:
			return env.Status() // Input closed, quit.

		case err == readline.ErrInterrupt:
			pending.Reset()
			continue

		case err != nil:
			log.Printf("Error readline: %v", err)
			return env.Status()
		}

		if rec := r.session.Recorder(); rec != nil {
			rec.Record(ttylog.FDStdin, []byte(line+"\n"))
		}

		pending.WriteString(line)
		pending.WriteString("\n")
		src := pending.String()
		if _, err := env.Parse(src, ""); err != nil && syntax.IsIncomplete(err) {
			continue
		}
		pending.Reset()

		if strings.TrimSpace(src) == "" {
			continue // empty line
		}
		env.RunString(ctx, src, "")
	}
	return env.Status()
}

func (r *REPL) Close() error {
	return r.Readline.Close()
}
