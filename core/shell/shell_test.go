package shell_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/commands"
	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/vos"
	"github.com/josephlewis42/vsh/core/vos/vostest"
)

type scriptResult struct {
	Stdout string
	Stderr string
	Status shell.ExitStatus
}

func run(t *testing.T, src string, opts ...shell.Option) scriptResult {
	t.Helper()
	sys := vostest.NewSystem(nil, commands.Programs())
	out, errOut := vos.NewBuffer(), vos.NewBuffer()
	opts = append([]shell.Option{
		shell.WithRegistry(commands.Builtins()),
		shell.WithStdio(nil, out, errOut),
	}, opts...)
	env, err := shell.New(sys, opts...)
	require.NoError(t, err)

	ctx := context.Background()
	env.RunString(ctx, src, "test")
	status := env.Exit(ctx)
	return scriptResult{Stdout: out.String(), Stderr: errOut.String(), Status: status}
}

func TestRun_scripts(t *testing.T) {
	cases := map[string]struct {
		src        string
		wantOut    string
		wantStatus shell.ExitStatus
	}{
		"ifs splitting":        {`x="  a  b c "; printf '[%s]' $x; echo`, "[a][b][c]\n", 0},
		"quoted no splitting":  {`x="  a  b "; printf '[%s]' "$x"; echo`, "[  a  b ]\n", 0},
		"empty unquoted":       {`x=; printf '[%s]' $x; echo`, "[]\n", 0},
		"last status":          {"false; echo $?", "1\n", 0},
		"negation":             {"! false; echo $?", "0\n", 0},
		"subst one newline":    {`x=$(printf 'x\n\n'); printf '%s|' "$x"`, "x\n|", 0},
		"subst status":         {"x=$(false); echo $?", "1\n", 0},
		"pipefail default":     {"false | true; echo $?", "0\n", 0},
		"pipefail":             {"set -o pipefail; false | true; echo $?", "1\n", 0},
		"subshell isolation":   {"x=1; (x=2; echo $x); echo $x", "2\n1\n", 0},
		"errexit":              {"set -e; false; echo no", "", 1},
		"errexit condition":    {"set -e; if false; then :; fi; false || echo ok", "ok\n", 0},
		"redirect and read":    {"echo hi >/tmp/f; cat /tmp/f", "hi\n", 0},
		"noclobber":            {"set -C; echo a >/tmp/f; echo b >/tmp/f; echo $?; cat /tmp/f", "1\na\n", 0},
		"heredoc":              {"x=v; cat <<EOF\n$x\nEOF", "v\n", 0},
		"quoted heredoc":       {"x=v; cat <<'EOF'\n$x\nEOF", "$x\n", 0},
		"tab heredoc":          {"x=v; cat <<-EOF\n\t$x\n\t\tdone\n\tEOF", "v\ndone\n", 0},
		"quoted tab heredoc":   {"x=v; cat <<-'EOF'\n\t$x\n\tEOF", "$x\n", 0},
		"glob":                 {"touch /tmp/b.txt /tmp/a.txt; echo /tmp/*.txt", "/tmp/a.txt /tmp/b.txt\n", 0},
		"glob no match":        {"echo /tmp/*.none", "/tmp/*.none\n", 0},
		"noglob":               {"touch /tmp/a.txt; set -f; echo /tmp/*.txt", "/tmp/*.txt\n", 0},
		"case":                 {"case abc in a*) echo yes;; *) echo no;; esac", "yes\n", 0},
		"while":                {"i=0; while case $i in 3) false;; *) true;; esac; do echo $i; i=$((i+1)); done", "0\n1\n2\n", 0},
		"function params":      {`f() { echo "$#:$1"; }; f a b; echo "$#"`, "2:a\n0\n", 0},
		"default param":        {`echo ${unset:-dflt} ${#HOME}`, "dflt 10\n", 0},
		"assignment prefix":    {"X=1 env | grep '^X='; echo ${X:-unset}", "X=1\nunset\n", 0},
		"background and wait":  {"sleep 0.01 & wait $!; echo $?", "0\n", 0},
		"dot":                  {"echo 'echo sourced $1' >/tmp/lib; . /tmp/lib arg", "sourced arg\n", 0},
		"exec keeps redirects": {"exec >/tmp/out; echo hidden; cat /tmp/out >&2", "", 0},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			res := run(t, tc.src)
			assert.Equal(t, tc.wantOut, res.Stdout, "stderr: %s", res.Stderr)
			assert.Equal(t, tc.wantStatus, res.Status)
		})
	}
}

func TestRun_nounset(t *testing.T) {
	res := run(t, "set -u; echo $nosuch; echo no")

	assert.Empty(t, res.Stdout)
	assert.NotEqual(t, shell.StatusSuccess, res.Status)
	assert.Contains(t, res.Stderr, "nosuch")
}

func TestRun_xtrace(t *testing.T) {
	res := run(t, "set -x; echo a 'b c'")

	assert.Equal(t, "a b c\n", res.Stdout)
	assert.Equal(t, "+ echo a 'b c'\n", res.Stderr)
}

func TestRun_syntaxError(t *testing.T) {
	res := run(t, "echo (")

	assert.Empty(t, res.Stdout)
	assert.Equal(t, shell.StatusError, res.Status)
	assert.NotEmpty(t, res.Stderr)
}

func TestRun_stopAndContinue(t *testing.T) {
	res := run(t, "set -m; sleep 10 & kill -STOP $!; kill -CONT $!; kill $!; wait $!; echo $?")

	assert.Equal(t, "143\n", res.Stdout, "stderr: %s", res.Stderr)
}

func TestRun_backgroundJobIsCurrent(t *testing.T) {
	src := "sleep 10 &\n" +
		"sleep 20 &\n" +
		"jobs\n" +
		"kill %+; echo kill=$?\n" +
		"wait %2; echo $?\n" +
		"kill %%; wait\n"
	res := run(t, src)

	want := "[1]-  Running                 sleep 10\n" +
		"[2]+  Running                 sleep 20\n" +
		"kill=0\n" +
		"143\n"
	assert.Equal(t, want, res.Stdout, "stderr: %s", res.Stderr)
	assert.Equal(t, shell.StatusSuccess, res.Status)
}

func TestRun_trapAfterWait(t *testing.T) {
	src := "trap 'echo trapped' USR1\n" +
		"sleep 10 &\n" +
		"(sleep 0.05; kill -USR1 $$) &\n" +
		"wait\n" +
		"echo $?\n" +
		"kill %1\n"
	res := run(t, src)

	assert.Equal(t, "trapped\n138\n", res.Stdout, "stderr: %s", res.Stderr)
}

func TestRun_exitTrapStatus(t *testing.T) {
	res := run(t, "trap 'echo bye $?' EXIT; (exit 4)")

	assert.Equal(t, "bye 4\n", res.Stdout)
	assert.Equal(t, shell.ExitStatus(4), res.Status)
}
