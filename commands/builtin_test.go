package commands

import (
	"context"
	"fmt"
	"testing"

	getopt "github.com/pborman/getopt/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/vos"
	"github.com/josephlewis42/vsh/core/vos/vostest"
)

// runScript runs src in a fresh shell on a virtual system holding every
// program of the package.
func runScript(t *testing.T, src string) (stdout, stderr string, status shell.ExitStatus) {
	t.Helper()
	sys := vostest.NewSystem(nil, Programs())
	out, errOut := vos.NewBuffer(), vos.NewBuffer()
	env, err := shell.New(sys,
		shell.WithRegistry(Builtins()),
		shell.WithStdio(nil, out, errOut),
	)
	require.NoError(t, err)

	ctx := context.Background()
	env.RunString(ctx, src, "test")
	status = env.Exit(ctx)
	return out.String(), errOut.String(), status
}

func TestBuiltins_scripts(t *testing.T) {
	cases := map[string]struct {
		src        string
		wantOut    string
		wantStatus shell.ExitStatus
	}{
		"echo":               {"echo hello world", "hello world\n", 0},
		"last status":        {"false; echo $?", "1\n", 0},
		"printf reuse":       {`printf '%s-%d\n' a 1 b 2`, "a-1\nb-2\n", 0},
		"local":              {"f() { local v=in; echo $v; }; v=out; f; echo $v", "in\nout\n", 0},
		"shift":              {"set -- a b c; shift; echo $# $1", "2 b\n", 0},
		"shift out of range": {"shift 5; echo no", "", 1},
		"break":              {"for i in 1 2 3; do echo $i; break; done", "1\n", 0},
		"continue outer":     {"for i in a b; do for j in 1 2; do continue 2; echo no; done; echo no; done; echo done", "done\n", 0},
		"return":             {"f() { return 3; echo no; }; f; echo $?", "3\n", 0},
		"exit":               {"exit 3; echo no", "", 3},
		"eval":               {"eval 'echo a; echo b'", "a\nb\n", 0},
		"cd and back":        {"cd /tmp; pwd; cd -", "/tmp\n/home/user\n", 0},
		"export to child":    {"export X=1; env | grep '^X='", "X=1\n", 0},
		"exit trap":          {"trap 'echo bye' EXIT; echo hi", "hi\nbye\n", 0},
		"list traps":         {"trap 'echo t' USR1; trap -p", "trap -- 'echo t' USR1\n", 0},
		"read":               {"read a b <<EOF\none two three\nEOF\necho \"$b\"", "two three\n", 0},
		"umask":              {"umask 027; umask", "0027\n", 0},
		"umask symbolic":     {"umask -S", "u=rwx,g=rx,o=rx\n", 0},
		"arithmetic":         {"x=5; echo $((x * 2 + 1))", "11\n", 0},
		"pipe to program":    {"echo a | cat", "a\n", 0},
		"pipefail off":       {"false | true; echo $?", "0\n", 0},
		"pipefail on":        {"set -o pipefail; false | true; echo $?", "1\n", 0},
		"wait background":    {"sleep 0.01 & wait; echo $?", "0\n", 0},
		"kill list status":   {"kill -l 130", "INT\n", 0},
		"not found":          {"nosuchcmd; echo $?", "127\n", 0},
		"command -v":         {"command -v cd wc", "cd\n/bin/wc\n", 0},
		"type":               {"type exit cd wc", "exit is a special shell builtin\ncd is a shell builtin\nwc is /bin/wc\n", 0},
		"unset function":     {"f() { echo f; }; unset -f f; f; echo $?", "127\n", 0},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			out, _, status := runScript(t, tc.src)
			assert.Equal(t, tc.wantOut, out)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestBuiltins_diagnostics(t *testing.T) {
	out, errOut, status := runScript(t, "cat /missing; echo $?")

	assert.Equal(t, "1\n", out)
	assert.Equal(t, "cat: open /missing: file does not exist\n", errOut)
	assert.Equal(t, shell.ExitStatus(0), status)
}

func TestBuiltins_specialUsageErrorIsFatal(t *testing.T) {
	out, errOut, status := runScript(t, "set -o nosuchoption; echo no")

	assert.Empty(t, out)
	assert.Contains(t, errOut, "vsh: set:")
	assert.Equal(t, shell.ExitStatus(2), status)
}

func TestBuiltins_registry(t *testing.T) {
	r := Builtins()
	for _, b := range allBuiltins {
		_, kind, ok := r.Lookup(b.name)
		assert.True(t, ok, b.name)
		assert.Equal(t, b.kind, kind, b.name)
	}
}

func TestKillSignalArg(t *testing.T) {
	assert.Equal(t, []string{"kill", "-s", "STOP", "%1"}, killSignalArg([]string{"kill", "-STOP", "%1"}))
	assert.Equal(t, []string{"kill", "-s", "9", "42"}, killSignalArg([]string{"kill", "-9", "42"}))
	assert.Equal(t, []string{"kill", "-l"}, killSignalArg([]string{"kill", "-l"}))
	assert.Equal(t, []string{"kill", "--", "42"}, killSignalArg([]string{"kill", "--", "42"}))
}

func TestColorPrinter(t *testing.T) {
	var printer ColorPrinter
	flags := getopt.New()
	printer.Init(flags, func() bool { return false })

	require.NoError(t, flags.Getopt([]string{"jobs"}, nil))
	assert.Equal(t, "Done", printer.Sprintf(ColorBoldBlue, "%s", "Done"))

	require.NoError(t, flags.Getopt([]string{"jobs", "--color=always"}, nil))
	assert.Equal(t, "\x1b[34;1mDone\x1b[0m", printer.Sprintf(ColorBoldBlue, "%s", "Done"))
}

func Example_symbolicMask() {
	fmt.Println(symbolicMask(0022))
	fmt.Println(symbolicMask(0077))
	// Output: u=rwx,g=rx,o=rx
	// u=rwx,g=,o=
}
