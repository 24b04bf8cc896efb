package shell

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/core/vos"
	"github.com/josephlewis42/vsh/core/vos/vostest"
)

func echoProgram(p *vos.Process) int {
	fmt.Fprintln(p.Stdout(), strings.Join(p.Args()[1:], " "))
	return 0
}

func TestRun_descriptorsRestored(t *testing.T) {
	fs := vos.NewMemFs()
	sys := vostest.NewSystem(fs, map[string]vos.ProcessFunc{"/bin/echo": echoProgram})
	out := vos.NewBuffer()
	e, err := New(sys, WithStdio(nil, out, out))
	require.NoError(t, err)

	before := e.fds.Snapshot()
	src := strings.Join([]string{
		"echo one >/tmp/one 2>&1",
		"echo two 3>/tmp/two 1>&3",
		"{ echo three; } >/tmp/three",
		"echo four >>/tmp/one",
		"echo five <&-",
	}, "\n")
	status, err := e.RunString(context.Background(), src, "test")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	assert.Equal(t, before, e.fds.Snapshot())
	assert.Equal(t, "five\n", out.String())

	for name, want := range map[string]string{
		"/tmp/one":   "one\nfour\n",
		"/tmp/two":   "two\n",
		"/tmp/three": "three\n",
	} {
		got, err := afero.ReadFile(fs, name)
		require.NoError(t, err)
		assert.Equal(t, want, string(got), name)
	}
}

func TestRun_descriptorsRestoredOnPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register("boom", Regular, BuiltinFunc(func(ctx context.Context, env *Env, args []string) Result {
		panic("boom")
	}))
	e, err := New(vostest.NewSystem(nil, nil), WithRegistry(reg), WithStdio(nil, vos.NewBuffer(), vos.NewBuffer()))
	require.NoError(t, err)

	before := e.fds.Snapshot()
	for _, src := range []string{
		"boom >/tmp/out 3</tmp/out",
		"{ boom; } 2>/tmp/err",
	} {
		assert.Panics(t, func() {
			e.RunString(context.Background(), src, "test")
		}, src)
		assert.Equal(t, before, e.fds.Snapshot(), src)
	}
}
