package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/vos/vostest"
)

func TestEcho(t *testing.T) {
	cases := map[string]struct {
		args []string
		want string
	}{
		"plain":        {[]string{"echo", "a", "b"}, "a b\n"},
		"no newline":   {[]string{"echo", "-n", "a"}, "a"},
		"escapes":      {[]string{"echo", "-e", `a\tb`}, "a\tb\n"},
		"no escapes":   {[]string{"echo", "-eE", `a\tb`}, "a\\tb\n"},
		"unknown flag": {[]string{"echo", "-x", "a"}, "-x a\n"},
		"empty":        {[]string{"echo"}, "\n"},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			cmd := vostest.Command(Echo, tc.args[0], tc.args[1:]...)
			out, err := cmd.CombinedOutput()
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestSleep(t *testing.T) {
	cases := map[string]struct {
		args       []string
		wantStatus int
	}{
		"zero":     {[]string{"sleep", "0"}, 0},
		"fraction": {[]string{"sleep", "0.01"}, 0},
		"duration": {[]string{"sleep", "5ms", "5ms"}, 0},
		"missing":  {[]string{"sleep"}, 1},
		"negative": {[]string{"sleep", "-1"}, 1},
		"garbage":  {[]string{"sleep", "soon"}, 1},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			cmd := vostest.Command(Sleep, tc.args[0], tc.args[1:]...)
			_, err := cmd.CombinedOutput()
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, cmd.ExitStatus)
		})
	}
}

func TestSleep_killedIsQuiet(t *testing.T) {
	stdout, stderr, status := runScript(t, "sleep 10 & kill $!; wait $!; echo $?")
	assert.Equal(t, "143\n", stdout)
	assert.Empty(t, stderr)
	assert.Equal(t, shell.StatusSuccess, status)
}
