package commands

import (
	"context"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/vos"
	"github.com/josephlewis42/vsh/core/vos/vostest"
)

func TestChmodMode_Apply(t *testing.T) {
	cases := map[string]struct {
		orig  fs.FileMode
		mode  string
		umask fs.FileMode
		want  fs.FileMode
	}{
		"octal":                {0, "644", 0022, 0644},
		"octal setuid":         {0, "4755", 0022, fs.ModeSetuid | 0755},
		"octal keeps type":     {fs.ModeDir | 0700, "755", 0, fs.ModeDir | 0755},
		"octal clears special": {fs.ModeSetgid | 0755, "0755", 0, 0755},
		"user exec":            {0644, "u+x", 0022, 0744},
		"no class uses umask":  {0644, "+x", 0022, 0755},
		"umask filters write":  {0444, "+w", 0022, 0644},
		"all ignores umask":    {0444, "a+w", 0022, 0666},
		"remove classes":       {0666, "go-w", 0, 0644},
		"assign":               {0777, "=r", 0, 0444},
		"assign under umask":   {0777, "=rw", 0027, 0640},
		"clauses":              {0, "u=rwx,g=rx,o=", 0, 0750},
		"copy class":           {0640, "g=u", 0, 0660},
		"copy then remove":     {0750, "o=u-w", 0, 0755},
		"X on plain file":      {0644, "+X", 0, 0644},
		"X on executable":      {0744, "+X", 0, 0755},
		"X on directory":       {fs.ModeDir, "+X", 0, fs.ModeDir | 0111},
		"setuid":               {0755, "u+s", 0, fs.ModeSetuid | 0755},
		"setgid":               {0755, "g+s", 0, fs.ModeSetgid | 0755},
		"sticky":               {fs.ModeDir | 0777, "+t", 0, fs.ModeDir | fs.ModeSticky | 0777},
		"remove keeps special": {fs.ModeSetuid | 0755, "a-x", 0, fs.ModeSetuid | 0644},
		"assign clears setuid": {fs.ModeSetuid | 0755, "u=rw", 0, 0655},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			mode, err := ParseChmodMode(tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, mode.Apply(tc.orig, tc.umask))
		})
	}
}

func TestParseChmodMode_invalid(t *testing.T) {
	for _, expr := range []string{"", "x", "u", "o+z", "8", "77777", "u+x,", "+r;"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseChmodMode(expr)
			assert.EqualError(t, err, `invalid mode: "`+expr+`"`)
		})
	}
}

func TestChmod_recursive(t *testing.T) {
	cmd := vostest.Command(Chmod, "chmod", "-R", "go-w", "/d", "/f")
	require.NoError(t, afero.WriteFile(cmd.Fs, "/d/a", nil, 0666))
	require.NoError(t, afero.WriteFile(cmd.Fs, "/d/sub/b", nil, 0666))
	require.NoError(t, afero.WriteFile(cmd.Fs, "/f", nil, 0666))
	require.NoError(t, cmd.Fs.Chmod("/d", fs.ModeDir|0777))

	out, err := cmd.CombinedOutput()
	require.NoError(t, err)
	assert.Empty(t, string(out))
	assert.Equal(t, 0, cmd.ExitStatus)

	for path, want := range map[string]fs.FileMode{
		"/d":       fs.ModeDir | 0755,
		"/d/a":     0644,
		"/d/sub/b": 0644,
		"/f":       0644,
	} {
		info, err := cmd.Fs.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, want, info.Mode(), path)
	}
}

func TestChmod_errors(t *testing.T) {
	cases := map[string]struct {
		args    []string
		wantOut string
	}{
		"bad mode": {[]string{"chmod", "u+q", "/f"}, "chmod: invalid mode: \"u+q\"\n"},
		"missing":  {[]string{"chmod", "644", "/nope", "/f"}, "chmod: cannot access /nope: file does not exist\n"},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			cmd := vostest.Command(Chmod, tc.args[0], tc.args[1:]...)
			require.NoError(t, afero.WriteFile(cmd.Fs, "/f", nil, 0600))

			out, err := cmd.CombinedOutput()
			require.NoError(t, err)
			assert.Equal(t, tc.wantOut, string(out))
			assert.Equal(t, 1, cmd.ExitStatus)
		})
	}
}

func TestChmod_shellUmask(t *testing.T) {
	sys := vostest.NewSystem(nil, Programs())
	env, err := shell.New(sys,
		shell.WithRegistry(Builtins()),
		shell.WithStdio(nil, vos.NewBuffer(), vos.NewBuffer()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	env.RunString(ctx, "umask 077; touch /tmp/f; mkdir /tmp/d; chmod +rx /tmp/f", "test")
	require.Equal(t, shell.StatusSuccess, env.Exit(ctx))

	for path, want := range map[string]fs.FileMode{
		"/tmp/f": 0700,
		"/tmp/d": fs.ModeDir | 0700,
	} {
		info, err := sys.Fs().Stat(path)
		require.NoError(t, err)
		assert.Equal(t, want, info.Mode(), path)
	}
}
