package commands

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/core/vos"
	"github.com/josephlewis42/vsh/core/vos/vostest"
)

func runOn(t *testing.T, fs vos.VFS, process vos.ProcessFunc, args ...string) (string, int) {
	t.Helper()
	cmd := vostest.Command(process, args[0], args[1:]...)
	cmd.Fs = fs
	cmd.Dir = "/work"
	out, err := cmd.CombinedOutput()
	require.NoError(t, err)
	return string(out), cmd.ExitStatus
}

func newWorkFs(t *testing.T) vos.VFS {
	t.Helper()
	fs := vos.NewMemFs()
	require.NoError(t, fs.MkdirAll("/work", 0755))
	return fs
}

func TestMkdir(t *testing.T) {
	fs := newWorkFs(t)

	_, status := runOn(t, fs, Mkdir, "mkdir", "a")
	assert.Equal(t, 0, status)
	isDir, _ := afero.IsDir(fs, "/work/a")
	assert.True(t, isDir)

	out, status := runOn(t, fs, Mkdir, "mkdir", "a")
	assert.Equal(t, 1, status)
	assert.Equal(t, "mkdir: cannot create directory \"a\": file already exists\n", out)

	_, status = runOn(t, fs, Mkdir, "mkdir", "-p", "x/y/z")
	assert.Equal(t, 0, status)
	isDir, _ = afero.IsDir(fs, "/work/x/y/z")
	assert.True(t, isDir)
}

func TestRmdir(t *testing.T) {
	fs := newWorkFs(t)
	require.NoError(t, fs.MkdirAll("/work/a/b/c", 0755))
	require.NoError(t, afero.WriteFile(fs, "/work/full/file", nil, 0644))

	out, status := runOn(t, fs, Rmdir, "rmdir", "full")
	assert.Equal(t, 1, status)
	assert.Contains(t, out, "directory not empty")

	_, status = runOn(t, fs, Rmdir, "rmdir", "-p", "a/b/c")
	assert.Equal(t, 0, status)
	exists, _ := afero.Exists(fs, "/work/a")
	assert.False(t, exists)
}

func TestRm(t *testing.T) {
	fs := newWorkFs(t)
	require.NoError(t, afero.WriteFile(fs, "/work/file", nil, 0644))
	require.NoError(t, afero.WriteFile(fs, "/work/dir/inner", nil, 0644))

	_, status := runOn(t, fs, Rm, "rm", "file")
	assert.Equal(t, 0, status)
	exists, _ := afero.Exists(fs, "/work/file")
	assert.False(t, exists)

	out, status := runOn(t, fs, Rm, "rm", "dir")
	assert.Equal(t, 1, status)
	assert.Equal(t, "rm: can't remove \"dir\": is a directory\n", out)

	_, status = runOn(t, fs, Rm, "rm", "-r", "dir")
	assert.Equal(t, 0, status)
	exists, _ = afero.Exists(fs, "/work/dir")
	assert.False(t, exists)

	out, status = runOn(t, fs, Rm, "rm", "missing")
	assert.Equal(t, 1, status)
	assert.Contains(t, out, "no such file or directory")

	out, status = runOn(t, fs, Rm, "rm", "-f", "missing")
	assert.Equal(t, 0, status)
	assert.Empty(t, out)
}

func TestTouch(t *testing.T) {
	fs := newWorkFs(t)

	_, status := runOn(t, fs, Touch, "touch", "-c", "skipped")
	assert.Equal(t, 0, status)
	exists, _ := afero.Exists(fs, "/work/skipped")
	assert.False(t, exists)

	_, status = runOn(t, fs, Touch, "touch", "created")
	assert.Equal(t, 0, status)
	exists, _ = afero.Exists(fs, "/work/created")
	assert.True(t, exists)
}

func TestChmod(t *testing.T) {
	fs := newWorkFs(t)
	require.NoError(t, afero.WriteFile(fs, "/work/script", nil, 0644))

	_, status := runOn(t, fs, Chmod, "chmod", "+x", "script")
	assert.Equal(t, 0, status)
	info, err := fs.Stat("/work/script")
	require.NoError(t, err)
	assert.Equal(t, "-rwxr-xr-x", info.Mode().String())

	out, status := runOn(t, fs, Chmod, "chmod", "600")
	assert.Equal(t, 1, status)
	assert.Contains(t, out, "missing operand")
}

func TestGrep(t *testing.T) {
	fs := newWorkFs(t)
	require.NoError(t, afero.WriteFile(fs, "/work/a", []byte("alpha\nbeta\nALPHABET\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/work/b", []byte("gamma\n"), 0644))

	cases := map[string]struct {
		args       []string
		wantOut    string
		wantStatus int
	}{
		"match":       {[]string{"grep", "alpha", "a"}, "alpha\n", 0},
		"ignore case": {[]string{"grep", "-i", "alpha", "a"}, "alpha\nALPHABET\n", 0},
		"invert":      {[]string{"grep", "-v", "-n", "alpha", "a"}, "2:beta\n3:ALPHABET\n", 0},
		"many files":  {[]string{"grep", "a$", "a", "b"}, "a:alpha\na:beta\nb:gamma\n", 0},
		"no match":    {[]string{"grep", "delta", "a"}, "", 1},
		"no pattern":  {[]string{"grep"}, "grep: missing argument PATTERN\n", 2},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			out, status := runOn(t, fs, Grep, tc.args...)
			assert.Equal(t, tc.wantOut, out)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestGrep_stdin(t *testing.T) {
	cmd := vostest.Command(Grep, "grep", "b")
	cmd.Stdin = strings.NewReader("a\nb\nc\n")

	out, err := cmd.CombinedOutput()

	require.NoError(t, err)
	assert.Equal(t, 0, cmd.ExitStatus)
	assert.Equal(t, "b\n", string(out))
}

func TestWhich(t *testing.T) {
	fs := newWorkFs(t)
	require.NoError(t, afero.WriteFile(fs, "/bin/tool", nil, 0755))
	require.NoError(t, afero.WriteFile(fs, "/bin/data", nil, 0644))

	out, status := runOn(t, fs, Which, "which", "tool", "data", "missing")
	assert.Equal(t, "/bin/tool\n", out)
	assert.Equal(t, 1, status)
}
