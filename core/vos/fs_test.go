package vos

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalSymlinks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "real", "sub"), 0755))
	require.NoError(t, os.Symlink("real", filepath.Join(root, "link")))
	require.NoError(t, os.Symlink("link/sub", filepath.Join(root, "deep")))
	require.NoError(t, os.Symlink("/real", filepath.Join(root, "real", "sub", "top")))
	require.NoError(t, os.Symlink("loop", filepath.Join(root, "loop")))
	vfs := afero.NewBasePathFs(afero.NewOsFs(), root)

	cases := map[string]struct {
		name string
		want string
	}{
		"plain":               {"/real/sub", "/real/sub"},
		"link":                {"/link", "/real"},
		"link to link":        {"/deep", "/real/sub"},
		"absolute target":     {"/deep/top/sub", "/real/sub"},
		"dot dot is physical": {"/deep/..", "/real"},
		"root":                {"/", "/"},
	}
	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			got, err := EvalSymlinks(vfs, tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := EvalSymlinks(vfs, "/loop")
	assert.True(t, errors.Is(err, syscall.ELOOP), "%v", err)

	_, err = EvalSymlinks(vfs, "/link/missing")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "%v", err)
}

func TestEvalSymlinks_noLinkSupport(t *testing.T) {
	vfs := NewMemFs()
	require.NoError(t, vfs.MkdirAll("/a/b", 0755))

	got, err := EvalSymlinks(vfs, "/a/./b/")
	require.NoError(t, err)
	assert.Equal(t, "/a/b", got)

	_, err = EvalSymlinks(vfs, "/nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "%v", err)
}
