package core

import (
	"archive/tar"
	"bytes"
	"context"
	"io/ioutil"
	"log"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/josephlewis42/vsh/core/config"
	"github.com/josephlewis42/vsh/core/logger"
	"github.com/josephlewis42/vsh/core/shell"
)

func newTestConfig(t *testing.T) (*config.Configuration, afero.Fs) {
	t.Helper()
	configFs := afero.NewMemMapFs()
	cfg, err := config.Initialize(configFs, "/cfg", log.New(ioutil.Discard, "", 0))
	require.NoError(t, err)
	return cfg, configFs
}

func TestSession_virtual(t *testing.T) {
	cfg, _ := newTestConfig(t)
	var stdout, stderr bytes.Buffer
	s, err := NewSession(cfg, SessionOptions{
		Virtual: true,
		Stdout:  &stdout,
		Stderr:  &stderr,
		Arg0:    "script",
		Params:  []string{"a", "b"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	s.RunString(ctx, `echo "$0 $# $HOME $PS4"; cat /etc/motd; pwd; echo x > f; cat "$HOME/f"`, "test")
	assert.Equal(t, shell.StatusSuccess, s.Exit(ctx))
	assert.Equal(t, "script 2 /home/user + \nWelcome to vsh.\n/home/user\nx\n", stdout.String())
	assert.Empty(t, stderr.String())
	assert.Equal(t, VirtualPid, s.System().Getpid())
}

func TestSession_options(t *testing.T) {
	cfg, _ := newTestConfig(t)
	cfg.Options = []string{"pipefail"}

	var stdout bytes.Buffer
	s, err := NewSession(cfg, SessionOptions{Virtual: true, Stdout: &stdout, Options: []string{"nounset"}})
	require.NoError(t, err)

	ctx := context.Background()
	s.RunString(ctx, "false | true; echo $?; echo $-", "test")
	s.Exit(ctx)
	assert.Equal(t, "1\nu\n", stdout.String())

	_, err = NewSession(cfg, SessionOptions{Virtual: true, Options: []string{"bogus"}})
	assert.EqualError(t, err, "bogus: invalid option name")
}

func TestSession_eventLog(t *testing.T) {
	cfg, configFs := newTestConfig(t)
	cfg.EventLog = "events.jsonl"

	s, err := NewSession(cfg, SessionOptions{Virtual: true})
	require.NoError(t, err)
	ctx := context.Background()
	s.RunString(ctx, "true; nosuchcommand", "test")
	assert.Equal(t, shell.StatusNotFound, s.Exit(ctx))

	fd, err := configFs.Open("/cfg/events.jsonl")
	require.NoError(t, err)
	defer fd.Close()

	var kinds []string
	require.NoError(t, logger.ReadJSONLinesLog(fd, func(le *structpb.Struct) {
		kinds = append(kinds, logger.Kind(le))
	}))
	assert.Equal(t, []string{logger.EventRunCommand, logger.EventUnknownCommand, logger.EventExit}, kinds)
}

func TestSession_record(t *testing.T) {
	cfg, _ := newTestConfig(t)
	var stdout, cast bytes.Buffer
	s, err := NewSession(cfg, SessionOptions{Virtual: true, Stdout: &stdout, Record: &cast})
	require.NoError(t, err)

	ctx := context.Background()
	s.RunString(ctx, "echo recorded", "test")
	s.Exit(ctx)

	assert.Equal(t, "recorded\n", stdout.String())
	lines := strings.Split(strings.TrimSpace(cast.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"title":"vsh session `)
	assert.Contains(t, lines[1], `"o","recorded\n"]`)
}

func TestSession_rootFs(t *testing.T) {
	cfg, configFs := newTestConfig(t)

	var image bytes.Buffer
	tw := tar.NewWriter(&image)
	contents := "from the image\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "etc/", Mode: 0755, Typeflag: tar.TypeDir}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "etc/issue", Mode: 0644, Size: int64(len(contents)), Typeflag: tar.TypeReg}))
	_, err := tw.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, afero.WriteFile(configFs, "/cfg/root.tar", image.Bytes(), 0644))
	cfg.RootFs = "root.tar"

	var stdout, stderr bytes.Buffer
	s, err := NewSession(cfg, SessionOptions{Virtual: true, Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)

	ctx := context.Background()
	s.RunString(ctx, "cat /etc/issue; echo changed > /etc/issue; cat /etc/issue", "test")
	s.Exit(ctx)
	assert.Equal(t, "from the image\nchanged\n", stdout.String())
	assert.Empty(t, stderr.String())
}
