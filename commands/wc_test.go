package commands

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/josephlewis42/vsh/core/vos/vostest"
)

func TestWc(t *testing.T) {
	cases := goldenTestSuite{
		"no-arg":  {[]string{"wc"}},
		"missing": {[]string{"wc", "does not exist.txt"}},
	}

	cases.Run(t, Wc)
}

func TestWc_single_file(t *testing.T) {
	cmd := vostest.Command(Wc, "wc", "/foo.txt")

	// Test with missing file
	{
		assert.Nil(t, cmd.Run())

		assert.NotEqual(t, 0, cmd.ExitStatus, "exit code")
	}
	{
		// Create file and
		helloWorld := []byte("Hello,\nworld !")
		assert.Nil(t, afero.WriteFile(cmd.Fs, "/foo.txt", helloWorld, 0600))

		out, err := cmd.CombinedOutput()

		assert.Equal(t, 0, cmd.ExitStatus, "exit code")
		assert.Nil(t, err)
		assert.Equal(t, "1 3 14 /foo.txt\n", string(out))
	}
}

func TestWc_total(t *testing.T) {
	cmd := vostest.Command(Wc, "wc", "-l", "a", "b")
	cmd.Dir = "/"
	assert.Nil(t, afero.WriteFile(cmd.Fs, "/a", []byte("1\n2\n"), 0600))
	assert.Nil(t, afero.WriteFile(cmd.Fs, "/b", []byte("3\n"), 0600))

	out, err := cmd.CombinedOutput()

	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus, "exit code")
	assert.Equal(t, "2 a\n1 b\n3 total\n", string(out))
}

func TestWc_counts(t *testing.T) {
	cases := map[string]struct {
		args  []string
		stdin string
		want  string
	}{
		"default":             {[]string{"wc"}, "one two\nthree\n", "2 3 14\n"},
		"words":               {[]string{"wc", "-w"}, "  a\tb\n\nc  ", "3\n"},
		"chars":               {[]string{"wc", "-m"}, "héllo\n", "6\n"},
		"bytes":               {[]string{"wc", "-c"}, "héllo\n", "7\n"},
		"chars over bytes":    {[]string{"wc", "-cm"}, "日本\n", "3\n"},
		"no trailing newline": {[]string{"wc", "-l"}, "a\nb", "1\n"},
		"dash is stdin":       {[]string{"wc", "-l", "-"}, "a\n", "1 -\n"},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			cmd := vostest.Command(Wc, tc.args[0], tc.args[1:]...)
			cmd.Stdin = strings.NewReader(tc.stdin)
			out, err := cmd.CombinedOutput()
			assert.NoError(t, err)
			assert.Equal(t, 0, cmd.ExitStatus)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestWcCounter_splitCharacters(t *testing.T) {
	data := []byte("añb €\n")
	w := &wcCounter{}
	for i := range data {
		w.Write(data[i : i+1])
	}
	w.flush()

	assert.Equal(t, len(data), w.bytes)
	assert.Equal(t, 6, w.chars)
	assert.Equal(t, 2, w.words)
	assert.Equal(t, 1, w.lines)
}

func TestWc_missingFileContinues(t *testing.T) {
	cmd := vostest.Command(Wc, "wc", "-l", "/nope", "/a")
	assert.Nil(t, afero.WriteFile(cmd.Fs, "/a", []byte("1\n2\n"), 0600))

	out, err := cmd.CombinedOutput()

	assert.Nil(t, err)
	assert.Equal(t, 1, cmd.ExitStatus, "exit code")
	assert.Equal(t, "wc: open /nope: file does not exist\n2 /a\n2 total\n", string(out))
}
