package shell_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// TestRun_golden runs every script under testdata/scripts and compares its
// output and status with the matching golden file.
func TestRun_golden(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	scripts, err := filepath.Glob(filepath.Join("testdata", "scripts", "*.sh"))
	require.NoError(t, err)
	require.NotEmpty(t, scripts)

	for _, script := range scripts {
		script := script
		name := strings.TrimSuffix(filepath.Base(script), ".sh")
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(script)
			require.NoError(t, err)

			res := run(t, string(src))
			out := fmt.Sprintf("%s--- stderr\n%s--- status %d\n", res.Stdout, res.Stderr, res.Status)
			g.Assert(t, name, []byte(out))
		})
	}
}
