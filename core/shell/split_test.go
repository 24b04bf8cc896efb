package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/core/vos/vostest"
)

func TestEnv_SplitFields(t *testing.T) {
	cases := map[string]struct {
		ifs   *string
		input string
		n     int
		want  []string
	}{
		"default ifs":       {nil, "  a  b c ", 0, []string{"a", "b", "c"}},
		"empty input":       {nil, "", 0, []string{}},
		"only whitespace":   {nil, " \t\n", 0, []string{}},
		"limit":             {nil, "one two  three ", 2, []string{"one", "two  three"}},
		"limit one":         {nil, "  one two ", 1, []string{"one two"}},
		"colon":             {strPtr(":"), "a:b::c", 0, []string{"a", "b", "", "c"}},
		"colon and space":   {strPtr(": "), " a : b ", 0, []string{"a", "b"}},
		"empty ifs":         {strPtr(""), " a b ", 0, []string{" a b "}},
		"empty ifs nothing": {strPtr(""), "", 0, nil},
	}

	for tn, tc := range cases {
		tc := tc
		t.Run(tn, func(t *testing.T) {
			e, err := New(vostest.NewSystem(nil, nil))
			require.NoError(t, err)
			if tc.ifs != nil {
				require.NoError(t, e.SetVar(EnvIFS, *tc.ifs))
			}

			got := e.SplitFields(tc.input, tc.n)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func strPtr(s string) *string {
	return &s
}
