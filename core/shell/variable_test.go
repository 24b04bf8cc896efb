package shell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarTable_environ(t *testing.T) {
	vars := NewVarTableFromEnviron([]string{"B=2", "A=1", "bad-name=x", "noequals"})

	assert.Equal(t, []string{"A=1", "B=2"}, vars.Environ())

	require.NoError(t, vars.Set("LOCAL", "x"))
	assert.Equal(t, []string{"A=1", "B=2"}, vars.Environ(), "unexported variables stay private")

	require.NoError(t, vars.Export("LOCAL", true))
	assert.Equal(t, []string{"A=1", "B=2", "LOCAL=x"}, vars.Environ())
}

func TestVarTable_readOnly(t *testing.T) {
	vars := NewVarTable()
	require.NoError(t, vars.Set("R", "1"))
	require.NoError(t, vars.MarkReadOnly("R"))

	assert.True(t, errors.Is(vars.Set("R", "2"), ErrReadOnly))
	assert.True(t, errors.Is(vars.Unset("R"), ErrReadOnly))
	assert.Equal(t, "1", vars.Value("R"))
}

func TestVarTable_badName(t *testing.T) {
	vars := NewVarTable()
	assert.Error(t, vars.Set("1abc", "x"))
	assert.Error(t, vars.Set("a-b", "x"))
	assert.NoError(t, vars.Set("_a1", "x"))
}

func TestVarTable_locals(t *testing.T) {
	vars := NewVarTable()
	require.NoError(t, vars.Set("v", "global"))

	vars.PushFrame()
	value := "local"
	require.NoError(t, vars.SetLocal("v", &value))
	assert.Equal(t, "local", vars.Value("v"))
	assert.Equal(t, 1, vars.Depth())

	// Unsetting a local keeps the global hidden.
	require.NoError(t, vars.Unset("v"))
	_, ok := vars.Get("v")
	assert.True(t, ok)
	assert.Equal(t, "", vars.Value("v"))

	vars.PopFrame()
	assert.Equal(t, "global", vars.Value("v"))
	assert.Equal(t, 0, vars.Depth())

	vars.PopFrame()
	assert.Equal(t, 0, vars.Depth(), "the global frame is never popped")
}

func TestVarTable_arrays(t *testing.T) {
	vars := NewVarTable()
	require.NoError(t, vars.Set("a", "zero"))
	require.NoError(t, vars.SetIndex("a", 2, "two"))

	v, _ := vars.Get("a")
	assert.Equal(t, []string{"zero", "", "two"}, v.Values())
	assert.Equal(t, "zero", v.String())
	assert.Error(t, vars.SetIndex("a", -1, "x"))
}

func TestVarTable_Clone(t *testing.T) {
	vars := NewVarTable()
	require.NoError(t, vars.SetArray("a", []string{"x"}))

	clone := vars.Clone()
	require.NoError(t, clone.SetIndex("a", 0, "changed"))
	require.NoError(t, clone.Set("new", "1"))

	assert.Equal(t, "x", vars.Value("a"))
	_, ok := vars.Get("new")
	assert.False(t, ok)
}

func TestVarTable_restore(t *testing.T) {
	vars := NewVarTable()
	require.NoError(t, vars.Set("x", "before"))
	saved, existed := vars.Get("x")

	require.NoError(t, vars.Set("x", "during"))
	require.NoError(t, vars.MarkReadOnly("x"))
	vars.restore("x", saved, existed)
	assert.Equal(t, "before", vars.Value("x"))

	_, existed = vars.Get("tmp")
	require.NoError(t, vars.Set("tmp", "1"))
	vars.restore("tmp", Variable{}, existed)
	_, ok := vars.Get("tmp")
	assert.False(t, ok)
}
