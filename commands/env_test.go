package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josephlewis42/vsh/core/vos/vostest"
)

func TestEnv_contents(t *testing.T) {
	cmd := vostest.Command(Env, "env")
	cmd.Setenv("C", "charlie")
	cmd.Setenv("A", "alpha")
	cmd.Setenv("B", "bravo")

	out, err := cmd.CombinedOutput()

	assert.Equal(t, 0, cmd.ExitStatus, "exit code")
	assert.Nil(t, err)
	assert.Equal(t, "A=alpha\nB=bravo\nC=charlie\nHOME=/home/user\nLOGNAME=user\nPATH=/bin:/usr/bin\nUSER=user\n", string(out))
}

func TestEnv_assignments(t *testing.T) {
	cmd := vostest.Command(Env, "env", "-i", "B=2", "A=1")

	out, err := cmd.CombinedOutput()

	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus, "exit code")
	assert.Equal(t, "A=1\nB=2\n", string(out))
}
