package commands

import (
	"testing"
)

func TestWhoami(t *testing.T) {
	cases := goldenTestSuite{
		"no-arg": {[]string{"whoami"}},
	}

	cases.Run(t, Whoami)
}
