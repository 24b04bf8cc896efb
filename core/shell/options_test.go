package shell

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleOptions_Flags() {
	var opts Options
	opts.SetByLetter('e', true)
	opts.SetByName("xtrace", true)
	opts.SetByName("pipefail", true)

	fmt.Println(opts.Flags())
	// Output: ex
}

func ExampleOptionNames() {
	fmt.Println(OptionNames())
	// Output: [allexport errexit monitor noclobber noexec noglob nounset pipefail verbose xtrace]
}

func TestOptions(t *testing.T) {
	var opts Options

	assert.NoError(t, opts.SetByName("noclobber", true))
	assert.True(t, opts.NoClobber)
	on, ok := opts.Get("noclobber")
	assert.True(t, on)
	assert.True(t, ok)

	assert.NoError(t, opts.SetByLetter('C', false))
	assert.False(t, opts.NoClobber)

	assert.EqualError(t, opts.SetByName("bogus", true), "bogus: invalid option name")
	assert.EqualError(t, opts.SetByLetter('z', true), "-z: invalid option")

	_, ok = opts.Get("bogus")
	assert.False(t, ok)
}
