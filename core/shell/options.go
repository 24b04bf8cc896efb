package shell

import (
	"fmt"
	"sort"
	"strings"
)

// Options are the shell's set -o flags.
type Options struct {
	AllExport   bool // -a
	ErrExit     bool // -e
	NoGlob      bool // -f
	Monitor     bool // -m
	NoClobber   bool // -C
	NoExec      bool // -n
	NoUnset     bool // -u
	Verbose     bool // -v
	XTrace      bool // -x
	PipeFail    bool
	Interactive bool // -i, read-only after start-up
}

type optionInfo struct {
	name   string
	letter byte
	field  func(*Options) *bool
}

var optionTable = []optionInfo{
	{"allexport", 'a', func(o *Options) *bool { return &o.AllExport }},
	{"errexit", 'e', func(o *Options) *bool { return &o.ErrExit }},
	{"noglob", 'f', func(o *Options) *bool { return &o.NoGlob }},
	{"monitor", 'm', func(o *Options) *bool { return &o.Monitor }},
	{"noclobber", 'C', func(o *Options) *bool { return &o.NoClobber }},
	{"noexec", 'n', func(o *Options) *bool { return &o.NoExec }},
	{"nounset", 'u', func(o *Options) *bool { return &o.NoUnset }},
	{"verbose", 'v', func(o *Options) *bool { return &o.Verbose }},
	{"xtrace", 'x', func(o *Options) *bool { return &o.XTrace }},
	{"pipefail", 0, func(o *Options) *bool { return &o.PipeFail }},
}

// SetByName turns the long option name on or off.
func (o *Options) SetByName(name string, on bool) error {
	for _, info := range optionTable {
		if info.name == name {
			*info.field(o) = on
			return nil
		}
	}
	return fmt.Errorf("%s: invalid option name", name)
}

// SetByLetter turns the single-letter option on or off.
func (o *Options) SetByLetter(letter byte, on bool) error {
	for _, info := range optionTable {
		if info.letter != 0 && info.letter == letter {
			*info.field(o) = on
			return nil
		}
	}
	return fmt.Errorf("-%c: invalid option", letter)
}

// Get reports the value of a long option.
func (o *Options) Get(name string) (bool, bool) {
	for _, info := range optionTable {
		if info.name == name {
			return *info.field(o), true
		}
	}
	return false, false
}

// Flags renders the value of $-.
func (o Options) Flags() string {
	var sb strings.Builder
	for _, info := range optionTable {
		if info.letter != 0 && *info.field(&o) {
			sb.WriteByte(info.letter)
		}
	}
	if o.Interactive {
		sb.WriteByte('i')
	}
	return sb.String()
}

// OptionNames lists every long option name in alphabetical order.
func OptionNames() []string {
	out := make([]string, 0, len(optionTable))
	for _, info := range optionTable {
		out = append(out, info.name)
	}
	sort.Strings(out)
	return out
}
