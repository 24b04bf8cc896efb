package commands

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/josephlewis42/vsh/core/vos"
)

const (
	ModeMaskUser  fs.FileMode = 0700
	ModeMaskGroup fs.FileMode = 0070
	ModeMaskOther fs.FileMode = 0007
	ModeMaskAll               = ModeMaskUser | ModeMaskGroup | ModeMaskOther

	ModeRead  fs.FileMode = 0444
	ModeWrite fs.FileMode = 0222
	ModeExec  fs.FileMode = 0111

	modeSpecial = fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

	// ChmodMask covers every bit chmod may change.
	ChmodMask = ModeMaskAll | modeSpecial
)

// chmodAction is one operator of a symbolic clause, e.g. the +x of u+x.
type chmodAction struct {
	op byte // '+', '-' or '='

	perm     fs.FileMode // r, w and x, replicated to every class
	special  fs.FileMode // s and t
	execIf   bool        // X
	copyFrom fs.FileMode // u, g or o copies that class's current bits
}

// chmodClause is one comma separated part of a symbolic mode. A zero who
// stands for every class filtered through the umask.
type chmodClause struct {
	who     fs.FileMode
	actions []chmodAction
}

// ChmodMode is a parsed chmod MODE operand, either octal or symbolic.
type ChmodMode struct {
	absolute *fs.FileMode
	clauses  []chmodClause
}

// ParseChmodMode parses a POSIX chmod mode such as 644, u+x or go=u-w,a+X.
func ParseChmodMode(expr string) (*ChmodMode, error) {
	invalid := fmt.Errorf("invalid mode: %q", expr)
	if expr == "" {
		return nil, invalid
	}

	if expr[0] >= '0' && expr[0] <= '7' {
		n, err := strconv.ParseUint(expr, 8, 32)
		if err != nil || n > 07777 {
			return nil, invalid
		}
		m := fs.FileMode(n) & ModeMaskAll
		if n&04000 != 0 {
			m |= fs.ModeSetuid
		}
		if n&02000 != 0 {
			m |= fs.ModeSetgid
		}
		if n&01000 != 0 {
			m |= fs.ModeSticky
		}
		return &ChmodMode{absolute: &m}, nil
	}

	mode := &ChmodMode{}
	for _, part := range strings.Split(expr, ",") {
		var clause chmodClause
		i := 0
	who:
		for ; i < len(part); i++ {
			switch part[i] {
			case 'u':
				clause.who |= ModeMaskUser
			case 'g':
				clause.who |= ModeMaskGroup
			case 'o':
				clause.who |= ModeMaskOther
			case 'a':
				clause.who |= ModeMaskAll
			default:
				break who
			}
		}

		for i < len(part) {
			action := chmodAction{op: part[i]}
			if action.op != '+' && action.op != '-' && action.op != '=' {
				return nil, invalid
			}
			i++

			if i < len(part) && strings.IndexByte("ugo", part[i]) >= 0 {
				action.copyFrom = classMask(part[i])
				i++
			} else {
			perm:
				for ; i < len(part); i++ {
					switch part[i] {
					case 'r':
						action.perm |= ModeRead
					case 'w':
						action.perm |= ModeWrite
					case 'x':
						action.perm |= ModeExec
					case 'X':
						action.execIf = true
					case 's':
						action.special |= fs.ModeSetuid | fs.ModeSetgid
					case 't':
						action.special |= fs.ModeSticky
					default:
						break perm
					}
				}
			}
			clause.actions = append(clause.actions, action)
		}
		if len(clause.actions) == 0 {
			return nil, invalid
		}
		mode.clauses = append(mode.clauses, clause)
	}
	return mode, nil
}

func classMask(c byte) fs.FileMode {
	switch c {
	case 'u':
		return ModeMaskUser
	case 'g':
		return ModeMaskGroup
	default:
		return ModeMaskOther
	}
}

// replicate copies the class selected by mask of orig to every class.
func replicate(orig, mask fs.FileMode) fs.FileMode {
	var bits fs.FileMode
	switch mask {
	case ModeMaskUser:
		bits = (orig & mask) >> 6
	case ModeMaskGroup:
		bits = (orig & mask) >> 3
	default:
		bits = orig & mask
	}
	return bits<<6 | bits<<3 | bits
}

// Apply returns orig with its permission bits rewritten. umask filters the
// bits of clauses that name no class. Type bits are kept.
func (m *ChmodMode) Apply(orig, umask fs.FileMode) fs.FileMode {
	if m.absolute != nil {
		return (orig &^ ChmodMask) | *m.absolute
	}

	cur := orig
	for _, clause := range m.clauses {
		who, filter := clause.who, ModeMaskAll
		if who == 0 {
			who, filter = ModeMaskAll, ModeMaskAll&^umask
		}
		var whoSpecial fs.FileMode
		if who&ModeMaskUser != 0 {
			whoSpecial |= fs.ModeSetuid
		}
		if who&ModeMaskGroup != 0 {
			whoSpecial |= fs.ModeSetgid
		}
		whoSpecial |= fs.ModeSticky

		for _, action := range clause.actions {
			perm := action.perm
			if action.copyFrom != 0 {
				perm = replicate(cur, action.copyFrom)
			}
			if action.execIf && (cur&ModeExec != 0 || cur.IsDir()) {
				perm |= ModeExec
			}
			perm &= who & filter
			special := action.special & whoSpecial

			switch action.op {
			case '+':
				cur |= perm | special
			case '-':
				cur &^= perm | special
			case '=':
				cleared := who
				if clause.who != 0 {
					cleared |= whoSpecial &^ fs.ModeSticky
				}
				cur = (cur &^ cleared) | perm | special
			}
		}
	}
	return cur
}

// Chmod implements a POSIX chmod command.
func Chmod(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "chmod [-R] MODE FILE...",
		Short: "Change the mode of each FILE to MODE.",
	}

	// Modes such as -w look like flags, so only -R and -- are recognized.
	args := proc.Args()[1:]
	recursive := false
	for len(args) > 0 {
		if args[0] == "-R" || args[0] == "--recursive" {
			recursive = true
		} else if args[0] != "--" {
			break
		}
		stop := args[0] == "--"
		args = args[1:]
		if stop {
			break
		}
	}
	if len(args) < 2 {
		fmt.Fprintln(proc.Stderr(), "chmod: missing operand")
		cmd.PrintHelp(proc.Stdout())
		return 1
	}

	mode, err := ParseChmodMode(args[0])
	if err != nil {
		fmt.Fprintf(proc.Stderr(), "chmod: %v\n", err)
		return 1
	}

	vfs := proc.Fs()
	change := func(name, target string, info fs.FileMode) bool {
		if err := vfs.Chmod(target, mode.Apply(info, proc.Umask())); err != nil {
			fmt.Fprintf(proc.Stderr(), "chmod: changing permissions of %s: %v\n", name, unwrapPathError(err))
			return false
		}
		return true
	}

	ok := true
	for _, name := range args[1:] {
		if err := proc.Checkpoint(); err != nil {
			return 1
		}
		target := proc.Abs(name)
		stat, err := vfs.Stat(target)
		if err != nil {
			fmt.Fprintf(proc.Stderr(), "chmod: cannot access %s: %v\n", name, unwrapPathError(err))
			ok = false
			continue
		}
		if !recursive || !stat.IsDir() {
			ok = change(name, target, stat.Mode()) && ok
			continue
		}

		err = afero.Walk(vfs, target, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := proc.Checkpoint(); err != nil {
				return err
			}
			ok = change(path, path, info.Mode()) && ok
			return nil
		})
		if err != nil {
			if proc.Context().Err() != nil {
				return 1
			}
			fmt.Fprintf(proc.Stderr(), "chmod: %s: %v\n", name, unwrapPathError(err))
			ok = false
		}
	}

	if !ok {
		return 1
	}
	return 0
}

var _ vos.ProcessFunc = Chmod

func init() {
	addBinCmd("chmod", Chmod)
}
