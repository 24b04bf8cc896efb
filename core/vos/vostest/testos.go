// Package vostest holds helpers for running code against a deterministic
// virtual system.
package vostest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/josephlewis42/vsh/core/vos"
)

// DefaultEnviron is the environment of systems built by NewSystem.
var DefaultEnviron = []string{
	"HOME=/home/user",
	"LOGNAME=user",
	"PATH=/bin:/usr/bin",
	"USER=user",
}

// SingleProcessResolver resolves every path to process.
func SingleProcessResolver(process vos.ProcessFunc) vos.ProcessResolver {
	return func(path string) vos.ProcessFunc {
		return process
	}
}

// MapResolver resolves absolute paths through a table.
func MapResolver(programs map[string]vos.ProcessFunc) vos.ProcessResolver {
	return func(path string) vos.ProcessFunc {
		return programs[path]
	}
}

// NewSystem creates a virtual system with a fixed pid, environment and
// directory layout. Every path in programs gets a placeholder executable so
// that PATH lookups find it. A nil fs gets a fresh in-memory filesystem.
func NewSystem(fs vos.VFS, programs map[string]vos.ProcessFunc) *vos.VirtualSystem {
	return newSystem(fs, programs, false)
}

// NewTerminalSystem is NewSystem with a controlling terminal, so job
// control can hand the foreground to process groups.
func NewTerminalSystem(fs vos.VFS, programs map[string]vos.ProcessFunc) *vos.VirtualSystem {
	return newSystem(fs, programs, true)
}

func newSystem(fs vos.VFS, programs map[string]vos.ProcessFunc, tty bool) *vos.VirtualSystem {
	if fs == nil {
		fs = vos.NewMemFs()
	}
	seed := map[string]string{
		"/tmp/":       "",
		"/home/user/": "",
	}
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		seed[name] = fmt.Sprintf("#!virtual %s\n", name)
	}
	if err := vos.SeedFs(fs, seed); err != nil {
		panic(err)
	}
	for _, name := range names {
		if err := fs.Chmod(name, 0755); err != nil {
			panic(err)
		}
	}

	return vos.NewVirtualSystem(vos.VirtualConfig{
		Fs:       fs,
		Resolver: MapResolver(programs),
		Environ:  append([]string(nil), DefaultEnviron...),
		Dir:      "/home/user",
		Terminal: tty,
	})
}

// Wait blocks until pid, a child of parent, terminates and returns the
// final event. Other events are discarded.
func Wait(ctx context.Context, sys vos.System, parent, pid int) (vos.ChildEvent, error) {
	mb := sys.Mailbox(parent)
	for {
		for _, ev := range mb.TakeEvents() {
			if ev.Pid == pid && ev.Terminated() {
				return ev, nil
			}
		}
		select {
		case <-mb.Notify():
		case <-ctx.Done():
			return vos.ChildEvent{}, ctx.Err()
		}
	}
}

// Cmd is similar to exec.Cmd.
type Cmd struct {
	// Process function
	Process vos.ProcessFunc
	// Process arguments, the first argument should be the process name.
	Argv []string
	// If Dir is non-empty, the child changes into the directory before
	// creating the process.
	Dir string
	// Env holds the environment of the process, DefaultEnviron if nil.
	Env []string
	// Fs is the filesystem the process sees.
	Fs vos.VFS

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ExitStatus int
}

// Command returns a Cmd that will run process with the given arguments on a
// fresh filesystem.
func Command(process vos.ProcessFunc, name string, arg ...string) *Cmd {
	return &Cmd{
		Process: process,
		Argv:    append([]string{name}, arg...),
		Fs:      vos.NewMemFs(),
	}
}

// Setenv adds a variable to the environment of the process.
func (c *Cmd) Setenv(key, value string) {
	if c.Env == nil {
		c.Env = append([]string(nil), DefaultEnviron...)
	}
	c.Env = append(c.Env, key+"="+value)
}

// CombinedOutput runs the command and returns its stdout and stderr.
func (c *Cmd) CombinedOutput() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf

	if err := c.Run(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the comand and waits for it to complete.
func (c *Cmd) Run() error {
	if c.Fs == nil {
		c.Fs = vos.NewMemFs()
	}
	sys := vos.NewVirtualSystem(vos.VirtualConfig{
		Fs:       c.Fs,
		Resolver: SingleProcessResolver(c.Process),
		Environ:  DefaultEnviron,
		Dir:      "/",
	})

	env := c.Env
	if env == nil {
		env = DefaultEnviron
	}
	stdin := vos.File(vos.DevNull())
	if c.Stdin != nil {
		stdin = vos.ReaderFile(c.Stdin)
	}
	files := []vos.File{stdin, writerOrNull(c.Stdout), writerOrNull(c.Stderr)}

	pid, err := sys.StartProcess(sys.Getpid(), c.Argv[0], c.Argv, &vos.ProcAttr{
		Dir:   c.Dir,
		Env:   env,
		Files: files,
		Pgid:  vos.GroupInherit,
	})
	if err != nil {
		return err
	}

	ev, err := Wait(context.Background(), sys, sys.Getpid(), pid)
	if err != nil {
		return err
	}
	c.ExitStatus = ev.ExitStatus()
	return nil
}

func writerOrNull(w io.Writer) vos.File {
	if w == nil {
		return vos.DevNull()
	}
	return vos.WriterFile(w)
}
