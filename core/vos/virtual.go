package vos

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sync"
	"syscall"
)

// ProcessFunc is the body of a virtual executable.
type ProcessFunc func(p *Process) int

// ProcessResolver looks up a virtual executable by absolute path, it returns
// nil if nothing is installed there.
type ProcessResolver func(path string) ProcessFunc

// Process is the view a virtual executable has of itself.
type Process struct {
	VIO
	VEnv

	sys   *VirtualSystem
	ctx   context.Context
	files []File
	argv  []string
	exe   string
	dir   string
	pid   int
	ppid  int
	umask fs.FileMode
}

// Args holds command line arguments, including the command as Args[0].
func (p *Process) Args() []string { return p.argv }

// Executable returns the absolute path the process was started from.
func (p *Process) Executable() string { return p.exe }

// Getpid returns the process id.
func (p *Process) Getpid() int { return p.pid }

// Getppid returns the parent's process id.
func (p *Process) Getppid() int { return p.ppid }

// Getwd returns the working directory the process was started in.
func (p *Process) Getwd() string { return p.dir }

// Umask returns the file creation mask the process was started with.
func (p *Process) Umask() fs.FileMode { return p.umask }

// Fs returns the filesystem of the system the process runs on.
func (p *Process) Fs() VFS { return p.sys.fs }

// Context is cancelled when the process is killed.
func (p *Process) Context() context.Context { return p.ctx }

// File returns descriptor fd, or nil if it is closed.
func (p *Process) File(fd int) File {
	if fd < 0 || fd >= len(p.files) {
		return nil
	}
	return p.files[fd]
}

// Checkpoint blocks while the process is stopped and returns an error once
// it has been killed. Long-running executables call it between units of
// work.
func (p *Process) Checkpoint() error {
	return p.sys.Checkpoint(p.ctx, p.pid)
}

// Kill sends a signal on behalf of the process.
func (p *Process) Kill(pid int, sig Signal) error {
	return p.sys.Kill(pid, sig)
}

// Abs resolves name relative to the working directory of the process.
func (p *Process) Abs(name string) string {
	return Abs(p.dir, name)
}

// VirtualConfig describes a VirtualSystem.
type VirtualConfig struct {
	// Fs is the filesystem, an empty in-memory one is used if nil.
	Fs VFS
	// Resolver finds virtual executables.
	Resolver ProcessResolver
	// Environ is the environment the shell starts with.
	Environ []string
	// Dir is the starting directory, "/" if empty.
	Dir string
	// Terminal makes the system behave as if it had a controlling terminal.
	Terminal bool
	// Pid is the pid of the shell, 1000 if zero.
	Pid int
}

// VirtualSystem is a System where executables are Go functions.
type VirtualSystem struct {
	table    *procTable
	fs       VFS
	resolver ProcessResolver
	environ  []string
	dir      string
	tty      bool
	pid      int

	mu sync.Mutex
	fg int
}

var _ System = (*VirtualSystem)(nil)

// NewVirtualSystem creates a VirtualSystem from its configuration.
func NewVirtualSystem(cfg VirtualConfig) *VirtualSystem {
	if cfg.Fs == nil {
		cfg.Fs = NewMemFs()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = func(string) ProcessFunc { return nil }
	}
	if cfg.Dir == "" {
		cfg.Dir = "/"
	}
	if cfg.Pid == 0 {
		cfg.Pid = 1000
	}
	vs := &VirtualSystem{
		table:    newProcTable(cfg.Pid + 1),
		fs:       cfg.Fs,
		resolver: cfg.Resolver,
		environ:  append([]string(nil), cfg.Environ...),
		dir:      cfg.Dir,
		tty:      cfg.Terminal,
		pid:      cfg.Pid,
		fg:       cfg.Pid,
	}
	vs.table.addRoot(cfg.Pid, cfg.Pid, 0)
	return vs
}

func (vs *VirtualSystem) Fs() VFS { return vs.fs }

func (vs *VirtualSystem) Getpid() int { return vs.pid }

func (vs *VirtualSystem) Getpgrp() int { return vs.pid }

func (vs *VirtualSystem) Environ() []string { return append([]string(nil), vs.environ...) }

func (vs *VirtualSystem) Getwd() (string, error) { return vs.dir, nil }

func (vs *VirtualSystem) IsTerminal() bool { return vs.tty }

func (vs *VirtualSystem) Pipe() (File, File, error) {
	r, w := NewMemPipe()
	return r, w, nil
}

func (vs *VirtualSystem) StartProcess(parent int, name string, argv []string, attr *ProcAttr) (int, error) {
	if attr == nil {
		attr = &ProcAttr{}
	}
	if len(argv) == 0 {
		argv = []string{name}
	}
	dir := attr.Dir
	if dir == "" {
		dir = vs.dir
	}
	exe := Abs(dir, name)

	fn := vs.resolver(exe)
	if fn == nil {
		closeFiles(attr.Files)
		if _, err := vs.fs.Stat(exe); err != nil {
			return 0, &fs.PathError{Op: "exec", Path: name, Err: syscall.ENOENT}
		}
		return 0, &fs.PathError{Op: "exec", Path: name, Err: syscall.ENOEXEC}
	}

	files := attr.Files
	task := func(ctx context.Context, pid int) int {
		defer closeFiles(files)
		p := &Process{
			VIO:   fileVIO(files),
			VEnv:  NewMapEnvFromEnvList(attr.Env),
			sys:   vs,
			ctx:   ctx,
			files: files,
			argv:  argv,
			exe:   exe,
			dir:   path.Clean(dir),
			pid:   pid,
			ppid:  parent,
			umask: attr.Umask,
		}
		return fn(p)
	}
	return vs.fork(parent, task, attr), nil
}

func (vs *VirtualSystem) Fork(parent int, task Task, attr *ProcAttr) (int, error) {
	if attr == nil {
		attr = &ProcAttr{Pgid: GroupInherit}
	}
	return vs.fork(parent, task, attr), nil
}

func (vs *VirtualSystem) fork(parent int, task Task, attr *ProcAttr) int {
	p := vs.table.fork(parent, task, attr)
	if attr.Foreground && vs.tty && attr.Pgid != GroupInherit {
		vs.mu.Lock()
		vs.fg = p.pgid
		vs.mu.Unlock()
	}
	return p.pid
}

func (vs *VirtualSystem) Kill(pid int, sig Signal) error {
	return vs.table.kill(pid, sig)
}

func (vs *VirtualSystem) SetSignalDisposition(pid int, sig Signal, d Disposition) error {
	return vs.table.setDisposition(pid, sig, d)
}

func (vs *VirtualSystem) Mailbox(pid int) *Mailbox {
	return vs.table.mailbox(pid)
}

func (vs *VirtualSystem) Checkpoint(ctx context.Context, pid int) error {
	return vs.table.checkpoint(ctx, pid)
}

func (vs *VirtualSystem) SetForeground(pgid int) error {
	if !vs.tty {
		return ErrNoTerminal
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.fg = pgid
	return nil
}

func (vs *VirtualSystem) Foreground() (int, error) {
	if !vs.tty {
		return 0, ErrNoTerminal
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.fg, nil
}

// Pgid returns the process group of a live process.
func (vs *VirtualSystem) Pgid(pid int) (int, bool) {
	return vs.table.pgidOf(pid)
}

func closeFiles(files []File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}

func fileVIO(files []File) VIO {
	get := func(fd int) File {
		if fd < len(files) && files[fd] != nil {
			return files[fd]
		}
		return &closedFile{fd: fd}
	}
	return &VIOAdapter{
		IStdin:  nopClose{get(0)},
		IStdout: nopClose{get(1)},
		IStderr: nopClose{get(2)},
	}
}

// nopClose keeps a virtual process from closing descriptors it only
// borrows through VIO; the system closes them when the process ends.
type nopClose struct{ File }

func (nopClose) Close() error { return nil }

type closedFile struct{ fd int }

func (c *closedFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read fd %d: %w", c.fd, syscall.EBADF)
}

func (c *closedFile) Write([]byte) (int, error) {
	return 0, fmt.Errorf("write fd %d: %w", c.fd, syscall.EBADF)
}

func (c *closedFile) Close() error { return nil }
