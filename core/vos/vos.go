// Package vos is the operating-system boundary of the shell.
//
// A System creates processes with explicit process-group assignment, routes
// signals, and reports child state changes. Two implementations exist:
// VirtualSystem, where executables are Go functions and the filesystem is in
// memory, and RealSystem, backed by the host kernel. Subshells are never
// forked; they run as tasks registered in the same process table so they can
// be waited for, stopped and killed like any other child.
package vos

import (
	"context"
	"fmt"
	"io/fs"
	"syscall"
)

// System is the set of OS services the shell depends on.
type System interface {
	// Fs is the filesystem processes see. Paths given to it are absolute.
	Fs() VFS

	// Getpid returns the pid of the shell process itself.
	Getpid() int

	// Getpgrp returns the process group of the shell process itself.
	Getpgrp() int

	// Environ returns the environment the shell was started with.
	Environ() []string

	// Getwd returns the directory the shell was started in.
	Getwd() (string, error)

	// IsTerminal reports whether the shell has a controlling terminal.
	IsTerminal() bool

	// Pipe creates a connected pair of files.
	Pipe() (r, w File, err error)

	// StartProcess executes the program at path. The System takes ownership
	// of attr.Files and closes them when the child no longer needs them.
	StartProcess(parent int, path string, argv []string, attr *ProcAttr) (pid int, err error)

	// Fork runs task as a new child process of parent. The task runs on its
	// own goroutine and its return value becomes the child's exit code.
	Fork(parent int, task Task, attr *ProcAttr) (pid int, err error)

	// Kill sends sig to pid, or to every member of the group -pid when pid
	// is negative. A zero signal only checks for existence.
	Kill(pid int, sig Signal) error

	// SetSignalDisposition changes how process pid reacts to sig.
	SetSignalDisposition(pid int, sig Signal, d Disposition) error

	// Mailbox returns the queue of notifications for process pid.
	Mailbox(pid int) *Mailbox

	// Checkpoint blocks while process pid is stopped and returns an error
	// once it has been told to terminate.
	Checkpoint(ctx context.Context, pid int) error

	// SetForeground hands the controlling terminal to process group pgid.
	SetForeground(pgid int) error

	// Foreground returns the process group owning the terminal.
	Foreground() (int, error)
}

// Task is the body of a forked child.
type Task func(ctx context.Context, pid int) int

// ProcAttr holds the attributes of a new process.
type ProcAttr struct {
	// Dir is the working directory of the child.
	Dir string

	// Env holds "key=value" entries for the child.
	Env []string

	// Files are the open descriptors of the child, indexed by number. Nil
	// entries are closed in the child.
	Files []File

	// Pgid selects the process group: GroupInherit keeps the parent's,
	// GroupNew makes the child lead a new group, anything else joins that
	// group.
	Pgid int

	// Foreground gives the new group the terminal; only meaningful when the
	// child leads or joins a group other than the parent's.
	Foreground bool

	// Ignored lists signals that stay ignored in the child.
	Ignored []Signal

	// Umask is the file creation mask of a virtual child. Host children
	// inherit the mask of this process.
	Umask fs.FileMode
}

const (
	// GroupInherit keeps the child in its parent's process group.
	GroupInherit = -1
	// GroupNew makes the child the leader of a new process group.
	GroupNew = 0
)

// ProcState is the observable state of a child.
type ProcState int

const (
	// ProcRunning is reported when a stopped child continues.
	ProcRunning ProcState = iota
	// ProcStopped means the child was suspended by a signal.
	ProcStopped
	// ProcExited means the child terminated normally.
	ProcExited
	// ProcSignaled means the child was terminated by a signal.
	ProcSignaled
)

func (s ProcState) String() string {
	switch s {
	case ProcStopped:
		return "stopped"
	case ProcExited:
		return "exited"
	case ProcSignaled:
		return "signaled"
	default:
		return "running"
	}
}

// ChildEvent is a state change of a child process.
type ChildEvent struct {
	Pid    int
	State  ProcState
	Code   int
	Signal Signal
}

// Terminated reports whether the child is gone.
func (e ChildEvent) Terminated() bool {
	return e.State == ProcExited || e.State == ProcSignaled
}

// ExitStatus converts the event into a shell exit status.
func (e ChildEvent) ExitStatus() int {
	switch e.State {
	case ProcExited:
		return e.Code & 0xff
	case ProcSignaled, ProcStopped:
		return 128 + int(e.Signal)
	default:
		return 0
	}
}

func (e ChildEvent) String() string {
	switch e.State {
	case ProcExited:
		return fmt.Sprintf("pid %d exited %d", e.Pid, e.Code)
	case ProcSignaled, ProcStopped:
		return fmt.Sprintf("pid %d %s by SIG%s", e.Pid, e.State, SignalName(e.Signal))
	default:
		return fmt.Sprintf("pid %d continued", e.Pid)
	}
}

// ErrNoSuchProcess is returned by Kill for unknown pids.
var ErrNoSuchProcess = syscall.ESRCH

// ErrNoTerminal is returned by terminal operations when the shell has no
// controlling terminal.
var ErrNoTerminal = syscall.ENOTTY
