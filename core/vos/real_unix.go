//go:build linux || darwin || freebsd

package vos

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// firstTaskPid is the first pid handed to tasks on a RealSystem, chosen
// above the kernel's pid_max so the two ranges never collide.
const firstTaskPid = 1 << 22

// RealSystem is a System backed by the host kernel. External programs are
// real processes; subshells are tasks inside the shell process.
type RealSystem struct {
	table *procTable
	fs    VFS
	pid   int
	pgrp  int
	ttyFd int

	mu     sync.Mutex
	groups map[int]int

	sigMu   sync.Mutex
	catches map[Signal]chan os.Signal
}

var _ System = (*RealSystem)(nil)

// NewRealSystem attaches to the current process. The terminal is taken from
// stdin when it is one.
func NewRealSystem() *RealSystem {
	rs := &RealSystem{
		table:   newProcTable(firstTaskPid),
		fs:      NewOsFs(),
		pid:     os.Getpid(),
		pgrp:    unix.Getpgrp(),
		ttyFd:   -1,
		groups:  make(map[int]int),
		catches: make(map[Signal]chan os.Signal),
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		rs.ttyFd = fd
		// A background shell must still be able to hand the terminal over.
		signal.Ignore(syscall.SIGTTOU)
	}
	rs.table.osKill = unix.Kill
	rs.table.addRoot(rs.pid, rs.pgrp, rs.pid)
	return rs
}

func (rs *RealSystem) Fs() VFS { return rs.fs }

func (rs *RealSystem) Getpid() int { return rs.pid }

func (rs *RealSystem) Getpgrp() int { return rs.pgrp }

func (rs *RealSystem) Environ() []string { return os.Environ() }

func (rs *RealSystem) Getwd() (string, error) { return os.Getwd() }

func (rs *RealSystem) IsTerminal() bool { return rs.ttyFd >= 0 }

func (rs *RealSystem) Pipe() (File, File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return r, w, nil
}

func (rs *RealSystem) StartProcess(parent int, name string, argv []string, attr *ProcAttr) (int, error) {
	if attr == nil {
		attr = &ProcAttr{Pgid: GroupInherit}
	}
	owned := attr.Files

	files, pumps, cleanup, err := osFiles(owned)
	if err != nil {
		closeFiles(owned)
		return 0, err
	}

	sys := &syscall.SysProcAttr{}
	newGroup := attr.Pgid != GroupInherit
	joined := 0
	if newGroup {
		sys.Setpgid = true
		rs.mu.Lock()
		if osPgid, ok := rs.groups[attr.Pgid]; ok && attr.Pgid != GroupNew {
			sys.Pgid = osPgid
			joined = osPgid
		}
		rs.mu.Unlock()
		if attr.Foreground && rs.ttyFd >= 0 {
			sys.Foreground = true
			sys.Ctty = rs.ttyFd
		}
	}

	var p *os.Process
	for {
		p, err = os.StartProcess(Abs(attr.Dir, name), argv, &os.ProcAttr{
			Dir:   attr.Dir,
			Env:   attr.Env,
			Files: files,
			Sys:   sys,
		})
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	cleanup()
	if err != nil {
		pumps.abort()
		closeFiles(owned)
		return 0, err
	}
	pid := p.Pid
	_ = p.Release()

	if newGroup && joined == 0 {
		group := attr.Pgid
		if group == GroupNew {
			group = pid
		}
		rs.mu.Lock()
		rs.groups[group] = pid
		rs.mu.Unlock()
	}

	// Ignored signals reach the program through exec inheritance: the shell
	// itself ignores them at this point.
	child := rs.table.add(parent, attr, pid)
	go rs.watch(child.pid, func() {
		if err := pumps.wait(); err != nil && !errors.Is(err, os.ErrClosed) {
			log.Printf("vos: pid %d: copying output: %v", pid, err)
		}
		closeFiles(owned)
	})
	return pid, nil
}

// watch reaps pid and reports every state change it goes through.
func (rs *RealSystem) watch(pid int, done func()) {
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED|unix.WCONTINUED, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		switch {
		case err != nil:
			done()
			rs.table.report(pid, ChildEvent{Pid: pid, State: ProcExited, Code: 127})
			return
		case ws.Stopped():
			rs.table.report(pid, ChildEvent{Pid: pid, State: ProcStopped, Signal: ws.StopSignal()})
		case ws.Continued():
			rs.table.report(pid, ChildEvent{Pid: pid, State: ProcRunning})
		case ws.Signaled():
			done()
			rs.table.report(pid, ChildEvent{Pid: pid, State: ProcSignaled, Signal: ws.Signal()})
			rs.forgetGroup(pid)
			return
		case ws.Exited():
			done()
			rs.table.report(pid, ChildEvent{Pid: pid, State: ProcExited, Code: ws.ExitStatus()})
			rs.forgetGroup(pid)
			return
		}
	}
}

func (rs *RealSystem) forgetGroup(pid int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for g, leader := range rs.groups {
		if leader == pid {
			delete(rs.groups, g)
		}
	}
}

func (rs *RealSystem) Fork(parent int, task Task, attr *ProcAttr) (int, error) {
	if attr == nil {
		attr = &ProcAttr{Pgid: GroupInherit}
	}
	return rs.table.fork(parent, task, attr).pid, nil
}

func (rs *RealSystem) Kill(pid int, sig Signal) error {
	err := rs.table.kill(pid, sig)
	if errors.Is(err, ErrNoSuchProcess) {
		// Not one of ours, let the kernel decide.
		return unix.Kill(pid, sig)
	}
	return err
}

func (rs *RealSystem) SetSignalDisposition(pid int, sig Signal, d Disposition) error {
	if pid != rs.pid {
		return rs.table.setDisposition(pid, sig, d)
	}
	if IsUncatchable(sig) && d != DispositionDefault {
		return syscall.EINVAL
	}

	rs.sigMu.Lock()
	defer rs.sigMu.Unlock()
	if ch, ok := rs.catches[sig]; ok {
		signal.Stop(ch)
		close(ch)
		delete(rs.catches, sig)
	}

	switch d {
	case DispositionIgnore:
		signal.Ignore(sig)
	case DispositionCatch:
		ch := make(chan os.Signal, 4)
		rs.catches[sig] = ch
		mb := rs.table.mailbox(rs.pid)
		go func() {
			for range ch {
				mb.PostSignal(sig)
			}
		}()
		signal.Notify(ch, sig)
	default:
		signal.Reset(sig)
	}
	return nil
}

func (rs *RealSystem) Mailbox(pid int) *Mailbox {
	return rs.table.mailbox(pid)
}

func (rs *RealSystem) Checkpoint(ctx context.Context, pid int) error {
	return rs.table.checkpoint(ctx, pid)
}

func (rs *RealSystem) SetForeground(pgid int) error {
	if rs.ttyFd < 0 {
		return ErrNoTerminal
	}
	rs.mu.Lock()
	osPgid, ok := rs.groups[pgid]
	rs.mu.Unlock()
	if !ok {
		// Groups made only of tasks live inside the shell's own group.
		osPgid = rs.pgrp
		if pgid < firstTaskPid {
			osPgid = pgid
		}
	}
	return unix.IoctlSetPointerInt(rs.ttyFd, unix.TIOCSPGRP, osPgid)
}

func (rs *RealSystem) Foreground() (int, error) {
	if rs.ttyFd < 0 {
		return 0, ErrNoTerminal
	}
	return unix.IoctlGetInt(rs.ttyFd, unix.TIOCGPGRP)
}

// pumpSet copies between in-memory descriptors and the OS pipes handed to a
// child.
type pumpSet struct {
	out    errgroup.Group
	inputs []*os.File
}

func (ps *pumpSet) wait() error {
	err := ps.out.Wait()
	for _, w := range ps.inputs {
		w.Close()
	}
	return err
}

func (ps *pumpSet) abort() {
	for _, w := range ps.inputs {
		w.Close()
	}
}

// osFiles converts descriptors into *os.File. Descriptors without an OS file
// are bridged with a pipe: fd 0 is fed from the File, every other fd is
// drained into it. cleanup closes the child's pipe ends in the parent.
func osFiles(in []File) ([]*os.File, *pumpSet, func(), error) {
	ps := &pumpSet{}
	out := make([]*os.File, len(in))
	var childEnds []*os.File
	cleanup := func() {
		for _, f := range childEnds {
			f.Close()
		}
	}

	for fd, f := range in {
		if f == nil {
			continue
		}
		if osf, ok := OSFile(f); ok {
			out[fd] = osf
			continue
		}
		r, w, err := os.Pipe()
		if err != nil {
			cleanup()
			ps.abort()
			return nil, nil, func() {}, err
		}
		src := f
		if fd == 0 {
			out[fd] = r
			childEnds = append(childEnds, r)
			ps.inputs = append(ps.inputs, w)
			go func() {
				io.Copy(w, src)
				w.Close()
			}()
			continue
		}
		out[fd] = w
		childEnds = append(childEnds, w)
		ps.out.Go(func() error {
			defer r.Close()
			_, err := io.Copy(src, r)
			return err
		})
	}
	return out, ps, cleanup, nil
}
