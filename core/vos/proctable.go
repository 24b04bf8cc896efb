package vos

import (
	"context"
	"fmt"
	"sync"
	"syscall"
)

// Mailbox queues child state changes and caught signals for one process.
// Producers are arbitrary goroutines; the owning shell drains it at its own
// checkpoints.
type Mailbox struct {
	mu      sync.Mutex
	events  []ChildEvent
	signals []Signal
	notify  chan struct{}
}

func newMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Notify is signalled whenever something is posted. It is level-triggered
// only in combination with TakeEvents/TakeSignals: always drain after a
// wake-up.
func (m *Mailbox) Notify() <-chan struct{} {
	return m.notify
}

func (m *Mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// PostEvent queues a child state change.
func (m *Mailbox) PostEvent(ev ChildEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	m.wake()
}

// PostSignal queues a caught signal.
func (m *Mailbox) PostSignal(sig Signal) {
	m.mu.Lock()
	m.signals = append(m.signals, sig)
	m.mu.Unlock()
	m.wake()
}

// TakeEvents removes and returns the queued child events in arrival order.
func (m *Mailbox) TakeEvents() []ChildEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.events
	m.events = nil
	return out
}

// TakeSignals removes and returns the queued signals in arrival order.
func (m *Mailbox) TakeSignals() []Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.signals
	m.signals = nil
	return out
}

// TerminatedError is returned by Checkpoint once a process has received a
// terminating signal.
type TerminatedError struct {
	Signal Signal
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("terminated by SIG%s", SignalName(e.Signal))
}

type proc struct {
	pid, ppid, pgid int

	// osPid is set for processes that exist in the host kernel.
	osPid int

	stopped  bool
	resume   chan struct{}
	killedBy Signal
	cancel   context.CancelFunc
	ctx      context.Context

	disp map[Signal]Disposition
}

// procTable tracks every child the shell knows about, real or not. Both
// System implementations share it.
type procTable struct {
	mu        sync.Mutex
	nextPid   int
	procs     map[int]*proc
	mailboxes map[int]*Mailbox

	// osKill delivers signals to host processes.
	osKill func(osPid int, sig Signal) error
}

func newProcTable(firstPid int) *procTable {
	return &procTable{
		nextPid:   firstPid,
		procs:     make(map[int]*proc),
		mailboxes: make(map[int]*Mailbox),
	}
}

func (t *procTable) allocPid() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocPidLocked()
}

func (t *procTable) allocPidLocked() int {
	for {
		pid := t.nextPid
		t.nextPid++
		if _, taken := t.procs[pid]; !taken {
			return pid
		}
	}
}

func (t *procTable) mailbox(pid int) *Mailbox {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mailboxLocked(pid)
}

func (t *procTable) mailboxLocked(pid int) *Mailbox {
	mb, ok := t.mailboxes[pid]
	if !ok {
		mb = newMailbox()
		t.mailboxes[pid] = mb
	}
	return mb
}

// addRoot registers the shell process itself.
func (t *procTable) addRoot(pid, pgid, osPid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	t.procs[pid] = &proc{
		pid:    pid,
		pgid:   pgid,
		osPid:  osPid,
		ctx:    ctx,
		cancel: cancel,
		disp:   make(map[Signal]Disposition),
	}
}

func (t *procTable) groupFor(pid, parent, requested int) int {
	switch requested {
	case GroupInherit:
		if pp, ok := t.procs[parent]; ok {
			return pp.pgid
		}
		return parent
	case GroupNew:
		return pid
	default:
		return requested
	}
}

// add registers a new child and returns it; the caller starts it.
func (t *procTable) add(parent int, attr *ProcAttr, osPid int) *proc {
	t.mu.Lock()
	defer t.mu.Unlock()

	pid := osPid
	if pid == 0 {
		pid = t.allocPidLocked()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &proc{
		pid:    pid,
		ppid:   parent,
		pgid:   t.groupFor(pid, parent, attr.Pgid),
		osPid:  osPid,
		ctx:    ctx,
		cancel: cancel,
		disp:   make(map[Signal]Disposition),
	}
	for _, sig := range attr.Ignored {
		if !IsUncatchable(sig) {
			p.disp[sig] = DispositionIgnore
		}
	}
	t.procs[pid] = p
	return p
}

// fork runs task as a child of parent.
func (t *procTable) fork(parent int, task Task, attr *ProcAttr) *proc {
	p := t.add(parent, attr, 0)
	go func() {
		code := task(p.ctx, p.pid)
		t.finish(p.pid, code)
	}()
	return p
}

// finish records the termination of a task-backed process.
func (t *procTable) finish(pid, code int) {
	t.mu.Lock()
	p, ok := t.procs[pid]
	if !ok {
		t.mu.Unlock()
		return
	}
	ev := ChildEvent{Pid: pid, State: ProcExited, Code: code}
	if p.killedBy != 0 {
		ev = ChildEvent{Pid: pid, State: ProcSignaled, Signal: p.killedBy}
	}
	t.terminateLocked(p, ev)
	t.mu.Unlock()
}

// report records a state change observed from outside, such as wait4 on a
// host process.
func (t *procTable) report(pid int, ev ChildEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	if !ok {
		return
	}
	switch ev.State {
	case ProcStopped:
		if !p.stopped {
			p.stopped = true
			p.resume = make(chan struct{})
		}
	case ProcRunning:
		if p.stopped {
			p.stopped = false
			close(p.resume)
		}
	default:
		t.terminateLocked(p, ev)
		return
	}
	t.mailboxLocked(p.ppid).PostEvent(ev)
}

func (t *procTable) terminateLocked(p *proc, ev ChildEvent) {
	if p.stopped {
		p.stopped = false
		close(p.resume)
	}
	p.cancel()
	delete(t.procs, p.pid)
	delete(t.mailboxes, p.pid)
	t.mailboxLocked(p.ppid).PostEvent(ev)
}

func (t *procTable) kill(pid int, sig Signal) error {
	t.mu.Lock()
	var targets []*proc
	if pid < 0 {
		for _, p := range t.procs {
			if p.pgid == -pid {
				targets = append(targets, p)
			}
		}
	} else if p, ok := t.procs[pid]; ok {
		targets = append(targets, p)
	}
	if len(targets) == 0 {
		t.mu.Unlock()
		return ErrNoSuchProcess
	}

	var osTargets []int
	for _, p := range targets {
		if p.osPid != 0 {
			osTargets = append(osTargets, p.osPid)
			continue
		}
		t.deliverLocked(p, sig)
	}
	t.mu.Unlock()

	var firstErr error
	for _, osPid := range osTargets {
		if t.osKill == nil {
			continue
		}
		if err := t.osKill(osPid, sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *procTable) deliverLocked(p *proc, sig Signal) {
	if sig == 0 {
		return
	}
	d := p.disp[sig]
	if IsUncatchable(sig) {
		d = DispositionDefault
	}

	if sig == syscall.SIGCONT && p.stopped {
		p.stopped = false
		close(p.resume)
		t.mailboxLocked(p.ppid).PostEvent(ChildEvent{Pid: p.pid, State: ProcRunning})
	}

	switch d {
	case DispositionIgnore:
		return
	case DispositionCatch:
		t.mailboxLocked(p.pid).PostSignal(sig)
		return
	}

	switch {
	case sig == syscall.SIGCONT, defaultIgnored(sig):
	case IsStopSignal(sig):
		if !p.stopped {
			p.stopped = true
			p.resume = make(chan struct{})
			t.mailboxLocked(p.ppid).PostEvent(ChildEvent{Pid: p.pid, State: ProcStopped, Signal: sig})
		}
	default:
		if p.killedBy == 0 {
			p.killedBy = sig
		}
		p.cancel()
		if p.stopped {
			p.stopped = false
			close(p.resume)
		}
		// Wake the process if it is blocked waiting on its own mailbox.
		t.mailboxLocked(p.pid).wake()
	}
}

func (t *procTable) setDisposition(pid int, sig Signal, d Disposition) error {
	if IsUncatchable(sig) && d != DispositionDefault {
		return syscall.EINVAL
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	if !ok {
		return ErrNoSuchProcess
	}
	if d == DispositionDefault {
		delete(p.disp, sig)
	} else {
		p.disp[sig] = d
	}
	return nil
}

func (t *procTable) checkpoint(ctx context.Context, pid int) error {
	for {
		t.mu.Lock()
		p, ok := t.procs[pid]
		if !ok {
			t.mu.Unlock()
			return ctx.Err()
		}
		if p.killedBy != 0 {
			sig := p.killedBy
			t.mu.Unlock()
			return &TerminatedError{Signal: sig}
		}
		if !p.stopped {
			t.mu.Unlock()
			return ctx.Err()
		}
		resume, done := p.resume, p.ctx.Done()
		t.mu.Unlock()

		select {
		case <-resume:
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *procTable) pgidOf(pid int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	if !ok {
		return 0, false
	}
	return p.pgid, true
}
