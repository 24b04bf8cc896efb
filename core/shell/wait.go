package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/josephlewis42/vsh/core/logger"
	"github.com/josephlewis42/vsh/core/vos"
)

// drainMailbox applies queued child events to the jobs and queues caught
// signals for their traps.
func (e *Env) drainMailbox() {
	mb := e.sys.Mailbox(e.pid)
	for _, ev := range mb.TakeEvents() {
		j := e.applyEvent(ev)
		if j == nil {
			e.logf("event for unknown child: %v", ev)
			continue
		}
		e.record(logger.EventJobState, map[string]interface{}{
			"job":     j.ID,
			"child":   ev.Pid,
			"state":   ev.State.String(),
			"command": j.Cmd,
		})
	}
	for _, sig := range mb.TakeSignals() {
		e.pending = append(e.pending, sig)
		e.record(logger.EventSignal, map[string]interface{}{"signal": vos.SignalName(sig)})
	}
}

func (e *Env) applyEvent(ev vos.ChildEvent) *Job {
	if e.jobs.Update(ev) {
		j, _ := e.jobs.ByPid(ev.Pid)
		return j
	}
	for _, j := range e.transient {
		for _, p := range j.Procs {
			if p.Pid == ev.Pid {
				p.apply(ev)
				return j
			}
		}
	}
	return nil
}

func (e *Env) track(j *Job) {
	e.transient = append(e.transient, j)
}

func (e *Env) untrack(j *Job) {
	for i, other := range e.transient {
		if other == j {
			e.transient = append(e.transient[:i], e.transient[i+1:]...)
			return
		}
	}
}

// settled reports whether waiting for j is over: it terminated, or it
// stopped and the shell does job control.
func (e *Env) settled(j *Job) bool {
	switch j.State() {
	case JobDone:
		return true
	case JobStopped:
		return e.opts.Monitor && !e.subshell
	}
	return false
}

// trappedPending returns the first queued signal that has a command trap.
func (e *Env) trappedPending() (vos.Signal, bool) {
	for _, sig := range e.pending {
		if trap, ok := e.traps.Get(sig); ok && trap.Action == TrapCommand {
			return sig, true
		}
	}
	return 0, false
}

// waitJob blocks until j settles. With interruptible set it also returns
// when a trapped signal arrives, reporting that signal. If the shell process
// itself is terminated the signal is passed on to j and an error returned.
func (e *Env) waitJob(ctx context.Context, j *Job, interruptible bool) (vos.Signal, error) {
	mb := e.sys.Mailbox(e.pid)
	for {
		e.drainMailbox()
		if e.settled(j) {
			return 0, nil
		}
		if interruptible {
			if sig, ok := e.trappedPending(); ok {
				return sig, nil
			}
		}
		select {
		case <-mb.Notify():
		case <-ctx.Done():
		}
		if err := e.sys.Checkpoint(ctx, e.pid); err != nil {
			sig := vos.Signal(syscall.SIGKILL)
			var te *vos.TerminatedError
			if errors.As(err, &te) {
				sig = te.Signal
			}
			e.signalProcs(j, sig)
			return 0, &vos.TerminatedError{Signal: sig}
		}
	}
}

// terminated converts the error of an interrupted wait into the status and
// divert that end the shell process.
func (e *Env) terminated(err error) Divert {
	var te *vos.TerminatedError
	if errors.As(err, &te) {
		e.status = StatusFromSignal(te.Signal)
	}
	e.exited = true
	e.noExitTrap = true
	return Divert{Kind: DivertAbort}
}

// waitForeground waits for a job the shell runs in the foreground. A job
// that stops is moved to the job table and reported.
func (e *Env) waitForeground(ctx context.Context, j *Job) Divert {
	j.Foreground = true
	_, err := e.waitJob(ctx, j, false)
	j.Foreground = false
	e.reclaimTerminal()
	if err != nil {
		e.untrack(j)
		return e.terminated(err)
	}

	if j.State() == JobStopped {
		if j.ID == 0 {
			e.untrack(j)
			e.jobs.Add(j)
		}
		e.jobs.SetCurrent(j.ID)
		j.Notified = true
		fmt.Fprintln(e.Stderr())
		e.jobs.Format(e.Stderr(), j, false)
		e.status = j.Status()
		return noDivert
	}

	e.untrack(j)
	if j.ID != 0 {
		e.jobs.Remove(j.ID)
	}
	e.status = j.Status()
	if e.interruptedJob(j) {
		return Divert{Kind: DivertInterrupt}
	}
	return noDivert
}

// interruptedJob reports whether the user interrupted foreground job j. With
// job control the terminal sends SIGINT to the job's group, not the shell,
// so the shell abandons the command line when the job dies of it.
func (e *Env) interruptedJob(j *Job) bool {
	if !e.opts.Interactive || !e.opts.Monitor || e.subshell {
		return false
	}
	for _, p := range j.Procs {
		if p.State == vos.ProcSignaled && p.Signal == syscall.SIGINT {
			return true
		}
	}
	return false
}

// reclaimTerminal gives the terminal back to the shell after a foreground
// job.
func (e *Env) reclaimTerminal() {
	if !e.opts.Monitor || e.subshell || !e.sys.IsTerminal() {
		return
	}
	if err := e.sys.SetForeground(e.sys.Getpgrp()); err != nil {
		e.logf("reclaiming the terminal: %v", err)
	}
}

func (e *Env) signalProcs(j *Job, sig vos.Signal) {
	if err := e.SignalJob(j, sig); err != nil && !errors.Is(err, vos.ErrNoSuchProcess) {
		e.logf("signalling job %d: %v", j.ID, err)
	}
}

// SignalJob sends sig to every process of j. Stopped jobs are continued
// after a terminating signal so they can act on it.
func (e *Env) SignalJob(j *Job, sig vos.Signal) error {
	send := func(sig vos.Signal) error {
		if j.Pgid != 0 {
			return e.sys.Kill(-j.Pgid, sig)
		}
		var firstErr error
		for _, p := range j.Procs {
			if p.State == vos.ProcExited || p.State == vos.ProcSignaled {
				continue
			}
			if err := e.sys.Kill(p.Pid, sig); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	if err := send(sig); err != nil {
		return err
	}
	if j.State() == JobStopped && (sig == syscall.SIGTERM || sig == syscall.SIGHUP) {
		return send(syscall.SIGCONT)
	}
	return nil
}

// ReportJobs prints jobs whose state changed since they were last reported
// and forgets finished jobs.
func (e *Env) ReportJobs(w io.Writer) {
	e.drainMailbox()
	for _, j := range e.jobs.List() {
		switch j.State() {
		case JobDone:
			if !j.Notified {
				e.jobs.Format(w, j, false)
			}
			e.jobs.Remove(j.ID)
		case JobStopped:
			if !j.Notified {
				e.jobs.Format(w, j, false)
				j.Notified = true
			}
		default:
			j.Notified = true
		}
	}
}

// UpdateJobs applies child state changes that arrived since the last
// command to the job table.
func (e *Env) UpdateJobs() {
	e.drainMailbox()
}

// FindJob resolves a job spec such as %1 or %+.
func (e *Env) FindJob(spec string) (*Job, error) {
	e.drainMailbox()
	return e.jobs.Find(spec)
}

// WaitFor waits for j to finish and forgets it. A signal with a command
// trap interrupts the wait with status 128 plus the signal number.
func (e *Env) WaitFor(ctx context.Context, j *Job) Result {
	sig, err := e.waitJob(ctx, j, true)
	if err != nil {
		return Result{Status: e.status, Divert: e.terminated(err)}
	}
	if sig != 0 {
		return Status(StatusFromSignal(sig))
	}
	status := j.Status()
	if j.State() == JobDone {
		e.jobs.Remove(j.ID)
	}
	return Status(status)
}

// Foreground continues j in the foreground and waits for it.
func (e *Env) Foreground(ctx context.Context, j *Job) Result {
	if !e.opts.Monitor || e.subshell {
		e.diag(&JobControlError{Op: "fg", Err: ErrNoJobControl})
		return Status(StatusFailure)
	}
	fmt.Fprintln(e.Stdout(), j.Cmd)
	e.jobs.SetCurrent(j.ID)
	if e.sys.IsTerminal() && j.Pgid != 0 {
		if err := e.sys.SetForeground(j.Pgid); err != nil {
			e.logf("handing the terminal to job %d: %v", j.ID, err)
		}
	}
	e.resume(j)
	d := e.waitForeground(ctx, j)
	return Result{Status: e.status, Divert: d}
}

// Background continues a stopped job without waiting for it.
func (e *Env) Background(j *Job) Result {
	if !e.opts.Monitor || e.subshell {
		e.diag(&JobControlError{Op: "bg", Err: ErrNoJobControl})
		return Status(StatusFailure)
	}
	e.resume(j)
	j.Notified = true
	fmt.Fprintf(e.Stdout(), "[%d]%c %s &\n", j.ID, e.jobs.Marker(j), j.Cmd)
	return Status(StatusSuccess)
}

// resume marks the stopped processes of j as running and sends SIGCONT.
func (e *Env) resume(j *Job) {
	for _, p := range j.Procs {
		if p.State == vos.ProcStopped {
			p.State = vos.ProcRunning
		}
	}
	if err := e.SignalJob(j, syscall.SIGCONT); err != nil {
		e.logf("continuing job %d: %v", j.ID, err)
	}
}
