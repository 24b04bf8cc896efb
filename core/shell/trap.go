package shell

import (
	"context"
	"fmt"
	"sort"
	"syscall"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/logger"
	"github.com/josephlewis42/vsh/core/vos"
)

// TrapAction is what the shell does when a trapped signal arrives.
type TrapAction int

const (
	TrapDefault TrapAction = iota
	TrapIgnore
	TrapCommand
)

// Trap is one entry of the trap table.
type Trap struct {
	Action  TrapAction
	Command string
	parsed  *syntax.File
}

// TrapTable maps signals to traps. Signal 0 is the EXIT pseudo-signal.
type TrapTable struct {
	traps map[vos.Signal]*Trap
}

// NewTrapTable creates an empty table.
func NewTrapTable() *TrapTable {
	return &TrapTable{traps: make(map[vos.Signal]*Trap)}
}

// Set replaces the trap for sig. KILL and STOP cannot be trapped.
func (t *TrapTable) Set(sig vos.Signal, trap Trap) error {
	if vos.IsUncatchable(sig) {
		return fmt.Errorf("%s: %w", vos.SignalName(sig), syscall.EINVAL)
	}
	if trap.Action == TrapDefault {
		delete(t.traps, sig)
		return nil
	}
	t.traps[sig] = &trap
	return nil
}

// Get returns the trap for sig.
func (t *TrapTable) Get(sig vos.Signal) (Trap, bool) {
	trap, ok := t.traps[sig]
	if !ok {
		return Trap{}, false
	}
	return *trap, true
}

// Signals returns the trapped signals in ascending order, EXIT first.
func (t *TrapTable) Signals() []vos.Signal {
	out := make([]vos.Signal, 0, len(t.traps))
	for sig := range t.traps {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ignored lists the signals a child process inherits as ignored.
func (t *TrapTable) Ignored() []vos.Signal {
	var out []vos.Signal
	for _, sig := range t.Signals() {
		if sig != 0 && t.traps[sig].Action == TrapIgnore {
			out = append(out, sig)
		}
	}
	return out
}

// EnterSubshell resets command traps to the default action. Ignored
// signals stay ignored.
func (t *TrapTable) EnterSubshell() {
	for sig, trap := range t.traps {
		if trap.Action == TrapCommand {
			delete(t.traps, sig)
		}
	}
}

// Clone copies the table.
func (t *TrapTable) Clone() *TrapTable {
	out := NewTrapTable()
	for sig, trap := range t.traps {
		cp := *trap
		out.traps[sig] = &cp
	}
	return out
}

// SetTrap installs a trap and updates the signal disposition of the shell
// process to match. A command trap is parsed here so syntax errors surface
// when it is set.
func (e *Env) SetTrap(sig vos.Signal, trap Trap) error {
	if trap.Action == TrapCommand && trap.parsed == nil {
		f, err := e.Parse(trap.Command, "trap")
		if err != nil {
			return err
		}
		trap.parsed = f
	}
	if err := e.traps.Set(sig, trap); err != nil {
		return err
	}
	if sig == 0 {
		return nil
	}
	return e.sys.SetSignalDisposition(e.pid, sig, e.disposition(sig))
}

// Traps returns the trap table.
func (e *Env) Traps() *TrapTable {
	return e.traps
}

// disposition combines the trap for sig with what the shell itself needs.
func (e *Env) disposition(sig vos.Signal) vos.Disposition {
	if trap, ok := e.traps.Get(sig); ok {
		switch trap.Action {
		case TrapIgnore:
			return vos.DispositionIgnore
		case TrapCommand:
			return vos.DispositionCatch
		}
	}
	if e.opts.Interactive && !e.subshell {
		switch sig {
		case syscall.SIGINT:
			return vos.DispositionCatch
		case syscall.SIGQUIT, syscall.SIGTERM:
			return vos.DispositionIgnore
		}
	}
	if e.opts.Monitor && !e.subshell {
		switch sig {
		case syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU:
			return vos.DispositionIgnore
		}
	}
	return vos.DispositionDefault
}

// shellSignals are the signals whose disposition the shell manages even
// without traps.
var shellSignals = []vos.Signal{
	syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM,
	syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU,
}

// syncDispositions pushes every disposition the shell cares about to the
// system, after start-up or on entering a subshell.
func (e *Env) syncDispositions() {
	seen := map[vos.Signal]bool{}
	apply := func(sig vos.Signal) {
		if seen[sig] || sig == 0 {
			return
		}
		seen[sig] = true
		if err := e.sys.SetSignalDisposition(e.pid, sig, e.disposition(sig)); err != nil {
			e.logf("setting disposition of SIG%s: %v", vos.SignalName(sig), err)
		}
	}
	for _, sig := range shellSignals {
		apply(sig)
	}
	for _, sig := range e.traps.Signals() {
		apply(sig)
	}
}

// childIgnored lists signals a child must start with ignored.
func (e *Env) childIgnored() []vos.Signal {
	return e.traps.Ignored()
}

// runPendingTraps runs the trap of every queued signal in arrival order.
// $? is preserved across each trap body.
func (e *Env) runPendingTraps(ctx context.Context) Divert {
	if e.inTrap {
		return noDivert
	}
	for len(e.pending) > 0 {
		sig := e.pending[0]
		e.pending = e.pending[1:]

		trap, ok := e.traps.Get(sig)
		switch {
		case ok && trap.Action == TrapCommand:
			if d := e.runTrap(ctx, sig, trap); d.Diverted() {
				return d
			}
		case ok && trap.Action == TrapIgnore:
		case sig == syscall.SIGINT && e.opts.Interactive && !e.subshell:
			e.pending = nil
			e.status = StatusFromSignal(sig)
			return Divert{Kind: DivertInterrupt}
		}
	}
	return noDivert
}

func (e *Env) runTrap(ctx context.Context, sig vos.Signal, trap Trap) Divert {
	e.record(logger.EventTrap, map[string]interface{}{"signal": vos.SignalName(sig), "command": trap.Command})

	saved := e.status
	e.inTrap = true
	d := e.stmts(ctx, trap.parsed.Stmts)
	e.inTrap = false

	switch d.Kind {
	case DivertExit, DivertAbort:
		return d
	case DivertReturn:
		// return inside a trap leaves the trap; the status it set is kept
		// only when the trap runs inside a function.
		if e.funcDepth > 0 {
			return d
		}
	}
	e.status = saved
	return noDivert
}

// RunExitTrap runs and clears the EXIT trap.
func (e *Env) RunExitTrap(ctx context.Context) {
	trap, ok := e.traps.Get(0)
	if !ok || trap.Action != TrapCommand {
		return
	}
	e.traps.Set(0, Trap{})
	saved := e.status
	e.inTrap = true
	d := e.stmts(ctx, trap.parsed.Stmts)
	e.inTrap = false
	if !d.Exiting() {
		e.status = saved
	}
}
