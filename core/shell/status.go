package shell

import (
	"fmt"

	"github.com/josephlewis42/vsh/core/vos"
)

// ExitStatus is the result of a command. Values above 128 conventionally
// mean the command was killed by signal status-128.
type ExitStatus int

const (
	StatusSuccess  ExitStatus = 0
	StatusFailure  ExitStatus = 1
	StatusError    ExitStatus = 2
	StatusNoExec   ExitStatus = 126
	StatusNotFound ExitStatus = 127
)

// StatusFromSignal returns the status of a command killed by sig.
func StatusFromSignal(sig vos.Signal) ExitStatus {
	return ExitStatus(128 + int(sig))
}

// Success reports whether s is zero.
func (s ExitStatus) Success() bool {
	return s == StatusSuccess
}

// Signal returns the signal encoded in s, if any.
func (s ExitStatus) Signal() (vos.Signal, bool) {
	if s > 128 && s < 128+65 {
		return vos.Signal(s - 128), true
	}
	return 0, false
}

func (s ExitStatus) String() string {
	return fmt.Sprintf("%d", int(s))
}

// DivertKind is a non-local transfer of control.
type DivertKind int

const (
	// DivertNone continues with the next command.
	DivertNone DivertKind = iota
	// DivertContinue resumes the Count-th enclosing loop.
	DivertContinue
	// DivertBreak leaves Count enclosing loops.
	DivertBreak
	// DivertReturn leaves the current function or sourced file.
	DivertReturn
	// DivertInterrupt abandons the current command line, as after ^C.
	DivertInterrupt
	// DivertExit ends the shell process.
	DivertExit
	// DivertAbort ends the shell immediately, skipping the EXIT trap.
	DivertAbort
)

func (k DivertKind) String() string {
	switch k {
	case DivertContinue:
		return "continue"
	case DivertBreak:
		return "break"
	case DivertReturn:
		return "return"
	case DivertInterrupt:
		return "interrupt"
	case DivertExit:
		return "exit"
	case DivertAbort:
		return "abort"
	default:
		return "none"
	}
}

// Divert travels up the call chain until a construct consumes it. The exit
// status travels separately, in the Env.
type Divert struct {
	Kind DivertKind
	// Count is the number of loops left to unwind by break and continue.
	Count int
}

// Diverted reports whether d interrupts sequential execution.
func (d Divert) Diverted() bool {
	return d.Kind != DivertNone
}

// Exiting reports whether d ends the shell.
func (d Divert) Exiting() bool {
	return d.Kind == DivertExit || d.Kind == DivertAbort
}

var noDivert = Divert{}
