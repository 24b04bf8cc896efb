package shell

import (
	"errors"
	"fmt"

	"mvdan.cc/sh/v3/syntax"
)

// ErrReadOnly is returned when assigning to or unsetting a read-only
// variable.
var ErrReadOnly = errors.New("readonly variable")

// ExpansionError is a failure during word expansion, such as ${x?} on an
// unset variable or a bad arithmetic expression.
type ExpansionError struct {
	Pos syntax.Pos
	Msg string
	Err error
}

func (e *ExpansionError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("line %d: %s", e.Pos.Line(), msg)
	}
	return msg
}

func (e *ExpansionError) Unwrap() error { return e.Err }

// RedirectionError is a failure to open or duplicate a redirection target.
type RedirectionError struct {
	Fd     int
	Target string
	Err    error
}

func (e *RedirectionError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("%d: %v", e.Fd, e.Err)
}

func (e *RedirectionError) Unwrap() error { return e.Err }

// ExecErrorKind classifies a failure to start a command.
type ExecErrorKind int

const (
	// NotFound means no function, builtin or file had the name.
	NotFound ExecErrorKind = iota
	// NotExecutable means a file was found but could not be executed.
	NotExecutable
	// Spawn means the system refused to create the process.
	Spawn
)

// ExecError is a failure to run a command.
type ExecError struct {
	Kind ExecErrorKind
	Name string
	Err  error
}

func (e *ExecError) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("%s: not found", e.Name)
	case NotExecutable:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Name, e.Err)
		}
		return fmt.Sprintf("%s: permission denied", e.Name)
	default:
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
}

func (e *ExecError) Unwrap() error { return e.Err }

// Status is the exit status a shell reports for e.
func (e *ExecError) Status() ExitStatus {
	switch e.Kind {
	case NotFound:
		return StatusNotFound
	default:
		return StatusNoExec
	}
}

// JobControlError is a failure of a job control operation such as fg on a
// job that does not exist.
type JobControlError struct {
	Op  string
	Job string
	Err error
}

func (e *JobControlError) Error() string {
	if e.Job == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Job, e.Err)
}

func (e *JobControlError) Unwrap() error { return e.Err }

// ErrNoSuchJob is wrapped by JobControlError when a job spec matches nothing.
var ErrNoSuchJob = errors.New("no such job")

// ErrNoJobControl is wrapped by JobControlError when the monitor option is
// off.
var ErrNoJobControl = errors.New("no job control")
