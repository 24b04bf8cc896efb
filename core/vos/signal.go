package vos

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"syscall"
)

// Signal is an OS signal number. Zero is used by the shell for the EXIT
// pseudo-signal.
type Signal = syscall.Signal

// Disposition is how a process reacts to a signal.
type Disposition int

const (
	// DispositionDefault performs the signal's default action.
	DispositionDefault Disposition = iota
	// DispositionIgnore discards the signal.
	DispositionIgnore
	// DispositionCatch delivers the signal to the process mailbox.
	DispositionCatch
)

func (d Disposition) String() string {
	switch d {
	case DispositionIgnore:
		return "ignore"
	case DispositionCatch:
		return "catch"
	default:
		return "default"
	}
}

// signalNames is the full signal name table on native platforms.
var signalNames = map[Signal]string{
	syscall.SIGHUP:    "HUP",
	syscall.SIGINT:    "INT",
	syscall.SIGQUIT:   "QUIT",
	syscall.SIGILL:    "ILL",
	syscall.SIGTRAP:   "TRAP",
	syscall.SIGABRT:   "ABRT",
	syscall.SIGBUS:    "BUS",
	syscall.SIGFPE:    "FPE",
	syscall.SIGKILL:   "KILL",
	syscall.SIGUSR1:   "USR1",
	syscall.SIGSEGV:   "SEGV",
	syscall.SIGUSR2:   "USR2",
	syscall.SIGPIPE:   "PIPE",
	syscall.SIGALRM:   "ALRM",
	syscall.SIGTERM:   "TERM",
	syscall.SIGCHLD:   "CHLD",
	syscall.SIGCONT:   "CONT",
	syscall.SIGSTOP:   "STOP",
	syscall.SIGTSTP:   "TSTP",
	syscall.SIGTTIN:   "TTIN",
	syscall.SIGTTOU:   "TTOU",
	syscall.SIGURG:    "URG",
	syscall.SIGXCPU:   "XCPU",
	syscall.SIGXFSZ:   "XFSZ",
	syscall.SIGVTALRM: "VTALRM",
	syscall.SIGPROF:   "PROF",
	syscall.SIGWINCH:  "WINCH",
	syscall.SIGIO:     "IO",
	syscall.SIGSYS:    "SYS",
}

// SignalName returns the name of sig without the SIG prefix, or its number
// if it has no name.
func SignalName(sig Signal) string {
	if sig == 0 {
		return "EXIT"
	}
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return strconv.Itoa(int(sig))
}

// ParseSignal accepts a signal name with or without the SIG prefix, in any
// case, or a decimal signal number. "EXIT" and "0" both map to zero.
func ParseSignal(s string) (Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n == 0 {
			return 0, nil
		}
		if _, ok := signalNames[Signal(n)]; ok {
			return Signal(n), nil
		}
		return 0, fmt.Errorf("%s: invalid signal specification", s)
	}

	name := strings.TrimPrefix(strings.ToUpper(s), "SIG")
	if name == "EXIT" {
		return 0, nil
	}
	for sig, candidate := range signalNames {
		if candidate == name {
			return sig, nil
		}
	}
	return 0, fmt.Errorf("%s: invalid signal specification", s)
}

// AllSignals returns every named signal in ascending order.
func AllSignals() []Signal {
	out := make([]Signal, 0, len(signalNames))
	for sig := range signalNames {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsStopSignal reports whether the default action of sig suspends the
// receiving process.
func IsStopSignal(sig Signal) bool {
	switch sig {
	case syscall.SIGSTOP, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU:
		return true
	}
	return false
}

// IsUncatchable reports whether sig can neither be caught nor ignored.
func IsUncatchable(sig Signal) bool {
	return sig == syscall.SIGKILL || sig == syscall.SIGSTOP
}

// defaultIgnored reports whether the default action of sig is to do nothing.
func defaultIgnored(sig Signal) bool {
	switch sig {
	case syscall.SIGCHLD, syscall.SIGURG, syscall.SIGWINCH, syscall.SIGCONT:
		return true
	}
	return false
}
