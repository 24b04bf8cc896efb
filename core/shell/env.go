package shell

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"sort"
	"strconv"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/logger"
	"github.com/josephlewis42/vsh/core/vos"
)

// Names of variables the shell itself reads or maintains.
const (
	EnvHome   = "HOME"
	EnvPWD    = "PWD"
	EnvOldPWD = "OLDPWD"
	EnvPath   = "PATH"
	EnvIFS    = "IFS"
	EnvPS1    = "PS1"
	EnvPS2    = "PS2"
	EnvPS4    = "PS4"
	EnvOptInd = "OPTIND"

	DefaultIFS    = " \t\n"
	DefaultPath   = "/usr/local/bin:/usr/bin:/bin"
	DefaultPrompt = "$ "
)

// EventRecorder stores audit events such as executed commands and trap runs.
type EventRecorder interface {
	RecordEvent(kind string, fields map[string]interface{}) error
}

// Env is the state of one shell process. It is owned by a single goroutine;
// subshells run on a structural copy made by Subshell, so nothing they do
// reaches the parent.
type Env struct {
	sys      vos.System
	pid      int
	registry *Registry
	recorder EventRecorder
	lang     syntax.LangVariant

	vars  *VarTable
	fds   *FDTable
	jobs  *JobTable
	traps *TrapTable
	opts  Options
	funcs map[string]*syntax.Stmt

	arg0   string
	params []string
	status ExitStatus
	lastBg int
	dir    string
	umask  os.FileMode

	subshell bool
	exited   bool
	// noExitTrap is set when the process ends without running the EXIT
	// trap, after exec or a fatal signal.
	noExitTrap bool

	// noErrExit counts enclosing contexts in which errexit is suspended,
	// such as if conditions and the left side of && and ||.
	noErrExit   int
	loopDepth   int
	funcDepth   int
	sourceDepth int

	// substStatus is the status of the last command substitution of the
	// current simple command, valid when substRan is set.
	substStatus ExitStatus
	substRan    bool

	// transient holds jobs the shell waits for that are not in the job
	// table: foreground commands and command substitutions.
	transient []*Job

	pending []vos.Signal
	inTrap  bool
}

// Option configures an Env in New.
type Option func(*Env) error

// WithArgs sets $0 and the positional parameters.
func WithArgs(arg0 string, params ...string) Option {
	return func(e *Env) error {
		e.arg0 = arg0
		e.params = append([]string(nil), params...)
		return nil
	}
}

// WithFiles sets the initial descriptors, starting at 0.
func WithFiles(files ...vos.File) Option {
	return func(e *Env) error {
		e.fds.CloseAll()
		e.fds = NewFDTable(files...)
		return nil
	}
}

// WithStdio sets descriptors 0, 1 and 2 from plain streams. Nil streams
// become the null device.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return WithFiles(readerFile(stdin), writerFile(stdout), writerFile(stderr))
}

func readerFile(r io.Reader) vos.File {
	switch f := r.(type) {
	case nil:
		return vos.DevNull()
	case vos.File:
		return f
	default:
		return vos.ReaderFile(r)
	}
}

func writerFile(w io.Writer) vos.File {
	switch f := w.(type) {
	case nil:
		return vos.DevNull()
	case vos.File:
		return f
	default:
		return vos.WriterFile(w)
	}
}

// WithRegistry sets the builtins the shell can run.
func WithRegistry(r *Registry) Option {
	return func(e *Env) error {
		e.registry = r
		return nil
	}
}

// WithOptions sets the initial shell options.
func WithOptions(o Options) Option {
	return func(e *Env) error {
		interactive := e.opts.Interactive
		e.opts = o
		e.opts.Interactive = o.Interactive || interactive
		return nil
	}
}

// WithInteractive marks the shell as interactive.
func WithInteractive(on bool) Option {
	return func(e *Env) error {
		e.opts.Interactive = on
		return nil
	}
}

// WithLang selects the parser variant used by eval, . and traps.
func WithLang(lang syntax.LangVariant) Option {
	return func(e *Env) error {
		e.lang = lang
		return nil
	}
}

// WithRecorder sends audit events to r.
func WithRecorder(r EventRecorder) Option {
	return func(e *Env) error {
		e.recorder = r
		return nil
	}
}

// WithDir overrides the starting directory reported by the system.
func WithDir(dir string) Option {
	return func(e *Env) error {
		if !path.IsAbs(dir) {
			return fmt.Errorf("directory %q is not absolute", dir)
		}
		e.dir = path.Clean(dir)
		return nil
	}
}

// WithEnviron replaces the environment inherited from the system.
func WithEnviron(environ []string) Option {
	return func(e *Env) error {
		e.vars = NewVarTableFromEnviron(environ)
		return nil
	}
}

// WithVar sets a shell variable after the environment is imported.
func WithVar(name, value string) Option {
	return func(e *Env) error {
		return e.vars.Set(name, value)
	}
}

// New creates the environment of a shell running as the root process of
// sys.
func New(sys vos.System, opts ...Option) (*Env, error) {
	e := &Env{
		sys:      sys,
		pid:      sys.Getpid(),
		registry: NewRegistry(),
		lang:     syntax.LangPOSIX,
		vars:     NewVarTableFromEnviron(sys.Environ()),
		fds:      NewFDTable(vos.DevNull(), vos.DevNull(), vos.DevNull()),
		jobs:     NewJobTable(),
		traps:    NewTrapTable(),
		funcs:    make(map[string]*syntax.Stmt),
		arg0:     "vsh",
		umask:    0022,
	}
	if wd, err := sys.Getwd(); err == nil {
		e.dir = wd
	} else {
		e.dir = "/"
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	e.preparePWD()
	e.setDefault(EnvIFS, DefaultIFS)
	e.setDefault(EnvPS1, DefaultPrompt)
	e.setDefault(EnvPS2, "> ")
	e.setDefault(EnvPS4, "+ ")
	e.setDefault(EnvOptInd, "1")
	if _, ok := e.vars.Get(EnvPath); !ok {
		e.vars.Set(EnvPath, DefaultPath)
	}

	if e.opts.Monitor && e.opts.Interactive && sys.IsTerminal() {
		if err := sys.SetForeground(sys.Getpgrp()); err != nil {
			e.logf("taking the terminal: %v", err)
		}
	}
	e.syncDispositions()
	return e, nil
}

func (e *Env) setDefault(name, value string) {
	if _, ok := e.vars.Get(name); !ok {
		e.vars.Set(name, value)
	}
}

// preparePWD keeps an inherited $PWD only if it is an absolute, clean path
// naming the working directory; otherwise $PWD is reset to it.
func (e *Env) preparePWD() {
	pwd := e.vars.Value(EnvPWD)
	if pwd != "" && path.IsAbs(pwd) && path.Clean(pwd) == pwd && e.sameDir(pwd, e.dir) {
		e.dir = pwd
	}
	e.vars.Set(EnvPWD, e.dir)
	e.vars.Export(EnvPWD, true)
}

func (e *Env) sameDir(a, b string) bool {
	if a == b {
		return true
	}
	fa, err := e.sys.Fs().Stat(a)
	if err != nil || !fa.IsDir() {
		return false
	}
	fb, err := e.sys.Fs().Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// Subshell returns a copy of e for running in a child process. Variables,
// functions and descriptors are copied; command traps are reset; the job
// table starts empty and job control is off.
func (e *Env) Subshell() *Env {
	child := *e
	child.vars = e.vars.Clone()
	child.fds = e.fds.Clone()
	child.traps = e.traps.Clone()
	child.traps.EnterSubshell()
	child.jobs = NewJobTable()
	child.funcs = make(map[string]*syntax.Stmt, len(e.funcs))
	for name, body := range e.funcs {
		child.funcs[name] = body
	}
	child.params = append([]string(nil), e.params...)
	child.subshell = true
	child.opts.Monitor = false
	child.transient = nil
	child.pending = nil
	child.inTrap = false
	child.exited = false
	child.noExitTrap = false
	return &child
}

func (e *Env) logf(format string, args ...interface{}) {
	log.Printf("vsh[%d]: "+format, append([]interface{}{e.pid}, args...)...)
}

func (e *Env) record(kind string, fields map[string]interface{}) {
	if e.recorder == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["pid"] = e.pid
	if err := e.recorder.RecordEvent(kind, fields); err != nil {
		e.logf("recording %s event: %v", kind, err)
	}
}

// RecordInvalidInvocation notes a command that rejected its arguments.
func (e *Env) RecordInvalidInvocation(args []string, err error) {
	e.record(logger.EventInvalidInvocation, map[string]interface{}{
		"command": args,
		"error":   err.Error(),
	})
}

// diag prints a diagnostic to the shell's standard error.
func (e *Env) diag(err error) {
	fmt.Fprintf(e.Stderr(), "vsh: %v\n", err)
}

// File returns the file open at fd. Closed descriptors yield a file whose
// operations fail with EBADF.
func (e *Env) File(fd int) vos.File {
	if f, ok := e.fds.Get(fd); ok {
		return f
	}
	return badFile(fd)
}

// Stdin is descriptor 0.
func (e *Env) Stdin() io.Reader { return e.File(0) }

// Stdout is descriptor 1.
func (e *Env) Stdout() io.Writer { return e.File(1) }

// Stderr is descriptor 2.
func (e *Env) Stderr() io.Writer { return e.File(2) }

// FDs returns the descriptor table.
func (e *Env) FDs() *FDTable { return e.fds }

// Status returns $?.
func (e *Env) Status() ExitStatus { return e.status }

// SetStatus sets $?.
func (e *Env) SetStatus(s ExitStatus) { e.status = s }

// Vars returns the variable table.
func (e *Env) Vars() *VarTable { return e.vars }

// Get returns the value of a variable or special parameter.
func (e *Env) Get(name string) (string, bool) {
	if vals, ok := e.special(name); ok {
		if len(vals) == 0 {
			return "", name == "@" || name == "*"
		}
		return vals[0], true
	}
	v, ok := e.vars.Get(name)
	if !ok || !v.IsSet() {
		return "", false
	}
	return v.String(), true
}

// SetVar assigns a scalar variable, exporting it under allexport.
func (e *Env) SetVar(name, value string) error {
	if err := e.vars.Set(name, value); err != nil {
		return err
	}
	if e.opts.AllExport {
		return e.vars.Export(name, true)
	}
	return nil
}

// Arg0 returns $0.
func (e *Env) Arg0() string { return e.arg0 }

// Params returns the positional parameters.
func (e *Env) Params() []string { return e.params }

// SetParams replaces the positional parameters.
func (e *Env) SetParams(params []string) {
	e.params = append([]string(nil), params...)
}

// Options returns the shell options. Builtins changing them should use
// SetOption so dispositions follow.
func (e *Env) Options() Options { return e.opts }

// SetOption turns a long option on or off.
func (e *Env) SetOption(name string, on bool) error {
	if err := e.opts.SetByName(name, on); err != nil {
		return err
	}
	e.optionsChanged()
	return nil
}

// SetOptionLetter turns a single-letter option on or off.
func (e *Env) SetOptionLetter(letter byte, on bool) error {
	if letter == 'i' {
		return fmt.Errorf("-i: cannot change after start-up")
	}
	if err := e.opts.SetByLetter(letter, on); err != nil {
		return err
	}
	e.optionsChanged()
	return nil
}

func (e *Env) optionsChanged() {
	if e.opts.Monitor && e.subshell {
		e.opts.Monitor = false
	}
	e.syncDispositions()
}

// Dir returns the working directory.
func (e *Env) Dir() string { return e.dir }

// Abs resolves name against the working directory.
func (e *Env) Abs(name string) string { return vos.Abs(e.dir, name) }

// Fs returns the filesystem of the system the shell runs on.
func (e *Env) Fs() vos.VFS { return e.sys.Fs() }

// Chdir changes the working directory to dir, which is taken literally
// (no CDPATH search), and updates PWD and OLDPWD.
func (e *Env) Chdir(dir string) error {
	target := e.Abs(dir)
	info, err := e.sys.Fs().Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "cd", Path: dir, Err: errNotDir}
	}
	old := e.dir
	e.dir = target
	if err := e.SetVar(EnvOldPWD, old); err != nil {
		return err
	}
	return e.SetVar(EnvPWD, target)
}

// Umask returns the file creation mask.
func (e *Env) Umask() os.FileMode { return e.umask }

// SetUmask replaces the file creation mask.
func (e *Env) SetUmask(m os.FileMode) { e.umask = m & 0777 }

// Func returns the body of the function called name.
func (e *Env) Func(name string) (*syntax.Stmt, bool) {
	body, ok := e.funcs[name]
	return body, ok
}

// SetFunc defines a function.
func (e *Env) SetFunc(name string, body *syntax.Stmt) {
	e.funcs[name] = body
}

// UnsetFunc removes a function.
func (e *Env) UnsetFunc(name string) {
	delete(e.funcs, name)
}

// Funcs lists the defined functions in sorted order.
func (e *Env) Funcs() []string {
	out := make([]string, 0, len(e.funcs))
	for name := range e.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// JobTable returns the job table.
func (e *Env) JobTable() *JobTable { return e.jobs }

// Jobs returns the jobs ordered by id.
func (e *Env) Jobs() []*Job { return e.jobs.List() }

// LastBackground returns $!, 0 if no job was started.
func (e *Env) LastBackground() int { return e.lastBg }

// Interactive reports whether the shell reads commands from a user.
func (e *Env) Interactive() bool { return e.opts.Interactive }

// IsSubshell reports whether e runs in a subshell.
func (e *Env) IsSubshell() bool { return e.subshell }

// InFunction reports whether a function or sourced file is executing, so
// return is allowed.
func (e *Env) InFunction() bool { return e.funcDepth > 0 || e.sourceDepth > 0 }

// LoopDepth returns the number of enclosing loops.
func (e *Env) LoopDepth() int { return e.loopDepth }

// System returns the OS layer.
func (e *Env) System() vos.System { return e.sys }

// Pid returns $$, the pid of the shell process. Subshells report the pid of
// the process running them.
func (e *Env) Pid() int { return e.pid }

// Registry returns the builtin registry.
func (e *Env) Registry() *Registry { return e.registry }

// Exited reports whether exit ran or a fatal error ended the shell.
func (e *Env) Exited() bool { return e.exited }

// Fatal builds the result of a special builtin error: the shell exits unless
// it is interactive.
func (e *Env) Fatal(status ExitStatus) Result {
	if e.opts.Interactive && !e.subshell {
		return Status(status)
	}
	return Result{Status: status, Divert: Divert{Kind: DivertExit}}
}

// special resolves the special parameters and positional parameters.
func (e *Env) special(name string) ([]string, bool) {
	switch name {
	case "@", "*":
		return e.params, true
	case "#":
		return []string{strconv.Itoa(len(e.params))}, true
	case "?":
		return []string{e.status.String()}, true
	case "-":
		return []string{e.opts.Flags()}, true
	case "$":
		return []string{strconv.Itoa(e.sys.Getpid())}, true
	case "!":
		if e.lastBg == 0 {
			return nil, false
		}
		return []string{strconv.Itoa(e.lastBg)}, true
	case "0":
		return []string{e.arg0}, true
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 && name[0] != '0' {
		if n > len(e.params) {
			return nil, false
		}
		return []string{e.params[n-1]}, true
	}
	return nil, false
}
