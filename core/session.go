package core

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/commands"
	"github.com/josephlewis42/vsh/core/config"
	"github.com/josephlewis42/vsh/core/logger"
	"github.com/josephlewis42/vsh/core/shell"
	"github.com/josephlewis42/vsh/core/ttylog"
	"github.com/josephlewis42/vsh/core/vos"
)

// VirtualPid is the pid of the shell on a virtual system.
const VirtualPid = 4507

// SessionOptions selects how a session runs.
type SessionOptions struct {
	// Virtual runs the shell on an in-memory system with the programs of
	// the commands package instead of the host.
	Virtual bool
	// Interactive marks the shell as interactive, as with -i.
	Interactive bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Arg0 and Params become $0 and the positional parameters.
	Arg0   string
	Params []string

	// Options are set -o names turned on in addition to the configured
	// ones.
	Options []string

	// Record, if set, receives an asciicast recording of the session.
	Record io.Writer
}

// Session is a shell wired to a system, an audit log and optionally a
// recording.
type Session struct {
	env      *shell.Env
	sys      vos.System
	recorder *ttylog.Recorder
	events   *logger.SessionLogger
	toClose  listCloser
}

// NewSession builds a shell from the configuration.
func NewSession(cfg *config.Configuration, opts SessionOptions) (*Session, error) {
	s := &Session{}

	events := logger.Discard()
	if cfg.EventLog != "" {
		fd, err := cfg.OpenEventLog()
		if err != nil {
			return nil, fmt.Errorf("opening event log: %w", err)
		}
		s.toClose = append(s.toClose, fd)
		events = logger.NewJsonLinesLogRecorder(fd)
	}
	s.events = events.NewSession()

	if opts.Virtual {
		sys, err := newVirtualSystem(cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.sys = sys
	} else {
		s.sys = vos.NewRealSystem()
	}

	stdin, stdout, stderr := opts.Stdin, opts.Stdout, opts.Stderr
	if opts.Record != nil {
		s.recorder = ttylog.NewRecorder(ttylog.NewAsciicastLogSink(opts.Record, "vsh session "+s.events.SessionID()))
		if stdin != nil {
			stdin = s.recorder.Reader(ttylog.FDStdin, stdin)
		}
		if stdout != nil {
			stdout = s.recorder.Writer(ttylog.FDStdout, stdout)
		}
		if stderr != nil {
			stderr = s.recorder.Writer(ttylog.FDStderr, stderr)
		}
	}

	shellOpts, err := options(cfg, opts)
	if err != nil {
		s.Close()
		return nil, err
	}

	arg0 := opts.Arg0
	if arg0 == "" {
		arg0 = "vsh"
	}
	lang := syntax.LangPOSIX
	if cfg.Lang == "bash" {
		lang = syntax.LangBash
	}

	env, err := shell.New(s.sys,
		shell.WithArgs(arg0, opts.Params...),
		shell.WithStdio(stdin, stdout, stderr),
		shell.WithRegistry(commands.Builtins()),
		shell.WithOptions(shellOpts),
		shell.WithInteractive(opts.Interactive),
		shell.WithLang(lang),
		shell.WithRecorder(s.events),
		withDefault(shell.EnvPath, cfg.Path),
		withDefault(shell.EnvPS1, cfg.Prompts.PS1),
		withDefault(shell.EnvPS2, cfg.Prompts.PS2),
		withDefault(shell.EnvPS4, cfg.Prompts.PS4),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.env = env
	return s, nil
}

func options(cfg *config.Configuration, opts SessionOptions) (shell.Options, error) {
	var out shell.Options
	for _, name := range append(append([]string(nil), cfg.Options...), opts.Options...) {
		if err := out.SetByName(name, true); err != nil {
			return out, err
		}
	}
	out.Interactive = opts.Interactive
	return out, nil
}

// withDefault sets a variable the environment did not provide.
func withDefault(name, value string) shell.Option {
	return func(e *shell.Env) error {
		if _, ok := e.Get(name); ok || value == "" {
			return nil
		}
		return e.SetVar(name, value)
	}
}

// newVirtualSystem builds the in-memory system: the configured root image,
// the seeded files, the user's home and the virtual programs.
func newVirtualSystem(cfg *config.Configuration) (*vos.VirtualSystem, error) {
	vfs, err := rootFs(cfg)
	if err != nil {
		return nil, err
	}

	seed := make(map[string]string, len(cfg.Files)+1)
	for name, contents := range cfg.Files {
		seed[name] = contents
	}
	seed[strings.TrimSuffix(cfg.User.Home, "/")+"/"] = ""

	programs := commands.Programs()
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := seed[name]; !ok {
			seed[name] = fmt.Sprintf("#!virtual %s\n", path.Base(name))
		}
	}
	if err := vos.SeedFs(vfs, seed); err != nil {
		return nil, fmt.Errorf("seeding filesystem: %w", err)
	}
	for _, name := range names {
		if err := vfs.Chmod(name, 0755); err != nil {
			return nil, err
		}
	}

	return vos.NewVirtualSystem(vos.VirtualConfig{
		Fs:       vfs,
		Resolver: commands.Resolver(),
		Environ: []string{
			"HOME=" + cfg.User.Home,
			"LOGNAME=" + cfg.User.Name,
			"USER=" + cfg.User.Name,
			"PATH=" + cfg.Path,
		},
		Dir: cfg.User.Home,
		Pid: VirtualPid,
	}), nil
}

// rootFs returns an in-memory filesystem holding the configured image, if
// any. Images are tarballs, optionally gzipped.
func rootFs(cfg *config.Configuration) (vos.VFS, error) {
	mem := vos.NewMemFs()
	if cfg.RootFs == "" {
		return mem, nil
	}

	fd, err := cfg.OpenRootFs()
	if err != nil {
		return nil, fmt.Errorf("opening root filesystem: %w", err)
	}
	defer fd.Close()

	if strings.HasSuffix(cfg.RootFs, ".gz") {
		err = vos.ExtractTarGzToVFS(mem, fd)
	} else {
		err = vos.ExtractTarToVFS(mem, tar.NewReader(fd))
	}
	if err != nil {
		return nil, fmt.Errorf("unpacking root filesystem: %w", err)
	}
	return mem, nil
}

// Env returns the shell.
func (s *Session) Env() *shell.Env {
	return s.env
}

// System returns the system the shell runs on.
func (s *Session) System() vos.System {
	return s.sys
}

// Recorder returns the session recording, nil if there is none.
func (s *Session) Recorder() *ttylog.Recorder {
	return s.recorder
}

// RunString runs a script or command string.
func (s *Session) RunString(ctx context.Context, src, name string) shell.ExitStatus {
	status, _ := s.env.RunString(ctx, src, name)
	return status
}

// RunReader runs the whole script read from r.
func (s *Session) RunReader(ctx context.Context, r io.Reader, name string) (shell.ExitStatus, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return shell.StatusFailure, err
	}
	return s.RunString(ctx, string(src), name), nil
}

// Exit runs the EXIT trap and closes the session, returning the final
// status.
func (s *Session) Exit(ctx context.Context) shell.ExitStatus {
	status := s.env.Exit(ctx)
	s.Close()
	return status
}

func (s *Session) Close() error {
	return s.toClose.Close()
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
