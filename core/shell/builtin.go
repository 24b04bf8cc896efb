package shell

import (
	"context"
	"sort"
)

// BuiltinKind selects how the engine treats a builtin.
type BuiltinKind int

const (
	// Regular builtins behave like external commands: prefix assignments
	// are temporary and functions of the same name take precedence.
	Regular BuiltinKind = iota
	// Special builtins are found before functions, keep their prefix
	// assignments, and their errors end a non-interactive shell.
	Special
)

// Result is what a builtin hands back to the engine.
type Result struct {
	Status ExitStatus
	// Divert requests non-local control flow, e.g. for return or exit.
	Divert Divert
	// KeepRedirections makes the redirections of the invocation permanent,
	// as exec does when it runs without a command.
	KeepRedirections bool
}

// Builtin is a command implemented inside the shell.
type Builtin interface {
	Main(ctx context.Context, env *Env, args []string) Result
}

// BuiltinFunc adapts a function to the Builtin interface.
type BuiltinFunc func(ctx context.Context, env *Env, args []string) Result

func (f BuiltinFunc) Main(ctx context.Context, env *Env, args []string) Result {
	return f(ctx, env, args)
}

var _ Builtin = (BuiltinFunc)(nil)

// Status wraps an exit status in a Result.
func Status(s ExitStatus) Result {
	return Result{Status: s}
}

type registryEntry struct {
	kind    BuiltinKind
	builtin Builtin
}

// Registry maps command names to builtins.
type Registry struct {
	entries map[string]registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register adds or replaces the builtin called name.
func (r *Registry) Register(name string, kind BuiltinKind, b Builtin) {
	r.entries[name] = registryEntry{kind: kind, builtin: b}
}

// Lookup finds the builtin called name.
func (r *Registry) Lookup(name string) (Builtin, BuiltinKind, bool) {
	if r == nil {
		return nil, Regular, false
	}
	e, ok := r.entries[name]
	return e.builtin, e.kind, ok
}

// Names lists the registered builtins in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
