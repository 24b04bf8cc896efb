package shell

import (
	"fmt"
	"sort"
	"strings"
)

// VarKind says which value a Variable holds.
type VarKind int

const (
	VarUnset VarKind = iota
	VarScalar
	VarArray
)

// Variable is a named shell value with its attributes.
type Variable struct {
	Kind     VarKind
	Str      string
	List     []string
	Exported bool
	ReadOnly bool
}

// IsSet reports whether the variable holds a value.
func (v Variable) IsSet() bool {
	return v.Kind != VarUnset
}

// String returns the scalar value, or the first element of an array.
func (v Variable) String() string {
	switch v.Kind {
	case VarScalar:
		return v.Str
	case VarArray:
		if len(v.List) > 0 {
			return v.List[0]
		}
	}
	return ""
}

// Values returns the variable as a list: arrays as-is, scalars as a single
// element and unset variables as nothing.
func (v Variable) Values() []string {
	switch v.Kind {
	case VarScalar:
		return []string{v.Str}
	case VarArray:
		return v.List
	}
	return nil
}

func (v *Variable) clone() *Variable {
	out := *v
	out.List = append([]string(nil), v.List...)
	return &out
}

// VarTable is a stack of variable scopes. Frame 0 holds the globals; each
// function call pushes a frame for its local variables.
type VarTable struct {
	frames []map[string]*Variable
}

// NewVarTable creates a table with an empty global frame.
func NewVarTable() *VarTable {
	return &VarTable{frames: []map[string]*Variable{{}}}
}

// NewVarTableFromEnviron creates a table whose globals are the exported
// "key=value" entries of environ.
func NewVarTableFromEnviron(environ []string) *VarTable {
	t := NewVarTable()
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !validName(k) {
			continue
		}
		t.frames[0][k] = &Variable{Kind: VarScalar, Str: v, Exported: true}
	}
	return t
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// lookup returns the innermost variable called name and its frame.
func (t *VarTable) lookup(name string) (*Variable, int) {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if v, ok := t.frames[i][name]; ok {
			return v, i
		}
	}
	return nil, -1
}

// Get returns the visible variable called name.
func (t *VarTable) Get(name string) (Variable, bool) {
	v, _ := t.lookup(name)
	if v == nil {
		return Variable{}, false
	}
	return *v, true
}

// Value returns the string value of name, empty if unset.
func (t *VarTable) Value(name string) string {
	v, _ := t.Get(name)
	return v.String()
}

// slot returns the variable to modify for name, creating a global if none
// is visible.
func (t *VarTable) slot(name string) (*Variable, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%s: bad variable name", name)
	}
	v, _ := t.lookup(name)
	if v == nil {
		v = &Variable{}
		t.frames[0][name] = v
	}
	if v.ReadOnly {
		return nil, fmt.Errorf("%s: %w", name, ErrReadOnly)
	}
	return v, nil
}

// Set assigns a scalar value to the visible variable called name.
func (t *VarTable) Set(name, value string) error {
	v, err := t.slot(name)
	if err != nil {
		return err
	}
	v.Kind, v.Str, v.List = VarScalar, value, nil
	return nil
}

// SetArray assigns an indexed array to the visible variable called name.
func (t *VarTable) SetArray(name string, values []string) error {
	v, err := t.slot(name)
	if err != nil {
		return err
	}
	v.Kind, v.Str, v.List = VarArray, "", append([]string(nil), values...)
	return nil
}

// SetIndex assigns element i of an array, growing it as needed. A scalar
// becomes the array's first element.
func (t *VarTable) SetIndex(name string, i int, value string) error {
	if i < 0 {
		return fmt.Errorf("%s[%d]: bad array subscript", name, i)
	}
	v, err := t.slot(name)
	if err != nil {
		return err
	}
	list := v.Values()
	for len(list) <= i {
		list = append(list, "")
	}
	list[i] = value
	v.Kind, v.Str, v.List = VarArray, "", list
	return nil
}

// SetLocal declares name in the innermost frame, shadowing any outer
// variable. Without a value the local starts unset.
func (t *VarTable) SetLocal(name string, value *string) error {
	if !validName(name) {
		return fmt.Errorf("%s: bad variable name", name)
	}
	top := t.frames[len(t.frames)-1]
	v, ok := top[name]
	if !ok {
		v = &Variable{}
		top[name] = v
	}
	if v.ReadOnly {
		return fmt.Errorf("%s: %w", name, ErrReadOnly)
	}
	if value != nil {
		v.Kind, v.Str, v.List = VarScalar, *value, nil
	}
	return nil
}

// Unset removes the value of the visible variable called name. A local
// stays declared, so the outer variable remains hidden.
func (t *VarTable) Unset(name string) error {
	v, frame := t.lookup(name)
	if v == nil {
		return nil
	}
	if v.ReadOnly {
		return fmt.Errorf("%s: %w", name, ErrReadOnly)
	}
	if frame == 0 {
		delete(t.frames[0], name)
		return nil
	}
	*v = Variable{}
	return nil
}

// Export sets the export attribute of name, declaring it if needed.
func (t *VarTable) Export(name string, on bool) error {
	if !validName(name) {
		return fmt.Errorf("%s: bad variable name", name)
	}
	v, _ := t.lookup(name)
	if v == nil {
		v = &Variable{}
		t.frames[0][name] = v
	}
	v.Exported = on
	return nil
}

// MarkReadOnly makes name read-only, declaring it if needed.
func (t *VarTable) MarkReadOnly(name string) error {
	if !validName(name) {
		return fmt.Errorf("%s: bad variable name", name)
	}
	v, _ := t.lookup(name)
	if v == nil {
		v = &Variable{}
		t.frames[0][name] = v
	}
	v.ReadOnly = true
	return nil
}

// restore puts back a variable saved with Get, bypassing the read-only
// check. If the variable did not exist it is removed again.
func (t *VarTable) restore(name string, saved Variable, existed bool) {
	v, frame := t.lookup(name)
	switch {
	case v == nil && existed:
		t.frames[0][name] = saved.clone()
	case v != nil && existed:
		*v = *saved.clone()
	case v != nil:
		delete(t.frames[frame], name)
	}
}

// PushFrame starts a new scope for local variables.
func (t *VarTable) PushFrame() {
	t.frames = append(t.frames, map[string]*Variable{})
}

// PopFrame discards the innermost scope. The global frame is never popped.
func (t *VarTable) PopFrame() {
	if len(t.frames) > 1 {
		t.frames = t.frames[:len(t.frames)-1]
	}
}

// Depth returns the number of function frames above the globals.
func (t *VarTable) Depth() int {
	return len(t.frames) - 1
}

// visible flattens the frames into the variables currently in scope.
func (t *VarTable) visible() map[string]*Variable {
	out := make(map[string]*Variable)
	for _, frame := range t.frames {
		for name, v := range frame {
			out[name] = v
		}
	}
	return out
}

// Names returns the names of all visible variables in sorted order,
// including declared but unset ones.
func (t *VarTable) Names() []string {
	vis := t.visible()
	out := make([]string, 0, len(vis))
	for name := range vis {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Environ returns the exported, set variables as sorted "key=value"
// entries, the way they are passed to a child process.
func (t *VarTable) Environ() []string {
	vis := t.visible()
	out := make([]string, 0, len(vis))
	for name, v := range vis {
		if v.Exported && v.IsSet() {
			out = append(out, name+"="+v.String())
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy. Subshells run on a clone so their
// assignments never reach the parent.
func (t *VarTable) Clone() *VarTable {
	out := &VarTable{frames: make([]map[string]*Variable, len(t.frames))}
	for i, frame := range t.frames {
		cp := make(map[string]*Variable, len(frame))
		for name, v := range frame {
			cp[name] = v.clone()
		}
		out.frames[i] = cp
	}
	return out
}
