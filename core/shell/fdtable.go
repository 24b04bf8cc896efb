package shell

import (
	"fmt"
	"syscall"

	"github.com/josephlewis42/vsh/core/vos"
)

// FDSlot is an open descriptor of the shell.
type FDSlot struct {
	File vos.File
}

// FDTable maps descriptor numbers to open files. Every file in the table is
// a shared handle so a slot can be duplicated into another.
type FDTable struct {
	slots []*FDSlot
}

// NewFDTable creates a table whose first descriptors are files. Nil entries
// are left closed.
func NewFDTable(files ...vos.File) *FDTable {
	t := &FDTable{}
	for fd, f := range files {
		if f != nil {
			t.Set(fd, f)
		}
	}
	return t
}

func (t *FDTable) grow(fd int) {
	for len(t.slots) <= fd {
		t.slots = append(t.slots, nil)
	}
}

// Get returns the file at fd.
func (t *FDTable) Get(fd int) (vos.File, bool) {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return nil, false
	}
	return t.slots[fd].File, true
}

// Set installs f at fd, closing the previous occupant.
func (t *FDTable) Set(fd int, f vos.File) {
	t.grow(fd)
	if old := t.slots[fd]; old != nil {
		old.File.Close()
	}
	t.slots[fd] = &FDSlot{File: vos.Share(f)}
}

// take removes the slot at fd without closing it.
func (t *FDTable) take(fd int) *FDSlot {
	if fd < 0 || fd >= len(t.slots) {
		return nil
	}
	s := t.slots[fd]
	t.slots[fd] = nil
	return s
}

// put installs a slot previously removed with take, closing the occupant.
func (t *FDTable) put(fd int, s *FDSlot) {
	t.grow(fd)
	if old := t.slots[fd]; old != nil {
		old.File.Close()
	}
	t.slots[fd] = s
}

// Close closes fd. Closing a closed descriptor is not an error.
func (t *FDTable) Close(fd int) {
	if s := t.take(fd); s != nil {
		s.File.Close()
	}
}

// Dup makes to refer to the same open file as from, like dup2.
func (t *FDTable) Dup(from, to int) error {
	f, ok := t.Get(from)
	if !ok {
		return fmt.Errorf("%d: %w", from, syscall.EBADF)
	}
	if from == to {
		return nil
	}
	dup := vos.Dup(f)
	t.grow(to)
	if old := t.slots[to]; old != nil {
		old.File.Close()
	}
	t.slots[to] = &FDSlot{File: dup}
	return nil
}

// Len returns one more than the highest descriptor that may be open.
func (t *FDTable) Len() int {
	return len(t.slots)
}

// Clone duplicates every open descriptor into a new table.
func (t *FDTable) Clone() *FDTable {
	out := &FDTable{slots: make([]*FDSlot, len(t.slots))}
	for fd, s := range t.slots {
		if s != nil {
			out.slots[fd] = &FDSlot{File: vos.Dup(s.File)}
		}
	}
	return out
}

// ChildFiles duplicates the descriptors a child process inherits. The
// caller hands the result to the system, which closes it.
func (t *FDTable) ChildFiles() []vos.File {
	n := 0
	for fd, s := range t.slots {
		if s != nil {
			n = fd + 1
		}
	}
	out := make([]vos.File, n)
	for fd := 0; fd < n; fd++ {
		if s := t.slots[fd]; s != nil {
			out[fd] = vos.Dup(s.File)
		}
	}
	return out
}

// CloseAll closes every descriptor.
func (t *FDTable) CloseAll() {
	for fd := range t.slots {
		t.Close(fd)
	}
}

// Snapshot records which file each descriptor refers to, for comparing the
// table before and after an operation.
func (t *FDTable) Snapshot() map[int]vos.File {
	out := make(map[int]vos.File)
	for fd, s := range t.slots {
		if s != nil {
			out[fd] = s.File
		}
	}
	return out
}

var errNotDir = syscall.ENOTDIR

// badFile stands in for a closed descriptor.
type badFile int

func (f badFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("%d: %w", int(f), syscall.EBADF)
}

func (f badFile) Write([]byte) (int, error) {
	return 0, fmt.Errorf("%d: %w", int(f), syscall.EBADF)
}

func (badFile) Close() error { return nil }
