package vos

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = 1000

// nextEvent waits for the next child event posted to the mailbox of pid.
func nextEvent(t *testing.T, vs *VirtualSystem, pid int) ChildEvent {
	t.Helper()
	mb := vs.Mailbox(pid)
	deadline := time.After(5 * time.Second)
	for {
		if evs := mb.TakeEvents(); len(evs) > 0 {
			// Put back anything beyond the first event.
			for _, ev := range evs[1:] {
				mb.PostEvent(ev)
			}
			return evs[0]
		}
		select {
		case <-mb.Notify():
		case <-deadline:
			t.Fatal("timed out waiting for a child event")
		}
	}
}

// spin is a task that runs until it is killed.
func spin(vs *VirtualSystem) Task {
	return func(ctx context.Context, pid int) int {
		for {
			if err := vs.Checkpoint(ctx, pid); err != nil {
				return 1
			}
			time.Sleep(time.Millisecond)
		}
	}
}

func TestVirtualSystem_StartProcess(t *testing.T) {
	fs := NewMemFs()
	require.NoError(t, afero.WriteFile(fs, "/bin/data", []byte("not a program"), 0644))

	hello := func(p *Process) int {
		p.Stdout().Write([]byte(p.Getenv("GREETING") + " " + p.Args()[1] + "\n"))
		return 3
	}
	vs := NewVirtualSystem(VirtualConfig{
		Fs: fs,
		Resolver: func(path string) ProcessFunc {
			if path == "/bin/hello" {
				return hello
			}
			return nil
		},
	})

	t.Run("runs", func(t *testing.T) {
		out := NewBuffer()
		pid, err := vs.StartProcess(testRoot, "/bin/hello", []string{"hello", "world"}, &ProcAttr{
			Env:   []string{"GREETING=hi"},
			Files: []File{DevNull(), out, DevNull()},
			Pgid:  GroupInherit,
		})
		require.NoError(t, err)

		ev := nextEvent(t, vs, testRoot)
		assert.Equal(t, pid, ev.Pid)
		assert.Equal(t, ProcExited, ev.State)
		assert.Equal(t, 3, ev.ExitStatus())
		assert.Equal(t, "hi world\n", out.String())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := vs.StartProcess(testRoot, "/bin/nope", nil, nil)
		assert.True(t, errors.Is(err, syscall.ENOENT))
	})

	t.Run("not executable", func(t *testing.T) {
		_, err := vs.StartProcess(testRoot, "/bin/data", nil, nil)
		assert.True(t, errors.Is(err, syscall.ENOEXEC))
	})
}

func TestVirtualSystem_stopContinueKill(t *testing.T) {
	vs := NewVirtualSystem(VirtualConfig{})
	pid, err := vs.Fork(testRoot, spin(vs), &ProcAttr{Pgid: GroupNew})
	require.NoError(t, err)

	pgid, ok := vs.Pgid(pid)
	require.True(t, ok)
	assert.Equal(t, pid, pgid)

	require.NoError(t, vs.Kill(pid, syscall.SIGTSTP))
	ev := nextEvent(t, vs, testRoot)
	assert.Equal(t, ProcStopped, ev.State)
	assert.Equal(t, syscall.SIGTSTP, ev.Signal)
	assert.Equal(t, 148, ev.ExitStatus())

	require.NoError(t, vs.Kill(pid, syscall.SIGCONT))
	assert.Equal(t, ProcRunning, nextEvent(t, vs, testRoot).State)

	require.NoError(t, vs.Kill(-pgid, syscall.SIGTERM))
	ev = nextEvent(t, vs, testRoot)
	assert.Equal(t, ProcSignaled, ev.State)
	assert.Equal(t, syscall.SIGTERM, ev.Signal)
	assert.Equal(t, 143, ev.ExitStatus())

	assert.Equal(t, ErrNoSuchProcess, vs.Kill(pid, syscall.SIGTERM))
}

func TestVirtualSystem_processGroups(t *testing.T) {
	vs := NewVirtualSystem(VirtualConfig{})
	leader, err := vs.Fork(testRoot, spin(vs), &ProcAttr{Pgid: GroupNew})
	require.NoError(t, err)
	member, err := vs.Fork(testRoot, spin(vs), &ProcAttr{Pgid: leader})
	require.NoError(t, err)
	inherit, err := vs.Fork(testRoot, spin(vs), nil)
	require.NoError(t, err)

	pgid, _ := vs.Pgid(member)
	assert.Equal(t, leader, pgid)
	pgid, _ = vs.Pgid(inherit)
	assert.Equal(t, testRoot, pgid)

	require.NoError(t, vs.Kill(-leader, syscall.SIGKILL))
	gone := map[int]bool{}
	for i := 0; i < 2; i++ {
		ev := nextEvent(t, vs, testRoot)
		assert.Equal(t, ProcSignaled, ev.State)
		gone[ev.Pid] = true
	}
	assert.Equal(t, map[int]bool{leader: true, member: true}, gone)

	_, alive := vs.Pgid(inherit)
	assert.True(t, alive)
	require.NoError(t, vs.Kill(inherit, syscall.SIGKILL))
	assert.Equal(t, inherit, nextEvent(t, vs, testRoot).Pid)
}

func TestVirtualSystem_dispositions(t *testing.T) {
	vs := NewVirtualSystem(VirtualConfig{})

	require.NoError(t, vs.SetSignalDisposition(testRoot, syscall.SIGUSR1, DispositionCatch))
	require.NoError(t, vs.SetSignalDisposition(testRoot, syscall.SIGINT, DispositionIgnore))
	assert.Equal(t, syscall.EINVAL, vs.SetSignalDisposition(testRoot, syscall.SIGKILL, DispositionCatch))

	require.NoError(t, vs.Kill(testRoot, syscall.SIGUSR1))
	require.NoError(t, vs.Kill(testRoot, syscall.SIGINT))
	assert.Equal(t, []Signal{syscall.SIGUSR1}, vs.Mailbox(testRoot).TakeSignals())
	assert.NoError(t, vs.Checkpoint(context.Background(), testRoot))

	t.Run("inherited ignore", func(t *testing.T) {
		pid, err := vs.Fork(testRoot, spin(vs), &ProcAttr{Ignored: []Signal{syscall.SIGTERM}})
		require.NoError(t, err)

		require.NoError(t, vs.Kill(pid, syscall.SIGTERM))
		_, alive := vs.Pgid(pid)
		assert.True(t, alive)

		require.NoError(t, vs.Kill(pid, syscall.SIGKILL))
		assert.Equal(t, syscall.SIGKILL, nextEvent(t, vs, testRoot).Signal)
	})
}

func TestVirtualSystem_foreground(t *testing.T) {
	vs := NewVirtualSystem(VirtualConfig{})
	_, err := vs.Foreground()
	assert.Equal(t, ErrNoTerminal, err)

	tty := NewVirtualSystem(VirtualConfig{Terminal: true})
	pid, err := tty.Fork(testRoot, spin(tty), &ProcAttr{Pgid: GroupNew, Foreground: true})
	require.NoError(t, err)
	fg, err := tty.Foreground()
	require.NoError(t, err)
	assert.Equal(t, pid, fg)

	require.NoError(t, tty.SetForeground(testRoot))
	fg, _ = tty.Foreground()
	assert.Equal(t, testRoot, fg)
	require.NoError(t, tty.Kill(pid, syscall.SIGKILL))
}

type closeCounter struct {
	*Buffer
	closes int32
}

func (c *closeCounter) Close() error {
	atomic.AddInt32(&c.closes, 1)
	return nil
}

func TestDup(t *testing.T) {
	under := &closeCounter{Buffer: NewBuffer()}
	a := Share(under)
	b := Dup(a)

	assert.True(t, SameFile(a, b))
	assert.False(t, SameFile(a, Share(NewBuffer())))

	b.Write([]byte("x"))
	require.NoError(t, a.Close())
	assert.Equal(t, int32(0), atomic.LoadInt32(&under.closes))
	assert.ErrorIs(t, a.Close(), os.ErrClosed)

	require.NoError(t, b.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&under.closes))
	assert.Equal(t, "x", under.String())
}

func TestParseSignal(t *testing.T) {
	cases := map[string]Signal{
		"INT":     syscall.SIGINT,
		"sigterm": syscall.SIGTERM,
		"9":       syscall.SIGKILL,
		"EXIT":    0,
		"0":       0,
	}
	for in, want := range cases {
		got, err := ParseSignal(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	_, err := ParseSignal("NOPE")
	assert.EqualError(t, err, "NOPE: invalid signal specification")
	assert.Equal(t, "EXIT", SignalName(0))
	assert.Equal(t, "TSTP", SignalName(syscall.SIGTSTP))
}
