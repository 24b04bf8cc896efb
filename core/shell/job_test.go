package shell

import (
	"bytes"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/vsh/core/vos"
)

func newTestJob(cmd string, pids ...int) *Job {
	j := &Job{Cmd: cmd}
	for _, pid := range pids {
		j.Procs = append(j.Procs, &Proc{Pid: pid, State: vos.ProcRunning})
	}
	if len(pids) > 0 {
		j.Pgid = pids[0]
	}
	return j
}

func TestJobTable_Find(t *testing.T) {
	table := NewJobTable()
	sleep := newTestJob("sleep 10", 100)
	vi := newTestJob("vi file", 200)
	table.SetCurrent(table.Add(sleep))
	table.SetCurrent(table.Add(vi))

	cases := map[string]*Job{
		"%%":     vi,
		"%+":     vi,
		"%":      vi,
		"%-":     sleep,
		"%1":     sleep,
		"2":      vi,
		"%vi":    vi,
		"%?file": vi,
		"%s":     sleep,
	}
	for spec, want := range cases {
		got, err := table.Find(spec)
		require.NoError(t, err, spec)
		assert.Same(t, want, got, spec)
	}

	for _, spec := range []string{"%x", "%9", "%?nothing"} {
		_, err := table.Find(spec)
		assert.True(t, errors.Is(err, ErrNoSuchJob), spec)
	}

	table.Add(newTestJob("sleep 20", 300))
	_, err := table.Find("%sleep")
	assert.EqualError(t, err, "job: %sleep: ambiguous job spec")
}

func TestJobTable_currentAndPrevious(t *testing.T) {
	table := NewJobTable()
	for i, cmd := range []string{"a", "b", "c"} {
		table.SetCurrent(table.Add(newTestJob(cmd, 100*(i+1))))
	}
	assert.Equal(t, 3, table.Current())
	assert.Equal(t, 2, table.Previous())

	table.Remove(3)
	assert.Equal(t, 2, table.Current())
	assert.Equal(t, 1, table.Previous())

	j, ok := table.Get(1)
	require.True(t, ok)
	assert.Equal(t, byte('-'), table.Marker(j))

	// A job that stops becomes current.
	assert.True(t, table.Update(vos.ChildEvent{Pid: 100, State: vos.ProcStopped, Signal: syscall.SIGTSTP}))
	assert.Equal(t, 1, table.Current())
	assert.Equal(t, 2, table.Previous())
	assert.False(t, j.Notified)

	assert.False(t, table.Update(vos.ChildEvent{Pid: 999, State: vos.ProcExited}))

	// Ids are reused above the highest one in use.
	assert.Equal(t, 3, table.Add(newTestJob("d", 400)))
}

func TestJobTable_Launched(t *testing.T) {
	table := NewJobTable()
	table.Launched(table.Add(newTestJob("a", 100)))
	assert.Equal(t, 1, table.Current())

	table.Launched(table.Add(newTestJob("b", 200)))
	assert.Equal(t, 2, table.Current())
	assert.Equal(t, 1, table.Previous())

	// A stopped current job keeps its place.
	require.True(t, table.Update(vos.ChildEvent{Pid: 100, State: vos.ProcStopped, Signal: syscall.SIGTSTP}))
	table.Launched(table.Add(newTestJob("c", 300)))
	assert.Equal(t, 1, table.Current())
	assert.Equal(t, 3, table.Previous())
}

func TestJob_stateAndStatus(t *testing.T) {
	j := newTestJob("false | true", 100, 101)
	assert.Equal(t, JobRunning, j.State())
	assert.Equal(t, "Running", j.Describe())

	j.Procs[0].apply(vos.ChildEvent{Pid: 100, State: vos.ProcExited, Code: 1})
	assert.Equal(t, JobRunning, j.State())

	j.Procs[1].apply(vos.ChildEvent{Pid: 101, State: vos.ProcExited, Code: 0})
	assert.Equal(t, JobDone, j.State())
	assert.Equal(t, StatusSuccess, j.Status())
	assert.Equal(t, "Done", j.Describe())

	j.PipeFail = true
	assert.Equal(t, StatusFailure, j.Status())
	assert.Equal(t, "Done(1)", j.Describe())

	killed := newTestJob("sleep 10", 200)
	killed.Procs[0].apply(vos.ChildEvent{Pid: 200, State: vos.ProcSignaled, Signal: syscall.SIGKILL})
	assert.Equal(t, StatusFromSignal(syscall.SIGKILL), killed.Status())
	assert.Equal(t, "Killed(SIGKILL)", killed.Describe())
	assert.Equal(t, []int{200}, killed.Pids())
}

func TestJobTable_Format(t *testing.T) {
	table := NewJobTable()
	j := newTestJob("sleep 20", 300)
	table.SetCurrent(table.Add(j))
	j.Procs[0].apply(vos.ChildEvent{Pid: 300, State: vos.ProcStopped, Signal: syscall.SIGTSTP})

	var buf bytes.Buffer
	table.Format(&buf, j, false)
	table.Format(&buf, j, true)

	assert.Equal(t,
		"[1]+  Stopped(SIGTSTP)        sleep 20\n"+
			"[1]+ 300 Stopped(SIGTSTP)        sleep 20\n",
		buf.String())
	assert.Equal(t, StatusFromSignal(syscall.SIGTSTP), j.Status())
}
