package shell

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/josephlewis42/vsh/core/vos"
)

// JobState is the aggregate state of a job's processes.
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
)

func (s JobState) String() string {
	switch s {
	case JobStopped:
		return "Stopped"
	case JobDone:
		return "Done"
	default:
		return "Running"
	}
}

// Proc is one process of a job.
type Proc struct {
	Pid    int
	State  vos.ProcState
	Status ExitStatus
	Signal vos.Signal
}

func (p *Proc) apply(ev vos.ChildEvent) {
	p.State = ev.State
	p.Signal = ev.Signal
	if ev.State != vos.ProcRunning {
		p.Status = ExitStatus(ev.ExitStatus())
	}
}

// Job is a pipeline started by the shell, tracked until it is reported.
type Job struct {
	ID    int
	Pgid  int
	Procs []*Proc
	Cmd   string

	// Foreground is set while the shell waits for the job.
	Foreground bool
	// Notified is cleared on every state change and set once the change
	// has been reported to the user.
	Notified bool
	// PipeFail records the option at the time the job started.
	PipeFail bool
}

// State derives the job state from its processes: running if any process
// runs, stopped if any is stopped, otherwise done.
func (j *Job) State() JobState {
	stopped := false
	for _, p := range j.Procs {
		switch p.State {
		case vos.ProcRunning:
			return JobRunning
		case vos.ProcStopped:
			stopped = true
		}
	}
	if stopped {
		return JobStopped
	}
	return JobDone
}

// Status is the status of the last process, or with pipefail the rightmost
// non-zero one.
func (j *Job) Status() ExitStatus {
	if len(j.Procs) == 0 {
		return StatusSuccess
	}
	if j.State() == JobStopped {
		for _, p := range j.Procs {
			if p.State == vos.ProcStopped {
				return p.Status
			}
		}
	}
	if j.PipeFail {
		for i := len(j.Procs) - 1; i >= 0; i-- {
			if s := j.Procs[i].Status; s != StatusSuccess {
				return s
			}
		}
		return StatusSuccess
	}
	return j.Procs[len(j.Procs)-1].Status
}

// Pids returns the pids of the job's processes.
func (j *Job) Pids() []int {
	out := make([]int, len(j.Procs))
	for i, p := range j.Procs {
		out[i] = p.Pid
	}
	return out
}

// Describe renders the state column of `jobs`.
func (j *Job) Describe() string {
	switch j.State() {
	case JobRunning:
		return "Running"
	case JobStopped:
		for _, p := range j.Procs {
			if p.State == vos.ProcStopped && p.Signal != 0 {
				return fmt.Sprintf("Stopped(SIG%s)", vos.SignalName(p.Signal))
			}
		}
		return "Stopped"
	default:
		last := j.Procs[len(j.Procs)-1]
		if last.State == vos.ProcSignaled {
			return fmt.Sprintf("Killed(SIG%s)", vos.SignalName(last.Signal))
		}
		if s := j.Status(); s != StatusSuccess {
			return fmt.Sprintf("Done(%d)", s)
		}
		return "Done"
	}
}

// JobTable holds the jobs of one shell. It tracks the current (%+) and
// previous (%-) jobs.
type JobTable struct {
	jobs     []*Job
	current  int
	previous int
}

// NewJobTable creates an empty table.
func NewJobTable() *JobTable {
	return &JobTable{}
}

// Add registers j under an id one above the highest in use.
func (t *JobTable) Add(j *Job) int {
	id := 1
	for _, other := range t.jobs {
		if other.ID >= id {
			id = other.ID + 1
		}
	}
	j.ID = id
	t.jobs = append(t.jobs, j)
	return id
}

// Remove forgets the job with the given id.
func (t *JobTable) Remove(id int) {
	for i, j := range t.jobs {
		if j.ID == id {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			break
		}
	}
	if t.current == id {
		t.current, t.previous = t.previous, 0
	}
	if t.previous == id {
		t.previous = 0
	}
	if t.current == 0 {
		t.current = t.latestOther(0)
	}
	if t.previous == 0 {
		t.previous = t.latestOther(t.current)
	}
}

func (t *JobTable) latestOther(except int) int {
	for i := len(t.jobs) - 1; i >= 0; i-- {
		if t.jobs[i].ID != except {
			return t.jobs[i].ID
		}
	}
	return 0
}

// SetCurrent makes id the current job.
func (t *JobTable) SetCurrent(id int) {
	if t.current == id {
		return
	}
	t.previous, t.current = t.current, id
}

// Launched records a new background job. It becomes current unless the
// current job is stopped, in which case it becomes the previous job.
func (t *JobTable) Launched(id int) {
	if cur, ok := t.Get(t.current); ok && cur.State() == JobStopped && id != t.current {
		t.previous = id
		return
	}
	t.SetCurrent(id)
}

// Current returns the current job id, 0 if there is none.
func (t *JobTable) Current() int { return t.current }

// Previous returns the previous job id, 0 if there is none.
func (t *JobTable) Previous() int { return t.previous }

// Get returns the job with the given id.
func (t *JobTable) Get(id int) (*Job, bool) {
	for _, j := range t.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return nil, false
}

// List returns the jobs ordered by id.
func (t *JobTable) List() []*Job {
	return append([]*Job(nil), t.jobs...)
}

// Len returns the number of jobs.
func (t *JobTable) Len() int {
	return len(t.jobs)
}

// ByPid finds the job owning pid.
func (t *JobTable) ByPid(pid int) (*Job, *Proc) {
	for _, j := range t.jobs {
		for _, p := range j.Procs {
			if p.Pid == pid {
				return j, p
			}
		}
	}
	return nil, nil
}

// Update applies a child event to the owning job. It reports false for
// pids the table does not know.
func (t *JobTable) Update(ev vos.ChildEvent) bool {
	j, p := t.ByPid(ev.Pid)
	if j == nil {
		return false
	}
	before := j.State()
	p.apply(ev)
	if after := j.State(); after != before {
		j.Notified = false
		if after == JobStopped {
			t.SetCurrent(j.ID)
		}
	}
	return true
}

// Find resolves a job spec: %n, %%, %+, %-, %prefix or %?substring. A bare
// number is taken as a job id too.
func (t *JobTable) Find(spec string) (*Job, error) {
	notFound := &JobControlError{Op: "job", Job: spec, Err: ErrNoSuchJob}
	s := strings.TrimPrefix(spec, "%")

	var id int
	switch {
	case s == "" || s == "%" || s == "+":
		id = t.current
	case s == "-":
		id = t.previous
	default:
		if n, err := strconv.Atoi(s); err == nil {
			id = n
			break
		}
		var matches []*Job
		for _, j := range t.jobs {
			if strings.HasPrefix(s, "?") {
				if strings.Contains(j.Cmd, s[1:]) {
					matches = append(matches, j)
				}
			} else if strings.HasPrefix(j.Cmd, s) {
				matches = append(matches, j)
			}
		}
		switch len(matches) {
		case 0:
			return nil, notFound
		case 1:
			return matches[0], nil
		default:
			return nil, &JobControlError{Op: "job", Job: spec, Err: fmt.Errorf("ambiguous job spec")}
		}
	}
	if j, ok := t.Get(id); ok {
		return j, nil
	}
	return nil, notFound
}

// Marker returns '+' for the current job, '-' for the previous one and a
// space otherwise.
func (t *JobTable) Marker(j *Job) byte {
	switch j.ID {
	case t.current:
		return '+'
	case t.previous:
		return '-'
	default:
		return ' '
	}
}

// Format writes one line of `jobs` output for j.
func (t *JobTable) Format(w io.Writer, j *Job, long bool) {
	if long {
		fmt.Fprintf(w, "[%d]%c %d %-24s%s\n", j.ID, t.Marker(j), j.Pgid, j.Describe(), j.Cmd)
		return
	}
	fmt.Fprintf(w, "[%d]%c  %-24s%s\n", j.ID, t.Marker(j), j.Describe(), j.Cmd)
}
