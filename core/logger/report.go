package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *structpb.Struct)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Kind returns the event kind of a log entry.
func Kind(le *structpb.Struct) string {
	return StringField(le, FieldEvent)
}

// StringField returns a string field of le, or "" if it is absent.
func StringField(le *structpb.Struct, name string) string {
	return le.GetFields()[name].GetStringValue()
}

// NumberField returns a numeric field of le, or 0 if it is absent.
func NumberField(le *structpb.Struct, name string) int {
	return int(le.GetFields()[name].GetNumberValue())
}

// StringsField returns a list field of le as strings.
func StringsField(le *structpb.Struct, name string) []string {
	var out []string
	for _, v := range le.GetFields()[name].GetListValue().GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

func NewBugReport() *BugReport {
	return &BugReport{
		InvalidInvocations: NewPathCounter("command", "error"),
		UnknownCommands:    NewPathCounter("command", "status", "error"),
	}
}

// BugReport pulls events that are likely mistakes in scripts.
type BugReport struct {
	LogEntries int `json:"log_entries"`

	InvalidInvocations *PathCounter `json:"invalid_invocations"`
	UnknownCommands    *PathCounter `json:"unknown_commands"`
}

func (r *BugReport) Update(le *structpb.Struct) {
	r.LogEntries++

	switch Kind(le) {
	case EventUnknownCommand:
		r.UnknownCommands.Increment(
			firstWord(StringsField(le, "command")),
			fmt.Sprint(NumberField(le, "status")),
			StringField(le, "error"))
	case EventInvalidInvocation:
		r.InvalidInvocations.Increment(firstWord(StringsField(le, "command")), StringField(le, "error"))
	}
}

// SessionsReport groups the commands run by each session.
type SessionsReport struct {
	// Map of sessionID -> session
	sessions map[string]*SessionReport
}

// SessionReport is the history of one shell session.
type SessionReport struct {
	LogEntries int      `json:"log_entries"`
	Commands   []string `json:"commands"`
	Traps      []string `json:"traps,omitempty"`
	ExitStatus *int     `json:"exit_status,omitempty"`
}

func (s *SessionReport) Update(le *structpb.Struct) {
	s.LogEntries++

	switch Kind(le) {
	case EventRunCommand, EventUnknownCommand:
		s.Commands = append(s.Commands, strings.Join(StringsField(le, "command"), " "))
	case EventTrap:
		s.Traps = append(s.Traps, fmt.Sprintf("%s: %s", StringField(le, "signal"), StringField(le, "command")))
	case EventExit:
		status := NumberField(le, "status")
		s.ExitStatus = &status
	}
}

func (r *SessionsReport) init() {
	if r.sessions == nil {
		r.sessions = make(map[string]*SessionReport)
	}
}

// MarshalJSON implements a custom JSON marshaler.
func (r *SessionsReport) MarshalJSON() ([]byte, error) {
	r.init()

	return json.Marshal(r.sessions)
}

func (r *SessionsReport) Update(le *structpb.Struct) {
	r.init()

	sessionID := StringField(le, FieldSession)
	if sessionID == "" {
		return
	}
	report, ok := r.sessions[sessionID]
	if !ok {
		report = &SessionReport{}
		r.sessions[sessionID] = report
	}

	report.Update(le)
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`
	Events         StrCounter `json:"events"`

	RunCommand     RunCommandReport     `json:"run_command_report"`
	UnknownCommand UnknownCommandReport `json:"unknown_command_report"`
	Jobs           JobReport            `json:"job_report"`
	Traps          TrapReport           `json:"trap_report"`
	Exits          ExitReport           `json:"exit_report"`
}

func (r *Report) Update(le *structpb.Struct) {
	r.LogEntries++

	kind := Kind(le)
	r.Events.Increment(kind)

	switch kind {
	case EventRunCommand:
		r.RunCommand.update(le)
	case EventUnknownCommand:
		r.UnknownCommand.update(le)
	case EventJobState:
		r.Jobs.update(le)
	case EventTrap, EventSignal:
		r.Traps.update(le)
	case EventExit:
		r.Exits.update(le)
	case EventInvalidInvocation:
		// Counted by BugReport.
	default:
		r.InvalidEntries.Increment(kind)
	}
}

type RunCommandReport struct {
	// How each command was resolved: builtin, function or a path.
	ResolvedCommandPaths StrCounter `json:"resolved_command_names"`
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
}

func (r *RunCommandReport) update(le *structpb.Struct) {
	r.ResolvedCommandPaths.Increment(StringField(le, "resolved"))
	if cmd := StringsField(le, "command"); len(cmd) > 0 {
		r.CommandNames.Increment(cmd[0])
	}
}

type UnknownCommandReport struct {
	CommandNames    StrCounter `json:"command_names"`
	CommandStatuses StrCounter `json:"command_statuses"`
}

func (r *UnknownCommandReport) update(le *structpb.Struct) {
	if cmd := StringsField(le, "command"); len(cmd) > 0 {
		r.CommandNames.Increment(cmd[0])
	}

	r.CommandStatuses.Increment(fmt.Sprint(NumberField(le, "status")))
}

type JobReport struct {
	States StrCounter `json:"states"`
}

func (r *JobReport) update(le *structpb.Struct) {
	r.States.Increment(StringField(le, "state"))
}

type TrapReport struct {
	Signals StrCounter `json:"signals"`
}

func (r *TrapReport) update(le *structpb.Struct) {
	r.Signals.Increment(StringField(le, "signal"))
}

type ExitReport struct {
	Statuses StrCounter `json:"statuses"`
}

func (r *ExitReport) update(le *structpb.Struct) {
	r.Statuses.Increment(fmt.Sprint(NumberField(le, "status")))
}

func firstWord(cmd []string) string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implements a custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts tuples of strings.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implements a custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
