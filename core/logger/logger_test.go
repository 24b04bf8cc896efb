package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestJsonLinesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	session := NewJsonLinesLogRecorder(&buf).NewSession()

	require.NoError(t, session.RecordEvent(EventRunCommand, map[string]interface{}{
		"command":  []string{"echo", "hi"},
		"resolved": "builtin",
	}))
	require.NoError(t, session.RecordEvent(EventUnknownCommand, map[string]interface{}{
		"command": []string{"nope"},
		"status":  127,
	}))
	require.NoError(t, session.RecordEvent(EventExit, map[string]interface{}{"status": 3}))

	var entries []*structpb.Struct
	require.NoError(t, ReadJSONLinesLog(&buf, func(le *structpb.Struct) {
		entries = append(entries, le)
	}))
	require.Len(t, entries, 3)

	assert.Equal(t, EventRunCommand, Kind(entries[0]))
	assert.Equal(t, []string{"echo", "hi"}, StringsField(entries[0], "command"))
	assert.Equal(t, session.SessionID(), StringField(entries[0], FieldSession))
	assert.NotZero(t, NumberField(entries[0], FieldTimestamp))
	assert.Equal(t, 127, NumberField(entries[1], "status"))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	session := NewJsonLinesLogRecorder(&buf).NewSession()
	session.RecordEvent(EventRunCommand, map[string]interface{}{"command": []string{"echo"}, "resolved": "builtin"})
	session.RecordEvent(EventRunCommand, map[string]interface{}{"command": []string{"echo"}, "resolved": "builtin"})
	session.RecordEvent(EventTrap, map[string]interface{}{"signal": "INT", "command": "echo caught"})
	session.RecordEvent("mystery", nil)

	var report Report
	sessions := &SessionsReport{}
	bugs := NewBugReport()
	require.NoError(t, ReadJSONLinesLog(&buf, func(le *structpb.Struct) {
		report.Update(le)
		sessions.Update(le)
		bugs.Update(le)
	}))

	assert.Equal(t, 4, report.LogEntries)
	assert.Equal(t, 2, report.RunCommand.CommandNames.Get("echo"))
	assert.Equal(t, 1, report.Traps.Signals.Get("INT"))
	assert.Equal(t, 1, report.InvalidEntries.Get("mystery"))
	assert.Equal(t, 4, bugs.LogEntries)

	out, err := json.Marshal(sessions)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"commands":["echo","echo"]`)
}

func TestPathCounter(t *testing.T) {
	ctr := NewPathCounter("command", "error")
	ctr.Increment("cd", "no such file")
	ctr.Increment("cd", "no such file")
	ctr.Increment("set", "bad option")

	out, err := json.Marshal(ctr)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"count": 2, "event": {"command": "cd", "error": "no such file"}},
		{"count": 1, "event": {"command": "set", "error": "bad option"}}
	]`, string(out))

	assert.Panics(t, func() { ctr.Increment("only-one") })
}
