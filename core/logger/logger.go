package logger

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event kinds recorded by the shell.
const (
	EventRunCommand        = "run_command"
	EventUnknownCommand    = "unknown_command"
	EventInvalidInvocation = "invalid_invocation"
	EventJobState          = "job_state"
	EventTrap              = "trap"
	EventSignal            = "signal"
	EventExit              = "exit"
)

// Well-known field names.
const (
	FieldEvent     = "event"
	FieldTimestamp = "timestamp_micros"
	FieldSession   = "session_id"
)

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *structpb.Struct) error

// Logger captures the events of shell sessions.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(le *structpb.Struct) error {
			entry, err := protojson.MarshalOptions{}.Marshal(le)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// Discard returns a Logger that drops every event.
func Discard() *Logger {
	return &Logger{Record: func(*structpb.Struct) error { return nil }}
}

func (l *Logger) recordEvent(sessionID, kind string, fields map[string]interface{}) error {
	values := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		values[k] = normalize(v)
	}
	values[FieldEvent] = kind
	values[FieldTimestamp] = time.Now().UnixNano() / int64(time.Microsecond)
	values[FieldSession] = sessionID

	le, err := structpb.NewStruct(values)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", kind, err)
	}
	return l.Record(le)
}

// normalize converts the slice types structpb does not accept.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]interface{}, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// Sessionless creates a logger whose events carry no session ID.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: ""}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every event.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

// RecordEvent stores one event of the given kind.
func (l *SessionLogger) RecordEvent(kind string, fields map[string]interface{}) error {
	return l.recordEvent(l.sessionID, kind, fields)
}
