package ttylog

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeConversions(t *testing.T) {
	cases := map[string]struct {
		microseconds int64
		seconds      float64
	}{
		"precision": {
			microseconds: 1,
			seconds:      1e-6,
		},
		"negative": {
			microseconds: -631119539e6,
			seconds:      -631119539,
		},
		"positive": {
			microseconds: 631119539e6,
			seconds:      631119539,
		},
		"bigprecise": {
			microseconds: 123456789987654,
			seconds:      123456789.987654,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s2m := secondsToMicroseconds(tc.seconds)
			m2s := microsecondsToSeconds(tc.microseconds)

			// Only allow delta to be to the NS
			assert.InDelta(t, m2s, tc.seconds, float64(time.Nanosecond)/float64(time.Second))
			assert.Equal(t, s2m, tc.microseconds)
		})
	}
}

func TestAsciicastRoundTrip(t *testing.T) {
	var cast bytes.Buffer
	recorder := NewRecorder(NewAsciicastLogSink(&cast, "test"))
	start := time.Unix(1600000000, 0)
	tick := 0
	recorder.now = func() time.Time {
		tick++
		return start.Add(time.Duration(tick-1) * 500 * time.Millisecond)
	}

	stdin := recorder.Reader(FDStdin, strings.NewReader("echo hi\n"))
	var screen bytes.Buffer
	stdout := recorder.Writer(FDStdout, &screen)
	stderr := recorder.Writer(FDStderr, &screen)

	line := make([]byte, 64)
	n, err := stdin.Read(line)
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", string(line[:n]))
	fmt.Fprint(stdout, "hi\n")
	fmt.Fprint(stderr, "oops\n")
	assert.Equal(t, "hi\noops\n", screen.String())

	lines := strings.Split(strings.TrimSpace(cast.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"version":2`)
	assert.Contains(t, lines[0], `"title":"test"`)
	assert.Equal(t, `[0,"i","echo hi\n"]`, lines[1])
	assert.Equal(t, `[0.5,"o","hi\n"]`, lines[2])
	assert.Equal(t, `[1,"o","oops\n"]`, lines[3])

	var played bytes.Buffer
	var stamps []int64
	err = Replay(NewAsciicastLogSource(&cast), func(e *Entry) error {
		stamps = append(stamps, e.TimestampMicros)
		return NewClientOutput(&played)(e)
	})
	require.NoError(t, err)
	assert.Equal(t, "hi\noops\n", played.String())
	assert.Equal(t, []int64{0, 500000, 1000000}, stamps)
}

func TestCRLFAdapter(t *testing.T) {
	var out bytes.Buffer
	sink := NewCRLFAdapter(NewClientOutput(&out))
	require.NoError(t, sink(&Entry{Fd: FDStdout, Data: []byte("a\nb\r\n")}))
	require.NoError(t, sink(&Entry{Fd: FDStdin, Data: []byte("ignored\n")}))
	assert.Equal(t, "a\r\nb\r\n", out.String())
}
