package ttylog

import (
	"io"
	"log"
	"regexp"
	"sync"
	"time"
)

var (
	lf = regexp.MustCompile(`\r?\n`)
)

// FD identifies the stream an entry was recorded from.
type FD int

const (
	FDStdin  FD = 0
	FDStdout FD = 1
	FDStderr FD = 2
)

// Entry is one chunk of terminal I/O.
type Entry struct {
	TimestampMicros int64
	Fd              FD
	Data            []byte
}

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the
	// source has no more log entries.
	Next() (*Entry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(entry *Entry) error {
		once.Do(func() {
			prevTimeMicros = entry.TimestampMicros
		})

		delta := entry.TimestampMicros - prevTimeMicros
		prevTimeMicros = entry.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			time.Sleep(sleepDuration)
		}

		return next(entry)
	}
}

// NewCRLFAdapter rewrites bare line feeds as CRLF so recordings made
// without a terminal play back correctly on one.
func NewCRLFAdapter(next LogSink) LogSink {
	return func(entry *Entry) error {
		if entry.Fd != FDStdin {
			entry.Data = lf.ReplaceAll(entry.Data, []byte("\r\n"))
		}
		return next(entry)
	}
}

// NewClientOutput writes stdout and stderr to the given writer.
func NewClientOutput(w io.Writer) LogSink {
	return func(entry *Entry) error {
		if entry.Fd == FDStdin {
			return nil
		}
		_, err := w.Write(entry.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) error {
	for {
		entry, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(entry); err != nil {
			return err
		}
	}
}

// Recorder copies the I/O of a session into a LogSink.
type Recorder struct {
	mutex  sync.Mutex
	output LogSink
	now    func() time.Time
}

// NewRecorder creates a recorder that forwards all events to output.
func NewRecorder(output LogSink) *Recorder {
	return &Recorder{output: output, now: time.Now}
}

// Record logs data as if it passed through fd.
func (r *Recorder) Record(fd FD, data []byte) {
	if len(data) == 0 {
		return
	}
	entry := &Entry{
		TimestampMicros: r.now().UnixMicro(),
		Fd:              fd,
		Data:            append([]byte(nil), data...),
	}
	r.mutex.Lock()
	err := r.output(entry)
	r.mutex.Unlock()
	if err != nil {
		log.Print(err)
	}
}

// Reader records everything read from rd as fd.
func (r *Recorder) Reader(fd FD, rd io.Reader) io.Reader {
	return &recordingReader{r: r, fd: fd, wrapped: rd}
}

// Writer records everything written to w as fd.
func (r *Recorder) Writer(fd FD, w io.Writer) io.Writer {
	return &recordingWriter{r: r, fd: fd, wrapped: w}
}

type recordingReader struct {
	r       *Recorder
	fd      FD
	wrapped io.Reader
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.wrapped.Read(p)
	rr.r.Record(rr.fd, p[:n])
	return n, err
}

type recordingWriter struct {
	r       *Recorder
	fd      FD
	wrapped io.Writer
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	n, err := rw.wrapped.Write(p)
	rw.r.Record(rw.fd, p[:n])
	return n, err
}
