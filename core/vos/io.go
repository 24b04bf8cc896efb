package vos

import (
	"bytes"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// File is an open file description that can occupy a descriptor slot.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// VIO is the standard I/O of a process.
type VIO interface {
	Stdin() io.ReadCloser
	Stdout() io.WriteCloser
	Stderr() io.WriteCloser
}

// VIOAdapter exposes the first three entries of a descriptor list as VIO.
type VIOAdapter struct {
	IStdin  io.ReadCloser
	IStdout io.WriteCloser
	IStderr io.WriteCloser
}

var _ VIO = (*VIOAdapter)(nil)

func (pr *VIOAdapter) Stdin() io.ReadCloser {
	return pr.IStdin
}

func (pr *VIOAdapter) Stdout() io.WriteCloser {
	return pr.IStdout
}

func (pr *VIOAdapter) Stderr() io.WriteCloser {
	return pr.IStderr
}

// DevNull returns a File that reads EOF and discards writes.
func DevNull() File {
	return &devNull{}
}

type devNull struct{}

func (*devNull) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (*devNull) Close() error {
	return nil
}

func (*devNull) Write(b []byte) (int, error) {
	return len(b), nil
}

// ReaderFile adapts a read-only stream into a File; writes fail.
func ReaderFile(r io.Reader) File {
	return &readerFile{r: r}
}

type readerFile struct {
	r io.Reader
}

func (f *readerFile) Read(b []byte) (int, error) { return f.r.Read(b) }

func (f *readerFile) Write([]byte) (int, error) { return 0, os.ErrPermission }

func (f *readerFile) Close() error {
	if c, ok := f.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriterFile adapts a write-only stream into a File; reads fail.
func WriterFile(w io.Writer) File {
	return &writerFile{w: w}
}

type writerFile struct {
	w io.Writer
}

func (f *writerFile) Read([]byte) (int, error) { return 0, os.ErrPermission }

func (f *writerFile) Write(b []byte) (int, error) { return f.w.Write(b) }

func (f *writerFile) Close() error { return nil }

// Buffer is an in-memory, goroutine-safe File. Command substitution output
// is captured into one.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

var _ File = (*Buffer)(nil)

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferString creates a Buffer holding s, used for heredoc bodies.
func NewBufferString(s string) *Buffer {
	b := &Buffer{}
	b.buf.WriteString(s)
	return b
}

func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Close implements io.Closer; the contents stay readable.
func (b *Buffer) Close() error {
	return nil
}

// String returns the unread contents.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// shared is an open file description referenced by one or more handles.
type shared struct {
	file File
	refs int32
}

// handle is one reference to a shared file description. Closing a handle
// closes the description only when it was the last reference.
type handle struct {
	s      *shared
	closed int32
}

func (h *handle) Read(p []byte) (int, error)  { return h.s.file.Read(p) }
func (h *handle) Write(p []byte) (int, error) { return h.s.file.Write(p) }

func (h *handle) Close() error {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return os.ErrClosed
	}
	if atomic.AddInt32(&h.s.refs, -1) == 0 {
		return h.s.file.Close()
	}
	return nil
}

// Share wraps f so that it can be duplicated with Dup. The returned handle
// holds the only reference.
func Share(f File) File {
	if h, ok := f.(*handle); ok {
		return h
	}
	return &handle{s: &shared{file: f, refs: 1}}
}

// Dup returns a new reference to the file description behind f, sharing its
// offset and status. f is shared first if it is not already.
func Dup(f File) File {
	h, ok := f.(*handle)
	if !ok {
		return Share(f)
	}
	atomic.AddInt32(&h.s.refs, 1)
	return &handle{s: h.s}
}

// Underlying unwraps shared handles down to the original File.
func Underlying(f File) File {
	for {
		h, ok := f.(*handle)
		if !ok {
			return f
		}
		f = h.s.file
	}
}

// OSFile returns the *os.File behind f when there is one.
func OSFile(f File) (*os.File, bool) {
	osf, ok := Underlying(f).(*os.File)
	return osf, ok
}

// SameFile reports whether a and b refer to the same file description.
func SameFile(a, b File) bool {
	ha, aok := a.(*handle)
	hb, bok := b.(*handle)
	if aok && bok {
		return ha.s == hb.s
	}
	return Underlying(a) == Underlying(b)
}

// pipe is an in-memory pipe end.
type pipeReader struct{ *io.PipeReader }

func (p pipeReader) Write([]byte) (int, error) { return 0, os.ErrPermission }

type pipeWriter struct{ *io.PipeWriter }

func (p pipeWriter) Read([]byte) (int, error) { return 0, os.ErrPermission }

// NewMemPipe returns a connected in-memory pipe.
func NewMemPipe() (r File, w File) {
	pr, pw := io.Pipe()
	return pipeReader{pr}, pipeWriter{pw}
}
