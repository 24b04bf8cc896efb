package shell

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"

	"mvdan.cc/sh/v3/syntax"

	"github.com/josephlewis42/vsh/core/vos"
)

type savedFD struct {
	fd   int
	slot *FDSlot
}

// Restorer undoes the redirections of one command. Every descriptor is
// saved before its first change so Restore can put the table back exactly.
type Restorer struct {
	env   *Env
	saved []savedFD
	seen  map[int]bool
	done  bool
}

func (e *Env) newRestorer() *Restorer {
	return &Restorer{env: e, seen: make(map[int]bool)}
}

func (r *Restorer) save(fd int) {
	if r.seen[fd] {
		return
	}
	r.seen[fd] = true
	r.saved = append(r.saved, savedFD{fd: fd, slot: r.env.fds.take(fd)})
}

// Restore puts back every saved descriptor, in reverse order of change.
func (r *Restorer) Restore() {
	if r == nil || r.done {
		return
	}
	r.done = true
	for i := len(r.saved) - 1; i >= 0; i-- {
		s := r.saved[i]
		if s.slot == nil {
			r.env.fds.Close(s.fd)
		} else {
			r.env.fds.put(s.fd, s.slot)
		}
	}
}

// Keep makes the redirections permanent, as for exec without a command.
func (r *Restorer) Keep() {
	if r == nil || r.done {
		return
	}
	r.done = true
	for _, s := range r.saved {
		if s.slot != nil {
			s.slot.File.Close()
		}
	}
}

// redirect applies the redirections in order. On failure the changes made
// so far are undone and the restorer returned is nil.
func (e *Env) redirect(ctx context.Context, redirs []*syntax.Redirect) (*Restorer, error) {
	r := e.newRestorer()
	for _, rd := range redirs {
		if err := e.redirectOne(ctx, r, rd); err != nil {
			r.Restore()
			return nil, err
		}
	}
	return r, nil
}

func inputRedirect(op syntax.RedirOperator) bool {
	switch op {
	case syntax.RdrIn, syntax.RdrInOut, syntax.DplIn, syntax.Hdoc, syntax.DashHdoc, syntax.WordHdoc:
		return true
	}
	return false
}

func (e *Env) redirectOne(ctx context.Context, r *Restorer, rd *syntax.Redirect) error {
	fd := 1
	if inputRedirect(rd.Op) {
		fd = 0
	}
	if rd.N != nil {
		n, err := strconv.Atoi(rd.N.Value)
		if err != nil {
			return &RedirectionError{Fd: -1, Target: rd.N.Value, Err: syscall.EBADF}
		}
		fd = n
	}

	switch rd.Op {
	case syntax.Hdoc, syntax.DashHdoc:
		doc := rd.Hdoc
		if rd.Op == syntax.DashHdoc {
			doc = stripHdocTabs(doc)
		}
		body := literalWord(doc)
		if !quotedWord(rd.Word) {
			s, err := e.ExpandDocument(ctx, doc)
			if err != nil {
				return err
			}
			body = s
		}
		r.save(fd)
		e.fds.Set(fd, vos.NewBufferString(body))
		return nil

	case syntax.WordHdoc:
		s, err := e.ExpandWord(ctx, rd.Word)
		if err != nil {
			return err
		}
		r.save(fd)
		e.fds.Set(fd, vos.NewBufferString(s+"\n"))
		return nil
	}

	target, err := e.ExpandWord(ctx, rd.Word)
	if err != nil {
		return err
	}

	switch rd.Op {
	case syntax.DplIn, syntax.DplOut:
		if target == "-" {
			r.save(fd)
			e.fds.Close(fd)
			return nil
		}
		src, err := strconv.Atoi(target)
		if err != nil || src < 0 {
			return &RedirectionError{Fd: fd, Target: target, Err: errors.New("bad file descriptor")}
		}
		f, ok := e.fds.Get(src)
		if !ok {
			return &RedirectionError{Fd: fd, Target: target, Err: syscall.EBADF}
		}
		if src == fd {
			return nil
		}
		dup := vos.Dup(f)
		r.save(fd)
		e.fds.put(fd, &FDSlot{File: dup})
		return nil
	}

	f, err := e.openRedirect(rd.Op, target)
	if err != nil {
		return &RedirectionError{Fd: fd, Target: target, Err: err}
	}
	switch rd.Op {
	case syntax.RdrAll, syntax.AppAll:
		r.save(1)
		r.save(2)
		e.fds.Set(1, f)
		return e.fds.Dup(1, 2)
	}
	r.save(fd)
	e.fds.Set(fd, f)
	return nil
}

// stripHdocTabs removes the leading tabs of every line of a <<- body. Only
// literal text at the start of a line is touched; tabs produced by
// expansions stay.
func stripHdocTabs(w *syntax.Word) *syntax.Word {
	if w == nil {
		return nil
	}
	out := &syntax.Word{Parts: make([]syntax.WordPart, 0, len(w.Parts))}
	lineStart := true
	for _, wp := range w.Parts {
		lit, ok := wp.(*syntax.Lit)
		if !ok {
			out.Parts = append(out.Parts, wp)
			lineStart = false
			continue
		}
		lines := strings.Split(lit.Value, "\n")
		for i := range lines {
			if i > 0 || lineStart {
				lines[i] = strings.TrimLeft(lines[i], "\t")
			}
		}
		lineStart = lines[len(lines)-1] == "" && (len(lines) > 1 || lineStart)
		out.Parts = append(out.Parts, &syntax.Lit{
			ValuePos: lit.ValuePos,
			ValueEnd: lit.ValueEnd,
			Value:    strings.Join(lines, "\n"),
		})
	}
	return out
}

// openRedirect opens the target of a file redirection.
func (e *Env) openRedirect(op syntax.RedirOperator, target string) (vos.File, error) {
	switch target {
	case "/dev/null":
		return vos.DevNull(), nil
	case "/dev/stdin", "/dev/stdout", "/dev/stderr":
		fd := map[string]int{"/dev/stdin": 0, "/dev/stdout": 1, "/dev/stderr": 2}[target]
		f, ok := e.fds.Get(fd)
		if !ok {
			return nil, syscall.EBADF
		}
		return vos.Dup(f), nil
	}

	name := e.Abs(target)
	perm := os.FileMode(0666) &^ e.umask
	var flag int
	switch op {
	case syntax.RdrIn:
		flag = os.O_RDONLY
	case syntax.RdrInOut:
		flag = os.O_RDWR | os.O_CREATE
	case syntax.AppOut, syntax.AppAll:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case syntax.RdrOut, syntax.RdrAll:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if e.opts.NoClobber {
			if info, err := e.Fs().Stat(name); err == nil && info.Mode().IsRegular() {
				return nil, syscall.EEXIST
			}
		}
	case syntax.ClbOut:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return nil, errors.New("unsupported redirection " + op.String())
	}
	if info, err := e.Fs().Stat(name); err == nil && info.IsDir() && flag != os.O_RDONLY {
		return nil, syscall.EISDIR
	}
	f, err := e.Fs().OpenFile(name, flag, perm)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return nil, pe.Err
		}
		return nil, err
	}
	return f, nil
}
