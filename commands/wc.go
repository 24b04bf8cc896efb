package commands

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/josephlewis42/vsh/core/vos"
)

// wcCounter tallies its input as it is written. Multi-byte characters may
// be split across writes.
type wcCounter struct {
	lines, words, bytes, chars int

	partial []byte
	inWord  bool
}

func (w *wcCounter) Write(data []byte) (int, error) {
	w.bytes += len(data)

	buf := data
	if len(w.partial) > 0 {
		buf = append(w.partial, data...)
		w.partial = nil
	}
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 && !utf8.FullRune(buf) {
			w.partial = append([]byte(nil), buf...)
			break
		}
		buf = buf[size:]
		w.count(r)
	}
	return len(data), nil
}

func (w *wcCounter) count(r rune) {
	w.chars++
	if r == '\n' {
		w.lines++
	}
	if unicode.IsSpace(r) {
		w.inWord = false
		return
	}
	if !w.inWord {
		w.words++
		w.inWord = true
	}
}

// flush counts a dangling incomplete character at end of input.
func (w *wcCounter) flush() {
	if len(w.partial) > 0 {
		w.count(utf8.RuneError)
		w.partial = nil
	}
}

func (w *wcCounter) add(other *wcCounter) {
	w.lines += other.lines
	w.words += other.words
	w.bytes += other.bytes
	w.chars += other.chars
}

// countReader reads r to the end, stopping early if the process is killed.
func countReader(proc *vos.Process, r io.Reader) (*wcCounter, error) {
	counter := &wcCounter{}
	buf := make([]byte, 32*1024)
	for {
		if err := proc.Checkpoint(); err != nil {
			return nil, err
		}
		n, err := r.Read(buf)
		counter.Write(buf[:n])
		if err == io.EOF {
			counter.flush()
			return counter, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Wc implements the POSIX command by the same name.
// https://pubs.opengroup.org/onlinepubs/009695399/utilities/wc.html
func Wc(proc *vos.Process) int {
	cmd := &SimpleCommand{
		Use:   "wc [-c|-m] [-lw] [FILE...]",
		Short: "Write the number of newlines, words, and bytes contained in each input file to the standard output.",
	}

	opts := cmd.Flags()
	writeLines := opts.BoolLong("lines", 'l', "write the number of newlines in each file")
	writeWords := opts.BoolLong("words", 'w', "write the number of words in each file")
	writeBytes := opts.BoolLong("bytes", 'c', "write the number of bytes in each file")
	writeChars := opts.BoolLong("chars", 'm', "write the number of characters in each file")

	return cmd.Run(proc, func() int {
		if !*writeLines && !*writeWords && !*writeBytes && !*writeChars {
			*writeLines, *writeWords, *writeBytes = true, true, true
		}

		write := func(c *wcCounter, name string) {
			var cols []string
			if *writeLines {
				cols = append(cols, fmt.Sprint(c.lines))
			}
			if *writeWords {
				cols = append(cols, fmt.Sprint(c.words))
			}
			// -m takes the byte column's place.
			if *writeChars {
				cols = append(cols, fmt.Sprint(c.chars))
			} else if *writeBytes {
				cols = append(cols, fmt.Sprint(c.bytes))
			}
			if name != "" {
				cols = append(cols, name)
			}
			fmt.Fprintln(proc.Stdout(), strings.Join(cols, " "))
		}

		files := opts.Args()
		total := &wcCounter{}
		status := cmd.RunEachFileOrStdin(proc, files, func(name string, r io.Reader) error {
			c, err := countReader(proc, r)
			if err != nil {
				return err
			}
			total.add(c)
			if len(files) == 0 {
				name = ""
			}
			write(c, name)
			return nil
		})
		if len(files) > 1 {
			write(total, "total")
		}
		return status
	})
}

var _ vos.ProcessFunc = Wc

func init() {
	addBinCmd("wc", Wc)
}
