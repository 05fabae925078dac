// Package accesslog writes the one-line-per-connection access log: a
// tab-separated record flushed to disk immediately after every write.
package accesslog

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Record is everything logged about one completed connection.
type Record struct {
	UnixTime   int64
	ClientAddr string
	Method     string
	URI        string
	HTTPCode   int
	BytesSent  int64
	Referer    string
	UserAgent  string
}

// Logger appends Records to an underlying writer, flushing after each
// one. The zero value discards every record (see Discard).
type Logger struct {
	w     io.Writer
	flush func() error
	file  *os.File
}

// Open opens path for appending (creating it if necessary) and returns
// a Logger that writes to it.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("accesslog: open %s: %w", path, err)
	}
	return &Logger{w: f, file: f, flush: f.Sync}, nil
}

// Discard returns a Logger that drops every record, for servers started
// without --log.
func Discard() *Logger {
	return &Logger{w: io.Discard, flush: func() error { return nil }}
}

// Log appends r as one tab-separated line and flushes immediately
// afterward. A nil or Discard Logger is a safe, cheap no-op.
func (l *Logger) Log(r Record) error {
	if l == nil || l.w == nil {
		return nil
	}
	bw := bufio.NewWriter(l.w)
	// Referer/User-Agent are wrapped in literal quotes, not Go-quoted
	// (%q would escape embedded characters the original never does).
	_, err := fmt.Fprintf(bw, "%d\t%s\t%s\t%s\t%d\t%d\t\"%s\"\t\"%s\"\n",
		r.UnixTime, r.ClientAddr, r.Method, r.URI, r.HTTPCode, r.BytesSent,
		r.Referer, r.UserAgent)
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if l.flush != nil {
		return l.flush()
	}
	return nil
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
