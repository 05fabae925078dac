package accesslog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{w: &buf, flush: func() error { return nil }}

	err := l.Log(Record{
		UnixTime:   1046390528,
		ClientAddr: "127.0.0.1",
		Method:     "GET",
		URI:        "/",
		HTTPCode:   200,
		BytesSent:  3,
		Referer:    "",
		UserAgent:  "",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "1046390528\t127.0.0.1\tGET\t/\t200\t3\t\"\"\t\"\"\n"
	if buf.String() != want {
		t.Errorf("Log() wrote %q, want %q", buf.String(), want)
	}
}

func TestLogFormatWithRefererAndUserAgent(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{w: &buf, flush: func() error { return nil }}
	l.Log(Record{
		UnixTime: 1, ClientAddr: "1.2.3.4", Method: "GET", URI: "/a", HTTPCode: 404, BytesSent: 0,
		Referer: "http://example.com/", UserAgent: "curl/8.0",
	})
	got := buf.String()
	if !strings.Contains(got, "\"http://example.com/\"") || !strings.Contains(got, "\"curl/8.0\"") {
		t.Errorf("Log() = %q, missing quoted referer/user-agent", got)
	}
}

func TestDiscardIsANoOp(t *testing.T) {
	l := Discard()
	if err := l.Log(Record{Method: "GET"}); err != nil {
		t.Errorf("Discard logger returned error: %v", err)
	}
}

func TestOpenAppendsAndFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Log(Record{UnixTime: 1, ClientAddr: "x", Method: "GET", URI: "/", HTTPCode: 200}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\tGET\t/\t200\t") {
		t.Errorf("log file contents = %q", data)
	}
}
