package connstate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tieugene/darkhttpd/internal/mimemap"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestConn() *Connection {
	return &Connection{State: RecvRequest, Fd: -1}
}

func TestProcessRequestGET200(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "hi\n")

	c := newTestConn()
	c.reqBuf = []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	c.processRequest(time.Now(), dir, "index.html", mimemap.New())

	if c.State != SendHeader {
		t.Fatalf("State = %v, want SendHeader", c.State)
	}
	if c.HTTPCode != 200 {
		t.Fatalf("HTTPCode = %d, want 200", c.HTTPCode)
	}
	if c.kind != replyFromFile || c.file == nil {
		t.Fatalf("expected a file reply, got kind=%v file=%v", c.kind, c.file)
	}
	if c.replyLength != 3 {
		t.Errorf("replyLength = %d, want 3", c.replyLength)
	}
	if !strings.Contains(c.header, "Content-Length: 3\r\n") {
		t.Errorf("header missing Content-Length: %q", c.header)
	}
	if !strings.Contains(c.header, "Content-Type: text/html\r\n") {
		t.Errorf("header missing Content-Type: %q", c.header)
	}
	c.file.Close()
}

func TestProcessRequestHEADSetsHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "hi\n")

	c := newTestConn()
	c.reqBuf = []byte("HEAD / HTTP/1.1\r\n\r\n")
	c.processRequest(time.Now(), dir, "index.html", mimemap.New())

	if !c.headerOnly {
		t.Error("expected headerOnly for HEAD")
	}
	if c.file != nil {
		c.file.Close()
	}
}

func TestProcessRequestNotFound(t *testing.T) {
	dir := t.TempDir()
	c := newTestConn()
	c.reqBuf = []byte("GET /nope HTTP/1.1\r\n\r\n")
	c.processRequest(time.Now(), dir, "index.html", mimemap.New())

	if c.HTTPCode != 404 {
		t.Fatalf("HTTPCode = %d, want 404", c.HTTPCode)
	}
}

func TestProcessRequestTraversalRejected(t *testing.T) {
	dir := t.TempDir()
	c := newTestConn()
	c.reqBuf = []byte("GET /../etc/passwd HTTP/1.1\r\n\r\n")
	c.processRequest(time.Now(), dir, "index.html", mimemap.New())

	if c.HTTPCode != 400 {
		t.Fatalf("HTTPCode = %d, want 400", c.HTTPCode)
	}
	if !strings.Contains(string(c.replyBuf), "/../etc/passwd") {
		t.Errorf("error body does not name the offending URI: %q", c.replyBuf)
	}
}

func TestProcessRequestUnsupportedMethod(t *testing.T) {
	dir := t.TempDir()
	c := newTestConn()
	c.reqBuf = []byte("POST / HTTP/1.1\r\n\r\n")
	c.processRequest(time.Now(), dir, "index.html", mimemap.New())

	if c.HTTPCode != 501 {
		t.Fatalf("HTTPCode = %d, want 501", c.HTTPCode)
	}
}

func TestProcessRequestNotModified(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "hi\n")
	mtime := time.Date(2003, time.February, 28, 0, 2, 8, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(dir, "index.html"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	c := newTestConn()
	c.reqBuf = []byte("GET / HTTP/1.1\r\nIf-Modified-Since: Fri, 28 Feb 2003 00:02:08 GMT\r\n\r\n")
	c.processRequest(time.Now(), dir, "index.html", mimemap.New())

	if c.HTTPCode != 304 {
		t.Fatalf("HTTPCode = %d, want 304", c.HTTPCode)
	}
	if !c.headerOnly {
		t.Error("expected headerOnly for 304")
	}
}

func TestPollRecvRequestAndSendOverSocketpair(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	serverFd, clientFd := fds[0], fds[1]
	defer unix.Close(clientFd)
	if err := unix.SetNonblock(serverFd, true); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	writeFile(t, dir, "index.html", "hi\n")

	if _, err := unix.Write(clientFd, []byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatal(err)
	}

	c := New(serverFd, "127.0.0.1:1234", time.Now())
	deadline := time.Now().Add(2 * time.Second)
	for c.State == RecvRequest && time.Now().Before(deadline) {
		c.PollRecvRequest(time.Now(), dir, "index.html", mimemap.New())
	}
	if c.State != SendHeader {
		t.Fatalf("State = %v after recv, want SendHeader", c.State)
	}

	for c.State == SendHeader && time.Now().Before(deadline) {
		c.PollSendHeader(time.Now())
	}
	if c.State != SendReply {
		t.Fatalf("State = %v after header send, want SendReply", c.State)
	}

	for c.State == SendReply && time.Now().Before(deadline) {
		c.PollSendReply(time.Now())
	}
	if c.State != Done {
		t.Fatalf("State = %v after reply send, want Done", c.State)
	}
	if c.TotalSent == 0 {
		t.Error("TotalSent should be nonzero")
	}

	c.Close()
}

func TestIdleFor(t *testing.T) {
	c := newTestConn()
	c.LastActive = time.Now().Add(-90 * time.Second)
	if c.IdleFor(time.Now()) < IdleTimeout {
		t.Error("expected IdleFor to exceed IdleTimeout")
	}
}
