// Package connstate implements the per-connection state machine:
// RECV_REQUEST -> SEND_HEADER -> SEND_REPLY -> DONE. Each exported Poll*
// method corresponds to one readiness-driven step; callers (the event
// loop) invoke the one matching whatever the readiness primitive
// reported, never more than once per tick per connection.
package connstate

import (
	"errors"
	"os"
	"path"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tieugene/darkhttpd/internal/httpdate"
	"github.com/tieugene/darkhttpd/internal/mimemap"
	"github.com/tieugene/darkhttpd/internal/request"
	"github.com/tieugene/darkhttpd/internal/response"
	"github.com/tieugene/darkhttpd/internal/uri"
)

// State names a position in the connection lifecycle.
type State int

const (
	RecvRequest State = iota
	SendHeader
	SendReply
	Done
)

func (s State) String() string {
	switch s {
	case RecvRequest:
		return "RECV_REQUEST"
	case SendHeader:
		return "SEND_HEADER"
	case SendReply:
		return "SEND_REPLY"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

const (
	// recvBufSize is the size of the stack buffer used for a single
	// recv() call.
	recvBufSize = 65536
	// sendBufSize bounds a single positioned read from a file reply.
	sendBufSize = 65000
	// maxRequestLength is the hard cap on the accumulated request
	// buffer; exceeding it forces a 413 reply.
	maxRequestLength = 4000
	// IdleTimeout is how long a connection may go without a successful
	// send or recv before the dispatcher force-closes it.
	IdleTimeout = 60 * time.Second
)

// replyKind tags which arm of the reply body union is populated.
type replyKind int

const (
	replyNone replyKind = iota
	replyGenerated
	replyFromFile
)

// Connection is one accepted client: a raw non-blocking file descriptor
// plus everything the state machine needs to drive it to completion.
// The zero value is not usable; construct with New.
type Connection struct {
	Fd int
	// RemoteAddr is "ip:port" (or "[ip]:port" for IPv6), as reported by
	// accept(); the access log's client_ip field wants the bare IP, so
	// callers logging this connection strip the port themselves.
	RemoteAddr string
	LastActive time.Time
	State      State

	reqBuf []byte

	Method    string
	Target    string
	Referer   string
	UserAgent string

	header     string
	headerSent int
	headerOnly bool

	kind        replyKind
	replyBuf    []byte
	replySent   int64
	replyLength int64
	file        *os.File

	lastModified string

	HTTPCode  int
	TotalSent int64
}

// New wraps an already-accepted, already-non-blocking file descriptor in
// a Connection starting in RECV_REQUEST.
func New(fd int, remoteAddr string, now time.Time) *Connection {
	return &Connection{
		Fd:         fd,
		RemoteAddr: remoteAddr,
		LastActive: now,
		State:      RecvRequest,
	}
}

// IdleFor reports how long the connection has been idle as of now.
func (c *Connection) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastActive)
}

// Close releases every resource the connection owns: the socket and, if
// a file reply is in flight, the open file handle. Safe to call more
// than once.
func (c *Connection) Close() error {
	var err error
	if c.file != nil {
		err = c.file.Close()
		c.file = nil
	}
	if c.Fd >= 0 {
		if cerr := unix.Close(c.Fd); err == nil {
			err = cerr
		}
		c.Fd = -1
	}
	c.replyBuf = nil
	c.reqBuf = nil
	return err
}

// wouldBlock reports whether err is the "try again" error a non-blocking
// socket returns when no data/buffer space is currently available.
func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// PollRecvRequest is called when the socket is readable while in
// RECV_REQUEST. It reads once, appends to the request buffer, and
// advances the state once a full request (terminated by "\r\n\r\n") has
// arrived, or forces a 413 if the buffer has grown past the configured
// maximum.
func (c *Connection) PollRecvRequest(now time.Time, root, indexName string, mime *mimemap.Map) {
	var buf [recvBufSize]byte
	n, err := unix.Read(c.Fd, buf[:])
	if err != nil {
		if wouldBlock(err) {
			return
		}
		c.State = Done
		return
	}
	if n == 0 {
		// peer closed the connection
		c.State = Done
		return
	}
	c.LastActive = now
	c.reqBuf = append(c.reqBuf, buf[:n]...)

	if request.HeadersComplete(string(c.reqBuf)) {
		c.processRequest(now, root, indexName, mime)
		return
	}

	if len(c.reqBuf) > maxRequestLength {
		c.setErrorReply(413, "Request Entity Too Large",
			"Your request was dropped because it was too long.")
		c.State = SendHeader
	}
}

// processRequest parses the accumulated buffer, dispatches on method,
// and transitions to SEND_HEADER. The request buffer is dropped once
// parsed; it is never needed again.
func (c *Connection) processRequest(now time.Time, root, indexName string, mime *mimemap.Map) {
	req := request.Parse(string(c.reqBuf))
	c.reqBuf = nil
	c.Method = req.Method
	c.Target = req.Target
	c.Referer = req.Referer
	c.UserAgent = req.UserAgent

	switch c.Method {
	case "GET":
		c.processGet(req, root, indexName, mime)
	case "HEAD":
		c.processGet(req, root, indexName, mime)
		c.headerOnly = true
	default:
		if response.IsUnsupportedMethod(c.Method) {
			c.setErrorReply(501, "Not Implemented",
				"The method you specified (%s) is not implemented.", c.Method)
		} else {
			c.setErrorReply(400, "Bad Request", "%s is not a valid HTTP/1.1 method.", c.Method)
		}
	}

	c.State = SendHeader
}

// processGet implements build_get: decode and sanitise the target,
// resolve it to a file under root, and build either a 200, 304, 400,
// 403, 404, or 500 reply.
func (c *Connection) processGet(req request.Request, root, indexName string, mime *mimemap.Map) {
	decoded := uri.Decode(req.Target)
	safe, isDir, ok := uri.Canonicalize(decoded)
	if !ok {
		c.setErrorReply(400, "Bad Request", "You requested an invalid URI: %s", req.Target)
		return
	}

	var target, mimePath string
	if isDir {
		target = path.Join(root, safe, indexName)
		mimePath = indexName
	} else {
		target = path.Join(root, safe)
		mimePath = safe
	}
	contentType := mime.Lookup(mimePath)

	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			c.setErrorReply(404, "Not Found", "The URI you requested (%s) was not found.", req.Target)
		} else {
			c.setErrorReply(403, "Forbidden",
				"The URI you requested (%s) cannot be returned.<br>\n%s.", req.Target, err)
		}
		return
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		c.setErrorReply(500, "Internal Server Error", "fstat() failed: %s.", err)
		return
	}
	if st.IsDir() {
		f.Close()
		c.setErrorReply(404, "Not Found", "The URI you requested (%s) was not found.", req.Target)
		return
	}

	c.lastModified = httpdate.Format(st.ModTime())

	if req.IfModifiedSince != "" && req.IfModifiedSince == c.lastModified {
		f.Close()
		c.setErrorReply(304, "Not Modified", "")
		c.headerOnly = true
		return
	}

	c.file = f
	c.kind = replyFromFile
	c.replyLength = st.Size()
	c.header = response.OK(c.replyLength, contentType, c.lastModified)
	c.HTTPCode = 200
}

func (c *Connection) setErrorReply(code int, name, format string, args ...interface{}) {
	header, body := response.Errorf(code, name, format, args...)
	c.header = header
	c.replyBuf = body
	c.kind = replyGenerated
	c.replyLength = int64(len(body))
	c.HTTPCode = code
}

// PollSendHeader is called when the socket is writable while in
// SEND_HEADER. It sends as much of the pending header as the socket
// accepts and transitions to SEND_REPLY (or DONE, for a header-only
// reply) once the whole header has gone out.
func (c *Connection) PollSendHeader(now time.Time) {
	remaining := c.header[c.headerSent:]
	n, err := unix.Write(c.Fd, []byte(remaining))
	if err != nil {
		if wouldBlock(err) {
			return
		}
		c.State = Done
		return
	}
	if n <= 0 {
		c.State = Done
		return
	}
	c.LastActive = now
	c.headerSent += n
	c.TotalSent += int64(n)

	if c.headerSent == len(c.header) {
		c.header = ""
		if c.headerOnly {
			c.State = Done
		} else {
			c.State = SendReply
		}
	}
}

// PollSendReply is called when the socket is writable while in
// SEND_REPLY. For a generated (in-memory) reply it sends from the
// buffer cursor; for a file reply it performs a positioned read (so the
// file's own offset is never mutated) and sends what it read.
func (c *Connection) PollSendReply(now time.Time) {
	var n int
	var err error

	switch c.kind {
	case replyGenerated:
		remaining := c.replyBuf[c.replySent:]
		n, err = unix.Write(c.Fd, remaining)
	case replyFromFile:
		amount := sendBufSize
		if left := c.replyLength - c.replySent; int64(amount) > left {
			amount = int(left)
		}
		buf := make([]byte, amount)
		rn, rerr := c.file.ReadAt(buf, c.replySent)
		if rerr != nil && rn == 0 {
			c.State = Done
			return
		}
		n, err = unix.Write(c.Fd, buf[:rn])
	default:
		c.State = Done
		return
	}

	if err != nil {
		if wouldBlock(err) {
			return
		}
		c.State = Done
		return
	}
	if n <= 0 {
		c.State = Done
		return
	}
	c.LastActive = now
	c.replySent += int64(n)
	c.TotalSent += int64(n)

	if c.replySent == c.replyLength {
		c.replyBuf = nil
		if c.file != nil {
			c.file.Close()
			c.file = nil
		}
		c.State = Done
	}
}

// LastModified returns the RFC1123 modification-time string recorded
// for the file served by this connection, or "" if none was served.
func (c *Connection) LastModified() string {
	return c.lastModified
}
