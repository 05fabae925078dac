// Package response builds the status line, header block, and generated
// HTML body for every reply the server can send. It never touches a
// socket or a file descriptor; callers hand it the facts (status code,
// content length, media type, modification time) and get back bytes
// ready to write.
package response

import (
	"fmt"
	"strings"

	"github.com/tieugene/darkhttpd/internal/httpdate"
)

// ServerName is sent in every response's Server header.
const ServerName = "darkhttpd/0.1"

// unsupportedMethods are methods the server recognises as valid HTTP
// methods but implements no handler for; they yield 501, as opposed to
// an unrecognised token, which yields 400.
var unsupportedMethods = map[string]bool{
	"OPTIONS": true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"TRACE":   true,
	"CONNECT": true,
}

// IsUnsupportedMethod reports whether method is a known HTTP method the
// server deliberately does not implement (501), as distinct from a
// token that isn't a method at all (400).
func IsUnsupportedMethod(method string) bool {
	return unsupportedMethods[method]
}

// Errorf builds the header block and HTML body for a generated error
// (or informational, e.g. 304) reply with a printf-style reason.
func Errorf(code int, name, format string, args ...interface{}) (header string, body []byte) {
	return buildError(code, name, fmt.Sprintf(format, args...))
}

func buildError(code int, name, reason string) (string, []byte) {
	now := httpdate.Now()
	body := []byte(fmt.Sprintf(
		"<html><head><title>%d %s</title></head><body>\n"+
			"<h1>%s</h1>\n"+
			"%s\n"+
			"<hr>\n"+
			"Generated by %s on %s\n"+
			"</body></html>\n",
		code, name, name, reason, ServerName, now,
	))

	var h strings.Builder
	fmt.Fprintf(&h, "HTTP/1.1 %d %s\r\n", code, name)
	fmt.Fprintf(&h, "Date: %s\r\n", now)
	fmt.Fprintf(&h, "Server: %s\r\n", ServerName)
	h.WriteString("Connection: close\r\n")
	fmt.Fprintf(&h, "Content-Length: %d\r\n", len(body))
	h.WriteString("Content-Type: text/html\r\n")
	h.WriteString("\r\n")
	return h.String(), body
}

// OK builds the header block for a 200 reply whose body is served
// separately (the file contents); length is the Content-Length,
// contentType the resolved media type, and lastModified the RFC1123
// string already computed for the file's modification time.
func OK(length int64, contentType, lastModified string) string {
	var h strings.Builder
	h.WriteString("HTTP/1.1 200 OK\r\n")
	fmt.Fprintf(&h, "Date: %s\r\n", httpdate.Now())
	fmt.Fprintf(&h, "Server: %s\r\n", ServerName)
	h.WriteString("Connection: close\r\n")
	fmt.Fprintf(&h, "Content-Length: %d\r\n", length)
	fmt.Fprintf(&h, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&h, "Last-Modified: %s\r\n", lastModified)
	h.WriteString("\r\n")
	return h.String()
}
