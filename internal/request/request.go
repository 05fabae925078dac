// Package request extracts the handful of fields the server actually
// cares about from an accumulated request buffer, once it ends in
// "\r\n\r\n". It deliberately ignores everything else — HTTP version,
// every header but three, trailing garbage — matching the permissive
// parsing the rest of the system expects.
package request

import "strings"

// Request holds the fields parsed out of one client request line plus
// header block.
type Request struct {
	// Method is the request method, uppercased ASCII (e.g. "GET").
	Method string
	// Target is the raw (not yet decoded) request-target, the bytes
	// between the first and second space (or first space and the
	// following CR if there is no second space).
	Target string
	// Referer is the value of the Referer header, or "" if absent.
	Referer string
	// UserAgent is the value of the User-Agent header, or "" if absent.
	UserAgent string
	// IfModifiedSince is the value of the If-Modified-Since header, or
	// "" if absent.
	IfModifiedSince string
}

// Parse extracts method, request-target and the Referer/User-Agent/
// If-Modified-Since header values from buf, which must already contain a
// full request (i.e. end in "\r\n\r\n"); HTTP version and every other
// header are ignored.
func Parse(buf string) Request {
	bound1 := strings.IndexByte(buf, ' ')
	if bound1 < 0 {
		bound1 = len(buf)
	}
	method := strings.ToUpper(buf[:bound1])

	var target string
	if bound1 < len(buf) {
		rest := buf[bound1+1:]
		bound2 := len(rest)
		for i := 0; i < len(rest); i++ {
			if rest[i] == ' ' || rest[i] == '\r' {
				bound2 = i
				break
			}
		}
		target = rest[:bound2]
	}

	return Request{
		Method:          method,
		Target:          target,
		Referer:         field(buf, "Referer: "),
		UserAgent:       field(buf, "User-Agent: "),
		IfModifiedSince: field(buf, "If-Modified-Since: "),
	}
}

// field returns the substring of buf following the first occurrence of
// name, up to (but not including) the next '\r', or "" if name does not
// occur at all.
func field(buf, name string) string {
	pos := strings.Index(buf, name)
	if pos < 0 {
		return ""
	}
	start := pos + len(name)
	end := strings.IndexByte(buf[start:], '\r')
	if end < 0 {
		return buf[start:]
	}
	return buf[start : start+end]
}

// HeadersComplete reports whether buf contains a full request: a request
// line plus header block terminated by a blank line.
func HeadersComplete(buf string) bool {
	return strings.Contains(buf, "\r\n\r\n")
}
