// Package uri implements the two pure-function pieces of request-target
// handling that the rest of the server depends on: percent-decoding and
// path canonicalisation / traversal rejection.
package uri

import "strings"

// Decode replaces every "%HH" triplet (two case-insensitive hex digits)
// in s with the single byte it encodes, copying every other byte through
// unchanged. A "%" not followed by two hex digits is copied verbatim.
func Decode(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			out = append(out, hexToByte(s[i+1])<<4|hexToByte(s[i+2]))
			i += 2
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexToByte(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// Canonicalize normalises a decoded request-target into a path that is
// safe to join onto a document root. It returns ok=false if the target
// does not begin with '/' or attempts to walk above the root with a ".."
// segment.
//
// The returned path always begins with '/' and never contains a "." or
// ".." segment. isDir reports whether the original target ended in '/'
// (the caller decides whether that means "append the index filename");
// the trailing slash itself is not reflected in path.
func Canonicalize(target string) (path string, isDir bool, ok bool) {
	if len(target) == 0 || target[0] != '/' {
		return "", false, false
	}

	isDir = target[len(target)-1] == '/'

	segments := strings.Split(target, "/")
	stack := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			// drop empty segments (runs of slashes) and no-ops
		case "..":
			if len(stack) == 0 {
				return "", false, false
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}

	var b strings.Builder
	for _, seg := range stack {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if b.Len() == 0 {
		b.WriteByte('/')
	}
	return b.String(), isDir, true
}
