// Package mimemap implements the server's extension-to-media-type table:
// an ordered, first-match-wins list built from a compiled-in defaults
// table and optionally augmented from an external mime.types-style file.
package mimemap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultMediaType is returned by Lookup when no extension in the table
// matches the requested name.
const DefaultMediaType = "application/octet-stream"

type entry struct {
	extension string
	mediaType string
}

// Map is an ordered extension -> media-type table. Lookup performs a
// linear scan and returns the first match, so insertion order matters;
// the zero value is an empty table.
type Map struct {
	entries []entry
}

// defaultTable mirrors darkhttpd's compiled-in default_extension_map,
// in the same order (order affects which entry wins first).
var defaultTable = []entry{
	{"html", "text/html"},
	{"htm", "text/html"},
	{"png", "image/png"},
	{"jpeg", "image/jpeg"},
	{"jpe", "image/jpeg"},
	{"jpg", "image/jpeg"},
	{"gif", "image/gif"},
	{"mp2", "audio/mpeg"},
	{"mp3", "audio/mpeg"},
	{"mpga", "audio/mpeg"},
	{"ogg", "application/ogg"},
	{"css", "text/css"},
	{"txt", "text/plain"},
	{"asc", "text/plain"},
	{"xml", "text/xml"},
	{"mpeg", "video/mpeg"},
	{"mpe", "video/mpeg"},
	{"mpg", "video/mpeg"},
	{"avi", "video/x-msvideo"},
}

// New returns a Map pre-populated with the compiled-in defaults.
func New() *Map {
	m := &Map{entries: make([]entry, len(defaultTable))}
	copy(m.entries, defaultTable)
	return m
}

// add appends a single extension/media-type association behind every
// entry already in the table, so a custom file can only supply
// extensions the compiled-in defaults don't already cover.
func (m *Map) add(extension, mediaType string) {
	m.entries = append(m.entries, entry{extension, mediaType})
}

// Lookup walks the table in order and returns the media type of the
// first extension for which name ends in "."+extension (and name has at
// least a "/X." prefix, so a dot is actually present). It returns
// DefaultMediaType if nothing matches. Comparison is case-sensitive.
func (m *Map) Lookup(name string) string {
	for _, e := range m.entries {
		// "/a." + ext is the shortest possible match.
		if len(name) >= len(e.extension)+3 &&
			name[len(name)-1-len(e.extension)] == '.' &&
			strings.HasSuffix(name, e.extension) {
			return e.mediaType
		}
	}
	return DefaultMediaType
}

// LoadFile augments m with the contents of a mime.types-style file: one
// logical line per record, leading whitespace ignored, blank or
// "#"-prefixed lines are comments, first whitespace-separated token is
// the media type and the remaining tokens are extensions (without a
// leading dot) mapped to it.
func (m *Map) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mimemap: open %s: %w", path, err)
	}
	defer f.Close()
	return m.load(f)
}

func (m *Map) load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		mediaType := fields[0]
		for _, ext := range fields[1:] {
			m.add(ext, mediaType)
		}
	}
	return scanner.Err()
}
