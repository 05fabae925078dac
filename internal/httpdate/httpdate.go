// Package httpdate formats the fixed RFC1123-with-GMT date
// representation used throughout HTTP/1.1: the Date and Last-Modified
// response headers. If-Modified-Since is compared as a raw string
// against this same format, not parsed.
package httpdate

import "time"

// TimeFormat is time.RFC1123 with the zone hard-coded to "GMT" (unlike
// time.RFC1123, which renders whatever zone abbreviation the Time's
// Location reports). Every date written by the server is first converted
// to UTC, so this is always correct.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Format renders t in UTC using TimeFormat.
func Format(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Now is a convenience wrapper equivalent to Format(time.Now()).
func Now() string {
	return Format(time.Now())
}
