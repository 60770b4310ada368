// Package llm provides the wire representations exchanged with browser clients
// and the upstream Anthropic Messages API.
package llm

import "bytes"

// ErrorMarker is the literal, quotes included, that flags an upstream payload
// as an error report.
const ErrorMarker = `"error"`

// HasErrorMarker reports whether the raw upstream body contains ErrorMarker.
//
// This is a plain substring match over the whole body. It will also fire on a
// successful completion whose text happens to contain the quoted word "error".
func HasErrorMarker(body []byte) bool {
	return bytes.Contains(body, []byte(ErrorMarker))
}
