package server

import (
	"bytes"
	"fmt"
)

// Status lines used by the engine itself. Matched mocks carry their own
// status text verbatim.
const (
	statusOK             = "200 OK"
	statusNotFound       = "404 Not Found"
	statusUnprocessable  = "422 Unprocessable Entity"
	statusNotImplemented = "501 Not Implemented"
)

// formatResponse renders a complete HTTP/1.1 response. The status line and
// headers are written verbatim, in the given order, so canned responses are
// replayed byte-for-byte as declared. Every response carries a
// content-length computed from the body actually written.
func formatResponse(status string, headers [][2]string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", status)
	fmt.Fprintf(&b, "content-length: %d\r\n", len(body))
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}
