// File: internal/fileserver/response.go
// License: Apache-2.0

package fileserver

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// NotFoundBody is the body of every 404 response.
const NotFoundBody = "404 - Not found!"

// Response is a status code and a body, serialized without Content-Length.
type Response struct {
	Status int
	Body   []byte
}

// StatusText maps a status code to its reason phrase.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 301:
		return "Redirect"
	case 400:
		return "User Error"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 500:
		return "Server Error"
	default:
		return "Error"
	}
}

var responsePool bytebufferpool.Pool

// Bytes renders the status line, the Connection: close header and the body verbatim.
func (r Response) Bytes() []byte {
	buf := responsePool.Get()
	defer responsePool.Put(buf)

	_, _ = buf.WriteString("HTTP/1.1 ")
	buf.B = strconv.AppendInt(buf.B, int64(r.Status), 10)
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(StatusText(r.Status))
	_, _ = buf.WriteString("\r\nConnection: close\r\n\r\n")
	_, _ = buf.Write(r.Body)

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}
