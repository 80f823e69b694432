package middleware

import (
	"bytes"

	"github.com/gin-gonic/gin"
)

// bodyCaptureWriter tees everything the handler writes so middleware can
// inspect the emitted payload after the chain completes. The response itself
// is never delayed; bytes go to the client as they are written.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func newBodyCaptureWriter(w gin.ResponseWriter) *bodyCaptureWriter {
	return &bodyCaptureWriter{ResponseWriter: w, body: &bytes.Buffer{}}
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// userID resolves the acting user's identifier from the request context,
// falling back to the anonymous sentinel. The authentication layer is a
// black box here; it either sets the context key or the header.
func userID(c *gin.Context) string {
	if id := c.GetString("userId"); id != "" {
		return id
	}
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}
