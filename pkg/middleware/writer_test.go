package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type flushHijackWriter struct {
	http.ResponseWriter
	flushed  bool
	hijacked bool
}

func (w *flushHijackWriter) Flush() { w.flushed = true }

func (w *flushHijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return nil, nil, nil
}

// bareWriter supports neither flushing nor hijacking.
type bareWriter struct {
	header http.Header
}

func (w *bareWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *bareWriter) Write(b []byte) (int, error) { return len(b), nil }

func (w *bareWriter) WriteHeader(int) {}

func TestStatusWriter_FirstStatusWins(t *testing.T) {
	sw := wrapWriter(httptest.NewRecorder())

	_, _ = sw.Write([]byte("hello"))
	sw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, sw.status)
	assert.Equal(t, 5, sw.bytes)
}

func TestStatusWriter_ExplicitStatus(t *testing.T) {
	sw := wrapWriter(httptest.NewRecorder())

	sw.WriteHeader(http.StatusConflict)
	_, _ = sw.Write([]byte("{}"))

	assert.Equal(t, http.StatusConflict, sw.status)
}

func TestWrapWriter_ReusesWrapper(t *testing.T) {
	sw := wrapWriter(httptest.NewRecorder())
	assert.Same(t, sw, wrapWriter(sw))
}

func TestStatusWriter_Delegates(t *testing.T) {
	under := &flushHijackWriter{ResponseWriter: httptest.NewRecorder()}
	sw := wrapWriter(under)

	sw.Flush()
	_, _, err := sw.Hijack()

	assert.NoError(t, err)
	assert.True(t, under.flushed)
	assert.True(t, under.hijacked)
	assert.Same(t, under, sw.Unwrap())
}

func TestStatusWriter_UnsupportedHijack(t *testing.T) {
	sw := wrapWriter(&bareWriter{})

	sw.Flush()
	_, _, err := sw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}

func TestStatusWriter_Streaming(t *testing.T) {
	sw := wrapWriter(httptest.NewRecorder())
	assert.False(t, sw.streaming())

	sw.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	assert.True(t, sw.streaming())
}
