package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"api-demo/logging"
)

func TestRequestID_KeepsIncomingHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec1, rec2 := httptest.NewRecorder(), httptest.NewRecorder()
	h.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, rec1.Header().Get(HeaderRequestID), 20)
	require.NotEqual(t, rec1.Header().Get(HeaderRequestID), rec2.Header().Get(HeaderRequestID))
}

func TestLoggingAndRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog := logging.NewWithWriter(logging.Config{Level: "info", Format: logging.FormatJSON}, &buf)

	h := RequestID(Logging(logger)(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))))
	req := httptest.NewRequest(http.MethodGet, "/explode", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	closeLog()

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())

	var lines []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "req-1", lines[0]["request_id"])
	require.Equal(t, "req-1", lines[1]["request_id"])
	require.EqualValues(t, http.StatusInternalServerError, lines[1]["status"])
}
