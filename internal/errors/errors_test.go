package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/swarmopt/internal/logging"
)

func TestErrorString(t *testing.T) {
	err := Errorf(KindInvalid, "bad particles %d", 0).
		WithOperation("start").
		WithComponent("server")
	assert.Equal(t, "bad particles 0: operation=start, component=server", err.Error())
	assert.NotEmpty(t, err.StackTrace())
}

func TestWrapKeepsChain(t *testing.T) {
	base := stderrors.New("root cause")
	err := Wrap(base, KindNotFound, "lookup")

	assert.True(t, Is(err, base))
	assert.Equal(t, base, Unwrap(err))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "lookup: root cause", err.Error())

	outer := fmt.Errorf("handler: %w", err)
	var e *Error
	require.True(t, As(outer, &e))
	assert.Equal(t, KindNotFound, e.Kind)

	assert.Nil(t, Wrap(nil, KindInvalid, "x"))
	assert.Nil(t, Wrapf(nil, KindInvalid, "x %d", 1))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{New(KindInvalid, "x"), http.StatusBadRequest},
		{New(KindNotFound, "x"), http.StatusNotFound},
		{New(KindConflict, "x"), http.StatusConflict},
		{New(KindUnavailable, "x"), http.StatusServiceUnavailable},
		{New(KindInternal, "x"), http.StatusInternalServerError},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.DebugLevel, &buf)

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("objective blew up")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal", body["kind"])
	assert.Contains(t, buf.String(), "objective blew up")
	assert.Contains(t, buf.String(), "recovered from panic")
}

func TestErrorHandlerLogsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.DebugLevel, &buf)

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusBadGateway} {
		h := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"status":502`)
}
