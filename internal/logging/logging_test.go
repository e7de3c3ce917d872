package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/copyleftdev/swarmopt/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf).WithField("service", "swarmopt")

	l.Debug("hidden")
	l.Info("run started", map[string]interface{}{"particles": 10})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run started", lines[0]["message"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "swarmopt", lines[0]["service"])
	assert.Equal(t, 10.0, lines[0]["particles"])
	assert.Contains(t, lines[0]["caller"], "logging/logging_test.go:")
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithFormat(DebugLevel, TextFormat, &buf)

	l.WithFields(map[string]interface{}{"b": 2, "a": "x y"}).Warn("slow objective")

	line := buf.String()
	assert.Contains(t, line, "WARN  slow objective")
	assert.Contains(t, line, ` a="x y" b=2`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(DebugLevel, &buf)
	child := parent.WithField("run_id", "abc")

	parent.Info("parent")
	child.Info("child")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "run_id")
	assert.Equal(t, "abc", lines[1]["run_id"])
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  int
	}{
		{DebugLevel, 4},
		{InfoLevel, 3},
		{WarnLevel, 2},
		{ErrorLevel, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			l := New(tt.level, &buf)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")
			assert.Len(t, decodeLines(t, &buf), tt.want)
		})
	}
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf)
	code := -1
	l.out.exit = func(c int) { code = c }

	l.Fatal("cannot continue")
	assert.Equal(t, 1, code)
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestNewLoggerFromConfig(t *testing.T) {
	l, err := NewLogger(config.Logging{Level: "warning", Format: "TEXT", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, l.Level())
	assert.Equal(t, TextFormat, l.out.format)

	l, err = NewLogger(config.Logging{})
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, l.Level())
	assert.Equal(t, JSONFormat, l.out.format)

	path := filepath.Join(t.TempDir(), "service.log")
	l, err = NewLogger(config.Logging{Level: "debug", Output: path})
	require.NoError(t, err)
	l.Debug("to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")

	_, err = NewLogger(config.Logging{Level: "loud"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"":        InfoLevel,
		"debug":   DebugLevel,
		"Warning": WarnLevel,
		"ERROR":   ErrorLevel,
		"fatal":   FatalLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf)
	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("boom")).Error("failed")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "boom", lines[0]["error"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	cl := &CtxLogger{New(InfoLevel, &buf).WithField("run_id", "r1")}
	ctx := cl.WithContext(context.Background())

	assert.Same(t, cl, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestZapBridge(t *testing.T) {
	var buf bytes.Buffer
	z := NewZapLogger(New(InfoLevel, &buf)).Named("pso.global_best").With(zap.String("run_id", "r1"))

	z.Debug("hidden", zap.Int("iteration", 1))
	z.Info("optimization finished",
		zap.Float64("best_cost", 0.25),
		zap.Int("iterations", 100),
		zap.Bool("converged", true),
		zap.Duration("elapsed", 1500*time.Millisecond),
		zap.Error(assert.AnError))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "optimization finished", line["message"])
	assert.Equal(t, "pso.global_best", line["logger"])
	assert.Equal(t, "r1", line["run_id"])
	assert.Equal(t, 0.25, line["best_cost"])
	assert.Equal(t, 100.0, line["iterations"])
	assert.Equal(t, true, line["converged"])
	assert.Equal(t, assert.AnError.Error(), line["error"])
	assert.Contains(t, line["caller"], "logging/logging_test.go:")
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})

	for _, path := range []string{"/ok", "/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "inside handler", lines[0]["message"])
	assert.Equal(t, "/ok", lines[0]["path"])
	assert.NotEmpty(t, lines[0]["request_id"])

	assert.Equal(t, "request completed", lines[1]["message"])
	assert.Equal(t, 200.0, lines[1]["status"])

	assert.Equal(t, "WARN", lines[2]["level"])
	assert.Equal(t, 404.0, lines[2]["status"])
	assert.Equal(t, "Not Found", lines[2]["error"])
}
