package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/copyleftdev/swarmopt/internal/config"
)

// NewLogger builds the service logger from the logging section of the
// environment configuration.
func NewLogger(cfg config.Logging) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	return NewWithFormat(level, parseFormat(cfg.Format), out), nil
}

// ParseLevel maps a case-insensitive level name to a LogLevel. An empty
// name is InfoLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToUpper(name) {
	case "":
		return InfoLevel, nil
	case "WARNING":
		return WarnLevel, nil
	}
	level := LogLevel(strings.ToUpper(name))
	if _, ok := levelRank[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func parseFormat(format string) Format {
	if strings.EqualFold(format, string(TextFormat)) {
		return TextFormat
	}
	return JSONFormat
}

// openOutput resolves stdout, stderr or a file path. Empty means stderr.
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	return os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
