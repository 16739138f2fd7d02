// Package logging builds the logger of one lighthouse invocation.
//
// The logger is not installed globally. Callers attach it to a context with
// log.WithLogger and components retrieve it with log.G(ctx).
package logging

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out at level ("debug", "info", "warn",
// "error"; empty means "info").
func New(level string, out io.Writer) (*log.Entry, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: log.RFC3339NanoFixed,
		FullTimestamp:   true,
	})
	return logrus.NewEntry(logger), nil
}

// WithLogger returns ctx carrying a logger built by New.
func WithLogger(ctx context.Context, level string, out io.Writer) (context.Context, error) {
	entry, err := New(level, out)
	if err != nil {
		return ctx, err
	}
	return log.WithLogger(ctx, entry), nil
}
