package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	ctx = With(ctx, "step", "flow.step[0]")

	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "step=flow.step[0]")
}

func TestMissingLoggerFallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
	assert.Same(t, slog.Default(), FromContext(WithLogger(context.Background(), nil)))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	assert.Same(t, logger, FromContext(WithLogger(context.Background(), logger)))
	assert.NotPanics(t, func() { With(context.Background(), "k", "v") })
}
