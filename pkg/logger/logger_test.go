package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWithContext_FallsBackToGlobal(t *testing.T) {
	global := zap.NewNop()
	Set(global)

	assert.Same(t, global, WithContext(context.Background()))
}

func TestWithContext_ReturnsScopedLogger(t *testing.T) {
	Set(zap.NewNop())
	scoped := zap.NewNop().With(zap.String("correlation_id", "abc"))

	ctx := ContextWith(context.Background(), scoped)

	assert.Same(t, scoped, WithContext(ctx))
}

func TestGet_LazyInit(t *testing.T) {
	Set(nil)
	assert.NotNil(t, Get())
}
