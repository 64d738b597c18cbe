package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxos-io/warden/pkg/observability"
)

func TestNew_DisabledIsNoOp(t *testing.T) {
	ctx := context.Background()
	p, err := observability.New(ctx, &observability.Config{Enabled: false})
	require.NoError(t, err)

	// Recording against a disabled provider must be safe.
	p.RecordDecision(ctx, true, "APPROVED", 3*time.Millisecond)
	p.RecordDecision(ctx, false, "BLOCKED", time.Millisecond)

	spanCtx, span := p.StartSpan(ctx, "governance.decide")
	assert.NotNil(t, spanCtx)
	span.End()

	assert.NoError(t, p.Shutdown(ctx))
}

func TestNew_NilConfigDefaults(t *testing.T) {
	p, err := observability.New(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}
