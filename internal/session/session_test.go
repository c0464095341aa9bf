package session

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithNewTraceID(t *testing.T) {
	tcs := []struct {
		name   string
		ctx    func() context.Context
		assert func(t *testing.T, ctx context.Context)
	}{
		{
			name: "generates when absent",
			ctx:  context.Background,
			assert: func(t *testing.T, ctx context.Context) {
				id, ok := TraceIDFrom(ctx)
				require.True(t, ok)
				assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), id)
			},
		},
		{
			name: "keeps existing",
			ctx: func() context.Context {
				return WithTraceID(context.Background(), "0123456789abcdef")
			},
			assert: func(t *testing.T, ctx context.Context) {
				id, ok := TraceIDFrom(ctx)
				require.True(t, ok)
				assert.Equal(t, "0123456789abcdef", id)
			},
		},
		{
			name: "replaces empty",
			ctx: func() context.Context {
				return WithTraceID(context.Background(), "")
			},
			assert: func(t *testing.T, ctx context.Context) {
				id, ok := TraceIDFrom(ctx)
				require.True(t, ok)
				assert.Len(t, id, 16)
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tc.assert(t, WithNewTraceID(tc.ctx()))
		})
	}
}

func TestInbound(t *testing.T) {
	_, ok := InboundFrom(context.Background())
	assert.False(t, ok)

	tag, ok := InboundFrom(WithInbound(context.Background(), "vless_tls"))
	assert.True(t, ok)
	assert.Equal(t, "vless_tls", tag)
}
