package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zaptest"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.method", "GET"),
		attribute.String("authorization", "Bearer secret"),
		attribute.String("x-api-key", "key"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.method"), attrs[0].Key)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.ErrorIs(t, SafeError(context.DeadlineExceeded), context.DeadlineExceeded)
	assert.EqualError(t, SafeError(errors.New("password=hunter2")), "internal_error")
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(nil, Config{ServiceName: "paramstore"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-1))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, 0.25, clampRatio(0.25))
}
