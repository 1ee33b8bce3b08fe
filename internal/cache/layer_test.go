package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/paramstore/internal/cache/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot map[string]any

func TestGetOrComputeFallsBackWhenBackendFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	backendErr := errors.New("dial tcp: connection refused")

	store.EXPECT().Get(gomock.Any(), "client_config:US").Return(nil, false, backendErr)
	store.EXPECT().Set(gomock.Any(), "client_config:US", gomock.Any(), 5*time.Minute).Return(backendErr)

	layer := NewLayer(store, nil)
	calls := 0
	got, err := GetOrCompute(context.Background(), layer, "client_config:US", 5*time.Minute, func(context.Context) (snapshot, error) {
		calls++
		return snapshot{"flag": true}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, snapshot{"flag": true}, got)
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeServesHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "client_config:default").Return([]byte(`{"flag":false}`), true, nil)

	layer := NewLayer(store, nil)
	got, err := GetOrCompute(context.Background(), layer, "client_config:default", time.Minute, func(context.Context) (snapshot, error) {
		t.Fatal("compute must not run on a hit")
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, snapshot{"flag": false}, got)
}

func TestGetOrComputeTreatsCorruptEntryAsMiss(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "client_config:FR", []byte("not-json"), time.Minute))

	layer := NewLayer(store, nil)
	got, err := GetOrCompute(ctx, layer, "client_config:FR", time.Minute, func(context.Context) (snapshot, error) {
		return snapshot{"flag": "fr"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, snapshot{"flag": "fr"}, got)

	raw, ok, err := store.Get(ctx, "client_config:FR")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"flag":"fr"}`, string(raw))
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	layer := NewLayer(NoopStore{}, nil)
	computeErr := errors.New("store down")

	_, err := GetOrCompute(context.Background(), layer, "k", time.Minute, func(context.Context) (snapshot, error) {
		return nil, computeErr
	})
	assert.ErrorIs(t, err, computeErr)
}

func TestInvalidateClientConfigSwallowsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Delete(gomock.Any(), "client_config:default").Return(errors.New("timeout"))
	store.EXPECT().DeletePattern(gomock.Any(), "client_config:*").Return(0, errors.New("timeout"))

	NewLayer(store, nil).InvalidateClientConfig(context.Background())
}

func TestNewLayerDefaultsToNoop(t *testing.T) {
	layer := NewLayer(nil, nil)
	_, ok := layer.Get(context.Background(), "k")
	assert.False(t, ok)
}
