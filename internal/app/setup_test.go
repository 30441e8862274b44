package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/chatrelay/internal/config"
	"github.com/koopa0/chatrelay/internal/log"
	"github.com/koopa0/chatrelay/internal/store"
)

func TestProvideStoreMemory(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.StoreMemory}

	st, pool, err := provideStore(context.Background(), cfg, log.NewNop())
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.IsType(t, &store.Memory{}, st)
}

func TestAppCloseWithoutPool(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	assert.NoError(t, a.Close())
}
