package server

import (
	"context"
	"errors"
	"testing"

	"MandiCast/internal/usecase"
	"MandiCast/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWithoutHTTPServer(t *testing.T) {
	pool := usecase.NewInferencePool(1, 1, nil)
	app := New(&config.Config{}, nil, Components{
		Pool:      pool,
		Collector: usecase.NewAuditCollector(nil, nil, nil),
	})

	err := app.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")

	require.NoError(t, app.Shutdown(context.Background()))
	_, err = pool.Run(context.Background(), func() (float64, error) { return 1, nil })
	assert.ErrorIs(t, err, usecase.ErrPoolStopped)
}

func TestShutdownRunsClosersInReverse(t *testing.T) {
	app := New(&config.Config{}, nil, Components{})
	var order []string
	add := func(name string, err error) {
		app.AddCloser(name, func() error {
			order = append(order, name)
			return err
		})
	}
	add("store", nil)
	add("producer", errors.New("boom"))
	add("cache", errors.New("later"))

	err := app.Shutdown(context.Background())
	assert.Equal(t, []string{"cache", "producer", "store"}, order)
	require.Error(t, err)
	assert.Equal(t, "cache: later", err.Error())
}
