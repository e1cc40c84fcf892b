package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferencePool_Run(t *testing.T) {
	p := NewInferencePool(2, 4, nil)
	require.NoError(t, p.Start())
	defer p.Stop(context.Background())

	v, err := p.Run(context.Background(), func() (float64, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = p.Run(context.Background(), func() (float64, error) { return 0, errors.New("bad") })
	assert.EqualError(t, err, "bad")
}

func TestInferencePool_StartTwice(t *testing.T) {
	p := NewInferencePool(1, 1, nil)
	require.NoError(t, p.Start())
	defer p.Stop(context.Background())
	assert.Error(t, p.Start())
}

func TestInferencePool_RecoversPanic(t *testing.T) {
	p := NewInferencePool(1, 1, nil)
	require.NoError(t, p.Start())
	defer p.Stop(context.Background())

	_, err := p.Run(context.Background(), func() (float64, error) { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	v, err := p.Run(context.Background(), func() (float64, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestInferencePool_ContextCancelled(t *testing.T) {
	p := NewInferencePool(1, 1, nil)
	require.NoError(t, p.Start())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = p.Run(context.Background(), func() (float64, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Run(ctx, func() (float64, error) { return 1, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Stop(context.Background()))
}

func TestInferencePool_Stopped(t *testing.T) {
	p := NewInferencePool(1, 1, nil)
	_, err := p.Run(context.Background(), func() (float64, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrPoolStopped)

	require.NoError(t, p.Start())
	require.NoError(t, p.Stop(context.Background()))
	_, err = p.Run(context.Background(), func() (float64, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrPoolStopped)
}
