package lstm

import (
	"bytes"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"MandiCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSet(n, lookback int) ([][]float64, []float64) {
	series := make([]float64, n+lookback)
	for i := range series {
		series[i] = 0.5 + 0.4*math.Sin(float64(i)/4)
	}
	windows := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		windows[i] = series[i : i+lookback]
		labels[i] = series[i+lookback]
	}
	return windows, labels
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Lookback = 6
	cfg.Hidden = 4
	cfg.DenseUnits = 3
	cfg.Dropout = 0
	return cfg
}

func TestPredictBeforeTrain(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	_, err = m.Predict(make([]float64, 30))
	assert.ErrorIs(t, err, models.ErrModelNotReady)
	assert.Error(t, m.Save(&bytes.Buffer{}))
}

func TestTrainRejectsTinySets(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	w, l := sineSet(1, 30)
	_, err = m.Train(w, l, 1, 32)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	_, err = m.Train([][]float64{make([]float64, 10)}, []float64{1}, 1, 32)
	assert.Error(t, err)
}

func TestTrainDefaultArchitecture(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	w, l := sineSet(40, 30)

	hist, err := m.Train(w, l, 2, DefaultBatchSize)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	for _, h := range hist {
		assert.False(t, math.IsNaN(h.Loss))
		assert.Greater(t, h.ValLoss, 0.0)
	}

	got, err := m.Predict(w[0])
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got))
}

func TestTrainReducesLoss(t *testing.T) {
	cfg := smallConfig()
	cfg.Hidden = 8
	cfg.LearningRate = 0.01
	m, err := New(cfg)
	require.NoError(t, err)
	w, l := sineSet(60, cfg.Lookback)

	hist, err := m.Train(w, l, 40, 16)
	require.NoError(t, err)
	assert.Less(t, hist[len(hist)-1].Loss, hist[0].Loss)
}

func TestTrainDeterministic(t *testing.T) {
	w, l := sineSet(20, 6)
	run := func() float64 {
		cfg := smallConfig()
		cfg.Dropout = 0.2
		m, err := New(cfg)
		require.NoError(t, err)
		_, err = m.Train(w, l, 3, 4)
		require.NoError(t, err)
		out, err := m.Predict(w[5])
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, run(), run())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	w, l := sineSet(12, 30)
	_, err = m.Train(w, l, 1, 8)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))
	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Config(), loaded.Config())
	assert.Len(t, loaded.History(), 1)

	for _, x := range w {
		want, err := m.Predict(x)
		require.NoError(t, err)
		got, err := loaded.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadCorrupt(t *testing.T) {
	_, err := Load(strings.NewReader("{not json"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`{"format":"other"}`))
	assert.Error(t, err)

	cfg := smallConfig()
	m, err := New(cfg)
	require.NoError(t, err)
	w, l := sineSet(5, cfg.Lookback)
	_, err = m.Train(w, l, 1, 2)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))
	truncated := buf.Bytes()[:buf.Len()/2]
	_, err = Load(bytes.NewReader(truncated))
	assert.Error(t, err)
}

// TestGradients compares backpropagated gradients with central differences.
func TestGradients(t *testing.T) {
	cfg := smallConfig()
	m, err := New(cfg)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(7, 11))
	m.initWeights(rng)

	window := []float64{0.1, 0.4, 0.35, 0.8, 0.6, 0.9}
	label := 0.7
	loss := func() float64 {
		d := m.forward(window, nil).out - label
		return d * d
	}

	for _, p := range m.params {
		p.zeroGrad()
	}
	fp := m.forward(window, nil)
	m.backward(fp, 2*(fp.out-label))

	const h = 1e-6
	for _, p := range m.params {
		for _, k := range []int{0, len(p.data) / 2, len(p.data) - 1} {
			orig := p.data[k]
			p.data[k] = orig + h
			up := loss()
			p.data[k] = orig - h
			down := loss()
			p.data[k] = orig
			numeric := (up - down) / (2 * h)
			assert.InDelta(t, numeric, p.grad[k], 1e-6+1e-4*math.Abs(numeric), "%s[%d]", p.name, k)
		}
	}
}
