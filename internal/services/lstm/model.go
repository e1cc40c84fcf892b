package lstm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"MandiCast/internal/domain/models"
	domsvc "MandiCast/internal/domain/service"

	"gonum.org/v1/gonum/mat"
)

// Default training schedule.
const (
	DefaultEpochs    = 50
	DefaultBatchSize = 32
)

// EpochStats is the loss after one pass over the training split.
type EpochStats struct {
	Epoch   int     `json:"epoch"`
	Loss    float64 `json:"loss"`
	ValLoss float64 `json:"val_loss,omitempty"`
}

// Model is a two-layer LSTM regressor over a fixed lookback window.
// Predict is safe for concurrent use once the model is trained or loaded;
// Train is not.
type Model struct {
	cfg     Config
	l1, l2  *lstmLayer
	d1, d2  *denseLayer
	params  []*param
	ready   bool
	history []EpochStats
}

// New builds an untrained model. Predict fails until Train or Load succeeds.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		cfg: cfg,
		l1:  newLSTMLayer("lstm1", 1, cfg.Hidden),
		l2:  newLSTMLayer("lstm2", cfg.Hidden, cfg.Hidden),
		d1:  newDenseLayer("dense1", cfg.Hidden, cfg.DenseUnits, true),
		d2:  newDenseLayer("dense2", cfg.DenseUnits, 1, false),
	}
	m.params = append(m.params, m.l1.params()...)
	m.params = append(m.params, m.l2.params()...)
	m.params = append(m.params, m.d1.params()...)
	m.params = append(m.params, m.d2.params()...)
	return m, nil
}

// Config returns the model configuration.
func (m *Model) Config() Config { return m.cfg }

// Ready reports whether the model has weights.
func (m *Model) Ready() bool { return m.ready }

// History returns the per-epoch losses of the last training run.
func (m *Model) History() []EpochStats { return m.history }

func (m *Model) initWeights(rng *rand.Rand) {
	m.l1.init(rng)
	m.l2.init(rng)
	m.d1.init(rng)
	m.d2.init(rng)
}

// pass holds everything a backward step needs.
type pass struct {
	s1, s2     []lstmStep
	mask1      [][]float64
	mask2      []float64
	hLast      *mat.VecDense
	a3, r3, a4 *mat.VecDense
	out        float64
}

func dropoutMask(n int, rate float64, rng *rand.Rand) []float64 {
	keep := 1 - rate
	mask := make([]float64, n)
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func applyMask(v *mat.VecDense, mask []float64) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	for i := 0; i < v.Len(); i++ {
		out.SetVec(i, v.AtVec(i)*mask[i])
	}
	return out
}

// forward runs the network. rng is nil at inference time, which disables dropout.
func (m *Model) forward(window []float64, rng *rand.Rand) *pass {
	p := &pass{}
	train := rng != nil && m.cfg.Dropout > 0

	xs := make([]*mat.VecDense, len(window))
	for t, v := range window {
		xs[t] = mat.NewVecDense(1, []float64{v})
	}
	p.s1 = m.l1.forward(xs)

	h1 := make([]*mat.VecDense, len(p.s1))
	if train {
		p.mask1 = make([][]float64, len(p.s1))
	}
	for t, s := range p.s1 {
		if train {
			p.mask1[t] = dropoutMask(m.cfg.Hidden, m.cfg.Dropout, rng)
			h1[t] = applyMask(s.h, p.mask1[t])
		} else {
			h1[t] = s.h
		}
	}
	p.s2 = m.l2.forward(h1)

	last := p.s2[len(p.s2)-1].h
	if train {
		p.mask2 = dropoutMask(m.cfg.Hidden, m.cfg.Dropout, rng)
		last = applyMask(last, p.mask2)
	}
	p.hLast = last

	p.a3, p.r3 = m.d1.forward(p.hLast)
	p.a4, _ = m.d2.forward(p.r3)
	p.out = p.a4.AtVec(0)
	return p
}

func (m *Model) backward(p *pass, dOut float64) {
	dy := mat.NewVecDense(1, []float64{dOut})
	dr3 := m.d2.backward(p.r3, p.a4, dy)
	dLast := m.d1.backward(p.hLast, p.a3, dr3)
	if p.mask2 != nil {
		dLast = applyMask(dLast, p.mask2)
	}

	dhs2 := make([]*mat.VecDense, len(p.s2))
	dhs2[len(dhs2)-1] = dLast
	dx2 := m.l2.backward(p.s2, dhs2)

	dhs1 := make([]*mat.VecDense, len(p.s1))
	for t, dx := range dx2 {
		if p.mask1 != nil {
			dhs1[t] = applyMask(dx, p.mask1[t])
		} else {
			dhs1[t] = dx
		}
	}
	m.l1.backward(p.s1, dhs1)
}

// Train fits the model on windows/labels. The trailing ValidationSplit share
// of the windows is held out for validation; only the training share is
// shuffled between epochs.
func (m *Model) Train(windows [][]float64, labels []float64, epochs, batchSize int) ([]EpochStats, error) {
	if len(windows) != len(labels) {
		return nil, fmt.Errorf("train: %d windows but %d labels", len(windows), len(labels))
	}
	for i, w := range windows {
		if len(w) != m.cfg.Lookback {
			return nil, fmt.Errorf("train: window %d has length %d, want %d", i, len(w), m.cfg.Lookback)
		}
	}
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	n := len(windows)
	split := int(float64(n) * (1 - m.cfg.ValidationSplit))
	if split < 1 {
		return nil, fmt.Errorf("train: %d windows leave no training split: %w", n, models.ErrInsufficientData)
	}

	rng := rand.New(rand.NewPCG(m.cfg.Seed, m.cfg.Seed^0x9e3779b97f4a7c15))
	if !m.ready {
		m.initWeights(rng)
	}
	opt := newAdam(m.params, m.cfg.LearningRate)

	order := make([]int, split)
	for i := range order {
		order[i] = i
	}

	history := make([]EpochStats, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sse float64
		for start := 0; start < split; start += batchSize {
			end := start + batchSize
			if end > split {
				end = split
			}
			for _, p := range m.params {
				p.zeroGrad()
			}
			bs := float64(end - start)
			for _, idx := range order[start:end] {
				p := m.forward(windows[idx], rng)
				diff := p.out - labels[idx]
				sse += diff * diff
				m.backward(p, 2*diff/bs)
			}
			opt.step()
		}

		stats := EpochStats{Epoch: epoch, Loss: sse / float64(split)}
		if split < n {
			stats.ValLoss = m.mse(windows[split:], labels[split:])
		}
		if math.IsNaN(stats.Loss) || math.IsInf(stats.Loss, 0) {
			return history, fmt.Errorf("train: loss diverged at epoch %d", epoch)
		}
		history = append(history, stats)
	}

	m.ready = true
	m.history = history
	return history, nil
}

func (m *Model) mse(windows [][]float64, labels []float64) float64 {
	var sse float64
	for i, w := range windows {
		d := m.forward(w, nil).out - labels[i]
		sse += d * d
	}
	return sse / float64(len(windows))
}

// Predict returns the next scaled value for a scaled lookback window.
func (m *Model) Predict(window []float64) (float64, error) {
	if !m.ready {
		return 0, models.ErrModelNotReady
	}
	if len(window) != m.cfg.Lookback {
		return 0, fmt.Errorf("predict: window length %d, want %d", len(window), m.cfg.Lookback)
	}
	return m.forward(window, nil).out, nil
}

var _ domsvc.PersistentModel = (*Model)(nil)
