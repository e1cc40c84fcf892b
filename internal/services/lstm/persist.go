package lstm

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"
)

const formatV1 = "mandicast-lstm/v1"

type snapshot struct {
	Format  string            `json:"format"`
	Config  Config            `json:"config"`
	Params  map[string][]byte `json:"params"`
	History []EpochStats      `json:"history,omitempty"`
	SavedAt time.Time         `json:"saved_at"`
}

// Save writes the model as JSON with every weight tensor in gonum's binary
// matrix encoding, so weights round-trip bit for bit.
func (m *Model) Save(w io.Writer) error {
	if !m.ready {
		return fmt.Errorf("save: model has no weights")
	}
	snap := snapshot{
		Format:  formatV1,
		Config:  m.cfg,
		Params:  make(map[string][]byte, len(m.params)),
		History: m.history,
		SavedAt: time.Now().UTC(),
	}
	for _, p := range m.params {
		b, err := p.matrix().MarshalBinary()
		if err != nil {
			return fmt.Errorf("save %s: %w", p.name, err)
		}
		snap.Params[p.name] = b
	}
	if err := json.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("save: encode: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(r io.Reader) (m *Model, err error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("load: decode: %w", err)
	}
	if snap.Format != formatV1 {
		return nil, fmt.Errorf("load: unsupported format %q", snap.Format)
	}
	m, err = New(snap.Config)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	// gonum panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("load: corrupt weights: %v", r)
		}
	}()

	for _, p := range m.params {
		raw, ok := snap.Params[p.name]
		if !ok {
			return nil, fmt.Errorf("load: missing tensor %s", p.name)
		}
		var d mat.Dense
		if err := d.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("load %s: %w", p.name, err)
		}
		if r, c := d.Dims(); r != p.rows || c != p.cols {
			return nil, fmt.Errorf("load %s: shape %dx%d, want %dx%d", p.name, r, c, p.rows, p.cols)
		}
		p.matrix().Copy(&d)
	}
	m.history = snap.History
	m.ready = true
	return m, nil
}
