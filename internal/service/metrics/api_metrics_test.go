package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	depth := 3
	require.NoError(t, WatchQueue(reg, "audit", func() int { return depth }))
	require.NoError(t, WatchQueue(reg, "inference", func() int { return 0 }))
	require.NoError(t, WatchQueue(reg, "audit", func() int { return 99 }))

	read := func() map[string]float64 {
		mfs, err := reg.Gather()
		require.NoError(t, err)
		out := map[string]float64{}
		for _, mf := range mfs {
			if mf.GetName() != "mandicast_queue_depth" {
				continue
			}
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "queue" {
						out[lp.GetValue()] = m.GetGauge().GetValue()
					}
				}
			}
		}
		return out
	}

	assert.Equal(t, map[string]float64{"audit": 3, "inference": 0}, read())
	depth = 7
	assert.Equal(t, 7.0, read()["audit"])
}
