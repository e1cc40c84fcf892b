package lstm

import "math"

// adam is the Adam optimizer over a fixed parameter set.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	params                []*param
	m, v                  [][]float64
}

func newAdam(params []*param, lr float64) *adam {
	a := &adam{
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-7,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.data))
		a.v[i] = make([]float64, len(p.data))
	}
	return a
}

func (a *adam) step() {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for k, g := range p.grad {
			m[k] = a.beta1*m[k] + (1-a.beta1)*g
			v[k] = a.beta2*v[k] + (1-a.beta2)*g*g
			p.data[k] -= a.lr * (m[k] / c1) / (math.Sqrt(v[k]/c2) + a.eps)
		}
	}
}
