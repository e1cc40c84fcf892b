package lstm

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// param is one trainable tensor. Layers hold mat views over data and grad.
type param struct {
	name       string
	rows, cols int
	data       []float64
	grad       []float64
}

func newParam(name string, rows, cols int) *param {
	return &param{
		name: name,
		rows: rows,
		cols: cols,
		data: make([]float64, rows*cols),
		grad: make([]float64, rows*cols),
	}
}

func (p *param) matrix() *mat.Dense     { return mat.NewDense(p.rows, p.cols, p.data) }
func (p *param) gradMatrix() *mat.Dense { return mat.NewDense(p.rows, p.cols, p.grad) }
func (p *param) vector() *mat.VecDense  { return mat.NewVecDense(p.rows*p.cols, p.data) }
func (p *param) gradVector() *mat.VecDense {
	return mat.NewVecDense(p.rows*p.cols, p.grad)
}

func (p *param) zeroGrad() {
	for i := range p.grad {
		p.grad[i] = 0
	}
}

func glorotUniform(p *param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.data {
		p.data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// orthogonal fills p (rows >= cols) with orthonormal columns taken from the
// QR decomposition of a gaussian matrix.
func orthogonal(p *param, rng *rand.Rand) {
	a := mat.NewDense(p.rows, p.cols, nil)
	for i := 0; i < p.rows; i++ {
		for j := 0; j < p.cols; j++ {
			a.Set(i, j, rng.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)
	dst := p.matrix()
	for j := 0; j < p.cols; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1
		}
		for i := 0; i < p.rows; i++ {
			dst.Set(i, j, sign*q.At(i, j))
		}
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// lstmLayer is a single recurrent layer with gates stacked as [i, f, g, o].
type lstmLayer struct {
	in, hidden int
	wx, wh, b  *param
}

func newLSTMLayer(prefix string, in, hidden int) *lstmLayer {
	return &lstmLayer{
		in:     in,
		hidden: hidden,
		wx:     newParam(prefix+".wx", 4*hidden, in),
		wh:     newParam(prefix+".wh", 4*hidden, hidden),
		b:      newParam(prefix+".b", 4*hidden, 1),
	}
}

func (l *lstmLayer) params() []*param { return []*param{l.wx, l.wh, l.b} }

func (l *lstmLayer) init(rng *rand.Rand) {
	glorotUniform(l.wx, l.in, 4*l.hidden, rng)
	orthogonal(l.wh, rng)
	for i := range l.b.data {
		l.b.data[i] = 0
	}
	// unit forget bias
	for j := l.hidden; j < 2*l.hidden; j++ {
		l.b.data[j] = 1
	}
}

// lstmStep caches one timestep for backpropagation.
type lstmStep struct {
	x, hPrev   *mat.VecDense
	cPrev      []float64
	i, f, g, o []float64
	c, tc      []float64
	h          *mat.VecDense
}

func (l *lstmLayer) forward(xs []*mat.VecDense) []lstmStep {
	H := l.hidden
	wx, wh, b := l.wx.matrix(), l.wh.matrix(), l.b.vector()

	steps := make([]lstmStep, len(xs))
	hPrev := mat.NewVecDense(H, nil)
	cPrev := make([]float64, H)
	for t, x := range xs {
		z := mat.NewVecDense(4*H, nil)
		z.MulVec(wx, x)
		var rec mat.VecDense
		rec.MulVec(wh, hPrev)
		z.AddVec(z, &rec)
		z.AddVec(z, b)
		zr := z.RawVector().Data

		s := lstmStep{
			x: x, hPrev: hPrev, cPrev: cPrev,
			i: make([]float64, H), f: make([]float64, H),
			g: make([]float64, H), o: make([]float64, H),
			c: make([]float64, H), tc: make([]float64, H),
		}
		h := make([]float64, H)
		for j := 0; j < H; j++ {
			s.i[j] = sigmoid(zr[j])
			s.f[j] = sigmoid(zr[H+j])
			s.g[j] = math.Tanh(zr[2*H+j])
			s.o[j] = sigmoid(zr[3*H+j])
			s.c[j] = s.f[j]*cPrev[j] + s.i[j]*s.g[j]
			s.tc[j] = math.Tanh(s.c[j])
			h[j] = s.o[j] * s.tc[j]
		}
		s.h = mat.NewVecDense(H, h)
		steps[t] = s
		hPrev, cPrev = s.h, s.c
	}
	return steps
}

// backward accumulates parameter gradients and returns dL/dx per step.
// dhs[t] may be nil when no loss flows into that step's output.
func (l *lstmLayer) backward(steps []lstmStep, dhs []*mat.VecDense) []*mat.VecDense {
	H := l.hidden
	wx, wh := l.wx.matrix(), l.wh.matrix()
	gwx, gwh, gb := l.wx.gradMatrix(), l.wh.gradMatrix(), l.b.gradVector()

	dxs := make([]*mat.VecDense, len(steps))
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]
		dh := make([]float64, H)
		copy(dh, dhNext)
		if dhs[t] != nil {
			for j := 0; j < H; j++ {
				dh[j] += dhs[t].AtVec(j)
			}
		}

		dz := make([]float64, 4*H)
		for j := 0; j < H; j++ {
			do := dh[j] * s.tc[j]
			dc := dh[j]*s.o[j]*(1-s.tc[j]*s.tc[j]) + dcNext[j]
			dz[j] = dc * s.g[j] * s.i[j] * (1 - s.i[j])
			dz[H+j] = dc * s.cPrev[j] * s.f[j] * (1 - s.f[j])
			dz[2*H+j] = dc * s.i[j] * (1 - s.g[j]*s.g[j])
			dz[3*H+j] = do * s.o[j] * (1 - s.o[j])
			dcNext[j] = dc * s.f[j]
		}
		dzv := mat.NewVecDense(4*H, dz)
		gwx.RankOne(gwx, 1, dzv, s.x)
		gwh.RankOne(gwh, 1, dzv, s.hPrev)
		gb.AddVec(gb, dzv)

		dx := mat.NewVecDense(l.in, nil)
		dx.MulVec(wx.T(), dzv)
		dxs[t] = dx

		var dhp mat.VecDense
		dhp.MulVec(wh.T(), dzv)
		copy(dhNext, dhp.RawVector().Data)
	}
	return dxs
}

// denseLayer is a fully connected layer with optional ReLU.
type denseLayer struct {
	in, out int
	relu    bool
	w, b    *param
}

func newDenseLayer(prefix string, in, out int, relu bool) *denseLayer {
	return &denseLayer{
		in:   in,
		out:  out,
		relu: relu,
		w:    newParam(prefix+".w", out, in),
		b:    newParam(prefix+".b", out, 1),
	}
}

func (d *denseLayer) params() []*param { return []*param{d.w, d.b} }

func (d *denseLayer) init(rng *rand.Rand) {
	glorotUniform(d.w, d.in, d.out, rng)
	for i := range d.b.data {
		d.b.data[i] = 0
	}
}

// forward returns the pre-activation and the activation.
func (d *denseLayer) forward(x *mat.VecDense) (*mat.VecDense, *mat.VecDense) {
	a := mat.NewVecDense(d.out, nil)
	a.MulVec(d.w.matrix(), x)
	a.AddVec(a, d.b.vector())
	if !d.relu {
		return a, a
	}
	y := mat.NewVecDense(d.out, nil)
	for j := 0; j < d.out; j++ {
		y.SetVec(j, math.Max(0, a.AtVec(j)))
	}
	return a, y
}

func (d *denseLayer) backward(x, a, dy *mat.VecDense) *mat.VecDense {
	da := mat.NewVecDense(d.out, nil)
	da.CopyVec(dy)
	if d.relu {
		for j := 0; j < d.out; j++ {
			if a.AtVec(j) <= 0 {
				da.SetVec(j, 0)
			}
		}
	}
	gw := d.w.gradMatrix()
	gw.RankOne(gw, 1, da, x)
	gb := d.b.gradVector()
	gb.AddVec(gb, da)

	dx := mat.NewVecDense(d.in, nil)
	dx.MulVec(d.w.matrix().T(), da)
	return dx
}
