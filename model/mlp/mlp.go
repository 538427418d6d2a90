package mlp

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/sw965/pokerppo/blas32/tensor/2d"
	"github.com/sw965/pokerppo/blas32/vector"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

type GradBuffer struct {
	Weight blas32.General
	Bias   blas32.Vector
}

func (g *GradBuffer) NewZerosLike() GradBuffer {
	return GradBuffer{
		Weight: tensor2d.NewZerosLike(g.Weight),
		Bias:   vector.NewZerosLike(g.Bias),
	}
}

func (g *GradBuffer) Axpy(alpha float32, x *GradBuffer) {
	if x.Weight.Rows != 0 {
		tensor2d.Axpy(alpha, x.Weight, g.Weight)
	}

	if x.Bias.N != 0 {
		blas32.Axpy(alpha, x.Bias, g.Bias)
	}
}

func (g *GradBuffer) Scal(alpha float32) {
	if g.Weight.Rows != 0 {
		tensor2d.Scal(alpha, g.Weight)
	}

	if g.Bias.N != 0 {
		blas32.Scal(alpha, g.Bias)
	}
}

func (g *GradBuffer) SquaredNorm() float32 {
	w := vector.Nrm2(tensor2d.ToVector(g.Weight))
	b := vector.Nrm2(g.Bias)
	return w*w + b*b
}

type GradBuffers []GradBuffer

func (gs GradBuffers) NewZerosLike() GradBuffers {
	zeros := make(GradBuffers, len(gs))
	for i, g := range gs {
		zeros[i] = g.NewZerosLike()
	}
	return zeros
}

func (gs GradBuffers) Axpy(alpha float32, xs GradBuffers) {
	for i := range gs {
		gs[i].Axpy(alpha, &xs[i])
	}
}

func (gs GradBuffers) Scal(alpha float32) {
	for i := range gs {
		gs[i].Scal(alpha)
	}
}

// Norm is the global L2 norm over every buffer.
func (gs GradBuffers) Norm() float32 {
	var sq float32
	for i := range gs {
		sq += gs[i].SquaredNorm()
	}
	return math32.Sqrt(sq)
}

// ClipNorm rescales gs in place so that its global norm is at most maxNorm and returns the norm before clipping.
func (gs GradBuffers) ClipNorm(maxNorm float32) float32 {
	norm := gs.Norm()
	if norm > maxNorm && norm > 0 {
		gs.Scal(maxNorm / norm)
	}
	return norm
}

type Parameter struct {
	Weight blas32.General
	Bias   blas32.Vector
}

// NewAffineParameter は重みをXavierの一様分布で、バイアスを0で初期化する。
func NewAffineParameter(xn, yn int, rng *rand.Rand) Parameter {
	return Parameter{
		Weight: tensor2d.NewXavierUniform(xn, yn, rng),
		Bias:   vector.NewZeros(yn),
	}
}

func (p *Parameter) NewGradZerosLike() GradBuffer {
	return GradBuffer{
		Weight: tensor2d.NewZerosLike(p.Weight),
		Bias:   vector.NewZerosLike(p.Bias),
	}
}

func (p *Parameter) Clone() Parameter {
	return Parameter{
		Weight: tensor2d.Clone(p.Weight),
		Bias:   vector.Clone(p.Bias),
	}
}

func (p *Parameter) AxpyGrad(alpha float32, grad *GradBuffer) {
	if p.Weight.Rows != 0 {
		tensor2d.Axpy(alpha, grad.Weight, p.Weight)
	}

	if p.Bias.N != 0 {
		blas32.Axpy(alpha, grad.Bias, p.Bias)
	}
}

type Parameters []Parameter

func (ps Parameters) NewGradsZerosLike() GradBuffers {
	grads := make(GradBuffers, len(ps))
	for i := range ps {
		grads[i] = ps[i].NewGradZerosLike()
	}
	return grads
}

func (ps Parameters) AxpyGrads(alpha float32, grads GradBuffers) {
	for i := range ps {
		ps[i].AxpyGrad(alpha, &grads[i])
	}
}

type Forward func(blas32.Vector, *Parameter) (blas32.Vector, Backward, error)

type Backward func(blas32.Vector) (blas32.Vector, GradBuffer, error)

func AffineForward(x blas32.Vector, param *Parameter) (blas32.Vector, Backward, error) {
	if x.N != param.Weight.Rows {
		return blas32.Vector{}, nil, fmt.Errorf("affine: input size %d does not match weight rows %d", x.N, param.Weight.Rows)
	}

	yn := param.Weight.Cols
	y := blas32.Vector{N: yn, Inc: 1, Data: make([]float32, yn)}
	blas32.Copy(param.Bias, y)
	// y = Wᵀx + b
	blas32.Gemv(blas.Trans, 1.0, param.Weight, x, 1.0, y)

	var backward Backward
	backward = func(chain blas32.Vector) (blas32.Vector, GradBuffer, error) {
		wRows := param.Weight.Rows
		wCols := param.Weight.Cols

		if chain.N != wCols {
			return blas32.Vector{}, GradBuffer{}, fmt.Errorf("affine backward: chain size %d does not match weight cols %d", chain.N, wCols)
		}

		// dL/dx = W · dL/dy
		dx := vector.NewZeros(wRows)
		blas32.Gemv(blas.NoTrans, 1.0, param.Weight, chain, 0.0, dx)

		// dL/dW = x ⊗ dL/dy
		dw := tensor2d.NewZeros(wRows, wCols)
		blas32.Ger(1.0, x, chain, dw)

		// dL/db = dL/dy
		db := vector.Clone(chain)

		grad := GradBuffer{
			Weight: dw,
			Bias:   db,
		}
		return dx, grad, nil
	}
	return y, backward, nil
}

func ReLUForward(x blas32.Vector, _ *Parameter) (blas32.Vector, Backward, error) {
	xData := x.Data
	yData := make([]float32, x.N)
	for i, e := range xData {
		// NaN は0に潰さずそのまま流す
		if e > 0 || math32.IsNaN(e) {
			yData[i] = e
		}
	}
	y := vector.Of(yData)

	var backward Backward
	backward = func(chain blas32.Vector) (blas32.Vector, GradBuffer, error) {
		if chain.N != x.N {
			return blas32.Vector{}, GradBuffer{}, fmt.Errorf("relu backward: chain size %d does not match input size %d", chain.N, x.N)
		}
		dxData := make([]float32, chain.N)
		for i, e := range xData {
			if e > 0 || math32.IsNaN(e) {
				dxData[i] = chain.Data[i]
			}
		}
		return vector.Of(dxData), GradBuffer{}, nil
	}
	return y, backward, nil
}

type Adam struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32

	iter int
	m    GradBuffers
	v    GradBuffers
}

// NewAdam の1次・2次モーメントは params と同じ形状で0初期化される。
func NewAdam(params Parameters, lr float32) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		iter:         0,
		m:            params.NewGradsZerosLike(),
		v:            params.NewGradsZerosLike(),
	}
}

func (a *Adam) Iter() int {
	return a.iter
}

// Step updates params in place: params -= lr_t * m̂ / (sqrt(v̂) + eps).
func (a *Adam) Step(params Parameters, grads GradBuffers) error {
	if len(params) != len(grads) {
		return fmt.Errorf("adam: parameters/grads size mismatch (%d != %d)", len(params), len(grads))
	}
	if len(a.m) != len(params) {
		return fmt.Errorf("adam: optimizer state was built for %d parameters, got %d", len(a.m), len(params))
	}

	a.iter++
	beta1, beta2 := a.Beta1, a.Beta2
	lrt := a.LearningRate *
		math32.Sqrt(1-math32.Pow(beta2, float32(a.iter))) /
		(1 - math32.Pow(beta1, float32(a.iter)))

	for i := range grads {
		// --- Weight ---
		m, v := a.m[i].Weight.Data, a.v[i].Weight.Data
		w := params[i].Weight.Data
		for j, g := range grads[i].Weight.Data {
			m[j] += (1 - beta1) * (g - m[j])
			v[j] += (1 - beta2) * (g*g - v[j])
			w[j] -= lrt * m[j] / (math32.Sqrt(v[j]) + a.Epsilon)
		}
		// --- Bias ---
		m, v = a.m[i].Bias.Data, a.v[i].Bias.Data
		b := params[i].Bias.Data
		for j, g := range grads[i].Bias.Data {
			m[j] += (1 - beta1) * (g - m[j])
			v[j] += (1 - beta2) * (g*g - v[j])
			b[j] -= lrt * m[j] / (math32.Sqrt(v[j]) + a.Epsilon)
		}
	}
	return nil
}
