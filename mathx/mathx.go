package mathx

import (
	"github.com/chewxy/math32"
	omath "github.com/sw965/omw/mathx"
)

func CentralDifference(plusY, minusY, h float32) float32 {
	return (plusY - minusY) / (2.0 * h)
}

func IsFinite(x float32) bool {
	return !omath.IsNaN(x) && !omath.IsInf(x, 0)
}

// FirstNonFinite returns the index of the first NaN or ±Inf in xs, or -1.
func FirstNonFinite(xs []float32) int {
	for i, x := range xs {
		if !IsFinite(x) {
			return i
		}
	}
	return -1
}

// Sanitize returns a copy of xs with every non-finite entry replaced by 0.
func Sanitize(xs []float32) []float32 {
	y := make([]float32, len(xs))
	for i, x := range xs {
		if IsFinite(x) {
			y[i] = x
		}
	}
	return y
}

// Softmax は -Inf の要素に厳密に 0 を割り当てる。有限な要素が1つも無い場合は nil を返す。
func Softmax(xs []float32) []float32 {
	maxX := math32.Inf(-1)
	for _, x := range xs {
		if x > maxX {
			maxX = x
		}
	}
	if math32.IsInf(maxX, -1) {
		return nil
	}

	y := make([]float32, len(xs))
	var sum float32
	for i, x := range xs {
		if math32.IsInf(x, -1) {
			continue
		}
		// オーバーフロー対策
		y[i] = math32.Exp(x - maxX)
		sum += y[i]
	}
	for i := range y {
		y[i] /= sum
	}
	return y
}

// LogSoftmax computes x_i - logsumexp(x) for finite xs.
func LogSoftmax(xs []float32) []float32 {
	maxX := xs[0]
	for _, x := range xs[1:] {
		if x > maxX {
			maxX = x
		}
	}
	var sum float32
	for _, x := range xs {
		sum += math32.Exp(x - maxX)
	}
	logSum := math32.Log(sum)

	// 大きな maxX を先に引いてから logSum を引き、桁落ちを避ける
	y := make([]float32, len(xs))
	for i, x := range xs {
		y[i] = (x - maxX) - logSum
	}
	return y
}

// Entropy returns -Σ p log p, treating 0 log 0 as 0.
func Entropy(ps []float32) float32 {
	var h float32
	for _, p := range ps {
		if p > 0 {
			h -= p * math32.Log(p)
		}
	}
	return h
}

func Clip(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
