package tensor2d

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/blas/blas32"
)

func NewZeros(rows, cols int) blas32.General {
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   make([]float32, rows*cols),
	}
}

func NewZerosLike(gen blas32.General) blas32.General {
	return NewZeros(gen.Rows, gen.Cols)
}

// NewXavierUniform はGlorotの一様分布 U(-limit, limit), limit = sqrt(6 / (fanIn + fanOut)) で初期化する。
// rowsが入力次元, colsが出力次元。
func NewXavierUniform(rows, cols int, rng *rand.Rand) blas32.General {
	gen := NewZeros(rows, cols)
	limit := XavierLimit(rows, cols)
	for i := range gen.Data {
		gen.Data[i] = float32((rng.Float64()*2.0 - 1.0) * limit)
	}
	return gen
}

func XavierLimit(fanIn, fanOut int) float64 {
	return math.Sqrt(6.0 / float64(fanIn+fanOut))
}

func size(gen blas32.General) int {
	return gen.Rows * gen.Cols
}

func Clone(gen blas32.General) blas32.General {
	return blas32.General{
		Rows:   gen.Rows,
		Cols:   gen.Cols,
		Stride: gen.Stride,
		Data:   slices.Clone(gen.Data),
	}
}

func ToVector(gen blas32.General) blas32.Vector {
	return blas32.Vector{
		N:    size(gen),
		Inc:  1,
		Data: gen.Data,
	}
}

func Scal(alpha float32, gen blas32.General) {
	blas32.Scal(alpha, ToVector(gen))
}

func Axpy(alpha float32, x, y blas32.General) {
	blas32.Axpy(alpha, ToVector(x), ToVector(y))
}
