package vector

import (
	"slices"

	"gonum.org/v1/gonum/blas/blas32"
)

func NewZeros(n int) blas32.Vector {
	return blas32.Vector{
		N:    n,
		Inc:  1,
		Data: make([]float32, n),
	}
}

func NewZerosLike(vec blas32.Vector) blas32.Vector {
	return NewZeros(vec.N)
}

// Of wraps data without copying it.
func Of(data []float32) blas32.Vector {
	return blas32.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

func Clone(vec blas32.Vector) blas32.Vector {
	return blas32.Vector{
		N:    vec.N,
		Inc:  vec.Inc,
		Data: slices.Clone(vec.Data),
	}
}

// Sum returns x + y as a new vector.
func Sum(x, y blas32.Vector) blas32.Vector {
	z := Clone(y)
	blas32.Axpy(1.0, x, z)
	return z
}

func Nrm2(vec blas32.Vector) float32 {
	if vec.N == 0 {
		return 0.0
	}
	return blas32.Nrm2(vec)
}
