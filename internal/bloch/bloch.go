// Package bloch converts single-qubit density matrices into Bloch vectors.
package bloch

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormThreshold is the norm below which a vector is treated as zero and left
// unnormalized.
const NormThreshold = 1e-8

// Vector holds the Pauli expectation values (⟨X⟩, ⟨Y⟩, ⟨Z⟩).
type Vector struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Extract computes the Bloch vector of a 2×2 density matrix. Non-finite
// components become 0, and the result is scaled to unit length unless its
// norm is at most NormThreshold. Any other input shape yields the zero vector.
func Extract(rho mat.CMatrix) (out Vector) {
	// Typed-nil or malformed matrices panic inside At/Dims.
	defer func() {
		if recover() != nil {
			out = Vector{}
		}
	}()
	if rho == nil {
		return Vector{}
	}
	if r, c := rho.Dims(); r != 2 || c != 2 {
		return Vector{}
	}

	a, b := rho.At(0, 0), rho.At(0, 1)
	c, d := rho.At(1, 0), rho.At(1, 1)

	// Re tr(ρX) = Re(b + c), Re tr(ρY) = Re(i·b - i·c), Re tr(ρZ) = Re(a - d).
	v := []float64{
		real(b + c),
		real(1i*b - 1i*c),
		real(a - d),
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
		}
	}

	if n := floats.Norm(v, 2); n > NormThreshold {
		floats.Scale(1/n, v)
	}
	return Vector{X: v[0], Y: v[1], Z: v[2]}
}

// FromAmplitudes extracts the Bloch vector of the pure state α|0⟩ + β|1⟩.
func FromAmplitudes(alpha, beta complex128) Vector {
	rho := mat.NewCDense(2, 2, []complex128{
		alpha * cmplx.Conj(alpha), alpha * cmplx.Conj(beta),
		beta * cmplx.Conj(alpha), beta * cmplx.Conj(beta),
	})
	return Extract(rho)
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return floats.Norm([]float64{v.X, v.Y, v.Z}, 2)
}

// IsZero reports whether v is within NormThreshold of the origin.
func (v Vector) IsZero() bool {
	return v.Norm() <= NormThreshold
}

// Angles returns the polar angle θ from +Z and azimuth φ from +X.
// The zero vector maps to (0, 0).
func (v Vector) Angles() (theta, phi float64) {
	if v.IsZero() {
		return 0, 0
	}
	theta = math.Acos(max(-1, min(1, v.Z/v.Norm())))
	phi = math.Atan2(v.Y, v.X)
	return theta, phi
}
