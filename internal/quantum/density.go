package quantum

import (
	"fmt"
	"math/cmplx"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// DensityMatrix is a reduced density operator over Qubits, with Qubits[k]
// mapped to bit k of the row and column index.
type DensityMatrix struct {
	*mat.CDense
	Qubits []int
}

// PartialTrace traces the qubits in traceOut out of |ψ⟩⟨ψ| and returns the
// density matrix of the remaining qubits in ascending order.
func PartialTrace(sv *StateVector, traceOut []int) (*DensityMatrix, error) {
	traced := make([]bool, sv.NumQubits)
	for _, q := range traceOut {
		if q < 0 || q >= sv.NumQubits {
			return nil, fmt.Errorf("trace qubit %d out of range [0, %d)", q, sv.NumQubits)
		}
		if traced[q] {
			return nil, fmt.Errorf("trace qubit %d listed twice", q)
		}
		traced[q] = true
	}

	var kept, gone []int
	for q, t := range traced {
		if t {
			gone = append(gone, q)
		} else {
			kept = append(kept, q)
		}
	}

	dim := 1 << len(kept)
	rho := mat.NewCDense(dim, dim, nil)
	for env := 0; env < 1<<len(gone); env++ {
		base := scatter(env, gone)
		for r := 0; r < dim; r++ {
			ar := sv.Amplitudes[base|scatter(r, kept)]
			if ar == 0 {
				continue
			}
			for c := 0; c < dim; c++ {
				ac := sv.Amplitudes[base|scatter(c, kept)]
				rho.Set(r, c, rho.At(r, c)+ar*cmplx.Conj(ac))
			}
		}
	}
	return &DensityMatrix{CDense: rho, Qubits: kept}, nil
}

// ReducedQubit returns the 2×2 density matrix of qubit q.
func ReducedQubit(sv *StateVector, q int) (*DensityMatrix, error) {
	if q < 0 || q >= sv.NumQubits {
		return nil, fmt.Errorf("qubit %d out of range [0, %d)", q, sv.NumQubits)
	}
	others := slices.DeleteFunc(seq(sv.NumQubits), func(i int) bool { return i == q })
	return PartialTrace(sv, others)
}

// Trace returns tr(ρ).
func (d *DensityMatrix) Trace() complex128 {
	r, _ := d.Dims()
	var t complex128
	for i := range r {
		t += d.At(i, i)
	}
	return t
}

// Purity returns tr(ρ²), which is 1 for a pure state.
func (d *DensityMatrix) Purity() float64 {
	r, c := d.Dims()
	p := 0.0
	for i := range r {
		for j := range c {
			v := d.At(i, j)
			p += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return p
}

// scatter spreads the low bits of v onto the given qubit positions.
func scatter(v int, qubits []int) int {
	out := 0
	for k, q := range qubits {
		if v&(1<<k) != 0 {
			out |= 1 << q
		}
	}
	return out
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
