// Package quantum is the statevector simulator behind the circuit views:
// gate kernels, partial trace, noise channels and shot sampling.
package quantum

import (
	"fmt"
	"math"
	"math/cmplx"

	"qtermbloch/internal/circuit"
)

// matrix2 is a single-qubit operator in row-major order: {{a, b}, {c, d}}.
type matrix2 [2][2]complex128

var (
	identity = matrix2{{1, 0}, {0, 1}}
	pauliX   = matrix2{{0, 1}, {1, 0}}
	pauliY   = matrix2{{0, -1i}, {1i, 0}}
	pauliZ   = matrix2{{1, 0}, {0, -1}}
	hadamard = matrix2{{math.Sqrt2 / 2, math.Sqrt2 / 2}, {math.Sqrt2 / 2, -math.Sqrt2 / 2}}
)

func (m matrix2) dagger() matrix2 {
	return matrix2{
		{cmplx.Conj(m[0][0]), cmplx.Conj(m[1][0])},
		{cmplx.Conj(m[0][1]), cmplx.Conj(m[1][1])},
	}
}

func phaseMatrix(lambda float64) matrix2 {
	return matrix2{{1, 0}, {0, cmplx.Exp(complex(0, lambda))}}
}

func u3Matrix(theta, phi, lambda float64) matrix2 {
	c, s := math.Cos(theta/2), math.Sin(theta/2)
	return matrix2{
		{complex(c, 0), -cmplx.Exp(complex(0, lambda)) * complex(s, 0)},
		{cmplx.Exp(complex(0, phi)) * complex(s, 0), cmplx.Exp(complex(0, phi+lambda)) * complex(c, 0)},
	}
}

// StateVector holds 2^n amplitudes. Qubit q is bit q of the basis index.
type StateVector struct {
	Amplitudes []complex128
	NumQubits  int
}

// NewStateVector returns |0...0⟩ over numQubits qubits.
func NewStateVector(numQubits int) *StateVector {
	n := 1 << numQubits
	amps := make([]complex128, n)
	amps[0] = 1
	return &StateVector{Amplitudes: amps, NumQubits: numQubits}
}

func (s *StateVector) Clone() *StateVector {
	amps := make([]complex128, len(s.Amplitudes))
	copy(amps, s.Amplitudes)
	return &StateVector{Amplitudes: amps, NumQubits: s.NumQubits}
}

// gateMatrix returns the single-qubit operator a gate type applies to its
// target. Controlled types return the operator on the target.
func gateMatrix(gateType string, params []float64, dagger bool) (matrix2, error) {
	param := func(i int) float64 {
		if i < len(params) {
			return params[i]
		}
		return 0
	}

	var m matrix2
	switch gateType {
	case "I":
		m = identity
	case "H", "CH":
		m = hadamard
	case "X", "CX", "CCX":
		m = pauliX
	case "Y", "CY":
		m = pauliY
	case "Z", "CZ":
		m = pauliZ
	case "S":
		m = phaseMatrix(math.Pi / 2)
	case "T":
		m = phaseMatrix(math.Pi / 4)
	case "SX":
		m = matrix2{{0.5 + 0.5i, 0.5 - 0.5i}, {0.5 - 0.5i, 0.5 + 0.5i}}
	case "SY":
		m = matrix2{{0.5 + 0.5i, -0.5 - 0.5i}, {0.5 + 0.5i, 0.5 + 0.5i}}
	case "RX", "CRX":
		c, s := math.Cos(param(0)/2), math.Sin(param(0)/2)
		m = matrix2{{complex(c, 0), complex(0, -s)}, {complex(0, -s), complex(c, 0)}}
	case "RY", "CRY":
		c, s := math.Cos(param(0)/2), math.Sin(param(0)/2)
		m = matrix2{{complex(c, 0), complex(-s, 0)}, {complex(s, 0), complex(c, 0)}}
	case "RZ", "CRZ":
		phase := cmplx.Exp(complex(0, param(0)/2))
		m = matrix2{{cmplx.Conj(phase), 0}, {0, phase}}
	case "P", "U1", "CP", "CU1":
		m = phaseMatrix(param(0))
	case "U2":
		m = u3Matrix(math.Pi/2, param(0), param(1))
	case "U3":
		m = u3Matrix(param(0), param(1), param(2))
	default:
		return matrix2{}, fmt.Errorf("unsupported gate %q", gateType)
	}
	if dagger {
		m = m.dagger()
	}
	return m, nil
}

// ApplyGate applies a unitary gate. Measurement, reset, noise and barrier
// operations are not unitary and are rejected.
func (s *StateVector) ApplyGate(g circuit.Gate) error {
	for _, q := range g.Qubits() {
		if q < 0 || q >= s.NumQubits {
			return fmt.Errorf("%s: qubit %d out of range", g.Type, q)
		}
	}
	if g.Type == "SWAP" {
		if g.Control < 0 {
			return fmt.Errorf("SWAP needs two qubits")
		}
		s.applySWAP(g.Control, g.Target)
		return nil
	}

	m, err := gateMatrix(g.Type, g.Params, g.IsDagger)
	if err != nil {
		return err
	}
	controls := g.Controls
	if g.Control >= 0 {
		controls = append([]int{g.Control}, controls...)
	}
	s.apply(g.Target, m, controls...)
	return nil
}

// apply multiplies m onto qubit q in every basis pair whose control bits are all set.
func (s *StateVector) apply(q int, m matrix2, controls ...int) {
	n := len(s.Amplitudes)
	bit := 1 << q
	mask := 0
	for _, c := range controls {
		mask |= 1 << c
	}
	for i := 0; i < n; i++ {
		if i&bit != 0 || i&mask != mask {
			continue
		}
		j := i | bit
		a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
		s.Amplitudes[i] = m[0][0]*a0 + m[0][1]*a1
		s.Amplitudes[j] = m[1][0]*a0 + m[1][1]*a1
	}
}

func (s *StateVector) applySWAP(q1, q2 int) {
	n := len(s.Amplitudes)
	bit1 := 1 << q1
	bit2 := 1 << q2
	for i := 0; i < n; i++ {
		if i&bit1 != 0 && i&bit2 == 0 {
			j := (i & ^bit1) | bit2
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

// Prob1 returns the probability of reading 1 on qubit q.
func (s *StateVector) Prob1(q int) float64 {
	bit := 1 << q
	p := 0.0
	for i, a := range s.Amplitudes {
		if i&bit != 0 {
			p += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	return p
}

// Collapse projects qubit q onto outcome and renormalizes. It returns false
// when the outcome has zero probability, leaving the state unchanged.
func (s *StateVector) Collapse(q, outcome int) bool {
	bit := 1 << q
	keep := 0
	if outcome == 1 {
		keep = bit
	}
	norm := 0.0
	for i, a := range s.Amplitudes {
		if i&bit == keep {
			norm += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	if norm == 0 {
		return false
	}
	scale := complex(1/math.Sqrt(norm), 0)
	for i := range s.Amplitudes {
		if i&bit == keep {
			s.Amplitudes[i] *= scale
		} else {
			s.Amplitudes[i] = 0
		}
	}
	return true
}

// Reset returns qubit q to |0⟩ given the outcome it collapsed to.
func (s *StateVector) Reset(q, outcome int) {
	if !s.Collapse(q, outcome) {
		s.Collapse(q, 1-outcome)
		outcome = 1 - outcome
	}
	if outcome == 1 {
		s.apply(q, pauliX)
	}
}

// Probabilities returns |amplitude|² for every basis state.
func (s *StateVector) Probabilities() []float64 {
	probs := make([]float64, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs
}

type QubitProbability struct {
	Prob0 float64
	Prob1 float64
}

// QubitProbabilities returns the marginal outcome probabilities of each qubit.
func (s *StateVector) QubitProbabilities() []QubitProbability {
	probs := make([]QubitProbability, s.NumQubits)
	for i, a := range s.Amplitudes {
		prob := real(a)*real(a) + imag(a)*imag(a)
		for q := 0; q < s.NumQubits; q++ {
			if i&(1<<q) != 0 {
				probs[q].Prob1 += prob
			} else {
				probs[q].Prob0 += prob
			}
		}
	}
	return probs
}

// FirstNonFinite returns the index of the first NaN or infinite amplitude.
func (s *StateVector) FirstNonFinite() (int, bool) {
	for i, a := range s.Amplitudes {
		if cmplx.IsNaN(a) || cmplx.IsInf(a) {
			return i, true
		}
	}
	return -1, false
}

// IsFinite reports whether every amplitude is finite.
func (s *StateVector) IsFinite() bool {
	_, bad := s.FirstNonFinite()
	return !bad
}
