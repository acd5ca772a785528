package quantum

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"qtermbloch/internal/circuit"
)

// GateError attaches a single-qubit channel to gate types. It fires on every
// qubit the gate touches, after the gate. An empty Gates list matches every
// unitary gate.
type GateError struct {
	Channel     string   `json:"channel" msgpack:"channel"`
	Probability float64  `json:"probability" msgpack:"probability"`
	Gates       []string `json:"gates,omitempty" msgpack:"gates,omitempty"`
}

// NoiseModel describes gate errors and a symmetric readout bit-flip probability.
type NoiseModel struct {
	Errors  []GateError `json:"errors,omitempty" msgpack:"errors,omitempty"`
	Readout float64     `json:"readout,omitempty" msgpack:"readout,omitempty"`
}

// PresetNoise builds the classroom noise presets: a 1% bit flip after X,
// 2% depolarizing after H, X, Y and Z, and a 10% readout flip.
func PresetNoise(bitFlip, depolarizing, readout bool) *NoiseModel {
	m := &NoiseModel{}
	if bitFlip {
		m.Errors = append(m.Errors, GateError{Channel: circuit.NoiseBitFlip, Probability: 0.01, Gates: []string{"X"}})
	}
	if depolarizing {
		m.Errors = append(m.Errors, GateError{Channel: circuit.NoiseDepolarizing, Probability: 0.02, Gates: []string{"H", "X", "Y", "Z"}})
	}
	if readout {
		m.Readout = 0.1
	}
	return m
}

// Validate checks channel names, gate names and probabilities.
func (m *NoiseModel) Validate() error {
	if m == nil {
		return nil
	}
	if err := checkProbability(m.Readout); err != nil {
		return fmt.Errorf("readout: %w", err)
	}
	for i, e := range m.Errors {
		if !slices.Contains(circuit.NoiseKinds, e.Channel) {
			return fmt.Errorf("error %d: unknown channel %q", i, e.Channel)
		}
		if err := checkProbability(e.Probability); err != nil {
			return fmt.Errorf("error %d: %w", i, err)
		}
		for _, g := range e.Gates {
			if !circuit.KnownGate(strings.ToUpper(g)) {
				return fmt.Errorf("error %d: unknown gate %q", i, g)
			}
		}
	}
	return nil
}

func checkProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("probability %g outside [0, 1]", p)
	}
	return nil
}

// HasGateErrors reports whether any channel can fire during evolution.
func (m *NoiseModel) HasGateErrors() bool {
	if m == nil {
		return false
	}
	return slices.ContainsFunc(m.Errors, func(e GateError) bool { return e.Probability > 0 })
}

func (m *NoiseModel) readout() float64 {
	if m == nil {
		return 0
	}
	return m.Readout
}

// after returns the errors that fire after a gate of the given type.
func (m *NoiseModel) after(gateType string) []GateError {
	if m == nil {
		return nil
	}
	var out []GateError
	for _, e := range m.Errors {
		if e.Probability <= 0 {
			continue
		}
		if len(e.Gates) == 0 || slices.ContainsFunc(e.Gates, func(g string) bool { return strings.EqualFold(g, gateType) }) {
			out = append(out, e)
		}
	}
	return out
}

// krausOps returns the Kraus operators of a single-qubit channel.
func krausOps(channel string, p float64) ([]matrix2, error) {
	scale := func(m matrix2, f float64) matrix2 {
		c := complex(f, 0)
		return matrix2{{c * m[0][0], c * m[0][1]}, {c * m[1][0], c * m[1][1]}}
	}
	switch channel {
	case circuit.NoiseBitFlip:
		return []matrix2{scale(identity, math.Sqrt(1-p)), scale(pauliX, math.Sqrt(p))}, nil
	case circuit.NoisePhaseFlip:
		return []matrix2{scale(identity, math.Sqrt(1-p)), scale(pauliZ, math.Sqrt(p))}, nil
	case circuit.NoiseDepolarizing:
		// ρ → (1-p)ρ + p·I/2, i.e. each Pauli with probability p/4.
		k := math.Sqrt(p / 4)
		return []matrix2{
			scale(identity, math.Sqrt(1-3*p/4)),
			scale(pauliX, k),
			scale(pauliY, k),
			scale(pauliZ, k),
		}, nil
	case circuit.NoiseAmplitudeDamping:
		return []matrix2{
			{{1, 0}, {0, complex(math.Sqrt(1-p), 0)}},
			{{0, complex(math.Sqrt(p), 0)}, {0, 0}},
		}, nil
	case circuit.NoisePhaseDamping:
		return []matrix2{
			{{1, 0}, {0, complex(math.Sqrt(1-p), 0)}},
			{{0, 0}, {0, complex(math.Sqrt(p), 0)}},
		}, nil
	}
	return nil, fmt.Errorf("unknown noise channel %q", channel)
}

// applyChannel applies one stochastically chosen Kraus operator of the
// channel to qubit q and renormalizes.
func (s *StateVector) applyChannel(q int, channel string, p float64) error {
	if err := checkProbability(p); err != nil {
		return err
	}
	ops, err := krausOps(channel, p)
	if err != nil {
		return err
	}

	branches := make([]*StateVector, len(ops))
	weights := make([]float64, len(ops))
	total := 0.0
	for i, k := range ops {
		b := s.Clone()
		b.apply(q, k)
		branches[i] = b
		weights[i] = norm2(b.Amplitudes)
		total += weights[i]
	}
	if total == 0 {
		return nil
	}

	pick := int(distuv.NewCategorical(weights, nil).Rand())
	chosen := branches[pick]
	scale := complex(1/math.Sqrt(weights[pick]), 0)
	for i, a := range chosen.Amplitudes {
		s.Amplitudes[i] = a * scale
	}
	return nil
}

func norm2(amps []complex128) float64 {
	n := 0.0
	for _, a := range amps {
		n += real(a)*real(a) + imag(a)*imag(a)
	}
	return n
}
