// Package circuit holds the circuit model shared by the editor, the
// simulation engine and the HTTP API: gates, QASM 2.0 codec, validation and
// immutable snapshots.
package circuit

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidCircuit is wrapped by every circuit-validation failure.
var ErrInvalidCircuit = errors.New("invalid circuit")

// MaxCbits bounds the classical bit space a circuit may address.
const MaxCbits = 64

// Circuit holds the quantum circuit state.
type Circuit struct {
	NumQubits int
	Gates     []Gate
	MaxSteps  int
}

// New returns an empty circuit over numQubits qubits.
func New(numQubits int) *Circuit {
	return &Circuit{NumQubits: numQubits}
}

func (c *Circuit) add(g Gate) {
	c.Gates = append(c.Gates, g)
	if g.Step >= c.MaxSteps {
		c.MaxSteps = g.Step + 1
	}
}

// AddGate appends a gate to the circuit. MEASURE writes the classical bit
// with the same index as its target.
func (c *Circuit) AddGate(gateType string, target, step int, control ...int) {
	g := newGate(gateType, target, step)
	if len(control) > 0 {
		g.Control = control[0]
	}
	if gateType == Measure {
		g.Cbit = target
	}
	c.add(g)
}

// AddMeasure appends a measurement of target into classical bit cbit.
func (c *Circuit) AddMeasure(target, step, cbit int) {
	g := newGate(Measure, target, step)
	g.Cbit = cbit
	c.add(g)
}

// AddParameterizedGate appends a parameterized gate to the circuit.
func (c *Circuit) AddParameterizedGate(gateType string, target, step int, params []float64, control ...int) {
	g := newGate(gateType, target, step)
	g.Params = params
	if len(control) > 0 {
		g.Control = control[0]
	}
	c.add(g)
}

// AddMultiControlGate appends a multi-controlled gate to the circuit.
func (c *Circuit) AddMultiControlGate(gateType string, target, step int, controls []int) {
	g := newGate(gateType, target, step)
	g.Controls = controls
	c.add(g)
}

// AddClassicalControlGate appends a gate applied only when classical bit cbit is 1.
func (c *Circuit) AddClassicalControlGate(gateType string, target, step, cbit int, params ...float64) {
	g := newGate(gateType, target, step)
	g.ClassicalControl = cbit
	g.Params = params
	c.add(g)
}

// AddDaggerGate appends a dagger (adjoint) gate to the circuit.
func (c *Circuit) AddDaggerGate(gateType string, target, step int) {
	g := newGate(gateType, target, step)
	g.IsDagger = true
	c.add(g)
}

// AddReset appends a reset to |0⟩.
func (c *Circuit) AddReset(target, step int) {
	g := newGate(Reset, target, step)
	g.IsReset = true
	c.add(g)
}

// AddNoise appends a noise channel acting on target.
func (c *Circuit) AddNoise(target, step int, noiseType string, params ...float64) {
	g := newGate(Noise, target, step)
	g.Params = params
	g.IsNoise = true
	g.NoiseType = noiseType
	c.add(g)
}

// AddMeasureControlGate appends a measurement of source feeding an X on target.
func (c *Circuit) AddMeasureControlGate(source, target, step int) {
	g := newGate(MCX, target, step)
	g.MeasureSource = source
	g.Cbit = source
	c.add(g)
}

// AddBarrier appends a barrier spanning all qubits at the given step.
func (c *Circuit) AddBarrier(step int) {
	c.Gates = slices.DeleteFunc(c.Gates, func(g Gate) bool {
		return g.Step == step && g.Type == Barrier
	})
	c.add(newGate(Barrier, -1, step))
}

// MeasureAll appends a measurement of every qubit after the last step,
// one step per qubit, writing classical bit q for qubit q.
func (c *Circuit) MeasureAll() {
	start := c.MaxSteps
	for q := range c.NumQubits {
		c.AddMeasure(q, start+q, q)
	}
}

// RemoveGateAt removes any gate at the given step and qubit.
// Also removes barriers at that step since they span all qubits.
func (c *Circuit) RemoveGateAt(step, qubit int) {
	c.Gates = slices.DeleteFunc(c.Gates, func(g Gate) bool {
		if g.Step != step {
			return false
		}
		return g.Type == Barrier || g.References(qubit)
	})
}

// RemoveGatesOnQubit removes all gates that reference the given qubit index.
func (c *Circuit) RemoveGatesOnQubit(qubit int) {
	c.Gates = slices.DeleteFunc(c.Gates, func(g Gate) bool {
		return g.References(qubit)
	})
}

// GetGateAt returns the gate at the given step and qubit, or nil.
func (c *Circuit) GetGateAt(step, qubit int) *Gate {
	for i := range c.Gates {
		g := &c.Gates[i]
		if g.Step == step && g.References(qubit) {
			return g
		}
	}
	return nil
}

// CanPlaceAt reports whether a gate using qubits can be placed at step.
// Single-qubit gates already there may be replaced; multi-qubit gates and
// barriers block placement.
func (c *Circuit) CanPlaceAt(step int, qubits []int) bool {
	for _, q := range qubits {
		g := c.GetGateAt(step, q)
		if g == nil {
			continue
		}
		if g.IsMultiQubit() {
			return false
		}
	}
	for _, g := range c.Gates {
		if g.Step == step && g.Type == Barrier {
			return false
		}
	}
	return true
}

// NumCbits returns the number of classical bits needed by measurements and
// classically-controlled gates. Returns 0 when none exist.
func (c *Circuit) NumCbits() int {
	highest := -1
	for _, g := range c.Gates {
		highest = max(highest, g.Cbit, g.ClassicalControl)
	}
	return highest + 1
}

// GetMeasureAtStep returns the qubit measured at the given step, or -1 if none.
func (c *Circuit) GetMeasureAtStep(step int) int {
	for _, g := range c.Gates {
		if g.Step != step {
			continue
		}
		if g.Type == Measure {
			return g.Target
		}
		if g.MeasureSource >= 0 {
			return g.MeasureSource
		}
	}
	return -1
}

// HasMeasurement reports whether any operation measures a qubit.
func (c *Circuit) HasMeasurement() bool {
	return slices.ContainsFunc(c.Gates, Gate.IsMeasurement)
}

// Ordered returns the gates sorted by step, keeping insertion order within a step.
func (c *Circuit) Ordered() []Gate {
	gates := slices.Clone(c.Gates)
	slices.SortStableFunc(gates, func(a, b Gate) int {
		return a.Step - b.Step
	})
	return gates
}

// Clone returns a deep copy of the circuit.
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{
		NumQubits: c.NumQubits,
		MaxSteps:  c.MaxSteps,
		Gates:     make([]Gate, len(c.Gates)),
	}
	for i, g := range c.Gates {
		out.Gates[i] = g.clone()
	}
	return out
}

// Validate checks that every gate is well formed for this circuit.
// All failures wrap ErrInvalidCircuit.
func (c *Circuit) Validate() error {
	if c.NumQubits <= 0 {
		return fmt.Errorf("%w: circuit has no qubits", ErrInvalidCircuit)
	}
	for i, g := range c.Gates {
		if err := c.validateGate(g); err != nil {
			return fmt.Errorf("%w: gate %d (%s at step %d): %v", ErrInvalidCircuit, i, g.Type, g.Step, err)
		}
	}
	return nil
}

func (c *Circuit) validateGate(g Gate) error {
	if g.Type == Barrier {
		return nil
	}
	spec, ok := gateSpecs[g.Type]
	if !ok {
		return fmt.Errorf("unknown gate type %q", g.Type)
	}

	qubits := g.Qubits()
	for _, q := range qubits {
		if q < 0 || q >= c.NumQubits {
			return fmt.Errorf("qubit %d out of range [0, %d)", q, c.NumQubits)
		}
	}
	if len(qubits) != spec.qubits {
		return fmt.Errorf("expects %d qubits, got %d", spec.qubits, len(qubits))
	}
	seen := make(map[int]bool, len(qubits))
	for _, q := range qubits {
		if seen[q] {
			return fmt.Errorf("qubit %d used twice", q)
		}
		seen[q] = true
	}

	if g.IsNoise {
		if !slices.Contains(NoiseKinds, g.NoiseType) {
			return fmt.Errorf("unknown noise channel %q", g.NoiseType)
		}
		if len(g.Params) != 1 {
			return fmt.Errorf("noise channel needs exactly one probability")
		}
		if p := g.Params[0]; math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("noise probability %g outside [0, 1]", p)
		}
		return nil
	}

	if len(g.Params) < spec.params {
		return fmt.Errorf("expects %d parameters, got %d", spec.params, len(g.Params))
	}
	for _, p := range g.Params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("non-finite parameter %g", p)
		}
	}
	if g.IsDagger && !daggerable[g.Type] {
		return fmt.Errorf("gate has no dagger form")
	}
	for _, bit := range []int{g.Cbit, g.ClassicalControl} {
		if bit < -1 || bit >= MaxCbits {
			return fmt.Errorf("classical bit %d out of range [0, %d)", bit, MaxCbits)
		}
	}
	return nil
}
