// Package view decides how an executed circuit is presented: classical
// counts for measured circuits, one Bloch vector per qubit otherwise.
package view

import (
	"context"
	"errors"
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"qtermbloch/internal/bloch"
	"qtermbloch/internal/circuit"
	"qtermbloch/internal/quantum"
)

// Kind names a view variant.
type Kind string

const (
	KindMeasurement Kind = "measurement"
	KindBloch       Kind = "bloch"
)

// ZeroTolerance bounds every entry of a reduced density matrix treated as
// numerically zero.
const ZeroTolerance = 1e-12

// ErrInvalidState is matched by every *InvalidStateError.
var ErrInvalidState = errors.New("invalid quantum state")

// InvalidStateError reports a statevector with a non-finite amplitude, or
// one with zero norm (Index -1). No Bloch vectors are produced for such a
// state.
type InvalidStateError struct {
	Index     int
	Amplitude complex128
}

func (e *InvalidStateError) Error() string {
	if e.Index < 0 {
		return "invalid quantum state: statevector has zero norm"
	}
	return fmt.Sprintf("invalid quantum state: amplitude %d is %v", e.Index, e.Amplitude)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// DegenerateQubitWarning marks a qubit whose reduced density matrix is
// numerically zero. It does not fail the view.
type DegenerateQubitWarning struct {
	Qubit int
}

func (w *DegenerateQubitWarning) Error() string {
	return fmt.Sprintf("qubit %d has a degenerate reduced state and cannot be rendered", w.Qubit)
}

// View is either a *MeasurementView or a *BlochView.
type View interface {
	Kind() Kind
}

// MeasurementView carries shot counts keyed by classical bitstring.
type MeasurementView struct {
	Counts quantum.Counts `json:"counts" msgpack:"counts"`
	Shots  int            `json:"shots" msgpack:"shots"`
}

func (v *MeasurementView) Kind() Kind { return KindMeasurement }

// Outcome is one bitstring and its count.
type Outcome struct {
	Bits  string
	Count int
}

// Sorted returns the outcomes in bitstring order.
func (v *MeasurementView) Sorted() []Outcome {
	out := make([]Outcome, 0, len(v.Counts))
	for bits, n := range v.Counts {
		out = append(out, Outcome{Bits: bits, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bits < out[j].Bits })
	return out
}

// QubitBloch is the Bloch vector of one qubit. Warning is set when the qubit
// is not renderable.
type QubitBloch struct {
	Index      int                     `json:"index" msgpack:"index"`
	Vector     bloch.Vector            `json:"vector" msgpack:"vector"`
	Renderable bool                    `json:"renderable" msgpack:"renderable"`
	Warning    *DegenerateQubitWarning `json:"-" msgpack:"-"`
}

// BlochView holds one entry per qubit in index order.
type BlochView struct {
	Qubits []QubitBloch `json:"qubits" msgpack:"qubits"`
}

func (v *BlochView) Kind() Kind { return KindBloch }

// Warnings returns the per-qubit warnings, if any.
func (v *BlochView) Warnings() []*DegenerateQubitWarning {
	var out []*DegenerateQubitWarning
	for _, q := range v.Qubits {
		if q.Warning != nil {
			out = append(out, q.Warning)
		}
	}
	return out
}

// Tracer reduces a statevector to the density matrix of a single qubit.
type Tracer interface {
	PartialTrace(sv *quantum.StateVector, keep int) (mat.CMatrix, error)
}

// Select builds the view for an executed snapshot. The snapshot's cached
// classification decides the variant; res must carry counts for measured
// snapshots and a statevector otherwise.
func Select(snap *circuit.Snapshot, res *quantum.Result, tr Tracer) (View, error) {
	if res == nil {
		return nil, fmt.Errorf("no execution result")
	}
	if snap.Measured() {
		if res.Counts == nil {
			return nil, fmt.Errorf("measured circuit executed without counts")
		}
		return &MeasurementView{Counts: res.Counts, Shots: res.Shots}, nil
	}
	if res.State == nil {
		return nil, fmt.Errorf("unmeasured circuit executed without a statevector")
	}
	if res.State.NumQubits != snap.NumQubits() {
		return nil, fmt.Errorf("statevector has %d qubits, circuit has %d", res.State.NumQubits, snap.NumQubits())
	}
	return blochView(res.State, tr)
}

func blochView(sv *quantum.StateVector, tr Tracer) (*BlochView, error) {
	if idx, bad := sv.FirstNonFinite(); bad {
		return nil, &InvalidStateError{Index: idx, Amplitude: sv.Amplitudes[idx]}
	}
	if floats.Sum(sv.Probabilities()) <= ZeroTolerance {
		return nil, &InvalidStateError{Index: -1}
	}

	v := &BlochView{Qubits: make([]QubitBloch, sv.NumQubits)}
	for q := 0; q < sv.NumQubits; q++ {
		rho, err := tr.PartialTrace(sv, q)
		if err != nil {
			return nil, fmt.Errorf("qubit %d: %w", q, err)
		}
		qb := QubitBloch{Index: q, Vector: bloch.Extract(rho), Renderable: true}
		if isZeroMatrix(rho) {
			qb.Renderable = false
			qb.Warning = &DegenerateQubitWarning{Qubit: q}
		}
		v.Qubits[q] = qb
	}
	return v, nil
}

func isZeroMatrix(m mat.CMatrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if cmplx.Abs(m.At(i, j)) > ZeroTolerance {
				return false
			}
		}
	}
	return true
}

// Options configure Visualize.
type Options struct {
	Shots int
	Noise *quantum.NoiseModel
}

// Visualize executes snap on the engine and selects its view.
func Visualize(ctx context.Context, e *quantum.Engine, snap *circuit.Snapshot, opts Options) (View, error) {
	res, err := e.Execute(ctx, snap, quantum.ExecOptions{Shots: opts.Shots, Noise: opts.Noise})
	if err != nil {
		return nil, err
	}
	v, err := Select(snap, res, e)
	observe(v, err)
	if err != nil {
		return nil, err
	}
	return v, nil
}
