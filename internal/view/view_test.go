package view

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"qtermbloch/internal/bloch"
	"qtermbloch/internal/circuit"
	"qtermbloch/internal/quantum"
)

const tol = 1e-6

func newEngine() *quantum.Engine {
	return quantum.NewEngine(zerolog.Nop(), 2, 12)
}

func snapshotOf(t *testing.T, c *circuit.Circuit) *circuit.Snapshot {
	t.Helper()
	snap, err := circuit.NewSnapshot(c)
	require.NoError(t, err)
	return snap
}

func bellCircuit(measure bool) *circuit.Circuit {
	c := circuit.New(2)
	c.AddGate("H", 0, 0)
	c.AddGate("CX", 1, 1, 0)
	if measure {
		c.MeasureAll()
	}
	return c
}

func TestVisualizeBellUnmeasured(t *testing.T) {
	v, err := Visualize(context.Background(), newEngine(), snapshotOf(t, bellCircuit(false)), Options{})
	require.NoError(t, err)

	bv, ok := v.(*BlochView)
	require.True(t, ok, "want *BlochView, got %T", v)
	assert.Equal(t, KindBloch, bv.Kind())
	require.Len(t, bv.Qubits, 2)
	for i, q := range bv.Qubits {
		assert.Equal(t, i, q.Index)
		assert.True(t, q.Renderable)
		assert.InDelta(t, 0, q.Vector.Norm(), tol, "Bell marginals are maximally mixed")
	}
	assert.Empty(t, bv.Warnings())
}

func TestVisualizeBellMeasured(t *testing.T) {
	v, err := Visualize(context.Background(), newEngine(), snapshotOf(t, bellCircuit(true)), Options{Shots: 1024})
	require.NoError(t, err)

	mv, ok := v.(*MeasurementView)
	require.True(t, ok, "want *MeasurementView, got %T", v)
	assert.Equal(t, KindMeasurement, mv.Kind())
	assert.Equal(t, 1024, mv.Shots)
	assert.Equal(t, 1024, mv.Counts.Total())
	assert.NotContains(t, mv.Counts, "01")
	assert.NotContains(t, mv.Counts, "10")

	for _, o := range mv.Sorted() {
		assert.Contains(t, []string{"00", "11"}, o.Bits)
	}
}

func TestVisualizeSingleQubitStates(t *testing.T) {
	tests := []struct {
		name  string
		build func(c *circuit.Circuit)
		want  bloch.Vector
	}{
		{"identity", func(c *circuit.Circuit) {}, bloch.Vector{Z: 1}},
		{"X", func(c *circuit.Circuit) { c.AddGate("X", 0, 0) }, bloch.Vector{Z: -1}},
		{"H", func(c *circuit.Circuit) { c.AddGate("H", 0, 0) }, bloch.Vector{X: 1}},
		{"H then S", func(c *circuit.Circuit) {
			c.AddGate("H", 0, 0)
			c.AddGate("S", 0, 1)
		}, bloch.Vector{Y: 1}},
		{"RY(pi/2) then Sdg", func(c *circuit.Circuit) {
			c.AddParameterizedGate("RY", 0, 0, []float64{math.Pi / 2})
			c.AddDaggerGate("S", 0, 1)
		}, bloch.Vector{Y: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := circuit.New(1)
			tt.build(c)
			v, err := Visualize(context.Background(), newEngine(), snapshotOf(t, c), Options{})
			require.NoError(t, err)

			bv := v.(*BlochView)
			require.Len(t, bv.Qubits, 1)
			got := bv.Qubits[0].Vector
			assert.InDelta(t, tt.want.X, got.X, tol)
			assert.InDelta(t, tt.want.Y, got.Y, tol)
			assert.InDelta(t, tt.want.Z, got.Z, tol)
		})
	}
}

func TestSelectRejectsNonFiniteState(t *testing.T) {
	snap := snapshotOf(t, circuit.New(2))
	sv := quantum.NewStateVector(2)
	sv.Amplitudes[3] = complex(math.NaN(), 0)

	v, err := Select(snap, &quantum.Result{State: sv}, newEngine())
	assert.Nil(t, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)

	var ise *InvalidStateError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, 3, ise.Index)
}

func TestSelectRejectsZeroState(t *testing.T) {
	snap := snapshotOf(t, circuit.New(2))
	sv := &quantum.StateVector{Amplitudes: make([]complex128, 4), NumQubits: 2}

	v, err := Select(snap, &quantum.Result{State: sv}, newEngine())
	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrInvalidState)

	var ise *InvalidStateError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, -1, ise.Index)
}

func TestSelectRejectsWidthMismatch(t *testing.T) {
	snap := snapshotOf(t, circuit.New(3))
	_, err := Select(snap, &quantum.Result{State: quantum.NewStateVector(2)}, newEngine())
	assert.Error(t, err)
}

// deadTracer reports a zero reduced matrix for every qubit.
type deadTracer struct{}

func (deadTracer) PartialTrace(*quantum.StateVector, int) (mat.CMatrix, error) {
	return mat.NewCDense(2, 2, nil), nil
}

func TestSelectFlagsDegenerateQubits(t *testing.T) {
	snap := snapshotOf(t, circuit.New(2))

	v, err := Select(snap, &quantum.Result{State: quantum.NewStateVector(2)}, deadTracer{})
	require.NoError(t, err)

	bv := v.(*BlochView)
	require.Len(t, bv.Qubits, 2)
	for _, q := range bv.Qubits {
		assert.False(t, q.Renderable)
		require.NotNil(t, q.Warning)
		assert.Equal(t, q.Index, q.Warning.Qubit)
		assert.Equal(t, bloch.Vector{}, q.Vector)
	}
	assert.Len(t, bv.Warnings(), 2)
}

// oneDeadQubit reports a zero matrix for a single qubit and delegates the rest.
type oneDeadQubit struct {
	Tracer
	dead int
}

func (o oneDeadQubit) PartialTrace(sv *quantum.StateVector, keep int) (mat.CMatrix, error) {
	if keep == o.dead {
		return mat.NewCDense(2, 2, nil), nil
	}
	return o.Tracer.PartialTrace(sv, keep)
}

func TestDegenerateQubitIsIsolated(t *testing.T) {
	c := circuit.New(3)
	c.AddGate("X", 0, 0)
	c.AddGate("X", 2, 0)
	snap := snapshotOf(t, c)

	e := newEngine()
	res, err := e.Execute(context.Background(), snap, quantum.ExecOptions{})
	require.NoError(t, err)

	v, err := Select(snap, res, oneDeadQubit{Tracer: e, dead: 1})
	require.NoError(t, err)

	bv := v.(*BlochView)
	assert.True(t, bv.Qubits[0].Renderable)
	assert.InDelta(t, -1, bv.Qubits[0].Vector.Z, tol)
	assert.False(t, bv.Qubits[1].Renderable)
	assert.True(t, bv.Qubits[2].Renderable)
	assert.InDelta(t, -1, bv.Qubits[2].Vector.Z, tol)
	require.Len(t, bv.Warnings(), 1)
	assert.Equal(t, 1, bv.Warnings()[0].Qubit)
}

type failingTracer struct{}

func (failingTracer) PartialTrace(*quantum.StateVector, int) (mat.CMatrix, error) {
	return nil, quantum.ErrSimulation
}

func TestSelectPropagatesTracerFailure(t *testing.T) {
	snap := snapshotOf(t, circuit.New(1))
	_, err := Select(snap, &quantum.Result{State: quantum.NewStateVector(1)}, failingTracer{})
	assert.ErrorIs(t, err, quantum.ErrSimulation)
}

func TestSelectFollowsSnapshotClassification(t *testing.T) {
	measured := snapshotOf(t, bellCircuit(true))
	unmeasured := snapshotOf(t, bellCircuit(false))
	e := newEngine()

	// Results that do not match the classification are rejected, never reinterpreted.
	_, err := Select(measured, &quantum.Result{State: quantum.NewStateVector(2)}, e)
	assert.Error(t, err)
	_, err = Select(unmeasured, &quantum.Result{Counts: quantum.Counts{"00": 1}}, e)
	assert.Error(t, err)
	_, err = Select(unmeasured, nil, e)
	assert.Error(t, err)
}

func TestVisualizeConcurrentCallers(t *testing.T) {
	e := newEngine()
	snap := snapshotOf(t, bellCircuit(false))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Visualize(context.Background(), e, snap, Options{})
			if err != nil {
				errs <- err
				return
			}
			if len(v.(*BlochView).Qubits) != 2 {
				errs <- errors.New("wrong qubit count")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestVisualizeSurfacesEngineErrors(t *testing.T) {
	c := circuit.New(13)
	c.AddGate("H", 0, 0)
	_, err := Visualize(context.Background(), newEngine(), snapshotOf(t, c), Options{})
	assert.ErrorIs(t, err, quantum.ErrSimulation)
}
