package quantum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReducedQubitOfBellPairIsMixed(t *testing.T) {
	sv := NewStateVector(2)
	require.NoError(t, sv.ApplyGate(gate("H", 0)))
	require.NoError(t, sv.ApplyGate(controlled("CX", 0, 1)))

	for q := 0; q < 2; q++ {
		dm, err := ReducedQubit(sv, q)
		require.NoError(t, err)

		r, c := dm.Dims()
		require.Equal(t, 2, r)
		require.Equal(t, 2, c)
		assert.InDelta(t, 0.5, real(dm.At(0, 0)), eps)
		assert.InDelta(t, 0.5, real(dm.At(1, 1)), eps)
		assert.InDelta(t, 0, real(dm.At(0, 1)), eps)
		assert.InDelta(t, 0.5, dm.Purity(), eps)
		assert.Equal(t, []int{q}, dm.Qubits)
	}
}

func TestReducedQubitOfProductState(t *testing.T) {
	// |1>_2 ⊗ |0>_1 ⊗ |+>_0
	sv := NewStateVector(3)
	require.NoError(t, sv.ApplyGate(gate("H", 0)))
	require.NoError(t, sv.ApplyGate(gate("X", 2)))

	dm0, err := ReducedQubit(sv, 0)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0.5, real(dm0.At(i, j)), eps)
		}
	}

	dm1, err := ReducedQubit(sv, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1, real(dm1.At(0, 0)), eps)

	dm2, err := ReducedQubit(sv, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1, real(dm2.At(1, 1)), eps)
	assert.InDelta(t, 1, dm2.Purity(), eps)
}

func TestPartialTraceKeepsTwoQubits(t *testing.T) {
	sv := NewStateVector(3)
	require.NoError(t, sv.ApplyGate(gate("H", 0)))
	require.NoError(t, sv.ApplyGate(controlled("CX", 0, 2)))

	dm, err := PartialTrace(sv, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, dm.Qubits)

	r, _ := dm.Dims()
	require.Equal(t, 4, r)
	// Bell pair on (q0, q2): rows 0 and 3 of the kept space.
	assert.InDelta(t, 0.5, real(dm.At(0, 0)), eps)
	assert.InDelta(t, 0.5, real(dm.At(3, 3)), eps)
	assert.InDelta(t, 0.5, real(dm.At(0, 3)), eps)
	assert.InDelta(t, 1, real(dm.Trace()), eps)
	assert.InDelta(t, 1, dm.Purity(), eps)
}

func TestPartialTraceRejectsBadQubits(t *testing.T) {
	sv := NewStateVector(2)
	_, err := PartialTrace(sv, []int{2})
	assert.Error(t, err)
	_, err = PartialTrace(sv, []int{0, 0})
	assert.Error(t, err)
	_, err = ReducedQubit(sv, -1)
	assert.Error(t, err)
}

func TestPartialTraceOfZeroStateIsZero(t *testing.T) {
	sv := &StateVector{Amplitudes: make([]complex128, 4), NumQubits: 2}
	dm, err := ReducedQubit(sv, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dm.Purity())
	assert.Equal(t, complex(0, 0), dm.Trace())
}

func TestPartialTraceTraceIsOne(t *testing.T) {
	sv := NewStateVector(3)
	require.NoError(t, sv.ApplyGate(gate("RY", 0, 0.3)))
	require.NoError(t, sv.ApplyGate(controlled("CRX", 0, 1, 1.1)))
	require.NoError(t, sv.ApplyGate(gate("U3", 2, 0.4, 0.5, 0.6)))

	for q := 0; q < 3; q++ {
		dm, err := ReducedQubit(sv, q)
		require.NoError(t, err)
		assert.InDelta(t, 1, real(dm.Trace()), eps)
		assert.InDelta(t, 0, imag(dm.Trace()), eps)
		assert.LessOrEqual(t, dm.Purity(), 1+eps)
		assert.False(t, math.IsNaN(dm.Purity()))
	}
}
