package quantum

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtermbloch/internal/circuit"
)

const eps = 1e-9

func gate(gateType string, target int, params ...float64) circuit.Gate {
	c := circuit.New(8)
	c.AddParameterizedGate(gateType, target, 0, params)
	return c.Gates[0]
}

func controlled(gateType string, control, target int, params ...float64) circuit.Gate {
	c := circuit.New(8)
	c.AddParameterizedGate(gateType, target, 0, params, control)
	return c.Gates[0]
}

func assertAmps(t *testing.T, want []complex128, sv *StateVector) {
	t.Helper()
	require.Len(t, sv.Amplitudes, len(want))
	for i := range want {
		assert.InDelta(t, 0, cmplx.Abs(sv.Amplitudes[i]-want[i]), eps, "amplitude %d: got %v want %v", i, sv.Amplitudes[i], want[i])
	}
}

func TestBellState(t *testing.T) {
	sv := NewStateVector(2)
	require.NoError(t, sv.ApplyGate(gate("H", 0)))
	require.NoError(t, sv.ApplyGate(controlled("CX", 0, 1)))

	r := complex(1/math.Sqrt2, 0)
	assertAmps(t, []complex128{r, 0, 0, r}, sv)
}

func TestSingleQubitGates(t *testing.T) {
	r := complex(1/math.Sqrt2, 0)
	tests := []struct {
		name  string
		gates []circuit.Gate
		want  []complex128
	}{
		{"X", []circuit.Gate{gate("X", 0)}, []complex128{0, 1}},
		{"Y", []circuit.Gate{gate("Y", 0)}, []complex128{0, 1i}},
		{"HZH is X", []circuit.Gate{gate("H", 0), gate("Z", 0), gate("H", 0)}, []complex128{0, 1}},
		{"S on |1>", []circuit.Gate{gate("X", 0), gate("S", 0)}, []complex128{0, 1i}},
		{"T twice is S", []circuit.Gate{gate("X", 0), gate("T", 0), gate("T", 0)}, []complex128{0, 1i}},
		{"SX twice is X", []circuit.Gate{gate("SX", 0), gate("SX", 0)}, []complex128{0, 1}},
		{"SY twice is Y", []circuit.Gate{gate("SY", 0), gate("SY", 0)}, []complex128{0, 1i}},
		{"RX(pi)", []circuit.Gate{gate("RX", 0, math.Pi)}, []complex128{0, -1i}},
		{"RY(pi/2)", []circuit.Gate{gate("RY", 0, math.Pi/2)}, []complex128{r, r}},
		{"RZ(pi) on |+>", []circuit.Gate{gate("H", 0), gate("RZ", 0, math.Pi)}, []complex128{-1i * r, 1i * r}},
		{"P(pi) on |+>", []circuit.Gate{gate("H", 0), gate("P", 0, math.Pi)}, []complex128{r, -r}},
		{"U2(0,pi) is H", []circuit.Gate{gate("U2", 0, 0, math.Pi)}, []complex128{r, r}},
		{"U3(pi,0,pi) is X", []circuit.Gate{gate("U3", 0, math.Pi, 0, math.Pi)}, []complex128{0, 1}},
		{"I", []circuit.Gate{gate("I", 0)}, []complex128{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sv := NewStateVector(1)
			for _, g := range tt.gates {
				require.NoError(t, sv.ApplyGate(g))
			}
			assertAmps(t, tt.want, sv)
		})
	}
}

func TestDaggerUndoesGate(t *testing.T) {
	for _, name := range []string{"S", "T", "SX"} {
		t.Run(name, func(t *testing.T) {
			c := circuit.New(1)
			c.AddGate("H", 0, 0)
			c.AddGate(name, 0, 1)
			c.AddDaggerGate(name, 0, 2)

			sv := NewStateVector(1)
			for _, g := range c.Gates {
				require.NoError(t, sv.ApplyGate(g))
			}
			r := complex(1/math.Sqrt2, 0)
			assertAmps(t, []complex128{r, r}, sv)
		})
	}
}

func TestControlledGates(t *testing.T) {
	// |11> picks up the controlled phase, |10> does not.
	sv := NewStateVector(2)
	require.NoError(t, sv.ApplyGate(gate("H", 0)))
	require.NoError(t, sv.ApplyGate(gate("H", 1)))
	require.NoError(t, sv.ApplyGate(controlled("CP", 0, 1, math.Pi)))
	assertAmps(t, []complex128{0.5, 0.5, 0.5, -0.5}, sv)

	sv = NewStateVector(2)
	require.NoError(t, sv.ApplyGate(controlled("CY", 0, 1)))
	assertAmps(t, []complex128{1, 0, 0, 0}, sv)

	sv = NewStateVector(2)
	require.NoError(t, sv.ApplyGate(gate("X", 0)))
	require.NoError(t, sv.ApplyGate(controlled("CH", 0, 1)))
	r := complex(1/math.Sqrt2, 0)
	assertAmps(t, []complex128{0, r, 0, r}, sv)
}

func TestToffoliTruthTable(t *testing.T) {
	for input := 0; input < 8; input++ {
		sv := NewStateVector(3)
		for q := 0; q < 3; q++ {
			if input&(1<<q) != 0 {
				require.NoError(t, sv.ApplyGate(gate("X", q)))
			}
		}
		c := circuit.New(3)
		c.AddMultiControlGate("CCX", 2, 0, []int{0, 1})
		require.NoError(t, sv.ApplyGate(c.Gates[0]))

		want := input
		if input&0b011 == 0b011 {
			want ^= 0b100
		}
		assert.InDelta(t, 1, real(sv.Amplitudes[want]), eps, "input %03b", input)
	}
}

func TestSwap(t *testing.T) {
	sv := NewStateVector(2)
	require.NoError(t, sv.ApplyGate(gate("X", 0)))
	require.NoError(t, sv.ApplyGate(controlled("SWAP", 0, 1)))
	assertAmps(t, []complex128{0, 0, 1, 0}, sv)
}

func TestApplyGateErrors(t *testing.T) {
	sv := NewStateVector(1)
	assert.Error(t, sv.ApplyGate(gate("MEASURE", 0)))
	assert.Error(t, sv.ApplyGate(gate("X", 3)))
	assert.Error(t, sv.ApplyGate(gate("BOGUS", 0)))
}

func TestCollapseAndReset(t *testing.T) {
	sv := NewStateVector(2)
	require.NoError(t, sv.ApplyGate(gate("H", 0)))
	require.NoError(t, sv.ApplyGate(controlled("CX", 0, 1)))

	assert.InDelta(t, 0.5, sv.Prob1(0), eps)
	require.True(t, sv.Collapse(0, 1))
	assertAmps(t, []complex128{0, 0, 0, 1}, sv)
	assert.False(t, sv.Collapse(0, 0), "zero-probability outcome")

	sv.Reset(1, 1)
	assertAmps(t, []complex128{0, 1, 0, 0}, sv)

	// A reset asked to use an impossible outcome still lands on |0>.
	sv.Reset(0, 0)
	assertAmps(t, []complex128{1, 0, 0, 0}, sv)
}

func TestQubitProbabilities(t *testing.T) {
	sv := NewStateVector(2)
	require.NoError(t, sv.ApplyGate(gate("H", 0)))
	require.NoError(t, sv.ApplyGate(gate("X", 1)))

	probs := sv.QubitProbabilities()
	assert.InDelta(t, 0.5, probs[0].Prob0, eps)
	assert.InDelta(t, 0.5, probs[0].Prob1, eps)
	assert.InDelta(t, 0, probs[1].Prob0, eps)
	assert.InDelta(t, 1, probs[1].Prob1, eps)

	total := 0.0
	for _, p := range sv.Probabilities() {
		total += p
	}
	assert.InDelta(t, 1, total, eps)
}

func TestFirstNonFinite(t *testing.T) {
	sv := NewStateVector(2)
	assert.True(t, sv.IsFinite())

	sv.Amplitudes[2] = complex(math.NaN(), 0)
	idx, bad := sv.FirstNonFinite()
	assert.True(t, bad)
	assert.Equal(t, 2, idx)

	sv.Amplitudes[1] = complex(0, math.Inf(-1))
	idx, _ = sv.FirstNonFinite()
	assert.Equal(t, 1, idx)
	assert.False(t, sv.IsFinite())
}
