package circuit

import "slices"

// Operation kinds that are not unitary gates.
const (
	Measure = "MEASURE"
	Reset   = "RESET"
	Barrier = "BARRIER"
	Noise   = "NOISE"
	MCX     = "MCX" // measure source, then X on target when the outcome is 1
)

// Noise channel names carried by NOISE operations.
const (
	NoiseDepolarizing     = "depolarizing"
	NoiseBitFlip          = "bit_flip"
	NoisePhaseFlip        = "phase_flip"
	NoiseAmplitudeDamping = "amplitude_damping"
	NoisePhaseDamping     = "phase_damping"
)

// NoiseKinds lists every supported noise channel.
var NoiseKinds = []string{
	NoiseDepolarizing,
	NoiseBitFlip,
	NoisePhaseFlip,
	NoiseAmplitudeDamping,
	NoisePhaseDamping,
}

// gateSpec describes the shape of a gate type.
type gateSpec struct {
	qubits int // total qubits including controls
	params int
}

var gateSpecs = map[string]gateSpec{
	"I": {1, 0}, "H": {1, 0}, "X": {1, 0}, "Y": {1, 0}, "Z": {1, 0},
	"S": {1, 0}, "T": {1, 0}, "SX": {1, 0}, "SY": {1, 0},
	"RX": {1, 1}, "RY": {1, 1}, "RZ": {1, 1}, "P": {1, 1}, "U1": {1, 1},
	"U2": {1, 2}, "U3": {1, 3},
	"CX": {2, 0}, "CY": {2, 0}, "CZ": {2, 0}, "CH": {2, 0}, "SWAP": {2, 0},
	"CRX": {2, 1}, "CRY": {2, 1}, "CRZ": {2, 1}, "CP": {2, 1}, "CU1": {2, 1},
	"CCX": {3, 0},
	Measure: {1, 0}, Reset: {1, 0}, Noise: {1, 0}, MCX: {2, 0},
}

// daggerable gates accept the IsDagger flag.
var daggerable = map[string]bool{"S": true, "T": true, "SX": true}

// aliases maps QASM spellings onto canonical gate types.
var aliases = map[string]string{
	"ID":      "I",
	"CNOT":    "CX",
	"TOFFOLI": "CCX",
	"PHASE":   "P",
	"CPHASE":  "CP",
}

// KnownGate reports whether gateType names a supported operation.
func KnownGate(gateType string) bool {
	_, ok := gateSpecs[gateType]
	return ok || gateType == Barrier
}

// ParamCount returns how many parameters a gate type takes.
func ParamCount(gateType string) int {
	return gateSpecs[gateType].params
}

// QubitCount returns how many qubits a gate type acts on, controls included.
// MCX counts its measured source.
func QubitCount(gateType string) int {
	return gateSpecs[gateType].qubits
}

// canonicalType resolves aliases.
func canonicalType(gateType string) string {
	if c, ok := aliases[gateType]; ok {
		return c
	}
	return gateType
}

// Gate represents a quantum gate placed on the circuit.
type Gate struct {
	Type             string
	Target           int
	Control          int       // -1 if not a controlled gate
	Controls         []int     // Multiple control qubits (for CCX/Toffoli)
	MeasureSource    int       // -1 if not a measurement-controlled gate
	Cbit             int       // classical bit written by MEASURE/MCX, -1 otherwise
	Step             int       // position in circuit timeline
	Params           []float64 // Parameters for parameterized gates
	IsDagger         bool
	IsReset          bool
	ClassicalControl int // -1 if not classically controlled, else classical bit index
	IsNoise          bool
	NoiseType        string
}

func newGate(gateType string, target, step int) Gate {
	return Gate{
		Type:             gateType,
		Target:           target,
		Control:          -1,
		MeasureSource:    -1,
		Cbit:             -1,
		Step:             step,
		ClassicalControl: -1,
	}
}

// Qubits returns every qubit the gate touches, target first.
// Barriers span all qubits and return nil.
func (g Gate) Qubits() []int {
	if g.Type == Barrier {
		return nil
	}
	qubits := []int{g.Target}
	if g.Control >= 0 {
		qubits = append(qubits, g.Control)
	}
	qubits = append(qubits, g.Controls...)
	if g.MeasureSource >= 0 {
		qubits = append(qubits, g.MeasureSource)
	}
	return qubits
}

// References reports whether the gate touches the given qubit.
func (g Gate) References(qubit int) bool {
	return slices.Contains(g.Qubits(), qubit)
}

// IsMeasurement reports whether the gate collapses a qubit.
func (g Gate) IsMeasurement() bool {
	return g.Type == Measure || g.MeasureSource >= 0
}

// IsMultiQubit reports whether the gate spans more than one qubit.
func (g Gate) IsMultiQubit() bool {
	return g.Control >= 0 || len(g.Controls) > 0 || g.MeasureSource >= 0
}

// clone returns a deep copy of the gate.
func (g Gate) clone() Gate {
	g.Controls = slices.Clone(g.Controls)
	g.Params = slices.Clone(g.Params)
	return g
}
