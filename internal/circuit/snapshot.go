package circuit

import "slices"

// Classification tags a snapshot as carrying measurements or not.
type Classification int

const (
	Unmeasured Classification = iota
	Measured
)

func (c Classification) String() string {
	if c == Measured {
		return "measured"
	}
	return "unmeasured"
}

// Snapshot is an immutable, validated copy of a circuit. Its classification
// is computed once at construction; edits require a new snapshot.
type Snapshot struct {
	numQubits int
	gates     []Gate
	class     Classification
	qasm      string
}

// NewSnapshot validates c and captures a deep copy of it.
func NewSnapshot(c *Circuit) (*Snapshot, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cp := c.Clone()
	s := &Snapshot{
		numQubits: cp.NumQubits,
		gates:     cp.Ordered(),
		qasm:      cp.ToQASM(),
	}
	if cp.HasMeasurement() {
		s.class = Measured
	}
	return s, nil
}

func (s *Snapshot) NumQubits() int { return s.numQubits }

// Gates returns a copy of the operations in execution order.
func (s *Snapshot) Gates() []Gate {
	out := make([]Gate, len(s.gates))
	for i, g := range s.gates {
		out[i] = g.clone()
	}
	return out
}

func (s *Snapshot) Classification() Classification { return s.class }

func (s *Snapshot) Measured() bool { return s.class == Measured }

func (s *Snapshot) QASM() string { return s.qasm }

// NumCbits returns the classical register width the snapshot writes.
func (s *Snapshot) NumCbits() int {
	highest := -1
	for _, g := range s.gates {
		highest = max(highest, g.Cbit, g.ClassicalControl)
	}
	return highest + 1
}

// Circuit returns an editable copy of the captured circuit.
func (s *Snapshot) Circuit() *Circuit {
	c := &Circuit{NumQubits: s.numQubits, Gates: s.Gates()}
	for _, g := range c.Gates {
		c.MaxSteps = max(c.MaxSteps, g.Step+1)
	}
	return c
}

// Has reports whether any operation satisfies pred.
func (s *Snapshot) Has(pred func(Gate) bool) bool {
	return slices.ContainsFunc(s.gates, pred)
}
