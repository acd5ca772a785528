package circuit

import (
	"fmt"
	"strings"
)

// Op is one named operation in a gate list, e.g. {"gate": "cx", "target": 1, "control": 0}.
type Op struct {
	Gate     string    `json:"gate" msgpack:"gate"`
	Target   int       `json:"target" msgpack:"target"`
	Control  *int      `json:"control,omitempty" msgpack:"control,omitempty"`
	Controls []int     `json:"controls,omitempty" msgpack:"controls,omitempty"`
	Params   []float64 `json:"params,omitempty" msgpack:"params,omitempty"`
}

// Build constructs a circuit by appending ops one step at a time. When
// measure is set, every qubit is measured into the matching classical bit
// after the last op.
func Build(numQubits int, ops []Op, measure bool) (*Circuit, error) {
	c := New(numQubits)
	for i, op := range ops {
		name := strings.ToUpper(strings.TrimSpace(op.Gate))
		gateType := canonicalType(name)
		dagger := false
		if !KnownGate(gateType) && strings.HasSuffix(gateType, "DG") && daggerable[strings.TrimSuffix(gateType, "DG")] {
			gateType, dagger = strings.TrimSuffix(gateType, "DG"), true
		}

		switch gateType {
		case Barrier:
			c.AddBarrier(i)
			continue
		case Noise, MCX:
			return nil, fmt.Errorf("%w: op %d: %s cannot be built from a gate list", ErrInvalidCircuit, i, op.Gate)
		case Reset:
			c.AddReset(op.Target, i)
			continue
		case Measure:
			c.AddMeasure(op.Target, i, op.Target)
			continue
		}

		g := newGate(gateType, op.Target, i)
		g.Params = op.Params
		g.IsDagger = dagger
		if op.Control != nil {
			g.Control = *op.Control
		}
		g.Controls = op.Controls
		c.add(g)
	}
	if measure {
		c.MeasureAll()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
