package circuit

import "fmt"

// Explain returns a one-line description of what a gate does, or "" for
// operations without an explanation.
func Explain(g Gate) string {
	switch {
	case g.IsNoise:
		return fmt.Sprintf("%s noise on q[%d] → Models decoherence.", g.NoiseType, g.Target)
	case g.MeasureSource >= 0:
		return fmt.Sprintf("Measure q[%d], X on q[%d] if 1 → Feed-forward correction.", g.MeasureSource, g.Target)
	case g.ClassicalControl >= 0:
		return fmt.Sprintf("%s on q[%d] if c[%d]==1 → Classically controlled.", g.Type, g.Target, g.ClassicalControl)
	}

	switch g.Type {
	case "H":
		return fmt.Sprintf("H on q[%d] → Creates superposition.", g.Target)
	case "X":
		return fmt.Sprintf("X on q[%d] → Flips the qubit (|0⟩ ↔ |1⟩).", g.Target)
	case "Y":
		return fmt.Sprintf("Y on q[%d] → Applies a Y-rotation.", g.Target)
	case "Z":
		return fmt.Sprintf("Z on q[%d] → Applies a Z phase flip.", g.Target)
	case "S", "T":
		if g.IsDagger {
			return fmt.Sprintf("%s† on q[%d] → Undoes a phase rotation.", g.Type, g.Target)
		}
		return fmt.Sprintf("%s on q[%d] → Adds a phase to |1⟩.", g.Type, g.Target)
	case "RX", "RY", "RZ":
		if len(g.Params) > 0 {
			return fmt.Sprintf("%s(%s) on q[%d] → Rotates about the %c axis.", g.Type, FormatParam(g.Params[0]), g.Target, g.Type[1])
		}
	case "CX":
		return fmt.Sprintf("CX from q[%d] to q[%d] → Entangles qubits.", g.Control, g.Target)
	case "CZ":
		return fmt.Sprintf("CZ between q[%d] and q[%d] → Phase flip when both are 1.", g.Control, g.Target)
	case "SWAP":
		return fmt.Sprintf("SWAP between q[%d] and q[%d] → Swaps their states.", g.Control, g.Target)
	case "CCX":
		if len(g.Controls) == 2 {
			return fmt.Sprintf("CCX from q[%d], q[%d] to q[%d] → Flips the target when both controls are 1.", g.Controls[0], g.Controls[1], g.Target)
		}
	case Measure:
		return fmt.Sprintf("Measure q[%d] → c[%d].", g.Target, g.Cbit)
	case Reset:
		return fmt.Sprintf("Reset q[%d] → Returns the qubit to |0⟩.", g.Target)
	}
	return ""
}
