package main

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"

	"qtermbloch/internal/circuit"
	"qtermbloch/internal/quantum"
	"qtermbloch/internal/view"
)

func newTestModel() Model {
	return initialModel(quantum.NewEngine(zerolog.Nop(), 2, 12), zerolog.Nop(), 256)
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

// refresh runs the pending State panel command synchronously.
func refresh(t *testing.T, m Model) Model {
	t.Helper()
	msg, ok := m.visualize()().(stateMsg)
	if !ok {
		t.Fatal("visualize did not produce a stateMsg")
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestPlaceSingleQubitGate(t *testing.T) {
	m := newTestModel()
	if !m.placeGate("H", -1) {
		t.Fatal("placeGate returned false")
	}

	if len(m.circuit.Gates) != 1 || m.circuit.Gates[0].Type != "H" {
		t.Fatalf("expected a single H gate, got %+v", m.circuit.Gates)
	}
	if m.cursorStep != 1 {
		t.Errorf("cursor should advance to step 1, got %d", m.cursorStep)
	}
	if !strings.Contains(m.qasmEditor.Value(), "h q[0];") {
		t.Errorf("QASM editor not synced:\n%s", m.qasmEditor.Value())
	}
	if !m.dirty {
		t.Error("placing a gate should schedule a state refresh")
	}
}

func TestPlaceControlledGateBlocksStep(t *testing.T) {
	m := newTestModel()
	m.placeGate("CX", 1)
	g := m.circuit.GetGateAt(0, 1)
	if g == nil || g.Control != 0 || g.Target != 1 {
		t.Fatalf("expected CX control 0 target 1, got %+v", g)
	}

	m.cursorStep = 0
	m.cursorQubit = 1
	if m.placeGate("H", -1) {
		t.Error("H should not replace half of a CX")
	}
	if m.statusMsg == "" {
		t.Error("expected a conflict message")
	}
}

func TestPlaceNoiseAndDagger(t *testing.T) {
	m := newTestModel()
	m.paramInput = "0.2"
	m.placeGate(noisePrefix+circuit.NoiseAmplitudeDamping, -1)
	m.placeGate("TDG", -1)

	noise := m.circuit.Gates[0]
	if !noise.IsNoise || noise.NoiseType != circuit.NoiseAmplitudeDamping || noise.Params[0] != 0.2 {
		t.Errorf("unexpected noise gate %+v", noise)
	}
	tdg := m.circuit.Gates[1]
	if tdg.Type != "T" || !tdg.IsDagger {
		t.Errorf("expected T dagger, got %+v", tdg)
	}
}

func TestParameterizedGateDefaults(t *testing.T) {
	m := newTestModel()
	m.placeGate("U3", -1)
	if got := len(m.circuit.Gates[0].Params); got != 3 {
		t.Errorf("U3 should default to 3 params, got %d", got)
	}

	m.paramInput = "pi/2"
	m.placeGate("RY", -1)
	if p := m.circuit.Gates[1].Params[0]; math.Abs(p-math.Pi/2) > 1e-12 {
		t.Errorf("RY param = %v, want pi/2", p)
	}
}

func TestBadQASMKeepsCircuit(t *testing.T) {
	m := newTestModel()
	m.placeGate("X", -1)

	m.qasmEditor.SetValue("OPENQASM 2.0;\nqreg q[2];\nfrob q[0];\n")
	m.parseQASMInput()
	if m.qasmErr == nil {
		t.Fatal("expected a parse error")
	}
	if len(m.circuit.Gates) != 1 || m.circuit.Gates[0].Type != "X" {
		t.Errorf("circuit changed on parse failure: %+v", m.circuit.Gates)
	}

	m.qasmEditor.SetValue("OPENQASM 2.0;\nqreg q[2];\nh q[1];\n")
	m.parseQASMInput()
	if m.qasmErr != nil {
		t.Fatalf("unexpected error: %v", m.qasmErr)
	}
	if m.circuit.NumQubits != 2 || m.circuit.Gates[0].Target != 1 {
		t.Errorf("circuit not replaced: %+v", m.circuit)
	}
}

func TestStatePanelShowsBlochVectors(t *testing.T) {
	m := newTestModel()
	m.placeGate("X", -1)
	m.rev++
	m = refresh(t, m)

	bv, ok := m.state.(*view.BlochView)
	if !ok {
		t.Fatalf("expected *view.BlochView, got %T (err %v)", m.state, m.stateErr)
	}
	if len(bv.Qubits) != 4 {
		t.Fatalf("expected 4 qubits, got %d", len(bv.Qubits))
	}
	if z := bv.Qubits[0].Vector.Z; math.Abs(z+1) > 1e-9 {
		t.Errorf("X|0> should point to -Z, got z=%v", z)
	}
	if z := bv.Qubits[1].Vector.Z; math.Abs(z-1) > 1e-9 {
		t.Errorf("idle qubit should point to +Z, got z=%v", z)
	}
}

func TestMeasureAllSwitchesToCounts(t *testing.T) {
	m := newTestModel()
	m.placeGate("X", -1)
	m = press(m, "M")
	if !m.circuit.HasMeasurement() {
		t.Fatal("M should measure every qubit")
	}
	m = refresh(t, m)

	mv, ok := m.state.(*view.MeasurementView)
	if !ok {
		t.Fatalf("expected *view.MeasurementView, got %T (err %v)", m.state, m.stateErr)
	}
	if mv.Counts["0001"] != 256 {
		t.Errorf("expected all 256 shots on 0001, got %v", mv.Counts)
	}
}

func TestStaleStateIsDropped(t *testing.T) {
	m := newTestModel()
	m.rev = 3
	next, _ := m.Update(stateMsg{rev: 2, view: &view.BlochView{}})
	if next.(Model).state != nil {
		t.Error("stale state should be ignored")
	}
}

func TestInvalidEditSurfacesError(t *testing.T) {
	m := newTestModel()
	m.placeGate("CX", 1)
	m.circuit.Gates[0].Target = 0 // control and target collide
	m = refresh(t, m)
	if m.stateErr == nil {
		t.Error("expected a validation error in the state panel")
	}
}

func TestMenuPlacesGate(t *testing.T) {
	m := newTestModel()
	m = press(m, "a")
	if m.focus != focusMenu {
		t.Fatalf("expected menu focus, got %v", m.focus)
	}
	m = press(m, "enter") // Hadamard is first
	if m.focus != focusCircuit {
		t.Errorf("expected circuit focus after placement, got %v", m.focus)
	}
	if g := m.circuit.GetGateAt(0, 0); g == nil || g.Type != "H" {
		t.Errorf("expected H at (0,0), got %+v", g)
	}
}

func TestCellAt(t *testing.T) {
	c := circuit.New(3)
	c.AddGate("CX", 2, 0, 0)
	c.AddMeasure(1, 1, 1)

	ctrl := cellAt(c, 0, 0)
	if !ctrl.isControl || !ctrl.vertBelow || ctrl.vertAbove {
		t.Errorf("control cell: %+v", ctrl)
	}
	mid := cellAt(c, 0, 1)
	if !mid.passThrough || !mid.vertAbove || !mid.vertBelow {
		t.Errorf("pass-through cell: %+v", mid)
	}
	tgt := cellAt(c, 0, 2)
	if !tgt.isTarget || !tgt.vertAbove || tgt.vertBelow {
		t.Errorf("target cell: %+v", tgt)
	}

	if below := cellAt(c, 1, 2); !below.measureBelow {
		t.Error("qubit below a measurement should carry the classical wire")
	}
	if above := cellAt(c, 1, 0); above.measureBelow {
		t.Error("qubit above a measurement should not carry the classical wire")
	}
}

func TestGateDisplayName(t *testing.T) {
	c := circuit.New(1)
	c.AddDaggerGate("S", 0, 0)
	c.AddGate(circuit.Measure, 0, 1)
	c.AddNoise(0, 2, circuit.NoiseBitFlip, 0.1)

	want := []string{"S†", "M", "N"}
	for i, g := range c.Gates {
		if got := gateDisplayName(&g); got != want[i] {
			t.Errorf("gate %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestRenderCellWidth(t *testing.T) {
	c := circuit.New(3)
	c.AddGate("CX", 2, 0, 0)
	c.AddMeasure(0, 1, 0)
	c.AddDaggerGate("S", 1, 2)

	for step := 0; step < 3; step++ {
		for q := 0; q < 3; q++ {
			for _, hl := range []cellHighlight{hlNone, hlCursor, hlTargetSelect} {
				top, mid, bot := renderCell(cellAt(c, step, q), hl, q)
				for i, line := range []string{top, mid, bot} {
					if w := lipgloss.Width(line); w != cellW {
						t.Errorf("step %d qubit %d hl %d line %d: width %d, want %d", step, q, hl, i, w, cellW)
					}
				}
			}
		}
	}
}

func TestOverlayAtKeepsBackgroundEdges(t *testing.T) {
	bg := "abcdefgh\n" + gateStyle.Render("ijklmnop")
	got := overlayAt(bg, "XY\nZW", 2, 0)
	lines := strings.Split(got, "\n")
	if lines[0] != "abXYefgh" {
		t.Errorf("plain row = %q", lines[0])
	}
	if plain := ansi.Strip(lines[1]); plain != "ijZWmnop" {
		t.Errorf("styled row = %q", plain)
	}

	if got := spliceLineAt("ab", "X", 4); got != "ab  X" {
		t.Errorf("short background = %q", got)
	}
}

func TestMenuCoversNoiseKinds(t *testing.T) {
	var noise []menuItem
	for _, cat := range gateMenu {
		if cat.name == "Noise" {
			noise = cat.items
		}
	}
	if len(noise) != len(circuit.NoiseKinds) {
		t.Fatalf("expected %d noise entries, got %d", len(circuit.NoiseKinds), len(noise))
	}
	if noise[1].name != "Bit Flip" || noise[1].gateType != noisePrefix+circuit.NoiseBitFlip {
		t.Errorf("unexpected entry %+v", noise[1])
	}
}

func TestGateItemShape(t *testing.T) {
	tests := []struct {
		gateType    string
		needsTarget bool
		needsParams bool
	}{
		{"H", false, false},
		{"SDG", false, false},
		{"U3", false, true},
		{"CX", true, false},
		{"CRZ", true, true},
		{circuit.MCX, true, false},
		{circuit.Barrier, false, false},
	}
	for _, tt := range tests {
		item := gateItem(tt.gateType, tt.gateType, "")
		if item.needsTarget != tt.needsTarget || item.needsParams != tt.needsParams {
			t.Errorf("%s: needsTarget=%v needsParams=%v", tt.gateType, item.needsTarget, item.needsParams)
		}
	}
	if ex := gateItem("U3", "U3", "").example; ex != "theta,phi,lambda" {
		t.Errorf("U3 example = %q", ex)
	}
}
