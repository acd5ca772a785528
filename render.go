package main

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"qtermbloch/internal/circuit"
	"qtermbloch/internal/view"
)

// ──────────────────────────── Rendering helpers ────────────────────────────

// padCenter centres a string within the given width.
func padCenter(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	total := width - len(runes)
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// gateDisplayName returns a short display name for a gate.
func gateDisplayName(g *circuit.Gate) string {
	switch {
	case g.Type == circuit.Measure:
		return "M"
	case g.Type == circuit.Reset:
		return "|0>"
	case g.IsNoise:
		return "N"
	case g.IsDagger:
		return g.Type + "†"
	case g.ClassicalControl >= 0:
		return g.Type + "?"
	default:
		return g.Type
	}
}

// controlSymbol returns the wire symbol for the control qubit of a two-qubit gate.
func controlSymbol(gateType string) string {
	if gateType == "SWAP" {
		return "×"
	}
	return "●"
}

// targetSymbol returns the wire symbol for the target qubit of a two-qubit gate.
func targetSymbol(gateType string) string {
	switch gateType {
	case "CZ":
		return "●"
	case "SWAP":
		return "×"
	default:
		return "⊕"
	}
}

// cellInfo describes what occupies a single cell in the circuit grid.
type cellInfo struct {
	gate         *circuit.Gate
	isControl    bool
	isTarget     bool
	vertAbove    bool
	vertBelow    bool
	passThrough  bool
	measureBelow bool
	isBarrier    bool
}

// span returns the lowest and highest qubit a multi-qubit gate connects.
func span(g circuit.Gate) (lo, hi int, ok bool) {
	if !g.IsMultiQubit() {
		return 0, 0, false
	}
	qubits := g.Qubits()
	lo, hi = qubits[0], qubits[0]
	for _, q := range qubits[1:] {
		lo, hi = min(lo, q), max(hi, q)
	}
	return lo, hi, true
}

// cellAt returns rendering information for the cell at (step, qubit).
func cellAt(c *circuit.Circuit, step, qubit int) cellInfo {
	var info cellInfo

	if g := c.GetGateAt(step, qubit); g != nil {
		info.gate = g
		info.isControl = g.Control == qubit || slices.Contains(g.Controls, qubit)
		info.isTarget = g.Target == qubit && (g.Control >= 0 || len(g.Controls) > 0)
	}

	for i := range c.Gates {
		g := &c.Gates[i]
		if g.Step != step {
			continue
		}
		if g.Type == circuit.Barrier {
			info.isBarrier = true
			if info.gate == nil {
				info.gate = g
			}
			continue
		}

		if lo, hi, ok := span(*g); ok && qubit >= lo && qubit <= hi {
			info.vertAbove = info.vertAbove || qubit > lo
			info.vertBelow = info.vertBelow || qubit < hi
			if qubit > lo && qubit < hi && info.gate == nil {
				info.passThrough = true
			}
		}

		// Measurements drop a classical wire down past every lower qubit.
		measured := -1
		if g.Type == circuit.Measure {
			measured = g.Target
		} else if g.MeasureSource >= 0 {
			measured = g.MeasureSource
		}
		if measured >= 0 && qubit > measured {
			info.measureBelow = true
		}
	}

	return info
}

// ──────────────────────────── Cell rendering ────────────────────────────

type cellHighlight int

const (
	hlNone cellHighlight = iota
	hlCursor
	hlTargetSelect
)

// cellGlyph picks what a cell draws on its wire: a boxed gate name or a bare
// symbol. Both are empty for an idle wire.
func cellGlyph(info cellInfo, qubit int) (name, sym string) {
	g := info.gate
	switch {
	case g == nil:
		if info.passThrough {
			sym = "┼"
		}
	case info.isControl:
		sym = controlSymbol(g.Type)
	case info.isTarget:
		sym = targetSymbol(g.Type)
	case g.MeasureSource == qubit:
		name = "M"
	case g.MeasureSource >= 0:
		sym = "⊕"
	default:
		name = gateDisplayName(g)
	}
	return name, sym
}

// renderCell returns 3 lines (top, mid, bot) for a single cell.
// Each line is exactly cellW visual characters wide.
func renderCell(info cellInfo, hl cellHighlight, qubit int) (top, mid, bot string) {
	emptyRow := strings.Repeat(" ", cellW)
	halfW := cellW / 2
	vertRow := strings.Repeat(" ", halfW) + "│" + strings.Repeat(" ", cellW-halfW-1)
	dblVertRow := strings.Repeat(" ", halfW) + cbitConnectorStyle.Render("║") + strings.Repeat(" ", cellW-halfW-1)
	wire := func(w int, center string) string {
		l := (w - 1) / 2
		return strings.Repeat("─", l) + center + strings.Repeat("─", w-l-1)
	}

	name, sym := cellGlyph(info, qubit)

	if hl == hlCursor || hl == hlTargetSelect {
		bdr := cursorBoxStyle
		if hl == hlTargetSelect {
			bdr = targetSelectStyle
		}
		innerW := cellW - 2
		edge := bdr.Render("║")

		if info.isBarrier {
			return vertRow, edge + wire(innerW, "│") + edge, vertRow
		}
		top = bdr.Render("╔" + strings.Repeat("═", innerW) + "╗")
		bot = bdr.Render("╚" + strings.Repeat("═", innerW) + "╝")
		switch {
		case name != "":
			mid = edge + "─┤" + gateStyle.Render(padCenter(name, gateNameW)) + "├─" + edge
		case sym == "┼":
			mid = edge + wire(innerW, sym) + edge
		case sym != "":
			mid = edge + wire(innerW, gateStyle.Render(sym)) + edge
		default:
			mid = edge + strings.Repeat("─", innerW) + edge
		}
		return top, mid, bot
	}

	if info.isBarrier {
		return vertRow, wire(cellW, "│"), vertRow
	}

	top, bot = emptyRow, emptyRow
	if info.vertAbove {
		top = vertRow
	}
	if info.vertBelow {
		bot = vertRow
	}

	switch {
	case name != "":
		margin := (cellW - gateBoxW) / 2
		rightMargin := cellW - margin - gateBoxW
		top = strings.Repeat(" ", margin) + gateStyle.Render("┌"+strings.Repeat("─", gateNameW)+"┐") + strings.Repeat(" ", rightMargin)
		mid = strings.Repeat("─", margin) + gateStyle.Render("┤"+padCenter(name, gateNameW)+"├") + strings.Repeat("─", rightMargin)
		bot = strings.Repeat(" ", margin) + gateStyle.Render("└"+strings.Repeat("─", gateNameW)+"┘") + strings.Repeat(" ", rightMargin)
	case sym == "┼":
		mid = wire(cellW, sym)
	case sym != "":
		mid = wire(cellW, gateStyle.Render(sym))
	case info.measureBelow:
		// A classical wire crosses an idle qubit.
		if !info.vertAbove {
			top = dblVertRow
		}
		mid = wire(cellW, cbitConnectorStyle.Render("╫"))
	default:
		mid = strings.Repeat("─", cellW)
	}
	if info.measureBelow {
		bot = dblVertRow
	}
	return top, mid, bot
}

// ──────────────────────────── Panel rendering ────────────────────────────

// renderCircuitPanel renders the circuit grid panel.
func (m Model) renderCircuitPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Quantum Circuit"))
	sb.WriteString("\n\n")

	// How many steps fit
	availWidth := width - labelVisualW - 4
	maxSteps := max(availWidth/cellW, 1)

	startStep := 0
	if m.cursorStep >= maxSteps {
		startStep = m.cursorStep - maxSteps + 1
	}

	displaySteps := maxSteps

	if startStep > 0 {
		fmt.Fprintf(&sb, "  ◀ showing steps %d–%d\n", startStep, startStep+displaySteps-1)
	}

	// Step number header
	header := strings.Repeat(" ", labelVisualW)
	for step := startStep; step < startStep+displaySteps; step++ {
		header += dimStyle.Render(padCenter(fmt.Sprintf("%d", step), cellW))
	}
	sb.WriteString(header + "\n")

	// Render each qubit as 3 lines
	for qubit := range m.circuit.NumQubits {
		topLine := strings.Repeat(" ", labelVisualW)
		label := fmt.Sprintf("q[%d]", qubit)
		midLine := qubitLabelStyle.Render(fmt.Sprintf("%-5s", label)) + "──"
		botLine := strings.Repeat(" ", labelVisualW)

		for step := startStep; step < startStep+displaySteps; step++ {
			info := cellAt(m.circuit, step, qubit)

			hl := hlNone
			if step == m.cursorStep && qubit == m.cursorQubit && (m.focus == focusCircuit || m.focus == focusSelectTarget || m.focus == focusMenu) {
				hl = hlCursor
			} else if step == m.cursorStep && qubit == m.targetQubit && m.focus == focusSelectTarget {
				hl = hlTargetSelect
			}

			top, mid, bot := renderCell(info, hl, qubit)
			topLine += top
			midLine += mid
			botLine += bot
		}

		sb.WriteString(topLine + "\n")
		sb.WriteString(midLine + "\n")
		sb.WriteString(botLine + "\n")
	}

	// ── Classical bit wire (single line) ──
	numCbits := m.circuit.NumCbits()
	if numCbits > 0 {
		// Separator line between quantum and classical wires
		sepLine := strings.Repeat(" ", labelVisualW)
		for step := startStep; step < startStep+displaySteps; step++ {
			measuredQubit := m.circuit.GetMeasureAtStep(step)
			halfW := cellW / 2
			if measuredQubit >= 0 {
				sepLine += strings.Repeat(" ", halfW) + cbitConnectorStyle.Render("║") + strings.Repeat(" ", cellW-halfW-1)
			} else {
				sepLine += strings.Repeat(" ", cellW)
			}
		}
		sb.WriteString(sepLine + "\n")

		// Single classical wire showing count and measurement landing points
		label := fmt.Sprintf("c%d", numCbits)
		cbitLine := cbitLabelStyle.Render(fmt.Sprintf("%-5s", label)) + cbitWireStyle.Render("══")

		for step := startStep; step < startStep+displaySteps; step++ {
			measuredQubit := m.circuit.GetMeasureAtStep(step)
			if measuredQubit >= 0 {
				// Show ╩ with the bit index next to it
				bitLabel := fmt.Sprintf("%d", measuredQubit)
				dashL := (cellW - 1) / 2
				dashR := max(cellW-dashL-1-len(bitLabel), 0)
				cbitLine += cbitWireStyle.Render(strings.Repeat("═", dashL)) +
					cbitConnectorStyle.Render("╩"+bitLabel) +
					cbitWireStyle.Render(strings.Repeat("═", dashR))
			} else {
				cbitLine += cbitWireStyle.Render(strings.Repeat("═", cellW))
			}
		}
		sb.WriteString(cbitLine + "\n")
	}

	// Status line
	if m.focus == focusSelectTarget {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "  %s", activeGateStyle.Render(m.pendingGate))
		sb.WriteString("  Select target qubit: ")
		fmt.Fprintf(&sb, "%s", targetSelectStyle.Render(fmt.Sprintf("q[%d]", m.targetQubit)))
		sb.WriteString(dimStyle.Render("   ↑↓ Move  Enter Confirm  Esc Cancel"))
	} else {
		fmt.Fprintf(&sb, "\n  Position: Step %d, Qubit %d", m.cursorStep, m.cursorQubit)
		if m.statusMsg != "" {
			fmt.Fprintf(&sb, "  │  %s", activeGateStyle.Render(m.statusMsg))
		}
	}

	return circuitStyle.Width(width).Height(height).Render(sb.String())
}

// renderQASMPanel renders the QASM editor panel.
func (m Model) renderQASMPanel(width, height int) string {
	var sb strings.Builder

	title := "QASM Editor"
	if m.focus == focusQASM {
		title += " [ACTIVE]"
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")
	sb.WriteString(m.qasmEditor.View())
	if m.qasmErr != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(m.qasmErr.Error()))
	}

	return qasmStyle.Width(width).Height(height).Render(sb.String())
}

// renderStatePanel renders the visualization of the current circuit: shot
// counts when it measures, one Bloch vector per qubit otherwise.
func (m Model) renderStatePanel(width, height int) string {
	var sb strings.Builder

	var lines []string
	switch v := m.state.(type) {
	case nil:
		if m.stateErr == nil {
			lines = append(lines, dimStyle.Render("Simulating..."))
		}
	case *view.MeasurementView:
		sb.WriteString(titleStyle.Render(fmt.Sprintf("Counts (%d shots)", v.Shots)))
		lines = countLines(v, width-6)
	case *view.BlochView:
		sb.WriteString(titleStyle.Render("Bloch Vectors"))
		lines = blochLines(v, width-6)
	}
	if m.state == nil {
		sb.WriteString(titleStyle.Render("State"))
	}
	if m.stateErr != nil {
		lines = append([]string{errorStyle.Render(m.stateErr.Error())}, lines...)
	}
	sb.WriteString("\n")

	room := max(height-3, 1)
	if len(lines) > room {
		hidden := len(lines) - room + 1
		lines = append(lines[:room-1], dimStyle.Render(fmt.Sprintf("… %d more", hidden)))
	}
	sb.WriteString(strings.Join(lines, "\n"))

	return stateStyle.Width(width).Height(height).Render(sb.String())
}

func countLines(v *view.MeasurementView, width int) []string {
	outcomes := v.Sorted()
	if len(outcomes) == 0 {
		return []string{dimStyle.Render("no outcomes")}
	}
	labelW := len(outcomes[0].Bits)
	barW := max(width-labelW-9, 4)

	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		frac := float64(o.Count) / float64(max(v.Shots, 1))
		n := int(math.Round(frac * float64(barW)))
		lines = append(lines, fmt.Sprintf("%s %s%s %5.1f%%",
			qubitLabelStyle.Render(o.Bits),
			histogramStyle.Render(strings.Repeat("█", n)),
			dimStyle.Render(strings.Repeat("░", barW-n)),
			frac*100))
	}
	return lines
}

func blochLines(v *view.BlochView, width int) []string {
	barW := max(width-32, 4)
	lines := make([]string, 0, len(v.Qubits))
	for _, q := range v.Qubits {
		label := qubitLabelStyle.Render(fmt.Sprintf("%-5s", fmt.Sprintf("q[%d]", q.Index)))
		if !q.Renderable {
			lines = append(lines, label+" "+warningStyle.Render("non-renderable: degenerate state"))
			continue
		}
		vec := q.Vector
		coords := fmt.Sprintf("%+.2f %+.2f %+.2f", vec.X, vec.Y, vec.Z)
		if vec.IsZero() {
			lines = append(lines, label+" "+coords+" "+dimStyle.Render("mixed"))
			continue
		}
		theta, phi := vec.Angles()
		// P(0) = (1+z)/2 drawn as a bar between the poles.
		n := int(math.Round((1 + vec.Z) / 2 * float64(barW)))
		lines = append(lines, fmt.Sprintf("%s %s %s%s θ%3.0f° φ%4.0f°",
			label, coords,
			histogramStyle.Render(strings.Repeat("█", n)),
			dimStyle.Render(strings.Repeat("░", barW-n)),
			theta*180/math.Pi, phi*180/math.Pi))
	}
	return lines
}

// renderControlsPanel renders the bottom help/controls bar.
func (m Model) renderControlsPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(activeGateStyle.Render("Navigate: "))
	sb.WriteString("↑↓/jk Move qubit  ←→/hl Move step  +/- Qubits")
	sb.WriteString("    ")
	sb.WriteString(activeGateStyle.Render("a"))
	sb.WriteString(" Add gate\n")

	sb.WriteString(activeGateStyle.Render("Actions:  "))
	sb.WriteString("Tab Switch focus  e Edit  M Measure all  Bksp Delete  ^R Reset  ^S Save  q/^C Quit")

	return controlsStyle.Width(width).Height(height).Render(sb.String())
}

// ──────────────────────────── Overlay helpers ────────────────────────────

// overlayAt draws overlay over bg with its top-left corner at column x, row y.
func overlayAt(bg, overlay string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	for i, line := range strings.Split(overlay, "\n") {
		row := y + i
		if row < 0 || row >= len(bgLines) {
			continue
		}
		bgLines[row] = spliceLineAt(bgLines[row], line, x)
	}
	return strings.Join(bgLines, "\n")
}

// spliceLineAt replaces the cells of bgLine under overlay, keeping the
// background's styling on either side.
func spliceLineAt(bgLine, overlay string, x int) string {
	prefix := ansi.Truncate(bgLine, x, "")
	if w := ansi.StringWidth(prefix); w < x {
		prefix += strings.Repeat(" ", x-w)
	}
	suffix := ansi.TruncateLeft(bgLine, x+ansi.StringWidth(overlay), "")
	return prefix + overlay + suffix
}
