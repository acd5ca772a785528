package main

import (
	"fmt"
	"strings"

	"qtermbloch/internal/circuit"
)

// noisePrefix marks menu entries that insert a noise channel.
const noisePrefix = "NOISE:"

// menuItem is one entry of the gate picker.
type menuItem struct {
	name        string
	gateType    string
	symbol      string
	needsTarget bool
	needsParams bool
	example     string // parameter placeholder shown next to the name
}

// menuCategory groups related menu items under a tab.
type menuCategory struct {
	name  string
	items []menuItem
}

// paramExamples is indexed by parameter count.
var paramExamples = []string{"", "pi/2", "phi,lambda", "theta,phi,lambda"}

// gateItem derives an entry's target and parameter prompts from the gate's
// shape. Dagger forms such as "SDG" take the shape of their base gate.
func gateItem(name, gateType, symbol string) menuItem {
	base := strings.TrimSuffix(gateType, "DG")
	if !circuit.KnownGate(base) {
		base = gateType
	}
	n := circuit.ParamCount(base)
	return menuItem{
		name:        name,
		gateType:    gateType,
		symbol:      symbol,
		needsTarget: circuit.QubitCount(base) > 1,
		needsParams: n > 0,
		example:     paramExamples[min(n, len(paramExamples)-1)],
	}
}

// noiseItems lists one entry per supported channel. The probability is
// optional and defaults in placeGate.
func noiseItems() []menuItem {
	items := make([]menuItem, 0, len(circuit.NoiseKinds))
	for _, kind := range circuit.NoiseKinds {
		words := strings.Split(kind, "_")
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		items = append(items, menuItem{
			name:        strings.Join(words, " "),
			gateType:    noisePrefix + kind,
			symbol:      "N",
			needsParams: true,
			example:     "0.01",
		})
	}
	return items
}

// gateMenu defines the gate picker categories and items.
var gateMenu = []menuCategory{
	{"Single Qubit", []menuItem{
		gateItem("Hadamard", "H", "H"),
		gateItem("Pauli-X (NOT)", "X", "X"),
		gateItem("Pauli-Y", "Y", "Y"),
		gateItem("Pauli-Z", "Z", "Z"),
		gateItem("Identity", "I", "I"),
		gateItem("Phase (S)", "S", "S"),
		gateItem("Phase Dagger (S†)", "SDG", "S†"),
		gateItem("T Gate", "T", "T"),
		gateItem("T Dagger (T†)", "TDG", "T†"),
		gateItem("√X (SX)", "SX", "√X"),
		gateItem("√Y (SY)", "SY", "√Y"),
	}},
	{"Rotation", []menuItem{
		gateItem("Rotate X", "RX", "RX"),
		gateItem("Rotate Y", "RY", "RY"),
		gateItem("Rotate Z", "RZ", "RZ"),
		gateItem("Phase Shift", "P", "P"),
		gateItem("Universal U1", "U1", "U1"),
		gateItem("Universal U2", "U2", "U2"),
		gateItem("Universal U3", "U3", "U3"),
	}},
	{"Multi Qubit", []menuItem{
		gateItem("CNOT", "CX", "●─⊕"),
		gateItem("Controlled-Y", "CY", "●─Y"),
		gateItem("Controlled-Z", "CZ", "●─●"),
		gateItem("Controlled-H", "CH", "●─H"),
		gateItem("SWAP", "SWAP", "×─×"),
		gateItem("Toffoli (CCX)", "CCX", "●─●─⊕"),
		gateItem("C-Rotate X", "CRX", "●─RX"),
		gateItem("C-Rotate Y", "CRY", "●─RY"),
		gateItem("C-Rotate Z", "CRZ", "●─RZ"),
		gateItem("C-Phase (CU1)", "CU1", "●─U1"),
	}},
	{"Measurement", []menuItem{
		gateItem("Measure", circuit.Measure, "M"),
		gateItem("Measure-Ctrl X", circuit.MCX, "M─⊕"),
	}},
	{"Special", []menuItem{
		gateItem("Reset", circuit.Reset, "|0⟩"),
		gateItem("Barrier", circuit.Barrier, "┃"),
	}},
	{"Noise", noiseItems()},
}

// renderMenu renders the floating gate-picker popup.
func (m Model) renderMenu() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Add Gate"))
	sb.WriteString("\n")

	// Category tabs
	for i, cat := range gateMenu {
		name := " " + cat.name + " "
		if i == m.menuCat {
			sb.WriteString(activeGateStyle.Render(name))
		} else {
			sb.WriteString(dimStyle.Render(name))
		}
		if i < len(gateMenu)-1 {
			sb.WriteString(dimStyle.Render("│"))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(strings.Repeat("─", 42)))
	sb.WriteString("\n")

	// Items in the selected category
	cat := gateMenu[m.menuCat]
	for i, item := range cat.items {
		if i == m.menuItem {
			sb.WriteString(menuSelectedStyle.Render(" ▸ "))
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("%-18s", item.name)))
			sb.WriteString(gateStyle.Render(item.symbol))
		} else {
			sb.WriteString("   ")
			sb.WriteString(menuNormalStyle.Render(fmt.Sprintf("%-18s", item.name)))
			sb.WriteString(dimStyle.Render(item.symbol))
		}
		if item.needsTarget {
			sb.WriteString(dimStyle.Render(" →target"))
		}
		if item.needsParams {
			sb.WriteString(dimStyle.Render(fmt.Sprintf(" (%s)", item.example)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(" ↑↓ Select  ←→ Cat  ⏎ Ok  Esc ✕"))

	return menuBorderStyle.Render(sb.String())
}
