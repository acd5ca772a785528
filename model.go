package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"qtermbloch/internal/circuit"
	"qtermbloch/internal/quantum"
	"qtermbloch/internal/view"
)

// focus represents which panel/mode has keyboard input.
type focus int

const (
	focusCircuit focus = iota
	focusQASM
	focusMenu
	focusSelectTarget
	focusInputParam
	focusSelectControls
	focusEditGate
	focusEditParam
	focusEditTarget
	focusEditControl
)

// stateTimeout bounds a single State panel refresh.
const stateTimeout = 5 * time.Second

// stateMsg carries a finished visualization back into Update.
type stateMsg struct {
	rev  int
	view view.View
	err  error
}

// Model represents the TUI application state.
type Model struct {
	circuit       *circuit.Circuit
	cursorQubit   int
	cursorStep    int
	viewStartStep int // First step currently visible in the view
	width         int
	height        int
	qasmEditor    textarea.Model
	focus         focus
	lastQASM      string
	qasmErr       error
	statusMsg     string // transient status message (e.g. save confirmation)

	// State panel
	engine   *quantum.Engine
	log      zerolog.Logger
	shots    int
	dirty    bool
	rev      int
	state    view.View
	stateErr error

	// Menu state
	menuCat  int
	menuItem int

	// Target-selection state (for multi-qubit gates)
	pendingGate   string
	targetQubit   int
	paramInput    string
	controlQubits []int

	// Edit gate state
	editGate       *circuit.Gate // points into circuit.Gates while editing
	editMenuIdx    int
	editOrigStep   int
	editControlIdx int // which control index is being edited (-1 for single Control field)
}

func initialModel(engine *quantum.Engine, log zerolog.Logger, shots int) Model {
	ta := textarea.New()
	ta.Placeholder = "Edit QASM here..."
	ta.SetWidth(40)
	ta.SetHeight(12)
	ta.ShowLineNumbers = true
	ta.KeyMap.InsertNewline.SetEnabled(true)

	m := Model{
		circuit:    circuit.New(4),
		qasmEditor: ta,
		focus:      focusCircuit,
		engine:     engine,
		log:        log.With().Str("component", "tui").Logger(),
		shots:      shots,
	}

	m.sync()
	m.dirty = false // Init runs the first refresh
	return m
}

// sync rewrites the QASM editor from the circuit and schedules a State refresh.
func (m *Model) sync() {
	qasm := m.circuit.ToQASM()
	m.qasmEditor.SetValue(qasm)
	m.lastQASM = qasm
	m.qasmErr = nil
	m.dirty = true
}

func (m *Model) parseQASMInput() {
	qasm := m.qasmEditor.Value()
	if qasm == m.lastQASM {
		return
	}
	m.lastQASM = qasm

	c, err := circuit.ParseQASM(qasm)
	if err != nil {
		// Keep the last good circuit while the user is mid-edit.
		m.qasmErr = err
		return
	}
	m.qasmErr = nil
	m.circuit = c
	m.cursorQubit = min(m.cursorQubit, max(c.NumQubits-1, 0))
	m.dirty = true
}

// visualize snapshots the circuit at the current revision and runs the
// visualization policy off the update loop. Results from older revisions are
// dropped on arrival.
func (m Model) visualize() tea.Cmd {
	rev := m.rev
	snap, err := circuit.NewSnapshot(m.circuit)
	if err != nil {
		return func() tea.Msg { return stateMsg{rev: rev, err: err} }
	}
	engine, shots, log := m.engine, m.shots, m.log

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
		defer cancel()

		v, err := view.Visualize(ctx, engine, snap, view.Options{Shots: shots})
		if err != nil {
			log.Debug().Err(err).Int("rev", rev).Msg("state refresh failed")
		}
		return stateMsg{rev: rev, view: v, err: err}
	}
}

// placeGate places a gate on the circuit at the cursor position.
// targetQ is the target qubit for multi-qubit gates (-1 for single-qubit).
// Returns true if placement succeeded, false if blocked by conflict.
func (m *Model) placeGate(gateType string, targetQ int) bool {
	var qubitsNeeded []int
	switch gateType {
	case "CX", "CY", "CZ", "SWAP", "CH", "CRX", "CRY", "CRZ", "CP", "CU1":
		qubitsNeeded = []int{m.cursorQubit, targetQ}
	case "CCX":
		qubitsNeeded = []int{m.cursorQubit, targetQ}
		qubitsNeeded = append(qubitsNeeded, m.controlQubits...)
	case circuit.MCX:
		qubitsNeeded = []int{m.cursorQubit, targetQ}
	case circuit.Barrier:
		qubitsNeeded = nil
	default:
		qubitsNeeded = []int{m.cursorQubit}
	}

	if len(qubitsNeeded) > 0 && !m.circuit.CanPlaceAt(m.cursorStep, qubitsNeeded) {
		m.statusMsg = "Cannot place: qubit already used by another gate at this step"
		m.resetPending()
		return false
	}

	for _, q := range qubitsNeeded {
		m.circuit.RemoveGateAt(m.cursorStep, q)
	}

	params := circuit.ParseParamList(m.paramInput)
	switch gateType {
	case "CX", "CY", "CZ", "SWAP", "CH", "CRX", "CRY", "CRZ", "CP", "CU1":
		if len(params) > 0 {
			m.circuit.AddParameterizedGate(gateType, targetQ, m.cursorStep, params, m.cursorQubit)
		} else if circuit.ParamCount(gateType) > 0 {
			m.circuit.AddParameterizedGate(gateType, targetQ, m.cursorStep, []float64{0}, m.cursorQubit)
		} else {
			m.circuit.AddGate(gateType, targetQ, m.cursorStep, m.cursorQubit)
		}
	case "CCX":
		// The cursor qubit and the picked qubit control the target.
		controls := append([]int{m.cursorQubit}, m.controlQubits...)
		m.circuit.AddMultiControlGate("CCX", targetQ, m.cursorStep, controls)
	case circuit.MCX:
		m.circuit.AddMeasureControlGate(m.cursorQubit, targetQ, m.cursorStep)
	case circuit.Measure:
		m.circuit.AddMeasure(m.cursorQubit, m.cursorStep, m.cursorQubit)
	case circuit.Barrier:
		m.circuit.AddBarrier(m.cursorStep)
	case circuit.Reset:
		m.circuit.AddReset(m.cursorQubit, m.cursorStep)
	case "RX", "RY", "RZ", "P", "U1", "U2", "U3":
		want := circuit.ParamCount(gateType)
		if len(params) < want {
			params = make([]float64, want)
		}
		m.circuit.AddParameterizedGate(gateType, m.cursorQubit, m.cursorStep, params[:want])
	case "SDG", "TDG":
		m.circuit.AddDaggerGate(strings.TrimSuffix(gateType, "DG"), m.cursorQubit, m.cursorStep)
	default:
		if kind, ok := strings.CutPrefix(gateType, noisePrefix); ok {
			p := 0.01
			if len(params) > 0 {
				p = params[0]
			}
			m.circuit.AddNoise(m.cursorQubit, m.cursorStep, kind, p)
			break
		}
		m.circuit.AddGate(gateType, m.cursorQubit, m.cursorStep)
	}

	m.resetPending()
	m.cursorStep++
	m.circuit.MaxSteps = max(m.circuit.MaxSteps, m.cursorStep)
	m.sync()
	return true
}

func (m *Model) resetPending() {
	m.paramInput = ""
	m.controlQubits = nil
	m.pendingGate = ""
}

// beginTargetSelect moves focus to picking the second qubit of a gate.
func (m *Model) beginTargetSelect(next focus) bool {
	if m.circuit.NumQubits < 2 {
		return false
	}
	m.focus = next
	m.targetQubit = m.cursorQubit + 1
	if m.targetQubit >= m.circuit.NumQubits {
		m.targetQubit = m.cursorQubit - 1
	}
	return true
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m Model) Init() tea.Cmd {
	return m.visualize()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		qasmW := max(msg.Width/3-6, 20)
		m.qasmEditor.SetWidth(qasmW)
		qasmH, _ := m.rightColumnHeights()
		m.qasmEditor.SetHeight(max(qasmH-4, 3))

	case stateMsg:
		if msg.rev == m.rev {
			m.state, m.stateErr = msg.view, msg.err
		}

	case tea.KeyMsg:
		key := msg.String()
		m.statusMsg = ""

		if key == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusCircuit:
			switch key {
			case "q":
				return m, tea.Quit
			case "tab":
				m.focus = focusQASM
				m.qasmEditor.Focus()
			case "ctrl+r":
				m.circuit = circuit.New(m.circuit.NumQubits)
				m.viewStartStep = 0
				m.sync()
			case "ctrl+s":
				if err := os.WriteFile("circuit.qasm", []byte(m.circuit.ToQASM()), 0644); err != nil {
					m.statusMsg = fmt.Sprintf("Save error: %v", err)
				} else {
					m.statusMsg = "Saved circuit.qasm"
				}
			case "up", "k":
				if m.cursorQubit > 0 {
					m.cursorQubit--
				}
			case "down", "j":
				if m.cursorQubit < m.circuit.NumQubits-1 {
					m.cursorQubit++
				}
			case "left", "h":
				if m.cursorStep > 0 {
					m.cursorStep--
					if m.cursorStep < m.viewStartStep {
						m.viewStartStep = m.cursorStep
					}
				}
			case "right", "l":
				m.cursorStep++
				m.circuit.MaxSteps = max(m.circuit.MaxSteps, m.cursorStep)
			case "+", "=":
				m.circuit.NumQubits++
				m.sync()
			case "-":
				if m.circuit.NumQubits > 1 {
					m.circuit.NumQubits--
					m.cursorQubit = min(m.cursorQubit, m.circuit.NumQubits-1)
					m.circuit.RemoveGatesOnQubit(m.circuit.NumQubits)
					m.sync()
				}
			case "M":
				if m.circuit.HasMeasurement() {
					m.statusMsg = "Circuit already measures"
					break
				}
				m.circuit.MeasureAll()
				m.sync()
			case "a":
				m.focus = focusMenu
				m.menuCat = 0
				m.menuItem = 0
			case "backspace", "delete":
				m.circuit.RemoveGateAt(m.cursorStep, m.cursorQubit)
				m.sync()
			case "e":
				if g := m.circuit.GetGateAt(m.cursorStep, m.cursorQubit); g != nil && g.Type != circuit.Barrier {
					m.editGate = g
					m.editMenuIdx = 0
					m.editOrigStep = m.cursorStep
					m.focus = focusEditGate
				}
			}

		case focusMenu:
			switch key {
			case "esc":
				m.focus = focusCircuit
			case "up", "k":
				if m.menuItem > 0 {
					m.menuItem--
				}
			case "down", "j":
				cat := gateMenu[m.menuCat]
				if m.menuItem < len(cat.items)-1 {
					m.menuItem++
				}
			case "left", "h":
				if m.menuCat > 0 {
					m.menuCat--
					m.menuItem = 0
				}
			case "right", "l":
				if m.menuCat < len(gateMenu)-1 {
					m.menuCat++
					m.menuItem = 0
				}
			case "enter":
				item := gateMenu[m.menuCat].items[m.menuItem]
				m.pendingGate = item.gateType

				if item.needsParams {
					m.paramInput = ""
					m.focus = focusInputParam
					break
				}

				if item.gateType == "CCX" {
					if m.circuit.NumQubits < 3 {
						m.statusMsg = "Toffoli needs at least 3 qubits"
						break
					}
					m.controlQubits = nil
					m.beginTargetSelect(focusSelectControls)
					break
				}

				if item.needsTarget {
					m.beginTargetSelect(focusSelectTarget)
				} else if m.placeGate(item.gateType, -1) {
					m.focus = focusCircuit
				}
			}

		case focusSelectTarget:
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.resetPending()
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if next != m.cursorQubit && !slices.Contains(m.controlQubits, next) {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.circuit.NumQubits; next++ {
					if next != m.cursorQubit && !slices.Contains(m.controlQubits, next) {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				if m.placeGate(m.pendingGate, m.targetQubit) {
					m.focus = focusCircuit
				}
			}

		case focusSelectControls:
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.resetPending()
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if next != m.cursorQubit {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.circuit.NumQubits; next++ {
					if next != m.cursorQubit {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				m.controlQubits = append(m.controlQubits, m.targetQubit)
				m.focus = focusSelectTarget
				for q := 0; q < m.circuit.NumQubits; q++ {
					if q != m.cursorQubit && !slices.Contains(m.controlQubits, q) {
						m.targetQubit = q
						break
					}
				}
			}

		case focusEditGate:
			if m.editGate == nil {
				m.focus = focusCircuit
				break
			}
			editOptions := m.getEditOptions()
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.editGate = nil
			case "up", "k":
				if m.editMenuIdx > 0 {
					m.editMenuIdx--
				}
			case "down", "j":
				if m.editMenuIdx < len(editOptions)-1 {
					m.editMenuIdx++
				}
			case "enter":
				if m.editMenuIdx < len(editOptions) {
					opt := editOptions[m.editMenuIdx]
					switch opt.action {
					case "edit_param":
						m.paramInput = ""
						m.focus = focusEditParam
					case "edit_target":
						m.targetQubit = m.editGate.Target
						m.focus = focusEditTarget
					case "edit_control":
						m.editControlIdx = opt.ctrlIdx
						if opt.ctrlIdx == -1 {
							m.targetQubit = m.editGate.Control
						} else {
							m.targetQubit = m.editGate.Controls[opt.ctrlIdx]
						}
						m.focus = focusEditControl
					case "delete":
						m.circuit.RemoveGateAt(m.editOrigStep, m.editGate.Target)
						m.editGate = nil
						m.focus = focusCircuit
						m.sync()
					}
				}
			}

		case focusEditParam:
			switch key {
			case "esc":
				m.paramInput = ""
				m.focus = focusEditGate
			case "backspace":
				if len(m.paramInput) > 0 {
					m.paramInput = m.paramInput[:len(m.paramInput)-1]
				}
			case "enter":
				if m.editGate != nil {
					params := circuit.ParseParamList(m.paramInput)
					if m.paramInput != "" && params == nil {
						m.statusMsg = "Invalid parameter: use numbers or pi expressions (e.g. pi/2, 3*pi/4)"
						break
					}
					if len(params) > 0 {
						m.editGate.Params = params
					}
					m.sync()
				}
				m.paramInput = ""
				m.focus = focusEditGate
			default:
				m.appendParamKey(key)
			}

		case focusEditTarget:
			switch key {
			case "esc":
				m.focus = focusEditGate
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if next != m.editGate.Control && !slices.Contains(m.editGate.Controls, next) {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.circuit.NumQubits; next++ {
					if next != m.editGate.Control && !slices.Contains(m.editGate.Controls, next) {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				if m.editGate != nil {
					m.editGate.Target = m.targetQubit
					m.sync()
				}
				m.focus = focusEditGate
			}

		case focusEditControl:
			unavailable := map[int]bool{m.editGate.Target: true}
			for ci, cq := range m.editGate.Controls {
				if ci != m.editControlIdx {
					unavailable[cq] = true
				}
			}
			switch key {
			case "esc":
				m.focus = focusEditGate
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if !unavailable[next] {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.circuit.NumQubits; next++ {
					if !unavailable[next] {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				if m.editGate != nil {
					if m.editControlIdx == -1 {
						m.editGate.Control = m.targetQubit
					} else if m.editControlIdx < len(m.editGate.Controls) {
						m.editGate.Controls[m.editControlIdx] = m.targetQubit
					}
					m.sync()
				}
				m.focus = focusEditGate
			}

		case focusInputParam:
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.paramInput = ""
				m.pendingGate = ""
			case "backspace":
				if len(m.paramInput) > 0 {
					m.paramInput = m.paramInput[:len(m.paramInput)-1]
				}
			case "enter":
				if m.paramInput != "" && circuit.ParseParamList(m.paramInput) == nil {
					m.statusMsg = "Invalid parameter: use numbers or pi expressions (e.g. pi/2, 3*pi/4)"
					break
				}
				item := gateMenu[m.menuCat].items[m.menuItem]
				if item.needsTarget {
					m.beginTargetSelect(focusSelectTarget)
				} else if m.placeGate(m.pendingGate, -1) {
					m.focus = focusCircuit
				}
			default:
				m.appendParamKey(key)
			}

		case focusQASM:
			switch key {
			case "tab":
				m.focus = focusCircuit
				m.qasmEditor.Blur()
			default:
				var cmd tea.Cmd
				m.qasmEditor, cmd = m.qasmEditor.Update(msg)
				cmds = append(cmds, cmd)
				m.parseQASMInput()
			}
		}
	}

	if m.dirty {
		m.dirty = false
		m.rev++
		cmds = append(cmds, m.visualize())
	}
	return m, tea.Batch(cmds...)
}

// appendParamKey accepts characters that can appear in a parameter expression.
func (m *Model) appendParamKey(key string) {
	if len(key) != 1 {
		return
	}
	if strings.ContainsRune("0123456789.,-+eE*/pi", rune(key[0])) {
		m.paramInput += key
	}
}

// editOption represents an option in the edit gate menu.
type editOption struct {
	label   string
	action  string
	ctrlIdx int
}

// getEditOptions returns available edit options for the current gate.
func (m *Model) getEditOptions() []editOption {
	if m.editGate == nil {
		return nil
	}
	var opts []editOption

	if len(m.editGate.Params) > 0 || circuit.ParamCount(m.editGate.Type) > 0 {
		parts := make([]string, len(m.editGate.Params))
		for i, p := range m.editGate.Params {
			parts[i] = circuit.FormatParam(p)
		}
		paramStr := strings.Join(parts, ", ")
		if paramStr == "" {
			paramStr = "none"
		}
		opts = append(opts, editOption{
			label:  fmt.Sprintf("Parameters: %s", paramStr),
			action: "edit_param",
		})
	}

	opts = append(opts, editOption{
		label:  fmt.Sprintf("Target: q[%d]", m.editGate.Target),
		action: "edit_target",
	})

	if m.editGate.Control >= 0 {
		opts = append(opts, editOption{
			label:   fmt.Sprintf("Control: q[%d]", m.editGate.Control),
			action:  "edit_control",
			ctrlIdx: -1,
		})
	}
	for i, ctrl := range m.editGate.Controls {
		opts = append(opts, editOption{
			label:   fmt.Sprintf("Control %d: q[%d]", i+1, ctrl),
			action:  "edit_control",
			ctrlIdx: i,
		})
	}

	opts = append(opts, editOption{
		label:  "Delete gate",
		action: "delete",
	})

	return opts
}

// rightColumnHeights splits the right column between the QASM editor and
// the State panel.
func (m Model) rightColumnHeights() (qasmH, stateH int) {
	const controlsHeight = 6
	total := max(m.height-controlsHeight-2, 6)
	qasmH = max(total*3/5, 4)
	stateH = max(total-qasmH-2, 3)
	return qasmH, stateH
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	qasmWidth := m.width / 3
	circuitWidth := m.width - qasmWidth - 4
	controlsHeight := 6
	circuitHeight := max(m.height-controlsHeight-2, 6)
	qasmH, stateH := m.rightColumnHeights()

	circuitPanel := m.renderCircuitPanel(circuitWidth, circuitHeight)
	rightCol := lipgloss.JoinVertical(lipgloss.Left,
		m.renderQASMPanel(qasmWidth, qasmH),
		m.renderStatePanel(qasmWidth, stateH),
	)
	controlsPanel := m.renderControlsPanel(m.width-4, controlsHeight-2)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, circuitPanel, rightCol)
	frame := lipgloss.JoinVertical(lipgloss.Left, topRow, controlsPanel)

	switch m.focus {
	case focusMenu:
		frame = overlayAt(frame, m.renderMenu(), 2, 2)
	case focusInputParam, focusEditParam:
		frame = overlayAt(frame, m.renderParamInput(), 2, 2)
	case focusEditGate:
		frame = overlayAt(frame, m.renderEditGateMenu(), 2, 2)
	}

	return frame
}

// renderParamInput renders parameter input overlay.
func (m Model) renderParamInput() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Enter Parameter"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Value: %s_", m.paramInput))
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Examples: pi/2, 3*pi/4, 1.57"))
	return menuBorderStyle.Render(sb.String())
}

// renderEditGateMenu renders the edit gate menu overlay.
func (m Model) renderEditGateMenu() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Edit Gate"))
	sb.WriteString("\n")
	if info := circuit.Explain(*m.editGate); info != "" {
		sb.WriteString(dimStyle.Render(info))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	for i, opt := range m.getEditOptions() {
		if i == m.editMenuIdx {
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("▸ %s", opt.label)))
		} else {
			sb.WriteString(fmt.Sprintf("  %s", opt.label))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("↑↓ Select  ⏎ Ok  Esc ✕"))
	return menuBorderStyle.Render(sb.String())
}
