package circuit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pre-compiled regexps for QASM parsing.
var (
	gateRegex    = regexp.MustCompile(`^(\w+)\s*(?:\(([^)]*)\))?\s+(\w+\[\d+\](?:\s*,\s*\w+\[\d+\])*)\s*;?$`)
	operandRegex = regexp.MustCompile(`(\w+)\[(\d+)\]`)
	measureRegex = regexp.MustCompile(`^measure\s+(\w+)\[(\d+)\]\s*->\s*(\w+)\[(\d+)\]\s*;?$`)
	resetRegex   = regexp.MustCompile(`^reset\s+(\w+)\[(\d+)\]\s*;?$`)
	ifRegex      = regexp.MustCompile(`^if\s*\(\s*(\w+)(?:\[(\d+)\])?\s*==\s*(\d+)\s*\)\s*(.+)$`)
	qregRegex    = regexp.MustCompile(`^qreg\s+(\w+)\[(\d+)\]\s*;?$`)
	cregRegex    = regexp.MustCompile(`^creg\s+(\w+)\[(\d+)\]\s*;?$`)
	noiseRegex   = regexp.MustCompile(`^//\s*noise\s+(\w+)\s+\w+\[(\d+)\](?:\s+param=(` + ParamPattern + `))?$`)
	barrierRegex = regexp.MustCompile(`^barrier(\s+|;|$)`)
)

// ParseError reports a QASM statement that could not be understood.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("qasm line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Unwrap makes parse failures match ErrInvalidCircuit.
func (e *ParseError) Unwrap() error {
	return ErrInvalidCircuit
}

// ToQASM generates QASM 2.0 output from the circuit.
func (c *Circuit) ToQASM() string {
	maxQubit := -1
	for _, g := range c.Gates {
		for _, q := range g.Qubits() {
			maxQubit = max(maxQubit, q)
		}
	}
	numQubits := max(maxQubit+1, c.NumQubits, 1)
	numCbits := max(c.NumCbits(), 1)

	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	sb.WriteString("include \"qelib1.inc\";\n\n")
	fmt.Fprintf(&sb, "qreg q[%d];\n", numQubits)
	fmt.Fprintf(&sb, "creg c[%d];\n\n", numCbits)

	for _, g := range c.Ordered() {
		writeGateQASM(&sb, g, numQubits)
	}
	return sb.String()
}

func writeGateQASM(sb *strings.Builder, g Gate, numQubits int) {
	switch {
	case g.Type == Barrier:
		qubits := make([]string, numQubits)
		for q := range numQubits {
			qubits[q] = fmt.Sprintf("q[%d]", q)
		}
		fmt.Fprintf(sb, "barrier %s;\n", strings.Join(qubits, ", "))
	case g.IsNoise:
		// Noise is not part of QASM 2.0, so it travels as a directive comment.
		if len(g.Params) > 0 {
			fmt.Fprintf(sb, "// noise %s q[%d] param=%s\n", g.NoiseType, g.Target, FormatParam(g.Params[0]))
		} else {
			fmt.Fprintf(sb, "// noise %s q[%d]\n", g.NoiseType, g.Target)
		}
	case g.IsReset || g.Type == Reset:
		fmt.Fprintf(sb, "reset q[%d];\n", g.Target)
	case g.MeasureSource >= 0:
		fmt.Fprintf(sb, "measure q[%d] -> c[%d];\n", g.MeasureSource, g.Cbit)
		fmt.Fprintf(sb, "if (c[%d]==1) x q[%d];\n", g.Cbit, g.Target)
	case g.Type == Measure:
		fmt.Fprintf(sb, "measure q[%d] -> c[%d];\n", g.Target, g.Cbit)
	case g.ClassicalControl >= 0:
		fmt.Fprintf(sb, "if (c[%d]==1) %s;\n", g.ClassicalControl, gateStatement(g))
	default:
		fmt.Fprintf(sb, "%s;\n", gateStatement(g))
	}
}

// gateStatement renders a unitary gate without its trailing semicolon.
func gateStatement(g Gate) string {
	name := strings.ToLower(g.Type)
	if g.IsDagger {
		name += "dg"
	}
	if n := ParamCount(g.Type); n > 0 && len(g.Params) >= n {
		name += "(" + formatParams(g.Params[:n]) + ")"
	}

	operands := make([]string, 0, 3)
	for _, ctrl := range g.Controls {
		operands = append(operands, fmt.Sprintf("q[%d]", ctrl))
	}
	if g.Control >= 0 {
		operands = append(operands, fmt.Sprintf("q[%d]", g.Control))
	}
	operands = append(operands, fmt.Sprintf("q[%d]", g.Target))
	return name + " " + strings.Join(operands, ", ")
}

// ParseQASM parses QASM text into a new circuit.
func ParseQASM(qasm string) (*Circuit, error) {
	c := &Circuit{}
	if err := c.ParseQASM(qasm); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseQASM parses QASM text and rebuilds the circuit from it. Gates acting
// on disjoint qubits are packed into the same step; multi-qubit gates,
// measurements and barriers open a new step.
func (c *Circuit) ParseQASM(qasm string) error {
	p := &qasmParser{
		c:     &Circuit{},
		cregs: make(map[string]creg),
		busy:  make(map[int]bool),
	}

	lines := strings.Split(qasm, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "//") {
			if m := noiseRegex.FindStringSubmatch(line); m != nil {
				if err := p.noise(m); err != nil {
					return p.fail(i, line, err.Error())
				}
			}
			continue
		}
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		consumed, err := p.statement(line, lines, i)
		if err != nil {
			return p.fail(i, line, err.Error())
		}
		i += consumed
	}

	if p.c.NumQubits == 0 {
		for _, g := range p.c.Gates {
			for _, q := range g.Qubits() {
				p.c.NumQubits = max(p.c.NumQubits, q+1)
			}
		}
	}
	*c = *p.c
	return nil
}

type qasmParser struct {
	c          *Circuit
	qreg       string
	cregs      map[string]creg
	cregOffset int
	step       int
	busy       map[int]bool
}

// creg is a declared classical register laid out in the flat bit space.
type creg struct {
	start, size int
}

func (p *qasmParser) fail(idx int, text, reason string) error {
	return &ParseError{Line: idx + 1, Text: text, Reason: reason}
}

// statement parses one line. It returns how many following lines it consumed.
func (p *qasmParser) statement(line string, lines []string, idx int) (int, error) {
	switch {
	case strings.HasPrefix(line, "OPENQASM"), strings.HasPrefix(line, "include"):
		return 0, nil
	case strings.HasPrefix(line, "gate "), strings.HasPrefix(line, "opaque "):
		return 0, fmt.Errorf("custom gate definitions are not supported")
	}

	if m := qregRegex.FindStringSubmatch(line); m != nil {
		if p.qreg != "" {
			return 0, fmt.Errorf("only one quantum register is supported")
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, fmt.Errorf("bad register size %q", m[2])
		}
		p.qreg = m[1]
		p.c.NumQubits = n
		return 0, nil
	}
	if m := cregRegex.FindStringSubmatch(line); m != nil {
		size, err := strconv.Atoi(m[2])
		if err != nil || size > MaxCbits-p.cregOffset {
			return 0, fmt.Errorf("classical registers exceed %d bits", MaxCbits)
		}
		if _, dup := p.cregs[m[1]]; dup {
			return 0, fmt.Errorf("classical register %q declared twice", m[1])
		}
		p.cregs[m[1]] = creg{start: p.cregOffset, size: size}
		p.cregOffset += size
		return 0, nil
	}
	if barrierRegex.MatchString(line) {
		p.place(newGate(Barrier, -1, 0))
		return 0, nil
	}
	if m := resetRegex.FindStringSubmatch(line); m != nil {
		q, err := p.qubit(m[1], m[2])
		if err != nil {
			return 0, err
		}
		g := newGate(Reset, q, 0)
		g.IsReset = true
		p.place(g)
		return 0, nil
	}
	if m := measureRegex.FindStringSubmatch(line); m != nil {
		return p.measure(m, lines, idx)
	}
	if m := ifRegex.FindStringSubmatch(line); m != nil {
		if m[3] != "1" {
			return 0, fmt.Errorf("only ==1 conditions are supported")
		}
		g, err := p.gate(strings.TrimSpace(m[4]))
		if err != nil {
			return 0, err
		}
		if g.Control >= 0 || len(g.Controls) > 0 {
			return 0, fmt.Errorf("classical control is only supported on single-qubit gates")
		}
		bit, err := p.cbit(m[1], m[2])
		if err != nil {
			return 0, err
		}
		g.ClassicalControl = bit
		p.place(g)
		return 0, nil
	}

	g, err := p.gate(line)
	if err != nil {
		return 0, err
	}
	p.place(g)
	return 0, nil
}

// measure handles a measurement, merging it with an immediately following
// "if (c==1) x" on the same bit into a single MCX operation.
func (p *qasmParser) measure(m []string, lines []string, idx int) (int, error) {
	source, err := p.qubit(m[1], m[2])
	if err != nil {
		return 0, err
	}
	cbit, err := p.cbit(m[3], m[4])
	if err != nil {
		return 0, err
	}

	next, skip := "", 0
	for j := idx + 1; j < len(lines); j++ {
		if next = strings.TrimSpace(lines[j]); next != "" {
			skip = j - idx
			break
		}
	}
	if next != "" {
		if im := ifRegex.FindStringSubmatch(next); im != nil && im[3] == "1" && p.sameBit(im[1], im[2], cbit) {
			body := strings.TrimSpace(im[4])
			if g, err := p.gate(body); err == nil && g.Type == "X" && g.Control < 0 && g.Target != source {
				mcx := newGate(MCX, g.Target, 0)
				mcx.MeasureSource = source
				mcx.Cbit = cbit
				p.place(mcx)
				return skip, nil
			}
		}
	}

	g := newGate(Measure, source, 0)
	g.Cbit = cbit
	p.place(g)
	return 0, nil
}

func (p *qasmParser) noise(m []string) error {
	target, err := strconv.Atoi(m[2])
	if err != nil {
		return fmt.Errorf("bad qubit index %q", m[2])
	}
	g := newGate(Noise, target, 0)
	g.IsNoise = true
	g.NoiseType = m[1]
	if m[3] != "" {
		val, ok := ParseParamExpr(m[3])
		if !ok {
			return fmt.Errorf("bad noise parameter %q", m[3])
		}
		g.Params = []float64{val}
	}
	p.place(g)
	return nil
}

// gate parses a unitary gate statement such as "crx(pi/2) q[0], q[1];".
func (p *qasmParser) gate(stmt string) (Gate, error) {
	m := gateRegex.FindStringSubmatch(stmt)
	if m == nil {
		return Gate{}, fmt.Errorf("unrecognized statement")
	}

	gateType := canonicalType(strings.ToUpper(m[1]))
	dagger := false
	if !KnownGate(gateType) && strings.HasSuffix(gateType, "DG") {
		base := strings.TrimSuffix(gateType, "DG")
		if daggerable[base] {
			gateType, dagger = base, true
		}
	}
	if !KnownGate(gateType) || gateType == Measure || gateType == Reset || gateType == Noise || gateType == MCX {
		return Gate{}, fmt.Errorf("unsupported gate %q", m[1])
	}

	var params []float64
	if strings.TrimSpace(m[2]) != "" {
		params = ParseParamList(m[2])
		if params == nil {
			return Gate{}, fmt.Errorf("bad parameters %q", m[2])
		}
	}

	var qubits []int
	for _, om := range operandRegex.FindAllStringSubmatch(m[3], -1) {
		q, err := p.qubit(om[1], om[2])
		if err != nil {
			return Gate{}, err
		}
		qubits = append(qubits, q)
	}

	spec := gateSpecs[gateType]
	if len(qubits) != spec.qubits {
		return Gate{}, fmt.Errorf("%s expects %d qubits, got %d", gateType, spec.qubits, len(qubits))
	}

	// QASM lists controls first and the target last.
	g := newGate(gateType, qubits[len(qubits)-1], 0)
	g.Params = params
	g.IsDagger = dagger
	switch len(qubits) {
	case 2:
		g.Control = qubits[0]
	case 3:
		g.Controls = qubits[:2]
	}
	return g, nil
}

func (p *qasmParser) qubit(reg, idx string) (int, error) {
	if p.qreg != "" && reg != p.qreg {
		return 0, fmt.Errorf("unknown quantum register %q", reg)
	}
	q, err := strconv.Atoi(idx)
	if err != nil {
		return 0, err
	}
	if p.qreg != "" && q >= p.c.NumQubits {
		return 0, fmt.Errorf("qubit %s[%d] out of range", reg, q)
	}
	return q, nil
}

// cbit resolves a classical register reference to a flat bit index.
// Undeclared registers named like "c3" fall back to bit 3.
func (p *qasmParser) cbit(reg, idx string) (int, error) {
	r, ok := p.cregs[reg]
	if !ok {
		r = creg{size: MaxCbits}
		if n, err := strconv.Atoi(strings.TrimPrefix(reg, "c")); err == nil && strings.HasPrefix(reg, "c") {
			if n >= MaxCbits {
				return 0, fmt.Errorf("classical bit %s out of range", reg)
			}
			return n, nil
		}
	}
	if idx == "" {
		return r.start, nil
	}
	offset, err := strconv.Atoi(idx)
	if err != nil || offset >= r.size {
		return 0, fmt.Errorf("classical bit %s[%s] out of range", reg, idx)
	}
	return r.start + offset, nil
}

func (p *qasmParser) sameBit(reg, idx string, bit int) bool {
	b, err := p.cbit(reg, idx)
	return err == nil && b == bit
}
