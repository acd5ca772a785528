package quantum

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"qtermbloch/internal/circuit"
)

// Counts maps classical bitstrings (bit 0 rightmost) to shot counts.
type Counts map[string]int

// Total returns the number of shots recorded.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// needsTrajectory reports whether shots must be simulated one at a time:
// anything that makes the pre-measurement state depend on earlier outcomes
// or on random channels.
func needsTrajectory(gates []circuit.Gate, noise *NoiseModel) bool {
	if noise.HasGateErrors() {
		return true
	}
	measured := make(map[int]bool)
	for _, g := range gates {
		switch {
		case g.IsNoise, g.MeasureSource >= 0, g.ClassicalControl >= 0, g.IsReset, g.Type == circuit.Reset:
			return true
		case g.Type == circuit.Measure:
			measured[g.Target] = true
		case g.Type == circuit.Barrier:
		default:
			for _, q := range g.Qubits() {
				if measured[q] {
					return true
				}
			}
		}
	}
	return false
}

// sampleTerminal draws all shots from a single evolved state. Only valid
// when every measurement is terminal.
func sampleTerminal(ctx context.Context, sv *StateVector, gates []circuit.Gate, width, shots int, readout float64) (Counts, error) {
	probs := sv.Probabilities()
	total := 0.0
	for _, p := range probs {
		total += p
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("state has no valid probability mass (%g)", total)
	}

	var measures []circuit.Gate
	for _, g := range gates {
		if g.Type == circuit.Measure {
			measures = append(measures, g)
		}
	}

	dist := distuv.NewCategorical(probs, nil)
	counts := make(Counts)
	bits := make([]int, width)
	for shot := 0; shot < shots; shot++ {
		if shot%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		idx := int(dist.Rand())
		clear(bits)
		for _, m := range measures {
			bits[m.Cbit] = flipReadout((idx>>m.Target)&1, readout)
		}
		counts[formatBits(bits)]++
	}
	return counts, nil
}

// sampleTrajectories simulates each shot independently, splitting the shots
// into one batch per worker.
func sampleTrajectories(ctx context.Context, numQubits int, gates []circuit.Gate, width, shots, workers int, noise *NoiseModel) (Counts, error) {
	batches := max(min(workers, shots), 1)
	per, rem := shots/batches, shots%batches

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var mu sync.Mutex
	counts := make(Counts)
	for b := 0; b < batches; b++ {
		n := per
		if b < rem {
			n++
		}
		g.Go(func() error {
			local := make(Counts)
			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				key, err := runShot(numQubits, gates, width, noise)
				if err != nil {
					return err
				}
				local[key]++
			}
			mu.Lock()
			defer mu.Unlock()
			for k, v := range local {
				counts[k] += v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// runShot evolves one trajectory with collapse and returns its bitstring.
func runShot(numQubits int, gates []circuit.Gate, width int, noise *NoiseModel) (string, error) {
	sv := NewStateVector(numQubits)
	bits := make([]int, width)
	readout := noise.readout()

	for _, g := range gates {
		switch {
		case g.Type == circuit.Barrier:
		case g.IsNoise:
			if err := sv.applyChannel(g.Target, g.NoiseType, g.Params[0]); err != nil {
				return "", err
			}
		case g.Type == circuit.Measure:
			bits[g.Cbit] = flipReadout(measureQubit(sv, g.Target), readout)
		case g.MeasureSource >= 0:
			bits[g.Cbit] = flipReadout(measureQubit(sv, g.MeasureSource), readout)
			if bits[g.Cbit] == 1 {
				sv.apply(g.Target, pauliX)
			}
		case g.IsReset, g.Type == circuit.Reset:
			sv.Reset(g.Target, drawOutcome(sv, g.Target))
		default:
			if g.ClassicalControl >= 0 && bits[g.ClassicalControl] != 1 {
				continue
			}
			if err := sv.ApplyGate(g); err != nil {
				return "", err
			}
			for _, e := range noise.after(g.Type) {
				for _, q := range g.Qubits() {
					if err := sv.applyChannel(q, e.Channel, e.Probability); err != nil {
						return "", err
					}
				}
			}
		}
	}
	return formatBits(bits), nil
}

func drawOutcome(sv *StateVector, q int) int {
	p1 := min(max(sv.Prob1(q), 0), 1)
	return int(distuv.Bernoulli{P: p1}.Rand())
}

// measureQubit samples qubit q and collapses the state onto the outcome.
func measureQubit(sv *StateVector, q int) int {
	out := drawOutcome(sv, q)
	if !sv.Collapse(q, out) {
		out = 1 - out
		sv.Collapse(q, out)
	}
	return out
}

func flipReadout(bit int, p float64) int {
	if p > 0 && (distuv.Bernoulli{P: p}).Rand() == 1 {
		return 1 - bit
	}
	return bit
}

// formatBits renders classical bits with bit 0 rightmost.
func formatBits(bits []int) string {
	var sb strings.Builder
	sb.Grow(len(bits))
	for i := len(bits) - 1; i >= 0; i-- {
		if bits[i] == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
