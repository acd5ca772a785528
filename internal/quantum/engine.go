package quantum

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"qtermbloch/internal/circuit"
)

// ErrSimulation is wrapped by every execution failure.
var ErrSimulation = errors.New("simulation failed")

// DefaultShots is used when a measured circuit is executed without a shot count.
const DefaultShots = 1024

// ExecOptions tune Execute.
type ExecOptions struct {
	Shots int
	Noise *NoiseModel
}

// Result is the outcome of executing a snapshot: counts for measured
// circuits, the final statevector otherwise.
type Result struct {
	Counts Counts
	State  *StateVector
	Shots  int
	Path   string
}

// Engine runs circuit snapshots on the statevector simulator. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	log       zerolog.Logger
	workers   int
	maxQubits int
}

// NewEngine creates an engine. workers bounds trajectory parallelism
// (GOMAXPROCS when <= 0); maxQubits <= 0 disables the width limit.
func NewEngine(log zerolog.Logger, workers, maxQubits int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		log:       log.With().Str("component", "engine").Logger(),
		workers:   workers,
		maxQubits: maxQubits,
	}
}

func (e *Engine) checkWidth(n int) error {
	if e.maxQubits > 0 && n > e.maxQubits {
		return fmt.Errorf("%w: %d qubits exceeds the limit of %d", ErrSimulation, n, e.maxQubits)
	}
	return nil
}

// Statevector evolves |0...0⟩ through the unitary part of the snapshot.
// Measurements, noise and classically controlled gates leave the pure state
// untouched; a reset collapses onto its likelier outcome before returning
// the qubit to |0⟩.
func (e *Engine) Statevector(ctx context.Context, snap *circuit.Snapshot) (*StateVector, error) {
	start := time.Now()
	sv, err := e.evolve(ctx, snap)
	e.observe(PathStatevector, start, err)
	return sv, err
}

func (e *Engine) evolve(ctx context.Context, snap *circuit.Snapshot) (*StateVector, error) {
	if err := e.checkWidth(snap.NumQubits()); err != nil {
		return nil, err
	}
	sv := NewStateVector(snap.NumQubits())
	for _, g := range snap.Gates() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSimulation, err)
		}
		switch {
		case g.Type == circuit.Barrier, g.IsMeasurement(), g.IsNoise, g.ClassicalControl >= 0:
			continue
		case g.IsReset, g.Type == circuit.Reset:
			p1 := sv.Prob1(g.Target)
			outcome := 0
			if p1 > 0.5 {
				outcome = 1
			}
			sv.Reset(g.Target, outcome)
		default:
			if err := sv.ApplyGate(g); err != nil {
				return nil, fmt.Errorf("%w: step %d: %w", ErrSimulation, g.Step, err)
			}
		}
	}
	return sv, nil
}

// Sample runs shots of a measured snapshot and returns classical counts.
func (e *Engine) Sample(ctx context.Context, snap *circuit.Snapshot, shots int, noise *NoiseModel) (Counts, string, error) {
	if shots <= 0 {
		return nil, "", fmt.Errorf("%w: shots must be positive, got %d", ErrSimulation, shots)
	}
	if !snap.Measured() {
		return nil, "", fmt.Errorf("%w: circuit has no measurements", ErrSimulation)
	}
	if err := noise.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: noise model: %w", ErrSimulation, err)
	}
	if err := e.checkWidth(snap.NumQubits()); err != nil {
		return nil, "", err
	}

	start := time.Now()
	gates := snap.Gates()
	width := snap.NumCbits()

	var (
		counts Counts
		err    error
		path   = PathFast
	)
	if needsTrajectory(gates, noise) {
		path = PathTrajectory
		counts, err = sampleTrajectories(ctx, snap.NumQubits(), gates, width, shots, e.workers, noise)
	} else {
		var sv *StateVector
		sv, err = e.evolve(ctx, snap)
		if err == nil {
			counts, err = sampleTerminal(ctx, sv, gates, width, shots, noise.readout())
		}
	}
	if err != nil && !errors.Is(err, ErrSimulation) {
		err = fmt.Errorf("%w: %w", ErrSimulation, err)
	}
	e.observe(path, start, err)
	if err != nil {
		return nil, path, err
	}

	shotsSampled.Add(float64(shots))
	e.log.Debug().
		Str("path", path).
		Int("qubits", snap.NumQubits()).
		Int("shots", shots).
		Int("outcomes", len(counts)).
		Dur("elapsed", time.Since(start)).
		Msg("sampled circuit")
	return counts, path, nil
}

// Execute runs a snapshot the way its classification demands: measured
// circuits are sampled, unmeasured circuits return their statevector.
func (e *Engine) Execute(ctx context.Context, snap *circuit.Snapshot, opts ExecOptions) (*Result, error) {
	if !snap.Measured() {
		sv, err := e.Statevector(ctx, snap)
		if err != nil {
			return nil, err
		}
		return &Result{State: sv, Path: PathStatevector}, nil
	}

	shots := opts.Shots
	if shots == 0 {
		shots = DefaultShots
	}
	counts, path, err := e.Sample(ctx, snap, shots, opts.Noise)
	if err != nil {
		return nil, err
	}
	return &Result{Counts: counts, Shots: shots, Path: path}, nil
}

// PartialTrace returns the reduced density matrix of qubit keep.
func (e *Engine) PartialTrace(sv *StateVector, keep int) (mat.CMatrix, error) {
	dm, err := ReducedQubit(sv, keep)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSimulation, err)
	}
	return dm.CDense, nil
}

func (e *Engine) observe(path string, start time.Time, err error) {
	simulations.WithLabelValues(path).Inc()
	simulationDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		simulationFailures.WithLabelValues(path).Inc()
		e.log.Warn().Err(err).Str("path", path).Msg("simulation failed")
	}
}
