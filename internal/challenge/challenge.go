// Package challenge checks measured circuits against a catalog of target
// outcome distributions.
package challenge

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"qtermbloch/internal/quantum"
)

//go:embed challenges.yaml
var catalogYAML []byte

// ErrUnknownChallenge is returned by Catalog.Get for unknown ids.
var ErrUnknownChallenge = errors.New("unknown challenge")

// NeedsMeasurementHint is the message returned for unmeasured circuits.
const NeedsMeasurementHint = "Add measurement to verify results!"

// Challenge is one target distribution.
type Challenge struct {
	ID          string             `yaml:"id" json:"id" msgpack:"id"`
	Title       string             `yaml:"title" json:"title" msgpack:"title"`
	Description string             `yaml:"description" json:"description" msgpack:"description"`
	Qubits      int                `yaml:"qubits" json:"qubits" msgpack:"qubits"`
	Expected    map[string]float64 `yaml:"expected" json:"expected" msgpack:"expected"`
	Tolerance   float64            `yaml:"tolerance" json:"tolerance" msgpack:"tolerance"`
}

// Result is the verdict for one run.
type Result struct {
	Challenge string         `json:"challenge" msgpack:"challenge"`
	Passed    bool           `json:"passed" msgpack:"passed"`
	Message   string         `json:"message,omitempty" msgpack:"message,omitempty"`
	Counts    quantum.Counts `json:"counts" msgpack:"counts"`
}

// Catalog holds challenges by id.
type Catalog struct {
	byID map[string]*Challenge
	ids  []string
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Challenges []*Challenge `yaml:"challenges"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse challenges: %w", err)
	}

	cat := &Catalog{byID: make(map[string]*Challenge, len(doc.Challenges))}
	for _, ch := range doc.Challenges {
		if err := ch.validate(); err != nil {
			return nil, err
		}
		if _, dup := cat.byID[ch.ID]; dup {
			return nil, fmt.Errorf("challenge %q defined twice", ch.ID)
		}
		cat.byID[ch.ID] = ch
		cat.ids = append(cat.ids, ch.ID)
	}
	return cat, nil
}

func (c *Challenge) validate() error {
	if c.ID == "" {
		return fmt.Errorf("challenge without id")
	}
	if len(c.Expected) == 0 {
		return fmt.Errorf("challenge %q: no expected outcomes", c.ID)
	}
	sum := 0.0
	for bits, p := range c.Expected {
		if len(bits) != c.Qubits {
			return fmt.Errorf("challenge %q: outcome %q does not have %d bits", c.ID, bits, c.Qubits)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("challenge %q: expected frequencies sum to %g", c.ID, sum)
	}
	if c.Tolerance < 0 || c.Tolerance > 1 {
		return fmt.Errorf("challenge %q: tolerance %g outside [0, 1]", c.ID, c.Tolerance)
	}
	return nil
}

// Get returns the challenge with the given id.
func (c *Catalog) Get(id string) (*Challenge, error) {
	ch, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChallenge, id)
	}
	return ch, nil
}

// List returns the challenges in catalog order.
func (c *Catalog) List() []*Challenge {
	out := make([]*Challenge, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.byID[id]
	}
	return out
}

// Evaluate judges counts from a run. An unmeasured circuit never passes.
// Otherwise the observed outcomes must be exactly the expected ones, each
// with a frequency within tolerance.
func (c *Challenge) Evaluate(counts quantum.Counts, measured bool) Result {
	res := Result{Challenge: c.ID, Counts: counts}
	if !measured {
		res.Counts = quantum.Counts{}
		res.Message = NeedsMeasurementHint
		return res
	}

	total := counts.Total()
	if total == 0 {
		res.Message = "No shots were recorded."
		return res
	}

	for _, bits := range sortedKeys(counts) {
		if _, ok := c.Expected[bits]; !ok && counts[bits] > 0 {
			res.Message = fmt.Sprintf("Unexpected outcome %s.", bits)
			return res
		}
	}
	for _, bits := range sortedKeys(c.Expected) {
		want := c.Expected[bits]
		got := float64(counts[bits]) / float64(total)
		if math.Abs(got-want) > c.Tolerance+1e-12 {
			res.Message = fmt.Sprintf("Outcome %s seen %.1f%% of the time, expected %.1f%%.", bits, got*100, want*100)
			return res
		}
	}

	res.Passed = true
	res.Message = "Challenge passed!"
	return res
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
