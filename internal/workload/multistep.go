// Package workload provides arrival-rate generators for simulated services.
package workload

import (
	"fmt"
	"math/rand"
)

// Step is one (duration, arrival-rate) segment of a workload profile.
type Step struct {
	Duration    float64
	ArrivalRate float64
}

// Generator produces the next workload burst for a service. Implementations
// may consume randomness from rng; deterministic generators ignore it.
type Generator interface {
	Next(rng *rand.Rand) Step
}

// Multistep cycles through a fixed list of steps, restarting from the first
// one after the last. It is a deterministic, infinite, restartable source;
// the RNG argument exists only for interface uniformity.
type Multistep struct {
	steps []Step
	next  int
}

// NewMultistep creates a cyclic generator over the given steps. The list must
// be non-empty.
func NewMultistep(steps []Step) (*Multistep, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("workload: multistep generator needs at least one step")
	}
	own := make([]Step, len(steps))
	copy(own, steps)
	return &Multistep{steps: own}, nil
}

// Next returns the current step and advances the cursor modulo the list
// length.
func (m *Multistep) Next(_ *rand.Rand) Step {
	s := m.steps[m.next]
	m.next = (m.next + 1) % len(m.steps)
	return s
}

// Restart rewinds the generator to the first step.
func (m *Multistep) Restart() {
	m.next = 0
}

// Len returns the number of steps in the cycle.
func (m *Multistep) Len() int { return len(m.steps) }
