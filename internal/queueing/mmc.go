// Package queueing provides the M/M/c mean-delay model used to size services.
package queueing

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/fogcoal/fogcoal/internal/mathx"
)

// ErrNotComputed is returned when delays are requested before
// ComputeQueueParameters has run.
var ErrNotComputed = errors.New("queueing: queue parameters have not been computed yet")

// MMC models an M/M/c queueing station with arrival rate lambda, per-server
// service rate mu and a target mean sojourn time. ComputeQueueParameters
// finds the smallest number of servers whose predicted mean sojourn stays
// within the target.
type MMC struct {
	lambda   float64
	mu       float64
	delayMax float64
	prec     float64
	delays   []float64
	log      *zap.SugaredLogger
}

// NewMMC creates an M/M/c model. When delayMax is below the bare service time
// 1/mu, it is clamped to 1/mu (no queueing admitted) and a warning is logged.
func NewMMC(lambda, mu, delayMax, precision float64, log *zap.SugaredLogger) *MMC {
	if precision <= 0 {
		precision = mathx.DefaultTolerance
	}
	if mathx.DefinitelyLess(delayMax, 1.0/mu, precision) {
		if log != nil {
			log.Warnw("infeasible minimum delay, clamping to the station service time (no queue admitted)",
				"max_delay", delayMax,
				"service_time", 1.0/mu)
		}
		delayMax = 1.0 / mu
	}
	return &MMC{
		lambda:   lambda,
		mu:       mu,
		delayMax: delayMax,
		prec:     precision,
		log:      log,
	}
}

// ComputeQueueParameters grows the server count until the predicted mean
// sojourn drops within the target, recording the delay achieved at every
// intermediate count. It returns the minimum number of servers. The iterative
// flag selects the iterative Erlang recursion; otherwise the recursive
// formulation is used (both compute the same quantity).
func (m *MMC) ComputeQueueParameters(iterative bool) int {
	delay := math.Inf(1)
	n := 0
	for mathx.DefinitelyGreater(delay, m.delayMax, m.prec) {
		n++
		if iterative {
			_, delay = m.erlang(n)
		} else {
			_, delay = m.solveErlangC(n)
		}
		m.delays = append(m.delays, delay)
	}
	return n
}

// erlang computes the queueing probability and mean sojourn for c servers
// using the iterative Erlang-B recurrence.
func (m *MMC) erlang(c int) (pq, delay float64) {
	rho := m.lambda / m.mu
	if mathx.EssentiallyGreaterEqual(rho/float64(c), 1.0, m.prec) {
		return 1.0, math.Inf(1)
	}
	pb := 1.0
	for j := 1; j <= c; j++ {
		pb = (rho * pb) / (float64(j) + pb*rho)
	}
	rho /= float64(c)
	pq = pb / (1 - rho + rho*pb)
	delay = pq/(float64(c)*m.mu-m.lambda) + 1.0/m.mu
	return pq, delay
}

// solveErlangC computes the same quantities through the recursive Erlang
// formulation.
func (m *MMC) solveErlangC(c int) (pq, delay float64) {
	rho := m.lambda / m.mu
	if mathx.EssentiallyGreaterEqual(rho/float64(c), 1.0, m.prec) {
		return 1.0, math.Inf(1)
	}
	pb := recursiveErlang(c, rho)
	rho /= float64(c)
	pq = pb / (1 - rho + rho*pb)
	delay = pq/(float64(c)*m.mu-m.lambda) + 1.0/m.mu
	return pq, delay
}

// recursiveErlang computes the Erlang-B blocking probability for c servers at
// offered load a.
func recursiveErlang(c int, a float64) float64 {
	if c == 0 {
		return 1.0
	}
	eLast := recursiveErlang(c-1, a)
	return (a * eLast) / (float64(c) + a*eLast)
}

// Delays returns the achievable mean sojourn by server count: index 0 holds
// +Inf (no servers), index k the delay with k servers. The sequence is
// monotone non-increasing.
func (m *MMC) Delays() ([]float64, error) {
	if len(m.delays) == 0 {
		return nil, ErrNotComputed
	}
	out := make([]float64, 0, len(m.delays)+1)
	out = append(out, math.Inf(1))
	out = append(out, m.delays...)
	return out, nil
}

// Delay returns the mean sojourn achievable with c servers. c == 0 yields
// +Inf; counts beyond the computed range clamp to the largest computed count.
func (m *MMC) Delay(c int) (float64, error) {
	if len(m.delays) == 0 {
		return 0, ErrNotComputed
	}
	if c < 0 {
		return 0, fmt.Errorf("queueing: negative server count %d", c)
	}
	if c == 0 {
		return math.Inf(1), nil
	}
	if c > len(m.delays) {
		c = len(m.delays)
	}
	return m.delays[c-1], nil
}
