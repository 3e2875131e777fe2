package game

import (
	"math"
	"math/bits"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/fogcoal/fogcoal/internal/mathx"
)

// Core represents the core of a sub-game: the payoff vectors that no
// sub-coalition can improve upon. Construction decides non-emptiness once;
// membership queries are answered directly from the characteristic function.
type Core struct {
	sub   *Subgame
	empty bool
	tol   float64
}

// FindCore analyzes the core of the sub-game. Non-emptiness is decided by LP
// feasibility of
//
//	{ x : sum_i x_i = v(N),  sum_{i in S} x_i >= v(S) for all S subset N }
//
// Coalitions valued -Inf impose no constraint. A grand coalition without a
// finite value yields an empty core.
func FindCore(s *Subgame) *Core {
	c := &Core{sub: s, tol: mathx.DefaultTolerance}
	c.empty = !coreFeasible(s)
	return c
}

// Empty reports whether the core is empty.
func (c *Core) Empty() bool { return c.empty }

// BelongsToCore reports whether the payoff vector lies in the core:
// efficient with respect to v(N) and coalitionally rational for every
// sub-coalition, under tolerance-aware comparisons.
func (c *Core) BelongsToCore(payoffs map[int]float64) bool {
	if c.empty {
		return false
	}
	players := c.sub.Players()
	grand := c.sub.GrandCID()

	total := 0.0
	for _, p := range players {
		total += payoffs[p]
	}
	if !mathx.EssentiallyEqual(total, c.sub.Value(grand), c.tol) {
		return false
	}

	return forEachProperSubset(players, func(cid CID, members []int) bool {
		v := c.sub.Value(cid)
		if math.IsInf(v, -1) || math.IsNaN(v) {
			return true
		}
		sum := 0.0
		for _, p := range members {
			sum += payoffs[p]
		}
		return mathx.EssentiallyGreaterEqual(sum, v, c.tol)
	})
}

// coreFeasible runs the LP feasibility test.
func coreFeasible(s *Subgame) bool {
	players := s.Players()
	n := len(players)
	vGrand := s.Value(s.GrandCID())
	if math.IsNaN(vGrand) || math.IsInf(vGrand, 0) {
		return false
	}
	if n == 1 {
		return true
	}

	// Column index of each player's payoff variable.
	col := make(map[int]int, n)
	for i, p := range players {
		col[p] = i
	}

	// Inequalities G x <= h: one per proper non-empty subset with a finite
	// value, as -sum_{i in S} x_i <= -v(S).
	var gRows [][]float64
	var h []float64
	forEachProperSubset(players, func(cid CID, members []int) bool {
		v := s.Value(cid)
		if math.IsInf(v, -1) || math.IsNaN(v) {
			return true
		}
		row := make([]float64, n)
		for _, p := range members {
			row[col[p]] = -1
		}
		gRows = append(gRows, row)
		h = append(h, -v)
		return true
	})

	// Equality A x = b: efficiency.
	aRow := make([]float64, n)
	for i := range aRow {
		aRow[i] = 1
	}

	if len(gRows) == 0 {
		// Efficiency alone is always satisfiable.
		return true
	}

	cVec := make([]float64, n) // feasibility only: zero objective

	flat := make([]float64, 0, len(gRows)*n)
	for _, r := range gRows {
		flat = append(flat, r...)
	}
	g := mat.NewDense(len(gRows), n, flat)
	a := mat.NewDense(1, n, aRow)

	cStd, aStd, bStd := lp.Convert(cVec, g, h, a, []float64{vGrand})
	_, _, err := lp.Simplex(cStd, aStd, bStd, 1e-10, nil)
	return err == nil
}

// forEachProperSubset visits every non-empty proper subset of players; the
// callback returns false to stop early. The function reports whether the
// visit ran to completion.
func forEachProperSubset(players []int, fn func(cid CID, members []int) bool) bool {
	n := len(players)
	for mask := uint64(1); mask < (1<<uint(n))-1; mask++ {
		var cid CID
		members := make([]int, 0, n)
		for b := mask; b != 0; b &= b - 1 {
			p := players[bits.TrailingZeros64(b)]
			cid = cid.With(p)
			members = append(members, p)
		}
		if !fn(cid, members) {
			return false
		}
	}
	return true
}
