package game

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// ErrOverflow reports an integer overflow in a combinatorial count.
var ErrOverflow = errors.New("game: combinatorial count overflow")

// factorial returns n! as a uint64, failing with ErrOverflow past 20!.
func factorial(n int) (uint64, error) {
	if n < 0 {
		return 0, fmt.Errorf("game: factorial of negative %d", n)
	}
	if n > 20 {
		return 0, fmt.Errorf("%w: %d!", ErrOverflow, n)
	}
	f := uint64(1)
	for i := 2; i <= n; i++ {
		f *= uint64(i)
	}
	return f, nil
}

// ShapleyValue computes the Shapley payoff of every sub-game player:
//
//	phi_i = sum over S subseteq N\{i} of |S|!(n-|S|-1)!/n! * (v(S u {i}) - v(S))
//
// Sub-coalitions without a finite value (no feasible placement) contribute
// zero to the marginal terms, so payoffs stay finite. The player count is
// bounded by the factorial range; larger games fail with ErrOverflow before
// any enumeration happens.
func ShapleyValue(s *Subgame) (map[int]float64, error) {
	players := s.Players()
	n := len(players)
	nFact, err := factorial(n)
	if err != nil {
		return nil, err
	}

	// Marginal-contribution weights by |S|.
	weights := make([]float64, n)
	for size := 0; size < n; size++ {
		sf, err := factorial(size)
		if err != nil {
			return nil, err
		}
		cf, err := factorial(n - size - 1)
		if err != nil {
			return nil, err
		}
		weights[size] = float64(sf) * float64(cf) / float64(nFact)
	}

	phi := make(map[int]float64, n)
	for _, pid := range players {
		others := make([]int, 0, n-1)
		for _, q := range players {
			if q != pid {
				others = append(others, q)
			}
		}

		sum := 0.0
		// Enumerate every S subseteq others by bitmask; n is small by the
		// factorial bound above.
		for mask := uint64(0); mask < 1<<uint(len(others)); mask++ {
			var cid CID
			size := 0
			for b := mask; b != 0; b &= b - 1 {
				cid = cid.With(others[bits.TrailingZeros64(b)])
				size++
			}
			sum += weights[size] * (finiteOrZero(s.Value(cid.With(pid))) - finiteOrZero(s.Value(cid)))
		}
		phi[pid] = sum
	}
	return phi, nil
}

func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
