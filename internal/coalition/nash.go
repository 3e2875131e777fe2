package coalition

import (
	"math"

	"go.uber.org/zap"

	"github.com/fogcoal/fogcoal/internal/combinatorics"
	"github.com/fogcoal/fogcoal/internal/game"
	"github.com/fogcoal/fogcoal/internal/mathx"
)

// selectNashStable enumerates every set partition of the players in
// lexicographic order and keeps those where no player strictly improves its
// payoff by unilaterally joining another block or going alone.
func selectNashStable(g *game.Game, visited map[game.CID]*Info, tol float64, log *zap.SugaredLogger) []PartitionInfo {
	var best []PartitionInfo

	players := g.Players()
	part, err := combinatorics.NewPartition(len(players))
	if err != nil {
		return nil
	}

	for part.HasNext() {
		blocks, err := combinatorics.NextPartition(part, players)
		if err != nil {
			break
		}

		candidate := PartitionInfo{Payoffs: make(map[int]float64)}
		for _, block := range blocks {
			cid := game.MakeCID(block...)
			info, ok := visited[cid]
			if !ok {
				continue
			}
			candidate.Value += g.Value(cid)
			candidate.Coalitions = append(candidate.Coalitions, cid)
			for _, pid := range block {
				if p, ok := info.Payoffs[pid]; ok {
					candidate.Payoffs[pid] = p
				} else {
					candidate.Payoffs[pid] = math.NaN()
				}
			}
		}

		if checkNashStability(visited, candidate.Coalitions, tol) {
			log.Debugw("nash-stable partition", "coalitions", cidStrings(candidate.Coalitions), "value", candidate.Value)
			best = append(best, candidate)
		}
	}
	return best
}

// checkNashStability verifies, for every player of every block, that no
// other block of the partition (nor the singleton) would pay the player
// strictly more once joined. A missing payoff in an augmented coalition
// reads as -Inf: an unservable coalition is never preferred.
func checkNashStability(visited map[game.CID]*Info, partition []game.CID, tol float64) bool {
	for _, cid := range partition {
		for _, pid := range cid.Players() {
			current := lookupPayoff(visited, cid, pid)

			// Deviations into the other blocks of the partition.
			for _, other := range partition {
				if other == cid {
					continue
				}
				augmented := other.With(pid)
				if strictlyPreferred(lookupPayoff(visited, augmented, pid), current, tol) {
					return false
				}
			}

			// Deviation into the singleton.
			singleton := game.MakeCID(pid)
			if strictlyPreferred(lookupPayoff(visited, singleton, pid), current, tol) {
				return false
			}
		}
	}
	return true
}

// strictlyPreferred reports whether the deviation payoff beats the current
// one. -Inf marks an unservable coalition: it is never preferred, and any
// finite payoff beats it.
func strictlyPreferred(deviation, current, tol float64) bool {
	if math.IsInf(deviation, -1) {
		return false
	}
	if math.IsInf(current, -1) {
		return true
	}
	return mathx.DefinitelyGreater(deviation, current, tol)
}

// lookupPayoff returns the payoff of pid inside cid, or -Inf when the
// coalition was never valued or has no payoff for the player.
func lookupPayoff(visited map[game.CID]*Info, cid game.CID, pid int) float64 {
	info, ok := visited[cid]
	if !ok || info.Payoffs == nil {
		return math.Inf(-1)
	}
	p, ok := info.Payoffs[pid]
	if !ok {
		return math.Inf(-1)
	}
	return p
}

func cidStrings(cids []game.CID) []string {
	out := make([]string, len(cids))
	for i, c := range cids {
		out[i] = c.String()
	}
	return out
}
