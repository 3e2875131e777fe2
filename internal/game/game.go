// Package game implements the transferable-utility cooperative game helpers
// consumed by the coalition-formation engine: coalition identifiers, an
// enumerated characteristic function, the Shapley value and the core.
package game

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// CID identifies a coalition as a bitmask over player indices. Identifiers
// are canonical: two coalitions are equal exactly when their player sets are.
type CID uint64

// EmptyCID is the identifier of the empty coalition.
const EmptyCID CID = 0

// MakeCID builds the identifier of the coalition formed by the given players.
func MakeCID(players ...int) CID {
	var cid CID
	for _, p := range players {
		cid |= 1 << uint(p)
	}
	return cid
}

// Players returns the member indices of the coalition in increasing order.
func (c CID) Players() []int {
	out := make([]int, 0, bits.OnesCount64(uint64(c)))
	for b := uint64(c); b != 0; b &= b - 1 {
		out = append(out, bits.TrailingZeros64(b))
	}
	return out
}

// Size returns the number of members.
func (c CID) Size() int { return bits.OnesCount64(uint64(c)) }

// Contains reports whether player p belongs to the coalition.
func (c CID) Contains(p int) bool { return c&(1<<uint(p)) != 0 }

// With returns the coalition augmented with player p.
func (c CID) With(p int) CID { return c | 1<<uint(p) }

// Without returns the coalition with player p removed.
func (c CID) Without(p int) CID { return c &^ (1 << uint(p)) }

// String renders the coalition as "{p1,p2,...}".
func (c CID) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range c.Players() {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", p)
	}
	b.WriteByte('}')
	return b.String()
}

// Game is a TU cooperative game over players {0..n-1} with an enumerated
// characteristic function. Unset coalition values read as NaN.
type Game struct {
	numPlayers int
	values     map[CID]float64
}

// New creates a game with n players and an empty characteristic function.
func New(n int) (*Game, error) {
	if n <= 0 || n > 63 {
		return nil, fmt.Errorf("game: number of players must be in [1,63], got %d", n)
	}
	return &Game{numPlayers: n, values: make(map[CID]float64)}, nil
}

// NumPlayers returns the number of players.
func (g *Game) NumPlayers() int { return g.numPlayers }

// Players returns all player indices.
func (g *Game) Players() []int {
	out := make([]int, g.numPlayers)
	for i := range out {
		out[i] = i
	}
	return out
}

// GrandCID returns the identifier of the grand coalition.
func (g *Game) GrandCID() CID {
	return CID(1<<uint(g.numPlayers)) - 1
}

// SetValue records the characteristic-function value of a coalition.
func (g *Game) SetValue(cid CID, v float64) {
	g.values[cid] = v
}

// Value returns the characteristic-function value of a coalition; NaN when
// the coalition has not been valued. The empty coalition is worth zero.
func (g *Game) Value(cid CID) float64 {
	if cid == EmptyCID {
		return 0
	}
	if v, ok := g.values[cid]; ok {
		return v
	}
	return math.NaN()
}

// Subgame restricts the game to the given coalition: the sub-game players
// are the coalition members (keeping their identities) and every subset value
// is inherited.
type Subgame struct {
	parent  *Game
	players []int
	cid     CID
}

// Subgame builds the restriction of g to the members of cid.
func (g *Game) Subgame(cid CID) *Subgame {
	return &Subgame{parent: g, players: cid.Players(), cid: cid}
}

// NumPlayers returns the number of sub-game players.
func (s *Subgame) NumPlayers() int { return len(s.players) }

// Players returns the sub-game player identities in increasing order.
func (s *Subgame) Players() []int {
	return append([]int(nil), s.players...)
}

// GrandCID returns the identifier of the sub-game grand coalition.
func (s *Subgame) GrandCID() CID { return s.cid }

// Value returns the inherited characteristic-function value of a coalition
// of sub-game players.
func (s *Subgame) Value(cid CID) float64 { return s.parent.Value(cid) }
