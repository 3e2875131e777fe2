package game

import (
	"errors"
	"math"
	"testing"
)

func TestCID_Canonical(t *testing.T) {
	a := MakeCID(0, 2, 1)
	b := MakeCID(1, 0, 2)
	if a != b {
		t.Errorf("coalition ids must not depend on member order: %v vs %v", a, b)
	}
	players := a.Players()
	if len(players) != 3 || players[0] != 0 || players[1] != 1 || players[2] != 2 {
		t.Errorf("players = %v, want [0 1 2]", players)
	}
	if a.String() != "{0,1,2}" {
		t.Errorf("String() = %s", a.String())
	}
	if !a.Contains(1) || a.Contains(3) {
		t.Error("membership is wrong")
	}
	if a.With(3).Size() != 4 || a.Without(2).Size() != 2 {
		t.Error("With/Without is wrong")
	}
}

func TestGame_Values(t *testing.T) {
	g, err := New(3)
	if err != nil {
		t.Fatal(err)
	}
	if v := g.Value(EmptyCID); v != 0 {
		t.Errorf("empty coalition value = %v, want 0", v)
	}
	if v := g.Value(MakeCID(0)); !math.IsNaN(v) {
		t.Errorf("unset value = %v, want NaN", v)
	}
	g.SetValue(MakeCID(0, 1), 7)
	if v := g.Value(MakeCID(0, 1)); v != 7 {
		t.Errorf("value = %v, want 7", v)
	}
}

func TestShapley_SumsToCoalitionValue(t *testing.T) {
	g, _ := New(3)
	g.SetValue(MakeCID(0), 1)
	g.SetValue(MakeCID(1), 2)
	g.SetValue(MakeCID(2), 3)
	g.SetValue(MakeCID(0, 1), 5)
	g.SetValue(MakeCID(0, 2), 6)
	g.SetValue(MakeCID(1, 2), 7)
	g.SetValue(MakeCID(0, 1, 2), 12)

	sub := g.Subgame(g.GrandCID())
	phi, err := ShapleyValue(sub)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, p := range sub.Players() {
		sum += phi[p]
	}
	if math.Abs(sum-12) > 1e-9 {
		t.Errorf("payoffs sum to %v, want 12", sum)
	}
}

func TestShapley_SymmetricPlayersSplitEqually(t *testing.T) {
	g, _ := New(2)
	g.SetValue(MakeCID(0), 3)
	g.SetValue(MakeCID(1), 3)
	g.SetValue(MakeCID(0, 1), 10)

	phi, err := ShapleyValue(g.Subgame(g.GrandCID()))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(phi[0]-phi[1]) > 1e-9 {
		t.Errorf("symmetric players must split equally: %v vs %v", phi[0], phi[1])
	}
	if math.Abs(phi[0]-5) > 1e-9 {
		t.Errorf("payoff = %v, want 5", phi[0])
	}
}

func TestShapley_SubgamePreservesIdentities(t *testing.T) {
	g, _ := New(3)
	g.SetValue(MakeCID(1), 4)
	g.SetValue(MakeCID(2), 2)
	g.SetValue(MakeCID(1, 2), 10)

	phi, err := ShapleyValue(g.Subgame(MakeCID(1, 2)))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := phi[0]; ok {
		t.Error("player 0 is not in the subgame")
	}
	// phi_1 = (4 + 10-2)/2 = 6, phi_2 = (2 + 10-4)/2 = 4.
	if math.Abs(phi[1]-6) > 1e-9 || math.Abs(phi[2]-4) > 1e-9 {
		t.Errorf("payoffs = %v, want 6 and 4", phi)
	}
}

func TestShapley_Overflow(t *testing.T) {
	if _, err := factorial(21); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow for 21!, got %v", err)
	}
}

func TestCore_NonEmptySuperadditive(t *testing.T) {
	g, _ := New(2)
	g.SetValue(MakeCID(0), 1)
	g.SetValue(MakeCID(1), 1)
	g.SetValue(MakeCID(0, 1), 4)

	core := FindCore(g.Subgame(g.GrandCID()))
	if core.Empty() {
		t.Fatal("the core of a superadditive 2-player game is non-empty")
	}
	if !core.BelongsToCore(map[int]float64{0: 2, 1: 2}) {
		t.Error("the equal split lies in the core")
	}
	if core.BelongsToCore(map[int]float64{0: 3.5, 1: 0.5}) {
		t.Error("a split below a singleton value cannot lie in the core")
	}
	if core.BelongsToCore(map[int]float64{0: 3, 1: 3}) {
		t.Error("an inefficient split cannot lie in the core")
	}
}

func TestCore_EmptyMajorityGame(t *testing.T) {
	// Three-player simple majority game: every two-player coalition wins.
	// Its core is famously empty.
	g, _ := New(3)
	g.SetValue(MakeCID(0), 0)
	g.SetValue(MakeCID(1), 0)
	g.SetValue(MakeCID(2), 0)
	g.SetValue(MakeCID(0, 1), 1)
	g.SetValue(MakeCID(0, 2), 1)
	g.SetValue(MakeCID(1, 2), 1)
	g.SetValue(MakeCID(0, 1, 2), 1)

	core := FindCore(g.Subgame(g.GrandCID()))
	if !core.Empty() {
		t.Error("the majority game has an empty core")
	}
}

func TestCore_SingletonAlwaysNonEmpty(t *testing.T) {
	g, _ := New(2)
	g.SetValue(MakeCID(0), 5)
	core := FindCore(g.Subgame(MakeCID(0)))
	if core.Empty() {
		t.Error("a singleton subgame always has a non-empty core")
	}
	if !core.BelongsToCore(map[int]float64{0: 5}) {
		t.Error("the singleton value lies in its core")
	}
}
