package placement

import (
	"context"
	"math"
	"testing"
)

// makeInput builds a single-FP problem with nfns identical FNs and one
// service sized to nvms replicas. Every VM needs half an FN of CPU and RAM.
func makeInput(nfns, nvms int, delays []float64, penalty float64) Input {
	fns := make([]int, nfns)
	fnOwners := make([]int, nfns)
	fnCats := make([]int, nfns)
	power := make([]bool, nfns)
	for i := range fns {
		fns[i] = i
		power[i] = true
	}
	vms := make([]int, nvms)
	vmSvcs := make([]int, nvms)
	for j := range vms {
		vms[j] = j
	}
	return Input{
		FNs:                fns,
		VMs:                vms,
		FNOwners:           fnOwners,
		FNCategories:       fnCats,
		FNPowerStates:      power,
		FNMinPowers:        []float64{0.1},
		FNMaxPowers:        []float64{0.2},
		VMServices:         vmSvcs,
		SvcVMCategories:    []int{0},
		CPURequirements:    [][]float64{{0.5}},
		RAMRequirements:    [][]float64{{0.5}},
		SvcOwners:          []int{0},
		SvcCategories:      []int{0},
		SvcMaxDelays:       []float64{1.0},
		SvcPredictedDelays: [][]float64{delays},
		SvcPenalties:       [][]float64{{penalty}},
		ElectricityCosts:   []float64{0.1},
		FNAsleepCosts:      [][]float64{{0.01}},
		FNAwakeCosts:       [][]float64{{0.02}},
	}
}

func checkConstraints(t *testing.T, in Input, a Allocation) {
	t.Helper()
	for j := range in.VMs {
		hosts := 0
		for i := range in.FNs {
			if a.FNVMAllocations[i][j] {
				hosts++
				if !a.FNPowerStates[i] {
					t.Errorf("VM %d placed on powered-off FN %d", j, i)
				}
			}
		}
		if hosts > 1 {
			t.Errorf("VM %d placed %d times", j, hosts)
		}
	}
	for i := range in.FNs {
		cpu, ram := 0.0, 0.0
		for j := range in.VMs {
			if a.FNVMAllocations[i][j] {
				cpu += in.cpuReq(i, j)
				ram += in.ramReq(i, j)
			}
		}
		if cpu > 1+1e-9 {
			t.Errorf("FN %d CPU overcommitted: %v", i, cpu)
		}
		if ram > 1+1e-9 {
			t.Errorf("FN %d RAM overcommitted: %v", i, ram)
		}
	}
}

func TestBranchAndBound_SingleVMSingleFN(t *testing.T) {
	in := makeInput(1, 1, []float64{math.Inf(1), 0.15}, 100)
	solver := &BranchAndBound{}
	a, err := solver.Solve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Solved || !a.Optimal {
		t.Fatalf("expected an optimal solution, got solved=%t optimal=%t", a.Solved, a.Optimal)
	}
	checkConstraints(t, in, a)
	if !a.FNVMAllocations[0][0] {
		t.Error("the VM must be placed")
	}
	if !a.FNPowerStates[0] {
		t.Error("the hosting FN must stay on")
	}
	// Electricity only: (0.1 + 0.1*0.5) * 0.1
	want := (0.1 + 0.1*0.5) * 0.1
	if math.Abs(a.ObjectiveValue-want) > 1e-9 {
		t.Errorf("objective = %v, want %v", a.ObjectiveValue, want)
	}
}

func TestBranchAndBound_ZeroVMsPowersOff(t *testing.T) {
	// With nothing to place, the optimum is each FN's cheaper idle choice:
	// here powering off a previously-on FN costs the asleep transition.
	in := makeInput(2, 0, []float64{math.Inf(1)}, 0)
	solver := &BranchAndBound{}
	a, err := solver.Solve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Solved {
		t.Fatal("an empty placement is always feasible")
	}
	want := 2 * 0.01 // two asleep transitions
	if math.Abs(a.ObjectiveValue-want) > 1e-9 {
		t.Errorf("objective = %v, want %v", a.ObjectiveValue, want)
	}
	for i := range in.FNs {
		if a.FNPowerStates[i] {
			t.Errorf("FN %d should be powered off", i)
		}
	}
}

func TestBranchAndBound_InfeasibleOvercommit(t *testing.T) {
	// Three half-FN VMs on a single FN: at most two fit, and the missing
	// replica carries an infinite delay with a positive penalty.
	in := makeInput(1, 3, []float64{math.Inf(1), math.Inf(1), math.Inf(1), 0.15}, 100)
	solver := &BranchAndBound{}
	a, err := solver.Solve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if a.Solved {
		t.Fatalf("expected infeasibility, got objective %v", a.ObjectiveValue)
	}
	if !math.IsNaN(a.ObjectiveValue) {
		t.Errorf("objective of an unsolved problem must be NaN, got %v", a.ObjectiveValue)
	}
}

func TestBranchAndBound_ZeroPenaltyAllowsDropping(t *testing.T) {
	// With a zero penalty rate the solver may leave the replica unplaced and
	// power everything off.
	in := makeInput(1, 1, []float64{math.Inf(1), 0.15}, 0)
	solver := &BranchAndBound{}
	a, err := solver.Solve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Solved {
		t.Fatal("expected a solution")
	}
	checkConstraints(t, in, a)
	if a.ObjectiveValue > 0.01+1e-9 {
		t.Errorf("objective = %v, want at most the asleep cost", a.ObjectiveValue)
	}
}

func TestBranchAndBound_PrefersSecondReplicaOverPenalty(t *testing.T) {
	// Two replicas, two FNs. Penalty for running on one replica dwarfs the
	// electricity of a second host, so both must be placed.
	delays := []float64{math.Inf(1), 5.0, 0.5}
	in := makeInput(2, 2, delays, 1000)
	solver := &BranchAndBound{}
	a, err := solver.Solve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Solved {
		t.Fatal("expected a solution")
	}
	checkConstraints(t, in, a)
	placed := 0
	for j := range in.VMs {
		for i := range in.FNs {
			if a.FNVMAllocations[i][j] {
				placed++
			}
		}
	}
	if placed != 2 {
		t.Errorf("placed %d replicas, want 2", placed)
	}
}

func TestBranchAndBound_AwakeCostCharged(t *testing.T) {
	in := makeInput(1, 1, []float64{math.Inf(1), 0.15}, 100)
	in.FNPowerStates = []bool{false} // FN starts off
	solver := &BranchAndBound{}
	a, err := solver.Solve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Solved {
		t.Fatal("expected a solution")
	}
	want := (0.1+0.1*0.5)*0.1 + 0.02 // electricity + awake transition
	if math.Abs(a.ObjectiveValue-want) > 1e-9 {
		t.Errorf("objective = %v, want %v", a.ObjectiveValue, want)
	}
}
