// Package placement decides which fog nodes are powered on and which VM
// replicas land on which node, minimizing electricity, power-transition and
// SLA-violation costs for a candidate coalition.
package placement

import (
	"context"
	"math"
	"sort"
)

// Input describes one placement problem. FN and VM identities are global
// indices; the lookup tables are indexed by those global identities (or by
// category where noted). Outputs use local indices, i.e. positions within
// FNs and VMs.
type Input struct {
	FNs []int // identities of the coalition's FNs
	VMs []int // identities of the VM replicas to place

	FNOwners      []int   // FN -> owning FP
	FNCategories  []int   // FN -> FN category
	FNPowerStates []bool  // FN -> power state before solving
	FNMinPowers   []float64 // min power draw, by FN category (kW)
	FNMaxPowers   []float64 // max power draw, by FN category (kW)

	VMServices      []int // VM -> service it replicates
	SvcVMCategories []int // service category -> VM category

	CPURequirements [][]float64 // CPU fraction, by VM category and FN category
	RAMRequirements [][]float64 // RAM fraction, by VM category and FN category

	SvcOwners          []int       // service -> owning FP
	SvcCategories      []int       // service -> service category
	SvcMaxDelays       []float64   // max tolerated delay, by service category
	SvcPredictedDelays [][]float64 // achievable delay, by service and VM count (index 0 = +Inf)

	SvcPenalties     [][]float64 // SLA penalty rate, by FP and service category
	ElectricityCosts []float64   // $/kWh, by FP
	FNAsleepCosts    [][]float64 // power-off cost, by FP and FN category
	FNAwakeCosts     [][]float64 // power-on cost, by FP and FN category
}

// Allocation is the solver output. FNVMAllocations[i][j] is true when the
// j-th input VM runs on the i-th input FN; FNPowerStates[i] is the decided
// power state of the i-th input FN.
type Allocation struct {
	Solved          bool
	Optimal         bool
	ObjectiveValue  float64
	FNVMAllocations [][]bool
	FNPowerStates   []bool
}

// NewAllocation returns an unsolved allocation with a NaN objective.
func NewAllocation() Allocation {
	return Allocation{ObjectiveValue: math.NaN()}
}

// Solver finds a VM allocation for a placement problem. Implementations must
// honor the constraint set regardless of their tolerance and time-limit
// knobs: a VM lands on at most one powered-on FN and per-FN CPU and RAM sums
// stay within capacity.
type Solver interface {
	Solve(ctx context.Context, in Input) (Allocation, error)

	// Name returns the backend name.
	Name() string
}

// cpuReq returns the CPU requirement of local VM j on local FN i.
func (in *Input) cpuReq(i, j int) float64 {
	fnCat := in.FNCategories[in.FNs[i]]
	vmCat := in.SvcVMCategories[in.SvcCategories[in.VMServices[in.VMs[j]]]]
	return in.CPURequirements[vmCat][fnCat]
}

// ramReq returns the RAM requirement of local VM j on local FN i.
func (in *Input) ramReq(i, j int) float64 {
	fnCat := in.FNCategories[in.FNs[i]]
	vmCat := in.SvcVMCategories[in.SvcCategories[in.VMServices[in.VMs[j]]]]
	return in.RAMRequirements[vmCat][fnCat]
}

// hostCostOn returns the cost of keeping local FN i powered on with CPU
// utilization u: idle electricity, proportional electricity and the awake
// transition when the FN was off.
func (in *Input) hostCostOn(i int, u float64) float64 {
	fn := in.FNs[i]
	fp := in.FNOwners[fn]
	cat := in.FNCategories[fn]
	ecost := in.ElectricityCosts[fp]
	cost := (in.FNMinPowers[cat] + (in.FNMaxPowers[cat]-in.FNMinPowers[cat])*u) * ecost
	if !in.FNPowerStates[fn] {
		cost += in.FNAwakeCosts[fp][cat]
	}
	return cost
}

// hostCostOff returns the cost of powering local FN i off: the asleep
// transition when the FN was on, zero otherwise.
func (in *Input) hostCostOff(i int) float64 {
	fn := in.FNs[i]
	if !in.FNPowerStates[fn] {
		return 0
	}
	fp := in.FNOwners[fn]
	cat := in.FNCategories[fn]
	return in.FNAsleepCosts[fp][cat]
}

// idleCost returns the cheaper of keeping an empty FN on or turning it off.
func (in *Input) idleCost(i int) float64 {
	return math.Min(in.hostCostOn(i, 0), in.hostCostOff(i))
}

// slaPenalty returns the SLA cost of service svc when k replicas are placed.
// A zero penalty rate always contributes zero, even against an unreachable
// delay.
func (in *Input) slaPenalty(svc, k int) float64 {
	fp := in.SvcOwners[svc]
	cat := in.SvcCategories[svc]
	rate := in.SvcPenalties[fp][cat]
	if rate == 0 {
		return 0
	}
	delays := in.SvcPredictedDelays[svc]
	if k >= len(delays) {
		k = len(delays) - 1
	}
	d := delays[k]
	if math.IsInf(d, 1) {
		return math.Inf(1)
	}
	overshoot := math.Max(d/in.SvcMaxDelays[cat], 1) - 1
	return overshoot * rate
}

// coalitionServices returns the distinct services referenced by the input
// VMs, in increasing order, plus the replica count required per service.
func (in *Input) coalitionServices() (svcs []int, required map[int]int) {
	required = make(map[int]int)
	for _, vm := range in.VMs {
		svc := in.VMServices[vm]
		if required[svc] == 0 {
			svcs = append(svcs, svc)
		}
		required[svc]++
	}
	sort.Ints(svcs)
	return svcs, required
}
