package placement

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fogcoal/fogcoal/internal/mathx"
	"github.com/fogcoal/fogcoal/internal/metrics"
)

// BranchAndBound is an exact backend for the VM-placement problem. A
// best-fit-decreasing pass seeds the incumbent, then a depth-first search
// over per-VM placement decisions closes the gap, pruning branches whose
// lower bound cannot beat the incumbent.
//
// RelTolerance widens the pruning threshold, so the returned solution is
// within that relative gap of the optimum; TimeLimit bounds wall-clock time,
// after which the best incumbent is returned as a non-optimal solution.
type BranchAndBound struct {
	RelTolerance float64
	TimeLimit    float64 // seconds; <= 0 means unlimited
	Log          *zap.SugaredLogger
}

// Name returns the backend name.
func (b *BranchAndBound) Name() string { return "branch-and-bound" }

// deadlineCheckStride bounds how often the search polls the clock.
const deadlineCheckStride = 1024

type searchState struct {
	in    *Input
	order []int // search position -> local VM index

	cpuUsed  []float64 // per local FN
	ramUsed  []float64 // per local FN
	hosted   []int     // per local FN: number of VMs currently placed
	placed   map[int]int // service -> replicas placed so far
	required map[int]int // service -> replicas requested
	assign   []int     // per local VM: local FN index or -1 (unplaced)
	relTol   float64

	best       float64
	bestAssign []int

	deadline  time.Time
	nodes     int
	timedOut  bool
	cancelled bool
}

// Solve runs the search and returns the allocation. Infeasibility (every
// complete assignment carries an infinite objective) yields Solved=false and
// a NaN objective.
func (b *BranchAndBound) Solve(ctx context.Context, in Input) (Allocation, error) {
	start := time.Now()
	alloc := b.solve(ctx, &in)

	outcome := metrics.OutcomeInfeasible
	switch {
	case alloc.Solved && alloc.Optimal:
		outcome = metrics.OutcomeOptimal
	case alloc.Solved:
		outcome = metrics.OutcomeFeasible
	}
	metrics.ObserveSolve(outcome, time.Since(start))
	return alloc, nil
}

func (b *BranchAndBound) solve(ctx context.Context, in *Input) Allocation {
	alloc := NewAllocation()
	nfns := len(in.FNs)
	nvms := len(in.VMs)

	st := &searchState{
		in:       in,
		cpuUsed:  make([]float64, nfns),
		ramUsed:  make([]float64, nfns),
		hosted:   make([]int, nfns),
		placed:   make(map[int]int),
		assign:   make([]int, nvms),
		relTol:   b.RelTolerance,
		best:     math.Inf(1),
		deadline: time.Time{},
	}
	_, st.required = in.coalitionServices()
	for j := range st.assign {
		st.assign[j] = -1
	}
	if b.TimeLimit > 0 {
		st.deadline = time.Now().Add(time.Duration(b.TimeLimit * float64(time.Second)))
	}
	if dl, ok := ctx.Deadline(); ok && (st.deadline.IsZero() || dl.Before(st.deadline)) {
		st.deadline = dl
	}

	// Search the most demanding VMs first: mirrors best-fit-decreasing and
	// tightens the incumbent early.
	st.order = make([]int, nvms)
	for j := range st.order {
		st.order[j] = j
	}
	sort.SliceStable(st.order, func(a, c int) bool {
		return vmDominance(in, st.order[a]) > vmDominance(in, st.order[c])
	})

	// Greedy incumbent.
	if greedy, cost := b.greedyIncumbent(in, st.order); !math.IsInf(cost, 1) {
		st.best = cost
		st.bestAssign = greedy
	}

	b.branch(ctx, st, 0)

	if st.bestAssign == nil || math.IsInf(st.best, 1) {
		// Nothing finite was found: the coalition cannot serve its load.
		return alloc
	}

	alloc.Solved = true
	alloc.ObjectiveValue = st.best
	alloc.Optimal = !st.timedOut && !st.cancelled
	alloc.FNVMAllocations = make([][]bool, nfns)
	alloc.FNPowerStates = make([]bool, nfns)
	for i := 0; i < nfns; i++ {
		alloc.FNVMAllocations[i] = make([]bool, nvms)
	}
	hostedAny := make([]bool, nfns)
	for j, fn := range st.bestAssign {
		if fn >= 0 {
			alloc.FNVMAllocations[fn][j] = true
			hostedAny[fn] = true
		}
	}
	for i := 0; i < nfns; i++ {
		if hostedAny[i] {
			alloc.FNPowerStates[i] = true
		} else {
			// Empty FNs take the cheaper of staying on or powering off.
			alloc.FNPowerStates[i] = in.hostCostOn(i, 0) < in.hostCostOff(i)
		}
	}

	if !alloc.Optimal && b.Log != nil {
		b.Log.Warnw("placement solved but non-optimal", "objective", alloc.ObjectiveValue, "timed_out", st.timedOut)
	}
	return alloc
}

// branch explores the placement decisions of the VM at search position pos.
func (b *BranchAndBound) branch(ctx context.Context, st *searchState, pos int) {
	st.nodes++
	if st.nodes%deadlineCheckStride == 0 {
		if !st.deadline.IsZero() && time.Now().After(st.deadline) {
			st.timedOut = true
		}
		select {
		case <-ctx.Done():
			st.cancelled = true
		default:
		}
	}
	if st.timedOut || st.cancelled {
		return
	}

	in := st.in
	if pos == len(st.order) {
		cost := st.completionCost()
		if cost < st.best {
			st.best = cost
			st.bestAssign = append([]int(nil), st.assign...)
		}
		return
	}

	if st.lowerBound(pos) >= st.pruneThreshold() {
		return
	}

	j := st.order[pos]
	svc := in.VMServices[in.VMs[j]]

	// Candidate hosts ordered by marginal cost.
	type cand struct {
		fn   int
		cost float64
	}
	cands := make([]cand, 0, len(in.FNs)+1)
	for i := range in.FNs {
		cpu := in.cpuReq(i, j)
		ram := in.ramReq(i, j)
		if st.cpuUsed[i]+cpu > 1+mathx.DefaultTolerance || st.ramUsed[i]+ram > 1+mathx.DefaultTolerance {
			continue
		}
		cands = append(cands, cand{fn: i, cost: st.marginalCost(i, j)})
	}
	sort.SliceStable(cands, func(a, c int) bool { return cands[a].cost < cands[c].cost })

	for _, cd := range cands {
		st.place(cd.fn, j, svc)
		b.branch(ctx, st, pos+1)
		st.unplace(cd.fn, j, svc)
		if st.timedOut || st.cancelled {
			return
		}
	}

	// Leave the VM unplaced; the SLA penalty of the short service applies.
	b.branch(ctx, st, pos+1)
}

func (st *searchState) place(i, j, svc int) {
	st.cpuUsed[i] += st.in.cpuReq(i, j)
	st.ramUsed[i] += st.in.ramReq(i, j)
	st.hosted[i]++
	st.placed[svc]++
	st.assign[j] = i
}

func (st *searchState) unplace(i, j, svc int) {
	st.cpuUsed[i] -= st.in.cpuReq(i, j)
	st.ramUsed[i] -= st.in.ramReq(i, j)
	st.hosted[i]--
	st.placed[svc]--
	st.assign[j] = -1
}

// pruneThreshold is the incumbent shrunk by the relative tolerance: branches
// that cannot beat it are cut, so the final gap stays within tolerance.
func (st *searchState) pruneThreshold() float64 {
	if math.IsInf(st.best, 1) {
		return st.best
	}
	return st.best - math.Abs(st.best)*st.relTol
}

// marginalCost estimates the cost increase of placing local VM j on local FN
// i in the current state: proportional electricity plus, for an empty FN,
// the activation delta against the idle choice.
func (st *searchState) marginalCost(i, j int) float64 {
	in := st.in
	fn := in.FNs[i]
	fp := in.FNOwners[fn]
	cat := in.FNCategories[fn]
	cost := (in.FNMaxPowers[cat] - in.FNMinPowers[cat]) * in.cpuReq(i, j) * in.ElectricityCosts[fp]
	if st.hosted[i] == 0 {
		cost += in.hostCostOn(i, 0) - in.idleCost(i)
	}
	return cost
}

// completionCost evaluates the objective of the current complete assignment.
func (st *searchState) completionCost() float64 {
	in := st.in
	total := 0.0
	for i := range in.FNs {
		if st.hosted[i] > 0 {
			total += in.hostCostOn(i, st.cpuUsed[i])
		} else {
			total += in.idleCost(i)
		}
	}
	for svc := range st.required {
		total += in.slaPenalty(svc, st.placed[svc])
	}
	return total
}

// lowerBound is an optimistic completion cost of the current partial
// assignment: electricity committed so far, the cheapest final choice of
// every currently-empty FN, and the best-case SLA penalty assuming every
// remaining replica gets placed.
func (st *searchState) lowerBound(pos int) float64 {
	in := st.in
	lb := 0.0
	for i := range in.FNs {
		if st.hosted[i] > 0 {
			lb += in.hostCostOn(i, st.cpuUsed[i])
		} else {
			lb += in.idleCost(i)
		}
	}
	remaining := make(map[int]int)
	for p := pos; p < len(st.order); p++ {
		svc := in.VMServices[in.VMs[st.order[p]]]
		remaining[svc]++
	}
	for svc, req := range st.required {
		k := st.placed[svc] + remaining[svc]
		if k > req {
			k = req
		}
		lb += in.slaPenalty(svc, k)
	}
	return lb
}

// greedyIncumbent runs a best-fit-decreasing pass over the VMs in search
// order and returns the assignment with its cost.
func (b *BranchAndBound) greedyIncumbent(in *Input, order []int) ([]int, float64) {
	nfns := len(in.FNs)
	st := &searchState{
		in:      in,
		cpuUsed: make([]float64, nfns),
		ramUsed: make([]float64, nfns),
		hosted:  make([]int, nfns),
		placed:  make(map[int]int),
		assign:  make([]int, len(in.VMs)),
	}
	_, st.required = in.coalitionServices()
	for j := range st.assign {
		st.assign[j] = -1
	}

	for _, j := range order {
		svc := in.VMServices[in.VMs[j]]
		bestFN := -1
		bestScore := math.Inf(1)
		for i := 0; i < nfns; i++ {
			cpu := in.cpuReq(i, j)
			ram := in.ramReq(i, j)
			if st.cpuUsed[i]+cpu > 1+mathx.DefaultTolerance || st.ramUsed[i]+ram > 1+mathx.DefaultTolerance {
				continue
			}
			score := st.marginalCost(i, j) + tightness(st, i, j)
			if score < bestScore {
				bestScore = score
				bestFN = i
			}
		}
		if bestFN >= 0 {
			st.place(bestFN, j, svc)
		}
	}
	return st.assign, st.completionCost()
}

// tightness measures the residual slack of FN i after hosting VM j; smaller
// means a tighter, preferred fit.
func tightness(st *searchState, i, j int) float64 {
	cpuAfter := 1 - st.cpuUsed[i] - st.in.cpuReq(i, j)
	ramAfter := 1 - st.ramUsed[i] - st.in.ramReq(i, j)
	return 1e-9 * math.Sqrt(cpuAfter*cpuAfter+ramAfter*ramAfter)
}

// vmDominance scores the resource demand of local VM j across the coalition
// FNs; the search explores demanding VMs first.
func vmDominance(in *Input, j int) float64 {
	maxReq := 0.0
	for i := range in.FNs {
		maxReq = math.Max(maxReq, math.Max(in.cpuReq(i, j), in.ramReq(i, j)))
	}
	return maxReq
}
