// Package coalition implements the coalition-formation engine: it values
// every coalition of fog providers through the VM-placement optimizer,
// divides coalition values into per-provider payoffs, and selects the
// Nash-stable partitions.
package coalition

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/fogcoal/fogcoal/internal/combinatorics"
	"github.com/fogcoal/fogcoal/internal/game"
	"github.com/fogcoal/fogcoal/internal/placement"
	"github.com/fogcoal/fogcoal/internal/queueing"
	"github.com/fogcoal/fogcoal/internal/scenario"
)

// Info records everything learned about one visited coalition.
type Info struct {
	CID           game.CID
	Allocation    placement.Allocation
	Value         float64
	CoreEmpty     bool
	Payoffs       map[int]float64
	PayoffsInCore bool
}

// PartitionInfo describes one candidate (or selected) partition: its total
// value, the coalitions composing it and the per-provider payoffs.
type PartitionInfo struct {
	Value      float64
	Coalitions []game.CID
	Payoffs    map[int]float64
}

// Result is the outcome of one engine activation.
type Result struct {
	Coalitions     map[game.CID]*Info
	BestPartitions []PartitionInfo
	AloneProfits   []float64 // singleton-coalition value, by FP; NaN when the singleton is infeasible
}

// Request carries the per-activation inputs: the peak arrival rate observed
// for every service over the last formation interval, the interval length,
// and the current FN power states.
type Request struct {
	PeakRates     []float64 // by service index
	Interval      float64   // formation interval length
	FNPowerStates []bool    // by FN index
}

// Engine enumerates coalitions and selects stable partitions. It is
// stateless across activations; all per-trigger state lives in Result.
type Engine struct {
	Scenario        *scenario.Scenario
	Topology        scenario.Topology
	Solver          placement.Solver
	DelayTolerance  float64 // relative tolerance of the delay model
	PayoffTolerance float64 // tolerance for payoff comparisons
	Log             *zap.SugaredLogger
}

// Analyze runs one activation: sizes every service for its peak rate, values
// every coalition, and selects the Nash-stable partitions.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	scen := e.Scenario
	topo := e.Topology
	numSvcs := len(topo.SvcOwners)

	// Size every service for its interval peak: minimum replica count plus
	// the delay achievable at every smaller count.
	svcPredictedDelays := make([][]float64, numSvcs)
	var vmSvcs []int // VM index -> service index
	for svc := 0; svc < numSvcs; svc++ {
		cat := topo.SvcCategories[svc]
		model := queueing.NewMMC(req.PeakRates[svc], scen.SvcVMServiceRates[cat], scen.SvcMaxDelays[cat], e.DelayTolerance, e.Log)
		minVMs := model.ComputeQueueParameters(true)
		delays, err := model.Delays()
		if err != nil {
			return nil, fmt.Errorf("coalition: sizing service %d: %w", svc, err)
		}
		svcPredictedDelays[svc] = delays

		e.Log.Debugw("service sized",
			"service", svc,
			"arrival_rate", req.PeakRates[svc],
			"service_rate", scen.SvcVMServiceRates[cat],
			"max_delay", scen.SvcMaxDelays[cat],
			"min_num_vms", minVMs)

		for i := 0; i < minVMs; i++ {
			vmSvcs = append(vmSvcs, svc)
		}
	}

	g, err := game.New(scen.NumFPs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Coalitions:   make(map[game.CID]*Info),
		AloneProfits: make([]float64, scen.NumFPs),
	}
	for fp := range res.AloneProfits {
		res.AloneProfits[fp] = math.NaN()
	}

	fps := g.Players()
	subset, err := combinatorics.NewSubset(scen.NumFPs, false)
	if err != nil {
		return nil, err
	}
	for subset.HasNext() {
		coalFPs, err := combinatorics.NextSubset(subset, fps)
		if err != nil {
			return nil, err
		}
		cid := game.MakeCID(coalFPs...)
		info, err := e.analyzeCoalition(ctx, g, cid, coalFPs, vmSvcs, svcPredictedDelays, req)
		if err != nil {
			return nil, err
		}
		res.Coalitions[cid] = info

		if len(coalFPs) == 1 && info.Allocation.Solved {
			res.AloneProfits[coalFPs[0]] = info.Value
		}
	}

	res.BestPartitions = selectNashStable(g, res.Coalitions, e.PayoffTolerance, e.Log)
	return res, nil
}

// analyzeCoalition values one coalition: it solves the placement problem for
// the pooled FNs and services, converts the objective into the coalition
// value, divides it by the Shapley value and records core membership.
func (e *Engine) analyzeCoalition(
	ctx context.Context,
	g *game.Game,
	cid game.CID,
	coalFPs []int,
	vmSvcs []int,
	svcPredictedDelays [][]float64,
	req Request,
) (*Info, error) {
	scen := e.Scenario
	topo := e.Topology

	info := &Info{
		CID:       cid,
		Value:     math.NaN(),
		CoreEmpty: true,
	}

	inCoalition := make([]bool, scen.NumFPs)
	for _, fp := range coalFPs {
		inCoalition[fp] = true
	}

	var coalFNs, coalSvcs, coalVMs []int
	for fn, fp := range topo.FNOwners {
		if inCoalition[fp] {
			coalFNs = append(coalFNs, fn)
		}
	}
	for svc, fp := range topo.SvcOwners {
		if inCoalition[fp] {
			coalSvcs = append(coalSvcs, svc)
		}
	}
	for vm, svc := range vmSvcs {
		if inCoalition[topo.SvcOwners[svc]] {
			coalVMs = append(coalVMs, vm)
		}
	}

	alloc, err := e.Solver.Solve(ctx, placement.Input{
		FNs:                coalFNs,
		VMs:                coalVMs,
		FNOwners:           topo.FNOwners,
		FNCategories:       topo.FNCategories,
		FNPowerStates:      req.FNPowerStates,
		FNMinPowers:        scen.FNMinPowers,
		FNMaxPowers:        scen.FNMaxPowers,
		VMServices:         vmSvcs,
		SvcVMCategories:    scen.SvcVMCategories,
		CPURequirements:    scen.VMCPURequirements,
		RAMRequirements:    scen.VMRAMRequirements,
		SvcOwners:          topo.SvcOwners,
		SvcCategories:      topo.SvcCategories,
		SvcMaxDelays:       scen.SvcMaxDelays,
		SvcPredictedDelays: svcPredictedDelays,
		SvcPenalties:       scen.FPSvcPenalties,
		ElectricityCosts:   scen.FPElectricityCosts,
		FNAsleepCosts:      scen.FPFNAsleepCosts,
		FNAwakeCosts:       scen.FPFNAwakeCosts,
	})
	if err != nil {
		return nil, fmt.Errorf("coalition: solving placement for %s: %w", cid, err)
	}
	info.Allocation = alloc

	if !alloc.Solved {
		// The pooled load cannot be served: this coalition must never be
		// preferred over any feasible alternative.
		e.Log.Debugw("coalition placement infeasible", "cid", cid.String())
		g.SetValue(cid, math.Inf(-1))
		info.Value = math.Inf(-1)
		return info, nil
	}

	revenue := 0.0
	for _, svc := range coalSvcs {
		fp := topo.SvcOwners[svc]
		cat := topo.SvcCategories[svc]
		revenue += scen.FPSvcRevenues[fp][cat]
	}

	cost := alloc.ObjectiveValue
	if len(coalFPs) > 1 {
		for _, fp := range coalFPs {
			cost -= scen.FPCoalitionCosts[fp]
		}
	}

	profit := (revenue - cost) * req.Interval
	g.SetValue(cid, profit)
	info.Value = profit

	e.Log.Debugw("coalition valued",
		"cid", cid.String(),
		"objective", alloc.ObjectiveValue,
		"optimal", alloc.Optimal,
		"value", profit)

	sub := g.Subgame(cid)
	core := game.FindCore(sub)
	info.CoreEmpty = core.Empty()
	if info.CoreEmpty && sub.NumPlayers() == scen.NumFPs {
		e.Log.Debugw("grand coalition has an empty core")
	}

	payoffs, err := game.ShapleyValue(sub)
	if err != nil {
		return nil, fmt.Errorf("coalition: dividing value of %s: %w", cid, err)
	}
	info.Payoffs = payoffs

	if !info.CoreEmpty {
		info.PayoffsInCore = core.BelongsToCore(payoffs)
	}
	return info, nil
}
