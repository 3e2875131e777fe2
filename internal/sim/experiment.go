package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fogcoal/fogcoal/internal/coalition"
	"github.com/fogcoal/fogcoal/internal/config"
	"github.com/fogcoal/fogcoal/internal/game"
	"github.com/fogcoal/fogcoal/internal/logging"
	"github.com/fogcoal/fogcoal/internal/mathx"
	"github.com/fogcoal/fogcoal/internal/metrics"
	"github.com/fogcoal/fogcoal/internal/placement"
	"github.com/fogcoal/fogcoal/internal/report"
	"github.com/fogcoal/fogcoal/internal/scenario"
	"github.com/fogcoal/fogcoal/internal/stats"
	"github.com/fogcoal/fogcoal/internal/workload"
)

// burst is one arrival window of a service: constant Poisson rate between
// start and stop.
type burst struct {
	start float64
	stop  float64
	rate  float64
}

// Experiment is the simulation driver: it owns the workload generators, the
// per-replication state, the coalition-formation engine and the output
// estimators, and implements the Model hooks of the simulator.
type Experiment struct {
	scen *scenario.Scenario
	topo scenario.Topology
	cfg  config.Config
	rng  *rand.Rand
	log  *zap.SugaredLogger

	// Clock stamps output rows; replaceable for reproducible artifacts.
	Clock func() int64

	engine  *coalition.Engine
	numFNs  int
	numSvcs int
	wklGens []*workload.Multistep // by service category

	// Replication-scoped state.
	repBursts        [][]burst // by service
	repFNPowerStates []bool
	repCoalStats     []*stats.MeanEstimator
	repAloneStats    []*stats.MeanEstimator

	// Simulation-scoped (cross-replication) state.
	coalCIStats  []*stats.CIMeanEstimator
	aloneCIStats []*stats.CIMeanEstimator

	statsW *report.StatsWriter
	traceW *report.TraceWriter
}

// NewExperiment builds a driver for the scenario under the given options.
func NewExperiment(scen *scenario.Scenario, cfg config.Config, log *zap.SugaredLogger) (*Experiment, error) {
	if log == nil {
		log = logging.Nop()
	}
	e := &Experiment{
		scen:  scen,
		topo:  scen.BuildTopology(),
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(int64(cfg.Sim.RngSeed))),
		log:   log,
		Clock: func() int64 { return time.Now().Unix() },
	}
	e.numFNs = scen.TotalFNs()
	e.numSvcs = scen.TotalSvcs()

	e.wklGens = make([]*workload.Multistep, scen.NumSvcCategories)
	for cat := 0; cat < scen.NumSvcCategories; cat++ {
		gen, err := workload.NewMultistep(scen.SvcWorkloads[cat])
		if err != nil {
			return nil, fmt.Errorf("sim: workload for service category %d: %w", cat, err)
		}
		e.wklGens[cat] = gen
	}

	e.engine = &coalition.Engine{
		Scenario: scen,
		Topology: e.topo,
		Solver: &placement.BranchAndBound{
			RelTolerance: cfg.Optim.RelTolerance,
			TimeLimit:    cfg.Optim.TimeLimit,
			Log:          log,
		},
		DelayTolerance:  cfg.Formation.ServiceDelayTol,
		PayoffTolerance: mathx.DefaultTolerance,
		Log:             log,
	}
	return e, nil
}

// Run executes the experiment to completion.
func (e *Experiment) Run() error {
	s := New()
	if err := s.Run(e); err != nil {
		// Finalize artifacts on the unwind path, then re-raise.
		e.Close()
		return err
	}
	return nil
}

// Close releases the output files. It is safe to call more than once.
func (e *Experiment) Close() {
	if e.statsW != nil {
		e.statsW.Close()
		e.statsW = nil
	}
	if e.traceW != nil {
		e.traceW.Close()
		e.traceW = nil
	}
}

// InitializeSimulation configures the replication bounds, the estimators and
// the output files.
func (e *Experiment) InitializeSimulation(s *Simulator) error {
	s.SetMaxNumReplications(e.cfg.Sim.MaxNumReplications)
	s.SetMaxReplicationDuration(e.cfg.Sim.MaxReplicationDuration)

	numFPs := e.scen.NumFPs
	e.coalCIStats = make([]*stats.CIMeanEstimator, numFPs)
	e.aloneCIStats = make([]*stats.CIMeanEstimator, numFPs)
	e.repCoalStats = make([]*stats.MeanEstimator, numFPs)
	e.repAloneStats = make([]*stats.MeanEstimator, numFPs)
	for fp := 0; fp < numFPs; fp++ {
		coalName := fmt.Sprintf("CoalitionProfit_{%d}", fp)
		aloneName := fmt.Sprintf("AloneProfit_{%d}", fp)
		e.coalCIStats[fp] = stats.NewCIMeanEstimator(coalName, e.cfg.Sim.CILevel, e.cfg.Sim.CIRelPrecision)
		e.aloneCIStats[fp] = stats.NewCIMeanEstimator(aloneName, e.cfg.Sim.CILevel, e.cfg.Sim.CIRelPrecision)
		e.repCoalStats[fp] = stats.NewMeanEstimator(coalName)
		e.repAloneStats[fp] = stats.NewMeanEstimator(aloneName)
	}

	if path := e.cfg.Output.StatsFile; path != "" {
		w, err := report.OpenStatsWriter(path, numFPs)
		if err != nil {
			return err
		}
		e.statsW = w
	}
	if path := e.cfg.Output.TraceFile; path != "" {
		w, err := report.OpenTraceWriter(path, numFPs)
		if err != nil {
			return err
		}
		e.traceW = w
	}
	return nil
}

// FinalizeSimulation closes the artifacts and reports the confidence
// intervals.
func (e *Experiment) FinalizeSimulation(s *Simulator) error {
	e.Close()

	if e.cfg.Verbosity > logging.VerbosityNone {
		for fp := 0; fp < e.scen.NumFPs; fp++ {
			e.logCIStats(fp)
		}
	}
	return nil
}

// InitializeReplication resets the replication-scoped state and schedules
// the initial events: one arrival burst per service plus the first
// coalition-formation trigger.
func (e *Experiment) InitializeReplication(s *Simulator) error {
	e.repFNPowerStates = make([]bool, e.numFNs)
	for i := range e.repFNPowerStates {
		e.repFNPowerStates[i] = true
	}

	for fp := 0; fp < e.scen.NumFPs; fp++ {
		e.repCoalStats[fp].Reset()
		e.repAloneStats[fp].Reset()
	}

	e.repBursts = make([][]burst, e.numSvcs)
	for svc := 0; svc < e.numSvcs; svc++ {
		cat := e.topo.SvcCategories[svc]
		step := e.wklGens[cat].Next(e.rng)
		s.Schedule(s.Now(), ArrivalBurstStartEvent, &BurstState{
			Service:     svc,
			Duration:    step.Duration,
			ArrivalRate: step.ArrivalRate,
		}, nil)
	}

	stop := s.Now() + e.cfg.Formation.Interval
	s.Schedule(stop, FormationTriggerEvent, nil, &TriggerState{Start: s.Now(), Stop: stop})
	return nil
}

// FinalizeReplication folds the replication means into the cross-replication
// confidence intervals.
func (e *Experiment) FinalizeReplication(s *Simulator) error {
	for fp := 0; fp < e.scen.NumFPs; fp++ {
		e.coalCIStats[fp].Collect(e.repCoalStats[fp].Estimate())
		e.aloneCIStats[fp].Collect(e.repAloneStats[fp].Estimate())
	}
	metrics.Replications.Inc()

	if e.cfg.Verbosity >= logging.VerbosityLow {
		e.log.Infow("replication finished", "replication", s.NumReplications())
		if e.cfg.Verbosity >= logging.VerbosityLowMedium {
			coal := make([]float64, e.scen.NumFPs)
			alone := make([]float64, e.scen.NumFPs)
			for fp := 0; fp < e.scen.NumFPs; fp++ {
				coal[fp] = e.repCoalStats[fp].Estimate()
				alone[fp] = e.repAloneStats[fp].Estimate()
			}
			e.log.Infow("replication summary", "coalition_profits", coal, "alone_profits", alone)
		}
		for fp := 0; fp < e.scen.NumFPs; fp++ {
			e.logCIStats(fp)
		}
	}
	return nil
}

// EndOfReplication is a subclass hook; the duration cap and queue exhaustion
// are handled by the simulator.
func (e *Experiment) EndOfReplication(s *Simulator) bool { return false }

// EndOfSimulation stops the run once every coalition-profit estimator is
// either done or unstable.
func (e *Experiment) EndOfSimulation(s *Simulator) bool {
	for _, st := range e.coalCIStats {
		if !st.Done() && !st.Unstable() {
			return false
		}
	}
	return true
}

// ProcessEvent dispatches on the event tag.
func (e *Experiment) ProcessEvent(s *Simulator, ev *Event) error {
	switch ev.Tag {
	case ArrivalBurstStartEvent:
		return e.processBurstStart(s, ev)
	case ArrivalBurstStopEvent:
		return e.processBurstStop(s, ev)
	case FormationTriggerEvent:
		return e.processFormationTrigger(s, ev)
	default:
		e.log.Warnw("unable to process event", "tag", ev.Tag)
		return nil
	}
}

// processBurstStart records the burst window and schedules its stop.
func (e *Experiment) processBurstStart(s *Simulator, ev *Event) error {
	st := ev.Burst
	if st == nil {
		return fmt.Errorf("sim: arrival burst event without state")
	}
	stop := s.Now() + st.Duration
	e.repBursts[st.Service] = append(e.repBursts[st.Service], burst{start: s.Now(), stop: stop, rate: st.ArrivalRate})
	s.Schedule(stop, ArrivalBurstStopEvent, st, nil)
	return nil
}

// processBurstStop samples the next workload step and schedules the next
// burst start at the current time.
func (e *Experiment) processBurstStop(s *Simulator, ev *Event) error {
	st := ev.Burst
	if st == nil {
		return fmt.Errorf("sim: arrival burst event without state")
	}
	cat := e.topo.SvcCategories[st.Service]
	step := e.wklGens[cat].Next(e.rng)
	s.Schedule(s.Now(), ArrivalBurstStartEvent, &BurstState{
		Service:     st.Service,
		Duration:    step.Duration,
		ArrivalRate: step.ArrivalRate,
	}, nil)
	return nil
}

// processFormationTrigger analyzes the finished interval and schedules the
// next trigger.
func (e *Experiment) processFormationTrigger(s *Simulator, ev *Event) error {
	st := ev.Trigger
	if st == nil {
		return fmt.Errorf("sim: formation trigger event without state")
	}
	if err := e.analyzeInterval(s, st.Start, st.Stop); err != nil {
		return err
	}

	stop := s.Now() + e.cfg.Formation.Interval
	s.Schedule(stop, FormationTriggerEvent, nil, &TriggerState{Start: s.Now(), Stop: stop})
	return nil
}

// analyzeInterval runs the coalition-formation engine over the workload seen
// in [start, stop] and collects profits and output rows.
//
// The evaluation is backward looking: it sizes coalitions for the bursts that
// arrived during the interval just finished.
func (e *Experiment) analyzeInterval(s *Simulator, start, stop float64) error {
	metrics.FormationTriggers.Inc()
	duration := stop - start

	peaks := make([]float64, e.numSvcs)
	for svc := 0; svc < e.numSvcs; svc++ {
		peaks[svc] = e.scanBursts(svc, start, stop)
	}

	res, err := e.engine.Analyze(context.Background(), coalition.Request{
		PeakRates:     peaks,
		Interval:      duration,
		FNPowerStates: e.repFNPowerStates,
	})
	if err != nil {
		return fmt.Errorf("sim: coalition formation at t=%v: %w", s.Now(), err)
	}
	metrics.NashStablePartitions.Observe(float64(len(res.BestPartitions)))

	timestamp := e.Clock()
	numFPs := e.scen.NumFPs
	aloneProfits := res.AloneProfits
	coalProfits := make([]float64, numFPs)
	for fp := range coalProfits {
		coalProfits[fp] = math.NaN()
	}

	if e.cfg.Formation.FindAllPartitions {
		// Average the per-FP payoffs over all stable partitions; each
		// partition also gets its own trace row.
		aux := make([]*stats.MeanEstimator, numFPs)
		for fp := range aux {
			aux[fp] = stats.NewMeanEstimator("")
		}
		for _, part := range res.BestPartitions {
			partProfits := make([]float64, numFPs)
			for fp := range partProfits {
				partProfits[fp] = math.NaN()
			}
			for _, cid := range part.Coalitions {
				for fp, payoff := range res.Coalitions[cid].Payoffs {
					partProfits[fp] = payoff
					aux[fp].Collect(payoff)
				}
			}
			if e.traceW != nil {
				if err := e.traceW.WriteRow(timestamp, start, duration, partitionStructure(part.Coalitions), aloneProfits, partProfits); err != nil {
					return err
				}
			}
			if e.cfg.Verbosity >= logging.VerbosityMedium {
				e.log.Infow("stable partition", "structure", partitionStructure(part.Coalitions), "value", part.Value)
			}
		}
		for fp := 0; fp < numFPs; fp++ {
			coalProfits[fp] = aux[fp].Estimate()
		}
	} else {
		best := pickMaxPartition(res.BestPartitions)
		if best != nil {
			for _, cid := range best.Coalitions {
				for fp, payoff := range res.Coalitions[cid].Payoffs {
					coalProfits[fp] = payoff
				}
			}
			if e.traceW != nil {
				if err := e.traceW.WriteRow(timestamp, start, duration, partitionStructure(best.Coalitions), aloneProfits, coalProfits); err != nil {
					return err
				}
			}
			if e.cfg.Verbosity >= logging.VerbosityMedium {
				e.log.Infow("best partition", "structure", partitionStructure(best.Coalitions), "value", best.Value)
			}
		}
	}

	for fp := 0; fp < numFPs; fp++ {
		e.repCoalStats[fp].Collect(coalProfits[fp])
		e.repAloneStats[fp].Collect(aloneProfits[fp])
	}

	if e.statsW != nil {
		if err := e.statsW.WriteRow(timestamp, start, duration, coalProfits, aloneProfits); err != nil {
			return err
		}
	}
	return nil
}

// scanBursts returns the peak arrival rate among the bursts of svc that
// overlap [start, stop], discarding bursts entirely in the past. Bursts
// starting after stop belong to the next interval and stop the scan.
func (e *Experiment) scanBursts(svc int, start, stop float64) float64 {
	maxRate := 0.0
	bursts := e.repBursts[svc]
	for b := 0; b < len(bursts); {
		bu := bursts[b]
		switch {
		case bu.stop <= start:
			// Finished before this interval: drop.
			bursts = append(bursts[:b], bursts[b+1:]...)
		case bu.start < stop:
			if maxRate < bu.rate {
				maxRate = bu.rate
			}
			if bu.stop < stop {
				// Fully inside this interval: drop after counting.
				bursts = append(bursts[:b], bursts[b+1:]...)
			} else {
				b++
			}
		default:
			// Starts in the next interval; later bursts start even later.
			b = len(bursts)
		}
	}
	e.repBursts[svc] = bursts
	return maxRate
}

// pickMaxPartition returns the partition with the greatest value, first seen
// winning ties. Nil when no partition survived selection.
func pickMaxPartition(parts []coalition.PartitionInfo) *coalition.PartitionInfo {
	var best *coalition.PartitionInfo
	bestValue := math.Inf(-1)
	for i := range parts {
		if best == nil || parts[i].Value > bestValue {
			best = &parts[i]
			bestValue = parts[i].Value
		}
	}
	return best
}

// partitionStructure renders a partition in compact bracketed form, e.g.
// {{0,1},{2}}.
func partitionStructure(cids []game.CID) string {
	sorted := append([]game.CID(nil), cids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var b strings.Builder
	b.WriteByte('{')
	for i, cid := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(cid.String())
	}
	b.WriteByte('}')
	return b.String()
}

func (e *Experiment) logCIStats(fp int) {
	coal := e.coalCIStats[fp]
	alone := e.aloneCIStats[fp]
	e.log.Infow("confidence interval",
		"fp", fp,
		"coalition_profit", coal.Estimate(),
		"coalition_sd", coal.StandardDeviation(),
		"coalition_ci", []float64{coal.Lower(), coal.Upper()},
		"coalition_rel_precision", coal.RelativePrecision(),
		"coalition_size", coal.Size(),
		"alone_profit", alone.Estimate(),
		"alone_sd", alone.StandardDeviation(),
		"alone_ci", []float64{alone.Lower(), alone.Upper()},
		"alone_rel_precision", alone.RelativePrecision(),
		"alone_size", alone.Size(),
	)
}
