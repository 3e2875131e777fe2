package sim

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fogcoal/fogcoal/internal/config"
	"github.com/fogcoal/fogcoal/internal/logging"
	"github.com/fogcoal/fogcoal/internal/scenario"
	"github.com/fogcoal/fogcoal/internal/workload"
)

// singleProviderScenario is the smallest end-to-end setup: one provider, one
// FN, one service.
func singleProviderScenario(steps []workload.Step) *scenario.Scenario {
	return &scenario.Scenario{
		NumFPs:             1,
		NumFNCategories:    1,
		NumSvcCategories:   1,
		NumVMCategories:    1,
		SvcMaxDelays:       []float64{1.0},
		SvcVMCategories:    []int{0},
		SvcVMServiceRates:  []float64{10},
		SvcWorkloads:       [][]workload.Step{steps},
		FPNumSvcs:          [][]int{{1}},
		FPNumFNs:           [][]int{{1}},
		FPElectricityCosts: []float64{0.1},
		FPCoalitionCosts:   []float64{0},
		FPSvcRevenues:      [][]float64{{10}},
		FPSvcPenalties:     [][]float64{{100}},
		FPFNAsleepCosts:    [][]float64{{0.01}},
		FPFNAwakeCosts:     [][]float64{{0.02}},
		FNMinPowers:        []float64{0.1},
		FNMaxPowers:        []float64{0.2},
		VMCPURequirements:  [][]float64{{0.5}},
		VMRAMRequirements:  [][]float64{{0.5}},
	}
}

func baseConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.Scenario = "in-memory"
	cfg.Formation.Interval = 100
	cfg.Sim.MaxReplicationDuration = 100
	cfg.Sim.MaxNumReplications = 1
	cfg.Output.StatsFile = filepath.Join(dir, "stats.csv")
	cfg.Output.TraceFile = filepath.Join(dir, "trace.csv")
	return cfg
}

// runExperiment executes a full simulation with a pinned clock and returns
// the stats CSV lines (header included).
func runExperiment(t *testing.T, scen *scenario.Scenario, cfg config.Config) []string {
	t.Helper()
	exp, err := NewExperiment(scen, cfg, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	exp.Clock = func() int64 { return 1700000000 }
	if err := exp.Run(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.Output.StatsFile)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// statsField parses column idx of a stats CSV data row.
func statsField(t *testing.T, row string, idx int) float64 {
	t.Helper()
	fields := strings.Split(row, ",")
	if idx >= len(fields) {
		t.Fatalf("row has %d fields, need %d: %s", len(fields), idx+1, row)
	}
	v, err := strconv.ParseFloat(fields[idx], 64)
	if err != nil {
		t.Fatalf("parsing field %d of %q: %v", idx, row, err)
	}
	return v
}

func TestExperiment_SingleProviderSingleService(t *testing.T) {
	scen := singleProviderScenario([]workload.Step{{Duration: 100, ArrivalRate: 5}})
	cfg := baseConfig(t.TempDir())

	lines := runExperiment(t, scen, cfg)
	if len(lines) != 2 {
		t.Fatalf("stats has %d lines, want header + 1 row", len(lines))
	}

	coal := statsField(t, lines[1], 3)
	alone := statsField(t, lines[1], 4)
	if math.IsNaN(coal) || math.IsNaN(alone) {
		t.Fatalf("profits not recorded: %s", lines[1])
	}
	if coal != alone {
		t.Errorf("a lone provider's coalition profit must equal its alone profit: %v vs %v", coal, alone)
	}
	// v = (revenue - electricity) * interval with one VM on one powered FN.
	want := (10 - (0.1+0.1*0.5)*0.1) * 100
	if math.Abs(coal-want) > 1e-6 {
		t.Errorf("profit = %v, want %v", coal, want)
	}

	trace, err := os.ReadFile(cfg.Output.TraceFile)
	if err != nil {
		t.Fatal(err)
	}
	traceLines := strings.Split(strings.TrimRight(string(trace), "\n"), "\n")
	if len(traceLines) != 2 {
		t.Fatalf("trace has %d lines, want header + 1 row", len(traceLines))
	}
	if !strings.Contains(traceLines[1], `"{{0}}"`) {
		t.Errorf("trace row misses the singleton structure: %s", traceLines[1])
	}
}

func TestExperiment_BurstResizingLowersProfit(t *testing.T) {
	calm := singleProviderScenario([]workload.Step{{Duration: 100, ArrivalRate: 5}})
	bursty := singleProviderScenario([]workload.Step{{Duration: 50, ArrivalRate: 1}, {Duration: 50, ArrivalRate: 9}})
	bursty.SvcMaxDelays = []float64{0.2}

	calmLines := runExperiment(t, calm, baseConfig(t.TempDir()))
	burstyLines := runExperiment(t, bursty, baseConfig(t.TempDir()))

	calmProfit := statsField(t, calmLines[1], 3)
	burstyProfit := statsField(t, burstyLines[1], 3)
	if !(burstyProfit < calmProfit) {
		t.Errorf("scaling up for the 9 req/s burst must cost more: bursty %v, calm %v", burstyProfit, calmProfit)
	}
}

func TestExperiment_CIStoppingBeforeReplicationBudget(t *testing.T) {
	scen := singleProviderScenario([]workload.Step{{Duration: 100, ArrivalRate: 5}})
	cfg := baseConfig(t.TempDir())
	cfg.Sim.MaxNumReplications = 50

	lines := runExperiment(t, scen, cfg)
	// A deterministic scenario repeats the same profit: two replications
	// suffice for a zero half-width, well before the 50-replication budget.
	if rows := len(lines) - 1; rows != 2 {
		t.Errorf("ran %d triggers, want 2 (one per replication, stopping after two)", rows)
	}
}

func TestExperiment_DeterministicOutputs(t *testing.T) {
	read := func() (string, string) {
		dir := t.TempDir()
		scen := singleProviderScenario([]workload.Step{{Duration: 30, ArrivalRate: 2}, {Duration: 70, ArrivalRate: 6}})
		cfg := baseConfig(dir)
		cfg.Sim.MaxNumReplications = 3
		runExperiment(t, scen, cfg)
		s, err := os.ReadFile(cfg.Output.StatsFile)
		if err != nil {
			t.Fatal(err)
		}
		tr, err := os.ReadFile(cfg.Output.TraceFile)
		if err != nil {
			t.Fatal(err)
		}
		return string(s), string(tr)
	}

	s1, t1 := read()
	s2, t2 := read()
	if s1 != s2 {
		t.Error("stats outputs differ between identical runs")
	}
	if t1 != t2 {
		t.Error("trace outputs differ between identical runs")
	}
}
