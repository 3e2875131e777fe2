// Package scenario models the immutable experiment input and parses the
// line-oriented scenario file format.
package scenario

import (
	"fmt"
	"strings"

	"github.com/fogcoal/fogcoal/internal/workload"
)

// Scenario is the immutable description of an experiment: the fog providers,
// their nodes and services, and every cost and requirement table. It is built
// once at startup and never mutated afterwards.
type Scenario struct {
	NumFPs           int // number of fog providers
	NumFNCategories  int // number of fog-node categories
	NumSvcCategories int // number of service categories
	NumVMCategories  int // number of VM categories

	SvcMaxDelays      []float64        // max tolerated delay, by service category (s)
	SvcVMCategories   []int            // VM category running each service category
	SvcVMServiceRates []float64        // per-VM service rate, by service category (req/s)
	SvcWorkloads      [][]workload.Step // cyclic workload profile, by service category

	FPNumSvcs          [][]int   // service count, by FP and service category
	FPNumFNs           [][]int   // FN count, by FP and FN category
	FPElectricityCosts []float64 // $/kWh, by FP
	FPCoalitionCosts   []float64 // flat coalition participation cost, by FP
	FPSvcRevenues      [][]float64 // revenue per unit time, by FP and service category
	FPSvcPenalties     [][]float64 // penalty per unit of relative SLA overshoot, by FP and service category
	FPFNAsleepCosts    [][]float64 // power-off transition cost, by FP and FN category
	FPFNAwakeCosts     [][]float64 // power-on transition cost, by FP and FN category

	FNMinPowers []float64 // min power draw, by FN category (kW)
	FNMaxPowers []float64 // max power draw, by FN category (kW)

	VMCPURequirements [][]float64 // CPU fraction, by VM category and FN category
	VMRAMRequirements [][]float64 // RAM fraction, by VM category and FN category
}

// TotalFNs returns the number of fog nodes across all providers.
func (s *Scenario) TotalFNs() int {
	n := 0
	for _, row := range s.FPNumFNs {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// TotalSvcs returns the number of services across all providers.
func (s *Scenario) TotalSvcs() int {
	n := 0
	for _, row := range s.FPNumSvcs {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// Topology holds the derived identity tables: for every FN and service index,
// the owning FP and the category. It is rebuilt once at setup.
type Topology struct {
	FNOwners      []int // FN index -> owning FP
	FNCategories  []int // FN index -> FN category
	SvcOwners     []int // service index -> owning FP
	SvcCategories []int // service index -> service category
}

// BuildTopology expands the per-FP counts into flat FN and service identity
// tables. FNs and services are numbered FP-major, category-minor, matching
// the enumeration order used everywhere else.
func (s *Scenario) BuildTopology() Topology {
	var t Topology
	for fp := 0; fp < s.NumFPs; fp++ {
		for cat := 0; cat < s.NumFNCategories; cat++ {
			for i := 0; i < s.FPNumFNs[fp][cat]; i++ {
				t.FNOwners = append(t.FNOwners, fp)
				t.FNCategories = append(t.FNCategories, cat)
			}
		}
	}
	for fp := 0; fp < s.NumFPs; fp++ {
		for cat := 0; cat < s.NumSvcCategories; cat++ {
			for i := 0; i < s.FPNumSvcs[fp][cat]; i++ {
				t.SvcOwners = append(t.SvcOwners, fp)
				t.SvcCategories = append(t.SvcCategories, cat)
			}
		}
	}
	return t
}

// Validate performs the post-parse shape checks: every table must agree with
// the declared num_* counts.
func (s *Scenario) Validate() error {
	if s.NumFPs <= 0 {
		return fmt.Errorf("scenario: number of FPs must be positive, got %d", s.NumFPs)
	}
	if s.NumFNCategories <= 0 {
		return fmt.Errorf("scenario: number of FN categories must be positive, got %d", s.NumFNCategories)
	}
	if s.NumSvcCategories <= 0 {
		return fmt.Errorf("scenario: number of service categories must be positive, got %d", s.NumSvcCategories)
	}
	if s.NumVMCategories <= 0 {
		return fmt.Errorf("scenario: number of VM categories must be positive, got %d", s.NumVMCategories)
	}

	if err := checkLen("svc.max_delays", len(s.SvcMaxDelays), s.NumSvcCategories); err != nil {
		return err
	}
	if err := checkLen("svc.vm_categories", len(s.SvcVMCategories), s.NumSvcCategories); err != nil {
		return err
	}
	if err := checkLen("svc.vm_service_rates", len(s.SvcVMServiceRates), s.NumSvcCategories); err != nil {
		return err
	}
	if err := checkLen("svc.workloads", len(s.SvcWorkloads), s.NumSvcCategories); err != nil {
		return err
	}
	for i, wl := range s.SvcWorkloads {
		if len(wl) == 0 {
			return fmt.Errorf("scenario: svc.workloads[%d] must contain at least one step", i)
		}
		for j, st := range wl {
			if st.Duration <= 0 {
				return fmt.Errorf("scenario: svc.workloads[%d][%d] duration must be positive, got %v", i, j, st.Duration)
			}
			if st.ArrivalRate < 0 {
				return fmt.Errorf("scenario: svc.workloads[%d][%d] arrival rate must be non-negative, got %v", i, j, st.ArrivalRate)
			}
		}
	}
	for i, cat := range s.SvcVMCategories {
		if cat < 0 || cat >= s.NumVMCategories {
			return fmt.Errorf("scenario: svc.vm_categories[%d] = %d out of range [0,%d)", i, cat, s.NumVMCategories)
		}
	}

	if err := checkMatrix("fp.num_svcs", intLens(s.FPNumSvcs), s.NumFPs, s.NumSvcCategories); err != nil {
		return err
	}
	if err := checkMatrix("fp.num_fns", intLens(s.FPNumFNs), s.NumFPs, s.NumFNCategories); err != nil {
		return err
	}
	if err := checkLen("fp.electricity_costs", len(s.FPElectricityCosts), s.NumFPs); err != nil {
		return err
	}
	if err := checkLen("fp.coalition_costs", len(s.FPCoalitionCosts), s.NumFPs); err != nil {
		return err
	}
	if err := checkMatrix("fp.svc_revenues", floatLens(s.FPSvcRevenues), s.NumFPs, s.NumSvcCategories); err != nil {
		return err
	}
	if err := checkMatrix("fp.svc_penalties", floatLens(s.FPSvcPenalties), s.NumFPs, s.NumSvcCategories); err != nil {
		return err
	}
	if err := checkMatrix("fp.fn_asleep_costs", floatLens(s.FPFNAsleepCosts), s.NumFPs, s.NumFNCategories); err != nil {
		return err
	}
	if err := checkMatrix("fp.fn_awake_costs", floatLens(s.FPFNAwakeCosts), s.NumFPs, s.NumFNCategories); err != nil {
		return err
	}

	if err := checkLen("fn.min_powers", len(s.FNMinPowers), s.NumFNCategories); err != nil {
		return err
	}
	if err := checkLen("fn.max_powers", len(s.FNMaxPowers), s.NumFNCategories); err != nil {
		return err
	}

	if err := checkMatrix("vm.cpu_requirements", floatLens(s.VMCPURequirements), s.NumVMCategories, s.NumFNCategories); err != nil {
		return err
	}
	if err := checkMatrix("vm.ram_requirements", floatLens(s.VMRAMRequirements), s.NumVMCategories, s.NumFNCategories); err != nil {
		return err
	}
	return nil
}

func checkLen(key string, got, want int) error {
	if got != want {
		return fmt.Errorf("scenario: %s has %d entries, want %d", key, got, want)
	}
	return nil
}

func checkMatrix(key string, rows []int, wantRows, wantCols int) error {
	if len(rows) != wantRows {
		return fmt.Errorf("scenario: %s has %d rows, want %d", key, len(rows), wantRows)
	}
	for i, c := range rows {
		if c != wantCols {
			return fmt.Errorf("scenario: %s row %d has %d entries, want %d", key, i, c, wantCols)
		}
	}
	return nil
}

func intLens(m [][]int) []int {
	out := make([]int, len(m))
	for i, r := range m {
		out[i] = len(r)
	}
	return out
}

func floatLens(m [][]float64) []int {
	out := make([]int, len(m))
	for i, r := range m {
		out[i] = len(r)
	}
	return out
}

// String renders the scenario in the same key=value form the file format
// uses; handy for startup logging.
func (s *Scenario) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "num_fps=%d, num_fn_categories=%d, num_svc_categories=%d, num_vm_categories=%d",
		s.NumFPs, s.NumFNCategories, s.NumSvcCategories, s.NumVMCategories)
	fmt.Fprintf(&b, ", svc.max_delays=%v", s.SvcMaxDelays)
	fmt.Fprintf(&b, ", svc.vm_categories=%v", s.SvcVMCategories)
	fmt.Fprintf(&b, ", svc.vm_service_rates=%v", s.SvcVMServiceRates)
	b.WriteString(", svc.workloads=[")
	for i, wl := range s.SvcWorkloads {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('[')
		for j, st := range wl {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "[%v %v]", st.Duration, st.ArrivalRate)
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
	fmt.Fprintf(&b, ", fp.num_svcs=%v", s.FPNumSvcs)
	fmt.Fprintf(&b, ", fp.num_fns=%v", s.FPNumFNs)
	fmt.Fprintf(&b, ", fp.electricity_costs=%v", s.FPElectricityCosts)
	fmt.Fprintf(&b, ", fp.coalition_costs=%v", s.FPCoalitionCosts)
	fmt.Fprintf(&b, ", fp.svc_revenues=%v", s.FPSvcRevenues)
	fmt.Fprintf(&b, ", fp.svc_penalties=%v", s.FPSvcPenalties)
	fmt.Fprintf(&b, ", fp.fn_asleep_costs=%v", s.FPFNAsleepCosts)
	fmt.Fprintf(&b, ", fp.fn_awake_costs=%v", s.FPFNAwakeCosts)
	fmt.Fprintf(&b, ", fn.min_powers=%v", s.FNMinPowers)
	fmt.Fprintf(&b, ", fn.max_powers=%v", s.FNMaxPowers)
	fmt.Fprintf(&b, ", vm.cpu_requirements=%v", s.VMCPURequirements)
	fmt.Fprintf(&b, ", vm.ram_requirements=%v", s.VMRAMRequirements)
	return b.String()
}
