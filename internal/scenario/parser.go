package scenario

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/fogcoal/fogcoal/internal/workload"
)

// Load reads and validates a scenario file.
//
// The format is line oriented: '#' starts a comment, blank lines are ignored,
// keys are case insensitive and each logical entry fits on one line, e.g.
//
//	num_fps = 2
//	svc.max_delays = [0.5 1.0]
//	fp.num_fns = [[1 0] [0 2]]
//	svc.workloads = [[[100 5] [50 9]] [[200 1]]]
//
// The num_* keys must precede the vector keys that depend on them.
func Load(path string) (*Scenario, error) {
	if path == "" {
		return nil, fmt.Errorf("scenario: file name is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a scenario from r and runs the post-parse shape checks.
func Parse(r io.Reader) (*Scenario, error) {
	s := &Scenario{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := parseLine(s, strings.ToLower(line), lineno); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scenario: reading input: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseLine(s *Scenario, line string, lineno int) error {
	c := &cursor{line: line, lineno: lineno}

	key := c.readKey()
	if err := c.expect('='); err != nil {
		return err
	}

	var err error
	switch key {
	case "num_fps":
		s.NumFPs, err = c.readInt()
	case "num_fn_categories":
		s.NumFNCategories, err = c.readInt()
	case "num_svc_categories":
		s.NumSvcCategories, err = c.readInt()
	case "num_vm_categories":
		s.NumVMCategories, err = c.readInt()
	case "svc.max_delays":
		s.SvcMaxDelays, err = c.readFloatVector(s.NumSvcCategories)
	case "svc.vm_categories":
		s.SvcVMCategories, err = c.readIntVector(s.NumSvcCategories)
	case "svc.vm_service_rates":
		s.SvcVMServiceRates, err = c.readFloatVector(s.NumSvcCategories)
	case "svc.workloads":
		s.SvcWorkloads, err = c.readWorkloads(s.NumSvcCategories)
	case "fp.num_svcs":
		s.FPNumSvcs, err = c.readIntMatrix(s.NumFPs, s.NumSvcCategories)
	case "fp.num_fns":
		s.FPNumFNs, err = c.readIntMatrix(s.NumFPs, s.NumFNCategories)
	case "fp.electricity_costs":
		s.FPElectricityCosts, err = c.readFloatVector(s.NumFPs)
	case "fp.coalition_costs":
		s.FPCoalitionCosts, err = c.readFloatVector(s.NumFPs)
	case "fp.svc_revenues":
		s.FPSvcRevenues, err = c.readFloatMatrix(s.NumFPs, s.NumSvcCategories)
	case "fp.svc_penalties":
		s.FPSvcPenalties, err = c.readFloatMatrix(s.NumFPs, s.NumSvcCategories)
	case "fp.fn_asleep_costs":
		s.FPFNAsleepCosts, err = c.readFloatMatrix(s.NumFPs, s.NumFNCategories)
	case "fp.fn_awake_costs":
		s.FPFNAwakeCosts, err = c.readFloatMatrix(s.NumFPs, s.NumFNCategories)
	case "fn.min_powers":
		s.FNMinPowers, err = c.readFloatVector(s.NumFNCategories)
	case "fn.max_powers":
		s.FNMaxPowers, err = c.readFloatVector(s.NumFNCategories)
	case "vm.cpu_requirements":
		s.VMCPURequirements, err = c.readFloatMatrix(s.NumVMCategories, s.NumFNCategories)
	case "vm.ram_requirements":
		s.VMRAMRequirements, err = c.readFloatMatrix(s.NumVMCategories, s.NumFNCategories)
	default:
		return c.errorf("unknown key %q", key)
	}
	return err
}

// cursor scans a single logical line, tracking the column for error messages.
type cursor struct {
	line   string
	lineno int
	pos    int
}

func (c *cursor) errorf(format string, args ...any) error {
	return fmt.Errorf("scenario: line %d, col %d: %s", c.lineno, c.pos+1, fmt.Sprintf(format, args...))
}

func (c *cursor) skipSpaces() {
	for c.pos < len(c.line) && unicode.IsSpace(rune(c.line[c.pos])) {
		c.pos++
	}
}

func (c *cursor) peek() (byte, bool) {
	c.skipSpaces()
	if c.pos >= len(c.line) {
		return 0, false
	}
	return c.line[c.pos], true
}

func (c *cursor) expect(ch byte) error {
	got, ok := c.peek()
	if !ok {
		return c.errorf("%q is missing", string(ch))
	}
	if got != ch {
		return c.errorf("expected %q, found %q", string(ch), string(got))
	}
	c.pos++
	return nil
}

func (c *cursor) readKey() string {
	c.skipSpaces()
	start := c.pos
	for c.pos < len(c.line) {
		ch := c.line[c.pos]
		if ch == '=' || unicode.IsSpace(rune(ch)) {
			break
		}
		c.pos++
	}
	return c.line[start:c.pos]
}

func (c *cursor) readToken() (string, error) {
	c.skipSpaces()
	start := c.pos
	for c.pos < len(c.line) {
		ch := c.line[c.pos]
		if ch == '[' || ch == ']' || unicode.IsSpace(rune(ch)) {
			break
		}
		c.pos++
	}
	if start == c.pos {
		return "", c.errorf("number is missing")
	}
	return c.line[start:c.pos], nil
}

func (c *cursor) readInt() (int, error) {
	tok, err := c.readToken()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, c.errorf("invalid integer %q", tok)
	}
	return v, nil
}

func (c *cursor) readFloat() (float64, error) {
	tok, err := c.readToken()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, c.errorf("invalid number %q", tok)
	}
	return v, nil
}

func (c *cursor) readIntVector(n int) ([]int, error) {
	if err := c.expect('['); err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := c.readInt()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if err := c.expect(']'); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cursor) readFloatVector(n int) ([]float64, error) {
	if err := c.expect('['); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := c.readFloat()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if err := c.expect(']'); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cursor) readIntMatrix(rows, cols int) ([][]int, error) {
	if err := c.expect('['); err != nil {
		return nil, err
	}
	out := make([][]int, rows)
	for i := 0; i < rows; i++ {
		row, err := c.readIntVector(cols)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	if err := c.expect(']'); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cursor) readFloatMatrix(rows, cols int) ([][]float64, error) {
	if err := c.expect('['); err != nil {
		return nil, err
	}
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row, err := c.readFloatVector(cols)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	if err := c.expect(']'); err != nil {
		return nil, err
	}
	return out, nil
}

// readWorkloads parses the triple-nested svc.workloads value: one list of
// [duration rate] pairs per service category, each list of arbitrary
// non-zero length.
func (c *cursor) readWorkloads(n int) ([][]workload.Step, error) {
	if err := c.expect('['); err != nil {
		return nil, err
	}
	out := make([][]workload.Step, n)
	for i := 0; i < n; i++ {
		if err := c.expect('['); err != nil {
			return nil, err
		}
		for {
			ch, ok := c.peek()
			if !ok {
				return nil, c.errorf("']' is missing")
			}
			if ch == ']' {
				c.pos++
				break
			}
			if err := c.expect('['); err != nil {
				return nil, err
			}
			dur, err := c.readFloat()
			if err != nil {
				return nil, err
			}
			rate, err := c.readFloat()
			if err != nil {
				return nil, err
			}
			if err := c.expect(']'); err != nil {
				return nil, err
			}
			out[i] = append(out[i], workload.Step{Duration: dur, ArrivalRate: rate})
		}
	}
	if err := c.expect(']'); err != nil {
		return nil, err
	}
	return out, nil
}
