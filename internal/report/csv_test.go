package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStatsWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	w, err := OpenStatsWriter(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRow(1700000000, 0, 100, []float64{5, 6}, []float64{4, 6}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], `"Timestamp","Coalition Formation Start Time","Coalition Formation Duration"`) {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[0], `"FP 1 - Coalition Profit vs. Alone Profit"`) {
		t.Errorf("header misses the per-FP columns: %s", lines[0])
	}
	if lines[1] != "1700000000,0,100,5,4,0.25,6,6,0" {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestTraceWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	w, err := OpenTraceWriter(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRow(1700000000, 0, 100, "{{0,1}}", []float64{4, 6}, []float64{5, 6}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], `"Coalition Structure"`) {
		t.Errorf("header misses the structure column: %s", lines[0])
	}
	if lines[1] != `1700000000,0,100,"{{0,1}}",4,5,6,6` {
		t.Errorf("unexpected row: %s", lines[1])
	}
}
