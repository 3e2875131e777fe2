// Package report writes the per-trigger statistics and trace CSV artifacts.
//
// Files are append-only during the run: one stats row per coalition-formation
// trigger and one trace row per selected partition. Header fields and the
// coalition-structure column are quoted; numeric fields are written bare.
package report

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	fieldSep   = ','
	fieldQuote = '"'
)

// csvFile is the shared machinery of the two writers.
type csvFile struct {
	f *os.File
	w *bufio.Writer
}

func createCSV(path string) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("report: creating %s: %w", path, err)
	}
	return &csvFile{f: f, w: bufio.NewWriter(f)}, nil
}

func (c *csvFile) writeHeader(fields []string) error {
	for i, h := range fields {
		if i > 0 {
			c.w.WriteByte(fieldSep)
		}
		c.w.WriteByte(fieldQuote)
		c.w.WriteString(h)
		c.w.WriteByte(fieldQuote)
	}
	return c.endRow()
}

func (c *csvFile) writeQuoted(s string) {
	c.w.WriteByte(fieldQuote)
	c.w.WriteString(strings.ReplaceAll(s, `"`, `""`))
	c.w.WriteByte(fieldQuote)
}

func (c *csvFile) writeFloat(v float64) {
	c.w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

func (c *csvFile) endRow() error {
	c.w.WriteByte('\n')
	return c.w.Flush()
}

func (c *csvFile) close() error {
	if c == nil {
		return nil
	}
	if err := c.w.Flush(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

// StatsWriter emits one row per coalition-formation trigger with, for each
// FP, the coalition profit, the alone profit and their relative increment.
type StatsWriter struct {
	csv    *csvFile
	numFPs int
}

// OpenStatsWriter creates the stats file and writes its header.
func OpenStatsWriter(path string, numFPs int) (*StatsWriter, error) {
	c, err := createCSV(path)
	if err != nil {
		return nil, err
	}
	header := []string{"Timestamp", "Coalition Formation Start Time", "Coalition Formation Duration"}
	for fp := 0; fp < numFPs; fp++ {
		header = append(header,
			fmt.Sprintf("FP %d - Coalition Profit", fp),
			fmt.Sprintf("FP %d - Alone Profit", fp),
			fmt.Sprintf("FP %d - Coalition Profit vs. Alone Profit", fp),
		)
	}
	if err := c.writeHeader(header); err != nil {
		c.close()
		return nil, err
	}
	return &StatsWriter{csv: c, numFPs: numFPs}, nil
}

// WriteRow appends one trigger row. coal and alone hold one profit per FP.
func (s *StatsWriter) WriteRow(timestamp int64, start, duration float64, coal, alone []float64) error {
	c := s.csv
	fmt.Fprintf(c.w, "%d", timestamp)
	c.w.WriteByte(fieldSep)
	c.writeFloat(start)
	c.w.WriteByte(fieldSep)
	c.writeFloat(duration)
	for fp := 0; fp < s.numFPs; fp++ {
		c.w.WriteByte(fieldSep)
		c.writeFloat(coal[fp])
		c.w.WriteByte(fieldSep)
		c.writeFloat(alone[fp])
		c.w.WriteByte(fieldSep)
		c.writeFloat(relativeIncrement(coal[fp], alone[fp]))
	}
	return c.endRow()
}

// Close flushes and closes the stats file.
func (s *StatsWriter) Close() error {
	if s == nil {
		return nil
	}
	return s.csv.close()
}

// TraceWriter emits one row per selected partition per trigger, carrying the
// partition structure and the per-FP alone and coalition profits.
type TraceWriter struct {
	csv    *csvFile
	numFPs int
}

// OpenTraceWriter creates the trace file and writes its header.
func OpenTraceWriter(path string, numFPs int) (*TraceWriter, error) {
	c, err := createCSV(path)
	if err != nil {
		return nil, err
	}
	header := []string{"Timestamp", "Coalition Formation Start Time", "Coalition Formation Duration", "Coalition Structure"}
	for fp := 0; fp < numFPs; fp++ {
		header = append(header,
			fmt.Sprintf("FP %d - Alone Profit", fp),
			fmt.Sprintf("FP %d - Coalition Profit", fp),
		)
	}
	if err := c.writeHeader(header); err != nil {
		c.close()
		return nil, err
	}
	return &TraceWriter{csv: c, numFPs: numFPs}, nil
}

// WriteRow appends one partition row. structure is the compact bracketed
// rendering of the partition, e.g. {{0,1},{2}}.
func (t *TraceWriter) WriteRow(timestamp int64, start, duration float64, structure string, alone, coal []float64) error {
	c := t.csv
	fmt.Fprintf(c.w, "%d", timestamp)
	c.w.WriteByte(fieldSep)
	c.writeFloat(start)
	c.w.WriteByte(fieldSep)
	c.writeFloat(duration)
	c.w.WriteByte(fieldSep)
	c.writeQuoted(structure)
	for fp := 0; fp < t.numFPs; fp++ {
		c.w.WriteByte(fieldSep)
		c.writeFloat(alone[fp])
		c.w.WriteByte(fieldSep)
		c.writeFloat(coal[fp])
	}
	return c.endRow()
}

// Close flushes and closes the trace file.
func (t *TraceWriter) Close() error {
	if t == nil {
		return nil
	}
	return t.csv.close()
}

// relativeIncrement returns (x - ref) / ref.
func relativeIncrement(x, ref float64) float64 {
	return (x - ref) / ref
}
