package combinatorics

import (
	"errors"
	"reflect"
	"testing"
)

// Bell numbers B_1..B_8.
var bellNumbers = []int{1, 2, 5, 15, 52, 203, 877, 4140}

// Stirling numbers of the second kind S(n,k) for n=1..8, k=1..n.
var stirling2 = [][]int{
	{1},
	{1, 1},
	{1, 3, 1},
	{1, 7, 6, 1},
	{1, 15, 25, 10, 1},
	{1, 31, 90, 65, 15, 1},
	{1, 63, 301, 350, 140, 21, 1},
	{1, 127, 966, 1701, 1050, 266, 28, 1},
}

func TestPartition_BellCounts(t *testing.T) {
	for n := 1; n <= 8; n++ {
		it, err := NewPartition(n)
		if err != nil {
			t.Fatal(err)
		}
		seen := make(map[string]bool)
		count := 0
		for it.HasNext() {
			if err := it.CheckIntegrity(); err != nil {
				t.Fatal(err)
			}
			key := it.String()
			if seen[key] {
				t.Fatalf("n=%d: partition %s visited twice", n, key)
			}
			seen[key] = true
			count++
			if err := it.Next(); err != nil {
				t.Fatal(err)
			}
		}
		if count != bellNumbers[n-1] {
			t.Errorf("n=%d: visited %d partitions, want B_%d=%d", n, count, n, bellNumbers[n-1])
		}
	}
}

func TestPartition_LexOrder(t *testing.T) {
	it, err := NewPartition(3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"(0 0 0)", "(0 0 1)", "(0 1 0)", "(0 1 1)", "(0 1 2)"}
	var got []string
	for it.HasNext() {
		got = append(got, it.String())
		if err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPartition_Apply(t *testing.T) {
	it, err := NewPartition(3)
	if err != nil {
		t.Fatal(err)
	}
	// Advance to (0 1 0): {0,2} {1}.
	if err := it.Next(); err != nil {
		t.Fatal(err)
	}
	if err := it.Next(); err != nil {
		t.Fatal(err)
	}
	blocks, err := ApplyPartition(it, []int{10, 20, 30})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{10, 30}, {20}}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("got %v, want %v", blocks, want)
	}
}

func TestPartition_Invertible(t *testing.T) {
	it, err := NewPartition(5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 17; i++ {
		if err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}
	before := it.String()
	if err := it.Next(); err != nil {
		t.Fatal(err)
	}
	if err := it.Prev(); err != nil {
		t.Fatal(err)
	}
	if it.String() != before {
		t.Errorf("prev after next: got %s, want %s", it.String(), before)
	}
	if err := it.CheckIntegrity(); err != nil {
		t.Error(err)
	}
}

func TestPartition_Underflow(t *testing.T) {
	it, err := NewPartition(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := it.Prev(); !errors.Is(err, ErrUnderflow) {
		t.Errorf("expected underflow, got %v", err)
	}
}

func TestPartition_InvalidArguments(t *testing.T) {
	if _, err := NewPartition(0); err == nil {
		t.Error("expected error for n=0")
	}
}

func TestKPartition_StirlingCounts(t *testing.T) {
	for n := 1; n <= 8; n++ {
		for k := 1; k <= n; k++ {
			it, err := NewKPartition(n, k, true)
			if err != nil {
				t.Fatal(err)
			}
			count := 0
			for it.HasNext() {
				if err := it.CheckIntegrity(); err != nil {
					t.Fatal(err)
				}
				if got := it.RGS(); maxOf(got)+1 != k {
					t.Fatalf("n=%d k=%d: state %v has %d blocks", n, k, got, maxOf(got)+1)
				}
				count++
				if err := it.Next(); err != nil {
					t.Fatal(err)
				}
			}
			if want := stirling2[n-1][k-1]; count != want {
				t.Errorf("n=%d k=%d: visited %d partitions, want S(%d,%d)=%d", n, k, count, n, k, want)
			}
		}
	}
}

func TestKPartition_Invertible(t *testing.T) {
	it, err := NewKPartition(6, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 11; i++ {
		if err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}
	before := it.String()
	if err := it.Next(); err != nil {
		t.Fatal(err)
	}
	if err := it.Prev(); err != nil {
		t.Fatal(err)
	}
	if it.String() != before {
		t.Errorf("prev after next: got %s, want %s", it.String(), before)
	}
}

func TestKPartition_InvalidArguments(t *testing.T) {
	if _, err := NewKPartition(0, 1, true); err == nil {
		t.Error("expected error for n=0")
	}
	if _, err := NewKPartition(3, 0, true); err == nil {
		t.Error("expected error for k=0")
	}
	if _, err := NewKPartition(3, 4, true); err == nil {
		t.Error("expected error for k>n")
	}
}

func maxOf(v []int) int {
	m := v[0]
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}
