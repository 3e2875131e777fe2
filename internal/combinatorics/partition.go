package combinatorics

import (
	"fmt"
	"strings"
)

// Partition enumerates the set partitions of {0..n-1} in lexicographic order
// of their restricted growth strings. The state is the RGS kappa together
// with the prefix maxima M (M[i] = max(kappa[0..i])), which makes block
// counting and integrity checks O(1) and O(n).
type Partition struct {
	n       int
	kappa   []int
	m       []int
	hasPrev bool
	hasNext bool
}

// NewPartition creates a partition iterator positioned at the single-block
// partition. n must be positive.
func NewPartition(n int) (*Partition, error) {
	if n <= 0 {
		return nil, fmt.Errorf("combinatorics: number of elements must be positive, got %d", n)
	}
	return &Partition{
		n:       n,
		kappa:   make([]int, n),
		m:       make([]int, n),
		hasNext: true,
	}, nil
}

// NumElements returns the size of the ground set.
func (p *Partition) NumElements() int { return p.n }

// NumBlocks returns the number of blocks of the current partition.
func (p *Partition) NumBlocks() int { return p.m[p.n-1] + 1 }

// HasNext reports whether the current state may still be consumed and
// advanced.
func (p *Partition) HasNext() bool { return p.hasNext }

// HasPrev reports whether the iterator may retreat.
func (p *Partition) HasPrev() bool { return p.hasPrev }

// Next advances to the lexicographically following partition. It returns
// ErrOverflow when called past the all-singletons partition.
func (p *Partition) Next() error {
	if !p.hasNext {
		return ErrOverflow
	}

	// The all-singletons partition is the lexicographic maximum.
	p.hasNext = p.NumBlocks() < p.n

	for i := p.n - 1; i > 0; i-- {
		if p.kappa[i] <= p.m[i-1] {
			p.kappa[i]++
			newMax := max(p.m[i], p.kappa[i])
			p.m[i] = newMax
			for j := i + 1; j < p.n; j++ {
				p.kappa[j] = 0
				p.m[j] = newMax
			}
			p.hasPrev = true
			break
		}
	}
	return nil
}

// Prev retreats to the lexicographically preceding partition. It returns
// ErrUnderflow when called before the single-block partition.
func (p *Partition) Prev() error {
	if !p.hasPrev {
		return ErrUnderflow
	}

	p.hasPrev = p.NumBlocks() > 1

	for i := p.n - 1; i > 0; i-- {
		if p.kappa[i] > 0 {
			p.kappa[i]--
			mi := p.m[i-1]
			p.m[i] = mi
			for j := i + 1; j < p.n; j++ {
				newMax := mi + j - i
				p.kappa[j] = newMax
				p.m[j] = newMax
			}
			p.hasNext = true
			break
		}
	}
	return nil
}

// RGS returns the current restricted growth string. The returned slice is a
// copy.
func (p *Partition) RGS() []int {
	out := make([]int, p.n)
	copy(out, p.kappa)
	return out
}

// CheckIntegrity verifies the kappa/M invariant. A failure indicates internal
// state corruption and is fatal for the caller.
func (p *Partition) CheckIntegrity() error {
	return checkRGSIntegrity(p.kappa, p.m)
}

// ApplyPartition maps the current partition onto values, returning one slice
// per block, ordered by block index.
func ApplyPartition[E any](p *Partition, values []E) ([][]E, error) {
	return applyRGS(p.kappa, p.NumBlocks(), values)
}

// NextPartition applies the current partition onto values, then advances the
// iterator if it has a following state.
func NextPartition[E any](p *Partition, values []E) ([][]E, error) {
	out, err := ApplyPartition(p, values)
	if err != nil {
		return nil, err
	}
	if p.hasNext {
		if err := p.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PrevPartition applies the current partition onto values, then retreats the
// iterator if it has a preceding state.
func PrevPartition[E any](p *Partition, values []E) ([][]E, error) {
	out, err := ApplyPartition(p, values)
	if err != nil {
		return nil, err
	}
	if p.hasPrev {
		if err := p.Prev(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// String renders the current RGS as "(k0 k1 ...)".
func (p *Partition) String() string { return rgsString(p.kappa) }

// KPartition enumerates the set partitions of {0..n-1} with exactly k blocks,
// in lexicographic RGS order.
type KPartition struct {
	n       int
	k       int
	kappa   []int
	m       []int
	hasPrev bool
	hasNext bool
}

// NewKPartition creates a k-block partition iterator positioned at the first
// (first=true) or last (first=false) partition in lexicographic order.
// Requires n > 0 and 0 < k <= n.
func NewKPartition(n, k int, first bool) (*KPartition, error) {
	if n <= 0 {
		return nil, fmt.Errorf("combinatorics: number of elements must be positive, got %d", n)
	}
	if k <= 0 || k > n {
		return nil, fmt.Errorf("combinatorics: number of blocks %d out of range [1,%d]", k, n)
	}
	p := &KPartition{
		n:       n,
		k:       k,
		kappa:   make([]int, n),
		m:       make([]int, n),
		hasNext: true,
	}
	if first {
		offset := n - k
		for i := offset + 1; i < n; i++ {
			p.kappa[i] = i - offset
			p.m[i] = i - offset
		}
	} else {
		for i := 1; i < k; i++ {
			p.kappa[i] = i
			p.m[i] = i
		}
		for i := k; i < n; i++ {
			p.kappa[i] = k - 1
			p.m[i] = k - 1
		}
		p.hasPrev = true
	}
	return p, nil
}

// NumElements returns the size of the ground set.
func (p *KPartition) NumElements() int { return p.n }

// NumBlocks returns k. For any reachable state M[n-1]+1 == k holds.
func (p *KPartition) NumBlocks() int { return p.k }

// HasNext reports whether the current state may still be consumed and
// advanced.
func (p *KPartition) HasNext() bool { return p.hasNext }

// HasPrev reports whether the iterator may retreat.
func (p *KPartition) HasPrev() bool { return p.hasPrev }

// Next advances to the following k-block partition. It returns ErrOverflow
// when called past the last one.
func (p *KPartition) Next() error {
	if !p.hasNext {
		return ErrOverflow
	}

	p.hasNext = false
	for i := p.n - 1; i > 0; i-- {
		if p.kappa[i] < p.k-1 && p.kappa[i] <= p.m[i-1] {
			p.kappa[i]++
			newMax := max(p.m[i], p.kappa[i])
			p.m[i] = newMax
			// Reset the tail: zeros first, then the forced ramp that
			// guarantees the remaining blocks all get an element.
			for j := i + 1; j <= p.n-(p.k-newMax); j++ {
				p.kappa[j] = 0
				p.m[j] = newMax
			}
			for j := p.n - (p.k - newMax) + 1; j < p.n; j++ {
				v := p.k - (p.n - j)
				p.kappa[j] = v
				p.m[j] = v
			}
			p.hasPrev = true
			p.hasNext = true
			break
		}
	}
	return nil
}

// Prev retreats to the preceding k-block partition. It returns ErrUnderflow
// when called before the first one.
func (p *KPartition) Prev() error {
	if !p.hasPrev {
		return ErrUnderflow
	}

	p.hasPrev = false
	for i := p.n - 1; i > 0; i-- {
		if p.kappa[i] > 0 && p.k-p.m[i-1] <= p.n-i {
			p.kappa[i]--
			mi := p.m[i-1]
			p.m[i] = mi
			for j := i + 1; j < i+(p.k-mi); j++ {
				v := mi + j - i
				p.kappa[j] = v
				p.m[j] = v
			}
			for j := i + (p.k - mi); j < p.n; j++ {
				p.kappa[j] = p.k - 1
				p.m[j] = p.k - 1
			}
			p.hasNext = true
			p.hasPrev = true
			break
		}
	}
	return nil
}

// RGS returns the current restricted growth string. The returned slice is a
// copy.
func (p *KPartition) RGS() []int {
	out := make([]int, p.n)
	copy(out, p.kappa)
	return out
}

// CheckIntegrity verifies the kappa/M invariant.
func (p *KPartition) CheckIntegrity() error {
	return checkRGSIntegrity(p.kappa, p.m)
}

// ApplyKPartition maps the current partition onto values, returning exactly k
// blocks.
func ApplyKPartition[E any](p *KPartition, values []E) ([][]E, error) {
	return applyRGS(p.kappa, p.k, values)
}

// String renders the current RGS as "(k0 k1 ...)".
func (p *KPartition) String() string { return rgsString(p.kappa) }

func applyRGS[E any](kappa []int, blocks int, values []E) ([][]E, error) {
	if len(values) != len(kappa) {
		return nil, fmt.Errorf("combinatorics: value slice size %d does not match ground set size %d", len(values), len(kappa))
	}
	out := make([][]E, blocks)
	for i, b := range kappa {
		out[b] = append(out[b], values[i])
	}
	return out, nil
}

func checkRGSIntegrity(kappa, m []int) error {
	maxSeen := kappa[0]
	for i := range kappa {
		maxSeen = max(maxSeen, kappa[i])
		if maxSeen != m[i] {
			return fmt.Errorf("combinatorics: integrity check failed at position %d (max %d, M %d)", i, maxSeen, m[i])
		}
	}
	return nil
}

func rgsString(kappa []int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, k := range kappa {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", k)
	}
	b.WriteByte(')')
	return b.String()
}
