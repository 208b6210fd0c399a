package primitives

import "iter"

// Histogram counts how often each feedback occurs when one guess is scored against a pool.
//
// It is a dense (n+1)*(n+1) table so that scans over large universes do not allocate. Feedback
// outside the table, which no scorer should produce, shares one extra partition. A Histogram is
// not safe for concurrent use; scans keep one per worker.
type Histogram struct {
	n      int
	counts []int
	parts  int
	total  int
}

func NewHistogram(n int) *Histogram {
	return &Histogram{
		n:      n,
		counts: make([]int, (n+1)*(n+1)+1),
	}
}

// Reset clears all counts.
func (h *Histogram) Reset() {
	clear(h.counts)
	h.parts = 0
	h.total = 0
}

// Add records one occurrence of f.
func (h *Histogram) Add(f Feedback) {
	i := len(h.counts) - 1
	if h.inRange(f) {
		i = f.Black*(h.n+1) + f.White
	}
	if h.counts[i] == 0 {
		h.parts++
	}
	h.counts[i]++
	h.total++
}

// Count returns how often f was added.
func (h *Histogram) Count(f Feedback) int {
	if !h.inRange(f) {
		return 0
	}
	return h.counts[f.Black*(h.n+1)+f.White]
}

func (h *Histogram) inRange(f Feedback) bool {
	return f.Black >= 0 && f.White >= 0 && f.Black <= h.n && f.White <= h.n
}

// Parts returns the number of distinct feedback values seen.
func (h *Histogram) Parts() int {
	return h.parts
}

// Total returns the number of values added.
func (h *Histogram) Total() int {
	return h.total
}

// Largest returns the size of the biggest partition.
func (h *Histogram) Largest() int {
	largest := 0
	for _, c := range h.counts {
		largest = max(largest, c)
	}
	return largest
}

// SumOfSquares returns the sum of the squared partition sizes.
func (h *Histogram) SumOfSquares() int {
	sum := 0
	for _, c := range h.counts {
		sum += c * c
	}
	return sum
}

// All yields every non-empty partition in (black, white) order. The extra partition is not
// yielded.
func (h *Histogram) All() iter.Seq2[Feedback, int] {
	return func(yield func(Feedback, int) bool) {
		for i, c := range h.counts[:len(h.counts)-1] {
			if c == 0 {
				continue
			}
			f := Feedback{Black: i / (h.n + 1), White: i % (h.n + 1)}
			if !yield(f, c) {
				return
			}
		}
	}
}
