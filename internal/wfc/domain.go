package wfc

import "math/bits"

// bitset is a fixed-width set of tile codes. Cells share one backing arena,
// each cell owning a window of `words` uint64s.
type bitset []uint64

// wordsFor returns how many uint64 words are needed for n tile codes
func wordsFor(n int) int {
	return (n + 63) / 64
}

func (b bitset) set(i int) {
	b[i>>6] |= 1 << uint(i&63)
}

func (b bitset) has(i int) bool {
	return b[i>>6]&(1<<uint(i&63)) != 0
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b bitset) clear() {
	for i := range b {
		b[i] = 0
	}
}

// intersect keeps only the codes also present in o.
func (b bitset) intersect(o bitset) {
	for i := range b {
		b[i] &= o[i]
	}
}

func (b bitset) union(o bitset) {
	for i := range b {
		b[i] |= o[i]
	}
}

// next returns the lowest set code >= from, or -1.
func (b bitset) next(from int) int {
	if from < 0 {
		from = 0
	}
	wi := from >> 6
	if wi >= len(b) {
		return -1
	}
	w := b[wi] &^ (1<<uint(from&63) - 1)
	for {
		if w != 0 {
			return wi<<6 + bits.TrailingZeros64(w)
		}
		wi++
		if wi >= len(b) {
			return -1
		}
		w = b[wi]
	}
}

// fill sets codes [0, n).
func (b bitset) fill(n int) {
	b.clear()
	for i := 0; i < n; i++ {
		b.set(i)
	}
}
