package wfc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordsFor(t *testing.T) {
	tests := []struct{ n, want int }{
		{1, 1},
		{63, 1},
		{64, 1},
		{65, 2},
		{128, 2},
		{129, 3},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, wordsFor(tc.n), "wordsFor(%d)", tc.n)
	}
}

func TestBitsetAcrossWords(t *testing.T) {
	b := make(bitset, wordsFor(130))
	for _, i := range []int{0, 63, 64, 100, 129} {
		b.set(i)
	}

	assert.Equal(t, 5, b.count())
	assert.True(t, b.has(64))
	assert.False(t, b.has(65))

	var got []int
	for i := b.next(0); i >= 0; i = b.next(i + 1) {
		got = append(got, i)
	}
	assert.Equal(t, []int{0, 63, 64, 100, 129}, got)
	assert.Equal(t, -1, b.next(130), "next past the end")
}

func TestBitsetIntersectUnion(t *testing.T) {
	a := make(bitset, 2)
	o := make(bitset, 2)
	a.fill(70)
	o.set(3)
	o.set(69)

	a.intersect(o)
	assert.Equal(t, 2, a.count())
	assert.True(t, a.has(3))
	assert.True(t, a.has(69))

	a.clear()
	assert.Equal(t, 0, a.count())
	a.union(o)
	assert.Equal(t, 2, a.count())
}
