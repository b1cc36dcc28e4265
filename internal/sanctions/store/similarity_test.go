package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigramSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "word", b: "WORD", want: 1},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		// {"  w"," wo","wor","ord","rd "} vs {"  w"," wo","wor","ord","rds","ds "}
		{name: "plural", a: "word", b: "words", want: 4.0 / 7.0},
		{name: "empty", a: "", b: "word", want: 0},
		{name: "punctuation splits words", a: "ab-cd", b: "ab cd", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, trigramSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	d, ok := cosineDistance([]float32{1, 0}, []float32{1, 0})
	assert.True(t, ok)
	assert.InDelta(t, 0, d, 1e-9)

	d, ok = cosineDistance([]float32{1, 0}, []float32{0, 1})
	assert.True(t, ok)
	assert.InDelta(t, 1, d, 1e-9)

	_, ok = cosineDistance([]float32{1, 0}, []float32{1})
	assert.False(t, ok)

	_, ok = cosineDistance([]float32{0, 0}, []float32{1, 1})
	assert.False(t, ok)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_x\\`, escapeLike(`100% _x\`))
}
