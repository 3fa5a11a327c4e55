package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	v := Parse("1.2.3")
	require.True(t, v.IsNumeric())
	assert.Equal(t, "1.2.3", v.String())
}

func TestParseNonNumeric(t *testing.T) {
	for _, literal := range []string{"", "main", "1.2.x", "v1.2.3", "1..2", "feature/foo"} {
		v := Parse(literal)
		assert.False(t, v.IsNumeric(), "literal %q should not parse", literal)
		assert.Equal(t, literal, v.String())
	}
}

func TestCompareNumeric(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.2", "1.2.0", 0},
		{"1.2.0", "1.2", 0},
		{"1.10.0", "1.9.0", 1},
		{"1.9.0", "1.10.0", -1},
		{"2", "1.999.999", 1},
		{"0.0.1", "0.1", -1},
		{"1.2.3.4", "1.2.3", 1},
	}

	for _, tt := range tests {
		got := Compare(Parse(tt.a), Parse(tt.b))
		assert.Equal(t, tt.want, got, "Compare(%q, %q)", tt.a, tt.b)
	}
}

func TestCompareStringFallback(t *testing.T) {
	// Either side failing to parse forces both sides onto ordinal
	// comparison: "1.10" sorts below "1.9x" byte-wise.
	assert.Equal(t, -1, Compare(Parse("1.10"), Parse("1.9x")))
	assert.Equal(t, 1, Compare(Parse("main"), Parse("feature/x")))
	assert.Equal(t, 0, Compare(Parse("main"), Parse("main")))
}

func TestCompareAntisymmetric(t *testing.T) {
	pairs := [][2]string{
		{"1.0.0", "1.0.1"},
		{"1.2", "1.2.0"},
		{"1.10.0", "1.9.0"},
		{"main", "1.0.0"},
		{"2.3.1", "2.3.1"},
	}

	for _, pair := range pairs {
		a, b := Parse(pair[0]), Parse(pair[1])
		assert.Equal(t, Compare(a, b), -Compare(b, a), "antisymmetry for (%q, %q)", pair[0], pair[1])
	}
}

func TestCompareTotalOrder(t *testing.T) {
	// Transitivity over a sorted chain of numeric versions.
	chain := []string{"0.9", "1.0.0", "1.0.1", "1.2", "1.9.0", "1.10.0", "2.0"}
	for i := 0; i < len(chain); i++ {
		for j := i + 1; j < len(chain); j++ {
			assert.Equal(t, -1, Compare(Parse(chain[i]), Parse(chain[j])),
				"%q should order before %q", chain[i], chain[j])
		}
	}
}
