// Package version implements the dotted-integer version ordering used by
// release branch labels.
package version

import (
	"strconv"
	"strings"
)

// Version is a release label: the original literal plus its parsed
// dot-separated integer components. Parsed is nil when the literal does not
// follow the dotted-integer form.
type Version struct {
	Literal    string
	components []uint64
}

// Parse builds a Version from a literal. The literal is kept verbatim even
// when it cannot be parsed into components, so callers can always display
// and compare something.
func Parse(literal string) Version {
	return Version{Literal: literal, components: parseComponents(literal)}
}

// IsNumeric reports whether the literal parsed as dot-separated integers.
func (v Version) IsNumeric() bool {
	return v.components != nil
}

func (v Version) String() string {
	return v.Literal
}

func parseComponents(s string) []uint64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	components := make([]uint64, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil
		}
		components[i] = n
	}
	return components
}

// Compare orders two versions, returning -1, 0 or +1. When both literals
// parse as dotted integers the shorter side is right-padded with zero
// components and the first differing component decides. When either side
// fails to parse, both sides fall back to ordinal string comparison for
// the whole call; the two schemes are never mixed within one comparison.
func Compare(a, b Version) int {
	if !a.IsNumeric() || !b.IsNumeric() {
		return strings.Compare(a.Literal, b.Literal)
	}

	n := len(a.components)
	if len(b.components) > n {
		n = len(b.components)
	}
	for i := 0; i < n; i++ {
		var ca, cb uint64
		if i < len(a.components) {
			ca = a.components[i]
		}
		if i < len(b.components) {
			cb = b.components[i]
		}
		if ca < cb {
			return -1
		}
		if ca > cb {
			return 1
		}
	}
	return 0
}
