// Package cellid derives the fixed-width string identifier a cell's
// regeneration record is keyed by. The identifier is a pure function of
// the cell's coordinate: each axis is shifted by +30,000,000 into the
// non-negative range, rendered as a zero-padded 5-digit decimal, and the
// three axis strings are concatenated (15 characters total).
//
// A shifted axis value that needs more than 5 digits keeps only its
// rightmost 5 (the low-order digits), so nearby coordinates always
// differ even far from the shifted origin. Distinct coordinates whose
// shifted values agree modulo 100,000 share an identifier; that
// aliasing is accepted. There is no decode: records carry their
// coordinate.
package cellid

import "fmt"

const (
	shift     = 30000000
	axisWidth = 5
)

// Len is the length of every identifier produced by Encode.
const Len = 3 * axisWidth

// Encode maps a cell coordinate to its identifier.
func Encode(x, y, z int) string {
	return axis(x) + axis(y) + axis(z)
}

// EncodePos is Encode over the [3]int position form used by records.
func EncodePos(p [3]int) string {
	return Encode(p[0], p[1], p[2])
}

func axis(c int) string {
	s := fmt.Sprintf("%0*d", axisWidth, c+shift)
	if len(s) > axisWidth {
		s = s[len(s)-axisWidth:]
	}
	return s
}
