// Package units converts imperial lengths to metric.
//
// Arithmetic is done on exact decimals so that half-way values such as
// 0.375" (9.525 mm) round the way a person reading the drawing expects.
package units

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// MillimetresPerInch is the exact conversion factor.
const MillimetresPerInch = 25.4

// Zero is the converted value used when the input cannot be parsed.
const Zero = "0.00"

var inchToMM = big.NewRat(127, 5)

// maxExponent bounds scientific notation to the range of a float64.
const maxExponent = 308

// leading decimal number with optional exponent, optionally followed by a
// unit mark or other text
var decimalPrefix = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d+)?|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseDecimal parses the leading decimal number of s, including an
// exponent such as "2.5E-1". Trailing text such as an inch mark is ignored.
// ok is false when s does not start with a number or its exponent is out of
// float64 range.
func ParseDecimal(s string) (*big.Rat, bool) {
	m := decimalPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil, false
	}
	if i := strings.IndexAny(m, "eE"); i >= 0 {
		exp, err := strconv.Atoi(m[i+1:])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return nil, false
		}
	}
	if i := strings.IndexByte(m, '.'); i == 0 || (i == 1 && (m[0] == '+' || m[0] == '-')) {
		m = m[:i] + "0" + m[i:]
	}
	r, ok := new(big.Rat).SetString(m)
	if !ok {
		return nil, false
	}
	return r, true
}

// ToMetric converts an imperial decimal string (inches) to millimetres,
// rounded half away from zero and formatted with exactly two fractional
// digits. Unparseable input yields "0.00".
func ToMetric(imperial string) string {
	r, ok := ParseDecimal(imperial)
	if !ok {
		return Zero
	}
	mm := new(big.Rat).Mul(r, inchToMM).FloatString(2)
	if mm == "-0.00" {
		return Zero
	}
	return mm
}

// Valid reports whether the value parses as a decimal.
func Valid(imperial string) bool {
	_, ok := ParseDecimal(imperial)
	return ok
}
