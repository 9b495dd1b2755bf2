package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IRFloat represents a non-integral number such as a price or a ratio.
//
// Numbers are normalised on the way in (see Number): an integral value
// within int64 range is always an IRInt, so 9.0 and 9 are the same value
// and encode to the same canonical JSON. NaN and infinities are not
// representable.
type IRFloat float64

func (IRFloat) irValue() {}

// MarshalJSON implements json.Marshaler using the canonical number form.
func (f IRFloat) MarshalJSON() ([]byte, error) {
	s, err := formatCanonicalFloat(float64(f))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Number returns the IRValue for f: an IRInt when f is integral and fits
// in int64, an IRFloat otherwise.
func Number(f float64) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("number not representable in form values: %v", f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return IRInt(int64(f)), nil
	}
	return IRFloat(f), nil
}

// numberFromJSON converts a decoded JSON number. Integer literals keep
// full int64 precision; anything else goes through Number.
func numberFromJSON(n json.Number) (IRValue, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Number(f)
}

// formatCanonicalFloat renders f the way RFC 8785 (ECMAScript
// Number.prototype.toString) does: shortest round-trip digits, plain
// notation for magnitudes in [1e-6, 1e21), exponent notation otherwise.
func formatCanonicalFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("number not representable in canonical JSON: %v", f)
	}
	if f == 0 {
		return "0", nil
	}

	format := byte('f')
	if abs := math.Abs(f); abs < 1e-6 || abs >= 1e21 {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'e' {
		// Go pads the exponent to two digits ("1e-07"); ECMAScript does not.
		if n := len(s); n >= 4 && s[n-4] == 'e' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	return s, nil
}
