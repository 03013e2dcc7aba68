// Package cvss implements v2.0, v3.0, v3.1, and v4.0 CVSS vectors and scoring.
//
// The package parses vector strings into packed representations, computes
// base scores and sub-scores, and emits the canonicalized form of the
// vector. Round-tripping a valid vector through parse and emit yields the
// input with metrics in canonical order.
//
// # CVSS v2.0
//
// Metrics and scoring follow the [v2.0 specification]. Vectors are expected
// with the "CVSS:2.0/" prefix used by the NVD API.
//
// # CVSS v3.0 and v3.1
//
// Metrics and scoring follow the [v3.0 specification] and [v3.1
// specification]; the two differ only in the rounding function.
//
// # CVSS v4.0
//
// Scoring follows the [v4.0 specification] macrovector system, mirroring the
// FIRST.org reference calculator where the specification is unclear. The
// ordering emitted is as specified in revision 1.1.
//
// Temporal (v2, v3) and supplemental (v4) metrics are parsed and preserved
// but do not contribute to the scores reported by this package.
//
// [v2.0 specification]: https://www.first.org/cvss/v2/guide
// [v3.0 specification]: https://www.first.org/cvss/v3-0/
// [v3.1 specification]: https://www.first.org/cvss/v3-1/
// [v4.0 specification]: https://www.first.org/cvss/v4-0/
package cvss

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedVector is reported when a vector is invalid in some way.
var ErrMalformedVector = errors.New("malformed vector")

// ErrPrefix is reported when the leading "CVSS:<version>" element is absent.
var ErrPrefix = fmt.Errorf("%w: invalid prefix", ErrMalformedVector)

// ErrVersion is reported when the version in the prefix is not one this
// package implements.
var ErrVersion = fmt.Errorf("%w: unrecognized version", ErrMalformedVector)

// MetricError is reported when a metric is repeated, missing, or takes a
// value outside its defined set.
type MetricError struct {
	// Metric is the abbreviated metric name as it appeared in the vector.
	Metric string
	// Value is the offending value; empty when the metric was missing.
	Value string
	// Expected describes the accepted values.
	Expected string
}

func (e *MetricError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("metric %q: missing value (expected one of %q)", e.Metric, e.Expected)
	}
	return fmt.Sprintf("metric %q: bad value %q (expected one of %q)", e.Metric, e.Value, e.Expected)
}

func (e *MetricError) Unwrap() error { return ErrMalformedVector }

// Value is a "packed" representation of the value of a metric.
//
// When possible, this is the first byte of the abbreviated form in the
// relevant specification. This is not possible for every v2 and v4 value, so
// users may need [UnparseV2Value] or [UnparseV4Value].
type Value byte

// ValueUnset is reported when the metric is not present in the vector.
const ValueUnset = Value(0)

// ValueInvalid is reported when the packed representation is invalid.
const ValueInvalid = Value(255)

// GoString implements [fmt.GoStringer].
func (v Value) GoString() string {
	b := []byte("Value(")
	switch v {
	case 0:
		b = append(b, "Unset"...)
	case 255:
		b = append(b, "Invalid"...)
	default:
		b = append(b, byte(v))
	}
	b = append(b, ')')
	return string(b)
}

// Version guesses at the version of a vector string.
func Version(vec string) (v int) {
	v = 2
	switch {
	case strings.HasPrefix(vec, `CVSS:4.0`):
		v = 4
	case strings.HasPrefix(vec, `CVSS:3.0`), strings.HasPrefix(vec, `CVSS:3.1`):
		v = 3
	}
	return v
}

// Qualitative is the "Qualitative Severity" of a vector.
type Qualitative int

// The specified qualitative severities.
const (
	None Qualitative = iota
	Low
	Medium
	High
	Critical
)

// String implements [fmt.Stringer].
func (q Qualitative) String() string {
	switch q {
	case None:
		return "None"
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	}
	return fmt.Sprintf("Qualitative(%d)", int(q))
}

// QualitativeScore maps a v3.x or v4.0 base score onto its severity band.
//
// v2 uses a different band table; see [V2.Qualitative].
func QualitativeScore(score float64) (q Qualitative) {
	switch {
	case score == 0:
		q = None
	case score < 4:
		q = Low
	case score < 7:
		q = Medium
	case score < 9:
		q = High
	default:
		q = Critical
	}
	return q
}

// ParseVector splits "s" after the prefix into KEY:VALUE elements and calls
// "assign" for each. The prefix must include the trailing slash.
func parseVector(s, prefix string, assign func(key, value string) error) error {
	if !strings.HasPrefix(s, prefix) {
		switch {
		case !strings.HasPrefix(s, `CVSS:`):
			return ErrPrefix
		default:
			return ErrVersion
		}
	}
	for _, elem := range strings.Split(s[len(prefix):], "/") {
		k, v, ok := strings.Cut(elem, ":")
		if !ok || k == "" || v == "" {
			return fmt.Errorf("%w: bad element %q", ErrMalformedVector, elem)
		}
		if err := assign(k, v); err != nil {
			return err
		}
	}
	return nil
}

// MarshalVector emits the canonical form: the prefix, then every set metric
// in index order.
func marshalVector(prefix string, mv []byte, name func(int) string, unparse func(int, byte) string) []byte {
	text := append(make([]byte, 0, 64), prefix...)
	for i, b := range mv {
		if b == 0 {
			continue
		}
		text = append(text, '/')
		text = append(text, name(i)...)
		text = append(text, ':')
		text = append(text, unparse(i, b)...)
	}
	return text
}
