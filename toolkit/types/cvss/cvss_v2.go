package cvss

import (
	"encoding"
	"fmt"
	"strings"
)

// V2 is a CVSS version 2 vector.
type V2 struct {
	mv [numV2Metrics]byte
}

var (
	_ encoding.TextMarshaler   = (*V2)(nil)
	_ encoding.TextUnmarshaler = (*V2)(nil)
	_ fmt.Stringer             = (*V2)(nil)
)

// ParseV2 parses the provided string as a v2 vector.
func ParseV2(s string) (v V2, err error) {
	return v, v.UnmarshalText([]byte(s))
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (v *V2) UnmarshalText(text []byte) error {
	var mv [numV2Metrics]byte
	err := parseVector(string(text), `CVSS:2.0/`, func(key, val string) error {
		m, ok := v2Lookup[key]
		if !ok {
			return fmt.Errorf("%w: unknown metric %q", ErrMalformedVector, key)
		}
		if mv[m] != 0 {
			return fmt.Errorf("%w: duplicate metric %q", ErrMalformedVector, key)
		}
		b := m.parse(val)
		if strings.IndexByte(m.validValues(), b) == -1 || v2Unparse(m, b) != val {
			return &MetricError{Metric: key, Value: val, Expected: m.expectedValues()}
		}
		mv[m] = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("cvss v2: %w", err)
	}
	for m := V2AccessVector; m <= V2Availability; m++ {
		if mv[m] == 0 {
			return fmt.Errorf("cvss v2: %w", &MetricError{Metric: m.String(), Expected: m.expectedValues()})
		}
	}
	v.mv = mv
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (v *V2) MarshalText() (text []byte, err error) {
	return marshalVector(`CVSS:2.0`, v.mv[:],
		func(i int) string { return V2Metric(i).String() },
		func(i int, b byte) string { return v2Unparse(V2Metric(i), b) },
	), nil
}

// String implements [fmt.Stringer].
func (v *V2) String() string {
	t, _ := v.MarshalText()
	return string(t)
}

// Get reports the Value for the supplied Metric.
//
// Use [UnparseV2Value] to recover the spec-defined abbreviation.
func (v *V2) Get(m V2Metric) Value {
	b := v.mv[int(m)]
	if b == 0 {
		return ValueUnset
	}
	return Value(b)
}

// Temporal reports if the vector has "Temporal" metrics.
func (v *V2) Temporal() (ok bool) {
	for _, b := range v.mv[V2Exploitability : V2ReportConfidence+1] {
		if b != 0 {
			ok = true
			break
		}
	}
	return ok
}

// Environmental reports if the vector has "Environmental" metrics.
func (v *V2) Environmental() (ok bool) {
	for _, b := range v.mv[V2CollateralDamagePotential:] {
		if b != 0 {
			ok = true
			break
		}
	}
	return ok
}

// V2Metric is a metric in a v2 vector.
type V2Metric int

// These are the metrics defined in the specification, in canonical order.
const (
	V2AccessVector V2Metric = iota
	V2AccessComplexity
	V2Authentication
	V2Confidentiality
	V2Integrity
	V2Availability
	V2Exploitability
	V2RemediationLevel
	V2ReportConfidence
	V2CollateralDamagePotential
	V2TargetDistribution
	V2ConfidentialityRequirement
	V2IntegrityRequirement
	V2AvailabilityRequirement

	numV2Metrics int = iota
)

var v2Info = [numV2Metrics]struct {
	name  string
	valid string // packed bytes, see v2Unparse
}{
	V2AccessVector:               {`AV`, `LAN`},
	V2AccessComplexity:           {`AC`, `HML`},
	V2Authentication:             {`Au`, `MSN`},
	V2Confidentiality:            {`C`, `NPC`},
	V2Integrity:                  {`I`, `NPC`},
	V2Availability:               {`A`, `NPC`},
	V2Exploitability:             {`E`, `UPFHN`},
	V2RemediationLevel:           {`RL`, `OTWUN`},
	V2ReportConfidence:           {`RC`, `UuCN`},
	V2CollateralDamagePotential:  {`CDP`, `NLlMHX`},
	V2TargetDistribution:         {`TD`, `NLMHX`},
	V2ConfidentialityRequirement: {`CR`, `LMHN`},
	V2IntegrityRequirement:       {`IR`, `LMHN`},
	V2AvailabilityRequirement:    {`AR`, `LMHN`},
}

// String implements [fmt.Stringer].
func (m V2Metric) String() string { return v2Info[m].name }

func (m V2Metric) validValues() string { return v2Info[m].valid }

// ExpectedValues is the human-readable value list used in errors.
func (m V2Metric) expectedValues() string {
	vals := make([]string, 0, len(m.validValues()))
	for _, b := range []byte(m.validValues()) {
		vals = append(vals, v2Unparse(m, b))
	}
	return strings.Join(vals, ",")
}

// Parse packs a spec abbreviation into a single byte.
//
// Multi-character values are packed into distinguishing bytes; v2Unparse is
// the inverse.
func (m V2Metric) parse(v string) byte {
	if v == "" {
		return 0
	}
	switch m {
	case V2Exploitability:
		switch v {
		case "POC":
			return 'P'
		case "ND":
			return 'N'
		}
	case V2RemediationLevel:
		switch v {
		case "OF":
			return 'O'
		case "TF":
			return 'T'
		case "ND":
			return 'N'
		}
	case V2ReportConfidence:
		switch v {
		case "UC":
			return 'U'
		case "UR":
			return 'u'
		case "ND":
			return 'N'
		}
	case V2CollateralDamagePotential:
		switch v {
		case "LM":
			return 'l'
		case "MH":
			return 'M'
		case "ND":
			return 'X'
		}
	case V2TargetDistribution:
		if v == "ND" {
			return 'X'
		}
	case V2ConfidentialityRequirement, V2IntegrityRequirement, V2AvailabilityRequirement:
		if v == "ND" {
			return 'N'
		}
	}
	if len(v) != 1 {
		return 0
	}
	return v[0]
}

func v2Unparse(m V2Metric, c byte) string {
	switch m {
	case V2Exploitability:
		switch c {
		case 'P':
			return "POC"
		case 'N':
			return "ND"
		}
	case V2RemediationLevel:
		switch c {
		case 'O':
			return "OF"
		case 'T':
			return "TF"
		case 'N':
			return "ND"
		}
	case V2ReportConfidence:
		switch c {
		case 'U':
			return "UC"
		case 'u':
			return "UR"
		case 'N':
			return "ND"
		}
	case V2CollateralDamagePotential:
		switch c {
		case 'M':
			return "MH"
		case 'l':
			return "LM"
		case 'X':
			return "ND"
		}
	case V2TargetDistribution:
		if c == 'X' {
			return "ND"
		}
	case V2ConfidentialityRequirement, V2IntegrityRequirement, V2AvailabilityRequirement:
		if c == 'N' {
			return "ND"
		}
	}
	return string(c)
}

// UnparseV2Value unpacks the Value v into the specification's abbreviation.
//
// Invalid values are returned as-is.
func UnparseV2Value(m V2Metric, v Value) string {
	return v2Unparse(m, byte(v))
}

var v2Lookup = mkLookup[V2Metric](numV2Metrics)

// MkLookup builds the name → metric map for a version's metric type.
func mkLookup[M interface {
	~int
	fmt.Stringer
}](n int) map[string]M {
	l := make(map[string]M, n)
	for i := 0; i < n; i++ {
		m := M(i)
		l[m.String()] = m
	}
	return l
}
