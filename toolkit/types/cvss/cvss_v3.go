package cvss

import (
	"encoding"
	"fmt"
	"strings"
)

// V3 is a CVSS version 3.0 or 3.1 vector.
type V3 struct {
	mv [numV3Metrics]byte
	// Minor version: 0 or 1.
	minor int8
}

var (
	_ encoding.TextMarshaler   = (*V3)(nil)
	_ encoding.TextUnmarshaler = (*V3)(nil)
	_ fmt.Stringer             = (*V3)(nil)
)

// ParseV3 parses the provided string as a v3.0 or v3.1 vector.
func ParseV3(s string) (v V3, err error) {
	return v, v.UnmarshalText([]byte(s))
}

// Minor reports the minor version of the vector: 0 or 1.
func (v *V3) Minor() int { return int(v.minor) }

// UnmarshalText implements [encoding.TextUnmarshaler].
func (v *V3) UnmarshalText(text []byte) error {
	s := string(text)
	var minor int8
	var prefix string
	switch {
	case strings.HasPrefix(s, `CVSS:3.0/`):
		minor, prefix = 0, `CVSS:3.0/`
	case strings.HasPrefix(s, `CVSS:3.1/`):
		minor, prefix = 1, `CVSS:3.1/`
	case !strings.HasPrefix(s, `CVSS:`):
		return fmt.Errorf("cvss v3: %w", ErrPrefix)
	default:
		return fmt.Errorf("cvss v3: %w", ErrVersion)
	}
	var mv [numV3Metrics]byte
	err := parseVector(s, prefix, func(key, val string) error {
		m, ok := v3Lookup[key]
		if !ok {
			return fmt.Errorf("%w: unknown metric %q", ErrMalformedVector, key)
		}
		if mv[m] != 0 {
			return fmt.Errorf("%w: duplicate metric %q", ErrMalformedVector, key)
		}
		if len(val) != 1 || strings.IndexByte(m.validValues(), val[0]) == -1 {
			return &MetricError{Metric: key, Value: val, Expected: m.expectedValues()}
		}
		mv[m] = val[0]
		return nil
	})
	if err != nil {
		return fmt.Errorf("cvss v3: %w", err)
	}
	for m := V3AttackVector; m <= V3Availability; m++ {
		if mv[m] == 0 {
			return fmt.Errorf("cvss v3: %w", &MetricError{Metric: m.String(), Expected: m.expectedValues()})
		}
	}
	v.mv, v.minor = mv, minor
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (v *V3) MarshalText() (text []byte, err error) {
	prefix := `CVSS:3.0`
	if v.minor == 1 {
		prefix = `CVSS:3.1`
	}
	return marshalVector(prefix, v.mv[:],
		func(i int) string { return V3Metric(i).String() },
		func(_ int, b byte) string { return string(b) },
	), nil
}

// String implements [fmt.Stringer].
func (v *V3) String() string {
	t, _ := v.MarshalText()
	return string(t)
}

// Get reports the Value for the supplied Metric.
func (v *V3) Get(m V3Metric) Value {
	b := v.mv[int(m)]
	if b == 0 {
		return ValueUnset
	}
	return Value(b)
}

// Temporal reports if the vector has "Temporal" metrics.
func (v *V3) Temporal() (ok bool) {
	for _, b := range v.mv[V3ExploitMaturity : V3ReportConfidence+1] {
		if b != 0 {
			ok = true
			break
		}
	}
	return ok
}

// Environmental reports if the vector has "Environmental" metrics.
func (v *V3) Environmental() (ok bool) {
	for _, b := range v.mv[V3ConfidentialityRequirement:] {
		if b != 0 {
			ok = true
			break
		}
	}
	return ok
}

// V3Metric is a metric in a v3 vector.
type V3Metric int

// These are the metrics defined in the specification, in canonical order.
const (
	V3AttackVector V3Metric = iota
	V3AttackComplexity
	V3PrivilegesRequired
	V3UserInteraction
	V3Scope
	V3Confidentiality
	V3Integrity
	V3Availability
	V3ExploitMaturity
	V3RemediationLevel
	V3ReportConfidence
	V3ConfidentialityRequirement
	V3IntegrityRequirement
	V3AvailabilityRequirement
	V3ModifiedAttackVector
	V3ModifiedAttackComplexity
	V3ModifiedPrivilegesRequired
	V3ModifiedUserInteraction
	V3ModifiedScope
	V3ModifiedConfidentiality
	V3ModifiedIntegrity
	V3ModifiedAvailability

	numV3Metrics int = iota
)

var v3Info = [numV3Metrics]struct {
	name  string
	valid string
}{
	V3AttackVector:               {`AV`, `NALP`},
	V3AttackComplexity:           {`AC`, `LH`},
	V3PrivilegesRequired:         {`PR`, `NLH`},
	V3UserInteraction:            {`UI`, `NR`},
	V3Scope:                      {`S`, `UC`},
	V3Confidentiality:            {`C`, `HLN`},
	V3Integrity:                  {`I`, `HLN`},
	V3Availability:               {`A`, `HLN`},
	V3ExploitMaturity:            {`E`, `XHFPU`},
	V3RemediationLevel:           {`RL`, `XUWTO`},
	V3ReportConfidence:           {`RC`, `XCRU`},
	V3ConfidentialityRequirement: {`CR`, `XHML`},
	V3IntegrityRequirement:       {`IR`, `XHML`},
	V3AvailabilityRequirement:    {`AR`, `XHML`},
	V3ModifiedAttackVector:       {`MAV`, `XNALP`},
	V3ModifiedAttackComplexity:   {`MAC`, `XLH`},
	V3ModifiedPrivilegesRequired: {`MPR`, `XNLH`},
	V3ModifiedUserInteraction:    {`MUI`, `XNR`},
	V3ModifiedScope:              {`MS`, `XUC`},
	V3ModifiedConfidentiality:    {`MC`, `XHLN`},
	V3ModifiedIntegrity:          {`MI`, `XHLN`},
	V3ModifiedAvailability:       {`MA`, `XHLN`},
}

// String implements [fmt.Stringer].
func (m V3Metric) String() string { return v3Info[m].name }

func (m V3Metric) validValues() string { return v3Info[m].valid }

func (m V3Metric) expectedValues() string {
	return strings.Join(strings.Split(m.validValues(), ""), ",")
}

var v3Lookup = mkLookup[V3Metric](numV3Metrics)
