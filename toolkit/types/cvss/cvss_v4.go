package cvss

import (
	"encoding"
	"fmt"
	"strings"
)

// V4 is a CVSS version 4.0 vector.
type V4 struct {
	mv [numV4Metrics]byte
}

var (
	_ encoding.TextMarshaler   = (*V4)(nil)
	_ encoding.TextUnmarshaler = (*V4)(nil)
	_ fmt.Stringer             = (*V4)(nil)
)

// ParseV4 parses the provided string as a v4 vector.
func ParseV4(s string) (v V4, err error) {
	return v, v.UnmarshalText([]byte(s))
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (v *V4) UnmarshalText(text []byte) error {
	var mv [numV4Metrics]byte
	err := parseVector(string(text), `CVSS:4.0/`, func(key, val string) error {
		m, ok := v4Lookup[key]
		if !ok {
			return fmt.Errorf("%w: unknown metric %q", ErrMalformedVector, key)
		}
		if mv[m] != 0 {
			return fmt.Errorf("%w: duplicate metric %q", ErrMalformedVector, key)
		}
		b := m.parse(val)
		if strings.IndexByte(m.validValues(), b) == -1 || v4Unparse(m, b) != val {
			return &MetricError{Metric: key, Value: val, Expected: m.expectedValues()}
		}
		mv[m] = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("cvss v4: %w", err)
	}
	for m := V4AttackVector; m <= V4SubsequentSystemAvailability; m++ {
		if mv[m] == 0 {
			return fmt.Errorf("cvss v4: %w", &MetricError{Metric: m.String(), Expected: m.expectedValues()})
		}
	}
	v.mv = mv
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
//
// The ordering emitted is as specified in revision 1.1 of the specification.
func (v *V4) MarshalText() (text []byte, err error) {
	return marshalVector(`CVSS:4.0`, v.mv[:],
		func(i int) string { return V4Metric(i).String() },
		func(i int, b byte) string { return v4Unparse(V4Metric(i), b) },
	), nil
}

// String implements [fmt.Stringer].
func (v *V4) String() string {
	t, _ := v.MarshalText()
	return string(t)
}

// Get reports the Value for the supplied Metric.
//
// Use [UnparseV4Value] to recover the spec-defined abbreviation.
func (v *V4) Get(m V4Metric) Value {
	b := v.mv[int(m)]
	if b == 0 {
		return ValueUnset
	}
	return Value(b)
}

// Environmental reports if the vector has "Environmental" metrics.
func (v *V4) Environmental() (ok bool) {
	for _, b := range v.mv[V4ConfidentialityRequirement : V4ModifiedSubsequentSystemAvailability+1] {
		if b != 0 {
			ok = true
			break
		}
	}
	return ok
}

// V4Metric is a metric in a v4 vector.
type V4Metric int

// These are the metrics defined in the specification, in canonical order.
const (
	V4AttackVector V4Metric = iota
	V4AttackComplexity
	V4AttackRequirements
	V4PrivilegesRequired
	V4UserInteraction
	V4VulnerableSystemConfidentiality
	V4VulnerableSystemIntegrity
	V4VulnerableSystemAvailability
	V4SubsequentSystemConfidentiality
	V4SubsequentSystemIntegrity
	V4SubsequentSystemAvailability
	V4ExploitMaturity
	V4ConfidentialityRequirement
	V4IntegrityRequirement
	V4AvailabilityRequirement
	V4ModifiedAttackVector
	V4ModifiedAttackComplexity
	V4ModifiedAttackRequirements
	V4ModifiedPrivilegesRequired
	V4ModifiedUserInteraction
	V4ModifiedVulnerableSystemConfidentiality
	V4ModifiedVulnerableSystemIntegrity
	V4ModifiedVulnerableSystemAvailability
	V4ModifiedSubsequentSystemConfidentiality
	V4ModifiedSubsequentSystemIntegrity
	V4ModifiedSubsequentSystemAvailability
	V4Safety
	V4Automatable
	V4Recovery
	V4ValueDensity
	V4ResponseEffort
	V4ProviderUrgency

	numV4Metrics int = iota
)

var v4Info = [numV4Metrics]struct {
	name  string
	valid string // packed bytes; severity order, worst first
}{
	V4AttackVector:                            {`AV`, `NALP`},
	V4AttackComplexity:                        {`AC`, `LH`},
	V4AttackRequirements:                      {`AT`, `NP`},
	V4PrivilegesRequired:                      {`PR`, `NLH`},
	V4UserInteraction:                         {`UI`, `NPA`},
	V4VulnerableSystemConfidentiality:         {`VC`, `HLN`},
	V4VulnerableSystemIntegrity:               {`VI`, `HLN`},
	V4VulnerableSystemAvailability:            {`VA`, `HLN`},
	V4SubsequentSystemConfidentiality:         {`SC`, `HLN`},
	V4SubsequentSystemIntegrity:               {`SI`, `HLN`},
	V4SubsequentSystemAvailability:            {`SA`, `HLN`},
	V4ExploitMaturity:                         {`E`, `XAPU`},
	V4ConfidentialityRequirement:              {`CR`, `XHML`},
	V4IntegrityRequirement:                    {`IR`, `XHML`},
	V4AvailabilityRequirement:                 {`AR`, `XHML`},
	V4ModifiedAttackVector:                    {`MAV`, `XNALP`},
	V4ModifiedAttackComplexity:                {`MAC`, `XLH`},
	V4ModifiedAttackRequirements:              {`MAT`, `XNP`},
	V4ModifiedPrivilegesRequired:              {`MPR`, `XNLH`},
	V4ModifiedUserInteraction:                 {`MUI`, `XNPA`},
	V4ModifiedVulnerableSystemConfidentiality: {`MVC`, `XHLN`},
	V4ModifiedVulnerableSystemIntegrity:       {`MVI`, `XHLN`},
	V4ModifiedVulnerableSystemAvailability:    {`MVA`, `XHLN`},
	V4ModifiedSubsequentSystemConfidentiality: {`MSC`, `XHLN`},
	V4ModifiedSubsequentSystemIntegrity:       {`MSI`, `XSHLN`},
	V4ModifiedSubsequentSystemAvailability:    {`MSA`, `XSHLN`},
	V4Safety:                                  {`S`, `XNP`},
	V4Automatable:                             {`AU`, `XNY`},
	V4Recovery:                                {`R`, `XAUI`},
	V4ValueDensity:                            {`V`, `XDC`},
	V4ResponseEffort:                          {`RE`, `XLMH`},
	V4ProviderUrgency:                         {`U`, `XCGAR`},
}

// String implements [fmt.Stringer].
func (m V4Metric) String() string { return v4Info[m].name }

func (m V4Metric) validValues() string { return v4Info[m].valid }

func (m V4Metric) expectedValues() string {
	vals := make([]string, 0, len(m.validValues()))
	for _, b := range []byte(m.validValues()) {
		vals = append(vals, v4Unparse(m, b))
	}
	return strings.Join(vals, ",")
}

// Parse packs a spec abbreviation into a single byte.
//
// Only "Provider Urgency" has multi-character values; its values are packed
// into their distinguishing first byte.
func (m V4Metric) parse(v string) byte {
	if m == V4ProviderUrgency {
		switch v {
		case "Clear", "Green", "Amber", "Red":
			return v[0]
		case "X":
			return 'X'
		}
		return 0
	}
	if len(v) != 1 {
		return 0
	}
	return v[0]
}

func v4Unparse(m V4Metric, c byte) string {
	if m == V4ProviderUrgency {
		switch c {
		case 'C':
			return "Clear"
		case 'G':
			return "Green"
		case 'A':
			return "Amber"
		case 'R':
			return "Red"
		}
	}
	return string(c)
}

// UnparseV4Value unpacks the Value v into the specification's abbreviation.
//
// Invalid values are returned as-is.
func UnparseV4Value(m V4Metric, v Value) string {
	return v4Unparse(m, byte(v))
}

var v4Lookup = mkLookup[V4Metric](numV4Metrics)
