package cvss

import (
	"math"
	"strings"
)

// Nomenclature reports the vector's nomenclature: one of "CVSS-B",
// "CVSS-BE", "CVSS-BT", or "CVSS-BTE".
func (v *V4) Nomenclature() string {
	t := v.mv[V4ExploitMaturity] != 0 && v.mv[V4ExploitMaturity] != 'X'
	var e bool
	for _, b := range v.mv[V4ConfidentialityRequirement : V4ModifiedSubsequentSystemAvailability+1] {
		if b != 0 && b != 'X' {
			e = true
			break
		}
	}
	switch {
	case t && e:
		return "CVSS-BTE"
	case t:
		return "CVSS-BT"
	case e:
		return "CVSS-BE"
	}
	return "CVSS-B"
}

// GetScore reports the value to use when scoring.
//
// Unlike v3, v4 scores a single effective vector: environmental "Modified"
// metrics override their base counterparts, an unset Exploit Maturity reads
// as Attacked, and unset requirements read as High.
func (v *V4) getScore(m V4Metric) byte {
	if m >= V4AttackVector && m <= V4SubsequentSystemAvailability {
		mod := m - V4AttackVector + V4ModifiedAttackVector
		if b := v.mv[mod]; b != 0 && b != 'X' {
			return b
		}
	}
	b := v.mv[m]
	if b != 0 && b != 'X' {
		return b
	}
	switch m {
	case V4ExploitMaturity:
		return 'A'
	case V4ConfidentialityRequirement, V4IntegrityRequirement, V4AvailabilityRequirement:
		return 'H'
	}
	return b
}

// MacroVector reports the vector's equivalence classes as six digits, EQ1
// through EQ6.
func (v *V4) macroVector() (eq [6]byte) {
	av, pr, ui := v.getScore(V4AttackVector), v.getScore(V4PrivilegesRequired), v.getScore(V4UserInteraction)
	switch {
	case av == 'N' && pr == 'N' && ui == 'N':
		eq[0] = '0'
	case (av == 'N' || pr == 'N' || ui == 'N') && av != 'P':
		eq[0] = '1'
	default:
		eq[0] = '2'
	}
	if v.getScore(V4AttackComplexity) == 'L' && v.getScore(V4AttackRequirements) == 'N' {
		eq[1] = '0'
	} else {
		eq[1] = '1'
	}
	vc, vi, va := v.getScore(V4VulnerableSystemConfidentiality), v.getScore(V4VulnerableSystemIntegrity), v.getScore(V4VulnerableSystemAvailability)
	switch {
	case vc == 'H' && vi == 'H':
		eq[2] = '0'
	case vc == 'H' || vi == 'H' || va == 'H':
		eq[2] = '1'
	default:
		eq[2] = '2'
	}
	sc, si, sa := v.getScore(V4SubsequentSystemConfidentiality), v.getScore(V4SubsequentSystemIntegrity), v.getScore(V4SubsequentSystemAvailability)
	switch {
	case si == 'S' || sa == 'S':
		eq[3] = '0'
	case sc == 'H' || si == 'H' || sa == 'H':
		eq[3] = '1'
	default:
		eq[3] = '2'
	}
	switch v.getScore(V4ExploitMaturity) {
	case 'A':
		eq[4] = '0'
	case 'P':
		eq[4] = '1'
	default:
		eq[4] = '2'
	}
	cr, ir, ar := v.getScore(V4ConfidentialityRequirement), v.getScore(V4IntegrityRequirement), v.getScore(V4AvailabilityRequirement)
	if (cr == 'H' && vc == 'H') || (ir == 'H' && vi == 'H') || (ar == 'H' && va == 'H') {
		eq[5] = '0'
	} else {
		eq[5] = '1'
	}
	return eq
}

// Score reports the score of the effective vector, per the macrovector
// lookup-and-interpolate scheme of the specification.
func (v *V4) Score() float64 {
	none := true
	for m := V4VulnerableSystemConfidentiality; m <= V4SubsequentSystemAvailability; m++ {
		if v.getScore(m) != 'N' {
			none = false
			break
		}
	}
	if none {
		return 0
	}
	eq := v.macroVector()
	value, ok := v4MacroScore[string(eq[:])]
	if !ok {
		// every macrovector with impact is tabulated
		panic("programmer error: unscored macrovector " + string(eq[:]))
	}
	dist := v.severityDistances(eq)
	lower := v4LowerScores(eq)
	depth := [5]float64{
		v4EQ1Depth[eq[0]-'0'],
		v4EQ2Depth[eq[1]-'0'],
		v4EQ3EQ6Depth[v4EQ3EQ6Index(eq)],
		v4EQ4Depth[eq[3]-'0'],
		1,
	}
	var sum float64
	var n int
	for i := range lower {
		if math.IsNaN(lower[i]) {
			continue
		}
		sum += (value - lower[i]) * (dist[i] / depth[i])
		n++
	}
	score := value
	if n > 0 {
		score -= sum / float64(n)
	}
	switch {
	case score < 0:
		score = 0
	case score > 10:
		score = 10
	}
	return math.Round(score*10) / 10
}

// Qualitative reports the severity band of the score.
func (v *V4) Qualitative() Qualitative {
	return QualitativeScore(v.Score())
}

func v4EQ3EQ6Index(eq [6]byte) int {
	return int(eq[5]-'0') + int(eq[2]-'0')*2
}

// V4LowerScores reports, per equivalence-class axis, the score of the next
// less severe macrovector. NaN marks an axis already at its least severe
// level.
func v4LowerScores(eq [6]byte) (out [5]float64) {
	nan := math.NaN()
	look := func(e [6]byte) float64 {
		if s, ok := v4MacroScore[string(e[:])]; ok {
			return s
		}
		return nan
	}
	e := eq
	e[0]++
	out[0] = look(e)
	e = eq
	e[1]++
	out[1] = look(e)
	// EQ3 and EQ6 are not independent; walk the joint lattice.
	switch {
	case eq[2] == '2': // EQ6 is pinned to 1 here
		out[2] = nan
	case eq[5] == '1':
		e = eq
		e[2]++
		out[2] = look(e)
	case eq[2] == '1': // eq6 == 0
		e = eq
		e[5]++
		out[2] = look(e)
	default: // eq3 == 0, eq6 == 0: two lower neighbors, take the max
		a, b := eq, eq
		a[2]++
		b[5]++
		out[2] = math.Max(look(a), look(b))
	}
	e = eq
	e[3]++
	out[3] = look(e)
	e = eq
	e[4]++
	out[4] = look(e)
	return out
}

// SeverityDistances reports, per equivalence-class axis, how far the
// effective vector sits from the most severe vector of its own
// macrovector.
//
// The candidate maxima are composed from the per-axis fragments; the first
// composition that dominates the effective vector on every metric wins.
func (v *V4) severityDistances(eq [6]byte) (dist [5]float64) {
	for _, f1 := range v4EQ1Max[eq[0]-'0'] {
		for _, f2 := range v4EQ2Max[eq[1]-'0'] {
			for _, f36 := range v4EQ3EQ6Max[v4EQ3EQ6Index(eq)] {
				for _, f4 := range v4EQ4Max[eq[3]-'0'] {
					max := f1 + f2 + f36 + f4 + v4EQ5Max[eq[4]-'0'][0]
					if d, ok := v.distancesTo(max); ok {
						return d
					}
				}
			}
		}
	}
	// at least one composition always dominates
	panic("programmer error: no dominating maximum for macrovector " + string(eq[:]))
}

func (v *V4) distancesTo(max string) (dist [5]float64, ok bool) {
	for _, pair := range strings.Split(max, "/") {
		if pair == "" {
			continue
		}
		key, val, _ := strings.Cut(pair, ":")
		m := v4Lookup[key]
		d := v4SeverityIndex(m, v.getScore(m)) - v4SeverityIndex(m, val[0])
		if d < 0 {
			return dist, false
		}
		switch m {
		case V4AttackVector, V4PrivilegesRequired, V4UserInteraction:
			dist[0] += float64(d)
		case V4AttackComplexity, V4AttackRequirements:
			dist[1] += float64(d)
		case V4VulnerableSystemConfidentiality, V4VulnerableSystemIntegrity, V4VulnerableSystemAvailability,
			V4ConfidentialityRequirement, V4IntegrityRequirement, V4AvailabilityRequirement:
			dist[2] += float64(d)
		case V4SubsequentSystemConfidentiality, V4SubsequentSystemIntegrity, V4SubsequentSystemAvailability:
			dist[3] += float64(d)
		}
		// EQ5 (E) always matches its fragment exactly; distance 0.
	}
	return dist, true
}

// V4SeverityIndex reports the position of a value in its metric's
// most-to-least severe ordering.
func v4SeverityIndex(m V4Metric, b byte) int {
	var order string
	switch m {
	case V4SubsequentSystemIntegrity, V4SubsequentSystemAvailability:
		// Safety outranks High once environmental metrics apply.
		order = `SHLN`
	case V4ConfidentialityRequirement, V4IntegrityRequirement, V4AvailabilityRequirement:
		order = `HML`
	default:
		order = v4Info[m].valid
	}
	return strings.IndexByte(order, b)
}
