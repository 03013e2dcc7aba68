package cvss

import (
	"math"
	"strings"
)

// Weights are indexed in parallel with the validValues strings.
var v3Weights = [...][]float64{
	V3AttackVector:       {0.85, 0.62, 0.55, 0.2}, // N, A, L, P
	V3AttackComplexity:   {0.77, 0.44},            // L, H
	V3PrivilegesRequired: {0.85, 0.62, 0.27},      // N, L, H (Unchanged scope)
	V3UserInteraction:    {0.85, 0.62},            // N, R
	V3Confidentiality:    {0.56, 0.22, 0},         // H, L, N
	V3Integrity:          {0.56, 0.22, 0},         // H, L, N
	V3Availability:       {0.56, 0.22, 0},         // H, L, N
}

// PR takes different weights when the scope is Changed.
var v3PRChanged = []float64{0.85, 0.68, 0.50} // N, L, H

func (v *V3) weight(m V3Metric) float64 {
	i := strings.IndexByte(m.validValues(), v.mv[int(m)])
	if i == -1 {
		panic("programmer error: invalid vector constructed")
	}
	if m == V3PrivilegesRequired && v.mv[V3Scope] == 'C' {
		return v3PRChanged[i]
	}
	return v3Weights[m][i]
}

func (v *V3) round(f float64) float64 {
	if v.minor == 0 {
		return math.Ceil(f*10) / 10
	}
	return roundUp(f)
}

// RoundUp is the v3.1 "smallest tenth >= x" function, computed with integer
// arithmetic to dodge floating-point representation artifacts.
func roundUp(f float64) float64 {
	i := int(f * 100_000)
	if (i % 10_000) == 0 {
		return float64(i) / 100_000
	}
	return float64((i/10_000)+1) / 10
}

// Exploitability reports the exploitability sub-score.
func (v *V3) Exploitability() float64 {
	return v.round(v.exploitability())
}

func (v *V3) exploitability() float64 {
	return 8.22 * v.weight(V3AttackVector) * v.weight(V3AttackComplexity) *
		v.weight(V3PrivilegesRequired) * v.weight(V3UserInteraction)
}

// Impact reports the impact sub-score.
func (v *V3) Impact() float64 {
	i := v.impact()
	if i < 0 {
		return 0
	}
	return v.round(i)
}

func (v *V3) impact() float64 {
	iss := 1 - ((1 - v.weight(V3Confidentiality)) * (1 - v.weight(V3Integrity)) * (1 - v.weight(V3Availability)))
	if v.mv[V3Scope] == 'C' {
		return 7.52*(iss-0.029) - 3.25*math.Pow(iss-0.02, 15)
	}
	return 6.42 * iss
}

// Score reports the base score.
//
// Temporal and environmental metrics, when present, are not considered; the
// mirror does not ingest them.
func (v *V3) Score() float64 {
	impact := v.impact()
	if impact <= 0 {
		return 0
	}
	sum := impact + v.exploitability()
	if v.mv[V3Scope] == 'C' {
		return v.round(math.Min(1.08*sum, 10))
	}
	return v.round(math.Min(sum, 10))
}

// Qualitative reports the severity band of the base score.
func (v *V3) Qualitative() Qualitative {
	return QualitativeScore(v.Score())
}
