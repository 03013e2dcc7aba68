package cvss

import (
	"math"
	"strings"
)

// Weights are indexed in parallel with the validValues strings.
var v2Weights = [numV2Metrics][]float64{
	V2AccessVector:     {0.395, 0.646, 1.0},  // L, A, N
	V2AccessComplexity: {0.35, 0.61, 0.71},   // H, M, L
	V2Authentication:   {0.45, 0.56, 0.704},  // M, S, N
	V2Confidentiality:  {0, 0.275, 0.660},    // N, P, C
	V2Integrity:        {0, 0.275, 0.660},    // N, P, C
	V2Availability:     {0, 0.275, 0.660},    // N, P, C
}

func (v *V2) weight(m V2Metric) float64 {
	i := strings.IndexByte(m.validValues(), v.mv[int(m)])
	if i == -1 {
		panic("programmer error: invalid vector constructed")
	}
	return v2Weights[m][i]
}

// Exploitability reports the exploitability sub-score, rounded to one
// decimal the way the NVD reports it.
func (v *V2) Exploitability() float64 {
	e := 20 * v.weight(V2AccessVector) * v.weight(V2AccessComplexity) * v.weight(V2Authentication)
	return math.Round(e*10) / 10
}

// Impact reports the impact sub-score, rounded to one decimal the way the
// NVD reports it.
func (v *V2) Impact() float64 {
	return math.Round(v.impact()*10) / 10
}

func (v *V2) impact() float64 {
	c, i, a := v.weight(V2Confidentiality), v.weight(V2Integrity), v.weight(V2Availability)
	return 10.41 * (1 - (1-c)*(1-i)*(1-a))
}

// Score reports the base score.
func (v *V2) Score() float64 {
	impact := v.impact()
	fi := 1.176
	if impact == 0 {
		fi = 0
	}
	exploitability := 20 * v.weight(V2AccessVector) * v.weight(V2AccessComplexity) * v.weight(V2Authentication)
	return roundUp((0.6*impact + 0.4*exploitability - 1.5) * fi)
}

// Qualitative reports the severity band of the base score.
//
// v2 has no Critical band: None is [0.0], Low is (0.0, 4.0), Medium is
// [4.0, 7.0) and High is [7.0, 10.0].
func (v *V2) Qualitative() (q Qualitative) {
	s := v.Score()
	switch {
	case s == 0:
		q = None
	case s < 4:
		q = Low
	case s < 7:
		q = Medium
	default:
		q = High
	}
	return q
}
