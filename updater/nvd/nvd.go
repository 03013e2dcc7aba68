// Package nvd fetches vulnerability records from the National Vulnerability
// Database: the 2.0 REST API for incremental sync and the legacy 1.1 gzip
// archives for one-shot local ingestion.
//
// Both paths normalize into the same [vulnmirror.CVE] shape: at most one
// CVSS result per version, severity derived from the highest-priority one,
// and the configuration forest flattened.
package nvd

import (
	"strings"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/toolkit/types/cvss"
)

// LangValue is the {lang, value} pair both feed generations use.
type langValue struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

func toDescriptions(in []langValue) []vulnmirror.Description {
	out := make([]vulnmirror.Description, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, lv := range in {
		if _, ok := seen[lv.Lang]; ok {
			continue
		}
		seen[lv.Lang] = struct{}{}
		out = append(out, vulnmirror.Description{Lang: lv.Lang, Value: lv.Value})
	}
	return out
}

func toWeaknesses(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, w := range in {
		if !strings.HasPrefix(w, "CWE-") {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// SeverityFor maps a base score onto the band table for its CVSS version.
// The v2 table has no Critical band.
func severityFor(version int, score float64) vulnmirror.Severity {
	if version == 2 {
		switch {
		case score == 0:
			return vulnmirror.SeverityNone
		case score < 4:
			return vulnmirror.SeverityLow
		case score < 7:
			return vulnmirror.SeverityMedium
		default:
			return vulnmirror.SeverityHigh
		}
	}
	return vulnmirror.Severity(cvss.QualitativeScore(score))
}

// WireMetric is the version-independent subset the normalizer consumes.
type wireMetric struct {
	vector         string
	baseScore      float64
	exploitability *float64
	impact         *float64
	source         string
	primary        bool
}

// Normalize turns one upstream CVSS result into the stored form.
//
// The upstream base score wins when supplied; the engine only fills what the
// feed omits. A vector that fails to parse with no upstream score is dropped.
func normalizeMetric(version int, m *wireMetric) *vulnmirror.CVSSMetric {
	if m == nil || m.vector == "" {
		return nil
	}
	out := vulnmirror.CVSSMetric{
		Vector:    m.vector,
		BaseScore: m.baseScore,
		Source:    m.source,
		Primary:   m.primary,
	}
	if m.exploitability != nil {
		out.ExploitabilityScore = *m.exploitability
	}
	if m.impact != nil {
		out.ImpactScore = *m.impact
	}

	switch version {
	case 2:
		// Legacy feeds emit bare and sometimes parenthesized v2 vectors.
		vec := strings.TrimSuffix(strings.TrimPrefix(m.vector, "("), ")")
		if !strings.HasPrefix(vec, "CVSS:") {
			vec = "CVSS:2.0/" + vec
		}
		out.Vector = vec
		v, err := cvss.ParseV2(vec)
		if err != nil {
			if out.BaseScore == 0 {
				return nil
			}
			break
		}
		if out.BaseScore == 0 {
			out.BaseScore = v.Score()
		}
		if m.exploitability == nil {
			out.ExploitabilityScore = v.Exploitability()
		}
		if m.impact == nil {
			out.ImpactScore = v.Impact()
		}
	case 3:
		v, err := cvss.ParseV3(m.vector)
		if err != nil {
			if out.BaseScore == 0 {
				return nil
			}
			break
		}
		if out.BaseScore == 0 {
			out.BaseScore = v.Score()
		}
		if m.exploitability == nil {
			out.ExploitabilityScore = v.Exploitability()
		}
		if m.impact == nil {
			out.ImpactScore = v.Impact()
		}
	case 4:
		v, err := cvss.ParseV4(m.vector)
		if err != nil {
			if out.BaseScore == 0 {
				return nil
			}
			break
		}
		if out.BaseScore == 0 {
			out.BaseScore = v.Score()
		}
	}
	out.Severity = severityFor(version, out.BaseScore)
	return &out
}

// Finish derives the record-level severity from the metric bundle.
func finish(rec *vulnmirror.CVE) {
	if best := rec.Metrics.Best(); best != nil {
		rec.Severity = best.Severity
	} else {
		rec.Severity = vulnmirror.SeverityNone
	}
}
