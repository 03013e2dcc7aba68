package vulnmirror

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CVE is one mirrored vulnerability record.
//
// The record mirrors the upstream NVD shape after normalization: metrics are
// reduced to at most one result per CVSS version, the configuration forest is
// flattened, and translations are merged into Descriptions keyed by language.
type CVE struct {
	// ID is the CVE identifier, e.g. "CVE-2023-0001". It never changes.
	ID string `json:"id"`
	// Year is the second hyphen-delimited token of ID.
	Year int `json:"year"`
	// Assigner is the CNA that issued the record.
	Assigner string `json:"assigner"`
	// Published and Modified are the upstream timestamps.
	Published time.Time `json:"published"`
	Modified  time.Time `json:"modified"`
	// Descriptions is the localized description set, unique per language.
	Descriptions []Description `json:"descriptions"`
	// Severity is derived from Metrics; see Severity.
	Severity Severity `json:"severity"`
	// Metrics holds at most one CVSS result per version.
	Metrics MetricsBundle `json:"metrics"`
	// Weaknesses is the set of CWE references, e.g. "CWE-79".
	Weaknesses []string `json:"weaknesses,omitempty"`
	// Configurations is the flattened match forest.
	Configurations []Node `json:"configurations,omitempty"`
	// References are the upstream external references.
	References []Reference `json:"references,omitempty"`
	// Translated reports whether a "zh" description has been attached.
	Translated bool `json:"translated"`
}

// Description is one localized description.
type Description struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// Reference is one upstream external reference.
type Reference struct {
	URL    string   `json:"url"`
	Source string   `json:"source,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// MetricsBundle carries the per-version CVSS results present on a record.
type MetricsBundle struct {
	V2  *CVSSMetric `json:"v2,omitempty"`
	V30 *CVSSMetric `json:"v30,omitempty"`
	V31 *CVSSMetric `json:"v31,omitempty"`
	V40 *CVSSMetric `json:"v40,omitempty"`
}

// Best returns the highest-priority CVSS result present: v3.1, then v3.0,
// then v2. A nil return means the record carries no usable CVSS data.
//
// Note that v4.0 is deliberately not considered for the severity derivation;
// it is carried for the query surface only.
func (b *MetricsBundle) Best() *CVSSMetric {
	switch {
	case b.V31 != nil:
		return b.V31
	case b.V30 != nil:
		return b.V30
	case b.V2 != nil:
		return b.V2
	}
	return nil
}

// CVSSMetric is one parsed-and-scored CVSS result.
type CVSSMetric struct {
	// Vector is the canonical vector string.
	Vector string `json:"vector"`
	// BaseScore is the upstream base score when supplied, otherwise the
	// engine-computed one.
	BaseScore float64 `json:"base_score"`
	// Severity is the band for BaseScore under the version's band table.
	Severity Severity `json:"severity"`
	// ExploitabilityScore and ImpactScore are the sub-scores.
	ExploitabilityScore float64 `json:"exploitability_score"`
	ImpactScore         float64 `json:"impact_score"`
	// Source identifies the scoring organization.
	Source string `json:"source,omitempty"`
	// Primary reports whether upstream designated this the primary result.
	Primary bool `json:"primary"`
}

// ParseCVEID validates a CVE identifier and reports its year.
func ParseCVEID(id string) (year int, err error) {
	// CVE-YYYY-N{4,}
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 || parts[0] != "CVE" {
		return 0, fmt.Errorf("vulnmirror: malformed CVE id %q", id)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return 0, fmt.Errorf("vulnmirror: malformed CVE id %q: bad year", id)
	}
	if len(parts[2]) < 4 {
		return 0, fmt.Errorf("vulnmirror: malformed CVE id %q: bad sequence", id)
	}
	for _, r := range parts[2] {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("vulnmirror: malformed CVE id %q: bad sequence", id)
		}
	}
	return year, nil
}
