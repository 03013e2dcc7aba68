package vulnmirror

import (
	"bytes"
	"database/sql/driver"
	"fmt"
)

// Operator is the logical connective of a configuration node.
type Operator uint

const (
	// OpOR is the zero value; nodes with no explicit operator are ORs.
	OpOR  Operator = iota // OR
	OpAND                 // AND
)

//go:generate go run golang.org/x/tools/cmd/stringer@latest -type=Operator -linecomment

func (o Operator) MarshalText() (text []byte, err error) {
	return []byte(o.String()), nil
}

func (o *Operator) UnmarshalText(text []byte) error {
	switch {
	case len(text) == 0:
		*o = OpOR
	case bytes.Equal(text, []byte("OR")):
		*o = OpOR
	case bytes.Equal(text, []byte("AND")):
		*o = OpAND
	default:
		return fmt.Errorf("unknown operator %q", string(text))
	}
	return nil
}

func (o Operator) Value() (driver.Value, error) {
	return o.String(), nil
}

// Node is one node of a CVE's configuration forest.
//
// A node is either a branch (Children non-empty) or a leaf (CPEMatch
// non-empty); upstream never mixes the two on one node. The upstream
// top-level "configurations" array is flattened into a forest of these.
type Node struct {
	Operator Operator   `json:"operator"`
	Negate   bool       `json:"negate,omitempty"`
	Children []Node     `json:"children,omitempty"`
	CPEMatch []CPEMatch `json:"cpe_match,omitempty"`
}

// CPEMatch is one match criterion.
type CPEMatch struct {
	// Vulnerable marks the criterion as contributing to vulnerability
	// rather than environment scoping.
	Vulnerable bool `json:"vulnerable"`
	// Criteria is the CPE 2.3 formatted-string name.
	Criteria string `json:"criteria"`
	// MatchCriteriaID is the upstream identity of this criterion.
	MatchCriteriaID string `json:"match_criteria_id,omitempty"`
	// Version range bounds; empty means absent.
	VersionStartIncluding string `json:"version_start_including,omitempty"`
	VersionStartExcluding string `json:"version_start_excluding,omitempty"`
	VersionEndIncluding   string `json:"version_end_including,omitempty"`
	VersionEndExcluding   string `json:"version_end_excluding,omitempty"`
}

// HasRange reports whether any version-range bound is present.
func (m *CPEMatch) HasRange() bool {
	return m.VersionStartIncluding != "" || m.VersionStartExcluding != "" ||
		m.VersionEndIncluding != "" || m.VersionEndExcluding != ""
}
