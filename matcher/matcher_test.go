package matcher

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stackrook/vulnmirror"
)

var cortexMatch = vulnmirror.CPEMatch{
	Vulnerable:            true,
	Criteria:              `cpe:2.3:a:paloaltonetworks:cortex_xdr_agent:*:*:*:*:critical_environment:*:*:*`,
	VersionStartIncluding: "7.5",
	VersionEndExcluding:   "7.5.101",
}

func TestRangeCriterion(t *testing.T) {
	t.Parallel()
	tt := []struct {
		Version string
		Want    bool
	}{
		{"7.5.50", true},
		{"7.5", true},
		{"7.5.100", true},
		{"7.5.101", false},
		{"7.4.9", false},
		{"8.0", false},
	}
	for _, tc := range tt {
		got := MatchCriterion(&cortexMatch, Asset{Product: "cortex_xdr_agent", Version: tc.Version})
		if got != tc.Want {
			t.Errorf("version %q: got: %v, want: %v", tc.Version, got, tc.Want)
		}
	}
	if MatchCriterion(&cortexMatch, Asset{Product: "traps", Version: "7.5.50"}) {
		t.Error("matched the wrong product")
	}
}

func TestExactVersionCriterion(t *testing.T) {
	t.Parallel()
	m := vulnmirror.CPEMatch{
		Vulnerable: true,
		Criteria:   `cpe:2.3:a:apache:log4j:2.14.1:*:*:*:*:*:*:*`,
	}
	if !MatchCriterion(&m, Asset{Product: "log4j", Version: "2.14.1"}) {
		t.Error("exact version: got: false, want: true")
	}
	if MatchCriterion(&m, Asset{Product: "log4j", Version: "2.15.0"}) {
		t.Error("exact version: got: true, want: false")
	}

	na := vulnmirror.CPEMatch{
		Vulnerable: true,
		Criteria:   `cpe:2.3:o:microsoft:windows:-:*:*:*:*:*:*:*`,
	}
	if MatchCriterion(&na, Asset{Product: "windows", Version: "10"}) {
		t.Error("NA version: got: true, want: false")
	}
}

func TestTargetSWNormalization(t *testing.T) {
	t.Parallel()
	m := vulnmirror.CPEMatch{
		Vulnerable: true,
		Criteria:   `cpe:2.3:a:supsystic:wordpress-data_tables_generator:*:*:*:*:*:wordpress:*:*`,
		VersionEndExcluding: "1.10.37",
	}
	if !MatchCriterion(&m, Asset{Product: "data_tables_generator", Version: "1.10.0"}) {
		t.Error("normalized product: got: false, want: true")
	}
}

func TestOperators(t *testing.T) {
	t.Parallel()
	m1 := vulnmirror.CPEMatch{Vulnerable: true, Criteria: `cpe:2.3:a:v:p1:*:*:*:*:*:*:*:*`}
	m2 := vulnmirror.CPEMatch{Vulnerable: true, Criteria: `cpe:2.3:a:v:p2:*:*:*:*:*:*:*:*`}
	asset := []Asset{{Product: "p1", Version: "1.0"}}

	or := []vulnmirror.Node{{Operator: vulnmirror.OpOR, CPEMatch: []vulnmirror.CPEMatch{m1, m2}}}
	if !Match(or, asset) {
		t.Error("OR: got: false, want: true")
	}
	and := []vulnmirror.Node{{Operator: vulnmirror.OpAND, CPEMatch: []vulnmirror.CPEMatch{m1, m2}}}
	if Match(and, asset) {
		t.Error("AND: got: true, want: false")
	}
	both := []Asset{{Product: "p1", Version: "1.0"}, {Product: "p2", Version: "1.0"}}
	if !Match(and, both) {
		t.Error("AND with both assets: got: false, want: true")
	}
	neg := []vulnmirror.Node{{Operator: vulnmirror.OpOR, Negate: true, CPEMatch: []vulnmirror.CPEMatch{m1}}}
	if Match(neg, asset) {
		t.Error("negate: got: true, want: false")
	}
}

// A top-level AND of a vulnerable product branch and a platform-scope
// branch: the platform contributes scope, not vulnerability.
func TestPlatformScopedConfiguration(t *testing.T) {
	t.Parallel()
	forest := []vulnmirror.Node{{
		Operator: vulnmirror.OpAND,
		Children: []vulnmirror.Node{
			{Operator: vulnmirror.OpOR, CPEMatch: []vulnmirror.CPEMatch{cortexMatch}},
			{Operator: vulnmirror.OpOR, CPEMatch: []vulnmirror.CPEMatch{{
				Vulnerable: false,
				Criteria:   `cpe:2.3:o:microsoft:windows:*:*:*:*:*:*:*:*`,
			}}},
		},
	}}
	vulnerable := []Asset{
		{Product: "cortex_xdr_agent", Version: "7.5.50"},
		{Product: "windows", Version: "10"},
	}
	if !Match(forest, vulnerable) {
		t.Error("with platform present: got: false, want: true")
	}
	if Match(forest, vulnerable[:1]) {
		t.Error("without platform: got: true, want: false")
	}

	want := []Triple{{Part: "a", Vendor: "paloaltonetworks", Product: "cortex_xdr_agent"}}
	got := VendorProductSet(forest)
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
}

func TestVendorProductSetDedupe(t *testing.T) {
	t.Parallel()
	forest := []vulnmirror.Node{
		{CPEMatch: []vulnmirror.CPEMatch{
			{Vulnerable: true, Criteria: `cpe:2.3:a:v:p:1.0:*:*:*:*:*:*:*`},
			{Vulnerable: true, Criteria: `cpe:2.3:a:v:p:2.0:*:*:*:*:*:*:*`},
			{Vulnerable: false, Criteria: `cpe:2.3:a:scope:only:*:*:*:*:*:*:*:*`},
			{Vulnerable: false, Criteria: `cpe:2.3:a:ranged:pkg:*:*:*:*:*:*:*:*`, VersionEndIncluding: "3"},
		}},
	}
	want := []Triple{
		{Part: "a", Vendor: "v", Product: "p"},
		{Part: "a", Vendor: "ranged", Product: "pkg"},
	}
	got := VendorProductSet(forest)
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()
	tt := []struct {
		A, B string
		Want int
	}{
		{"7.5.10", "7.5.101", -1},
		{"7.5", "7.5.0", 0},
		{"1.0.0", "1.0.0", 0},
		{"2.0", "1.9.9", 1},
		// not semver: generalized comparison takes over
		{"7.4.0.1570", "7.4.0.900", 1},
		{"1.0a", "1.0b", -1},
	}
	for _, tc := range tt {
		if got := Compare(tc.A, tc.B); got != tc.Want {
			t.Errorf("Compare(%q, %q): got: %d, want: %d", tc.A, tc.B, got, tc.Want)
		}
	}
}
