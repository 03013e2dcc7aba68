// Package matcher evaluates CVE configuration forests against an asset
// inventory.
//
// The package is pure: it never logs and does no I/O. Malformed match
// criteria evaluate to "no match" rather than erroring, mirroring how the
// upstream feeds treat them.
package matcher

import (
	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/toolkit/types/cpe"
)

// Asset is a (product, version) pair under evaluation.
type Asset struct {
	Product string
	Version string
}

// Match reports whether the configuration forest marks any of the provided
// assets as affected.
//
// The forest is an implicit OR of its roots.
func Match(forest []vulnmirror.Node, assets []Asset) bool {
	for i := range forest {
		if matchNode(&forest[i], assets) {
			return true
		}
	}
	return false
}

func matchNode(n *vulnmirror.Node, assets []Asset) bool {
	var ok bool
	switch {
	case len(n.CPEMatch) != 0:
		ok = combine(n.Operator, len(n.CPEMatch), func(i int) bool {
			return matchAny(&n.CPEMatch[i], assets)
		})
	default:
		ok = combine(n.Operator, len(n.Children), func(i int) bool {
			return matchNode(&n.Children[i], assets)
		})
	}
	if n.Negate {
		ok = !ok
	}
	return ok
}

func combine(op vulnmirror.Operator, n int, f func(int) bool) bool {
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		switch hit := f(i); op {
		case vulnmirror.OpAND:
			if !hit {
				return false
			}
		default: // OR
			if hit {
				return true
			}
		}
	}
	return op == vulnmirror.OpAND
}

func matchAny(m *vulnmirror.CPEMatch, assets []Asset) bool {
	for i := range assets {
		if MatchCriterion(m, assets[i]) {
			return true
		}
	}
	return false
}

// MatchCriterion reports whether a single match criterion holds for the
// asset.
func MatchCriterion(m *vulnmirror.CPEMatch, a Asset) bool {
	w, err := cpe.Unbind(m.Criteria)
	if err != nil {
		return false
	}
	if !matchProduct(&w, a.Product) {
		return false
	}
	if m.HasRange() {
		return matchRange(m, a.Version)
	}
	return matchVersion(&w, a.Version)
}

// MatchProduct checks the product attribute. A concrete criterion product is
// compared case-sensitively against the asset product and, when target_sw is
// concrete, against the "target_sw-product" normalized form used by
// ecosystem-scoped names.
func matchProduct(w *cpe.WFN, product string) bool {
	p := w.Attr[cpe.Product]
	switch p.Kind {
	case cpe.ValueAny:
		return true
	case cpe.ValueNA:
		return false
	}
	if p.V == product {
		return true
	}
	if tsw := w.Attr[cpe.TargetSW]; tsw.Kind == cpe.ValueSet {
		return p.V == tsw.V+"-"+product
	}
	return false
}

// MatchVersion compares the asset version against the criterion's version
// attribute, combined with the update attribute when concrete.
func matchVersion(w *cpe.WFN, version string) bool {
	v := w.Attr[cpe.Version]
	switch v.Kind {
	case cpe.ValueAny:
		return true
	case cpe.ValueNA:
		return false
	}
	want := v.V
	if u := w.Attr[cpe.Update]; u.Kind == cpe.ValueSet {
		want += "-" + u.V
	}
	return Compare(version, want) == 0
}

// MatchRange checks every present bound of the criterion's version range.
func matchRange(m *vulnmirror.CPEMatch, version string) bool {
	if b := m.VersionStartIncluding; b != "" && Compare(version, b) < 0 {
		return false
	}
	if b := m.VersionStartExcluding; b != "" && Compare(version, b) <= 0 {
		return false
	}
	if b := m.VersionEndIncluding; b != "" && Compare(version, b) > 0 {
		return false
	}
	if b := m.VersionEndExcluding; b != "" && Compare(version, b) >= 0 {
		return false
	}
	return true
}

// Triple is a distinct (part, vendor, product) extracted from a
// configuration forest.
type Triple struct {
	Part    string
	Vendor  string
	Product string
}

// VendorProductSet reports the distinct (part, vendor, product) triples
// appearing in any vulnerability-contributing criterion of the forest:
// criteria with vulnerable set, or carrying a version range. Pure
// environment criteria are scope only and contribute nothing.
//
// Order is first-appearance; criteria without a concrete vendor and product
// are skipped.
func VendorProductSet(forest []vulnmirror.Node) []Triple {
	var out []Triple
	seen := make(map[Triple]struct{})
	var walk func(*vulnmirror.Node)
	walk = func(n *vulnmirror.Node) {
		for i := range n.CPEMatch {
			m := &n.CPEMatch[i]
			if !m.Vulnerable && !m.HasRange() {
				continue
			}
			w, err := cpe.Unbind(m.Criteria)
			if err != nil {
				continue
			}
			vendor, product := w.Attr[cpe.Vendor], w.Attr[cpe.Product]
			if vendor.Kind != cpe.ValueSet || product.Kind != cpe.ValueSet {
				continue
			}
			t := Triple{Vendor: vendor.V, Product: product.V}
			if p := w.Attr[cpe.Part]; p.Kind == cpe.ValueSet {
				t.Part = p.V
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	for i := range forest {
		walk(&forest[i])
	}
	return out
}
