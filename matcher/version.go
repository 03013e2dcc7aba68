package matcher

import (
	"github.com/Masterminds/semver"
	rpmver "github.com/knqyf263/go-rpm-version"
)

// Compare orders two version strings.
//
// Both sides are tried as semver first; failing that, the generalized
// rpm-style comparison takes over, which totally orders arbitrary strings
// (notably 7.5.10 < 7.5.101, where a lexical compare would invert them).
func Compare(a, b string) int {
	av, aerr := semver.NewVersion(a)
	bv, berr := semver.NewVersion(b)
	if aerr == nil && berr == nil {
		return av.Compare(bv)
	}
	return rpmver.NewVersion(a).Compare(rpmver.NewVersion(b))
}
