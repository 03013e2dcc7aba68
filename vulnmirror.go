// Package vulnmirror holds the shared data model for the vulnerability
// intelligence mirror.
//
// The types in this package are produced by the feed adapters in updater/,
// persisted by the datastore/ implementations, and served back out through
// the query surface in libmirror. They carry no behavior beyond validation
// and serialization; scoring and matching live in toolkit/types/cvss,
// toolkit/types/cpe and matcher.
package vulnmirror
