package datastore

import (
	"github.com/google/uuid"

	"github.com/stackrook/vulnmirror"
)

// MaxPageSize is the hard cap on page sizes; requests beyond it are clamped,
// not rejected.
const MaxPageSize = 10

// Page is (page, size) pagination. Pages are 1-based.
type Page struct {
	Number int
	Size   int
}

// Clamp normalizes the page to valid bounds.
func (p Page) Clamp() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset reports the row offset of the page start.
func (p Page) Offset() int {
	p = p.Clamp()
	return (p.Number - 1) * p.Size
}

// CVEQuery filters QueryCVEs. Zero-valued fields do not filter.
type CVEQuery struct {
	// ID is an exact match.
	ID string
	// Year filters on the CVE year.
	Year int
	// Translated filters on the translated flag when non-nil.
	Translated *bool
	// Severity filters on the severity band when non-nil.
	Severity *vulnmirror.Severity
	// Vendor and Product filter through the edge table. Either may be set
	// alone.
	Vendor  string
	Product string
	// Ascending flips the default most-recent-ID-first order.
	Ascending bool
	Page      Page
}

// CWEQuery filters QueryCWEs.
type CWEQuery struct {
	// Keyword matches against name and localized name.
	Keyword string
	Page    Page
}

// ProductQuery filters QueryProducts.
type ProductQuery struct {
	VendorID uuid.UUID
	Name     string
	Page     Page
}

// KBQuery filters QueryKBs.
type KBQuery struct {
	// CVE filters entries linked to the named CVE.
	CVE string
	// Name is an exact match.
	Name   string
	Source string
	// Verified filters on the verified flag when non-nil.
	Verified *bool
	Page     Page
}
