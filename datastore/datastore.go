// Package datastore holds the store interfaces and query types consumed by
// the ingestion pipeline and the query surface.
package datastore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stackrook/vulnmirror"
)

// ErrNotFound is reported when a lookup by identity finds nothing.
var ErrNotFound = errors.New("datastore: not found")

// Store aggregates every store interface the pipeline needs.
type Store interface {
	CVEStore
	CWEStore
	VendorStore
	ProductStore
	KBStore
	EdgeStore
}

// CVEStore persists CVE records.
type CVEStore interface {
	// CreateCVE is an idempotent insert: a unique conflict is a no-op.
	CreateCVE(ctx context.Context, rec *vulnmirror.CVE) error
	// CreateOrUpdateCVE upserts. The update branch overwrites assigner,
	// descriptions, metrics, severity, weaknesses, configurations,
	// references and timestamps, and resets the translated flag.
	CreateOrUpdateCVE(ctx context.Context, rec *vulnmirror.CVE) error
	// UpdateTranslated merges one localized description, keyed on lang, and
	// sets the translated flag.
	UpdateTranslated(ctx context.Context, id, lang, value string) error
	// GetCVE reports the record with the exact ID, or ErrNotFound.
	GetCVE(ctx context.Context, id string) (*vulnmirror.CVE, error)
	// QueryCVEs reports a page of records matching the filter.
	QueryCVEs(ctx context.Context, q CVEQuery) ([]vulnmirror.CVE, error)
}

// CWEStore persists the weakness catalog.
type CWEStore interface {
	CreateOrUpdateCWE(ctx context.Context, rec *vulnmirror.CWE) error
	GetCWE(ctx context.Context, id int) (*vulnmirror.CWE, error)
	QueryCWEs(ctx context.Context, q CWEQuery) ([]vulnmirror.CWE, error)
}

// VendorStore persists vendors.
type VendorStore interface {
	// VendorQueryOrCreate is an idempotent get-or-insert keyed on name.
	VendorQueryOrCreate(ctx context.Context, name string) (*vulnmirror.Vendor, error)
	GetVendor(ctx context.Context, name string) (*vulnmirror.Vendor, error)
}

// ProductStore persists products.
type ProductStore interface {
	// ProductQueryOrCreate is an idempotent get-or-insert keyed on
	// (vendor, name); part is an attribute recorded at creation. The
	// vendor must exist.
	ProductQueryOrCreate(ctx context.Context, vendorID uuid.UUID, name, part string) (*vulnmirror.Product, error)
	QueryProducts(ctx context.Context, q ProductQuery) ([]vulnmirror.Product, error)
}

// KBStore persists knowledge-base entries.
type KBStore interface {
	// CreateOrUpdateKB upserts, keyed on (name, source).
	CreateOrUpdateKB(ctx context.Context, rec *vulnmirror.KB) error
	DeleteKB(ctx context.Context, name, source string) error
	QueryKBs(ctx context.Context, q KBQuery) ([]vulnmirror.KB, error)
}

// EdgeStore reconciles the relation tables.
type EdgeStore interface {
	// CVEProducts reports the product IDs currently linked to the CVE.
	CVEProducts(ctx context.Context, cveID string) ([]uuid.UUID, error)
	// ReplaceCVEProducts reconciles the linked set to exactly the one
	// provided: stale edges are deleted, missing ones inserted.
	ReplaceCVEProducts(ctx context.Context, cveID string, products []uuid.UUID) error
	// LinkKB idempotently inserts one CVE↔KB edge.
	LinkKB(ctx context.Context, cveID string, kbID uuid.UUID) error
	// CVEKBs reports the KB IDs currently linked to the CVE.
	CVEKBs(ctx context.Context, cveID string) ([]uuid.UUID, error)
}
