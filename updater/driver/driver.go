// Package driver holds the interfaces feed adapters implement.
//
// An adapter is a named fetcher for one upstream feed. The pipeline manager
// in the updates package type-switches on the fetch interfaces below and
// routes what comes back into the store; adapters never touch the store
// themselves.
package driver

import (
	"context"
	"errors"

	"github.com/stackrook/vulnmirror"
)

// Unchanged is reported by fetchers to indicate the upstream feed has no new
// content since the provided fingerprint. The manager keeps the watermark and
// skips the ingest for that pass.
var Unchanged = errors.New("driver: unchanged")

// Fingerprint is some identifying information about a feed snapshot.
//
// Adapters decide the contents; the manager treats it as opaque, stores it on
// a successful pass, and hands it back on the next one. Time-windowed feeds
// typically use the window end, cursor feeds the last cursor.
type Fingerprint string

// Updater is the common surface of every adapter.
type Updater interface {
	// Name is unique among all registered adapters and stable across runs.
	Name() string
}

// CVEUpdater fetches vulnerability records.
type CVEUpdater interface {
	Updater
	// FetchCVEs reports the records changed since the previous fingerprint.
	// When the feed has nothing new the error is [Unchanged].
	FetchCVEs(ctx context.Context, prev Fingerprint) ([]vulnmirror.CVE, Fingerprint, error)
}

// TranslationUpdater fetches localized descriptions.
type TranslationUpdater interface {
	Updater
	// Lang reports the BCP 47 tag the values are in, e.g. "zh".
	Lang() string
	// FetchTranslations reports translations for recently published upstream
	// entries plus, best-effort, the explicitly requested CVE IDs. The map is
	// keyed by CVE ID.
	FetchTranslations(ctx context.Context, want []string) (map[string]string, error)
}

// KBDelete names one knowledge-base entry to remove.
type KBDelete struct {
	Name   string
	Source string
}

// KBUpdater fetches knowledge-base changes.
type KBUpdater interface {
	Updater
	// FetchKB reports the entries to upsert and to delete since the previous
	// fingerprint.
	FetchKB(ctx context.Context, prev Fingerprint) (upserts []vulnmirror.KB, deletes []KBDelete, _ Fingerprint, _ error)
}
