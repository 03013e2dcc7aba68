package updates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/quay/zlog"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
	"github.com/stackrook/vulnmirror/matcher"
	"github.com/stackrook/vulnmirror/toolkit/types/cpe"
	"github.com/stackrook/vulnmirror/updater/driver"
)

// IngestCVEs runs the per-record ingest sequence for each record.
//
// Every record is independent: a failure is logged and the loop continues.
// Within one record the sequence is ordered — the row upsert precedes any
// edge change, and edge reconciliation follows all vendor and product
// creations — but the steps are not one SQL transaction; each is idempotent
// and a cancelled pass is repaired by the next one.
func IngestCVEs(ctx context.Context, store datastore.Store, recs []vulnmirror.CVE) error {
	ctx = zlog.ContextWithValues(ctx, "component", "updates/IngestCVEs")
	var failed int
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ingestCVE(ctx, store, &recs[i]); err != nil {
			zlog.Warn(ctx).Err(err).Str("cve", recs[i].ID).Msg("skipping record")
			failed++
		}
	}
	zlog.Info(ctx).
		Int("count", len(recs)).
		Int("failed", failed).
		Msg("ingested records")
	return nil
}

func ingestCVE(ctx context.Context, store datastore.Store, rec *vulnmirror.CVE) error {
	year, err := vulnmirror.ParseCVEID(rec.ID)
	if err != nil {
		return err
	}
	rec.Year = year
	if best := rec.Metrics.Best(); best != nil {
		rec.Severity = best.Severity
	} else {
		rec.Severity = vulnmirror.SeverityNone
	}

	if err := store.CreateOrUpdateCVE(ctx, rec); err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, 4)
	for _, t := range matcher.VendorProductSet(rec.Configurations) {
		v, err := store.VendorQueryOrCreate(ctx, t.Vendor)
		if err != nil {
			return err
		}
		p, err := store.ProductQueryOrCreate(ctx, v.ID, t.Product, t.Part)
		if err != nil {
			return err
		}
		ids = append(ids, p.ID)
	}
	if err := store.ReplaceCVEProducts(ctx, rec.ID, ids); err != nil {
		return err
	}

	// Knowledge-base entries named after this record link up now; entries
	// arriving later link during their own ingest.
	kbs, err := store.QueryKBs(ctx, datastore.KBQuery{Name: rec.ID})
	if err != nil {
		return err
	}
	for i := range kbs {
		if err := store.LinkKB(ctx, rec.ID, kbs[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// IngestKB applies a knowledge-base change set: upserts first, then deletes.
// An upsert whose name is a mirrored CVE gains an edge immediately.
func IngestKB(ctx context.Context, store datastore.Store, ups []vulnmirror.KB, dels []driver.KBDelete) error {
	ctx = zlog.ContextWithValues(ctx, "component", "updates/IngestKB")
	var failed int
	for i := range ups {
		if err := ctx.Err(); err != nil {
			return err
		}
		kb := &ups[i]
		if err := store.CreateOrUpdateKB(ctx, kb); err != nil {
			zlog.Warn(ctx).Err(err).Str("name", kb.Name).Msg("skipping entry")
			failed++
			continue
		}
		if _, err := vulnmirror.ParseCVEID(kb.Name); err != nil {
			continue
		}
		_, err := store.GetCVE(ctx, kb.Name)
		switch {
		case err == nil:
			if err := store.LinkKB(ctx, kb.Name, kb.ID); err != nil {
				zlog.Warn(ctx).Err(err).Str("name", kb.Name).Msg("failed to link entry")
			}
		case errors.Is(err, datastore.ErrNotFound):
			// Not mirrored yet; the CVE's own ingest links it later.
		default:
			zlog.Warn(ctx).Err(err).Str("name", kb.Name).Msg("lookup failed")
		}
	}
	for _, d := range dels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := store.DeleteKB(ctx, d.Name, d.Source); err != nil {
			zlog.Warn(ctx).Err(err).Str("name", d.Name).Msg("failed to delete entry")
			failed++
		}
	}
	zlog.Info(ctx).
		Int("upserts", len(ups)).
		Int("deletes", len(dels)).
		Int("failed", failed).
		Msg("applied change set")
	return nil
}

// LoadCWEs loads an already-decoded weakness catalog. Records are
// independent; failures are logged and skipped.
func LoadCWEs(ctx context.Context, store datastore.Store, recs []vulnmirror.CWE) error {
	ctx = zlog.ContextWithValues(ctx, "component", "updates/LoadCWEs")
	var failed int
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := store.CreateOrUpdateCWE(ctx, &recs[i]); err != nil {
			zlog.Warn(ctx).Err(err).Int("cwe", recs[i].ID).Msg("skipping entry")
			failed++
		}
	}
	zlog.Info(ctx).Int("count", len(recs)).Int("failed", failed).Msg("loaded catalog")
	return nil
}

// LoadCPEs populates the vendor and product dictionary from formatted-string
// CPE names. Names that fail to parse or carry non-concrete vendor or
// product values are logged and skipped.
func LoadCPEs(ctx context.Context, store datastore.Store, names []string) error {
	ctx = zlog.ContextWithValues(ctx, "component", "updates/LoadCPEs")
	var failed int
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		wfn, err := cpe.Unbind(name)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("cpe", name).Msg("skipping name")
			failed++
			continue
		}
		vendor := wfn.Attr[cpe.Vendor]
		product := wfn.Attr[cpe.Product]
		part := wfn.Attr[cpe.Part]
		if vendor.Kind != cpe.ValueSet || product.Kind != cpe.ValueSet {
			continue
		}
		v, err := store.VendorQueryOrCreate(ctx, vendor.V)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("cpe", name).Msg("skipping name")
			failed++
			continue
		}
		if _, err := store.ProductQueryOrCreate(ctx, v.ID, product.V, part.V); err != nil {
			zlog.Warn(ctx).Err(err).Str("cpe", name).Msg("skipping name")
			failed++
		}
	}
	zlog.Info(ctx).Int("count", len(names)).Int("failed", failed).Msg("loaded dictionary")
	return nil
}
