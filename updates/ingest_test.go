package updates

import (
	"context"
	"testing"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
	"github.com/stackrook/vulnmirror/datastore/mem"
	"github.com/stackrook/vulnmirror/updater/driver"
)

func criterion(vendor, product string) vulnmirror.CPEMatch {
	return vulnmirror.CPEMatch{
		Vulnerable: true,
		Criteria:   "cpe:2.3:a:" + vendor + ":" + product + ":*:*:*:*:*:*:*:*",
	}
}

func record(id string, criteria ...vulnmirror.CPEMatch) vulnmirror.CVE {
	return vulnmirror.CVE{
		ID: id,
		Descriptions: []vulnmirror.Description{
			{Lang: "en", Value: "a flaw"},
		},
		Configurations: []vulnmirror.Node{
			{CPEMatch: criteria},
		},
	}
}

func TestIngestReconcilesEdges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := mem.New()

	// First pass: two products.
	err := IngestCVEs(ctx, s, []vulnmirror.CVE{
		record("CVE-2023-0001", criterion("acme", "alpha"), criterion("acme", "beta")),
	})
	if err != nil {
		t.Fatal(err)
	}
	ids, err := s.CVEProducts(ctx, "CVE-2023-0001")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d edges, want 2", len(ids))
	}

	// Re-ingest with a changed set: one product survives, one is new.
	err = IngestCVEs(ctx, s, []vulnmirror.CVE{
		record("CVE-2023-0001", criterion("acme", "alpha"), criterion("other", "gamma")),
	})
	if err != nil {
		t.Fatal(err)
	}
	ids, err = s.CVEProducts(ctx, "CVE-2023-0001")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d edges after re-ingest, want 2", len(ids))
	}
	prods, err := s.QueryProducts(ctx, datastore.ProductQuery{Name: "beta"})
	if err != nil {
		t.Fatal(err)
	}
	if len(prods) != 1 {
		t.Fatal("the dictionary row should survive edge removal")
	}
	linked := map[string]bool{}
	for _, id := range ids {
		for _, name := range []string{"alpha", "gamma"} {
			ps, err := s.QueryProducts(ctx, datastore.ProductQuery{Name: name})
			if err != nil {
				t.Fatal(err)
			}
			if len(ps) == 1 && ps[0].ID == id {
				linked[name] = true
			}
		}
	}
	if !linked["alpha"] || !linked["gamma"] {
		t.Errorf("edges point at the wrong products: %v", linked)
	}
}

func TestIngestIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := mem.New()

	err := IngestCVEs(ctx, s, []vulnmirror.CVE{
		record("not-a-cve-id"),
		record("CVE-2023-0002", criterion("acme", "alpha")),
	})
	if err != nil {
		t.Fatal(err)
	}
	// The malformed record is skipped, the good one lands.
	if _, err := s.GetCVE(ctx, "CVE-2023-0002"); err != nil {
		t.Errorf("good record missing: %v", err)
	}
	if _, err := s.GetCVE(ctx, "not-a-cve-id"); err != datastore.ErrNotFound {
		t.Errorf("malformed record should not land: %v", err)
	}
}

func TestIngestDerivesSeverity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := mem.New()

	rec := record("CVE-2023-0003")
	rec.Metrics.V31 = &vulnmirror.CVSSMetric{
		Vector:    "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H",
		BaseScore: 10.0,
		Severity:  vulnmirror.SeverityCritical,
	}
	rec.Metrics.V2 = &vulnmirror.CVSSMetric{
		Vector:    "CVSS:2.0/AV:N/AC:L/Au:N/C:P/I:P/A:P",
		BaseScore: 7.5,
		Severity:  vulnmirror.SeverityHigh,
	}
	if err := IngestCVEs(ctx, s, []vulnmirror.CVE{rec}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCVE(ctx, "CVE-2023-0003")
	if err != nil {
		t.Fatal(err)
	}
	if got.Severity != vulnmirror.SeverityCritical {
		t.Errorf("got severity %v, want critical (v3.1 outranks v2)", got.Severity)
	}
	if got.Year != 2023 {
		t.Errorf("got year %d", got.Year)
	}
}

func TestKBLinksBothDirections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := mem.New()

	// KB entry arrives before the CVE: no edge yet.
	err := IngestKB(ctx, s, []vulnmirror.KB{
		{Name: "CVE-2023-0004", Source: vulnmirror.KBSourceNucleiTemplate, Type: vulnmirror.KBTypeExploit},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	edges, err := s.CVEKBs(ctx, "CVE-2023-0004")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Fatal("edge should wait for the CVE")
	}

	// The CVE ingest picks up the waiting entry.
	if err := IngestCVEs(ctx, s, []vulnmirror.CVE{record("CVE-2023-0004")}); err != nil {
		t.Fatal(err)
	}
	edges, err = s.CVEKBs(ctx, "CVE-2023-0004")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}

	// A later KB arrival for a mirrored CVE links immediately.
	err = IngestKB(ctx, s, []vulnmirror.KB{
		{Name: "CVE-2023-0004", Source: vulnmirror.KBSourceAttackerKB, Type: vulnmirror.KBTypeKnowledgeBase},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	edges, err = s.CVEKBs(ctx, "CVE-2023-0004")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}

	// A delete removes the entry and its edge.
	err = IngestKB(ctx, s, nil, []driver.KBDelete{
		{Name: "CVE-2023-0004", Source: vulnmirror.KBSourceNucleiTemplate},
	})
	if err != nil {
		t.Fatal(err)
	}
	edges, err = s.CVEKBs(ctx, "CVE-2023-0004")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges after delete, want 1", len(edges))
	}
}

func TestLoadCPEs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := mem.New()

	err := LoadCPEs(ctx, s, []string{
		"cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*",
		"cpe:2.3:a:acme:widget:2.0:*:*:*:*:*:*:*", // same product, new version
		"cpe:2.3:o:acme:widget_os:*:*:*:*:*:*:*:*",
		"not a cpe",
	})
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.GetVendor(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	prods, err := s.QueryProducts(ctx, datastore.ProductQuery{VendorID: v.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(prods) != 2 {
		t.Errorf("got %d products, want 2: %+v", len(prods), prods)
	}
}
