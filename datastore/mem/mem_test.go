package mem

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
)

func testCVE(id string, year int) *vulnmirror.CVE {
	return &vulnmirror.CVE{
		ID:   id,
		Year: year,
		Descriptions: []vulnmirror.Description{
			{Lang: "en", Value: "a flaw"},
		},
		Severity: vulnmirror.SeverityHigh,
	}
}

func TestCreateCVEIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	rec := testCVE("CVE-2023-0001", 2023)
	if err := s.CreateCVE(ctx, rec); err != nil {
		t.Fatal(err)
	}
	// Second create with different content is a no-op.
	mod := testCVE("CVE-2023-0001", 2023)
	mod.Descriptions[0].Value = "changed"
	if err := s.CreateCVE(ctx, mod); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCVE(ctx, "CVE-2023-0001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Descriptions[0].Value != "a flaw" {
		t.Errorf("create overwrote existing record: %q", got.Descriptions[0].Value)
	}
}

func TestUpsertResetsTranslated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.CreateOrUpdateCVE(ctx, testCVE("CVE-2023-0002", 2023)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTranslated(ctx, "CVE-2023-0002", "zh", "翻译"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCVE(ctx, "CVE-2023-0002")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Translated {
		t.Error("expected translated after UpdateTranslated")
	}

	// A fresh upstream pass invalidates the translation flag.
	if err := s.CreateOrUpdateCVE(ctx, testCVE("CVE-2023-0002", 2023)); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetCVE(ctx, "CVE-2023-0002")
	if err != nil {
		t.Fatal(err)
	}
	if got.Translated {
		t.Error("upsert should reset the translated flag")
	}
}

func TestUpdateTranslatedConverges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.CreateOrUpdateCVE(ctx, testCVE("CVE-2023-0003", 2023)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.UpdateTranslated(ctx, "CVE-2023-0003", "zh", "最终翻译"); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.GetCVE(ctx, "CVE-2023-0003")
	if err != nil {
		t.Fatal(err)
	}
	want := []vulnmirror.Description{
		{Lang: "en", Value: "a flaw"},
		{Lang: "zh", Value: "最终翻译"},
	}
	if !cmp.Equal(got.Descriptions, want) {
		t.Error(cmp.Diff(got.Descriptions, want))
	}

	if err := s.UpdateTranslated(ctx, "CVE-0000-0000", "zh", "x"); err != datastore.ErrNotFound {
		t.Errorf("got: %v, want: %v", err, datastore.ErrNotFound)
	}
}

func TestReplaceCVEProducts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.CreateOrUpdateCVE(ctx, testCVE("CVE-2023-0004", 2023)); err != nil {
		t.Fatal(err)
	}
	v, err := s.VendorQueryOrCreate(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	var ids []uuid.UUID
	for _, name := range []string{"alpha", "beta", "gamma"} {
		p, err := s.ProductQueryOrCreate(ctx, v.ID, name, "a")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}

	if err := s.ReplaceCVEProducts(ctx, "CVE-2023-0004", ids[:2]); err != nil {
		t.Fatal(err)
	}
	got, err := s.CVEProducts(ctx, "CVE-2023-0004")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d edges, want 2", len(got))
	}

	// Drop one, add another.
	if err := s.ReplaceCVEProducts(ctx, "CVE-2023-0004", []uuid.UUID{ids[0], ids[2]}); err != nil {
		t.Fatal(err)
	}
	got, err = s.CVEProducts(ctx, "CVE-2023-0004")
	if err != nil {
		t.Fatal(err)
	}
	want := map[uuid.UUID]bool{ids[0]: true, ids[2]: true}
	if len(got) != 2 || !want[got[0]] || !want[got[1]] {
		t.Errorf("got: %v, want exactly %v and %v", got, ids[0], ids[2])
	}

	// Replacing with the identical set changes nothing.
	if err := s.ReplaceCVEProducts(ctx, "CVE-2023-0004", []uuid.UUID{ids[2], ids[0]}); err != nil {
		t.Fatal(err)
	}
	again, err := s.CVEProducts(ctx, "CVE-2023-0004")
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(got, again) {
		t.Error(cmp.Diff(got, again))
	}
}

func TestQueryOrCreateStable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	a, err := s.VendorQueryOrCreate(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.VendorQueryOrCreate(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Errorf("vendor id not stable: %v != %v", a.ID, b.ID)
	}

	p1, err := s.ProductQueryOrCreate(ctx, a.ID, "widget", "a")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.ProductQueryOrCreate(ctx, a.ID, "widget", "a")
	if err != nil {
		t.Fatal(err)
	}
	if p1.ID != p2.ID {
		t.Errorf("product id not stable: %v != %v", p1.ID, p2.ID)
	}
	// Identity is (vendor_id, name): a later observation with a different
	// part resolves to the same row and keeps the original part.
	p3, err := s.ProductQueryOrCreate(ctx, a.ID, "widget", "o")
	if err != nil {
		t.Fatal(err)
	}
	if p3.ID != p1.ID {
		t.Errorf("two product rows for one (vendor_id, name): %v vs %v", p1.ID, p3.ID)
	}
	if p3.Part != "a" {
		t.Errorf("part not kept from the first observation: %q", p3.Part)
	}
}

func TestQueryCVEsPaging(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	for i := 1; i <= 25; i++ {
		rec := testCVE("CVE-2023-"+pad(i), 2023)
		if err := s.CreateOrUpdateCVE(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	// An oversize request clamps to MaxPageSize.
	got, err := s.QueryCVEs(ctx, datastore.CVEQuery{Page: datastore.Page{Number: 1, Size: 100}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != datastore.MaxPageSize {
		t.Errorf("got %d records, want %d", len(got), datastore.MaxPageSize)
	}
	// Default order is most-recent-ID first.
	if got[0].ID != "CVE-2023-0025" {
		t.Errorf("got first id %q, want CVE-2023-0025", got[0].ID)
	}

	got, err = s.QueryCVEs(ctx, datastore.CVEQuery{Ascending: true, Page: datastore.Page{Number: 3, Size: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d records on the last page, want 5", len(got))
	}
	if got[0].ID != "CVE-2023-0021" {
		t.Errorf("got first id %q, want CVE-2023-0021", got[0].ID)
	}
}

func TestQueryCVEsByVendorProduct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.CreateOrUpdateCVE(ctx, testCVE("CVE-2023-1111", 2023)); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateOrUpdateCVE(ctx, testCVE("CVE-2023-2222", 2023)); err != nil {
		t.Fatal(err)
	}
	v, err := s.VendorQueryOrCreate(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.ProductQueryOrCreate(ctx, v.ID, "widget", "a")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceCVEProducts(ctx, "CVE-2023-1111", []uuid.UUID{p.ID}); err != nil {
		t.Fatal(err)
	}

	got, err := s.QueryCVEs(ctx, datastore.CVEQuery{Vendor: "acme", Product: "widget"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "CVE-2023-1111" {
		t.Errorf("got: %v, want only CVE-2023-1111", got)
	}
	got, err = s.QueryCVEs(ctx, datastore.CVEQuery{Vendor: "nonesuch"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got: %v, want none", got)
	}
}

func TestKBUpsertAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	kb := &vulnmirror.KB{
		Name:     "CVE-2023-0001",
		Source:   vulnmirror.KBSourceNucleiTemplate,
		Type:     vulnmirror.KBTypeExploit,
		Verified: true,
		Path:     "http/cves/2023/CVE-2023-0001.yaml",
	}
	if err := s.CreateOrUpdateKB(ctx, kb); err != nil {
		t.Fatal(err)
	}
	first := kb.ID

	// Re-upsert keyed on (name, source) keeps the identity.
	again := &vulnmirror.KB{Name: kb.Name, Source: kb.Source, Path: "moved.yaml"}
	if err := s.CreateOrUpdateKB(ctx, again); err != nil {
		t.Fatal(err)
	}
	if again.ID != first {
		t.Errorf("upsert minted a new id: %v != %v", again.ID, first)
	}

	if err := s.CreateOrUpdateCVE(ctx, testCVE("CVE-2023-0001", 2023)); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkKB(ctx, "CVE-2023-0001", first); err != nil {
		t.Fatal(err)
	}
	got, err := s.QueryKBs(ctx, datastore.KBQuery{CVE: "CVE-2023-0001"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Path != "moved.yaml" {
		t.Errorf("got: %v", got)
	}

	if err := s.DeleteKB(ctx, kb.Name, kb.Source); err != nil {
		t.Fatal(err)
	}
	edges, err := s.CVEKBs(ctx, "CVE-2023-0001")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("delete should unlink: %v", edges)
	}
	// Deleting again is fine.
	if err := s.DeleteKB(ctx, kb.Name, kb.Source); err != nil {
		t.Fatal(err)
	}
}

func TestCWELocalizationMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.CreateOrUpdateCWE(ctx, &vulnmirror.CWE{
		ID: 79, Name: "Cross-site Scripting", Status: vulnmirror.CWEStable,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateOrUpdateCWE(ctx, &vulnmirror.CWE{
		ID: 79, Name: "Cross-site Scripting", NameZH: "跨站脚本",
	}); err != nil {
		t.Fatal(err)
	}
	// A catalog refresh without localizations keeps them.
	if err := s.CreateOrUpdateCWE(ctx, &vulnmirror.CWE{
		ID: 79, Name: "Improper Neutralization of Input During Web Page Generation",
	}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCWE(ctx, 79)
	if err != nil {
		t.Fatal(err)
	}
	if got.NameZH != "跨站脚本" {
		t.Errorf("localization lost: %+v", got)
	}
	if got.Name != "Improper Neutralization of Input During Web Page Generation" {
		t.Errorf("refresh did not take: %+v", got)
	}

	kws, err := s.QueryCWEs(ctx, datastore.CWEQuery{Keyword: "跨站"})
	if err != nil {
		t.Fatal(err)
	}
	if len(kws) != 1 || kws[0].ID != 79 {
		t.Errorf("keyword query got: %v", kws)
	}
}

func pad(i int) string {
	const digits = "0123456789"
	return string([]byte{
		digits[i/1000%10], digits[i/100%10], digits[i/10%10], digits[i%10],
	})
}
