package updates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore/mem"
	"github.com/stackrook/vulnmirror/updater/driver"
)

type fakeCVEUpdater struct {
	name  string
	recs  []vulnmirror.CVE
	err   error
	calls []driver.Fingerprint
}

func (u *fakeCVEUpdater) Name() string { return u.name }

func (u *fakeCVEUpdater) FetchCVEs(_ context.Context, prev driver.Fingerprint) ([]vulnmirror.CVE, driver.Fingerprint, error) {
	u.calls = append(u.calls, prev)
	if u.err != nil {
		return nil, prev, u.err
	}
	return u.recs, "next", nil
}

type fakeTranslator struct {
	want []string
	vals map[string]string
}

func (u *fakeTranslator) Name() string { return "fake-translator" }
func (u *fakeTranslator) Lang() string { return "zh" }

func (u *fakeTranslator) FetchTranslations(_ context.Context, want []string) (map[string]string, error) {
	u.want = want
	return u.vals, nil
}

func TestManagerWatermark(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := mem.New()

	good := &fakeCVEUpdater{name: "good", recs: []vulnmirror.CVE{record("CVE-2023-0001")}}
	bad := &fakeCVEUpdater{name: "bad", err: errors.New("upstream 503")}
	m, err := NewManager(ctx, s, []driver.Updater{good, bad}, WithBatchSize(1))
	if err != nil {
		t.Fatal(err)
	}

	// The failing adapter surfaces in the aggregate error but doesn't stop
	// the other one.
	err = m.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "upstream 503") {
		t.Fatalf("got: %v", err)
	}
	if _, err := s.GetCVE(ctx, "CVE-2023-0001"); err != nil {
		t.Errorf("good adapter's records missing: %v", err)
	}

	if err := m.Run(ctx); err == nil {
		t.Fatal("expected the failing adapter to fail again")
	}
	// Success advances the watermark; failure retries the same window.
	if len(good.calls) != 2 || good.calls[1] != "next" {
		t.Errorf("good watermark calls: %v", good.calls)
	}
	if len(bad.calls) != 2 || bad.calls[1] != "" {
		t.Errorf("bad watermark calls: %v", bad.calls)
	}
}

func TestManagerRejectsDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	us := []driver.Updater{
		&fakeCVEUpdater{name: "dup"},
		&fakeCVEUpdater{name: "dup"},
	}
	if _, err := NewManager(ctx, mem.New(), us); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestManagerTranslation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := mem.New()
	if err := IngestCVEs(ctx, s, []vulnmirror.CVE{record("CVE-2023-0005")}); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTranslator{vals: map[string]string{
		"CVE-2023-0005": "翻译",
		"CVE-2099-9999": "not mirrored",
	}}
	m, err := NewManager(ctx, s, []driver.Updater{tr})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(ctx); err != nil {
		t.Fatal(err)
	}

	// The untranslated record was offered to the adapter.
	if len(tr.want) != 1 || tr.want[0] != "CVE-2023-0005" {
		t.Errorf("got want list: %v", tr.want)
	}
	rec, err := s.GetCVE(ctx, "CVE-2023-0005")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Translated {
		t.Error("record should be translated")
	}
	var zh string
	for _, d := range rec.Descriptions {
		if d.Lang == "zh" {
			zh = d.Value
		}
	}
	if zh != "翻译" {
		t.Errorf("got %q", zh)
	}

	// An unknown ID is tolerated, and a second run offers nothing.
	if err := m.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(tr.want) != 0 {
		t.Errorf("second run should have no untranslated records: %v", tr.want)
	}
}
