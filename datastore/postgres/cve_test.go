package postgres

import (
	"strings"
	"testing"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
)

func TestBuildCVEQuery(t *testing.T) {
	t.Parallel()
	sev := vulnmirror.SeverityCritical
	translated := false
	tt := []struct {
		name string
		q    datastore.CVEQuery
		want []string
	}{
		{
			name: "Defaults",
			q:    datastore.CVEQuery{},
			want: []string{`ORDER BY "id" DESC`, `LIMIT 10`},
		},
		{
			name: "YearAndSeverity",
			q:    datastore.CVEQuery{Year: 2023, Severity: &sev},
			want: []string{`"severity" = 'critical'`, `"year" = 2023`},
		},
		{
			name: "Untranslated",
			q:    datastore.CVEQuery{Translated: &translated},
			want: []string{`"translated" IS FALSE`},
		},
		{
			name: "VendorProductSubquery",
			q:    datastore.CVEQuery{Vendor: "acme", Product: "widget"},
			want: []string{
				`"id" IN ((SELECT "cve_id" FROM "cve_product"`,
				`"vendors"."name" = 'acme'`,
				`"products"."name" = 'widget'`,
			},
		},
		{
			name: "ClampedPaging",
			q:    datastore.CVEQuery{Ascending: true, Page: datastore.Page{Number: 3, Size: 500}},
			want: []string{`ORDER BY "id" ASC`, `LIMIT 10`, `OFFSET 20`},
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			sql, err := buildCVEQuery(&tc.q)
			if err != nil {
				t.Fatal(err)
			}
			t.Logf("%s", sql)
			for _, frag := range tc.want {
				if !strings.Contains(sql, frag) {
					t.Errorf("missing %q", frag)
				}
			}
		})
	}
}
