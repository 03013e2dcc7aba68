package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/quay/zlog"

	"github.com/stackrook/vulnmirror"
)

const archiveTimeLayout = `2006-01-02T15:04Z`

// LoadArchive reads a legacy NVD JSON 1.1 gzip archive from local disk and
// reports the normalized records. Records that fail to normalize are logged
// and skipped, not fatal.
func LoadArchive(ctx context.Context, path string) ([]vulnmirror.CVE, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "updater/nvd/LoadArchive", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadArchive(ctx, f)
}

// ReadArchive is [LoadArchive] over an already-open stream.
func ReadArchive(ctx context.Context, r io.Reader) ([]vulnmirror.CVE, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("nvd: opening archive: %w", err)
	}
	defer gz.Close()

	var feed archiveFeed
	if err := json.NewDecoder(gz).Decode(&feed); err != nil {
		return nil, fmt.Errorf("nvd: decoding archive: %w", err)
	}
	out := make([]vulnmirror.CVE, 0, len(feed.Items))
	for i := range feed.Items {
		rec, err := feed.Items[i].normalize()
		if err != nil {
			zlog.Warn(ctx).Err(err).Msg("skipping malformed record")
			continue
		}
		out = append(out, *rec)
	}
	zlog.Info(ctx).Int("count", len(out)).Msg("read archive")
	return out, nil
}

type archiveFeed struct {
	Items []archiveItem `json:"CVE_Items"`
}

type archiveItem struct {
	CVE struct {
		Meta struct {
			ID       string `json:"ID"`
			Assigner string `json:"ASSIGNER"`
		} `json:"CVE_data_meta"`
		ProblemType struct {
			Data []struct {
				Description []langValue `json:"description"`
			} `json:"problemtype_data"`
		} `json:"problemtype"`
		References struct {
			Data []struct {
				URL       string   `json:"url"`
				RefSource string   `json:"refsource"`
				Tags      []string `json:"tags"`
			} `json:"reference_data"`
		} `json:"references"`
		Description struct {
			Data []langValue `json:"description_data"`
		} `json:"description"`
	} `json:"cve"`
	Configurations struct {
		Nodes []archiveNode `json:"nodes"`
	} `json:"configurations"`
	Impact struct {
		V3 *struct {
			CVSS struct {
				Version      string  `json:"version"`
				VectorString string  `json:"vectorString"`
				BaseScore    float64 `json:"baseScore"`
			} `json:"cvssV3"`
			ExploitabilityScore *float64 `json:"exploitabilityScore"`
			ImpactScore         *float64 `json:"impactScore"`
		} `json:"baseMetricV3"`
		V2 *struct {
			CVSS struct {
				VectorString string  `json:"vectorString"`
				BaseScore    float64 `json:"baseScore"`
			} `json:"cvssV2"`
			ExploitabilityScore *float64 `json:"exploitabilityScore"`
			ImpactScore         *float64 `json:"impactScore"`
		} `json:"baseMetricV2"`
	} `json:"impact"`
	Published string `json:"publishedDate"`
	Modified  string `json:"lastModifiedDate"`
}

type archiveNode struct {
	Operator string        `json:"operator"`
	Negate   bool          `json:"negate"`
	Children []archiveNode `json:"children"`
	CPEMatch []struct {
		Vulnerable            bool   `json:"vulnerable"`
		URI                   string `json:"cpe23Uri"`
		VersionStartIncluding string `json:"versionStartIncluding"`
		VersionStartExcluding string `json:"versionStartExcluding"`
		VersionEndIncluding   string `json:"versionEndIncluding"`
		VersionEndExcluding   string `json:"versionEndExcluding"`
	} `json:"cpe_match"`
}

func (n *archiveNode) convert() vulnmirror.Node {
	out := vulnmirror.Node{Negate: n.Negate}
	if n.Operator == "AND" {
		out.Operator = vulnmirror.OpAND
	}
	for i := range n.Children {
		out.Children = append(out.Children, n.Children[i].convert())
	}
	for _, m := range n.CPEMatch {
		out.CPEMatch = append(out.CPEMatch, vulnmirror.CPEMatch{
			Vulnerable:            m.Vulnerable,
			Criteria:              m.URI,
			VersionStartIncluding: m.VersionStartIncluding,
			VersionStartExcluding: m.VersionStartExcluding,
			VersionEndIncluding:   m.VersionEndIncluding,
			VersionEndExcluding:   m.VersionEndExcluding,
		})
	}
	return out
}

func (it *archiveItem) normalize() (*vulnmirror.CVE, error) {
	id := it.CVE.Meta.ID
	year, err := vulnmirror.ParseCVEID(id)
	if err != nil {
		return nil, err
	}
	rec := vulnmirror.CVE{
		ID:           id,
		Year:         year,
		Assigner:     it.CVE.Meta.Assigner,
		Descriptions: toDescriptions(it.CVE.Description.Data),
	}
	if t, err := time.Parse(archiveTimeLayout, it.Published); err == nil {
		rec.Published = t.UTC()
	}
	if t, err := time.Parse(archiveTimeLayout, it.Modified); err == nil {
		rec.Modified = t.UTC()
	}

	for i := range it.Configurations.Nodes {
		rec.Configurations = append(rec.Configurations, it.Configurations.Nodes[i].convert())
	}

	if m := it.Impact.V3; m != nil {
		wm := &wireMetric{
			vector:         m.CVSS.VectorString,
			baseScore:      m.CVSS.BaseScore,
			exploitability: m.ExploitabilityScore,
			impact:         m.ImpactScore,
			primary:        true,
		}
		switch m.CVSS.Version {
		case "3.0":
			rec.Metrics.V30 = normalizeMetric(3, wm)
		default:
			rec.Metrics.V31 = normalizeMetric(3, wm)
		}
	}
	if m := it.Impact.V2; m != nil {
		rec.Metrics.V2 = normalizeMetric(2, &wireMetric{
			vector:         m.CVSS.VectorString,
			baseScore:      m.CVSS.BaseScore,
			exploitability: m.ExploitabilityScore,
			impact:         m.ImpactScore,
			primary:        true,
		})
	}

	var ws []string
	for _, pt := range it.CVE.ProblemType.Data {
		for _, d := range pt.Description {
			ws = append(ws, d.Value)
		}
	}
	rec.Weaknesses = toWeaknesses(ws)

	for _, r := range it.CVE.References.Data {
		rec.References = append(rec.References, vulnmirror.Reference{
			URL:    r.URL,
			Source: r.RefSource,
			Tags:   r.Tags,
		})
	}
	finish(&rec)
	return &rec, nil
}
