package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/quay/zlog"
	"golang.org/x/time/rate"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/updater/driver"
)

// DefaultRoot is the production 2.0 API endpoint.
const DefaultRoot = `https://services.nvd.nist.gov/rest/json/cves/2.0`

const (
	apiPageSize   = 2000
	apiTimeLayout = `2006-01-02T15:04:05.000`
)

// APIConfig configures an APIUpdater. The zero value is usable.
type APIConfig struct {
	// Root overrides the API endpoint, for tests and mirrors.
	Root string
	// Key is the optional NVD API key. Keyed clients get a higher rate
	// allowance.
	Key string
	// Window is how far back the first pass reaches when there is no
	// previous fingerprint. Defaults to 3 hours.
	Window time.Duration
	// CVE restricts the fetch to a single identifier.
	CVE string
}

// APIUpdater is the incremental NVD 2.0 adapter.
type APIUpdater struct {
	c       *http.Client
	root    *url.URL
	limiter *rate.Limiter
	cfg     APIConfig
}

var _ driver.CVEUpdater = (*APIUpdater)(nil)

// NewAPIUpdater reports a ready updater. A nil client uses
// [http.DefaultClient].
func NewAPIUpdater(client *http.Client, cfg APIConfig) (*APIUpdater, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.Window == 0 {
		cfg.Window = 3 * time.Hour
	}
	root, err := url.Parse(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("nvd: bad root URL: %w", err)
	}
	// Published allowances: 5 requests per 30s unkeyed, 50 keyed.
	every := 30 * time.Second / 5
	if cfg.Key != "" {
		every = 30 * time.Second / 50
	}
	return &APIUpdater{
		c:       client,
		root:    root,
		limiter: rate.NewLimiter(rate.Every(every), 1),
		cfg:     cfg,
	}, nil
}

// Name implements [driver.Updater].
func (u *APIUpdater) Name() string { return "nvd-api" }

// FetchCVEs implements [driver.CVEUpdater].
//
// The fingerprint is the RFC 3339 end of the last successfully fetched
// modification window.
func (u *APIUpdater) FetchCVEs(ctx context.Context, prev driver.Fingerprint) ([]vulnmirror.CVE, driver.Fingerprint, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "updater/nvd/APIUpdater.FetchCVEs")
	end := time.Now().UTC()
	start := end.Add(-u.cfg.Window)
	if prev != "" {
		if t, err := time.Parse(time.RFC3339, string(prev)); err == nil {
			start = t
		}
	}

	var out []vulnmirror.CVE
	for idx := 0; ; {
		page, err := u.fetchPage(ctx, start, end, idx)
		if err != nil {
			return nil, prev, err
		}
		for i := range page.Vulnerabilities {
			rec, err := page.Vulnerabilities[i].CVE.normalize()
			if err != nil {
				zlog.Warn(ctx).Err(err).Msg("skipping malformed record")
				continue
			}
			out = append(out, *rec)
		}
		idx += page.ResultsPerPage
		if idx >= page.TotalResults || page.ResultsPerPage == 0 {
			break
		}
	}
	zlog.Info(ctx).
		Int("count", len(out)).
		Time("since", start).
		Msg("fetched records")
	if len(out) == 0 {
		return nil, prev, driver.Unchanged
	}
	return out, driver.Fingerprint(end.Format(time.RFC3339)), nil
}

func (u *APIUpdater) fetchPage(ctx context.Context, start, end time.Time, idx int) (*apiResponse, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	uri := *u.root
	v := uri.Query()
	if u.cfg.CVE != "" {
		v.Set("cveId", u.cfg.CVE)
	} else {
		v.Set("lastModStartDate", start.Format(time.RFC3339))
		v.Set("lastModEndDate", end.Format(time.RFC3339))
	}
	v.Set("startIndex", strconv.Itoa(idx))
	v.Set("resultsPerPage", strconv.Itoa(apiPageSize))
	uri.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	if u.cfg.Key != "" {
		req.Header.Set("apiKey", u.cfg.Key)
	}
	res, err := u.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nvd: unexpected response: %s", res.Status)
	}
	var page apiResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("nvd: decoding response: %w", err)
	}
	return &page, nil
}

type apiResponse struct {
	ResultsPerPage  int    `json:"resultsPerPage"`
	StartIndex      int    `json:"startIndex"`
	TotalResults    int    `json:"totalResults"`
	Vulnerabilities []struct {
		CVE apiCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

// ApiTime parses the zone-less timestamp format the 2.0 API emits.
type apiTime struct {
	time.Time
}

func (t *apiTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(apiTimeLayout, s)
	if err != nil {
		// Some mirrors emit a zone; accept that too.
		parsed, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

type apiCVE struct {
	ID               string      `json:"id"`
	SourceIdentifier string      `json:"sourceIdentifier"`
	Published        apiTime     `json:"published"`
	LastModified     apiTime     `json:"lastModified"`
	Descriptions     []langValue `json:"descriptions"`
	Metrics          struct {
		V40 []apiMetric `json:"cvssMetricV40"`
		V31 []apiMetric `json:"cvssMetricV31"`
		V30 []apiMetric `json:"cvssMetricV30"`
		V2  []apiMetric `json:"cvssMetricV2"`
	} `json:"metrics"`
	Weaknesses []struct {
		Description []langValue `json:"description"`
	} `json:"weaknesses"`
	Configurations []apiConfiguration `json:"configurations"`
	References     []struct {
		URL    string   `json:"url"`
		Source string   `json:"source"`
		Tags   []string `json:"tags"`
	} `json:"references"`
}

type apiMetric struct {
	Source   string `json:"source"`
	Type     string `json:"type"`
	CVSSData struct {
		VectorString string  `json:"vectorString"`
		BaseScore    float64 `json:"baseScore"`
	} `json:"cvssData"`
	ExploitabilityScore *float64 `json:"exploitabilityScore"`
	ImpactScore         *float64 `json:"impactScore"`
}

// Pick selects the primary result, falling back to the first one.
func pick(ms []apiMetric) *wireMetric {
	if len(ms) == 0 {
		return nil
	}
	sel := &ms[0]
	for i := range ms {
		if ms[i].Type == "Primary" {
			sel = &ms[i]
			break
		}
	}
	return &wireMetric{
		vector:         sel.CVSSData.VectorString,
		baseScore:      sel.CVSSData.BaseScore,
		exploitability: sel.ExploitabilityScore,
		impact:         sel.ImpactScore,
		source:         sel.Source,
		primary:        sel.Type == "Primary",
	}
}

type apiConfiguration struct {
	Operator string    `json:"operator"`
	Negate   bool      `json:"negate"`
	Nodes    []apiNode `json:"nodes"`
}

type apiNode struct {
	Operator string        `json:"operator"`
	Negate   bool          `json:"negate"`
	CPEMatch []apiCPEMatch `json:"cpeMatch"`
}

type apiCPEMatch struct {
	Vulnerable            bool   `json:"vulnerable"`
	Criteria              string `json:"criteria"`
	MatchCriteriaID       string `json:"matchCriteriaId"`
	VersionStartIncluding string `json:"versionStartIncluding"`
	VersionStartExcluding string `json:"versionStartExcluding"`
	VersionEndIncluding   string `json:"versionEndIncluding"`
	VersionEndExcluding   string `json:"versionEndExcluding"`
}

func (m *apiCPEMatch) convert() vulnmirror.CPEMatch {
	return vulnmirror.CPEMatch{
		Vulnerable:            m.Vulnerable,
		Criteria:              m.Criteria,
		MatchCriteriaID:       m.MatchCriteriaID,
		VersionStartIncluding: m.VersionStartIncluding,
		VersionStartExcluding: m.VersionStartExcluding,
		VersionEndIncluding:   m.VersionEndIncluding,
		VersionEndExcluding:   m.VersionEndExcluding,
	}
}

func (n *apiNode) convert() vulnmirror.Node {
	out := vulnmirror.Node{Negate: n.Negate}
	if n.Operator == "AND" {
		out.Operator = vulnmirror.OpAND
	}
	out.CPEMatch = make([]vulnmirror.CPEMatch, 0, len(n.CPEMatch))
	for i := range n.CPEMatch {
		out.CPEMatch = append(out.CPEMatch, n.CPEMatch[i].convert())
	}
	return out
}

// Flatten reduces the configuration list to a forest: a configuration with a
// top-level operator becomes one branch node, one without contributes its
// nodes as roots directly.
func flatten(configs []apiConfiguration) []vulnmirror.Node {
	var out []vulnmirror.Node
	for i := range configs {
		c := &configs[i]
		nodes := make([]vulnmirror.Node, 0, len(c.Nodes))
		for j := range c.Nodes {
			nodes = append(nodes, c.Nodes[j].convert())
		}
		if c.Operator == "" && !c.Negate {
			out = append(out, nodes...)
			continue
		}
		branch := vulnmirror.Node{Negate: c.Negate, Children: nodes}
		if c.Operator == "AND" {
			branch.Operator = vulnmirror.OpAND
		}
		out = append(out, branch)
	}
	return out
}

func (c *apiCVE) normalize() (*vulnmirror.CVE, error) {
	year, err := vulnmirror.ParseCVEID(c.ID)
	if err != nil {
		return nil, err
	}
	rec := vulnmirror.CVE{
		ID:             c.ID,
		Year:           year,
		Assigner:       c.SourceIdentifier,
		Published:      c.Published.Time,
		Modified:       c.LastModified.Time,
		Descriptions:   toDescriptions(c.Descriptions),
		Configurations: flatten(c.Configurations),
	}
	rec.Metrics.V2 = normalizeMetric(2, pick(c.Metrics.V2))
	rec.Metrics.V30 = normalizeMetric(3, pick(c.Metrics.V30))
	rec.Metrics.V31 = normalizeMetric(3, pick(c.Metrics.V31))
	rec.Metrics.V40 = normalizeMetric(4, pick(c.Metrics.V40))

	var ws []string
	for _, w := range c.Weaknesses {
		for _, d := range w.Description {
			ws = append(ws, d.Value)
		}
	}
	rec.Weaknesses = toWeaknesses(ws)

	for _, r := range c.References {
		rec.References = append(rec.References, vulnmirror.Reference{
			URL:    r.URL,
			Source: r.Source,
			Tags:   r.Tags,
		})
	}
	finish(&rec)
	return &rec, nil
}
