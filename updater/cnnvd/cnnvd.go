// Package cnnvd fetches Chinese vulnerability descriptions from the CNNVD
// web API and surfaces them as "zh" translations keyed by CVE ID.
package cnnvd

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/quay/zlog"

	"github.com/stackrook/vulnmirror/updater/driver"
)

// DefaultRoot is the production web API root.
const DefaultRoot = `https://www.cnnvd.org.cn/web`

const (
	listPath = `/homePage/cnnvdVulList`
	dateOnly = `2006-01-02`
)

// Config configures an Updater. The zero value is usable.
type Config struct {
	// Root overrides the API root, for tests.
	Root string
	// Days is the recent-entry window. Defaults to 7.
	Days int
	// PageSize bounds the list page size. Defaults to 50.
	PageSize int
	// MaxPages bounds a single pass. Defaults to 20.
	MaxPages int
}

// Updater implements [driver.TranslationUpdater].
type Updater struct {
	c   *resty.Client
	cfg Config
}

var _ driver.TranslationUpdater = (*Updater)(nil)

// New reports a ready updater.
func New(cfg Config) *Updater {
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.Days == 0 {
		cfg.Days = 7
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 20
	}
	c := resty.New().
		SetBaseURL(cfg.Root).
		SetTimeout(30 * time.Second)
	return &Updater{c: c, cfg: cfg}
}

// Name implements [driver.Updater].
func (u *Updater) Name() string { return "cnnvd" }

// Lang implements [driver.TranslationUpdater].
func (u *Updater) Lang() string { return "zh" }

type listRequest struct {
	PageIndex int    `json:"pageIndex"`
	PageSize  int    `json:"pageSize"`
	Keyword   string `json:"keyword,omitempty"`
	BeginTime string `json:"beginTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	DateType  string `json:"dateType,omitempty"`
}

type listResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"message"`
	Data struct {
		Total   int `json:"total"`
		Records []struct {
			CNNVDCode string `json:"cnnvdCode"`
			CVECode   string `json:"cveCode"`
			VulName   string `json:"vulName"`
			VulDesc   string `json:"vulDesc"`
		} `json:"records"`
	} `json:"data"`
}

// FetchTranslations implements [driver.TranslationUpdater].
//
// A pass lists entries updated in the recent window, then looks up the
// requested IDs the window didn't cover. Per-ID lookup failures are logged
// and skipped so one upstream hiccup doesn't lose the whole pass.
func (u *Updater) FetchTranslations(ctx context.Context, want []string) (map[string]string, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "updater/cnnvd/Updater.FetchTranslations")
	out := make(map[string]string)

	end := time.Now()
	begin := end.AddDate(0, 0, -u.cfg.Days)
	for page := 1; page <= u.cfg.MaxPages; page++ {
		res, err := u.list(ctx, listRequest{
			PageIndex: page,
			PageSize:  u.cfg.PageSize,
			BeginTime: begin.Format(dateOnly),
			EndTime:   end.Format(dateOnly),
			DateType:  "updateTime",
		})
		if err != nil {
			return nil, err
		}
		for _, r := range res.Data.Records {
			if r.CVECode == "" || r.VulDesc == "" {
				continue
			}
			out[r.CVECode] = r.VulDesc
		}
		if page*u.cfg.PageSize >= res.Data.Total {
			break
		}
	}
	zlog.Info(ctx).Int("recent", len(out)).Msg("listed recent entries")

	for _, id := range want {
		if _, ok := out[id]; ok {
			continue
		}
		res, err := u.list(ctx, listRequest{PageIndex: 1, PageSize: 5, Keyword: id})
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("cve", id).Msg("lookup failed, skipping")
			continue
		}
		for _, r := range res.Data.Records {
			if r.CVECode == id && r.VulDesc != "" {
				out[id] = r.VulDesc
				break
			}
		}
	}
	return out, nil
}

func (u *Updater) list(ctx context.Context, req listRequest) (*listResponse, error) {
	res, err := u.c.R().
		SetContext(ctx).
		SetBody(&req).
		SetResult(&listResponse{}).
		// A misbehaving proxy may answer 200 with a non-JSON error page;
		// forcing the parse turns that into a decode error instead of a
		// zero-valued body.
		ForceContentType("application/json").
		Post(listPath)
	if err != nil {
		return nil, fmt.Errorf("cnnvd: list failed: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("cnnvd: unexpected response: %s", res.Status())
	}
	body, ok := res.Result().(*listResponse)
	if !ok {
		return nil, fmt.Errorf("cnnvd: unexpected response body")
	}
	if body.Code != 200 {
		return nil, fmt.Errorf("cnnvd: API error: %s", body.Msg)
	}
	return body, nil
}
