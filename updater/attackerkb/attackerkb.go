// Package attackerkb fetches assessment topics from the Rapid7 AttackerKB
// API and surfaces them as knowledge-base entries.
//
// Topics named after a CVE become entries keyed (cve-id, "attackerkb"); the
// pipeline links them to the mirrored record when it exists.
package attackerkb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/quay/zlog"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/updater/driver"
)

// DefaultRoot is the production API root.
const DefaultRoot = `https://api.attackerkb.com/v1`

// Source is the knowledge-base source tag for this feed.
const Source = vulnmirror.KBSourceAttackerKB

const topicsPath = `/topics`

// Config configures an Updater.
type Config struct {
	// Root overrides the API root, for tests.
	Root string
	// Token is the API bearer token, required by upstream.
	Token string
	// PageSize bounds the page size. Defaults to 100.
	PageSize int
	// MaxPages bounds a single pass. Defaults to 10.
	MaxPages int
}

// Updater implements [driver.KBUpdater].
type Updater struct {
	c   *resty.Client
	cfg Config
}

var _ driver.KBUpdater = (*Updater)(nil)

// New reports a ready updater.
func New(cfg Config) *Updater {
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 10
	}
	c := resty.New().
		SetBaseURL(cfg.Root).
		SetTimeout(30 * time.Second)
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &Updater{c: c, cfg: cfg}
}

// Name implements [driver.Updater].
func (u *Updater) Name() string { return "attackerkb" }

type topicsResponse struct {
	Data []struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		Document       string  `json:"document"`
		Score          float64 `json:"score"`
		RevisionDate   string  `json:"revisionDate"`
		Rapid7Analysis string  `json:"rapid7Analysis,omitempty"`
	} `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// FetchKB implements [driver.KBUpdater].
//
// The fingerprint is the cursor of the last consumed page; a pass resumes
// from it and follows the "next" links until the feed is exhausted or the
// page cap is hit. The feed is append-only, so there are never deletes.
func (u *Updater) FetchKB(ctx context.Context, prev driver.Fingerprint) ([]vulnmirror.KB, []driver.KBDelete, driver.Fingerprint, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "updater/attackerkb/Updater.FetchKB")
	cursor := string(prev)
	var out []vulnmirror.KB
	for page := 0; page < u.cfg.MaxPages; page++ {
		res, err := u.fetchPage(ctx, cursor)
		if err != nil {
			return nil, nil, prev, err
		}
		for _, t := range res.Data {
			name := strings.ToUpper(strings.TrimSpace(t.Name))
			if _, err := vulnmirror.ParseCVEID(name); err != nil {
				// Non-CVE topics aren't linkable; skip them.
				continue
			}
			out = append(out, vulnmirror.KB{
				Name:        name,
				Source:      Source,
				Type:        vulnmirror.KBTypeKnowledgeBase,
				Verified:    t.Rapid7Analysis != "",
				Path:        "https://attackerkb.com/topics/" + t.ID,
				Description: t.Document,
				Meta: map[string]any{
					"score": t.Score,
				},
			})
		}
		if res.Links.Next == "" {
			cursor = ""
			break
		}
		cursor = res.Links.Next
	}
	zlog.Info(ctx).Int("count", len(out)).Msg("fetched topics")
	if len(out) == 0 {
		return nil, nil, prev, driver.Unchanged
	}
	return out, nil, driver.Fingerprint(cursor), nil
}

func (u *Updater) fetchPage(ctx context.Context, cursor string) (*topicsResponse, error) {
	req := u.c.R().
		SetContext(ctx).
		SetResult(&topicsResponse{}).
		// A misbehaving proxy may answer 200 with a non-JSON error page;
		// forcing the parse turns that into a decode error instead of an
		// empty feed.
		ForceContentType("application/json").
		SetQueryParam("size", fmt.Sprint(u.cfg.PageSize)).
		SetQueryParam("sort", "revisionDate:asc")
	if cursor != "" {
		req.SetQueryParam("page", cursor)
	}
	res, err := req.Get(topicsPath)
	if err != nil {
		return nil, fmt.Errorf("attackerkb: fetch failed: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("attackerkb: unexpected response: %s", res.Status())
	}
	body, ok := res.Result().(*topicsResponse)
	if !ok {
		return nil, fmt.Errorf("attackerkb: unexpected response body")
	}
	return body, nil
}
