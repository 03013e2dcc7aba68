// Package gitrepo watches a forge-hosted template repository through its
// REST API and mirrors template files into the knowledge base.
//
// A pass lists commits touching the watched path since the last watermark,
// classifies each changed file by its diff status, and turns added or
// modified templates into upserts and removed ones into deletes.
package gitrepo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/quay/zlog"
	"gopkg.in/yaml.v3"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/updater/driver"
)

// Config configures an Updater.
type Config struct {
	// Root is the forge API root, e.g. "https://api.github.com".
	Root string
	// Owner and Repo name the repository.
	Owner string
	Repo  string
	// Path filters commits to the template directory, e.g. "http/cves".
	Path string
	// Source is the knowledge-base source tag. Defaults to
	// [vulnmirror.KBSourceNucleiTemplate].
	Source string
	// Window is how far back the first pass reaches. Defaults to 3 hours.
	Window time.Duration
	// Token is an optional access token.
	Token string
}

// Updater implements [driver.KBUpdater].
type Updater struct {
	c    *http.Client
	root *url.URL
	cfg  Config
}

var _ driver.KBUpdater = (*Updater)(nil)

// New reports a ready updater. A nil client uses [http.DefaultClient].
func New(client *http.Client, cfg Config) (*Updater, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Source == "" {
		cfg.Source = vulnmirror.KBSourceNucleiTemplate
	}
	if cfg.Window == 0 {
		cfg.Window = 3 * time.Hour
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("gitrepo: owner and repo are required")
	}
	root, err := url.Parse(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("gitrepo: bad root URL: %w", err)
	}
	return &Updater{c: client, root: root, cfg: cfg}, nil
}

// Name implements [driver.Updater].
func (u *Updater) Name() string { return "gitrepo/" + u.cfg.Owner + "/" + u.cfg.Repo }

type commitList []struct {
	SHA string `json:"sha"`
}

type commitDetail struct {
	Files []diffEntry `json:"files"`
}

type diffEntry struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Template is the subset of the template metadata the mirror keeps.
type template struct {
	ID   string `yaml:"id"`
	Info struct {
		Name           string   `yaml:"name"`
		Description    string   `yaml:"description"`
		Severity       string   `yaml:"severity"`
		Tags           string   `yaml:"tags"`
		Classification struct {
			CVEID string `yaml:"cve-id"`
		} `yaml:"classification"`
		Metadata struct {
			Verified bool `yaml:"verified"`
		} `yaml:"metadata"`
	} `yaml:"info"`
}

type passKey struct {
	status string
	path   string
}

// FetchKB implements [driver.KBUpdater].
//
// The fingerprint is the end of the last consumed commit window. Every
// (status, path) pair is handled at most once per pass, so a file touched in
// several commits yields one upsert and a removal one delete.
func (u *Updater) FetchKB(ctx context.Context, prev driver.Fingerprint) ([]vulnmirror.KB, []driver.KBDelete, driver.Fingerprint, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "updater/gitrepo/Updater.FetchKB")
	end := time.Now().UTC()
	since := end.Add(-u.cfg.Window)
	if prev != "" {
		if t, err := time.Parse(time.RFC3339, string(prev)); err == nil {
			since = t
		}
	}

	shas, err := u.listCommits(ctx, since)
	if err != nil {
		return nil, nil, prev, err
	}
	if len(shas) == 0 {
		return nil, nil, prev, driver.Unchanged
	}

	seen := make(map[passKey]struct{})
	var ups []vulnmirror.KB
	var dels []driver.KBDelete
	for _, sha := range shas {
		files, err := u.commitFiles(ctx, sha)
		if err != nil {
			return nil, nil, prev, err
		}
		for _, f := range files {
			if u.cfg.Path != "" && !strings.HasPrefix(f.Filename, u.cfg.Path) {
				continue
			}
			if !strings.HasSuffix(f.Filename, ".yaml") && !strings.HasSuffix(f.Filename, ".yml") {
				continue
			}
			k := passKey{status: f.Status, path: f.Filename}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}

			switch f.Status {
			case "added", "modified":
				kb, err := u.fetchTemplate(ctx, f.Filename)
				if err != nil {
					zlog.Warn(ctx).Err(err).Str("path", f.Filename).Msg("skipping template")
					continue
				}
				if kb != nil {
					ups = append(ups, *kb)
				}
			case "removed":
				dels = append(dels, driver.KBDelete{
					Name:   nameFor(f.Filename),
					Source: u.cfg.Source,
				})
			}
		}
	}
	zlog.Info(ctx).
		Int("upserts", len(ups)).
		Int("deletes", len(dels)).
		Msg("collected template changes")
	if len(ups) == 0 && len(dels) == 0 {
		return nil, nil, prev, driver.Unchanged
	}
	return ups, dels, driver.Fingerprint(end.Format(time.RFC3339)), nil
}

// NameFor derives the entry name from a template path: the file base,
// uppercased, which for the CVE directories is the CVE identifier.
func nameFor(p string) string {
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.ToUpper(base)
}

func (u *Updater) listCommits(ctx context.Context, since time.Time) ([]string, error) {
	uri := u.root.JoinPath("repos", u.cfg.Owner, u.cfg.Repo, "commits")
	v := uri.Query()
	v.Set("since", since.Format(time.RFC3339))
	if u.cfg.Path != "" {
		v.Set("path", u.cfg.Path)
	}
	v.Set("per_page", "100")
	uri.RawQuery = v.Encode()

	var list commitList
	if err := u.getJSON(ctx, uri.String(), &list); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.SHA)
	}
	return out, nil
}

func (u *Updater) commitFiles(ctx context.Context, sha string) ([]diffEntry, error) {
	uri := u.root.JoinPath("repos", u.cfg.Owner, u.cfg.Repo, "commits", sha)
	var detail commitDetail
	if err := u.getJSON(ctx, uri.String(), &detail); err != nil {
		return nil, err
	}
	return detail.Files, nil
}

func (u *Updater) fetchTemplate(ctx context.Context, p string) (*vulnmirror.KB, error) {
	uri := u.root.JoinPath("repos", u.cfg.Owner, u.cfg.Repo, "contents", p)
	var res contentsResponse
	if err := u.getJSON(ctx, uri.String(), &res); err != nil {
		return nil, err
	}
	raw := []byte(res.Content)
	if res.Encoding == "base64" {
		dec, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(res.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("gitrepo: decoding contents: %w", err)
		}
		raw = dec
	}
	var tpl template
	if err := yaml.Unmarshal(raw, &tpl); err != nil {
		return nil, fmt.Errorf("gitrepo: parsing template: %w", err)
	}

	name := strings.ToUpper(tpl.Info.Classification.CVEID)
	if name == "" {
		name = strings.ToUpper(tpl.ID)
	}
	if name == "" {
		name = nameFor(p)
	}
	return &vulnmirror.KB{
		Name:        name,
		Source:      u.cfg.Source,
		Type:        vulnmirror.KBTypeExploit,
		Verified:    tpl.Info.Metadata.Verified,
		Path:        p,
		Description: tpl.Info.Description,
		Meta: map[string]any{
			"severity": tpl.Info.Severity,
			"tags":     tpl.Info.Tags,
		},
	}, nil
}

func (u *Updater) getJSON(ctx context.Context, uri string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if u.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.cfg.Token)
	}
	res, err := u.c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("gitrepo: unexpected response: %s", res.Status)
	}
	return json.NewDecoder(res.Body).Decode(v)
}
