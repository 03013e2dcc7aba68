package libmirror

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stackrook/vulnmirror/updater/attackerkb"
	"github.com/stackrook/vulnmirror/updater/cnnvd"
	"github.com/stackrook/vulnmirror/updater/driver"
	"github.com/stackrook/vulnmirror/updater/gitrepo"
	"github.com/stackrook/vulnmirror/updater/nvd"
)

const (
	DefaultUpdateInterval = 6 * time.Hour
)

// Options configures New.
type Options struct {
	// ConnString is the database Mirror will use.
	ConnString string
	// Migrations determines whether Mirror manages database migrations.
	Migrations bool
	// UpdateInterval is the tick between background sync passes. Zero means
	// DefaultUpdateInterval; background sync can be disabled outright.
	UpdateInterval time.Duration
	// DisableBackgroundSync skips starting the background manager. One-shot
	// ingestion through the returned Mirror still works.
	DisableBackgroundSync bool
	// Client is used for all upstream HTTP traffic driven through net/http.
	// A nil client uses http.DefaultClient.
	Client *http.Client

	// NVDAPIKey raises the NVD request allowance when set.
	NVDAPIKey string
	// ABKToken enables the AttackerKB adapter when set.
	ABKToken string
	// CNNVDRoot overrides the CNNVD API root; empty uses the production
	// endpoint. Set DisableCNNVD to skip the adapter entirely.
	CNNVDRoot    string
	DisableCNNVD bool
	// TemplateRepo names a forge-hosted template repository to watch.
	// Empty skips the adapter.
	TemplateRepo TemplateRepo
}

// TemplateRepo locates a template repository on a forge.
type TemplateRepo struct {
	Root  string
	Owner string
	Repo  string
	Path  string
	Token string
}

func (o *Options) parse(_ context.Context) error {
	if o.ConnString == "" {
		return fmt.Errorf("libmirror: no connection string provided")
	}
	if o.UpdateInterval == 0 {
		o.UpdateInterval = DefaultUpdateInterval
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	return nil
}

// Updaters constructs the adapter set the options describe.
func (o *Options) updaters() ([]driver.Updater, error) {
	var out []driver.Updater

	api, err := nvd.NewAPIUpdater(o.Client, nvd.APIConfig{Key: o.NVDAPIKey})
	if err != nil {
		return nil, err
	}
	out = append(out, api)

	if !o.DisableCNNVD {
		out = append(out, cnnvd.New(cnnvd.Config{Root: o.CNNVDRoot}))
	}
	if o.ABKToken != "" {
		out = append(out, attackerkb.New(attackerkb.Config{Token: o.ABKToken}))
	}
	if o.TemplateRepo.Owner != "" {
		u, err := gitrepo.New(o.Client, gitrepo.Config{
			Root:  o.TemplateRepo.Root,
			Owner: o.TemplateRepo.Owner,
			Repo:  o.TemplateRepo.Repo,
			Path:  o.TemplateRepo.Path,
			Token: o.TemplateRepo.Token,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
