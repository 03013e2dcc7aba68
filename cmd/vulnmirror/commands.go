package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/libmirror"
	"github.com/stackrook/vulnmirror/updater/attackerkb"
	"github.com/stackrook/vulnmirror/updater/cnnvd"
	"github.com/stackrook/vulnmirror/updater/driver"
	"github.com/stackrook/vulnmirror/updater/gitrepo"
	"github.com/stackrook/vulnmirror/updater/nvd"
	"github.com/stackrook/vulnmirror/updates"
)

var cveCmd = &cobra.Command{
	Use:   "cve",
	Short: "Ingest CVE records from an archive, the NVD API, or CNNVD",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("path")
		api, _ := cmd.Flags().GetBool("api")
		hours, _ := cmd.Flags().GetInt("hours")
		id, _ := cmd.Flags().GetString("id")
		cnnvdAPI, _ := cmd.Flags().GetBool("cnnvd-api")
		cnnvdRoot, _ := cmd.Flags().GetString("cnnvd-root")
		if path == "" && !api && id == "" && !cnnvdAPI {
			return fmt.Errorf("nothing to do; pass --path, --api, --id or --cnnvd-api")
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if path != "" {
			recs, err := nvd.LoadArchive(ctx, path)
			if err != nil {
				return err
			}
			if err := updates.IngestCVEs(ctx, store, recs); err != nil {
				return err
			}
		}
		if api || id != "" {
			u, err := nvd.NewAPIUpdater(nil, nvd.APIConfig{
				Key:    v.GetString("nvd_api_key"),
				Window: time.Duration(hours) * time.Hour,
				CVE:    id,
			})
			if err != nil {
				return err
			}
			m, err := updates.NewManager(ctx, store, []driver.Updater{u})
			if err != nil {
				return err
			}
			if err := m.Run(ctx); err != nil {
				return err
			}
		}
		if cnnvdAPI {
			u := cnnvd.New(cnnvd.Config{Root: cnnvdRoot})
			m, err := updates.NewManager(ctx, store, []driver.Updater{u})
			if err != nil {
				return err
			}
			if err := m.Run(ctx); err != nil {
				return err
			}
		}
		return nil
	},
}

var cweCmd = &cobra.Command{
	Use:   "cwe",
	Short: "Load the weakness catalog from a JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			return fmt.Errorf("--path is required")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var recs []vulnmirror.CWE
		if err := json.Unmarshal(raw, &recs); err != nil {
			return fmt.Errorf("decoding %q: %w", path, err)
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		return updates.LoadCWEs(ctx, store, recs)
	},
}

var cpeCmd = &cobra.Command{
	Use:   "cpe",
	Short: "Load the vendor/product dictionary from a file of CPE names",
	Long:  "The file carries one CPE 2.3 formatted string per line; blank lines and lines starting with '#' are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			return fmt.Errorf("--path is required")
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		var names []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			names = append(names, line)
		}
		if err := sc.Err(); err != nil {
			return err
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		return updates.LoadCPEs(ctx, store, names)
	},
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Run one knowledge-base pass",
	Long:  "Fetches AttackerKB topics when ABK_API_TOKEN is set, and template repository changes when --owner and --repo are given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		var us []driver.Updater
		if tok := v.GetString("abk_api_token"); tok != "" {
			us = append(us, attackerkb.New(attackerkb.Config{Token: tok}))
		}
		owner, _ := cmd.Flags().GetString("owner")
		repo, _ := cmd.Flags().GetString("repo")
		if owner != "" && repo != "" {
			root, _ := cmd.Flags().GetString("forge-root")
			watch, _ := cmd.Flags().GetString("watch-path")
			u, err := gitrepo.New(nil, gitrepo.Config{
				Root:  root,
				Owner: owner,
				Repo:  repo,
				Path:  watch,
			})
			if err != nil {
				return err
			}
			us = append(us, u)
		}
		if len(us) == 0 {
			return fmt.Errorf("no knowledge-base feeds configured")
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		m, err := updates.NewManager(ctx, store, us)
		if err != nil {
			return err
		}
		return m.Run(ctx)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the periodic sync loop until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		hours, _ := cmd.Flags().GetInt("hours")
		interval := syncInterval()
		if hours > 0 {
			interval = time.Duration(hours) * time.Hour
		}

		opts := &libmirror.Options{
			ConnString:            v.GetString("database_url"),
			Migrations:            true,
			UpdateInterval:        interval,
			DisableBackgroundSync: true,
			NVDAPIKey:             v.GetString("nvd_api_key"),
			ABKToken:              v.GetString("abk_api_token"),
		}
		owner, _ := cmd.Flags().GetString("owner")
		repo, _ := cmd.Flags().GetString("repo")
		if owner != "" && repo != "" {
			root, _ := cmd.Flags().GetString("forge-root")
			watch, _ := cmd.Flags().GetString("watch-path")
			opts.TemplateRepo = libmirror.TemplateRepo{
				Root:  root,
				Owner: owner,
				Repo:  repo,
				Path:  watch,
			}
		}
		m, err := libmirror.New(ctx, opts)
		if err != nil {
			return err
		}
		defer m.Close()

		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			if err := m.Sync(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "sync errors: %v\n", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
	},
}

func init() {
	cveCmd.Flags().String("path", "", "local NVD 1.1 gzip archive to ingest")
	cveCmd.Flags().Bool("api", false, "fetch from the NVD 2.0 API")
	cveCmd.Flags().Int("hours", 3, "modification window for --api")
	cveCmd.Flags().String("id", "", "fetch a single CVE by identifier")
	cveCmd.Flags().Bool("cnnvd-api", false, "fetch translations from the CNNVD API")
	cveCmd.Flags().String("cnnvd-root", "", "override the CNNVD API root")

	cweCmd.Flags().String("path", "", "JSON file of weakness catalog entries")
	cpeCmd.Flags().String("path", "", "file of CPE 2.3 formatted strings")

	for _, c := range []*cobra.Command{kbCmd, syncCmd} {
		c.Flags().String("owner", "", "template repository owner")
		c.Flags().String("repo", "", "template repository name")
		c.Flags().String("forge-root", "https://api.github.com", "forge API root")
		c.Flags().String("watch-path", "http/cves", "path filter inside the repository")
	}
	syncCmd.Flags().Int("hours", 0, "sync interval in hours (env SYNC_INTERVAL_HOURS)")
}
