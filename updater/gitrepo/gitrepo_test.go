package gitrepo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/updater/driver"
)

const templateYAML = `id: CVE-2023-0001

info:
  name: Cortex XDR Agent - Information Exposure
  severity: high
  description: An information exposure vulnerability in the Cortex XDR agent.
  classification:
    cve-id: CVE-2023-0001
  metadata:
    verified: true
  tags: cve,cve2023,exposure
`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/commits", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("since") == "" {
			t.Error("missing since parameter")
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"sha": "aaa"}, {"sha": "bbb"},
		})
	})
	// Both commits touch the same added file; one also removes another. A
	// file outside the watched path is noise to ignore.
	mux.HandleFunc("/repos/o/r/commits/aaa", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"filename": "http/cves/2023/CVE-2023-0001.yaml", "status": "added"},
				{"filename": "http/cves/2022/CVE-2022-9999.yaml", "status": "removed"},
				{"filename": "README.md", "status": "modified"},
			},
		})
	})
	mux.HandleFunc("/repos/o/r/commits/bbb", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"filename": "http/cves/2023/CVE-2023-0001.yaml", "status": "added"},
				{"filename": "http/cves/2022/CVE-2022-9999.yaml", "status": "removed"},
			},
		})
	})
	mux.HandleFunc("/repos/o/r/contents/http/cves/2023/CVE-2023-0001.yaml", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte(templateYAML)),
			"encoding": "base64",
		})
	})
	return httptest.NewServer(mux)
}

func TestFetchKB(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := testServer(t)
	defer srv.Close()

	u, err := New(srv.Client(), Config{
		Root:  srv.URL,
		Owner: "o",
		Repo:  "r",
		Path:  "http/cves",
	})
	if err != nil {
		t.Fatal(err)
	}
	ups, dels, fp, err := u.FetchKB(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if fp == "" {
		t.Error("expected a fingerprint")
	}

	// The duplicated (status, path) pairs collapse to one upsert and one
	// delete.
	if len(ups) != 1 {
		t.Fatalf("got %d upserts, want 1", len(ups))
	}
	kb := ups[0]
	if kb.Name != "CVE-2023-0001" || kb.Source != vulnmirror.KBSourceNucleiTemplate {
		t.Errorf("got: %+v", kb)
	}
	if !kb.Verified || kb.Type != vulnmirror.KBTypeExploit {
		t.Errorf("metadata lost: %+v", kb)
	}
	if kb.Path != "http/cves/2023/CVE-2023-0001.yaml" {
		t.Errorf("got path %q", kb.Path)
	}

	if len(dels) != 1 {
		t.Fatalf("got %d deletes, want 1", len(dels))
	}
	if dels[0] != (driver.KBDelete{Name: "CVE-2022-9999", Source: vulnmirror.KBSourceNucleiTemplate}) {
		t.Errorf("got: %+v", dels[0])
	}
}

func TestFetchKBUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/commits", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	u, err := New(srv.Client(), Config{Root: srv.URL, Owner: "o", Repo: "r"})
	if err != nil {
		t.Fatal(err)
	}
	prev := driver.Fingerprint("2023-01-01T00:00:00Z")
	_, _, fp, err := u.FetchKB(ctx, prev)
	if err != driver.Unchanged {
		t.Errorf("got: %v, want: %v", err, driver.Unchanged)
	}
	if fp != prev {
		t.Errorf("watermark must not advance: %q", fp)
	}
}

func TestNameFor(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"http/cves/2022/CVE-2022-9999.yaml": "CVE-2022-9999",
		"cves/cve-2021-44228.yml":           "CVE-2021-44228",
	} {
		if got := nameFor(in); got != want {
			t.Errorf("nameFor(%q): got %q, want %q", in, got, want)
		}
	}
}
