package cnnvd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var keywords []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/homePage/cnnvdVulList" {
			http.NotFound(w, r)
			return
		}
		var req listRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var res listResponse
		res.Code = 200
		switch {
		case req.Keyword != "":
			keywords = append(keywords, req.Keyword)
			if req.Keyword == "CVE-2023-0002" {
				res.Data.Total = 1
				res.Data.Records = append(res.Data.Records, record("CNNVD-202301-002", "CVE-2023-0002", "一个越界写入漏洞"))
			}
		default:
			res.Data.Total = 2
			res.Data.Records = append(res.Data.Records,
				record("CNNVD-202301-001", "CVE-2023-0001", "一个信息泄露漏洞"),
				record("CNNVD-202301-003", "", "没有CVE编号"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&res)
	}))
	t.Cleanup(srv.Close)
	return srv, &keywords
}

func record(code, cve, desc string) (r struct {
	CNNVDCode string `json:"cnnvdCode"`
	CVECode   string `json:"cveCode"`
	VulName   string `json:"vulName"`
	VulDesc   string `json:"vulDesc"`
}) {
	r.CNNVDCode = code
	r.CVECode = cve
	r.VulDesc = desc
	return r
}

func TestFetchTranslations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv, keywords := testServer(t)

	u := New(Config{Root: srv.URL})
	got, err := u.FetchTranslations(ctx, []string{"CVE-2023-0001", "CVE-2023-0002", "CVE-2023-9999"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"CVE-2023-0001": "一个信息泄露漏洞",
		"CVE-2023-0002": "一个越界写入漏洞",
	}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
	// The recent window already covered CVE-2023-0001; only the other two
	// should have gone through keyword lookup.
	wantKw := []string{"CVE-2023-0002", "CVE-2023-9999"}
	if !cmp.Equal(*keywords, wantKw) {
		t.Error(cmp.Diff(*keywords, wantKw))
	}
}

func TestFetchTranslationsNonJSONResponse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	t.Cleanup(srv.Close)

	// A 200 that isn't the API's JSON is an error, not an empty window.
	u := New(Config{Root: srv.URL})
	if _, err := u.FetchTranslations(ctx, nil); err == nil {
		t.Error("expected an error from the unparseable body")
	}
}

func TestFetchTranslationsAPIError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&listResponse{Code: 401, Msg: "无权限"})
	}))
	t.Cleanup(srv.Close)

	u := New(Config{Root: srv.URL})
	if _, err := u.FetchTranslations(ctx, nil); err == nil {
		t.Error("expected an error from the upstream refusal")
	}
}
