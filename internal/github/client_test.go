package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	gh "github.com/google/go-github/v62/github"

	"relwatch/pkg/logx"
)

func testClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	ghc := gh.NewClient(nil)
	bu, err := url.Parse(srvURL + "/")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	ghc.BaseURL = bu
	return &Client{
		gh:            ghc,
		log:           logx.Nop(),
		timeout:       2 * time.Second,
		retryBase:     time.Millisecond,
		retryMaxDelay: 5 * time.Millisecond,
	}
}

const releaseJSON = `{
  "id": 987654,
  "tag_name": "v1.4.0",
  "name": "v1.4.0 Hardening",
  "body": "## Changes\n- fixed things",
  "html_url": "https://github.com/o/r/releases/tag/v1.4.0",
  "published_at": "2024-05-06T10:00:00Z",
  "prerelease": true
}`

func TestLatestMapsReleaseFields(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r/releases/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, releaseJSON)
	}))
	defer srv.Close()

	rel, err := testClient(t, srv.URL).Latest(context.Background(), "o/r")
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if rel.ID != 987654 {
		t.Fatalf("ID = %d", rel.ID)
	}
	if rel.TagName != "v1.4.0" || !rel.Prerelease {
		t.Fatalf("TagName = %q, Prerelease = %v", rel.TagName, rel.Prerelease)
	}
	if rel.HTMLURL != "https://github.com/o/r/releases/tag/v1.4.0" {
		t.Fatalf("HTMLURL = %q", rel.HTMLURL)
	}
	if rel.PublishedAt.IsZero() {
		t.Fatal("PublishedAt is zero")
	}
}

func TestLatestInvalidPath(t *testing.T) {
	t.Parallel()
	c := testClient(t, "http://127.0.0.1:0")
	if _, err := c.Latest(context.Background(), "justaname"); err == nil {
		t.Fatal("expected error for path without slash")
	}
}

func TestLatest404RepoExistsMeansNoReleases(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/o/r/releases/latest":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
		case "/repos/o/r":
			fmt.Fprint(w, `{"id": 1, "full_name": "o/r"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Latest(context.Background(), "o/r")
	if !errors.Is(err, ErrNoReleases) {
		t.Fatalf("err = %v, want ErrNoReleases", err)
	}
}

func TestLatest404RepoMissing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Latest(context.Background(), "o/gone")
	if !errors.Is(err, ErrRepoNotFound) {
		t.Fatalf("err = %v, want ErrRepoNotFound", err)
	}
}

func TestLatest403IsRateLimited(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Latest(context.Background(), "o/r")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestLatestRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, releaseJSON)
	}))
	defer srv.Close()

	rel, err := testClient(t, srv.URL).Latest(context.Background(), "o/r")
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if rel.ID != 987654 {
		t.Fatalf("ID = %d", rel.ID)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestLatestGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Latest(context.Background(), "o/r")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNoReleases) || errors.Is(err, ErrRepoNotFound) {
		t.Fatalf("transient failure classified as terminal: %v", err)
	}
	if got := calls.Load(); got != maxAttempts {
		t.Fatalf("calls = %d, want %d", got, maxAttempts)
	}
}
