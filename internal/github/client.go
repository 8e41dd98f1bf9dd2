// Package github fetches the latest release of a repository through the
// GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"relwatch/pkg/logx"
)

// Release is the subset of a GitHub release the notification pipeline needs.
type Release struct {
	Repo        string
	ID          int64
	TagName     string
	Name        string
	Body        string
	HTMLURL     string
	PublishedAt time.Time
	Prerelease  bool
}

var (
	// ErrNoReleases means the repository exists but has published nothing.
	ErrNoReleases = errors.New("repository has no releases")
	// ErrRepoNotFound means the repository is missing or not accessible.
	ErrRepoNotFound = errors.New("repository not found")
	// ErrRateLimited means the API refused the request; retrying within the
	// same run would only burn more quota.
	ErrRateLimited = errors.New("github rate limited")
)

const (
	defaultTimeout = 15 * time.Second
	probeTimeout   = 10 * time.Second
	maxAttempts    = 3
)

type Client struct {
	gh  *gh.Client
	log logx.Logger

	timeout       time.Duration
	retryBase     time.Duration
	retryMaxDelay time.Duration
}

// New builds a client. token may be empty: unauthenticated requests work,
// with tighter rate limits. timeout bounds a single API call.
func New(ctx context.Context, token string, timeout time.Duration, log logx.Logger) *Client {
	var hc *http.Client
	if strings.TrimSpace(token) != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	ghc := gh.NewClient(hc)
	ghc.UserAgent = "relwatch/1.0"

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		gh:            ghc,
		log:           log,
		timeout:       timeout,
		retryBase:     4 * time.Second,
		retryMaxDelay: 10 * time.Second,
	}
}

// Latest returns the most recent release of ownerRepo ("owner/repo").
//
// Terminal conditions come back as sentinel errors: ErrNoReleases,
// ErrRepoNotFound, ErrRateLimited. Transient failures are retried up to
// maxAttempts before the last error is returned.
func (c *Client) Latest(ctx context.Context, ownerRepo string) (Release, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return Release{}, fmt.Errorf("invalid repository path %q", ownerRepo)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		rel, resp, err := c.gh.Repositories.GetLatestRelease(callCtx, owner, repo)
		cancel()
		if err == nil {
			return Release{
				Repo:        ownerRepo,
				ID:          rel.GetID(),
				TagName:     rel.GetTagName(),
				Name:        rel.GetName(),
				Body:        rel.GetBody(),
				HTMLURL:     rel.GetHTMLURL(),
				PublishedAt: rel.GetPublishedAt().Time,
				Prerelease:  rel.GetPrerelease(),
			}, nil
		}

		var rle *gh.RateLimitError
		var arle *gh.AbuseRateLimitError
		if errors.As(err, &rle) || errors.As(err, &arle) {
			return Release{}, fmt.Errorf("%s: %w", ownerRepo, ErrRateLimited)
		}
		if resp != nil {
			switch {
			case resp.StatusCode == http.StatusNotFound:
				return Release{}, c.resolveNotFound(ctx, owner, repo)
			case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
				return Release{}, fmt.Errorf("%s: %w", ownerRepo, ErrRateLimited)
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return Release{}, fmt.Errorf("%s: unexpected status %d: %w", ownerRepo, resp.StatusCode, err)
			}
		}

		lastErr = err
		c.log.Debug("release fetch failed",
			logx.String("repo", ownerRepo),
			logx.Int("attempt", attempt),
			logx.Err(err),
		)
		if attempt >= maxAttempts {
			break
		}
		if err := sleepCtx(ctx, c.retryDelay(attempt)); err != nil {
			return Release{}, err
		}
	}
	return Release{}, fmt.Errorf("fetch latest release for %s: %w", ownerRepo, lastErr)
}

// resolveNotFound decides what a 404 on releases/latest means: a repository
// without releases, or one that does not exist (or is not visible to us).
func (c *Client) resolveNotFound(ctx context.Context, owner, repo string) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, resp, err := c.gh.Repositories.Get(probeCtx, owner, repo)
	if err == nil {
		return fmt.Errorf("%s/%s: %w", owner, repo, ErrNoReleases)
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		c.log.Warn("repository existence probe failed",
			logx.String("repo", owner+"/"+repo),
			logx.Err(err),
		)
	}
	return fmt.Errorf("%s/%s: %w", owner, repo, ErrRepoNotFound)
}

func (c *Client) retryDelay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1), capped.
	d := c.retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.retryMaxDelay {
			d = c.retryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	j := 0.7 + rng.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > c.retryMaxDelay {
		d = c.retryMaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
