// Package monitor runs one release check over the configured
// repositories: fetch latest release, summarize, notify, commit state.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"relwatch/internal/config"
	"relwatch/internal/github"
	"relwatch/internal/summary"
	"relwatch/internal/telegram"
	"relwatch/pkg/logx"
)

// ReleaseSource yields the latest release of an "owner/repo" path.
type ReleaseSource interface {
	Latest(ctx context.Context, ownerRepo string) (github.Release, error)
}

// Summarizer condenses raw release notes. It reports failure through
// Summary.Unavailable rather than an error.
type Summarizer interface {
	Summarize(ctx context.Context, notes string) summary.Summary
}

// Notifier delivers rendered chunks and operator alerts.
type Notifier interface {
	SendRelease(ctx context.Context, chunks []string) error
	SendAlert(ctx context.Context, msg string)
}

// StateStore tracks the last release seen per display name.
type StateStore interface {
	LastSeen(name string) (int64, bool)
	MarkSeen(name string, id int64)
	Persist() error
}

type Outcome string

const (
	// OutcomeNotified: a new release was delivered and committed.
	OutcomeNotified Outcome = "notified"
	// OutcomeUpToDate: the latest release was already seen.
	OutcomeUpToDate Outcome = "up-to-date"
	// OutcomeNoReleases: the repository exists but has no releases.
	OutcomeNoReleases Outcome = "no-releases"
	// OutcomeRateLimited: the check was skipped until limits reset.
	OutcomeRateLimited Outcome = "rate-limited"
	// OutcomeFailed: the check or the delivery failed.
	OutcomeFailed Outcome = "failed"
)

// RepoResult is the outcome of checking one repository.
type RepoResult struct {
	Name    string
	Repo    string
	Outcome Outcome

	// Tag of the latest release when one was fetched.
	Tag string

	// Err is set for OutcomeFailed and OutcomeRateLimited.
	Err error
}

// Report summarizes one run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Results  []RepoResult
}

func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the results of repositories whose check failed.
func (r Report) Failed() []RepoResult {
	var out []RepoResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Monitor walks the repository list sequentially. One failing repository
// never blocks the rest of the run.
type Monitor struct {
	repos  []config.Repository
	source ReleaseSource
	sum    Summarizer
	notify Notifier
	state  StateStore
	log    logx.Logger
}

func New(repos []config.Repository, source ReleaseSource, sum Summarizer, notify Notifier, state StateStore, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		repos:  repos,
		source: source,
		sum:    sum,
		notify: notify,
		state:  state,
		log:    log,
	}
}

// Run checks every configured repository once. The returned error is
// fatal (state cannot be committed, or the context was cancelled);
// per-repository failures are reported in the Report instead.
func (m *Monitor) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Started: time.Now()}
	log := m.log.With(logx.String("run", rep.RunID))

	log.Info("run started", logx.Int("repos", len(m.repos)))

	for _, rc := range m.repos {
		if err := ctx.Err(); err != nil {
			rep.Duration = time.Since(rep.Started)
			return rep, fmt.Errorf("run interrupted: %w", err)
		}
		res, fatal := m.checkRepo(ctx, rc, log.With(logx.String("repo", rc.Name)))
		rep.Results = append(rep.Results, res)
		if fatal != nil {
			rep.Duration = time.Since(rep.Started)
			return rep, fatal
		}
	}

	rep.Duration = time.Since(rep.Started)
	log.Info("run finished",
		logx.Int("notified", rep.Count(OutcomeNotified)),
		logx.Int("up_to_date", rep.Count(OutcomeUpToDate)),
		logx.Int("no_releases", rep.Count(OutcomeNoReleases)),
		logx.Int("rate_limited", rep.Count(OutcomeRateLimited)),
		logx.Int("failed", rep.Count(OutcomeFailed)),
		logx.Duration("took", rep.Duration),
	)
	return rep, nil
}

// checkRepo processes one repository end to end. State is committed only
// after the notification is fully delivered, so an interrupted run
// re-notifies instead of losing a release. A non-nil fatal error aborts
// the whole run.
func (m *Monitor) checkRepo(ctx context.Context, rc config.Repository, log logx.Logger) (res RepoResult, fatal error) {
	res = RepoResult{Name: rc.Name, Repo: rc.Repo}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("panic: %v", r)
			log.Error("repo check panicked",
				logx.Any("panic", r),
				logx.Stack(logx.CaptureStack(3, 32)),
			)
		}
	}()

	last, known := m.state.LastSeen(rc.Name)

	rel, err := m.source.Latest(ctx, rc.Repo)
	switch {
	case errors.Is(err, github.ErrNoReleases):
		log.Info("no releases yet")
		res.Outcome = OutcomeNoReleases
		return res, nil
	case errors.Is(err, github.ErrRepoNotFound):
		log.Error("repository not found")
		m.notify.SendAlert(ctx, fmt.Sprintf("repository %s (%s) not found", rc.Name, rc.Repo))
		res.Outcome = OutcomeFailed
		res.Err = err
		return res, nil
	case errors.Is(err, github.ErrRateLimited):
		log.Warn("rate limited, skipping")
		res.Outcome = OutcomeRateLimited
		res.Err = err
		return res, nil
	case err != nil:
		log.Error("release check failed", logx.Err(err))
		m.notify.SendAlert(ctx, fmt.Sprintf("check %s failed: %v", rc.Name, err))
		res.Outcome = OutcomeFailed
		res.Err = err
		return res, nil
	}

	res.Tag = rel.TagName
	if known && rel.ID == last {
		log.Info("up to date", logx.String("tag", rel.TagName))
		res.Outcome = OutcomeUpToDate
		return res, nil
	}

	log.Info("new release", logx.String("tag", rel.TagName), logx.Int64("release_id", rel.ID))

	sum := m.sum.Summarize(ctx, rel.Body)
	if sum.Unavailable {
		log.Warn("summary unavailable, falling back to raw notes", logx.String("reason", sum.Reason))
	}

	chunks := telegram.ComposeRelease(rc.Name, rel, sum)
	if err := m.notify.SendRelease(ctx, chunks); err != nil {
		log.Error("notification delivery failed", logx.Err(err))
		m.notify.SendAlert(ctx, fmt.Sprintf("deliver %s release notice failed: %v", rc.Name, err))
		res.Outcome = OutcomeFailed
		res.Err = err
		return res, nil
	}

	m.state.MarkSeen(rc.Name, rel.ID)
	if err := m.state.Persist(); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res, fmt.Errorf("persist state after %s: %w", rc.Name, err)
	}

	log.Info("notification delivered",
		logx.String("tag", rel.TagName),
		logx.Int("chunks", len(chunks)),
	)
	res.Outcome = OutcomeNotified
	return res, nil
}
