package dataset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alexandersjoberg/sidekick/pkg/metric"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"
)

// ProgressReporter is told about each staged file and each job that
// succeeds. Reporting has no effect on the outcome of an upload.
type ProgressReporter interface {
	FileStaged(path, uploadID string)
	JobSucceeded(uploadID, path string)
}

type logReporter struct{}

func (logReporter) FileStaged(path, uploadID string) {
	log.Info().Msgf("File %s uploaded as %s", path, uploadID)
}

func (logReporter) JobSucceeded(uploadID, path string) {
	log.Info().Msgf("Job %s for file %s successfully saved", uploadID, path)
}

// StatusFunc fetches the state of every job in one call.
type StatusFunc func(ctx context.Context) ([]UploadJob, error)

// Poller tracks the jobs of one session across polls. It is not safe for
// concurrent use.
type Poller struct {
	session   *Session
	fetch     StatusFunc
	reporter  ProgressReporter
	succeeded mapset.Set[string]
	ongoing   bool
}

func NewPoller(session *Session, fetch StatusFunc, reporter ProgressReporter) *Poller {
	if reporter == nil {
		reporter = logReporter{}
	}
	return &Poller{
		session:   session,
		fetch:     fetch,
		reporter:  reporter,
		succeeded: mapset.NewThreadUnsafeSet[string](),
		ongoing:   true,
	}
}

// Update polls once. Every newly successful job is reported exactly once.
// Failed jobs are returned together as a *JobsFailedError after the whole
// response has been processed.
func (p *Poller) Update(ctx context.Context) error {
	jobs, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	metric.Incr(metric.UploadPollCount, nil)

	ongoing := false
	seen := make(map[string]struct{}, len(jobs))
	failed := make([]FailedJob, 0)
	for _, job := range jobs {
		path, ok := p.session.Jobs[job.ID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownJob, job.ID)
		}
		seen[job.ID] = struct{}{}
		switch job.Status {
		case StatusFailed:
			failed = append(failed, FailedJob{ID: job.ID, Path: path, Message: job.Message})
		case StatusSuccess:
			if p.succeeded.Add(job.ID) {
				p.reporter.JobSucceeded(job.ID, path)
				metric.Incr(metric.UploadJobOutcomeCount, metric.BuildTag(metric.NewTag(metric.TagJobStatus, string(job.Status))))
			}
		case StatusProcessing, StatusPending:
			ongoing = true
		default:
			return fmt.Errorf("%w: %q for upload %s", ErrInvalidStatus, job.Status, job.ID)
		}
	}
	// a job the API does not list yet has not finished
	for id := range p.session.Jobs {
		if _, ok := seen[id]; !ok && !p.succeeded.Contains(id) {
			ongoing = true
		}
	}
	p.ongoing = ongoing

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })
		for range failed {
			metric.Incr(metric.UploadJobOutcomeCount, metric.BuildTag(metric.NewTag(metric.TagJobStatus, string(StatusFailed))))
		}
		return &JobsFailedError{Jobs: failed}
	}
	return nil
}

// Ongoing reports whether the last poll left any job unfinished.
func (p *Poller) Ongoing() bool {
	return p.ongoing
}

// Succeeded returns the ids of every job seen succeeding so far, sorted.
func (p *Poller) Succeeded() []string {
	ids := p.succeeded.ToSlice()
	sort.Strings(ids)
	return ids
}

// Wait polls the session every PollInterval until all jobs have succeeded.
// It returns as soon as a poll reports a failed job.
func (c *Client) Wait(ctx context.Context, session *Session) error {
	poller := NewPoller(session, func(ctx context.Context) ([]UploadJob, error) {
		return c.GetStatus(ctx, session.WrapperID)
	}, c.reporter)
	for {
		if err := poller.Update(ctx); err != nil {
			return err
		}
		if !poller.Ongoing() {
			return nil
		}
		log.Debug().Msgf("%d of %d jobs done for dataset wrapper %s",
			len(poller.Succeeded()), len(session.Jobs), session.WrapperID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}
