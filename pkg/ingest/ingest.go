// Package ingest reads many inputs in parallel and combines them into one
// ensemble.
//
// Each input is parsed into its own ensemble, so no collection is ever
// shared between goroutines; the per-input ensembles are merged in job
// order afterwards.
package ingest

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/edbennett/meson-analysis/pkg/cache"
	"github.com/edbennett/meson-analysis/pkg/correlator"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

// DefaultConcurrency is used when Run is given a non-positive limit.
const DefaultConcurrency = 4

// Job is one input to ingest.
type Job struct {
	Name    string // label for diagnostics, defaults to Path
	Format  string
	Path    string
	Options reader.Options
}

func (j Job) label() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Path
}

// Result pairs a job with the ensemble parsed from it.
type Result struct {
	Job      Job
	Ensemble *correlator.Ensemble
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	onDone func(Job, error)
}

// WithProgress calls fn once per finished job, from the job's goroutine.
// Jobs skipped after a failure are not reported.
func WithProgress(fn func(job Job, err error)) RunOption {
	return func(c *runConfig) { c.onDone = fn }
}

// Run parses jobs with at most concurrency parsers in flight and returns
// the results in job order. The first failure cancels jobs not yet
// started; every failure that did happen is returned, aggregated.
func Run(ctx context.Context, loader cache.Loader, jobs []Job, concurrency int, opts ...RunOption) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	report := func(job Job, err error) {
		if rc.onDone != nil {
			rc.onDone(job, err)
		}
	}

	results := make([]Result, len(jobs))
	var (
		mu   sync.Mutex
		merr *multierror.Error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			e, err := loader.Read(job.Format, job.Path, job.Options)
			if err != nil {
				err = errors.Wrapf(err, "job %s", job.label())
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
				report(job, err)
				return err
			}

			results[i] = Result{Job: job, Ensemble: e}
			logger(job).WithFields(logrus.Fields{
				"job":         job.label(),
				"format":      job.Format,
				"records":     e.Len(),
				"ensemble_id": e.ID(),
			}).Info("job ingested")
			report(job, nil)
			return nil
		})
	}

	waitErr := g.Wait()
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return results, nil
}

// Combine merges the results, in order, into one frozen ensemble named
// source. Metadata conflicts between inputs are logged and the first value
// kept.
func Combine(source string, results []Result, opts ...correlator.BuilderOption) (*correlator.Ensemble, error) {
	ensembles := make([]*correlator.Ensemble, 0, len(results))
	for _, r := range results {
		ensembles = append(ensembles, r.Ensemble)
	}

	b, err := correlator.Merge(source, ensembles, opts...)
	if err != nil {
		return nil, err
	}
	return b.Freeze()
}

func logger(job Job) logrus.FieldLogger {
	if job.Options.Logger != nil {
		return job.Options.Logger
	}
	return logrus.StandardLogger()
}
