package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
)

// Job pairs a package with the orchestrator options used to build it.
// Each job should reference its own per-package Workspace — only the
// ArchiveCache and RepoRoot are process-wide shared resources (spec
// §5), and both are already serialized internally via advisory locks.
type Job struct {
	Opts    Options
	Package *bundle.Package
}

// RunMany runs jobs concurrently, bounded by limit (a limit <= 0 means
// unbounded), returning the first error encountered. Remaining jobs
// already in flight are allowed to finish; errgroup cancels the
// derived context so jobs that check ctx.Err() can stop early.
func RunMany(ctx context.Context, jobs []Job, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return New(job.Opts).Run(ctx, job.Package)
		})
	}
	return g.Wait()
}
