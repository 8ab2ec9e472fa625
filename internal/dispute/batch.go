package dispute

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds ProcessBatch when no limit is given.
const DefaultBatchConcurrency = 4

// Decision acts on a freshly loaded dispute. It returns the dispute it ended
// with (d itself when it took no action).
type Decision func(ctx context.Context, d Dispute) (Dispute, error)

// BatchOptions tunes ProcessBatch.
type BatchOptions struct {
	Concurrency int
}

// BatchResult is the outcome of one pipeline. Stage is zero when the load failed.
type BatchResult struct {
	ID    string
	Stage Stage
	Err   error
}

// ProcessBatch runs an independent load-then-decide pipeline for every id.
// Pipelines share nothing: a failure in one never cancels another, so the
// returned slice has one result per id, in input order. A nil decide only loads.
func (e *Engine) ProcessBatch(ctx context.Context, ids []string, decide Decision, opts BatchOptions) []BatchResult {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	results := make([]BatchResult, len(ids))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = e.runPipeline(ctx, id, decide)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) runPipeline(ctx context.Context, id string, decide Decision) BatchResult {
	res := BatchResult{ID: id}

	d, err := e.Load(ctx, id)
	if err != nil {
		log.Printf("Batch: failed to load dispute %s: %v", id, err)
		res.Err = err
		return res
	}
	res.Stage = d.Stage()

	if decide == nil {
		return res
	}
	next, err := decide(ctx, d)
	if err != nil {
		log.Printf("Batch: decision failed for dispute %s in stage %s: %v", id, d.Stage(), err)
		res.Err = err
		return res
	}
	if next != nil {
		res.Stage = next.Stage()
	}
	return res
}
