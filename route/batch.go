package route

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// BatchOutcome is the result of one job in a batch. Exactly one of Result and
// Err is set.
type BatchOutcome struct {
	SourceID string
	Result   *Result
	Err      error
}

// DefaultBatchWorkers is used when RunBatch is called with workers <= 0.
const DefaultBatchWorkers = 4

// RunBatch runs the engine over jobs with at most workers runs in flight.
// Outcomes are returned in job order. A failed job does not stop the others;
// only context cancellation does, in which case the remaining jobs report
// ctx.Err().
func RunBatch(ctx context.Context, engine *Engine, jobs []RunInput, workers int) []BatchOutcome {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	outcomes := make([]BatchOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		outcomes[i].SourceID = job.SourceID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			res, err := engine.Run(job)
			if err != nil {
				log.Printf("[engine] %s: %v", job.SourceID, err)
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// BatchCounts tallies a batch by outcome.
type BatchCounts struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Failed  int `json:"failed"`
}

// CountOutcomes summarises outcomes.
func CountOutcomes(outcomes []BatchOutcome) BatchCounts {
	c := BatchCounts{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			c.Failed++
		case o.Result.Report != nil && o.Result.Report.Valid:
			c.Valid++
		default:
			c.Invalid++
		}
	}
	return c
}
