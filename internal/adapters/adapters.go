// Package adapters turns external label sources into tag records and imports them
// into a tag store.
package adapters

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

// DefaultConcurrency bounds how many producers run at once.
const DefaultConcurrency = 4

// Producer yields tag records from one source.
type Producer interface {
	Name() string
	Produce(ctx context.Context) ([]types.TagRecord, error)
}

// Result reports what one producer contributed.
type Result struct {
	Producer string          `json:"producer"`
	Produced int             `json:"produced"`
	Imported int             `json:"imported"`
	Rejected []tags.Rejected `json:"rejected,omitempty"`
	Err      error           `json:"-"`
}

// ProducerError wraps a failure from a named producer.
type ProducerError struct {
	Producer string
	Cause    error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer %s failed: %v", e.Producer, e.Cause)
}

func (e *ProducerError) Unwrap() error {
	return e.Cause
}

// ImportAll runs producers concurrently, normalizes their records and imports each
// batch. A failing producer is reported in its Result and does not stop the others.
// Results are returned in producer order.
func ImportAll(ctx context.Context, store tags.Store, producers []Producer, log *logger.Logger) []Result {
	log = logger.OrNop(log)
	results := make([]Result, len(producers))

	var g errgroup.Group
	g.SetLimit(DefaultConcurrency)
	for i, p := range producers {
		g.Go(func() error {
			results[i] = importOne(ctx, store, p, log)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func importOne(ctx context.Context, store tags.Store, p Producer, log *logger.Logger) Result {
	res := Result{Producer: p.Name()}

	raw, err := p.Produce(ctx)
	if err != nil {
		res.Err = &ProducerError{Producer: p.Name(), Cause: err}
		log.Warn().Err(err).Str("producer", p.Name()).Msg("producer failed")
		return res
	}
	res.Produced = len(raw)

	records, rejected := tags.Normalize(raw, p.Name())
	res.Rejected = rejected
	if len(rejected) > 0 {
		log.Debug().Str("producer", p.Name()).Int("rejected", len(rejected)).Msg("dropped invalid records")
	}

	n, err := store.Import(ctx, records)
	if err != nil {
		res.Err = &tags.StoreError{Op: "import " + p.Name(), Cause: err}
		log.Warn().Err(err).Str("producer", p.Name()).Msg("import failed")
		return res
	}
	res.Imported = n
	log.Info().Str("producer", p.Name()).Int("imported", n).Msg("producer imported")
	return res
}
