package engine

import (
	"context"

	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/eventloop"
	"github.com/jonathan/addrlens/internal/tags"
)

// Report is the outcome of annotating a static document once.
type Report struct {
	Annotations []dom.Annotation
	Stats       Stats
	// Degraded is set when the tag store could not be read and the document was
	// annotated without tags.
	Degraded bool
	StoreErr error
}

// storeOnly hides any Notifier so a one-shot engine never subscribes to changes.
type storeOnly struct {
	tags.Store
}

// AnnotateOnce runs a full engine over doc on a private virtual-time scheduler:
// the cache is loaded, the initial scan runs to completion and the engine is torn
// down again. doc holds the annotated markup afterwards. opts.OnAnnotate is
// chained, not replaced.
func AnnotateOnce(ctx context.Context, doc *dom.Document, store tags.Store, opts Options) Report {
	var report Report
	next := opts.OnAnnotate
	opts.OnAnnotate = func(a dom.Annotation) {
		report.Annotations = append(report.Annotations, a)
		if next != nil {
			next(a)
		}
	}

	sched := eventloop.NewManual()
	eng := New(doc, storeOnly{store}, sched, opts)
	if err := eng.Start(ctx); err != nil {
		report.Degraded = true
		report.StoreErr = err
	}
	sched.Flush()
	report.Stats = eng.Stats()
	eng.Stop()
	sched.Flush()
	return report
}
