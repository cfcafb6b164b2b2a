package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sink consumes batches of progress events. Consume may be called many times
// and must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes single events. Hub satisfies it; workers only see this.
type Emitter interface {
	Emit(evt Event)
}

// Reporter stamps run-scoped fields onto events before emitting them.
type Reporter struct {
	emitter Emitter
	runID   [16]byte
	site    string
	now     func() time.Time
}

// NewReporter binds emitter to a run. A nil emitter yields a Reporter that
// drops everything.
func NewReporter(emitter Emitter, runID uuid.UUID, site string) *Reporter {
	return &Reporter{
		emitter: emitter,
		runID:   UUIDToBytes(runID),
		site:    site,
		now:     time.Now,
	}
}

// Report fills RunID, TS and Site when unset and emits evt.
func (r *Reporter) Report(evt Event) {
	if r == nil || r.emitter == nil {
		return
	}
	evt.RunID = r.runID
	if evt.TS.IsZero() {
		evt.TS = r.now().UTC()
	}
	if evt.Site == "" {
		evt.Site = r.site
	}
	r.emitter.Emit(evt)
}
