package archive

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kode4food/miniscript/internal/events"
	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/log"
)

// Runner collects run events from a hub consumer and hands each run to a
// Writer once it finishes
type Runner struct {
	consumer events.Consumer
	writer   *Writer
	pending  map[api.RunID]*Record
}

var (
	ErrConsumerRequired = errors.New("event consumer is required")
	ErrWriterRequired   = errors.New("archive writer is required")
)

// NewRunner creates a runner. It takes ownership of consumer
func NewRunner(consumer events.Consumer, writer *Writer) (*Runner, error) {
	if consumer == nil {
		return nil, ErrConsumerRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	return &Runner{
		consumer: consumer,
		writer:   writer,
		pending:  map[api.RunID]*Record{},
	}, nil
}

// Run archives runs until ctx is done or the hub closes. Runs that have
// not finished by then are dropped
func (r *Runner) Run(ctx context.Context) error {
	defer r.consumer.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-r.consumer.Receive():
			if !ok {
				return nil
			}
			r.record(ctx, ev)
		}
	}
}

func (r *Runner) record(ctx context.Context, ev *api.Event) {
	rec, ok := r.pending[ev.RunID]
	if !ok {
		if ev.Type != api.EventTypeRunStarted {
			return
		}
		rec = &Record{
			RunID:     ev.RunID,
			StartedAt: ev.Timestamp,
		}
		r.pending[ev.RunID] = rec
	}
	rec.Events = append(rec.Events, ev)

	switch ev.Type {
	case api.EventTypeRunCompleted, api.EventTypeRunFailed:
		delete(r.pending, ev.RunID)
		rec.FinishedAt = ev.Timestamp
		rec.Status = ev.Status
		rec.Value = ev.Value
		rec.Error = ev.Error
		if err := r.writer.Write(ctx, rec); err != nil {
			slog.Warn("Failed to archive run",
				log.RunID(ev.RunID),
				log.Error(err))
		}
	}
}
