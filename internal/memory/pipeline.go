package memory

import (
	"context"
	"log/slog"
	"sync"
)

// defaultEventBuffer bounds the capture queue. The recorder drops rather
// than blocks when the buffer is full, so this is the burst size a slow
// distiller can absorb before capture degrades.
const defaultEventBuffer = 256

// Pipeline connects a Recorder's event stream to the Distiller and Store:
// one consumer goroutine drains the buffered event channel in FIFO order,
// distills each event, and appends the resulting record. Distillation or
// append failures are logged and the event dropped; capture must never
// propagate an error back into a conversation turn.
type Pipeline struct {
	events    chan MemoryEvent
	distiller *Distiller
	store     *Store

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewPipeline builds a Pipeline over a distiller and store. bufferSize <= 0
// selects the default.
func NewPipeline(distiller *Distiller, store *Store, bufferSize int) *Pipeline {
	if bufferSize <= 0 {
		bufferSize = defaultEventBuffer
	}
	return &Pipeline{
		events:    make(chan MemoryEvent, bufferSize),
		distiller: distiller,
		store:     store,
		done:      make(chan struct{}),
	}
}

// Sink returns the channel to hand to RecorderConfig.Sink.
func (p *Pipeline) Sink() chan<- MemoryEvent {
	return p.events
}

// Start launches the consumer goroutine. Subsequent calls are no-ops. The
// goroutine exits when ctx is cancelled or Stop closes the event channel,
// after which Wait returns.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.run(ctx)
	})
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.events:
			if !ok {
				return
			}
			p.consume(ctx, event)
		}
	}
}

func (p *Pipeline) consume(ctx context.Context, event MemoryEvent) {
	record, err := p.distiller.Distill(ctx, event)
	if err != nil {
		slog.Warn("memory_distill_failed",
			slog.String("event_id", event.EventID.String()),
			slog.String("error", err.Error()))
		return
	}
	if err := p.store.Append(record); err != nil {
		slog.Warn("memory_append_failed",
			slog.String("record_id", record.RecordID.String()),
			slog.String("error", err.Error()))
	}
}

// Stop closes the event channel so the consumer drains whatever is queued
// and exits. Safe to call more than once.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.events)
	})
}

// Wait blocks until the consumer goroutine has exited. Callers typically
// Stop then Wait during shutdown to flush queued captures.
func (p *Pipeline) Wait() {
	<-p.done
}
