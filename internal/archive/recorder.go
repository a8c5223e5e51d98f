package archive

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/cheese-arena/internal/challenge"
	"github.com/park285/cheese-arena/internal/livegame"
	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

// Recorder queues records on a bounded channel and writes them to every sink
// from one worker goroutine. Enqueueing never blocks; overflow is dropped.
type Recorder struct {
	sinks        []Sink
	queue        chan Record
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	written atomic.Int64
	done    chan struct{}
}

func NewRecorder(buffer int, sinks ...Sink) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{
		sinks:        sinks,
		queue:        make(chan Record, buffer),
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
}

// RecordGame implements livegame.ResultSink.
func (r *Recorder) RecordGame(res livegame.Result) { r.enqueue(FromGame(res)) }

// RecordRoom implements challenge.RoomSink.
func (r *Recorder) RecordRoom(o challenge.Outcome) { r.enqueue(FromRoom(o)) }

func (r *Recorder) enqueue(rec Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		obslog.L().Warn("archive_drop", zap.String("kind", rec.Kind), zap.String("id", rec.ID()))
	}
}

// Run drains the queue until Close is called or ctx ends.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case rec, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(ctx, rec)
		case <-ctx.Done():
			return
		}
	}
}

// Close stops intake and waits for Run to flush what is queued.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) write(ctx context.Context, rec Record) {
	for _, s := range r.sinks {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
		err := s.Write(wctx, rec)
		cancel()
		if err != nil {
			obslog.L().Error("archive_error",
				zap.String("sink", s.Name()),
				zap.String("kind", rec.Kind),
				zap.String("id", rec.ID()),
				zap.Error(err),
			)
		}
	}
	r.written.Add(1)
	obslog.L().Debug("archive_write", zap.String("kind", rec.Kind), zap.String("id", rec.ID()))
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many records were handed to the sinks.
func (r *Recorder) Written() int64 { return r.written.Load() }
