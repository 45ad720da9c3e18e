package results

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

const (
	defaultQueueSize = 256
	sinkTimeout      = 5 * time.Second
)

// Sink receives finished-game summaries: the leaderboard store, the event bus.
type Sink interface {
	Save(ctx context.Context, summary entity.Summary) error
}

// Recorder hands summaries to the sinks on its own goroutine so rooms never wait on I/O.
type Recorder struct {
	logger *slog.Logger
	sinks  []Sink
	queue  chan entity.Summary

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

func NewRecorder(logger *slog.Logger, queueSize int, sinks ...Sink) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Recorder{
		logger: logger.With("component", "results"),
		sinks:  sinks,
		queue:  make(chan entity.Summary, queueSize),
		done:   make(chan struct{}),
	}
}

// Record queues the summary. A full queue drops it with an error log.
func (that *Recorder) Record(summary entity.Summary) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.stopped {
		that.logger.Warn("recorder stopped, summary dropped", "room_id", summary.RoomID)
		return
	}

	select {
	case that.queue <- summary:
	default:
		that.logger.Error("results queue full, summary dropped", "room_id", summary.RoomID)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (that *Recorder) Run(ctx context.Context) error {
	defer close(that.done)

	for {
		select {
		case summary := <-that.queue:
			that.save(ctx, summary)
		case <-ctx.Done():
			that.stop()
			for summary := range that.queue {
				that.save(context.WithoutCancel(ctx), summary)
			}

			return nil
		}
	}
}

// Done is closed once Run has flushed the queue.
func (that *Recorder) Done() <-chan struct{} {
	return that.done
}

func (that *Recorder) stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stopped = true
	close(that.queue)
}

func (that *Recorder) save(ctx context.Context, summary entity.Summary) {
	log := that.logger.With("method", "save", "room_id", summary.RoomID)

	for _, sink := range that.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := sink.Save(sinkCtx, summary); err != nil {
			log.Error("failed to save summary", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
		cancel()
	}

	log.Debug("summary recorded", "outcome", summary.Outcome.Kind)
}
