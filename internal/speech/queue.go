package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/readaloud/internal/ulid"
)

// Policy decides what a new utterance does to the ones already waiting.
type Policy string

const (
	// PolicyQueue speaks utterances in arrival order.
	PolicyQueue Policy = "queue"
	// PolicyInterrupt cancels the utterance being spoken and drops pending
	// ones, so the newest request is heard immediately.
	PolicyInterrupt Policy = "interrupt"
)

// QueueConfig controls the speech queue.
type QueueConfig struct {
	Size         int    // pending utterances before new ones are dropped
	Policy       Policy // queue or interrupt
	SegmentChars int    // max runes per sink call, 0 for no limit
}

type queued struct {
	u   Utterance
	gen uint64
}

// Queue is a fire-and-forget front for a Sink. One worker goroutine drains
// it so utterances never overlap.
type Queue struct {
	sink Sink
	log  *slog.Logger
	cfg  QueueConfig

	mu            sync.Mutex
	ch            chan queued
	gen           uint64
	cancelCurrent context.CancelFunc
	stopped       bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(sink Sink, log *slog.Logger, cfg QueueConfig) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 32
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyQueue
	}
	return &Queue{
		sink: sink,
		log:  log.With("sink", sink.Name()),
		cfg:  cfg,
		ch:   make(chan queued, cfg.Size),
	}
}

// Start launches the worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case item, ok := <-q.ch:
				if !ok {
					return
				}
				q.speak(workerCtx, item)
			}
		}
	}()
}

// Stop cancels the utterance in progress and waits for the worker to exit.
// Enqueue after Stop is a no-op.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.ch)
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Enqueue schedules text to be spoken and returns at once. Blank text is
// ignored. The boolean is false when nothing was queued.
func (q *Queue) Enqueue(sessionID, text string, src Source) (Utterance, bool) {
	if strings.TrimSpace(text) == "" {
		return Utterance{}, false
	}
	u := Utterance{
		ID:        ulid.New(),
		SessionID: sessionID,
		Text:      text,
		Source:    src,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return Utterance{}, false
	}
	if q.cfg.Policy == PolicyInterrupt {
		q.interruptLocked()
	}
	select {
	case q.ch <- queued{u: u, gen: q.gen}:
		return u, true
	default:
		q.log.Warn("speech queue full, dropping utterance",
			"session_id", sessionID, "queue_size", q.cfg.Size)
		return Utterance{}, false
	}
}

// Cancel silences the current utterance and drops everything pending.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.stopped {
		q.interruptLocked()
	}
}

// Pending returns the number of utterances waiting to be spoken.
func (q *Queue) Pending() int {
	return len(q.ch)
}

func (q *Queue) interruptLocked() {
	q.gen++
	if q.cancelCurrent != nil {
		q.cancelCurrent()
		q.cancelCurrent = nil
	}
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

func (q *Queue) speak(ctx context.Context, item queued) {
	q.mu.Lock()
	if item.gen != q.gen {
		// Superseded by an interrupt after the worker picked it up.
		q.mu.Unlock()
		return
	}
	uctx, cancel := context.WithCancel(ctx)
	q.cancelCurrent = cancel
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		cancel()
		q.cancelCurrent = nil
		q.mu.Unlock()
	}()

	log := q.log.With("utterance_id", item.u.ID, "session_id", item.u.SessionID)
	segments := Segment(item.u.Text, q.cfg.SegmentChars)
	for i, seg := range segments {
		if uctx.Err() != nil {
			log.Debug("utterance interrupted", "part", i+1, "parts", len(segments))
			return
		}
		part := item.u
		part.Text = seg
		part.Part = i + 1
		part.Parts = len(segments)
		if len(segments) > 1 {
			part.ID = fmt.Sprintf("%s-%d", item.u.ID, i+1)
		}

		start := time.Now()
		if err := q.sink.Speak(uctx, part); err != nil {
			if uctx.Err() != nil {
				log.Debug("utterance interrupted", "part", i+1, "parts", len(segments))
				return
			}
			log.Error("speech failed", "part", i+1, "parts", len(segments), "error", err)
			return
		}
		log.Debug("spoke segment", "part", i+1, "parts", len(segments),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
