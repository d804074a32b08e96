package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"darts-lite/darts"
)

const (
	writeTimeout      = 5 * time.Second
	finishMaxAttempts = 5
	finishRetryDelay  = 200 * time.Millisecond
)

type job struct {
	name   string
	gameID string
	retry  bool
	run    func(ctx context.Context) error
}

// Writer hands ledger writes to a background goroutine so that gameplay never
// waits on the database. Writes run in submission order. A nil *Writer
// discards everything.
type Writer struct {
	svc    Service
	logger *zap.Logger
	queue  chan job

	stop      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
	retryWait time.Duration
}

func NewWriter(svc Service, size int, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 1024
	}
	w := &Writer{
		svc:       svc,
		logger:    logger.Named("ledger_writer"),
		queue:     make(chan job, size),
		stop:      make(chan struct{}),
		finished:  make(chan struct{}),
		retryWait: finishRetryDelay,
	}
	go w.run()
	return w
}

func (w *Writer) StartGame(meta GameMeta) {
	if w == nil {
		return
	}
	w.enqueue(job{name: "start_game", gameID: meta.GameID, run: func(ctx context.Context) error {
		return w.svc.StartGame(ctx, meta)
	}})
}

func (w *Writer) AppendThrow(gameID string, t darts.Throw) {
	if w == nil {
		return
	}
	w.enqueue(job{name: "append_throw", gameID: gameID, run: func(ctx context.Context) error {
		return w.svc.AppendThrow(ctx, gameID, t)
	}})
}

func (w *Writer) AppendEvent(gameID string, item EventItem) {
	if w == nil {
		return
	}
	w.enqueue(job{name: "append_event", gameID: gameID, run: func(ctx context.Context) error {
		return w.svc.AppendEvent(ctx, gameID, item)
	}})
}

// FinishGame is retried on failure; the write is idempotent.
func (w *Writer) FinishGame(r darts.Result) {
	if w == nil {
		return
	}
	j := job{name: "finish_game", gameID: r.GameID, retry: true, run: func(ctx context.Context) error {
		return w.svc.FinishGame(ctx, r)
	}}
	select {
	case <-w.stop:
		w.logger.Warn("writer closed, finish dropped", zap.String("game_id", r.GameID))
		return
	default:
	}
	select {
	case w.queue <- j:
	default:
		// queue full: wait in the background rather than stall the caller
		go func() {
			select {
			case w.queue <- j:
			case <-w.stop:
				w.logger.Warn("writer closed, finish dropped", zap.String("game_id", r.GameID))
			}
		}()
	}
}

func (w *Writer) enqueue(j job) {
	select {
	case <-w.stop:
		return
	default:
	}
	select {
	case w.queue <- j:
	default:
		w.logger.Warn("ledger queue full, write dropped",
			zap.String("op", j.name), zap.String("game_id", j.gameID))
	}
}

func (w *Writer) run() {
	defer close(w.finished)
	for {
		select {
		case j := <-w.queue:
			w.process(j)
		case <-w.stop:
			for {
				select {
				case j := <-w.queue:
					w.process(j)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) process(j job) {
	attempts := 1
	if j.retry {
		attempts = finishMaxAttempts
	}
	var err error
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = j.run(ctx)
		cancel()
		if err == nil {
			return
		}
		w.logger.Warn("ledger write failed",
			zap.String("op", j.name), zap.String("game_id", j.gameID),
			zap.Int("attempt", i), zap.Error(err))
		if i < attempts {
			w.sleep(time.Duration(i) * w.retryWait)
		}
	}
	w.logger.Error("ledger write abandoned",
		zap.String("op", j.name), zap.String("game_id", j.gameID), zap.Error(err))
}

func (w *Writer) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-w.stop:
	}
}

// Close stops accepting writes, drains what is queued and waits for the
// worker until ctx is done.
func (w *Writer) Close(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() { close(w.stop) })
	select {
	case <-w.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
