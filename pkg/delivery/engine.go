package delivery

import (
	"context"
	"log/slog"
	"time"
)

// Default engine tuning, mirrored by the run configuration.
const (
	DefaultChunkSize      = 500
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
)

// Options configures one delivery run.
type Options struct {
	Index          string
	ChunkSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Failure records one document the store rejected or that exhausted its
// chunk's retries.
type Failure struct {
	DocID string `json:"doc_id"`
	Err   string `json:"error"`
}

// Report is the run outcome. A non-zero Failed count is reportable, not an
// error: the run always completes.
type Report struct {
	Submitted int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Failures  []Failure
}

// FailureRecorder persists per-document failures as they happen, keyed by
// document id, so an interrupted run still leaves a usable failure log.
type FailureRecorder interface {
	Record(docID, errMsg string)
}

// Engine drives chunked delivery of an unbounded document sequence. A failed
// chunk never aborts the run; it is counted and the engine moves on.
type Engine struct {
	store      DocumentStore
	opts       Options
	logger     *slog.Logger
	recorder   FailureRecorder
	configured bool
}

// NewEngine builds a delivery engine. Zero option fields fall back to the
// package defaults; recorder may be nil.
func NewEngine(store DocumentStore, opts Options, logger *slog.Logger, recorder FailureRecorder) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	return &Engine{store: store, opts: opts, logger: logger, recorder: recorder}
}

// Run consumes items until the channel closes and returns the aggregated
// report. Counters are accumulated by this single goroutine, so no locking
// is needed even when producers run in parallel.
func (e *Engine) Run(ctx context.Context, items <-chan Item) *Report {
	start := time.Now()
	report := &Report{}

	chunk := make([]Item, 0, e.opts.ChunkSize)
	for item := range items {
		chunk = append(chunk, item)
		if len(chunk) >= e.opts.ChunkSize {
			e.deliverChunk(ctx, chunk, report)
			chunk = chunk[:0]
		}
	}
	if len(chunk) > 0 {
		e.deliverChunk(ctx, chunk, report)
	}

	report.Elapsed = time.Since(start)
	e.logger.Info("bulk delivery finished",
		"submitted", report.Submitted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"elapsed", report.Elapsed,
	)
	return report
}

// deliverChunk submits one chunk, retrying whole-chunk transport failures
// with exponential backoff. Per-document rejections inside a successful call
// are recorded individually and not retried here; the store client owns any
// finer-grained retry policy.
func (e *Engine) deliverChunk(ctx context.Context, chunk []Item, report *Report) {
	report.Submitted += len(chunk)

	var results []ItemResult
	var err error
	for attempt := 0; ; attempt++ {
		results, err = e.store.SubmitBatch(ctx, chunk)
		if err == nil {
			break
		}
		if attempt >= e.opts.MaxRetries {
			e.logger.Error("chunk failed after retries exhausted",
				"chunk_size", len(chunk),
				"attempts", attempt+1,
				"error", err,
			)
			for _, item := range chunk {
				e.fail(report, item.ID, err.Error())
			}
			return
		}

		wait := e.backoff(attempt)
		e.logger.Warn("chunk submission failed, backing off",
			"attempt", attempt+1,
			"max_retries", e.opts.MaxRetries,
			"wait", wait,
			"error", err,
		)
		if !sleep(ctx, wait) {
			// Context cancelled mid-backoff: count the chunk as failed
			// and let the run wind down.
			for _, item := range chunk {
				e.fail(report, item.ID, ctx.Err().Error())
			}
			return
		}
	}

	for _, r := range results {
		if r.OK {
			report.Succeeded++
			continue
		}
		e.fail(report, r.ID, r.Err)
	}
}

func (e *Engine) fail(report *Report, docID, errMsg string) {
	report.Failed++
	report.Failures = append(report.Failures, Failure{DocID: docID, Err: errMsg})
	if e.recorder != nil {
		e.recorder.Record(docID, errMsg)
	}
}

// backoff computes min(max, initial * 2^attempt).
func (e *Engine) backoff(attempt int) time.Duration {
	wait := e.opts.InitialBackoff << uint(attempt)
	if wait <= 0 || wait > e.opts.MaxBackoff {
		return e.opts.MaxBackoff
	}
	return wait
}

// sleep waits for d or until ctx is done; reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// PrepareIndex tunes the target index for bulk write throughput: replicas
// off and refresh disabled, creating the index first when missing. The
// paired RestoreIndex only acts if this call configured the index.
func (e *Engine) PrepareIndex(ctx context.Context) error {
	bulkSettings := IndexSettings{NumberOfReplicas: 0, RefreshInterval: "-1"}

	exists, err := e.store.IndexExists(ctx, e.opts.Index)
	if err != nil {
		return err
	}
	if exists {
		if err := e.store.UpdateIndexSettings(ctx, e.opts.Index, bulkSettings); err != nil {
			return err
		}
		e.logger.Info("tuned existing index for bulk load", "index", e.opts.Index)
	} else {
		if err := e.store.CreateIndex(ctx, e.opts.Index, bulkSettings); err != nil {
			return err
		}
		e.logger.Info("created index with bulk load settings", "index", e.opts.Index)
	}
	e.configured = true
	return nil
}

// RestoreIndex reverts the bulk settings and forces a refresh so newly
// written documents become searchable. It must run even when the bulk run
// reported failures, and is a no-op when PrepareIndex never configured the
// index.
func (e *Engine) RestoreIndex(ctx context.Context) error {
	if !e.configured {
		return nil
	}
	settings := IndexSettings{NumberOfReplicas: 1, RefreshInterval: "1s"}
	if err := e.store.UpdateIndexSettings(ctx, e.opts.Index, settings); err != nil {
		return err
	}
	if err := e.store.RefreshIndex(ctx, e.opts.Index); err != nil {
		return err
	}
	e.logger.Info("restored index settings and refreshed", "index", e.opts.Index)
	return nil
}
