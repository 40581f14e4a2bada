// Package pipeline orchestrates a full loader run: session discovery,
// decoding, analytics, document assembly and bulk delivery.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fitsearch/pipeline/pkg/bootstrap"
	"github.com/fitsearch/pipeline/pkg/delivery"
	"github.com/fitsearch/pipeline/pkg/document"
	"github.com/fitsearch/pipeline/pkg/domain/fit_parser"
	"github.com/fitsearch/pipeline/pkg/health"
)

// MaxFailureReasons bounds the per-session failure detail kept in the
// summary; the full detail lives in the failure log.
const MaxFailureReasons = 5

// SessionLog is the per-session run outcome.
type SessionLog struct {
	SessionID      string   `json:"session_id"`
	Records        int      `json:"records"`
	Produced       int      `json:"produced"`
	Delivered      int      `json:"delivered"`
	Failed         int      `json:"failed"`
	Error          string   `json:"error,omitempty"`
	FailureReasons []string `json:"failure_reasons,omitempty"`
}

// Summary is the aggregate machine-readable run outcome.
type Summary struct {
	RunID      string       `json:"run_id"`
	Sessions   []SessionLog `json:"sessions"`
	Submitted  int          `json:"submitted"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	ElapsedSec float64      `json:"elapsed_sec"`
}

// Runner wires one configured run end to end. Construct with NewRunner;
// all collaborators are explicit.
type Runner struct {
	cfg      *bootstrap.Config
	store    delivery.DocumentStore
	enricher *health.Enricher
	recorder delivery.FailureRecorder
	logger   *slog.Logger
}

// NewRunner builds a runner. enricher and recorder may be nil (enrichment
// disabled, no persisted failure log).
func NewRunner(cfg *bootstrap.Config, store delivery.DocumentStore, enricher *health.Enricher, recorder delivery.FailureRecorder, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, store: store, enricher: enricher, recorder: recorder, logger: logger}
}

// Run executes the pipeline. The only fatal path is the startup store
// check (and empty discovery); anything after that is recorded per session
// or per document and the run completes.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)

	// No point accumulating documents that cannot be delivered.
	if err := r.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("document store unreachable: %w", err)
	}

	files, err := discoverSessions(r.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .fit files found in %s", r.cfg.DataDir)
	}
	logger.Info("starting run", "sessions", len(files), "index", r.cfg.Index)

	engine := delivery.NewEngine(r.store, r.cfg.DeliveryOptions(), logger, r.recorder)
	if !r.cfg.SkipCreate {
		if err := engine.PrepareIndex(ctx); err != nil {
			return nil, fmt.Errorf("prepare index: %w", err)
		}
	}
	if !r.cfg.SkipRestore {
		// Restoration must run even when delivery reports failures.
		defer func() {
			if err := engine.RestoreIndex(context.WithoutCancel(ctx)); err != nil {
				logger.Error("failed to restore index settings", "error", err)
			}
		}()
	}

	assembler := &document.Assembler{
		HRZones:    r.cfg.HRZones,
		PowerZones: r.cfg.PowerZones,
		FTP:        r.cfg.FTP,
		Enricher:   r.enricher,
	}

	items := make(chan delivery.Item, r.cfg.ChunkSize)
	reportCh := make(chan *delivery.Report, 1)
	go func() {
		reportCh <- engine.Run(ctx, items)
	}()

	var mu sync.Mutex
	logs := make(map[string]*SessionLog, len(files))

	// Sessions share no mutable state and produce disjoint id spaces, so
	// they are the one safe concurrency boundary.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)
	for _, path := range files {
		g.Go(func() error {
			log := r.processSession(gctx, path, assembler, items, logger)
			mu.Lock()
			logs[log.SessionID] = log
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers record their own outcomes
	close(items)

	report := <-reportCh
	attributeFailures(logs, report)

	summary := &Summary{
		RunID:      runID,
		Submitted:  report.Submitted,
		Succeeded:  report.Succeeded,
		Failed:     report.Failed,
		ElapsedSec: time.Since(start).Seconds(),
	}
	for _, path := range files {
		summary.Sessions = append(summary.Sessions, *logs[sessionID(path)])
	}

	logger.Info("run complete",
		"submitted", summary.Submitted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed_sec", summary.ElapsedSec,
	)
	return summary, nil
}

// processSession decodes one file, assembles its documents and feeds them
// to delivery. Decode failures are recorded and skipped, never fatal to
// the batch.
func (r *Runner) processSession(ctx context.Context, path string, assembler *document.Assembler, items chan<- delivery.Item, logger *slog.Logger) *SessionLog {
	id := sessionID(path)
	log := &SessionLog{SessionID: id}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("skipping unreadable session", "session_id", id, "error", err)
		log.Error = err.Error()
		return log
	}

	session, err := fit_parser.Parse(data, id)
	if err != nil {
		logger.Warn("skipping session with no records", "session_id", id, "error", err)
		log.Error = err.Error()
		return log
	}
	log.Records = len(session.Samples)

	docs := assembler.Assemble(session)
	log.Produced = len(docs)
	logger.Debug("session assembled", "session_id", id, "documents", len(docs))

	for _, doc := range docs {
		select {
		case items <- delivery.Item{ID: doc.ID, Index: r.cfg.Index, Body: doc.Fields}:
		case <-ctx.Done():
			return log
		}
	}
	return log
}

// attributeFailures maps per-document failures back onto their sessions by
// stripping the trailing sample index from the document id.
func attributeFailures(logs map[string]*SessionLog, report *delivery.Report) {
	for _, f := range report.Failures {
		id := f.DocID
		if cut := strings.LastIndex(id, "-"); cut > 0 {
			id = id[:cut]
		}
		log, ok := logs[id]
		if !ok {
			continue
		}
		log.Failed++
		if len(log.FailureReasons) < MaxFailureReasons {
			log.FailureReasons = append(log.FailureReasons, fmt.Sprintf("%s: %s", f.DocID, f.Err))
		}
	}
	for _, log := range logs {
		log.Delivered = log.Produced - log.Failed
	}
}

func discoverSessions(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.fit"))
	if err != nil {
		return nil, fmt.Errorf("list fit files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func sessionID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
