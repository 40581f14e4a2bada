// Package delivery batches assembled documents into fixed-size chunks and
// submits them to a document store with bounded retry, partial-failure
// accounting and write-throughput index bracketing.
package delivery

import "context"

// Item is one document handed to the store: deterministic id, target index
// and a flat field body.
type Item struct {
	ID    string
	Index string
	Body  map[string]any
}

// ItemResult is the store's per-document outcome for one batch submission.
type ItemResult struct {
	ID  string
	OK  bool
	Err string
}

// IndexSettings carries the subset of index settings the engine tunes
// around a bulk run.
type IndexSettings struct {
	NumberOfReplicas int
	RefreshInterval  string
}

// DocumentStore is the store contract the engine consumes. Implementations
// own per-attempt timeouts; the engine owns chunking and retry.
type DocumentStore interface {
	// Ping verifies the store is reachable. Used as a fatal startup check.
	Ping(ctx context.Context) error

	// SubmitBatch submits one chunk. A non-nil error means the whole call
	// failed (transport-level) and nothing was indexed; otherwise the
	// returned slice carries one outcome per submitted item.
	SubmitBatch(ctx context.Context, items []Item) ([]ItemResult, error)

	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, settings IndexSettings) error
	UpdateIndexSettings(ctx context.Context, name string, settings IndexSettings) error
	RefreshIndex(ctx context.Context, name string) error
}
