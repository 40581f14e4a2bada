package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitsearch/pipeline/pkg/bootstrap"
	"github.com/fitsearch/pipeline/pkg/delivery"
	"github.com/fitsearch/pipeline/pkg/pipeline"
	"github.com/fitsearch/pipeline/pkg/testing/mocks"
)

func writeFitFile(t *testing.T, dir, name string, start time.Time, count int) {
	t.Helper()

	fit := &proto.FIT{}
	fileId := mesgdef.NewFileId(nil).
		SetType(typedef.FileActivity).
		SetManufacturer(typedef.ManufacturerDevelopment).
		SetProduct(1).
		SetTimeCreated(start)
	fit.Messages = append(fit.Messages, fileId.ToMesg(nil))

	for i := 0; i < count; i++ {
		rec := mesgdef.NewRecord(nil).
			SetTimestamp(start.Add(time.Duration(i) * time.Second)).
			SetHeartRate(uint8(130 + i)).
			SetPower(uint16(200))
		fit.Messages = append(fit.Messages, rec.ToMesg(nil))
	}

	var buf bytes.Buffer
	require.NoError(t, encoder.New(&buf).Encode(fit))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func testConfig(dir string) *bootstrap.Config {
	cfg := bootstrap.LoadConfig()
	cfg.DataDir = dir
	cfg.ChunkSize = 4
	cfg.Parallelism = 2
	cfg.InitialBackoff = bootstrap.Duration(time.Millisecond)
	cfg.MaxBackoff = bootstrap.Duration(2 * time.Millisecond)
	return cfg
}

type capturingStore struct {
	mocks.MockDocumentStore
	mu    sync.Mutex
	items []delivery.Item
}

func (s *capturingStore) SubmitBatch(ctx context.Context, items []delivery.Item) ([]delivery.ItemResult, error) {
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
	results := make([]delivery.ItemResult, len(items))
	for i, item := range items {
		results[i] = delivery.ItemResult{ID: item.ID, OK: true}
	}
	return results, nil
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	writeFitFile(t, dir, "morning-ride.fit", start, 6)
	writeFitFile(t, dir, "evening-ride.fit", start.Add(8*time.Hour), 3)
	// A file the decoder rejects: recorded, skipped, never fatal.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.fit"), []byte("not fit data"), 0o644))

	store := &capturingStore{}
	runner := pipeline.NewRunner(testConfig(dir), store, nil, nil, discard())

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Submitted)
	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Sessions, 3)

	bySession := map[string]pipeline.SessionLog{}
	for _, s := range summary.Sessions {
		bySession[s.SessionID] = s
	}

	assert.Equal(t, 6, bySession["morning-ride"].Produced)
	assert.Equal(t, 6, bySession["morning-ride"].Delivered)
	assert.Equal(t, 3, bySession["evening-ride"].Produced)
	corrupt := bySession["corrupt"]
	assert.Equal(t, 0, corrupt.Produced)
	assert.NotEmpty(t, corrupt.Error)

	// Ids are {session_id}-{index} and the id space is disjoint by session.
	ids := map[string]bool{}
	for _, item := range store.items {
		ids[item.ID] = true
		assert.Equal(t, "fit-data", item.Index)
	}
	assert.True(t, ids["morning-ride-0"])
	assert.True(t, ids["morning-ride-5"])
	assert.True(t, ids["evening-ride-2"])
	assert.Len(t, ids, 9)
}

func TestRun_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeFitFile(t, dir, "ride.fit", time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC), 5)

	runOnce := func() string {
		store := &capturingStore{}
		runner := pipeline.NewRunner(testConfig(dir), store, nil, nil, discard())
		_, err := runner.Run(context.Background())
		require.NoError(t, err)

		sort.Slice(store.items, func(i, j int) bool { return store.items[i].ID < store.items[j].ID })
		encoded, err := json.Marshal(store.items)
		require.NoError(t, err)
		return string(encoded)
	}

	assert.Equal(t, runOnce(), runOnce())
}

func TestRun_StoreUnreachableIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFitFile(t, dir, "ride.fit", time.Now().UTC(), 2)

	store := &mocks.MockDocumentStore{
		PingFunc: func(ctx context.Context) error { return errors.New("connection refused") },
	}
	runner := pipeline.NewRunner(testConfig(dir), store, nil, nil, discard())

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestRun_NoFiles(t *testing.T) {
	runner := pipeline.NewRunner(testConfig(t.TempDir()), &mocks.MockDocumentStore{}, nil, nil, discard())
	_, err := runner.Run(context.Background())
	require.Error(t, err)
}

func TestRun_PartialFailuresAttributedToSession(t *testing.T) {
	dir := t.TempDir()
	writeFitFile(t, dir, "ride.fit", time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC), 4)

	store := &mocks.MockDocumentStore{
		SubmitBatchFunc: func(ctx context.Context, items []delivery.Item) ([]delivery.ItemResult, error) {
			results := make([]delivery.ItemResult, len(items))
			for i, item := range items {
				ok := item.ID != "ride-2"
				r := delivery.ItemResult{ID: item.ID, OK: ok}
				if !ok {
					r.Err = "mapper_parsing_exception"
				}
				results[i] = r
			}
			return results, nil
		},
	}

	runner := pipeline.NewRunner(testConfig(dir), store, nil, nil, discard())
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Submitted)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	require.Len(t, summary.Sessions, 1)
	session := summary.Sessions[0]
	assert.Equal(t, "ride", session.SessionID)
	assert.Equal(t, 4, session.Produced)
	assert.Equal(t, 3, session.Delivered)
	assert.Equal(t, 1, session.Failed)
	require.Len(t, session.FailureReasons, 1)
	assert.Contains(t, session.FailureReasons[0], "ride-2")
}

func TestRun_RestoresIndexEvenAfterFailures(t *testing.T) {
	dir := t.TempDir()
	writeFitFile(t, dir, "ride.fit", time.Now().UTC(), 2)

	var restored, refreshed bool
	store := &mocks.MockDocumentStore{
		IndexExistsFunc: func(ctx context.Context, name string) (bool, error) { return true, nil },
		SubmitBatchFunc: func(ctx context.Context, items []delivery.Item) ([]delivery.ItemResult, error) {
			return nil, errors.New("store exploded")
		},
		UpdateIndexSettingsFunc: func(ctx context.Context, name string, s delivery.IndexSettings) error {
			if s.RefreshInterval == "1s" {
				restored = true
			}
			return nil
		},
		RefreshIndexFunc: func(ctx context.Context, name string) error { refreshed = true; return nil },
	}

	cfg := testConfig(dir)
	cfg.MaxRetries = 1
	runner := pipeline.NewRunner(cfg, store, nil, nil, discard())

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Failed)
	assert.True(t, restored, "index settings must be restored after a failed run")
	assert.True(t, refreshed)
}
