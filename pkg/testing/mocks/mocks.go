// Package mocks provides shared test doubles for the pipeline's external
// collaborators.
package mocks

import (
	"context"

	"github.com/fitsearch/pipeline/pkg/delivery"
)

// MockDocumentStore implements delivery.DocumentStore with overridable
// function fields. Unset methods succeed: SubmitBatch acknowledges every
// item and the index operations return nil.
type MockDocumentStore struct {
	PingFunc                func(ctx context.Context) error
	SubmitBatchFunc         func(ctx context.Context, items []delivery.Item) ([]delivery.ItemResult, error)
	IndexExistsFunc         func(ctx context.Context, name string) (bool, error)
	CreateIndexFunc         func(ctx context.Context, name string, settings delivery.IndexSettings) error
	UpdateIndexSettingsFunc func(ctx context.Context, name string, settings delivery.IndexSettings) error
	RefreshIndexFunc        func(ctx context.Context, name string) error
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockDocumentStore) SubmitBatch(ctx context.Context, items []delivery.Item) ([]delivery.ItemResult, error) {
	if m.SubmitBatchFunc != nil {
		return m.SubmitBatchFunc(ctx, items)
	}
	results := make([]delivery.ItemResult, len(items))
	for i, item := range items {
		results[i] = delivery.ItemResult{ID: item.ID, OK: true}
	}
	return results, nil
}

func (m *MockDocumentStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.IndexExistsFunc != nil {
		return m.IndexExistsFunc(ctx, name)
	}
	return true, nil
}

func (m *MockDocumentStore) CreateIndex(ctx context.Context, name string, settings delivery.IndexSettings) error {
	if m.CreateIndexFunc != nil {
		return m.CreateIndexFunc(ctx, name, settings)
	}
	return nil
}

func (m *MockDocumentStore) UpdateIndexSettings(ctx context.Context, name string, settings delivery.IndexSettings) error {
	if m.UpdateIndexSettingsFunc != nil {
		return m.UpdateIndexSettingsFunc(ctx, name, settings)
	}
	return nil
}

func (m *MockDocumentStore) RefreshIndex(ctx context.Context, name string) error {
	if m.RefreshIndexFunc != nil {
		return m.RefreshIndexFunc(ctx, name)
	}
	return nil
}
