package documents

import (
	"context"

	"firmaec/signing-portal/pkg/storage"
)

// StorageProvider wraps the object store with the documents' keying scheme:
// each document's bytes live under its storage path.
type StorageProvider struct {
	store storage.ObjectStore
}

func NewStorageProvider(store storage.ObjectStore) *StorageProvider {
	return &StorageProvider{store: store}
}

func (p *StorageProvider) Fetch(ctx context.Context, path string) ([]byte, error) {
	return p.store.Get(ctx, path)
}

func (p *StorageProvider) Store(ctx context.Context, path string, data []byte) error {
	return p.store.Put(ctx, path, data)
}
