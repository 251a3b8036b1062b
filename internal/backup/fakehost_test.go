package backup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/hostapi"
	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/storage"
)

// memKV is an in-memory asset store for tests.
type memKV struct {
	items map[string][]byte

	GetItemFunc func(ctx context.Context, key string) ([]byte, error)
	SetItemFunc func(ctx context.Context, key string, data []byte) error
}

func newMemKV() *memKV {
	return &memKV{items: map[string][]byte{}}
}

func (m *memKV) GetItem(ctx context.Context, key string) ([]byte, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, key)
	}
	data, ok := m.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return data, nil
}

func (m *memKV) SetItem(ctx context.Context, key string, data []byte) error {
	if m.SetItemFunc != nil {
		return m.SetItemFunc(ctx, key, data)
	}
	m.items[key] = data
	return nil
}

func (m *memKV) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys, nil
}

// fakeHost is an in-memory Host. Zero value behavior is a working web-like
// host; Func fields override individual capabilities.
type fakeHost struct {
	deployment hostapi.Deployment
	db         *hostapi.Database
	store      *memKV
	saveSeq    int

	// noWritePath simulates a packaged-desktop install without an asset
	// store: SaveAsset fails and the shim cannot write either.
	noWritePath bool

	GetDatabaseFunc func(ctx context.Context) (*hostapi.Database, error)
	SetDatabaseFunc func(ctx context.Context, db *hostapi.Database) error
	SaveAssetFunc   func(ctx context.Context, name string, data []byte) (string, error)
}

func newFakeHost(db *hostapi.Database) *fakeHost {
	return &fakeHost{
		deployment: hostapi.DeploymentWeb,
		db:         db,
		store:      newMemKV(),
	}
}

func (f *fakeHost) Deployment() hostapi.Deployment {
	if f.deployment == "" {
		return hostapi.DeploymentWeb
	}
	return f.deployment
}

func (f *fakeHost) GetDatabase(ctx context.Context) (*hostapi.Database, error) {
	if f.GetDatabaseFunc != nil {
		return f.GetDatabaseFunc(ctx)
	}
	return f.db.Clone(), nil
}

func (f *fakeHost) SetDatabase(ctx context.Context, db *hostapi.Database) error {
	if f.SetDatabaseFunc != nil {
		return f.SetDatabaseFunc(ctx, db)
	}
	f.db = db
	return nil
}

func (f *fakeHost) SetDatabaseLite(ctx context.Context, patch map[string]json.RawMessage) error {
	for k, v := range patch {
		f.db.Extra[k] = v
	}
	return nil
}

func (f *fakeHost) SaveAsset(ctx context.Context, name string, data []byte) (string, error) {
	if f.SaveAssetFunc != nil {
		return f.SaveAssetFunc(ctx, name, data)
	}
	if f.noWritePath {
		return "", fmt.Errorf("save asset %s: %w", name, storage.ErrWriteUnsupported)
	}
	f.saveSeq++
	key := fmt.Sprintf("assets/restored-%d-%s", f.saveSeq, name)
	f.store.items[key] = data
	return key, nil
}

func (f *fakeHost) Assets() *storage.Shim {
	if f.noWritePath {
		return &storage.Shim{}
	}
	return &storage.Shim{KV: f.store}
}

func (f *fakeHost) Close() error { return nil }

// sampleDatabase builds a small but complete database: one module with one
// asset, one persona with a local icon, a custom background and an account.
func sampleDatabase() *hostapi.Database {
	return &hostapi.Database{
		Characters:     []json.RawMessage{json.RawMessage(`{"name":"keepme"}`)},
		CharacterOrder: []json.RawMessage{json.RawMessage(`"keepme"`)},
		Account:        json.RawMessage(`{"token":"x"}`),
		Modules: []hostapi.Module{{
			ID:     "m1",
			Name:   "Module One",
			Assets: []hostapi.AssetRef{{ID: "icon1", Key: "assets/icon1.png", Ext: "png"}},
		}},
		Personas:         []hostapi.Persona{{Name: "me", Icon: "assets/persona0.png"}},
		CustomBackground: "assets/bg.jpg",
		Extra: map[string]json.RawMessage{
			"theme":      json.RawMessage(`"dark"`),
			"maxContext": json.RawMessage(`4096`),
		},
	}
}

func seedSampleAssets(h *fakeHost) {
	h.store.items["assets/icon1.png"] = []byte("icon1-bytes")
	h.store.items["assets/persona0.png"] = []byte("persona0-bytes")
	h.store.items["assets/bg.jpg"] = []byte("bg-bytes")
}
