package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/storage"
)

const (
	localDatabaseFile = "database.json"
	localAssetsFile   = "assets.db"
)

// Local is the packaged-desktop host: a data directory holding the settings
// database as JSON next to a sqlite asset store. Desktop builds expose no
// direct database handle, so the asset store is the only strategy besides
// nothing.
type Local struct {
	dir string
	kv  *storage.SQLiteKV
}

// OpenLocal opens the desktop data directory. A missing asset store is not
// an error; it leaves the host without a write path, which imports must
// then treat as fatal per asset.
func OpenLocal(dir string) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open data directory: %s is not a directory", dir)
	}

	l := &Local{dir: dir}

	assetPath := filepath.Join(dir, localAssetsFile)
	if _, err := os.Stat(assetPath); err == nil {
		kv, err := storage.OpenSQLiteKV(assetPath)
		if err != nil {
			return nil, err
		}
		l.kv = kv
	}

	return l, nil
}

// Deployment identifies this host as a packaged desktop install.
func (l *Local) Deployment() Deployment { return DeploymentDesktop }

// GetDatabase reads the settings database from disk.
func (l *Local) GetDatabase(ctx context.Context) (*Database, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, localDatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("read settings database: %w", err)
	}
	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("parse settings database: %w", err)
	}
	return &db, nil
}

// SetDatabase writes the settings database atomically (write to a temp
// file, then rename).
func (l *Local) SetDatabase(ctx context.Context, db *Database) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings database: %w", err)
	}

	target := filepath.Join(l.dir, localDatabaseFile)
	tmp, err := os.CreateTemp(l.dir, localDatabaseFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("write settings database: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write settings database: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write settings database: %w", err)
	}
	return nil
}

// SetDatabaseLite merges the given top-level fields into the stored
// database.
func (l *Local) SetDatabaseLite(ctx context.Context, patch map[string]json.RawMessage) error {
	db, err := l.GetDatabase(ctx)
	if err != nil {
		return err
	}

	merged, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("encode settings database: %w", err)
	}
	var full map[string]json.RawMessage
	if err := json.Unmarshal(merged, &full); err != nil {
		return fmt.Errorf("re-read settings database: %w", err)
	}
	for k, v := range patch {
		full[k] = v
	}

	var out Database
	rawFull, err := json.Marshal(full)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rawFull, &out); err != nil {
		return fmt.Errorf("merge settings database: %w", err)
	}
	return l.SetDatabase(ctx, &out)
}

// SaveAsset stores the blob under a freshly minted storage key. The
// original filename only contributes its extension.
func (l *Local) SaveAsset(ctx context.Context, name string, data []byte) (string, error) {
	if l.kv == nil {
		return "", fmt.Errorf("save asset %s: %w", name, storage.ErrWriteUnsupported)
	}

	key := "assets/" + uuid.NewString()
	if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
		key += "." + ext
	}
	if err := l.kv.SetItem(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Assets returns the shim for this deployment: asset store only, no URL
// resolver, no direct database handle.
func (l *Local) Assets() *storage.Shim {
	shim := &storage.Shim{}
	if l.kv != nil {
		shim.KV = l.kv
	}
	return shim
}

// Close releases the asset store.
func (l *Local) Close() error {
	if l.kv != nil {
		return l.kv.Close()
	}
	return nil
}
