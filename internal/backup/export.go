package backup

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/hostapi"
)

// ExportOptions controls the export transform.
type ExportOptions struct {
	// ExcludeAccount drops account credentials from the snapshot. This is
	// the default; including the account is an explicit operator choice.
	ExcludeAccount bool

	// Passphrase, when non-empty, seals the archive.
	Passphrase string

	// Now overrides the export timestamp. Zero means time.Now.
	Now time.Time
}

// SkippedAsset records one asset the pipeline had to leave behind.
type SkippedAsset struct {
	Ref    string
	Reason string
}

// Report summarizes a pipeline run. Per-asset failures land here rather
// than aborting the run.
type Report struct {
	AssetsExported int
	AssetsRestored int
	Skipped        []SkippedAsset
	Warnings       []string
}

func (r *Report) skip(ref string, err error) {
	r.Skipped = append(r.Skipped, SkippedAsset{Ref: ref, Reason: err.Error()})
}

// Export reads the live database, derives the trimmed snapshot, resolves
// every referenced binary asset through the storage shim, and serializes
// the archive. A single unresolvable asset degrades the archive; only
// failing to produce the archive at all is fatal.
func Export(ctx context.Context, h hostapi.Host, opts ExportOptions) ([]byte, string, *Report, error) {
	db, err := h.GetDatabase(ctx)
	if err != nil {
		return nil, "", nil, fmt.Errorf("read settings database: %w", err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	snap := NewSnapshot(db, opts.ExcludeAccount, now)

	report := &Report{}
	archive := &Archive{Snapshot: snap}
	shim := h.Assets()

	// Assets are enumerated from the untrimmed database: the snapshot no
	// longer knows about them.
	for _, module := range db.Modules {
		for _, ref := range module.Assets {
			data, err := shim.GetItem(ctx, ref.Key)
			if err != nil {
				report.skip(module.ID+"/"+ref.ID, err)
				continue
			}
			archive.ModuleAssets = append(archive.ModuleAssets, ModuleAsset{
				ModuleID: module.ID,
				AssetID:  ref.ID,
				Ext:      ref.Ext,
				Data:     data,
			})
			report.AssetsExported++
		}
	}

	for i, persona := range db.Personas {
		if !persona.HasLocalIcon() {
			continue
		}
		data, err := shim.GetItem(ctx, persona.Icon)
		if err != nil {
			report.skip(fmt.Sprintf("persona-%d", i), err)
			continue
		}
		archive.PersonaIcons = append(archive.PersonaIcons, PersonaIcon{
			Index: i,
			Ext:   extFromKey(persona.Icon),
			Data:  data,
		})
		report.AssetsExported++
	}

	if key := db.CustomBackground; key != "" && !strings.HasPrefix(key, "http://") && !strings.HasPrefix(key, "https://") {
		data, err := shim.GetItem(ctx, key)
		if err != nil {
			report.skip("custom-background", err)
		} else {
			archive.Background = &Background{Ext: extFromKey(key), Data: data}
			report.AssetsExported++
		}
	}

	raw, err := archive.Encode()
	if err != nil {
		return nil, "", nil, fmt.Errorf("produce archive: %w", err)
	}

	filename := snap.Filename()
	if opts.Passphrase != "" {
		raw, err = Seal(raw, opts.Passphrase)
		if err != nil {
			return nil, "", nil, fmt.Errorf("seal archive: %w", err)
		}
		filename += ".sealed"
	}

	return raw, filename, report, nil
}

// extFromKey guesses an asset's extension from its storage key, falling
// back to png which is what the host stores by default.
func extFromKey(key string) string {
	if ext := strings.TrimPrefix(path.Ext(key), "."); ext != "" {
		return ext
	}
	return "png"
}
