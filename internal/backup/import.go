package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/hostapi"
	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/storage"
)

// EscalationPolicy decides whether a failed asset restore aborts the whole
// import or merely degrades it. The asymmetry exists because a deployment
// without any write path cannot degrade safely: the asset would be lost
// without a trace.
type EscalationPolicy int

const (
	// EscalateAuto escalates only failures caused by a missing write path.
	EscalateAuto EscalationPolicy = iota
	// EscalateNever always degrades: skip the asset and continue.
	EscalateNever
	// EscalateAlways turns any asset restore failure into a pipeline failure.
	EscalateAlways
)

// ImportOptions controls the import transform.
type ImportOptions struct {
	// PreserveAccount keeps the live account instead of the archived one.
	PreserveAccount bool

	Escalation EscalationPolicy
}

// Import merges an opened archive into the live database. Characters,
// their ordering, and (optionally) the account are taken from the live
// database; everything else comes from the archive, with asset references
// rewritten to the keys the host assigned on restore. The database is
// written exactly once, at the end.
//
// There is no rollback across the asset write loop: a failure after the
// first successful asset write can leave orphaned blobs in storage. That
// is reported, not hidden.
func Import(ctx context.Context, h hostapi.Host, a *Archive, opts ImportOptions) (*Report, error) {
	live, err := h.GetDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings database: %w", err)
	}

	report := &Report{Warnings: append([]string(nil), a.Warnings...)}
	shim := h.Assets()
	snapDB := a.Snapshot.DB.Clone()

	type restoredRef struct {
		ModuleID string
		Ref      hostapi.AssetRef
	}
	var restored []restoredRef

	for _, asset := range a.ModuleAssets {
		key, err := restoreBlob(ctx, h, shim, assetFileName(asset.AssetID, asset.Ext), asset.Data)
		if err != nil {
			if shouldEscalate(opts.Escalation, err) {
				return report, fmt.Errorf("restore module asset %s/%s: %w", asset.ModuleID, asset.AssetID, err)
			}
			report.skip(asset.ModuleID+"/"+asset.AssetID, err)
			continue
		}
		restored = append(restored, restoredRef{
			ModuleID: asset.ModuleID,
			Ref:      hostapi.AssetRef{ID: asset.AssetID, Key: key, Ext: asset.Ext},
		})
		report.AssetsRestored++
	}

	grouped := lo.GroupBy(restored, func(r restoredRef) string { return r.ModuleID })
	for i := range snapDB.Modules {
		refs, ok := grouped[snapDB.Modules[i].ID]
		if !ok {
			// Modules with nothing recovered keep their stripped state.
			continue
		}
		snapDB.Modules[i].Assets = lo.Map(refs, func(r restoredRef, _ int) hostapi.AssetRef { return r.Ref })
	}

	for _, icon := range a.PersonaIcons {
		if icon.Index >= len(snapDB.Personas) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("persona-%d icon has no matching persona in snapshot", icon.Index))
			continue
		}
		key, err := restoreBlob(ctx, h, shim, fmt.Sprintf("persona-%d%s", icon.Index, dotExt(icon.Ext)), icon.Data)
		if err != nil {
			if shouldEscalate(opts.Escalation, err) {
				return report, fmt.Errorf("restore persona-%d icon: %w", icon.Index, err)
			}
			report.skip(fmt.Sprintf("persona-%d", icon.Index), err)
			continue
		}
		snapDB.Personas[icon.Index].Icon = key
		report.AssetsRestored++
	}

	if a.Background != nil {
		key, err := restoreBlob(ctx, h, shim, backgroundBaseName+dotExt(a.Background.Ext), a.Background.Data)
		if err != nil {
			if shouldEscalate(opts.Escalation, err) {
				return report, fmt.Errorf("restore custom background: %w", err)
			}
			report.skip("custom-background", err)
		} else {
			snapDB.CustomBackground = key
			report.AssetsRestored++
		}
	}

	// Characters and their ordering are never transported; the live values
	// always win. The account is spliced back only on request, and only if
	// one actually exists.
	snapDB.Characters = live.Characters
	snapDB.CharacterOrder = live.CharacterOrder
	if opts.PreserveAccount && live.Account != nil {
		snapDB.Account = live.Account
	}

	if err := h.SetDatabase(ctx, snapDB); err != nil {
		return report, fmt.Errorf("commit settings database: %w", err)
	}
	return report, nil
}

// restoreBlob writes an asset through the host's save primitive, falling
// back to the shim's direct write where the deployment supports it. The
// returned key is whatever the write path assigned.
func restoreBlob(ctx context.Context, h hostapi.Host, shim *storage.Shim, name string, data []byte) (string, error) {
	key, err := h.SaveAsset(ctx, name, data)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, storage.ErrWriteUnsupported) {
		return "", err
	}
	if !shim.CanWrite() {
		return "", err
	}

	key = "assets/" + uuid.NewString() + dotExt(extFromKey(name))
	if setErr := shim.SetItem(ctx, key, data); setErr != nil {
		return "", setErr
	}
	return key, nil
}

func shouldEscalate(policy EscalationPolicy, err error) bool {
	switch policy {
	case EscalateAlways:
		return true
	case EscalateNever:
		return false
	default:
		return errors.Is(err, storage.ErrWriteUnsupported)
	}
}
