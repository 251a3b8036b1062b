package backup

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

const (
	snapshotEntry      = "settings.json"
	moduleAssetsDir    = "module-assets"
	personaIconsDir    = "persona-icons"
	backgroundDir      = "custom-background"
	backgroundBaseName = "background"
)

// ErrMissingSnapshot marks an archive without a settings.json entry. There
// is nothing to recover from such an archive.
var ErrMissingSnapshot = errors.New("archive has no settings.json")

// ModuleAsset is one binary asset belonging to a module.
type ModuleAsset struct {
	ModuleID string
	AssetID  string
	Ext      string
	Data     []byte
}

// PersonaIcon is one persona's icon, addressed by the persona's position
// in the snapshot's personas list.
type PersonaIcon struct {
	Index int
	Ext   string
	Data  []byte
}

// Background is the custom background image. At most one per archive.
type Background struct {
	Ext  string
	Data []byte
}

// Archive is the decoded backup container.
type Archive struct {
	Snapshot     *Snapshot
	ModuleAssets []ModuleAsset
	PersonaIcons []PersonaIcon
	Background   *Background

	// Warnings collects entries that could not be decoded. They degrade
	// the archive, they do not invalidate it.
	Warnings []string
}

// EntryName returns the archive path for a module asset. If the asset id
// already carries the extension, it is not duplicated.
func (m ModuleAsset) EntryName() string {
	return path.Join(moduleAssetsDir, sanitizeSegment(m.ModuleID), assetFileName(m.AssetID, m.Ext))
}

// EntryName returns the archive path for a persona icon.
func (p PersonaIcon) EntryName() string {
	return path.Join(personaIconsDir, fmt.Sprintf("persona-%d%s", p.Index, dotExt(p.Ext)))
}

// EntryName returns the archive path for the background image.
func (b Background) EntryName() string {
	return path.Join(backgroundDir, backgroundBaseName+dotExt(b.Ext))
}

func assetFileName(assetID, ext string) string {
	name := sanitizeSegment(assetID)
	if ext != "" && strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(ext)) {
		return name
	}
	return name + dotExt(ext)
}

func dotExt(ext string) string {
	if ext == "" {
		return ""
	}
	return "." + ext
}

// sanitizeSegment keeps archive paths flat: ids must not smuggle in
// separators or relative components.
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// Encode serializes the archive: a pretty-printed settings.json plus one
// base64-encoded entry per asset. Base64 is strictly an archive-boundary
// representation; in memory assets stay raw bytes.
func (a *Archive) Encode() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	snapRaw, err := json.MarshalIndent(a.Snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode settings snapshot: %w", err)
	}
	w, err := zw.Create(snapshotEntry)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", snapshotEntry, err)
	}
	if _, err := w.Write(snapRaw); err != nil {
		return nil, fmt.Errorf("write %s: %w", snapshotEntry, err)
	}

	writeAsset := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		enc := base64.NewEncoder(base64.StdEncoding, w)
		if _, err := enc.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return enc.Close()
	}

	for _, m := range a.ModuleAssets {
		if err := writeAsset(m.EntryName(), m.Data); err != nil {
			return nil, err
		}
	}
	for _, p := range a.PersonaIcons {
		if err := writeAsset(p.EntryName(), p.Data); err != nil {
			return nil, err
		}
	}
	if a.Background != nil {
		if err := writeAsset(a.Background.EntryName(), a.Background.Data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// OpenArchive parses raw archive bytes. Sealed archives are decrypted
// first, which requires a passphrase. A missing settings.json or
// unparseable container is fatal; individual undecodable asset entries
// are collected as warnings instead.
func OpenArchive(raw []byte, passphrase string) (*Archive, error) {
	if IsSealed(raw) {
		var err error
		raw, err = Unseal(raw, passphrase)
		if err != nil {
			return nil, err
		}
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse archive: %w", err)
	}

	a := &Archive{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(f.Name)

		if name == snapshotEntry {
			data, err := readEntry(f)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", snapshotEntry, err)
			}
			var snap Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("parse %s: %w", snapshotEntry, err)
			}
			a.Snapshot = &snap
			continue
		}

		data, err := readAssetEntry(f)
		if err != nil {
			a.Warnings = append(a.Warnings, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		switch {
		case strings.HasPrefix(name, moduleAssetsDir+"/"):
			moduleID, assetID, ext, ok := parseModuleAssetPath(name)
			if !ok {
				a.Warnings = append(a.Warnings, fmt.Sprintf("%s: unrecognized module asset path", name))
				continue
			}
			a.ModuleAssets = append(a.ModuleAssets, ModuleAsset{ModuleID: moduleID, AssetID: assetID, Ext: ext, Data: data})

		case strings.HasPrefix(name, personaIconsDir+"/"):
			index, ext, ok := parsePersonaIconPath(name)
			if !ok {
				a.Warnings = append(a.Warnings, fmt.Sprintf("%s: unrecognized persona icon path", name))
				continue
			}
			a.PersonaIcons = append(a.PersonaIcons, PersonaIcon{Index: index, Ext: ext, Data: data})

		case strings.HasPrefix(name, backgroundDir+"/"):
			ext := strings.TrimPrefix(path.Ext(name), ".")
			a.Background = &Background{Ext: ext, Data: data}

		default:
			a.Warnings = append(a.Warnings, fmt.Sprintf("%s: unexpected entry ignored", name))
		}
	}

	if a.Snapshot == nil {
		return nil, ErrMissingSnapshot
	}
	return a, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readAssetEntry(f *zip.File) ([]byte, error) {
	raw, err := readEntry(f)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}
	return data, nil
}

// parseModuleAssetPath splits module-assets/<moduleId>/<assetId>.<ext>.
// The path alone is enough to rebuild the asset reference; the snapshot is
// not consulted.
func parseModuleAssetPath(name string) (moduleID, assetID, ext string, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 || parts[0] != moduleAssetsDir {
		return "", "", "", false
	}
	moduleID = parts[1]
	file := parts[2]
	ext = strings.TrimPrefix(path.Ext(file), ".")
	assetID = strings.TrimSuffix(file, path.Ext(file))
	if moduleID == "" || assetID == "" {
		return "", "", "", false
	}
	return moduleID, assetID, ext, true
}

// parsePersonaIconPath splits persona-icons/persona-<index>.<ext>.
func parsePersonaIconPath(name string) (index int, ext string, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] != personaIconsDir {
		return 0, "", false
	}
	file := parts[1]
	ext = strings.TrimPrefix(path.Ext(file), ".")
	base := strings.TrimSuffix(file, path.Ext(file))
	numStr, found := strings.CutPrefix(base, "persona-")
	if !found {
		return 0, "", false
	}
	index, err := strconv.Atoi(numStr)
	if err != nil || index < 0 {
		return 0, "", false
	}
	return index, ext, true
}
