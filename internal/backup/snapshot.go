// Package backup implements the settings export/import pipelines: a ZIP
// archive bundling a JSON snapshot of the settings database together with
// the binary assets it references.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/hostapi"
)

const (
	// PluginName identifies archives produced by this tool.
	PluginName = "risu-backup"

	// ExportVersion is the archive format version. Bump the major on
	// breaking layout changes.
	ExportVersion = "2.1.0"
)

// Metadata keys injected into settings.json alongside the trimmed settings.
const (
	metaExportDate      = "exportDate"
	metaExportVersion   = "exportVersion"
	metaPluginName      = "pluginName"
	metaAccountExcluded = "accountExcluded"
)

// Meta is the export-only header carried inside settings.json. It is
// stripped again before the snapshot is committed on import.
type Meta struct {
	ExportDate      time.Time
	ExportVersion   string
	PluginName      string
	AccountExcluded bool
}

// CompatibleWith reports whether an archive produced under this metadata
// can be imported by a tool at currentVersion. Only a newer major is a
// hard incompatibility; an unparseable version is reported as an error so
// the operator can decide.
func (m Meta) CompatibleWith(currentVersion string) error {
	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("parse tool version %q: %w", currentVersion, err)
	}
	exported, err := semver.NewVersion(m.ExportVersion)
	if err != nil {
		return fmt.Errorf("archive has unrecognized export version %q: %w", m.ExportVersion, err)
	}
	if exported.Major() > current.Major() {
		return fmt.Errorf("archive format v%d is newer than supported v%d", exported.Major(), current.Major())
	}
	return nil
}

// Snapshot is the serialized backup unit: the trimmed settings database
// plus export metadata. It never embeds binary data; assets are referenced
// symbolically and travel in the archive's folders.
type Snapshot struct {
	Meta
	DB *hostapi.Database
}

// NewSnapshot derives a snapshot from the live database: characters and
// their ordering are always dropped (a separate subsystem owns them), the
// account is dropped unless the operator opted in, and per-module asset
// lists are stripped because assets travel in the archive, not inline.
func NewSnapshot(db *hostapi.Database, excludeAccount bool, now time.Time) *Snapshot {
	trimmed := db.Clone()
	trimmed.Characters = nil
	trimmed.CharacterOrder = nil
	if excludeAccount {
		trimmed.Account = nil
	}
	for i := range trimmed.Modules {
		trimmed.Modules[i].Assets = nil
	}

	return &Snapshot{
		Meta: Meta{
			ExportDate:      now.UTC(),
			ExportVersion:   ExportVersion,
			PluginName:      PluginName,
			AccountExcluded: excludeAccount,
		},
		DB: trimmed,
	}
}

// Filename returns the download name for this snapshot's archive:
// <plugin>-settings-v<major>-<ISO date>.zip.
func (s *Snapshot) Filename() string {
	major := "0"
	if v, err := semver.NewVersion(s.ExportVersion); err == nil {
		major = fmt.Sprintf("%d", v.Major())
	}
	return fmt.Sprintf("%s-settings-v%s-%s.zip", s.PluginName, major, s.ExportDate.Format("2006-01-02"))
}

// MarshalJSON flattens the metadata into the settings object.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	dbRaw, err := json.Marshal(s.DB)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(dbRaw, &out); err != nil {
		return nil, err
	}

	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = raw
		return nil
	}
	if err := set(metaExportDate, s.ExportDate.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := set(metaExportVersion, s.ExportVersion); err != nil {
		return nil, err
	}
	if err := set(metaPluginName, s.PluginName); err != nil {
		return nil, err
	}
	if err := set(metaAccountExcluded, s.AccountExcluded); err != nil {
		return nil, err
	}

	return json.Marshal(out)
}

// UnmarshalJSON pulls the metadata out of the settings object, leaving a
// database free of export-only fields. This is what "delete export
// metadata before commit" means structurally: the metadata never reaches
// the Database value at all.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("settings snapshot: %w", err)
	}

	*s = Snapshot{}
	if v, ok := raw[metaExportDate]; ok {
		var ts string
		if err := json.Unmarshal(v, &ts); err != nil {
			return fmt.Errorf("exportDate: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return fmt.Errorf("exportDate: %w", err)
		}
		s.ExportDate = parsed
		delete(raw, metaExportDate)
	}
	if v, ok := raw[metaExportVersion]; ok {
		if err := json.Unmarshal(v, &s.ExportVersion); err != nil {
			return fmt.Errorf("exportVersion: %w", err)
		}
		delete(raw, metaExportVersion)
	}
	if v, ok := raw[metaPluginName]; ok {
		if err := json.Unmarshal(v, &s.PluginName); err != nil {
			return fmt.Errorf("pluginName: %w", err)
		}
		delete(raw, metaPluginName)
	}
	if v, ok := raw[metaAccountExcluded]; ok {
		if err := json.Unmarshal(v, &s.AccountExcluded); err != nil {
			return fmt.Errorf("accountExcluded: %w", err)
		}
		delete(raw, metaAccountExcluded)
	}

	rest, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var db hostapi.Database
	if err := json.Unmarshal(rest, &db); err != nil {
		return err
	}
	s.DB = &db
	return nil
}
