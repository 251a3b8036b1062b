package backup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestNewSnapshotExclusions(t *testing.T) {
	snap := NewSnapshot(sampleDatabase(), true, testTime)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))

	assert.NotContains(t, m, "characters")
	assert.NotContains(t, m, "characterOrder")
	assert.NotContains(t, m, "account")
	assert.JSONEq(t, `true`, string(m["accountExcluded"]))
	assert.JSONEq(t, `"risu-backup"`, string(m["pluginName"]))
	assert.Contains(t, m, "exportDate")
	assert.Contains(t, m, "exportVersion")

	// Module asset lists travel in the archive, not inline.
	var modules []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(m["modules"], &modules))
	require.Len(t, modules, 1)
	assert.NotContains(t, modules[0], "assets")
}

func TestNewSnapshotIncludesAccountWhenRequested(t *testing.T) {
	snap := NewSnapshot(sampleDatabase(), false, testTime)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.JSONEq(t, `{"token":"x"}`, string(m["account"]))
	assert.JSONEq(t, `false`, string(m["accountExcluded"]))
}

func TestNewSnapshotDoesNotMutateSource(t *testing.T) {
	db := sampleDatabase()
	_ = NewSnapshot(db, true, testTime)

	assert.NotNil(t, db.Characters)
	assert.NotNil(t, db.Account)
	require.Len(t, db.Modules, 1)
	assert.Len(t, db.Modules[0].Assets, 1)
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := NewSnapshot(sampleDatabase(), true, testTime)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var back Snapshot
	require.NoError(t, json.Unmarshal(raw, &back))

	assert.Equal(t, snap.ExportDate, back.ExportDate)
	assert.Equal(t, ExportVersion, back.ExportVersion)
	assert.Equal(t, PluginName, back.PluginName)
	assert.True(t, back.AccountExcluded)

	// Metadata must not leak into the database's passthrough settings.
	assert.NotContains(t, back.DB.Extra, "exportDate")
	assert.NotContains(t, back.DB.Extra, "exportVersion")
	assert.NotContains(t, back.DB.Extra, "pluginName")
	assert.NotContains(t, back.DB.Extra, "accountExcluded")
	assert.Contains(t, back.DB.Extra, "theme")
}

func TestSnapshotFilename(t *testing.T) {
	snap := NewSnapshot(sampleDatabase(), true, testTime)
	assert.Equal(t, "risu-backup-settings-v2-2026-03-14.zip", snap.Filename())
}

func TestMetaCompatibleWith(t *testing.T) {
	assert.NoError(t, Meta{ExportVersion: "2.0.0"}.CompatibleWith("2.1.0"))
	assert.NoError(t, Meta{ExportVersion: "1.4.0"}.CompatibleWith("2.1.0"))
	assert.Error(t, Meta{ExportVersion: "3.0.0"}.CompatibleWith("2.1.0"))
	assert.Error(t, Meta{ExportVersion: "not-a-version"}.CompatibleWith("2.1.0"))
}
