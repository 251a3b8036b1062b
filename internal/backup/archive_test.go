package backup

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArchive(t *testing.T) *Archive {
	t.Helper()
	return &Archive{
		Snapshot: NewSnapshot(sampleDatabase(), true, testTime),
		ModuleAssets: []ModuleAsset{
			{ModuleID: "m1", AssetID: "icon1", Ext: "png", Data: []byte("icon1-bytes")},
		},
		PersonaIcons: []PersonaIcon{
			{Index: 0, Ext: "png", Data: []byte("persona0-bytes")},
		},
		Background: &Background{Ext: "jpg", Data: []byte("bg-bytes")},
	}
}

func zipEntries(t *testing.T, raw []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	entries := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = data
	}
	return entries
}

func TestArchiveEncodeLayout(t *testing.T) {
	raw, err := testArchive(t).Encode()
	require.NoError(t, err)

	entries := zipEntries(t, raw)
	assert.Contains(t, entries, "settings.json")
	assert.Contains(t, entries, "module-assets/m1/icon1.png")
	assert.Contains(t, entries, "persona-icons/persona-0.png")
	assert.Contains(t, entries, "custom-background/background.jpg")

	// Asset bodies are base64 at the archive boundary.
	decoded, err := base64.StdEncoding.DecodeString(string(entries["module-assets/m1/icon1.png"]))
	require.NoError(t, err)
	assert.Equal(t, []byte("icon1-bytes"), decoded)
}

func TestArchiveRoundTrip(t *testing.T) {
	src := testArchive(t)
	raw, err := src.Encode()
	require.NoError(t, err)

	back, err := OpenArchive(raw, "")
	require.NoError(t, err)
	assert.Empty(t, back.Warnings)

	require.Len(t, back.ModuleAssets, 1)
	assert.Equal(t, src.ModuleAssets[0], back.ModuleAssets[0])
	require.Len(t, back.PersonaIcons, 1)
	assert.Equal(t, src.PersonaIcons[0], back.PersonaIcons[0])
	require.NotNil(t, back.Background)
	assert.Equal(t, *src.Background, *back.Background)
	assert.True(t, back.Snapshot.AccountExcluded)
}

func TestAssetFileNameDoesNotDuplicateExtension(t *testing.T) {
	assert.Equal(t, "icon1.png", assetFileName("icon1", "png"))
	assert.Equal(t, "icon1.png", assetFileName("icon1.png", "png"))
	assert.Equal(t, "icon1.PNG", assetFileName("icon1.PNG", "png"))
	assert.Equal(t, "icon1", assetFileName("icon1", ""))
}

func TestOpenArchiveMissingSnapshot(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("module-assets/m1/icon1.png")
	require.NoError(t, err)
	_, err = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte("x"))))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = OpenArchive(buf.Bytes(), "")
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestOpenArchiveMalformedBytes(t *testing.T) {
	_, err := OpenArchive([]byte("definitely not a zip"), "")
	assert.ErrorContains(t, err, "parse archive")
}

func TestOpenArchiveCollectsEntryWarnings(t *testing.T) {
	src := testArchive(t)
	raw, err := src.Encode()
	require.NoError(t, err)

	// Rebuild with one corrupted body and one stray entry.
	entries := zipEntries(t, raw)
	entries["module-assets/m1/icon1.png"] = []byte("%%% not base64 %%%")
	entries["stray.txt"] = []byte(base64.StdEncoding.EncodeToString([]byte("x")))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	back, err := OpenArchive(buf.Bytes(), "")
	require.NoError(t, err)
	assert.Empty(t, back.ModuleAssets)
	assert.Len(t, back.Warnings, 2)
}

func TestParseModuleAssetPath(t *testing.T) {
	moduleID, assetID, ext, ok := parseModuleAssetPath("module-assets/m1/icon1.png")
	require.True(t, ok)
	assert.Equal(t, "m1", moduleID)
	assert.Equal(t, "icon1", assetID)
	assert.Equal(t, "png", ext)

	_, _, _, ok = parseModuleAssetPath("module-assets/icon1.png")
	assert.False(t, ok)
	_, _, _, ok = parseModuleAssetPath("module-assets/m1/sub/icon1.png")
	assert.False(t, ok)
}

func TestParsePersonaIconPath(t *testing.T) {
	index, ext, ok := parsePersonaIconPath("persona-icons/persona-3.webp")
	require.True(t, ok)
	assert.Equal(t, 3, index)
	assert.Equal(t, "webp", ext)

	_, _, ok = parsePersonaIconPath("persona-icons/other-3.png")
	assert.False(t, ok)
	_, _, ok = parsePersonaIconPath("persona-icons/persona-x.png")
	assert.False(t, ok)
}

func TestSealRoundTrip(t *testing.T) {
	raw, err := testArchive(t).Encode()
	require.NoError(t, err)

	sealed, err := Seal(raw, "hunter2")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.False(t, IsSealed(raw))

	back, err := OpenArchive(sealed, "hunter2")
	require.NoError(t, err)
	assert.NotNil(t, back.Snapshot)
}

func TestOpenSealedArchiveRequiresPassphrase(t *testing.T) {
	raw, err := testArchive(t).Encode()
	require.NoError(t, err)
	sealed, err := Seal(raw, "hunter2")
	require.NoError(t, err)

	_, err = OpenArchive(sealed, "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	_, err = OpenArchive(sealed, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}
