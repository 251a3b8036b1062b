package hostapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseRoundTripPreservesUnknownSettings(t *testing.T) {
	src := []byte(`{
		"characters": [{"name": "alice"}],
		"characterOrder": ["alice"],
		"account": {"token": "x"},
		"modules": [{"id": "m1", "name": "Mod", "assets": [["icon1", "assets/icon1.png", "png"]], "lorebook": [1, 2]}],
		"personas": [{"name": "me", "icon": "assets/persona0.png", "note": "hi"}],
		"customBackground": "assets/bg.jpg",
		"theme": "dark",
		"maxContext": 4096
	}`)

	var db Database
	require.NoError(t, json.Unmarshal(src, &db))

	assert.Len(t, db.Characters, 1)
	assert.Len(t, db.CharacterOrder, 1)
	assert.JSONEq(t, `{"token":"x"}`, string(db.Account))
	require.Len(t, db.Modules, 1)
	assert.Equal(t, "m1", db.Modules[0].ID)
	require.Len(t, db.Modules[0].Assets, 1)
	assert.Equal(t, AssetRef{ID: "icon1", Key: "assets/icon1.png", Ext: "png"}, db.Modules[0].Assets[0])
	assert.Contains(t, db.Modules[0].Extra, "lorebook")
	require.Len(t, db.Personas, 1)
	assert.Equal(t, "assets/persona0.png", db.Personas[0].Icon)
	assert.Contains(t, db.Personas[0].Extra, "note")
	assert.Equal(t, "assets/bg.jpg", db.CustomBackground)
	assert.Contains(t, db.Extra, "theme")
	assert.Contains(t, db.Extra, "maxContext")

	out, err := json.Marshal(&db)
	require.NoError(t, err)
	assert.JSONEq(t, string(src), string(out))
}

func TestDatabaseMarshalOmitsStrippedKeys(t *testing.T) {
	db := &Database{
		Extra: map[string]json.RawMessage{"theme": json.RawMessage(`"dark"`)},
	}

	out, err := json.Marshal(db)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &m))
	assert.NotContains(t, m, "characters")
	assert.NotContains(t, m, "characterOrder")
	assert.NotContains(t, m, "account")
	assert.Contains(t, m, "theme")
}

func TestAssetRefAcceptsTwoElementForm(t *testing.T) {
	var ref AssetRef
	require.NoError(t, json.Unmarshal([]byte(`["id", "assets/x.png"]`), &ref))
	assert.Equal(t, AssetRef{ID: "id", Key: "assets/x.png"}, ref)

	err := json.Unmarshal([]byte(`["only"]`), &ref)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"id": "x"}`), &ref)
	assert.Error(t, err)
}

func TestPersonaHasLocalIcon(t *testing.T) {
	assert.True(t, Persona{Icon: "assets/persona0.png"}.HasLocalIcon())
	assert.False(t, Persona{Icon: "https://example.com/a.png"}.HasLocalIcon())
	assert.False(t, Persona{Icon: "http://example.com/a.png"}.HasLocalIcon())
	assert.False(t, Persona{Icon: "data:image/png;base64,AAAA"}.HasLocalIcon())
	assert.False(t, Persona{}.HasLocalIcon())
}

func TestDatabaseCloneIsolatesTopLevel(t *testing.T) {
	db := &Database{
		Modules: []Module{{ID: "m1", Assets: []AssetRef{{ID: "a", Key: "k", Ext: "png"}}}},
		Extra:   map[string]json.RawMessage{"theme": json.RawMessage(`"dark"`)},
	}

	cp := db.Clone()
	cp.Modules[0].Assets = nil
	delete(cp.Extra, "theme")

	assert.NotNil(t, db.Modules[0].Assets)
	assert.Contains(t, db.Extra, "theme")
}
