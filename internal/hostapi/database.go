package hostapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Database mirrors the host's settings object. Only the fields the backup
// pipelines read, rewrite, or strip are typed; every other setting
// round-trips untouched through Extra.
type Database struct {
	Characters       []json.RawMessage
	CharacterOrder   []json.RawMessage
	Account          json.RawMessage
	Modules          []Module
	Personas         []Persona
	CustomBackground string

	// Extra holds all settings this tool does not interpret.
	Extra map[string]json.RawMessage
}

// Module is an installed plugin module. Assets travel separately in backup
// archives, so the snapshot strips the asset list and the importer
// re-attaches it.
type Module struct {
	ID     string
	Name   string
	Assets []AssetRef

	Extra map[string]json.RawMessage
}

// Persona is a user persona. Icon is either a storage key or an external
// URL; only storage-key icons are carried in backups.
type Persona struct {
	Name string
	Icon string

	Extra map[string]json.RawMessage
}

// HasLocalIcon reports whether the persona icon lives in asset storage
// rather than behind an external URL.
func (p Persona) HasLocalIcon() bool {
	if p.Icon == "" {
		return false
	}
	return !strings.HasPrefix(p.Icon, "http://") && !strings.HasPrefix(p.Icon, "https://") &&
		!strings.HasPrefix(p.Icon, "data:")
}

// AssetRef is a module asset reference: (asset id, storage key, extension).
// The host serializes it as a JSON string triple.
type AssetRef struct {
	ID  string
	Key string
	Ext string
}

// MarshalJSON encodes the reference as the host's [id, key, ext] triple.
func (a AssetRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{a.ID, a.Key, a.Ext})
}

// UnmarshalJSON accepts [id, key] and [id, key, ext] forms.
func (a *AssetRef) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("asset reference must be a string array: %w", err)
	}
	if len(parts) < 2 {
		return fmt.Errorf("asset reference needs at least id and key, got %d elements", len(parts))
	}
	a.ID = parts[0]
	a.Key = parts[1]
	if len(parts) > 2 {
		a.Ext = parts[2]
	}
	return nil
}

// Known top-level keys handled by the typed Database fields.
const (
	keyCharacters       = "characters"
	keyCharacterOrder   = "characterOrder"
	keyAccount          = "account"
	keyModules          = "modules"
	keyPersonas         = "personas"
	keyCustomBackground = "customBackground"
)

// MarshalJSON merges the typed fields back into the passthrough map. Typed
// fields are emitted only when present so stripped keys stay absent from
// the output, not null.
func (d *Database) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Extra)+6)
	for k, v := range d.Extra {
		out[k] = v
	}

	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		out[key] = raw
		return nil
	}

	if d.Characters != nil {
		if err := set(keyCharacters, d.Characters); err != nil {
			return nil, err
		}
	}
	if d.CharacterOrder != nil {
		if err := set(keyCharacterOrder, d.CharacterOrder); err != nil {
			return nil, err
		}
	}
	if d.Account != nil {
		out[keyAccount] = d.Account
	}
	if d.Modules != nil {
		if err := set(keyModules, d.Modules); err != nil {
			return nil, err
		}
	}
	if d.Personas != nil {
		if err := set(keyPersonas, d.Personas); err != nil {
			return nil, err
		}
	}
	if d.CustomBackground != "" {
		if err := set(keyCustomBackground, d.CustomBackground); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON splits the settings object into typed fields plus the
// passthrough map.
func (d *Database) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("settings object: %w", err)
	}

	*d = Database{Extra: raw}

	if v, ok := raw[keyCharacters]; ok {
		if err := json.Unmarshal(v, &d.Characters); err != nil {
			return fmt.Errorf("characters: %w", err)
		}
		delete(raw, keyCharacters)
	}
	if v, ok := raw[keyCharacterOrder]; ok {
		if err := json.Unmarshal(v, &d.CharacterOrder); err != nil {
			return fmt.Errorf("characterOrder: %w", err)
		}
		delete(raw, keyCharacterOrder)
	}
	if v, ok := raw[keyAccount]; ok {
		d.Account = v
		delete(raw, keyAccount)
	}
	if v, ok := raw[keyModules]; ok {
		if err := json.Unmarshal(v, &d.Modules); err != nil {
			return fmt.Errorf("modules: %w", err)
		}
		delete(raw, keyModules)
	}
	if v, ok := raw[keyPersonas]; ok {
		if err := json.Unmarshal(v, &d.Personas); err != nil {
			return fmt.Errorf("personas: %w", err)
		}
		delete(raw, keyPersonas)
	}
	if v, ok := raw[keyCustomBackground]; ok {
		if err := json.Unmarshal(v, &d.CustomBackground); err != nil {
			return fmt.Errorf("customBackground: %w", err)
		}
		delete(raw, keyCustomBackground)
	}

	return nil
}

// Clone returns a shallow copy of the database with an independent Extra
// map. Raw message values are shared; callers only add or remove keys.
func (d *Database) Clone() *Database {
	cp := *d
	cp.Extra = make(map[string]json.RawMessage, len(d.Extra))
	for k, v := range d.Extra {
		cp.Extra[k] = v
	}
	cp.Modules = make([]Module, len(d.Modules))
	copy(cp.Modules, d.Modules)
	cp.Personas = make([]Persona, len(d.Personas))
	copy(cp.Personas, d.Personas)
	return &cp
}

func moduleKnownKeys() map[string]struct{} {
	return map[string]struct{}{"id": {}, "name": {}, "assets": {}}
}

// MarshalJSON emits the module with its passthrough fields.
func (m Module) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	idRaw, err := json.Marshal(m.ID)
	if err != nil {
		return nil, err
	}
	out["id"] = idRaw
	if m.Name != "" {
		nameRaw, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		out["name"] = nameRaw
	}
	if m.Assets != nil {
		assetsRaw, err := json.Marshal(m.Assets)
		if err != nil {
			return nil, err
		}
		out["assets"] = assetsRaw
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a module object into typed fields plus passthrough.
func (m *Module) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("module object: %w", err)
	}
	*m = Module{Extra: raw}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &m.ID); err != nil {
			return fmt.Errorf("module id: %w", err)
		}
	}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &m.Name); err != nil {
			return fmt.Errorf("module name: %w", err)
		}
	}
	if v, ok := raw["assets"]; ok {
		if err := json.Unmarshal(v, &m.Assets); err != nil {
			return fmt.Errorf("module assets: %w", err)
		}
	}
	for k := range moduleKnownKeys() {
		delete(raw, k)
	}
	return nil
}

// MarshalJSON emits the persona with its passthrough fields.
func (p Persona) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+2)
	for k, v := range p.Extra {
		out[k] = v
	}
	nameRaw, err := json.Marshal(p.Name)
	if err != nil {
		return nil, err
	}
	out["name"] = nameRaw
	if p.Icon != "" {
		iconRaw, err := json.Marshal(p.Icon)
		if err != nil {
			return nil, err
		}
		out["icon"] = iconRaw
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a persona object into typed fields plus passthrough.
func (p *Persona) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("persona object: %w", err)
	}
	*p = Persona{Extra: raw}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &p.Name); err != nil {
			return fmt.Errorf("persona name: %w", err)
		}
	}
	if v, ok := raw["icon"]; ok {
		if err := json.Unmarshal(v, &p.Icon); err != nil {
			return fmt.Errorf("persona icon: %w", err)
		}
	}
	delete(raw, "name")
	delete(raw, "icon")
	return nil
}
