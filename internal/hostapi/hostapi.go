// Package hostapi models the chat application's plugin API surface. The
// browser plugins consume these capabilities as host-injected globals; here
// they are an explicit interface so pipelines declare what they touch and
// tests can substitute fakes.
package hostapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/storage"
)

// Deployment identifies how the host application is packaged. Strategy
// availability in the asset shim differs per deployment.
type Deployment string

const (
	// DeploymentWeb is the browser-hosted app with the full strategy set.
	DeploymentWeb Deployment = "web"
	// DeploymentDesktop is the packaged desktop app. It has no direct
	// database access; asset writes go through the local blob store only.
	DeploymentDesktop Deployment = "desktop"
	// DeploymentMobile is the mobile-wrapped app: bridge access only.
	DeploymentMobile Deployment = "mobile"
)

// ParseDeployment validates a deployment name.
func ParseDeployment(s string) (Deployment, error) {
	switch Deployment(s) {
	case DeploymentWeb, DeploymentDesktop, DeploymentMobile:
		return Deployment(s), nil
	}
	return "", fmt.Errorf("unknown deployment %q (expected web, desktop, or mobile)", s)
}

// Host is the capability set the backup pipelines need from the chat
// application.
type Host interface {
	// Deployment reports how the host is packaged.
	Deployment() Deployment

	// GetDatabase returns the live settings database.
	GetDatabase(ctx context.Context) (*Database, error)

	// SetDatabase replaces the settings database wholesale.
	SetDatabase(ctx context.Context, db *Database) error

	// SetDatabaseLite merges the given top-level fields into the live
	// database without replacing the rest.
	SetDatabaseLite(ctx context.Context, patch map[string]json.RawMessage) error

	// SaveAsset stores a binary asset and returns the storage key the host
	// assigned to it. Keys are reassigned on every save; callers must not
	// expect the original key back.
	SaveAsset(ctx context.Context, name string, data []byte) (string, error)

	// Assets returns the asset-retrieval shim for this deployment.
	Assets() *storage.Shim

	// Close releases host resources. It stands in for the plugin unload
	// hook in the browser runtime.
	Close() error
}
