package hostapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/storage"
)

// Client talks to a running host instance through its plugin bridge, the
// HTTP surface the app exposes to companion tools. It implements Host for
// web and mobile deployments.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	deployment Deployment
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithDeployment overrides the deployment reported by the bridge.
func WithDeployment(d Deployment) ClientOption {
	return func(cl *Client) { cl.deployment = d }
}

// NewClient creates a bridge client. The token may be empty for bridges
// that do not require authentication.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		deployment: DeploymentWeb,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusInfo is the bridge's self-description.
type StatusInfo struct {
	Deployment string `json:"deployment"`
	Version    string `json:"version"`
	Plugins    int    `json:"plugins"`
}

// Status queries the bridge and caches the reported deployment.
func (c *Client) Status(ctx context.Context) (*StatusInfo, error) {
	var info StatusInfo
	if err := c.doJSON(ctx, http.MethodGet, "/plugin-api/status", nil, &info); err != nil {
		return nil, err
	}
	if d, err := ParseDeployment(info.Deployment); err == nil {
		c.deployment = d
	}
	return &info, nil
}

// Deployment returns the deployment reported by the last Status call, or
// web if the bridge was never probed.
func (c *Client) Deployment() Deployment {
	return c.deployment
}

// GetDatabase fetches the live settings database.
func (c *Client) GetDatabase(ctx context.Context) (*Database, error) {
	var db Database
	if err := c.doJSON(ctx, http.MethodGet, "/plugin-api/database", nil, &db); err != nil {
		return nil, fmt.Errorf("get database: %w", err)
	}
	return &db, nil
}

// SetDatabase replaces the settings database.
func (c *Client) SetDatabase(ctx context.Context, db *Database) error {
	if err := c.doJSON(ctx, http.MethodPut, "/plugin-api/database", db, nil); err != nil {
		return fmt.Errorf("set database: %w", err)
	}
	return nil
}

// SetDatabaseLite merges the given top-level fields into the database.
func (c *Client) SetDatabaseLite(ctx context.Context, patch map[string]json.RawMessage) error {
	if err := c.doJSON(ctx, http.MethodPatch, "/plugin-api/database", patch, nil); err != nil {
		return fmt.Errorf("patch database: %w", err)
	}
	return nil
}

// GetCharacter fetches the currently selected character. The backup
// pipelines never call this; it is part of the bridge surface for other
// tooling.
func (c *Client) GetCharacter(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/plugin-api/character", nil, &raw); err != nil {
		return nil, fmt.Errorf("get character: %w", err)
	}
	return raw, nil
}

type saveAssetResponse struct {
	Key string `json:"key"`
}

// SaveAsset uploads an asset blob; the host assigns and returns the
// storage key.
func (c *Client) SaveAsset(ctx context.Context, name string, data []byte) (string, error) {
	u := c.baseURL + "/plugin-api/assets?name=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("save asset %s: %w", name, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("save asset %s: %w", name, err)
	}

	var out saveAssetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("save asset %s: decode response: %w", name, err)
	}
	if out.Key == "" {
		return "", fmt.Errorf("save asset %s: bridge returned no storage key", name)
	}
	return out.Key, nil
}

// AssetURL implements storage.Resolver over the bridge's asset endpoint.
// Storage keys contain slashes, so each segment is escaped individually.
func (c *Client) AssetURL(key string) (string, bool) {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return c.baseURL + "/plugin-api/assets/" + strings.Join(parts, "/"), true
}

// Assets returns the asset shim for this deployment. The bridge endpoint is
// the only strategy; mobile and web deployments have no local store a
// companion tool could reach.
func (c *Client) Assets() *storage.Shim {
	return &storage.Shim{Resolver: c, Client: c.httpClient, KV: &bridgeKV{client: c}}
}

// Close is a no-op for the bridge client.
func (c *Client) Close() error { return nil }

// bridgeKV adapts the bridge asset endpoints to the shim's KV interface so
// imports against a remote host have a write path.
type bridgeKV struct {
	client *Client
}

func (b *bridgeKV) GetItem(ctx context.Context, key string) ([]byte, error) {
	u, _ := b.client.AssetURL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	b.client.authorize(req)
	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (b *bridgeKV) SetItem(ctx context.Context, key string, data []byte) error {
	u, _ := b.client.AssetURL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	b.client.authorize(req)
	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (b *bridgeKV) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := b.client.doJSON(ctx, http.MethodGet, "/plugin-api/assets", nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" {
		return fmt.Errorf("bridge returned %s", resp.Status)
	}
	return fmt.Errorf("bridge returned %s: %s", resp.Status, trimmed)
}
