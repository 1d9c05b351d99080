package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// The settings store persists exactly two values under fixed keys: the
// last-used store credentials and the AI provider configuration. When both
// are present a new session reconnects automatically.
const (
	KeyShopifyCredentials = "shopify_credentials"
	KeyAIConfig           = "ai_config"
)

// ErrNotFound is returned when a settings key has never been saved.
var ErrNotFound = errors.New("setting not found")

// ShopifyCredentials is the persisted remote store login.
type ShopifyCredentials struct {
	Domain string `json:"domain"`
	Token  string `json:"token"`
}

// AIConfig is the persisted AI provider configuration.
type AIConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
}

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS settings (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func (d *DB) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) putSetting(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO settings(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

// DeleteSetting removes a key; deleting an absent key is not an error.
func (d *DB) DeleteSetting(ctx context.Context, key string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

// SaveShopifyCredentials persists the remote store login.
func (d *DB) SaveShopifyCredentials(ctx context.Context, creds ShopifyCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return d.putSetting(ctx, KeyShopifyCredentials, string(data))
}

// LoadShopifyCredentials returns the persisted login, or ErrNotFound.
func (d *DB) LoadShopifyCredentials(ctx context.Context) (ShopifyCredentials, error) {
	var creds ShopifyCredentials
	raw, err := d.getSetting(ctx, KeyShopifyCredentials)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return creds, fmt.Errorf("corrupt %s setting: %w", KeyShopifyCredentials, err)
	}
	return creds, nil
}

// SaveAIConfig persists the AI provider configuration.
func (d *DB) SaveAIConfig(ctx context.Context, cfg AIConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return d.putSetting(ctx, KeyAIConfig, string(data))
}

// LoadAIConfig returns the persisted AI configuration, or ErrNotFound.
func (d *DB) LoadAIConfig(ctx context.Context) (AIConfig, error) {
	var cfg AIConfig
	raw, err := d.getSetting(ctx, KeyAIConfig)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("corrupt %s setting: %w", KeyAIConfig, err)
	}
	return cfg, nil
}
