package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hupe1980/embedb/codec"
)

// Config is the persisted maintenance policy of a store. It lives in a
// single-row table and is rewritten atomically as one JSON document: a
// reader sees either the old config or the new one, never a blend.
type Config struct {
	// AutomaticallyPrune controls whether superseded log entries are pruned
	// without an explicit maintenance run. Maintenance sets it to true so
	// a vacuumed store keeps its log bounded afterwards.
	AutomaticallyPrune bool `json:"automatically_prune"`

	// PayloadCodec names the codec used for the log's payload column.
	// Resolved via codec.ByName on open; an unknown name fails the open.
	PayloadCodec string `json:"payload_codec,omitempty"`
}

// DefaultConfig is the config written on first store initialization.
func DefaultConfig() Config {
	return Config{
		AutomaticallyPrune: true,
		PayloadCodec:       codec.Default.Name(),
	}
}

const configRowID = 1

// The config row names the payload codec, so it cannot itself depend on the
// configured codec. It is always plain JSON.
var configCodec = codec.JSON{}

// GetConfig returns the persisted maintenance policy. Valid in Open and
// Maintenance states.
func (s *Store) GetConfig(ctx context.Context) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == stateClosed {
		return Config{}, ErrClosed
	}

	return s.readConfig(ctx)
}

// SetConfig persists cfg atomically. Subsequent opens observe it
// immediately. Valid in Open and Maintenance states; the maintenance
// orchestrator is the only caller while the store is in Maintenance.
func (s *Store) SetConfig(ctx context.Context, cfg Config) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == stateClosed {
		return ErrClosed
	}

	return s.writeConfig(ctx, cfg)
}

func (s *Store) readConfig(ctx context.Context) (Config, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json_str FROM embeddings_queue_config WHERE id = ?", configRowID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := configCodec.Unmarshal([]byte(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (s *Store) writeConfig(ctx context.Context, cfg Config) error {
	if cfg.PayloadCodec == "" {
		cfg.PayloadCodec = s.codec.Name()
	}
	if _, ok := codec.ByName(cfg.PayloadCodec); !ok {
		return fmt.Errorf("unknown payload codec %q", cfg.PayloadCodec)
	}

	raw, err := configCodec.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Single-statement upsert; SQLite commits it atomically.
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO embeddings_queue_config (id, config_json_str) VALUES (?, ?) "+
			"ON CONFLICT(id) DO UPDATE SET config_json_str = excluded.config_json_str",
		configRowID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
