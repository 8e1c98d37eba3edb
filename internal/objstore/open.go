package objstore

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Config selects and configures a store backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Root        string `yaml:"root" mapstructure:"root"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// Open creates the backend named by cfg.Driver: "fs", "sqlite", "postgres" or "memory".
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "fs":
		return NewFS(cfg.Root)
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(cfg.Root, "documents.db")
		}
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, eris.Errorf("objstore: unknown driver %q", cfg.Driver)
}
