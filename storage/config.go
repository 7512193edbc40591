package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boardgamescores/scorestore/bolt"
)

// DefaultDir is the directory under the home directory that holds the store.
const DefaultDir = ".scorestore"

// Config configures the store opened by Open.
type Config struct {
	// Path is the bolt file. Ignored when InMemory is set.
	Path string `toml:"bolt-path"`
	// InMemory keeps the store in memory; nothing survives Close.
	InMemory bool `toml:"in-memory"`
	// Timeout bounds the wait for a file lock held by another process.
	Timeout time.Duration `toml:"timeout"`
	// NoSync skips fsync on commit. For tests only.
	NoSync bool `toml:"no-sync"`
	// BackupPath, when set, receives a copy of the store before pending
	// migrations are applied.
	BackupPath string `toml:"backup-path"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Path:    DefaultPath(),
		Timeout: bolt.DefaultTimeout,
	}
}

// DefaultPath returns the default location of the bolt file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, DefaultDir, bolt.DefaultFilename)
}
