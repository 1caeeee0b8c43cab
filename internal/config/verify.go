package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yndnr/pagejournal/internal/dbfile"
	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if cfg.Journal.Suffix == "" {
		return errors.New("journal.suffix is required")
	}
	if err := verifyDatabase(&cfg.Database); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	if cfg.Metrics.RateLimit < 0 {
		return fmt.Errorf("metrics.rate_limit must be >= 0, got %d", cfg.Metrics.RateLimit)
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Engine {
	case EngineMemory:
	case EngineBadger:
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required")
		}
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.New("cannot create data directory: " + err.Error())
		}
	default:
		return fmt.Errorf("storage.engine must be %s or %s, got %q", EngineBadger, EngineMemory, cfg.Engine)
	}

	switch cfg.Compression {
	case storage.CompressionNone, storage.CompressionZstd, "":
	default:
		return fmt.Errorf("storage.compression must be none or zstd, got %q", cfg.Compression)
	}

	if cfg.Badger.GCInterval != "" {
		if _, err := time.ParseDuration(cfg.Badger.GCInterval); err != nil {
			return fmt.Errorf("storage.badger.gc_interval: %w", err)
		}
	}
	if n := cfg.Badger.MemTableSize; n != 0 && n < MinMemTableSize {
		return fmt.Errorf("storage.badger.memtable_size must be 0 or >= %d, got %d", MinMemTableSize, n)
	}
	if cfg.Badger.GCThreshold < 0 || cfg.Badger.GCThreshold >= 1 {
		return errors.New("storage.badger.gc_threshold must be in [0, 1)")
	}
	return nil
}

func verifyDatabase(cfg *DatabaseSection) error {
	if cfg.SectorSize < 512 || cfg.SectorSize&(cfg.SectorSize-1) != 0 {
		return fmt.Errorf("database.sector_size must be a power of two >= 512, got %d", cfg.SectorSize)
	}
	if cfg.PageSize != 0 && !dbfile.ValidPageSize(cfg.PageSize) {
		return fmt.Errorf("database.page_size must be 0 or a power of two in [%d, %d], got %d",
			dbfile.MinPageSize, dbfile.MaxPageSize, cfg.PageSize)
	}
	return nil
}
